package classifier

import (
	"fmt"
	"strings"
)

// AssembleFeatures builds the textual description of an image that the
// keyword classifier runs over, and reports how many parts it contains.
// Parts are: distinct object labels in input order, extracted text, size,
// an aspect descriptor and any caller descriptors.
func AssembleFeatures(ev ImageEvidence) (string, int) {
	var parts []string
	seen := make(map[string]struct{}, len(ev.Objects))
	for _, obj := range ev.Objects {
		label := strings.TrimSpace(obj.Label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		parts = append(parts, label)
	}
	if text := strings.TrimSpace(ev.ExtractedText); text != "" {
		parts = append(parts, "テキスト: "+text)
	}
	if ev.Width > 0 && ev.Height > 0 {
		parts = append(parts, fmt.Sprintf("サイズ: %dx%d", ev.Width, ev.Height))
		parts = append(parts, aspectDescriptor(ev.Width, ev.Height))
	}
	for _, d := range ev.Descriptors {
		if d = strings.TrimSpace(d); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, ", "), len(parts)
}

func aspectDescriptor(w, h int) string {
	ratio := float64(w) / float64(h)
	switch {
	case ratio > 1.5:
		return "横長"
	case ratio < 0.7:
		return "縦長"
	default:
		return "正方形に近い"
	}
}
