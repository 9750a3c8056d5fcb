package classifier

import "math"

// Source identifies which signal produced a classification.
type Source string

const (
	// SourceObject marks results decided by object-detector evidence.
	SourceObject Source = "object"
	// SourceKeyword marks results decided by keyword matching.
	SourceKeyword Source = "keyword"
	// SourceSemantic marks results decided by embedding similarity.
	SourceSemantic Source = "semantic"
	// SourceFallback marks the generic uncategorized result.
	SourceFallback Source = "fallback"
)

const (
	fallbackLargeID   = "others"
	fallbackLargeName = "その他"
	fallbackMediumID  = "items"
	fallbackMedName   = "その他"
)

// MatchedKeyword records one keyword (or term) that contributed to a result.
type MatchedKeyword struct {
	Keyword string  `json:"keyword"`
	Score   float64 `json:"score"`
}

// ClassificationResult is the single output type of every classifier.
type ClassificationResult struct {
	LargeCategoryID    string           `json:"large_category_id"`
	LargeCategoryName  string           `json:"large_category_name"`
	MediumCategoryID   string           `json:"medium_category_id"`
	MediumCategoryName string           `json:"medium_category_name"`
	Name               string           `json:"name,omitempty"`
	Confidence         float64          `json:"confidence"`
	MatchedKeywords    []MatchedKeyword `json:"matched_keywords"`
	Source             Source           `json:"source"`
}

// IsFallback reports whether r is the generic uncategorized result.
func (r ClassificationResult) IsFallback() bool {
	return r.Source == SourceFallback
}

// FallbackResult returns the fixed uncategorized result shared by all classifiers.
func FallbackResult() ClassificationResult {
	return ClassificationResult{
		LargeCategoryID:    fallbackLargeID,
		LargeCategoryName:  fallbackLargeName,
		MediumCategoryID:   fallbackMediumID,
		MediumCategoryName: fallbackMedName,
		Confidence:         0,
		MatchedKeywords:    []MatchedKeyword{},
		Source:             SourceFallback,
	}
}

// DetectedObject is one detection reported by an object-detector collaborator.
type DetectedObject struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2 in source pixels
}

// ImageEvidence bundles everything the image pipeline knows about one photo.
type ImageEvidence struct {
	Objects       []DetectedObject `json:"objects"`
	ExtractedText string           `json:"text"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	Descriptors   []string         `json:"descriptors,omitempty"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
