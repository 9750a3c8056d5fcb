package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/records"
)

var (
	headerColor   = color.New(color.Bold)
	objectColor   = color.New(color.FgMagenta)
	keywordColor  = color.New(color.FgGreen)
	semanticColor = color.New(color.FgCyan)
	fallbackColor = color.New(color.FgYellow)
)

const maxCellWidth = 32

func sourceColor(src classifier.Source) *color.Color {
	switch src {
	case classifier.SourceObject:
		return objectColor
	case classifier.SourceKeyword:
		return keywordColor
	case classifier.SourceSemantic:
		return semanticColor
	default:
		return fallbackColor
	}
}

// fit pads or truncates s to exactly width terminal cells.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// printResultTable writes one aligned row per result.
func printResultTable(w io.Writer, results []records.Result) {
	headers := []string{"#", "品名", "大分類", "中分類", "信頼度", "根拠"}
	widths := make([]int, len(headers))
	rows := make([][]string, len(results))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for i, r := range results {
		label := r.Record.Name
		if label == "" {
			label = r.Record.Text
		}
		if r.Record.ID != "" {
			label = r.Record.ID + " " + label
		}
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			label,
			r.Result.LargeCategoryName,
			r.Result.MediumCategoryName,
			fmt.Sprintf("%.2f", r.Result.Confidence),
			string(r.Result.Source),
		}
		for j, cell := range rows[i] {
			widths[j] = min(max(widths[j], runewidth.StringWidth(strings.ReplaceAll(cell, "\n", " "))), maxCellWidth)
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = fit(h, widths[i])
	}
	headerColor.Fprintln(w, strings.Join(cells, "  "))
	for i, row := range rows {
		for j, cell := range row {
			cells[j] = fit(cell, widths[j])
		}
		line := strings.Join(cells[:len(cells)-1], "  ")
		fmt.Fprintf(w, "%s  %s\n", line, sourceColor(results[i].Result.Source).Sprint(cells[len(cells)-1]))
	}
}

// printResult writes a single classification in detail.
func printResult(w io.Writer, res classifier.ClassificationResult) {
	c := sourceColor(res.Source)
	fmt.Fprintf(w, "%s %s / %s\n", c.Sprint("●"), res.LargeCategoryName, res.MediumCategoryName)
	fmt.Fprintf(w, "  id:         %s / %s\n", res.LargeCategoryID, res.MediumCategoryID)
	if res.Name != "" {
		fmt.Fprintf(w, "  name:       %s\n", res.Name)
	}
	fmt.Fprintf(w, "  confidence: %.2f\n", res.Confidence)
	fmt.Fprintf(w, "  source:     %s\n", c.Sprint(res.Source))
	for _, kw := range res.MatchedKeywords {
		fmt.Fprintf(w, "  - %s (%.2f)\n", kw.Keyword, kw.Score)
	}
}
