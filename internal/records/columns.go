package records

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnCandidates lists header names recognised for each record field.
type ColumnCandidates struct {
	ID       []string `json:"id" yaml:"id"`
	Name     []string `json:"name" yaml:"name"`
	Features []string `json:"features" yaml:"features"`
	Text     []string `json:"text" yaml:"text"`
}

// DefaultColumnCandidates returns the built-in header names.
func DefaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		ID:       []string{"id", "管理番号", "受付番号", "no", "番号"},
		Name:     []string{"品名", "name", "物品名", "拾得物", "item"},
		Features: []string{"特徴", "features", "description", "詳細", "備考"},
		Text:     []string{"text", "本文", "内容", "content"},
	}
}

func (c ColumnCandidates) withDefaults() ColumnCandidates {
	d := DefaultColumnCandidates()
	if c.ID == nil {
		c.ID = d.ID
	}
	if c.Name == nil {
		c.Name = d.Name
	}
	if c.Features == nil {
		c.Features = d.Features
	}
	if c.Text == nil {
		c.Text = d.Text
	}
	return c
}

type column struct {
	index      int
	fromHeader bool
}

type resolvedColumns struct {
	id, name, features, text column
}

// resolveColumns maps header cells to fields. The header row is skipped when
// any field was found by name; otherwise the first column is read as text.
func resolveColumns(header []string, opts ParseOptions) (resolvedColumns, bool, error) {
	cands := opts.Candidates.withDefaults()
	var (
		res resolvedColumns
		err error
	)
	if res.id, err = pickColumn(header, opts.IDColumn, cands.ID); err != nil {
		return res, false, err
	}
	if res.name, err = pickColumn(header, opts.NameColumn, cands.Name); err != nil {
		return res, false, err
	}
	if res.features, err = pickColumn(header, opts.FeaturesColumn, cands.Features); err != nil {
		return res, false, err
	}
	if res.text, err = pickColumn(header, opts.TextColumn, cands.Text); err != nil {
		return res, false, err
	}
	skipHeader := res.id.fromHeader || res.name.fromHeader || res.features.fromHeader || res.text.fromHeader
	if !skipHeader && res.text.index < 0 && res.name.index < 0 && len(header) > 0 {
		res.text = column{index: 0}
	}
	return res, skipHeader, nil
}

func pickColumn(header []string, explicit string, candidates []string) (column, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return matchExplicitColumn(header, explicit)
	}
	for i, col := range header {
		for _, cand := range candidates {
			if strings.EqualFold(col, cand) {
				return column{index: i, fromHeader: true}, nil
			}
		}
	}
	return column{index: -1}, nil
}

// matchExplicitColumn accepts a header name or a 1-based "#n" position.
func matchExplicitColumn(header []string, explicit string) (column, error) {
	for i, col := range header {
		if strings.EqualFold(col, explicit) {
			return column{index: i, fromHeader: true}, nil
		}
	}
	if !strings.HasPrefix(explicit, "#") {
		return column{index: -1}, fmt.Errorf("column %q not found", explicit)
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(explicit, "#")))
	if err != nil {
		return column{index: -1}, fmt.Errorf("invalid column index %q", explicit)
	}
	if n <= 0 {
		return column{index: -1}, fmt.Errorf("column indices are 1-based: %q", explicit)
	}
	if n > len(header) {
		return column{index: -1}, fmt.Errorf("column index %s is out of range", explicit)
	}
	return column{index: n - 1}, nil
}

func (c column) value(row []string) string {
	if c.index < 0 || c.index >= len(row) {
		return ""
	}
	return cleanCell(row[c.index])
}
