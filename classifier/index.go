package classifier

import (
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// KeywordIndexEntry is one keyword definition with the metadata needed to
// score it. Entries are shared read-only between goroutines.
type KeywordIndexEntry struct {
	NormalizedTerm string
	Term           string
	TermLength     int // rune length of Term as authored
	Weight         float64
	Priority       int
	Large          *LargeCategory
	Medium         *MediumCategory
	order          int
}

// indexTerm groups every entry sharing one normalized term so each distinct
// pattern is checked once per query.
type indexTerm struct {
	pattern string
	entries []int
}

// KeywordIndex maps normalized terms to scoring entries. It is immutable once built.
type KeywordIndex struct {
	entries []KeywordIndexEntry
	terms   []indexTerm
}

// BuildKeywordIndex builds the index for every non-empty keyword in the catalog.
// Keywords whose normalized form is empty are skipped.
func BuildKeywordIndex(cat *Catalog, logger *zap.Logger) *KeywordIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	idx := &KeywordIndex{}
	if cat == nil {
		return idx
	}
	termPos := make(map[string]int)
	for i := range cat.Large {
		large := &cat.Large[i]
		for j := range large.Medium {
			medium := &large.Medium[j]
			for _, kw := range medium.Keywords {
				if kw.Term == "" {
					continue
				}
				normalized := NormalizeText(kw.Term)
				if normalized == "" {
					logger.Debug("keyword normalizes to empty string, skipped",
						zap.String("medium", medium.ID), zap.String("term", kw.Term))
					continue
				}
				pos := len(idx.entries)
				idx.entries = append(idx.entries, KeywordIndexEntry{
					NormalizedTerm: normalized,
					Term:           kw.Term,
					TermLength:     utf8.RuneCountInString(kw.Term),
					Weight:         kw.Weight,
					Priority:       medium.Priority,
					Large:          large,
					Medium:         medium,
					order:          pos,
				})
				t, ok := termPos[normalized]
				if !ok {
					t = len(idx.terms)
					termPos[normalized] = t
					idx.terms = append(idx.terms, indexTerm{pattern: normalized})
				}
				idx.terms[t].entries = append(idx.terms[t].entries, pos)
			}
		}
	}
	return idx
}

// Len returns the number of indexed keyword definitions.
func (idx *KeywordIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Match returns every entry whose normalized term occurs in normalized, in
// catalog order. Each entry appears at most once no matter how often its
// term repeats in the text.
func (idx *KeywordIndex) Match(normalized string) []*KeywordIndexEntry {
	if idx == nil || normalized == "" || len(idx.entries) == 0 {
		return nil
	}
	hit := make([]bool, len(idx.entries))
	found := 0
	for _, t := range idx.terms {
		if !strings.Contains(normalized, t.pattern) {
			continue
		}
		for _, e := range t.entries {
			hit[e] = true
			found++
		}
	}
	if found == 0 {
		return nil
	}
	out := make([]*KeywordIndexEntry, 0, found)
	for i := range idx.entries {
		if hit[i] {
			out = append(out, &idx.entries[i])
		}
	}
	return out
}
