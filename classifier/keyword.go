package classifier

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxPossibleScore is the score that maps to confidence 1.0.
const DefaultMaxPossibleScore = 10.0

// KeywordClassifier scores normalized text against a keyword index.
type KeywordClassifier struct {
	index    *KeywordIndex
	maxScore float64
	logger   *zap.Logger
}

// NewKeywordClassifier wraps idx. A non-positive maxScore selects DefaultMaxPossibleScore.
func NewKeywordClassifier(idx *KeywordIndex, maxScore float64, logger *zap.Logger) *KeywordClassifier {
	if maxScore <= 0 {
		maxScore = DefaultMaxPossibleScore
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeywordClassifier{index: idx, maxScore: maxScore, logger: logger}
}

type mediumScore struct {
	large    *LargeCategory
	medium   *MediumCategory
	priority int
	total    float64
	matched  []MatchedKeyword
}

func priorityFactor(priority int) float64 {
	if priority <= 0 {
		return 0.01
	}
	return float64(priority) / 100
}

// Classify picks the best medium category for already-normalized text. The
// result is the fallback only when no keyword matches; a match on zero-weight
// keywords still names its category, at confidence 0. Classify never panics.
func (kc *KeywordClassifier) Classify(normalized string) (res ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			kc.logger.Error("keyword classification panicked", zap.String("panic", fmt.Sprint(r)))
			res = FallbackResult()
		}
	}()
	if kc == nil || strings.TrimSpace(normalized) == "" {
		return FallbackResult()
	}

	hits := kc.index.Match(normalized)
	if len(hits) == 0 {
		return FallbackResult()
	}

	var order []*mediumScore
	// Scores aggregate per medium id; the first category seen with an id names it.
	byMedium := make(map[string]*mediumScore)
	for _, e := range hits {
		if e == nil || e.Medium == nil || e.Large == nil {
			kc.logger.Warn("malformed keyword index entry skipped")
			continue
		}
		s := e.Weight * float64(e.TermLength) * priorityFactor(e.Priority)
		ms, ok := byMedium[e.Medium.ID]
		if !ok {
			ms = &mediumScore{large: e.Large, medium: e.Medium, priority: e.Priority}
			byMedium[e.Medium.ID] = ms
			order = append(order, ms)
		}
		ms.total += s
		ms.matched = append(ms.matched, MatchedKeyword{Keyword: e.Term, Score: s})
	}
	if len(order) == 0 {
		return FallbackResult()
	}

	best := order[0]
	for _, ms := range order[1:] {
		if ms.total > best.total || (ms.total == best.total && ms.priority > best.priority) {
			best = ms
		}
	}
	return ClassificationResult{
		LargeCategoryID:    best.large.ID,
		LargeCategoryName:  best.large.Name,
		MediumCategoryID:   best.medium.ID,
		MediumCategoryName: best.medium.Name,
		Confidence:         round2(min(best.total/kc.maxScore, 1)),
		MatchedKeywords:    best.matched,
		Source:             SourceKeyword,
	}
}
