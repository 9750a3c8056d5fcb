package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultTopN is the number of suggestions returned when the caller passes zero.
const DefaultTopN = 5

// TermScore is one suggestion of the semantic classifier.
type TermScore struct {
	Term       string  `json:"term"`
	Similarity float64 `json:"similarity"`
}

// TermTable holds precomputed embeddings for every catalog term. Vectors[i]
// belongs to Terms[i]. A table is immutable once built or loaded.
type TermTable struct {
	ModelID string
	Terms   []string
	Vectors [][]float32
}

// Len returns the number of terms in the table.
func (t *TermTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Terms)
}

// Validate checks the table shape, its model id and that it covers exactly
// the catalog's terms. An empty modelID skips the model check.
func (t *TermTable) Validate(cat *Catalog, modelID string) error {
	if t == nil || len(t.Terms) == 0 {
		return errors.New("term table is empty")
	}
	if len(t.Terms) != len(t.Vectors) {
		return fmt.Errorf("term table has %d terms but %d vectors", len(t.Terms), len(t.Vectors))
	}
	if modelID != "" && t.ModelID != modelID {
		return fmt.Errorf("%w: table %q, embedder %q", ErrModelMismatch, t.ModelID, modelID)
	}
	dim := len(t.Vectors[0])
	for i, v := range t.Vectors {
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("term %q has vector length %d, want %d", t.Terms[i], len(v), dim)
		}
	}
	if cat == nil {
		return nil
	}
	want := make(map[string]struct{})
	for _, term := range cat.Terms() {
		want[NormalizeText(term)] = struct{}{}
	}
	have := make(map[string]struct{}, len(t.Terms))
	for _, term := range t.Terms {
		key := NormalizeText(term)
		if _, ok := want[key]; !ok {
			return fmt.Errorf("term table is stale: %q is not in the catalog", term)
		}
		have[key] = struct{}{}
	}
	if len(have) != len(want) {
		return fmt.Errorf("term table is stale: covers %d of %d catalog terms", len(have), len(want))
	}
	return nil
}

// SemanticClassifier suggests catalog terms by embedding similarity.
type SemanticClassifier struct {
	catalog  *Catalog
	table    *TermTable
	embedder Embedder
	logger   *zap.Logger
	// unavailable is set when the table was rejected at construction.
	unavailable error
}

// NewSemanticClassifier validates table against cat and the embedder. A
// missing or invalid table does not fail construction; every query then
// reports the embedding signal as unavailable.
func NewSemanticClassifier(cat *Catalog, table *TermTable, embedder Embedder, logger *zap.Logger) *SemanticClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &SemanticClassifier{catalog: cat, table: table, embedder: embedder, logger: logger}
	switch {
	case embedder == nil:
		sc.unavailable = &EmbeddingUnavailableError{Reason: "no embedder", Err: ErrNoEmbedder}
	case table == nil:
		sc.unavailable = &EmbeddingUnavailableError{Reason: "term table not loaded"}
	default:
		if err := table.Validate(cat, embedder.ModelID()); err != nil {
			sc.unavailable = &EmbeddingUnavailableError{Reason: "term table rejected", Err: err}
		}
	}
	if sc.unavailable != nil {
		logger.Warn("semantic classifier disabled", zap.Error(sc.unavailable))
	}
	return sc
}

// Available reports whether queries can produce suggestions.
func (sc *SemanticClassifier) Available() bool {
	return sc != nil && sc.unavailable == nil
}

// SuggestByEmbedding returns up to topN catalog terms ordered by cosine
// similarity to text. Ties keep table order. Any unavailability is logged
// and yields an empty list.
func (sc *SemanticClassifier) SuggestByEmbedding(ctx context.Context, text string, topN int) []TermScore {
	out, err := sc.suggest(ctx, text, topN)
	if err != nil {
		sc.logger.Warn("semantic suggestion unavailable", zap.Error(err))
		return []TermScore{}
	}
	return out
}

func (sc *SemanticClassifier) suggest(ctx context.Context, text string, topN int) ([]TermScore, error) {
	if sc == nil {
		return nil, &EmbeddingUnavailableError{Reason: "no semantic classifier"}
	}
	if sc.unavailable != nil {
		return nil, sc.unavailable
	}
	if topN <= 0 {
		topN = DefaultTopN
	}
	normalized := NormalizeText(text)
	if normalized == "" {
		return []TermScore{}, nil
	}
	vec, err := sc.embedder.EmbedText(ctx, normalized)
	if err != nil {
		return nil, &EmbeddingUnavailableError{Reason: "embed query", Err: err}
	}
	if len(vec) == 0 {
		return nil, &EmbeddingUnavailableError{Reason: "embedder returned an empty vector"}
	}
	scores := make([]TermScore, len(sc.table.Terms))
	for i, term := range sc.table.Terms {
		scores[i] = TermScore{Term: term, Similarity: cosineSimilarity(vec, sc.table.Vectors[i])}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Similarity > scores[j].Similarity
	})
	if len(scores) > topN {
		scores = scores[:topN]
	}
	return scores, nil
}

// ClassifyName maps the most similar catalog term back to its category.
func (sc *SemanticClassifier) ClassifyName(ctx context.Context, name string) ClassificationResult {
	suggestions := sc.SuggestByEmbedding(ctx, name, DefaultTopN)
	for _, s := range suggestions {
		large, medium, ok := sc.catalog.FindTerm(s.Term)
		if !ok {
			continue
		}
		conf := round2(clamp01(s.Similarity))
		if conf <= 0 {
			break
		}
		return ClassificationResult{
			LargeCategoryID:    large.ID,
			LargeCategoryName:  large.Name,
			MediumCategoryID:   medium.ID,
			MediumCategoryName: medium.Name,
			Name:               s.Term,
			Confidence:         conf,
			MatchedKeywords:    []MatchedKeyword{{Keyword: s.Term, Score: round2(s.Similarity)}},
			Source:             SourceSemantic,
		}
	}
	return FallbackResult()
}

// BuildTermTable embeds every catalog term. Terms are embedded in their
// normalized form; concurrency bounds the number of in-flight embed calls.
func BuildTermTable(ctx context.Context, cat *Catalog, embedder Embedder, concurrency int, logger *zap.Logger) (*TermTable, error) {
	if embedder == nil {
		return nil, &EmbeddingUnavailableError{Reason: "build term table", Err: ErrNoEmbedder}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	start := time.Now()
	terms := cat.Terms()
	vectors := make([][]float32, len(terms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, term := range terms {
		g.Go(func() error {
			vec, err := embedder.EmbedText(gctx, NormalizeText(term))
			if err != nil {
				return fmt.Errorf("embed term %q: %w", term, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info("term table built",
		zap.Int("terms", len(terms)),
		zap.String("model", embedder.ModelID()),
		zap.Duration("took", time.Since(start)))
	return &TermTable{ModelID: embedder.ModelID(), Terms: terms, Vectors: vectors}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		fa := float64(a[i])
		fb := float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
