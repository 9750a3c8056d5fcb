package classifier

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	detectionBonusFactor = 0.3
	featureBonusPerPart  = 0.05
	maxFeatureBonus      = 0.2
)

// EngineOptions configures NewEngine. Catalog nil means an empty catalog;
// TermTable and Embedder may be nil, which disables the semantic path.
type EngineOptions struct {
	Catalog          *Catalog
	TermTable        *TermTable
	Embedder         Embedder
	MaxPossibleScore float64
	TopN             int
	// SemanticInPipeline lets ClassifyImage fall through to the semantic
	// classifier when neither objects nor keywords match.
	SemanticInPipeline bool
	Logger             *zap.Logger
}

// Engine fuses the keyword, semantic and object classifiers. It is immutable
// and safe for concurrent use; reloads build a new Engine.
type Engine struct {
	catalog  *Catalog
	index    *KeywordIndex
	keyword  *KeywordClassifier
	semantic *SemanticClassifier
	objects  *ObjectClassifier

	topN               int
	semanticInPipeline bool
	logger             *zap.Logger
}

// NewEngine builds the keyword index and wires the classifiers.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cat := opts.Catalog
	if cat == nil {
		cat = EmptyCatalog()
	}
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	idx := BuildKeywordIndex(cat, logger)
	e := &Engine{
		catalog:            cat,
		index:              idx,
		keyword:            NewKeywordClassifier(idx, opts.MaxPossibleScore, logger),
		semantic:           NewSemanticClassifier(cat, opts.TermTable, opts.Embedder, logger),
		objects:            NewObjectClassifier(cat, logger),
		topN:               topN,
		semanticInPipeline: opts.SemanticInPipeline,
		logger:             logger,
	}
	st := cat.Stats()
	logger.Info("classification engine ready",
		zap.Int("large", st.Large),
		zap.Int("medium", st.Medium),
		zap.Int("keywords", idx.Len()),
		zap.Int("termTable", opts.TermTable.Len()),
		zap.Bool("semantic", e.semantic.Available()))
	return e
}

// Catalog returns the catalog the engine was built from. Callers must not modify it.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// SemanticAvailable reports whether name classification can use embeddings.
func (e *Engine) SemanticAvailable() bool {
	return e.semantic.Available()
}

// ClassifyText classifies free text with the keyword classifier.
func (e *Engine) ClassifyText(text string) ClassificationResult {
	res := e.keyword.Classify(NormalizeText(text))
	e.logger.Debug("text classified",
		zap.String("medium", res.MediumCategoryID),
		zap.Float64("confidence", res.Confidence),
		zap.String("source", string(res.Source)))
	return res
}

// ClassifyName classifies an item name with the semantic classifier only.
func (e *Engine) ClassifyName(ctx context.Context, name string) ClassificationResult {
	res := e.semantic.ClassifyName(ctx, name)
	e.logger.Debug("name classified",
		zap.String("medium", res.MediumCategoryID),
		zap.Float64("confidence", res.Confidence),
		zap.String("source", string(res.Source)))
	return res
}

// Suggest returns the catalog terms closest to text by embedding similarity.
func (e *Engine) Suggest(ctx context.Context, text string, topN int) []TermScore {
	if topN <= 0 {
		topN = e.topN
	}
	return e.semantic.SuggestByEmbedding(ctx, text, topN)
}

// ClassifyImage fuses detector output and extracted text. Object evidence
// wins when present; otherwise the keyword classifier runs over the assembled
// feature description. Matches receive detection and feature bonuses; the
// fallback stays at zero.
func (e *Engine) ClassifyImage(ctx context.Context, ev ImageEvidence) ClassificationResult {
	features, featureCount := AssembleFeatures(ev)

	var (
		res  ClassificationResult
		base float64
	)
	if m, ok := e.objects.Evaluate(ev.Objects); ok && m.Adjusted > 0 {
		res = e.objects.resultFor(m, m.Adjusted)
		base = m.Adjusted
	} else {
		res = e.keyword.Classify(NormalizeText(features))
		base = res.Confidence
		if res.IsFallback() && e.semanticInPipeline {
			res = e.semantic.ClassifyName(ctx, semanticQuery(ev))
			base = res.Confidence
		}
	}
	if res.IsFallback() {
		e.logger.Debug("image not classified", zap.Int("features", featureCount))
		return res
	}

	maxObj := 0.0
	for _, obj := range ev.Objects {
		maxObj = max(maxObj, clamp01(obj.Confidence))
	}
	featureBonus := min(float64(featureCount)*featureBonusPerPart, maxFeatureBonus)
	res.Confidence = round2(clamp01(base + maxObj*detectionBonusFactor + featureBonus))

	e.logger.Debug("image classified",
		zap.String("medium", res.MediumCategoryID),
		zap.String("source", string(res.Source)),
		zap.Float64("base", base),
		zap.Float64("confidence", res.Confidence),
		zap.Int("features", featureCount))
	return res
}

func semanticQuery(ev ImageEvidence) string {
	parts := make([]string, 0, len(ev.Objects)+1)
	for _, obj := range ev.Objects {
		parts = append(parts, obj.Label)
	}
	if ev.ExtractedText != "" {
		parts = append(parts, ev.ExtractedText)
	}
	return strings.Join(parts, " ")
}
