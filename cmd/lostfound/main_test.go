package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/records"
	"yashubustudio/lostfound/internal/vecstore"
)

func TestParseObjectFlags(t *testing.T) {
	got, err := parseObjectFlags([]string{"umbrella:0.8", "cell phone", " handbag : 0.25 "})
	require.NoError(t, err)
	assert.Equal(t, []classifier.DetectedObject{
		{Label: "umbrella", Confidence: 0.8},
		{Label: "cell phone", Confidence: 1},
		{Label: "handbag", Confidence: 0.25},
	}, got)

	for _, bad := range []string{":0.5", "umbrella:x", "umbrella:1.5"} {
		_, err := parseObjectFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestFit(t *testing.T) {
	assert.Equal(t, "財布  ", fit("財布", 6))
	got := fit("ビニール傘と黒い財布", 8)
	assert.Equal(t, 8, runewidth.StringWidth(got))
	assert.True(t, strings.HasSuffix(strings.TrimRight(got, " "), "…"))
	assert.Equal(t, "a b", fit("a\nb", 3))
}

func TestPrintResultTable(t *testing.T) {
	color.NoColor = true
	results := []records.Result{
		{Record: records.Record{ID: "A-1", Name: "財布", Text: "財布"}, Result: classifier.ClassificationResult{
			LargeCategoryName: "財布類", MediumCategoryName: "財布", Confidence: 0.16, Source: classifier.SourceKeyword,
		}},
		{Record: records.Record{Text: "なにか"}, Result: classifier.FallbackResult()},
	}
	var buf bytes.Buffer
	printResultTable(&buf, results)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "中分類")
	assert.Contains(t, lines[1], "A-1 財布")
	assert.Contains(t, lines[1], "0.16")
	assert.Contains(t, lines[2], "fallback")
	assert.Equal(t, runewidth.StringWidth(lines[1]), runewidth.StringWidth(lines[2]))
}

func TestEngineBuilderReadsTermTable(t *testing.T) {
	dir := t.TempDir()
	catPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, writeFile(catPath, `
categories:
  - large_category_id: wallets
    large_category_name_ja: 財布類
    medium_categories:
      - medium_category_id: wallet
        medium_category_name_ja: 財布
        priority: 80
        keywords:
          - term: 財布
            weight: 1.0
`))
	storePath := filepath.Join(dir, "terms.msgpack")
	store, err := vecstore.Open(storePath)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), &classifier.TermTable{
		ModelID: "test", Terms: []string{"財布"}, Vectors: [][]float32{{1, 0}},
	}))

	c := classifier.DefaultConfig()
	c.Catalog.Path = catPath
	c.Semantic.VectorStore = storePath
	engine, err := engineBuilder(c, nil, zap.NewNop())(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wallet", engine.ClassifyText("財布").MediumCategoryID)
	// no embedder, so the table alone does not enable semantic matching
	assert.False(t, engine.SemanticAvailable())

	c.Catalog.Path = filepath.Join(dir, "missing.yaml")
	_, err = engineBuilder(c, nil, zap.NewNop())(context.Background())
	require.Error(t, err)
}

func TestOpenEngineFallsBackToEmptyCatalog(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prevCfg, prevLogger := cfg, logger
	t.Cleanup(func() { cfg, logger = prevCfg, prevLogger })

	cfg = classifier.DefaultConfig()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.yaml")
	logger = zap.New(core)

	engine, embedder, closeEmbedder := openEngine(context.Background())
	defer closeEmbedder()
	require.NotNil(t, engine)
	assert.Nil(t, embedder)
	assert.Zero(t, engine.Catalog().Stats().Medium)

	assert.Equal(t, classifier.FallbackResult(), engine.ClassifyText("黒い財布"))
	got := engine.ClassifyImage(context.Background(), classifier.ImageEvidence{
		ExtractedText: "財布", Width: 640, Height: 480,
	})
	assert.True(t, got.IsFallback())
	assert.Zero(t, got.Confidence)
	assert.Equal(t, 1, logs.FilterMessage("catalog load failed, continuing with an empty catalog").Len())
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
