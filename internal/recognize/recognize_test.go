package recognize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"yashubustudio/lostfound/classifier"
)

type fakeDetector struct {
	objs []classifier.DetectedObject
	err  error
}

func (f fakeDetector) Detect(context.Context, image.Image) ([]classifier.DetectedObject, error) {
	return f.objs, f.err
}

type fakeExtractor string

func (f fakeExtractor) ExtractText(context.Context, image.Image) (string, error) {
	return string(f), nil
}

func testHolder() *classifier.Holder {
	cat := &classifier.Catalog{Large: []classifier.LargeCategory{
		{ID: "wallets", Name: "財布類", Medium: []classifier.MediumCategory{
			{ID: "wallet", Name: "財布", Priority: 80, Keywords: []classifier.Keyword{{Term: "財布", Weight: 1}}},
		}},
		{ID: "umbrellas", Name: "かさ類", Medium: []classifier.MediumCategory{
			{ID: "umbrella", Name: "傘", Priority: 60, Keywords: []classifier.Keyword{{Term: "傘", Weight: 1}}},
		}},
	}}
	return classifier.NewHolder(classifier.NewEngine(classifier.EngineOptions{Catalog: cat}))
}

func blackPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRecognizeObjectPath(t *testing.T) {
	t.Parallel()
	det := fakeDetector{objs: []classifier.DetectedObject{{Label: "umbrella", Confidence: 0.9, BBox: [4]float64{1, 2, 50, 60}}}}
	r := New(testHolder(), det, nil, nil)

	got, err := r.Recognize(context.Background(), blackPNG(t), "")
	require.NoError(t, err)
	assert.Equal(t, "umbrella", got.Result.MediumCategoryID)
	assert.Equal(t, classifier.SourceObject, got.Result.Source)
	assert.Equal(t, 1.0, got.Result.Confidence)
	assert.Equal(t, "黒", got.Color)
	assert.Equal(t, det.objs, got.Objects)
	assert.Equal(t, "umbrella, サイズ: 100x100, 正方形に近い, 色: 黒", got.Features)
}

func TestRecognizeKeywordPathFromHintAndExtractor(t *testing.T) {
	t.Parallel()
	r := New(testHolder(), nil, fakeExtractor("財布"), nil)

	got, err := r.Recognize(context.Background(), blackPNG(t), "黒い")
	require.NoError(t, err)
	assert.Equal(t, "wallet", got.Result.MediumCategoryID)
	assert.Equal(t, classifier.SourceKeyword, got.Result.Source)
	// 0.16 base + four feature parts
	assert.InDelta(t, 0.36, got.Result.Confidence, 1e-9)
	assert.Equal(t, "テキスト: 黒い 財布, サイズ: 100x100, 正方形に近い, 色: 黒", got.Features)
	assert.Empty(t, got.Objects)
}

func TestRecognizeDetectorErrorDegrades(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.WarnLevel)
	r := New(testHolder(), fakeDetector{err: errors.New("session crashed")}, nil, zap.New(core))

	got, err := r.Recognize(context.Background(), blackPNG(t), "傘")
	require.NoError(t, err)
	assert.Equal(t, "umbrella", got.Result.MediumCategoryID)
	assert.Equal(t, 1, logs.FilterMessage("object detection failed").Len())
}

func TestRecognizeBadImage(t *testing.T) {
	t.Parallel()
	r := New(testHolder(), nil, nil, nil)

	got, err := r.Recognize(context.Background(), []byte("not an image"), "財布")
	require.NoError(t, err)
	if diff := cmp.Diff(classifier.FallbackResult(), got.Result); diff != "" {
		t.Errorf("expected fallback (-want +got):\n%s", diff)
	}
	assert.Equal(t, "不明", got.Color)

	_, err = r.Recognize(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrEmptyImage)
}

func TestRecognizeWithoutEngine(t *testing.T) {
	t.Parallel()
	r := New(classifier.NewHolder(nil), nil, nil, nil)
	got, err := r.Recognize(context.Background(), blackPNG(t), "財布")
	require.NoError(t, err)
	assert.True(t, got.Result.IsFallback())
}
