package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecodeImage(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(4, 3, color.White)))

	img, format, err := DecodeImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, _, err = DecodeImage(nil)
	require.ErrorIs(t, err, ErrEmptyImage)
	_, _, err = DecodeImage([]byte("garbage"))
	require.Error(t, err)
}

func TestDominantColors(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"赤"}, DominantColors(solid(20, 20, color.RGBA{250, 10, 5, 255})))
	assert.Equal(t, []string{"グレー"}, DominantColors(solid(8, 8, color.RGBA{120, 130, 125, 255})))

	// left three quarters black, right quarter white
	img := solid(40, 40, color.Black)
	for y := 0; y < 40; y++ {
		for x := 30; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	assert.Equal(t, []string{"黒", "白"}, DominantColors(img))

	assert.Equal(t, []string{UnknownColor}, DominantColors(nil))
	assert.Equal(t, []string{UnknownColor}, DominantColors(image.NewRGBA(image.Rect(0, 0, 0, 0))))
}

func TestNearestColor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		r, g, b int
		want    string
	}{
		{255, 170, 10, "オレンジ"},
		{160, 40, 40, "茶"},
		{120, 0, 130, "紫"},
		{250, 250, 250, "白"},
		{0, 240, 250, "シアン"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nearestColor(tt.r, tt.g, tt.b))
	}
}

func TestNonMaxSuppression(t *testing.T) {
	t.Parallel()
	boxes := []box{
		{class: 25, score: 0.6, x1: 0, y1: 0, x2: 10, y2: 10},
		{class: 25, score: 0.9, x1: 1, y1: 1, x2: 11, y2: 11},
		{class: 26, score: 0.5, x1: 1, y1: 1, x2: 11, y2: 11},
		{class: 25, score: 0.4, x1: 50, y1: 50, x2: 60, y2: 60},
	}
	kept := nonMaxSuppression(boxes, 0.45)
	require.Len(t, kept, 3)
	assert.Equal(t, float32(0.9), kept[0].score)
	assert.Equal(t, 26, kept[1].class)
	assert.Equal(t, float32(0.4), kept[2].score)
}

func TestIOU(t *testing.T) {
	t.Parallel()
	a := box{x1: 0, y1: 0, x2: 2, y2: 2}
	assert.InDelta(t, 1.0, iou(a, a), 1e-6)
	assert.InDelta(t, 1.0/7.0, iou(a, box{x1: 1, y1: 1, x2: 3, y2: 3}), 1e-6)
	assert.Zero(t, iou(a, box{x1: 5, y1: 5, x2: 6, y2: 6}))
}

func TestDecodeOutput(t *testing.T) {
	t.Parallel()
	const classes, anchors = 80, 3
	data := make([]float32, (4+classes)*anchors)
	set := func(row, i int, v float32) { data[row*anchors+i] = v }

	// anchor 0: umbrella (25) centred at (100,100) size 40x20
	set(0, 0, 100)
	set(1, 0, 100)
	set(2, 0, 40)
	set(3, 0, 20)
	set(4+25, 0, 0.8)
	// anchor 1: person (0), filtered by the allowlist
	set(0, 1, 50)
	set(1, 1, 50)
	set(2, 1, 10)
	set(3, 1, 10)
	set(4+0, 1, 0.95)
	// anchor 2: handbag (26) below the confidence floor
	set(2, 2, 10)
	set(3, 2, 10)
	set(4+26, 2, 0.2)

	objs := decodeOutput(data, classes, anchors, decodeOptions{
		minConfidence: 0.3,
		iouThreshold:  0.45,
		allowed:       map[string]bool{"umbrella": true, "handbag": true},
		scaleX:        2,
		scaleY:        0.5,
		srcW:          1280,
		srcH:          320,
	})
	require.Len(t, objs, 1)
	assert.Equal(t, "umbrella", objs[0].Label)
	assert.InDelta(t, 0.8, objs[0].Confidence, 1e-6)
	assert.Equal(t, [4]float64{160, 45, 240, 55}, objs[0].BBox)

	assert.Nil(t, decodeOutput(data[:10], classes, anchors, decodeOptions{}))
}

func TestLabelForClass(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "person", LabelForClass(0))
	assert.Equal(t, "cell phone", LabelForClass(67))
	assert.Equal(t, "toothbrush", LabelForClass(79))
	assert.Empty(t, LabelForClass(80))
	assert.Empty(t, LabelForClass(-1))
}

func TestDetectorRequiresModel(t *testing.T) {
	t.Parallel()
	_, err := NewYOLODetector(DetectorOptions{})
	require.Error(t, err)
	var d *YOLODetector
	assert.NoError(t, d.Close())
}

func TestFillCHW(t *testing.T) {
	t.Parallel()
	dst := make([]float32, 3*4*4)
	fillCHW(dst, solid(8, 8, color.RGBA{255, 0, 0, 255}), 4)
	assert.InDelta(t, 1.0, dst[0], 1e-2)
	assert.InDelta(t, 0.0, dst[16], 1e-2)
	assert.InDelta(t, 0.0, dst[32], 1e-2)
}
