package vision

import (
	"image"
	"sort"

	"github.com/nfnt/resize"
)

// UnknownColor is reported when no colour can be determined.
const UnknownColor = "不明"

const (
	colorSampleSize = 100
	colorTopK       = 5
)

type namedColor struct {
	name    string
	r, g, b int
}

var palette = []namedColor{
	{"赤", 255, 0, 0},
	{"緑", 0, 255, 0},
	{"青", 0, 0, 255},
	{"黄", 255, 255, 0},
	{"マゼンタ", 255, 0, 255},
	{"シアン", 0, 255, 255},
	{"白", 255, 255, 255},
	{"黒", 0, 0, 0},
	{"グレー", 128, 128, 128},
	{"オレンジ", 255, 165, 0},
	{"紫", 128, 0, 128},
	{"茶", 165, 42, 42},
}

// DominantColors names the most frequent colours of img, most frequent
// first. Up to five pixel colours are counted after a 100x100 downscale and
// each is mapped to the nearest palette entry; duplicates collapse.
func DominantColors(img image.Image) []string {
	if img == nil || img.Bounds().Empty() {
		return []string{UnknownColor}
	}
	small := resize.Resize(colorSampleSize, colorSampleSize, img, resize.NearestNeighbor)

	type rgb struct{ r, g, b int }
	counts := make(map[rgb]int)
	var order []rgb
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := small.At(x, y).RGBA()
			c := rgb{int(r >> 8), int(g >> 8), int(bl >> 8)}
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}
	if len(order) == 0 {
		return []string{UnknownColor}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > colorTopK {
		order = order[:colorTopK]
	}

	names := make([]string, 0, len(order))
	seen := make(map[string]bool)
	for _, c := range order {
		name := nearestColor(c.r, c.g, c.b)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func nearestColor(r, g, b int) string {
	best := palette[0].name
	bestDist := -1
	for _, p := range palette {
		dr, dg, db := r-p.r, g-p.g, b-p.b
		d := dr*dr + dg*dg + db*db
		if bestDist < 0 || d < bestDist {
			best, bestDist = p.name, d
		}
	}
	return best
}
