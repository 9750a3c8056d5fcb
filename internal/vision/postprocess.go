package vision

import (
	"sort"

	"yashubustudio/lostfound/classifier"
)

// box is a candidate detection in model-input pixels.
type box struct {
	class int
	score float32
	x1    float32
	y1    float32
	x2    float32
	y2    float32
}

// decodeOptions control how raw model output turns into detections.
type decodeOptions struct {
	minConfidence float32
	iouThreshold  float32
	allowed       map[string]bool // nil admits every class
	scaleX        float32         // source width / input width
	scaleY        float32
	srcW, srcH    float32
}

// decodeOutput reads a YOLOv8-style [1, 4+classes, anchors] tensor laid out
// row-major and returns detections after thresholding and per-class NMS,
// ordered by descending confidence.
func decodeOutput(data []float32, numClasses, anchors int, opts decodeOptions) []classifier.DetectedObject {
	if numClasses <= 0 || anchors <= 0 || len(data) < (4+numClasses)*anchors {
		return nil
	}
	at := func(row, i int) float32 { return data[row*anchors+i] }

	var cands []box
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if s := at(4+c, i); s > bestScore {
				best, bestScore = c, s
			}
		}
		if best < 0 || bestScore < opts.minConfidence {
			continue
		}
		if opts.allowed != nil && !opts.allowed[LabelForClass(best)] {
			continue
		}
		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		cands = append(cands, box{
			class: best,
			score: bestScore,
			x1:    cx - w/2,
			y1:    cy - h/2,
			x2:    cx + w/2,
			y2:    cy + h/2,
		})
	}

	kept := nonMaxSuppression(cands, opts.iouThreshold)
	out := make([]classifier.DetectedObject, 0, len(kept))
	for _, b := range kept {
		out = append(out, classifier.DetectedObject{
			Label:      LabelForClass(b.class),
			Confidence: float64(b.score),
			BBox: [4]float64{
				float64(clampf(b.x1*opts.scaleX, 0, opts.srcW)),
				float64(clampf(b.y1*opts.scaleY, 0, opts.srcH)),
				float64(clampf(b.x2*opts.scaleX, 0, opts.srcW)),
				float64(clampf(b.y2*opts.scaleY, 0, opts.srcH)),
			},
		})
	}
	return out
}

// nonMaxSuppression keeps the strongest box of each overlapping same-class group.
func nonMaxSuppression(boxes []box, iouThreshold float32) []box {
	sorted := make([]box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

	var kept []box
	for _, b := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.class == b.class && iou(k, b) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, b)
		}
	}
	return kept
}

func iou(a, b box) float32 {
	ix1, iy1 := max(a.x1, b.x1), max(a.y1, b.y1)
	ix2, iy2 := min(a.x2, b.x2), min(a.y2, b.y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := (a.x2-a.x1)*(a.y2-a.y1) + (b.x2-b.x1)*(b.y2-b.y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
