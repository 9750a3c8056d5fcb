// Package recognize turns an uploaded photo into a classification by running
// detection, text extraction and colour analysis before handing the
// evidence to the engine.
package recognize

import (
	"context"
	"errors"
	"image"
	"time"

	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/vision"
)

// ErrNoDetector is logged when recognition runs without an object detector.
var ErrNoDetector = errors.New("object detector not configured")

// ErrEmptyImage is returned for an upload with no bytes.
var ErrEmptyImage = vision.ErrEmptyImage

// Detector finds objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]classifier.DetectedObject, error)
}

// TextExtractor reads printed text from an image.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
}

// EngineSource yields the engine to classify with. *classifier.Holder satisfies it.
type EngineSource interface {
	Load() *classifier.Engine
}

// Recognition is the outcome of one photo.
type Recognition struct {
	Result   classifier.ClassificationResult `json:"result"`
	Features string                          `json:"features"`
	Color    string                          `json:"color"`
	Colors   []string                        `json:"colors"`
	Objects  []classifier.DetectedObject     `json:"objects"`
}

// Recognizer wires the image collaborators to the engine. Detector and
// Extractor may be nil.
type Recognizer struct {
	engines   EngineSource
	detector  Detector
	extractor TextExtractor
	logger    *zap.Logger
}

// New creates a Recognizer.
func New(engines EngineSource, detector Detector, extractor TextExtractor, logger *zap.Logger) *Recognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recognizer{engines: engines, detector: detector, extractor: extractor, logger: logger}
}

// Recognize classifies imgBytes. hint is caller-supplied text (for example a
// label transcribed by staff) that is appended to any extracted text.
// Failures never surface as errors except for an empty upload; they degrade
// to the fallback result.
func (r *Recognizer) Recognize(ctx context.Context, imgBytes []byte, hint string) (Recognition, error) {
	start := time.Now()
	out := Recognition{
		Result:  classifier.FallbackResult(),
		Color:   vision.UnknownColor,
		Colors:  []string{vision.UnknownColor},
		Objects: []classifier.DetectedObject{},
	}
	if len(imgBytes) == 0 {
		return out, ErrEmptyImage
	}

	img, format, err := vision.DecodeImage(imgBytes)
	if err != nil {
		r.logger.Warn("image recognition failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		out.Features = hint
		return out, nil
	}
	b := img.Bounds()
	ev := classifier.ImageEvidence{Width: b.Dx(), Height: b.Dy()}

	if r.detector != nil {
		objs, err := r.detector.Detect(ctx, img)
		if err != nil {
			r.logger.Warn("object detection failed", zap.Error(err))
		} else {
			ev.Objects = objs
		}
	} else {
		r.logger.Debug("skipping detection", zap.Error(ErrNoDetector))
	}

	text := hint
	if r.extractor != nil {
		extracted, err := r.extractor.ExtractText(ctx, img)
		if err != nil {
			r.logger.Warn("text extraction failed", zap.Error(err))
		} else if extracted != "" {
			if text != "" {
				text += " "
			}
			text += extracted
		}
	}
	ev.ExtractedText = text

	out.Colors = vision.DominantColors(img)
	out.Color = out.Colors[0]
	if out.Color != vision.UnknownColor {
		ev.Descriptors = append(ev.Descriptors, "色: "+out.Color)
	}
	if ev.Objects != nil {
		out.Objects = ev.Objects
	}
	out.Features, _ = classifier.AssembleFeatures(ev)

	engine := r.engines.Load()
	if engine != nil {
		out.Result = engine.ClassifyImage(ctx, ev)
	}

	r.logger.Info("image recognized",
		zap.String("format", format),
		zap.Int("width", ev.Width),
		zap.Int("height", ev.Height),
		zap.Int("objects", len(ev.Objects)),
		zap.String("category", out.Result.MediumCategoryID),
		zap.String("source", string(out.Result.Source)),
		zap.Float64("confidence", out.Result.Confidence),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}
