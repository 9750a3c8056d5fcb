package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/ortenv"
)

// DetectorOptions configure a YOLODetector.
type DetectorOptions struct {
	OrtDLL        string
	ModelPath     string
	InputSize     int
	MinConfidence float64
	IOUThreshold  float64
	// Labels restricts reported detections; empty reports every COCO class.
	Labels []string
	Logger *zap.Logger
}

// YOLODetector runs a COCO-trained YOLOv8 ONNX export. Run calls are
// serialized because the session reuses fixed tensors.
type YOLODetector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	anchors int
	classes int
	opts    DetectorOptions
	allowed map[string]bool
	logger  *zap.Logger
}

// NewYOLODetector loads the model and allocates its tensors.
func NewYOLODetector(opts DetectorOptions) (*YOLODetector, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("detector model path is required")
	}
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.3
	}
	if opts.IOUThreshold <= 0 {
		opts.IOUThreshold = 0.45
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ortenv.Acquire(opts.OrtDLL); err != nil {
		return nil, err
	}
	inName, outName := "images", "output0"
	if inputs, outputs, err := ort.GetInputOutputInfo(opts.ModelPath); err == nil {
		if len(inputs) > 0 {
			inName = inputs[0].Name
		}
		if len(outputs) > 0 {
			outName = outputs[0].Name
		}
	} else {
		logger.Warn("could not inspect detector model, using default tensor names", zap.Error(err))
	}

	s := opts.InputSize
	anchors := (s/8)*(s/8) + (s/16)*(s/16) + (s/32)*(s/32)
	classes := len(cocoLabels)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(s), int64(s)))
	if err != nil {
		ortenv.Release()
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+classes), int64(anchors)))
	if err != nil {
		input.Destroy()
		ortenv.Release()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{inName}, []string{outName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		ortenv.Release()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	var allowed map[string]bool
	if len(opts.Labels) > 0 {
		allowed = make(map[string]bool, len(opts.Labels))
		for _, l := range opts.Labels {
			allowed[l] = true
		}
	}
	logger.Info("object detector ready",
		zap.String("model", opts.ModelPath),
		zap.Int("input_size", s),
		zap.Int("labels", len(allowed)))
	return &YOLODetector{
		session: session,
		input:   input,
		output:  output,
		size:    s,
		anchors: anchors,
		classes: classes,
		opts:    opts,
		allowed: allowed,
		logger:  logger,
	}, nil
}

// Detect returns the objects found in img with boxes in source pixels.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]classifier.DetectedObject, error) {
	if d == nil || d.session == nil {
		return nil, errors.New("detector is closed")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	fillCHW(d.input.GetData(), img, d.size)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("detector inference: %w", err)
	}

	b := img.Bounds()
	srcW, srcH := float32(b.Dx()), float32(b.Dy())
	objs := decodeOutput(d.output.GetData(), d.classes, d.anchors, decodeOptions{
		minConfidence: float32(d.opts.MinConfidence),
		iouThreshold:  float32(d.opts.IOUThreshold),
		allowed:       d.allowed,
		scaleX:        srcW / float32(d.size),
		scaleY:        srcH / float32(d.size),
		srcW:          srcW,
		srcH:          srcH,
	})
	d.logger.Debug("detection finished", zap.Int("objects", len(objs)))
	return objs, nil
}

// Close frees the session and tensors.
func (d *YOLODetector) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	d.session = nil
	ortenv.Release()
	return nil
}

// fillCHW stretches img to size x size and writes RGB planes scaled to [0,1].
func fillCHW(dst []float32, img image.Image, size int) {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := resized.Bounds()
	plane := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := y*size + x
			dst[i] = float32(r) / 65535.0
			dst[plane+i] = float32(g) / 65535.0
			dst[2*plane+i] = float32(bl) / 65535.0
		}
	}
}
