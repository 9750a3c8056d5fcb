package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/recognize"
	"yashubustudio/lostfound/internal/server"
	"yashubustudio/lostfound/internal/vision"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP classification service",
	Long: `Starts the HTTP service. The catalog file is watched for changes when
catalog.watch is set, and image recognition is enabled when
detector.modelPath points at a YOLO ONNX export.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, embedder, closeEmbedder := openEngine(ctx)
	defer closeEmbedder()
	holder := classifier.NewHolder(engine)

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		watcher, err := classifier.NewCatalogWatcher(cfg.Catalog.Path, holder, engineBuilder(cfg, embedder, logger), logger)
		if err != nil {
			logger.Warn("catalog watcher unavailable", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("catalog watcher failed to start", zap.Error(err))
			watcher.Stop()
		} else {
			defer watcher.Stop()
		}
	}

	var detector recognize.Detector
	if det := newDetector(); det != nil {
		defer det.Close()
		detector = det
	}
	recognizer := recognize.New(holder, detector, nil, logger)

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(server.Options{
		Addr:           addr,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Engines:        holder,
		Recognizer:     recognizer,
		Logger:         logger,
	})
	return srv.ListenAndServe(ctx)
}

// newDetector returns nil when no detector model is configured or it fails
// to load; recognition then runs on text and colour alone.
func newDetector() *vision.YOLODetector {
	if cfg.Detector.ModelPath == "" {
		return nil
	}
	det, err := vision.NewYOLODetector(vision.DetectorOptions{
		OrtDLL:        cfg.Embedder.OrtDLL,
		ModelPath:     cfg.Detector.ModelPath,
		InputSize:     cfg.Detector.InputSize,
		MinConfidence: cfg.Detector.MinConfidence,
		IOUThreshold:  cfg.Detector.IOUThreshold,
		Labels:        classifier.ObjectLabels(),
		Logger:        logger,
	})
	if err != nil {
		logger.Warn("object detector unavailable", zap.Error(err))
		return nil
	}
	return det
}
