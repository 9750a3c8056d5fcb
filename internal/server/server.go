// Package server exposes the classification engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/recognize"
)

// EngineSource yields the current engine. *classifier.Holder satisfies it.
type EngineSource interface {
	Load() *classifier.Engine
}

// ImageRecognizer classifies an uploaded photo. *recognize.Recognizer satisfies it.
type ImageRecognizer interface {
	Recognize(ctx context.Context, imgBytes []byte, hint string) (recognize.Recognition, error)
}

// Options configure a Server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	Engines        EngineSource
	// Recognizer may be nil, which disables POST /recognize.
	Recognizer ImageRecognizer
	Logger     *zap.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	return &Server{opts: opts, logger: opts.Logger}
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /categories", s.categories)
	mux.HandleFunc("GET /suggest", s.suggest)
	mux.HandleFunc("POST /classify", s.classifyText)
	mux.HandleFunc("POST /classify/name", s.classifyName)
	mux.HandleFunc("POST /classify/objects", s.classifyObjects)
	mux.HandleFunc("POST /recognize", s.recognize)
	return s.withRequestLog(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.opts.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}
