package classifier

import (
	"errors"
	"fmt"
)

// CatalogLoadError reports a catalog source that could not be read or decoded.
type CatalogLoadError struct {
	Path string
	Err  error
}

func (e *CatalogLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load catalog: %v", e.Err)
	}
	return fmt.Sprintf("load catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogLoadError) Unwrap() error { return e.Err }

// EmbeddingUnavailableError reports that the semantic classifier has no usable
// embedding signal: the term table is missing or stale, or the embedder failed.
type EmbeddingUnavailableError struct {
	Reason string
	Err    error
}

func (e *EmbeddingUnavailableError) Error() string {
	if e.Err == nil {
		return "embedding unavailable: " + e.Reason
	}
	return fmt.Sprintf("embedding unavailable: %s: %v", e.Reason, e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() error { return e.Err }

var (
	// ErrNoEmbedder is wrapped by EmbeddingUnavailableError when no embedder is configured.
	ErrNoEmbedder = errors.New("no embedder configured")
	// ErrModelMismatch is wrapped when the term table was built by a different model.
	ErrModelMismatch = errors.New("term table model does not match embedder")
)
