package vecstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"yashubustudio/lostfound/classifier"
)

const fileFormatVersion = 1

type filePayload struct {
	Version   int         `msgpack:"version"`
	ModelID   string      `msgpack:"model_id"`
	CreatedAt time.Time   `msgpack:"created_at"`
	Terms     []string    `msgpack:"terms"`
	Vectors   [][]float32 `msgpack:"vectors"`
}

// FileStore keeps the table in a single msgpack file.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the table. A missing file yields ErrNotFound.
func (s *FileStore) Load(_ context.Context) (*classifier.TermTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer f.Close()

	var payload filePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if payload.Version != fileFormatVersion {
		return nil, fmt.Errorf("%s: unsupported format version %d", s.path, payload.Version)
	}
	table := &classifier.TermTable{ModelID: payload.ModelID, Terms: payload.Terms, Vectors: payload.Vectors}
	if err := validate(table); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return table, nil
}

// Save replaces the file atomically.
func (s *FileStore) Save(_ context.Context, table *classifier.TermTable) error {
	if err := validate(table); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(s.path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	payload := filePayload{
		Version:   fileFormatVersion,
		ModelID:   table.ModelID,
		CreatedAt: time.Now().UTC(),
		Terms:     table.Terms,
		Vectors:   table.Vectors,
	}
	if err := msgpack.NewEncoder(f).Encode(&payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode term table: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), s.path)
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
