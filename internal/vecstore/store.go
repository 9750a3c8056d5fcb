// Package vecstore persists precomputed catalog-term embeddings.
package vecstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"yashubustudio/lostfound/classifier"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("term table not found")

// Store loads and saves a term table.
type Store interface {
	Load(ctx context.Context) (*classifier.TermTable, error)
	Save(ctx context.Context, table *classifier.TermTable) error
	Close() error
}

// Open picks a backend from the file extension: .db/.sqlite/.sqlite3 use
// SQLite, anything else the msgpack file format.
func Open(path string) (Store, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return NewFileStore(path), nil
	}
}

func validate(table *classifier.TermTable) error {
	if table == nil {
		return errors.New("nil term table")
	}
	if len(table.Terms) != len(table.Vectors) {
		return errors.New("terms and vectors differ in length")
	}
	return nil
}
