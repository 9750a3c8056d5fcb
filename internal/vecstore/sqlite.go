package vecstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"yashubustudio/lostfound/classifier"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS term_vectors (
	pos    INTEGER PRIMARY KEY,
	term   TEXT NOT NULL,
	vector BLOB NOT NULL
);`

// SQLiteStore keeps the table in a SQLite database, one row per term.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load reads every row in insertion order.
func (s *SQLiteStore) Load(ctx context.Context) (*classifier.TermTable, error) {
	var modelID string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'model_id'`).Scan(&modelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read model id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT term, vector FROM term_vectors ORDER BY pos`)
	if err != nil {
		return nil, fmt.Errorf("query term vectors: %w", err)
	}
	defer rows.Close()

	table := &classifier.TermTable{ModelID: modelID}
	for rows.Next() {
		var (
			term string
			blob []byte
		)
		if err := rows.Scan(&term, &blob); err != nil {
			return nil, fmt.Errorf("scan term vector: %w", err)
		}
		vec, err := classifier.DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		table.Terms = append(table.Terms, term)
		table.Vectors = append(table.Vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// Save replaces the stored table in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, table *classifier.TermTable) error {
	if err := validate(table); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM term_vectors`); err != nil {
		return fmt.Errorf("clear term vectors: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('model_id', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, table.ModelID); err != nil {
		return fmt.Errorf("write model id: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO term_vectors (pos, term, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, term := range table.Terms {
		blob, err := classifier.EncodeVector(table.Vectors[i])
		if err != nil {
			return fmt.Errorf("term %q: %w", term, err)
		}
		if _, err := stmt.ExecContext(ctx, i, term, blob); err != nil {
			return fmt.Errorf("insert term %q: %w", term, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
