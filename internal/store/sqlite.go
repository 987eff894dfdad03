package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "stockroom.sqlite"

// SQLite is the default Collection: one row per document in a local file.
// List returns documents in insertion order.
type SQLite struct {
	db         *sql.DB
	collection string
	now        func() time.Time
}

func OpenSQLite(ctx context.Context, path, collection string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	// WAL enables one writer + many readers across processes; busy_timeout avoids "database is locked".
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, collection: collection, now: time.Now}, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key TEXT NOT NULL,
			body_json TEXT NOT NULL,
			created_at_unixms INTEGER NOT NULL,
			updated_at_unixms INTEGER NOT NULL,
			PRIMARY KEY (collection, key)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(collection, created_at_unixms);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, key string) (Document, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body_json FROM documents WHERE collection = ? AND key = ?`,
		s.collection, key,
	).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Document{}, false, nil
	case err != nil:
		return Document{}, false, err
	}
	doc, err := decodeDocument(key, []byte(body))
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, doc Document) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	now := s.now().UTC().UnixMilli()
	_, err = s.db.ExecContext(ctx, `INSERT INTO documents(collection, key, body_json, created_at_unixms, updated_at_unixms)
		VALUES(?, ?, ?, ?, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			body_json = excluded.body_json,
			updated_at_unixms = excluded.updated_at_unixms`,
		s.collection, key, string(b), now, now,
	)
	return err
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, s.collection, key)
	return err
}

func (s *SQLite) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, body_json
		FROM documents
		WHERE collection = ?
		ORDER BY created_at_unixms ASC, rowid ASC`, s.collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(key, []byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, Entry{Key: key, Document: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
