package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	postgresDriver = "pgx"
	defaultDSN     = "postgres://localhost/stockroom?sslmode=disable"
)

var sqlOpen = sql.Open

// Postgres stores documents in a JSONB column. List returns documents in
// insertion order.
type Postgres struct {
	db         *sql.DB
	collection string
	now        func() time.Time
}

func OpenPostgres(ctx context.Context, dsn, collection string) (*Postgres, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultDSN
	}
	db, err := sqlOpen(postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db, collection: collection, now: time.Now}, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		seq BIGSERIAL,
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		body_json JSONB NOT NULL,
		created_at_unixms BIGINT NOT NULL,
		updated_at_unixms BIGINT NOT NULL,
		PRIMARY KEY (collection, key)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (Document, bool, error) {
	var body []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT body_json FROM documents WHERE collection = $1 AND key = $2`,
		p.collection, key,
	).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Document{}, false, nil
	case err != nil:
		return Document{}, false, fmt.Errorf("select document: %w", err)
	}
	doc, err := decodeDocument(key, body)
	if err != nil {
		return Document{}, false, err
	}
	return doc, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, doc Document) error {
	if err := checkKey(key); err != nil {
		return err
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	now := p.now().UTC().UnixMilli()
	_, err = p.db.ExecContext(ctx, `INSERT INTO documents(collection, key, body_json, created_at_unixms, updated_at_unixms)
		VALUES($1, $2, $3, $4, $4)
		ON CONFLICT (collection, key) DO UPDATE SET
			body_json = EXCLUDED.body_json,
			updated_at_unixms = EXCLUDED.updated_at_unixms`,
		p.collection, key, string(b), now,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, p.collection, key); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT key, body_json
		FROM documents
		WHERE collection = $1
		ORDER BY created_at_unixms ASC, seq ASC`, p.collection)
	if err != nil {
		return nil, fmt.Errorf("select documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Entry{}
	for rows.Next() {
		var (
			key  string
			body []byte
		)
		if err := rows.Scan(&key, &body); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(key, body)
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

func (p *Postgres) Close() error {
	return p.db.Close()
}
