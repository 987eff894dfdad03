// Package store persists inventory documents. One document per item, keyed by
// the item name, with a body of exactly {"quantity": <int>}.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"stockroom-cli/internal/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
	DriverMemory   = "memory"

	DefaultCollection = "inventory"
)

var ErrEmptyKey = errors.New("store: empty document key")

// Document is the stored body of one item.
type Document struct {
	Quantity int `json:"quantity"`
}

// Entry is a document together with its key, as returned by List.
type Entry struct {
	Key string `json:"key"`
	Document
}

// Collection is a keyed document collection. Keys are case-sensitive and
// stored verbatim.
type Collection interface {
	Get(ctx context.Context, key string) (Document, bool, error)
	// Set upserts; an existing document is overwritten.
	Set(ctx context.Context, key string, doc Document) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List enumerates all documents in backend-defined order.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open picks the backend named by cfg.Driver. Local backends keep their files
// under dir.
func Open(ctx context.Context, dir string, cfg config.StoreConfig) (Collection, error) {
	collection := strings.TrimSpace(cfg.Collection)
	if collection == "" {
		collection = DefaultCollection
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(dir) == "" {
			return nil, errors.New("store: sqlite driver needs a data directory")
		}
		return OpenSQLite(ctx, filepath.Join(dir, sqliteFileName), collection)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN, collection)
	case DriverS3:
		return OpenS3(ctx, cfg.S3, collection)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q (expected sqlite|postgres|s3|memory)", cfg.Driver)
	}
}

func checkKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func encodeDocument(doc Document) ([]byte, error) {
	return json.Marshal(doc)
}

func decodeDocument(key string, b []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return Document{}, fmt.Errorf("store: decode %q: %w", key, err)
	}
	return doc, nil
}
