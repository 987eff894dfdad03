package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestSQLite(t *testing.T, path, collection string) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), path, collection)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteCollection(t *testing.T) {
	runCollectionContract(t, func(t *testing.T) Collection {
		return openTestSQLite(t, filepath.Join(t.TempDir(), sqliteFileName), DefaultCollection)
	}, true)
}

func TestSQLiteCollection_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", sqliteFileName)

	s1, err := OpenSQLite(ctx, path, DefaultCollection)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s1.Set(ctx, "flour", Document{Quantity: 2}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected sqlite file: %v", err)
	}

	s2 := openTestSQLite(t, path, DefaultCollection)
	doc, ok, err := s2.Get(ctx, "flour")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if doc.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", doc.Quantity)
	}
}

func TestSQLiteCollection_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), sqliteFileName)
	a := openTestSQLite(t, path, "inventory")
	b := openTestSQLite(t, path, "archive")

	if err := a.Set(ctx, "salt", Document{Quantity: 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "salt"); ok {
		t.Fatalf("archive must not see inventory documents")
	}
	entries, err := b.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty archive, got %+v", entries)
	}
}

func TestSQLiteCollection_StoresQuantityBody(t *testing.T) {
	ctx := context.Background()
	s := openTestSQLite(t, filepath.Join(t.TempDir(), sqliteFileName), DefaultCollection)
	if err := s.Set(ctx, "eggs", Document{Quantity: 12}); err != nil {
		t.Fatalf("set: %v", err)
	}
	var body string
	if err := s.db.QueryRowContext(ctx, `SELECT body_json FROM documents WHERE key = ?`, "eggs").Scan(&body); err != nil {
		t.Fatalf("select: %v", err)
	}
	if body != `{"quantity":12}` {
		t.Fatalf("unexpected body: %s", body)
	}
}
