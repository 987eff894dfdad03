package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBackup_FileRoundTripAndRestore(t *testing.T) {
	ctx := context.Background()

	src := NewMemory()
	_ = src.Set(ctx, "apple", Document{Quantity: 3})
	_ = src.Set(ctx, "banana", Document{Quantity: 1})

	snap, err := Export(ctx, src, DefaultCollection)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	path := filepath.Join(t.TempDir(), "backup", "inventory.json")
	if err := WriteSnapshotFile(path, snap); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	loaded, err := ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if diff := cmp.Diff(snap.Items, loaded.Items); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	dest := NewMemory()
	_ = dest.Set(ctx, "stale", Document{Quantity: 9})
	n, err := Import(ctx, dest, loaded, true)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 imported, got %d", n)
	}
	got, _ := dest.List(ctx)
	want := []Entry{
		{Key: "apple", Document: Document{Quantity: 3}},
		{Key: "banana", Document: Document{Quantity: 1}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("restored mismatch (-want +got):\n%s", diff)
	}
}

func TestImport_MergeKeepsOtherDocuments(t *testing.T) {
	ctx := context.Background()
	dest := NewMemory()
	_ = dest.Set(ctx, "salt", Document{Quantity: 1})

	snap := Snapshot{Version: 1, Items: []Entry{{Key: "pepper", Document: Document{Quantity: 2}}}}
	if _, err := Import(ctx, dest, snap, false); err != nil {
		t.Fatalf("import: %v", err)
	}
	got, _ := dest.List(ctx)
	if len(got) != 2 {
		t.Fatalf("expected salt and pepper, got %+v", got)
	}
}

func TestImport_ValidatesBeforeWriting(t *testing.T) {
	ctx := context.Background()
	cases := map[string]Snapshot{
		"version":   {Version: 2},
		"empty key": {Version: 1, Items: []Entry{{Key: "ok", Document: Document{Quantity: 1}}, {Key: ""}}},
		"zero":      {Version: 1, Items: []Entry{{Key: "ok", Document: Document{Quantity: 1}}, {Key: "none"}}},
		"duplicate": {Version: 1, Items: []Entry{{Key: "a", Document: Document{Quantity: 1}}, {Key: "a", Document: Document{Quantity: 2}}}},
	}
	for name, snap := range cases {
		t.Run(name, func(t *testing.T) {
			dest := NewMemory()
			if _, err := Import(ctx, dest, snap, true); err == nil {
				t.Fatalf("expected error")
			}
			got, _ := dest.List(ctx)
			if len(got) != 0 {
				t.Fatalf("expected no writes, got %+v", got)
			}
		})
	}
}

func TestParseS3URL(t *testing.T) {
	bucket, key, ok := ParseS3URL("s3://backups/stockroom/2024.json")
	if !ok || bucket != "backups" || key != "stockroom/2024.json" {
		t.Fatalf("unexpected parse: %q %q %v", bucket, key, ok)
	}
	for _, raw := range []string{"backups/x.json", "s3://backups", "s3:///x.json", "/tmp/x.json"} {
		if _, _, ok := ParseS3URL(raw); ok {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}
