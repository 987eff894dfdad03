package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"stockroom-cli/internal/config"
)

const snapshotVersion = 1

// Snapshot is a portable copy of one collection.
type Snapshot struct {
	Version    int       `json:"version"`
	Collection string    `json:"collection"`
	ExportedAt time.Time `json:"exportedAt"`
	Items      []Entry   `json:"items"`
}

func Export(ctx context.Context, c Collection, collection string) (Snapshot, error) {
	entries, err := c.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Version:    snapshotVersion,
		Collection: collection,
		ExportedAt: time.Now().UTC(),
		Items:      entries,
	}, nil
}

// Import writes every snapshot entry into c. With replace, documents missing
// from the snapshot are deleted. The snapshot is validated before any write.
func Import(ctx context.Context, c Collection, snap Snapshot, replace bool) (int, error) {
	if snap.Version != snapshotVersion {
		return 0, fmt.Errorf("backup: unsupported snapshot version %d", snap.Version)
	}
	seen := map[string]bool{}
	for i, e := range snap.Items {
		if e.Key == "" {
			return 0, fmt.Errorf("backup: item %d: %w", i, ErrEmptyKey)
		}
		if e.Quantity < 1 {
			return 0, fmt.Errorf("backup: item %q: quantity must be at least 1", e.Key)
		}
		if seen[e.Key] {
			return 0, fmt.Errorf("backup: duplicate item %q", e.Key)
		}
		seen[e.Key] = true
	}

	if replace {
		existing, err := c.List(ctx)
		if err != nil {
			return 0, err
		}
		for _, e := range existing {
			if seen[e.Key] {
				continue
			}
			if err := c.Delete(ctx, e.Key); err != nil {
				return 0, err
			}
		}
	}
	for _, e := range snap.Items {
		if err := c.Set(ctx, e.Key, e.Document); err != nil {
			return 0, err
		}
	}
	return len(snap.Items), nil
}

func (s Snapshot) Marshal() ([]byte, error) {
	if s.Items == nil {
		s.Items = []Entry{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func WriteSnapshotFile(path string, snap Snapshot) error {
	b, err := snap.Marshal()
	if err != nil {
		return err
	}
	return writeFileAtomic(path, b, 0o644)
}

func ReadSnapshotFile(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("backup: parse %s: %w", path, err)
	}
	return snap, nil
}

// ParseS3URL splits s3://bucket/key. ok is false for anything else.
func ParseS3URL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(raw), "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// UploadSnapshotS3 writes snap to s3://bucket/key using the credentials and
// endpoint settings from cfg.
func UploadSnapshotS3(ctx context.Context, cfg config.S3Config, bucket, key string, snap Snapshot) error {
	if bucket == "" || key == "" {
		return errors.New("backup: s3 destination needs bucket and key")
	}
	cfg.Bucket = bucket
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	b, err := snap.Marshal()
	if err != nil {
		return err
	}
	if err := putS3Object(ctx, client, bucket, key, b); err != nil {
		return fmt.Errorf("backup: upload s3://%s/%s: %w", bucket, key, err)
	}
	return nil
}
