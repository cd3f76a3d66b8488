// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// ErrNoSnapshot is returned when a resource has never been stored.
var ErrNoSnapshot = errors.New("no snapshot")

// Snapshot is one stored response body.
type Snapshot struct {
	Resource string
	TakenAt  time.Time
	Body     []byte
}

// Fresh reports whether the snapshot is younger than freshness at now.
func (s Snapshot) Fresh(now time.Time, freshness time.Duration) bool {
	return now.Sub(s.TakenAt) < freshness
}

// SnapshotStore keeps the latest snapshot of each resource.
type SnapshotStore interface {
	// Latest returns the newest snapshot of resource or ErrNoSnapshot.
	Latest(ctx context.Context, resource string) (Snapshot, error)

	// Write stores a snapshot and drops older ones of the same resource.
	Write(ctx context.Context, s Snapshot) error

	Close() error
}

const snapshotTimeLayout = time.RFC3339

// FileSnapshotStore writes one JSON file per snapshot named
// <resource>_<RFC3339 time>.json.
//
// Thread Safety:
//
//	Safe for concurrent readers. Concurrent writers of one resource may
//	leave more than one file; Latest still returns the newest.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore returns a store rooted at dir, creating it.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// Dir returns the snapshot directory.
func (s *FileSnapshotStore) Dir() string {
	return s.dir
}

type snapshotFile struct {
	path    string
	takenAt time.Time
}

// list returns the snapshot files of resource, oldest first. Files with an
// unparsable time are ignored.
func (s *FileSnapshotStore) list(resource string) ([]snapshotFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}
	prefix := resource + "_"
	var files []snapshotFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		t, err := time.Parse(snapshotTimeLayout, stamp)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{path: filepath.Join(s.dir, name), takenAt: t})
	}
	slices.SortFunc(files, func(a, b snapshotFile) int { return a.takenAt.Compare(b.takenAt) })
	return files, nil
}

// Latest implements SnapshotStore.
func (s *FileSnapshotStore) Latest(ctx context.Context, resource string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	files, err := s.list(resource)
	if err != nil {
		return Snapshot{}, err
	}
	if len(files) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %s in %s", ErrNoSnapshot, resource, s.dir)
	}
	latest := files[len(files)-1]
	body, err := os.ReadFile(latest.path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return Snapshot{Resource: resource, TakenAt: latest.takenAt, Body: body}, nil
}

// Write implements SnapshotStore. The file is written under a temporary
// name and renamed so readers never see a partial body.
func (s *FileSnapshotStore) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%s.json", snap.Resource, snap.TakenAt.UTC().Format(snapshotTimeLayout))
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".tmp-"+snap.Resource+"-*")
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := tmp.Write(snap.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}

	files, err := s.list(snap.Resource)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.path == path {
			continue
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove old snapshot: %w", err)
		}
	}
	return nil
}

// Close implements SnapshotStore.
func (s *FileSnapshotStore) Close() error {
	return nil
}
