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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures a BadgerSnapshotStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory. Useful for tests.
	InMemory bool

	// SyncWrites makes every write durable before Write returns.
	SyncWrites bool

	// Logger receives badger's internal logs. Nil disables them.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerSnapshotStore keeps one snapshot per resource under the key
// snapshot/<resource>.
//
// Thread Safety:
//
//	Safe for concurrent use.
type BadgerSnapshotStore struct {
	db *badger.DB
}

type badgerSnapshot struct {
	TakenAt time.Time       `json:"taken_at"`
	Body    json.RawMessage `json:"body"`
}

// OpenBadgerSnapshotStore opens or creates the database.
//
// Inputs:
//
//	cfg - Path is required unless InMemory is set.
//
// Outputs:
//
//	*BadgerSnapshotStore - The store. Caller must Close it.
//	error - Non-nil if the database cannot be opened.
func OpenBadgerSnapshotStore(cfg BadgerConfig) (*BadgerSnapshotStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent snapshot store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create snapshot database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}
	return &BadgerSnapshotStore{db: db}, nil
}

func snapshotKey(resource string) []byte {
	return []byte("snapshot/" + resource)
}

// Latest implements SnapshotStore.
func (s *BadgerSnapshotStore) Latest(ctx context.Context, resource string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	var stored badgerSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(resource))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, resource)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot %s: %w", resource, err)
	}
	return Snapshot{Resource: resource, TakenAt: stored.TakenAt, Body: stored.Body}, nil
}

// Write implements SnapshotStore. The previous snapshot is replaced.
func (s *BadgerSnapshotStore) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !json.Valid(snap.Body) {
		return fmt.Errorf("write snapshot %s: body is not JSON", snap.Resource)
	}
	val, err := json.Marshal(badgerSnapshot{TakenAt: snap.TakenAt.UTC(), Body: snap.Body})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Resource, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snap.Resource), val)
	})
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.Resource, err)
	}
	return nil
}

// Resources lists every stored resource name.
func (s *BadgerSnapshotStore) Resources() ([]string, error) {
	prefix := []byte("snapshot/")
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return names, nil
}

// Close implements SnapshotStore.
func (s *BadgerSnapshotStore) Close() error {
	return s.db.Close()
}
