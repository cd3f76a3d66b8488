// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

type reloadFixture struct {
	dir    string
	holder *Holder
	builds atomic.Int32
	fail   atomic.Bool
	done   chan struct{}
	cancel context.CancelFunc
}

func startReloader(t *testing.T, debounce time.Duration) *reloadFixture {
	t.Helper()
	f := &reloadFixture{dir: t.TempDir(), done: make(chan struct{})}
	f.holder = NewHolder(newTestPipeline(t))
	next := newTestPipeline(t)

	build := func(context.Context) (*pipeline.Pipeline, error) {
		f.builds.Add(1)
		if f.fail.Load() {
			return nil, errors.New("snapshot is corrupt")
		}
		return next, nil
	}
	r, err := NewReloader(f.holder, f.dir, build, debounce, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() {
		defer close(f.done)
		r.Run(ctx)
	}()
	return f
}

func (f *reloadFixture) stop(t *testing.T) {
	t.Helper()
	f.cancel()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("reloader did not stop")
	}
}

func (f *reloadFixture) write(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(`{}`), 0o600))
}

func TestReloader_DebouncesWrites(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	f := startReloader(t, 100*time.Millisecond)
	defer f.stop(t)

	f.write(t, "bootstrap_2024-09-01T12:00:00Z.json")
	f.write(t, "fixtures_2024-09-01T12:00:00Z.json")
	f.write(t, "elements_2024-09-01T12:00:00Z.json")

	require.Eventually(t, func() bool { return f.holder.Current().Number == 2 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), f.builds.Load())
	assert.Equal(t, uint64(2), f.holder.Current().Number)
}

func TestReloader_IgnoresHiddenFiles(t *testing.T) {
	f := startReloader(t, 20*time.Millisecond)
	defer f.stop(t)

	f.write(t, ".tmp-fixtures-123")
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, f.builds.Load())
	assert.Equal(t, uint64(1), f.holder.Current().Number)
}

func TestReloader_FailedBuildKeepsGeneration(t *testing.T) {
	f := startReloader(t, 20*time.Millisecond)
	defer f.stop(t)
	f.fail.Store(true)
	before := f.holder.Current()

	f.write(t, "fixtures_2024-09-01T12:00:00Z.json")
	require.Eventually(t, func() bool { return f.builds.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Same(t, before, f.holder.Current())

	f.fail.Store(false)
	f.write(t, "fixtures_2024-09-02T12:00:00Z.json")
	require.Eventually(t, func() bool { return f.holder.Current().Number == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewReloader_MissingDir(t *testing.T) {
	_, err := NewReloader(NewHolder(newTestPipeline(t)), filepath.Join(t.TempDir(), "missing"), nil, time.Second, nil)
	assert.Error(t, err)
}
