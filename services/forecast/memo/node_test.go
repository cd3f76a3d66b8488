// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package memo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type xParams struct {
	X int
}

func (p xParams) CacheKey() (Key, error) {
	return NewKey().Int("x", p.X).Build()
}

type badParams struct{}

func (badParams) CacheKey() (Key, error) {
	return NewKey().Value("targets", map[int]bool{1: true}).Build()
}

type stateParams struct {
	Cutoff int
}

func (p stateParams) CacheKey() (Key, error) {
	return NewKey().Int("cutoff", p.Cutoff).Build()
}

type predictParams struct {
	Cutoff int
	Period int
}

func (p predictParams) CacheKey() (Key, error) {
	return NewKey().Int("cutoff", p.Cutoff).Int("period", p.Period).Build()
}

func TestNew_Validation(t *testing.T) {
	_, err := New[xParams, int]("", func(context.Context, xParams) (int, error) { return 0, nil })
	assert.Error(t, err)

	_, err = New[xParams, int]("square", nil)
	assert.Error(t, err)

	assert.Panics(t, func() { MustNew[xParams, int]("square", nil) })
}

func TestNode_Memoizes(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	square := MustNew("square", func(_ context.Context, p xParams) (int, error) {
		calls.Add(1)
		return p.X * p.X, nil
	})

	v, err := square.Get(ctx, xParams{X: 4})
	require.NoError(t, err)
	assert.Equal(t, 16, v)

	v, err = square.Get(ctx, xParams{X: 4})
	require.NoError(t, err)
	assert.Equal(t, 16, v)
	assert.Equal(t, int64(1), calls.Load())

	v, err = square.Get(ctx, xParams{X: 5})
	require.NoError(t, err)
	assert.Equal(t, 25, v)
	assert.Equal(t, int64(2), calls.Load())

	assert.Equal(t, 2, square.Len())
	assert.True(t, square.Contains(xParams{X: 4}))
	assert.False(t, square.Contains(xParams{X: 6}))

	stats := square.Stats()
	assert.Equal(t, "square", stats.Name)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(2), stats.Computes)
}

func TestNode_ReturnsSameValue(t *testing.T) {
	ctx := context.Background()
	node := MustNew("alloc", func(_ context.Context, p xParams) (*int, error) {
		v := p.X
		return &v, nil
	})

	a, err := node.Get(ctx, xParams{X: 1})
	require.NoError(t, err)
	b, err := node.Get(ctx, xParams{X: 1})
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestNode_FailureNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("upstream unavailable")
	var calls atomic.Int64
	node := MustNew("flaky", func(_ context.Context, p xParams) (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return p.X, nil
	})

	_, err := node.Get(ctx, xParams{X: 7})
	require.ErrorIs(t, err, boom)

	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "flaky", ce.Node)
	assert.Equal(t, Key("x=i:7"), ce.Key)
	assert.Zero(t, node.Len())

	v, err := node.Get(ctx, xParams{X: 7})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, int64(1), node.Stats().Failures)
}

func TestNode_ComputationErrorWrapsOnce(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	inner := MustNew("inner", func(context.Context, xParams) (int, error) {
		return 0, boom
	})
	outer := MustNew("outer", func(ctx context.Context, p xParams) (int, error) {
		v, err := inner.Get(ctx, p)
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	})

	_, err := outer.Get(ctx, xParams{X: 1})
	require.ErrorIs(t, err, boom)

	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "inner", ce.Node)
	assert.ErrorIs(t, ce.Err, boom)
	assert.NotErrorAs(t, ce.Err, new(*ComputationError))
}

func TestNode_CacheKeyError(t *testing.T) {
	var calls atomic.Int64
	node := MustNew("bad", func(context.Context, badParams) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	_, err := node.Get(context.Background(), badParams{})
	require.ErrorIs(t, err, ErrCacheKey)
	assert.Zero(t, calls.Load())
	assert.Zero(t, node.Len())
}

func TestNode_ContextCancellationNotCached(t *testing.T) {
	node := MustNew("ctx", func(ctx context.Context, p xParams) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return p.X, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := node.Get(ctx, xParams{X: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, node.Len())

	v, err := node.Get(context.Background(), xParams{X: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// TestNode_SiblingsShareUpstream builds state(cutoff) -> predict(cutoff, period).
func TestNode_SiblingsShareUpstream(t *testing.T) {
	ctx := context.Background()
	var stateCalls, predictCalls atomic.Int64

	state := MustNew("state", func(_ context.Context, p stateParams) (int, error) {
		stateCalls.Add(1)
		return p.Cutoff * 10, nil
	})
	predict := MustNew("predict", func(ctx context.Context, p predictParams) (int, error) {
		predictCalls.Add(1)
		s, err := state.Get(ctx, stateParams{Cutoff: p.Cutoff})
		if err != nil {
			return 0, err
		}
		return s + p.Period, nil
	})

	v, err := predict.Get(ctx, predictParams{Cutoff: 5, Period: 5})
	require.NoError(t, err)
	assert.Equal(t, 55, v)

	v, err = predict.Get(ctx, predictParams{Cutoff: 5, Period: 6})
	require.NoError(t, err)
	assert.Equal(t, 56, v)

	assert.Equal(t, int64(1), stateCalls.Load())
	assert.Equal(t, int64(2), predictCalls.Load())
}

func TestNode_ClearIsLocal(t *testing.T) {
	ctx := context.Background()
	var stateCalls, predictCalls atomic.Int64
	state := MustNew("state", func(_ context.Context, p stateParams) (int, error) {
		stateCalls.Add(1)
		return p.Cutoff, nil
	})
	predict := MustNew("predict", func(ctx context.Context, p predictParams) (int, error) {
		predictCalls.Add(1)
		return state.Get(ctx, stateParams{Cutoff: p.Cutoff})
	})

	_, err := predict.Get(ctx, predictParams{Cutoff: 3, Period: 3})
	require.NoError(t, err)

	predict.Clear()
	assert.Zero(t, predict.Len())
	assert.Equal(t, 1, state.Len())

	_, err = predict.Get(ctx, predictParams{Cutoff: 3, Period: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(2), predictCalls.Load())
	assert.Equal(t, int64(1), stateCalls.Load())
}

func TestNode_SingleFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	release := make(chan struct{})
	var calls atomic.Int64
	node := MustNew("slow", func(_ context.Context, p xParams) (int, error) {
		calls.Add(1)
		<-release
		return p.X * 2, nil
	})

	const callers = 32
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = node.Get(ctx, xParams{X: 21})
		}(i)
	}

	require.Eventually(t, func() bool {
		return node.Stats().Misses == callers
	}, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, 1, node.Len())
}

func TestNode_DistinctKeysDoNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	release := make(chan struct{})
	node := MustNew("mixed", func(_ context.Context, p xParams) (int, error) {
		if p.X == 1 {
			<-release
		}
		return p.X, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = node.Get(ctx, xParams{X: 1})
	}()

	require.Eventually(t, func() bool { return node.Stats().Computes == 1 }, time.Second, time.Millisecond)

	v, err := node.Get(ctx, xParams{X: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	close(release)
	<-done
	assert.Equal(t, 2, node.Len())
}

func TestNode_ClearDuringFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	node := MustNew("racy", func(_ context.Context, p xParams) (int, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return p.X, nil
	})

	type result struct {
		v   int
		err error
	}
	out := make(chan result, 1)
	go func() {
		v, err := node.Get(ctx, xParams{X: 9})
		out <- result{v, err}
	}()

	<-started
	node.Clear()
	close(release)

	r := <-out
	require.NoError(t, r.err)
	assert.Equal(t, 9, r.v)
	assert.Zero(t, node.Len(), "result computed before Clear must not be stored")

	_, err := node.Get(ctx, xParams{X: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, 1, node.Len())
}

func TestNode_MaxEntries(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int64
	node := MustNew("bounded", func(_ context.Context, p xParams) (int, error) {
		calls.Add(1)
		return p.X, nil
	}, WithMaxEntries(2))

	for _, x := range []int{1, 2, 3} {
		_, err := node.Get(ctx, xParams{X: x})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, node.Len())
	assert.False(t, node.Contains(xParams{X: 1}))

	stats := node.Stats()
	assert.Equal(t, 2, stats.MaxEntries)
	assert.Equal(t, int64(1), stats.Evictions)

	// Evicted keys still follow the compute-once contract when refilled.
	_, err := node.Get(ctx, xParams{X: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load())

	node.Clear()
	assert.Zero(t, node.Len())
	assert.Equal(t, int64(1), node.Stats().Evictions)
}

func TestWithMaxEntries_IgnoresNonPositive(t *testing.T) {
	node := MustNew("unbounded", func(_ context.Context, p xParams) (int, error) {
		return p.X, nil
	}, WithMaxEntries(0), WithMaxEntries(-3))
	assert.Zero(t, node.Stats().MaxEntries)
}
