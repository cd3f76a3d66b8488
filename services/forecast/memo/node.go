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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the result for one parameter set. Dependencies on
// other nodes are captured by the closure and called through their Get.
type ComputeFunc[P Params, R any] func(ctx context.Context, p P) (R, error)

// Options configures a Node.
type Options struct {
	// MaxEntries bounds the cache with least-recently-used eviction.
	// Zero means unbounded.
	MaxEntries int
}

// Option is a functional option for configuring a Node.
type Option func(*Options)

// WithMaxEntries bounds the node cache to n entries. Values below 1 leave
// the cache unbounded.
func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

// Stats describes a node cache.
type Stats struct {
	Name       string `json:"name"`
	Entries    int    `json:"entries"`
	MaxEntries int    `json:"max_entries"`
	Hits       int64  `json:"hits"`
	Misses     int64  `json:"misses"`
	Computes   int64  `json:"computes"`
	Failures   int64  `json:"failures"`
	Shared     int64  `json:"shared"`
	Evictions  int64  `json:"evictions"`
}

// Cache is the type-erased view of a node used for diagnostics and resets.
type Cache interface {
	Name() string
	Len() int
	Clear()
	Stats() Stats
}

// Node memoizes a compute function keyed by the canonical cache key of its
// parameters.
//
// Thread Safety:
//
//	Node is safe for concurrent use. Cache reads share a read lock, compute
//	runs outside any lock, and concurrent misses on one key are collapsed
//	into a single computation. A compute function must not call its own
//	node with the same key.
type Node[P Params, R any] struct {
	name    string
	compute ComputeFunc[P, R]
	options Options

	mu         sync.RWMutex
	entries    entries[R]
	generation uint64
	flight     singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	computes  atomic.Int64
	failures  atomic.Int64
	shared    atomic.Int64
	evictions atomic.Int64
}

// New creates a node with an empty cache.
//
// Inputs:
//
//	name - Node name used in errors, stats, metrics and spans.
//	compute - The function to memoize. Must be deterministic in p.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Node[P, R] - The node.
//	error - Non-nil if name is empty or compute is nil.
//
// Example:
//
//	square := memo.MustNew("square", func(ctx context.Context, p XParams) (int, error) {
//	    return p.X * p.X, nil
//	})
//	v, err := square.Get(ctx, XParams{X: 4})
func New[P Params, R any](name string, compute ComputeFunc[P, R], opts ...Option) (*Node[P, R], error) {
	if name == "" {
		return nil, fmt.Errorf("memo: node name is required")
	}
	if compute == nil {
		return nil, fmt.Errorf("memo: node %q has no compute function", name)
	}

	var options Options
	for _, opt := range opts {
		opt(&options)
	}

	n := &Node[P, R]{
		name:    name,
		compute: compute,
		options: options,
	}
	if options.MaxEntries > 0 {
		c, err := lru.New[Key, R](options.MaxEntries)
		if err != nil {
			return nil, fmt.Errorf("memo: node %q: %w", name, err)
		}
		n.entries = lruEntries[R]{cache: c}
	} else {
		n.entries = mapEntries[R]{}
	}
	return n, nil
}

// MustNew is like New but panics on error.
func MustNew[P Params, R any](name string, compute ComputeFunc[P, R], opts ...Option) *Node[P, R] {
	n, err := New(name, compute, opts...)
	if err != nil {
		panic(err)
	}
	return n
}

// Name returns the node name.
func (n *Node[P, R]) Name() string {
	return n.name
}

// Get returns the result for p, computing it on a cache miss.
//
// Description:
//
//	Canonicalizes p into a Key. A cached result is returned directly. On a
//	miss the compute function runs once per key, even under concurrent
//	callers, and a successful result is stored. A failed computation is
//	not stored.
//
// Inputs:
//
//	ctx - Passed to the compute function. The first caller's context is
//	      used for a shared computation.
//	p - The parameters.
//
// Outputs:
//
//	R - The result, zero value on error.
//	error - *CacheKeyError if p has no canonical key, *ComputationError
//	        if compute failed (here or in a dependency).
func (n *Node[P, R]) Get(ctx context.Context, p P) (R, error) {
	var zero R

	key, err := p.CacheKey()
	if err != nil {
		return zero, err
	}

	n.mu.RLock()
	result, ok := n.entries.get(key)
	gen := n.generation
	n.mu.RUnlock()

	if ok {
		n.hits.Add(1)
		recordLookup(ctx, n.name, true)
		return result, nil
	}
	n.misses.Add(1)
	recordLookup(ctx, n.name, false)

	// The generation is part of the flight key so callers arriving after a
	// Clear never join a computation started before it.
	flightKey := fmt.Sprintf("%d|%s", gen, key)
	v, err, shared := n.flight.Do(flightKey, func() (any, error) {
		return n.computeAndStore(ctx, key, gen, p)
	})
	if shared {
		n.shared.Add(1)
		recordShared(ctx, n.name)
	}
	if err != nil {
		return zero, err
	}
	result, _ = v.(R)
	return result, nil
}

func (n *Node[P, R]) computeAndStore(ctx context.Context, key Key, gen uint64, p P) (R, error) {
	// A previous flight for this key may have stored its result between our
	// cache check and acquiring the flight.
	n.mu.RLock()
	cached, ok := n.entries.get(key)
	n.mu.RUnlock()
	if ok {
		return cached, nil
	}

	n.computes.Add(1)
	ctx, span := startComputeSpan(ctx, n.name, key)
	defer span.End()

	start := time.Now()
	result, err := n.compute(ctx, p)
	elapsed := time.Since(start)

	if err != nil {
		n.failures.Add(1)
		recordCompute(ctx, n.name, elapsed, false)
		setComputeSpanError(span, err)
		var zero R
		return zero, wrapComputation(n.name, key, err)
	}
	recordCompute(ctx, n.name, elapsed, true)

	n.mu.Lock()
	if n.generation == gen {
		if n.entries.add(key, result) {
			n.evictions.Add(1)
			recordEviction(ctx, n.name)
		}
	}
	n.mu.Unlock()

	return result, nil
}

// Clear discards every cached result of this node. Dependencies and
// dependents keep their caches. Computations in flight when Clear is called
// still return to their callers but are not stored.
func (n *Node[P, R]) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries.purge()
	n.generation++
}

// Len returns the number of cached results.
func (n *Node[P, R]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.entries.len()
}

// Contains reports whether a result for p is cached, without computing.
func (n *Node[P, R]) Contains(p P) bool {
	key, err := p.CacheKey()
	if err != nil {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.entries.peek(key)
	return ok
}

// Stats returns the current cache statistics.
func (n *Node[P, R]) Stats() Stats {
	return Stats{
		Name:       n.name,
		Entries:    n.Len(),
		MaxEntries: n.options.MaxEntries,
		Hits:       n.hits.Load(),
		Misses:     n.misses.Load(),
		Computes:   n.computes.Load(),
		Failures:   n.failures.Load(),
		Shared:     n.shared.Load(),
		Evictions:  n.evictions.Load(),
	}
}

// entries is the storage behind a node cache. Callers hold Node.mu.
type entries[R any] interface {
	get(key Key) (R, bool)
	peek(key Key) (R, bool)
	add(key Key, value R) (evicted bool)
	len() int
	purge()
}

type mapEntries[R any] map[Key]R

func (m mapEntries[R]) get(key Key) (R, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapEntries[R]) peek(key Key) (R, bool) { return m.get(key) }

func (m mapEntries[R]) add(key Key, value R) bool {
	m[key] = value
	return false
}

func (m mapEntries[R]) len() int { return len(m) }

func (m mapEntries[R]) purge() { clear(m) }

type lruEntries[R any] struct {
	cache *lru.Cache[Key, R]
}

func (l lruEntries[R]) get(key Key) (R, bool) { return l.cache.Get(key) }

func (l lruEntries[R]) peek(key Key) (R, bool) { return l.cache.Peek(key) }

func (l lruEntries[R]) add(key Key, value R) bool { return l.cache.Add(key, value) }

func (l lruEntries[R]) len() int { return l.cache.Len() }

func (l lruEntries[R]) purge() { l.cache.Purge() }
