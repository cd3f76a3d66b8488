// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package memo provides memoizing computation nodes.
//
// A Node wraps a pure function of an explicit parameter struct. The first
// call for a parameter set runs the function and caches the result under the
// canonical cache key of the parameters; later calls with value-equal
// parameters return the cached result without running anything.
//
// Nodes compose by calling each other from inside their compute functions,
// so sibling nodes that need the same upstream parameters share one
// upstream computation.
//
// # Guarantees
//
//   - At most one computation is in flight per cache key. Concurrent callers
//     for the same key wait for it and share the result.
//   - Failures are never cached. A retry recomputes from scratch.
//   - Clear is local to one node and wins over an in-flight computation:
//     the late result is handed to its callers but not stored.
//
// The package performs no logging. It records OpenTelemetry metrics and
// spans for every computation.
package memo

import (
	"errors"
	"fmt"
)

// ErrCacheKey is the sentinel for parameters that cannot be turned into a
// cache key.
var ErrCacheKey = errors.New("invalid cache key")

// CacheKeyError reports a parameter that has no canonical key form.
type CacheKeyError struct {
	// Field is the parameter name.
	Field string

	// Reason describes why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *CacheKeyError) Error() string {
	return fmt.Sprintf("cache key: field %q: %s", e.Field, e.Reason)
}

// Unwrap returns ErrCacheKey.
func (e *CacheKeyError) Unwrap() error {
	return ErrCacheKey
}

// ComputationError wraps a failure returned by a node's compute function.
//
// A failure is wrapped once, by the node whose compute function produced it.
// Dependent nodes propagate the same *ComputationError unchanged, so Node
// names the node where the failure originated.
type ComputationError struct {
	// Node is the name of the failing node.
	Node string

	// Key is the cache key of the failing invocation.
	Key Key

	// Err is the error returned by the compute function.
	Err error
}

// Error implements the error interface.
func (e *ComputationError) Error() string {
	return fmt.Sprintf("node %q: compute %s: %v", e.Node, e.Key, e.Err)
}

// Unwrap returns the compute function's error.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// wrapComputation returns err unchanged when it already carries a
// ComputationError or a CacheKeyError from a dependency.
func wrapComputation(node string, key Key, err error) error {
	var ce *ComputationError
	if errors.As(err, &ce) {
		return err
	}
	var ke *CacheKeyError
	if errors.As(err, &ke) {
		return err
	}
	return &ComputationError{Node: node, Key: key, Err: err}
}
