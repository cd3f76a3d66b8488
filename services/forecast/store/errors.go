// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides a generic in-memory record store with declared indices.
//
// A Store holds records of one type and answers lookups only through the
// indices declared when it was constructed:
//   - Unique indices map a key to at most one record (like a primary key)
//   - List indices map a key, possibly compound, to every matching record
//     in insertion order
//
// There is no scan fallback. Querying an index that was never declared fails
// with ErrUnsupportedIndex, so every supported access pattern is O(1).
//
// # Lifecycle
//
// Stores are populated during a bootstrap phase with Add or AddBatch and are
// read-only afterwards. Freeze marks the end of bootstrap; later writes fail
// with ErrStoreFrozen.
//
// # Thread Safety
//
// Store is safe for concurrent use. Writes take an exclusive lock, reads take
// a shared lock. Records MUST NOT be mutated after being added.
package store

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for store operations.
var (
	// ErrDuplicateKey is returned when a record collides with an existing
	// record on a unique index. The store is left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNotFound is returned by unique lookups when no record has the key.
	ErrNotFound = errors.New("record not found")

	// ErrUnsupportedIndex is returned when a query names an index that was
	// not declared at construction, or uses a key type the index does not have.
	ErrUnsupportedIndex = errors.New("unsupported index")

	// ErrInvalidIndex is returned by New for malformed index declarations.
	ErrInvalidIndex = errors.New("invalid index declaration")

	// ErrStoreFrozen is returned when writing to a store after Freeze.
	ErrStoreFrozen = errors.New("store is frozen")
)

// IndexError reports a failure tied to a specific index and key.
//
// It unwraps to one of the sentinel errors above, so callers match with
// errors.Is(err, store.ErrDuplicateKey) and read the details with errors.As.
type IndexError struct {
	// Index is the declared index name.
	Index string

	// Key is the offending key value. Nil when the index itself is unknown.
	Key any

	// Err is the sentinel error.
	Err error
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("index %q: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("index %q: key %v: %v", e.Index, e.Key, e.Err)
}

// Unwrap returns the sentinel error.
func (e *IndexError) Unwrap() error {
	return e.Err
}

// BatchError aggregates multiple errors from AddBatch.
//
// Each entry is prefixed with the position of the offending record
// (e.g., "record[3]: ..."). BatchError implements the multi-error Unwrap
// so errors.Is finds any of the contained sentinels.
type BatchError struct {
	Errors []error
}

// Error returns a summary of the batch errors.
func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "batch error with no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v (and %d more)",
		len(e.Errors), e.Errors[0], len(e.Errors)-1)
}

// Unwrap returns the underlying errors for use with errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	return e.Errors
}

// ErrorList returns every error, one per line.
func (e *BatchError) ErrorList() string {
	var b strings.Builder
	for i, err := range e.Errors {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}
