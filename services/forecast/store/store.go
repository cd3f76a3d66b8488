// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Stats describes the contents of a store.
type Stats struct {
	// Name is the store name given to New.
	Name string

	// Records is the number of records added.
	Records int

	// KeysByIndex maps each index name to its number of distinct keys.
	KeysByIndex map[string]int

	// Frozen reports whether Freeze has been called.
	Frozen bool
}

// Store holds records of type R behind a fixed set of declared indices.
//
// Thread Safety:
//
//	Store is safe for concurrent use. Add and AddBatch take the write lock,
//	every lookup takes the read lock.
type Store[R any] struct {
	mu sync.RWMutex

	name    string
	items   []R
	unique  []Index[R]
	indices map[string]Index[R]
	frozen  bool
}

// New creates an empty store with the given indices.
//
// Description:
//
//	Declares the complete set of indices for the store's lifetime. Index
//	names must be non-empty and distinct, and an index value can only be
//	given to one store.
//
// Inputs:
//
//	name - Store name used in errors, stats and metrics.
//	indices - Unique and list index declarations.
//
// Outputs:
//
//	*Store[R] - The empty store.
//	error - ErrInvalidIndex if a declaration is malformed or reused.
//
// Example:
//
//	byID := store.Unique("fixture_id", func(f model.Fixture) int { return f.ID })
//	byGW := store.List("gameweek", func(f model.Fixture) int { return f.Gameweek })
//	fixtures, err := store.New("fixtures", byID, byGW)
func New[R any](name string, indices ...Index[R]) (*Store[R], error) {
	s := &Store[R]{
		name:    name,
		indices: make(map[string]Index[R], len(indices)),
	}
	for _, ix := range indices {
		if ix == nil {
			return nil, fmt.Errorf("%w: nil index", ErrInvalidIndex)
		}
		if err := ix.validate(); err != nil {
			return nil, err
		}
		if _, exists := s.indices[ix.Name()]; exists {
			return nil, fmt.Errorf("%w: index %q declared twice", ErrInvalidIndex, ix.Name())
		}
		s.indices[ix.Name()] = ix
		if ix.Kind() == KindUnique {
			s.unique = append(s.unique, ix)
		}
	}
	// Bind only after every declaration validated so a failed New leaves
	// the indices reusable.
	for _, ix := range indices {
		if err := ix.bind(&s.mu); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew is like New but panics on error. Intended for package-level
// declarations whose indices are fixed at compile time.
func MustNew[R any](name string, indices ...Index[R]) *Store[R] {
	s, err := New(name, indices...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the store name.
func (s *Store[R]) Name() string {
	return s.name
}

// Add inserts a record into every declared index.
//
// Description:
//
//	All unique indices are checked before anything is written, so a
//	collision on any of them leaves the store unchanged.
//
// Outputs:
//
//	error - *IndexError wrapping ErrDuplicateKey on a unique collision,
//	        ErrStoreFrozen after Freeze.
//
// Thread Safety:
//
//	Safe for concurrent use, but the intended pattern is a single
//	bootstrap writer followed by Freeze.
func (s *Store[R]) Add(record R) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("store %q: %w", s.name, ErrStoreFrozen)
	}

	batch := []R{record}
	for _, ix := range s.unique {
		if errs := ix.checkBatch(batch); len(errs) > 0 {
			recordOperation(context.Background(), s.name, "add", time.Since(start), false)
			return uniqueError(errs[0])
		}
	}

	s.insertLocked(record)
	recordOperation(context.Background(), s.name, "add", time.Since(start), true)
	recordSize(context.Background(), s.name, len(s.items))
	return nil
}

// AddBatch inserts all records or none of them.
//
// Description:
//
//	Checks every record against every unique index, including collisions
//	between records of the same batch, and reports all problems together.
//
// Outputs:
//
//	error - *BatchError listing every collision, ErrStoreFrozen after Freeze.
func (s *Store[R]) AddBatch(records []R) error {
	if len(records) == 0 {
		return nil
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return fmt.Errorf("store %q: %w", s.name, ErrStoreFrozen)
	}

	var errs []error
	for _, ix := range s.unique {
		errs = append(errs, ix.checkBatch(records)...)
	}
	if len(errs) > 0 {
		recordOperation(context.Background(), s.name, "add_batch", time.Since(start), false)
		return &BatchError{Errors: errs}
	}

	for _, record := range records {
		s.insertLocked(record)
	}
	recordOperation(context.Background(), s.name, "add_batch", time.Since(start), true)
	recordSize(context.Background(), s.name, len(s.items))
	return nil
}

// insertLocked adds a record to the item list and all indices. Caller must
// hold s.mu and must have checked unique indices.
func (s *Store[R]) insertLocked(record R) {
	s.items = append(s.items, record)
	for _, ix := range s.indices {
		ix.insert(record)
	}
}

// GetOne returns the record stored under key in the named unique index.
//
// Outputs:
//
//	R - The record, zero value on error.
//	error - ErrUnsupportedIndex if the name was not declared as a unique
//	        index or key has the wrong type, ErrNotFound if no record matches.
func (s *Store[R]) GetOne(index string, key any) (R, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, err := s.lookupIndex(index)
	if err != nil {
		var zero R
		recordOperation(context.Background(), s.name, "get_one", time.Since(start), false)
		return zero, err
	}
	record, err := ix.lookupOne(key)
	recordOperation(context.Background(), s.name, "get_one", time.Since(start), err == nil)
	return record, err
}

// GetList returns the records stored under key in the named list index, in
// insertion order. An absent key yields an empty slice.
//
// Outputs:
//
//	[]R - Copy of the matching records.
//	error - ErrUnsupportedIndex if the name was not declared as a list
//	        index or key has the wrong type.
func (s *Store[R]) GetList(index string, key any) ([]R, error) {
	start := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, err := s.lookupIndex(index)
	if err != nil {
		recordOperation(context.Background(), s.name, "get_list", time.Since(start), false)
		return nil, err
	}
	records, err := ix.lookupList(key)
	recordOperation(context.Background(), s.name, "get_list", time.Since(start), err == nil)
	return records, err
}

func (s *Store[R]) lookupIndex(name string) (Index[R], error) {
	ix, ok := s.indices[name]
	if !ok {
		return nil, &IndexError{Index: name, Err: ErrUnsupportedIndex}
	}
	return ix, nil
}

// Items returns a copy of all records in insertion order.
func (s *Store[R]) Items() []R {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRecords(s.items)
}

// Len returns the number of records.
func (s *Store[R]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Freeze ends the bootstrap phase. Every later Add or AddBatch fails with
// ErrStoreFrozen. Calling Freeze twice is a no-op.
func (s *Store[R]) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frozen = true
}

// Frozen reports whether Freeze has been called.
func (s *Store[R]) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// Stats returns a snapshot of the store contents.
func (s *Store[R]) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[string]int, len(s.indices))
	for name, ix := range s.indices {
		keys[name] = ix.keyCount()
	}
	return Stats{
		Name:        s.name,
		Records:     len(s.items),
		KeysByIndex: keys,
		Frozen:      s.frozen,
	}
}

// uniqueError strips the "record[0]: " position prefix that checkBatch adds,
// since a single Add has no batch position to report.
func uniqueError(err error) error {
	var ie *IndexError
	if errors.As(err, &ie) {
		return ie
	}
	return err
}
