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
	"fmt"
	"sync"
)

// Kind distinguishes unique indices from list indices.
type Kind int

const (
	// KindUnique maps a key to at most one record.
	KindUnique Kind = iota + 1

	// KindList maps a key to an ordered sequence of records.
	KindList
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Index is a declared index over records of type R.
//
// Indices are created with Unique or List and handed to New. The interface
// is sealed: only this package provides implementations.
type Index[R any] interface {
	// Name returns the declared index name.
	Name() string

	// Kind reports whether the index is unique or list.
	Kind() Kind

	bind(mu *sync.RWMutex) error
	validate() error
	checkBatch(records []R) []error
	insert(record R)
	lookupOne(key any) (R, error)
	lookupList(key any) ([]R, error)
	keyCount() int
}

// UniqueIndex maps keys of type K to a single record.
//
// Thread Safety:
//
//	Get is safe for concurrent use once the index is bound to a Store.
type UniqueIndex[R any, K comparable] struct {
	name    string
	key     func(R) K
	mu      *sync.RWMutex
	entries map[K]R
}

// Unique declares a unique index named name, keyed by key(record).
//
// Example:
//
//	byID := store.Unique("team_id", func(t model.Team) int { return t.ID })
func Unique[R any, K comparable](name string, key func(R) K) *UniqueIndex[R, K] {
	return &UniqueIndex[R, K]{
		name:    name,
		key:     key,
		entries: make(map[K]R),
	}
}

// Name returns the declared index name.
func (ix *UniqueIndex[R, K]) Name() string { return ix.name }

// Kind returns KindUnique.
func (ix *UniqueIndex[R, K]) Kind() Kind { return KindUnique }

// Get returns the record stored under key.
//
// Outputs:
//
//	R - The record, zero value on error.
//	error - *IndexError wrapping ErrNotFound when no record has the key,
//	        or ErrUnsupportedIndex if the index was never given to New.
func (ix *UniqueIndex[R, K]) Get(key K) (R, error) {
	if ix.mu == nil {
		var zero R
		return zero, &IndexError{Index: ix.name, Err: ErrUnsupportedIndex}
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.get(key)
}

func (ix *UniqueIndex[R, K]) get(key K) (R, error) {
	record, ok := ix.entries[key]
	if !ok {
		var zero R
		return zero, &IndexError{Index: ix.name, Key: key, Err: ErrNotFound}
	}
	return record, nil
}

func (ix *UniqueIndex[R, K]) bind(mu *sync.RWMutex) error {
	if ix.mu != nil {
		return fmt.Errorf("%w: index %q already belongs to a store", ErrInvalidIndex, ix.name)
	}
	ix.mu = mu
	return nil
}

func (ix *UniqueIndex[R, K]) validate() error {
	if ix.name == "" {
		return fmt.Errorf("%w: empty index name", ErrInvalidIndex)
	}
	if ix.key == nil {
		return fmt.Errorf("%w: index %q has no key function", ErrInvalidIndex, ix.name)
	}
	return nil
}

// checkBatch reports collisions with stored records and within the batch.
func (ix *UniqueIndex[R, K]) checkBatch(records []R) []error {
	var errs []error
	seen := make(map[K]int, len(records))
	for i, record := range records {
		k := ix.key(record)
		if _, exists := ix.entries[k]; exists {
			errs = append(errs, fmt.Errorf("record[%d]: %w", i,
				&IndexError{Index: ix.name, Key: k, Err: ErrDuplicateKey}))
			continue
		}
		if first, dup := seen[k]; dup {
			errs = append(errs, fmt.Errorf("record[%d]: same key as record[%d]: %w", i, first,
				&IndexError{Index: ix.name, Key: k, Err: ErrDuplicateKey}))
			continue
		}
		seen[k] = i
	}
	return errs
}

func (ix *UniqueIndex[R, K]) insert(record R) {
	ix.entries[ix.key(record)] = record
}

func (ix *UniqueIndex[R, K]) lookupOne(key any) (R, error) {
	k, ok := key.(K)
	if !ok {
		var zero R
		return zero, &IndexError{Index: ix.name, Key: key,
			Err: fmt.Errorf("%w: key type %T, want %T", ErrUnsupportedIndex, key, *new(K))}
	}
	return ix.get(k)
}

func (ix *UniqueIndex[R, K]) lookupList(any) ([]R, error) {
	return nil, &IndexError{Index: ix.name,
		Err: fmt.Errorf("%w: %s index cannot serve list lookups", ErrUnsupportedIndex, KindUnique)}
}

func (ix *UniqueIndex[R, K]) keyCount() int { return len(ix.entries) }

// ListIndex maps keys of type K to every record sharing that key, in
// insertion order. K may be a struct for compound keys.
type ListIndex[R any, K comparable] struct {
	name    string
	key     func(R) K
	mu      *sync.RWMutex
	entries map[K][]R
}

// List declares a list index named name, keyed by key(record).
//
// Example:
//
//	type fixtureTeam struct{ FixtureID, TeamID int }
//	byFixtureTeam := store.List("fixture_id,team_id", func(pf model.PlayerFixture) fixtureTeam {
//	    return fixtureTeam{pf.FixtureID, pf.TeamID}
//	})
func List[R any, K comparable](name string, key func(R) K) *ListIndex[R, K] {
	return &ListIndex[R, K]{
		name:    name,
		key:     key,
		entries: make(map[K][]R),
	}
}

// Name returns the declared index name.
func (ix *ListIndex[R, K]) Name() string { return ix.name }

// Kind returns KindList.
func (ix *ListIndex[R, K]) Kind() Kind { return KindList }

// Get returns a copy of the records stored under key, in insertion order.
// A key with no records yields an empty slice and no error.
func (ix *ListIndex[R, K]) Get(key K) ([]R, error) {
	if ix.mu == nil {
		return nil, &IndexError{Index: ix.name, Err: ErrUnsupportedIndex}
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return copyRecords(ix.entries[key]), nil
}

func (ix *ListIndex[R, K]) bind(mu *sync.RWMutex) error {
	if ix.mu != nil {
		return fmt.Errorf("%w: index %q already belongs to a store", ErrInvalidIndex, ix.name)
	}
	ix.mu = mu
	return nil
}

func (ix *ListIndex[R, K]) validate() error {
	if ix.name == "" {
		return fmt.Errorf("%w: empty index name", ErrInvalidIndex)
	}
	if ix.key == nil {
		return fmt.Errorf("%w: index %q has no key function", ErrInvalidIndex, ix.name)
	}
	return nil
}

func (ix *ListIndex[R, K]) checkBatch([]R) []error { return nil }

func (ix *ListIndex[R, K]) insert(record R) {
	k := ix.key(record)
	ix.entries[k] = append(ix.entries[k], record)
}

func (ix *ListIndex[R, K]) lookupOne(any) (R, error) {
	var zero R
	return zero, &IndexError{Index: ix.name,
		Err: fmt.Errorf("%w: %s index cannot serve single-record lookups", ErrUnsupportedIndex, KindList)}
}

func (ix *ListIndex[R, K]) lookupList(key any) ([]R, error) {
	k, ok := key.(K)
	if !ok {
		return nil, &IndexError{Index: ix.name, Key: key,
			Err: fmt.Errorf("%w: key type %T, want %T", ErrUnsupportedIndex, key, *new(K))}
	}
	return copyRecords(ix.entries[k]), nil
}

func (ix *ListIndex[R, K]) keyCount() int { return len(ix.entries) }

// copyRecords returns a defensive copy; never nil so callers can range or
// append without a nil check.
func copyRecords[R any](src []R) []R {
	out := make([]R, len(src))
	copy(out, src)
	return out
}
