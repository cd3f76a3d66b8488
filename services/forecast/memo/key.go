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
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Key is the canonical, comparable form of a parameter set.
//
// Keys read as "name=type:value" pairs joined by ";" with names in sorted
// order, for example `next_gameweek=i:5;target_gameweeks=li:[5,6]`.
type Key string

// String returns the key text.
func (k Key) String() string {
	return string(k)
}

// Params is implemented by every node parameter struct.
//
// CacheKey must include every field, including fields that were filled
// from defaults, so that two value-equal parameter sets produce the same
// key. Implementations normally delegate to a KeyBuilder.
type Params interface {
	CacheKey() (Key, error)
}

// KeyBuilder assembles a Key field by field.
//
// Description:
//
//	Field order does not matter: fields are sorted by name when the key is
//	built. The first invalid field is remembered and returned by Build, so
//	calls can be chained without intermediate error checks.
//
// Example:
//
//	func (p PredictParams) CacheKey() (memo.Key, error) {
//	    return memo.NewKey().
//	        Int("next_gameweek", p.NextGameweek).
//	        Ints("target_gameweeks", p.TargetGameweeks).
//	        Build()
//	}
type KeyBuilder struct {
	fields map[string]string
	err    error
}

// NewKey returns an empty KeyBuilder.
func NewKey() *KeyBuilder {
	return &KeyBuilder{fields: make(map[string]string)}
}

// Int adds an integer field.
func (b *KeyBuilder) Int(name string, v int) *KeyBuilder {
	return b.set(name, "i:"+strconv.Itoa(v))
}

// String adds a string field. The value is quoted, so any content is safe.
func (b *KeyBuilder) String(name, v string) *KeyBuilder {
	return b.set(name, "s:"+strconv.Quote(v))
}

// Bool adds a boolean field.
func (b *KeyBuilder) Bool(name string, v bool) *KeyBuilder {
	return b.set(name, "b:"+strconv.FormatBool(v))
}

// Float adds a float field. NaN and infinities have no stable equality and
// are rejected; negative zero is folded into zero.
func (b *KeyBuilder) Float(name string, v float64) *KeyBuilder {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		b.fail(&CacheKeyError{Field: name, Reason: fmt.Sprintf("non-finite float %v", v)})
		return b
	}
	if v == 0 {
		v = 0
	}
	return b.set(name, "f:"+strconv.FormatFloat(v, 'g', -1, 64))
}

// Ints adds an ordered integer sequence. Order is part of the key: [5,6]
// and [6,5] are different keys. A nil and an empty slice are equal.
func (b *KeyBuilder) Ints(name string, v []int) *KeyBuilder {
	return b.set(name, "li:"+joinInts(v))
}

// SortedInts adds an integer collection whose order is not significant.
// The values are sorted on a copy before encoding.
func (b *KeyBuilder) SortedInts(name string, v []int) *KeyBuilder {
	sorted := slices.Clone(v)
	slices.Sort(sorted)
	return b.set(name, "si:"+joinInts(sorted))
}

// Value adds a field of dynamic type.
//
// Supported types are int, int64, string, bool, float64 and []int (kept in
// order). Anything else, maps in particular, has no canonical form and
// makes Build fail with a *CacheKeyError.
func (b *KeyBuilder) Value(name string, v any) *KeyBuilder {
	switch x := v.(type) {
	case int:
		return b.Int(name, x)
	case int64:
		return b.set(name, "i:"+strconv.FormatInt(x, 10))
	case string:
		return b.String(name, x)
	case bool:
		return b.Bool(name, x)
	case float64:
		return b.Float(name, x)
	case []int:
		return b.Ints(name, x)
	default:
		b.fail(&CacheKeyError{Field: name, Reason: fmt.Sprintf("unsupported type %T", v)})
		return b
	}
}

// Build returns the canonical key, or the first error recorded while adding
// fields.
func (b *KeyBuilder) Build() (Key, error) {
	if b.err != nil {
		return "", b.err
	}
	names := make([]string, 0, len(b.fields))
	for name := range b.fields {
		names = append(names, name)
	}
	slices.Sort(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(b.fields[name])
	}
	return Key(sb.String()), nil
}

func (b *KeyBuilder) set(name, encoded string) *KeyBuilder {
	if b.err != nil {
		return b
	}
	if !validFieldName(name) {
		b.fail(&CacheKeyError{Field: name, Reason: "field name must match [a-z0-9_]+"})
		return b
	}
	if _, exists := b.fields[name]; exists {
		b.fail(&CacheKeyError{Field: name, Reason: "field set twice"})
		return b
	}
	b.fields[name] = encoded
	return b
}

func (b *KeyBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// validFieldName keeps the separators "=" and ";" out of names so the
// encoding stays unambiguous.
func validFieldName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
