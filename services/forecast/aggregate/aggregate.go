// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package aggregate provides running totals and weighted averages.
package aggregate

import (
	"fmt"
	"math"
)

// MaxSampleWeight caps the sample count used by SqrtWeightedAverage: one
// season of fixtures.
const MaxSampleWeight = 38.0

// Aggregate is a total over a (possibly fractional) number of samples.
type Aggregate struct {
	Total float64 `json:"total"`
	Count float64 `json:"count"`
}

// New returns an Aggregate.
func New(total, count float64) Aggregate {
	return Aggregate{Total: total, Count: count}
}

// P returns the mean, 0 for an empty aggregate.
func (a Aggregate) P() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Total / a.Count
}

// Add returns the sum of two aggregates.
func (a Aggregate) Add(b Aggregate) Aggregate {
	return Aggregate{Total: a.Total + b.Total, Count: a.Count + b.Count}
}

// Scale multiplies total and count by s, leaving P unchanged.
func (a Aggregate) Scale(s float64) Aggregate {
	return Aggregate{Total: a.Total * s, Count: a.Count * s}
}

// String formats the aggregate as "p (total / count)".
func (a Aggregate) String() string {
	return fmt.Sprintf("%.2f (%g / %g)", a.P(), a.Total, a.Count)
}

// Sum adds up aggregates.
func Sum(items ...Aggregate) Aggregate {
	var out Aggregate
	for _, a := range items {
		out = out.Add(a)
	}
	return out
}

// Weighted pairs an aggregate with its weight.
type Weighted struct {
	Aggregate Aggregate
	Weight    float64
}

// W is shorthand for a Weighted value.
func W(a Aggregate, weight float64) Weighted {
	return Weighted{Aggregate: a, Weight: weight}
}

// WeightedAverage averages totals and counts by weight. A zero weight sum
// yields an empty aggregate.
func WeightedAverage(items ...Weighted) Aggregate {
	var total, count, weights float64
	for _, it := range items {
		total += it.Aggregate.Total * it.Weight
		count += it.Aggregate.Count * it.Weight
		weights += it.Weight
	}
	if weights == 0 {
		return Aggregate{}
	}
	return Aggregate{Total: total / weights, Count: count / weights}
}

// SqrtWeightedAverage weights each aggregate by sqrt(1 + min(38, count)),
// so larger samples count more with diminishing returns.
func SqrtWeightedAverage(items ...Aggregate) Aggregate {
	weighted := make([]Weighted, len(items))
	for i, a := range items {
		weighted[i] = W(a, math.Sqrt(1+math.Min(MaxSampleWeight, a.Count)))
	}
	return WeightedAverage(weighted...)
}
