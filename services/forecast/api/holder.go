// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api serves the forecast pipeline over HTTP.
//
// Routes live under /v1/forecast. Every request reads the pipeline of the
// current Generation, which a Reloader replaces when the snapshots on
// disk change. In-flight requests finish on the generation they started
// with.
package api

import (
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianFPL/services/forecast/pipeline"
)

// Generation is one loaded pipeline.
type Generation struct {
	Pipeline *pipeline.Pipeline
	LoadedAt time.Time
	Number   uint64
}

// Holder publishes the current generation.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Holder struct {
	current atomic.Pointer[Generation]
	count   atomic.Uint64
}

// NewHolder returns a holder serving p as generation 1.
func NewHolder(p *pipeline.Pipeline) *Holder {
	h := &Holder{}
	h.Swap(p)
	return h
}

// Current returns the generation being served.
func (h *Holder) Current() *Generation {
	return h.current.Load()
}

// Swap publishes p as the next generation and returns it.
func (h *Holder) Swap(p *pipeline.Pipeline) *Generation {
	g := &Generation{Pipeline: p, LoadedAt: time.Now(), Number: h.count.Add(1)}
	h.current.Store(g)
	return g
}
