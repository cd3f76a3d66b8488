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
	"sync"
)

// Group tracks the nodes of one graph for diagnostics and global resets.
//
// Thread Safety:
//
//	Group is safe for concurrent use.
type Group struct {
	mu    sync.RWMutex
	nodes []Cache
	names map[string]struct{}
}

// NewGroup returns an empty group.
func NewGroup() *Group {
	return &Group{names: make(map[string]struct{})}
}

// Register adds nodes to the group. Node names must be unique within it.
func (g *Group) Register(nodes ...Cache) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, n := range nodes {
		if _, exists := g.names[n.Name()]; exists {
			return fmt.Errorf("memo: node %q registered twice", n.Name())
		}
		g.names[n.Name()] = struct{}{}
		g.nodes = append(g.nodes, n)
	}
	return nil
}

// ClearAll clears every registered node.
func (g *Group) ClearAll() {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		n.Clear()
	}
}

// Sizes returns the cache size of every node by name.
func (g *Group) Sizes() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		out[n.Name()] = n.Len()
	}
	return out
}

// Stats returns per-node statistics in registration order.
func (g *Group) Stats() []Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Stats, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n.Stats())
	}
	return out
}
