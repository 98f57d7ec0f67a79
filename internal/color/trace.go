// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package color implements L2: the color model, ColoredObject merges, and
// the brush/GraphColorer fixpoint described in spec.md §4.3-4.4.
package color

import "fmt"

// TraceItem is a link in the provenance chain from a source or to a sink
// (spec.md §3 TraceItem, Glossary). It is intentionally opaque to callers
// outside this package beyond Describe/Previous, as spec.md requires.
type TraceItem struct {
	description string
	previous    *TraceItem
}

// NewTraceItem creates a root trace link with no predecessor.
func NewTraceItem(description string) *TraceItem {
	return &TraceItem{description: description}
}

// Chain creates a trace link that extends prev, used whenever a colored
// value flows through a composing/copying/invoking node (spec.md §4.4
// brushes build up a TraceItem chain as colors propagate).
func (t *TraceItem) Chain(description string) *TraceItem {
	return &TraceItem{description: description, previous: t}
}

// Describe returns a human-readable description of this link.
func (t *TraceItem) Describe() string {
	if t == nil {
		return "<no trace>"
	}
	return t.description
}

// Previous returns the prior link in the chain, or nil at the root.
func (t *TraceItem) Previous() *TraceItem {
	if t == nil {
		return nil
	}
	return t.previous
}

// String renders the full chain root-to-here, for diagnostics and the
// intersection report in cmd/paintgraph.
func (t *TraceItem) String() string {
	if t == nil {
		return "<no trace>"
	}
	if t.previous == nil {
		return t.description
	}
	return fmt.Sprintf("%s -> %s", t.previous.String(), t.description)
}
