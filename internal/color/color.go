// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import "github.com/colorbrush/paintgraph/internal/classfile"

// Confidence distinguishes a rule-declared color from a brush-inferred one
// (spec.md §3 PaintedColor).
type Confidence uint8

const (
	// Inferred colors come from composition/copy/invocation brushes.
	Inferred Confidence = iota
	// Explicitly colors come from the rule/data provider.
	Explicitly
)

func (c Confidence) String() string {
	if c == Explicitly {
		return "EXPLICITLY"
	}
	return "INFERRED"
}

// higherThan reports whether c outranks other (EXPLICITLY > INFERRED).
func (c Confidence) higherThan(other Confidence) bool {
	return c == Explicitly && other != Explicitly
}

// PaintedColor is a (color, confidence, trace) triple (spec.md §3). The
// color taxonomy is open-ended: classfile.Color is a string, and
// SourceData/SinkTarget are just the two values this engine currently
// cares about.
type PaintedColor struct {
	Color      classfile.Color
	Confidence Confidence
	Trace      *TraceItem
}

// isSource and isSink classify colors for merge_most_dangerous: source and sink both
// outrank a neutral/absent color, and are incomparable to each other
// (their co-occurrence at one node is the intersection event itself,
// spec.md §3 "source∧sink at same node triggers an intersection event").
func isSource(c classfile.Color) bool { return c == classfile.ColorSourceData }
func isSink(c classfile.Color) bool   { return c == classfile.ColorSinkTarget }
