// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import "github.com/colorbrush/paintgraph/internal/classfile"

// ColoredObject is a node's coloring: a mapping from observed runtime
// class to its PaintedColor, plus an optional recursive map of field-path
// colorings (spec.md §3 ColoredObject, §4.3).
type ColoredObject struct {
	classes map[classfile.ClassName]PaintedColor
	fields  map[string]*ColoredObject
}

// NewColoredObject returns an empty coloring.
func NewColoredObject() *ColoredObject {
	return &ColoredObject{}
}

// IsEmpty reports whether no class has ever been painted on this object,
// directly and with no field colorings either — spec.md §8's "all-null
// final coloring" boundary case.
func (o *ColoredObject) IsEmpty() bool {
	if o == nil {
		return true
	}
	return len(o.classes) == 0 && len(o.fields) == 0
}

// Set records pc for class, per the merge_most_dangerous ordering if a
// color is already present (spec.md §4.3 merge operations apply on every
// write, not only at explicit Merge calls, so that repeated brush passes
// converge to the same fixpoint regardless of visitation order).
func (o *ColoredObject) Set(class classfile.ClassName, pc PaintedColor, onIntersection func(source, sink *TraceItem)) {
	if o.classes == nil {
		o.classes = make(map[classfile.ClassName]PaintedColor)
	}
	existing, ok := o.classes[class]
	if !ok {
		o.classes[class] = pc
		return
	}
	o.classes[class] = mergeMostDangerousEntry(existing, pc, onIntersection)
}

// Get returns the PaintedColor observed for class, if any.
func (o *ColoredObject) Get(class classfile.ClassName) (PaintedColor, bool) {
	if o == nil || o.classes == nil {
		return PaintedColor{}, false
	}
	pc, ok := o.classes[class]
	return pc, ok
}

// Classes returns every class currently observed at this node, used by
// Demultiplex for virtual-dispatch refinement (spec.md §4.3).
func (o *ColoredObject) Classes() []classfile.ClassName {
	if o == nil {
		return nil
	}
	out := make([]classfile.ClassName, 0, len(o.classes))
	for c := range o.classes {
		out = append(out, c)
	}
	return out
}

// Field returns the nested coloring at path, creating it if absent
// (spec.md §4.4 ParentAttributesDefinerBrush: "add field-path {F -> color}
// to P's coloring").
func (o *ColoredObject) Field(path string) *ColoredObject {
	if o.fields == nil {
		o.fields = make(map[string]*ColoredObject)
	}
	f, ok := o.fields[path]
	if !ok {
		f = NewColoredObject()
		o.fields[path] = f
	}
	return f
}

// FieldIfPresent returns the nested coloring at path without creating it.
func (o *ColoredObject) FieldIfPresent(path string) (*ColoredObject, bool) {
	if o == nil || o.fields == nil {
		return nil, false
	}
	f, ok := o.fields[path]
	return f, ok
}

// Clone deep-copies the coloring, used when a brush needs a stable
// snapshot to compare "did anything change" against after running.
func (o *ColoredObject) Clone() *ColoredObject {
	if o == nil {
		return nil
	}
	c := &ColoredObject{}
	if len(o.classes) > 0 {
		c.classes = make(map[classfile.ClassName]PaintedColor, len(o.classes))
		for k, v := range o.classes {
			c.classes[k] = v
		}
	}
	if len(o.fields) > 0 {
		c.fields = make(map[string]*ColoredObject, len(o.fields))
		for k, v := range o.fields {
			c.fields[k] = v.Clone()
		}
	}
	return c
}

// MergeLUB merges a and b keeping, per (class, field-path), the color with
// higher confidence; on equal confidence it keeps the tightest ordering
// while preserving both traces (spec.md §4.3 merge_lub).
func MergeLUB(a, b *ColoredObject) *ColoredObject {
	return mergeObjects(a, b, mergeLUBEntry, nil)
}

// MergeMostDangerous merges a and b; when one side is source and the
// other sink at the same key, onIntersection fires once with both traces
// and the more explicitly-declared color is kept (spec.md §4.3
// merge_most_dangerous). Used when joining cached callee results
// (spec.md §4.5 resolve_callee step 3).
func MergeMostDangerous(a, b *ColoredObject, onIntersection func(source, sink *TraceItem)) *ColoredObject {
	return mergeObjects(a, b, func(x, y PaintedColor) PaintedColor {
		return mergeMostDangerousEntry(x, y, onIntersection)
	}, onIntersection)
}

func mergeObjects(a, b *ColoredObject, entryMerge func(x, y PaintedColor) PaintedColor, onIntersection func(source, sink *TraceItem)) *ColoredObject {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := &ColoredObject{}
	if len(a.classes) > 0 || len(b.classes) > 0 {
		out.classes = make(map[classfile.ClassName]PaintedColor, len(a.classes)+len(b.classes))
		for k, v := range a.classes {
			out.classes[k] = v
		}
		for k, v := range b.classes {
			if existing, ok := out.classes[k]; ok {
				out.classes[k] = entryMerge(existing, v)
			} else {
				out.classes[k] = v
			}
		}
	}
	if len(a.fields) > 0 || len(b.fields) > 0 {
		out.fields = make(map[string]*ColoredObject, len(a.fields)+len(b.fields))
		for k, v := range a.fields {
			out.fields[k] = v
		}
		for k, v := range b.fields {
			if existing, ok := out.fields[k]; ok {
				out.fields[k] = mergeObjects(existing, v, entryMerge, onIntersection)
			} else {
				out.fields[k] = v
			}
		}
	}
	return out
}

func mergeLUBEntry(a, b PaintedColor) PaintedColor {
	if a.Color == "" {
		return b
	}
	if b.Color == "" {
		return a
	}
	if a.Color == b.Color {
		return higherConfidenceOrChain(a, b)
	}
	// Mismatched colors inside a plain LUB (not a callee-cache join):
	// keep the more explicit one, breaking ties toward source so a
	// downstream most-dangerous merge still sees it.
	if a.Confidence.higherThan(b.Confidence) {
		return a
	}
	if b.Confidence.higherThan(a.Confidence) {
		return b
	}
	if isSource(a.Color) {
		return a
	}
	return b
}

func mergeMostDangerousEntry(a, b PaintedColor, onIntersection func(source, sink *TraceItem)) PaintedColor {
	if a.Color == "" {
		return b
	}
	if b.Color == "" {
		return a
	}
	if a.Color == b.Color {
		return higherConfidenceOrChain(a, b)
	}

	switch {
	case isSource(a.Color) && isSink(b.Color):
		if onIntersection != nil {
			onIntersection(a.Trace, b.Trace)
		}
	case isSink(a.Color) && isSource(b.Color):
		if onIntersection != nil {
			onIntersection(b.Trace, a.Trace)
		}
	}

	if a.Confidence.higherThan(b.Confidence) {
		return a
	}
	if b.Confidence.higherThan(a.Confidence) {
		return b
	}
	return a
}

func higherConfidenceOrChain(a, b PaintedColor) PaintedColor {
	if a.Confidence.higherThan(b.Confidence) {
		return a
	}
	if b.Confidence.higherThan(a.Confidence) {
		return b
	}
	trace := a.Trace
	if b.Trace != nil {
		trace = b.Trace.Chain(a.Trace.Describe())
	}
	return PaintedColor{Color: a.Color, Confidence: a.Confidence, Trace: trace}
}

// Demultiplex invokes fn once per combination of "single class per input"
// drawn from each input's observed-class set (spec.md §4.3 "Demultiplex").
// Inputs with no observed classes contribute a single empty-class slot so
// the combination still fires once for an unrefined receiver.
func Demultiplex(inputs []*ColoredObject, fn func(classes []classfile.ClassName)) {
	if len(inputs) == 0 {
		fn(nil)
		return
	}
	options := make([][]classfile.ClassName, len(inputs))
	for i, in := range inputs {
		classes := in.Classes()
		if len(classes) == 0 {
			classes = []classfile.ClassName{""}
		}
		options[i] = classes
	}
	combo := make([]classfile.ClassName, len(inputs))
	var recurse func(i int)
	recurse = func(i int) {
		if i == len(options) {
			out := make([]classfile.ClassName, len(combo))
			copy(out, combo)
			fn(out)
			return
		}
		for _, c := range options[i] {
			combo[i] = c
			recurse(i + 1)
		}
	}
	recurse(0)
}
