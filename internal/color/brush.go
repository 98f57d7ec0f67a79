// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/dataflow"
)

var tracer = otel.Tracer("github.com/colorbrush/paintgraph/internal/color")

// maxBrushIterations bounds the brush fixpoint loop (spec.md §4.4: "Run
// brushes to a fixpoint, capped"). A single-method graph has a finite
// number of nodes and colors can only move up the (neutral, inferred,
// explicit) lattice per node, so this is generous headroom rather than a
// tight bound.
const maxBrushIterations = 64

// Brush applies one rule to one node: it reads the current colorings of
// the node's inputs and writes into the node's (or a field's) coloring,
// reporting changed=true only if some color or confidence moved this
// pass (spec.md §4.4 "Brush functions").
type Brush func(gc *GraphColorer, node *dataflow.DataNode) (changed bool, err error)

// ResolveCalleeFunc looks up (or schedules) a callee's result coloring
// given the colorings of its actual arguments. It is injected rather than
// imported so this package never depends on internal/paint, which is the
// one that owns interprocedural scheduling (spec.md §4.5; dependency
// inversion keeps L2 from importing L3).
type ResolveCalleeFunc func(ctx context.Context, callee classfile.MethodRef, virtual bool, argColorings []*ColoredObject) (resultColoring *ColoredObject, fieldEffects map[classfile.FieldRef]*ColoredObject, ready bool, err error)

// OnIntersectionFunc is invoked every time a source and a sink color meet
// in one merge on the same node, so a later pass can report the same pair
// again (spec.md §3 "source∧sink at same node
// triggers an intersection event").
type OnIntersectionFunc func(node *dataflow.DataNode, source, sink *TraceItem)

// GraphColorer runs the brush set to a fixpoint over one MethodDataGraph
// (spec.md §4.4 GraphColorer).
type GraphColorer struct {
	Graph    *dataflow.MethodDataGraph
	Provider classfile.RuleProvider

	resolveCallee  ResolveCalleeFunc
	onIntersection OnIntersectionFunc

	coloring map[*dataflow.DataNode]*ColoredObject
	fields   map[classfile.FieldRef]*ColoredObject
	brushes  []namedBrush

	invocationIndex  map[*dataflow.DataNode]*dataflow.Invocation
	putFieldsByValue map[*dataflow.DataNode][]*dataflow.PutFieldAccess
	paramIndex       map[*dataflow.DataNode]int

	ctx           context.Context
	maxIterations int
}

type namedBrush struct {
	name  string
	brush Brush
}

// NewGraphColorer builds a colorer with the standard brush set registered
// in the order spec.md §4.4 lists them.
func NewGraphColorer(graph *dataflow.MethodDataGraph, provider classfile.RuleProvider, resolveCallee ResolveCalleeFunc, onIntersection OnIntersectionFunc) *GraphColorer {
	gc := &GraphColorer{
		Graph:          graph,
		Provider:       provider,
		resolveCallee:  resolveCallee,
		onIntersection: onIntersection,
		coloring:       make(map[*dataflow.DataNode]*ColoredObject),
		fields:         make(map[classfile.FieldRef]*ColoredObject),
		maxIterations:  maxBrushIterations,
	}
	gc.brushes = []namedBrush{
		{"method_parameter_implicit_colorer", MethodParameterImplicitColorer},
		{"invocations_implicit_colorer", InvocationsImplicitColorer},
		{"composition_node_brush", CompositionNodeBrush},
		{"copier_brush", CopierBrush},
		{"parent_attributes_definer_brush", ParentAttributesDefinerBrush},
		{"invocations_brush", InvocationsBrush},
		{"invoke_dynamic_brush", InvokeDynamicBrush},
	}
	return gc
}

// WithMaxIterations overrides the brush fixpoint's iteration cap (default
// maxBrushIterations), letting a painting session apply
// config.Config.BrushIterationCap per spec.md §7 IterationCapExceeded.
func (gc *GraphColorer) WithMaxIterations(n int) *GraphColorer {
	if n > 0 {
		gc.maxIterations = n
	}
	return gc
}

// Color runs every registered brush over every node in the graph until no
// brush reports a change, or the iteration cap is exceeded (spec.md §4.4,
// §7 IterationCapExceeded).
func (gc *GraphColorer) Color(ctx context.Context) (map[*dataflow.DataNode]*ColoredObject, error) {
	ctx, span := tracer.Start(ctx, "color.GraphColorer.Color",
		trace.WithAttributes(attribute.String("method", gc.Graph.Method.String())))
	defer span.End()
	gc.ctx = ctx

	for iter := 0; iter < gc.maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		changedThisPass := false
		// Parameter and merge nodes belong to no block's Nodes, so they are
		// visited as groups of their own ahead of the blocks.
		groups := [][]*dataflow.DataNode{gc.Graph.Params, gc.Graph.MergeNodes}
		for _, block := range gc.Graph.Blocks {
			groups = append(groups, block.Nodes)
		}
		for _, group := range groups {
			for _, node := range group {
				for _, nb := range gc.brushes {
					changed, err := nb.brush(gc, node)
					if err != nil {
						span.RecordError(err)
						span.SetStatus(codes.Error, err.Error())
						return nil, fmt.Errorf("color: brush %s on %s: %w", nb.name, node, err)
					}
					changedThisPass = changedThisPass || changed
				}
			}
		}
		if !changedThisPass {
			span.SetAttributes(attribute.Int("iterations", iter+1))
			return gc.coloring, nil
		}
	}
	err := fmt.Errorf("%w: method %s after %d iterations", ErrIterationCapExceeded, gc.Graph.Method, gc.maxIterations)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

// SeedParam merges co into the coloring already recorded for Params[i],
// used by a painting session to push a call site's actual-argument
// coloring into the callee graph before running brushes (spec.md §4.5
// resolve_callee: "push argument colorings into the callee's parameter
// nodes").
func (gc *GraphColorer) SeedParam(i int, co *ColoredObject) {
	if i < 0 || i >= len(gc.Graph.Params) || co == nil {
		return
	}
	node := gc.Graph.Params[i]
	existing := gc.ColoringOf(node)
	merged := MergeMostDangerous(existing, co, gc.fireIntersection(node))
	gc.coloring[node] = merged
}

// SeedField merges co into the coloring accumulated for field ref before
// the brush fixpoint begins, letting a painting session carry a field's
// cross-method coloring into every graph that reads it (spec.md §4.3
// ColoredObject is scoped per field across the whole analysis, not per
// method).
func (gc *GraphColorer) SeedField(ref classfile.FieldRef, co *ColoredObject) {
	if co == nil {
		return
	}
	existing := gc.FieldColoring(ref)
	gc.fields[ref] = MergeMostDangerous(existing, co, func(source, sink *TraceItem) {
		if gc.onIntersection != nil {
			gc.onIntersection(nil, source, sink)
		}
	})
}

// ColoringOf returns the current coloring for node, creating an empty one
// on first access so brushes can unconditionally Set on it.
func (gc *GraphColorer) ColoringOf(node *dataflow.DataNode) *ColoredObject {
	if node == nil {
		return nil
	}
	co, ok := gc.coloring[node]
	if !ok {
		co = NewColoredObject()
		gc.coloring[node] = co
	}
	return co
}

// FieldColoring returns the coloring accumulated for a static/instance
// field across the whole graph, used by PutField/GetField-aware brushes.
func (gc *GraphColorer) FieldColoring(ref classfile.FieldRef) *ColoredObject {
	co, ok := gc.fields[ref]
	if !ok {
		co = NewColoredObject()
		gc.fields[ref] = co
	}
	return co
}

// FieldColorings returns every field coloring this run accumulated, for a
// painting session to fold into a method's side-effect summary (spec.md
// §4.5 PaintingTask result).
func (gc *GraphColorer) FieldColorings() map[classfile.FieldRef]*ColoredObject {
	return gc.fields
}

func (gc *GraphColorer) fireIntersection(node *dataflow.DataNode) func(source, sink *TraceItem) {
	return func(source, sink *TraceItem) {
		if gc.onIntersection != nil {
			gc.onIntersection(node, source, sink)
		}
	}
}

// setColor applies pc to node's coloring under class, reporting whether
// the entry's color or confidence changed so the fixpoint driver can
// detect convergence; a new trace alone is not a change.
func (gc *GraphColorer) setColor(node *dataflow.DataNode, class classfile.ClassName, pc PaintedColor) bool {
	co := gc.ColoringOf(node)
	before, hadBefore := co.Get(class)
	co.Set(class, pc, gc.fireIntersection(node))
	after, _ := co.Get(class)
	if !hadBefore {
		return true
	}
	return before.Color != after.Color || before.Confidence != after.Confidence
}
