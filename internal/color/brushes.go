// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import (
	"context"

	"github.com/colorbrush/paintgraph/internal/dataflow"
)

// invocationOf returns the Invocation record associated with a result
// node, building the lookup lazily and caching it on first use. Indexing
// by node keeps brushes signature-compatible (one node in, changed/err
// out) without CompositionNodeBrush or InvocationsBrush needing to walk
// every block themselves.
func (gc *GraphColorer) invocationOf(node *dataflow.DataNode) *dataflow.Invocation {
	if gc.invocationIndex == nil {
		gc.buildInvocationIndex()
	}
	return gc.invocationIndex[node]
}

func (gc *GraphColorer) buildInvocationIndex() {
	gc.invocationIndex = make(map[*dataflow.DataNode]*dataflow.Invocation)
	gc.putFieldsByValue = make(map[*dataflow.DataNode][]*dataflow.PutFieldAccess)
	for _, block := range gc.Graph.Blocks {
		for _, inv := range block.Invocations {
			if inv.Result != nil {
				gc.invocationIndex[inv.Result] = inv
			}
		}
		for _, pf := range block.PutFields {
			gc.putFieldsByValue[pf.Value] = append(gc.putFieldsByValue[pf.Value], pf)
		}
	}
}

func (gc *GraphColorer) paramIndexOf(node *dataflow.DataNode) (int, bool) {
	if gc.paramIndex == nil {
		gc.paramIndex = make(map[*dataflow.DataNode]int, len(gc.Graph.Params))
		for i, p := range gc.Graph.Params {
			gc.paramIndex[p] = i
		}
	}
	idx, ok := gc.paramIndex[node]
	return idx, ok
}

// MethodParameterImplicitColorer paints a method's own formal parameters
// from the RuleProvider, if the provider declares a rule for this method
// (spec.md §4.4: "seed parameter nodes from the RuleProvider").
func MethodParameterImplicitColorer(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	if node.Op != dataflow.OpParameter || gc.Provider == nil {
		return false, nil
	}
	idx, ok := gc.paramIndexOf(node)
	if !ok {
		return false, nil
	}
	rule, ok := gc.Provider.MethodRules(gc.Graph.Method.Class, gc.Graph.Method.Name, gc.Graph.Method.Descriptor)
	if !ok || idx >= len(rule.ParamColors) || rule.ParamColors[idx] == nil {
		return false, nil
	}
	// Parameters carry no observed runtime class yet; key the rule color
	// under the declared static type's class name so Get/Classes still
	// see it.
	return gc.setColor(node, node.Type.Class, PaintedColor{
		Color:      *rule.ParamColors[idx],
		Confidence: Explicitly,
		Trace:      NewTraceItem("parameter " + node.String() + " declared " + string(*rule.ParamColors[idx])),
	}), nil
}

// InvocationsImplicitColorer paints an invocation's result node from the
// callee's RuleProvider entry, when one is declared, independent of
// whatever internal/paint later computes by running the callee (spec.md
// §4.4 "seed call-site results from declared rules before falling back to
// interprocedural resolution").
func InvocationsImplicitColorer(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	if node.Op != dataflow.OpInvocationResult || gc.Provider == nil {
		return false, nil
	}
	inv := gc.invocationOf(node)
	if inv == nil {
		return false, nil
	}
	rule, ok := gc.Provider.MethodRules(inv.Target.Class, inv.Target.Name, inv.Target.Descriptor)
	if !ok || rule.ResultColor == nil {
		return false, nil
	}
	return gc.setColor(node, node.Type.Class, PaintedColor{
		Color:      *rule.ResultColor,
		Confidence: Explicitly,
		Trace:      NewTraceItem("result of declared-source/sink call " + inv.Target.String()),
	}), nil
}

// CompositionNodeBrush propagates the LUB of a node's inputs onto the
// node itself, covering arithmetic results, merge nodes, array
// allocations, and field reads (spec.md §4.4: "a composition node's color
// is the join of its operand colors").
func CompositionNodeBrush(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	switch node.Op {
	case dataflow.OpArithmetic, dataflow.OpMerge, dataflow.OpNewArray, dataflow.OpIinc:
		return gc.propagateUnion(node, node.Inputs, "composed at "+node.String())
	case dataflow.OpGetField, dataflow.OpGetStatic:
		if node.Field == nil {
			return false, nil
		}
		changed := false
		fieldColoring := gc.FieldColoring(*node.Field)
		for _, class := range fieldColoring.Classes() {
			pc, _ := fieldColoring.Get(class)
			changed = gc.setColor(node, class, PaintedColor{
				Color:      pc.Color,
				Confidence: pc.Confidence,
				Trace:      pc.Trace.Chain("read from field " + node.Field.String()),
			}) || changed
		}
		if gc.Provider != nil {
			if rule, ok := gc.Provider.FieldRules(node.Field.Class, node.Field.Name); ok {
				changed = gc.setColor(node, node.Type.Class, PaintedColor{
					Color:      rule,
					Confidence: Explicitly,
					Trace:      NewTraceItem("field " + node.Field.String() + " declared " + string(rule)),
				}) || changed
			}
		}
		return changed, nil
	default:
		return false, nil
	}
}

// CopierBrush propagates a single input's coloring unchanged onto an
// identity node (DUP, CHECKCAST, widening) without downgrading confidence
// or extending the trace, since no taint-relevant transformation happened
// (spec.md §4.4 "copy nodes are transparent to color").
func CopierBrush(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	if node.Op != dataflow.OpCopy || len(node.Inputs) == 0 {
		return false, nil
	}
	src := node.Inputs[0]
	if src == nil {
		return false, nil
	}
	srcColoring := gc.ColoringOf(src)
	changed := false
	for _, class := range srcColoring.Classes() {
		pc, _ := srcColoring.Get(class)
		changed = gc.setColor(node, class, pc) || changed
	}
	return changed, nil
}

// ParentAttributesDefinerBrush records a PUTFIELD/PUTSTATIC's value
// coloring against the field's graph-wide accumulated coloring, and — for
// instance fields — against the receiver's own field-path coloring, so a
// later GETFIELD on that same receiver (or field, flow-insensitively)
// observes it (spec.md §4.4 ParentAttributesDefinerBrush).
func ParentAttributesDefinerBrush(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	pfs := gc.putFieldsByValue[node]
	if len(pfs) == 0 {
		return false, nil
	}
	valueColoring := gc.ColoringOf(node)
	changed := false
	for _, pf := range pfs {
		fieldColoring := gc.FieldColoring(pf.Field)
		for _, class := range valueColoring.Classes() {
			pc, _ := valueColoring.Get(class)
			chained := PaintedColor{
				Color:      pc.Color,
				Confidence: pc.Confidence,
				Trace:      pc.Trace.Chain("written to field " + pf.Field.String()),
			}
			before, had := fieldColoring.Get(class)
			fieldColoring.Set(class, chained, gc.fireIntersection(node))
			after, _ := fieldColoring.Get(class)
			changed = changed || !had || before.Color != after.Color || before.Confidence != after.Confidence
			if !pf.Static && pf.Receiver != nil {
				recv := gc.ColoringOf(pf.Receiver).Field(pf.Field.Name)
				rBefore, rHad := recv.Get(class)
				recv.Set(class, chained, gc.fireIntersection(pf.Receiver))
				rAfter, _ := recv.Get(class)
				changed = changed || !rHad || rBefore.Color != rAfter.Color || rBefore.Confidence != rAfter.Confidence
			}
		}
	}
	return changed, nil
}

// InvocationsBrush hands a call's argument colorings to the injected
// ResolveCalleeFunc (which may queue interprocedural work and answer
// ready=false), folds the callee's field effects into the graph-wide field
// colorings, and once the callee is ready copies its result coloring onto
// the call's result node with the trace chained. It runs whether or not
// the RuleProvider has a rule for the callee. It is keyed on the result
// node, so a call to a void method, which has none, is not visited.
func InvocationsBrush(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	if node.Op != dataflow.OpInvocationResult {
		return false, nil
	}
	inv := gc.invocationOf(node)
	if inv == nil || gc.resolveCallee == nil {
		return false, nil
	}
	argColorings := make([]*ColoredObject, len(inv.Params))
	for i, p := range inv.Params {
		argColorings[i] = gc.ColoringOf(p)
	}

	ctx := gc.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	resultColoring, fieldEffects, ready, err := gc.resolveCallee(ctx, inv.Target, inv.Virtual, argColorings)
	if err != nil {
		return false, err
	}
	changed := false
	for field, fc := range fieldEffects {
		dst := gc.FieldColoring(field)
		for _, class := range fc.Classes() {
			pc, _ := fc.Get(class)
			dst.Set(class, pc, gc.fireIntersection(node))
		}
	}
	if !ready || resultColoring == nil {
		return changed, nil
	}
	for _, class := range resultColoring.Classes() {
		pc, _ := resultColoring.Get(class)
		changed = gc.setColor(node, class, PaintedColor{
			Color:      pc.Color,
			Confidence: pc.Confidence,
			Trace:      pc.Trace.Chain("returned from " + inv.Target.String()),
		}) || changed
	}
	return changed, nil
}

// InvokeDynamicBrush treats an invokedynamic call site's bootstrap target
// as opaque (spec.md §1 Non-goals excludes bootstrap-method modeling):
// the result is conservatively colored as the union of every captured
// argument's coloring, downgraded to inferred confidence, rather than
// left uncolored.
func InvokeDynamicBrush(gc *GraphColorer, node *dataflow.DataNode) (bool, error) {
	if node.Op != dataflow.OpInvocationResult {
		return false, nil
	}
	inv := gc.invocationOf(node)
	if inv == nil || inv.Target.Class != "" {
		return false, nil // ordinary, resolvable call site
	}
	return gc.propagateUnion(node, inv.Params, "captured by invokedynamic site")
}

func (gc *GraphColorer) propagateUnion(node *dataflow.DataNode, inputs []*dataflow.DataNode, traceLabel string) (bool, error) {
	changed := false
	for _, in := range inputs {
		if in == nil {
			continue
		}
		inColoring := gc.ColoringOf(in)
		for _, class := range inColoring.Classes() {
			pc, _ := inColoring.Get(class)
			changed = gc.setColor(node, class, PaintedColor{
				Color:      pc.Color,
				Confidence: Inferred,
				Trace:      pc.Trace.Chain(traceLabel),
			}) || changed
		}
	}
	return changed, nil
}
