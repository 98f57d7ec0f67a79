// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataflow

import (
	"context"
	"fmt"

	"github.com/colorbrush/paintgraph/internal/classfile"
)

// MethodDataGraph is the union of a method's BlockDataGraphs plus merge
// nodes connecting them (spec.md §3 MethodDataGraph).
type MethodDataGraph struct {
	Method MethodRefView

	Blocks map[int]*BlockDataGraph

	// Params are the method's formal-ish boundary nodes: receiver first
	// for non-static methods, then declared parameters in order.
	// Category-2 formals occupy one slot (spec.md §4.2).
	Params []*DataNode

	// Results collects every block's return node that is non-nil,
	// deduplicated by identity. Void methods produce an empty slice
	// (spec.md §8 "Boundary behaviors").
	Results []*DataNode

	// MergeNodes collects every synthesized MergeNode, in creation order,
	// for diagnostics (e.g. DOT export) and the "number of inputs equals
	// predecessor count" testable property (spec.md §8).
	MergeNodes []*DataNode

	// mergeCache memoizes MergeNodes by (block, slot) so repeated
	// stitching passes over the same join mutate one node's Inputs in
	// place rather than allocating a fresh node each iteration — the
	// node-identity monotonicity spec.md §4.2 relies on for fixpoint
	// termination ("once merged, stays merged").
	mergeCache map[int]map[slotKey]*DataNode
}

// MethodRefView is a thin alias kept local to dataflow so this package
// does not need to re-export classfile.MethodRef everywhere it is used as
// a map/graph key.
type MethodRefView = classfile.MethodRef

// slotState is one block's entry or exit (locals, stack) snapshot used
// during stitching (spec.md §4.2).
type slotState struct {
	Locals []*DataNode
	Stack  []*DataNode
}

// BuildMethodGraph runs phase (a) per-block symbolic execution and phase
// (b) inter-block stitching, producing one MethodDataGraph (spec.md §4.2
// "Stitching must reach a fixpoint over the CFG").
func BuildMethodGraph(
	ctx context.Context,
	resolver classfile.ClassResolver,
	body *classfile.MethodBody,
	isStatic bool,
) (*MethodDataGraph, error) {
	if len(body.Instructions) == 0 {
		return nil, classfile.ErrEmptyMethod
	}

	params, err := seedParameters(body.Ref, isStatic)
	if err != nil {
		return nil, err
	}

	g := &MethodDataGraph{
		Method:     body.Ref,
		Blocks:     make(map[int]*BlockDataGraph, len(body.Blocks)),
		Params:     params,
		mergeCache: make(map[int]map[slotKey]*DataNode),
	}

	byID := make(map[int]*classfile.BasicBlock, len(body.Blocks))
	for _, b := range body.Blocks {
		byID[b.ID] = b
	}

	entryState := make(map[int]slotState, len(body.Blocks))
	exitState := make(map[int]slotState, len(body.Blocks))

	// Seed the method's entry block (spec.md §4.2: "starts with locals
	// seeded from the formal parameters... and an empty stack").
	for _, b := range body.Blocks {
		if b.IsEntry {
			entryState[b.ID] = slotState{Locals: localsFromParams(params), Stack: nil}
		}
	}

	// Worklist over blocks until entry states stabilize (spec.md §4.2
	// "A standard approach: worklist over blocks until entry states
	// stabilize. Termination is guaranteed because abstract types form a
	// finite-height lattice and node identity is monotone").
	pending := make([]int, 0, len(body.Blocks))
	for _, b := range body.Blocks {
		pending = append(pending, b.ID)
	}
	inQueue := make(map[int]bool, len(body.Blocks))
	for _, id := range pending {
		inQueue[id] = true
	}

	guard := 0
	maxIterations := len(body.Blocks)*len(body.Blocks) + 16
	for len(pending) > 0 {
		guard++
		if guard > maxIterations {
			return nil, fmt.Errorf("%w: stitching did not converge for %s", ErrAssertionFailed, body.Ref)
		}
		id := pending[0]
		pending = pending[1:]
		inQueue[id] = false

		block := byID[id]
		in, ready := computeEntryState(resolver, body.Ref.String(), g, block, entryState, exitState)
		if !ready {
			continue
		}
		entryState[id] = in

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bg, err := InterpretBlock(ctx, resolver, body, block, in.Locals, in.Stack)
		if err != nil {
			return nil, err
		}
		g.Blocks[id] = bg

		newOut := slotState{Locals: bg.OutLocals, Stack: bg.OutStack}
		prevOut, had := exitState[id]
		exitState[id] = newOut
		if bg.Return != nil {
			seen := false
			for _, r := range g.Results {
				seen = seen || r == bg.Return
			}
			if !seen {
				g.Results = append(g.Results, bg.Return)
			}
		}

		if !had || !slotStateEqual(prevOut, newOut) {
			for _, succID := range block.Successors {
				if !inQueue[succID] {
					pending = append(pending, succID)
					inQueue[succID] = true
				}
			}
		}
	}

	return g, nil
}

func localsFromParams(params []*DataNode) []*DataNode {
	locals := make([]*DataNode, 0, len(params)+4)
	for _, p := range params {
		locals = append(locals, p)
		if p.Type.Kind == classfile.VTLong || p.Type.Kind == classfile.VTDouble {
			locals = append(locals, nil) // wide neighbor slot
		}
	}
	return locals
}

func seedParameters(ref classfile.MethodRef, isStatic bool) ([]*DataNode, error) {
	desc, err := classfile.ParseDescriptor(ref.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("seed parameters for %s: %w", ref, err)
	}

	var params []*DataNode
	if !isStatic {
		params = append(params, &DataNode{
			Label: "this",
			Type:  classfile.ReferenceType{Kind: classfile.VTReference, Class: ref.Class},
			Op:    OpParameter,
		})
	}
	for i, t := range desc.Params {
		params = append(params, &DataNode{
			Label: fmt.Sprintf("param%d", i),
			Type:  t,
			Op:    OpParameter,
		})
	}
	return params, nil
}

// computeEntryState implements spec.md §4.2's merge rule: for every slot,
// collect the outgoing node from each predecessor; reuse it if all agree,
// otherwise synthesize a MergeNode whose inputs are those nodes and whose
// type is their LUB. Returns ready=false if a predecessor hasn't produced
// an exit state yet (first pass over a join with an unvisited
// predecessor).
func computeEntryState(
	resolver classfile.ClassResolver,
	method string,
	g *MethodDataGraph,
	block *classfile.BasicBlock,
	entryState map[int]slotState,
	exitState map[int]slotState,
) (slotState, bool) {
	if block.IsEntry {
		return entryState[block.ID], true
	}
	if len(block.Predecessors) == 0 {
		return slotState{}, true // unreachable block; nothing to merge
	}

	preds := make([]slotState, 0, len(block.Predecessors))
	for _, predID := range block.Predecessors {
		out, ok := exitState[predID]
		if !ok {
			return slotState{}, false
		}
		preds = append(preds, out)
	}

	maxLocals := 0
	for _, p := range preds {
		if len(p.Locals) > maxLocals {
			maxLocals = len(p.Locals)
		}
	}
	locals := make([]*DataNode, maxLocals)
	for i := 0; i < maxLocals; i++ {
		locals[i] = mergeSlot(resolver, g, block.ID, slotKey{Kind: slotLocal, Index: i}, preds, func(s slotState) *DataNode {
			if i < len(s.Locals) {
				return s.Locals[i]
			}
			return nil
		})
	}

	stackLen := len(preds[0].Stack)
	stack := make([]*DataNode, stackLen)
	for i := 0; i < stackLen; i++ {
		idx := i
		stack[i] = mergeSlot(resolver, g, block.ID, slotKey{Kind: slotStack, Index: i}, preds, func(s slotState) *DataNode {
			if idx < len(s.Stack) {
				return s.Stack[idx]
			}
			return nil
		})
	}

	_ = method
	return slotState{Locals: locals, Stack: stack}, true
}

// mergeSlot returns the shared producer node if every predecessor agrees,
// or a new MergeNode otherwise. Per spec.md §8 "For every MergeNode at the
// entry of block B, the number of inputs equals the number of
// predecessors of B" — all predecessors contribute an input even when
// some supply nil (treated as "top"/unassigned and skipped).
func mergeSlot(
	resolver classfile.ClassResolver,
	g *MethodDataGraph,
	blockID int,
	key slotKey,
	preds []slotState,
	get func(slotState) *DataNode,
) *DataNode {
	inputs := make([]*DataNode, 0, len(preds))
	var first *DataNode
	allSame := true
	for _, p := range preds {
		n := get(p)
		inputs = append(inputs, n)
		if n == nil {
			continue
		}
		if first == nil {
			first = n
		} else if n != first {
			allSame = false
		}
	}
	if allSame {
		return first
	}

	merged := classfile.ReferenceType{Kind: classfile.VTTop}
	haveType := false
	for _, n := range inputs {
		if n == nil {
			continue
		}
		if !haveType {
			merged = n.Type
			haveType = true
			continue
		}
		merged = classfile.LUB(resolver, merged, n.Type)
	}

	if g.mergeCache[blockID] == nil {
		g.mergeCache[blockID] = make(map[slotKey]*DataNode)
	}
	if existing, ok := g.mergeCache[blockID][key]; ok {
		// Same (block, slot) merge point revisited during the stitching
		// fixpoint: mutate in place so callers that cached the old
		// pointer observe the refined inputs through the same identity.
		existing.Inputs = inputs
		existing.Type = merged
		return existing
	}

	node := &DataNode{
		Label:  "merge",
		Type:   merged,
		Op:     OpMerge,
		Inputs: inputs,
	}
	g.mergeCache[blockID][key] = node
	g.MergeNodes = append(g.MergeNodes, node)
	return node
}

func slotStateEqual(a, b slotState) bool {
	if len(a.Locals) != len(b.Locals) || len(a.Stack) != len(b.Stack) {
		return false
	}
	for i := range a.Locals {
		if a.Locals[i] != b.Locals[i] {
			return false
		}
	}
	for i := range a.Stack {
		if a.Stack[i] != b.Stack[i] {
			return false
		}
	}
	return true
}
