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

// BlockDataGraph is the per-block output of the symbolic interpreter
// (spec.md §3 BlockDataGraph, §4.1 Contract).
type BlockDataGraph struct {
	Block *classfile.BasicBlock

	Nodes []*DataNode

	InLocals []*DataNode
	InStack  []*DataNode // index 0 = bottom of stack

	OutLocals []*DataNode
	OutStack  []*DataNode

	Invocations []*Invocation
	PutFields   []*PutFieldAccess

	Return    *DataNode // result node of a value-returning ?RETURN, else nil
	HasReturn bool      // true if the block ends in any ?RETURN (incl. void)
}

// interpState is the mutable per-block symbolic machine: an array of
// locals by slot and a stack of DataNodes (spec.md §4.1 "Maintain two
// mutable structures").
type interpState struct {
	method   string
	resolver classfile.ClassResolver
	frames   classfile.VerifierFrames
	debug    bool // enables the assertions in spec.md §4.1

	locals []*DataNode
	stack  []*DataNode // index 0 = bottom

	graph *BlockDataGraph
}

func (s *interpState) push(n *DataNode) {
	s.stack = append(s.stack, n)
}

func (s *interpState) pop() (*DataNode, error) {
	if len(s.stack) == 0 {
		return nil, newBadBytecode(s.method, -1, "", "pop from empty stack")
	}
	n := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return n, nil
}

func (s *interpState) popN(n int) ([]*DataNode, error) {
	out := make([]*DataNode, n)
	for i := n - 1; i >= 0; i-- {
		v, err := s.pop()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *interpState) peek() *DataNode {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

// stackCategorySum mirrors spec.md §4.1's "Σ size(top..bottom)" assertion:
// category-2 values occupy one symbolic slot but count as two verifier
// slots.
func (s *interpState) stackCategorySum() int {
	sum := 0
	for _, n := range s.stack {
		sum += n.Type.Category()
	}
	return sum
}

// assertAgainstFrame enforces the two invariants in spec.md §4.1
// "Assertions": stack-size agreement and per-local type compatibility.
// Violations are fatal internal errors (ErrAssertionFailed), never a
// recoverable analysis gap.
func (s *interpState) assertAgainstFrame(offset int) error {
	if !s.debug {
		return nil
	}
	frame, err := s.frames.FrameAt(offset)
	if err != nil {
		return fmt.Errorf("frame at %s+%d: %w", s.method, offset, err)
	}
	if got, want := s.stackCategorySum(), frame.TopIndex()+1; got != want {
		return fmt.Errorf("%w: %s+%d stack size %d != verifier %d", ErrAssertionFailed, s.method, offset, got, want)
	}
	for i, n := range s.locals {
		if n == nil {
			continue // unassigned local, or upper half of a wide neighbor
		}
		if i >= len(frame.Locals) {
			return fmt.Errorf("%w: %s+%d local slot %d beyond verifier frame", ErrAssertionFailed, s.method, offset, i)
		}
		if !typeCompatible(n.Type.Kind, frame.Locals[i]) {
			return fmt.Errorf("%w: %s+%d local %d type %s incompatible with verifier %s",
				ErrAssertionFailed, s.method, offset, i, n.Type.Kind, frame.Locals[i])
		}
	}
	return nil
}

func typeCompatible(actual, verifier classfile.VerificationType) bool {
	if verifier == classfile.VTTop {
		return true // upper half of a category-2 slot, or dead local
	}
	if actual == verifier {
		return true
	}
	// A resolved reference is compatible with any verifier reference slot
	// (alias/subtype refinement is the resolver's job, not this
	// assertion's); null is compatible with any reference slot.
	if verifier == classfile.VTReference && (actual == classfile.VTReference || actual == classfile.VTNull) {
		return true
	}
	return false
}

// InterpretBlock executes one basic block's instructions against incoming
// locals/stack, implementing the opcode dispatch table in spec.md §4.1.
func InterpretBlock(
	ctx context.Context,
	resolver classfile.ClassResolver,
	body *classfile.MethodBody,
	block *classfile.BasicBlock,
	inLocals, inStack []*DataNode,
) (*BlockDataGraph, error) {
	bg := &BlockDataGraph{
		Block:    block,
		InLocals: inLocals,
		InStack:  inStack,
	}

	st := &interpState{
		method:   body.Ref.String(),
		resolver: resolver,
		frames:   body.Frames,
		debug:    true,
		locals:   append([]*DataNode(nil), inLocals...),
		stack:    append([]*DataNode(nil), inStack...),
		graph:    bg,
	}

	for _, inst := range instructionsInRange(body.Instructions, block.StartOffset, block.EndOffset) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := st.assertAgainstFrame(inst.Offset); err != nil {
			return nil, err
		}
		if err := dispatch(ctx, st, body, inst); err != nil {
			return nil, err
		}
	}

	bg.Nodes = st.graph.Nodes
	bg.OutLocals = st.locals
	bg.OutStack = st.stack
	return bg, nil
}

func instructionsInRange(all []classfile.Instruction, start, end int) []classfile.Instruction {
	lo, hi := 0, len(all)
	for i, inst := range all {
		if inst.Offset == start {
			lo = i
		}
		if inst.Offset >= end {
			hi = i
			break
		}
	}
	return all[lo:hi]
}

func (s *interpState) emit(n *DataNode) *DataNode {
	s.graph.Nodes = append(s.graph.Nodes, n)
	return n
}
