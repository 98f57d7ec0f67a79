// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbrush/paintgraph/internal/classfile"
)

// fixedFrames is a VerifierFrames stub keyed by exact offset, enough for
// tests that drive InterpretBlock directly without a real class-file
// verifier.
type fixedFrames map[int]classfile.Frame

func (f fixedFrames) FrameAt(offset int) (classfile.Frame, error) {
	frame, ok := f[offset]
	if !ok {
		return classfile.Frame{}, newBadBytecode("test", offset, "", "no frame recorded")
	}
	return frame, nil
}

// TestInterpretBlockIdentityReturnsReceiver drives the "identity" scenario
// from an ALOAD_0/ARETURN method body: the single instance method returns
// its own receiver unchanged, so the block's Return node must be the exact
// receiver DataNode by pointer identity, not a copy.
func TestInterpretBlockIdentityReturnsReceiver(t *testing.T) {
	receiver := &DataNode{
		Label: "this",
		Type:  classfile.ReferenceType{Kind: classfile.VTReference, Class: "com/example/App"},
		Op:    OpParameter,
	}

	body := &classfile.MethodBody{
		Ref: classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "()Lcom/example/App;"},
		Instructions: []classfile.Instruction{
			{Offset: 0, Opcode: classfile.Aload0},
			{Offset: 1, Opcode: classfile.Areturn},
		},
		Frames: fixedFrames{
			0: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: nil},
			1: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: []classfile.VerificationType{classfile.VTReference}},
		},
	}
	block := &classfile.BasicBlock{ID: 0, StartOffset: 0, EndOffset: 2, IsEntry: true}

	bg, err := InterpretBlock(context.Background(), nil, body, block, []*DataNode{receiver}, nil)
	require.NoError(t, err)

	assert.True(t, bg.HasReturn)
	assert.Same(t, receiver, bg.Return)
	assert.Empty(t, bg.OutStack)
	assert.Empty(t, bg.Nodes, "ALOAD_0/ARETURN push/pop existing nodes; neither opcode emits a new one")
}

// TestInterpretBlockVoidReturnLeavesReturnNil covers the void-return
// boundary: RETURN sets HasReturn without popping a value node.
func TestInterpretBlockVoidReturnLeavesReturnNil(t *testing.T) {
	body := &classfile.MethodBody{
		Ref: classfile.MethodRef{Class: "com/example/App", Name: "noop", Descriptor: "()V"},
		Instructions: []classfile.Instruction{
			{Offset: 0, Opcode: classfile.Return},
		},
		Frames: fixedFrames{
			0: {Locals: nil, Stack: nil},
		},
	}
	block := &classfile.BasicBlock{ID: 0, StartOffset: 0, EndOffset: 1, IsEntry: true}

	bg, err := InterpretBlock(context.Background(), nil, body, block, nil, nil)
	require.NoError(t, err)
	assert.True(t, bg.HasReturn)
	assert.Nil(t, bg.Return)
}

// TestInterpretBlockAssertionFailedOnStackMismatch exercises the fatal
// internal-error path: a verifier frame disagreeing with the actually
// executed stack depth is a bug in the upstream collaborators, never a
// recoverable analysis gap (spec.md's "Assertions" contract).
func TestInterpretBlockAssertionFailedOnStackMismatch(t *testing.T) {
	receiver := &DataNode{
		Label: "this",
		Type:  classfile.ReferenceType{Kind: classfile.VTReference, Class: "com/example/App"},
		Op:    OpParameter,
	}
	body := &classfile.MethodBody{
		Ref: classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "()Lcom/example/App;"},
		Instructions: []classfile.Instruction{
			{Offset: 0, Opcode: classfile.Aload0},
			{Offset: 1, Opcode: classfile.Areturn},
		},
		Frames: fixedFrames{
			0: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: nil},
			// Wrong: claims the stack is still empty right before ARETURN,
			// even though ALOAD_0 must have pushed one value.
			1: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: nil},
		},
	}
	block := &classfile.BasicBlock{ID: 0, StartOffset: 0, EndOffset: 2, IsEntry: true}

	_, err := InterpretBlock(context.Background(), nil, body, block, []*DataNode{receiver}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssertionFailed)
}
