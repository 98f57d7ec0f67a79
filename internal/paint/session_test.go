// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package paint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/config"
	"github.com/colorbrush/paintgraph/pkg/logging"
)

// fakeMethodHandle wraps a pre-built body for a fixed (class, name,
// descriptor) triple, standing in for a real class-file decoder the same
// way classfile.JSONResolver does (spec.md §6 names ClassResolver as an
// externally-supplied collaborator).
type fakeMethodHandle struct {
	owner      classfile.ClassName
	name       string
	descriptor string
	static     bool
	body       *classfile.MethodBody
}

func (h *fakeMethodHandle) Owner() classfile.ClassName { return h.owner }
func (h *fakeMethodHandle) Name() string                { return h.name }
func (h *fakeMethodHandle) Descriptor() string          { return h.descriptor }
func (h *fakeMethodHandle) IsStatic() bool              { return h.static }
func (h *fakeMethodHandle) Code(context.Context) (*classfile.MethodBody, error) {
	return h.body, nil
}

// fakeResolver is a minimal classfile.ClassResolver fixture: a flat table
// of pre-built method handles, no constant pool (the fixtures below never
// emit LDC/GETFIELD/INVOKE* instructions).
type fakeResolver struct {
	methods map[string]*fakeMethodHandle
}

func (r *fakeResolver) key(class classfile.ClassName, name, descriptor string) string {
	return string(class) + "." + name + descriptor
}

func (r *fakeResolver) LoadClass(context.Context, classfile.ClassName) (classfile.ClassHandle, error) {
	return nil, classfile.ErrClassNotFound
}

func (r *fakeResolver) GetField(context.Context, classfile.ClassName, string, string) (classfile.FieldHandle, error) {
	return nil, classfile.ErrFieldNotFound
}

func (r *fakeResolver) GetMethod(_ context.Context, class classfile.ClassName, name, descriptor string) (classfile.MethodHandle, error) {
	h, ok := r.methods[r.key(class, name, descriptor)]
	if !ok {
		return nil, classfile.ErrMethodNotFound
	}
	return h, nil
}

func (r *fakeResolver) GetConstructor(context.Context, classfile.ClassName, string) (classfile.MethodHandle, error) {
	return nil, classfile.ErrMethodNotFound
}

func (r *fakeResolver) IsSubtypeOf(sub, super classfile.ClassName) bool { return sub == super }

func (r *fakeResolver) ResolveConstant(context.Context, uint16) (classfile.ConstantValue, error) {
	return classfile.ConstantValue{}, classfile.ErrBadConstantPoolTag
}

func (r *fakeResolver) ResolveFieldRef(context.Context, uint16) (classfile.FieldRef, error) {
	return classfile.FieldRef{}, classfile.ErrFieldNotFound
}

func (r *fakeResolver) ResolveMethodRef(context.Context, uint16) (classfile.MethodRef, error) {
	return classfile.MethodRef{}, classfile.ErrMethodNotFound
}

type fixedFramesForTest map[int]classfile.Frame

func (f fixedFramesForTest) FrameAt(offset int) (classfile.Frame, error) {
	frame, ok := f[offset]
	if !ok {
		return classfile.Frame{}, classfile.ErrBadDescriptor
	}
	return frame, nil
}

// identityMethodResolver returns a resolver with a single static method,
// com/example/App.identity(Ljava/lang/String;)Ljava/lang/String;, whose
// body is ALOAD_0 (load the only param); ARETURN.
func identityMethodResolver() *fakeResolver {
	ref := classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"}
	body := &classfile.MethodBody{
		Ref: ref,
		Instructions: []classfile.Instruction{
			{Offset: 0, Opcode: classfile.Aload0},
			{Offset: 1, Opcode: classfile.Areturn},
		},
		Blocks: []*classfile.BasicBlock{
			{ID: 0, StartOffset: 0, EndOffset: 2, IsEntry: true},
		},
		Frames: fixedFramesForTest{
			0: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: nil},
			1: {Locals: []classfile.VerificationType{classfile.VTReference}, Stack: []classfile.VerificationType{classfile.VTReference}},
		},
	}
	return &fakeResolver{methods: map[string]*fakeMethodHandle{
		"com/example/App.identity(Ljava/lang/String;)Ljava/lang/String;": {
			owner: ref.Class, name: ref.Name, descriptor: ref.Descriptor, static: true, body: body,
		},
	}}
}

func TestSessionAnalyzePropagatesDeclaredSourceThroughIdentity(t *testing.T) {
	resolver := identityMethodResolver()
	rules := classfile.NewStaticRuleProvider()
	src := classfile.ColorSourceData
	rules.AddMethodRule("com/example/App", "identity", "(Ljava/lang/String;)Ljava/lang/String;", classfile.MethodColorRule{
		ParamColors: []*classfile.Color{&src},
	})

	cfg := config.Default()
	session := NewSession(resolver, rules, cfg, logging.Default())

	entry := classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"}
	intersections, err := session.Analyze(context.Background(), entry, true)
	require.NoError(t, err)
	assert.Empty(t, intersections, "a lone source with no sink call never intersects")
}

func TestSessionAnalyzeMethodNotFoundIsNonFatal(t *testing.T) {
	resolver := &fakeResolver{methods: map[string]*fakeMethodHandle{}}
	rules := classfile.NewStaticRuleProvider()
	cfg := config.Default()
	session := NewSession(resolver, rules, cfg, logging.Default())

	entry := classfile.MethodRef{Class: "com/example/App", Name: "missing", Descriptor: "()V"}
	intersections, err := session.Analyze(context.Background(), entry, true)
	require.NoError(t, err, "an unresolved entry method is logged and the session still finishes cleanly")
	assert.Empty(t, intersections)
}

// TestSessionTaskTimeoutDoesNotAbortSession is a regression test: a single
// task exceeding config.Config.TaskTimeout must not look like the whole
// session's context canceling (isFatal's == comparison against
// context.DeadlineExceeded would otherwise mistake the two).
func TestSessionTaskTimeoutDoesNotAbortSession(t *testing.T) {
	resolver := identityMethodResolver()
	rules := classfile.NewStaticRuleProvider()
	cfg := config.Default()
	cfg.TaskTimeout = time.Nanosecond // expires before execute() does any real work
	session := NewSession(resolver, rules, cfg, logging.Default())

	entry := classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"}
	_, err := session.Analyze(context.Background(), entry, true)
	require.NoError(t, err, "a per-task timeout must be swallowed as non-fatal, not propagated out of Analyze")
}

func TestSessionAnalyzeHonorsOuterContextCancellation(t *testing.T) {
	resolver := identityMethodResolver()
	rules := classfile.NewStaticRuleProvider()
	cfg := config.Default()
	session := NewSession(resolver, rules, cfg, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry := classfile.MethodRef{Class: "com/example/App", Name: "identity", Descriptor: "(Ljava/lang/String;)Ljava/lang/String;"}
	_, err := session.Analyze(ctx, entry, true)
	assert.Error(t, err, "a session-wide cancellation must still abort Analyze")
}
