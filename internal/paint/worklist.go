// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package paint

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/color"
	"github.com/colorbrush/paintgraph/internal/dataflow"
)

// execute runs one PaintingTask to completion: build the callee's
// MethodDataGraph, color it (recursing into further tasks through
// resolveCallee), and fold the result back into the session (spec.md
// §4.5 "a task's body").
func (s *Session) execute(ctx context.Context, task *PaintingTask) error {
	ctx, span := tracer.Start(ctx, "paint.Session.execute", trace.WithAttributes(
		attribute.String("method", task.Method.String()),
		attribute.Int("executions", task.Executions),
	))
	defer span.End()

	// parentCtx is the session-wide context; only its cancellation is
	// fatal to the whole Analyze run. A per-task deadline below must stay
	// method-scoped (spec.md §7: a slow-converging task is not a reason to
	// abort every other task in flight).
	parentCtx := ctx
	if s.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()
	}
	initMetrics()
	if tasksExecuted != nil {
		tasksExecuted.Add(ctx, 1)
	}

	handle, err := s.resolveHandle(ctx, task.Method)
	if err != nil {
		span.RecordError(err)
		s.finish(task, emptyResult(), task.dependents)
		return nonFatal(parentCtx, err)
	}

	body, err := handle.Code(ctx)
	if err != nil {
		if errors.Is(err, classfile.ErrEmptyMethod) {
			s.finish(task, emptyResult(), task.dependents)
			return nonFatal(parentCtx, nil)
		}
		span.RecordError(err)
		s.finish(task, emptyResult(), task.dependents)
		return nonFatal(parentCtx, err)
	}

	graph, err := dataflow.BuildMethodGraph(ctx, classfile.ScopeToClass(s.resolver, task.Method.Class), body, handle.IsStatic())
	if err != nil {
		span.RecordError(err)
		s.finish(task, emptyResult(), task.dependents)
		return nonFatal(parentCtx, err)
	}

	gc := color.NewGraphColorer(graph, s.rules, s.makeResolveCallee(task.Key), s.makeOnIntersection(task.Method)).
		WithMaxIterations(s.cfg.BrushIterationCap)

	for i, co := range task.ArgColorings {
		gc.SeedParam(i, co)
	}
	for ref, co := range s.snapshotFields() {
		gc.SeedField(ref, co)
	}

	if _, err := gc.Color(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.finish(task, emptyResult(), task.dependents)
		return nonFatal(parentCtx, err)
	}

	var result *color.ColoredObject
	for _, r := range graph.Results {
		result = color.MergeLUB(result, gc.ColoringOf(r))
	}
	fieldEffects := gc.FieldColorings()

	changed := s.mergeFields(fieldEffects)
	if changed {
		atomic.AddInt64(&s.heapVersion, 1)
	}

	s.finish(task, &TaskResult{
		ResultColoring: result,
		FieldEffects:   fieldEffects,
		HeapVersion:    atomic.LoadInt64(&s.heapVersion),
	}, task.dependents)

	return nil
}

// nonFatal classifies a task failure. If parentCtx itself is done it
// returns parentCtx's error, which isFatal treats as session-ending; a
// per-task deadline or cancellation comes back wrapped as ErrTaskTimeout;
// any other error (spec.md §7: BadBytecode, UnsupportedOpcode,
// ClassNotFound, MethodNotFound, EmptyMethod, IterationCapExceeded are all
// local to one task) is returned as is. workerLoop logs what isFatal does
// not reject and keeps draining the rest of the worklist.
func nonFatal(parentCtx context.Context, err error) error {
	if ctxErr := parentCtx.Err(); ctxErr != nil {
		return ctxErr
	}
	// err may be the per-task deadline (s.cfg.TaskTimeout) expiring, which
	// is indistinguishable by value from parentCtx canceling — since we
	// already confirmed parentCtx is still live, this is a local timeout,
	// not a session-wide one. Wrap it so isFatal's sentinel comparison
	// doesn't mistake it for a session cancellation.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s", ErrTaskTimeout, err)
	}
	return err
}

func emptyResult() *TaskResult {
	return &TaskResult{FieldEffects: map[classfile.FieldRef]*color.ColoredObject{}}
}

// finish stores result on task, marks it idle, and requeues every
// dependent task blocked on it (spec.md §4.5 "re-queueing policy").
func (s *Session) finish(task *PaintingTask, result *TaskResult, dependents map[TaskKey]struct{}) {
	s.mu.Lock()
	task.Result = result
	task.State = TaskIdle
	task.Executions++
	deps := make([]TaskKey, 0, len(dependents))
	for d := range dependents {
		deps = append(deps, d)
	}
	s.mu.Unlock()

	for _, d := range deps {
		s.requeue(d)
	}
}

func (s *Session) resolveHandle(ctx context.Context, ref classfile.MethodRef) (classfile.MethodHandle, error) {
	if ref.Name == "<init>" || ref.Name == "<clinit>" {
		h, err := s.resolver.GetConstructor(ctx, ref.Class, ref.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, ref)
		}
		return h, nil
	}
	h, err := s.resolver.GetMethod(ctx, ref.Class, ref.Name, ref.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, ref)
	}
	return h, nil
}

func (s *Session) snapshotFields() map[classfile.FieldRef]*color.ColoredObject {
	s.fieldsMu.Lock()
	defer s.fieldsMu.Unlock()
	out := make(map[classfile.FieldRef]*color.ColoredObject, len(s.fields))
	for k, v := range s.fields {
		out[k] = v
	}
	return out
}

// mergeFields folds effects into the session's shared field-coloring
// store, reporting whether anything actually changed so the caller knows
// whether to bump the heap version (spec.md §4.5 "heap-version
// counters").
func (s *Session) mergeFields(effects map[classfile.FieldRef]*color.ColoredObject) bool {
	s.fieldsMu.Lock()
	defer s.fieldsMu.Unlock()
	changed := false
	for ref, co := range effects {
		existing, ok := s.fields[ref]
		if !ok {
			s.fields[ref] = co
			changed = true
			continue
		}
		merged := color.MergeMostDangerous(existing, co, nil)
		if !sameDigest(existing, merged) {
			s.fields[ref] = merged
			changed = true
		}
	}
	return changed
}

func sameDigest(a, b *color.ColoredObject) bool {
	return coloringDigest(a) == coloringDigest(b)
}

// makeResolveCallee binds a color.ResolveCalleeFunc to callerKey so any
// task this brush pass discovers gets registered as callerKey's
// dependent (spec.md §4.5 resolve_callee steps 1-4).
func (s *Session) makeResolveCallee(callerKey TaskKey) color.ResolveCalleeFunc {
	// onIntersection is the merge_most_dangerous callback for every cached
	// callee joined below (spec.md §4.5 resolve_callee step 3: "merge via
	// merge_most_dangerous", not merge_lub — conflicting overrides across
	// demultiplexed virtual-dispatch targets must still fire a real
	// intersection, the same way mergeFields does for field effects).
	onIntersection := func(source, sink *color.TraceItem) {
		s.recordIntersection(callerKey.Method, source, sink)
	}

	return func(ctx context.Context, callee classfile.MethodRef, virtual bool, argColorings []*color.ColoredObject) (*color.ColoredObject, map[classfile.FieldRef]*color.ColoredObject, bool, error) {
		targets := s.resolveTargets(ctx, callee, virtual, argColorings)

		var mergedResult *color.ColoredObject
		mergedFields := make(map[classfile.FieldRef]*color.ColoredObject)
		allReady := true

		for _, target := range targets {
			key := TaskKey{Method: target, InputDigest: argsDigest(argColorings)}
			t := s.enqueueLocked(key, target, virtual, argColorings)

			s.mu.Lock()
			t.addDependent(callerKey)
			state, result := t.State, t.Result
			s.mu.Unlock()

			if state != TaskIdle || result == nil {
				allReady = false
				continue
			}
			mergedResult = color.MergeMostDangerous(mergedResult, result.ResultColoring, onIntersection)
			for f, co := range result.FieldEffects {
				if existing, ok := mergedFields[f]; ok {
					mergedFields[f] = color.MergeMostDangerous(existing, co, onIntersection)
				} else {
					mergedFields[f] = co
				}
			}
			if result.HeapVersion < atomic.LoadInt64(&s.heapVersion) {
				s.requeue(key)
			}
		}

		return mergedResult, mergedFields, allReady, nil
	}
}

// resolveTargets implements spec.md §4.5 resolve_callee step 1: for a
// virtual/interface call site, refine the declared target to every
// concrete override reachable from the receiver's observed runtime
// classes, falling back to the declared method when nothing refines it.
func (s *Session) resolveTargets(ctx context.Context, declared classfile.MethodRef, virtual bool, argColorings []*color.ColoredObject) []classfile.MethodRef {
	if !virtual || len(argColorings) == 0 {
		return []classfile.MethodRef{declared}
	}

	var targets []classfile.MethodRef
	color.Demultiplex(argColorings[:1], func(classes []classfile.ClassName) {
		class := classes[0]
		if class == "" {
			return
		}
		if _, err := s.resolver.GetMethod(ctx, class, declared.Name, declared.Descriptor); err != nil {
			return
		}
		targets = append(targets, classfile.MethodRef{Class: class, Name: declared.Name, Descriptor: declared.Descriptor})
	})
	if len(targets) == 0 {
		return []classfile.MethodRef{declared}
	}
	return targets
}

// makeOnIntersection adapts color.OnIntersectionFunc to the session-level
// Intersection record (spec.md §3 "intersection callback").
func (s *Session) makeOnIntersection(method classfile.MethodRef) color.OnIntersectionFunc {
	return func(_ *dataflow.DataNode, source, sink *color.TraceItem) {
		s.recordIntersection(method, source, sink)
	}
}
