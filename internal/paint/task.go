// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package paint

import (
	"sort"
	"strings"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/color"
)

// TaskState is a PaintingTask's position in the session worklist (spec.md
// §4.5 "task state machine").
type TaskState uint8

const (
	// TaskNew is the zero value. newPaintingTask creates every task
	// directly in TaskQueued, so no task is ever in this state.
	TaskNew TaskState = iota
	// TaskQueued is waiting for a worker.
	TaskQueued
	// TaskRunning is being executed by a worker right now.
	TaskRunning
	// TaskIdle has a cached Result and is not scheduled to re-run unless
	// a dependency invalidates it.
	TaskIdle
)

func (s TaskState) String() string {
	switch s {
	case TaskNew:
		return "NEW"
	case TaskQueued:
		return "QUEUED"
	case TaskRunning:
		return "RUNNING"
	case TaskIdle:
		return "IDLE"
	default:
		return "UNKNOWN"
	}
}

// TaskKey identifies one unit of painting work: a method together with the
// coloring its actual arguments carried at the call site that requested
// it (spec.md §4.5 TaskKey). Two call sites that pass identically-colored
// arguments to the same method share one task.
type TaskKey struct {
	Method      classfile.MethodRef
	InputDigest string
}

// TaskResult is what a completed PaintingTask contributes back to its
// callers: the method's own result coloring and the field colorings it
// accumulated as a side effect (spec.md §4.5 "a task's output is its
// method's result coloring plus its field-effect summary").
type TaskResult struct {
	ResultColoring *color.ColoredObject
	FieldEffects   map[classfile.FieldRef]*color.ColoredObject
	HeapVersion    int64
}

// PaintingTask is one (method, input-coloring) unit of work tracked by a
// Session (spec.md §4.5 PaintingTask).
type PaintingTask struct {
	Key          TaskKey
	Method       classfile.MethodRef
	Virtual      bool
	ArgColorings []*color.ColoredObject

	State      TaskState
	Result     *TaskResult
	Executions int

	// dependents are the other tasks' keys whose resolveCallee call is
	// blocked on this one; they are requeued when this task completes
	// (spec.md §4.5 "re-queueing policy").
	dependents map[TaskKey]struct{}
}

func newPaintingTask(key TaskKey, method classfile.MethodRef, virtual bool, args []*color.ColoredObject) *PaintingTask {
	return &PaintingTask{
		Key:          key,
		Method:       method,
		Virtual:      virtual,
		ArgColorings: args,
		State:        TaskQueued,
		dependents:   make(map[TaskKey]struct{}),
	}
}

func (t *PaintingTask) addDependent(dep TaskKey) {
	t.dependents[dep] = struct{}{}
}

// argsDigest produces a stable, order-preserving summary of a call's
// argument colorings so identical input colorings map to the same
// TaskKey regardless of which call site produced them.
func argsDigest(args []*color.ColoredObject) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = coloringDigest(a)
	}
	return strings.Join(parts, "|")
}

func coloringDigest(co *color.ColoredObject) string {
	if co.IsEmpty() {
		return "-"
	}
	classes := co.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	parts := make([]string, 0, len(classes))
	for _, c := range classes {
		pc, ok := co.Get(c)
		if !ok {
			continue
		}
		parts = append(parts, string(c)+"="+string(pc.Color)+":"+pc.Confidence.String())
	}
	return strings.Join(parts, ",")
}
