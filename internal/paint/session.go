// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package paint implements L3, the interprocedural painting session
// described in spec.md §4.5: a worklist of PaintingTasks that resolves
// call sites across method boundaries and reports source/sink
// intersections.
package paint

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/color"
	"github.com/colorbrush/paintgraph/internal/config"
	"github.com/colorbrush/paintgraph/internal/dataflow"
	"github.com/colorbrush/paintgraph/pkg/logging"
)

var (
	tracer = otel.Tracer("github.com/colorbrush/paintgraph/internal/paint")
	meter  = otel.Meter("github.com/colorbrush/paintgraph/internal/paint")

	metricsOnce       sync.Once
	tasksExecuted     metric.Int64Counter
	intersectionsHit  metric.Int64Counter
)

func initMetrics() {
	metricsOnce.Do(func() {
		tasksExecuted, _ = meter.Int64Counter("paintgraph.paint.tasks_executed")
		intersectionsHit, _ = meter.Int64Counter("paintgraph.paint.intersections_found")
	})
}

// Intersection is one confirmed source/sink co-occurrence (spec.md §3
// "intersection callback", §6 External Interfaces).
type Intersection struct {
	Method classfile.MethodRef
	Source string
	Sink   string
}

func (i Intersection) String() string {
	return fmt.Sprintf("%s: %s -x- %s", i.Method, i.Source, i.Sink)
}

// Session runs the fixpoint worklist over PaintingTasks for one analysis
// run (spec.md §4.5). It is single-use: call Analyze once per Session.
type Session struct {
	resolver classfile.ClassResolver
	rules    classfile.RuleProvider
	cfg      config.Config
	logger   *logging.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	tasks       map[TaskKey]*PaintingTask
	queue       []TaskKey
	outstanding int

	fieldsMu sync.Mutex
	fields   map[classfile.FieldRef]*color.ColoredObject

	heapVersion int64

	intersectionsMu sync.Mutex
	intersections   []Intersection
}

// NewSession constructs a Session bound to one class-pool/resolver and one
// rule provider (spec.md §6 External Interfaces).
func NewSession(resolver classfile.ClassResolver, rules classfile.RuleProvider, cfg config.Config, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Session{
		resolver: resolver,
		rules:    rules,
		cfg:      cfg,
		logger:   logger,
		tasks:    make(map[TaskKey]*PaintingTask),
		fields:   make(map[classfile.FieldRef]*color.ColoredObject),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Analyze is the engine's entry point (spec.md §6 "Analyze(entryMethod,
// ...)"): it seeds the worklist with entry and drains it with a pool of
// workers, returning every intersection observed.
func (s *Session) Analyze(ctx context.Context, entry classfile.MethodRef, isStatic bool) ([]Intersection, error) {
	initMetrics()
	ctx, span := tracer.Start(ctx, "paint.Session.Analyze", trace.WithAttributes(
		attribute.String("entry_method", entry.String()),
	))
	defer span.End()

	virtual := !isStatic
	key := TaskKey{Method: entry, InputDigest: argsDigest(nil)}
	s.enqueueLocked(key, entry, virtual, nil)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return s.workerLoop(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.intersectionsMu.Lock()
	out := append([]Intersection(nil), s.intersections...)
	s.intersectionsMu.Unlock()
	span.SetAttributes(attribute.Int("intersections", len(out)))
	return out, nil
}

func (s *Session) workerLoop(ctx context.Context) error {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && s.outstanding > 0 {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return nil
		}
		key := s.queue[0]
		s.queue = s.queue[1:]
		task := s.tasks[key]
		task.State = TaskRunning
		s.mu.Unlock()

		err := s.execute(ctx, task)

		s.mu.Lock()
		s.outstanding--
		if err != nil && isFatal(err) {
			s.mu.Unlock()
			return err
		}
		if err != nil {
			s.logger.With("method", task.Method.String(), "error", err.Error()).Warn("paint: task execution failed, keeping last result")
		}
		s.cond.Broadcast()
		s.mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func isFatal(err error) bool {
	return err == context.Canceled || err == context.DeadlineExceeded || errors.Is(err, dataflow.ErrAssertionFailed)
}

// enqueueLocked creates (or returns the existing) task for key, bumping
// outstanding and signaling workers. It acquires s.mu itself, so callers
// must not hold it.
func (s *Session) enqueueLocked(key TaskKey, method classfile.MethodRef, virtual bool, args []*color.ColoredObject) *PaintingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[key]; ok {
		return t
	}
	t := newPaintingTask(key, method, virtual, args)
	s.tasks[key] = t
	s.queue = append(s.queue, key)
	s.outstanding++
	s.cond.Signal()
	return t
}

func (s *Session) requeue(key TaskKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok || t.State == TaskQueued || t.State == TaskRunning {
		return
	}
	if t.Executions >= s.cfg.TaskExecutionCap {
		s.logger.With("method", t.Method.String(), "error", ErrTaskExecutionCapExceeded.Error()).Warn("paint: task execution cap reached, no further re-runs")
		return
	}
	t.State = TaskQueued
	s.queue = append(s.queue, key)
	s.outstanding++
	s.cond.Signal()
}

func (s *Session) recordIntersection(method classfile.MethodRef, source, sink *color.TraceItem) {
	initMetrics()
	if intersectionsHit != nil {
		intersectionsHit.Add(context.Background(), 1, metric.WithAttributes(attribute.String("method", method.String())))
	}
	s.intersectionsMu.Lock()
	s.intersections = append(s.intersections, Intersection{
		Method: method,
		Source: source.String(),
		Sink:   sink.String(),
	})
	s.intersectionsMu.Unlock()
}
