// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbrush/paintgraph/internal/classfile"
	"github.com/colorbrush/paintgraph/internal/paint"
)

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{Use: "test"}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func TestRenderReportJSONIncludesEveryIntersection(t *testing.T) {
	cmd, buf := newTestCommand()
	sessionID := uuid.New()
	entry := classfile.MethodRef{Class: "com/example/App", Name: "run", Descriptor: "()V"}
	intersections := []paint.Intersection{
		{Method: entry, Source: "param1@App.run", Sink: "arg0@Executor.execute"},
	}

	require.NoError(t, renderReport(cmd, sessionID, entry, intersections, "json"))

	var report jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, sessionID.String(), report.SessionID)
	assert.Equal(t, entry.String(), report.Entry)
	require.Len(t, report.Intersections, 1)
	assert.Equal(t, "param1@App.run", report.Intersections[0].Source)
	assert.Equal(t, "arg0@Executor.execute", report.Intersections[0].Sink)
}

func TestRenderReportTableNoIntersectionsSaysSo(t *testing.T) {
	cmd, buf := newTestCommand()
	entry := classfile.MethodRef{Class: "com/example/App", Name: "run", Descriptor: "()V"}

	require.NoError(t, renderReport(cmd, uuid.New(), entry, nil, "table"))
	assert.Contains(t, buf.String(), "no intersections found")
}

func TestRenderReportTableListsEachIntersection(t *testing.T) {
	cmd, buf := newTestCommand()
	entry := classfile.MethodRef{Class: "com/example/App", Name: "run", Descriptor: "()V"}
	intersections := []paint.Intersection{
		{Method: entry, Source: "src", Sink: "snk"},
	}

	require.NoError(t, renderReport(cmd, uuid.New(), entry, intersections, "table"))
	out := buf.String()
	assert.Contains(t, out, "src")
	assert.Contains(t, out, "snk")
}

func TestRenderReportUnknownFormatErrors(t *testing.T) {
	cmd, _ := newTestCommand()
	entry := classfile.MethodRef{Class: "com/example/App", Name: "run", Descriptor: "()V"}
	err := renderReport(cmd, uuid.New(), entry, nil, "xml")
	assert.Error(t, err)
}
