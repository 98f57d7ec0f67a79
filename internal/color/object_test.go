// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorbrush/paintgraph/internal/classfile"
)

func TestColoredObjectSetAndGet(t *testing.T) {
	co := NewColoredObject()
	assert.True(t, co.IsEmpty())

	co.Set("java/lang/String", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)
	assert.False(t, co.IsEmpty())

	pc, ok := co.Get("java/lang/String")
	require.True(t, ok)
	assert.Equal(t, classfile.ColorSourceData, pc.Color)
}

func TestColoredObjectFieldGetOrCreate(t *testing.T) {
	co := NewColoredObject()
	field := co.Field("rawQuery")
	require.NotNil(t, field)
	field.Set("java/lang/String", PaintedColor{Color: classfile.ColorSourceData, Confidence: Explicitly}, nil)

	again := co.Field("rawQuery")
	pc, ok := again.Get("java/lang/String")
	require.True(t, ok)
	assert.Equal(t, classfile.ColorSourceData, pc.Color)

	absent, _ := co.FieldIfPresent("absent")
	assert.Nil(t, absent)
}

func TestColoredObjectCloneIsIndependent(t *testing.T) {
	co := NewColoredObject()
	co.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)
	co.Field("x").Set("B", PaintedColor{Color: classfile.ColorSinkTarget, Confidence: Inferred}, nil)

	clone := co.Clone()
	clone.Set("A", PaintedColor{Color: classfile.ColorSinkTarget, Confidence: Explicitly}, nil)

	original, _ := co.Get("A")
	cloned, _ := clone.Get("A")
	assert.Equal(t, classfile.ColorSourceData, original.Color)
	assert.Equal(t, classfile.ColorSinkTarget, cloned.Color)
}

func TestMergeLUBPrefersHigherConfidenceOnSameColor(t *testing.T) {
	a := NewColoredObject()
	a.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)
	b := NewColoredObject()
	b.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Explicitly}, nil)

	merged := MergeLUB(a, b)
	pc, ok := merged.Get("A")
	require.True(t, ok)
	assert.Equal(t, Explicitly, pc.Confidence)
}

func TestMergeMostDangerousFiresIntersectionOnSourceSinkClash(t *testing.T) {
	a := NewColoredObject()
	a.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred, Trace: NewTraceItem("source at param0")}, nil)
	b := NewColoredObject()
	b.Set("A", PaintedColor{Color: classfile.ColorSinkTarget, Confidence: Inferred, Trace: NewTraceItem("sink at call")}, nil)

	var gotSource, gotSink *TraceItem
	merged := MergeMostDangerous(a, b, func(source, sink *TraceItem) {
		gotSource, gotSink = source, sink
	})

	require.NotNil(t, gotSource)
	require.NotNil(t, gotSink)
	assert.Equal(t, "source at param0", gotSource.Describe())
	assert.Equal(t, "sink at call", gotSink.Describe())
	_, ok := merged.Get("A")
	assert.True(t, ok)
}

func TestMergeNilSafety(t *testing.T) {
	assert.Nil(t, MergeLUB(nil, nil))
	assert.True(t, MergeLUB(nil, nil).IsEmpty())

	only := NewColoredObject()
	only.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)
	merged := MergeLUB(nil, only)
	_, ok := merged.Get("A")
	assert.True(t, ok)
}

func TestDemultiplexCartesianProduct(t *testing.T) {
	first := NewColoredObject()
	first.Set("A", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)
	first.Set("B", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)

	second := NewColoredObject()
	second.Set("C", PaintedColor{Color: classfile.ColorSourceData, Confidence: Inferred}, nil)

	var combos [][]classfile.ClassName
	Demultiplex([]*ColoredObject{first, second}, func(classes []classfile.ClassName) {
		combos = append(combos, append([]classfile.ClassName(nil), classes...))
	})

	assert.Len(t, combos, 2)
	for _, c := range combos {
		assert.Equal(t, classfile.ClassName("C"), c[1])
	}
}

func TestDemultiplexEmptyInputIsWildcardSlot(t *testing.T) {
	empty := NewColoredObject()
	var combos [][]classfile.ClassName
	Demultiplex([]*ColoredObject{empty}, func(classes []classfile.ClassName) {
		combos = append(combos, classes)
	})
	require.Len(t, combos, 1)
	assert.Equal(t, classfile.ClassName(""), combos[0][0])
}
