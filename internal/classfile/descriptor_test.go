// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptorVoidNoArgs(t *testing.T) {
	d, err := ParseDescriptor("()V")
	require.NoError(t, err)
	assert.Empty(t, d.Params)
	assert.Nil(t, d.Return)
}

func TestParseDescriptorPrimitiveRoundTrip(t *testing.T) {
	d, err := ParseDescriptor("(I)I")
	require.NoError(t, err)
	require.Len(t, d.Params, 1)
	assert.Equal(t, VTInt, d.Params[0].Kind)
	require.NotNil(t, d.Return)
	assert.Equal(t, VTInt, d.Return.Kind)
}

func TestParseDescriptorCategory2Primitive(t *testing.T) {
	d, err := ParseDescriptor("(J)J")
	require.NoError(t, err)
	require.Len(t, d.Params, 1)
	assert.Equal(t, VTLong, d.Params[0].Kind)
	assert.Equal(t, 2, d.Params[0].Kind.Category())
}

func TestParseDescriptorObjectReference(t *testing.T) {
	d, err := ParseDescriptor("(Ljava/lang/String;)V")
	require.NoError(t, err)
	require.Len(t, d.Params, 1)
	assert.Equal(t, VTReference, d.Params[0].Kind)
	assert.Equal(t, ClassName("java/lang/String"), d.Params[0].Class)
	assert.Nil(t, d.Return)
}

func TestParseDescriptorMultipleParamsAndObjectReturn(t *testing.T) {
	d, err := ParseDescriptor("(ILjava/lang/String;D)Ljava/lang/Object;")
	require.NoError(t, err)
	require.Len(t, d.Params, 3)
	assert.Equal(t, VTInt, d.Params[0].Kind)
	assert.Equal(t, VTReference, d.Params[1].Kind)
	assert.Equal(t, ClassName("java/lang/String"), d.Params[1].Class)
	assert.Equal(t, VTDouble, d.Params[2].Kind)
	require.NotNil(t, d.Return)
	assert.Equal(t, ClassName("java/lang/Object"), d.Return.Class)
}

func TestParseDescriptorPrimitiveArray(t *testing.T) {
	d, err := ParseDescriptor("([I)V")
	require.NoError(t, err)
	require.Len(t, d.Params, 1)
	assert.Equal(t, VTReference, d.Params[0].Kind)
	assert.Equal(t, ClassName("[I"), d.Params[0].Class)
}

func TestParseDescriptorMissingOpenParen(t *testing.T) {
	_, err := ParseDescriptor("I)V")
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestParseDescriptorMissingCloseParen(t *testing.T) {
	_, err := ParseDescriptor("(I")
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestParseDescriptorUnterminatedClassName(t *testing.T) {
	_, err := ParseDescriptor("(Ljava/lang/String)V")
	assert.ErrorIs(t, err, ErrBadDescriptor)
}

func TestParseDescriptorUnknownTypeTag(t *testing.T) {
	_, err := ParseDescriptor("(Q)V")
	assert.ErrorIs(t, err, ErrBadDescriptor)
}
