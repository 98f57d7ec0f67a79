// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import "errors"

// Sentinel errors surfaced by the class-resolver collaborator and by the
// interpreter while consuming it. See internal/dataflow for how BadBytecode
// and UnsupportedOpcode map onto task-abandonment policy.
var (
	// ErrClassNotFound is returned when load_class cannot resolve a name.
	ErrClassNotFound = errors.New("class not found")

	// ErrMethodNotFound is returned when get_method/get_constructor cannot
	// resolve a name+descriptor pair on a class.
	ErrMethodNotFound = errors.New("method not found")

	// ErrFieldNotFound is returned when get_field cannot resolve a
	// name+descriptor pair on a class.
	ErrFieldNotFound = errors.New("field not found")

	// ErrBadDescriptor is returned when a method or field descriptor
	// string is malformed.
	ErrBadDescriptor = errors.New("malformed descriptor")

	// ErrBadConstantPoolTag is returned when an LDC/LDC_W/LDC2_W operand
	// resolves to a constant-pool tag the resolver does not recognize.
	ErrBadConstantPoolTag = errors.New("unrecognized constant pool tag")

	// ErrEmptyMethod is returned by MethodHandle.Code (and by
	// dataflow.BuildMethodGraph) for abstract, native, or
	// zero-instruction methods. It is not an error for callers in the
	// painting session: spec.md §7 treats it as "return an empty result".
	ErrEmptyMethod = errors.New("method body is empty")
)
