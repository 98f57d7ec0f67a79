// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import "fmt"

// VerificationType is the VM verifier's abstract type lattice, consumed as
// ground truth by the interpreter (spec.md §3, §4.1). Values of category 2
// (Long, Double) occupy a single symbolic stack slot but two verifier
// slots; Top marks the upper half of a category-2 verifier slot pair.
type VerificationType uint8

const (
	VTTop VerificationType = iota
	VTInt
	VTLong
	VTFloat
	VTDouble
	VTNull
	VTUninitialized
	VTReference
)

// Category returns 2 for long/double, 1 for everything else (including Top,
// which is never pushed directly but counted when summing verifier slots).
func (t VerificationType) Category() int {
	if t == VTLong || t == VTDouble {
		return 2
	}
	return 1
}

func (t VerificationType) String() string {
	switch t {
	case VTTop:
		return "top"
	case VTInt:
		return "int"
	case VTLong:
		return "long"
	case VTFloat:
		return "float"
	case VTDouble:
		return "double"
	case VTNull:
		return "null"
	case VTUninitialized:
		return "uninitialized"
	case VTReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ClassName is an internal (slash-separated) class/interface name, e.g.
// "java/lang/String".
type ClassName string

// ReferenceType pairs VTReference with the concrete class it refers to.
// Non-reference types carry an empty Class.
type ReferenceType struct {
	Kind  VerificationType
	Class ClassName
}

func (r ReferenceType) String() string {
	if r.Kind == VTReference {
		return fmt.Sprintf("reference(%s)", r.Class)
	}
	return r.Kind.String()
}

// LUB computes the least upper bound of two verification types on the
// lattice described in spec.md §4.2. Two distinct, non-related reference
// types LUB to java/lang/Object's reference type — the engine does not
// attempt common-supertype resolution beyond what the resolver reports via
// IsSubtypeOf, consistent with "no alias analysis beyond node identity".
func LUB(resolver ClassResolver, a, b ReferenceType) ReferenceType {
	if a.Kind == b.Kind && a.Class == b.Class {
		return a
	}
	if a.Kind == VTNull {
		return b
	}
	if b.Kind == VTNull {
		return a
	}
	if a.Kind != VTReference || b.Kind != VTReference {
		// Category mismatch: verifier guarantees this never happens for
		// valid bytecode. Fall back to Top so assertions in dataflow catch
		// it rather than silently misclassifying.
		return ReferenceType{Kind: VTTop}
	}
	if resolver != nil {
		if resolver.IsSubtypeOf(a.Class, b.Class) {
			return b
		}
		if resolver.IsSubtypeOf(b.Class, a.Class) {
			return a
		}
	}
	return ReferenceType{Kind: VTReference, Class: "java/lang/Object"}
}

// Descriptor is a parsed JVM method or field descriptor.
type Descriptor struct {
	Params []ReferenceType
	Return *ReferenceType // nil for void
}

// MethodRef identifies a method or constructor by owner, name and
// descriptor — the unit of identity for TaskKey's method reference
// (spec.md §3 PaintingTask, §4.5 TaskKey).
type MethodRef struct {
	Class      ClassName
	Name       string
	Descriptor string
}

func (m MethodRef) String() string {
	return string(m.Class) + "." + m.Name + m.Descriptor
}

// FieldRef identifies a field by owner, name and descriptor.
type FieldRef struct {
	Class      ClassName
	Name       string
	Descriptor string
}

func (f FieldRef) String() string {
	return string(f.Class) + "." + f.Name + ":" + f.Descriptor
}
