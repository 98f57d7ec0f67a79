// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import (
	"fmt"
	"strings"
)

// ParseDescriptor parses a JVM method descriptor, e.g.
// "(Ljava/lang/String;I)V", into its parameter and return types. This is
// pure descriptor-grammar parsing (spec.md §4.1 "Invocation return type is
// parsed from the method descriptor") — it does not consult the
// class-resolver, so it lives here as a standalone function rather than a
// ClassResolver method.
func ParseDescriptor(descriptor string) (Descriptor, error) {
	if len(descriptor) < 2 || descriptor[0] != '(' {
		return Descriptor{}, fmt.Errorf("%w: %q: missing '('", ErrBadDescriptor, descriptor)
	}
	closeIdx := strings.IndexByte(descriptor, ')')
	if closeIdx < 0 {
		return Descriptor{}, fmt.Errorf("%w: %q: missing ')'", ErrBadDescriptor, descriptor)
	}

	params, err := parseFieldTypes(descriptor[1:closeIdx])
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: params of %q: %w", ErrBadDescriptor, descriptor, err)
	}

	retStr := descriptor[closeIdx+1:]
	if retStr == "V" {
		return Descriptor{Params: params, Return: nil}, nil
	}
	retTypes, err := parseFieldTypes(retStr)
	if err != nil || len(retTypes) != 1 {
		return Descriptor{}, fmt.Errorf("%w: return of %q", ErrBadDescriptor, descriptor)
	}
	return Descriptor{Params: params, Return: &retTypes[0]}, nil
}

// parseFieldTypes parses a concatenation of JVM field-type descriptors.
func parseFieldTypes(s string) ([]ReferenceType, error) {
	var out []ReferenceType
	i := 0
	for i < len(s) {
		t, consumed, err := parseOneFieldType(s[i:])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		i += consumed
	}
	return out, nil
}

func parseOneFieldType(s string) (ReferenceType, int, error) {
	if len(s) == 0 {
		return ReferenceType{}, 0, fmt.Errorf("empty field type")
	}
	arrayDims := 0
	i := 0
	for i < len(s) && s[i] == '[' {
		arrayDims++
		i++
	}
	if i >= len(s) {
		return ReferenceType{}, 0, fmt.Errorf("dangling array marker")
	}

	switch s[i] {
	case 'I', 'F', 'D', 'J', 'Z', 'B', 'C', 'S':
		kind := primitiveKind(s[i])
		if arrayDims > 0 {
			return ReferenceType{Kind: VTReference, Class: ClassName(s[:i+1])}, i + 1, nil
		}
		return ReferenceType{Kind: kind}, i + 1, nil
	case 'L':
		end := strings.IndexByte(s[i:], ';')
		if end < 0 {
			return ReferenceType{}, 0, fmt.Errorf("unterminated class descriptor")
		}
		name := s[i+1 : i+end]
		return ReferenceType{Kind: VTReference, Class: ClassName(name)}, i + end + 1, nil
	default:
		return ReferenceType{}, 0, fmt.Errorf("unknown field type tag %q", s[i])
	}
}

func primitiveKind(tag byte) VerificationType {
	switch tag {
	case 'J':
		return VTLong
	case 'D':
		return VTDouble
	case 'F':
		return VTFloat
	default: // I, Z, B, C, S all collapse to int-like on the verifier lattice
		return VTInt
	}
}
