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
)

func animalHierarchy() ClassResolver {
	return NewJSONResolverFromClasses(map[ClassName]*jsonClass{
		"Animal": {},
		"Dog":    {Super: "Animal"},
		"Cat":    {Super: "Animal"},
	})
}

func TestLUBIdenticalTypesReturnSame(t *testing.T) {
	a := ReferenceType{Kind: VTReference, Class: "Dog"}
	got := LUB(nil, a, a)
	assert.Equal(t, a, got)
}

func TestLUBNullIsAbsorbedByReference(t *testing.T) {
	ref := ReferenceType{Kind: VTReference, Class: "Dog"}
	null := ReferenceType{Kind: VTNull}
	assert.Equal(t, ref, LUB(nil, null, ref))
	assert.Equal(t, ref, LUB(nil, ref, null))
}

func TestLUBSubtypeResolvesToAncestor(t *testing.T) {
	resolver := animalHierarchy()
	dog := ReferenceType{Kind: VTReference, Class: "Dog"}
	animal := ReferenceType{Kind: VTReference, Class: "Animal"}
	assert.Equal(t, animal, LUB(resolver, dog, animal))
	assert.Equal(t, animal, LUB(resolver, animal, dog))
}

func TestLUBUnrelatedReferencesFallBackToObject(t *testing.T) {
	resolver := animalHierarchy()
	dog := ReferenceType{Kind: VTReference, Class: "Dog"}
	cat := ReferenceType{Kind: VTReference, Class: "Cat"}
	got := LUB(resolver, dog, cat)
	assert.Equal(t, ReferenceType{Kind: VTReference, Class: "java/lang/Object"}, got)
}

func TestLUBCategoryMismatchFallsBackToTop(t *testing.T) {
	got := LUB(nil, ReferenceType{Kind: VTInt}, ReferenceType{Kind: VTLong})
	assert.Equal(t, ReferenceType{Kind: VTTop}, got)
}
