// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// JSONResolver is a reference ClassResolver backed by a flat JSON class
// pool dump rather than a real .class-file byte decoder. Decoding the JVM
// class file format (constant pool, attributes, StackMapTable) is the
// surrounding class-pool collaborator's job, explicitly kept outside this
// engine (spec.md §6 ClassResolver); JSONResolver exists so
// cmd/paintgraph and the package tests can drive the engine end-to-end
// without that collaborator attached. It implements ClassScopedConstants
// because, like a real class file, each class's constant-pool indices are
// only meaningful within that class.
type JSONResolver struct {
	classes map[ClassName]*jsonClass
}

type jsonClass struct {
	Super      ClassName                `json:"super"`
	Interfaces []ClassName              `json:"interfaces"`
	Fields     map[string]jsonField     `json:"fields"`
	Methods    map[string]*jsonMethod   `json:"methods"`
	Constants  map[string]jsonConstant  `json:"constants"`
	FieldRefs  map[string]jsonFieldRef  `json:"fieldrefs"`
	MethodRefs map[string]jsonMethodRef `json:"methodrefs"`
}

type jsonField struct {
	Static bool `json:"static"`
}

type jsonMethod struct {
	Static       bool              `json:"static"`
	Instructions []jsonInstruction `json:"instructions"`
	Blocks       []jsonBlock       `json:"blocks"`
	Frames       []jsonFrame       `json:"frames"`
}

type jsonInstruction struct {
	Offset  int    `json:"offset"`
	Opcode  int    `json:"opcode"`
	Operand []byte `json:"operand"`
}

type jsonBlock struct {
	ID    int   `json:"id"`
	Start int   `json:"start"`
	End   int   `json:"end"`
	Preds []int `json:"preds"`
	Succs []int `json:"succs"`
	Entry bool  `json:"entry"`
}

type jsonFrame struct {
	Offset int      `json:"offset"`
	Locals []string `json:"locals"`
	Stack  []string `json:"stack"`
}

type jsonConstant struct {
	Type  string    `json:"type"`
	Class ClassName `json:"class"`
}

type jsonFieldRef struct {
	Class      ClassName `json:"class"`
	Name       string    `json:"name"`
	Descriptor string    `json:"descriptor"`
}

type jsonMethodRef struct {
	Class      ClassName `json:"class"`
	Name       string    `json:"name"`
	Descriptor string    `json:"descriptor"`
}

// NewJSONResolver loads a class pool dump from path.
func NewJSONResolver(path string) (*JSONResolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read class pool %q: %w", path, err)
	}
	var classes map[ClassName]*jsonClass
	if err := json.Unmarshal(raw, &classes); err != nil {
		return nil, fmt.Errorf("parse class pool %q: %w", path, err)
	}
	return &JSONResolver{classes: classes}, nil
}

// NewJSONResolverFromClasses builds a resolver directly from a decoded
// class map, used by tests that construct a class pool in Go rather than
// loading it from disk.
func NewJSONResolverFromClasses(classes map[ClassName]*jsonClass) *JSONResolver {
	return &JSONResolver{classes: classes}
}

func (r *JSONResolver) LoadClass(_ context.Context, name ClassName) (ClassHandle, error) {
	c, ok := r.classes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	return &jsonClassHandle{name: name, class: c}, nil
}

func (r *JSONResolver) GetField(_ context.Context, class ClassName, name, descriptor string) (FieldHandle, error) {
	for cur := class; cur != ""; {
		c, ok := r.classes[cur]
		if !ok {
			break
		}
		if f, ok := c.Fields[name+":"+descriptor]; ok {
			return &jsonFieldHandle{owner: cur, name: name, descriptor: descriptor, static: f.Static}, nil
		}
		cur = c.Super
	}
	return nil, fmt.Errorf("%w: %s.%s:%s", ErrFieldNotFound, class, name, descriptor)
}

func (r *JSONResolver) GetMethod(_ context.Context, class ClassName, name, descriptor string) (MethodHandle, error) {
	for cur := class; cur != ""; {
		c, ok := r.classes[cur]
		if !ok {
			break
		}
		if m, ok := c.Methods[name+":"+descriptor]; ok {
			return &jsonMethodHandle{owner: cur, name: name, descriptor: descriptor, method: m}, nil
		}
		cur = c.Super
	}
	return nil, fmt.Errorf("%w: %s.%s%s", ErrMethodNotFound, class, name, descriptor)
}

func (r *JSONResolver) GetConstructor(_ context.Context, class ClassName, descriptor string) (MethodHandle, error) {
	c, ok := r.classes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	m, ok := c.Methods["<init>:"+descriptor]
	if !ok {
		return nil, fmt.Errorf("%w: %s.<init>%s", ErrMethodNotFound, class, descriptor)
	}
	return &jsonMethodHandle{owner: class, name: "<init>", descriptor: descriptor, method: m}, nil
}

func (r *JSONResolver) IsSubtypeOf(sub, super ClassName) bool {
	if sub == super {
		return true
	}
	seen := map[ClassName]bool{}
	var walk func(ClassName) bool
	walk = func(cur ClassName) bool {
		if cur == "" || seen[cur] {
			return false
		}
		seen[cur] = true
		c, ok := r.classes[cur]
		if !ok {
			return false
		}
		if c.Super == super {
			return true
		}
		for _, iface := range c.Interfaces {
			if iface == super || walk(iface) {
				return true
			}
		}
		return walk(c.Super)
	}
	return walk(sub)
}

// ResolveConstant, ResolveFieldRef, and ResolveMethodRef exist only to
// satisfy ClassResolver and always return an error: an index alone does
// not say which class's pool to read. Callers go through ScopeToClass,
// which routes to the *In variants below via ClassScopedConstants.
func (r *JSONResolver) ResolveConstant(_ context.Context, _ uint16) (ConstantValue, error) {
	return ConstantValue{}, fmt.Errorf("%w: JSONResolver constants are per-class; use classfile.ScopeToClass", ErrBadConstantPoolTag)
}

func (r *JSONResolver) ResolveFieldRef(_ context.Context, _ uint16) (FieldRef, error) {
	return FieldRef{}, fmt.Errorf("%w: JSONResolver fieldrefs are per-class; use classfile.ScopeToClass", ErrBadDescriptor)
}

func (r *JSONResolver) ResolveMethodRef(_ context.Context, _ uint16) (MethodRef, error) {
	return MethodRef{}, fmt.Errorf("%w: JSONResolver methodrefs are per-class; use classfile.ScopeToClass", ErrBadDescriptor)
}

func (r *JSONResolver) ResolveConstantIn(_ context.Context, class ClassName, index uint16) (ConstantValue, error) {
	c, ok := r.classes[class]
	if !ok {
		return ConstantValue{}, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	entry, ok := c.Constants[fmt.Sprint(index)]
	if !ok {
		return ConstantValue{}, fmt.Errorf("%w: %s constant index %d", ErrBadConstantPoolTag, class, index)
	}
	return ConstantValue{Type: ReferenceType{Kind: parseVerificationType(entry.Type), Class: entry.Class}, Class: entry.Class}, nil
}

func (r *JSONResolver) ResolveFieldRefIn(_ context.Context, class ClassName, index uint16) (FieldRef, error) {
	c, ok := r.classes[class]
	if !ok {
		return FieldRef{}, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	entry, ok := c.FieldRefs[fmt.Sprint(index)]
	if !ok {
		return FieldRef{}, fmt.Errorf("%w: %s fieldref index %d", ErrBadDescriptor, class, index)
	}
	return FieldRef{Class: entry.Class, Name: entry.Name, Descriptor: entry.Descriptor}, nil
}

func (r *JSONResolver) ResolveMethodRefIn(_ context.Context, class ClassName, index uint16) (MethodRef, error) {
	c, ok := r.classes[class]
	if !ok {
		return MethodRef{}, fmt.Errorf("%w: %s", ErrClassNotFound, class)
	}
	entry, ok := c.MethodRefs[fmt.Sprint(index)]
	if !ok {
		return MethodRef{}, fmt.Errorf("%w: %s methodref index %d", ErrBadDescriptor, class, index)
	}
	return MethodRef{Class: entry.Class, Name: entry.Name, Descriptor: entry.Descriptor}, nil
}

// jsonClassHandle, jsonFieldHandle, jsonMethodHandle implement the
// classfile.*Handle interfaces over a decoded jsonClass/jsonMethod.
type jsonClassHandle struct {
	name  ClassName
	class *jsonClass
}

func (h *jsonClassHandle) Name() ClassName   { return h.name }
func (h *jsonClassHandle) IsInterface() bool { return false }

type jsonFieldHandle struct {
	owner      ClassName
	name       string
	descriptor string
	static     bool
}

func (h *jsonFieldHandle) Owner() ClassName   { return h.owner }
func (h *jsonFieldHandle) Name() string       { return h.name }
func (h *jsonFieldHandle) Descriptor() string { return h.descriptor }
func (h *jsonFieldHandle) IsStatic() bool     { return h.static }

type jsonMethodHandle struct {
	owner      ClassName
	name       string
	descriptor string
	method     *jsonMethod
}

func (h *jsonMethodHandle) Owner() ClassName   { return h.owner }
func (h *jsonMethodHandle) Name() string       { return h.name }
func (h *jsonMethodHandle) Descriptor() string { return h.descriptor }
func (h *jsonMethodHandle) IsStatic() bool     { return h.method.Static }

func (h *jsonMethodHandle) Code(_ context.Context) (*MethodBody, error) {
	if len(h.method.Instructions) == 0 {
		return nil, ErrEmptyMethod
	}
	instrs := make([]Instruction, len(h.method.Instructions))
	for i, in := range h.method.Instructions {
		instrs[i] = Instruction{Offset: in.Offset, Opcode: Opcode(in.Opcode), Operand: in.Operand}
	}
	blocks := make([]*BasicBlock, len(h.method.Blocks))
	for i, b := range h.method.Blocks {
		blocks[i] = &BasicBlock{
			ID: b.ID, StartOffset: b.Start, EndOffset: b.End,
			Predecessors: b.Preds, Successors: b.Succs, IsEntry: b.Entry,
		}
	}
	return &MethodBody{
		Ref:          MethodRef{Class: h.owner, Name: h.name, Descriptor: h.descriptor},
		Instructions: instrs,
		Blocks:       blocks,
		Frames:       &jsonFrames{method: h.method},
	}, nil
}

// jsonFrames implements VerifierFrames by linear scan over the method's
// declared frames (fine for the small fixtures this resolver serves).
type jsonFrames struct {
	method *jsonMethod
}

func (f *jsonFrames) FrameAt(offset int) (Frame, error) {
	for _, jf := range f.method.Frames {
		if jf.Offset == offset {
			return Frame{Locals: decodeVerificationTypes(jf.Locals), Stack: decodeVerificationTypes(jf.Stack)}, nil
		}
	}
	return Frame{}, fmt.Errorf("%w: no verifier frame at offset %d", ErrBadDescriptor, offset)
}

func decodeVerificationTypes(names []string) []VerificationType {
	out := make([]VerificationType, len(names))
	for i, n := range names {
		out[i] = parseVerificationType(n)
	}
	return out
}

func parseVerificationType(s string) VerificationType {
	switch s {
	case "int":
		return VTInt
	case "long":
		return VTLong
	case "float":
		return VTFloat
	case "double":
		return VTDouble
	case "null":
		return VTNull
	case "uninitialized":
		return VTUninitialized
	case "reference":
		return VTReference
	default:
		return VTTop
	}
}
