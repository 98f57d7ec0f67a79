// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataflow

import (
	"context"
	"fmt"

	"github.com/colorbrush/paintgraph/internal/classfile"
)

// dispatch applies one instruction's effect to st, per the opcode family
// table in spec.md §4.1.
func dispatch(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	op := inst.Opcode
	family := classfile.FamilyOf(op)

	switch family {
	case classfile.FamilyConstant:
		return doConstant(ctx, st, body, inst)
	case classfile.FamilyLoad:
		return doLoad(st, inst)
	case classfile.FamilyStore:
		return doStore(st, inst)
	case classfile.FamilyArithmetic:
		return doArithmetic(st, body, inst)
	case classfile.FamilyArrayLoad:
		return doArrayLoad(st, body, inst)
	case classfile.FamilyArrayStore:
		return doArrayStore(st, inst)
	case classfile.FamilyBranch:
		return doBranch(st, inst)
	case classfile.FamilyIinc:
		return doIinc(st, inst)
	case classfile.FamilyDup:
		return doDup(st, inst)
	case classfile.FamilyPop:
		return doPop(st, inst)
	case classfile.FamilyGetField, classfile.FamilyGetStatic:
		return doGetField(ctx, st, body, inst, family == classfile.FamilyGetStatic)
	case classfile.FamilyPutField, classfile.FamilyPutStatic:
		return doPutField(ctx, st, body, inst, family == classfile.FamilyPutStatic)
	case classfile.FamilyInvoke:
		return doInvoke(ctx, st, body, inst)
	case classfile.FamilyInvokeDynamic:
		return doInvokeDynamic(st, body, inst)
	case classfile.FamilyAthrow:
		return doAthrow(st)
	case classfile.FamilyReturn:
		return doReturn(st, inst)
	case classfile.FamilyNew:
		return doNew(ctx, st, body, inst)
	case classfile.FamilyNewarray:
		return doNewArray(st, inst)
	default:
		return newUnsupportedOpcode(st.method, inst.Offset, op.Mnemonic())
	}
}

// nextOffset finds the offset of the instruction following inst, used to
// read the verifier's post-state type for an operation's result (spec.md
// §4.1 "Type resolution rules").
func nextOffset(body *classfile.MethodBody, inst classfile.Instruction) int {
	for i, ins := range body.Instructions {
		if ins.Offset == inst.Offset && i+1 < len(body.Instructions) {
			return body.Instructions[i+1].Offset
		}
	}
	return inst.Offset + 1
}

// resultTypeFromFrame reads the verifier's top-of-stack type at the
// instruction following inst. If that slot is Top, the value occupies the
// slot below (a category-2 result), per spec.md §4.1.
func resultTypeFromFrame(st *interpState, body *classfile.MethodBody, inst classfile.Instruction) (classfile.VerificationType, error) {
	off := nextOffset(body, inst)
	frame, err := st.frames.FrameAt(off)
	if err != nil {
		return 0, fmt.Errorf("frame at +%d: %w", off, err)
	}
	top := frame.TopIndex()
	if top < 0 {
		return 0, fmt.Errorf("%w: no stack slot for result at +%d", ErrBadBytecode, off)
	}
	t := frame.Stack[top]
	if t == classfile.VTTop {
		if top == 0 {
			return 0, fmt.Errorf("%w: TOP result with no slot below at +%d", ErrBadBytecode, off)
		}
		return frame.Stack[top-1], nil
	}
	return t, nil
}

func doConstant(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	switch inst.Opcode {
	case classfile.AconstNull:
		st.push(FlyweightNull())
		return nil
	case classfile.IconstM1:
		st.push(st.emit(&DataNode{Label: "-1", Type: classfile.ReferenceType{Kind: classfile.VTInt}, Op: OpConstant}))
		return nil
	case classfile.Iconst0, classfile.Iconst1, classfile.Iconst2, classfile.Iconst3, classfile.Iconst4, classfile.Iconst5:
		v := int(inst.Opcode - classfile.Iconst0)
		n, _ := FlyweightInt(v)
		st.push(n)
		return nil
	case classfile.Lconst0:
		n, _ := FlyweightLong(0)
		st.push(n)
		return nil
	case classfile.Lconst1:
		n, _ := FlyweightLong(1)
		st.push(n)
		return nil
	case classfile.Fconst0, classfile.Fconst1, classfile.Fconst2:
		st.push(st.emit(&DataNode{Label: "float_const", Type: classfile.ReferenceType{Kind: classfile.VTFloat}, Op: OpConstant}))
		return nil
	case classfile.Dconst0, classfile.Dconst1:
		st.push(st.emit(&DataNode{Label: "double_const", Type: classfile.ReferenceType{Kind: classfile.VTDouble}, Op: OpConstant}))
		return nil
	case classfile.Bipush:
		st.push(st.emit(&DataNode{Label: "bipush", Type: classfile.ReferenceType{Kind: classfile.VTInt}, Op: OpConstant}))
		return nil
	case classfile.Sipush:
		// spec.md §9 Open Question (iii): the upstream "shoart" misspelling
		// was a label typo in the reference implementation; "short" is
		// used here directly.
		st.push(st.emit(&DataNode{Label: "short_push", Type: classfile.ReferenceType{Kind: classfile.VTInt}, Op: OpConstant}))
		return nil
	case classfile.Ldc, classfile.LdcW:
		return doLdc(ctx, st, inst, false)
	case classfile.Ldc2W:
		return doLdc(ctx, st, inst, true)
	default:
		return newUnsupportedOpcode(st.method, inst.Offset, inst.Opcode.Mnemonic())
	}
}

func doLdc(ctx context.Context, st *interpState, inst classfile.Instruction, wide bool) error {
	index, err := constantPoolIndex(inst, wide)
	if err != nil {
		return newBadBytecode(st.method, inst.Offset, inst.Opcode.Mnemonic(), err.Error())
	}
	cv, err := st.resolver.ResolveConstant(ctx, index)
	if err != nil {
		return fmt.Errorf("resolve constant at %s+%d: %w", st.method, inst.Offset, err)
	}
	label := "ldc"
	if cv.Class != "" {
		label = string(cv.Class)
	}
	st.push(st.emit(&DataNode{Label: label, Type: cv.Type, Op: OpConstant}))
	return nil
}

// constantPoolIndex decodes the u16 constant-pool index operand.
//
// LDC2_W (spec.md §9 Open Question (i)): the index is read as
// u16bitAt(index+1) relative to the instruction's operand start, i.e. the
// two bytes immediately after the opcode — NOT "utf8Info(index)" keyed by
// the instruction offset, which was the latent bug the spec calls out.
// LDC uses a single unsigned byte operand instead of a u16.
func constantPoolIndex(inst classfile.Instruction, wide bool) (uint16, error) {
	if inst.Opcode == classfile.Ldc {
		if len(inst.Operand) < 1 {
			return 0, fmt.Errorf("ldc operand too short")
		}
		return uint16(inst.Operand[0]), nil
	}
	if len(inst.Operand) < 2 {
		return 0, fmt.Errorf("%s operand too short", inst.Opcode.Mnemonic())
	}
	_ = wide
	return uint16(inst.Operand[0])<<8 | uint16(inst.Operand[1]), nil
}

func loadSlot(inst classfile.Instruction) int {
	switch inst.Opcode {
	case classfile.Iload, classfile.Lload, classfile.Fload, classfile.Dload, classfile.Aload,
		classfile.Istore, classfile.Lstore, classfile.Fstore, classfile.Dstore, classfile.Astore:
		if len(inst.Operand) >= 1 {
			return int(inst.Operand[0])
		}
		return 0
	}
	// ?LOAD_n / ?STORE_n variants: slot is encoded in the opcode itself,
	// arithmetic on the opcode index per spec.md §9 "Opcode dispatch".
	switch {
	case inst.Opcode >= classfile.Iload0 && inst.Opcode <= classfile.Iload3:
		return int(inst.Opcode - classfile.Iload0)
	case inst.Opcode >= classfile.Lload0 && inst.Opcode <= classfile.Lload3:
		return int(inst.Opcode - classfile.Lload0)
	case inst.Opcode >= classfile.Fload0 && inst.Opcode <= classfile.Fload3:
		return int(inst.Opcode - classfile.Fload0)
	case inst.Opcode >= classfile.Dload0 && inst.Opcode <= classfile.Dload3:
		return int(inst.Opcode - classfile.Dload0)
	case inst.Opcode >= classfile.Aload0 && inst.Opcode <= classfile.Aload3:
		return int(inst.Opcode - classfile.Aload0)
	case inst.Opcode >= classfile.Istore0 && inst.Opcode <= classfile.Istore3:
		return int(inst.Opcode - classfile.Istore0)
	case inst.Opcode >= classfile.Lstore0 && inst.Opcode <= classfile.Lstore3:
		return int(inst.Opcode - classfile.Lstore0)
	case inst.Opcode >= classfile.Fstore0 && inst.Opcode <= classfile.Fstore3:
		return int(inst.Opcode - classfile.Fstore0)
	case inst.Opcode >= classfile.Dstore0 && inst.Opcode <= classfile.Dstore3:
		return int(inst.Opcode - classfile.Dstore0)
	case inst.Opcode >= classfile.Astore0 && inst.Opcode <= classfile.Astore3:
		return int(inst.Opcode - classfile.Astore0)
	}
	return 0
}

func doLoad(st *interpState, inst classfile.Instruction) error {
	slot := loadSlot(inst)
	if slot < 0 || slot >= len(st.locals) || st.locals[slot] == nil {
		return newBadBytecode(st.method, inst.Offset, inst.Opcode.Mnemonic(), "load from unassigned slot")
	}
	st.push(st.locals[slot])
	return nil
}

func doStore(st *interpState, inst classfile.Instruction) error {
	slot := loadSlot(inst)
	v, err := st.pop()
	if err != nil {
		return err
	}
	for slot >= len(st.locals) {
		st.locals = append(st.locals, nil)
	}
	st.locals[slot] = v
	return nil
}

// arithmeticArity returns how many operands the opcode pops. Unary ops
// (negation, widening/narrowing casts, arraylength, instanceof, checkcast)
// pop one; binary arithmetic/compare ops pop two.
func arithmeticArity(op classfile.Opcode) int {
	switch op {
	case classfile.Ineg, classfile.Lneg, classfile.Fneg, classfile.Dneg,
		classfile.I2l, classfile.I2f, classfile.I2d, classfile.L2i, classfile.L2f, classfile.L2d,
		classfile.F2i, classfile.F2l, classfile.F2d, classfile.D2i, classfile.D2l, classfile.D2f,
		classfile.I2b, classfile.I2c, classfile.I2s,
		classfile.Arraylength, classfile.Instanceof, classfile.Checkcast:
		return 1
	default:
		return 2
	}
}

func doArithmetic(st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	arity := arithmeticArity(inst.Opcode)
	ins, err := st.popN(arity)
	if err != nil {
		return err
	}
	resultKind, err := resultTypeFromFrame(st, body, inst)
	if err != nil {
		return err
	}
	op := OpArithmetic
	switch inst.Opcode {
	case classfile.Checkcast, classfile.I2l, classfile.I2f, classfile.I2d, classfile.L2f, classfile.L2d, classfile.F2d:
		op = OpCopy
	}
	st.push(st.emit(&DataNode{
		Label:  inst.Opcode.Mnemonic(),
		Type:   classfile.ReferenceType{Kind: resultKind},
		Op:     op,
		Inputs: ins,
	}))
	return nil
}

func doArrayLoad(st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	ins, err := st.popN(2) // arrayref, index
	if err != nil {
		return err
	}
	resultKind, err := resultTypeFromFrame(st, body, inst)
	if err != nil {
		return err
	}
	st.push(st.emit(&DataNode{
		Label:  inst.Opcode.Mnemonic(),
		Type:   classfile.ReferenceType{Kind: resultKind},
		Op:     OpArithmetic,
		Inputs: ins,
	}))
	return nil
}

func doArrayStore(st *interpState, inst classfile.Instruction) error {
	_, err := st.popN(3) // arrayref, index, value: no push
	return err
}

func doBranch(st *interpState, inst classfile.Instruction) error {
	// Branches pop their comparison operands and produce no node
	// (spec.md §4.1 table).
	switch inst.Opcode {
	case classfile.Goto:
		return nil
	case classfile.Ifeq, classfile.Ifne, classfile.Iflt, classfile.Ifge, classfile.Ifgt, classfile.Ifle,
		classfile.Ifnull, classfile.Ifnonnull:
		_, err := st.pop()
		return err
	default: // IF_?CMP*
		_, err := st.popN(2)
		return err
	}
}

func doIinc(st *interpState, inst classfile.Instruction) error {
	if len(inst.Operand) < 1 {
		return newBadBytecode(st.method, inst.Offset, "iinc", "missing slot operand")
	}
	slot := int(inst.Operand[0])
	if slot >= len(st.locals) || st.locals[slot] == nil {
		return newBadBytecode(st.method, inst.Offset, "iinc", "increment of unassigned slot")
	}
	n := st.emit(&DataNode{
		Label:  "iinc",
		Type:   classfile.ReferenceType{Kind: classfile.VTInt},
		Op:     OpIinc,
		Inputs: []*DataNode{st.locals[slot]},
	})
	st.locals[slot] = n
	return nil
}

func doDup(st *interpState, inst classfile.Instruction) error {
	switch inst.Opcode {
	case classfile.Dup:
		top := st.peek()
		if top == nil {
			return newBadBytecode(st.method, inst.Offset, "dup", "dup of empty stack")
		}
		st.push(top)
		return nil
	case classfile.DupX1:
		a, err := st.popN(2)
		if err != nil {
			return err
		}
		st.push(a[1])
		st.push(a[0])
		st.push(a[1])
		return nil
	case classfile.DupX2:
		a, err := st.popN(3)
		if err != nil {
			return err
		}
		st.push(a[2])
		st.push(a[0])
		st.push(a[1])
		st.push(a[2])
		return nil
	case classfile.Dup2:
		a, err := st.popN(2)
		if err != nil {
			return err
		}
		st.push(a[0])
		st.push(a[1])
		st.push(a[0])
		st.push(a[1])
		return nil
	case classfile.Dup2X1:
		a, err := st.popN(3)
		if err != nil {
			return err
		}
		st.push(a[1])
		st.push(a[2])
		st.push(a[0])
		st.push(a[1])
		st.push(a[2])
		return nil
	case classfile.Dup2X2:
		a, err := st.popN(4)
		if err != nil {
			return err
		}
		st.push(a[2])
		st.push(a[3])
		st.push(a[0])
		st.push(a[1])
		st.push(a[2])
		st.push(a[3])
		return nil
	case classfile.Swap:
		a, err := st.popN(2)
		if err != nil {
			return err
		}
		st.push(a[1])
		st.push(a[0])
		return nil
	}
	return newUnsupportedOpcode(st.method, inst.Offset, inst.Opcode.Mnemonic())
}

// doPop implements POP/POP2. Spec.md §9 Open Question (ii): POP2 permits
// popping either one category-2 value or two category-1 values — both
// behaviors are preserved here rather than picking one.
func doPop(st *interpState, inst classfile.Instruction) error {
	if inst.Opcode == classfile.Pop {
		_, err := st.pop()
		return err
	}
	top := st.peek()
	if top == nil {
		return newBadBytecode(st.method, inst.Offset, "pop2", "pop2 of empty stack")
	}
	if top.Type.Category() == 2 {
		_, err := st.pop()
		return err
	}
	_, err := st.popN(2)
	return err
}

func doGetField(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction, static bool) error {
	field, err := resolveFieldRef(ctx, st, inst)
	if err != nil {
		return err
	}
	var receiver *DataNode
	if !static {
		receiver, err = st.pop()
		if err != nil {
			return err
		}
	}
	resultKind, err := resultTypeFromFrame(st, body, inst)
	if err != nil {
		return err
	}
	n := &DataNode{
		Label: field.String(),
		Type:  classfile.ReferenceType{Kind: resultKind},
		Field: &field,
	}
	if static {
		n.Op = OpGetStatic
	} else {
		n.Op = OpGetField
		n.Inputs = []*DataNode{receiver}
	}
	st.push(st.emit(n))
	return nil
}

func doPutField(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction, static bool) error {
	field, err := resolveFieldRef(ctx, st, inst)
	if err != nil {
		return err
	}
	value, err := st.pop()
	if err != nil {
		return err
	}
	var receiver *DataNode
	if !static {
		receiver, err = st.pop()
		if err != nil {
			return err
		}
	}
	st.graph.PutFields = append(st.graph.PutFields, &PutFieldAccess{
		Field:    field,
		Receiver: receiver,
		Value:    value,
		Static:   static,
	})
	return nil
}

func resolveFieldRef(ctx context.Context, st *interpState, inst classfile.Instruction) (classfile.FieldRef, error) {
	index, err := constantPoolIndex(inst, true)
	if err != nil {
		return classfile.FieldRef{}, newBadBytecode(st.method, inst.Offset, inst.Opcode.Mnemonic(), err.Error())
	}
	field, err := st.resolver.ResolveFieldRef(ctx, index)
	if err != nil {
		return classfile.FieldRef{}, fmt.Errorf("resolve fieldref at %s+%d: %w", st.method, inst.Offset, err)
	}
	return field, nil
}

func doInvoke(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	target, paramTypes, resultType, err := resolveMethodRef(ctx, st, inst)
	if err != nil {
		return err
	}
	static := inst.Opcode == classfile.Invokestatic
	nParams := len(paramTypes)
	if !static {
		nParams++
	}
	params, err := st.popN(nParams)
	if err != nil {
		return err
	}

	inv := &Invocation{
		Target:  target,
		Params:  params,
		Virtual: inst.Opcode == classfile.Invokevirtual || inst.Opcode == classfile.Invokeinterface,
		Static:  static,
	}
	if resultType != nil {
		result := st.emit(&DataNode{
			Label:  target.String(),
			Type:   *resultType,
			Op:     OpInvocationResult,
			Inputs: params,
		})
		inv.Result = result
		st.push(result)
	}
	st.graph.Invocations = append(st.graph.Invocations, inv)
	return nil
}

func resolveMethodRef(ctx context.Context, st *interpState, inst classfile.Instruction) (classfile.MethodRef, []classfile.ReferenceType, *classfile.ReferenceType, error) {
	index, err := constantPoolIndex(inst, true)
	if err != nil {
		return classfile.MethodRef{}, nil, nil, newBadBytecode(st.method, inst.Offset, inst.Opcode.Mnemonic(), err.Error())
	}
	target, err := st.resolver.ResolveMethodRef(ctx, index)
	if err != nil {
		return classfile.MethodRef{}, nil, nil, fmt.Errorf("resolve methodref at %s+%d: %w", st.method, inst.Offset, err)
	}
	desc, err := classfile.ParseDescriptor(target.Descriptor)
	if err != nil {
		return classfile.MethodRef{}, nil, nil, newBadBytecode(st.method, inst.Offset, inst.Opcode.Mnemonic(), err.Error())
	}
	return target, desc.Params, desc.Return, nil
}

func doInvokeDynamic(st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	// InvokeDynamicBrush (spec.md §4.4) handles the coloring side; the
	// colorless graph still needs a result node when the call-site
	// descriptor is non-void. Descriptor decoding is provided by the
	// resolver; the node is synthesized with no resolved callee.
	resultKind, err := resultTypeFromFrame(st, body, inst)
	if err != nil {
		// Void invokedynamic call sites have no post-call stack slot to
		// read; that's expected, not an error.
		return nil
	}
	st.push(st.emit(&DataNode{
		Label: "invokedynamic",
		Type:  classfile.ReferenceType{Kind: resultKind},
		Op:    OpInvocationResult,
	}))
	return nil
}

func doAthrow(st *interpState) error {
	thrown, err := st.pop()
	if err != nil {
		return err
	}
	st.stack = st.stack[:0]
	st.push(thrown)
	return nil
}

func doReturn(st *interpState, inst classfile.Instruction) error {
	st.graph.HasReturn = true
	if inst.Opcode == classfile.Return {
		st.graph.Return = nil
		return nil
	}
	v, err := st.pop()
	if err != nil {
		return err
	}
	st.graph.Return = v
	return nil
}

func doNew(ctx context.Context, st *interpState, body *classfile.MethodBody, inst classfile.Instruction) error {
	if inst.Opcode == classfile.Anewarray {
		_, err := st.pop() // length
		if err != nil {
			return err
		}
	}
	resultKind, err := resultTypeFromFrame(st, body, inst)
	if err != nil {
		return err
	}
	_ = ctx
	st.push(st.emit(&DataNode{Label: inst.Opcode.Mnemonic(), Type: classfile.ReferenceType{Kind: resultKind}, Op: OpNew}))
	return nil
}

func doNewArray(st *interpState, inst classfile.Instruction) error {
	length, err := st.pop()
	if err != nil {
		return err
	}
	st.push(st.emit(&DataNode{
		Label:  "newarray",
		Type:   classfile.ReferenceType{Kind: classfile.VTReference},
		Op:     OpNewArray,
		Inputs: []*DataNode{length},
	}))
	return nil
}
