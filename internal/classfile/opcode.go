// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classfile

// Opcode is a single bytecode instruction's numeric value, 0x00-0xFF.
type Opcode uint8

// Opcode values for the instruction families named in spec.md §4.1. Apart
// from Nop, which is listed for its mnemonic only, has no family, and is
// reported as UnsupportedOpcode, the list holds the opcodes the
// interpreter dispatches on; the VM defines others (jsr/ret,
// tableswitch/lookupswitch, monitor enter/exit) that also fall through to
// UnsupportedOpcode.
const (
	Nop        Opcode = 0x00
	AconstNull Opcode = 0x01
	IconstM1   Opcode = 0x02
	Iconst0    Opcode = 0x03
	Iconst1    Opcode = 0x04
	Iconst2    Opcode = 0x05
	Iconst3    Opcode = 0x06
	Iconst4    Opcode = 0x07
	Iconst5    Opcode = 0x08
	Lconst0    Opcode = 0x09
	Lconst1    Opcode = 0x0A
	Fconst0    Opcode = 0x0B
	Fconst1    Opcode = 0x0C
	Fconst2    Opcode = 0x0D
	Dconst0    Opcode = 0x0E
	Dconst1    Opcode = 0x0F
	Bipush     Opcode = 0x10
	Sipush     Opcode = 0x11
	Ldc        Opcode = 0x12
	LdcW       Opcode = 0x13
	Ldc2W      Opcode = 0x14

	Iload  Opcode = 0x15
	Lload  Opcode = 0x16
	Fload  Opcode = 0x17
	Dload  Opcode = 0x18
	Aload  Opcode = 0x19
	Iload0 Opcode = 0x1A
	Iload1 Opcode = 0x1B
	Iload2 Opcode = 0x1C
	Iload3 Opcode = 0x1D
	Lload0 Opcode = 0x1E
	Lload1 Opcode = 0x1F
	Lload2 Opcode = 0x20
	Lload3 Opcode = 0x21
	Fload0 Opcode = 0x22
	Fload1 Opcode = 0x23
	Fload2 Opcode = 0x24
	Fload3 Opcode = 0x25
	Dload0 Opcode = 0x26
	Dload1 Opcode = 0x27
	Dload2 Opcode = 0x28
	Dload3 Opcode = 0x29
	Aload0 Opcode = 0x2A
	Aload1 Opcode = 0x2B
	Aload2 Opcode = 0x2C
	Aload3 Opcode = 0x2D

	Iaload Opcode = 0x2E
	Laload Opcode = 0x2F
	Faload Opcode = 0x30
	Daload Opcode = 0x31
	Aaload Opcode = 0x32
	Baload Opcode = 0x33
	Caload Opcode = 0x34
	Saload Opcode = 0x35

	Istore  Opcode = 0x36
	Lstore  Opcode = 0x37
	Fstore  Opcode = 0x38
	Dstore  Opcode = 0x39
	Astore  Opcode = 0x3A
	Istore0 Opcode = 0x3B
	Istore1 Opcode = 0x3C
	Istore2 Opcode = 0x3D
	Istore3 Opcode = 0x3E
	Lstore0 Opcode = 0x3F
	Lstore1 Opcode = 0x40
	Lstore2 Opcode = 0x41
	Lstore3 Opcode = 0x42
	Fstore0 Opcode = 0x43
	Fstore1 Opcode = 0x44
	Fstore2 Opcode = 0x45
	Fstore3 Opcode = 0x46
	Dstore0 Opcode = 0x47
	Dstore1 Opcode = 0x48
	Dstore2 Opcode = 0x49
	Dstore3 Opcode = 0x4A
	Astore0 Opcode = 0x4B
	Astore1 Opcode = 0x4C
	Astore2 Opcode = 0x4D
	Astore3 Opcode = 0x4E

	Iastore Opcode = 0x4F
	Lastore Opcode = 0x50
	Fastore Opcode = 0x51
	Dastore Opcode = 0x52
	Aastore Opcode = 0x53
	Bastore Opcode = 0x54
	Castore Opcode = 0x55
	Sastore Opcode = 0x56

	Pop     Opcode = 0x57
	Pop2    Opcode = 0x58
	Dup     Opcode = 0x59
	DupX1   Opcode = 0x5A
	DupX2   Opcode = 0x5B
	Dup2    Opcode = 0x5C
	Dup2X1  Opcode = 0x5D
	Dup2X2  Opcode = 0x5E
	Swap    Opcode = 0x5F

	Iadd Opcode = 0x60
	Ladd Opcode = 0x61
	Fadd Opcode = 0x62
	Dadd Opcode = 0x63
	Isub Opcode = 0x64
	Lsub Opcode = 0x65
	Fsub Opcode = 0x66
	Dsub Opcode = 0x67
	Imul Opcode = 0x68
	Lmul Opcode = 0x69
	Fmul Opcode = 0x6A
	Dmul Opcode = 0x6B
	Idiv Opcode = 0x6C
	Ldiv Opcode = 0x6D
	Fdiv Opcode = 0x6E
	Ddiv Opcode = 0x6F
	Irem Opcode = 0x70
	Lrem Opcode = 0x71
	Frem Opcode = 0x72
	Drem Opcode = 0x73
	Ineg Opcode = 0x74
	Lneg Opcode = 0x75
	Fneg Opcode = 0x76
	Dneg Opcode = 0x77
	Ishl  Opcode = 0x78
	Lshl  Opcode = 0x79
	Ishr  Opcode = 0x7A
	Lshr  Opcode = 0x7B
	Iushr Opcode = 0x7C
	Lushr Opcode = 0x7D
	Iand  Opcode = 0x7E
	Land  Opcode = 0x7F
	Ior   Opcode = 0x80
	Lor   Opcode = 0x81
	Ixor  Opcode = 0x82
	Lxor  Opcode = 0x83
	Iinc  Opcode = 0x84

	I2l Opcode = 0x85
	I2f Opcode = 0x86
	I2d Opcode = 0x87
	L2i Opcode = 0x88
	L2f Opcode = 0x89
	L2d Opcode = 0x8A
	F2i Opcode = 0x8B
	F2l Opcode = 0x8C
	F2d Opcode = 0x8D
	D2i Opcode = 0x8E
	D2l Opcode = 0x8F
	D2f Opcode = 0x90
	I2b Opcode = 0x91
	I2c Opcode = 0x92
	I2s Opcode = 0x93

	Lcmp  Opcode = 0x94
	Fcmpl Opcode = 0x95
	Fcmpg Opcode = 0x96
	Dcmpl Opcode = 0x97
	Dcmpg Opcode = 0x98

	Ifeq      Opcode = 0x99
	Ifne      Opcode = 0x9A
	Iflt      Opcode = 0x9B
	Ifge      Opcode = 0x9C
	Ifgt      Opcode = 0x9D
	Ifle      Opcode = 0x9E
	IfIcmpeq  Opcode = 0x9F
	IfIcmpne  Opcode = 0xA0
	IfIcmplt  Opcode = 0xA1
	IfIcmpge  Opcode = 0xA2
	IfIcmpgt  Opcode = 0xA3
	IfIcmple  Opcode = 0xA4
	IfAcmpeq  Opcode = 0xA5
	IfAcmpne  Opcode = 0xA6
	Goto      Opcode = 0xA7

	Ireturn Opcode = 0xAC
	Lreturn Opcode = 0xAD
	Freturn Opcode = 0xAE
	Dreturn Opcode = 0xAF
	Areturn Opcode = 0xB0
	Return  Opcode = 0xB1

	Getstatic Opcode = 0xB2
	Putstatic Opcode = 0xB3
	Getfield  Opcode = 0xB4
	Putfield  Opcode = 0xB5

	Invokevirtual   Opcode = 0xB6
	Invokespecial   Opcode = 0xB7
	Invokestatic    Opcode = 0xB8
	Invokeinterface Opcode = 0xB9
	Invokedynamic   Opcode = 0xBA

	New          Opcode = 0xBB
	Newarray     Opcode = 0xBC
	Anewarray    Opcode = 0xBD
	Arraylength  Opcode = 0xBE
	Athrow       Opcode = 0xBF
	Checkcast    Opcode = 0xC0
	Instanceof   Opcode = 0xC1
	Ifnull       Opcode = 0xC6
	Ifnonnull    Opcode = 0xC7
)

// Family groups opcodes by the interpreter effect described in the
// spec.md §4.1 table. It exists purely for readable dispatch and
// diagnostics; it carries no behavior of its own.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyConstant
	FamilyLoad
	FamilyStore
	FamilyArithmetic
	FamilyArrayLoad
	FamilyArrayStore
	FamilyBranch
	FamilyIinc
	FamilyDup
	FamilyPop
	FamilyGetField
	FamilyGetStatic
	FamilyPutField
	FamilyPutStatic
	FamilyInvoke
	FamilyInvokeDynamic
	FamilyAthrow
	FamilyReturn
	FamilyNew
	FamilyNewarray
)

var familyOf = buildFamilyTable()

func buildFamilyTable() map[Opcode]Family {
	m := make(map[Opcode]Family, 256)
	set := func(f Family, ops ...Opcode) {
		for _, op := range ops {
			m[op] = f
		}
	}

	set(FamilyConstant, AconstNull, IconstM1, Iconst0, Iconst1, Iconst2, Iconst3, Iconst4,
		Iconst5, Lconst0, Lconst1, Fconst0, Fconst1, Fconst2, Dconst0, Dconst1,
		Bipush, Sipush, Ldc, LdcW, Ldc2W)

	set(FamilyLoad, Iload, Lload, Fload, Dload, Aload,
		Iload0, Iload1, Iload2, Iload3, Lload0, Lload1, Lload2, Lload3,
		Fload0, Fload1, Fload2, Fload3, Dload0, Dload1, Dload2, Dload3,
		Aload0, Aload1, Aload2, Aload3)

	set(FamilyStore, Istore, Lstore, Fstore, Dstore, Astore,
		Istore0, Istore1, Istore2, Istore3, Lstore0, Lstore1, Lstore2, Lstore3,
		Fstore0, Fstore1, Fstore2, Fstore3, Dstore0, Dstore1, Dstore2, Dstore3,
		Astore0, Astore1, Astore2, Astore3)

	set(FamilyArrayLoad, Iaload, Laload, Faload, Daload, Aaload, Baload, Caload, Saload)
	set(FamilyArrayStore, Iastore, Lastore, Fastore, Dastore, Aastore, Bastore, Castore, Sastore)

	set(FamilyArithmetic,
		Iadd, Ladd, Fadd, Dadd, Isub, Lsub, Fsub, Dsub, Imul, Lmul, Fmul, Dmul,
		Idiv, Ldiv, Fdiv, Ddiv, Irem, Lrem, Frem, Drem, Ineg, Lneg, Fneg, Dneg,
		Ishl, Lshl, Ishr, Lshr, Iushr, Lushr, Iand, Land, Ior, Lor, Ixor, Lxor,
		I2l, I2f, I2d, L2i, L2f, L2d, F2i, F2l, F2d, D2i, D2l, D2f, I2b, I2c, I2s,
		Lcmp, Fcmpl, Fcmpg, Dcmpl, Dcmpg, Arraylength, Instanceof, Checkcast)

	set(FamilyBranch, Ifeq, Ifne, Iflt, Ifge, Ifgt, Ifle,
		IfIcmpeq, IfIcmpne, IfIcmplt, IfIcmpge, IfIcmpgt, IfIcmple,
		IfAcmpeq, IfAcmpne, Goto, Ifnull, Ifnonnull)

	set(FamilyIinc, Iinc)
	set(FamilyDup, Dup, DupX1, DupX2, Dup2, Dup2X1, Dup2X2, Swap)
	set(FamilyPop, Pop, Pop2)
	set(FamilyGetField, Getfield)
	set(FamilyGetStatic, Getstatic)
	set(FamilyPutField, Putfield)
	set(FamilyPutStatic, Putstatic)
	set(FamilyInvoke, Invokevirtual, Invokespecial, Invokestatic, Invokeinterface)
	set(FamilyInvokeDynamic, Invokedynamic)
	set(FamilyAthrow, Athrow)
	set(FamilyReturn, Ireturn, Lreturn, Freturn, Dreturn, Areturn, Return)
	set(FamilyNew, New, Anewarray)
	set(FamilyNewarray, Newarray)

	return m
}

// FamilyOf classifies an opcode. FamilyUnknown means the interpreter must
// raise UnsupportedOpcode.
func FamilyOf(op Opcode) Family {
	if f, ok := familyOf[op]; ok {
		return f
	}
	return FamilyUnknown
}

// Mnemonic returns a human-readable name for diagnostics; used by
// UnsupportedOpcode/BadBytecode error messages.
func (op Opcode) Mnemonic() string {
	if name, ok := mnemonics[op]; ok {
		return name
	}
	return "UNKNOWN"
}

var mnemonics = map[Opcode]string{
	Nop: "nop", AconstNull: "aconst_null", IconstM1: "iconst_m1",
	Iconst0: "iconst_0", Iconst1: "iconst_1", Iconst2: "iconst_2",
	Iconst3: "iconst_3", Iconst4: "iconst_4", Iconst5: "iconst_5",
	Lconst0: "lconst_0", Lconst1: "lconst_1",
	Fconst0: "fconst_0", Fconst1: "fconst_1", Fconst2: "fconst_2",
	Dconst0: "dconst_0", Dconst1: "dconst_1",
	Bipush: "bipush", Sipush: "sipush", Ldc: "ldc", LdcW: "ldc_w", Ldc2W: "ldc2_w",
	Iload: "iload", Lload: "lload", Fload: "fload", Dload: "dload", Aload: "aload",
	Iload0: "iload_0", Iload1: "iload_1", Iload2: "iload_2", Iload3: "iload_3",
	Lload0: "lload_0", Lload1: "lload_1", Lload2: "lload_2", Lload3: "lload_3",
	Fload0: "fload_0", Fload1: "fload_1", Fload2: "fload_2", Fload3: "fload_3",
	Dload0: "dload_0", Dload1: "dload_1", Dload2: "dload_2", Dload3: "dload_3",
	Aload0: "aload_0", Aload1: "aload_1", Aload2: "aload_2", Aload3: "aload_3",
	Istore: "istore", Lstore: "lstore", Fstore: "fstore", Dstore: "dstore", Astore: "astore",
	Istore0: "istore_0", Istore1: "istore_1", Istore2: "istore_2", Istore3: "istore_3",
	Lstore0: "lstore_0", Lstore1: "lstore_1", Lstore2: "lstore_2", Lstore3: "lstore_3",
	Fstore0: "fstore_0", Fstore1: "fstore_1", Fstore2: "fstore_2", Fstore3: "fstore_3",
	Dstore0: "dstore_0", Dstore1: "dstore_1", Dstore2: "dstore_2", Dstore3: "dstore_3",
	Astore0: "astore_0", Astore1: "astore_1", Astore2: "astore_2", Astore3: "astore_3",
	Iaload: "iaload", Laload: "laload", Faload: "faload", Daload: "daload",
	Aaload: "aaload", Baload: "baload", Caload: "caload", Saload: "saload",
	Iastore: "iastore", Lastore: "lastore", Fastore: "fastore", Dastore: "dastore",
	Aastore: "aastore", Bastore: "bastore", Castore: "castore", Sastore: "sastore",
	Pop: "pop", Pop2: "pop2", Dup: "dup", DupX1: "dup_x1", DupX2: "dup_x2",
	Dup2: "dup2", Dup2X1: "dup2_x1", Dup2X2: "dup2_x2", Swap: "swap",
	Iadd: "iadd", Ladd: "ladd", Fadd: "fadd", Dadd: "dadd",
	Isub: "isub", Lsub: "lsub", Fsub: "fsub", Dsub: "dsub",
	Imul: "imul", Lmul: "lmul", Fmul: "fmul", Dmul: "dmul",
	Idiv: "idiv", Ldiv: "ldiv", Fdiv: "fdiv", Ddiv: "ddiv",
	Irem: "irem", Lrem: "lrem", Frem: "frem", Drem: "drem",
	Ineg: "ineg", Lneg: "lneg", Fneg: "fneg", Dneg: "dneg",
	Ishl: "ishl", Lshl: "lshl", Ishr: "ishr", Lshr: "lshr",
	Iushr: "iushr", Lushr: "lushr",
	Iand: "iand", Land: "land", Ior: "ior", Lor: "lor", Ixor: "ixor", Lxor: "lxor",
	Iinc: "iinc",
	I2l:  "i2l", I2f: "i2f", I2d: "i2d", L2i: "l2i", L2f: "l2f", L2d: "l2d",
	F2i: "f2i", F2l: "f2l", F2d: "f2d", D2i: "d2i", D2l: "d2l", D2f: "d2f",
	I2b: "i2b", I2c: "i2c", I2s: "i2s",
	Lcmp: "lcmp", Fcmpl: "fcmpl", Fcmpg: "fcmpg", Dcmpl: "dcmpl", Dcmpg: "dcmpg",
	Ifeq: "ifeq", Ifne: "ifne", Iflt: "iflt", Ifge: "ifge", Ifgt: "ifgt", Ifle: "ifle",
	IfIcmpeq: "if_icmpeq", IfIcmpne: "if_icmpne", IfIcmplt: "if_icmplt",
	IfIcmpge: "if_icmpge", IfIcmpgt: "if_icmpgt", IfIcmple: "if_icmple",
	IfAcmpeq: "if_acmpeq", IfAcmpne: "if_acmpne",
	Goto: "goto",
	Ireturn: "ireturn", Lreturn: "lreturn", Freturn: "freturn", Dreturn: "dreturn",
	Areturn: "areturn", Return: "return",
	Getfield: "getfield", Getstatic: "getstatic", Putfield: "putfield", Putstatic: "putstatic",
	Invokevirtual: "invokevirtual", Invokespecial: "invokespecial",
	Invokestatic: "invokestatic", Invokeinterface: "invokeinterface", Invokedynamic: "invokedynamic",
	New: "new", Newarray: "newarray", Anewarray: "anewarray", Arraylength: "arraylength",
	Athrow: "athrow", Checkcast: "checkcast", Instanceof: "instanceof",
	Ifnull: "ifnull", Ifnonnull: "ifnonnull",
}
