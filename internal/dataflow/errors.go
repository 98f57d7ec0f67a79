// Copyright (C) 2026 paintgraph contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dataflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for the per-block interpreter and inter-block stitching
// (spec.md §7 "Error kinds"). BadBytecode and UnsupportedOpcode are fatal
// for the task that raised them: the painting session abandons that task
// without retry (see internal/paint).
var (
	// ErrBadBytecode covers malformed descriptors and operands that cannot
	// be interpreted. Stack/frame size disagreements caught by the
	// debug-build assertions are ErrAssertionFailed instead.
	ErrBadBytecode = errors.New("bad bytecode")

	// ErrUnsupportedOpcode is raised for any opcode outside the
	// supported set (classfile.FamilyUnknown).
	ErrUnsupportedOpcode = errors.New("unsupported opcode")

	// ErrAssertionFailed marks a violated debug-build invariant (stack
	// size, local slot type compatibility). Spec.md §4.1 calls this "a
	// fatal internal error" — it is a programmer-bug assertion, not a
	// recoverable analysis gap, and is allowed to propagate out of
	// Analyze per spec.md §7.
	ErrAssertionFailed = errors.New("interpreter assertion failed")
)

// OpcodeError wraps ErrUnsupportedOpcode/ErrBadBytecode with the mnemonic
// and offset of the offending instruction, per spec.md §4.1 "Unknown
// opcodes fail with a distinguished error carrying the mnemonic."
type OpcodeError struct {
	Mnemonic string
	Offset   int
	Method   string
	err      error
}

func (e *OpcodeError) Error() string {
	return fmt.Sprintf("%s at %s+%d: %s", e.err, e.Method, e.Offset, e.Mnemonic)
}

func (e *OpcodeError) Unwrap() error { return e.err }

func newUnsupportedOpcode(method string, offset int, mnemonic string) error {
	return &OpcodeError{Mnemonic: mnemonic, Offset: offset, Method: method, err: ErrUnsupportedOpcode}
}

func newBadBytecode(method string, offset int, mnemonic string, reason string) error {
	return &OpcodeError{Mnemonic: mnemonic, Offset: offset, Method: method, err: fmt.Errorf("%w: %s", ErrBadBytecode, reason)}
}
