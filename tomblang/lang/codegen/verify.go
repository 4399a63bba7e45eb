// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package codegen includes bytecode verification.
//
// The verifier performs Move-inspired bytecode-level safety checks on the
// assembled byte stream (§4.7), the same way the donor's own verifier
// walked its fixed-width instruction words — except here each opcode's
// operand shape is read from a signature table rather than assumed from a
// constant stride, since §6 instructions are variable length.
package codegen

import (
	"fmt"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
)

// VerifyError describes a bytecode verification failure.
type VerifyError struct {
	Offset  int
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at offset %d: %s", e.Offset, e.Message)
}

// argKind tags one operand slot in an opcode's fixed signature.
type argKind int

const (
	argReg argKind = iota
	argByte
	argVarint
	argBytes
	argJump
)

// signatures gives the operand-kind sequence codegen always emits for each
// opcode. The wire format carries no self-describing tag per operand, so a
// byte-stream reader — the verifier here, and the VM itself — must already
// know this shape to walk the stream at all.
var signatures = map[assemble.Opcode][]argKind{
	assemble.OpAdd:      {argReg, argReg, argReg},
	assemble.OpSub:      {argReg, argReg, argReg},
	assemble.OpMul:      {argReg, argReg, argReg},
	assemble.OpDiv:      {argReg, argReg, argReg},
	assemble.OpMod:      {argReg, argReg, argReg},
	assemble.OpNeg:      {argReg, argReg},
	assemble.OpAnd:      {argReg, argReg, argReg},
	assemble.OpOr:       {argReg, argReg, argReg},
	assemble.OpXor:      {argReg, argReg, argReg},
	assemble.OpNot:      {argReg, argReg},
	assemble.OpShl:      {argReg, argReg, argReg},
	assemble.OpShr:      {argReg, argReg, argReg},
	assemble.OpEqual:    {argReg, argReg, argReg},
	assemble.OpNeq:      {argReg, argReg, argReg},
	assemble.OpLt:       {argReg, argReg, argReg},
	assemble.OpLte:      {argReg, argReg, argReg},
	assemble.OpGt:       {argReg, argReg, argReg},
	assemble.OpGte:      {argReg, argReg, argReg},
	assemble.OpLoad:     {argReg, argBytes},
	assemble.OpCopy:     {argReg, argReg},
	assemble.OpJmp:      {argJump},
	assemble.OpJmpIf:    {argReg, argJump},
	assemble.OpJmpNot:   {argReg, argJump},
	assemble.OpCall:     {argJump},
	assemble.OpRet:      {},
	assemble.OpHalt:     {},
	assemble.OpPush:     {argReg},
	assemble.OpPop:      {argReg},
	assemble.OpExtCall:  {argReg},
	assemble.OpCtx:      {argReg, argReg},
	assemble.OpSwitch:   {argReg},
	assemble.OpCast:     {argReg, argReg},
	assemble.OpThrow:    {argReg},
	assemble.OpArrayNew: {argReg, argVarint},
	assemble.OpArrayGet: {argReg, argReg, argReg},
	assemble.OpArraySet: {argReg, argReg, argReg},
	assemble.OpArrayLen: {argReg, argReg},
}

func isTerminator(op assemble.Opcode) bool {
	switch op {
	case assemble.OpRet, assemble.OpHalt, assemble.OpJmp, assemble.OpThrow:
		return true
	default:
		return false
	}
}

// readVarint decodes a 7-bit LEB128 value starting at off, returning the
// value, the number of bytes consumed, and whether the stream ran out
// before a terminating byte was found.
func readVarint(code []byte, off int) (int64, int, bool) {
	var v uint64
	shift := uint(0)
	n := 0
	for {
		if off+n >= len(code) {
			return 0, 0, false
		}
		b := code[off+n]
		v |= uint64(b&0x7f) << shift
		n++
		if b&0x80 == 0 {
			return int64(v), n, true
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, false
		}
	}
}

// Verify walks an assembled byte stream instruction by instruction,
// checking:
//  1. every opcode byte names a known instruction
//  2. every instruction's declared operands fit within the stream
//  3. every jump target (JMP/JMPIF/JMPNOT/CALL) lands on an instruction
//     boundary rather than mid-instruction or out of bounds
//  4. every register index referenced fits the allocator's bank
//  5. the stream ends with a terminator (RET, HALT, JMP, or THROW)
func Verify(code []byte) []VerifyError {
	var errs []VerifyError
	if len(code) == 0 {
		return errs
	}

	boundaries := make(map[int]bool)
	offset := 0
	lastOp := assemble.Opcode(0)
	haveLast := false

	for offset < len(code) {
		boundaries[offset] = true
		start := offset
		op := assemble.Opcode(code[offset])
		sig, known := signatures[op]
		if !known {
			errs = append(errs, VerifyError{Offset: start, Message: fmt.Sprintf("unknown opcode: %d", op)})
			break
		}
		pos := offset + 1

		for _, kind := range sig {
			switch kind {
			case argReg:
				if pos >= len(code) {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: missing register operand"})
					return errs
				}
				reg := code[pos]
				if int(reg) >= regalloc.BankSize {
					errs = append(errs, VerifyError{Offset: start, Message: fmt.Sprintf("register %d out of bounds (bank size %d)", reg, regalloc.BankSize)})
				}
				pos++
			case argByte:
				if pos >= len(code) {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: missing byte operand"})
					return errs
				}
				pos++
			case argVarint:
				_, n, ok := readVarint(code, pos)
				if !ok {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: malformed varint operand"})
					return errs
				}
				pos += n
			case argBytes:
				length, n, ok := readVarint(code, pos)
				if !ok {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: malformed bytes-length prefix"})
					return errs
				}
				pos += n
				if length < 0 || pos+int(length) > len(code) {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: bytes payload exceeds stream"})
					return errs
				}
				pos += int(length)
			case argJump:
				if pos+2 > len(code) {
					errs = append(errs, VerifyError{Offset: start, Message: "truncated instruction: missing jump target"})
					return errs
				}
				target := int(code[pos]) | int(code[pos+1])<<8
				if target < 0 || target >= len(code) {
					errs = append(errs, VerifyError{Offset: start, Message: fmt.Sprintf("jump target %d out of bounds", target)})
				}
				pos += 2
			}
		}

		offset = pos
		lastOp = op
		haveLast = true
	}

	// Jump targets must land on an instruction boundary; the pass above
	// collects boundaries as it walks, so resolve forward/backward targets
	// in a second pass now that the full boundary set is known.
	offset = 0
	for offset < len(code) {
		op := assemble.Opcode(code[offset])
		sig, known := signatures[op]
		if !known {
			break
		}
		pos := offset + 1
		for _, kind := range sig {
			switch kind {
			case argReg, argByte:
				pos++
			case argVarint:
				_, n, ok := readVarint(code, pos)
				if !ok {
					pos = len(code)
				} else {
					pos += n
				}
			case argBytes:
				length, n, ok := readVarint(code, pos)
				if !ok {
					pos = len(code)
				} else {
					pos += n + int(length)
				}
			case argJump:
				if pos+2 <= len(code) {
					target := int(code[pos]) | int(code[pos+1])<<8
					if target < len(code) && !boundaries[target] {
						errs = append(errs, VerifyError{Offset: offset, Message: fmt.Sprintf("jump target %d does not land on an instruction boundary", target)})
					}
				}
				pos += 2
			}
		}
		offset = pos
	}

	if haveLast && !isTerminator(lastOp) {
		errs = append(errs, VerifyError{Offset: len(code), Message: "script does not end with return, halt, jump, or throw"})
	}

	return errs
}
