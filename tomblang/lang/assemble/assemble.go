// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package assemble lowers a struct-based assembly IR into the binary
// instruction stream the VM consumes (§4.7). It is a two-pass assembler: the
// first pass measures each instruction's encoded length to build a label
// offset table, the second rewrites jump operands into absolute u16 offsets
// and packs every operand kind into its wire form (reg: 1 byte, byte: 1
// byte, varint: 7-bit LEB128, bytes/string: varint length + payload).
//
// The two-pass label-patch shape is grounded on the donor code generator's
// own label/patch bookkeeping (lang/codegen/codegen.go); the operand packing
// itself is new, since the donor's instruction format is a fixed 4-byte word
// and §6 requires variable-length encoding instead.
package assemble

import (
	"encoding/binary"

	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
)

// Opcode is the binary instruction code emitted into a script. Names follow
// the mnemonic spellings used in the code generator's lowering rules
// (EQUAL, RET, JMPNOT, ...), which is the compiler's own surface syntax for
// `-emit=asm` output; numeric values are assigned in the same order as the
// VM's opcode reference table so the two stay cross-indexable.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpEqual
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpLoad
	OpCopy
	OpJmp
	OpJmpIf
	OpJmpNot
	OpCall
	OpRet
	OpHalt
	OpPush
	OpPop
	OpExtCall
	OpCtx
	OpSwitch
	OpCast
	OpThrow
	OpArrayNew
	OpArrayGet
	OpArraySet
	OpArrayLen
	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpNeg: "NEG",
	OpAnd: "AND", OpOr: "OR", OpXor: "XOR", OpNot: "NOT", OpShl: "SHL", OpShr: "SHR",
	OpEqual: "EQUAL", OpNeq: "NEQ", OpLt: "LT", OpLte: "LTE", OpGt: "GT", OpGte: "GTE",
	OpLoad: "LOAD", OpCopy: "COPY",
	OpJmp: "JMP", OpJmpIf: "JMPIF", OpJmpNot: "JMPNOT",
	OpCall: "CALL", OpRet: "RET", OpHalt: "HALT",
	OpPush: "PUSH", OpPop: "POP",
	OpExtCall: "EXTCALL", OpCtx: "CTX", OpSwitch: "SWITCH",
	OpCast: "CAST", OpThrow: "THROW",
	OpArrayNew: "ARRAY_NEW", OpArrayGet: "ARRAY_GET", OpArraySet: "ARRAY_SET", OpArrayLen: "ARRAY_LEN",
}

func (op Opcode) String() string {
	if int(op) >= len(opcodeNames) {
		return "UNKNOWN"
	}
	return opcodeNames[op]
}

// OperandKind tags how an Operand is packed onto the wire.
type OperandKind int

const (
	KindReg OperandKind = iota
	KindByte
	KindVarint
	KindBytes
	KindJump
)

// Operand is one argument to an Instr. Exactly one of the fields is
// meaningful, selected by Kind.
type Operand struct {
	Kind  OperandKind
	Reg   regalloc.RegId
	Byte  byte
	Int   int64
	Bytes []byte
	// Label is the jump target name, used when Kind == KindJump.
	Label string
}

func RegOperand(r regalloc.RegId) Operand   { return Operand{Kind: KindReg, Reg: r} }
func ByteOperand(b byte) Operand            { return Operand{Kind: KindByte, Byte: b} }
func VarintOperand(v int64) Operand         { return Operand{Kind: KindVarint, Int: v} }
func BytesOperand(b []byte) Operand         { return Operand{Kind: KindBytes, Bytes: b} }
func StringOperand(s string) Operand        { return Operand{Kind: KindBytes, Bytes: []byte(s)} }
func JumpOperand(label string) Operand      { return Operand{Kind: KindJump, Label: label} }

// Instr is one assembly instruction. Label, if non-empty, names this
// instruction as a jump target — it carries no bytes of its own.
type Instr struct {
	Op      Opcode
	Args    []Operand
	Label   string
	Line    int // source line this instruction lowers, for // Line N: comments
}

// Program is the ordered instruction stream the code generator produces for
// one compiled script.
type Program struct {
	Instrs []Instr
}

// varintLen returns the number of bytes a 7-bit LEB128 encoding of v occupies.
func varintLen(v int64) int {
	u := uint64(v)
	n := 1
	for u >= 0x80 {
		u >>= 7
		n++
	}
	return n
}

func appendVarint(buf []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		buf = append(buf, byte(u&0x7f)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

// instrLen computes the encoded byte length of instr without emitting it.
func instrLen(instr Instr) int {
	n := 1 // opcode byte
	for _, a := range instr.Args {
		switch a.Kind {
		case KindReg, KindByte:
			n++
		case KindVarint:
			n += varintLen(a.Int)
		case KindBytes:
			n += varintLen(int64(len(a.Bytes))) + len(a.Bytes)
		case KindJump:
			n += 2 // u16 absolute offset
		}
	}
	return n
}

// Assemble runs the two-pass lowering described in §4.7, returning the
// binary script. Unknown jump targets are a fatal CompilerError.
func Assemble(prog *Program) ([]byte, error) {
	labels := make(map[string]int)
	offset := 0
	for _, instr := range prog.Instrs {
		if instr.Label != "" {
			labels[instr.Label] = offset
		}
		offset += instrLen(instr)
	}

	out := make([]byte, 0, offset)
	for _, instr := range prog.Instrs {
		out = append(out, byte(instr.Op))
		for _, a := range instr.Args {
			switch a.Kind {
			case KindReg:
				out = append(out, byte(a.Reg))
			case KindByte:
				out = append(out, a.Byte)
			case KindVarint:
				out = appendVarint(out, a.Int)
			case KindBytes:
				out = appendVarint(out, int64(len(a.Bytes)))
				out = append(out, a.Bytes...)
			case KindJump:
				target, ok := labels[a.Label]
				if !ok {
					return nil, &compiler.CompilerError{
						Phase:   compiler.PhaseAssemble,
						Message: "unknown label in jump target: " + a.Label,
					}
				}
				var buf [2]byte
				binary.LittleEndian.PutUint16(buf[:], uint16(target))
				out = append(out, buf[:]...)
			}
		}
	}
	return out, nil
}
