// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package assemble_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
)

func TestAssembleSimpleArithmetic(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(0), assemble.VarintOperand(7)}},
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(1), assemble.VarintOperand(5)}},
		{Op: assemble.OpAdd, Args: []assemble.Operand{assemble.RegOperand(2), assemble.RegOperand(0), assemble.RegOperand(1)}},
		{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(2)}},
		{Op: assemble.OpRet},
	}}
	out, err := assemble.Assemble(prog)
	require.NoError(t, err)
	require.Equal(t, byte(assemble.OpLoad), out[0])
	require.Equal(t, byte(0), out[1])
	require.Equal(t, byte(7), out[2])
}

func TestAssembleJumpResolvesForwardLabel(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(0), assemble.VarintOperand(0)}},
		{Op: assemble.OpJmpNot, Args: []assemble.Operand{assemble.RegOperand(0), assemble.JumpOperand("@end")}},
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(1), assemble.VarintOperand(1)}},
		{Op: assemble.OpRet, Label: "@end"},
	}}
	out, err := assemble.Assemble(prog)
	require.NoError(t, err)

	// instr0: LOAD(1) + reg(1) + varint(1) = 3 bytes
	// instr1: JMPNOT(1) + reg(1) + u16(2) = 4 bytes, starts at offset 3
	// instr2: LOAD(1) + reg(1) + varint(1) = 3 bytes, starts at offset 7
	// instr3 (@end): RET, starts at offset 10
	target := binary.LittleEndian.Uint16(out[5:7])
	require.Equal(t, uint16(10), target)
}

func TestAssembleUnknownLabelFails(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand("@nowhere")}},
	}}
	_, err := assemble.Assemble(prog)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown label")
}

func TestAssembleStringOperandLengthPrefixed(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(0), assemble.StringOperand("math.add")}},
		{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(0)}},
	}}
	out, err := assemble.Assemble(prog)
	require.NoError(t, err)
	// opcode(1) + reg(1) + varint-len(1, value 8) + "math.add"(8)
	require.Equal(t, byte(8), out[2])
	require.Equal(t, "math.add", string(out[3:11]))
}

func TestOpcodeStringNames(t *testing.T) {
	require.Equal(t, "EQUAL", assemble.OpEqual.String())
	require.Equal(t, "JMPNOT", assemble.OpJmpNot.String())
	require.Equal(t, "RET", assemble.OpRet.String())
	require.Equal(t, "EXTCALL", assemble.OpExtCall.String())
}

func TestVarintMultiByte(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(0), assemble.VarintOperand(300)}},
	}}
	out, err := assemble.Assemble(prog)
	require.NoError(t, err)
	// 300 = 0b100101100 -> LEB128: 0xac 0x02
	require.Equal(t, byte(0xac), out[2])
	require.Equal(t, byte(0x02), out[3])
}

func TestRegisterOperandRoundTrip(t *testing.T) {
	r := regalloc.RegId(42)
	op := assemble.RegOperand(r)
	require.Equal(t, r, op.Reg)
}
