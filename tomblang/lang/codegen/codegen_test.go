// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/codegen"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
)

func generateSrc(t *testing.T, src string) *assemble.Program {
	t.Helper()
	prog, err := parser.Parse("test.tomb", src)
	require.NoError(t, err)
	ctx := compiler.NewCompileContext(nil, 0)
	el := elaborate.New(ctx, nil)
	require.NoError(t, el.Elaborate(prog))
	require.Len(t, prog.Modules, 1)

	gen := codegen.NewGenerator(el)
	out, err := gen.GenerateModule(prog.Modules[0])
	require.NoError(t, err)
	return out
}

func TestGenerateSimpleArithmeticMethod(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public add(a: number, b: number): number {
		local sum = a + b;
		return sum;
	}
}`)

	var sawAdd, sawRet bool
	for _, in := range out.Instrs {
		if in.Op == assemble.OpAdd {
			sawAdd = true
		}
		if in.Op == assemble.OpRet {
			sawRet = true
		}
	}
	require.True(t, sawAdd, "expected an ADD instruction")
	require.True(t, sawRet, "expected a RET instruction")

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateIfElseResolvesLabels(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public pick(n: number): number {
		if (n > 0) {
			return 1;
		} else {
			return 0;
		}
	}
}`)

	var sawJmpNot, sawJmp bool
	for _, in := range out.Instrs {
		switch in.Op {
		case assemble.OpJmpNot:
			sawJmpNot = true
		case assemble.OpJmp:
			sawJmp = true
		}
	}
	require.True(t, sawJmpNot)
	require.True(t, sawJmp)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateWhileLoopWithBreakAndContinue(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public run(n: number): number {
		local i = 0;
		while (i < n) {
			if (i == 3) {
				break;
			}
			i += 1;
			continue;
		}
		return i;
	}
}`)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateForLoop(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public sum(n: number): number {
		local total = 0;
		for (local i = 0; i < n; i += 1) {
			total += i;
		}
		return total;
	}
}`)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateSwitchChainsComparisons(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public classify(n: number): number {
		switch (n) {
		case 1:
			return 10;
		case 2:
			return 20;
		default:
			return 0;
		}
	}
}`)

	var equalCount int
	for _, in := range out.Instrs {
		if in.Op == assemble.OpEqual {
			equalCount++
		}
	}
	require.Equal(t, 2, equalCount)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateExtCallLibraryMethod(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public run(a: number, b: number): number {
		return Math.add(a, b);
	}
}`)

	var sawExtCall bool
	for _, in := range out.Instrs {
		if in.Op == assemble.OpExtCall {
			sawExtCall = true
		}
	}
	require.True(t, sawExtCall)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateLocalCallToSiblingMethod(t *testing.T) {
	out := generateSrc(t, `
contract C {
	public run(a: number): number {
		return this.helper(a);
	}
	private helper(a: number): number {
		return a;
	}
}`)

	var sawCall, sawPop bool
	for _, in := range out.Instrs {
		if in.Op == assemble.OpCall {
			sawCall = true
		}
		if in.Op == assemble.OpPop {
			sawPop = true
		}
	}
	require.True(t, sawCall)
	require.True(t, sawPop)

	bytes, err := assemble.Assemble(out)
	require.NoError(t, err)
	require.Empty(t, codegen.Verify(bytes))
}

func TestGenerateNoRegisterLeaksAtMethodExit(t *testing.T) {
	// generateSrc itself calls GenerateModule, which returns an error if
	// AssertNoLeaks fails for any method; reaching the assertions below
	// without require.NoError firing is the test.
	out := generateSrc(t, `
contract C {
	public run(a: number, b: number, c: number): number {
		local x = a + b;
		local y = x * c;
		if (y > 0) {
			local z = y - 1;
			return z;
		}
		return 0;
	}
}`)
	require.NotEmpty(t, out.Instrs)
}

func TestVerifyDetectsUnknownOpcode(t *testing.T) {
	errs := codegen.Verify([]byte{0xff})
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0].Message, "unknown opcode")
}

func TestVerifyDetectsTruncatedInstruction(t *testing.T) {
	// OpLoad with a register but no bytes-length prefix.
	errs := codegen.Verify([]byte{byte(assemble.OpLoad), 0x00})
	require.NotEmpty(t, errs)
}

func TestVerifyDetectsOutOfBoundsJumpTarget(t *testing.T) {
	prog := &assemble.Program{Instrs: []assemble.Instr{
		{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand("@missing")}, Label: "@missing"},
	}}
	bytes, err := assemble.Assemble(prog)
	require.NoError(t, err)
	// Corrupt the jump target to point past the end of the stream.
	bytes[1] = 0xff
	bytes[2] = 0xff
	errs := codegen.Verify(bytes)
	require.NotEmpty(t, errs)
}

func TestVerifyAcceptsEmptyStream(t *testing.T) {
	require.Empty(t, codegen.Verify(nil))
}
