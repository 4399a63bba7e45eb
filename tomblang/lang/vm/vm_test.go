// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TombLang is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with TombLang. If not, see <http://www.gnu.org/licenses/>.

package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/codegen"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
	"github.com/tomblang/tomblang/tomblang/lang/vm"
)

// compileScript runs the full lexer->parser->elaborate->codegen->assemble
// pipeline over src, which must declare exactly one contract with exactly
// one method — so that the resulting script's byte offset 0 is that
// method's own @entry_ prologue and vm.Execute can run it directly, without
// this package needing a CALL-dispatch table of its own.
func compileScript(t *testing.T, src string) []byte {
	t.Helper()
	prog, err := parser.Parse("vmtest.tomb", src)
	require.NoError(t, err)

	ctx := compiler.NewCompileContext(nil, 0)
	el := elaborate.New(ctx, nil)
	require.NoError(t, el.Elaborate(prog))

	gen := codegen.NewGenerator(el)
	asmProg, err := gen.GenerateModule(prog.Modules[0])
	require.NoError(t, err)

	code, err := assemble.Assemble(asmProg)
	require.NoError(t, err)

	errs := codegen.Verify(code)
	require.Empty(t, errs, "compiled script failed verification")

	return code
}

func TestExecuteArithmetic(t *testing.T) {
	code := compileScript(t, `
contract C {
	public add(a: number, b: number): number {
		local sum = a + b;
		return sum;
	}
}`)
	out, err := vm.New().Execute(code, vm.NumberValue(2), vm.NumberValue(3))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(5)}, out)
}

func TestExecuteIfElseSign(t *testing.T) {
	code := compileScript(t, `
contract C {
	public sign(n: number): number {
		if (n > 0) {
			return 1;
		} else {
			return -1;
		}
	}
}`)
	pos, err := vm.New().Execute(code, vm.NumberValue(5))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(1)}, pos)

	neg, err := vm.New().Execute(code, vm.NumberValue(-5))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(-1)}, neg)
}

func TestExecuteSwitchDispatch(t *testing.T) {
	code := compileScript(t, `
contract C {
	public describe(n: number): number {
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
	for _, tc := range []struct {
		in, want int64
	}{
		{1, 10}, {2, 20}, {3, 0},
	} {
		out, err := vm.New().Execute(code, vm.NumberValue(tc.in))
		require.NoError(t, err)
		require.Equal(t, []vm.Value{vm.NumberValue(tc.want)}, out, "describe(%d)", tc.in)
	}
}

// TestExecuteSwitchCaseReturnSkipsTrailingJump exercises the same script as
// above but checks execution never falls through a case's own RET into the
// next case's bytecode — this is the end-to-end behavior
// generateSwitch's per-case `if !ret { JMP @end }` guards.
func TestExecuteSwitchCaseReturnSkipsTrailingJump(t *testing.T) {
	code := compileScript(t, `
contract C {
	public describe(n: number): number {
		switch (n) {
		case 1:
			return 111;
		case 2:
			return 222;
		}
		return 0;
	}
}`)
	out, err := vm.New().Execute(code, vm.NumberValue(1))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(111)}, out)
}

func TestExecuteForLoopAccumulation(t *testing.T) {
	code := compileScript(t, `
contract C {
	public sumTo(n: number): number {
		local total = 0;
		for (local i = 0; i < n; i = i + 1) {
			total = total + i;
		}
		return total;
	}
}`)
	out, err := vm.New().Execute(code, vm.NumberValue(5))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(0 + 1 + 2 + 3 + 4)}, out)
}

func TestExecuteMultiReturnVariadic(t *testing.T) {
	code := compileScript(t, `
contract C {
	public getStrings(): string* {
		return "hello";
		return "world";
	}
}`)
	out, err := vm.New().Execute(code)
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.StringValue("hello"), vm.StringValue("world")}, out)
}

func TestExecuteStringConcatWithNumberCast(t *testing.T) {
	code := compileScript(t, `
contract C {
	public greet(name: string, age: number): string {
		return "hi " + name + " " + age;
	}
}`)
	out, err := vm.New().Execute(code, vm.StringValue("ada"), vm.NumberValue(30))
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.StringValue("hi ada 30")}, out)
}

func TestExecuteArrayIndexRoundTrip(t *testing.T) {
	code := compileScript(t, `
contract C {
	public second(): number {
		local xs = {10, 20, 30};
		return xs[1];
	}
}`)
	out, err := vm.New().Execute(code)
	require.NoError(t, err)
	require.Equal(t, []vm.Value{vm.NumberValue(20)}, out)
}

func TestExecuteMathLibraryExtCalls(t *testing.T) {
	code := compileScript(t, `
contract C {
	public combine(a: number, b: number): number {
		local s = Math.sub(a, b);
		local m = Math.mul(s, 2);
		return Math.abs(m);
	}
}`)
	out, err := vm.New().Execute(code, vm.NumberValue(3), vm.NumberValue(10))
	require.NoError(t, err)
	// (3 - 10) * 2 = -14, abs = 14.
	require.Equal(t, []vm.Value{vm.NumberValue(14)}, out)
}

func TestExecuteMathDivisionByZeroTraps(t *testing.T) {
	code := compileScript(t, `
contract C {
	public run(a: number, b: number): number {
		return Math.div(a, b);
	}
}`)
	_, err := vm.New().Execute(code, vm.NumberValue(8), vm.NumberValue(0))
	require.Error(t, err)
	require.ErrorIs(t, err, vm.ErrTrap)
}

func TestExecuteCryptoSha3IsDeterministic(t *testing.T) {
	code := compileScript(t, `
contract C {
	public run(): hash {
		return Crypto.sha3(0x68656c6c6f);
	}
}`)
	out1, err := vm.New().Execute(code)
	require.NoError(t, err)
	out2, err := vm.New().Execute(code)
	require.NoError(t, err)
	require.Equal(t, out1, out2)
	require.Len(t, out1, 1)
	require.Equal(t, 64, len(out1[0].String()), "sha3-256 hex digest should be 64 hex chars")
}

func TestExecuteDivisionByZeroTraps(t *testing.T) {
	code := compileScript(t, `
contract C {
	public bad(a: number, b: number): number {
		return a / b;
	}
}`)
	_, err := vm.New().Execute(code, vm.NumberValue(1), vm.NumberValue(0))
	require.Error(t, err)
	require.ErrorIs(t, err, vm.ErrTrap)
}
