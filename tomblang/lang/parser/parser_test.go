// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
)

func mustParse(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := Parse("test.tomb", src)
	require.NoError(t, err)
	require.NotNil(t, prog)
	return prog
}

func parseErr(t *testing.T, src string) *compiler.CompilerError {
	t.Helper()
	prog, err := Parse("test.tomb", src)
	require.Nil(t, prog)
	require.Error(t, err)
	ce, ok := err.(*compiler.CompilerError)
	require.True(t, ok, "expected *compiler.CompilerError, got %T", err)
	return ce
}

func TestParseEmptyContract(t *testing.T) {
	prog := mustParse(t, `contract Empty { }`)
	require.Len(t, prog.Modules, 1)
	require.Equal(t, ast.ModuleContract, prog.Modules[0].Kind)
	require.Equal(t, "Empty", prog.Modules[0].Name)
}

func TestParseGlobalsAndConstructor(t *testing.T) {
	src := `
contract Wallet {
	global balance: number;
	constructor(owner: address) {
		local x = 0;
	}
}`
	prog := mustParse(t, src)
	mod := prog.Modules[0]
	require.Len(t, mod.Globals, 1)
	require.Equal(t, "balance", mod.Globals[0].Name)
	require.NotNil(t, mod.Ctor)
	require.Len(t, mod.Ctor.Body, 1)
}

func TestParsePublicMethodWithReturn(t *testing.T) {
	src := `
contract Wallet {
	public getBalance(): number {
		return 42;
	}
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	require.Equal(t, "getBalance", m.Name)
	require.Equal(t, ast.VisPublic, m.Visibility)
	require.NotNil(t, m.Return)
	ret := m.Body[0].(*ast.ReturnStmt)
	lit := ret.Value.(*ast.IntLiteral)
	require.Equal(t, "42", lit.Value)
}

func TestParseVariadicReturn(t *testing.T) {
	src := `
script Scan {
	public values(): number* {
		return 1;
	}
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	require.True(t, m.ReturnVariadic)
}

func TestParseIfElseIf(t *testing.T) {
	src := `
contract C {
	public sign(n: number): number {
		if (n > 0) {
			return 1;
		} else if (n < 0) {
			return -1;
		} else {
			return 0;
		}
	}
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	top := m.Body[0].(*ast.IfStmt)
	require.Len(t, top.Alt, 1)
	_, isNestedIf := top.Alt[0].(*ast.IfStmt)
	require.True(t, isNestedIf)
}

func TestParseSwitchCaseDefault(t *testing.T) {
	src := `
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
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	sw := m.Body[0].(*ast.SwitchStmt)
	require.Len(t, sw.Cases, 3)
	require.True(t, sw.Cases[2].Default)
}

func TestParseWhileDoWhileFor(t *testing.T) {
	src := `
contract C {
	public loop(): number {
		local i = 0;
		while (i < 10) {
			i += 1;
		}
		do {
			i -= 1;
		} while (i > 0);
		for (local j = 0; j < 5; j += 1) {
			i += j;
		}
		return i;
	}
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	require.IsType(t, &ast.WhileStmt{}, m.Body[1])
	require.IsType(t, &ast.DoWhileStmt{}, m.Body[2])
	require.IsType(t, &ast.ForStmt{}, m.Body[3])
}

func TestParseBreakContinue(t *testing.T) {
	src := `
contract C {
	public loop(): number {
		while (true) {
			break;
			continue;
		}
		return 0;
	}
}`
	prog := mustParse(t, src)
	w := prog.Modules[0].Methods[0].Body[0].(*ast.WhileStmt)
	require.IsType(t, &ast.BreakStmt{}, w.Body[0])
	require.IsType(t, &ast.ContinueStmt{}, w.Body[1])
}

func TestParseStructAndEnum(t *testing.T) {
	prog := mustParse(t, `
struct Account { owner: address; balance: number; }
enum Color { Red, Green, Blue }
`)
	require.Len(t, prog.Modules, 2)
	require.Equal(t, ast.ModuleStructHolder, prog.Modules[0].Kind)
	require.Len(t, prog.Modules[0].Structs[0].Fields, 2)
	require.Len(t, prog.Modules[1].Enums[0].Entries, 3)
	require.Equal(t, 2, prog.Modules[1].Enums[0].Entries[2].Value)
}

func TestParseEnumExplicitValues(t *testing.T) {
	prog := mustParse(t, `enum Status { Pending = 5, Active, Closed = 10 }`)
	entries := prog.Modules[0].Enums[0].Entries
	require.Equal(t, 5, entries[0].Value)
	require.Equal(t, 6, entries[1].Value)
	require.Equal(t, 10, entries[2].Value)
}

func TestParseLibraryAndThisCall(t *testing.T) {
	src := `
contract C {
	import Math;
	public run(): number {
		local a = Math.add(1, 2);
		return this.helper(a);
	}
	private helper(n: number): number {
		return n;
	}
}`
	prog := mustParse(t, src)
	m := prog.Modules[0].Methods[0]
	local := m.Body[0].(*ast.LocalStmt)
	call := local.Decl.Init.(*ast.CallExpr)
	require.Equal(t, "Math", call.Library)
	require.Equal(t, "add", call.Method)
	ret := m.Body[1].(*ast.ReturnStmt)
	mc := ret.Value.(*ast.MethodCallExpr)
	require.Equal(t, "helper", mc.Method)
}

func TestParseConstructorCallExpr(t *testing.T) {
	src := `
contract C {
	struct Point { x: number; y: number; }
	public make(): Point {
		return Point(1, 2);
	}
}`
	prog := mustParse(t, src)
	ret := prog.Modules[0].Methods[0].Body[0].(*ast.ReturnStmt)
	cc := ret.Value.(*ast.ConstructorCallExpr)
	require.Equal(t, "Point", cc.TypeName)
	require.Len(t, cc.Args, 2)
}

func TestParseDecimalType(t *testing.T) {
	src := `
contract C {
	global price: decimal<2>;
}`
	prog := mustParse(t, src)
	g := prog.Modules[0].Globals[0]
	dt := g.Type.(*ast.DecimalTypeExpr)
	require.Equal(t, 2, dt.Places)
}

func TestParseMacros(t *testing.T) {
	src := `
contract C {
	public info(): address {
		return $THIS_ADDRESS;
	}
}`
	prog := mustParse(t, src)
	ret := prog.Modules[0].Methods[0].Body[0].(*ast.ReturnStmt)
	macro := ret.Value.(*ast.MacroExpr)
	require.Equal(t, ast.MacroThisAddress, macro.Kind)
}

func TestParseNFTSubModule(t *testing.T) {
	src := `
contract Collection {
	nft Card<Rom, Ram> {
		global rarity: number;
	}
}`
	prog := mustParse(t, src)
	mod := prog.Modules[0]
	require.Len(t, mod.SubModules, 1)
	sub := mod.SubModules[0]
	require.Equal(t, ast.ModuleNFT, sub.Kind)
	require.Equal(t, "Rom", sub.ROM)
	require.Equal(t, "Ram", sub.RAM)
}

func TestParseTrigger(t *testing.T) {
	src := `
contract C {
	trigger onReceive(amount: number) {
		local x = amount;
	}
}`
	prog := mustParse(t, src)
	require.Len(t, prog.Modules[0].Triggers, 1)
	require.Equal(t, "onReceive", prog.Modules[0].Triggers[0].Name)
}

func TestParsePropertyShorthand(t *testing.T) {
	src := `
contract C {
	global x: number;
	property doubled: number = x * 2;
}`
	prog := mustParse(t, src)
	prop := prog.Modules[0].Properties[0]
	require.Equal(t, ast.MethodProperty, prop.Kind)
	require.Len(t, prop.Body, 1)
}

func TestParseThrowStmt(t *testing.T) {
	src := `
contract C {
	public risky(): number {
		throw "boom";
	}
}`
	prog := mustParse(t, src)
	th := prog.Modules[0].Methods[0].Body[0].(*ast.ThrowStmt)
	msg := th.Message.(*ast.StringLiteral)
	require.Equal(t, "boom", msg.Value)
}

func TestDeprecatedColonEqualsRejected(t *testing.T) {
	ce := parseErr(t, `
contract C {
	public run(): number {
		x := 5;
		return x;
	}
}`)
	require.Equal(t, compiler.PhaseParse, ce.Phase)
	require.Contains(t, ce.Message, "deprecated")
}

func TestDeprecatedColonEqualsInLocalRejected(t *testing.T) {
	ce := parseErr(t, `
contract C {
	public run(): number {
		local x := 5;
		return x;
	}
}`)
	require.Contains(t, ce.Message, "deprecated")
}

func TestUnexpectedTokenFailsFastNoRecovery(t *testing.T) {
	ce := parseErr(t, `contract C { public run() number { return 1; } }`)
	require.Equal(t, compiler.PhaseParse, ce.Phase)
	require.Equal(t, 1, ce.Line)
}

func TestOperatorPrecedence(t *testing.T) {
	src := `
contract C {
	public calc(): number {
		return 1 + 2 * 3;
	}
}`
	prog := mustParse(t, src)
	ret := prog.Modules[0].Methods[0].Body[0].(*ast.ReturnStmt)
	top := ret.Value.(*ast.InfixExpr)
	require.Equal(t, "+", top.Operator)
	require.Equal(t, "*", top.Right.(*ast.InfixExpr).Operator)
}

func TestArrayLiteralAndIndex(t *testing.T) {
	src := `
contract C {
	public first(): number {
		local arr = {1, 2, 3};
		return arr[0];
	}
}`
	prog := mustParse(t, src)
	local := prog.Modules[0].Methods[0].Body[0].(*ast.LocalStmt)
	arr := local.Decl.Init.(*ast.ArrayLiteral)
	require.Len(t, arr.Elements, 3)
	ret := prog.Modules[0].Methods[0].Body[1].(*ast.ReturnStmt)
	idx := ret.Value.(*ast.IndexExpr)
	require.Equal(t, "0", idx.Index.(*ast.IntLiteral).Value)
}

func TestFieldAccess(t *testing.T) {
	src := `
contract C {
	struct Point { x: number; y: number; }
	public getX(p: Point): number {
		return p.x;
	}
}`
	prog := mustParse(t, src)
	ret := prog.Modules[0].Methods[0].Body[0].(*ast.ReturnStmt)
	fe := ret.Value.(*ast.FieldExpr)
	require.Equal(t, "x", fe.Field)
}
