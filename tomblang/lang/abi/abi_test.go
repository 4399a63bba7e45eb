// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package abi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/abi"
	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
)

func elaborateModule(t *testing.T, src string) *ast.Program {
	t.Helper()
	prog, err := parser.Parse("test.tomb", src)
	require.NoError(t, err)
	ctx := compiler.NewCompileContext(nil, 0)
	el := elaborate.New(ctx, nil)
	require.NoError(t, el.Elaborate(prog))
	return prog
}

func TestBuildCollectsMethodsAndTriggers(t *testing.T) {
	prog := elaborateModule(t, `
contract Wallet {
	public transfer(to: address, amount: number): bool {
		return true;
	}
	trigger onTransfer(from: address, to: address, amount: number) {
	}
}`)
	require.Len(t, prog.Modules, 1)

	a := abi.Build(prog.Modules[0])
	require.Equal(t, "Wallet", a.ModuleName)
	require.Len(t, a.Methods, 2)

	var transfer, onTransfer *abi.Method
	for i := range a.Methods {
		switch a.Methods[i].Name {
		case "transfer":
			transfer = &a.Methods[i]
		case "onTransfer":
			onTransfer = &a.Methods[i]
		}
	}
	require.NotNil(t, transfer)
	require.NotNil(t, onTransfer)
	require.False(t, transfer.Trigger)
	require.True(t, onTransfer.Trigger)
	require.Equal(t, abi.TagBool, transfer.ReturnType)
	require.Len(t, transfer.Params, 2)
	require.Equal(t, abi.TagAddress, transfer.Params[0].Tag)
	require.Equal(t, abi.TagNumber, transfer.Params[1].Tag)
}

func TestEncodeDecodeRoundTrips(t *testing.T) {
	prog := elaborateModule(t, `
contract C {
	public add(a: number, b: number): number {
		return a + b;
	}
	public greet(name: string): string {
		return "hello " + name;
	}
}`)

	original := abi.Build(prog.Modules[0])
	wire := abi.Encode(original)
	require.NotEmpty(t, wire)

	decoded, err := abi.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, original.ModuleName, decoded.ModuleName)
	require.Equal(t, original, decoded)
}

func TestEncodeDecodePreservesTriggerFlag(t *testing.T) {
	prog := elaborateModule(t, `
contract Wallet {
	public transfer(to: address, amount: number): bool {
		return true;
	}
	trigger onTransfer(from: address, to: address, amount: number) {
	}
}`)
	original := abi.Build(prog.Modules[0])
	decoded, err := abi.Decode(abi.Encode(original))
	require.NoError(t, err)

	var gotTrigger bool
	for _, m := range decoded.Methods {
		if m.Name == "onTransfer" {
			gotTrigger = true
			require.True(t, m.Trigger)
		}
	}
	require.True(t, gotTrigger)
}

func TestSerializeMatchesBuildEncode(t *testing.T) {
	prog := elaborateModule(t, `
contract C {
	public run(): number {
		return 1;
	}
}`)
	require.Equal(t, abi.Encode(abi.Build(prog.Modules[0])), abi.Serialize(prog.Modules[0]))
}

func TestDecodeRejectsTruncatedFrame(t *testing.T) {
	_, err := abi.Decode([]byte{0x05, 'h', 'i'})
	require.Error(t, err)
}

func TestDecodeAcceptsEmptyMethodTable(t *testing.T) {
	prog := elaborateModule(t, `
contract Empty {
}`)
	a := abi.Build(prog.Modules[0])
	require.Empty(t, a.Methods)

	wire := abi.Encode(a)
	decoded, err := abi.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}
