// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compile_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/compile"
	"github.com/tomblang/tomblang/tomblang/lang/abi"
	"github.com/tomblang/tomblang/tomblang/lang/codegen"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
)

func TestCompileProducesScriptAndABI(t *testing.T) {
	c := compile.New(compiler.CompilerConfig{})
	modules, err := c.Compile("wallet.tomb", `
contract Wallet {
	public balanceOf(owner: address): number {
		return 0;
	}
	trigger onTransfer(from: address, to: address, amount: number) {
	}
}`)
	require.NoError(t, err)
	require.Len(t, modules, 1)

	m := modules[0]
	require.Equal(t, "Wallet", m.Name)
	require.NotEmpty(t, m.Script)
	require.NotEmpty(t, m.ABI)
	require.Empty(t, codegen.Verify(m.Script))

	decoded, err := abi.Decode(m.ABI)
	require.NoError(t, err)
	require.Equal(t, "Wallet", decoded.ModuleName)
	require.Len(t, decoded.Methods, 2)
}

func TestCompileFailsFastOnElaborationError(t *testing.T) {
	c := compile.New(compiler.CompilerConfig{})
	_, err := c.Compile("bad.tomb", `
contract C {
	public run(): number {
		return missing;
	}
}`)
	require.Error(t, err)
	ce, ok := err.(*compiler.CompilerError)
	require.True(t, ok)
	require.Equal(t, compiler.PhaseResolve, ce.Phase)
}

func TestCompileLinesJoinsWithNewlines(t *testing.T) {
	c := compile.New(compiler.CompilerConfig{})
	lines := []string{
		"contract C {",
		"\tpublic run(): number {",
		"\t\treturn 1;",
		"\t}",
		"}",
	}
	modules, err := c.CompileLines("c.tomb", lines)
	require.NoError(t, err)
	require.Len(t, modules, 1)
}
