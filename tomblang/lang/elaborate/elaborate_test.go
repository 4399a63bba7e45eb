// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package elaborate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
)

func elaborateSrc(t *testing.T, src string) error {
	t.Helper()
	prog, err := parser.Parse("test.tomb", src)
	require.NoError(t, err)
	ctx := compiler.NewCompileContext(nil, 0)
	el := elaborate.New(ctx, nil)
	return el.Elaborate(prog)
}

func TestElaborateSimpleMethodOK(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public add(a: number, b: number): number {
		local sum = a + b;
		return sum;
	}
}`)
	require.NoError(t, err)
}

func TestElaborateDuplicateMethodFails(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		return 1;
	}
	public run(): number {
		return 2;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "duplicate")
}

func TestElaborateDecimalPrecisionOverflow(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run() {
		local price: decimal<2> = 1.2345;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "precision")
}

func TestElaborateDecimalMagnitudeOverflow(t *testing.T) {
	// One fractional digit, matching the declared decimal<1> exactly (so
	// the digit-count check passes), but an integer part long enough to
	// overflow a 256-bit register once scaled.
	huge := "1" + strings.Repeat("0", 80)
	err := elaborateSrc(t, `
contract C {
	public run() {
		local big: decimal<1> = `+huge+`.0;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "precision")
}

func TestElaborateUndefinedIdentifier(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		return missing;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Equal(t, compiler.PhaseResolve, ce.Phase)
}

func TestElaborateSwitchRequiresOrdinalScrutinee(t *testing.T) {
	err := elaborateSrc(t, `
struct Pair { x: number; y: number; }
contract C {
	public run(p: Pair): number {
		switch (p) {
		case 1:
			return 1;
		default:
			return 0;
		}
	}
}`)
	require.Error(t, err)
}

func TestElaborateBreakOutsideLoopFails(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		break;
		return 0;
	}
}`)
	require.Error(t, err)
}

func TestElaborateStringConcatWithNumberCasts(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public greet(n: number): string {
		return "hello " + n;
	}
}`)
	require.NoError(t, err)
}

func TestElaborateTooManyArgumentsToThisCall(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		return this.helper(1, 2, 3);
	}
	private helper(a: number): number {
		return a;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "too many arguments")
}

func TestElaborateLibraryCallUnknownMethodFails(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		return Math.frobnicate(1, 2);
	}
}`)
	require.Error(t, err)
}

func TestElaborateCustomStrategyWithoutCallbackNotImplemented(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(): number {
		return Call.method(1, 2);
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "not implemented")
}

func TestElaborateBareReturnThenValueReturnFails(t *testing.T) {
	err := elaborateSrc(t, `
contract C {
	public run(n: number): number {
		if (n > 0) {
			return;
		}
		return 1;
	}
}`)
	require.Error(t, err)
	ce := err.(*compiler.CompilerError)
	require.Contains(t, ce.Message, "bare return")
}
