// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/lexer"
	"github.com/tomblang/tomblang/tomblang/lang/token"
)

// tokenCase is a single expected token in a table-driven test.
type tokenCase struct {
	typ     token.Type
	literal string
}

// runTokenize lexes input and checks that it produces exactly the expected
// sequence (plus a final EOF).
func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		l := lexer.New("test.tomb", input)
		toks := l.Tokenize()

		require.NotEmpty(t, toks)
		last := toks[len(toks)-1]
		require.Equal(t, token.EOF, last.Type, "last token must be EOF")
		body := toks[:len(toks)-1]

		require.Len(t, body, len(want))
		for i, w := range want {
			got := body[i]
			require.Equalf(t, w.typ, got.Type, "token[%d] literal %q", i, got.Literal)
			require.Equalf(t, w.literal, got.Literal, "token[%d]", i)
		}
	})
}

func TestKeywordsAndIdents(t *testing.T) {
	runTokenize(t, "module keywords", "contract token script nft struct enum", []tokenCase{
		{token.CONTRACT, "contract"},
		{token.TOKENKW, "token"},
		{token.SCRIPT, "script"},
		{token.NFT, "nft"},
		{token.STRUCT, "struct"},
		{token.ENUM, "enum"},
	})

	runTokenize(t, "member keywords", "global local property constructor trigger public private internal", []tokenCase{
		{token.GLOBAL, "global"},
		{token.LOCAL, "local"},
		{token.PROPERTY, "property"},
		{token.CONSTRUCTOR, "constructor"},
		{token.TRIGGER, "trigger"},
		{token.PUBLIC, "public"},
		{token.PRIVATE, "private"},
		{token.INTERNAL, "internal"},
	})

	runTokenize(t, "identifier", "balanceOf", []tokenCase{
		{token.IDENT, "balanceOf"},
	})
}

func TestNumericLiterals(t *testing.T) {
	runTokenize(t, "int", "42", []tokenCase{{token.INT, "42"}})
	runTokenize(t, "decimal", "2.4587", []tokenCase{{token.DECIMAL, "2.4587"}})
	runTokenize(t, "hex", "0xdeadBEEF", []tokenCase{{token.HEX, "0xdeadBEEF"}})
	runTokenize(t, "address", "@0x1234abcd", []tokenCase{{token.ADDRESS, "@0x1234abcd"}})
}

func TestStringEscapes(t *testing.T) {
	l := lexer.New("t.tomb", `"hello\nworld\x41"`)
	tok := l.NextToken()
	require.Equal(t, token.STRING, tok.Type)
	require.Equal(t, "hello\nworld\x41", tok.Literal)
}

func TestCharLiteral(t *testing.T) {
	runTokenize(t, "char", "'a'", []tokenCase{{token.CHAR, "a"}})
}

func TestMacros(t *testing.T) {
	runTokenize(t, "bare macro", "$THIS_ADDRESS", []tokenCase{{token.MACRO, "$THIS_ADDRESS"}})
	runTokenize(t, "parameterized macro", "$TYPE_OF(Number)", []tokenCase{{token.MACRO, "$TYPE_OF(Number)"}})
}

func TestNestedBlockComments(t *testing.T) {
	runTokenize(t, "nested block comment", "/* outer /* inner */ still outer */ x", []tokenCase{
		{token.IDENT, "x"},
	})
}

func TestLineComment(t *testing.T) {
	runTokenize(t, "line comment", "x // trailing\ny", []tokenCase{
		{token.IDENT, "x"},
		{token.IDENT, "y"},
	})
}

func TestDeprecatedColonEquals(t *testing.T) {
	runTokenize(t, "colon-equals token", "_x := y", []tokenCase{
		{token.IDENT, "_x"},
		{token.COLONEQ, ":="},
		{token.IDENT, "y"},
	})
}

func TestOperatorsAndDelimiters(t *testing.T) {
	runTokenize(t, "operators", "+ - * / % ! == != <= >= << >> && ||", []tokenCase{
		{token.PLUS, "+"},
		{token.MINUS, "-"},
		{token.STAR, "*"},
		{token.SLASH, "/"},
		{token.PERCENT, "%"},
		{token.BANG, "!"},
		{token.EQ, "=="},
		{token.NEQ, "!="},
		{token.LTE, "<="},
		{token.GTE, ">="},
		{token.LSHIFT, "<<"},
		{token.RSHIFT, ">>"},
		{token.AND, "&&"},
		{token.OR, "||"},
	})
}

func TestLineTracking(t *testing.T) {
	l := lexer.New("t.tomb", "a\nb\n  c")
	tok := l.NextToken()
	require.Equal(t, 1, tok.Pos.Line)
	tok = l.NextToken()
	require.Equal(t, 2, tok.Pos.Line)
	tok = l.NextToken()
	require.Equal(t, 3, tok.Pos.Line)
	require.Equal(t, 3, tok.Pos.Column)
}
