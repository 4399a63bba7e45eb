// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent, Pratt-expression parser for
// TombLang source text.
//
// Design principles:
//   - Expressions are parsed with a Pratt (top-down operator precedence) table.
//   - The parser is fatal-on-first-error: the first unexpected token raises a
//     CompilerError and aborts the parse immediately. There is no error
//     recovery, unlike a tool-oriented parser that wants to report many
//     diagnostics per run.
package parser

import (
	"fmt"
	"strconv"

	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/lexer"
	"github.com/tomblang/tomblang/tomblang/lang/token"
)

type precedence int

const (
	precLowest precedence = iota
	precOr                // ||
	precAnd               // &&
	precEquality          // == !=
	precRelational        // < <= > >=
	precShift             // << >>
	precAdditive          // + -
	precMultiplicative    // * / %
	precUnary             // ! -
	precPostfix           // . ( [
)

var infixPrecedence = map[token.Type]precedence{
	token.OR:       precOr,
	token.AND:      precAnd,
	token.EQ:       precEquality,
	token.NEQ:      precEquality,
	token.LT:       precRelational,
	token.LTE:      precRelational,
	token.GT:       precRelational,
	token.GTE:      precRelational,
	token.LSHIFT:   precShift,
	token.RSHIFT:   precShift,
	token.PLUS:     precAdditive,
	token.MINUS:    precAdditive,
	token.STAR:     precMultiplicative,
	token.SLASH:    precMultiplicative,
	token.PERCENT:  precMultiplicative,
	token.DOT:      precPostfix,
	token.LPAREN:   precPostfix,
	token.LBRACKET: precPostfix,
}

// Parser holds the state for a single, fatal-on-first-error parse run.
type Parser struct {
	l   *lexer.Lexer
	cur token.Token
	pk  token.Token
}

func newParser(filename, source string) *Parser {
	p := &Parser{l: lexer.New(filename, source)}
	p.advance()
	p.advance()
	return p
}

// Parse tokenizes and parses source into a Program, returning the first
// CompilerError encountered (Phase == PhaseParse), or nil on success.
func Parse(filename, source string) (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*compiler.CompilerError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	p := newParser(filename, source)
	prog = p.parseProgram()
	return prog, nil
}

func (p *Parser) advance() {
	p.cur = p.pk
	p.pk = p.l.NextToken()
	for p.pk.Type == token.COMMENT {
		p.pk = p.l.NextToken()
	}
}

// fail raises a fatal CompilerError at the current token's position.
func (p *Parser) fail(format string, args ...interface{}) {
	panic(&compiler.CompilerError{
		Line:    p.cur.Pos.Line,
		Column:  p.cur.Pos.Column,
		Phase:   compiler.PhaseParse,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *Parser) expect(typ token.Type) token.Token {
	if p.cur.Type != typ {
		p.fail("unexpected token %s (%q), expected %s", p.cur.Type, p.cur.Literal, typ)
	}
	t := p.cur
	p.advance()
	return t
}

func (p *Parser) curIs(typ token.Type) bool { return p.cur.Type == typ }

// ---------------------------------------------------------------------------
// Top-level program
// ---------------------------------------------------------------------------

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		prog.Modules = append(prog.Modules, p.parseTopLevel())
	}
	return prog
}

// parseTopLevel parses one of: contract, token, script, struct, enum — each
// folded into a ModuleDecl (struct/enum become a ModuleStructHolder carrying
// exactly one nominal-type declaration, so downstream stages see a single
// module sequence).
func (p *Parser) parseTopLevel() *ast.ModuleDecl {
	switch p.cur.Type {
	case token.CONTRACT:
		return p.parseModuleBody(ast.ModuleContract)
	case token.TOKENKW:
		return p.parseModuleBody(ast.ModuleToken)
	case token.SCRIPT:
		return p.parseModuleBody(ast.ModuleScript)
	case token.NFT:
		return p.parseModuleBody(ast.ModuleNFT)
	case token.STRUCT:
		return p.wrapStructHolder(p.parseStructDecl())
	case token.ENUM:
		return p.wrapEnumHolder(p.parseEnumDecl())
	default:
		p.fail("unexpected token %s at top level", p.cur.Type)
		return nil
	}
}

func (p *Parser) wrapStructHolder(s *ast.StructDecl) *ast.ModuleDecl {
	return &ast.ModuleDecl{Token: s.Token, Kind: ast.ModuleStructHolder, Name: s.Name, Structs: []*ast.StructDecl{s}}
}

func (p *Parser) wrapEnumHolder(e *ast.EnumDecl) *ast.ModuleDecl {
	return &ast.ModuleDecl{Token: e.Token, Kind: ast.ModuleStructHolder, Name: e.Name, Enums: []*ast.EnumDecl{e}}
}

// parseModuleBody parses `KIND NAME [< ROM , RAM >] { members... }`.
func (p *Parser) parseModuleBody(kind ast.ModuleKind) *ast.ModuleDecl {
	tok := p.cur
	p.advance() // consume contract/token/script/nft
	name := p.expect(token.IDENT).Literal

	mod := &ast.ModuleDecl{Token: tok, Kind: kind, Name: name}

	if kind == ast.ModuleNFT && p.curIs(token.LT) {
		p.advance()
		mod.ROM = p.expect(token.IDENT).Literal
		p.expect(token.COMMA)
		mod.RAM = p.expect(token.IDENT).Literal
		p.expect(token.GT)
	}

	p.expect(token.LBRACE)
	for !p.curIs(token.RBRACE) {
		p.parseModuleMember(mod)
	}
	p.expect(token.RBRACE)
	return mod
}

func (p *Parser) parseModuleMember(mod *ast.ModuleDecl) {
	switch p.cur.Type {
	case token.IMPORT:
		mod.Imports = append(mod.Imports, p.parseImportDecl())
	case token.GLOBAL:
		mod.Globals = append(mod.Globals, p.parseGlobalDecl())
	case token.STRUCT:
		mod.Structs = append(mod.Structs, p.parseStructDecl())
	case token.ENUM:
		mod.Enums = append(mod.Enums, p.parseEnumDecl())
	case token.PROPERTY:
		mod.Properties = append(mod.Properties, p.parsePropertyDecl())
	case token.CONSTRUCTOR:
		mod.Ctor = p.parseConstructorDecl()
	case token.TRIGGER:
		mod.Triggers = append(mod.Triggers, p.parseTriggerDecl())
	case token.NFT:
		mod.SubModules = append(mod.SubModules, p.parseModuleBody(ast.ModuleNFT))
	case token.PUBLIC, token.PRIVATE, token.INTERNAL:
		mod.Methods = append(mod.Methods, p.parseMethodDecl())
	default:
		p.fail("unexpected token %s inside module body", p.cur.Type)
	}
}

func (p *Parser) parseImportDecl() *ast.ImportDecl {
	tok := p.cur
	p.advance() // import
	name := p.expect(token.IDENT).Literal
	p.expect(token.SEMI)
	return &ast.ImportDecl{Token: tok, Name: name}
}

func (p *Parser) parseGlobalDecl() *ast.VarDecl {
	tok := p.cur
	p.advance() // global
	name := p.expect(token.IDENT).Literal
	p.expect(token.COLON)
	ty := p.parseType()
	p.expect(token.SEMI)
	return &ast.VarDecl{Token: tok, Name: name, Type: ty, Class: ast.StorageGlobal, Register: -1}
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	tok := p.cur
	p.advance() // struct
	name := p.expect(token.IDENT).Literal
	p.expect(token.LBRACE)
	var fields []*ast.Field
	for !p.curIs(token.RBRACE) {
		fname := p.expect(token.IDENT).Literal
		p.expect(token.COLON)
		fty := p.parseType()
		p.expect(token.SEMI)
		fields = append(fields, &ast.Field{Name: fname, Type: fty})
	}
	p.expect(token.RBRACE)
	return &ast.StructDecl{Token: tok, Name: name, Fields: fields}
}

func (p *Parser) parseEnumDecl() *ast.EnumDecl {
	tok := p.cur
	p.advance() // enum
	name := p.expect(token.IDENT).Literal
	p.expect(token.LBRACE)
	var entries []*ast.EnumEntry
	next := 0
	for !p.curIs(token.RBRACE) {
		ename := p.expect(token.IDENT).Literal
		val := next
		if p.curIs(token.ASSIGN) {
			p.advance()
			n, err := strconv.Atoi(p.expect(token.INT).Literal)
			if err != nil {
				p.fail("invalid enum value for %s", ename)
			}
			val = n
		}
		entries = append(entries, &ast.EnumEntry{Name: ename, Value: val})
		next = val + 1
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return &ast.EnumDecl{Token: tok, Name: name, Entries: entries}
}

func (p *Parser) parsePropertyDecl() *ast.MethodDecl {
	tok := p.cur
	p.advance() // property
	name := p.expect(token.IDENT).Literal
	var ret ast.TypeExpr
	if p.curIs(token.COLON) {
		p.advance()
		ret = p.parseType()
	}
	m := &ast.MethodDecl{Token: tok, Name: name, Kind: ast.MethodProperty, Visibility: ast.VisPublic, Return: ret}
	if p.curIs(token.ASSIGN) {
		p.advance()
		expr := p.parseExpression(precLowest)
		p.expect(token.SEMI)
		m.Body = []ast.Statement{&ast.ReturnStmt{Token: tok, Value: expr}}
	} else {
		m.Body = p.parseBlock()
	}
	return m
}

func (p *Parser) parseConstructorDecl() *ast.MethodDecl {
	tok := p.cur
	p.advance() // constructor
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.MethodDecl{Token: tok, Name: "constructor", Kind: ast.MethodConstructor, Visibility: ast.VisPublic, Params: params, Body: body}
}

func (p *Parser) parseTriggerDecl() *ast.MethodDecl {
	tok := p.cur
	p.advance() // trigger
	name := p.expect(token.IDENT).Literal
	params := p.parseParamList()
	body := p.parseBlock()
	return &ast.MethodDecl{Token: tok, Name: name, Kind: ast.MethodTrigger, Visibility: ast.VisPublic, Params: params, Body: body}
}

func (p *Parser) parseMethodDecl() *ast.MethodDecl {
	tok := p.cur
	vis := ast.VisPublic
	switch p.cur.Type {
	case token.PUBLIC:
		vis = ast.VisPublic
	case token.PRIVATE:
		vis = ast.VisPrivate
	case token.INTERNAL:
		vis = ast.VisInternal
	}
	p.advance()
	name := p.expect(token.IDENT).Literal
	params := p.parseParamList()

	var ret ast.TypeExpr
	variadic := false
	if p.curIs(token.COLON) {
		p.advance()
		ret = p.parseType()
		if p.curIs(token.STAR) {
			p.advance()
			variadic = true
		}
	}
	body := p.parseBlock()
	return &ast.MethodDecl{
		Token: tok, Name: name, Kind: ast.MethodPlain, Visibility: vis,
		Params: params, Return: ret, ReturnVariadic: variadic, Body: body,
	}
}

func (p *Parser) parseParamList() []*ast.Param {
	p.expect(token.LPAREN)
	var params []*ast.Param
	for !p.curIs(token.RPAREN) {
		name := p.expect(token.IDENT).Literal
		p.expect(token.COLON)
		ty := p.parseType()
		params = append(params, &ast.Param{Name: name, Type: ty})
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return params
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

func (p *Parser) parseType() ast.TypeExpr {
	tok := p.cur
	switch {
	case p.cur.Type == token.DECIMALTY:
		p.advance()
		p.expect(token.LT)
		n, err := strconv.Atoi(p.expect(token.INT).Literal)
		if err != nil {
			p.fail("invalid decimal precision")
		}
		p.expect(token.GT)
		return &ast.DecimalTypeExpr{Token: tok, Places: n}
	case token.IsTypeKeyword(p.cur.Type):
		p.advance()
		return &ast.NamedTypeExpr{Token: tok, Name: tok.Literal}
	case p.cur.Type == token.IDENT && p.cur.Literal == "map":
		p.advance()
		p.expect(token.LT)
		key := p.parseType()
		p.expect(token.COMMA)
		val := p.parseType()
		p.expect(token.GT)
		return &ast.MapTypeExpr{Token: tok, Key: key, Val: val}
	case p.cur.Type == token.IDENT && p.cur.Literal == "storageList":
		p.advance()
		p.expect(token.LT)
		elem := p.parseType()
		p.expect(token.GT)
		return &ast.StorageListTypeExpr{Token: tok, Elem: elem}
	case p.cur.Type == token.IDENT && p.cur.Literal == "storageMap":
		p.advance()
		p.expect(token.LT)
		key := p.parseType()
		p.expect(token.COMMA)
		val := p.parseType()
		p.expect(token.GT)
		return &ast.StorageMapTypeExpr{Token: tok, Key: key, Val: val}
	case p.cur.Type == token.IDENT:
		p.advance()
		base := ast.TypeExpr(&ast.NamedTypeExpr{Token: tok, Name: tok.Literal})
		for p.curIs(token.LBRACKET) {
			p.advance()
			p.expect(token.RBRACKET)
			base = &ast.ArrayTypeExpr{Token: tok, Elem: base}
		}
		return base
	default:
		p.fail("unexpected token %s in type position", p.cur.Type)
		return nil
	}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() []ast.Statement {
	p.expect(token.LBRACE)
	var stmts []ast.Statement
	for !p.curIs(token.RBRACE) {
		stmts = append(stmts, p.parseStatement())
	}
	p.expect(token.RBRACE)
	return stmts
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur.Type {
	case token.LOCAL:
		return p.parseLocalStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.SWITCH:
		return p.parseSwitchStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.DO:
		return p.parseDoWhileStmt()
	case token.FOR:
		return p.parseForStmt()
	case token.BREAK:
		tok := p.cur
		p.advance()
		p.expect(token.SEMI)
		return &ast.BreakStmt{Token: tok}
	case token.CONTINUE:
		tok := p.cur
		p.advance()
		p.expect(token.SEMI)
		return &ast.ContinueStmt{Token: tok}
	case token.RETURN:
		return p.parseReturnStmt()
	case token.THROW:
		return p.parseThrowStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseLocalStmt() *ast.LocalStmt {
	tok := p.cur
	p.advance() // local
	name := p.expect(token.IDENT).Literal

	var ty ast.TypeExpr
	if p.curIs(token.COLON) {
		p.advance()
		ty = p.parseType()
	}

	var init ast.Expression
	if p.curIs(token.ASSIGN) {
		p.advance()
		init = p.parseExpression(precLowest)
	} else if p.curIs(token.COLONEQ) {
		p.fail("use of deprecated ':=' operator; use 'local %s = ...' instead", name)
	}
	p.expect(token.SEMI)

	return &ast.LocalStmt{Token: tok, Decl: &ast.VarDecl{
		Token: tok, Name: name, Type: ty, Class: ast.StorageLocal, Init: init, Register: -1,
	}}
}

func (p *Parser) parseIfStmt() *ast.IfStmt {
	tok := p.cur
	p.advance() // if
	p.expect(token.LPAREN)
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN)
	then := p.parseBlock()

	var alt []ast.Statement
	if p.curIs(token.ELSE) {
		p.advance()
		if p.curIs(token.IF) {
			alt = []ast.Statement{p.parseIfStmt()}
		} else {
			alt = p.parseBlock()
		}
	}
	return &ast.IfStmt{Token: tok, Condition: cond, Then: then, Alt: alt}
}

func (p *Parser) parseSwitchStmt() *ast.SwitchStmt {
	tok := p.cur
	p.advance() // switch
	p.expect(token.LPAREN)
	scrutinee := p.parseExpression(precLowest)
	p.expect(token.RPAREN)
	p.expect(token.LBRACE)

	var cases []*ast.SwitchCase
	for !p.curIs(token.RBRACE) {
		switch p.cur.Type {
		case token.CASE:
			p.advance()
			val := p.parseExpression(precLowest)
			p.expect(token.COLON)
			body := p.parseCaseBody()
			cases = append(cases, &ast.SwitchCase{Value: val, Body: body})
		case token.DEFAULT:
			p.advance()
			p.expect(token.COLON)
			body := p.parseCaseBody()
			cases = append(cases, &ast.SwitchCase{Default: true, Body: body})
		default:
			p.fail("unexpected token %s in switch body", p.cur.Type)
		}
	}
	p.expect(token.RBRACE)
	return &ast.SwitchStmt{Token: tok, Scrutinee: scrutinee, Cases: cases}
}

// parseCaseBody reads statements until the next case/default/closing brace.
func (p *Parser) parseCaseBody() []ast.Statement {
	var stmts []ast.Statement
	for !p.curIs(token.CASE) && !p.curIs(token.DEFAULT) && !p.curIs(token.RBRACE) {
		stmts = append(stmts, p.parseStatement())
	}
	return stmts
}

func (p *Parser) parseWhileStmt() *ast.WhileStmt {
	tok := p.cur
	p.advance() // while
	p.expect(token.LPAREN)
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN)
	body := p.parseBlock()
	return &ast.WhileStmt{Token: tok, Condition: cond, Body: body}
}

func (p *Parser) parseDoWhileStmt() *ast.DoWhileStmt {
	tok := p.cur
	p.advance() // do
	body := p.parseBlock()
	p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpression(precLowest)
	p.expect(token.RPAREN)
	p.expect(token.SEMI)
	return &ast.DoWhileStmt{Token: tok, Body: body, Condition: cond}
}

func (p *Parser) parseForStmt() *ast.ForStmt {
	tok := p.cur
	p.advance() // for
	p.expect(token.LPAREN)

	var init ast.Statement
	if !p.curIs(token.SEMI) {
		init = p.parseStatement()
	} else {
		p.expect(token.SEMI)
	}

	var cond ast.Expression
	if !p.curIs(token.SEMI) {
		cond = p.parseExpression(precLowest)
	}
	p.expect(token.SEMI)

	var post ast.Statement
	if !p.curIs(token.RPAREN) {
		post = p.parseSimpleStmtNoSemi()
	}
	p.expect(token.RPAREN)

	body := p.parseBlock()
	return &ast.ForStmt{Token: tok, Init: init, Condition: cond, Post: post, Body: body}
}

// parseSimpleStmtNoSemi parses the `post` clause of a for-loop: an
// assignment or expression statement, without consuming a trailing ';'.
func (p *Parser) parseSimpleStmtNoSemi() ast.Statement {
	tok := p.cur
	expr := p.parseExpression(precLowest)
	if op, ok := p.assignOp(); ok {
		p.advance()
		val := p.parseExpression(precLowest)
		return &ast.AssignStmt{Token: tok, Target: expr, Operator: op, Value: val}
	}
	return &ast.ExprStmt{Token: tok, Expr: expr}
}

func (p *Parser) parseReturnStmt() *ast.ReturnStmt {
	tok := p.cur
	p.advance() // return
	var val ast.Expression
	if !p.curIs(token.SEMI) {
		val = p.parseExpression(precLowest)
	}
	p.expect(token.SEMI)
	return &ast.ReturnStmt{Token: tok, Value: val}
}

func (p *Parser) parseThrowStmt() *ast.ThrowStmt {
	tok := p.cur
	p.advance() // throw
	msg := p.parseExpression(precLowest)
	p.expect(token.SEMI)
	return &ast.ThrowStmt{Token: tok, Message: msg}
}

// assignOp reports whether the current token is an assignment operator and
// returns its textual form.
func (p *Parser) assignOp() (string, bool) {
	switch p.cur.Type {
	case token.ASSIGN:
		return "=", true
	case token.PLUSEQ:
		return "+=", true
	case token.MINUSEQ:
		return "-=", true
	case token.STAREQ:
		return "*=", true
	case token.SLASHEQ:
		return "/=", true
	case token.PERCENTEQ:
		return "%=", true
	default:
		return "", false
	}
}

func (p *Parser) parseExprOrAssignStmt() ast.Statement {
	tok := p.cur
	expr := p.parseExpression(precLowest)
	if p.curIs(token.COLONEQ) {
		p.fail("use of deprecated ':=' operator")
	}
	if op, ok := p.assignOp(); ok {
		p.advance()
		val := p.parseExpression(precLowest)
		p.expect(token.SEMI)
		return &ast.AssignStmt{Token: tok, Target: expr, Operator: op, Value: val}
	}
	p.expect(token.SEMI)
	return &ast.ExprStmt{Token: tok, Expr: expr}
}

// ---------------------------------------------------------------------------
// Expressions — Pratt parser
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(prec precedence) ast.Expression {
	left := p.parsePrefix()
	for !p.curIs(token.SEMI) && prec < p.curPrecedence() {
		left = p.parseInfix(left)
	}
	return left
}

func (p *Parser) curPrecedence() precedence {
	if pr, ok := infixPrecedence[p.cur.Type]; ok {
		return pr
	}
	return precLowest
}

func (p *Parser) parsePrefix() ast.Expression {
	tok := p.cur
	switch p.cur.Type {
	case token.BANG, token.MINUS:
		op := p.cur.Literal
		p.advance()
		right := p.parseExpression(precUnary)
		return &ast.PrefixExpr{Token: tok, Operator: op, Right: right}

	case token.INT:
		p.advance()
		return &ast.IntLiteral{Token: tok, Value: tok.Literal}

	case token.DECIMAL:
		p.advance()
		frac := 0
		for i := len(tok.Literal) - 1; i >= 0; i-- {
			if tok.Literal[i] == '.' {
				break
			}
			frac++
		}
		return &ast.DecimalLiteral{Token: tok, Value: tok.Literal, FracDigits: frac}

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{Token: tok, Value: tok.Literal}

	case token.CHAR:
		p.advance()
		return &ast.CharLiteral{Token: tok, Value: tok.Literal[0]}

	case token.TRUE, token.FALSE:
		p.advance()
		return &ast.BoolLiteral{Token: tok, Value: tok.Type == token.TRUE}

	case token.ADDRESS:
		p.advance()
		return &ast.AddressLiteral{Token: tok, Value: tok.Literal[3:]} // strip "@0x"

	case token.HEX:
		p.advance()
		return &ast.HexLiteral{Token: tok, Value: tok.Literal[2:]} // strip "0x"

	case token.MACRO:
		p.advance()
		return p.parseMacro(tok)

	case token.LBRACE:
		return p.parseArrayLiteral()

	case token.LPAREN:
		p.advance()
		expr := p.parseExpression(precLowest)
		p.expect(token.RPAREN)
		return expr

	case token.THIS:
		p.advance()
		p.expect(token.DOT)
		method := p.expect(token.IDENT).Literal
		args := p.parseArgList()
		return &ast.MethodCallExpr{Token: tok, Method: method, Args: args}

	case token.IDENT:
		name := tok.Literal
		p.advance()
		if p.curIs(token.LPAREN) {
			args := p.parseArgList()
			return &ast.ConstructorCallExpr{Token: tok, TypeName: name, Args: args}
		}
		if p.curIs(token.DOT) && p.isLibraryCall(name) {
			return p.parseLibraryCall(tok, name)
		}
		return &ast.Ident{Token: tok, Value: name}

	default:
		p.fail("unexpected token %s in expression", p.cur.Type)
		return nil
	}
}

// isLibraryCall heuristically distinguishes `Lib.method(...)` from plain
// field access: a capitalized identifier immediately followed by `.` and a
// call is parsed as a qualified library call.
func (p *Parser) isLibraryCall(name string) bool {
	return len(name) > 0 && name[0] >= 'A' && name[0] <= 'Z'
}

func (p *Parser) parseLibraryCall(tok token.Token, lib string) ast.Expression {
	p.advance() // consume '.'
	method := p.expect(token.IDENT).Literal

	var typeArg ast.TypeExpr
	if p.curIs(token.LT) {
		p.advance()
		typeArg = p.parseType()
		p.expect(token.GT)
	}
	args := p.parseArgList()
	return &ast.CallExpr{Token: tok, Library: lib, Method: method, TypeArg: typeArg, Args: args}
}

func (p *Parser) parseMacro(tok token.Token) ast.Expression {
	lit := tok.Literal
	switch {
	case lit == "$THIS_ADDRESS":
		return &ast.MacroExpr{Token: tok, Kind: ast.MacroThisAddress}
	case lit == "$THIS_SYMBOL":
		return &ast.MacroExpr{Token: tok, Kind: ast.MacroThisSymbol}
	case len(lit) >= 9 && lit[:9] == "$TYPE_OF(":
		inner := lit[9 : len(lit)-1]
		sub := newParser("", inner+";")
		ty := sub.parseType()
		return &ast.MacroExpr{Token: tok, Kind: ast.MacroTypeOf, Arg: ty}
	default:
		p.fail("unknown macro %s", lit)
		return nil
	}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.cur
	p.advance() // '{'
	var elems []ast.Expression
	for !p.curIs(token.RBRACE) {
		elems = append(elems, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RBRACE)
	return &ast.ArrayLiteral{Token: tok, Elements: elems}
}

func (p *Parser) parseArgList() []ast.Expression {
	p.expect(token.LPAREN)
	var args []ast.Expression
	for !p.curIs(token.RPAREN) {
		args = append(args, p.parseExpression(precLowest))
		if p.curIs(token.COMMA) {
			p.advance()
		}
	}
	p.expect(token.RPAREN)
	return args
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	tok := p.cur
	switch p.cur.Type {
	case token.DOT:
		p.advance()
		field := p.expect(token.IDENT).Literal
		if p.curIs(token.LPAREN) {
			// Method-style call on an arbitrary object value, e.g. name.length().
			args := p.parseArgList()
			return &ast.CallExpr{Token: tok, Library: "", Method: field, Args: append([]ast.Expression{left}, args...)}
		}
		return &ast.FieldExpr{Token: tok, Object: left, Field: field}

	case token.LBRACKET:
		p.advance()
		idx := p.parseExpression(precLowest)
		p.expect(token.RBRACKET)
		return &ast.IndexExpr{Token: tok, Array: left, Index: idx}

	default:
		prec := p.curPrecedence()
		op := p.cur.Literal
		p.advance()
		right := p.parseExpression(prec)
		return &ast.InfixExpr{Token: tok, Left: left, Operator: op, Right: right}
	}
}
