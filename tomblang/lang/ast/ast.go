// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the Abstract Syntax Tree for TombLang.
//
// Design overview:
//
//   - All AST nodes implement the Node interface via TokenLiteral and String.
//   - Expressions, Statements, and Declarations each have a marker interface
//     that embeds Node to enable exhaustive type-switch dispatch (§9 "closed
//     sums") instead of dynamic/visitor dispatch.
//   - The tree is position-annotated via token.Token so diagnostics can
//     reference source locations.
//   - Nodes hold no parent pointer; scopes and declarations are linked via
//     the symbol table built during elaboration, never via cyclic back-refs.
package ast

import (
	"bytes"
	"strings"

	"github.com/tomblang/tomblang/tomblang/lang/token"
)

// ---------------------------------------------------------------------------
// Core interfaces
// ---------------------------------------------------------------------------

// Node is the base interface every AST node implements.
type Node interface {
	TokenLiteral() string
	String() string
	Line() int
}

// Expression is a value-producing AST node.
type Expression interface {
	Node
	expressionNode()
}

// Statement is an effect-producing AST node.
type Statement interface {
	Node
	statementNode()
}

// Declaration is a top-level or module-level named AST node.
type Declaration interface {
	Node
	declarationNode()
	DeclName() string
}

// Program is the root of a parsed source file: an ordered list of top-level
// module and nominal-type declarations.
type Program struct {
	Modules []*ModuleDecl
}

func (p *Program) TokenLiteral() string {
	if len(p.Modules) > 0 {
		return p.Modules[0].TokenLiteral()
	}
	return ""
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, m := range p.Modules {
		out.WriteString(m.String())
		out.WriteString("\n")
	}
	return out.String()
}

// ---------------------------------------------------------------------------
// Type expressions (surface syntax for §3 value types)
// ---------------------------------------------------------------------------

// TypeExpr is the surface-syntax representation of a type annotation, later
// resolved to a types.Type during elaboration.
type TypeExpr interface {
	Node
	typeExprNode()
}

// NamedTypeExpr is a primitive or nominal type named by a bare identifier:
// number, string, bool, address, hash, bytes, timestamp, or a struct/enum name.
type NamedTypeExpr struct {
	Token token.Token
	Name  string
}

func (t *NamedTypeExpr) typeExprNode()         {}
func (t *NamedTypeExpr) TokenLiteral() string  { return t.Token.Literal }
func (t *NamedTypeExpr) String() string        { return t.Name }
func (t *NamedTypeExpr) Line() int             { return t.Token.Pos.Line }

// DecimalTypeExpr is decimal<N> — a Number with N fractional digits of
// compile-time precision.
type DecimalTypeExpr struct {
	Token  token.Token
	Places int
}

func (t *DecimalTypeExpr) typeExprNode()        {}
func (t *DecimalTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *DecimalTypeExpr) String() string {
	return "decimal<" + itoa(t.Places) + ">"
}
func (t *DecimalTypeExpr) Line() int { return t.Token.Pos.Line }

// ArrayTypeExpr is T[] — an in-memory array of elem.
type ArrayTypeExpr struct {
	Token token.Token
	Elem  TypeExpr
}

func (t *ArrayTypeExpr) typeExprNode()        {}
func (t *ArrayTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *ArrayTypeExpr) String() string       { return t.Elem.String() + "[]" }
func (t *ArrayTypeExpr) Line() int            { return t.Token.Pos.Line }

// MapTypeExpr is map<K,V> — an in-memory map.
type MapTypeExpr struct {
	Token token.Token
	Key   TypeExpr
	Val   TypeExpr
}

func (t *MapTypeExpr) typeExprNode()        {}
func (t *MapTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *MapTypeExpr) String() string {
	return "map<" + t.Key.String() + "," + t.Val.String() + ">"
}
func (t *MapTypeExpr) Line() int { return t.Token.Pos.Line }

// StorageListTypeExpr is storageList<T> — a contract-storage-backed list.
type StorageListTypeExpr struct {
	Token token.Token
	Elem  TypeExpr
}

func (t *StorageListTypeExpr) typeExprNode()        {}
func (t *StorageListTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *StorageListTypeExpr) String() string       { return "storageList<" + t.Elem.String() + ">" }
func (t *StorageListTypeExpr) Line() int            { return t.Token.Pos.Line }

// StorageMapTypeExpr is storageMap<K,V> — a contract-storage-backed map.
type StorageMapTypeExpr struct {
	Token token.Token
	Key   TypeExpr
	Val   TypeExpr
}

func (t *StorageMapTypeExpr) typeExprNode()        {}
func (t *StorageMapTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *StorageMapTypeExpr) String() string {
	return "storageMap<" + t.Key.String() + "," + t.Val.String() + ">"
}
func (t *StorageMapTypeExpr) Line() int { return t.Token.Pos.Line }

// VariadicTypeExpr is T* — the variadic-stream return-type marker.
type VariadicTypeExpr struct {
	Token token.Token
	Elem  TypeExpr
}

func (t *VariadicTypeExpr) typeExprNode()        {}
func (t *VariadicTypeExpr) TokenLiteral() string { return t.Token.Literal }
func (t *VariadicTypeExpr) String() string       { return t.Elem.String() + "*" }
func (t *VariadicTypeExpr) Line() int            { return t.Token.Pos.Line }

// ---------------------------------------------------------------------------
// Supporting structures
// ---------------------------------------------------------------------------

// Param is a single method/constructor parameter: name plus type.
type Param struct {
	Name string
	Type TypeExpr
}

func (p *Param) String() string { return p.Name + ":" + p.Type.String() }

// Field is a single struct field: name plus type, in declared order.
type Field struct {
	Name string
	Type TypeExpr
}

func (f *Field) String() string { return f.Name + ":" + f.Type.String() }

// EnumEntry is a single enum member: name plus its integer value.
type EnumEntry struct {
	Name  string
	Value int
}

func (e *EnumEntry) String() string { return e.Name + "=" + itoa(e.Value) }

// SwitchCase is one `case <lit>: stmts...` arm, or the `default:` arm when
// Default is true (Value is nil in that case).
type SwitchCase struct {
	Value   Expression
	Default bool
	Body    []Statement
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// ModuleKind distinguishes the five top-level module kinds named in §3.
type ModuleKind int

const (
	ModuleContract ModuleKind = iota
	ModuleToken
	ModuleNFT
	ModuleScript
	ModuleStructHolder
)

func (k ModuleKind) String() string {
	switch k {
	case ModuleContract:
		return "contract"
	case ModuleToken:
		return "token"
	case ModuleNFT:
		return "nft"
	case ModuleScript:
		return "script"
	case ModuleStructHolder:
		return "struct-holder"
	default:
		return "unknown"
	}
}

// ModuleDecl is a top-level (or nested sub-module) source unit.
type ModuleDecl struct {
	Token      token.Token
	Kind       ModuleKind
	Name       string
	ROM        string // type parameter of a nested `nft NAME<ROM,RAM>` sub-module, if any
	RAM        string
	Imports    []*ImportDecl
	Consts     []*ConstDecl
	Globals    []*VarDecl
	Structs    []*StructDecl
	Enums      []*EnumDecl
	Properties []*MethodDecl
	Ctor       *MethodDecl
	Methods    []*MethodDecl
	Triggers   []*MethodDecl
	SubModules []*ModuleDecl
}

func (d *ModuleDecl) declarationNode()      {}
func (d *ModuleDecl) TokenLiteral() string  { return d.Token.Literal }
func (d *ModuleDecl) DeclName() string      { return d.Name }
func (d *ModuleDecl) Line() int             { return d.Token.Pos.Line }
func (d *ModuleDecl) String() string {
	var out bytes.Buffer
	out.WriteString(d.Kind.String())
	out.WriteString(" ")
	out.WriteString(d.Name)
	out.WriteString(" { ")
	for _, m := range d.Methods {
		out.WriteString(m.String())
		out.WriteString(" ")
	}
	out.WriteString("}")
	return out.String()
}

// ImportDecl makes a library's methods callable within a module scope.
type ImportDecl struct {
	Token token.Token
	Name  string
}

func (d *ImportDecl) declarationNode()     {}
func (d *ImportDecl) TokenLiteral() string { return d.Token.Literal }
func (d *ImportDecl) DeclName() string     { return d.Name }
func (d *ImportDecl) Line() int            { return d.Token.Pos.Line }
func (d *ImportDecl) String() string       { return "import " + d.Name + ";" }

// ConstDecl binds a name to a literal value, fixed at compile time.
type ConstDecl struct {
	Token token.Token
	Name  string
	Type  TypeExpr
	Value Expression
}

func (d *ConstDecl) declarationNode()     {}
func (d *ConstDecl) TokenLiteral() string { return d.Token.Literal }
func (d *ConstDecl) DeclName() string     { return d.Name }
func (d *ConstDecl) Line() int            { return d.Token.Pos.Line }
func (d *ConstDecl) String() string {
	return "const " + d.Name + ":" + d.Type.String() + " = " + d.Value.String() + ";"
}

// StorageClass distinguishes where a VarDecl's value lives (§3 Registers).
type StorageClass int

const (
	StorageGlobal StorageClass = iota
	StorageLocal
	StorageArgument
)

// VarDecl is a global, local, or parameter variable declaration. The parser
// sets Register to -1; neither the elaborator nor the code generator writes
// it (the code generator keeps its own name-to-register table).
type VarDecl struct {
	Token   token.Token
	Name    string
	Type    TypeExpr
	Class   StorageClass
	Init    Expression // optional initializer; nil for bare `local x:T;` or parameters
	Register int       // -1 as parsed; not written by later phases
}

func (d *VarDecl) declarationNode()     {}
func (d *VarDecl) TokenLiteral() string { return d.Token.Literal }
func (d *VarDecl) DeclName() string     { return d.Name }
func (d *VarDecl) Line() int            { return d.Token.Pos.Line }
func (d *VarDecl) String() string {
	s := d.Name + ":" + d.Type.String()
	if d.Init != nil {
		s += " = " + d.Init.String()
	}
	return s + ";"
}

// StructDecl declares a nominal struct type: an ordered list of fields.
type StructDecl struct {
	Token  token.Token
	Name   string
	Fields []*Field
}

func (d *StructDecl) declarationNode()     {}
func (d *StructDecl) TokenLiteral() string { return d.Token.Literal }
func (d *StructDecl) DeclName() string     { return d.Name }
func (d *StructDecl) Line() int            { return d.Token.Pos.Line }
func (d *StructDecl) String() string {
	var out bytes.Buffer
	out.WriteString("struct " + d.Name + " { ")
	for _, f := range d.Fields {
		out.WriteString(f.String() + "; ")
	}
	out.WriteString("}")
	return out.String()
}

// EnumDecl declares a nominal enum type: an ordered list of (name, value)
// entries with unique integer values.
type EnumDecl struct {
	Token   token.Token
	Name    string
	Entries []*EnumEntry
}

func (d *EnumDecl) declarationNode()     {}
func (d *EnumDecl) TokenLiteral() string { return d.Token.Literal }
func (d *EnumDecl) DeclName() string     { return d.Name }
func (d *EnumDecl) Line() int            { return d.Token.Pos.Line }
func (d *EnumDecl) String() string {
	var parts []string
	for _, e := range d.Entries {
		parts = append(parts, e.String())
	}
	return "enum " + d.Name + " { " + strings.Join(parts, ", ") + " }"
}

// MethodKind distinguishes the five method-like declarations named in §3.
type MethodKind int

const (
	MethodPlain MethodKind = iota
	MethodConstructor
	MethodTask
	MethodTrigger
	MethodProperty
)

// Visibility is the access level of a method declaration.
type Visibility int

const (
	VisPublic Visibility = iota
	VisPrivate
	VisInternal
)

func (v Visibility) String() string {
	switch v {
	case VisPublic:
		return "public"
	case VisPrivate:
		return "private"
	case VisInternal:
		return "internal"
	default:
		return "public"
	}
}

// MethodDecl is a method, constructor, task, trigger, or property. Return is
// nil for a bare-void method; ReturnVariadic marks a `T*` signature.
type MethodDecl struct {
	Token          token.Token
	Name           string
	Kind           MethodKind
	Visibility     Visibility
	Params         []*Param
	Return         TypeExpr
	ReturnVariadic bool
	Body           []Statement
}

func (d *MethodDecl) declarationNode()     {}
func (d *MethodDecl) TokenLiteral() string { return d.Token.Literal }
func (d *MethodDecl) DeclName() string     { return d.Name }
func (d *MethodDecl) Line() int            { return d.Token.Pos.Line }
func (d *MethodDecl) String() string {
	var params []string
	for _, p := range d.Params {
		params = append(params, p.String())
	}
	ret := ""
	if d.Return != nil {
		ret = ":" + d.Return.String()
		if d.ReturnVariadic {
			ret += "*"
		}
	}
	return d.Visibility.String() + " " + d.Name + "(" + strings.Join(params, ",") + ")" + ret + " { ... }"
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// LocalStmt declares a local variable within a method body, optionally with
// an inferred type (Decl.Type stays nil when the annotation is omitted;
// elaboration infers the type from Init without writing it to the node).
type LocalStmt struct {
	Token token.Token
	Decl  *VarDecl
}

func (s *LocalStmt) statementNode()     {}
func (s *LocalStmt) TokenLiteral() string { return s.Token.Literal }
func (s *LocalStmt) Line() int            { return s.Token.Pos.Line }
func (s *LocalStmt) String() string       { return "local " + s.Decl.String() }

// AssignStmt is `lvalue op= expr;` for op in {"", "+", "-", "*", "/", "%"}.
type AssignStmt struct {
	Token    token.Token
	Target   Expression
	Operator string // "=" , "+=", "-=", "*=", "/=", "%="
	Value    Expression
}

func (s *AssignStmt) statementNode()     {}
func (s *AssignStmt) TokenLiteral() string { return s.Token.Literal }
func (s *AssignStmt) Line() int            { return s.Token.Pos.Line }
func (s *AssignStmt) String() string {
	return s.Target.String() + " " + s.Operator + " " + s.Value.String() + ";"
}

// ExprStmt wraps an expression evaluated purely for effect (e.g. a call).
type ExprStmt struct {
	Token token.Token
	Expr  Expression
}

func (s *ExprStmt) statementNode()     {}
func (s *ExprStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ExprStmt) Line() int            { return s.Token.Pos.Line }
func (s *ExprStmt) String() string       { return s.Expr.String() + ";" }

// IfStmt is `if (cond) { then } [else { alt }]`; `else if` is modeled as a
// single-statement Alt slice containing another IfStmt.
type IfStmt struct {
	Token     token.Token
	Condition Expression
	Then      []Statement
	Alt       []Statement // nil when there is no else branch
}

func (s *IfStmt) statementNode()     {}
func (s *IfStmt) TokenLiteral() string { return s.Token.Literal }
func (s *IfStmt) Line() int            { return s.Token.Pos.Line }
func (s *IfStmt) String() string       { return "if (" + s.Condition.String() + ") { ... }" }

// SwitchStmt evaluates Scrutinee once and dispatches to the first matching
// SwitchCase, falling back to the Default case (if any).
type SwitchStmt struct {
	Token     token.Token
	Scrutinee Expression
	Cases     []*SwitchCase
}

func (s *SwitchStmt) statementNode()     {}
func (s *SwitchStmt) TokenLiteral() string { return s.Token.Literal }
func (s *SwitchStmt) Line() int            { return s.Token.Pos.Line }
func (s *SwitchStmt) String() string       { return "switch (" + s.Scrutinee.String() + ") { ... }" }

// WhileStmt is `while (cond) { body }`.
type WhileStmt struct {
	Token     token.Token
	Condition Expression
	Body      []Statement
}

func (s *WhileStmt) statementNode()     {}
func (s *WhileStmt) TokenLiteral() string { return s.Token.Literal }
func (s *WhileStmt) Line() int            { return s.Token.Pos.Line }
func (s *WhileStmt) String() string       { return "while (" + s.Condition.String() + ") { ... }" }

// DoWhileStmt is `do { body } while (cond);` — body runs at least once.
type DoWhileStmt struct {
	Token     token.Token
	Body      []Statement
	Condition Expression
}

func (s *DoWhileStmt) statementNode()     {}
func (s *DoWhileStmt) TokenLiteral() string { return s.Token.Literal }
func (s *DoWhileStmt) Line() int            { return s.Token.Pos.Line }
func (s *DoWhileStmt) String() string       { return "do { ... } while (" + s.Condition.String() + ");" }

// ForStmt is `for (init; cond; post) { body }`; any clause may be nil.
type ForStmt struct {
	Token     token.Token
	Init      Statement
	Condition Expression
	Post      Statement
	Body      []Statement
}

func (s *ForStmt) statementNode()     {}
func (s *ForStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ForStmt) Line() int            { return s.Token.Pos.Line }
func (s *ForStmt) String() string       { return "for (...) { ... }" }

// BreakStmt exits the nearest enclosing loop or switch.
type BreakStmt struct{ Token token.Token }

func (s *BreakStmt) statementNode()     {}
func (s *BreakStmt) TokenLiteral() string { return s.Token.Literal }
func (s *BreakStmt) Line() int            { return s.Token.Pos.Line }
func (s *BreakStmt) String() string       { return "break;" }

// ContinueStmt jumps to the next iteration of the nearest enclosing loop.
type ContinueStmt struct{ Token token.Token }

func (s *ContinueStmt) statementNode()     {}
func (s *ContinueStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ContinueStmt) Line() int            { return s.Token.Pos.Line }
func (s *ContinueStmt) String() string       { return "continue;" }

// ReturnStmt is `return [expr];`. Value is nil for a bare return.
type ReturnStmt struct {
	Token token.Token
	Value Expression
}

func (s *ReturnStmt) statementNode()     {}
func (s *ReturnStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ReturnStmt) Line() int            { return s.Token.Pos.Line }
func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return;"
	}
	return "return " + s.Value.String() + ";"
}

// ThrowStmt is `throw "msg";` — lowers to a VM THROW opcode, not a compiler
// error; the literal is carried as-is.
type ThrowStmt struct {
	Token   token.Token
	Message Expression
}

func (s *ThrowStmt) statementNode()     {}
func (s *ThrowStmt) TokenLiteral() string { return s.Token.Literal }
func (s *ThrowStmt) Line() int            { return s.Token.Pos.Line }
func (s *ThrowStmt) String() string       { return "throw " + s.Message.String() + ";" }

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident is a bare identifier reference, resolved to a declaration during
// elaboration.
type Ident struct {
	Token token.Token
	Value string
}

func (e *Ident) expressionNode()     {}
func (e *Ident) TokenLiteral() string { return e.Token.Literal }
func (e *Ident) Line() int            { return e.Token.Pos.Line }
func (e *Ident) String() string       { return e.Value }

// IntLiteral is an integer literal (arbitrary-precision Number).
type IntLiteral struct {
	Token token.Token
	Value string // decimal digits, kept as text for arbitrary precision
}

func (e *IntLiteral) expressionNode()     {}
func (e *IntLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *IntLiteral) Line() int            { return e.Token.Pos.Line }
func (e *IntLiteral) String() string       { return e.Value }

// DecimalLiteral is a fixed-point literal; FracDigits is the number of digits
// after the decimal point as written in source (used for the §4.3 precision
// check against the target Decimal(n)).
type DecimalLiteral struct {
	Token      token.Token
	Value      string // original text, e.g. "2.4587"
	FracDigits int
}

func (e *DecimalLiteral) expressionNode()     {}
func (e *DecimalLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *DecimalLiteral) Line() int            { return e.Token.Pos.Line }
func (e *DecimalLiteral) String() string       { return e.Value }

// StringLiteral is a decoded string literal (escapes already resolved by the
// lexer).
type StringLiteral struct {
	Token token.Token
	Value string
}

func (e *StringLiteral) expressionNode()     {}
func (e *StringLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *StringLiteral) Line() int            { return e.Token.Pos.Line }
func (e *StringLiteral) String() string       { return `"` + e.Value + `"` }

// CharLiteral is a single-byte character literal.
type CharLiteral struct {
	Token token.Token
	Value byte
}

func (e *CharLiteral) expressionNode()     {}
func (e *CharLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *CharLiteral) Line() int            { return e.Token.Pos.Line }
func (e *CharLiteral) String() string       { return "'" + string(e.Value) + "'" }

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (e *BoolLiteral) expressionNode()     {}
func (e *BoolLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *BoolLiteral) Line() int            { return e.Token.Pos.Line }
func (e *BoolLiteral) String() string       { return e.Token.Literal }

// AddressLiteral is an `@0x...` on-chain address literal.
type AddressLiteral struct {
	Token token.Token
	Value string // hex digits, no "@0x" prefix
}

func (e *AddressLiteral) expressionNode()     {}
func (e *AddressLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *AddressLiteral) Line() int            { return e.Token.Pos.Line }
func (e *AddressLiteral) String() string       { return "@0x" + e.Value }

// HexLiteral is a `0x...` bytes literal.
type HexLiteral struct {
	Token token.Token
	Value string // hex digits, no "0x" prefix
}

func (e *HexLiteral) expressionNode()     {}
func (e *HexLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *HexLiteral) Line() int            { return e.Token.Pos.Line }
func (e *HexLiteral) String() string       { return "0x" + e.Value }

// ArrayLiteral is `{a,b,c}`, an in-memory array built from element
// expressions.
type ArrayLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (e *ArrayLiteral) expressionNode()     {}
func (e *ArrayLiteral) TokenLiteral() string { return e.Token.Literal }
func (e *ArrayLiteral) Line() int            { return e.Token.Pos.Line }
func (e *ArrayLiteral) String() string {
	var parts []string
	for _, el := range e.Elements {
		parts = append(parts, el.String())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// PrefixExpr is a unary operator expression: `!x` or `-x`.
type PrefixExpr struct {
	Token    token.Token
	Operator string
	Right    Expression
}

func (e *PrefixExpr) expressionNode()     {}
func (e *PrefixExpr) TokenLiteral() string { return e.Token.Literal }
func (e *PrefixExpr) Line() int            { return e.Token.Pos.Line }
func (e *PrefixExpr) String() string       { return "(" + e.Operator + e.Right.String() + ")" }

// InfixExpr is a binary operator expression.
type InfixExpr struct {
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (e *InfixExpr) expressionNode()     {}
func (e *InfixExpr) TokenLiteral() string { return e.Token.Literal }
func (e *InfixExpr) Line() int            { return e.Token.Pos.Line }
func (e *InfixExpr) String() string {
	return "(" + e.Left.String() + " " + e.Operator + " " + e.Right.String() + ")"
}

// IndexExpr is `arr[idx]`.
type IndexExpr struct {
	Token token.Token
	Array Expression
	Index Expression
}

func (e *IndexExpr) expressionNode()     {}
func (e *IndexExpr) TokenLiteral() string { return e.Token.Literal }
func (e *IndexExpr) Line() int            { return e.Token.Pos.Line }
func (e *IndexExpr) String() string {
	return "(" + e.Array.String() + "[" + e.Index.String() + "])"
}

// FieldExpr is `obj.field`.
type FieldExpr struct {
	Token  token.Token
	Object Expression
	Field  string
}

func (e *FieldExpr) expressionNode()     {}
func (e *FieldExpr) TokenLiteral() string { return e.Token.Literal }
func (e *FieldExpr) Line() int            { return e.Token.Pos.Line }
func (e *FieldExpr) String() string       { return "(" + e.Object.String() + "." + e.Field + ")" }

// CallExpr is `Lib.method(args)` — a qualified call into a library.
type CallExpr struct {
	Token     token.Token
	Library   string
	Method    string
	TypeArg   TypeExpr // non-nil for Call.method<T>(...) generic calls
	Args      []Expression
}

func (e *CallExpr) expressionNode()     {}
func (e *CallExpr) TokenLiteral() string { return e.Token.Literal }
func (e *CallExpr) Line() int            { return e.Token.Pos.Line }
func (e *CallExpr) String() string {
	var parts []string
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return e.Library + "." + e.Method + "(" + strings.Join(parts, ",") + ")"
}

// MethodCallExpr is `this.method(args)` — a call to a method of the
// enclosing module, lowered as a LocalCall.
type MethodCallExpr struct {
	Token  token.Token
	Method string
	Args   []Expression
}

func (e *MethodCallExpr) expressionNode()     {}
func (e *MethodCallExpr) TokenLiteral() string { return e.Token.Literal }
func (e *MethodCallExpr) Line() int            { return e.Token.Pos.Line }
func (e *MethodCallExpr) String() string {
	var parts []string
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return "this." + e.Method + "(" + strings.Join(parts, ",") + ")"
}

// ConstructorCallExpr is `Type(args)` — builds a struct literal via its
// implicit constructor function.
type ConstructorCallExpr struct {
	Token   token.Token
	TypeName string
	Args    []Expression
}

func (e *ConstructorCallExpr) expressionNode()     {}
func (e *ConstructorCallExpr) TokenLiteral() string { return e.Token.Literal }
func (e *ConstructorCallExpr) Line() int            { return e.Token.Pos.Line }
func (e *ConstructorCallExpr) String() string {
	var parts []string
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return e.TypeName + "(" + strings.Join(parts, ",") + ")"
}

// MacroKind distinguishes the three compile-time macros named in §6.
type MacroKind int

const (
	MacroThisAddress MacroKind = iota
	MacroThisSymbol
	MacroTypeOf
)

// MacroExpr is a `$THIS_ADDRESS`, `$THIS_SYMBOL`, or `$TYPE_OF(T)` macro,
// expanded to a literal during elaboration.
type MacroExpr struct {
	Token token.Token
	Kind  MacroKind
	Arg   TypeExpr // only set for $TYPE_OF(T)
}

func (e *MacroExpr) expressionNode()     {}
func (e *MacroExpr) TokenLiteral() string { return e.Token.Literal }
func (e *MacroExpr) Line() int            { return e.Token.Pos.Line }
func (e *MacroExpr) String() string       { return e.Token.Literal }

// ---------------------------------------------------------------------------
// small helpers
// ---------------------------------------------------------------------------

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
