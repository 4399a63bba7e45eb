// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package elaborate implements semantic elaboration (§4.3): identifier
// resolution against nearest-enclosing scope, bottom-up expression typing
// recorded in a side table (AST nodes carry no Type field), arithmetic and
// assignment conversion rules, switch/return/method-call checks, and macro
// expansion. The donor has no standalone pass of this shape — its nearest
// analogue is the dropped linear checker — so this package is grounded
// directly on §4.3's rule list, reusing only the donor's single
// phase-tagged error idiom (CompilerError) for diagnostics.
package elaborate

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/library"
	"github.com/tomblang/tomblang/tomblang/lang/types"
)

// CustomResolver tells the elaborator whether a Custom-strategy library
// method has a registered pre/post callback (§4.6 strategy 5). Library
// methods tagged Custom with no registered callback are a compile error
// containing "not implemented" (§7).
type CustomResolver interface {
	HasCallback(libName, method string) bool
}

type noCallbacks struct{}

func (noCallbacks) HasCallback(string, string) bool { return false }

// scope is a chain of lexical environments, innermost first, used for
// nearest-enclosing-scope identifier resolution.
type scope struct {
	vars   map[string]types.Type
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]types.Type), parent: parent}
}

func (s *scope) define(name string, t types.Type) { s.vars[name] = t }

func (s *scope) resolve(name string) (types.Type, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// Elaborator walks a parsed Program, typing every expression and enforcing
// §4.3's semantic rules. Types assigned to expressions live in a side
// table (Types) rather than mutating AST nodes, since the AST package's
// expression structs carry no Type field.
type Elaborator struct {
	ctx       *compiler.CompileContext
	libs      *library.Registry
	custom    CustomResolver
	Types     map[ast.Expression]types.Type
	structs   map[string]*ast.StructDecl
	enums     map[string]*ast.EnumDecl
	thisModule *ast.ModuleDecl
}

// New creates an Elaborator over ctx's interner, using the standard library
// catalog. Pass a CustomResolver to recognize wired Call.method/Call.interop
// callbacks; nil means every Custom-strategy method is unimplemented.
func New(ctx *compiler.CompileContext, resolver CustomResolver) *Elaborator {
	if resolver == nil {
		resolver = noCallbacks{}
	}
	return &Elaborator{
		ctx:     ctx,
		libs:    library.NewRegistry(),
		custom:  resolver,
		Types:   make(map[ast.Expression]types.Type),
		structs: make(map[string]*ast.StructDecl),
		enums:   make(map[string]*ast.EnumDecl),
	}
}

// Elaborate type-checks every module in prog, returning the first
// CompilerError encountered (fatal-on-first-error, §7).
func (el *Elaborator) Elaborate(prog *ast.Program) error {
	for _, mod := range prog.Modules {
		for _, sd := range mod.Structs {
			el.structs[sd.Name] = sd
		}
		for _, ed := range mod.Enums {
			el.enums[ed.Name] = ed
		}
	}
	for _, mod := range prog.Modules {
		if err := el.elaborateModule(mod); err != nil {
			return err
		}
	}
	return nil
}

func (el *Elaborator) fail(line int, phase compiler.Phase, format string, args ...interface{}) error {
	return &compiler.CompilerError{Line: line, Phase: phase, Message: fmt.Sprintf(format, args...)}
}

func (el *Elaborator) elaborateModule(mod *ast.ModuleDecl) error {
	prev := el.thisModule
	el.thisModule = mod
	defer func() { el.thisModule = prev }()

	seen := make(map[string]bool)
	for _, m := range mod.Methods {
		if seen[m.Name] {
			return el.fail(m.Line(), compiler.PhaseResolve, "duplicate method name %q in module %s", m.Name, mod.Name)
		}
		seen[m.Name] = true
	}

	modScope := newScope(nil)
	for _, c := range mod.Consts {
		t, err := el.elaborateExpr(modScope, c.Value)
		if err != nil {
			return err
		}
		modScope.define(c.Name, t)
	}
	for _, g := range mod.Globals {
		modScope.define(g.Name, el.resolveTypeExpr(g.Type))
	}

	if mod.Ctor != nil {
		if err := el.elaborateMethod(modScope, mod, mod.Ctor); err != nil {
			return err
		}
	}
	for _, p := range mod.Properties {
		if err := el.elaborateMethod(modScope, mod, p); err != nil {
			return err
		}
	}
	for _, m := range mod.Methods {
		if err := el.elaborateMethod(modScope, mod, m); err != nil {
			return err
		}
	}
	for _, t := range mod.Triggers {
		if err := el.elaborateMethod(modScope, mod, t); err != nil {
			return err
		}
	}
	for _, sub := range mod.SubModules {
		if err := el.elaborateModule(sub); err != nil {
			return err
		}
	}
	return nil
}

func (el *Elaborator) resolveTypeExpr(te ast.TypeExpr) types.Type {
	switch t := te.(type) {
	case *ast.NamedTypeExpr:
		switch t.Name {
		case "number":
			return types.Number
		case "string":
			return types.StringTy
		case "bool":
			return types.Bool
		case "address":
			return types.Address
		case "hash":
			return types.Hash
		case "bytes":
			return types.Bytes
		case "timestamp":
			return types.Timestamp
		default:
			if _, ok := el.enums[t.Name]; ok {
				return el.ctx.Interner.EnumNamed(t.Name)
			}
			return el.ctx.Interner.StructNamed(t.Name)
		}
	case *ast.DecimalTypeExpr:
		return el.ctx.Interner.Decimal(t.Places)
	case *ast.ArrayTypeExpr:
		return el.ctx.Interner.Array(el.resolveTypeExpr(t.Elem))
	case *ast.MapTypeExpr:
		return el.ctx.Interner.Map(el.resolveTypeExpr(t.Key), el.resolveTypeExpr(t.Val))
	case *ast.StorageListTypeExpr:
		return el.ctx.Interner.StorageList(el.resolveTypeExpr(t.Elem))
	case *ast.StorageMapTypeExpr:
		return el.ctx.Interner.StorageMap(el.resolveTypeExpr(t.Key), el.resolveTypeExpr(t.Val))
	case *ast.VariadicTypeExpr:
		return el.resolveTypeExpr(t.Elem)
	default:
		return types.Unknown
	}
}

// methodState tracks per-method elaboration bookkeeping: the loop-nesting
// depth (for break/continue validity) and whether a bare `return;` has
// already been seen in document order (§4.3's variadic-return rule).
type methodState struct {
	loopDepth    int
	sawBareReturn bool
	variadic     bool
}

func (el *Elaborator) elaborateMethod(modScope *scope, mod *ast.ModuleDecl, m *ast.MethodDecl) error {
	ms := newScope(modScope)
	for _, p := range m.Params {
		ms.define(p.Name, el.resolveTypeExpr(p.Type))
	}
	st := &methodState{variadic: m.ReturnVariadic}
	return el.elaborateBlock(ms, mod, m, st, m.Body)
}

func (el *Elaborator) elaborateBlock(sc *scope, mod *ast.ModuleDecl, m *ast.MethodDecl, st *methodState, body []ast.Statement) error {
	for _, stmt := range body {
		if err := el.elaborateStmt(sc, mod, m, st, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (el *Elaborator) elaborateStmt(sc *scope, mod *ast.ModuleDecl, m *ast.MethodDecl, st *methodState, stmt ast.Statement) error {
	switch s := stmt.(type) {
	case *ast.LocalStmt:
		var initType types.Type
		if s.Decl.Init != nil {
			t, err := el.elaborateExpr(sc, s.Decl.Init)
			if err != nil {
				return err
			}
			initType = t
			if dl, ok := s.Decl.Init.(*ast.DecimalLiteral); ok && s.Decl.Type != nil {
				if err := el.checkDecimalPrecision(dl, el.resolveTypeExpr(s.Decl.Type)); err != nil {
					return err
				}
			}
		}
		var declared types.Type
		if s.Decl.Type != nil {
			declared = el.resolveTypeExpr(s.Decl.Type)
			if initType != nil && !types.Assignable(declared, initType) && !isNumericStringPair(declared, initType) {
				return el.fail(s.Line(), compiler.PhaseTypeCheck, "cannot assign %s to local %s of type %s", initType, s.Decl.Name, declared)
			}
		} else {
			declared = initType
		}
		sc.define(s.Decl.Name, declared)
		return nil

	case *ast.AssignStmt:
		targetType, err := el.elaborateExpr(sc, s.Target)
		if err != nil {
			return err
		}
		valType, err := el.elaborateExpr(sc, s.Value)
		if err != nil {
			return err
		}
		if dl, ok := s.Value.(*ast.DecimalLiteral); ok {
			if err := el.checkDecimalPrecision(dl, targetType); err != nil {
				return err
			}
		}
		if !types.Assignable(targetType, valType) && !isNumericStringPair(targetType, valType) {
			return el.fail(s.Line(), compiler.PhaseTypeCheck, "cannot assign %s to target of type %s", valType, targetType)
		}
		return nil

	case *ast.ExprStmt:
		_, err := el.elaborateExpr(sc, s.Expr)
		return err

	case *ast.IfStmt:
		if _, err := el.elaborateExpr(sc, s.Condition); err != nil {
			return err
		}
		if err := el.elaborateBlock(newScope(sc), mod, m, st, s.Then); err != nil {
			return err
		}
		return el.elaborateBlock(newScope(sc), mod, m, st, s.Alt)

	case *ast.SwitchStmt:
		scrut, err := el.elaborateExpr(sc, s.Scrutinee)
		if err != nil {
			return err
		}
		if !types.IsOrdinal(scrut) {
			return el.fail(s.Line(), compiler.PhaseTypeCheck, "switch scrutinee must be number, string, or enum, got %s", scrut)
		}
		inner := *st
		inner.loopDepth++
		for _, c := range s.Cases {
			if !c.Default {
				if _, err := el.elaborateExpr(sc, c.Value); err != nil {
					return err
				}
			}
			if err := el.elaborateBlock(newScope(sc), mod, m, &inner, c.Body); err != nil {
				return err
			}
		}
		st.sawBareReturn = inner.sawBareReturn
		return nil

	case *ast.WhileStmt:
		if _, err := el.elaborateExpr(sc, s.Condition); err != nil {
			return err
		}
		inner := *st
		inner.loopDepth++
		if err := el.elaborateBlock(newScope(sc), mod, m, &inner, s.Body); err != nil {
			return err
		}
		st.sawBareReturn = inner.sawBareReturn
		return nil

	case *ast.DoWhileStmt:
		inner := *st
		inner.loopDepth++
		if err := el.elaborateBlock(newScope(sc), mod, m, &inner, s.Body); err != nil {
			return err
		}
		st.sawBareReturn = inner.sawBareReturn
		_, err := el.elaborateExpr(sc, s.Condition)
		return err

	case *ast.ForStmt:
		forScope := newScope(sc)
		if s.Init != nil {
			if err := el.elaborateStmt(forScope, mod, m, st, s.Init); err != nil {
				return err
			}
		}
		if s.Condition != nil {
			if _, err := el.elaborateExpr(forScope, s.Condition); err != nil {
				return err
			}
		}
		inner := *st
		inner.loopDepth++
		if err := el.elaborateBlock(newScope(forScope), mod, m, &inner, s.Body); err != nil {
			return err
		}
		st.sawBareReturn = inner.sawBareReturn
		if s.Post != nil {
			return el.elaborateStmt(forScope, mod, m, st, s.Post)
		}
		return nil

	case *ast.BreakStmt:
		if st.loopDepth == 0 {
			return el.fail(s.Line(), compiler.PhaseResolve, "break outside of loop or switch")
		}
		return nil

	case *ast.ContinueStmt:
		if st.loopDepth == 0 {
			return el.fail(s.Line(), compiler.PhaseResolve, "continue outside of loop")
		}
		return nil

	case *ast.ReturnStmt:
		if s.Value == nil {
			st.sawBareReturn = true
			return nil
		}
		if st.sawBareReturn {
			return el.fail(s.Line(), compiler.PhaseTypeCheck, "return with a value may not follow a bare return in the same method")
		}
		if !st.variadic {
			// A single non-variadic return is fine; multiple value-returns in
			// a non-variadic method are ordinary multi-branch control flow,
			// not the §4.3 multi-push rule, so no additional check here.
		}
		_, err := el.elaborateExpr(sc, s.Value)
		return err

	case *ast.ThrowStmt:
		_, err := el.elaborateExpr(sc, s.Message)
		return err

	default:
		return nil
	}
}

func isNumericStringPair(a, b types.Type) bool {
	numStr := func(x, y types.Type) bool {
		return types.IsNumeric(x) && y.Kind() == types.KindString
	}
	return numStr(a, b) || numStr(b, a)
}

func (el *Elaborator) checkDecimalPrecision(lit *ast.DecimalLiteral, target types.Type) error {
	dt, ok := target.(*types.DecimalType)
	if !ok {
		return nil
	}
	if lit.FracDigits > dt.Places {
		return el.fail(lit.Line(), compiler.PhaseTypeCheck,
			"decimal literal %s exceeds precision: %d fractional digits, target allows %d (precision overflow)",
			lit.Value, lit.FracDigits, dt.Places)
	}
	// A digit count within bounds still doesn't guarantee the scaled value
	// (value * 10^places) fits the VM's fixed-width 256-bit register: a
	// long run of integer digits can overflow even at FracDigits == 0.
	if _, overflow := scaledDecimalUint256(lit.Value, lit.FracDigits); overflow {
		return el.fail(lit.Line(), compiler.PhaseTypeCheck,
			"decimal literal %s overflows the 256-bit register representation (precision overflow)", lit.Value)
	}
	return nil
}

// scaledDecimalUint256 parses a decimal literal's text into its scaled
// integer form (value * 10^fracDigits, matching the VM's Decimal(n)
// representation, Data Model invariant 6) and reports whether it overflows
// a 256-bit unsigned register.
func scaledDecimalUint256(value string, fracDigits int) (*uint256.Int, bool) {
	digits := strings.Replace(value, ".", "", 1)
	digits = strings.TrimPrefix(digits, "-")
	scaled, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, false
	}
	return uint256.FromBig(scaled)
}

func (el *Elaborator) elaborateExpr(sc *scope, expr ast.Expression) (types.Type, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		switch e.Value {
		case "this", "result", "_ROM", "_RAM", "_tokenID":
			return types.Any, nil
		}
		t, ok := sc.resolve(e.Value)
		if !ok {
			return nil, el.fail(e.Line(), compiler.PhaseResolve, "undefined identifier %q", e.Value)
		}
		el.Types[e] = t
		return t, nil

	case *ast.IntLiteral:
		el.Types[e] = types.Number
		return types.Number, nil

	case *ast.DecimalLiteral:
		t := el.ctx.Interner.Decimal(e.FracDigits)
		el.Types[e] = t
		return t, nil

	case *ast.StringLiteral:
		el.Types[e] = types.StringTy
		return types.StringTy, nil

	case *ast.CharLiteral:
		el.Types[e] = types.Number
		return types.Number, nil

	case *ast.BoolLiteral:
		el.Types[e] = types.Bool
		return types.Bool, nil

	case *ast.AddressLiteral:
		el.Types[e] = types.Address
		return types.Address, nil

	case *ast.HexLiteral:
		el.Types[e] = types.Bytes
		return types.Bytes, nil

	case *ast.ArrayLiteral:
		var elemType types.Type = types.Any
		for i, el2 := range e.Elements {
			t, err := el.elaborateExpr(sc, el2)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				elemType = t
			}
		}
		arr := el.ctx.Interner.Array(elemType)
		el.Types[e] = arr
		return arr, nil

	case *ast.PrefixExpr:
		t, err := el.elaborateExpr(sc, e.Right)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case "!":
			el.Types[e] = types.Bool
			return types.Bool, nil
		case "-":
			el.Types[e] = t
			return t, nil
		}
		el.Types[e] = t
		return t, nil

	case *ast.InfixExpr:
		lt, err := el.elaborateExpr(sc, e.Left)
		if err != nil {
			return nil, err
		}
		rt, err := el.elaborateExpr(sc, e.Right)
		if err != nil {
			return nil, err
		}
		t, err := el.infixResultType(e, lt, rt)
		if err != nil {
			return nil, err
		}
		el.Types[e] = t
		return t, nil

	case *ast.IndexExpr:
		arrT, err := el.elaborateExpr(sc, e.Array)
		if err != nil {
			return nil, err
		}
		if _, err := el.elaborateExpr(sc, e.Index); err != nil {
			return nil, err
		}
		var t types.Type = types.Any
		switch at := arrT.(type) {
		case *types.ArrayType:
			t = at.Elem
		case *types.StorageListType:
			t = at.Elem
		}
		el.Types[e] = t
		return t, nil

	case *ast.FieldExpr:
		if _, err := el.elaborateExpr(sc, e.Object); err != nil {
			return nil, err
		}
		t := el.resolveFieldType(e.Object, e.Field)
		el.Types[e] = t
		return t, nil

	case *ast.CallExpr:
		return el.elaborateLibraryCall(sc, e)

	case *ast.MethodCallExpr:
		return el.elaborateMethodCall(sc, e)

	case *ast.ConstructorCallExpr:
		return el.elaborateConstructorCall(sc, e)

	case *ast.MacroExpr:
		var t types.Type
		switch e.Kind {
		case ast.MacroThisAddress:
			t = types.Address
		case ast.MacroThisSymbol:
			t = types.StringTy
		case ast.MacroTypeOf:
			t = types.Number
		default:
			t = types.Unknown
		}
		el.Types[e] = t
		return t, nil

	default:
		return types.Unknown, nil
	}
}

func (el *Elaborator) resolveFieldType(obj ast.Expression, field string) types.Type {
	objType, ok := el.Types[obj]
	if !ok {
		return types.Any
	}
	st, ok := objType.(*types.StructType)
	if !ok {
		return types.Any
	}
	decl, ok := el.structs[st.Name]
	if !ok {
		return types.Any
	}
	for _, f := range decl.Fields {
		if f.Name == field {
			return el.resolveTypeExpr(f.Type)
		}
	}
	return types.Any
}

func (el *Elaborator) infixResultType(e *ast.InfixExpr, lt, rt types.Type) (types.Type, error) {
	switch e.Operator {
	case "+":
		if lt.Kind() == types.KindString || rt.Kind() == types.KindString {
			return types.StringTy, nil
		}
		fallthrough
	case "-", "*", "/", "%", "<<", ">>", "&", "|", "^":
		if !types.IsNumeric(lt) || !types.IsNumeric(rt) {
			return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "arithmetic operator %s requires numeric operands, got %s and %s", e.Operator, lt, rt)
		}
		if !lt.Equals(rt) {
			return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "arithmetic operator %s requires operands of the same numeric type, got %s and %s", e.Operator, lt, rt)
		}
		return lt, nil
	case "==", "!=", "<", "<=", ">", ">=":
		return types.Bool, nil
	case "&&", "||":
		return types.Bool, nil
	default:
		return types.Unknown, nil
	}
}

func (el *Elaborator) elaborateLibraryCall(sc *scope, e *ast.CallExpr) (types.Type, error) {
	lib, method, ok := el.libs.Lookup(e.Library, e.Method)
	if !ok {
		return nil, el.fail(e.Line(), compiler.PhaseResolve, "unknown library method %s.%s", e.Library, e.Method)
	}
	if method.Strategy == library.Custom {
		if !el.custom.HasCallback(lib.Name, method.Name) {
			return nil, el.fail(e.Line(), compiler.PhaseResolve, "library method %s.%s marked custom but not implemented", lib.Name, method.Name)
		}
	}
	if !method.Variadic && len(e.Args) > len(method.Params) {
		return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "too many arguments to %s.%s: expected %d, got %d", lib.Name, method.Name, len(method.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		at, err := el.elaborateExpr(sc, arg)
		if err != nil {
			return nil, err
		}
		if method.Variadic || i >= len(method.Params) {
			continue
		}
		pt := method.Params[i]
		if !types.Assignable(pt, at) && !isNumericStringPair(pt, at) {
			return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "argument %d to %s.%s: cannot use %s as %s", i+1, lib.Name, method.Name, at, pt)
		}
	}
	ret := method.Return
	if ret == nil {
		ret = types.None
	}
	el.Types[e] = ret
	return ret, nil
}

func (el *Elaborator) elaborateMethodCall(sc *scope, e *ast.MethodCallExpr) (types.Type, error) {
	if el.thisModule == nil {
		return nil, el.fail(e.Line(), compiler.PhaseResolve, "this.%s called outside a module", e.Method)
	}
	var target *ast.MethodDecl
	for _, m := range el.thisModule.Methods {
		if m.Name == e.Method {
			target = m
			break
		}
	}
	if target == nil {
		return nil, el.fail(e.Line(), compiler.PhaseResolve, "unknown method %s.%s", el.thisModule.Name, e.Method)
	}
	if len(e.Args) > len(target.Params) {
		return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "too many arguments to %s: expected %d, got %d", e.Method, len(target.Params), len(e.Args))
	}
	for i, arg := range e.Args {
		at, err := el.elaborateExpr(sc, arg)
		if err != nil {
			return nil, err
		}
		if i >= len(target.Params) {
			continue
		}
		pt := el.resolveTypeExpr(target.Params[i].Type)
		if !types.Assignable(pt, at) && !isNumericStringPair(pt, at) {
			return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "argument %d to %s: cannot use %s as %s", i+1, e.Method, at, pt)
		}
	}
	if target.Return == nil {
		el.Types[e] = types.None
		return types.None, nil
	}
	ret := el.resolveTypeExpr(target.Return)
	el.Types[e] = ret
	return ret, nil
}

func (el *Elaborator) elaborateConstructorCall(sc *scope, e *ast.ConstructorCallExpr) (types.Type, error) {
	decl, ok := el.structs[e.TypeName]
	if !ok {
		return nil, el.fail(e.Line(), compiler.PhaseResolve, "unknown struct type %s", e.TypeName)
	}
	if len(e.Args) > len(decl.Fields) {
		return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "too many arguments to %s(): expected %d, got %d", e.TypeName, len(decl.Fields), len(e.Args))
	}
	for i, arg := range e.Args {
		at, err := el.elaborateExpr(sc, arg)
		if err != nil {
			return nil, err
		}
		if i >= len(decl.Fields) {
			continue
		}
		ft := el.resolveTypeExpr(decl.Fields[i].Type)
		if !types.Assignable(ft, at) && !isNumericStringPair(ft, at) {
			return nil, el.fail(e.Line(), compiler.PhaseTypeCheck, "field %d of %s: cannot use %s as %s", i+1, e.TypeName, at, ft)
		}
	}
	t := el.ctx.Interner.StructNamed(e.TypeName)
	el.Types[e] = t
	return t, nil
}
