// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package codegen walks an elaborated AST and emits the struct-based
// assembly IR (§4.5) the assembler consumes. The two-pass label-patch shape
// of the donor's own lang/codegen/codegen.go lives one layer down, in the
// assemble package; this package's job is to decide, per AST construct,
// which Instrs to append. The control-flow lowering rules (if/while/for/
// switch) have no donor analogue — the donor's source language has no
// switch statement and consumes SSA IR rather than walking an AST directly
// — so they are grounded on §4.5's lowering-rule table instead.
package codegen

import (
	"fmt"
	"strconv"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/library"
	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
	"github.com/tomblang/tomblang/tomblang/lang/types"
)

// varScope is a chain of name->register bindings, innermost first,
// mirroring the elaborator's type-scope chain but carrying register
// assignments instead of types.
type varScope struct {
	regs   map[string]regalloc.RegId
	parent *varScope
}

func newVarScope(parent *varScope) *varScope {
	return &varScope{regs: make(map[string]regalloc.RegId), parent: parent}
}

func (s *varScope) define(name string, r regalloc.RegId) { s.regs[name] = r }

func (s *varScope) resolve(name string) (regalloc.RegId, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if r, ok := cur.regs[name]; ok {
			return r, true
		}
	}
	return 0, false
}

// loopCtx names the jump targets break/continue resolve to within the loop
// (or switch) currently being generated.
type loopCtx struct {
	endLabel  string
	loopLabel string
}

// marker emits a harmless self-copy used purely to carry a Label — the
// assembler's offset table needs some instruction at every jump target, and
// control-flow joins (else/end/loop-head) often have no real work to do.
func marker(label string, line int) assemble.Instr {
	return assemble.Instr{Op: assemble.OpCopy, Args: []assemble.Operand{assemble.RegOperand(0), assemble.RegOperand(0)}, Label: label, Line: line}
}

// Generator emits assembly for one module's methods. A fresh register
// allocator is created per method (§4.4's "no leaks at method exit"
// invariant is checked per method, not per module); the label counter and
// the builtin-once-per-script tracking set are shared across every method
// generated by this Generator, matching §4.6's "once per program" wording.
type Generator struct {
	el       *elaborate.Elaborator
	libs     *library.Registry
	labelSeq int
	builtins map[string]bool
	instrs   []assemble.Instr
	loops    []loopCtx
	regs     *regalloc.Allocator
	module   *ast.ModuleDecl
	// named holds every register bound to a parameter or local for the
	// method currently being generated, so generateMethod can release them
	// all before checking the "no leaks at method exit" invariant (§8) —
	// unlike expression temporaries, which callers deallocate immediately
	// after use, a param/local's lifetime is the whole method body.
	named []regalloc.RegId
	// variadicReturn mirrors the method currently being generated's
	// ReturnVariadic flag. Per §4.3, a `return expr;` in such a method only
	// pushes its value — it does not halt execution — so that a sequence of
	// them can leave multiple values on the stack; only a bare `return;` (or
	// falling off the end of the body) actually emits RET.
	variadicReturn bool
}

// NewGenerator creates a Generator over an already-elaborated program. el's
// Types side table is consulted to decide where implicit string casts are
// inserted; el itself is not mutated.
func NewGenerator(el *elaborate.Elaborator) *Generator {
	return &Generator{
		el:       el,
		libs:     library.NewRegistry(),
		builtins: make(map[string]bool),
	}
}

func (g *Generator) nextLabel(prefix string) string {
	g.labelSeq++
	return fmt.Sprintf("@%s_%d", prefix, g.labelSeq)
}

func (g *Generator) emit(instr assemble.Instr) {
	g.instrs = append(g.instrs, instr)
}

// GenerateModule emits every constructor/property/public/private/trigger
// method of mod, and recursively its sub-modules, into a single Program.
func (g *Generator) GenerateModule(mod *ast.ModuleDecl) (*assemble.Program, error) {
	g.module = mod
	if mod.Ctor != nil {
		if err := g.generateMethod(mod.Ctor); err != nil {
			return nil, err
		}
	}
	for _, p := range mod.Properties {
		if err := g.generateMethod(p); err != nil {
			return nil, err
		}
	}
	for _, m := range mod.Methods {
		if err := g.generateMethod(m); err != nil {
			return nil, err
		}
	}
	for _, tr := range mod.Triggers {
		if err := g.generateMethod(tr); err != nil {
			return nil, err
		}
	}
	for _, sub := range mod.SubModules {
		sg := NewGenerator(g.el)
		sg.labelSeq = g.labelSeq
		sg.builtins = g.builtins
		subProg, err := sg.GenerateModule(sub)
		if err != nil {
			return nil, err
		}
		g.labelSeq = sg.labelSeq
		g.instrs = append(g.instrs, subProg.Instrs...)
	}
	return &assemble.Program{Instrs: g.instrs}, nil
}

func (g *Generator) generateMethod(m *ast.MethodDecl) error {
	g.regs = regalloc.New()
	g.named = nil
	g.variadicReturn = m.ReturnVariadic
	g.emit(marker("@entry_"+m.Name, m.Line()))

	sc := newVarScope(nil)
	for _, p := range m.Params {
		r, err := g.regs.Alloc(p.Name)
		if err != nil {
			return err
		}
		g.emit(assemble.Instr{Op: assemble.OpPop, Args: []assemble.Operand{assemble.RegOperand(r)}, Line: m.Line()})
		sc.define(p.Name, r)
		g.named = append(g.named, r)
	}

	fellThrough := true
	for _, stmt := range m.Body {
		ret, err := g.generateStmt(sc, stmt)
		if err != nil {
			return err
		}
		if ret {
			fellThrough = false
		}
	}
	if fellThrough {
		g.emit(assemble.Instr{Op: assemble.OpRet, Line: m.Line()})
	}
	for _, r := range g.named {
		g.regs.Dealloc(r)
	}
	return g.regs.AssertNoLeaks()
}

// generateStmt emits instr(s) for stmt, returning true only for a ReturnStmt
// that emitted RET — a bare return, or a value return outside a
// variadic-return method (used by the caller to decide whether to synthesize
// a trailing RET for methods that fall off the end of their body).
func (g *Generator) generateStmt(sc *varScope, stmt ast.Statement) (bool, error) {
	switch s := stmt.(type) {
	case *ast.LocalStmt:
		if s.Decl.Init == nil {
			r, err := g.regs.Alloc(s.Decl.Name)
			if err != nil {
				return false, err
			}
			sc.define(s.Decl.Name, r)
			g.named = append(g.named, r)
			return false, nil
		}
		r, err := g.generateExpr(sc, s.Decl.Init)
		if err != nil {
			return false, err
		}
		sc.define(s.Decl.Name, r)
		g.named = append(g.named, r)
		return false, nil

	case *ast.AssignStmt:
		if idx, ok := s.Target.(*ast.IndexExpr); ok {
			return false, g.generateIndexAssign(sc, idx, s.Operator, s.Value, s.Line())
		}
		ident, ok := s.Target.(*ast.Ident)
		if !ok {
			if _, err := g.generateExpr(sc, s.Value); err != nil {
				return false, err
			}
			return false, nil
		}
		dst, ok := sc.resolve(ident.Value)
		if !ok {
			vr, err := g.generateExpr(sc, s.Value)
			if err != nil {
				return false, err
			}
			if s.Operator != "=" {
				cur, err := g.generateGlobalGet(ident.Value, s.Line())
				if err != nil {
					return false, err
				}
				op := arithOpcodeForAssign(s.Operator)
				g.emit(assemble.Instr{Op: op, Args: []assemble.Operand{assemble.RegOperand(cur), assemble.RegOperand(cur), assemble.RegOperand(vr)}, Line: s.Line()})
				g.regs.Dealloc(vr)
				vr = cur
			}
			g.generateGlobalSet(ident.Value, vr, s.Line())
			g.regs.Dealloc(vr)
			return false, nil
		}
		vr, err := g.generateExpr(sc, s.Value)
		if err != nil {
			return false, err
		}
		if s.Operator == "=" {
			g.emit(assemble.Instr{Op: assemble.OpCopy, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(vr)}, Line: s.Line()})
		} else {
			op := arithOpcodeForAssign(s.Operator)
			g.emit(assemble.Instr{Op: op, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(dst), assemble.RegOperand(vr)}, Line: s.Line()})
		}
		g.regs.Dealloc(vr)
		return false, nil

	case *ast.ExprStmt:
		r, err := g.generateExpr(sc, s.Expr)
		if err != nil {
			return false, err
		}
		g.regs.Dealloc(r)
		return false, nil

	case *ast.IfStmt:
		cond, err := g.generateExpr(sc, s.Condition)
		if err != nil {
			return false, err
		}
		elseLabel := g.nextLabel("else")
		endLabel := g.nextLabel("end")
		g.emit(assemble.Instr{Op: assemble.OpJmpNot, Args: []assemble.Operand{assemble.RegOperand(cond), assemble.JumpOperand(elseLabel)}, Line: s.Line()})
		g.regs.Dealloc(cond)
		if _, err := g.generateBlock(newVarScope(sc), s.Then); err != nil {
			return false, err
		}
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(endLabel)}, Line: s.Line()})
		g.emit(marker(elseLabel, s.Line()))
		if _, err := g.generateBlock(newVarScope(sc), s.Alt); err != nil {
			return false, err
		}
		g.emit(marker(endLabel, s.Line()))
		return false, nil

	case *ast.SwitchStmt:
		return false, g.generateSwitch(sc, s)

	case *ast.WhileStmt:
		loopLabel := g.nextLabel("loop")
		endLabel := g.nextLabel("end")
		g.emit(marker(loopLabel, s.Line()))
		cond, err := g.generateExpr(sc, s.Condition)
		if err != nil {
			return false, err
		}
		g.emit(assemble.Instr{Op: assemble.OpJmpNot, Args: []assemble.Operand{assemble.RegOperand(cond), assemble.JumpOperand(endLabel)}, Line: s.Line()})
		g.regs.Dealloc(cond)
		g.loops = append(g.loops, loopCtx{endLabel: endLabel, loopLabel: loopLabel})
		if _, err := g.generateBlock(newVarScope(sc), s.Body); err != nil {
			return false, err
		}
		g.loops = g.loops[:len(g.loops)-1]
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(loopLabel)}, Line: s.Line()})
		g.emit(marker(endLabel, s.Line()))
		return false, nil

	case *ast.DoWhileStmt:
		loopLabel := g.nextLabel("loop")
		endLabel := g.nextLabel("end")
		g.emit(marker(loopLabel, s.Line()))
		g.loops = append(g.loops, loopCtx{endLabel: endLabel, loopLabel: loopLabel})
		if _, err := g.generateBlock(newVarScope(sc), s.Body); err != nil {
			return false, err
		}
		g.loops = g.loops[:len(g.loops)-1]
		cond, err := g.generateExpr(sc, s.Condition)
		if err != nil {
			return false, err
		}
		g.emit(assemble.Instr{Op: assemble.OpJmpIf, Args: []assemble.Operand{assemble.RegOperand(cond), assemble.JumpOperand(loopLabel)}, Line: s.Line()})
		g.regs.Dealloc(cond)
		g.emit(marker(endLabel, s.Line()))
		return false, nil

	case *ast.ForStmt:
		forScope := newVarScope(sc)
		if s.Init != nil {
			if _, err := g.generateStmt(forScope, s.Init); err != nil {
				return false, err
			}
		}
		loopLabel := g.nextLabel("loop")
		endLabel := g.nextLabel("end")
		g.emit(marker(loopLabel, s.Line()))
		if s.Condition != nil {
			cond, err := g.generateExpr(forScope, s.Condition)
			if err != nil {
				return false, err
			}
			g.emit(assemble.Instr{Op: assemble.OpJmpNot, Args: []assemble.Operand{assemble.RegOperand(cond), assemble.JumpOperand(endLabel)}, Line: s.Line()})
			g.regs.Dealloc(cond)
		}
		g.loops = append(g.loops, loopCtx{endLabel: endLabel, loopLabel: loopLabel})
		if _, err := g.generateBlock(newVarScope(forScope), s.Body); err != nil {
			return false, err
		}
		g.loops = g.loops[:len(g.loops)-1]
		if s.Post != nil {
			if _, err := g.generateStmt(forScope, s.Post); err != nil {
				return false, err
			}
		}
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(loopLabel)}, Line: s.Line()})
		g.emit(marker(endLabel, s.Line()))
		return false, nil

	case *ast.BreakStmt:
		if len(g.loops) == 0 {
			return false, &compiler.CompilerError{Phase: compiler.PhaseCodeGen, Line: s.Line(), Message: "break outside of loop"}
		}
		top := g.loops[len(g.loops)-1]
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(top.endLabel)}, Line: s.Line()})
		return false, nil

	case *ast.ContinueStmt:
		if len(g.loops) == 0 {
			return false, &compiler.CompilerError{Phase: compiler.PhaseCodeGen, Line: s.Line(), Message: "continue outside of loop"}
		}
		top := g.loops[len(g.loops)-1]
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(top.loopLabel)}, Line: s.Line()})
		return false, nil

	case *ast.ReturnStmt:
		if s.Value == nil {
			g.emit(assemble.Instr{Op: assemble.OpRet, Line: s.Line()})
			return true, nil
		}
		r, err := g.generateExpr(sc, s.Value)
		if err != nil {
			return false, err
		}
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(r)}, Line: s.Line()})
		g.regs.Dealloc(r)
		if g.variadicReturn {
			// A value-return in a variadic-return method doesn't terminate:
			// it only contributes one value to the eventual multi-value
			// stack, so execution falls through to whatever follows.
			return false, nil
		}
		g.emit(assemble.Instr{Op: assemble.OpRet, Line: s.Line()})
		return true, nil

	case *ast.ThrowStmt:
		r, err := g.generateExpr(sc, s.Message)
		if err != nil {
			return false, err
		}
		g.emit(assemble.Instr{Op: assemble.OpThrow, Args: []assemble.Operand{assemble.RegOperand(r)}, Line: s.Line()})
		g.regs.Dealloc(r)
		return false, nil

	default:
		return false, nil
	}
}

// generateBlock emits instr(s) for every statement in body, returning true
// if the last statement generated was a ReturnStmt that emitted RET (see
// generateStmt) — callers use this the
// same way generateMethod uses generateStmt's return to decide whether a
// trailing jump/RET would be unreachable.
func (g *Generator) generateBlock(sc *varScope, body []ast.Statement) (bool, error) {
	ret := false
	for _, stmt := range body {
		r, err := g.generateStmt(sc, stmt)
		if err != nil {
			return false, err
		}
		ret = r
	}
	return ret, nil
}

// generateSwitch lowers a switch statement as a chain of LOAD/EQUAL/JMPIF
// comparisons against each case value, falling through to the default case
// (or past the switch if there is none) when nothing matches (§4.5).
func (g *Generator) generateSwitch(sc *varScope, s *ast.SwitchStmt) error {
	scrut, err := g.generateExpr(sc, s.Scrutinee)
	if err != nil {
		return err
	}
	endLabel := g.nextLabel("end")
	var defaultLabel string
	caseLabels := make([]string, len(s.Cases))
	for i := range s.Cases {
		caseLabels[i] = g.nextLabel(fmt.Sprintf("case_%d", i))
	}

	for i, c := range s.Cases {
		if c.Default {
			defaultLabel = caseLabels[i]
			continue
		}
		lit, err := g.generateExpr(sc, c.Value)
		if err != nil {
			return err
		}
		cmp, err := g.regs.Alloc("cmp")
		if err != nil {
			return err
		}
		g.emit(assemble.Instr{Op: assemble.OpEqual, Args: []assemble.Operand{assemble.RegOperand(cmp), assemble.RegOperand(scrut), assemble.RegOperand(lit)}, Line: s.Line()})
		g.emit(assemble.Instr{Op: assemble.OpJmpIf, Args: []assemble.Operand{assemble.RegOperand(cmp), assemble.JumpOperand(caseLabels[i])}, Line: s.Line()})
		g.regs.Dealloc(lit)
		g.regs.Dealloc(cmp)
	}
	if defaultLabel != "" {
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(defaultLabel)}, Line: s.Line()})
	} else {
		g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(endLabel)}, Line: s.Line()})
	}
	g.regs.Dealloc(scrut)

	// break inside a case jumps to endLabel, same as a loop's end label.
	g.loops = append(g.loops, loopCtx{endLabel: endLabel, loopLabel: endLabel})
	for i, c := range s.Cases {
		g.emit(marker(caseLabels[i], s.Line()))
		ret, err := g.generateBlock(newVarScope(sc), c.Body)
		if err != nil {
			return err
		}
		// §4.5: case blocks end with `JMP @end_N` unless they return — a
		// case body whose last statement already emitted RET needs no
		// redundant jump to endLabel. A final `return expr;` in a
		// variadic-return method only PUSHes, so that case still gets the jump.
		if !ret {
			g.emit(assemble.Instr{Op: assemble.OpJmp, Args: []assemble.Operand{assemble.JumpOperand(endLabel)}, Line: s.Line()})
		}
	}
	g.loops = g.loops[:len(g.loops)-1]
	g.emit(marker(endLabel, s.Line()))
	return nil
}

func arithOpcodeForAssign(op string) assemble.Opcode {
	switch op {
	case "+=":
		return assemble.OpAdd
	case "-=":
		return assemble.OpSub
	case "*=":
		return assemble.OpMul
	case "/=":
		return assemble.OpDiv
	case "%=":
		return assemble.OpMod
	default:
		return assemble.OpCopy
	}
}

func binOpcode(op string) (assemble.Opcode, bool) {
	switch op {
	case "+":
		return assemble.OpAdd, true
	case "-":
		return assemble.OpSub, true
	case "*":
		return assemble.OpMul, true
	case "/":
		return assemble.OpDiv, true
	case "%":
		return assemble.OpMod, true
	case "==":
		return assemble.OpEqual, true
	case "!=":
		return assemble.OpNeq, true
	case "<":
		return assemble.OpLt, true
	case "<=":
		return assemble.OpLte, true
	case ">":
		return assemble.OpGt, true
	case ">=":
		return assemble.OpGte, true
	case "<<":
		return assemble.OpShl, true
	case ">>":
		return assemble.OpShr, true
	case "&&":
		return assemble.OpAnd, true
	case "||":
		return assemble.OpOr, true
	case "&":
		return assemble.OpAnd, true
	case "|":
		return assemble.OpOr, true
	case "^":
		return assemble.OpXor, true
	default:
		return 0, false
	}
}

func (g *Generator) generateExpr(sc *varScope, expr ast.Expression) (regalloc.RegId, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		if r, ok := sc.resolve(e.Value); ok {
			dst, err := g.regs.Alloc(e.Value)
			if err != nil {
				return 0, err
			}
			g.emit(assemble.Instr{Op: assemble.OpCopy, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(r)}, Line: e.Line()})
			return dst, nil
		}
		// Unresolved identifiers name globals, lowered via Data.Get (§4.5).
		return g.generateGlobalGet(e.Value, e.Line())

	case *ast.IntLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(e.Value)}, Line: e.Line()})
		return r, nil

	case *ast.DecimalLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(e.Value)}, Line: e.Line()})
		return r, nil

	case *ast.StringLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(e.Value)}, Line: e.Line()})
		return r, nil

	case *ast.CharLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(string(e.Value))}, Line: e.Line()})
		return r, nil

	case *ast.BoolLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		lit := "false"
		if e.Value {
			lit = "true"
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(lit)}, Line: e.Line()})
		return r, nil

	case *ast.AddressLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand("0x" + e.Value)}, Line: e.Line()})
		return r, nil

	case *ast.HexLiteral:
		r, err := g.regs.Alloc("lit")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand("0x" + e.Value)}, Line: e.Line()})
		return r, nil

	case *ast.ArrayLiteral:
		return g.generateArrayLiteral(sc, e)

	case *ast.PrefixExpr:
		r, err := g.generateExpr(sc, e.Right)
		if err != nil {
			return 0, err
		}
		dst, err := g.regs.Alloc("tmp")
		if err != nil {
			return 0, err
		}
		op := assemble.OpNeg
		if e.Operator == "!" {
			op = assemble.OpNot
		}
		g.emit(assemble.Instr{Op: op, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(r)}, Line: e.Line()})
		g.regs.Dealloc(r)
		return dst, nil

	case *ast.InfixExpr:
		return g.generateInfix(sc, e)

	case *ast.IndexExpr:
		arr, err := g.generateExpr(sc, e.Array)
		if err != nil {
			return 0, err
		}
		idx, err := g.generateExpr(sc, e.Index)
		if err != nil {
			return 0, err
		}
		dst, err := g.regs.Alloc("elem")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpArrayGet, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(arr), assemble.RegOperand(idx)}, Line: e.Line()})
		g.regs.Dealloc(arr)
		g.regs.Dealloc(idx)
		return dst, nil

	case *ast.FieldExpr:
		obj, err := g.generateExpr(sc, e.Object)
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(obj)}, Line: e.Line()})
		g.regs.Dealloc(obj)
		dst, err := g.regs.Alloc("field")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand(e.Field)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})
		return dst, nil

	case *ast.CallExpr:
		return g.generateLibraryCall(sc, e)

	case *ast.MethodCallExpr:
		return g.generateLocalCall(sc, e)

	case *ast.ConstructorCallExpr:
		return g.generateStructLiteral(sc, e)

	case *ast.MacroExpr:
		return g.generateMacro(e)

	default:
		return 0, &compiler.CompilerError{Phase: compiler.PhaseCodeGen, Line: expr.Line(), Message: "codegen: unsupported expression"}
	}
}

func (g *Generator) generateInfix(sc *varScope, e *ast.InfixExpr) (regalloc.RegId, error) {
	l, err := g.generateExpr(sc, e.Left)
	if err != nil {
		return 0, err
	}
	r, err := g.generateExpr(sc, e.Right)
	if err != nil {
		return 0, err
	}
	op, ok := binOpcode(e.Operator)
	if !ok {
		return 0, &compiler.CompilerError{Phase: compiler.PhaseCodeGen, Line: e.Line(), Message: "codegen: unknown operator " + e.Operator}
	}
	if e.Operator == "+" {
		lt, lok := g.el.Types[e.Left]
		rt, rok := g.el.Types[e.Right]
		if lok && rok {
			if lt.Kind() == types.KindString && rt.Kind() != types.KindString {
				r = g.castToString(r, e.Line())
			} else if rt.Kind() == types.KindString && lt.Kind() != types.KindString {
				l = g.castToString(l, e.Line())
			}
		}
	}
	dst, err := g.regs.Alloc("tmp")
	if err != nil {
		return 0, err
	}
	g.emit(assemble.Instr{Op: op, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(l), assemble.RegOperand(r)}, Line: e.Line()})
	g.regs.Dealloc(l)
	g.regs.Dealloc(r)
	return dst, nil
}

func (g *Generator) castToString(r regalloc.RegId, line int) regalloc.RegId {
	g.emit(assemble.Instr{Op: assemble.OpCast, Args: []assemble.Operand{assemble.RegOperand(r), assemble.RegOperand(r)}, Line: line})
	return r
}

func (g *Generator) generateArrayLiteral(sc *varScope, e *ast.ArrayLiteral) (regalloc.RegId, error) {
	arr, err := g.regs.Alloc("arr")
	if err != nil {
		return 0, err
	}
	g.emit(assemble.Instr{Op: assemble.OpArrayNew, Args: []assemble.Operand{assemble.RegOperand(arr), assemble.VarintOperand(int64(len(e.Elements)))}, Line: e.Line()})
	for i, elem := range e.Elements {
		v, err := g.generateExpr(sc, elem)
		if err != nil {
			return 0, err
		}
		idxR, err := g.regs.Alloc("idx")
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(idxR), assemble.StringOperand(strconv.Itoa(i))}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpArraySet, Args: []assemble.Operand{assemble.RegOperand(arr), assemble.RegOperand(idxR), assemble.RegOperand(v)}, Line: e.Line()})
		g.regs.Dealloc(idxR)
		g.regs.Dealloc(v)
	}
	return arr, nil
}

// generateIndexAssign lowers `arr[idx] (op)= value` — compound operators
// read the current element via ARRAY_GET before combining, plain `=`
// assigns directly via ARRAY_SET.
func (g *Generator) generateIndexAssign(sc *varScope, idx *ast.IndexExpr, operator string, value ast.Expression, line int) error {
	arr, err := g.generateExpr(sc, idx.Array)
	if err != nil {
		return err
	}
	ix, err := g.generateExpr(sc, idx.Index)
	if err != nil {
		return err
	}
	vr, err := g.generateExpr(sc, value)
	if err != nil {
		return err
	}
	if operator != "=" {
		cur, err := g.regs.Alloc("elem")
		if err != nil {
			return err
		}
		g.emit(assemble.Instr{Op: assemble.OpArrayGet, Args: []assemble.Operand{assemble.RegOperand(cur), assemble.RegOperand(arr), assemble.RegOperand(ix)}, Line: line})
		op := arithOpcodeForAssign(operator)
		g.emit(assemble.Instr{Op: op, Args: []assemble.Operand{assemble.RegOperand(cur), assemble.RegOperand(cur), assemble.RegOperand(vr)}, Line: line})
		g.regs.Dealloc(vr)
		vr = cur
	}
	g.emit(assemble.Instr{Op: assemble.OpArraySet, Args: []assemble.Operand{assemble.RegOperand(arr), assemble.RegOperand(ix), assemble.RegOperand(vr)}, Line: line})
	g.regs.Dealloc(arr)
	g.regs.Dealloc(ix)
	g.regs.Dealloc(vr)
	return nil
}

// generateGlobalGet lowers a bare identifier that resolves to no local
// register into a Data.Get ext-call, pushing the key and loading+calling
// the intrinsic name the same way a library call does (§4.5).
func (g *Generator) generateGlobalGet(name string, line int) (regalloc.RegId, error) {
	keyR, err := g.regs.Alloc("key")
	if err != nil {
		return 0, err
	}
	g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(keyR), assemble.StringOperand(name)}, Line: line})
	g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(keyR)}, Line: line})
	g.regs.Dealloc(keyR)

	dst, err := g.regs.Alloc(name)
	if err != nil {
		return 0, err
	}
	g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand("data.get")}, Line: line})
	g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: line})
	return dst, nil
}

func (g *Generator) generateGlobalSet(name string, v regalloc.RegId, line int) {
	g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(v)}, Line: line})

	keyR, err := g.regs.Alloc("key")
	if err != nil {
		return
	}
	g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(keyR), assemble.StringOperand(name)}, Line: line})
	g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(keyR)}, Line: line})
	g.regs.Dealloc(keyR)

	callR, err := g.regs.Alloc("call")
	if err != nil {
		return
	}
	g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(callR), assemble.StringOperand("data.set")}, Line: line})
	g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(callR)}, Line: line})
	g.regs.Dealloc(callR)
}

func (g *Generator) generateMacro(e *ast.MacroExpr) (regalloc.RegId, error) {
	r, err := g.regs.Alloc("macro")
	if err != nil {
		return 0, err
	}
	switch e.Kind {
	case ast.MacroThisAddress:
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand("$THIS_ADDRESS")}, Line: e.Line()})
	case ast.MacroThisSymbol:
		name := ""
		if g.module != nil {
			name = g.module.Name
		}
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand(name)}, Line: e.Line()})
	case ast.MacroTypeOf:
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(r), assemble.StringOperand("0")}, Line: e.Line()})
	}
	return r, nil
}

// generateLibraryCall implements §4.6's five lowering strategies.
func (g *Generator) generateLibraryCall(sc *varScope, e *ast.CallExpr) (regalloc.RegId, error) {
	lib, method, ok := g.libs.Lookup(e.Library, e.Method)
	if !ok {
		return 0, &compiler.CompilerError{Phase: compiler.PhaseCodeGen, Line: e.Line(), Message: "codegen: unknown library method " + e.Library + "." + e.Method}
	}
	// Arguments are pushed right-to-left before the call (§4.6).
	for i := len(e.Args) - 1; i >= 0; i-- {
		ar, err := g.generateExpr(sc, e.Args[i])
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(ar)}, Line: e.Line()})
		g.regs.Dealloc(ar)
	}

	dst, err := g.regs.Alloc("call")
	if err != nil {
		return 0, err
	}

	switch method.Strategy {
	case library.ExtCall:
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand(method.ExtName)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})

	case library.ContractCall:
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand(method.Name)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand(lib.Name)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpCtx, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.RegOperand(dst)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpSwitch, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})

	case library.LocalCall:
		g.emit(assemble.Instr{Op: assemble.OpCall, Args: []assemble.Operand{assemble.JumpOperand("@entry_" + method.Name)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpPop, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})

	case library.BuiltinInline:
		g.emitBuiltinOnce(method.Builtin, e.Line())
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand("builtin." + method.Builtin)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})

	case library.Custom:
		g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand(lib.Name + "." + method.Name)}, Line: e.Line()})
		g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})
	}
	return dst, nil
}

// emitBuiltinOnce appends a canned snippet for name to the builtin section
// the first time it is requested by this Generator; later requests are
// no-ops, implementing the "once per program" rule (§4.6).
func (g *Generator) emitBuiltinOnce(name string, line int) {
	if g.builtins[name] {
		return
	}
	g.builtins[name] = true
	g.emit(assemble.Instr{
		Op:    assemble.OpLoad,
		Args:  []assemble.Operand{assemble.RegOperand(0), assemble.StringOperand("builtin." + name)},
		Label: "@builtin_" + name,
		Line:  line,
	})
	g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(0)}, Line: line})
}

func (g *Generator) generateLocalCall(sc *varScope, e *ast.MethodCallExpr) (regalloc.RegId, error) {
	for i := len(e.Args) - 1; i >= 0; i-- {
		ar, err := g.generateExpr(sc, e.Args[i])
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(ar)}, Line: e.Line()})
		g.regs.Dealloc(ar)
	}
	g.emit(assemble.Instr{Op: assemble.OpCall, Args: []assemble.Operand{assemble.JumpOperand("@entry_" + e.Method)}, Line: e.Line()})
	dst, err := g.regs.Alloc("ret")
	if err != nil {
		return 0, err
	}
	g.emit(assemble.Instr{Op: assemble.OpPop, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})
	return dst, nil
}

func (g *Generator) generateStructLiteral(sc *varScope, e *ast.ConstructorCallExpr) (regalloc.RegId, error) {
	dst, err := g.regs.Alloc("struct")
	if err != nil {
		return 0, err
	}
	g.emitBuiltinOnce("struct_pack", e.Line())
	for _, a := range e.Args {
		ar, err := g.generateExpr(sc, a)
		if err != nil {
			return 0, err
		}
		g.emit(assemble.Instr{Op: assemble.OpPush, Args: []assemble.Operand{assemble.RegOperand(ar)}, Line: e.Line()})
		g.regs.Dealloc(ar)
	}
	g.emit(assemble.Instr{Op: assemble.OpLoad, Args: []assemble.Operand{assemble.RegOperand(dst), assemble.StringOperand("builtin.struct_pack")}, Line: e.Line()})
	g.emit(assemble.Instr{Op: assemble.OpExtCall, Args: []assemble.Operand{assemble.RegOperand(dst)}, Line: e.Line()})
	return dst, nil
}
