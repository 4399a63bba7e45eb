// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"strings"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/ast"
)

// Module is one compiled top-level (or nested) unit: its name, kind, the
// assembled bytecode script, and its ABI frame, recursively carrying its
// own sub-modules (§4.8's public API: `Module = {name, kind, script, abi,
// sub_modules}`).
type Module struct {
	Name       string
	Kind       ast.ModuleKind
	Script     []byte
	ABI        []byte
	SubModules []*Module
}

// Parser is the narrow surface this package needs from lang/parser,
// expressed as an interface so compiler never imports parser/elaborate/
// codegen/abi directly: all four of those already import this package for
// CompilerError/Phase, so the reverse import would cycle. tomblang/compile,
// which sits above all five packages, closes the loop by supplying the
// concrete implementations at wiring time.
type Parser interface {
	Parse(filename, source string) (*ast.Program, error)
}

// Pipeline bundles the per-compilation elaborate and codegen stages. Both
// close over the same underlying *elaborate.Elaborator, since codegen
// consults the elaborator's resolved-type side table — which is why these
// two stages travel together as one Pipeline value rather than as two
// independently-constructed factories.
type Pipeline struct {
	Elaborate      func(prog *ast.Program) error
	GenerateModule func(mod *ast.ModuleDecl) (*assemble.Program, error)
}

// PipelineFactory builds a fresh Pipeline bound to one CompileContext,
// matching elaborate.New's per-compilation instantiation (§5: no
// process-global elaborator or codegen state).
type PipelineFactory func(ctx *CompileContext) Pipeline

// ABIBuilder serializes one elaborated module's method table (§4.8).
type ABIBuilder func(mod *ast.ModuleDecl) []byte

// Compiler ties the lexer, parser, elaborator, code generator, assembler,
// and ABI serializer into the single `compile(source) -> [Module]` entry
// point named in §4.8. It holds no mutable state of its own beyond its
// CompilerConfig: every Compile call builds a fresh CompileContext and
// Pipeline so concurrent calls on the same *Compiler never share
// scope/line ambient state (§5).
type Compiler struct {
	cfg         CompilerConfig
	parse       Parser
	newPipeline PipelineFactory
	buildABI    ABIBuilder
}

// NewCompiler wires the pipeline stages together. Callers supply the
// concrete lang/parser.Parse function (as a Parser), a PipelineFactory
// that closes over lang/elaborate.New and lang/codegen.NewGenerator, and
// lang/abi.Serialize as the ABIBuilder.
func NewCompiler(cfg CompilerConfig, p Parser, newPipeline PipelineFactory, buildABI ABIBuilder) *Compiler {
	return &Compiler{
		cfg:         cfg.withDefaults(),
		parse:       p,
		newPipeline: newPipeline,
		buildABI:    buildABI,
	}
}

// ParserFunc adapts a bare function to the Parser interface, the way
// http.HandlerFunc adapts a function to http.Handler.
type ParserFunc func(filename, source string) (*ast.Program, error)

func (f ParserFunc) Parse(filename, source string) (*ast.Program, error) {
	return f(filename, source)
}

// Compile runs the full pipeline over one source file, returning one
// Module per top-level declaration. It fails fast on the first
// CompilerError: there are no partial results and no retries (§4.8
// Cancellation semantics).
func (c *Compiler) Compile(filename, source string) ([]*Module, error) {
	ctx := NewCompileContext(c.cfg.Logger, c.cfg.InternCapacity)
	ctx.Logger.Infof("compiling %s (trace %s)", filename, ctx.TraceID)

	prog, err := c.parse.Parse(filename, source)
	if err != nil {
		return nil, err
	}
	ctx.Logger.Debugf("parsed %d top-level module(s)", len(prog.Modules))

	pipeline := c.newPipeline(ctx)
	if err := pipeline.Elaborate(prog); err != nil {
		return nil, err
	}
	ctx.Logger.Debugf("elaboration complete")

	modules := make([]*Module, 0, len(prog.Modules))
	for _, mod := range prog.Modules {
		m, err := c.compileModule(pipeline, mod)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	return modules, nil
}

// CompileLines is the convenience form of Compile that accepts source
// already split into lines (§4.8: "A convenience accepts [line] for
// per-line source"), e.g. from a websocket diagnostics stream that edits
// one line at a time.
func (c *Compiler) CompileLines(filename string, lines []string) ([]*Module, error) {
	return c.Compile(filename, strings.Join(lines, "\n"))
}

func (c *Compiler) compileModule(pipeline Pipeline, mod *ast.ModuleDecl) (*Module, error) {
	script, err := pipeline.GenerateModule(mod)
	if err != nil {
		return nil, err
	}
	bytecode, err := assemble.Assemble(script)
	if err != nil {
		return nil, err
	}

	out := &Module{
		Name:   mod.Name,
		Kind:   mod.Kind,
		Script: bytecode,
		ABI:    c.buildABI(mod),
	}
	for _, sub := range mod.SubModules {
		subMod, err := c.compileModule(pipeline, sub)
		if err != nil {
			return nil, err
		}
		out.SubModules = append(out.SubModules, subMod)
	}
	return out, nil
}
