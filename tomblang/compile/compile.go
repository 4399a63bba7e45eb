// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compile wires the lexer/parser, elaborator, code generator,
// assembler, and ABI serializer together into one lang/compiler.Compiler.
// It is the one place in the module allowed to import all five lang/*
// pipeline packages at once: each of them already imports lang/compiler
// for CompilerError/Phase, so lang/compiler itself cannot import any of
// them back without a cycle. cmd/tombc and integration/rpc.go both depend
// on this package rather than hand-assembling the pipeline themselves.
package compile

import (
	"github.com/tomblang/tomblang/tomblang/lang/abi"
	"github.com/tomblang/tomblang/tomblang/lang/ast"
	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/codegen"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
)

// New builds a ready-to-use Compiler with the default pipeline: lang/parser
// for lexing+parsing, a fresh lang/elaborate.Elaborator per compilation
// (resolver is nil — no Custom-strategy library callbacks are registered
// at this layer; a caller needing one should construct its own Pipeline
// instead of using this convenience), lang/codegen for code generation, and
// lang/abi for ABI serialization.
func New(cfg compiler.CompilerConfig) *compiler.Compiler {
	return NewWithResolver(cfg, nil)
}

// NewWithResolver is like New but threads a CustomResolver into every
// per-compilation Elaborator, for embedders that register Custom-strategy
// library callbacks (§4.6).
func NewWithResolver(cfg compiler.CompilerConfig, resolver elaborate.CustomResolver) *compiler.Compiler {
	newPipeline := func(ctx *compiler.CompileContext) compiler.Pipeline {
		el := elaborate.New(ctx, resolver)
		return compiler.Pipeline{
			Elaborate: el.Elaborate,
			GenerateModule: func(mod *ast.ModuleDecl) (*assemble.Program, error) {
				// A fresh Generator per top-level module: codegen.Generator
				// accumulates emitted Instrs across its own lifetime, and
				// GenerateModule already recurses into sub-modules with
				// its own fresh Generator internally, so top-level callers
				// must not reuse one Generator across sibling modules.
				gen := codegen.NewGenerator(el)
				return gen.GenerateModule(mod)
			},
		}
	}

	return compiler.NewCompiler(cfg, compiler.ParserFunc(parser.Parse), newPipeline, abi.Serialize)
}
