// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler ties the lexer, parser, elaborator, code generator,
// assembler, and ABI serializer into the single `compile(source) -> [Module]`
// entry point, and holds the ambient per-compilation state (§5) that the
// source PROBE compiler used to keep in package-level globals.
package compiler

import "fmt"

// Phase identifies which pipeline stage raised a CompilerError.
type Phase int

const (
	PhaseLex Phase = iota
	PhaseParse
	PhaseResolve
	PhaseTypeCheck
	PhaseCodeGen
	PhaseAssemble
)

func (p Phase) String() string {
	switch p {
	case PhaseLex:
		return "lex"
	case PhaseParse:
		return "parse"
	case PhaseResolve:
		return "resolve"
	case PhaseTypeCheck:
		return "typecheck"
	case PhaseCodeGen:
		return "codegen"
	case PhaseAssemble:
		return "assemble"
	default:
		return "unknown"
	}
}

// CompilerError is the single error kind the compiler raises; it aborts the
// compilation on first occurrence (§7: no recovery, no partial output).
type CompilerError struct {
	Line    int
	Column  int
	Phase   Phase
	Message string
}

func (e *CompilerError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Phase, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s:%d: %s", e.Phase, e.Line, e.Message)
}

// newErr builds a CompilerError for the given phase and line, formatting the
// message with fmt.Sprintf semantics.
func newErr(phase Phase, line int, format string, args ...interface{}) *CompilerError {
	return &CompilerError{Line: line, Phase: phase, Message: fmt.Sprintf(format, args...)}
}
