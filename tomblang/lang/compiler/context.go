// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"github.com/google/uuid"

	"github.com/tomblang/tomblang/tomblang/lang/types"
)

// CompileContext carries the ambient state a single compilation needs:
// the type interner, the logger, and a trace ID for correlating diagnostics
// across the lex/parse/elaborate/codegen/assemble pipeline. The source
// compiler kept its "current scope" and "current source line" in static
// fields; here they are instance-owned so N compilations can run
// concurrently on N goroutines without interference (§5).
type CompileContext struct {
	Interner *types.Interner
	Logger   Logger
	TraceID  uuid.UUID
}

// NewCompileContext creates a fresh, isolated context for one compilation.
func NewCompileContext(logger Logger, internCapacity int) *CompileContext {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CompileContext{
		Interner: types.NewInterner(internCapacity),
		Logger:   logger,
		TraceID:  uuid.New(),
	}
}

// CompilerConfig configures a Compiler instance (§12 Configuration).
type CompilerConfig struct {
	// Logger receives phase-tagged diagnostics. Defaults to a silent no-op.
	Logger Logger
	// InternCapacity bounds the type interner's LRU cache size per
	// compilation. Defaults to 256.
	InternCapacity int
}

func (cfg CompilerConfig) withDefaults() CompilerConfig {
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	if cfg.InternCapacity <= 0 {
		cfg.InternCapacity = 256
	}
	return cfg
}
