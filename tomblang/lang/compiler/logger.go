// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"io"
	"os"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger is the structured-diagnostics sink a Compiler reports phase
// progress through. It is injected per-instance (never package-global) so
// that concurrent compilations never share mutable logging state.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// noopLogger discards everything; it is the default when a CompilerConfig
// does not supply a Logger.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warnf(string, ...interface{})  {}

// colorLogger writes phase-tagged, colorized diagnostics to an io.Writer.
// Colors degrade automatically on non-TTY destinations via go-isatty/
// go-colorable, matching the donor's own CLI logging idiom.
type colorLogger struct {
	out   io.Writer
	debug *color.Color
	info  *color.Color
	warn  *color.Color
}

// NewColorLogger builds a Logger that writes to os.Stderr, auto-detecting
// TTY support (Windows ANSI translation via go-colorable, color gating via
// go-isatty) exactly like the donor CLI's diagnostic output.
func NewColorLogger() Logger {
	var out io.Writer = os.Stderr
	if f, ok := out.(*os.File); ok {
		if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
			out = colorable.NewColorable(f)
		} else {
			color.NoColor = true
		}
	}
	return &colorLogger{
		out:   out,
		debug: color.New(color.FgHiBlack),
		info:  color.New(color.FgCyan),
		warn:  color.New(color.FgYellow, color.Bold),
	}
}

func (l *colorLogger) Debugf(format string, args ...interface{}) {
	l.debug.Fprintf(l.out, "[debug] "+format+"\n", args...)
}

func (l *colorLogger) Infof(format string, args ...interface{}) {
	l.info.Fprintf(l.out, "[info] "+format+"\n", args...)
}

func (l *colorLogger) Warnf(format string, args ...interface{}) {
	l.warn.Fprintf(l.out, "[warn] "+format+"\n", args...)
}
