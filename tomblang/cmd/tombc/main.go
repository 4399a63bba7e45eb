// Copyright 2024 The TombLang Authors
// This file is part of TombLang.

// Command tombc is the TombLang compiler driver.
//
// Usage:
//
//	tombc [flags] <source.tomb>
//
// Flags:
//
//	-o <output>    Output file (default: stdout)
//	-emit <stage>  Emit intermediate output: tokens, ast, asm, bytecode, abi (default: bytecode)
//	-verify        Run bytecode verifier (default: true)
//	-version       Print version and exit
//
// tombc is a thin smoke-test driver over the tomblang/compile pipeline; it
// is explicitly out of this repository's specified core (file I/O and
// CLI/driver concerns), kept only as the manual-testing entry point the
// compiler's own public API anticipates.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tomblang/tomblang/tomblang/compile"
	"github.com/tomblang/tomblang/tomblang/lang/assemble"
	"github.com/tomblang/tomblang/tomblang/lang/codegen"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/elaborate"
	"github.com/tomblang/tomblang/tomblang/lang/lexer"
	"github.com/tomblang/tomblang/tomblang/lang/parser"
)

const version = "0.1.0"

func main() {
	var (
		output = flag.String("o", "", "Output file (default: stdout)")
		emit   = flag.String("emit", "bytecode", "Emit stage: tokens, ast, asm, bytecode, abi")
		verify = flag.Bool("verify", true, "Run bytecode verifier")
		ver    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("tombc %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tombc [flags] <source.tomb>")
		os.Exit(1)
	}

	filename := flag.Arg(0)
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if err := run(filename, string(source), *emit, *verify, out); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(filename, source, emit string, verify bool, out *os.File) error {
	switch emit {
	case "tokens":
		return emitTokens(filename, source, out)
	case "ast":
		return emitAST(filename, source, out)
	case "asm":
		return emitAsm(filename, source, out)
	case "bytecode":
		return emitBytecode(filename, source, verify, out)
	case "abi":
		return emitABI(filename, source, out)
	default:
		return fmt.Errorf("unknown emit stage: %s", emit)
	}
}

func emitTokens(filename, source string, out *os.File) error {
	l := lexer.New(filename, source)
	for _, tok := range l.Tokenize() {
		fmt.Fprintf(out, "%s\t%s\t%q\n", tok.Pos, tok.Type, tok.Literal)
	}
	return nil
}

func emitAST(filename, source string, out *os.File) error {
	prog, err := parser.Parse(filename, source)
	if err != nil {
		return err
	}
	fmt.Fprint(out, prog.String())
	return nil
}

// emitAsm exposes the intermediate assemble.Program text per module, which
// the compiler.Compiler's public API (script bytes only) deliberately does
// not surface.
func emitAsm(filename, source string, out *os.File) error {
	prog, err := parser.Parse(filename, source)
	if err != nil {
		return err
	}
	ctx := compiler.NewCompileContext(compiler.NewColorLogger(), 0)
	el := elaborate.New(ctx, nil)
	if err := el.Elaborate(prog); err != nil {
		return err
	}

	for _, mod := range prog.Modules {
		gen := codegen.NewGenerator(el)
		asmProg, err := gen.GenerateModule(mod)
		if err != nil {
			return err
		}
		printAsm(out, asmProg)
	}
	return nil
}

func printAsm(out *os.File, p *assemble.Program) {
	for _, instr := range p.Instrs {
		if instr.Label != "" {
			fmt.Fprintf(out, "%s:\n", instr.Label)
		}
		fmt.Fprintf(out, "\t%s\n", instr.Op)
	}
}

func emitBytecode(filename, source string, verify bool, out *os.File) error {
	c := compile.New(compiler.CompilerConfig{Logger: compiler.NewColorLogger()})
	modules, err := c.Compile(filename, source)
	if err != nil {
		return err
	}
	for _, m := range modules {
		if verify {
			if errs := codegen.Verify(m.Script); len(errs) > 0 {
				return fmt.Errorf("module %s: %d verification error(s): %v", m.Name, len(errs), errs[0])
			}
		}
		out.Write(m.Script)
	}
	return nil
}

func emitABI(filename, source string, out *os.File) error {
	c := compile.New(compiler.CompilerConfig{Logger: compiler.NewColorLogger()})
	modules, err := c.Compile(filename, source)
	if err != nil {
		return err
	}
	for _, m := range modules {
		out.Write(m.ABI)
	}
	return nil
}
