// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package regalloc manages a fixed-size pool of VM registers with lifetimes
// tied to AST nodes (§4.4). It generalizes the donor code generator's inline
// regMap/nextReg bookkeeping into a free-list allocator that can release and
// reuse registers mid-method, which a monotonic counter cannot do.
package regalloc

import "github.com/tomblang/tomblang/tomblang/lang/compiler"

// BankSize is the number of addressable registers in the target VM's
// register file (§3: "a fixed finite bank (≥ 32)").
const BankSize = 64

// RegId identifies a register within one method's allocation scope.
type RegId int

// Allocator hands out RegIds from a free-list over a fixed bank, tracking a
// debug alias per bound register for emitted assembly comments.
type Allocator struct {
	free  []RegId // free-list, LIFO for locality
	bound map[RegId]string
	high  RegId // highest RegId ever handed out
}

// New creates an allocator over BankSize registers, all initially free.
func New() *Allocator {
	a := &Allocator{bound: make(map[RegId]string)}
	for i := RegId(BankSize - 1); i >= 0; i-- {
		a.free = append(a.free, i)
	}
	return a
}

// Alloc reserves a register, recording hint as its debug alias. Fails with a
// CompilerError containing "register pressure exceeded" when the bank is
// exhausted.
func (a *Allocator) Alloc(hint string) (RegId, error) {
	if len(a.free) == 0 {
		return 0, &compiler.CompilerError{
			Phase:   compiler.PhaseCodeGen,
			Message: "register pressure exceeded: no free registers for " + hint,
		}
	}
	r := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.bound[r] = hint
	if r > a.high {
		a.high = r
	}
	return r, nil
}

// Dealloc releases r back to the free-list. Double-release is a programmer
// error in the code generator, not a user-facing diagnostic, so it panics.
func (a *Allocator) Dealloc(r RegId) {
	if _, ok := a.bound[r]; !ok {
		panic("regalloc: double-free of register")
	}
	delete(a.bound, r)
	a.free = append(a.free, r)
}

// With allocates a register for the duration of body, always releasing it
// afterward — including when body returns an error — implementing the
// scoped `with(RegId, body)` operation from §4.4.
func (a *Allocator) With(hint string, body func(RegId) error) error {
	r, err := a.Alloc(hint)
	if err != nil {
		return err
	}
	defer a.Dealloc(r)
	return body(r)
}

// Live reports the number of currently-bound registers.
func (a *Allocator) Live() int {
	return len(a.bound)
}

// AssertNoLeaks returns an error if any register remains bound — the
// invariant a method body must satisfy at every RET (§8).
func (a *Allocator) AssertNoLeaks() error {
	if len(a.bound) == 0 {
		return nil
	}
	return &compiler.CompilerError{
		Phase:   compiler.PhaseCodeGen,
		Message: "register leak: registers still bound at method exit",
	}
}
