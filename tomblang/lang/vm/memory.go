// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// TombLang is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with TombLang. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"errors"

	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
)

// ErrInvalidAddress is returned when an instruction references a register
// index outside the allocator's bank — the same bound lang/codegen/verify.go
// checks statically against regalloc.BankSize, re-checked here at execution
// time since the VM does not assume its input already passed Verify.
var ErrInvalidAddress = errors.New("vm: register index out of bounds")

// ErrStackUnderflow is returned by Pop on an empty data stack.
var ErrStackUnderflow = errors.New("vm: stack underflow")

// Memory is a VM instance's mutable state: the register bank a method body
// addresses directly, the data stack PUSH/POP/argument-passing move values
// through, and the key/value store Data.Get/Data.Set (the ExtCall strategy
// generateGlobalGet/generateGlobalSet lower to, §4.5) read and write.
//
// There is no linear byte-addressable memory model here, unlike the donor's
// allocation-tracked byte array: TombLang has no raw pointers or buffers, so
// every value a script manipulates is a typed Value living in a register, on
// the stack, or in globals — an allocator sized in bytes would have nothing
// to back.
type Memory struct {
	regs    [regalloc.BankSize]Value
	stack   []Value
	globals map[string]Value
}

// NewMemory creates a zeroed register bank, an empty data stack, and an
// empty global store.
func NewMemory() *Memory {
	return &Memory{globals: make(map[string]Value)}
}

func (m *Memory) Get(r regalloc.RegId) (Value, error) {
	if r < 0 || int(r) >= len(m.regs) {
		return Value{}, ErrInvalidAddress
	}
	return m.regs[r], nil
}

func (m *Memory) Set(r regalloc.RegId, v Value) error {
	if r < 0 || int(r) >= len(m.regs) {
		return ErrInvalidAddress
	}
	m.regs[r] = v
	return nil
}

func (m *Memory) Push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *Memory) Pop() (Value, error) {
	if len(m.stack) == 0 {
		return Value{}, ErrStackUnderflow
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

// Stack exposes the data stack's current contents, bottom first — used by
// Execute to collect a method's pushed return value(s) once it halts,
// including the multi-value case a variadic return (§4.3) leaves behind.
func (m *Memory) Stack() []Value {
	return m.stack
}

func (m *Memory) GlobalGet(key string) Value {
	return m.globals[key]
}

func (m *Memory) GlobalSet(key string, v Value) {
	m.globals[key] = v
}
