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

// Package vm is a reference interpreter for the bytecode lang/assemble
// produces. Unlike the donor's fixed 4-byte 3-address encoding
// ([opcode:8][a:8][b:8][c:8]), every instruction here is variable length —
// the opcode byte is followed by whatever operand shape lang/codegen always
// emits for it (§4.5/§4.7), so decoding requires the same per-opcode operand
// signature table lang/codegen/verify.go walks the stream with. The table is
// re-declared here rather than imported: it describes the wire format, not
// an implementation detail private to the verifier, and the donor's own
// opcode reference table is cross-indexed against rather than reused
// outright for the same reason — this VM's register file holds
// dynamically-typed values, not raw 64-bit words.
package vm

import (
	"fmt"
	"strconv"

	"github.com/tomblang/tomblang/tomblang/lang/assemble"
)

// argKind tags one operand slot in an opcode's fixed signature. Mirrors
// lang/codegen/verify.go's argKind exactly; kept as a separate type since the
// VM must decode the stream independently of the compiler that produced it.
type argKind int

const (
	argReg argKind = iota
	argByte
	argVarint
	argBytes
	argJump
)

// signatures gives the operand-kind sequence every opcode carries on the
// wire. See lang/assemble's package doc for the encoding of each kind.
var signatures = map[assemble.Opcode][]argKind{
	assemble.OpAdd:      {argReg, argReg, argReg},
	assemble.OpSub:      {argReg, argReg, argReg},
	assemble.OpMul:      {argReg, argReg, argReg},
	assemble.OpDiv:      {argReg, argReg, argReg},
	assemble.OpMod:      {argReg, argReg, argReg},
	assemble.OpNeg:      {argReg, argReg},
	assemble.OpAnd:      {argReg, argReg, argReg},
	assemble.OpOr:       {argReg, argReg, argReg},
	assemble.OpXor:      {argReg, argReg, argReg},
	assemble.OpNot:      {argReg, argReg},
	assemble.OpShl:      {argReg, argReg, argReg},
	assemble.OpShr:      {argReg, argReg, argReg},
	assemble.OpEqual:    {argReg, argReg, argReg},
	assemble.OpNeq:      {argReg, argReg, argReg},
	assemble.OpLt:       {argReg, argReg, argReg},
	assemble.OpLte:      {argReg, argReg, argReg},
	assemble.OpGt:       {argReg, argReg, argReg},
	assemble.OpGte:      {argReg, argReg, argReg},
	assemble.OpLoad:     {argReg, argBytes},
	assemble.OpCopy:     {argReg, argReg},
	assemble.OpJmp:      {argJump},
	assemble.OpJmpIf:    {argReg, argJump},
	assemble.OpJmpNot:   {argReg, argJump},
	assemble.OpCall:     {argJump},
	assemble.OpRet:      {},
	assemble.OpHalt:     {},
	assemble.OpPush:     {argReg},
	assemble.OpPop:      {argReg},
	assemble.OpExtCall:  {argReg},
	assemble.OpCtx:      {argReg, argReg},
	assemble.OpSwitch:   {argReg},
	assemble.OpCast:     {argReg, argReg},
	assemble.OpThrow:    {argReg},
	assemble.OpArrayNew: {argReg, argVarint},
	assemble.OpArrayGet: {argReg, argReg, argReg},
	assemble.OpArraySet: {argReg, argReg, argReg},
	assemble.OpArrayLen: {argReg, argReg},
}

// ValueKind tags which field of a Value is meaningful.
type ValueKind uint8

const (
	// KindNumber holds an integer in Int. TombLang's Decimal literals are
	// carried as their original text (KindString) rather than scaled into
	// this form — decimal arithmetic is a compile-time precision concern
	// (§4.3's checkDecimalPrecision), not something this reference
	// interpreter evaluates at runtime.
	KindNumber ValueKind = iota
	KindString
	KindBool
	KindArray
)

// Value is one register's or stack slot's contents. The VM is dynamically
// typed at the bytecode level (the wire format has no per-register type
// tag), matching how lang/codegen's OpLoad always emits a literal's raw
// source text regardless of its TombLang static type.
type Value struct {
	Kind ValueKind
	Int  int64
	Str  string
	Bool bool
	Arr  []Value
}

func NumberValue(n int64) Value  { return Value{Kind: KindNumber, Int: n} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func ArrayValue(n int64) Value   { return Value{Kind: KindArray, Arr: make([]Value, n)} }

// valueFromText decodes an OpLoad payload the way the code generator
// produced it: numeric literals as decimal text, booleans as "true"/"false",
// everything else (strings, chars, 0x-prefixed hex/address literals,
// extcall/library names, global-variable keys) as opaque string content.
func valueFromText(s string) Value {
	switch s {
	case "true":
		return BoolValue(true)
	case "false":
		return BoolValue(false)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumberValue(n)
	}
	return StringValue(s)
}

// asNumber returns v's integer value, failing for any non-numeric Value —
// the same "trap on type mismatch" posture the donor VM takes on divide by
// zero rather than silently coercing.
func (v Value) asNumber() (int64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("vm: expected a number, got %s", v.String())
	}
	return v.Int, nil
}

func (v Value) asBool() (bool, error) {
	if v.Kind != KindBool {
		return false, fmt.Errorf("vm: expected a bool, got %s", v.String())
	}
	return v.Bool, nil
}

// String renders v the way an implicit string CAST (§4.5) would.
func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatInt(v.Int, 10)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindArray:
		return fmt.Sprintf("array[%d]", len(v.Arr))
	default:
		return v.Str
	}
}

// Equal reports whether v and other carry the same value, used by OpEqual
// and OpNeq — switch dispatch (§4.5's chained EQUAL/JMPIF cascade) depends
// on this being exact, not a coerced comparison.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Int == other.Int
	case KindBool:
		return v.Bool == other.Bool
	case KindString:
		return v.Str == other.Str
	default:
		return false
	}
}
