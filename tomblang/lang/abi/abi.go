// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package abi serializes a module's public method table into the
// little-endian, length-prefixed binary frame described in §4.8:
//
//	[moduleName][methodCount:varint]
//	  { [name][returnType:u8][flags:u8][paramCount:u8] { [paramName][paramType:u8] }* }*
//
// Triggers are appended to the same method table with their Trigger flag
// set, so a reader need not special-case them; a trigger is just a method
// whose flags byte has the trigger bit set (§4.8 Open Question ii).
//
// There is no donor analogue for this exact frame: the closest existing
// "serialize compiler output" precedent in the pack is the integration
// package's magic-prefix wrapping of bytecode for on-chain embedding, which
// informs this package's own little-endian length-prefixed style but does
// not describe a method table. The varint/length-prefixed string encoding
// mirrors lang/assemble's own wire conventions (appendVarint, bytes =
// varint length + payload) so a single reader can walk both a script and
// its ABI with one shared primitive vocabulary.
package abi

import (
	"fmt"

	"github.com/tomblang/tomblang/tomblang/lang/ast"
)

// TypeTag is the single byte an ABI frame uses to describe a parameter or
// return type. It is independent of (and narrower than) types.Kind: an ABI
// consumer outside the compiler (an RPC caller, a wallet) only needs to
// know enough to encode/decode call arguments, not the full internal type
// lattice (decimal precision, struct field layouts, enum members).
type TypeTag byte

const (
	TagVoid TypeTag = iota
	TagNumber
	TagDecimal
	TagBool
	TagString
	TagChar
	TagAddress
	TagHash
	TagBytes
	TagTimestamp
	TagArray
	TagStruct
	TagEnum
	TagUnknown
)

// tagForTypeExpr classifies a surface type annotation into its ABI tag. It
// works directly off the parsed TypeExpr rather than an elaborated
// types.Type so the serializer has no dependency on the elaborator having
// run to completion on every branch (a partially-elaborated module, e.g.
// one under active editing in the websocket diagnostics stream in
// integration/rpc.go, can still be ABI-framed for its resolvable parts).
func tagForTypeExpr(t ast.TypeExpr) TypeTag {
	switch v := t.(type) {
	case nil:
		return TagVoid
	case *ast.DecimalTypeExpr:
		return TagDecimal
	case *ast.ArrayTypeExpr:
		return TagArray
	case *ast.MapTypeExpr:
		return TagArray
	case *ast.NamedTypeExpr:
		switch v.Name {
		case "number":
			return TagNumber
		case "bool":
			return TagBool
		case "string":
			return TagString
		case "char":
			return TagChar
		case "address":
			return TagAddress
		case "hash":
			return TagHash
		case "bytes":
			return TagBytes
		case "timestamp":
			return TagTimestamp
		default:
			// Not a primitive name: either a struct or an enum. The ABI
			// doesn't need to tell the two apart (callers address both by
			// name+fields out of band), so both collapse to TagStruct.
			return TagStruct
		}
	default:
		return TagUnknown
	}
}

func appendVarint(buf []byte, v int64) []byte {
	u := uint64(v)
	for u >= 0x80 {
		buf = append(buf, byte(u&0x7f)|0x80)
		u >>= 7
	}
	return append(buf, byte(u))
}

func appendString(buf []byte, s string) []byte {
	buf = appendVarint(buf, int64(len(s)))
	return append(buf, s...)
}

// Param describes one method parameter in an ABI-friendly shape.
type Param struct {
	Name string
	Tag  TypeTag
}

// Method describes one callable entry point: a public method, a
// constructor, or a trigger (Trigger distinguishes the latter, per §4.8's
// "serialized identically ... with a flag").
type Method struct {
	Name       string
	Params     []Param
	ReturnType TypeTag
	Trigger    bool
}

// ModuleABI is the decoded form of one module's ABI frame.
type ModuleABI struct {
	ModuleName string
	Methods    []Method
}

// Build collects a module's public surface (properties, constructor,
// methods, and triggers) into a ModuleABI. Sub-modules are not flattened in
// here; GenerateModule-style recursion at the caller produces one ModuleABI
// per nested module, matching the one-(script,abi,name)-per-module contract
// in §4.8's public API.
func Build(mod *ast.ModuleDecl) *ModuleABI {
	out := &ModuleABI{ModuleName: mod.Name}

	collect := func(m *ast.MethodDecl, trigger bool) {
		if m == nil {
			return
		}
		entry := Method{Name: m.Name, Trigger: trigger, ReturnType: tagForTypeExpr(m.Return)}
		for _, p := range m.Params {
			entry.Params = append(entry.Params, Param{Name: p.Name, Tag: tagForTypeExpr(p.Type)})
		}
		out.Methods = append(out.Methods, entry)
	}

	for _, p := range mod.Properties {
		collect(p, false)
	}
	collect(mod.Ctor, false)
	for _, m := range mod.Methods {
		collect(m, false)
	}
	for _, t := range mod.Triggers {
		collect(t, true)
	}
	return out
}

// triggerFlag is the one bit §6 asks for ("triggers are serialized
// identically to methods with a flag") but does not assign a byte
// position for; it is packed here as its own flags byte between
// returnType and paramCount, since methodCount/paramCount are themselves
// varint/u8 fields with no spare bits to steal.
const triggerFlag byte = 1 << 0

// Encode packs a ModuleABI into its wire frame.
func Encode(a *ModuleABI) []byte {
	buf := appendString(nil, a.ModuleName)
	buf = appendVarint(buf, int64(len(a.Methods)))
	for _, m := range a.Methods {
		buf = appendString(buf, m.Name)
		buf = append(buf, byte(m.ReturnType))
		var flags byte
		if m.Trigger {
			flags |= triggerFlag
		}
		buf = append(buf, flags)
		if len(m.Params) > 255 {
			// A param list this long cannot round-trip through the u8
			// count field. Nothing earlier in the pipeline caps a method's
			// declared parameter count, so such a method panics here
			// rather than producing a corrupt frame.
			panic(fmt.Sprintf("abi: method %q has %d params, exceeds u8 count", m.Name, len(m.Params)))
		}
		buf = append(buf, byte(len(m.Params)))
		for _, p := range m.Params {
			buf = appendString(buf, p.Name)
			buf = append(buf, byte(p.Tag))
		}
	}
	return buf
}

// Serialize is the convenience form of Build+Encode used by the compiler's
// public API (§4.8: every compiled Module carries an `abi: bytes` field).
func Serialize(mod *ast.ModuleDecl) []byte {
	return Encode(Build(mod))
}

func readVarint(b []byte, off int) (int64, int, bool) {
	var v uint64
	shift := uint(0)
	n := 0
	for {
		if off+n >= len(b) {
			return 0, 0, false
		}
		c := b[off+n]
		v |= uint64(c&0x7f) << shift
		n++
		if c&0x80 == 0 {
			return int64(v), n, true
		}
		shift += 7
		if shift >= 64 {
			return 0, 0, false
		}
	}
}

func readString(b []byte, off int) (string, int, error) {
	length, n, ok := readVarint(b, off)
	if !ok {
		return "", 0, fmt.Errorf("abi: truncated string length at offset %d", off)
	}
	start := off + n
	end := start + int(length)
	if length < 0 || end > len(b) {
		return "", 0, fmt.Errorf("abi: truncated string payload at offset %d", off)
	}
	return string(b[start:end]), end - off, nil
}

// Decode parses a wire frame produced by Encode back into a ModuleABI,
// recovering a compiled contract's callable surface without re-running the
// compiler.
func Decode(b []byte) (*ModuleABI, error) {
	off := 0
	name, n, err := readString(b, off)
	if err != nil {
		return nil, err
	}
	off += n

	methodCount, n, ok := readVarint(b, off)
	if !ok {
		return nil, fmt.Errorf("abi: truncated method count at offset %d", off)
	}
	off += n

	out := &ModuleABI{ModuleName: name}
	for i := int64(0); i < methodCount; i++ {
		mname, n, err := readString(b, off)
		if err != nil {
			return nil, err
		}
		off += n

		if off >= len(b) {
			return nil, fmt.Errorf("abi: truncated return type at offset %d", off)
		}
		ret := TypeTag(b[off])
		off++

		if off >= len(b) {
			return nil, fmt.Errorf("abi: truncated flags byte at offset %d", off)
		}
		flags := b[off]
		off++

		if off >= len(b) {
			return nil, fmt.Errorf("abi: truncated param count at offset %d", off)
		}
		paramCount := int(b[off])
		off++

		m := Method{Name: mname, ReturnType: ret, Trigger: flags&triggerFlag != 0}
		for j := 0; j < paramCount; j++ {
			pname, n, err := readString(b, off)
			if err != nil {
				return nil, err
			}
			off += n
			if off >= len(b) {
				return nil, fmt.Errorf("abi: truncated param type at offset %d", off)
			}
			m.Params = append(m.Params, Param{Name: pname, Tag: TypeTag(b[off])})
			off++
		}
		out.Methods = append(out.Methods, m)
	}
	return out, nil
}
