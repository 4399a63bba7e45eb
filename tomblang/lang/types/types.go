// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package types defines the TombLang value type system: a tagged variant of
// primitive, parameterized, and nominal types, all interned so that two
// equal type expressions share identity (§3 Types).
package types

import (
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Kind categorizes the fundamental shape of a type.
type Kind int

const (
	KindUnknown Kind = iota
	KindNone
	KindNumber
	KindBool
	KindString
	KindTimestamp
	KindAddress
	KindHash
	KindBytes
	KindDecimal
	KindEnum
	KindStruct
	KindArray
	KindMap
	KindStorageList
	KindStorageMap
	KindModule
	KindMethod
	KindAny
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindNone:        "none",
	KindNumber:      "number",
	KindBool:        "bool",
	KindString:      "string",
	KindTimestamp:   "timestamp",
	KindAddress:     "address",
	KindHash:        "hash",
	KindBytes:       "bytes",
	KindDecimal:     "decimal",
	KindEnum:        "enum",
	KindStruct:      "struct",
	KindArray:       "array",
	KindMap:         "map",
	KindStorageList: "storageList",
	KindStorageMap:  "storageMap",
	KindModule:      "module",
	KindMethod:      "method",
	KindAny:         "any",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type is the interface every TombLang value type implements. Two Type
// values obtained from the same Interner for the same canonical string are
// the same Go value (pointer-equal), so Equals can fast-path on identity.
type Type interface {
	Kind() Kind
	String() string
	Equals(other Type) bool
	// Size returns the register width in abstract "slots" this type occupies.
	// Every value type in TombLang fits in a single VM register; -1 marks
	// dynamically-sized payloads that are represented as a handle.
	Size() int
}

// ---- Primitive singletons --------------------------------------------------

type primitiveType struct{ kind Kind }

func (p *primitiveType) Kind() Kind   { return p.kind }
func (p *primitiveType) String() string { return p.kind.String() }
func (p *primitiveType) Equals(other Type) bool {
	return other != nil && p.kind == other.Kind()
}
func (p *primitiveType) Size() int {
	switch p.kind {
	case KindString, KindBytes:
		return -1
	default:
		return 1
	}
}

var (
	Unknown   Type = &primitiveType{KindUnknown}
	None      Type = &primitiveType{KindNone}
	Number    Type = &primitiveType{KindNumber}
	Bool      Type = &primitiveType{KindBool}
	StringTy  Type = &primitiveType{KindString}
	Timestamp Type = &primitiveType{KindTimestamp}
	Address   Type = &primitiveType{KindAddress}
	Hash      Type = &primitiveType{KindHash}
	Bytes     Type = &primitiveType{KindBytes}
	Any       Type = &primitiveType{KindAny}
)

// ---- Decimal(n) -------------------------------------------------------------

// DecimalType is a Number with Places fractional digits of compile-time
// precision: its integer representation equals floor(value * 10^Places).
type DecimalType struct{ Places int }

func (d *DecimalType) Kind() Kind   { return KindDecimal }
func (d *DecimalType) String() string { return "decimal<" + strconv.Itoa(d.Places) + ">" }
func (d *DecimalType) Size() int    { return 1 }
func (d *DecimalType) Equals(other Type) bool {
	o, ok := other.(*DecimalType)
	return ok && o.Places == d.Places
}

// ---- Nominal types ----------------------------------------------------------

// EnumType names a declared enum by its module-unique name.
type EnumType struct{ Name string }

func (e *EnumType) Kind() Kind     { return KindEnum }
func (e *EnumType) String() string { return e.Name }
func (e *EnumType) Size() int      { return 1 }
func (e *EnumType) Equals(other Type) bool {
	o, ok := other.(*EnumType)
	return ok && o.Name == e.Name
}

// StructType names a declared struct by its module-unique name.
type StructType struct{ Name string }

func (s *StructType) Kind() Kind     { return KindStruct }
func (s *StructType) String() string { return s.Name }
func (s *StructType) Size() int      { return -1 }
func (s *StructType) Equals(other Type) bool {
	o, ok := other.(*StructType)
	return ok && o.Name == s.Name
}

// ModuleType names a declared contract/token/nft/script module.
type ModuleType struct{ Name string }

func (m *ModuleType) Kind() Kind     { return KindModule }
func (m *ModuleType) String() string { return m.Name }
func (m *ModuleType) Size() int      { return -1 }
func (m *ModuleType) Equals(other Type) bool {
	o, ok := other.(*ModuleType)
	return ok && o.Name == m.Name
}

// MethodType carries a method's full signature for Method-typed values
// (library method handles, used by Call.method<T>/Call.interop<T>).
type MethodType struct {
	Signature string
	Params    []Type
	Return    Type
}

func (m *MethodType) Kind() Kind     { return KindMethod }
func (m *MethodType) String() string { return m.Signature }
func (m *MethodType) Size() int      { return 1 }
func (m *MethodType) Equals(other Type) bool {
	o, ok := other.(*MethodType)
	return ok && o.Signature == m.Signature
}

// ---- Parameterized containers ----------------------------------------------

// ArrayType is an in-memory array of Elem.
type ArrayType struct{ Elem Type }

func (a *ArrayType) Kind() Kind     { return KindArray }
func (a *ArrayType) String() string { return a.Elem.String() + "[]" }
func (a *ArrayType) Size() int      { return -1 }
func (a *ArrayType) Equals(other Type) bool {
	o, ok := other.(*ArrayType)
	return ok && a.Elem.Equals(o.Elem)
}

// MapType is an in-memory map from Key to Val.
type MapType struct {
	Key Type
	Val Type
}

func (m *MapType) Kind() Kind     { return KindMap }
func (m *MapType) String() string { return "map<" + m.Key.String() + "," + m.Val.String() + ">" }
func (m *MapType) Size() int      { return -1 }
func (m *MapType) Equals(other Type) bool {
	o, ok := other.(*MapType)
	return ok && m.Key.Equals(o.Key) && m.Val.Equals(o.Val)
}

// StorageListType is a contract-storage-backed list of Elem.
type StorageListType struct{ Elem Type }

func (s *StorageListType) Kind() Kind     { return KindStorageList }
func (s *StorageListType) String() string { return "storageList<" + s.Elem.String() + ">" }
func (s *StorageListType) Size() int      { return -1 }
func (s *StorageListType) Equals(other Type) bool {
	o, ok := other.(*StorageListType)
	return ok && s.Elem.Equals(o.Elem)
}

// StorageMapType is a contract-storage-backed map from Key to Val.
type StorageMapType struct {
	Key Type
	Val Type
}

func (s *StorageMapType) Kind() Kind { return KindStorageMap }
func (s *StorageMapType) String() string {
	return "storageMap<" + s.Key.String() + "," + s.Val.String() + ">"
}
func (s *StorageMapType) Size() int { return -1 }
func (s *StorageMapType) Equals(other Type) bool {
	o, ok := other.(*StorageMapType)
	return ok && s.Key.Equals(o.Key) && s.Val.Equals(o.Val)
}

// ---- Interner ---------------------------------------------------------------

// Interner deduplicates composite type values so that structurally-equal
// type expressions compare pointer-equal, per §3's interning invariant.
// Primitive singletons above are already unique and bypass the cache.
// Backed by an LRU so a pathological program with many distinct generic
// instantiations cannot grow the cache unboundedly within one compilation.
type Interner struct {
	cache *lru.Cache
}

// NewInterner creates an Interner with the given cache capacity (number of
// distinct canonical type strings retained).
func NewInterner(capacity int) *Interner {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New(capacity)
	if err != nil {
		// Only returns an error for capacity <= 0, already guarded above.
		panic(err)
	}
	return &Interner{cache: c}
}

// Intern returns the canonical Type equal to t, constructing and caching one
// if this is the first time this canonical form has been seen.
func (in *Interner) Intern(t Type) Type {
	switch t.Kind() {
	case KindUnknown, KindNone, KindNumber, KindBool, KindString, KindTimestamp,
		KindAddress, KindHash, KindBytes, KindAny:
		// Singletons are already canonical.
		return t
	}
	key := canonicalKey(t)
	if v, ok := in.cache.Get(key); ok {
		return v.(Type)
	}
	in.cache.Add(key, t)
	return t
}

// Decimal returns the interned Decimal(places) type.
func (in *Interner) Decimal(places int) Type {
	return in.Intern(&DecimalType{Places: places})
}

// EnumNamed returns the interned Enum(name) type.
func (in *Interner) EnumNamed(name string) Type {
	return in.Intern(&EnumType{Name: name})
}

// StructNamed returns the interned Struct(name) type.
func (in *Interner) StructNamed(name string) Type {
	return in.Intern(&StructType{Name: name})
}

// ModuleNamed returns the interned Module(name) type.
func (in *Interner) ModuleNamed(name string) Type {
	return in.Intern(&ModuleType{Name: name})
}

// Array returns the interned Array(elem) type.
func (in *Interner) Array(elem Type) Type {
	return in.Intern(&ArrayType{Elem: elem})
}

// Map returns the interned Map(key,val) type.
func (in *Interner) Map(key, val Type) Type {
	return in.Intern(&MapType{Key: key, Val: val})
}

// StorageList returns the interned StorageList(elem) type.
func (in *Interner) StorageList(elem Type) Type {
	return in.Intern(&StorageListType{Elem: elem})
}

// StorageMap returns the interned StorageMap(key,val) type.
func (in *Interner) StorageMap(key, val Type) Type {
	return in.Intern(&StorageMapType{Key: key, Val: val})
}

func canonicalKey(t Type) string {
	var b strings.Builder
	b.WriteString(t.Kind().String())
	b.WriteString(":")
	b.WriteString(t.String())
	return b.String()
}

// Assignable reports whether a value of type src may be assigned to a target
// of type dst, either directly or via one of §4.3's implicit conversions
// (Number<->Timestamp, numeric-string pairs are handled separately by the
// elaborator since they require inserting a CAST, not a type-identity check).
func Assignable(dst, src Type) bool {
	if dst.Equals(src) {
		return true
	}
	if dst.Kind() == KindAny {
		return true
	}
	switch {
	case dst.Kind() == KindNumber && src.Kind() == KindTimestamp:
		return true
	case dst.Kind() == KindTimestamp && src.Kind() == KindNumber:
		return true
	}
	return false
}

// IsOrdinal reports whether t may be used as a switch scrutinee/case type:
// Number, String, or Enum.
func IsOrdinal(t Type) bool {
	switch t.Kind() {
	case KindNumber, KindString, KindEnum:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether t is Number or Decimal(n).
func IsNumeric(t Type) bool {
	switch t.Kind() {
	case KindNumber, KindDecimal:
		return true
	default:
		return false
	}
}
