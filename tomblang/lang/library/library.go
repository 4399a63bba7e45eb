// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package library catalogs the built-in libraries callable from TombLang
// source (§4.6): their methods, parameter/return types, and the strategy
// used to lower a call into assembly. Method shapes are grounded on the
// donor's stdlib/{math,crypto,chain} packages; the multi-strategy lowering
// dispatch itself has no donor analogue and is new.
package library

import "github.com/tomblang/tomblang/tomblang/lang/types"

// Strategy selects how a library call lowers to assembly (§4.6).
type Strategy int

const (
	// ExtCall invokes a VM intrinsic by qualified name.
	ExtCall Strategy = iota
	// ContractCall performs a cross-contract context switch.
	ContractCall
	// LocalCall invokes a method of the current module.
	LocalCall
	// BuiltinInline emits a canned snippet once per script.
	BuiltinInline
	// Custom defers to a library-supplied pre/post callback.
	Custom
)

func (s Strategy) String() string {
	switch s {
	case ExtCall:
		return "ext-call"
	case ContractCall:
		return "contract-call"
	case LocalCall:
		return "local-call"
	case BuiltinInline:
		return "builtin-inline"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// Method is one callable entry in a Library's method table.
type Method struct {
	Name     string
	Params   []types.Type
	Return   types.Type
	Strategy Strategy
	// ExtName is the qualified intrinsic name used by ExtCall, e.g. "math.add".
	ExtName string
	// Builtin names the canned snippet emitted once per script for
	// BuiltinInline methods.
	Builtin string
	// Generic marks methods that accept a <T> type argument, e.g.
	// Call.method<T>(...) and Call.interop<T>(...).
	Generic bool
	// Variadic marks methods accepting any number of trailing arguments
	// (e.g. Struct.pack(f1,f2,...) packs whatever fields are given).
	Variadic bool
}

// Library is a named table of built-in methods.
type Library struct {
	Name    string
	Methods map[string]*Method
}

// Registry catalogs every built-in library known to the compiler.
type Registry struct {
	libs map[string]*Library
}

// NewRegistry builds the standard TombLang library catalog.
func NewRegistry() *Registry {
	r := &Registry{libs: make(map[string]*Library)}
	r.add(mathLibrary())
	r.add(stringLibrary())
	r.add(cryptoLibrary())
	r.add(timeLibrary())
	r.add(dataLibrary())
	r.add(callLibrary())
	r.add(nftLibrary())
	r.add(mapLibrary())
	r.add(listLibrary())
	r.add(arrayLibrary())
	r.add(structLibrary())
	r.add(runtimeLibrary())
	return r
}

func (r *Registry) add(l *Library) { r.libs[l.Name] = l }

// Lookup resolves libName.method, returning the owning Library and Method.
// An empty libName (a value-typed `x.method(...)` call) resolves against the
// String library.
func (r *Registry) Lookup(libName, method string) (*Library, *Method, bool) {
	if libName == "" {
		libName = "String"
	}
	lib, ok := r.libs[libName]
	if !ok {
		return nil, nil, false
	}
	m, ok := lib.Methods[method]
	if !ok {
		return lib, nil, false
	}
	return lib, m, true
}

// Has reports whether libName is a known library name.
func (r *Registry) Has(libName string) bool {
	_, ok := r.libs[libName]
	return ok
}

// ---------------------------------------------------------------------------
// Library tables
// ---------------------------------------------------------------------------

// mathLibrary grounds its method names on stdlib/math's array-programming
// surface (Sum, Zip, Reduce, Map, Dot) generalized to scalar Number/Decimal
// arithmetic entry points callable from source; lang/vm's extcall dispatch
// is what actually drives those combinators at run time.
func mathLibrary() *Library {
	num := types.Number
	bin := []types.Type{num, num}
	return &Library{Name: "Math", Methods: map[string]*Method{
		"add": {Name: "add", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.add"},
		"sub": {Name: "sub", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.sub"},
		"mul": {Name: "mul", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.mul"},
		"div": {Name: "div", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.div"},
		"mod": {Name: "mod", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.mod"},
		"min": {Name: "min", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.min"},
		"max": {Name: "max", Params: bin, Return: num, Strategy: ExtCall, ExtName: "math.max"},
		"abs": {Name: "abs", Params: []types.Type{num}, Return: num, Strategy: ExtCall, ExtName: "math.abs"},
	}}
}

// stringLibrary covers the value-typed `.length()`/`.concat()` style calls
// parsed as CallExpr with an empty Library and the receiver as first
// argument; Lookup routes an empty Library here, and the receiver is then
// type-checked against the string first parameter like any other argument.
func stringLibrary() *Library {
	str := types.StringTy
	return &Library{Name: "String", Methods: map[string]*Method{
		"length": {Name: "length", Params: []types.Type{str}, Return: types.Number, Strategy: ExtCall, ExtName: "string.length"},
		"concat": {Name: "concat", Params: []types.Type{str, str}, Return: str, Strategy: ExtCall, ExtName: "string.concat"},
		"slice":  {Name: "slice", Params: []types.Type{str, types.Number, types.Number}, Return: str, Strategy: ExtCall, ExtName: "string.slice"},
	}}
}

// cryptoLibrary is grounded on stdlib/crypto.go's PQC surface (Hash,
// SHAKE256, Falcon512Verify, MLDSAVerify, SLHDSAVerify, Secp256k1Recover),
// each lowered as an ExtCall to its crypto.* intrinsic name (crypto.sha3,
// crypto.shake256, ...).
func cryptoLibrary() *Library {
	bytes := types.Bytes
	return &Library{Name: "Crypto", Methods: map[string]*Method{
		"sha3":              {Name: "sha3", Params: []types.Type{bytes}, Return: types.Hash, Strategy: ExtCall, ExtName: "crypto.sha3"},
		"shake256":          {Name: "shake256", Params: []types.Type{bytes, types.Number}, Return: bytes, Strategy: ExtCall, ExtName: "crypto.shake256"},
		"falcon512Verify":   {Name: "falcon512Verify", Params: []types.Type{bytes, bytes, bytes}, Return: types.Bool, Strategy: ExtCall, ExtName: "crypto.falcon512verify"},
		"mldsaVerify":       {Name: "mldsaVerify", Params: []types.Type{bytes, bytes, bytes}, Return: types.Bool, Strategy: ExtCall, ExtName: "crypto.mldsaverify"},
		"slhdsaVerify":      {Name: "slhdsaVerify", Params: []types.Type{bytes, bytes, bytes}, Return: types.Bool, Strategy: ExtCall, ExtName: "crypto.slhdsaverify"},
		"secp256k1Recover":  {Name: "secp256k1Recover", Params: []types.Type{types.Hash, bytes}, Return: types.Address, Strategy: ExtCall, ExtName: "crypto.secp256k1recover"},
	}}
}

// timeLibrary mirrors a chain block header's Number/Timestamp fields,
// lowered as ExtCalls to the time.now/time.blockNum intrinsics.
func timeLibrary() *Library {
	return &Library{Name: "Time", Methods: map[string]*Method{
		"now":       {Name: "now", Return: types.Timestamp, Strategy: ExtCall, ExtName: "time.now"},
		"blockNum":  {Name: "blockNum", Return: types.Number, Strategy: ExtCall, ExtName: "time.blockNum"},
	}}
}

// dataLibrary backs Global access (§4.5 "generate a Data.Get/Data.Set
// ext-call sequence on the global key"); it is synthesized by the code
// generator rather than called directly from source.
func dataLibrary() *Library {
	return &Library{Name: "Data", Methods: map[string]*Method{
		"get": {Name: "get", Params: []types.Type{types.Bytes}, Return: types.Any, Strategy: ExtCall, ExtName: "data.get"},
		"set": {Name: "set", Params: []types.Type{types.Bytes, types.Any}, Return: types.None, Strategy: ExtCall, ExtName: "data.set"},
	}}
}

// callLibrary implements Call.method<T>/Call.interop<T>, the two Custom-
// strategy entry points named in §4.6.
func callLibrary() *Library {
	return &Library{Name: "Call", Methods: map[string]*Method{
		"method": {Name: "method", Return: types.Any, Strategy: Custom, Generic: true, Variadic: true},
		"interop": {Name: "interop", Params: []types.Type{types.StringTy}, Return: types.Any, Strategy: Custom, Generic: true, Variadic: true},
	}}
}

// nftLibrary lowers via ContractCall, exposing another contract's token
// ownership operations (ownerOf, transfer, mint, burn).
func nftLibrary() *Library {
	addr := types.Address
	return &Library{Name: "NFT", Methods: map[string]*Method{
		"ownerOf":  {Name: "ownerOf", Params: []types.Type{types.Number}, Return: addr, Strategy: ContractCall},
		"transfer": {Name: "transfer", Params: []types.Type{addr, addr, types.Number}, Return: types.None, Strategy: ContractCall},
		"mint":     {Name: "mint", Params: []types.Type{addr, types.Number}, Return: types.None, Strategy: ContractCall},
		"burn":     {Name: "burn", Params: []types.Type{types.Number}, Return: types.None, Strategy: ContractCall},
	}}
}

// mapLibrary, listLibrary, arrayLibrary cover the built-in container
// operations, lowered as BuiltinInline snippets (one canonical assembly
// fragment per operation, emitted once per script per §4.6 strategy 4).
func mapLibrary() *Library {
	return &Library{Name: "Map", Methods: map[string]*Method{
		"get":    {Name: "get", Return: types.Any, Strategy: BuiltinInline, Builtin: "map_get"},
		"set":    {Name: "set", Return: types.None, Strategy: BuiltinInline, Builtin: "map_set"},
		"has":    {Name: "has", Return: types.Bool, Strategy: BuiltinInline, Builtin: "map_has"},
		"delete": {Name: "delete", Return: types.None, Strategy: BuiltinInline, Builtin: "map_delete"},
	}}
}

func listLibrary() *Library {
	return &Library{Name: "List", Methods: map[string]*Method{
		"push":   {Name: "push", Return: types.None, Strategy: BuiltinInline, Builtin: "list_push"},
		"pop":    {Name: "pop", Return: types.Any, Strategy: BuiltinInline, Builtin: "list_pop"},
		"length": {Name: "length", Return: types.Number, Strategy: BuiltinInline, Builtin: "list_length"},
		"get":    {Name: "get", Return: types.Any, Strategy: BuiltinInline, Builtin: "list_get"},
	}}
}

func arrayLibrary() *Library {
	return &Library{Name: "Array", Methods: map[string]*Method{
		"length": {Name: "length", Return: types.Number, Strategy: BuiltinInline, Builtin: "array_length"},
		"get":    {Name: "get", Return: types.Any, Strategy: BuiltinInline, Builtin: "array_get"},
		"set":    {Name: "set", Return: types.None, Strategy: BuiltinInline, Builtin: "array_set"},
	}}
}

// structLibrary backs struct packing through the single method
// `Struct.pack(f1,f2,...)`; no per-struct `Struct.NAME(...)` method is
// registered, so such a call fails library lookup. The field count is
// variable, so arity is not checked against a fixed Params list.
func structLibrary() *Library {
	return &Library{Name: "Struct", Methods: map[string]*Method{
		"pack": {Name: "pack", Return: types.Any, Strategy: BuiltinInline, Builtin: "struct_pack", Variadic: true},
	}}
}

// runtimeLibrary exposes chain-context intrinsics (caller, balance, transfer,
// emit), each lowered as an ExtCall to its runtime.* intrinsic name.
func runtimeLibrary() *Library {
	addr := types.Address
	return &Library{Name: "Runtime", Methods: map[string]*Method{
		"caller":   {Name: "caller", Return: addr, Strategy: ExtCall, ExtName: "runtime.caller"},
		"balance":  {Name: "balance", Params: []types.Type{addr}, Return: types.Number, Strategy: ExtCall, ExtName: "runtime.balance"},
		"transfer": {Name: "transfer", Params: []types.Type{addr, addr, types.Number}, Return: types.None, Strategy: ExtCall, ExtName: "runtime.transfer"},
		"emit":     {Name: "emit", Params: []types.Type{types.Bytes}, Return: types.None, Strategy: ExtCall, ExtName: "runtime.emit"},
	}}
}
