// Copyright 2024 The TombLang Authors
// This file is part of TombLang.

// Package integration fronts the TombLang compiler's public API
// (tomblang/compile, §4.8) for manual smoke testing: a compiled artifact
// wrapper suitable for embedding a script+ABI pair into a single blob, and
// an RPC surface (rpc.go) that compiles source on request. It does not
// execute contracts — contract execution against chain state is out of
// this repository's specified core (§1 Non-goals).
package integration

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tomblang/tomblang/tomblang/lang/compiler"
)

var (
	// ErrInvalidArtifact is returned when an encoded artifact fails to
	// decode (bad magic, truncated frame).
	ErrInvalidArtifact = errors.New("invalid tombc artifact")

	// TombMagicPrefix identifies a TombLang compiled artifact (script+ABI
	// pair) within an opaque byte blob, the way the donor's PROBEMagicPrefix
	// distinguished PROBE bytecode from EVM bytecode. There is no EVM here
	// to distinguish from; the magic instead lets a caller sanity-check
	// that a blob handed to DecodeArtifact actually came from tombc.
	TombMagicPrefix = []byte{0x54, 0x4f, 0x4d, 0x42} // "TOMB"
)

// Artifact is one compiled module's on-disk representation: its name, the
// assembled VM script, and its ABI frame (§4.8's Module shape, minus
// sub-modules — each sub-module round-trips through its own Artifact).
type Artifact struct {
	Name   string
	Script []byte
	ABI    []byte
}

// FromModule converts a compile.Module into its wire Artifact. Sub-modules
// are the caller's responsibility to walk and encode separately; nesting
// is flattened at the RPC layer rather than inside the wire format itself.
func FromModule(m *compiler.Module) *Artifact {
	return &Artifact{Name: m.Name, Script: m.Script, ABI: m.ABI}
}

// EncodeArtifact packs an Artifact into the framing:
// [magic:4][nameLen:4][name][scriptLen:4][script][abiLen:4][abi], all
// length fields little-endian u32 — the same fixed-width length-prefix
// idiom the donor used for its constant pool, carried over because the
// script and ABI payloads here are themselves already self-delimiting
// variable-length streams (§4.7/§4.8) that a u32 frame length can wrap
// without needing to understand their internals.
func EncodeArtifact(a *Artifact) []byte {
	buf := make([]byte, 0, len(TombMagicPrefix)+12+len(a.Name)+len(a.Script)+len(a.ABI))
	buf = append(buf, TombMagicPrefix...)
	buf = appendLenPrefixed(buf, []byte(a.Name))
	buf = appendLenPrefixed(buf, a.Script)
	buf = appendLenPrefixed(buf, a.ABI)
	return buf
}

func appendLenPrefixed(buf, payload []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, payload...)
}

func readLenPrefixed(raw []byte, off int) ([]byte, int, error) {
	if off+4 > len(raw) {
		return nil, 0, fmt.Errorf("%w: truncated length prefix at %d", ErrInvalidArtifact, off)
	}
	n := int(binary.LittleEndian.Uint32(raw[off : off+4]))
	start := off + 4
	end := start + n
	if n < 0 || end > len(raw) {
		return nil, 0, fmt.Errorf("%w: truncated payload at %d", ErrInvalidArtifact, off)
	}
	return raw[start:end], end, nil
}

// IsArtifact checks whether raw begins with the tombc artifact magic.
func IsArtifact(raw []byte) bool {
	if len(raw) < len(TombMagicPrefix) {
		return false
	}
	for i, b := range TombMagicPrefix {
		if raw[i] != b {
			return false
		}
	}
	return true
}

// DecodeArtifact parses a blob produced by EncodeArtifact.
func DecodeArtifact(raw []byte) (*Artifact, error) {
	if !IsArtifact(raw) {
		return nil, ErrInvalidArtifact
	}
	off := len(TombMagicPrefix)

	name, off, err := readLenPrefixed(raw, off)
	if err != nil {
		return nil, err
	}
	script, off, err := readLenPrefixed(raw, off)
	if err != nil {
		return nil, err
	}
	abiBytes, _, err := readLenPrefixed(raw, off)
	if err != nil {
		return nil, err
	}

	return &Artifact{Name: string(name), Script: script, ABI: abiBytes}, nil
}
