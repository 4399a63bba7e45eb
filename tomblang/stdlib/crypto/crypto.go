// Copyright 2024 The TombLang Authors
// This file is part of TombLang.

// Package crypto provides cryptographic operations for the TombLang standard
// library. Crypto.sha3 and Crypto.shake256 (§4.6's Crypto catalog) lower to
// the ExtCall strategy; lang/vm's extcall dispatch calls directly into Hash
// and SHAKE256 below so a compiled script's hashing actually runs instead of
// resolving to a zero Value.
//
// Includes post-quantum cryptography (PQC) primitives:
//   - Falcon-512 (lattice-based signatures)
//   - ML-DSA / Dilithium (lattice-based signatures)
//   - SLH-DSA / SPHINCS+ (hash-based signatures)
//   - SHAKE256 and SHA-3 hash functions
package crypto

import "golang.org/x/crypto/sha3"

// Hash computes the FIPS 202 SHA3-256 digest of the input (not the legacy
// Keccak-256 padding).
func Hash(data []byte) [32]byte {
	return sha3.Sum256(data)
}

// SHAKE256 computes a variable-length SHAKE256 hash.
func SHAKE256(data []byte, outputLen int) []byte {
	out := make([]byte, outputLen)
	sha3.ShakeSum256(out, data)
	return out
}

// Falcon512Verify is the Falcon-512 signature check entry point. It performs
// no verification: it returns false for every input.
func Falcon512Verify(msg, sig, pubkey []byte) bool {
	// TODO: implement Falcon-512 verification
	_ = msg
	_ = sig
	_ = pubkey
	return false
}

// MLDSAVerify is the ML-DSA (Dilithium) signature check entry point. It
// performs no verification: it returns false for every input.
func MLDSAVerify(msg, sig, pubkey []byte) bool {
	// TODO: wire to existing crypto/dilithium package
	_ = msg
	_ = sig
	_ = pubkey
	return false
}

// SLHDSAVerify is the SLH-DSA (SPHINCS+) signature check entry point. It
// performs no verification: it returns false for every input.
func SLHDSAVerify(msg, sig, pubkey []byte) bool {
	// TODO: implement SLH-DSA verification
	_ = msg
	_ = sig
	_ = pubkey
	return false
}

// Secp256k1Recover is the secp256k1 signer-recovery entry point. It performs
// no recovery: it returns the zero address and a nil error for every input.
func Secp256k1Recover(hash [32]byte, sig [65]byte) ([20]byte, error) {
	// TODO: wire to existing crypto/secp256k1 package
	var addr [20]byte
	return addr, nil
}
