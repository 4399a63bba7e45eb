// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/compiler"
	"github.com/tomblang/tomblang/tomblang/lang/regalloc"
)

func TestAllocDealloc(t *testing.T) {
	a := regalloc.New()
	r1, err := a.Alloc("x")
	require.NoError(t, err)
	r2, err := a.Alloc("y")
	require.NoError(t, err)
	require.NotEqual(t, r1, r2)
	require.Equal(t, 2, a.Live())

	a.Dealloc(r1)
	require.Equal(t, 1, a.Live())
	a.Dealloc(r2)
	require.NoError(t, a.AssertNoLeaks())
}

func TestExhaustion(t *testing.T) {
	a := regalloc.New()
	for i := 0; i < regalloc.BankSize; i++ {
		_, err := a.Alloc("r")
		require.NoError(t, err)
	}
	_, err := a.Alloc("overflow")
	require.Error(t, err)
	ce, ok := err.(*compiler.CompilerError)
	require.True(t, ok)
	require.Contains(t, ce.Message, "register pressure exceeded")
}

func TestWithReleasesOnSuccess(t *testing.T) {
	a := regalloc.New()
	err := a.With("tmp", func(r regalloc.RegId) error {
		require.Equal(t, 1, a.Live())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, a.Live())
	require.NoError(t, a.AssertNoLeaks())
}

func TestWithReleasesOnError(t *testing.T) {
	a := regalloc.New()
	err := a.With("tmp", func(r regalloc.RegId) error {
		return &compiler.CompilerError{Message: "boom"}
	})
	require.Error(t, err)
	require.Equal(t, 0, a.Live())
}

func TestNoLeaksInitiallyClean(t *testing.T) {
	a := regalloc.New()
	require.NoError(t, a.AssertNoLeaks())
}
