// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/lang/types"
)

func TestPrimitiveSingletonsAreInterned(t *testing.T) {
	require.True(t, types.Number.Equals(types.Number))
	require.False(t, types.Number.Equals(types.StringTy))
	require.Equal(t, types.KindNumber, types.Number.Kind())
}

func TestDecimalInterning(t *testing.T) {
	in := types.NewInterner(64)
	a := in.Decimal(3)
	b := in.Decimal(3)
	c := in.Decimal(4)

	require.Same(t, a, b, "equal Decimal(n) type expressions must share identity")
	require.False(t, a.Equals(c))
	require.Equal(t, "decimal<3>", a.String())
}

func TestStructAndEnumInterning(t *testing.T) {
	in := types.NewInterner(64)
	s1 := in.StructNamed("Account")
	s2 := in.StructNamed("Account")
	require.Same(t, s1, s2)

	e1 := in.EnumNamed("Color")
	e2 := in.EnumNamed("Color")
	require.Same(t, e1, e2)

	require.False(t, s1.Equals(e1))
}

func TestArrayAndMapInterning(t *testing.T) {
	in := types.NewInterner(64)
	a1 := in.Array(types.Number)
	a2 := in.Array(types.Number)
	require.Same(t, a1, a2)

	m1 := in.Map(types.StringTy, types.Number)
	m2 := in.Map(types.StringTy, types.Number)
	require.Same(t, m1, m2)

	require.False(t, a1.Equals(m1))
}

func TestStorageContainers(t *testing.T) {
	in := types.NewInterner(64)
	sl := in.StorageList(types.Number)
	require.Equal(t, types.KindStorageList, sl.Kind())

	sm := in.StorageMap(types.Address, in.StructNamed("Account"))
	require.Equal(t, types.KindStorageMap, sm.Kind())
}

func TestAssignable(t *testing.T) {
	require.True(t, types.Assignable(types.Number, types.Number))
	require.True(t, types.Assignable(types.Number, types.Timestamp))
	require.True(t, types.Assignable(types.Timestamp, types.Number))
	require.False(t, types.Assignable(types.StringTy, types.Number))
	require.True(t, types.Assignable(types.Any, types.StringTy))
}

func TestIsOrdinalAndNumeric(t *testing.T) {
	in := types.NewInterner(8)
	require.True(t, types.IsOrdinal(types.Number))
	require.True(t, types.IsOrdinal(types.StringTy))
	require.True(t, types.IsOrdinal(in.EnumNamed("Color")))
	require.False(t, types.IsOrdinal(types.Bool))

	require.True(t, types.IsNumeric(types.Number))
	require.True(t, types.IsNumeric(in.Decimal(2)))
	require.False(t, types.IsNumeric(types.StringTy))
}

func TestInternerLRUEviction(t *testing.T) {
	in := types.NewInterner(2)
	t1 := in.StructNamed("A")
	in.StructNamed("B")
	in.StructNamed("C") // evicts "A" from a 2-entry cache
	t1b := in.StructNamed("A")

	// A fresh struct value is built after eviction; it is still Equals-equal
	// even though the old instance is no longer a tracked requirement.
	require.True(t, t1.Equals(t1b))
}
