// Copyright 2024 The TombLang Authors
// This file is part of TombLang.
//
// TombLang is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"

	"github.com/tomblang/tomblang/tomblang/integration"
)

func TestEncodeDecodeArtifactRoundTrips(t *testing.T) {
	a := &integration.Artifact{
		Name:   "Wallet",
		Script: []byte{1, 2, 3},
		ABI:    []byte{4, 5, 6, 7},
	}
	wire := integration.EncodeArtifact(a)
	require.True(t, integration.IsArtifact(wire))

	decoded, err := integration.DecodeArtifact(wire)
	require.NoError(t, err)
	require.Equal(t, a, decoded)
}

func TestDecodeArtifactRejectsBadMagic(t *testing.T) {
	_, err := integration.DecodeArtifact([]byte{0, 0, 0, 0})
	require.ErrorIs(t, err, integration.ErrInvalidArtifact)
}

func TestHandleCompileReturnsArtifact(t *testing.T) {
	api := integration.NewTombLangAPI()
	r := httprouter.New()
	api.Routes(r)

	body, err := json.Marshal(integration.CompileRequest{
		Filename: "c.tomb",
		Source: `
contract C {
	public run(): number {
		return 1;
	}
}`,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/compile", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp integration.CompileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Len(t, resp.Modules, 1)
	require.Equal(t, "C", resp.Modules[0].Name)
	require.True(t, integration.IsArtifact(resp.Modules[0].Artifact))
}

func TestHandleCompileReportsElaborationError(t *testing.T) {
	api := integration.NewTombLangAPI()
	r := httprouter.New()
	api.Routes(r)

	body, err := json.Marshal(integration.CompileRequest{
		Filename: "bad.tomb",
		Source: `
contract C {
	public run(): number {
		return missing;
	}
}`,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/compile", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp integration.CompileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}
