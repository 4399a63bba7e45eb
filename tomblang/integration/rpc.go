// Copyright 2024 The TombLang Authors
// This file is part of TombLang.

// Package integration provides a minimal HTTP/websocket smoke-test surface
// for the TombLang compiler: a POST /compile endpoint and a diagnostics
// streaming websocket, both fronting tomblang/compile's `compile(source) ->
// []Module` public API rather than contract execution. This mirrors the
// donor's own RPC-surface idiom (one struct of method handlers, httprouter
// for routing) without fronting the donor's VM.
package integration

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/tomblang/tomblang/tomblang/compile"
	"github.com/tomblang/tomblang/tomblang/lang/compiler"
)

// CompileRequest is the POST /compile request body: one named source file.
type CompileRequest struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
}

// ModuleResult is one compiled module's wire shape for the RPC response,
// recursively carrying its own sub-modules (§4.8's Module shape). Artifact
// is the EncodeArtifact framing of (name, script, abi); encoding/json
// base64-encodes []byte fields automatically.
type ModuleResult struct {
	Name       string          `json:"name"`
	Artifact   []byte          `json:"artifact"`
	SubModules []*ModuleResult `json:"subModules,omitempty"`
}

// CompileResponse is the POST /compile response body.
type CompileResponse struct {
	Success bool            `json:"success"`
	Modules []*ModuleResult `json:"modules,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// TombLangAPI fronts the compiler for RPC callers. It holds one shared
// *compiler.Compiler built from tomblang/compile's default wiring; the
// Compiler itself is concurrency-safe per compile call (§5), so one
// instance may serve many simultaneous requests.
type TombLangAPI struct {
	compiler *compiler.Compiler
	upgrader websocket.Upgrader
}

// NewTombLangAPI builds a TombLangAPI with the default compiler wiring.
func NewTombLangAPI() *TombLangAPI {
	return &TombLangAPI{
		compiler: compile.New(compiler.CompilerConfig{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Routes registers the smoke-test endpoints on an httprouter.Router.
func (api *TombLangAPI) Routes(r *httprouter.Router) {
	r.POST("/compile", api.handleCompile)
	r.GET("/compile/stream", api.handleCompileStream)
	r.GET("/version", api.handleVersion)
}

func (api *TombLangAPI) handleVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	json.NewEncoder(w).Encode(map[string]string{"version": "0.1.0"})
}

func (api *TombLangAPI) handleCompile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, CompileResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, api.compile(req))
}

// handleCompileStream upgrades to a websocket and compiles each incoming
// text frame as a full source snapshot (§4.8's per-line convenience API is
// not a fit here: a websocket diagnostics client resends the whole buffer
// on every keystroke batch, not one line at a time), streaming back one
// CompileResponse per frame until the client disconnects.
func (api *TombLangAPI) handleCompileStream(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := api.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req CompileRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if err := conn.WriteJSON(api.compile(req)); err != nil {
			return
		}
	}
}

func (api *TombLangAPI) compile(req CompileRequest) CompileResponse {
	modules, err := api.compiler.Compile(req.Filename, req.Source)
	if err != nil {
		return CompileResponse{Success: false, Error: err.Error()}
	}

	out := make([]*ModuleResult, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleResult(m))
	}
	return CompileResponse{Success: true, Modules: out}
}

func moduleResult(m *compiler.Module) *ModuleResult {
	res := &ModuleResult{
		Name:     m.Name,
		Artifact: EncodeArtifact(FromModule(m)),
	}
	for _, sub := range m.SubModules {
		res.SubModules = append(res.SubModules, moduleResult(sub))
	}
	return res
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
