package main

import (
	"net/http"
	"net/http/pprof"
)

// registerPprof wires the standard profiling endpoints onto mux; split out
// so the import's package-level side effects are opt-in via --enable-pprof
// rather than always-on.
func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
