// Package site serves the embedded browser console: the calculator form,
// the countdown list and a pulse display fed by the /pulse stream.
package site

import (
	"context"
	"net/http"
)

// Register attaches the console at / to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.Handle("GET /", http.FileServer(FS()))
}
