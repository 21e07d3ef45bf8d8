// Package viewgrp serves the browser status page for the node.
package viewgrp

import (
	"context"
	_ "embed"
	"net/http"
)

//go:embed assets/index.html
var index []byte

// Index writes the status page. The page polls the public api and follows
// the events websocket.
func Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(index)
	return err
}
