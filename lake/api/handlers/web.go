package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed web/index.html
var indexHTML []byte

func (h *Handlers) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}
