package handler

import (
	"bytes"
	_ "embed"
	"net/http"
	"time"
)

//go:embed static/index.html
var indexHTML []byte

// PageHandler serves the single pairing page. The page polls /status and
// listens on /events for immediate refreshes.
type PageHandler struct {
	content  []byte
	modified time.Time
}

func NewPageHandler() *PageHandler {
	return &PageHandler{
		content:  indexHTML,
		modified: time.Now(),
	}
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", h.modified, bytes.NewReader(h.content))
}
