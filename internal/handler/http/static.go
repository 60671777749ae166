package http

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// mountStatic serves a prebuilt web UI from dir: index.html at "/" and
// assets under /static/. Nothing is mounted when dir has no index.html.
func mountStatic(r chi.Router, dir string) bool {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return false
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, index)
	})

	fs := http.FileServer(http.Dir(filepath.Join(dir, "static")))
	r.Handle("/static/*", http.StripPrefix("/static/", fs))
	return true
}
