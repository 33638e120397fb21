// Package static serves uploaded images and the single-page frontend.
package static

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves files from the upload and frontend directories.
type Handler struct {
	uploadDir string
	staticDir string
	logger    *zap.Logger
}

// New creates a static file handler.
func New(uploadDir, staticDir string, logger *zap.Logger) *Handler {
	return &Handler{uploadDir: uploadDir, staticDir: staticDir, logger: logger.Named("http.static")}
}

// RegisterRoutes mounts /uploads and the SPA catch-all. Call it last so the
// API routes take precedence.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/uploads/{file}", h.handleUpload)
	r.Get("/*", h.handleSPA)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		http.NotFound(w, r)
		return
	}
	h.serveFile(w, r, filepath.Join(h.uploadDir, name))
}

// handleSPA serves an existing asset, or index.html for client-side routes.
func (h *Handler) handleSPA(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}

	clean := path.Clean("/" + r.URL.Path)
	if clean != "/" {
		candidate := filepath.Join(h.staticDir, filepath.FromSlash(clean))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			http.ServeFile(w, r, candidate)
			return
		}
	}

	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.logger.Debug("frontend not built", zap.String("dir", h.staticDir))
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, file string) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, file)
}
