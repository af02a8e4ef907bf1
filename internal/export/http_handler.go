package export

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/thomst/searchkit/internal/repository"
)

type Handler struct {
	service *Service
}

func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

// ServeHTTP serves GET /searchkit/searches/{id}/export?format=csv|xlsx.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !strings.HasSuffix(r.URL.Path, "/export") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.handleDownload(w, r)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	searchID, err := uuid.Parse(parts[len(parts)-2])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid search id: %v", err), http.StatusBadRequest)
		return
	}
	format, err := ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Buffer the file so a failing query yields an error response
	// instead of a truncated download.
	var body bytes.Buffer
	fileName, err := h.service.Export(r.Context(), searchID, format, &body)
	if err != nil {
		if errors.Is(err, repository.ErrSearchNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body.Bytes())
}
