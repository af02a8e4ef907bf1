package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomst/searchkit/internal/domain"
	"github.com/thomst/searchkit/internal/forms"
	"github.com/thomst/searchkit/internal/query"
	"github.com/thomst/searchkit/internal/repository"
)

// QueryExecutor runs compiled predicates against the database.
type QueryExecutor interface {
	Apply(ctx context.Context, model string, p *query.Predicate) (query.ResultSet, error)
	DistinctValues(ctx context.Context, model, fieldPath, term string, limit int) ([]string, error)
}

// Handler serves the search building and saved search endpoints.
type Handler struct {
	registry *domain.Registry
	searches repository.SearchRepository
	executor QueryExecutor
	maxDepth int
	now      func() time.Time
}

// NewHandler creates the searchkit HTTP handler.
func NewHandler(registry *domain.Registry, searches repository.SearchRepository, executor QueryExecutor, maxDepth int) *Handler {
	if maxDepth <= 0 {
		maxDepth = domain.DefaultMaxDepth
	}
	return &Handler{
		registry: registry,
		searches: searches,
		executor: executor,
		maxDepth: maxDepth,
		now:      time.Now,
	}
}

// ServeHTTP routes requests below the /searchkit prefix.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/searchkit"), "/")
	parts := strings.Split(path, "/")

	switch {
	case r.Method == http.MethodGet && path == "models":
		h.handleListModels(w, r)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "forms":
		h.handleNewForm(w, r, parts[1])
	case r.Method == http.MethodPost && len(parts) == 3 && parts[0] == "forms" && parts[2] == "reload":
		h.handleReloadForm(w, r, parts[1])
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "autocomplete":
		h.handleAutocomplete(w, r, parts[1], parts[2])
	case r.Method == http.MethodPost && path == "searches":
		h.handleSaveSearch(w, r, uuid.Nil)
	case r.Method == http.MethodGet && path == "searches":
		h.handleListSearches(w, r)
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "searches":
		h.handleGetSearch(w, r, parts[1])
	case r.Method == http.MethodPut && len(parts) == 2 && parts[0] == "searches":
		h.handleUpdateSearch(w, r, parts[1])
	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "searches":
		h.handleDeleteSearch(w, r, parts[1])
	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "searches" && parts[2] == "apply":
		h.handleApplySearch(w, r, parts[1])
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleListModels(w http.ResponseWriter, _ *http.Request) {
	models := h.registry.Models()
	views := make([]modelView, len(models))
	for i, model := range models {
		views[i] = modelView{Name: model.Name, Verbose: model.Label()}
	}
	writeJSON(w, http.StatusOK, views)
}

// handleNewForm renders a fresh form for the model: one empty row offering
// only the field choices.
func (h *Handler) handleNewForm(w http.ResponseWriter, r *http.Request, model string) {
	fs, err := forms.NewFormSetForModel(h.registry, model, nil, forms.WithMaxDepth(h.maxDepth))
	if err != nil {
		h.formError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderFormSet(fs))
}

// handleReloadForm rebuilds the form from the submitted state and extends
// every row that can progress a stage. This is the round trip behind each
// field or operator selection.
func (h *Handler) handleReloadForm(w http.ResponseWriter, r *http.Request, model string) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}
	fs, err := forms.NewFormSet(h.registry, r.PostForm, forms.WithMaxDepth(h.maxDepth))
	if err != nil {
		h.formError(w, err)
		return
	}
	if fs.ModelName() == "" {
		writeError(w, http.StatusBadRequest, "form data carries no model selection")
		return
	}
	if fs.ModelName() != model {
		writeError(w, http.StatusBadRequest, "form data belongs to another model")
		return
	}
	fs.Extend()
	writeJSON(w, http.StatusOK, renderFormSet(fs))
}

func (h *Handler) handleAutocomplete(w http.ResponseWriter, r *http.Request, model, fieldPath string) {
	term := r.URL.Query().Get("term")
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	values, err := h.executor.DistinctValues(r.Context(), model, fieldPath, term, limit)
	if err != nil {
		h.formError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"values": values})
}

// handleSaveSearch validates the submitted form and persists it under the
// given name. Without a name a timestamped default is generated.
func (h *Handler) handleSaveSearch(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}
	fs, err := forms.NewFormSet(h.registry, r.PostForm, forms.WithMaxDepth(h.maxDepth))
	if err != nil {
		h.formError(w, err)
		return
	}
	if !fs.IsValid() {
		writeJSON(w, http.StatusUnprocessableEntity, renderFormSet(fs))
		return
	}
	rules, err := fs.Rules()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	name := strings.TrimSpace(r.PostForm.Get(fs.Prefix + "-name"))
	if name == "" {
		name = domain.DefaultSearchName(*fs.Model, h.now())
	}
	search := domain.NewSearch(fs.ModelName(), name, rules)

	var saved domain.Search
	if id == uuid.Nil {
		saved, err = h.searches.Create(r.Context(), search)
	} else {
		search.ID = id
		saved, err = h.searches.Update(r.Context(), search)
	}
	if err != nil {
		h.searchError(w, err)
		return
	}
	status := http.StatusCreated
	if id != uuid.Nil {
		status = http.StatusOK
	}
	writeJSON(w, status, renderSearch(saved))
}

func (h *Handler) handleListSearches(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	var (
		searches []domain.Search
		err      error
	)
	if model == "" {
		searches, err = h.searches.ListAll(r.Context())
	} else {
		if _, ok := h.registry.Get(model); !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown model %q", model))
			return
		}
		searches, err = h.searches.List(r.Context(), model)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, renderSearches(searches))
}

func (h *Handler) handleGetSearch(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search id: %v", err))
		return
	}
	search, err := h.searches.GetByID(r.Context(), id)
	if err != nil {
		h.searchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderSearch(search))
}

func (h *Handler) handleUpdateSearch(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search id: %v", err))
		return
	}
	h.handleSaveSearch(w, r, id)
}

func (h *Handler) handleDeleteSearch(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search id: %v", err))
		return
	}
	if err := h.searches.Delete(r.Context(), id); err != nil {
		h.searchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApplySearch runs a saved search and returns the matching rows.
// A search whose rules no longer fit the current model layout yields a
// conflict pointing the caller at re-editing the search.
func (h *Handler) handleApplySearch(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid search id: %v", err))
		return
	}
	search, err := h.searches.GetByID(r.Context(), id)
	if err != nil {
		h.searchError(w, err)
		return
	}
	result, err := h.executor.Apply(r.Context(), search.Model, query.Compile(search.Rules))
	if err != nil {
		if errors.Is(err, query.ErrStaleRule) {
			writeError(w, http.StatusConflict,
				fmt.Sprintf("saved search %q is out of date: %v; edit the search to fix it", search.Name, err))
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) formError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forms.ErrUnknownModel), errors.Is(err, domain.ErrUnknownModel):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func (h *Handler) searchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrSearchNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrDuplicateName):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
