package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thomst/searchkit/internal/domain"
	"github.com/thomst/searchkit/internal/query"
	"github.com/thomst/searchkit/internal/repository"
)

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	registry := domain.NewRegistry()
	models := []domain.ModelDescriptor{
		{
			Name:    "model_a",
			Table:   "model_a",
			Verbose: "Model A",
			Fields: []domain.FieldDescriptor{
				{Name: "chars", Kind: domain.FieldChar},
				{Name: "integer", Kind: domain.FieldInteger, Nullable: true},
			},
		},
		{
			Name:  "model_b",
			Table: "model_b",
			Fields: []domain.FieldDescriptor{
				{Name: "chars", Kind: domain.FieldChar},
			},
		},
	}
	for _, model := range models {
		if err := registry.Register(model); err != nil {
			t.Fatalf("failed to register %s: %v", model.Name, err)
		}
	}
	return registry
}

// fakeSearchRepository keeps saved searches in memory with the same
// uniqueness and not-found semantics as the postgres implementation.
type fakeSearchRepository struct {
	searches map[uuid.UUID]domain.Search
}

func newFakeSearchRepository() *fakeSearchRepository {
	return &fakeSearchRepository{searches: make(map[uuid.UUID]domain.Search)}
}

func (f *fakeSearchRepository) Create(_ context.Context, search domain.Search) (domain.Search, error) {
	for _, existing := range f.searches {
		if existing.Model == search.Model && existing.Name == search.Name {
			return domain.Search{}, repository.ErrDuplicateName
		}
	}
	f.searches[search.ID] = search
	return search, nil
}

func (f *fakeSearchRepository) GetByID(_ context.Context, id uuid.UUID) (domain.Search, error) {
	search, ok := f.searches[id]
	if !ok {
		return domain.Search{}, repository.ErrSearchNotFound
	}
	return search, nil
}

func (f *fakeSearchRepository) List(_ context.Context, model string) ([]domain.Search, error) {
	var result []domain.Search
	for _, search := range f.searches {
		if search.Model == model {
			result = append(result, search)
		}
	}
	return result, nil
}

func (f *fakeSearchRepository) ListAll(_ context.Context) ([]domain.Search, error) {
	var result []domain.Search
	for _, search := range f.searches {
		result = append(result, search)
	}
	return result, nil
}

func (f *fakeSearchRepository) Update(_ context.Context, search domain.Search) (domain.Search, error) {
	if _, ok := f.searches[search.ID]; !ok {
		return domain.Search{}, repository.ErrSearchNotFound
	}
	f.searches[search.ID] = search
	return search, nil
}

func (f *fakeSearchRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.searches[id]; !ok {
		return repository.ErrSearchNotFound
	}
	delete(f.searches, id)
	return nil
}

func (f *fakeSearchRepository) Exists(_ context.Context, model, name string) (bool, error) {
	for _, search := range f.searches {
		if search.Model == model && search.Name == name {
			return true, nil
		}
	}
	return false, nil
}

type fakeExecutor struct {
	result query.ResultSet
	values []string
	err    error
}

func (f *fakeExecutor) Apply(_ context.Context, _ string, _ *query.Predicate) (query.ResultSet, error) {
	return f.result, f.err
}

func (f *fakeExecutor) DistinctValues(_ context.Context, _, _, _ string, _ int) ([]string, error) {
	return f.values, f.err
}

func newTestHandler(t *testing.T, repo repository.SearchRepository, executor QueryExecutor) *Handler {
	t.Helper()
	h := NewHandler(testRegistry(t), repo, executor, 0)
	h.now = func() time.Time {
		return time.Date(2024, 5, 17, 9, 41, 0, 0, time.UTC)
	}
	return h
}

func completeForm() url.Values {
	data := url.Values{}
	data.Set("searchkit-model", "model_a")
	data.Set("searchkit-total-forms", "1")
	data.Set("searchkit-model_a-0-field", "chars")
	data.Set("searchkit-model_a-0-operator", "icontains")
	data.Set("searchkit-model_a-0-value", "foo")
	return data
}

func postForm(h http.Handler, path string, data url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(data.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestListModels(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/models", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	views := decode[[]modelView](t, rec)
	if len(views) != 2 || views[0].Name != "model_a" || views[0].Verbose == "" {
		t.Errorf("models = %#v", views)
	}
}

func TestNewForm(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/forms/model_a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decode[formSetView](t, rec)
	if view.Model != "model_a" || view.TotalForms != 1 {
		t.Errorf("view = %+v", view)
	}
	if view.Rows[0].State != "empty" || len(view.Rows[0].FieldChoices) == 0 {
		t.Errorf("row = %+v", view.Rows[0])
	}
}

func TestNewFormUnknownModel(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/forms/no_such_model", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReloadFormAdvancesRows(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := url.Values{}
	data.Set("searchkit-model", "model_a")
	data.Set("searchkit-model_a-0-field", "chars")

	rec := postForm(h, "/searchkit/forms/model_a/reload", data)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decode[formSetView](t, rec)
	row := view.Rows[0]
	if row.State != "operator_chosen" {
		t.Errorf("state = %q, reload must advance a field-chosen row", row.State)
	}
	if len(row.OperatorChoices) == 0 || row.ValueSpec == nil {
		t.Errorf("row = %+v", row)
	}
}

func TestReloadFormWithoutModel(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := url.Values{}
	data.Set("searchkit-model_a-0-field", "chars")
	rec := postForm(h, "/searchkit/forms/model_a/reload", data)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a submission without a model selection", rec.Code)
	}
}

func TestReloadFormModelMismatch(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := url.Values{}
	data.Set("searchkit-model", "model_a")
	rec := postForm(h, "/searchkit/forms/model_b/reload", data)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAutocomplete(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{values: []string{"foo", "foobar"}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/autocomplete/model_a/chars?term=fo", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	payload := decode[map[string][]string](t, rec)
	if len(payload["values"]) != 2 || payload["values"][0] != "foo" {
		t.Errorf("payload = %v", payload)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/autocomplete/model_a/chars?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a bad limit", rec.Code)
	}
}

func TestSaveSearchWithDefaultName(t *testing.T) {
	repo := newFakeSearchRepository()
	h := newTestHandler(t, repo, &fakeExecutor{})

	rec := postForm(h, "/searchkit/searches", completeForm())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decode[searchView](t, rec)
	if view.Name != "Search for Model A (2024-05-17 09:41)" {
		t.Errorf("name = %q", view.Name)
	}
	if view.Model != "model_a" || len(view.Rules) != 1 {
		t.Errorf("view = %+v", view)
	}
	if view.Description == "" {
		t.Error("description missing")
	}
	if _, err := repo.GetByID(context.Background(), view.ID); err != nil {
		t.Errorf("search not persisted: %v", err)
	}
}

func TestSaveSearchDuplicateName(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := completeForm()
	data.Set("searchkit-name", "My search")

	if rec := postForm(h, "/searchkit/searches", data); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if rec := postForm(h, "/searchkit/searches", data); rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for a duplicate name", rec.Code)
	}
}

func TestSaveSearchIncompleteForm(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := url.Values{}
	data.Set("searchkit-model", "model_a")
	data.Set("searchkit-model_a-0-field", "chars")

	rec := postForm(h, "/searchkit/searches", data)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	view := decode[formSetView](t, rec)
	if view.Valid {
		t.Error("incomplete form reported valid")
	}
}

func TestListSearches(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	data := completeForm()
	data.Set("searchkit-name", "My search")
	postForm(h, "/searchkit/searches", data)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches?model=model_a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	views := decode[[]searchView](t, rec)
	if len(views) != 1 || views[0].Name != "My search" {
		t.Errorf("searches = %+v", views)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches?model=no_such_model", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown model", rec.Code)
	}
}

func TestGetSearch(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := postForm(h, "/searchkit/searches", completeForm())
	saved := decode[searchView](t, rec)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+saved.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decode[searchView](t, rec); got.ID != saved.ID {
		t.Errorf("id = %s, want %s", got.ID, saved.ID)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a malformed id", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+uuid.NewString(), nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for an unknown id", rec.Code)
	}
}

func TestUpdateSearch(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := postForm(h, "/searchkit/searches", completeForm())
	saved := decode[searchView](t, rec)

	data := completeForm()
	data.Set("searchkit-model_a-0-value", "bar")
	data.Set("searchkit-name", "Renamed")
	req := httptest.NewRequest(http.MethodPut, "/searchkit/searches/"+saved.ID.String(), strings.NewReader(data.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decode[searchView](t, rec)
	if updated.ID != saved.ID || updated.Name != "Renamed" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Rules[0].Value != "bar" {
		t.Errorf("rules = %+v", updated.Rules)
	}
}

func TestDeleteSearch(t *testing.T) {
	h := newTestHandler(t, newFakeSearchRepository(), &fakeExecutor{})
	rec := postForm(h, "/searchkit/searches", completeForm())
	saved := decode[searchView](t, rec)

	req := httptest.NewRequest(http.MethodDelete, "/searchkit/searches/"+saved.ID.String(), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 deleting twice", rec.Code)
	}
}

func TestApplySearch(t *testing.T) {
	executor := &fakeExecutor{result: query.ResultSet{
		Columns: []string{"id", "chars"},
		Rows:    []map[string]any{{"id": float64(1), "chars": "foo"}},
	}}
	h := newTestHandler(t, newFakeSearchRepository(), executor)
	rec := postForm(h, "/searchkit/searches", completeForm())
	saved := decode[searchView](t, rec)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+saved.ID.String()+"/apply", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	result := decode[query.ResultSet](t, rec)
	if len(result.Rows) != 1 || result.Rows[0]["chars"] != "foo" {
		t.Errorf("result = %+v", result)
	}
}

func TestApplySearchStaleRules(t *testing.T) {
	executor := &fakeExecutor{}
	h := newTestHandler(t, newFakeSearchRepository(), executor)
	rec := postForm(h, "/searchkit/searches", completeForm())
	saved := decode[searchView](t, rec)

	executor.err = fmt.Errorf("%w: field %q", query.ErrStaleRule, "chars")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+saved.ID.String()+"/apply", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	payload := decode[map[string]string](t, rec)
	if !strings.Contains(payload["error"], "edit the search to fix it") {
		t.Errorf("error = %q", payload["error"])
	}
}
