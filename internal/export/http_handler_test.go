package export

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/thomst/searchkit/internal/query"
	"github.com/thomst/searchkit/internal/repository"
)

func TestDownloadCSV(t *testing.T) {
	results := &stubResults{result: query.ResultSet{
		Columns: []string{"id", "chars"},
		Rows:    []map[string]any{{"id": int64(1), "chars": "foo"}},
	}}
	handler := NewHTTPHandler(testService(&stubSearches{search: testSearch()}, results))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+uuid.NewString()+"/export", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "text/csv" {
		t.Errorf("content type = %q", got)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, `attachment; filename="my-search_`) {
		t.Errorf("disposition = %q", disposition)
	}
	if !strings.HasPrefix(rec.Body.String(), "id,chars\n") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestDownloadRejectsBadRequests(t *testing.T) {
	handler := NewHTTPHandler(testService(&stubSearches{search: testSearch()}, &stubResults{}))

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/searchkit/searches/" + uuid.NewString() + "/export", http.StatusNotFound},
		{http.MethodGet, "/searchkit/searches/" + uuid.NewString(), http.StatusNotFound},
		{http.MethodGet, "/searchkit/searches/not-a-uuid/export", http.StatusBadRequest},
		{http.MethodGet, "/searchkit/searches/" + uuid.NewString() + "/export?format=pdf", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}

func TestDownloadSearchNotFound(t *testing.T) {
	handler := NewHTTPHandler(testService(&stubSearches{err: repository.ErrSearchNotFound}, &stubResults{}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+uuid.NewString()+"/export", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadQueryFailureYieldsError(t *testing.T) {
	results := &stubResults{err: query.ErrStaleRule}
	handler := NewHTTPHandler(testService(&stubSearches{search: testSearch()}, results))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/searchkit/searches/"+uuid.NewString()+"/export", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.HasPrefix(rec.Body.String(), "id,") {
		t.Error("error response must not contain partial file data")
	}
}
