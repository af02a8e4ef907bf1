package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/thomst/searchkit/internal/domain"
	"github.com/thomst/searchkit/internal/forms"
)

// modelView is the list entry for one registered model.
type modelView struct {
	Name    string `json:"name"`
	Verbose string `json:"verbose"`
}

// rowView is the render state of one filter row: which choices to offer,
// what was selected so far, and the inline errors of the last submission.
type rowView struct {
	Prefix          string                `json:"prefix"`
	Index           int                   `json:"index"`
	First           bool                  `json:"first"`
	State           forms.RowState        `json:"state"`
	FieldChoices    []domain.LookupGroup  `json:"field_choices"`
	Field           string                `json:"field,omitempty"`
	OperatorChoices []domain.Choice       `json:"operator_choices,omitempty"`
	Operator        string                `json:"operator,omitempty"`
	ValueSpec       *domain.ValueSpec     `json:"value_spec,omitempty"`
	Value           any                   `json:"value,omitempty"`
	Negate          bool                  `json:"negate,omitempty"`
	Logic           string                `json:"logic,omitempty"`
	Errors          map[string][]string   `json:"errors,omitempty"`
}

// formSetView is the render state of the whole search form.
type formSetView struct {
	Prefix     string              `json:"prefix"`
	Model      string              `json:"model"`
	TotalForms int                 `json:"total_forms"`
	Valid      bool                `json:"valid"`
	Rows       []rowView           `json:"rows"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// searchView is one saved search with its human-readable description.
type searchView struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Model       string              `json:"model"`
	Description string              `json:"description"`
	Rules       []domain.FilterRule `json:"rules"`
	CreatedAt   time.Time           `json:"created_at"`
}

func renderFormSet(fs *forms.FormSet) formSetView {
	view := formSetView{
		Prefix:     fs.Prefix,
		Model:      fs.ModelName(),
		TotalForms: len(fs.Rows),
		Valid:      fs.IsValid(),
		Rows:       make([]rowView, len(fs.Rows)),
	}
	if len(fs.Errors) > 0 {
		view.Errors = fs.Errors
	}
	for i, row := range fs.Rows {
		view.Rows[i] = renderRow(row)
	}
	return view
}

func renderRow(row *forms.Row) rowView {
	view := rowView{
		Prefix:       row.Prefix,
		Index:        row.Index,
		First:        row.First,
		State:        row.State,
		FieldChoices: row.FieldChoices,
		Field:        row.FieldPath,
		Operator:     string(row.Operator),
		ValueSpec:    row.ValueSpec,
		Value:        row.Value,
		Negate:       row.Negate,
		Logic:        string(row.Logic),
	}
	if len(row.OperatorChoices) > 0 {
		view.OperatorChoices = row.OperatorChoices
	}
	if len(row.Errors) > 0 {
		view.Errors = row.Errors
	}
	return view
}

func renderSearch(search domain.Search) searchView {
	return searchView{
		ID:          search.ID,
		Name:        search.Name,
		Model:       search.Model,
		Description: search.Description(),
		Rules:       search.Rules,
		CreatedAt:   search.CreatedAt,
	}
}

func renderSearches(searches []domain.Search) []searchView {
	views := make([]searchView, len(searches))
	for i, search := range searches {
		views[i] = renderSearch(search)
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
