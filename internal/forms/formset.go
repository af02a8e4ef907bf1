package forms

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/thomst/searchkit/internal/domain"
)

// DefaultPrefix namespaces all searchkit form keys.
const DefaultPrefix = "searchkit"

// ErrUnknownModel marks a submitted root-model reference that is not
// registered. Unlike malformed row input this is rejected outright: no
// rows can be built without a root model.
var ErrUnknownModel = errors.New("unknown model")

// FormSet owns the rows of one search being edited, bound to at most one
// root model. Rows are addressed by (prefix, model name, index) so a
// reload of one row never disturbs sibling data, and stale markup from a
// previous model selection cannot be mistaken for fresh input.
type FormSet struct {
	Prefix string
	Model  *domain.ModelDescriptor
	Rows   []*Row
	Errors map[string][]string

	registry *domain.Registry
	maxDepth int
	tree     *domain.ModelTree
	total    int
}

// Option configures a form set.
type Option func(*FormSet)

// WithPrefix overrides the form key prefix.
func WithPrefix(prefix string) Option {
	return func(fs *FormSet) {
		if prefix != "" {
			fs.Prefix = prefix
		}
	}
}

// WithMaxDepth bounds the relation traversal of the field choices.
func WithMaxDepth(depth int) Option {
	return func(fs *FormSet) {
		if depth > 0 {
			fs.maxDepth = depth
		}
	}
}

// NewFormSet reconstructs a form set from submitted flat form data. An
// absent model selection yields an unbound set without rows, which is
// never valid. An unknown model reference fails with ErrUnknownModel.
func NewFormSet(registry *domain.Registry, data url.Values, opts ...Option) (*FormSet, error) {
	fs := newFormSet(registry, opts)
	modelName := strings.TrimSpace(data.Get(fs.Prefix + "-model"))
	if modelName == "" {
		return fs, nil
	}
	if err := fs.bindModel(modelName); err != nil {
		return nil, err
	}
	fs.total = fs.totalForms(data)
	for i := 0; i < fs.total; i++ {
		fs.Rows = append(fs.Rows, NewRow(fs.tree, fs.rowPrefix(), i, i == 0, data))
	}
	return fs, nil
}

// NewFormSetForModel builds a form set bound to a model from stored rules,
// for initial rendering and for re-editing a saved search. Without rules
// it starts with one empty row.
func NewFormSetForModel(registry *domain.Registry, model string, rules []domain.FilterRule, opts ...Option) (*FormSet, error) {
	fs := newFormSet(registry, opts)
	if err := fs.bindModel(model); err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		fs.total = 1
		fs.Rows = []*Row{NewRow(fs.tree, fs.rowPrefix(), 0, true, nil)}
		return fs, nil
	}
	fs.total = len(rules)
	for i, rule := range rules {
		row, err := NewRowFromRule(fs.tree, fs.rowPrefix(), i, i == 0, rule)
		if err != nil {
			return nil, err
		}
		fs.Rows = append(fs.Rows, row)
	}
	return fs, nil
}

func newFormSet(registry *domain.Registry, opts []Option) *FormSet {
	fs := &FormSet{
		Prefix:   DefaultPrefix,
		Errors:   make(map[string][]string),
		registry: registry,
		maxDepth: domain.DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

func (fs *FormSet) bindModel(name string) error {
	model, ok := fs.registry.Get(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	tree, err := domain.NewModelTree(fs.registry, name, domain.WithMaxDepth(fs.maxDepth))
	if err != nil {
		return err
	}
	fs.Model = &model
	fs.tree = tree
	return nil
}

// rowPrefix is the model-scoped prefix rows append their index to, giving
// each row the composite address (formset prefix, model name, index).
func (fs *FormSet) rowPrefix() string {
	return fmt.Sprintf("%s-%s", fs.Prefix, fs.Model.Name)
}

func (fs *FormSet) totalForms(data url.Values) int {
	raw := strings.TrimSpace(data.Get(fs.Prefix + "-total-forms"))
	if raw != "" {
		if total, err := strconv.Atoi(raw); err == nil && total >= 0 {
			return total
		}
		fs.Errors["total-forms"] = append(fs.Errors["total-forms"], "invalid form count")
	}
	// Without management data, count the row indices actually present.
	total := 0
	for total < 1000 {
		if !data.Has(fmt.Sprintf("%s-%d-field", fs.rowPrefix(), total)) {
			break
		}
		total++
	}
	if total == 0 {
		total = 1
	}
	return total
}

// ModelName returns the bound model's name, or the empty string.
func (fs *FormSet) ModelName() string {
	if fs.Model == nil {
		return ""
	}
	return fs.Model.Name
}

// IsValid reports whether the set can be submitted: a root model is bound
// and every row is complete. An unbound or empty set is never valid, which
// prevents saving a no-op search.
func (fs *FormSet) IsValid() bool {
	if fs.Model == nil || len(fs.Rows) == 0 || len(fs.Errors) > 0 {
		return false
	}
	for _, row := range fs.Rows {
		if !row.Valid() {
			return false
		}
	}
	return true
}

// Extend advances exactly the rows that have a field or operator chosen
// but are not yet complete, driving the progressive-disclosure reload.
func (fs *FormSet) Extend() {
	for _, row := range fs.Rows {
		row.Extend()
	}
}

// Rules collects the filter rules of all rows, in row order. It fails
// unless the whole set is valid.
func (fs *FormSet) Rules() ([]domain.FilterRule, error) {
	if !fs.IsValid() {
		return nil, fmt.Errorf("form set is not valid")
	}
	rules := make([]domain.FilterRule, len(fs.Rows))
	for i, row := range fs.Rows {
		rule, err := row.Rule()
		if err != nil {
			return nil, err
		}
		rules[i] = rule
	}
	return rules, nil
}
