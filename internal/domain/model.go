package domain

import (
	"fmt"
	"strings"
)

// FieldKind classifies a model field by the semantics that decide which
// comparison operators apply to it, independent of how the column is stored.
type FieldKind string

const (
	FieldBoolean  FieldKind = "boolean"
	FieldChar     FieldKind = "char"
	FieldText     FieldKind = "text"
	FieldInteger  FieldKind = "integer"
	FieldDecimal  FieldKind = "decimal"
	FieldFloat    FieldKind = "float"
	FieldDate     FieldKind = "date"
	FieldTime     FieldKind = "time"
	FieldDateTime FieldKind = "datetime"
	FieldRelation FieldKind = "relation"
)

// IsCharacter reports whether the kind holds short character data.
func (k FieldKind) IsCharacter() bool {
	return k == FieldChar
}

// IsNumeric reports whether the kind holds numeric data.
func (k FieldKind) IsNumeric() bool {
	return k == FieldInteger || k == FieldDecimal || k == FieldFloat
}

// IsTemporal reports whether the kind holds date or time data.
func (k FieldKind) IsTemporal() bool {
	return k == FieldDate || k == FieldTime || k == FieldDateTime
}

// IsArithmetic reports whether the kind supports ordering comparisons
// (gt, lt, range). Numeric and temporal kinds do.
func (k FieldKind) IsArithmetic() bool {
	return k.IsNumeric() || k.IsTemporal()
}

// Choice is one enumerated value a field may take, paired with its
// display label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FieldDescriptor describes one queryable field of a model.
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Verbose  string    `json:"verbose,omitempty"`
	Kind     FieldKind `json:"kind"`
	Nullable bool      `json:"nullable,omitempty"`
	Choices  []Choice  `json:"choices,omitempty"`
	// Column is the physical column backing the field. Defaults to Name.
	Column string `json:"column,omitempty"`
}

// HasChoices reports whether the field carries an enumerated choice set.
func (f FieldDescriptor) HasChoices() bool {
	return len(f.Choices) > 0
}

// ColumnName returns the physical column for the field.
func (f FieldDescriptor) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// Label returns the display label for the field.
func (f FieldDescriptor) Label() string {
	if f.Verbose != "" {
		return f.Verbose
	}
	return f.Name
}

// RelationKind identifies the cardinality of a relation between two models.
type RelationKind string

const (
	OneToOne   RelationKind = "one_to_one"
	ManyToOne  RelationKind = "many_to_one"
	OneToMany  RelationKind = "one_to_many"
	ManyToMany RelationKind = "many_to_many"
)

// ToMany reports whether traversing the relation can yield more than one
// related row per local row.
func (k RelationKind) ToMany() bool {
	return k == OneToMany || k == ManyToMany
}

// Forward reports whether the local table holds the joining key.
func (k RelationKind) Forward() bool {
	return k == OneToOne || k == ManyToOne
}

// RelationDescriptor describes a traversable relation from one model to
// another, including the physical join mapping the query layer needs.
type RelationDescriptor struct {
	Name     string       `json:"name"`
	Verbose  string       `json:"verbose,omitempty"`
	Target   string       `json:"target"`
	Kind     RelationKind `json:"kind"`
	Nullable bool         `json:"nullable,omitempty"`

	// Column holds the joining key. For forward relations it is the local
	// foreign key column (defaults to "<name>_id"); for one-to-many it is
	// the foreign key column on the target table.
	Column string `json:"column,omitempty"`
	// TargetColumn is the column Column joins against. Defaults to the
	// primary key of the joined side.
	TargetColumn string `json:"target_column,omitempty"`

	// Many-to-many relations join through an intermediate table.
	Through       string `json:"through,omitempty"`
	ThroughLocal  string `json:"through_local,omitempty"`
	ThroughTarget string `json:"through_target,omitempty"`

	// Inverse names the relation on the target model that traverses this
	// edge in the opposite direction, if one is registered.
	Inverse string `json:"inverse,omitempty"`
}

// ColumnName returns the joining key column for forward and one-to-many
// relations.
func (r RelationDescriptor) ColumnName() string {
	if r.Column != "" {
		return r.Column
	}
	return r.Name + "_id"
}

// Label returns the display label for the relation.
func (r RelationDescriptor) Label() string {
	if r.Verbose != "" {
		return r.Verbose
	}
	return r.Name
}

// ModelDescriptor describes one searchable model: its display identity,
// physical table and the fields and relations reachable from it.
type ModelDescriptor struct {
	Name      string               `json:"name"`
	Verbose   string               `json:"verbose,omitempty"`
	Table     string               `json:"table"`
	PK        string               `json:"pk,omitempty"`
	Fields    []FieldDescriptor    `json:"fields"`
	Relations []RelationDescriptor `json:"relations,omitempty"`
}

// PKColumn returns the primary key column, defaulting to "id".
func (m ModelDescriptor) PKColumn() string {
	if m.PK != "" {
		return m.PK
	}
	return "id"
}

// Label returns the display label for the model.
func (m ModelDescriptor) Label() string {
	if m.Verbose != "" {
		return m.Verbose
	}
	return m.Name
}

// Field looks up a plain field by name.
func (m ModelDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Relation looks up a relation by name.
func (m ModelDescriptor) Relation(name string) (RelationDescriptor, bool) {
	for _, r := range m.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationDescriptor{}, false
}

// Registry is the explicit set of searchable models. The host application
// registers every model that should be offered for search building; nothing
// is discovered implicitly.
type Registry struct {
	names  []string
	models map[string]ModelDescriptor
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]ModelDescriptor)}
}

// Register adds a model to the registry. Registration order is preserved
// for listing.
func (r *Registry) Register(m ModelDescriptor) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("model name must not be empty")
	}
	if strings.TrimSpace(m.Table) == "" {
		return fmt.Errorf("model %q has no table", m.Name)
	}
	if _, exists := r.models[m.Name]; exists {
		return fmt.Errorf("model %q is already registered", m.Name)
	}
	seen := make(map[string]struct{}, len(m.Fields)+len(m.Relations))
	for _, f := range m.Fields {
		if f.Kind == FieldRelation {
			return fmt.Errorf("model %q: field %q: relations must be registered as relations, not fields", m.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("model %q: duplicate field %q", m.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	for _, rel := range m.Relations {
		if _, dup := seen[rel.Name]; dup {
			return fmt.Errorf("model %q: duplicate field %q", m.Name, rel.Name)
		}
		seen[rel.Name] = struct{}{}
		if rel.Kind == ManyToMany && rel.Through == "" {
			return fmt.Errorf("model %q: relation %q: many-to-many relations need a through table", m.Name, rel.Name)
		}
	}
	r.models[m.Name] = m
	r.names = append(r.names, m.Name)
	return nil
}

// Get returns the registered model with the given name.
func (r *Registry) Get(name string) (ModelDescriptor, bool) {
	m, ok := r.models[name]
	return m, ok
}

// Models returns all registered models in registration order.
func (r *Registry) Models() []ModelDescriptor {
	result := make([]ModelDescriptor, 0, len(r.names))
	for _, name := range r.names {
		result = append(result, r.models[name])
	}
	return result
}

// Validate checks cross-model consistency: every relation target and every
// declared inverse must resolve. Call once after all models are registered.
func (r *Registry) Validate() error {
	for _, name := range r.names {
		m := r.models[name]
		for _, rel := range m.Relations {
			target, ok := r.models[rel.Target]
			if !ok {
				return fmt.Errorf("model %q: relation %q targets unregistered model %q", m.Name, rel.Name, rel.Target)
			}
			if rel.Inverse == "" {
				continue
			}
			back, ok := target.Relation(rel.Inverse)
			if !ok {
				return fmt.Errorf("model %q: relation %q declares inverse %q which does not exist on %q", m.Name, rel.Name, rel.Inverse, rel.Target)
			}
			if back.Target != m.Name {
				return fmt.Errorf("model %q: relation %q: inverse %q points at %q, not back", m.Name, rel.Name, rel.Inverse, back.Target)
			}
		}
	}
	return nil
}
