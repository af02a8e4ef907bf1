package main

import (
	"fmt"

	"github.com/thomst/searchkit/internal/domain"
)

// demoRegistry registers the bundled demo models. They cover every field
// kind and relation cardinality the form builder supports.
func demoRegistry() (*domain.Registry, error) {
	registry := domain.NewRegistry()

	models := []domain.ModelDescriptor{
		{
			Name:    "model_a",
			Verbose: "Model A",
			Table:   "model_a",
			Fields: []domain.FieldDescriptor{
				{Name: "boolean", Kind: domain.FieldBoolean, Nullable: true},
				{Name: "chars", Kind: domain.FieldChar},
				{Name: "chars_choices", Kind: domain.FieldChar, Nullable: true, Choices: []domain.Choice{
					{Value: "one", Label: "One"},
					{Value: "two", Label: "Two"},
					{Value: "three", Label: "Three"},
					{Value: "four", Label: "Four"},
				}},
				{Name: "email", Kind: domain.FieldChar, Nullable: true},
				{Name: "url", Kind: domain.FieldChar, Nullable: true},
				{Name: "uuid", Kind: domain.FieldChar, Nullable: true},
				{Name: "integer", Kind: domain.FieldInteger, Nullable: true},
				{Name: "big_integer", Kind: domain.FieldInteger, Nullable: true},
				{Name: "integer_choices", Kind: domain.FieldInteger, Nullable: true, Choices: []domain.Choice{
					{Value: "1", Label: "One"},
					{Value: "2", Label: "Two"},
					{Value: "3", Label: "Three"},
				}},
				{Name: "float", Kind: domain.FieldFloat, Nullable: true},
				{Name: "decimal", Kind: domain.FieldDecimal, Nullable: true},
				{Name: "date", Kind: domain.FieldDate, Nullable: true},
				{Name: "time", Kind: domain.FieldTime, Nullable: true},
				{Name: "datetime", Kind: domain.FieldDateTime, Nullable: true},
			},
			Relations: []domain.RelationDescriptor{
				{Name: "model_b", Target: "model_b", Kind: domain.OneToOne, Nullable: true, Inverse: "model_a"},
				{
					Name: "model_d", Target: "model_d", Kind: domain.ManyToMany,
					Through: "model_a_model_d", ThroughLocal: "model_a_id", ThroughTarget: "model_d_id",
					Inverse: "model_a_set",
				},
			},
		},
		{
			Name:    "model_b",
			Verbose: "Model B",
			Table:   "model_b",
			Fields: []domain.FieldDescriptor{
				{Name: "chars", Kind: domain.FieldChar},
				{Name: "integer", Kind: domain.FieldInteger},
				{Name: "decimal", Kind: domain.FieldDecimal, Nullable: true},
				{Name: "date", Kind: domain.FieldDate, Nullable: true},
				{Name: "datetime", Kind: domain.FieldDateTime, Nullable: true},
			},
			Relations: []domain.RelationDescriptor{
				{Name: "model_c", Target: "model_c", Kind: domain.ManyToOne, Inverse: "model_b_set"},
				{Name: "model_a", Target: "model_a", Kind: domain.OneToMany, Nullable: true, Column: "model_b_id", Inverse: "model_b"},
			},
		},
		{
			Name:    "model_c",
			Verbose: "Model C",
			Table:   "model_c",
			Fields: []domain.FieldDescriptor{
				{Name: "chars", Kind: domain.FieldChar},
				{Name: "integer", Kind: domain.FieldInteger},
				{Name: "date", Kind: domain.FieldDate, Nullable: true},
			},
			Relations: []domain.RelationDescriptor{
				{Name: "model_b_set", Target: "model_b", Kind: domain.OneToMany, Column: "model_c_id", Inverse: "model_c"},
			},
		},
		{
			Name:    "model_d",
			Verbose: "Model D",
			Table:   "model_d",
			Fields: []domain.FieldDescriptor{
				{Name: "chars", Kind: domain.FieldChar},
			},
			Relations: []domain.RelationDescriptor{
				{
					Name: "model_a_set", Target: "model_a", Kind: domain.ManyToMany,
					Through: "model_a_model_d", ThroughLocal: "model_d_id", ThroughTarget: "model_a_id",
					Inverse: "model_d",
				},
			},
		},
	}

	for _, model := range models {
		if err := registry.Register(model); err != nil {
			return nil, fmt.Errorf("failed to register model %q: %w", model.Name, err)
		}
	}
	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("model registry is inconsistent: %w", err)
	}
	return registry, nil
}
