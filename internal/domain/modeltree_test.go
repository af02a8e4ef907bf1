package domain

import (
	"strings"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry := NewRegistry()

	models := []ModelDescriptor{
		{
			Name:  "model_a",
			Table: "model_a",
			Fields: []FieldDescriptor{
				{Name: "boolean", Kind: FieldBoolean, Nullable: true},
				{Name: "chars", Kind: FieldChar},
				{Name: "chars_choices", Kind: FieldChar, Nullable: true, Choices: []Choice{
					{Value: "one", Label: "One"},
					{Value: "two", Label: "Two"},
					{Value: "three", Label: "Three"},
					{Value: "four", Label: "Four"},
				}},
				{Name: "integer", Kind: FieldInteger, Nullable: true},
				{Name: "decimal", Kind: FieldDecimal, Nullable: true},
				{Name: "date", Kind: FieldDate, Nullable: true},
				{Name: "datetime", Kind: FieldDateTime, Nullable: true},
			},
			Relations: []RelationDescriptor{
				{Name: "model_b", Target: "model_b", Kind: OneToOne, Nullable: true, Inverse: "model_a"},
				{
					Name: "model_d", Target: "model_d", Kind: ManyToMany,
					Through: "model_a_model_d", ThroughLocal: "model_a_id", ThroughTarget: "model_d_id",
					Inverse: "model_a_set",
				},
			},
		},
		{
			Name:  "model_b",
			Table: "model_b",
			Fields: []FieldDescriptor{
				{Name: "chars", Kind: FieldChar},
				{Name: "integer", Kind: FieldInteger},
			},
			Relations: []RelationDescriptor{
				{Name: "model_c", Target: "model_c", Kind: ManyToOne, Inverse: "model_b_set"},
				{Name: "model_a", Target: "model_a", Kind: OneToMany, Nullable: true, Column: "model_b_id", Inverse: "model_b"},
			},
		},
		{
			Name:  "model_c",
			Table: "model_c",
			Fields: []FieldDescriptor{
				{Name: "chars", Kind: FieldChar},
				{Name: "integer", Kind: FieldInteger},
			},
			Relations: []RelationDescriptor{
				{Name: "model_b_set", Target: "model_b", Kind: OneToMany, Column: "model_c_id", Inverse: "model_c"},
			},
		},
		{
			Name:  "model_d",
			Table: "model_d",
			Fields: []FieldDescriptor{
				{Name: "chars", Kind: FieldChar},
			},
			Relations: []RelationDescriptor{
				{
					Name: "model_a_set", Target: "model_a", Kind: ManyToMany,
					Through: "model_a_model_d", ThroughLocal: "model_d_id", ThroughTarget: "model_a_id",
					Inverse: "model_d",
				},
			},
		},
	}
	for _, model := range models {
		if err := registry.Register(model); err != nil {
			t.Fatalf("failed to register %s: %v", model.Name, err)
		}
	}
	if err := registry.Validate(); err != nil {
		t.Fatalf("registry validation failed: %v", err)
	}
	return registry
}

func TestNewModelTreeUnknownRoot(t *testing.T) {
	registry := testRegistry(t)
	if _, err := NewModelTree(registry, "nope"); err == nil {
		t.Fatal("expected an error for an unknown root model")
	}
}

func TestModelTreeTraversesNonNullableForward(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a")
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	// model_b.model_c is a non-nullable many-to-one; the walk still
	// traverses it, so fields of model_c stay reachable.
	field, node, err := tree.ResolveField("model_b__model_c__integer")
	if err != nil {
		t.Fatalf("failed to resolve path: %v", err)
	}
	if field.Kind != FieldInteger {
		t.Errorf("resolved kind = %q, want %q", field.Kind, FieldInteger)
	}
	if node.FieldPath != "model_b__model_c" {
		t.Errorf("owning node path = %q, want %q", node.FieldPath, "model_b__model_c")
	}
}

func TestModelTreeRequireNullableForward(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a", WithRequireNullableForward())
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if _, ok := tree.Get("model_b__model_c"); ok {
		t.Error("non-nullable forward relation was traversed despite the restriction")
	}
	if _, ok := tree.Get("model_b"); !ok {
		t.Error("nullable forward relation should still be traversed")
	}
}

func TestModelTreeNeverReversesIncomingEdge(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a")
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	if _, ok := tree.Get("model_b__model_a"); ok {
		t.Error("the incoming edge was immediately reversed")
	}
	if _, ok := tree.Get("model_d__model_a_set"); ok {
		t.Error("the incoming many-to-many edge was immediately reversed")
	}
}

func TestModelTreeDepthBound(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a", WithMaxDepth(1))
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	for _, node := range tree.Iterate() {
		if node.Depth > 1 {
			t.Errorf("node %q exceeds depth bound: depth %d", node.FieldPath, node.Depth)
		}
	}
	if _, ok := tree.Get("model_b"); !ok {
		t.Error("depth-1 neighbor missing")
	}
	if _, ok := tree.Get("model_b__model_c"); ok {
		t.Error("depth-2 node present despite bound of 1")
	}
}

func TestModelTreeIsFinite(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a", WithMaxDepth(10))
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	nodes := tree.Iterate()
	if len(nodes) == 0 || len(nodes) > 200 {
		t.Fatalf("unexpected node count %d for a cycle-safe bounded walk", len(nodes))
	}
	seen := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if seen[node.FieldPath] {
			t.Errorf("path %q produced twice", node.FieldPath)
		}
		seen[node.FieldPath] = true
	}
}

func TestResolveFieldTerminalRelation(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a")
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	field, _, err := tree.ResolveField("model_b")
	if err != nil {
		t.Fatalf("failed to resolve relation path: %v", err)
	}
	if field.Kind != FieldRelation {
		t.Errorf("kind = %q, want %q", field.Kind, FieldRelation)
	}
	if !field.Nullable {
		t.Error("nullability of the relation was lost")
	}

	if _, _, err := tree.ResolveField("model_b__nope"); err == nil {
		t.Error("expected an error for an unresolvable path")
	}
	if _, _, err := tree.ResolveField(""); err == nil {
		t.Error("expected an error for the empty path")
	}
}

func TestLookupChoicesSkipsNonNullableForwardRelations(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a")
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}

	values := make(map[string]bool)
	for _, group := range tree.LookupChoices() {
		for _, choice := range group.Choices {
			if values[choice.Value] {
				t.Errorf("choice %q offered twice", choice.Value)
			}
			values[choice.Value] = true
		}
	}

	for _, want := range []string{
		"chars",
		"model_b",            // nullable one-to-one, isnull-filterable
		"model_d",            // many-to-many, isnull-filterable
		"model_b__model_c__integer", // reached through a non-nullable edge
	} {
		if !values[want] {
			t.Errorf("choice %q missing", want)
		}
	}
	for _, unwanted := range []string{
		"model_b__model_c",  // non-nullable forward relation as a terminal
		"model_b__model_a",  // immediate reversal
		"model_d__model_a_set",
	} {
		if values[unwanted] {
			t.Errorf("choice %q should not be offered", unwanted)
		}
	}
}

func TestLookupChoicesGroupLabels(t *testing.T) {
	registry := testRegistry(t)
	tree, err := NewModelTree(registry, "model_a")
	if err != nil {
		t.Fatalf("failed to build tree: %v", err)
	}
	var found bool
	for _, group := range tree.LookupChoices() {
		if strings.Contains(group.Label, "model_b . model_c") {
			found = true
			if !strings.Contains(group.Label, "(many-to-one)") {
				t.Errorf("group label %q lacks the relation kind", group.Label)
			}
		}
	}
	if !found {
		t.Error("no group for the model_b . model_c path")
	}
}
