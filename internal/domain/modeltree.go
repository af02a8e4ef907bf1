package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxDepth bounds how many relations a field path may traverse.
const DefaultMaxDepth = 3

// ErrUnknownModel marks a reference to a model the registry does not hold.
var ErrUnknownModel = errors.New("unknown model")

// PathSeparator joins relation names into field paths.
const PathSeparator = "__"

// Node is one model reachable from the root of a ModelTree.
type Node struct {
	Model ModelDescriptor
	// Relation is the edge used to reach this node; nil at the root.
	Relation *RelationDescriptor
	// FieldPath is the joined relation path from the root, empty at the root.
	FieldPath string
	Depth     int
	// Path holds the ancestors of this node, root first, including itself.
	Path []*Node
}

// IsRoot reports whether the node is the tree's root.
func (n *Node) IsRoot() bool {
	return n.Relation == nil
}

// TreeOption configures a ModelTree walk.
type TreeOption func(*ModelTree)

// WithMaxDepth overrides the traversal depth bound.
func WithMaxDepth(depth int) TreeOption {
	return func(t *ModelTree) {
		if depth > 0 {
			t.maxDepth = depth
		}
	}
}

// WithRequireNullableForward restricts traversal of forward (one-to-one,
// many-to-one) relations to nullable ones. To-many relations are always
// traversable since they naturally enumerate zero or more rows.
func WithRequireNullableForward() TreeOption {
	return func(t *ModelTree) {
		t.requireNullableForward = true
	}
}

// ModelTree enumerates the models reachable from a root model through a
// bounded, cycle-safe relation walk. It is built fresh per use and never
// mutated afterwards.
type ModelTree struct {
	registry *Registry
	root     *Node
	maxDepth int

	requireNullableForward bool

	nodes  []*Node
	byPath map[string]*Node
}

// NewModelTree walks the relation graph from the named root model. By
// default every forward relation is traversed regardless of nullability,
// so fields behind required foreign keys stay reachable;
// WithRequireNullableForward restricts the walk to nullable ones.
func NewModelTree(registry *Registry, root string, opts ...TreeOption) (*ModelTree, error) {
	model, ok := registry.Get(root)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, root)
	}
	tree := &ModelTree{
		registry: registry,
		maxDepth: DefaultMaxDepth,
		byPath:   make(map[string]*Node),
	}
	for _, opt := range opts {
		opt(tree)
	}
	tree.build(model)
	return tree, nil
}

func (t *ModelTree) build(root ModelDescriptor) {
	t.root = &Node{Model: root}
	t.root.Path = []*Node{t.root}
	t.nodes = []*Node{t.root}
	t.byPath[""] = t.root

	queue := []*Node{t.root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		if node.Depth >= t.maxDepth {
			continue
		}
		for i := range node.Model.Relations {
			rel := node.Model.Relations[i]
			if t.skipRelation(node, rel) {
				continue
			}
			target, ok := t.registry.Get(rel.Target)
			if !ok {
				// Unregistered targets are simply not traversable;
				// Registry.Validate reports them as configuration errors.
				continue
			}
			child := &Node{
				Model:     target,
				Relation:  &node.Model.Relations[i],
				FieldPath: joinPath(node.FieldPath, rel.Name),
				Depth:     node.Depth + 1,
			}
			child.Path = append(append([]*Node{}, node.Path...), child)
			t.nodes = append(t.nodes, child)
			t.byPath[child.FieldPath] = child
			queue = append(queue, child)
		}
	}
}

// skipRelation applies the cycle and cardinality rules of the walk.
func (t *ModelTree) skipRelation(node *Node, rel RelationDescriptor) bool {
	if t.requireNullableForward && rel.Kind.Forward() && !rel.Nullable {
		return true
	}
	if isInverseEdge(node.Relation, rel) {
		return true
	}
	// A relation edge already traversed on this node's own path must not
	// be walked again. An edge is identified by its owning model and its
	// relation name.
	for i, ancestor := range node.Path {
		if ancestor.Relation == nil {
			continue
		}
		owner := node.Path[i-1].Model.Name
		if owner == node.Model.Name && ancestor.Relation.Name == rel.Name {
			return true
		}
	}
	return false
}

// isInverseEdge reports whether rel walks the incoming edge backwards.
func isInverseEdge(incoming *RelationDescriptor, rel RelationDescriptor) bool {
	if incoming == nil {
		return false
	}
	if incoming.Inverse != "" && incoming.Inverse == rel.Name {
		return true
	}
	if rel.Inverse != "" && rel.Inverse == incoming.Name {
		return true
	}
	return false
}

// Root returns the root node.
func (t *ModelTree) Root() *Node {
	return t.root
}

// Registry returns the registry the tree was built from.
func (t *ModelTree) Registry() *Registry {
	return t.registry
}

// Iterate returns every reachable node in breadth-first order, root first.
// The walk is finite and restartable; callers get a fresh slice each time.
func (t *ModelTree) Iterate() []*Node {
	nodes := make([]*Node, len(t.nodes))
	copy(nodes, t.nodes)
	return nodes
}

// Get resolves a relation path to its node. The empty path yields the root.
func (t *ModelTree) Get(path string) (*Node, bool) {
	node, ok := t.byPath[path]
	return node, ok
}

// ResolveField resolves a field path to the terminal field descriptor and
// the node owning it. Paths may terminate at a relation, which resolves to
// a relation-kind descriptor (queryable with isnull only).
func (t *ModelTree) ResolveField(path string) (FieldDescriptor, *Node, error) {
	if path == "" {
		return FieldDescriptor{}, nil, fmt.Errorf("empty field path")
	}
	segments := strings.Split(path, PathSeparator)
	name := segments[len(segments)-1]
	node, ok := t.Get(strings.Join(segments[:len(segments)-1], PathSeparator))
	if !ok {
		return FieldDescriptor{}, nil, fmt.Errorf("field path %q does not resolve from %q", path, t.root.Model.Name)
	}
	if field, ok := node.Model.Field(name); ok {
		return field, node, nil
	}
	if rel, ok := node.Model.Relation(name); ok {
		return FieldDescriptor{
			Name:     rel.Name,
			Verbose:  rel.Verbose,
			Kind:     FieldRelation,
			Nullable: rel.Nullable,
		}, node, nil
	}
	return FieldDescriptor{}, nil, fmt.Errorf("field path %q does not resolve from %q", path, t.root.Model.Name)
}

// LookupGroup is one option group of field path choices, one per reachable
// model.
type LookupGroup struct {
	Label   string   `json:"label,omitempty"`
	Choices []Choice `json:"choices"`
}

// LookupChoices enumerates every offerable field path grouped by the model
// it belongs to. Plain fields are always offered; relation fields are
// offered for isnull filtering when they are nullable forward relations or
// to-many relations, and never when they reverse the edge just traversed.
func (t *ModelTree) LookupChoices() []LookupGroup {
	groups := make([]LookupGroup, 0, len(t.nodes))
	for _, node := range t.Iterate() {
		group := LookupGroup{Label: groupLabel(node)}
		for _, field := range node.Model.Fields {
			group.Choices = append(group.Choices, Choice{
				Value: joinPath(node.FieldPath, field.Name),
				Label: choiceLabel(node, field.Label()),
			})
		}
		for _, rel := range node.Model.Relations {
			if rel.Kind.Forward() && !rel.Nullable {
				continue
			}
			if isInverseEdge(node.Relation, rel) {
				continue
			}
			group.Choices = append(group.Choices, Choice{
				Value: joinPath(node.FieldPath, rel.Name),
				Label: choiceLabel(node, rel.Label()),
			})
		}
		if len(group.Choices) > 0 {
			groups = append(groups, group)
		}
	}
	return groups
}

func groupLabel(node *Node) string {
	if node.IsRoot() {
		return ""
	}
	parts := make([]string, 0, len(node.Path)-1)
	for _, n := range node.Path[1:] {
		parts = append(parts, n.Relation.Label())
	}
	kind := strings.ReplaceAll(string(node.Relation.Kind), "_", "-")
	return fmt.Sprintf("%s => %s (%s)", strings.Join(parts, " . "), node.Model.Label(), kind)
}

func choiceLabel(node *Node, fieldLabel string) string {
	if node.IsRoot() {
		return fieldLabel
	}
	parts := make([]string, 0, len(node.Path))
	for _, n := range node.Path[1:] {
		parts = append(parts, n.Relation.Label())
	}
	return strings.Join(append(parts, fieldLabel), " . ")
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + PathSeparator + name
}
