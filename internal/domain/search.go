package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Search is a saved, reusable filter: a named, ordered rule list bound to
// one root model. Names are unique per root model.
type Search struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Rules     []FilterRule `json:"rules"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewSearch creates a search for the given root model.
func NewSearch(model, name string, rules []FilterRule) Search {
	return Search{
		ID:        uuid.New(),
		Name:      name,
		Model:     model,
		Rules:     rules,
		CreatedAt: time.Now(),
	}
}

// DefaultSearchName is the name suggested for a new search.
func DefaultSearchName(model ModelDescriptor, now time.Time) string {
	return fmt.Sprintf("Search for %s (%s)", model.Label(), now.Format("2006-01-02 15:04"))
}

// RulesAsJSONB serializes the rule list for database storage.
func (s Search) RulesAsJSONB() (json.RawMessage, error) {
	return json.Marshal(s.Rules)
}

// RulesFromJSONB deserializes a stored rule list.
func RulesFromJSONB(raw json.RawMessage) ([]FilterRule, error) {
	var rules []FilterRule
	err := json.Unmarshal(raw, &rules)
	return rules, err
}

// Description renders a human-readable summary of the search's rules for
// the list-filter UI, e.g. `chars contains "foo" and not integer > 5`.
func (s Search) Description() string {
	parts := make([]string, 0, len(s.Rules))
	for i, rule := range s.Rules {
		var b strings.Builder
		if i > 0 {
			logic := rule.Logic
			if logic == "" {
				logic = LogicAnd
			}
			b.WriteString(string(logic))
			b.WriteString(" ")
		}
		if rule.Negate {
			b.WriteString("not ")
		}
		b.WriteString(rule.FieldPath)
		switch {
		case rule.Operator == OpIsNull:
			if v, ok := rule.Value.(bool); ok && !v {
				b.WriteString(" is not null")
			} else {
				b.WriteString(" is null")
			}
		default:
			b.WriteString(" ")
			b.WriteString(rule.Operator.Description())
			b.WriteString(" ")
			b.WriteString(formatRuleValue(rule.Value))
		}
		parts = append(parts, b.String())
	}
	return strings.Join(parts, " ")
}

func formatRuleValue(value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = formatRuleValue(item)
		}
		return "[" + strings.Join(items, ", ") + "]"
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
