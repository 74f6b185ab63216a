package rules

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ruleYAML mirrors Rule with a pointer Enabled so an omitted key defaults
// to enabled instead of the zero value.
type ruleYAML struct {
	ID         string    `yaml:"id"`
	Name       string    `yaml:"name"`
	Field      Field     `yaml:"field"`
	MatchType  MatchType `yaml:"match_type"`
	Pattern    string    `yaml:"pattern"`
	CategoryID string    `yaml:"category_id"`
	Priority   int       `yaml:"priority"`
	Enabled    *bool     `yaml:"enabled"`
	Actions    []Action  `yaml:"actions"`
}

type ruleFile struct {
	Rules []ruleYAML `yaml:"rules"`
}

// LoadFile reads a YAML rule file and returns its rules ready for an
// Engine.
func LoadFile(path string) ([]*Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Load(raw)
}

// Load parses YAML rule definitions. Rules without an ID get a generated
// one; field defaults to description and match type to contains.
func Load(raw []byte) ([]*Rule, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	out := make([]*Rule, 0, len(doc.Rules))
	for i, ry := range doc.Rules {
		if ry.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern is required", i, ry.Name)
		}
		r := &Rule{
			ID:         ry.ID,
			Name:       ry.Name,
			Field:      ry.Field,
			MatchType:  ry.MatchType,
			Pattern:    ry.Pattern,
			CategoryID: ry.CategoryID,
			Priority:   ry.Priority,
			Enabled:    ry.Enabled == nil || *ry.Enabled,
			Actions:    ry.Actions,
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Field == "" {
			r.Field = FieldDescription
		}
		if !validFields[r.Field] {
			return nil, fmt.Errorf("rule %d (%s): unknown field %q", i, ry.Name, ry.Field)
		}
		if r.MatchType == "" {
			r.MatchType = MatchContains
		}
		out = append(out, r)
	}
	return out, nil
}
