package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"ngmigrate/internal/models"
)

//go:embed rules.schema.json
var ruleSchemaJSON []byte

const ruleSchemaURL = "mem://schemas/rules.schema.json"

var (
	compileOnce sync.Once
	ruleSchema  *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(ruleSchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("decode rule schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(ruleSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("register rule schema: %w", err)
			return
		}
		ruleSchema, compileErr = c.Compile(ruleSchemaURL)
	})
	return ruleSchema, compileErr
}

// ParseRuleSet validates raw JSON against the rule schema and decodes it.
// An object wrapping the array under "rules" is unwrapped first.
func ParseRuleSet(raw []byte) (models.RuleSet, error) {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if obj, ok := instance.(map[string]any); ok {
		inner, found := obj["rules"]
		if !found {
			return nil, fmt.Errorf("expected a rule array or an object with \"rules\"")
		}
		instance = inner
		if raw, err = json.Marshal(inner); err != nil {
			return nil, fmt.Errorf("re-encode rules: %w", err)
		}
	}

	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("rules invalid: %w", err)
	}

	var set models.RuleSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return set, nil
}
