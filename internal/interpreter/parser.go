package interpreter

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"

	"github.com/scrypster/galacticalc/pkg/types"
)

// interpretationSchema describes the JSON object the model must return.
const interpretationSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["entities_attributes", "formula"],
  "properties": {
    "entities_attributes": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    },
    "formula": {"type": "string", "minLength": 1}
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile([]byte(interpretationSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile interpretation schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// extractJSON extracts the first balanced JSON object from text that may
// carry markdown fences or commentary around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// ParseInterpretation extracts, validates and normalizes an interpretation
// from raw model output. Entity names and attributes are trimmed and
// duplicate attributes dropped; entity name casing is preserved.
func ParseInterpretation(content string) (*types.Interpretation, error) {
	raw := extractJSON(content)
	if !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("model output contains no JSON object")
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if result := schema.ValidateJSON([]byte(raw)); !result.IsValid() {
		return nil, fmt.Errorf("interpretation does not match schema: %v", result.Errors)
	}

	var interp types.Interpretation
	if err := json.Unmarshal([]byte(raw), &interp); err != nil {
		return nil, fmt.Errorf("failed to decode interpretation: %w", err)
	}

	normalized := make(map[string][]string, len(interp.EntitiesAttributes))
	for entity, attrs := range interp.EntitiesAttributes {
		name := strings.TrimSpace(entity)
		if name == "" {
			return nil, fmt.Errorf("interpretation has an empty entity name")
		}
		seen := make(map[string]bool)
		for _, a := range normalized[name] {
			seen[a] = true
		}
		for _, attr := range attrs {
			attr = strings.TrimSpace(attr)
			if attr == "" || seen[attr] {
				continue
			}
			seen[attr] = true
			normalized[name] = append(normalized[name], attr)
		}
	}

	interp.EntitiesAttributes = normalized
	interp.Formula = strings.TrimSpace(interp.Formula)
	if interp.Formula == "" {
		return nil, fmt.Errorf("interpretation has an empty formula")
	}
	return &interp, nil
}
