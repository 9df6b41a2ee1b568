package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const itemResponseSchema = `{
  "type": "object",
  "required": ["category", "confidence"],
  "properties": {
    "category": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0},
    "reasoning": {"type": "string"}
  }
}`

const batchResponseSchema = `{
  "type": "object",
  "required": ["classifications"],
  "properties": {
    "classifications": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["itemNumber", "category"],
        "properties": {
          "itemNumber": {"type": "integer", "minimum": 1},
          "category": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0},
          "reasoning": {"type": "string"}
        }
      }
    }
  }
}`

var (
	itemSchema  = mustCompileSchema("item.json", itemResponseSchema)
	batchSchema = mustCompileSchema("batch.json", batchResponseSchema)
)

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

func mustCompileSchema(name, src string) *jsonschema.Schema {
	schema, err := compileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return schema
}

// validateAgainst decodes data generically and checks it against schema.
func validateAgainst(schema *jsonschema.Schema, data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
