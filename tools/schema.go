package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// ReflectParameters builds the JSON Schema of an argument struct. Fields
// without omitempty are required.
func ReflectParameters(v interface{}) (map[string]interface{}, error) {
	schema := reflector.Reflect(v)
	schema.Version = ""
	schema.ID = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return params, nil
}

// MustReflectParameters is ReflectParameters for package-level argument
// types known to be valid.
func MustReflectParameters(v interface{}) map[string]interface{} {
	params, err := ReflectParameters(v)
	if err != nil {
		panic(err)
	}
	return params
}

func compileSchema(params map[string]interface{}) (*gojsonschema.Schema, error) {
	if params == nil {
		return nil, nil
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(params))
}

// validateArgs returns a description of every schema violation, or "" when
// args conform.
func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) (string, error) {
	if schema == nil {
		return "", nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return "", err
	}
	if result.Valid() {
		return "", nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return strings.Join(msgs, "; "), nil
}

// DecodeArgs copies an argument map into the struct pointed to by target.
func DecodeArgs(args map[string]interface{}, target interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	return nil
}
