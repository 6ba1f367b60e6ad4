package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// schemaFor derives a JSON schema for a tool's argument struct.
// Struct fields carry descriptions via jsonschema tags; optionality follows
// the json omitempty convention.
func schemaFor(v interface{}) map[string]interface{} {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		// A tool argument struct that cannot marshal is a programming error.
		panic("tools: cannot marshal argument schema: " + err.Error())
	}

	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		panic("tools: cannot unmarshal argument schema: " + err.Error())
	}
	delete(params, "$schema")
	return params
}
