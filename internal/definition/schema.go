package definition

import (
	"github.com/xeipuuv/gojsonschema"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
)

// documentSchema is the load-time shape of a workflow definition document.
var documentSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"name"},
	"additionalProperties": false,
	"properties": map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"description": map[string]any{"type": "string"},
		"steps": map[string]any{
			"type":  "array",
			"items": stepSchema,
		},
	},
}

var stepSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"name", "prompt"},
	"additionalProperties": false,
	"properties": map[string]any{
		"name":    map[string]any{"type": "string", "minLength": 1},
		"prompt":  map[string]any{"type": "string"},
		"profile": map[string]any{"type": "string"},
		"depends_on": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"timeout_seconds": map[string]any{"type": "integer", "minimum": 1},
	},
}

var schemaLoader = gojsonschema.NewGoLoader(documentSchema)

// checkSchema validates a decoded document against documentSchema.
func checkSchema(doc map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return serrors.Wrap(serrors.CodeDefParseError, "schema validation could not run", err)
	}
	if result.Valid() {
		return nil
	}

	var verrs serrors.ValidationErrors
	for _, desc := range result.Errors() {
		verrs.Add(serrors.InvalidField("", desc.Field(), desc.Description()))
	}
	return &verrs
}
