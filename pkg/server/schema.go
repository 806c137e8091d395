package server

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var storeSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"key"},
	"properties": map[string]interface{}{
		"key": map[string]interface{}{
			"type": "string",
		},
		"memory_type": map[string]interface{}{
			"type": "string",
		},
	},
}

var searchSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"query"},
	"properties": map[string]interface{}{
		"query": map[string]interface{}{
			"type": "string",
		},
		"limit": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
		},
	},
}

// requestSchemas holds the compiled request body schemas
type requestSchemas struct {
	store  *gojsonschema.Schema
	search *gojsonschema.Schema
}

func compileSchemas() (*requestSchemas, error) {
	store, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(storeSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile store schema: %w", err)
	}
	search, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(searchSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile search schema: %w", err)
	}
	return &requestSchemas{store: store, search: search}, nil
}

// validateBody checks a raw JSON body against schema. Malformed JSON and
// schema violations both come back as errors suitable for a 400 response.
func validateBody(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
