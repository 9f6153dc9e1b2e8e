package client

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/capitalize-ai/expat-assistant/internal/model"
)

// The backend is loose about types, so the schemas only pin down the
// container shapes the normalizer relies on. Nulls are allowed everywhere.
const queryResponseSchema = `{
	"type": "object",
	"properties": {
		"respuesta":   {"type": ["string", "null"]},
		"tips":        {"type": ["array", "string", "null"]},
		"guias":       {"type": ["array", "null"], "items": {"type": "object"}},
		"articulos":   {"type": ["array", "null"], "items": {"type": "object"}},
		"json":        {"type": ["array", "null"], "items": {"type": "object"}},
		"has_more":    {"type": ["boolean", "null"]},
		"next_offset": {"type": ["integer", "null"], "minimum": 0},
		"agente":      {"type": ["string", "null"]},
		"confidence":  {"type": ["number", "null"]}
	}
}`

const advertisingResponseSchema = `{
	"type": "object",
	"properties": {
		"message":       {"type": ["string", "null"]},
		"quick_replies": {"type": ["array", "null"], "items": {"type": "object"}},
		"plans":         {"type": ["array", "null"], "items": {"type": "object"}},
		"testimonials":  {"type": ["array", "null"], "items": {"type": "object"}},
		"next":          {"type": ["object", "null"]}
	}
}`

type schemas struct {
	query       *gojsonschema.Schema
	advertising *gojsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	query, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(queryResponseSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile query response schema: %w", err)
	}
	advertising, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(advertisingResponseSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile advertising response schema: %w", err)
	}
	return &schemas{query: query, advertising: advertising}, nil
}

// validate checks body against the schema for mode. Unparseable bodies fail too.
func (s *schemas) validate(mode model.Mode, body []byte) error {
	schema := s.query
	if mode == model.ModeAdvertising {
		schema = s.advertising
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}
