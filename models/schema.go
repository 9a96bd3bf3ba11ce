package models

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const eventSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "eventsource event",
  "type": "object",
  "required": ["metadata", "transactionId", "sequenceId", "padding"],
  "properties": {
    "metadata": {
      "type": "object",
      "required": ["traceId"],
      "properties": {
        "traceId": {"type": "string", "minLength": 1}
      }
    },
    "transactionId": {
      "type": "string",
      "pattern": "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"
    },
    "sequenceId": {"type": "integer", "minimum": -1},
    "padding": {"type": "string"}
  }
}`

// Validator checks event documents against the event schema. The schema is
// compiled on first use.
type Validator struct {
	once   sync.Once
	schema *gojsonschema.Schema
	err    error
}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) load() {
	v.schema, v.err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventSchema))
	if v.err != nil {
		v.err = fmt.Errorf("compile schema: %w", v.err)
	}
}

// Validate accepts an Event, raw JSON bytes, or any value that marshals to
// an event document.
func (v *Validator) Validate(doc interface{}) error {
	v.once.Do(v.load)
	if v.err != nil {
		return v.err
	}
	var b []byte
	switch d := doc.(type) {
	case []byte:
		b = d
	case string:
		b = []byte(d)
	default:
		var err error
		if b, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
	}
	res, err := v.schema.Validate(gojsonschema.NewBytesLoader(b))
	if err != nil {
		return err
	}
	if !res.Valid() {
		return fmt.Errorf("event invalid: %v", res.Errors())
	}
	return nil
}
