package query

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/xeipuuv/gojsonschema"

	"github.com/hawkins7575/toozalink-sub000/errors"
)

// DescriptionSchema is the JSON Schema for a wire-format Description.
const DescriptionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["resource"],
  "additionalProperties": false,
  "properties": {
    "resource": {"type": "string", "minLength": 1},
    "fields": {"type": "string"},
    "filters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["field", "operator"],
        "additionalProperties": false,
        "properties": {
          "field": {"type": "string", "minLength": 1},
          "operator": {"enum": ["eq", "in", "contains", "gte", "lte"]},
          "value": {}
        }
      }
    },
    "order_by": {
      "type": "object",
      "required": ["field"],
      "additionalProperties": false,
      "properties": {
        "field": {"type": "string", "minLength": 1},
        "ascending": {"type": "boolean"}
      }
    },
    "limit": {"type": "integer", "minimum": 0},
    "cache_enabled": {"type": "boolean"}
  }
}`

var descriptionSchema = gojsonschema.NewStringLoader(DescriptionSchema)

// ValidateJSON checks data against DescriptionSchema and decodes it.
func ValidateJSON(data []byte) (Description, error) {
	result, err := gojsonschema.Validate(descriptionSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Description{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"query", "ValidateJSON", "schema validation")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return Description{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidQuery, strings.Join(msgs, "; ")),
			"query", "ValidateJSON", "schema validation")
	}

	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return Description{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"query", "ValidateJSON", "decode description")
	}
	return d, nil
}

// ValidateJSONBatch validates a JSON array of descriptions.
func ValidateJSONBatch(data []byte) ([]Description, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"query", "ValidateJSONBatch", "decode batch")
	}
	ds := make([]Description, 0, len(raw))
	for i, item := range raw {
		d, err := ValidateJSON(item)
		if err != nil {
			return nil, errors.Wrap(err, "query", "ValidateJSONBatch", fmt.Sprintf("item %d", i))
		}
		ds = append(ds, d)
	}
	return ds, nil
}
