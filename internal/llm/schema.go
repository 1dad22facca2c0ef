package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a JSON-schema document describing the expected model output.
type Schema map[string]any

// Validator is implemented by result types that check closed enumerations
// and cross-field rules after decoding.
type Validator interface {
	Validate() error
}

func Object(props map[string]any, required ...string) Schema {
	s := Schema{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func String(desc string) Schema {
	return Schema{"type": "string", "description": desc}
}

func Integer(desc string) Schema {
	return Schema{"type": "integer", "description": desc}
}

func Number(desc string) Schema {
	return Schema{"type": "number", "description": desc}
}

func Array(items Schema) Schema {
	return Schema{"type": "array", "items": items}
}

// ArrayN constrains the item count to [min, max].
func ArrayN(items Schema, min, max int) Schema {
	s := Array(items)
	s["minItems"] = min
	s["maxItems"] = max
	return s
}

func Strings(desc string) Schema {
	s := Array(Schema{"type": "string"})
	s["description"] = desc
	return s
}

func Enum(desc string, values ...string) Schema {
	return Schema{"type": "string", "description": desc, "enum": values}
}

// Range constrains an integer schema.
func Range(desc string, min, max int) Schema {
	return Schema{"type": "integer", "description": desc, "minimum": min, "maximum": max}
}

// JSON renders the schema for inclusion in a prompt.
func (s Schema) JSON() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Decode parses a raw model response into out, checking it against schema.
func Decode(raw string, schema Schema, out any) error {
	text := extractJSON(raw)
	if text == "" {
		return ErrEmptyResponse
	}

	if schema != nil {
		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(map[string]any(schema)),
			gojsonschema.NewStringLoader(text),
		)
		if err != nil {
			return fmt.Errorf("schema check: %w", err)
		}
		if !result.Valid() {
			var errs []error
			for _, re := range result.Errors() {
				errs = append(errs, errors.New(re.String()))
			}
			return fmt.Errorf("response does not match schema: %w", errors.Join(errs...))
		}
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// extractJSON strips markdown fences and any prose around the outermost
// JSON object or array.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text
	}
	return text[start : end+1]
}
