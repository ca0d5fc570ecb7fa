package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/searchconsole/internal/validation"
)

// encodeBody marshals v to JSON. With sanitize set, script elements are
// stripped from every string value. Server-side validation still applies.
func encodeBody(v any, sanitize bool) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	if !sanitize {
		return raw, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode request body: %w", err)
	}
	out, err := json.Marshal(sanitizeValue(generic))
	if err != nil {
		return nil, fmt.Errorf("marshal sanitized body: %w", err)
	}
	return out, nil
}

func sanitizeValue(v any) any {
	switch typed := v.(type) {
	case string:
		return validation.StripScripts(typed)
	case map[string]any:
		for k, inner := range typed {
			typed[k] = sanitizeValue(inner)
		}
		return typed
	case []any:
		for i, inner := range typed {
			typed[i] = sanitizeValue(inner)
		}
		return typed
	default:
		return v
	}
}
