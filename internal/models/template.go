// Package models defines the data shared between the sync components.
package models

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Attributes holds the descriptive fields of a template (names per locale,
// flags, ranges) keyed by their remote JSON name.
type Attributes map[string]any

// Clone returns a shallow copy of the attribute bag.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	return maps.Clone(a)
}

// String returns the attribute as a string, or "" if absent or not a string.
func (a Attributes) String(key string) string {
	value, _ := a[key].(string)
	return value
}

// TextPart is a named secondary body of a template.
type TextPart struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Template is the remote account template resource.
//
// Every top-level field other than id, text and text_parts lands in
// Attributes so unknown remote fields survive decoding.
type Template struct {
	ID         int64
	Text       string
	TextParts  []TextPart
	Attributes Attributes
}

// MarshalJSON flattens the attribute bag next to the body fields.
func (t Template) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Attributes)+3)
	for key, value := range t.Attributes {
		out[key] = value
	}
	if t.ID != 0 {
		out["id"] = t.ID
	}
	out["text"] = t.Text
	parts := t.TextParts
	if parts == nil {
		parts = []TextPart{}
	}
	out["text_parts"] = parts
	return json.Marshal(out)
}

// UnmarshalJSON splits body fields from attributes.
func (t *Template) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := Template{Attributes: Attributes{}}
	for key, value := range raw {
		switch key {
		case "id":
			if string(value) == "null" {
				continue
			}
			if err := json.Unmarshal(value, &decoded.ID); err != nil {
				return fmt.Errorf("decode template id: %w", err)
			}
		case "text":
			if string(value) == "null" {
				continue
			}
			if err := json.Unmarshal(value, &decoded.Text); err != nil {
				return fmt.Errorf("decode template text: %w", err)
			}
		case "text_parts":
			if string(value) == "null" {
				continue
			}
			if err := json.Unmarshal(value, &decoded.TextParts); err != nil {
				return fmt.Errorf("decode template text_parts: %w", err)
			}
		default:
			var attr any
			if err := json.Unmarshal(value, &attr); err != nil {
				return fmt.Errorf("decode template attribute %s: %w", key, err)
			}
			decoded.Attributes[key] = attr
		}
	}

	*t = decoded
	return nil
}

// TemplateConfig is the on-disk config.json record of a template.
type TemplateConfig struct {
	// IDs maps a firm id to the remote template id in that firm.
	IDs map[string]int64

	// Test is the path of the Liquid test file, relative to the template folder.
	Test string

	// Text is the path of the main body file, relative to the template folder.
	Text string

	// TextParts maps a part name to its file path, relative to the template folder.
	TextParts map[string]string

	// Attributes are the remaining config fields.
	Attributes Attributes
}

// MarshalJSON writes the config as a single flat object.
func (c TemplateConfig) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Attributes)+4)
	for key, value := range c.Attributes {
		out[key] = value
	}
	ids := c.IDs
	if ids == nil {
		ids = map[string]int64{}
	}
	parts := c.TextParts
	if parts == nil {
		parts = map[string]string{}
	}
	out["id"] = ids
	out["test"] = c.Test
	out["text"] = c.Text
	out["text_parts"] = parts
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat config object.
func (c *TemplateConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := TemplateConfig{
		IDs:        map[string]int64{},
		TextParts:  map[string]string{},
		Attributes: Attributes{},
	}
	for key, value := range raw {
		if string(value) == "null" {
			if key != "id" && key != "test" && key != "text" && key != "text_parts" {
				decoded.Attributes[key] = nil
			}
			continue
		}
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(value, &decoded.IDs)
		case "test":
			err = json.Unmarshal(value, &decoded.Test)
		case "text":
			err = json.Unmarshal(value, &decoded.Text)
		case "text_parts":
			err = json.Unmarshal(value, &decoded.TextParts)
		default:
			var attr any
			err = json.Unmarshal(value, &attr)
			decoded.Attributes[key] = attr
		}
		if err != nil {
			return fmt.Errorf("decode config field %s: %w", key, err)
		}
	}

	*c = decoded
	return nil
}
