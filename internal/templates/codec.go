package templates

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/firmkit/tplsync/internal/models"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidationError reports a template that cannot be stored locally.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Name == "" {
		return "invalid template: " + e.Reason
	}
	return fmt.Sprintf("invalid template %q: %s", e.Name, e.Reason)
}

// ValidateName checks that name can be used as a folder or file name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Reason: "name is empty"}
	}
	if !validName.MatchString(name) {
		return &ValidationError{Name: name, Reason: "name may only contain letters, digits and underscores"}
	}
	return nil
}

// Decompose splits a remote template into its main body, its text parts sorted
// by name, and its allow-listed attributes.
func Decompose(tmpl models.Template) (string, []models.TextPart, models.Attributes, error) {
	name := tmpl.Attributes.String(NameAttribute)
	if tmpl.Text == "" {
		return "", nil, nil, &ValidationError{Name: name, Reason: "main liquid code is missing"}
	}
	if err := ValidateName(name); err != nil {
		return "", nil, nil, err
	}

	parts, err := normalizeParts(name, tmpl.TextParts)
	if err != nil {
		return "", nil, nil, err
	}

	return tmpl.Text, parts, ProjectAttributes(tmpl.Attributes), nil
}

// Recompose builds the payload sent to the remote service.
func Recompose(attrs models.Attributes, text string, parts []models.TextPart) models.Template {
	sorted := slices.Clone(parts)
	slices.SortStableFunc(sorted, func(a, b models.TextPart) int {
		return strings.Compare(a.Name, b.Name)
	})
	if sorted == nil {
		sorted = []models.TextPart{}
	}
	return models.Template{
		Text:       text,
		TextParts:  sorted,
		Attributes: ProjectAttributes(attrs),
	}
}

// ProjectAttributes returns the allow-listed subset of bag.
func ProjectAttributes(bag models.Attributes) models.Attributes {
	out := make(models.Attributes, len(AttributeKeys))
	for _, key := range AttributeKeys {
		if value, ok := bag[key]; ok {
			out[key] = value
		}
	}
	return out
}

// normalizeParts drops unnamed parts, keeps the last content for a repeated
// name and sorts the result by name.
func normalizeParts(name string, parts []models.TextPart) ([]models.TextPart, error) {
	byName := make(map[string]string, len(parts))
	for _, part := range parts {
		if part.Name == "" {
			continue
		}
		if !validName.MatchString(part.Name) {
			return nil, &ValidationError{Name: name, Reason: fmt.Sprintf("text part name %q is not a valid file name", part.Name)}
		}
		byName[part.Name] = part.Content
	}

	out := make([]models.TextPart, 0, len(byName))
	for partName, content := range byName {
		out = append(out, models.TextPart{Name: partName, Content: content})
	}
	slices.SortFunc(out, func(a, b models.TextPart) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}
