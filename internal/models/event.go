package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventType categorizes events in the sync history.
type EventType string

const (
	// Template events
	EventTypeTemplateSaved   EventType = "template.saved"
	EventTypeTemplateCreated EventType = "template.created"
	EventTypeTemplateUpdated EventType = "template.updated"
	EventTypeTemplateSkipped EventType = "template.skipped"

	// Credential events
	EventTypeTokensAuthorized EventType = "tokens.authorized"
	EventTypeTokensRefreshed  EventType = "tokens.refreshed"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypeTemplate EntityType = "template"
	EntityTypeFirm     EntityType = "firm"
)

// Event represents an append-only history entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity (template name or firm id).
	EntityID string `json:"entity_id"`

	// Firm is the firm the event happened under.
	Firm string `json:"firm"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate checks if the event is valid.
func (e *Event) Validate() error {
	var errs []error
	if strings.TrimSpace(string(e.Type)) == "" {
		errs = append(errs, errors.New("event type is required"))
	}
	if strings.TrimSpace(string(e.EntityType)) == "" {
		errs = append(errs, errors.New("entity_type is required"))
	}
	if strings.TrimSpace(e.EntityID) == "" {
		errs = append(errs, errors.New("entity_id is required"))
	}
	return errors.Join(errs...)
}

// TemplateSyncedPayload is the payload for template.saved, template.created
// and template.updated events.
type TemplateSyncedPayload struct {
	TemplateID int64 `json:"template_id"`
	Parts      int   `json:"parts,omitempty"`
}

// TemplateSkippedPayload is the payload for template.skipped events.
type TemplateSkippedPayload struct {
	TemplateID int64  `json:"template_id,omitempty"`
	Reason     string `json:"reason"`
}
