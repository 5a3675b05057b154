// Package events records sync history entries.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/firmkit/tplsync/internal/models"
)

// Repository is the minimal interface needed to write events.
type Repository interface {
	Append(ctx context.Context, event *models.Event) error
}

// LogTemplateSynced records that a template was saved locally, created
// remotely or updated remotely, depending on eventType.
func LogTemplateSynced(ctx context.Context, repo Repository, eventType models.EventType, firm, name string, templateID int64, parts int) error {
	switch eventType {
	case models.EventTypeTemplateSaved, models.EventTypeTemplateCreated, models.EventTypeTemplateUpdated:
	default:
		return fmt.Errorf("unexpected template event type %q", eventType)
	}
	return logTemplate(ctx, repo, eventType, firm, name, models.TemplateSyncedPayload{
		TemplateID: templateID,
		Parts:      parts,
	})
}

// LogTemplateSkipped records a template that could not be synced.
func LogTemplateSkipped(ctx context.Context, repo Repository, firm, name string, templateID int64, reason string) error {
	if name == "" {
		name = fmt.Sprintf("#%d", templateID)
	}
	return logTemplate(ctx, repo, models.EventTypeTemplateSkipped, firm, name, models.TemplateSkippedPayload{
		TemplateID: templateID,
		Reason:     reason,
	})
}

// LogTokensAuthorized records a completed authorization-code grant.
func LogTokensAuthorized(ctx context.Context, repo Repository, firm string) error {
	return logFirm(ctx, repo, models.EventTypeTokensAuthorized, firm)
}

// LogTokensRefreshed records a completed refresh grant.
func LogTokensRefreshed(ctx context.Context, repo Repository, firm string) error {
	return logFirm(ctx, repo, models.EventTypeTokensRefreshed, firm)
}

func logTemplate(ctx context.Context, repo Repository, eventType models.EventType, firm, name string, payload any) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if name == "" {
		return fmt.Errorf("template name is required")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	return repo.Append(ctx, &models.Event{
		Type:       eventType,
		EntityType: models.EntityTypeTemplate,
		EntityID:   name,
		Firm:       firm,
		Payload:    data,
	})
}

func logFirm(ctx context.Context, repo Repository, eventType models.EventType, firm string) error {
	if repo == nil {
		return fmt.Errorf("event repository is required")
	}
	if firm == "" {
		return fmt.Errorf("firm id is required")
	}
	return repo.Append(ctx, &models.Event{
		Type:       eventType,
		EntityType: models.EntityTypeFirm,
		EntityID:   firm,
		Firm:       firm,
	})
}
