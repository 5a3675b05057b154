package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/firmkit/tplsync/internal/models"
)

type fakeRepo struct {
	last *models.Event
}

func (r *fakeRepo) Append(ctx context.Context, event *models.Event) error {
	r.last = event
	return nil
}

func TestLogTemplateSynced(t *testing.T) {
	repo := &fakeRepo{}

	if err := LogTemplateSynced(context.Background(), repo, models.EventTypeTemplateCreated, "F1", "vat", 55, 2); err != nil {
		t.Fatalf("LogTemplateSynced failed: %v", err)
	}
	if repo.last == nil {
		t.Fatal("expected event to be created")
	}
	if repo.last.Type != models.EventTypeTemplateCreated {
		t.Fatalf("unexpected event type: %q", repo.last.Type)
	}
	if repo.last.EntityID != "vat" || repo.last.Firm != "F1" {
		t.Fatalf("unexpected entity: %q/%q", repo.last.EntityID, repo.last.Firm)
	}

	var payload models.TemplateSyncedPayload
	if err := json.Unmarshal(repo.last.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.TemplateID != 55 || payload.Parts != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestLogTemplateSyncedRejectsOtherTypes(t *testing.T) {
	repo := &fakeRepo{}
	if err := LogTemplateSynced(context.Background(), repo, models.EventTypeTokensRefreshed, "F1", "vat", 1, 0); err == nil {
		t.Fatal("expected error for non-template event type")
	}
	if repo.last != nil {
		t.Fatal("no event should be written")
	}
}

func TestLogTemplateSkippedWithoutName(t *testing.T) {
	repo := &fakeRepo{}
	if err := LogTemplateSkipped(context.Background(), repo, "F1", "", 42, "text is missing"); err != nil {
		t.Fatalf("LogTemplateSkipped failed: %v", err)
	}
	if repo.last.EntityID != "#42" {
		t.Fatalf("unexpected entity id: %q", repo.last.EntityID)
	}
}

func TestLogTokensRefreshed(t *testing.T) {
	repo := &fakeRepo{}
	if err := LogTokensRefreshed(context.Background(), repo, "F1"); err != nil {
		t.Fatalf("LogTokensRefreshed failed: %v", err)
	}
	if repo.last.EntityType != models.EntityTypeFirm || repo.last.Type != models.EventTypeTokensRefreshed {
		t.Fatalf("unexpected event: %+v", repo.last)
	}

	if err := LogTokensAuthorized(context.Background(), nil, "F1"); err == nil {
		t.Fatal("expected error without repository")
	}
}
