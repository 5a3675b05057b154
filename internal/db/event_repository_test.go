package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firmkit/tplsync/internal/models"
)

func TestEventRepositoryAppendAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))

	event := &models.Event{
		Type:       models.EventTypeTemplateSaved,
		EntityType: models.EntityTypeTemplate,
		EntityID:   "vat_declaration",
		Firm:       "F1",
		Payload:    json.RawMessage(`{"template_id":55}`),
	}
	require.NoError(t, repo.Append(ctx, event))
	require.NotEmpty(t, event.ID)
	require.False(t, event.Timestamp.IsZero())

	got, err := repo.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Type, got.Type)
	assert.Equal(t, "F1", got.Firm)
	assert.JSONEq(t, `{"template_id":55}`, string(got.Payload))
	assert.True(t, got.Timestamp.Equal(event.Timestamp))
}

func TestEventRepositoryAppendInvalid(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))
	err := repo.Append(context.Background(), &models.Event{Type: models.EventTypeTemplateSaved})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestEventRepositoryGetMissing(t *testing.T) {
	repo := NewEventRepository(setupTestDB(t))
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestEventRepositoryRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(setupTestDB(t))

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fixtures := []struct {
		firm   string
		entity string
		typ    models.EventType
	}{
		{"F1", "vat", models.EventTypeTemplateSaved},
		{"F2", "vat", models.EventTypeTemplateSaved},
		{"F1", "balance", models.EventTypeTemplateSkipped},
		{"F1", "vat", models.EventTypeTemplateUpdated},
	}
	for i, f := range fixtures {
		require.NoError(t, repo.Append(ctx, &models.Event{
			Timestamp:  base.Add(time.Duration(i) * time.Millisecond),
			Type:       f.typ,
			EntityType: models.EntityTypeTemplate,
			EntityID:   f.entity,
			Firm:       f.firm,
		}))
	}

	all, err := repo.Recent(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, models.EventTypeTemplateUpdated, all[0].Type)

	firm := "F1"
	entity := "vat"
	filtered, err := repo.Recent(ctx, EventQuery{Firm: &firm, EntityID: &entity})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, models.EventTypeTemplateUpdated, filtered[0].Type)
	assert.Equal(t, models.EventTypeTemplateSaved, filtered[1].Type)

	skipped := models.EventTypeTemplateSkipped
	onlySkipped, err := repo.Recent(ctx, EventQuery{Type: &skipped})
	require.NoError(t, err)
	require.Len(t, onlySkipped, 1)
	assert.Equal(t, "balance", onlySkipped[0].EntityID)

	since := base.Add(2 * time.Millisecond)
	limited, err := repo.Recent(ctx, EventQuery{Since: &since, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, models.EventTypeTemplateUpdated, limited[0].Type)
}
