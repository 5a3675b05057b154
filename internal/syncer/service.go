// Package syncer moves account templates between the remote service and
// the local folder layout.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/firmkit/tplsync/internal/api"
	"github.com/firmkit/tplsync/internal/events"
	"github.com/firmkit/tplsync/internal/logging"
	"github.com/firmkit/tplsync/internal/models"
	"github.com/firmkit/tplsync/internal/templates"
)

// TemplateAPI is the remote side of a sync. *api.Client implements it.
type TemplateAPI interface {
	ListTemplates(ctx context.Context, firm string, page, perPage int) ([]models.Template, error)
	GetTemplate(ctx context.Context, firm string, id int64) (models.Template, error)
	CreateTemplate(ctx context.Context, firm string, tmpl models.Template) (models.Template, error)
	UpdateTemplate(ctx context.Context, firm string, id int64, tmpl models.Template) (models.Template, error)
}

// Action is what a push did on the remote side.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Summary counts the outcome of a run over many templates.
type Summary struct {
	Firm     string
	Saved    int
	Created  int
	Updated  int
	Skipped  []Skip
	Complete bool
}

// Skip is a template the run could not sync.
type Skip struct {
	Name   string
	ID     int64
	Reason string
}

// Service runs imports and pushes for one templates directory.
type Service struct {
	api     TemplateAPI
	store   *templates.Store
	history events.Repository
	perPage int
	logger  zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithHistory records every sync in repo.
func WithHistory(repo events.Repository) Option {
	return func(s *Service) { s.history = repo }
}

// WithPageSize sets the page size of listings.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service.
func NewService(client TemplateAPI, store *templates.Store, opts ...Option) *Service {
	s := &Service{
		api:     client,
		store:   store,
		perPage: api.DefaultPerPage,
		logger:  logging.Component("syncer"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportTemplate fetches one template of firm and saves it locally.
func (s *Service) ImportTemplate(ctx context.Context, firm string, id int64) (string, error) {
	tmpl, err := s.api.GetTemplate(ctx, firm, id)
	if err != nil {
		return "", err
	}
	if tmpl.ID == 0 {
		tmpl.ID = id
	}
	return s.save(ctx, firm, tmpl)
}

// ImportAll saves every template of firm, page by page, until a page comes
// back short or empty. Recoverable
// failures are recorded in the summary and the run continues; fatal and
// unclassified failures end it.
func (s *Service) ImportAll(ctx context.Context, firm string) (Summary, error) {
	summary := Summary{Firm: firm}
	for page := 1; ; page++ {
		list, err := s.api.ListTemplates(ctx, firm, page, s.perPage)
		if err != nil {
			if api.IsReported(err) {
				s.logger.Warn().Err(err).Str("firm", firm).Int("page", page).Msg("listing stopped")
				summary.Skipped = append(summary.Skipped, Skip{Name: fmt.Sprintf("page %d", page), Reason: err.Error()})
				return summary, nil
			}
			return summary, err
		}
		if len(list) == 0 {
			break
		}

		for _, tmpl := range list {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			name, err := s.save(ctx, firm, tmpl)
			if err != nil {
				if skip, ok := s.skippable(ctx, firm, name, tmpl.ID, err); ok {
					summary.Skipped = append(summary.Skipped, skip)
					continue
				}
				return summary, err
			}
			summary.Saved++
		}
		if len(list) < s.perPage {
			break
		}
	}
	summary.Complete = true
	s.logger.Info().
		Str("firm", firm).
		Int("saved", summary.Saved).
		Int("skipped", len(summary.Skipped)).
		Msg("import finished")
	return summary, nil
}

// PushTemplate sends the named local template to firm. It updates the
// remote template when the firm already has an id for it, and creates it
// otherwise, recording the new id locally.
func (s *Service) PushTemplate(ctx context.Context, firm, name string) (Action, error) {
	tmpl, cfg, err := s.store.Read(name)
	if err != nil {
		return "", err
	}

	if id, ok := cfg.IDs[firm]; ok && id != 0 {
		if _, err := s.api.UpdateTemplate(ctx, firm, id, tmpl); err != nil {
			return "", err
		}
		s.record(ctx, models.EventTypeTemplateUpdated, firm, name, id, len(tmpl.TextParts))
		s.logger.Info().Str("template", name).Str("firm", firm).Int64("template_id", id).Msg("template updated")
		return ActionUpdated, nil
	}

	created, err := s.api.CreateTemplate(ctx, firm, tmpl)
	if err != nil {
		return "", err
	}
	if created.ID == 0 {
		return "", fmt.Errorf("create %s in firm %s: response carries no id", name, firm)
	}
	if err := s.store.UpdateID(firm, name, created.ID); err != nil {
		return "", err
	}
	s.record(ctx, models.EventTypeTemplateCreated, firm, name, created.ID, len(tmpl.TextParts))
	s.logger.Info().Str("template", name).Str("firm", firm).Int64("template_id", created.ID).Msg("template created")
	return ActionCreated, nil
}

// PushAll pushes every local template to firm.
func (s *Service) PushAll(ctx context.Context, firm string) (Summary, error) {
	summary := Summary{Firm: firm}
	names, err := s.store.Names()
	if err != nil {
		return summary, err
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		action, err := s.PushTemplate(ctx, firm, name)
		if err != nil {
			if skip, ok := s.skippable(ctx, firm, name, 0, err); ok {
				summary.Skipped = append(summary.Skipped, skip)
				continue
			}
			return summary, err
		}
		switch action {
		case ActionCreated:
			summary.Created++
		case ActionUpdated:
			summary.Updated++
		}
	}
	summary.Complete = true
	s.logger.Info().
		Str("firm", firm).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", len(summary.Skipped)).
		Msg("push finished")
	return summary, nil
}

// ForEachFirm runs op for every firm in order and stops at the first
// error.
func (s *Service) ForEachFirm(ctx context.Context, firms []string, op func(context.Context, string) (Summary, error)) ([]Summary, error) {
	out := make([]Summary, 0, len(firms))
	for _, firm := range firms {
		summary, err := op(ctx, firm)
		out = append(out, summary)
		if err != nil {
			return out, fmt.Errorf("firm %s: %w", firm, err)
		}
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, firm string, tmpl models.Template) (string, error) {
	name, err := s.store.Save(firm, tmpl)
	if err != nil {
		return tmpl.Attributes.String(templates.NameAttribute), err
	}
	s.record(ctx, models.EventTypeTemplateSaved, firm, name, tmpl.ID, len(tmpl.TextParts))
	return name, nil
}

// Recoverable reports whether err only concerns one template, so a run over
// many templates can go on.
func Recoverable(err error) bool {
	var verr *templates.ValidationError
	return errors.As(err, &verr) ||
		api.IsReported(err) ||
		errors.Is(err, templates.ErrTemplateNotFound) ||
		errors.Is(err, templates.ErrInvalidConfig)
}

// skippable reports whether err lets a run continue, recording the skip.
func (s *Service) skippable(ctx context.Context, firm, name string, id int64, err error) (Skip, bool) {
	if !Recoverable(err) {
		return Skip{}, false
	}

	s.logger.Warn().Err(err).Str("template", name).Str("firm", firm).Msg("template skipped")
	if s.history != nil {
		if logErr := events.LogTemplateSkipped(ctx, s.history, firm, name, id, err.Error()); logErr != nil {
			s.logger.Warn().Err(logErr).Msg("failed to record skip")
		}
	}
	return Skip{Name: name, ID: id, Reason: err.Error()}, true
}

func (s *Service) record(ctx context.Context, eventType models.EventType, firm, name string, id int64, parts int) {
	if s.history == nil {
		return
	}
	if err := events.LogTemplateSynced(ctx, s.history, eventType, firm, name, id, parts); err != nil {
		s.logger.Warn().Err(err).Str("template", name).Msg("failed to record sync event")
	}
}
