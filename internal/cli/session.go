package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/firmkit/tplsync/internal/api"
	"github.com/firmkit/tplsync/internal/config"
	"github.com/firmkit/tplsync/internal/db"
	"github.com/firmkit/tplsync/internal/logging"
	"github.com/firmkit/tplsync/internal/syncer"
	"github.com/firmkit/tplsync/internal/templates"
	"github.com/firmkit/tplsync/internal/vault"
	"github.com/firmkit/tplsync/internal/version"
)

// session bundles the resources a sync command needs.
type session struct {
	cfg     *config.Config
	db      *db.DB
	tokens  vault.Store
	history *db.EventRepository
	client  *api.Client
}

func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.Open(cfg.State.DBPath, logging.Component("db"))
	if err != nil {
		return nil, err
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to migrate %s: %w", cfg.State.DBPath, err)
	}
	return database, nil
}

func openTokenStore(cfg *config.Config, database *db.DB) (vault.Store, error) {
	switch cfg.Credentials.Backend {
	case config.BackendSQLite:
		return db.NewTokenRepository(database), nil
	default:
		return vault.NewFileStore(cfg.Credentials.Path)
	}
}

func openSession(ctx context.Context) (*session, error) {
	cfg := GetConfig()

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tokens, err := openTokenStore(cfg, database)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	history := db.NewEventRepository(database)

	client, err := api.NewClient(api.Options{
		Resolve: func(firm string) api.TenantConfig {
			return api.TenantConfig{
				Tenant:    firm,
				BaseURL:   cfg.FirmBaseURL(firm),
				TokenURL:  cfg.TokenURL(firm),
				UserAgent: version.UserAgent(),
			}
		},
		OAuth: api.OAuthConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
		},
		Store:            tokens,
		Timeout:          cfg.RequestTimeout,
		TransportRetries: cfg.TransportRetries,
		Events:           history,
		Logger:           logging.Component("api"),
	})
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		db:      database,
		tokens:  tokens,
		history: history,
		client:  client,
	}, nil
}

func (s *session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *session) syncService() *syncer.Service {
	store := templates.NewStore(templates.NewDirStorage(s.cfg.TemplatesDir), logging.Component("templates"))
	return syncer.NewService(s.client, store, syncer.WithHistory(s.history))
}

// resolveFirms returns the firms selected by --firm, falling back to the
// stored default firm and then to default_firm (SF_FIRM_ID).
func resolveFirms(ctx context.Context, store vault.DefaultFirmStore, fallback string) ([]string, error) {
	var firms []string
	for _, firm := range firmFlags {
		firm = strings.TrimSpace(firm)
		if firm != "" && !slices.Contains(firms, firm) {
			firms = append(firms, firm)
		}
	}
	if len(firms) > 0 {
		return firms, nil
	}

	firm, err := store.DefaultFirm(ctx)
	if err != nil && !errors.Is(err, vault.ErrNoDefaultFirm) {
		return nil, err
	}
	if firm == "" {
		firm = strings.TrimSpace(fallback)
	}
	if firm == "" {
		return nil, &PreflightError{
			Message:  "no firm selected",
			Hint:     "Pass --firm, set SF_FIRM_ID, or store a default firm",
			NextStep: "tplsync firms default <firm-id>",
		}
	}
	if !IsJSONOutput() {
		fmt.Fprintf(os.Stderr, "Firm ID to be used: %s\n", firm)
	}
	return []string{firm}, nil
}
