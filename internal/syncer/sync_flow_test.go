package syncer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/firmkit/tplsync/internal/api"
	"github.com/firmkit/tplsync/internal/db"
	"github.com/firmkit/tplsync/internal/models"
	"github.com/firmkit/tplsync/internal/templates"
	"github.com/firmkit/tplsync/internal/vault"
)

// TestVATDeclarationAcrossFirms imports the same template from two firms
// through the real client, the first one behind an expired token.
func TestVATDeclarationAcrossFirms(t *testing.T) {
	remote := map[string]int64{"F1": 55, "F2": 77}
	var tokenCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v4/f/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v4/f/"), "/")
		firm := parts[0]
		if r.Header.Get("Authorization") != "Bearer fresh-"+firm {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		id := remote[firm]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                      id,
			"name_nl":                 "vat_declaration",
			"name_en":                 "VAT " + firm,
			"text":                    "main " + firm,
			"text_parts":              []map[string]string{{"name": "details", "content": "details " + firm}},
			"marketplace_template_id": 12,
		})
	})
	mux.HandleFunc("/f/", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		firm := strings.Split(strings.TrimPrefix(r.URL.Path, "/f/"), "/")[0]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "fresh-" + firm, "refresh_token": "r-" + firm})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	tokens, err := vault.NewFileStore(filepath.Join(t.TempDir(), vault.CredentialsFile))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := tokens.Put(ctx, "F1", models.TokenPair{AccessToken: "expired", RefreshToken: "r"}); err != nil {
		t.Fatalf("Put F1: %v", err)
	}
	if err := tokens.Put(ctx, "F2", models.TokenPair{AccessToken: "fresh-F2", RefreshToken: "r"}); err != nil {
		t.Fatalf("Put F2: %v", err)
	}

	database, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	defer database.Close()
	if _, err := database.MigrateUp(ctx); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	history := db.NewEventRepository(database)

	client, err := api.NewClient(api.Options{
		Resolve: func(firm string) api.TenantConfig {
			return api.TenantConfig{
				Tenant:   firm,
				BaseURL:  srv.URL + "/api/v4/f/" + firm,
				TokenURL: srv.URL + "/f/" + firm + "/oauth/token",
			}
		},
		Store:   tokens,
		Timeout: 2 * time.Second,
		Events:  history,
		Logger:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	dir := t.TempDir()
	store := templates.NewStore(templates.NewDirStorage(dir), zerolog.Nop())
	svc := NewService(client, store, WithHistory(history), WithLogger(zerolog.Nop()))

	if _, err := svc.ImportTemplate(ctx, "F1", 55); err != nil {
		t.Fatalf("import F1: %v", err)
	}
	if _, err := svc.ImportTemplate(ctx, "F2", 77); err != nil {
		t.Fatalf("import F2: %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("expected one refresh, got %d", tokenCalls)
	}

	data, err := os.ReadFile(filepath.Join(dir, "account_templates", "vat_declaration", "config.json"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg models.TemplateConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if !reflect.DeepEqual(cfg.IDs, map[string]int64{"F1": 55, "F2": 77}) {
		t.Fatalf("unexpected id map %v", cfg.IDs)
	}
	if cfg.Attributes.String("name_en") != "VAT F2" {
		t.Fatalf("attributes should come from the last sync: %v", cfg.Attributes)
	}
	if _, ok := cfg.Attributes["marketplace_template_id"]; ok {
		t.Fatalf("non allow-listed attribute persisted")
	}

	main, err := os.ReadFile(filepath.Join(dir, "account_templates", "vat_declaration", "main.liquid"))
	if err != nil || string(main) != "main F2" {
		t.Fatalf("unexpected main body %q (%v)", main, err)
	}

	recent, err := history.Recent(ctx, db.EventQuery{})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var refreshed, saved int
	for _, e := range recent {
		switch e.Type {
		case models.EventTypeTokensRefreshed:
			refreshed++
		case models.EventTypeTemplateSaved:
			saved++
		}
	}
	if refreshed != 1 || saved != 2 {
		t.Fatalf("unexpected history: %d refreshed, %d saved", refreshed, saved)
	}
}
