package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/firmkit/tplsync/internal/api"
	"github.com/firmkit/tplsync/internal/models"
	"github.com/firmkit/tplsync/internal/templates"
)

type fakeAPI struct {
	pages   [][]models.Template
	byID    map[int64]models.Template
	nextID  int64
	errs    map[string]error // keyed by template name for pushes
	getErr  error
	created []models.Template
	updated map[int64]models.Template
}

func (f *fakeAPI) ListTemplates(ctx context.Context, firm string, page, perPage int) ([]models.Template, error) {
	if page > len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

func (f *fakeAPI) GetTemplate(ctx context.Context, firm string, id int64) (models.Template, error) {
	if f.getErr != nil {
		return models.Template{}, f.getErr
	}
	tmpl, ok := f.byID[id]
	if !ok {
		return models.Template{}, &api.Error{Kind: api.KindNotFound, Outcome: api.OutcomeReported}
	}
	return tmpl, nil
}

func (f *fakeAPI) CreateTemplate(ctx context.Context, firm string, tmpl models.Template) (models.Template, error) {
	if err := f.errs[tmpl.Attributes.String("name_nl")]; err != nil {
		return models.Template{}, err
	}
	f.nextID++
	tmpl.ID = f.nextID
	f.created = append(f.created, tmpl)
	return tmpl, nil
}

func (f *fakeAPI) UpdateTemplate(ctx context.Context, firm string, id int64, tmpl models.Template) (models.Template, error) {
	if err := f.errs[tmpl.Attributes.String("name_nl")]; err != nil {
		return models.Template{}, err
	}
	if f.updated == nil {
		f.updated = map[int64]models.Template{}
	}
	tmpl.ID = id
	f.updated[id] = tmpl
	return tmpl, nil
}

type memoryHistory struct {
	events []*models.Event
}

func (m *memoryHistory) Append(ctx context.Context, event *models.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memoryHistory) types() []models.EventType {
	out := make([]models.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

func remoteTemplate(id int64, name string) models.Template {
	return models.Template{
		ID:         id,
		Text:       "{{ " + name + " }}",
		TextParts:  []models.TextPart{{Name: "part_1", Content: "p1"}},
		Attributes: models.Attributes{"name_nl": name, "name_en": name},
	}
}

func newTestService(t *testing.T, client TemplateAPI) (*Service, *templates.Store, *memoryHistory) {
	svc, store, history, _ := newTestServiceInDir(t, client)
	return svc, store, history
}

func newTestServiceInDir(t *testing.T, client TemplateAPI) (*Service, *templates.Store, *memoryHistory, string) {
	t.Helper()
	dir := t.TempDir()
	store := templates.NewStore(templates.NewDirStorage(dir), zerolog.Nop())
	history := &memoryHistory{}
	return NewService(client, store, WithHistory(history), WithLogger(zerolog.Nop()), WithPageSize(2)), store, history, dir
}

func breakConfig(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, templates.TypeFolder, name, templates.ConfigFile)
	if err := os.WriteFile(path, []byte(`{"id":{"F1":"1"}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// repeatingAPI ignores the page number and always returns the same page.
type repeatingAPI struct {
	fakeAPI
	page  []models.Template
	calls int
}

func (r *repeatingAPI) ListTemplates(ctx context.Context, firm string, page, perPage int) ([]models.Template, error) {
	r.calls++
	if r.calls > 5 {
		return nil, errors.New("listing did not stop")
	}
	return r.page, nil
}

func TestImportAllContinuesPastInvalidTemplates(t *testing.T) {
	invalid := remoteTemplate(3, "broken")
	invalid.Text = ""
	client := &fakeAPI{pages: [][]models.Template{
		{remoteTemplate(1, "alpha"), remoteTemplate(2, "beta")},
		{invalid, remoteTemplate(4, "gamma")},
	}}
	svc, store, history := newTestService(t, client)

	summary, err := svc.ImportAll(context.Background(), "F1")
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if summary.Saved != 3 || len(summary.Skipped) != 1 || !summary.Complete {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Skipped[0].Name != "broken" || summary.Skipped[0].ID != 3 {
		t.Fatalf("unexpected skip %+v", summary.Skipped[0])
	}

	names, err := store.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("unexpected names %v", names)
	}

	want := []models.EventType{
		models.EventTypeTemplateSaved,
		models.EventTypeTemplateSaved,
		models.EventTypeTemplateSkipped,
		models.EventTypeTemplateSaved,
	}
	got := history.types()
	if len(got) != len(want) {
		t.Fatalf("unexpected events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %s, want %s", i, got[i], want[i])
		}
	}
}

func TestImportAllSkipsTemplateWithBrokenConfig(t *testing.T) {
	client := &fakeAPI{pages: [][]models.Template{
		{remoteTemplate(1, "aaa"), remoteTemplate(2, "bbb")},
	}}
	svc, store, history, dir := newTestServiceInDir(t, client)
	if _, err := store.Save("F1", remoteTemplate(1, "aaa")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	breakConfig(t, dir, "aaa")

	summary, err := svc.ImportAll(context.Background(), "F1")
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if summary.Saved != 1 || len(summary.Skipped) != 1 || !summary.Complete {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Skipped[0].Name != "aaa" {
		t.Fatalf("unexpected skip %+v", summary.Skipped[0])
	}
	cfg, err := store.LoadConfig("bbb")
	if err != nil {
		t.Fatalf("LoadConfig bbb: %v", err)
	}
	if cfg.IDs["F1"] != 2 {
		t.Fatalf("unexpected ids for bbb %v", cfg.IDs)
	}
	got := history.types()
	if len(got) != 2 || got[0] != models.EventTypeTemplateSkipped || got[1] != models.EventTypeTemplateSaved {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestImportAllStopsOnShortPage(t *testing.T) {
	client := &repeatingAPI{page: []models.Template{remoteTemplate(1, "alpha")}}
	svc, _, _ := newTestService(t, client)

	summary, err := svc.ImportAll(context.Background(), "F1")
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected one listing call, got %d", client.calls)
	}
	if summary.Saved != 1 || !summary.Complete {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestImportTemplate(t *testing.T) {
	client := &fakeAPI{byID: map[int64]models.Template{55: remoteTemplate(55, "vat_declaration")}}
	svc, store, _ := newTestService(t, client)

	name, err := svc.ImportTemplate(context.Background(), "F1", 55)
	if err != nil {
		t.Fatalf("ImportTemplate: %v", err)
	}
	cfg, err := store.LoadConfig(name)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IDs["F1"] != 55 {
		t.Fatalf("unexpected ids %v", cfg.IDs)
	}

	if _, err := svc.ImportTemplate(context.Background(), "F1", 56); !api.IsReported(err) {
		t.Fatalf("expected reported error for missing template, got %v", err)
	}
}

func TestImportStopsOnFatal(t *testing.T) {
	fatal := &api.Error{Kind: api.KindForbidden, Outcome: api.OutcomeFatal}
	client := &fakeAPI{getErr: fatal}
	svc, _, _ := newTestService(t, client)

	_, err := svc.ImportTemplate(context.Background(), "F1", 1)
	if !api.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestPushTemplateCreatesThenUpdates(t *testing.T) {
	client := &fakeAPI{nextID: 100}
	svc, store, history := newTestService(t, client)
	ctx := context.Background()

	if _, err := store.Save("F1", remoteTemplate(55, "vat_declaration")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	action, err := svc.PushTemplate(ctx, "F2", "vat_declaration")
	if err != nil {
		t.Fatalf("PushTemplate F2: %v", err)
	}
	if action != ActionCreated || len(client.created) != 1 {
		t.Fatalf("expected a create, got %s", action)
	}
	cfg, err := store.LoadConfig("vat_declaration")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IDs["F1"] != 55 || cfg.IDs["F2"] != 101 {
		t.Fatalf("unexpected ids after create %v", cfg.IDs)
	}

	action, err = svc.PushTemplate(ctx, "F2", "vat_declaration")
	if err != nil {
		t.Fatalf("PushTemplate F2 again: %v", err)
	}
	if action != ActionUpdated {
		t.Fatalf("expected an update, got %s", action)
	}
	sent, ok := client.updated[101]
	if !ok {
		t.Fatalf("update not sent to id 101")
	}
	if sent.Text != "{{ vat_declaration }}" || len(sent.TextParts) != 1 {
		t.Fatalf("unexpected update payload %+v", sent)
	}

	got := history.types()
	if len(got) != 2 || got[0] != models.EventTypeTemplateCreated || got[1] != models.EventTypeTemplateUpdated {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestPushAllSkipsReportedAndStopsOnFatal(t *testing.T) {
	client := &fakeAPI{errs: map[string]error{
		"beta": &api.Error{Kind: api.KindBadRequest, Outcome: api.OutcomeReported},
	}}
	svc, store, _ := newTestService(t, client)
	ctx := context.Background()
	for i, name := range []string{"alpha", "beta", "gamma"} {
		if _, err := store.Save("F1", remoteTemplate(int64(i+1), name)); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}

	summary, err := svc.PushAll(ctx, "F1")
	if err != nil {
		t.Fatalf("PushAll: %v", err)
	}
	if summary.Updated != 2 || len(summary.Skipped) != 1 || summary.Skipped[0].Name != "beta" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	client.errs["beta"] = &api.Error{Kind: api.KindAuthExhausted, Outcome: api.OutcomeFatal}
	summary, err = svc.PushAll(ctx, "F1")
	if !api.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if summary.Complete || summary.Updated != 1 {
		t.Fatalf("run should stop at beta: %+v", summary)
	}
}

func TestPushAllSkipsTemplateWithBrokenConfig(t *testing.T) {
	client := &fakeAPI{}
	svc, store, _, dir := newTestServiceInDir(t, client)
	for i, name := range []string{"aaa", "bbb"} {
		if _, err := store.Save("F1", remoteTemplate(int64(i+1), name)); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	breakConfig(t, dir, "aaa")

	summary, err := svc.PushAll(context.Background(), "F1")
	if err != nil {
		t.Fatalf("PushAll: %v", err)
	}
	if summary.Updated != 1 || len(summary.Skipped) != 1 || summary.Skipped[0].Name != "aaa" || !summary.Complete {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, ok := client.updated[2]; !ok {
		t.Fatalf("bbb was not pushed")
	}
}

func TestPushAllPropagatesUnclassifiedErrors(t *testing.T) {
	boom := errors.New("connection reset")
	client := &fakeAPI{errs: map[string]error{"alpha": boom}}
	svc, store, _ := newTestService(t, client)
	if _, err := store.Save("F1", remoteTemplate(1, "alpha")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := svc.PushAll(context.Background(), "F1"); !errors.Is(err, boom) {
		t.Fatalf("expected unclassified error, got %v", err)
	}
}

func TestForEachFirmStopsAtFirstError(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeAPI{})
	var seen []string
	fatal := &api.Error{Kind: api.KindForbidden, Outcome: api.OutcomeFatal}

	summaries, err := svc.ForEachFirm(context.Background(), []string{"F1", "F2", "F3"}, func(ctx context.Context, firm string) (Summary, error) {
		seen = append(seen, firm)
		if firm == "F2" {
			return Summary{Firm: firm}, fatal
		}
		return Summary{Firm: firm, Complete: true}, nil
	})
	if !api.IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(seen) != 2 || len(summaries) != 2 {
		t.Fatalf("unexpected run: seen %v, summaries %d", seen, len(summaries))
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", &templates.ValidationError{Name: "x", Reason: "text is missing"}, true},
		{"reported", &api.Error{Kind: api.KindNotFound, Outcome: api.OutcomeReported}, true},
		{"missing local", templates.ErrTemplateNotFound, true},
		{"broken config", fmt.Errorf("read aaa: %w", templates.ErrInvalidConfig), true},
		{"fatal", &api.Error{Kind: api.KindForbidden, Outcome: api.OutcomeFatal}, false},
		{"unclassified", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Recoverable(tt.err); got != tt.want {
				t.Fatalf("Recoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
