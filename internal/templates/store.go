package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/firmkit/tplsync/internal/models"
	"github.com/rs/zerolog"
)

// Store errors.
var (
	// ErrTemplateNotFound is returned when a template has no local config.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidConfig is returned when a config.json cannot be decoded.
	ErrInvalidConfig = errors.New("invalid template config")
)

// Store reads and writes templates in the local folder layout.
type Store struct {
	storage Storage
	logger  zerolog.Logger
}

// NewStore returns a Store on top of storage.
func NewStore(storage Storage, logger zerolog.Logger) *Store {
	return &Store{storage: storage, logger: logger}
}

// Save writes the bodies and config of a template fetched for firm and returns
// the template name. Invalid templates are not written and yield a
// *ValidationError. An existing config that cannot be decoded yields
// ErrInvalidConfig and nothing is written.
func (s *Store) Save(firm string, tmpl models.Template) (string, error) {
	text, parts, attrs, err := Decompose(tmpl)
	if err != nil {
		s.logger.Warn().Err(err).Int64("template_id", tmpl.ID).Str("firm", firm).Msg("template skipped")
		return "", err
	}
	name := attrs.String(NameAttribute)

	existing, err := s.LoadConfig(name)
	if err != nil && !errors.Is(err, ErrTemplateNotFound) {
		s.logger.Warn().Err(err).Str("template", name).Str("firm", firm).Msg("template skipped")
		return name, err
	}

	if err := s.storage.Write(MainPath(name), []byte(text)); err != nil {
		return "", err
	}
	partNames := make([]string, 0, len(parts))
	for _, part := range parts {
		partNames = append(partNames, part.Name)
	}

	derived := DeriveConfig(name, attrs, partNames)
	for _, part := range parts {
		if err := s.storage.Write(TemplatePath(name, derived.TextParts[part.Name]), []byte(part.Content)); err != nil {
			return "", err
		}
	}

	testPath := TemplatePath(name, derived.Test)
	if !s.storage.Exists(testPath) {
		if err := s.storage.Write(testPath, []byte(testStub)); err != nil {
			return "", err
		}
	}

	config := Reconcile(firm, tmpl.ID, existing, derived)
	if err := s.writeConfig(name, config); err != nil {
		return "", err
	}

	s.logger.Debug().
		Str("template", name).
		Str("firm", firm).
		Int64("template_id", tmpl.ID).
		Int("parts", len(parts)).
		Msg("template saved")
	return name, nil
}

// Read loads the named template as the payload to send to the remote service,
// together with its config. A missing main body is created from a stub.
func (s *Store) Read(name string) (models.Template, models.TemplateConfig, error) {
	if err := ValidateName(name); err != nil {
		return models.Template{}, models.TemplateConfig{}, err
	}
	config, err := s.LoadConfig(name)
	if err != nil {
		return models.Template{}, models.TemplateConfig{}, err
	}

	mainRel := config.Text
	if mainRel == "" {
		mainRel = MainFile
	}
	mainPath := TemplatePath(name, mainRel)
	if !s.storage.Exists(mainPath) {
		if err := s.storage.Write(mainPath, []byte(mainStub)); err != nil {
			return models.Template{}, models.TemplateConfig{}, err
		}
	}
	text, err := s.storage.Read(mainPath)
	if err != nil {
		return models.Template{}, models.TemplateConfig{}, fmt.Errorf("read main body of %s: %w", name, err)
	}

	partNames := make([]string, 0, len(config.TextParts))
	for part := range config.TextParts {
		partNames = append(partNames, part)
	}
	slices.Sort(partNames)

	parts := make([]models.TextPart, 0, len(partNames))
	for _, part := range partNames {
		content, err := s.storage.Read(TemplatePath(name, config.TextParts[part]))
		if err != nil {
			return models.Template{}, models.TemplateConfig{}, fmt.Errorf("read text part %s of %s: %w", part, name, err)
		}
		parts = append(parts, models.TextPart{Name: part, Content: string(content)})
	}

	return Recompose(config.Attributes, string(text), parts), *config, nil
}

// UpdateID records the remote id of the named template for firm.
func (s *Store) UpdateID(firm, name string, remoteID int64) error {
	existing, err := s.LoadConfig(name)
	if err != nil {
		return err
	}
	return s.writeConfig(name, UpdateID(*existing, firm, remoteID))
}

// LoadConfig reads the config of the named template.
func (s *Store) LoadConfig(name string) (*models.TemplateConfig, error) {
	path := ConfigPath(name)
	if !s.storage.Exists(path) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	data, err := s.storage.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read config of %s: %w", name, err)
	}
	var config models.TemplateConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: decode config of %s: %v", ErrInvalidConfig, name, err)
	}
	return &config, nil
}

// Names returns the names of all locally stored templates, sorted.
func (s *Store) Names() ([]string, error) {
	dirs, err := s.storage.List(TypeFolder)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if s.storage.Exists(ConfigPath(dir)) {
			names = append(names, dir)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) writeConfig(name string, config models.TemplateConfig) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config of %s: %w", name, err)
	}
	return s.storage.Write(ConfigPath(name), append(data, '\n'))
}
