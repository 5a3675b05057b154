package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/firmkit/tplsync/internal/models"
)

// credentialsDoc is the on-disk layout of the credentials file.
type credentialsDoc struct {
	DefaultFirm string                      `json:"default_firm,omitempty"`
	Firms       map[string]models.TokenPair `json:"firms"`
}

// FileStore keeps every firm's token pair in a single JSON file readable only
// by the owner. Writes go through a temp file and a rename so a reader sees
// either the old or the new document.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("credentials path is required")
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path returns the credentials file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the token pair of firm.
func (s *FileStore) Get(ctx context.Context, firm string) (models.TokenPair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return models.TokenPair{}, false, err
	}
	pair, ok := doc.Firms[firm]
	if !ok || !pair.Valid() {
		return models.TokenPair{}, false, nil
	}
	return pair, true, nil
}

// Put replaces the token pair of firm.
func (s *FileStore) Put(ctx context.Context, firm string, pair models.TokenPair) error {
	if err := ValidatePut(firm, pair); err != nil {
		return err
	}
	if pair.UpdatedAt.IsZero() {
		pair.UpdatedAt = s.now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Firms[firm] = pair
	return s.save(doc)
}

// Firms returns the firms with stored credentials, sorted.
func (s *FileStore) Firms(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	firms := make([]string, 0, len(doc.Firms))
	for firm := range doc.Firms {
		firms = append(firms, firm)
	}
	slices.Sort(firms)
	return firms, nil
}

// DefaultFirm returns the firm used when none is given.
func (s *FileStore) DefaultFirm(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return "", err
	}
	if doc.DefaultFirm == "" {
		return "", ErrNoDefaultFirm
	}
	return doc.DefaultFirm, nil
}

// SetDefaultFirm records the firm used when none is given.
func (s *FileStore) SetDefaultFirm(ctx context.Context, firm string) error {
	if strings.TrimSpace(firm) == "" {
		return ErrInvalidFirm
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.DefaultFirm = firm
	return s.save(doc)
}

func (s *FileStore) load() (credentialsDoc, error) {
	doc := credentialsDoc{Firms: map[string]models.TokenPair{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("failed to read credentials: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if doc.Firms == nil {
		doc.Firms = map[string]models.TokenPair{}
	}
	return doc, nil
}

func (s *FileStore) save(doc credentialsDoc) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create vault directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials: %w", err)
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close credentials: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to protect credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}
