// Package template holds the supplier template store.
//
// The store is the one piece of process-wide state the pipeline mutates:
// the supplier learner appends new templates at runtime. Reads are served
// from memory; the append path is a serialized read-modify-write of the
// backing JSON document so concurrent learners can never corrupt it or
// create duplicate IDs.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"invoicer/internal/logger"
	"invoicer/pkg/models"
)

// storeDocument is the persisted shape of the template store file.
type storeDocument struct {
	Suppliers    []models.SupplierTemplate `json:"suppliers"`
	OwnCompanies []string                  `json:"own_companies"`
}

// Store is an append-only supplier template registry backed by a JSON file.
type Store struct {
	mu           sync.RWMutex
	path         string
	templates    []models.SupplierTemplate
	ownCompanies []string // uppercased for matching
	log          zerolog.Logger
}

// Load reads the store document from path.
func Load(path string) (*Store, error) {
	s := &Store{
		path: path,
		log:  logger.WithComponent("template-store"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the backing file, replacing the in-memory view.
func (s *Store) Reload() error {
	const op = "Reload"

	var doc storeDocument
	data, err := os.ReadFile(s.path)
	if err != nil {
		// A missing file is an empty store; the first Append creates it.
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("template: %s: %w", op, err)
		}
		s.log.Warn().Str("path", s.path).Msg("Template store file not found, starting empty")
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("template: %s: malformed store document: %w", op, err)
	}

	own := make([]string, len(doc.OwnCompanies))
	for i, c := range doc.OwnCompanies {
		own[i] = strings.ToUpper(c)
	}

	s.mu.Lock()
	s.templates = doc.Suppliers
	s.ownCompanies = own
	s.mu.Unlock()

	s.log.Debug().
		Int("suppliers", len(doc.Suppliers)).
		Int("own_companies", len(doc.OwnCompanies)).
		Str("path", s.path).
		Msg("Template store loaded")
	return nil
}

// Templates returns the stored templates in declared order.
// The returned slice must not be modified.
func (s *Store) Templates() []models.SupplierTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.templates
}

// OwnCompanies returns the caller's own registered company names, uppercased.
func (s *Store) OwnCompanies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownCompanies
}

// Find returns the template with the given ID, or nil.
func (s *Store) Find(id string) *models.SupplierTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.templates {
		if s.templates[i].ID == id {
			t := s.templates[i]
			return &t
		}
	}
	return nil
}

// Append persists a new template and makes it visible to later lookups.
// Returns false when a template with the same ID already exists; that is
// an idempotent no-op, not an error. The whole read-modify-write of the
// store file runs under the write lock.
func (s *Store) Append(t models.SupplierTemplate) (bool, error) {
	const op = "Append"

	if t.ID == "" {
		return false, fmt.Errorf("template: %s: empty template id", op)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var doc storeDocument
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("template: %s: %w", op, err)
		}
	} else if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("template: %s: malformed store document: %w", op, err)
	}

	for _, existing := range doc.Suppliers {
		if existing.ID == t.ID {
			s.log.Info().Str("id", t.ID).Msg("Supplier already exists, skipping")
			return false, nil
		}
	}

	doc.Suppliers = append(doc.Suppliers, t)

	out, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return false, fmt.Errorf("template: %s: %w", op, err)
	}
	out = append(out, '\n')

	// Write-then-rename so a crash mid-write cannot truncate the store.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0644); err != nil {
		return false, fmt.Errorf("template: %s: %w", op, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return false, fmt.Errorf("template: %s: %w", op, err)
	}

	s.templates = doc.Suppliers

	s.log.Info().
		Str("id", t.ID).
		Str("display_name", t.DisplayName).
		Msg("Saved new supplier template")
	return true, nil
}
