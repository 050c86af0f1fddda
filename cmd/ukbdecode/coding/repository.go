package coding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// Store holds the coding tables for one run and the field→coding mapping
// from the registry. It is the only owner of the cache artifact: a JSON
// object of coding id → value→label map, exactly what the tables contain,
// so a save/load cycle round-trips without loss.
//
// The cache is an optimization, not a correctness requirement: a store
// filled from a fresh fetch and one reloaded from cache decode identically.
// Whether a cache file matches the current dictionary is the caller's
// responsibility; loading does not verify it.
type Store struct {
	log      zerolog.Logger
	registry *ukb.Registry
	codings  map[int]*ukb.CodingTable
}

// NewStore creates a store bound to a parsed registry. Tables the registry
// already carries inline are taken over as-is.
func NewStore(registry *ukb.Registry, log zerolog.Logger) *Store {
	codings := make(map[int]*ukb.CodingTable)
	for id, table := range registry.Codings {
		if !table.Empty() {
			codings[id] = table
		}
	}
	return &Store{log: log, registry: registry, codings: codings}
}

// Get returns the coding table with the given id, or nil when the store has
// none for it.
func (s *Store) Get(codingID int) *ukb.CodingTable {
	return s.codings[codingID]
}

// GetForField returns the field-wide coding table for a field id, or nil
// when the field is unknown or uncoded.
func (s *Store) GetForField(fieldID string) *ukb.CodingTable {
	field, ok := s.registry.Field(fieldID)
	if !ok || field.CodingID == 0 {
		return nil
	}
	return s.codings[field.CodingID]
}

// Put stores a fetched coding table. Empty maps are ignored so that a failed
// fetch never shadows a later successful one in the cache artifact.
func (s *Store) Put(codingID int, values map[string]string) {
	if len(values) == 0 {
		return
	}
	s.codings[codingID] = &ukb.CodingTable{ID: codingID, Values: values}
}

// Has reports whether a non-empty table is present for the id.
func (s *Store) Has(codingID int) bool {
	return !s.codings[codingID].Empty()
}

// SaveCache writes all held coding tables to the cache artifact.
func (s *Store) SaveCache(path string) error {
	out := make(map[string]map[string]string, len(s.codings))
	for id, table := range s.codings {
		out[strconv.Itoa(id)] = table.Values
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal coding cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write coding cache: %w", err)
	}

	s.log.Debug().Str("path", path).Int("codings", len(out)).Msg("Saved coding cache")
	return nil
}

// LoadCache merges a previously saved cache artifact into the store and
// returns the number of tables loaded. The cache is trusted as-is; a warn
// log notes that it was not verified against the current document.
func (s *Store) LoadCache(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read coding cache: %w", err)
	}

	var raw map[string]map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return 0, fmt.Errorf("failed to parse coding cache: %w", err)
	}

	loaded := 0
	for key, values := range raw {
		id, err := strconv.Atoi(key)
		if err != nil || len(values) == 0 {
			continue
		}
		s.codings[id] = &ukb.CodingTable{ID: id, Values: values}
		loaded++
	}

	s.log.Warn().
		Str("path", path).
		Int("codings", loaded).
		Msg("Loaded coding cache; contents not verified against current dictionary")
	return loaded, nil
}
