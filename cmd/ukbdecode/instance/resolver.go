package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// Resolver answers "what is instance N of field F called". Resolution
// order: user-provided overlay mapping, then the registry's instance
// descriptors, then a generic fallback built from the field's display name,
// so every known field yields a non-empty, stable description.
type Resolver struct {
	registry *ukb.Registry
	overlay  map[string]map[string]string
	used     map[string]map[int]string
	log      zerolog.Logger
}

// NewResolver creates a resolver over a parsed registry.
func NewResolver(registry *ukb.Registry, log zerolog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		overlay:  make(map[string]map[string]string),
		used:     make(map[string]map[int]string),
		log:      log,
	}
}

// LoadOverlay reads a user-provided instance mapping JSON file, either
// {"<field>": {"0": "...", ...}} or the same wrapped in "__instances__".
// The overlay is authoritative over dictionary-derived descriptions.
func (r *Resolver) LoadOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read instance mapping: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse instance mapping: %w", err)
	}
	if wrapped, ok := raw["__instances__"]; ok {
		raw = nil
		if err := json.Unmarshal(wrapped, &raw); err != nil {
			return fmt.Errorf("failed to parse __instances__ mapping: %w", err)
		}
	}

	loaded := 0
	for fieldID, entry := range raw {
		var byInstance map[string]string
		if err := json.Unmarshal(entry, &byInstance); err != nil {
			r.log.Warn().Str("field", fieldID).Msg("Skipping malformed instance mapping entry")
			continue
		}
		r.overlay[fieldID] = byInstance
		loaded++
	}

	r.log.Info().Str("path", path).Int("fields", loaded).Msg("Loaded instance mapping overlay")
	return nil
}

// Describe returns the description for one instance of a field and records
// it for the audit artifact. The second return is false when only the
// generic fallback was available.
func (r *Resolver) Describe(fieldID string, instanceIndex int) (string, bool) {
	if byInstance, ok := r.overlay[fieldID]; ok {
		if desc, ok := byInstance[strconv.Itoa(instanceIndex)]; ok && desc != "" {
			r.record(fieldID, instanceIndex, desc)
			return desc, true
		}
	}

	field, ok := r.registry.Field(fieldID)
	if !ok {
		return "", false
	}
	if inst, ok := field.Instance(instanceIndex); ok && inst.Description != "" {
		r.record(fieldID, instanceIndex, inst.Description)
		return inst.Description, true
	}

	desc := fmt.Sprintf("%s instance %d", field.Display, instanceIndex)
	r.record(fieldID, instanceIndex, desc)
	return desc, false
}

// HasDescription reports whether an exact (non-fallback) description exists
// for the instance, without recording a use.
func (r *Resolver) HasDescription(fieldID string, instanceIndex int) bool {
	if byInstance, ok := r.overlay[fieldID]; ok {
		if desc, ok := byInstance[strconv.Itoa(instanceIndex)]; ok && desc != "" {
			return true
		}
	}
	if field, ok := r.registry.Field(fieldID); ok {
		if inst, ok := field.Instance(instanceIndex); ok && inst.Description != "" {
			return true
		}
	}
	return false
}

func (r *Resolver) record(fieldID string, instanceIndex int, desc string) {
	byInstance, ok := r.used[fieldID]
	if !ok {
		byInstance = make(map[int]string)
		r.used[fieldID] = byInstance
	}
	byInstance[instanceIndex] = desc
}

// WriteAudit writes the instance-mapping artifact: every field→instance→
// description resolution actually handed out during the run.
func (r *Resolver) WriteAudit(path string) error {
	out := make(map[string]map[string]string, len(r.used))
	for fieldID, byInstance := range r.used {
		entry := make(map[string]string, len(byInstance))
		for index, desc := range byInstance {
			entry[strconv.Itoa(index)] = desc
		}
		out[fieldID] = entry
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instance audit: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write instance audit: %w", err)
	}

	r.log.Debug().Str("path", path).Int("fields", len(out)).Msg("Wrote instance mapping audit")
	return nil
}
