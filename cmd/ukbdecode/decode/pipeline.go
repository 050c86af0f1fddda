package decode

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/coding"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/rename"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/table"
	"github.com/opencohort/ukbdecode/models/ukb"
)

// Pipeline runs the whole transformation: rename every header, decode every
// cell, collect warnings. The registry and coding store are read-only
// during the run, so results do not depend on processing order.
type Pipeline struct {
	log      zerolog.Logger
	registry *ukb.Registry
	renamer  *rename.Renamer
	store    *coding.Store
	decoder  *Decoder
}

// Config holds everything a pipeline needs.
type Config struct {
	Log      zerolog.Logger
	Registry *ukb.Registry
	Renamer  *rename.Renamer
	Store    *coding.Store
}

// NewPipeline creates a pipeline, validating its dependencies.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Renamer == nil {
		return nil, fmt.Errorf("renamer is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("coding store is required")
	}
	return &Pipeline{
		log:      cfg.Log,
		registry: cfg.Registry,
		renamer:  cfg.Renamer,
		store:    cfg.Store,
		decoder:  NewDecoder(),
	}, nil
}

// columnPlan is the per-column work decided once during the header pass.
type columnPlan struct {
	name     string
	fieldID  string
	coding   *ukb.CodingTable
	resolved bool
}

// Run transforms the input table. The output preserves row count, row
// order and column order; every per-column and per-cell anomaly degrades
// to pass-through and is returned as a warning.
func (p *Pipeline) Run(in *table.Table) (*table.Table, []Warning, error) {
	if in == nil || len(in.Header) == 0 {
		return nil, nil, fmt.Errorf("input table is empty or not tabular")
	}

	var warnings []Warning

	// Header pass: each distinct raw column is resolved exactly once.
	plans := make(map[string]columnPlan, len(in.Header))
	out := &table.Table{Header: make([]string, len(in.Header))}
	for i, raw := range in.Header {
		plan, ok := plans[raw]
		if !ok {
			plan = p.planColumn(raw)
			plans[raw] = plan
			if !plan.resolved {
				warnings = append(warnings, Warning{Kind: WarningUnresolvedField, Column: raw})
			}
		}
		out.Header[i] = plan.name
	}

	// Row pass: rows are independent; short rows are padded to width.
	out.Rows = make([][]string, 0, in.NumRows())
	for _, row := range in.Rows {
		row = in.PadRow(row)
		outRow := make([]string, len(in.Header))
		for i, raw := range in.Header {
			plan := plans[raw]
			if plan.coding.Empty() {
				outRow[i] = row[i]
				continue
			}
			decoded, unknown := p.decoder.Decode(plan.coding, row[i])
			outRow[i] = decoded
			for _, code := range unknown {
				warnings = append(warnings, Warning{
					Kind:    WarningUndecodableValue,
					Column:  raw,
					FieldID: plan.fieldID,
					Value:   code,
				})
			}
		}
		out.Rows = append(out.Rows, outRow)
	}

	p.log.Info().
		Int("rows", out.NumRows()).
		Int("columns", len(out.Header)).
		Int("warnings", len(warnings)).
		Msg("Decode pipeline finished")
	return out, warnings, nil
}

func (p *Pipeline) planColumn(raw string) columnPlan {
	name, ref, resolved := p.renamer.Rename(raw)
	plan := columnPlan{name: name, fieldID: ref.FieldID, resolved: resolved}
	if resolved && !ukb.IsParticipantID(raw) {
		plan.coding = p.store.GetForField(ref.FieldID)
	}
	return plan
}

// RequiredCodings lists the coding ids the given header needs, so missing
// tables can be fetched before the run.
func RequiredCodings(registry *ukb.Registry, convention rename.ColumnConvention, header []string) []int {
	if convention == nil {
		convention = rename.UDIConvention{}
	}
	seen := make(map[int]bool)
	var ids []int
	for _, raw := range header {
		if ukb.IsParticipantID(raw) {
			continue
		}
		ref, ok := convention.Parse(raw)
		if !ok {
			continue
		}
		field, ok := registry.Field(ref.FieldID)
		if !ok {
			if field, ok = registry.Field(raw); !ok {
				continue
			}
		}
		if field.CodingID != 0 && !seen[field.CodingID] {
			seen[field.CodingID] = true
			ids = append(ids, field.CodingID)
		}
	}
	return ids
}
