package rename

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/instance"
	"github.com/opencohort/ukbdecode/models/ukb"
)

// Renamer composes the final column name for a raw header:
// normalized display name + field ordinal, plus the instance description
// when the column is instance-qualified. It never de-duplicates names;
// duplicate final names are the caller's to observe.
type Renamer struct {
	registry   *ukb.Registry
	convention ColumnConvention
	instances  *instance.Resolver
}

// NewRenamer creates a renamer. convention defaults to UDIConvention when
// nil.
func NewRenamer(registry *ukb.Registry, convention ColumnConvention, instances *instance.Resolver) *Renamer {
	if convention == nil {
		convention = UDIConvention{}
	}
	return &Renamer{registry: registry, convention: convention, instances: instances}
}

// Rename maps one raw column header to its final name. resolved is false
// when no field definition matches; the raw header is then returned
// unchanged so the column passes through.
func (r *Renamer) Rename(raw string) (name string, ref ColumnRef, resolved bool) {
	if ukb.IsParticipantID(raw) {
		return "eid", ColumnRef{FieldID: "eid", Instance: -1, Array: -1}, true
	}

	ref, ok := r.convention.Parse(raw)
	if !ok {
		ref = ColumnRef{FieldID: raw, Instance: -1, Array: -1}
	}

	field, found := r.registry.Field(ref.FieldID)
	if !found && ref.Qualified() {
		// A field id that itself ends in _<digits> parses as qualified;
		// retry the whole header as an unqualified field id.
		if whole, ok := r.registry.Field(raw); ok {
			field, found = whole, true
			ref = ColumnRef{FieldID: raw, Instance: -1, Array: -1}
		}
	}
	if !found {
		return raw, ref, false
	}

	name = fmt.Sprintf("%s_%d", Normalize(field.Display), field.Ordinal)
	if ref.Qualified() {
		if desc, _ := r.instances.Describe(ref.FieldID, ref.Instance); desc != "" {
			name = fmt.Sprintf("%s (%s)", name, desc)
		}
	}
	return name, ref, true
}

var nonAlnumPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Normalize lower-cases a display name and collapses every run of
// non-alphanumeric characters to a single underscore.
func Normalize(display string) string {
	return strings.ToLower(strings.Trim(nonAlnumPattern.ReplaceAllString(display, "_"), "_"))
}
