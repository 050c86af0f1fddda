package rename

import (
	"regexp"
	"strconv"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// ColumnRef is a raw column header broken into its parts. Instance and
// Array are -1 when the column carries no such qualifier.
type ColumnRef struct {
	FieldID  string
	Instance int
	Array    int
}

// Qualified reports whether the column names a specific instance.
func (c ColumnRef) Qualified() bool {
	return c.Instance >= 0
}

// ColumnConvention extracts a ColumnRef from a raw column header. The rule
// that associates an instance-level column with its parent field is a naming
// convention of the export, not a verified grammar, so it is pluggable.
//
// TODO: confirm the suffix convention against more real exports; so far it
// is inferred from showcase and R-export samples.
type ColumnConvention interface {
	Parse(raw string) (ColumnRef, bool)
}

// UDIConvention handles the two UK Biobank export forms, "53-0.0" and
// "f.53.0.0". Every matching column is instance-qualified.
type UDIConvention struct{}

func (UDIConvention) Parse(raw string) (ColumnRef, bool) {
	udi, ok := ukb.ParseUDI(raw)
	if !ok {
		return ColumnRef{}, false
	}
	return ColumnRef{FieldID: udi.FieldID, Instance: udi.Instance, Array: udi.Array}, true
}

var suffixPattern = regexp.MustCompile(`^(.+)_(\d+)$`)

// SuffixConvention handles "<field>_<instance>" headers; a header without
// the suffix is the field itself, unqualified.
type SuffixConvention struct{}

func (SuffixConvention) Parse(raw string) (ColumnRef, bool) {
	if raw == "" {
		return ColumnRef{}, false
	}
	if m := suffixPattern.FindStringSubmatch(raw); m != nil {
		inst, _ := strconv.Atoi(m[2])
		return ColumnRef{FieldID: m[1], Instance: inst, Array: -1}, true
	}
	return ColumnRef{FieldID: raw, Instance: -1, Array: -1}, true
}
