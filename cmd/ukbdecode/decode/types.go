package decode

import "fmt"

// WarningKind classifies the non-fatal anomalies of a run. They are
// collected and reported next to the best-effort output, never raised as
// errors: an unresolved column passes through unrenamed, an undecodable
// value passes through unchanged.
type WarningKind string

const (
	WarningCacheMismatch    WarningKind = "cache-mismatch"
	WarningUnresolvedField  WarningKind = "unresolved-field"
	WarningUndecodableValue WarningKind = "undecodable-value"
)

// Warning is one recorded anomaly.
type Warning struct {
	Kind    WarningKind
	Column  string
	FieldID string
	Value   string
	Message string
}

func (w Warning) String() string {
	switch w.Kind {
	case WarningUnresolvedField:
		return fmt.Sprintf("%s: column %q has no field definition", w.Kind, w.Column)
	case WarningUndecodableValue:
		return fmt.Sprintf("%s: value %q of field %s not in coding table", w.Kind, w.Value, w.FieldID)
	default:
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
}
