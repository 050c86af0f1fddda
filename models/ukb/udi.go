package ukb

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UDI identifies one column of a UK Biobank export: a field, an instance
// (repeat assessment) and an array index within the instance. The showcase
// writes it as "53-0.0", R exports as "f.53.0.0".
type UDI struct {
	FieldID  string
	Instance int
	Array    int
}

func (u UDI) String() string {
	return fmt.Sprintf("%s-%d.%d", u.FieldID, u.Instance, u.Array)
}

var (
	udiDashPattern = regexp.MustCompile(`^(\d+)-(\d+)\.(\d+)$`)
	udiDotPattern  = regexp.MustCompile(`^f\.(\d+)\.(\d+)\.(\d+)$`)
)

// ParseUDI parses both showcase ("53-0.0") and R-export ("f.53.0.0") column
// forms. It returns false for anything else, including the eid column.
func ParseUDI(raw string) (UDI, bool) {
	m := udiDashPattern.FindStringSubmatch(raw)
	if m == nil {
		m = udiDotPattern.FindStringSubmatch(raw)
	}
	if m == nil {
		return UDI{}, false
	}
	inst, _ := strconv.Atoi(m[2])
	arr, _ := strconv.Atoi(m[3])
	return UDI{FieldID: m[1], Instance: inst, Array: arr}, true
}

// IsParticipantID reports whether a column holds the participant identifier.
func IsParticipantID(column string) bool {
	switch strings.ToLower(strings.TrimSpace(column)) {
	case "eid", "f.eid":
		return true
	}
	return false
}
