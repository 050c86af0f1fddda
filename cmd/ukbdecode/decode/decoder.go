package decode

import (
	"regexp"
	"strings"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// multi-valued cells hold several codes separated by ; , or |
var multiValuePattern = regexp.MustCompile(`[;,|]`)

// Decoder replaces raw coded cell values with their labels. It is a pure
// function of the coding table and the input: no coding table, an empty
// value, or an unknown code all pass the value through unchanged.
type Decoder struct{}

// NewDecoder creates a cell decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode maps one raw cell value through a coding table. Each part of a
// multi-valued cell decodes independently; parts are re-joined with ";".
// unknown lists the parts that had no entry in the table.
func (d *Decoder) Decode(coding *ukb.CodingTable, raw string) (decoded string, unknown []string) {
	if coding.Empty() || strings.TrimSpace(raw) == "" {
		return raw, nil
	}

	parts := multiValuePattern.Split(raw, -1)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		key := strings.Trim(strings.TrimSpace(part), `"`)
		if key == "" {
			continue
		}
		if label, ok := coding.Lookup(key); ok {
			out = append(out, label)
		} else {
			out = append(out, key)
			unknown = append(unknown, key)
		}
	}
	if len(out) == 0 {
		return raw, nil
	}
	return strings.Join(out, ";"), unknown
}
