package ukb

// InstanceDescriptor describes one repetition of a field, e.g. one
// assessment visit. Indices within a field are unique and sorted ascending.
type InstanceDescriptor struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// FieldDefinition is one data-field from the dictionary. Ordinal is the
// position among all fields in document order, assigned once at parse time.
// CodingID is 0 when the field has no coding table; when any UDI row of a
// field mentions a coding id, that id applies field-wide, so every instance
// and array column of the field decodes with the same table.
type FieldDefinition struct {
	FieldID   string               `json:"fieldId"`
	Display   string               `json:"display"`
	Ordinal   int                  `json:"ordinal"`
	CodingID  int                  `json:"codingId,omitempty"`
	Instances []InstanceDescriptor `json:"instances,omitempty"`
}

// Instance returns the descriptor for the given instance index, if present.
func (f *FieldDefinition) Instance(index int) (InstanceDescriptor, bool) {
	for _, inst := range f.Instances {
		if inst.Index == index {
			return inst, true
		}
	}
	return InstanceDescriptor{}, false
}

// CodingTable maps raw coded values, as they appear in the data, to their
// textual labels. A table may be shared by any number of fields and may be
// empty (the field is numeric or free-text).
type CodingTable struct {
	ID     int               `json:"id"`
	Values map[string]string `json:"values"`
}

// Lookup returns the label for a raw value and whether it was found.
func (c *CodingTable) Lookup(raw string) (string, bool) {
	if c == nil || len(c.Values) == 0 {
		return "", false
	}
	label, ok := c.Values[raw]
	return label, ok
}

// Empty reports whether the table has no entries.
func (c *CodingTable) Empty() bool {
	return c == nil || len(c.Values) == 0
}

// Registry is the full metadata set parsed from one dictionary document:
// field definitions, coding tables, and download hints for coding tables the
// document references but does not inline. It is built once and read-only
// afterwards, so concurrent reads need no locking.
type Registry struct {
	Fields     map[string]*FieldDefinition `json:"fields"`
	Codings    map[int]*CodingTable        `json:"codings"`
	CodingURLs map[int]string              `json:"codingUrls,omitempty"`

	// Warnings collected while parsing, one per skipped or malformed block.
	Warnings []string `json:"warnings,omitempty"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Fields:     make(map[string]*FieldDefinition),
		Codings:    make(map[int]*CodingTable),
		CodingURLs: make(map[int]string),
	}
}

// Field returns the definition for a field id, if known.
func (r *Registry) Field(fieldID string) (*FieldDefinition, bool) {
	f, ok := r.Fields[fieldID]
	return f, ok
}

// Coding returns the coding table with the given id, if known.
func (r *Registry) Coding(id int) (*CodingTable, bool) {
	c, ok := r.Codings[id]
	return c, ok
}

// CodingForField returns the field-wide coding table for a field, or nil
// when the field is unknown or has none.
func (r *Registry) CodingForField(fieldID string) *CodingTable {
	f, ok := r.Fields[fieldID]
	if !ok || f.CodingID == 0 {
		return nil
	}
	return r.Codings[f.CodingID]
}
