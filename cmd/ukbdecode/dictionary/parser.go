package dictionary

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/opencohort/ukbdecode/models/ukb"
)

// ParseError is returned when the document is not recognizable as a
// dictionary at all. Individual malformed field rows never cause it; they
// are skipped and collected as registry warnings.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "dictionary parse: " + e.Reason
}

// Parser turns a showcase "Columns" HTML document into a Registry.
type Parser struct {
	log zerolog.Logger
}

// NewParser creates a new dictionary parser.
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{log: log}
}

var (
	codingHrefPattern = regexp.MustCompile(`coding\.cgi\?id=(\d+)`)
	usesCodingPattern = regexp.MustCompile(`(?i)\s*Uses\s+data-coding\s+\d+\s*$`)
)

// Parse reads the whole document, locates the columns table, builds the
// section tree and folds it into a Registry. Field ordinals follow document
// order of first appearance.
func (p *Parser) Parse(r io.Reader) (*ukb.Registry, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("unreadable document: %v", err)}
	}

	table := findColumnsTable(doc)
	if table == nil {
		return nil, &ParseError{Reason: "no columns table found in document"}
	}

	reg := ukb.NewRegistry()
	sections := p.buildSections(table, reg)
	if len(sections) == 0 {
		return nil, &ParseError{Reason: "columns table has no parseable field rows"}
	}

	p.foldSections(sections, reg)

	p.log.Info().
		Int("fields", len(reg.Fields)).
		Int("warnings", len(reg.Warnings)).
		Msg("Parsed dictionary document")
	return reg, nil
}

// buildSections walks the table rows once and groups each UDI row under its
// parent fieldBlock. Rows that do not carry a well-formed UDI are recorded
// as warnings and skipped.
func (p *Parser) buildSections(table *html.Node, reg *ukb.Registry) []*sectionNode {
	var order []*sectionNode
	byField := make(map[string]*sectionNode)

	rows := collectRows(table)
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		cells := collectCells(row)
		if len(cells) < 5 {
			continue // spacer or layout row, not a data row
		}

		udiText := nodeText(cells[1])
		desc := cleanDescription(nodeText(cells[4]))

		udi, ok := ukb.ParseUDI(udiText)
		if !ok {
			reg.Warnings = append(reg.Warnings, fmt.Sprintf("skipped malformed row: udi %q", udiText))
			p.log.Warn().Str("udi", udiText).Msg("Skipping malformed dictionary row")
			continue
		}

		field := byField[udi.FieldID]
		if field == nil {
			field = &sectionNode{kind: fieldBlock, fieldID: udi.FieldID, display: desc}
			byField[udi.FieldID] = field
			order = append(order, field)
		}
		if field.display == "" {
			field.display = desc
		}

		field.add(&sectionNode{
			kind:        instanceBlock,
			instance:    udi.Instance,
			array:       udi.Array,
			description: desc,
		})

		if id, url, ok := findCodingRef(cells[4]); ok && field.child(codingBlock) == nil {
			field.add(&sectionNode{kind: codingBlock, codingID: id, codingURL: url})
		}
	}

	return order
}

// foldSections turns the section tree into the flat registry: one
// FieldDefinition per fieldBlock, instance descriptors for instance rows
// whose description differs from the field's base description, and a coding
// reference when a codingBlock is present.
func (p *Parser) foldSections(sections []*sectionNode, reg *ukb.Registry) {
	for ordinal, field := range sections {
		def := &ukb.FieldDefinition{
			FieldID: field.fieldID,
			Display: field.display,
			Ordinal: ordinal,
		}

		if coding := field.child(codingBlock); coding != nil {
			def.CodingID = coding.codingID
			if _, seen := reg.Codings[coding.codingID]; !seen {
				reg.Codings[coding.codingID] = &ukb.CodingTable{ID: coding.codingID}
			}
			if coding.codingURL != "" {
				reg.CodingURLs[coding.codingID] = coding.codingURL
			}
		}

		seen := make(map[int]bool)
		for _, c := range field.children {
			if c.kind != instanceBlock || seen[c.instance] {
				continue
			}
			seen[c.instance] = true
			if c.description != "" && c.description != field.display {
				def.Instances = append(def.Instances, ukb.InstanceDescriptor{
					Index:       c.instance,
					Description: c.description,
				})
			}
		}
		sort.Slice(def.Instances, func(i, j int) bool {
			return def.Instances[i].Index < def.Instances[j].Index
		})

		reg.Fields[def.FieldID] = def
	}
}

// findColumnsTable locates the table whose headers mention both "udi" and
// "description". Falls back to the first table when no header matches, nil
// when the document has no table at all.
func findColumnsTable(doc *html.Node) *html.Node {
	var first, matched *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "table" {
			return true
		}
		if first == nil {
			first = n
		}
		var hasUDI, hasDesc bool
		walk(n, func(h *html.Node) bool {
			if h.Type == html.ElementNode && h.Data == "th" {
				text := strings.ToLower(nodeText(h))
				hasUDI = hasUDI || strings.Contains(text, "udi")
				hasDesc = hasDesc || strings.Contains(text, "description")
			}
			return true
		})
		if hasUDI && hasDesc && matched == nil {
			matched = n
		}
		return true
	})
	if matched != nil {
		return matched
	}
	return first
}

// findCodingRef looks for a coding.cgi link inside a description cell and
// returns the coding id and an absolute download hint for it.
func findCodingRef(cell *html.Node) (int, string, bool) {
	var id int
	var url string
	walk(cell, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return true
		}
		href := attr(n, "href")
		m := codingHrefPattern.FindStringSubmatch(href)
		if m == nil {
			return true
		}
		id, _ = strconv.Atoi(m[1])
		url = href
		if !strings.HasPrefix(url, "http") {
			url = "https://biobank.ndph.ox.ac.uk/ukb/" + strings.TrimPrefix(url, "/")
		}
		return false
	})
	return id, url, id != 0
}

func cleanDescription(desc string) string {
	return strings.TrimSpace(usesCodingPattern.ReplaceAllString(desc, ""))
}

// walk runs fn depth-first; fn returning false prunes the subtree.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func collectRows(table *html.Node) []*html.Node {
	var rows []*html.Node
	walk(table, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "tr" {
			rows = append(rows, n)
			return false
		}
		return true
	})
	return rows
}

func collectCells(row *html.Node) []*html.Node {
	var cells []*html.Node
	walk(row, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			cells = append(cells, n)
			return false
		}
		return true
	})
	return cells
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteString(" ")
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
