package coding

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// Showcase endpoints that serve coding pages; tried in order.
var defaultBaseURLs = []string{
	"https://biobank.ndph.ox.ac.uk/ukb/",
	"https://biobank.ctsu.ox.ac.uk/crystal/",
}

// ShowcaseClient fetches coding tables from the Biobank showcase. Per
// coding id it tries the newline variant of the coding page first, then a
// TSV download linked from the page, and the raw page last.
type ShowcaseClient struct {
	baseURLs   []string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewShowcaseClient creates a client with retrying transport. An empty
// baseURLs slice selects the default showcase mirrors.
func NewShowcaseClient(baseURLs []string, log zerolog.Logger) *ShowcaseClient {
	if len(baseURLs) == 0 {
		baseURLs = defaultBaseURLs
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{Timeout: 20 * time.Second}

	return &ShowcaseClient{
		baseURLs:   baseURLs,
		httpClient: retryClient.StandardClient(),
		log:        log,
	}
}

// FetchCoding resolves one coding id to its value→label map. urlHint, when
// non-empty, is the link the dictionary document carried for this coding and
// is tried alongside the mirror URLs. An empty map with nil error means the
// showcase had no parseable table; the caller keeps values raw.
func (c *ShowcaseClient) FetchCoding(codingID int, urlHint string) (map[string]string, error) {
	pages := c.fetchVariants(codingID, urlHint)
	if len(pages) == 0 {
		return nil, fmt.Errorf("no reachable coding page for coding %d", codingID)
	}

	// newline variant first
	for _, page := range pages {
		if strings.Contains(page.url, "&nl=1") {
			if m := parseCodingPage(page.body); len(m) > 0 {
				return m, nil
			}
		}
	}
	// then a TSV download linked from any page
	for _, page := range pages {
		if m := c.fetchLinkedTSV(page.body, page.url); len(m) > 0 {
			return m, nil
		}
	}
	// raw page last
	for _, page := range pages {
		if m := parseCodingPage(page.body); len(m) > 0 {
			return m, nil
		}
	}
	return map[string]string{}, nil
}

type fetchedPage struct {
	url  string
	body string
}

func (c *ShowcaseClient) fetchVariants(codingID int, urlHint string) []fetchedPage {
	var urls []string
	for _, base := range c.baseURLs {
		urls = append(urls, fmt.Sprintf("%scoding.cgi?id=%d&nl=1", base, codingID))
	}
	if urlHint != "" {
		urls = append(urls, urlHint)
	}
	for _, base := range c.baseURLs {
		urls = append(urls, fmt.Sprintf("%scoding.cgi?id=%d", base, codingID))
	}

	seen := make(map[string]bool)
	var pages []fetchedPage
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true

		body, err := c.get(u)
		if err != nil {
			c.log.Debug().Err(err).Str("url", u).Msg("Coding page fetch failed, trying next")
			continue
		}
		lower := strings.ToLower(body)
		if strings.Contains(lower, "<table") || strings.Contains(lower, "coding") {
			pages = append(pages, fetchedPage{url: u, body: body})
		}
	}
	return pages
}

func (c *ShowcaseClient) get(url string) (string, error) {
	resp, err := c.httpClient.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// fetchLinkedTSV follows the "Download" link on a coding page and parses the
// code/meaning file behind it.
func (c *ShowcaseClient) fetchLinkedTSV(pageBody, pageURL string) map[string]string {
	href := findDownloadLink(pageBody)
	if href == "" {
		return nil
	}
	if !strings.HasPrefix(href, "http") {
		base := c.baseURLs[0]
		if strings.Contains(pageURL, "ctsu.ox.ac.uk") && len(c.baseURLs) > 1 {
			base = c.baseURLs[1]
		}
		href = base + strings.TrimPrefix(href, "/")
	}

	body, err := c.get(href)
	if err != nil {
		c.log.Debug().Err(err).Str("url", href).Msg("Coding TSV download failed")
		return nil
	}
	return parseDelimitedCoding(body)
}

var headerWordPattern = regexp.MustCompile(`(?i)code|coding|value|meaning|description`)

// parseDelimitedCoding reads a two-column code/meaning file. The first line
// is treated as data unless it looks like a header.
func parseDelimitedCoding(body string) map[string]string {
	delim := sniffDelimiter(body)
	reader := csv.NewReader(strings.NewReader(body))
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	mapping := make(map[string]string)
	first := true
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if first {
			first = false
			if headerWordPattern.MatchString(strings.Join(record, " ")) {
				continue
			}
		}
		if len(record) < 2 {
			continue
		}
		code := strings.TrimSpace(record[0])
		meaning := strings.TrimSpace(record[1])
		if code == "" || meaning == "" {
			continue
		}
		mapping[code] = meaning
	}
	return mapping
}

func sniffDelimiter(body string) rune {
	line := body
	if i := strings.IndexByte(body, '\n'); i > 0 {
		line = body[:i]
	}
	for _, d := range []rune{'\t', ',', ';'} {
		if strings.ContainsRune(line, d) {
			return d
		}
	}
	return '\t'
}

// parseCodingPage extracts the value→meaning table from a coding page. It
// prefers a table whose headers pair a code-like column with a meaning-like
// column and falls back to the first table on the page.
func parseCodingPage(body string) map[string]string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil
	}

	var first, matched *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "table" {
			return true
		}
		if first == nil {
			first = n
		}
		var hasCode, hasMeaning bool
		walk(n, func(h *html.Node) bool {
			if h.Type == html.ElementNode && h.Data == "th" {
				text := strings.ToLower(nodeText(h))
				if strings.Contains(text, "coding") || strings.Contains(text, "value") || strings.Contains(text, "code") {
					hasCode = true
				}
				if strings.Contains(text, "meaning") || strings.Contains(text, "description") {
					hasMeaning = true
				}
			}
			return true
		})
		if hasCode && hasMeaning && matched == nil {
			matched = n
		}
		return true
	})

	table := matched
	if table == nil {
		table = first
	}
	if table == nil {
		return nil
	}

	mapping := make(map[string]string)
	for _, row := range collectRows(table) {
		cells := collectCells(row)
		if len(cells) < 2 || cells[0].Data == "th" {
			continue
		}
		value := nodeText(cells[0])
		meaning := nodeText(cells[1])
		if value == "" || meaning == "" {
			continue
		}
		mapping[value] = meaning
	}
	return mapping
}

func findDownloadLink(body string) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var href string
	walk(doc, func(n *html.Node) bool {
		if href != "" {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if strings.Contains(strings.ToLower(nodeText(n)), "download") {
				if h := attr(n, "href"); h != "" {
					href = h
					return false
				}
			}
		}
		return true
	})
	return href
}

// Shared HTML walking helpers, same shape as the dictionary parser's.

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
