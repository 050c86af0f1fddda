package dictionary_test

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/dictionary"
	"github.com/opencohort/ukbdecode/models/ukb"
)

const sampleDocument = `<html><body>
<h1>Data dictionary</h1>
<table>
<tr><th>Column</th><th>UDI</th><th>Count</th><th>Type</th><th>Description</th></tr>
<tr><td>1</td><td>3-0.0</td><td>502</td><td>Integer</td><td>Verbal interview duration</td></tr>
<tr><td>2</td><td>31-0.0</td><td>502</td><td>Categorical</td><td>Sex <a href="coding.cgi?id=9">Uses data-coding 9</a></td></tr>
<tr><td>3</td><td>53-0.0</td><td>502</td><td>Date</td><td>Date of attending assessment centre</td></tr>
<tr><td>4</td><td>53-1.0</td><td>120</td><td>Date</td><td>First repeat assessment visit (2012-13)</td></tr>
<tr><td>5</td><td>bogus</td><td>0</td><td>Text</td><td>broken row</td></tr>
</table>
</body></html>`

func TestParse(t *testing.T) {
	t.Parallel()

	reg, err := dictionary.NewParser(zerolog.Nop()).Parse(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	t.Run("fields and ordinals", func(t *testing.T) {
		require.Len(t, reg.Fields, 3)

		duration := reg.Fields["3"]
		require.NotNil(t, duration)
		assert.Equal(t, "Verbal interview duration", duration.Display)
		assert.Equal(t, 0, duration.Ordinal)
		assert.Zero(t, duration.CodingID)

		sex := reg.Fields["31"]
		require.NotNil(t, sex)
		assert.Equal(t, "Sex", sex.Display, "coding suffix must be stripped")
		assert.Equal(t, 1, sex.Ordinal)
		assert.Equal(t, 9, sex.CodingID)

		visit := reg.Fields["53"]
		require.NotNil(t, visit)
		assert.Equal(t, 2, visit.Ordinal)
	})

	t.Run("coding reference and download hint", func(t *testing.T) {
		_, ok := reg.Coding(9)
		assert.True(t, ok, "referenced coding gets a placeholder table")
		assert.Equal(t, "https://biobank.ndph.ox.ac.uk/ukb/coding.cgi?id=9", reg.CodingURLs[9])
	})

	t.Run("instance grouping", func(t *testing.T) {
		visit := reg.Fields["53"]
		require.Len(t, visit.Instances, 1, "only instances with their own description are recorded")
		assert.Equal(t, ukb.InstanceDescriptor{Index: 1, Description: "First repeat assessment visit (2012-13)"}, visit.Instances[0])
	})

	t.Run("malformed row becomes a warning", func(t *testing.T) {
		require.Len(t, reg.Warnings, 1)
		assert.Contains(t, reg.Warnings[0], "bogus")
	})
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	parser := dictionary.NewParser(zerolog.Nop())

	t.Run("no table at all", func(t *testing.T) {
		_, err := parser.Parse(strings.NewReader("<html><body><p>not a dictionary</p></body></html>"))
		var parseErr *dictionary.ParseError
		require.ErrorAs(t, err, &parseErr)
	})

	t.Run("table without field rows", func(t *testing.T) {
		_, err := parser.Parse(strings.NewReader("<table><tr><th>UDI</th><th>Description</th></tr></table>"))
		var parseErr *dictionary.ParseError
		require.ErrorAs(t, err, &parseErr)
	})
}
