package instance_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/instance"
	"github.com/opencohort/ukbdecode/models/ukb"
)

func testRegistry() *ukb.Registry {
	reg := ukb.NewRegistry()
	reg.Fields["54"] = &ukb.FieldDefinition{
		FieldID: "54",
		Display: "Assessment centre",
		Ordinal: 0,
		Instances: []ukb.InstanceDescriptor{
			{Index: 0, Description: "Initial assessment visit (2006-10)"},
		},
	}
	return reg
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	resolver := instance.NewResolver(testRegistry(), zerolog.Nop())

	t.Run("exact description from registry", func(t *testing.T) {
		desc, exact := resolver.Describe("54", 0)
		assert.True(t, exact)
		assert.Equal(t, "Initial assessment visit (2006-10)", desc)
	})

	t.Run("generic fallback is never empty", func(t *testing.T) {
		desc, exact := resolver.Describe("54", 3)
		assert.False(t, exact)
		assert.Equal(t, "Assessment centre instance 3", desc)
	})

	t.Run("unknown field", func(t *testing.T) {
		desc, exact := resolver.Describe("999", 0)
		assert.False(t, exact)
		assert.Empty(t, desc)
	})
}

func TestOverlayIsAuthoritative(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "instances.json")
	overlay := map[string]any{
		"__instances__": map[string]map[string]string{
			"54": {"0": "Baseline visit", "1": "First repeat"},
		},
	}
	data, err := json.Marshal(overlay)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))

	resolver := instance.NewResolver(testRegistry(), zerolog.Nop())
	require.NoError(t, resolver.LoadOverlay(path))

	desc, exact := resolver.Describe("54", 0)
	assert.True(t, exact)
	assert.Equal(t, "Baseline visit", desc, "overlay wins over the registry")

	desc, exact = resolver.Describe("54", 1)
	assert.True(t, exact)
	assert.Equal(t, "First repeat", desc)

	assert.True(t, resolver.HasDescription("54", 1))
	assert.False(t, resolver.HasDescription("54", 2))
}

func TestWriteAudit(t *testing.T) {
	t.Parallel()

	resolver := instance.NewResolver(testRegistry(), zerolog.Nop())
	resolver.Describe("54", 0)
	resolver.Describe("54", 2)

	path := filepath.Join(t.TempDir(), "audit.json")
	require.NoError(t, resolver.WriteAudit(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var audit map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &audit))
	assert.Equal(t, map[string]map[string]string{
		"54": {
			"0": "Initial assessment visit (2006-10)",
			"2": "Assessment centre instance 2",
		},
	}, audit)
}
