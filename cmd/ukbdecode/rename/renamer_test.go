package rename_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/opencohort/ukbdecode/cmd/ukbdecode/instance"
	"github.com/opencohort/ukbdecode/cmd/ukbdecode/rename"
	"github.com/opencohort/ukbdecode/models/ukb"
)

func testRegistry() *ukb.Registry {
	reg := ukb.NewRegistry()
	reg.Fields["F1"] = &ukb.FieldDefinition{FieldID: "F1", Display: "age", Ordinal: 3}
	reg.Fields["F2"] = &ukb.FieldDefinition{FieldID: "F2", Display: "sex", Ordinal: 7, CodingID: 9}
	reg.Fields["F3"] = &ukb.FieldDefinition{
		FieldID: "F3", Display: "Visit date", Ordinal: 9,
		Instances: []ukb.InstanceDescriptor{
			{Index: 0, Description: "baseline"},
			{Index: 1, Description: "followup"},
		},
	}
	reg.Fields["3"] = &ukb.FieldDefinition{FieldID: "3", Display: "Verbal interview duration", Ordinal: 12}
	return reg
}

func newRenamer(conv rename.ColumnConvention) *rename.Renamer {
	reg := testRegistry()
	return rename.NewRenamer(reg, conv, instance.NewResolver(reg, zerolog.Nop()))
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "verbal_interview_duration", rename.Normalize("Verbal interview duration"))
	assert.Equal(t, "pulse_rate_automated_reading", rename.Normalize("Pulse rate, automated reading"))
	assert.Equal(t, "age", rename.Normalize("  age  "))
}

func TestRenameSuffixConvention(t *testing.T) {
	t.Parallel()

	r := newRenamer(rename.SuffixConvention{})

	t.Run("plain field composes display and ordinal", func(t *testing.T) {
		name, _, ok := r.Rename("F1")
		assert.True(t, ok)
		assert.Equal(t, "age_3", name)

		name, _, ok = r.Rename("F2")
		assert.True(t, ok)
		assert.Equal(t, "sex_7", name)
	})

	t.Run("instance qualified columns carry the instance description", func(t *testing.T) {
		name, ref, ok := r.Rename("F3_0")
		assert.True(t, ok)
		assert.Equal(t, "visit_date_9 (baseline)", name)
		assert.Equal(t, rename.ColumnRef{FieldID: "F3", Instance: 0, Array: -1}, ref)

		name, _, ok = r.Rename("F3_1")
		assert.True(t, ok)
		assert.Equal(t, "visit_date_9 (followup)", name)
	})

	t.Run("deterministic", func(t *testing.T) {
		first, _, _ := r.Rename("F3_1")
		second, _, _ := r.Rename("F3_1")
		assert.Equal(t, first, second)
	})

	t.Run("unresolved column passes through", func(t *testing.T) {
		name, _, ok := r.Rename("X99")
		assert.False(t, ok)
		assert.Equal(t, "X99", name)
	})

	t.Run("field id ending in underscore digits", func(t *testing.T) {
		// F1 is unknown as a parent of "F1_1"... unless the whole header
		// names a field; here F1 exists, so F1_1 resolves via the parent.
		name, _, ok := r.Rename("F1_1")
		assert.True(t, ok)
		assert.Contains(t, name, "age_3")
	})
}

func TestRenameUDIConvention(t *testing.T) {
	t.Parallel()

	r := newRenamer(rename.UDIConvention{})

	t.Run("udi column gets fallback instance description", func(t *testing.T) {
		name, _, ok := r.Rename("3-0.0")
		assert.True(t, ok)
		assert.Equal(t, "verbal_interview_duration_12 (Verbal interview duration instance 0)", name)
	})

	t.Run("participant id", func(t *testing.T) {
		name, _, ok := r.Rename("f.eid")
		assert.True(t, ok)
		assert.Equal(t, "eid", name)
	})
}
