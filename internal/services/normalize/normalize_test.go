package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

func mustParse(t *testing.T, s string) models.Value {
	t.Helper()
	v, err := models.ParseJSON([]byte(s))
	require.NoError(t, err)
	return v
}

func TestFindings_OrganMapping(t *testing.T) {
	v := mustParse(t, `{"liver": {"size": "normal", "lesion": false}}`)
	got := NewNormalizer().Field(schemas.FieldImagingFindings, v)

	assert.Contains(t, got, "Liver:")
	assert.Contains(t, got, "Size: normal")
	assert.Contains(t, got, "Lesion: No")
	assert.Equal(t, "Liver:\n  Size: normal\n  Lesion: No", got)
}

func TestFindings_MixedOrgans(t *testing.T) {
	v := mustParse(t, `{
		"liver": {"size": "enlarged", "echotexture": null, "lesions": ["cyst", "hemangioma"]},
		"gall_bladder": "normal",
		"kidneys": {"calculi": true}
	}`)
	got := NewNormalizer().Field(schemas.FieldImagingFindings, v)

	want := "Liver:\n  Size: enlarged\n  Lesions: cyst, hemangioma\n" +
		"Gall Bladder: normal\n" +
		"Kidneys:\n  Calculi: Yes"
	assert.Equal(t, want, got)
}

func TestFindings_OrganWithOnlyNullsIsSkipped(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"null attributes", `{"liver": {"size": null}, "spleen": "normal"}`, "Spleen: normal"},
		{"empty mapping", `{"liver": {}, "spleen": "normal"}`, "Spleen: normal"},
		{"all organs empty", `{"liver": {"size": null}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewNormalizer().Field(schemas.FieldImagingFindings, mustParse(t, tt.input))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindings_Sequence(t *testing.T) {
	v := mustParse(t, `[{"organ": "liver", "finding": "normal"}, "spleen unremarkable", true]`)
	got := NewNormalizer().Field(schemas.FieldImagingFindings, v)

	assert.Equal(t, "Organ: liver, Finding: normal, spleen unremarkable, Yes", got)
}

func TestFindings_Scalar(t *testing.T) {
	got := NewNormalizer().Field(schemas.FieldImagingFindings, models.String("  No abnormality detected. "))
	assert.Equal(t, "No abnormality detected.", got)
}

func TestDiagnosisSummary_Sequence(t *testing.T) {
	v := mustParse(t, `["finding A", "finding B"]`)
	assert.Equal(t, "finding A, finding B", NewNormalizer().Field(schemas.FieldDiagnosisSummary, v))
	assert.Equal(t, "finding A, finding B", NewNormalizer().Field(schemas.FieldComment, v))
}

func TestGenericFields(t *testing.T) {
	n := NewNormalizer()

	assert.Equal(t, "Jane Doe", n.Field(schemas.FieldPatientName, models.String("  Jane Doe\t")))
	assert.Equal(t, "42", n.Field(schemas.FieldAge, models.Number("42")))
	assert.Equal(t, "No", n.Field("contrast", models.Bool(false)))
	assert.Equal(t, "", n.Field("note", models.Null()))
	assert.Equal(t, "Dose: 5, Unit: ml", n.Field("contrast", mustParse(t, `{"dose": 5, "unit": "ml"}`)))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "a\nb\nc d", sanitize("a\r\nb\rc\td\x00\x1b"))
}

func TestNormalize_ReplacesValuesInPlace(t *testing.T) {
	rec, ok := models.RecordFromValue(mustParse(t, `{
		"patient_name": "Jane Doe",
		"imaging_findings": {"liver": {"size": "normal"}},
		"diagnosis_summary": ["a", "b"],
		"extra_key": "kept"
	}`))
	require.True(t, ok)

	flat := NewNormalizer().Normalize(rec)

	assert.Equal(t, []string{"patient_name", "imaging_findings", "diagnosis_summary", "extra_key"}, rec.Keys())
	rec.Range(func(key string, v models.Value) bool {
		assert.Equal(t, models.KindString, v.Kind(), key)
		return true
	})

	extra, ok := flat.Get("extra_key")
	require.True(t, ok)
	assert.Equal(t, "kept", extra)

	summary, _ := flat.Get("diagnosis_summary")
	assert.Equal(t, "a, b", summary)
}

func TestNormalize_FlatRecordIsPureFlattening(t *testing.T) {
	rec := models.NewRecord()
	for _, key := range schemas.CanonicalFields() {
		rec.Set(key, models.String("value "+key))
	}

	flat := NewNormalizer().Normalize(rec)

	require.Len(t, flat, 12)
	for _, f := range flat {
		assert.Equal(t, "value "+f.Key, f.Value)
	}
}
