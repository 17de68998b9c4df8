package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalFields(t *testing.T) {
	fields := CanonicalFields()
	require.Len(t, fields, 12)
	assert.Equal(t, FieldPatientName, fields[0])
	assert.Equal(t, FieldComment, fields[11])

	// Returned slice is a copy
	fields[0] = "mutated"
	assert.Equal(t, FieldPatientName, CanonicalFields()[0])

	assert.True(t, IsCanonical("imaging_findings"))
	assert.False(t, IsCanonical(ReservedRawResponseKey))
	assert.False(t, IsCanonical("Patient_Name"))
}

func TestExtractionPrompt(t *testing.T) {
	prompt, err := ExtractionPrompt("Pt: Jane Doe, 45F. USG abdomen normal.", "")
	require.NoError(t, err)

	for _, field := range CanonicalFields() {
		assert.Contains(t, prompt, "- "+field+"\n")
	}
	assert.Contains(t, prompt, `set its value to "UNKNOWN"`)
	assert.Contains(t, prompt, "Pt: Jane Doe, 45F. USG abdomen normal.")
	assert.Contains(t, prompt, "Output only a valid JSON object.")

	custom, err := ExtractionPrompt("x", "N/A")
	require.NoError(t, err)
	assert.Contains(t, custom, `set its value to "N/A"`)
}

func TestTranscribePrompt(t *testing.T) {
	audio, err := TranscribePrompt("audio", "cn")
	require.NoError(t, err)
	assert.Contains(t, audio, "Chinese")

	fallback, err := TranscribePrompt("audio", "xx")
	require.NoError(t, err)
	assert.Contains(t, fallback, "English")

	image, err := TranscribePrompt("image", "en")
	require.NoError(t, err)
	assert.Contains(t, image, "visible in this image")
}

func TestReportSchema(t *testing.T) {
	schema, err := ReportSchema()
	require.NoError(t, err)

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	for _, field := range CanonicalFields() {
		assert.Contains(t, props, field)
	}
	assert.Len(t, schema["required"], 12)
}
