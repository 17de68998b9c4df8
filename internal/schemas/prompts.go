package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

var (
	extractionTemplate = mustTemplate("extraction_prompt.tmpl")
	enhanceTemplate    = mustTemplate("enhance_prompt.tmpl")
	transcribeTemplate = mustTemplate("transcribe_prompt.tmpl")
)

var languageNames = map[string]string{
	"en": "English",
	"cn": "Chinese (Mandarin)",
}

func mustTemplate(name string) *template.Template {
	content, err := GetSchema(name)
	if err != nil {
		panic(fmt.Sprintf("schemas: missing embedded template %s: %v", name, err))
	}
	return template.Must(template.New(name).Parse(string(content)))
}

func execute(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ExtractionPrompt renders the fixed prompt that enumerates the canonical
// fields, names the sentinel for unknown values and asks for JSON only.
func ExtractionPrompt(text, placeholder string) (string, error) {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return execute(extractionTemplate, struct {
		Placeholder string
		Fields      []string
		Text        string
	}{placeholder, canonicalFields, text})
}

// EnhancePrompt renders the optional text refinement prompt
func EnhancePrompt(text string) (string, error) {
	return execute(enhanceTemplate, struct{ Text string }{text})
}

// TranscribePrompt renders the OCR ("image") or speech ("audio") instruction
func TranscribePrompt(kind, language string) (string, error) {
	name, ok := languageNames[strings.ToLower(language)]
	if !ok {
		name = languageNames["en"]
	}
	return execute(transcribeTemplate, struct {
		Kind         string
		LanguageName string
	}{kind, name})
}

// ReportSchema returns the canonical JSON schema as a generic map
func ReportSchema() (map[string]interface{}, error) {
	content, err := GetSchema("clinical_report.json")
	if err != nil {
		return nil, err
	}
	var schema map[string]interface{}
	if err := json.Unmarshal(content, &schema); err != nil {
		return nil, fmt.Errorf("failed to parse report schema: %w", err)
	}
	return schema, nil
}
