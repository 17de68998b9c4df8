package reports

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
	"github.com/ternarybob/relatio/internal/storage/badger"
)

type fakeExtractor struct {
	text     string
	err      error
	language string
}

func (e *fakeExtractor) Extract(ctx context.Context, path, language string) (string, error) {
	e.language = language
	return e.text, e.err
}

// scriptedModel answers GenerateJSON with reply and Generate with enhanced
type scriptedModel struct {
	reply      string
	err        error
	enhanced   string
	enhanceErr error

	mu      sync.Mutex
	prompts []string
	ids     []string
}

func (m *scriptedModel) record(ctx context.Context, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	m.ids = append(m.ids, common.ReportIDFrom(ctx))
}

func (m *scriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.record(ctx, prompt)
	return m.enhanced, m.enhanceErr
}

func (m *scriptedModel) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	m.record(ctx, prompt)
	return m.reply, m.err
}

func (m *scriptedModel) Transcribe(ctx context.Context, media interfaces.MediaInput, prompt string) (string, error) {
	return "", nil
}

func (m *scriptedModel) HealthCheck(ctx context.Context) error { return nil }
func (m *scriptedModel) Close() error                          { return nil }

// recordingRenderer keeps every request and writes empty artifacts
type recordingRenderer struct {
	dir      string
	pdfErr   error
	docxErr  error
	requests []interfaces.RenderRequest
	removed  []string
}

func (r *recordingRenderer) Render(ctx context.Context, req interfaces.RenderRequest, format models.ReportFormat) (string, error) {
	r.requests = append(r.requests, req)
	if format == models.FormatDocx && r.docxErr != nil {
		return "", r.docxErr
	}
	if format == models.FormatPDF && r.pdfErr != nil {
		return "", r.pdfErr
	}
	path := filepath.Join(r.dir, req.ReportID+"."+string(format))
	return path, os.WriteFile(path, []byte(format), 0644)
}

func (r *recordingRenderer) Remove(reportID string) error {
	r.removed = append(r.removed, reportID)
	return nil
}

type fixture struct {
	config    *common.Config
	extractor *fakeExtractor
	model     *scriptedModel
	renderer  *recordingRenderer
	storage   interfaces.StorageManager
	service   *Service
}

func newFixture(t *testing.T, configure func(*common.Config)) *fixture {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.LLM.EnhanceText = false
	if configure != nil {
		configure(cfg)
	}

	storage, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	f := &fixture{
		config:    cfg,
		extractor: &fakeExtractor{text: "Patient Jane Doe, 42, liver normal"},
		model:     &scriptedModel{},
		renderer:  &recordingRenderer{dir: t.TempDir()},
		storage:   storage,
	}

	f.service, err = NewService(cfg, f.extractor, f.model, f.renderer, storage.ReportStorage(), storage.AuditStorage(), arbor.NewLogger())
	require.NoError(t, err)
	return f
}

func processRequest(t *testing.T, name string) *models.ProcessRequest {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("upload"), 0644))
	return &models.ProcessRequest{OriginalFilename: name, SourcePath: path}
}

func TestGenerate_WellFormedReply(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = "```json\n" + `{"patient_name": "Jane Doe", "age": 42, "imaging_findings": {"liver": {"size": "normal", "lesion": false}}}` + "\n```"

	report, err := f.service.Generate(context.Background(), processRequest(t, "scan.png"))
	require.NoError(t, err)

	assert.True(t, common.IsValidReportID(report.ID))
	assert.Equal(t, "scan.png", report.OriginalFilename)
	assert.Equal(t, models.SourceKindImage, report.SourceKind)
	assert.Equal(t, "en", report.Language)
	assert.False(t, report.Degraded)
	assert.True(t, report.PDFAvailable)
	assert.Equal(t, "direct", report.Strategy)

	name, _ := report.Data.Get(schemas.FieldPatientName)
	assert.Equal(t, "Jane Doe", name)
	age, _ := report.Data.Get(schemas.FieldAge)
	assert.Equal(t, "42", age)
	findings, _ := report.Data.Get(schemas.FieldImagingFindings)
	assert.Equal(t, "Liver:\n  Size: normal\n  Lesion: No", findings)
	sex, _ := report.Data.Get(schemas.FieldSex)
	assert.Equal(t, "UNKNOWN", sex)
	assert.Len(t, report.Filled, 9)

	for _, key := range schemas.CanonicalFields() {
		_, ok := report.Data.Get(key)
		assert.True(t, ok, key)
	}

	// the prompt carries the extracted text and the model call is tagged with the report
	require.Len(t, f.model.prompts, 1)
	assert.Contains(t, f.model.prompts[0], "Patient Jane Doe, 42, liver normal")
	assert.Equal(t, report.ID, f.model.ids[0])

	// both formats rendered from the same flat record
	require.Len(t, f.renderer.requests, 2)
	assert.Equal(t, report.Data, f.renderer.requests[0].Data)
	assert.Equal(t, "scan.png", f.renderer.requests[1].OriginalFilename)

	stored, err := f.service.GetReport(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.Data, stored.Data)
}

func TestGenerate_UniqueIDs(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = `{"patient_name": "A"}`

	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		report, err := f.service.GenerateFromText(context.Background(), "text", "")
		require.NoError(t, err)
		assert.False(t, seen[report.ID])
		seen[report.ID] = true
		assert.Equal(t, textInputName, report.OriginalFilename)
	}
}

func TestGenerate_UnparsableReplyIsDegraded(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = "UNKNOWN"

	report, err := f.service.GenerateFromText(context.Background(), "text", "note.txt")
	require.NoError(t, err)

	assert.True(t, report.Degraded)
	assert.Equal(t, "raw_response", report.Strategy)
	assert.Len(t, report.Filled, 12)
	raw, ok := report.Data.Get(schemas.ReservedRawResponseKey)
	assert.True(t, ok)
	assert.Equal(t, "UNKNOWN", raw)
	for _, key := range schemas.CanonicalFields() {
		v, _ := report.Data.Get(key)
		assert.Equal(t, "UNKNOWN", v, key)
	}
}

func TestGenerate_ModelFailure(t *testing.T) {
	t.Run("degrade", func(t *testing.T) {
		f := newFixture(t, nil)
		f.model.err = common.NewUnavailableError("no provider", nil)

		report, err := f.service.GenerateFromText(context.Background(), "text", "")
		require.NoError(t, err)
		assert.True(t, report.Degraded)
		assert.Equal(t, "model unavailable", report.DegradedReason)
		assert.Len(t, report.Data, 12)
		for _, field := range report.Data {
			assert.Equal(t, "UNKNOWN", field.Value, field.Key)
		}
	})

	t.Run("fail", func(t *testing.T) {
		f := newFixture(t, func(c *common.Config) { c.LLM.OnFailure = OnFailureFail })
		f.model.err = errors.New("boom")

		_, err := f.service.GenerateFromText(context.Background(), "text", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrModelUnavailable)
		assert.Empty(t, f.renderer.requests)

		count, err := f.storage.ReportStorage().CountReports(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestGenerate_PDFFailureKeepsDocx(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = `{"patient_name": "Jane"}`
	f.renderer.pdfErr = common.ErrConversionFailed

	report, err := f.service.GenerateFromText(context.Background(), "text", "")
	require.NoError(t, err)
	assert.False(t, report.PDFAvailable)
	assert.NotEmpty(t, report.ConversionError)

	path, err := f.service.ArtifactPath(context.Background(), report.ID, models.FormatDocx)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = f.service.ArtifactPath(context.Background(), report.ID, models.FormatPDF)
	assert.Equal(t, common.ErrorTypeNotFound, common.ErrorTypeOf(err))
}

func TestGenerate_DocxFailureIsSingleError(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = `{"patient_name": "Jane"}`
	f.renderer.docxErr = errors.New("disk full")

	_, err := f.service.GenerateFromText(context.Background(), "text", "")
	require.Error(t, err)
	assert.Equal(t, common.ErrorTypeExternal, common.ErrorTypeOf(err))
	assert.Len(t, f.renderer.requests, 1)
}

func TestGenerate_RequestValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Generate(context.Background(), &models.ProcessRequest{OriginalFilename: "scan.png"})
	assert.Equal(t, common.ErrorTypeValidation, common.ErrorTypeOf(err))

	_, err = f.service.Generate(context.Background(), processRequest(t, "archive.zip"))
	assert.ErrorIs(t, err, common.ErrUnsupportedFormat)
	assert.Empty(t, f.model.prompts)
}

func TestGenerate_Language(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = `{}`

	req := processRequest(t, "dictation.wav")
	req.Language = "cn"
	report, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cn", f.extractor.language)
	assert.Equal(t, "cn", report.Language)

	req = processRequest(t, "dictation.wav")
	req.Language = "fr"
	_, err = f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "en", f.extractor.language)
}

func TestGenerate_Enhance(t *testing.T) {
	t.Run("enhanced text is extracted", func(t *testing.T) {
		f := newFixture(t, func(c *common.Config) { c.LLM.EnhanceText = true })
		f.model.enhanced = "  Refined report text  "
		f.model.reply = `{}`

		_, err := f.service.GenerateFromText(context.Background(), "raw notes", "")
		require.NoError(t, err)
		require.Len(t, f.model.prompts, 2)
		assert.Contains(t, f.model.prompts[0], "raw notes")
		assert.Contains(t, f.model.prompts[1], "Refined report text")
	})

	t.Run("failure keeps original", func(t *testing.T) {
		f := newFixture(t, nil)
		f.model.enhanceErr = errors.New("quota")
		f.model.reply = `{}`

		enhance := true
		req := processRequest(t, "note.txt")
		req.Enhance = &enhance
		_, err := f.service.Generate(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, f.model.prompts, 2)
		assert.Contains(t, f.model.prompts[1], "Patient Jane Doe")
	})
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		strategy string
		degraded bool
		check    func(t *testing.T, data models.FlatRecord)
	}{
		{
			name:     "prose before object",
			raw:      "Here is the report:\n{\"patient_name\": \"Jane\", \"sex\": \"F\"}",
			strategy: "embedded",
			check: func(t *testing.T, data models.FlatRecord) {
				v, _ := data.Get("sex")
				assert.Equal(t, "F", v)
			},
		},
		{
			name:     "single-quoted literal",
			raw:      "{'patient_name': 'Jane', 'comment': None, 'urgent': True}",
			strategy: "literal",
			check: func(t *testing.T, data models.FlatRecord) {
				v, _ := data.Get("comment")
				assert.Equal(t, "UNKNOWN", v)
				v, _ = data.Get("urgent")
				assert.Equal(t, "Yes", v)
			},
		},
		{
			name:     "not an object",
			raw:      "I cannot help with that.",
			strategy: "raw_response",
			degraded: true,
			check: func(t *testing.T, data models.FlatRecord) {
				v, _ := data.Get("raw_response")
				assert.Equal(t, "I cannot help with that.", v)
			},
		},
	}

	f := newFixture(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := f.service.Reconcile(tt.raw)
			assert.Equal(t, tt.strategy, result.Strategy)
			assert.Equal(t, tt.degraded, result.Degraded)
			for _, key := range schemas.CanonicalFields() {
				_, ok := result.Data.Get(key)
				assert.True(t, ok, key)
			}
			tt.check(t, result.Data)
		})
	}
}

func TestReconcile_DeeplyNestedCompletionDegrades(t *testing.T) {
	f := newFixture(t, nil)

	result := f.service.Reconcile(`{"imaging_findings": ` + strings.Repeat("[", 3_000_000))

	assert.True(t, result.Degraded)
	assert.Equal(t, "raw_response", result.Strategy)
	v, _ := result.Data.Get("imaging_findings")
	assert.Equal(t, "UNKNOWN", v)
}

func TestReconcile_MergeOnRetry(t *testing.T) {
	// the candidate object is malformed, a later span on the same line is valid
	raw := "Result:\n{\"patient_name\": \"Jane\" \"sex\": \"F\"} and later {\"age\": 42}"

	t.Run("merge keeps raw response", func(t *testing.T) {
		f := newFixture(t, nil)
		result := f.service.Reconcile(raw)
		assert.Equal(t, "salvage", result.Strategy)
		assert.False(t, result.Degraded)

		age, _ := result.Data.Get("age")
		assert.Equal(t, "42", age)
		_, ok := result.Data.Get("raw_response")
		assert.True(t, ok)
	})

	t.Run("replace drops raw response", func(t *testing.T) {
		f := newFixture(t, func(c *common.Config) { c.Report.MergeOnRetry = false })
		result := f.service.Reconcile(raw)
		assert.Equal(t, "salvage", result.Strategy)

		_, ok := result.Data.Get("raw_response")
		assert.False(t, ok)
		assert.Len(t, result.Data, 12)
	})
}

func TestDeleteReport(t *testing.T) {
	f := newFixture(t, nil)
	f.model.reply = `{}`

	req := processRequest(t, "note.txt")
	report, err := f.service.Generate(context.Background(), req)
	require.NoError(t, err)
	require.NoError(t, f.storage.AuditStorage().SaveModelCall(context.Background(), &models.ModelCall{ReportID: report.ID}))

	require.NoError(t, f.service.DeleteReport(context.Background(), report.ID))
	assert.Equal(t, []string{report.ID}, f.renderer.removed)
	assert.NoFileExists(t, req.SourcePath)

	calls, err := f.storage.AuditStorage().ListModelCalls(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Empty(t, calls)

	_, err = f.service.GetReport(context.Background(), report.ID)
	assert.ErrorIs(t, err, common.ErrReportNotFound)

	_, err = f.service.GetReport(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, common.ErrReportNotFound)
}
