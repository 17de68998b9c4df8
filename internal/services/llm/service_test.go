package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
)

type fakeProvider struct {
	ptype    ProviderType
	media    bool
	failures []error
	reply    string
	calls    int
	last     *ContentRequest
}

func (p *fakeProvider) GenerateContent(ctx context.Context, req *ContentRequest) (*ContentResponse, error) {
	p.calls++
	p.last = req
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		return nil, err
	}
	return &ContentResponse{Text: p.reply, Provider: p.ptype, Model: "fake-model"}, nil
}

func (p *fakeProvider) GetProviderType() ProviderType { return p.ptype }
func (p *fakeProvider) SupportsMedia() bool           { return p.media }
func (p *fakeProvider) Close() error                  { return nil }

type memoryAudit struct {
	mu    sync.Mutex
	calls []*models.ModelCall
}

func (m *memoryAudit) SaveModelCall(ctx context.Context, call *models.ModelCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return nil
}

func (m *memoryAudit) ListModelCalls(ctx context.Context, reportID string) ([]*models.ModelCall, error) {
	return m.calls, nil
}

func (m *memoryAudit) DeleteModelCalls(ctx context.Context, reportID string) error { return nil }

var _ interfaces.AuditStorage = (*memoryAudit)(nil)

func newTestService(audit interfaces.AuditStorage, providers ...Provider) *Service {
	config := common.NewDefaultConfig()
	s := newService(config, audit, arbor.NewLogger())
	s.retry = &RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 1.5,
		TransientBackoff:  time.Millisecond,
	}
	for _, p := range providers {
		s.register(p, 0)
	}
	return s
}

func TestGenerate_RetriesTransientFailures(t *testing.T) {
	p := &fakeProvider{
		ptype:    ProviderGemini,
		failures: []error{errors.New("Error 503, Status: UNAVAILABLE")},
		reply:    `{"sex": "F"}`,
	}
	audit := &memoryAudit{}
	s := newTestService(audit, p)

	ctx := common.WithReportID(context.Background(), "report-1")
	text, err := s.GenerateJSON(ctx, "prompt")

	require.NoError(t, err)
	assert.Equal(t, `{"sex": "F"}`, text)
	assert.Equal(t, 2, p.calls)
	assert.True(t, p.last.JSONOutput)

	require.Len(t, audit.calls, 1)
	assert.Equal(t, "report-1", audit.calls[0].ReportID)
	assert.Equal(t, OperationGenerateJSON, audit.calls[0].Operation)
	assert.True(t, audit.calls[0].Success)
}

func TestGenerate_FailureIsUnavailable(t *testing.T) {
	p := &fakeProvider{
		ptype:    ProviderGemini,
		failures: []error{errors.New("Error 401: API key not valid")},
	}
	audit := &memoryAudit{}
	s := newTestService(audit, p)

	_, err := s.Generate(context.Background(), "prompt")

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrModelUnavailable)
	assert.Equal(t, common.ErrorTypeUnavailable, common.ErrorTypeOf(err))
	assert.Equal(t, 1, p.calls, "permanent errors are not retried")

	require.Len(t, audit.calls, 1)
	assert.False(t, audit.calls[0].Success)
}

func TestGenerate_ExhaustsRetries(t *testing.T) {
	boom := errors.New("connection reset")
	p := &fakeProvider{ptype: ProviderClaude, failures: []error{boom, boom, boom, boom}}
	s := newTestService(nil, p)

	_, err := s.Generate(context.Background(), "prompt")

	assert.ErrorIs(t, err, common.ErrModelUnavailable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, p.calls)
}

func TestGenerate_EmptyReplyIsNotAnError(t *testing.T) {
	s := newTestService(nil, &fakeProvider{ptype: ProviderGemini})

	text, err := s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerate_NoProviders(t *testing.T) {
	s := newTestService(nil)

	_, err := s.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, common.ErrModelUnavailable)
	assert.Error(t, s.HealthCheck(context.Background()))
}

func TestGenerate_FallsBackToOtherProvider(t *testing.T) {
	claude := &fakeProvider{ptype: ProviderClaude, reply: "ok"}
	s := newTestService(nil, claude)
	s.config.LLM.DefaultProvider = common.LLMProviderGemini

	text, err := s.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, claude.calls)
}

func TestTranscribe_RequiresMediaProvider(t *testing.T) {
	s := newTestService(nil, &fakeProvider{ptype: ProviderClaude, reply: "text"})

	_, err := s.Transcribe(context.Background(), interfaces.MediaInput{Data: []byte{1}, MIMEType: "image/png"}, "read")
	assert.ErrorIs(t, err, common.ErrModelUnavailable)

	gemini := &fakeProvider{ptype: ProviderGemini, media: true, reply: "scan text"}
	s.register(gemini, 0)

	text, err := s.Transcribe(context.Background(), interfaces.MediaInput{Data: []byte{1}, MIMEType: "image/png"}, "read")
	require.NoError(t, err)
	assert.Equal(t, "scan text", text)
	require.NotNil(t, gemini.last.Media)
	assert.Equal(t, "image/png", gemini.last.Media.MIMEType)
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		model    string
		fallback common.LLMProvider
		want     ProviderType
	}{
		{"claude-haiku-4-5", common.LLMProviderGemini, ProviderClaude},
		{"anthropic/claude-haiku-4-5", common.LLMProviderGemini, ProviderClaude},
		{"gemini-2.5-flash", common.LLMProviderClaude, ProviderGemini},
		{"google/gemini-2.5-flash", common.LLMProviderClaude, ProviderGemini},
		{"", common.LLMProviderClaude, ProviderClaude},
		{"", common.LLMProviderGemini, ProviderGemini},
		{"mystery", "", ProviderGemini},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectProvider(tt.model, tt.fallback), tt.model)
	}
}

func TestNormalizeModel(t *testing.T) {
	assert.Equal(t, "gemini-2.5-flash", NormalizeModel("gemini/gemini-2.5-flash"))
	assert.Equal(t, "claude-haiku-4-5", NormalizeModel("Anthropic/claude-haiku-4-5"))
	assert.Equal(t, "plain", NormalizeModel("plain"))
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "a", truncate("aé", 2))
}
