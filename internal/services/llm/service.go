package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

// maxAuditCompletion bounds the completion text kept in audit entries
const maxAuditCompletion = 2000

// Operation names recorded in audit entries
const (
	OperationGenerate     = "generate"
	OperationGenerateJSON = "generate_json"
	OperationTranscribe   = "transcribe"
)

// Service implements interfaces.ModelService over the configured providers.
// Clients are built once and shared across requests.
type Service struct {
	config *common.Config
	audit  interfaces.AuditStorage
	logger arbor.ILogger
	retry  *RetryConfig

	mu        sync.RWMutex
	providers map[ProviderType]Provider
	limiters  map[ProviderType]*rate.Limiter
}

// NewService creates providers for every configured API key. A service with
// no providers is still returned; its calls fail with ErrModelUnavailable.
func NewService(ctx context.Context, config *common.Config, audit interfaces.AuditStorage, logger arbor.ILogger) *Service {
	s := newService(config, audit, logger)

	if gemini, err := newGeminiProvider(ctx, &config.Gemini, logger); err != nil {
		logger.Warn().Err(err).Msg("Gemini provider disabled")
	} else {
		s.register(gemini, common.ParseDurationOr(config.Gemini.RateLimit, 0))
	}

	if claude, err := newClaudeProvider(&config.Claude, logger); err != nil {
		logger.Warn().Err(err).Msg("Claude provider disabled")
	} else {
		s.register(claude, common.ParseDurationOr(config.Claude.RateLimit, 0))
	}

	logger.Info().
		Str("default_provider", string(config.LLM.DefaultProvider)).
		Int("providers", len(s.providers)).
		Msg("Model service initialized")

	return s
}

func newService(config *common.Config, audit interfaces.AuditStorage, logger arbor.ILogger) *Service {
	retry := NewDefaultRetryConfig()
	if config.LLM.MaxRetries >= 0 {
		retry.MaxRetries = config.LLM.MaxRetries
	}
	return &Service{
		config:    config,
		audit:     audit,
		logger:    logger,
		retry:     retry,
		providers: make(map[ProviderType]Provider),
		limiters:  make(map[ProviderType]*rate.Limiter),
	}
}

// register adds a provider; spacing is the minimum interval between calls
func (s *Service) register(p Provider, spacing time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	s.providers[p.GetProviderType()] = p
	s.limiters[p.GetProviderType()] = rate.NewLimiter(limit, 1)
}

// Generate sends a plain text prompt to the default provider
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	return s.generate(ctx, OperationGenerate, &ContentRequest{Prompt: prompt})
}

// GenerateJSON sends a prompt asking for a JSON reply. With
// gemini.structured_output the canonical schema is attached as well.
func (s *Service) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	req := &ContentRequest{Prompt: prompt, JSONOutput: true}
	if s.config.Gemini.StructuredOutput {
		schema, err := schemas.ReportSchema()
		if err != nil {
			s.logger.Warn().Err(err).Msg("Report schema unavailable, continuing without it")
		} else {
			req.OutputSchema = schema
		}
	}
	return s.generate(ctx, OperationGenerateJSON, req)
}

// Transcribe sends media to a provider that accepts it
func (s *Service) Transcribe(ctx context.Context, media interfaces.MediaInput, prompt string) (string, error) {
	provider, err := s.mediaProvider()
	if err != nil {
		return "", err
	}

	req := &ContentRequest{
		Prompt: prompt,
		Model:  s.config.Gemini.VisionModel,
		Media:  &media,
	}
	return s.call(ctx, OperationTranscribe, provider, req)
}

// HealthCheck succeeds when at least one provider is configured
func (s *Service) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.providers) == 0 {
		return common.NewUnavailableError("no model provider configured", nil)
	}
	return nil
}

// Close releases provider clients
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t, p := range s.providers {
		if err := p.Close(); err != nil {
			s.logger.Warn().Err(err).Str("provider", string(t)).Msg("Failed to close provider")
		}
	}
	s.providers = make(map[ProviderType]Provider)
	return nil
}

func (s *Service) generate(ctx context.Context, operation string, req *ContentRequest) (string, error) {
	provider, err := s.textProvider()
	if err != nil {
		return "", err
	}
	return s.call(ctx, operation, provider, req)
}

// textProvider returns the default provider, falling back to any other
func (s *Service) textProvider() (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	preferred := DetectProvider("", s.config.LLM.DefaultProvider)
	if p, ok := s.providers[preferred]; ok {
		return p, nil
	}
	for _, p := range s.providers {
		return p, nil
	}
	return nil, common.NewUnavailableError("no model provider configured", nil)
}

func (s *Service) mediaProvider() (Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.providers {
		if p.SupportsMedia() {
			return p, nil
		}
	}
	return nil, common.NewUnavailableError("no provider accepts image or audio input", nil)
}

func (s *Service) callTimeout(t ProviderType) time.Duration {
	switch t {
	case ProviderClaude:
		return common.ParseDurationOr(s.config.Claude.Timeout, 2*time.Minute)
	default:
		return common.ParseDurationOr(s.config.Gemini.Timeout, 2*time.Minute)
	}
}

// call runs one request with rate limiting, per-attempt timeouts and
// retries, bounded overall by llm.timeout
func (s *Service) call(ctx context.Context, operation string, provider Provider, req *ContentRequest) (string, error) {
	ptype := provider.GetProviderType()
	if req.Model != "" {
		req.Model = NormalizeModel(req.Model)
	}

	ctx, cancel := context.WithTimeout(ctx, common.ParseDurationOr(s.config.LLM.Timeout, 5*time.Minute))
	defer cancel()

	s.mu.RLock()
	limiter := s.limiters[ptype]
	s.mu.RUnlock()

	attemptTimeout := s.callTimeout(ptype)
	start := time.Now()

	var resp *ContentResponse
	err := withRetry(ctx, s.retry, s.logger, string(ptype)+"."+operation, func(ctx context.Context) error {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		var err error
		resp, err = provider.GenerateContent(attemptCtx, req)
		return err
	})
	duration := time.Since(start)

	call := &models.ModelCall{
		ID:         uuid.New().String(),
		ReportID:   common.ReportIDFrom(ctx),
		Operation:  operation,
		Provider:   string(ptype),
		Model:      req.Model,
		Success:    err == nil,
		Duration:   duration,
		PromptSize: len(req.Prompt),
		CreatedAt:  time.Now(),
	}

	if err != nil {
		call.Error = err.Error()
		s.record(ctx, call)

		s.logger.Error().
			Str("provider", string(ptype)).
			Str("operation", operation).
			Dur("duration", duration).
			Err(err).
			Msg("Model call failed")
		return "", common.NewUnavailableError(fmt.Sprintf("%s %s call failed", ptype, operation), err)
	}

	call.Model = resp.Model
	call.Completion = truncate(resp.Text, maxAuditCompletion)
	s.record(ctx, call)

	s.logger.Debug().
		Str("provider", string(ptype)).
		Str("model", resp.Model).
		Str("operation", operation).
		Dur("duration", duration).
		Int("completion_length", len(resp.Text)).
		Msg("Model call completed")

	return resp.Text, nil
}

// record writes an audit entry; failures are logged only
func (s *Service) record(ctx context.Context, call *models.ModelCall) {
	if s.audit == nil {
		return
	}
	// the request context may already be done
	if err := s.audit.SaveModelCall(context.WithoutCancel(ctx), call); err != nil {
		s.logger.Warn().Err(err).Str("operation", call.Operation).Msg("Failed to record model call")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
