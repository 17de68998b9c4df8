// Package reports assembles clinical reports: source text goes through the
// model, the reply is recovered, completed and normalized, and the flat
// record is rendered and indexed.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
	"github.com/ternarybob/relatio/internal/services/completion"
	"github.com/ternarybob/relatio/internal/services/normalize"
	"github.com/ternarybob/relatio/internal/services/recovery"
)

// OnFailure values for [llm].on_failure
const (
	OnFailureDegrade = "degrade"
	OnFailureFail    = "fail"
)

// textInputName is the original filename recorded for text submissions
const textInputName = "text-input.txt"

// Service implements interfaces.ReportService
type Service struct {
	config     *common.Config
	extractor  interfaces.TextExtractor
	model      interfaces.ModelService
	renderer   interfaces.ReportRenderer
	storage    interfaces.ReportStorage
	audit      interfaces.AuditStorage
	recovery   *recovery.Service
	completer  *completion.Completer
	normalizer *normalize.Normalizer
	validate   *validator.Validate
	logger     arbor.ILogger
}

// Compile-time assertion
var _ interfaces.ReportService = (*Service)(nil)

// NewService wires the pipeline stages to their collaborators
func NewService(
	config *common.Config,
	extractor interfaces.TextExtractor,
	model interfaces.ModelService,
	renderer interfaces.ReportRenderer,
	storage interfaces.ReportStorage,
	audit interfaces.AuditStorage,
	logger arbor.ILogger,
) (*Service, error) {
	policy, err := completion.ParsePolicy(config.Report.CompletionPolicy)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:     config,
		extractor:  extractor,
		model:      model,
		renderer:   renderer,
		storage:    storage,
		audit:      audit,
		recovery:   recovery.NewService(logger),
		completer:  completion.NewCompleter(config.Report.Placeholder, policy),
		normalizer: normalize.NewNormalizer(),
		validate:   validator.New(),
		logger:     logger,
	}, nil
}

// job is one report generation in flight
type job struct {
	id       string
	filename string
	kind     models.SourceKind
	language string
	upload   string
	text     string
	enhance  bool
	logger   arbor.ILogger
}

// Generate extracts text from the uploaded file and runs the pipeline
func (s *Service) Generate(ctx context.Context, req *models.ProcessRequest) (*models.Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, common.NewValidationError(fmt.Sprintf("invalid request: %v", err))
	}

	kind, ok := models.SourceKindForFile(req.OriginalFilename)
	if !ok {
		return nil, common.NewUnsupportedError("Unsupported file type")
	}

	j := s.newJob(req.OriginalFilename, kind)
	j.upload = req.SourcePath
	j.language = s.language(req.Language)
	if req.Enhance != nil {
		j.enhance = *req.Enhance
	}
	ctx = common.WithReportID(ctx, j.id)

	j.logger.Info().
		Str("filename", j.filename).
		Str("kind", string(kind)).
		Msg("Generating report")

	text, err := s.extractor.Extract(ctx, req.SourcePath, j.language)
	if err != nil {
		return nil, err
	}
	j.text = text

	return s.run(ctx, j)
}

// GenerateFromText runs the pipeline on text that needs no extraction
func (s *Service) GenerateFromText(ctx context.Context, text, originalFilename string) (*models.Report, error) {
	if strings.TrimSpace(originalFilename) == "" {
		originalFilename = textInputName
	}

	j := s.newJob(originalFilename, models.SourceKindText)
	j.text = text
	ctx = common.WithReportID(ctx, j.id)

	j.logger.Info().
		Str("filename", j.filename).
		Int("text_length", len(text)).
		Msg("Generating report from text")

	return s.run(ctx, j)
}

func (s *Service) newJob(filename string, kind models.SourceKind) *job {
	id := common.NewReportID()
	return &job{
		id:       id,
		filename: filename,
		kind:     kind,
		enhance:  s.config.LLM.EnhanceText,
		logger:   s.logger.WithCorrelationId(id),
	}
}

func (s *Service) run(ctx context.Context, j *job) (*models.Report, error) {
	start := time.Now()

	if j.enhance {
		j.text = s.enhanceText(ctx, j)
	}

	report := &models.Report{
		ID:               j.id,
		OriginalFilename: j.filename,
		SourceKind:       j.kind,
		Language:         j.language,
		UploadPath:       j.upload,
		CreatedAt:        start,
	}

	result, err := s.extract(ctx, j)
	if err != nil {
		return nil, err
	}
	report.Data = result.Data
	report.Strategy = result.Strategy
	report.Filled = result.Filled
	report.Degraded = result.Degraded
	if result.Degraded {
		report.DegradedReason = result.reason
	}

	req := interfaces.RenderRequest{
		ReportID:         j.id,
		OriginalFilename: j.filename,
		Data:             report.Data,
		CreatedAt:        start,
	}

	docxPath, err := s.renderer.Render(ctx, req, models.FormatDocx)
	if err != nil {
		j.logger.Error().Err(err).Msg("Report rendering failed")
		return nil, common.NewExternalError("report rendering failed", err)
	}
	report.DocxPath = docxPath

	pdfPath, err := s.renderer.Render(ctx, req, models.FormatPDF)
	if err != nil {
		j.logger.Warn().Err(err).Msg("PDF unavailable, DOCX kept")
		report.ConversionError = err.Error()
	} else {
		report.PDFPath = pdfPath
		report.PDFAvailable = true
	}

	if err := s.storage.SaveReport(ctx, report); err != nil {
		return nil, common.NewInternalError("failed to save report", err)
	}

	j.logger.Info().
		Str("strategy", report.Strategy).
		Int("filled", len(report.Filled)).
		Bool("degraded", report.Degraded).
		Bool("pdf", report.PDFAvailable).
		Dur("duration", time.Since(start)).
		Msg("Report generated")

	return report, nil
}

// enhanceText runs the refinement pre-pass; any failure keeps the original
func (s *Service) enhanceText(ctx context.Context, j *job) string {
	if strings.TrimSpace(j.text) == "" {
		return j.text
	}

	prompt, err := schemas.EnhancePrompt(j.text)
	if err != nil {
		j.logger.Warn().Err(err).Msg("Enhance prompt failed, using original text")
		return j.text
	}

	enhanced, err := s.model.Generate(ctx, prompt)
	if err != nil {
		j.logger.Warn().Err(err).Msg("Text enhancement failed, using original text")
		return j.text
	}
	enhanced = strings.TrimSpace(enhanced)
	if enhanced == "" {
		return j.text
	}

	j.logger.Debug().
		Int("original_length", len(j.text)).
		Int("enhanced_length", len(enhanced)).
		Msg("Text enhanced")
	return enhanced
}

// outcome is a ReconcileResult plus why it was degraded
type outcome struct {
	interfaces.ReconcileResult
	reason string
}

// extract asks the model for the canonical record and reconciles the reply.
// With on_failure=degrade a failed call yields an all-placeholder record.
func (s *Service) extract(ctx context.Context, j *job) (*outcome, error) {
	prompt, err := schemas.ExtractionPrompt(j.text, s.completer.Placeholder())
	if err != nil {
		return nil, common.NewInternalError("failed to build extraction prompt", err)
	}

	raw, err := s.model.GenerateJSON(ctx, prompt)
	if err != nil {
		if s.config.LLM.OnFailure == OnFailureFail {
			j.logger.Error().Err(err).Msg("Model call failed")
			if common.ErrorTypeOf(err) == common.ErrorTypeInternal {
				return nil, common.NewUnavailableError("report extraction failed", err)
			}
			return nil, err
		}

		j.logger.Warn().Err(err).Msg("Model call failed, continuing with placeholder record")
		out := s.reconcileRecord(models.NewRecord(), "")
		out.Degraded = true
		out.reason = reasonFor(err)
		return out, nil
	}

	return s.reconcile(raw), nil
}

// Reconcile turns a raw completion into a complete flat record
func (s *Service) Reconcile(raw string) *interfaces.ReconcileResult {
	out := s.reconcile(raw)
	return &out.ReconcileResult
}

func (s *Service) reconcile(raw string) *outcome {
	result := s.recovery.Recover(raw)
	rec := result.Record
	strategy := result.Strategy

	if text, wrapped := recovery.IsRawWrapped(rec); wrapped {
		if salvaged, ok := s.recovery.Salvage(text); ok {
			if s.config.Report.MergeOnRetry {
				rec.Merge(salvaged)
			} else {
				rec = salvaged
			}
			strategy = recovery.StrategySalvage
		}
	}

	out := s.reconcileRecord(rec, strategy)
	if strategy == recovery.StrategyRaw {
		out.Degraded = true
		out.reason = "model reply could not be parsed"
	}
	return out
}

// reconcileRecord completes and normalizes rec in place
func (s *Service) reconcileRecord(rec *models.Record, strategy string) *outcome {
	filled := s.completer.Complete(rec)
	data := s.normalizer.Normalize(rec)
	return &outcome{
		ReconcileResult: interfaces.ReconcileResult{
			Data:     data,
			Strategy: strategy,
			Filled:   filled,
		},
	}
}

func reasonFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "model call timed out"
	}
	if errors.Is(err, common.ErrModelUnavailable) {
		return "model unavailable"
	}
	return "model call failed"
}

func (s *Service) language(requested string) string {
	if requested == "" || !s.config.IsSupportedLanguage(requested) {
		return s.config.Extraction.DefaultLanguage
	}
	return strings.ToLower(requested)
}

// GetReport returns stored report metadata
func (s *Service) GetReport(ctx context.Context, id string) (*models.Report, error) {
	if !common.IsValidReportID(id) {
		return nil, common.NewNotFoundError("Report does not exist", common.ErrReportNotFound)
	}
	return s.storage.GetReport(ctx, id)
}

// ListReports returns recent reports, newest first
func (s *Service) ListReports(ctx context.Context, opts *interfaces.ListOptions) ([]*models.Report, error) {
	return s.storage.ListReports(ctx, opts)
}

// ArtifactPath resolves the file to serve for a report and format
func (s *Service) ArtifactPath(ctx context.Context, id string, format models.ReportFormat) (string, error) {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return "", err
	}

	path := report.ArtifactPath(format)
	if path == "" {
		return "", common.NewNotFoundError(fmt.Sprintf("no %s available for report", format), common.ErrReportNotFound)
	}
	if _, err := os.Stat(path); err != nil {
		return "", common.NewNotFoundError("Report does not exist", common.ErrReportNotFound)
	}
	return path, nil
}

// DeleteReport removes artifacts, upload, audit entries and metadata
func (s *Service) DeleteReport(ctx context.Context, id string) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}

	var errs []error
	if err := s.renderer.Remove(id); err != nil {
		errs = append(errs, err)
	}
	if report.UploadPath != "" {
		if err := os.Remove(report.UploadPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if s.audit != nil {
		if err := s.audit.DeleteModelCalls(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.storage.DeleteReport(ctx, id); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return common.NewInternalError("failed to delete report", err)
	}

	s.logger.Debug().Str("report_id", id).Msg("Report deleted")
	return nil
}
