// Package extraction turns uploaded files into plain text.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"golang.org/x/text/encoding/charmap"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/docx"
	"github.com/ternarybob/relatio/internal/interfaces"
	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

// Placeholders returned when a recogniser ran but found nothing
const (
	NoTextRecognized   = "No text recognized"
	NoSpeechRecognized = "No speech recognized"
)

// maxInlineBytes is the largest payload sent inline to a multimodal model
const maxInlineBytes = 20 << 20

var mimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".wav":  "audio/wav",
	".mp3":  "audio/mp3",
}

// Service implements interfaces.TextExtractor
type Service struct {
	model  interfaces.ModelService
	pdf    interfaces.PDFExtractor
	config *common.ExtractionConfig
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TextExtractor = (*Service)(nil)

// NewService creates the extraction service. Images and audio are
// transcribed by the model service.
func NewService(model interfaces.ModelService, pdf interfaces.PDFExtractor, config *common.ExtractionConfig, logger arbor.ILogger) *Service {
	return &Service{
		model:  model,
		pdf:    pdf,
		config: config,
		logger: logger,
	}
}

// Extract reads path according to its extension. Engine failures are
// logged and yield an empty string.
func (s *Service) Extract(ctx context.Context, path, language string) (string, error) {
	kind, ok := models.SourceKindForFile(path)
	if !ok {
		return "", common.NewUnsupportedError(fmt.Sprintf("no extractor for %q", filepath.Ext(path)))
	}

	var (
		text string
		err  error
	)
	switch kind {
	case models.SourceKindText:
		text, err = readTextFile(path)
	case models.SourceKindPDF:
		text, err = s.pdf.ExtractText(ctx, path)
	case models.SourceKindDocx:
		text, err = readDocx(path)
	case models.SourceKindImage:
		text, err = s.transcribe(ctx, path, "image", "")
		text = orPlaceholder(text, err, NoTextRecognized)
	case models.SourceKindAudio:
		text, err = s.transcribe(ctx, path, "audio", s.language(language))
		text = orPlaceholder(text, err, NoSpeechRecognized)
	}

	if err != nil {
		s.logger.Error().
			Str("path", filepath.Base(path)).
			Str("kind", string(kind)).
			Err(err).
			Msg("Text extraction failed")
		return "", nil
	}

	s.logger.Debug().
		Str("path", filepath.Base(path)).
		Str("kind", string(kind)).
		Int("text_length", len(text)).
		Msg("Text extracted")

	return text, nil
}

// language returns a supported locale, falling back to the default
func (s *Service) language(requested string) string {
	requested = strings.ToLower(strings.TrimSpace(requested))
	for _, l := range s.config.Languages {
		if l == requested {
			return l
		}
	}
	if requested != "" {
		s.logger.Warn().Str("language", requested).Msg("Unsupported speech language, using default")
	}
	return s.config.DefaultLanguage
}

func (s *Service) transcribe(ctx context.Context, path, kind, language string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > maxInlineBytes {
		return "", fmt.Errorf("%s is %d bytes, above the %d byte inline limit", filepath.Base(path), info.Size(), maxInlineBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	prompt, err := schemas.TranscribePrompt(kind, language)
	if err != nil {
		return "", err
	}

	media := interfaces.MediaInput{
		Data:     data,
		MIMEType: mimeTypes[strings.ToLower(filepath.Ext(path))],
	}
	text, err := s.model.Transcribe(ctx, media, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// orPlaceholder substitutes the "not recognized" text for a successful
// but empty recognition
func orPlaceholder(text string, err error, placeholder string) string {
	if err == nil && text == "" {
		return placeholder
	}
	return text
}

func readTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	data = trimBOM(data)
	if utf8.Valid(data) {
		return string(data), nil
	}

	// legacy Windows encodings
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("text file is neither UTF-8 nor Windows-1252: %w", err)
	}
	return string(decoded), nil
}

func trimBOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

func readDocx(path string) (string, error) {
	paragraphs, err := docx.ReadFile(path)
	if err != nil {
		return "", err
	}
	return docx.PlainText(paragraphs), nil
}
