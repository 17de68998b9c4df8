// Package recovery turns a raw model completion into a best-effort record.
// Parsing strategies are tried in order and the first one producing a
// mapping wins; when none does, the raw text is wrapped under the
// raw_response key so downstream stages always receive a mapping.
package recovery

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

// Strategy names reported by Recover and Salvage
const (
	StrategyDirect   = "direct"
	StrategyEmbedded = "embedded"
	StrategyLiteral  = "literal"
	StrategyYAML     = "yaml"
	StrategySalvage  = "salvage"
	StrategyRaw      = "raw_response"
)

// maxScanBytes caps how much of a completion the parsing strategies read.
// The raw_response wrapper still keeps the whole text.
const maxScanBytes = 1 << 20

// Parser attempts to read a mapping out of text; ok is false when it cannot
type Parser func(text string) (rec *models.Record, ok bool)

// Strategy is one named step of the fallback chain
type Strategy struct {
	Name  string
	Parse Parser
}

// Result is the outcome of Recover
type Result struct {
	Record   *models.Record
	Strategy string
	// Degraded is true when nothing could be parsed and the record holds
	// only the raw_response wrapper
	Degraded bool
}

// Service runs the recovery chain
type Service struct {
	logger     arbor.ILogger
	strategies []Strategy
}

// NewService creates a recovery service with the default strategy chain
func NewService(logger arbor.ILogger) *Service {
	if logger == nil {
		logger = arbor.NewLogger()
	}
	return &Service{
		logger:     logger,
		strategies: DefaultStrategies(),
	}
}

// DefaultStrategies returns the ordered chain used by NewService:
// strict parse of the whole text, strict parse of the embedded candidate,
// permissive literal parse of the candidate, YAML flow mapping of the
// candidate.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyDirect, Parse: parseDirect},
		{Name: StrategyEmbedded, Parse: onCandidate(parseStrict)},
		{Name: StrategyLiteral, Parse: onCandidate(parseLiteralRecord)},
		{Name: StrategyYAML, Parse: onCandidate(parseYAMLRecord)},
	}
}

// Strategies returns the configured chain in order
func (s *Service) Strategies() []Strategy {
	out := make([]Strategy, len(s.strategies))
	copy(out, s.strategies)
	return out
}

// Recover never fails: it returns the first mapping any strategy yields,
// or a single-key raw_response record.
func (s *Service) Recover(raw string) Result {
	text := scanWindow(raw)
	for _, strategy := range s.strategies {
		rec, ok := s.attempt(strategy, text)
		if !ok {
			continue
		}
		s.logger.Debug().
			Str("strategy", strategy.Name).
			Int("fields", rec.Len()).
			Msg("Recovered structured record from completion")
		return Result{Record: rec, Strategy: strategy.Name}
	}

	s.logger.Warn().
		Int("completion_length", len(raw)).
		Msg("No structured data recovered; wrapping raw completion")

	return Result{Record: WrapRaw(raw), Strategy: StrategyRaw, Degraded: true}
}

// attempt runs one strategy, converting a panic into a miss
func (s *Service) attempt(strategy Strategy, raw string) (rec *models.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().
				Str("strategy", strategy.Name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Recovery strategy panicked")
			rec, ok = nil, false
		}
	}()
	rec, ok = strategy.Parse(raw)
	if ok && rec == nil {
		return nil, false
	}
	return rec, ok
}

// Salvage searches every balanced {...} span of raw for a parsable mapping
// and merges what it finds, earlier spans winning on key conflicts. It is
// used to retry a degraded record before completion.
func (s *Service) Salvage(raw string) (*models.Record, bool) {
	out := models.NewRecord()
	found := false

	for _, span := range balancedSpans(scanWindow(raw)) {
		rec, ok := s.attempt(Strategy{Name: StrategySalvage, Parse: parseSpan}, span)
		if !ok {
			continue
		}
		found = true
		out.Merge(rec)
	}

	if found {
		s.logger.Debug().Int("fields", out.Len()).Msg("Salvaged fields from raw completion")
	}
	return out, found
}

// scanWindow returns the prefix of raw the strategies may read
func scanWindow(raw string) string {
	if len(raw) <= maxScanBytes {
		return raw
	}
	return raw[:maxScanBytes]
}

// WrapRaw builds the degraded record holding the whole completion
func WrapRaw(raw string) *models.Record {
	rec := models.NewRecord()
	rec.Set(schemas.ReservedRawResponseKey, models.String(raw))
	return rec
}

// IsRawWrapped reports whether rec carries the raw_response sentinel and
// raw holds its text
func IsRawWrapped(rec *models.Record) (raw string, ok bool) {
	if rec == nil {
		return "", false
	}
	v, ok := rec.Get(schemas.ReservedRawResponseKey)
	if !ok || v.Kind() != models.KindString {
		return "", false
	}
	return v.Text(), true
}

// EmbeddedCandidate returns the substring most likely to begin a JSON
// object. A brace that opens a line is preferred over the first brace
// anywhere, since prose before the answer may itself contain braces.
func EmbeddedCandidate(text string) (string, bool) {
	if i := strings.Index(text, "\n{"); i >= 0 {
		return text[i+1:], true
	}
	if i := strings.Index(text, "{"); i >= 0 {
		return text[i:], true
	}
	return "", false
}

var fencePattern = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*\\s*\\n?(.*?)\\n?\\s*```\\s*$")

// cleanMarkdownFences strips a surrounding ```json ... ``` block
func cleanMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if matches := fencePattern.FindStringSubmatch(s); len(matches) > 1 {
		s = matches[1]
	}
	return strings.TrimSpace(s)
}

func parseDirect(text string) (*models.Record, bool) {
	return parseStrict(cleanMarkdownFences(text))
}

func parseStrict(text string) (*models.Record, bool) {
	v, err := models.ParseJSON([]byte(strings.TrimSpace(text)))
	if err != nil {
		return nil, false
	}
	return models.RecordFromValue(v)
}

func parseLiteralRecord(text string) (*models.Record, bool) {
	v, err := parseLiteral(text)
	if err != nil {
		return nil, false
	}
	return models.RecordFromValue(v)
}

func parseYAMLRecord(text string) (*models.Record, bool) {
	span, ok := firstBalancedSpan(text)
	if !ok {
		return nil, false
	}
	v, err := parseFlowMapping(span)
	if err != nil {
		return nil, false
	}
	return models.RecordFromValue(v)
}

func parseSpan(text string) (*models.Record, bool) {
	if rec, ok := parseStrict(text); ok {
		return rec, true
	}
	return parseLiteralRecord(text)
}

// onCandidate applies p to the embedded candidate of the text
func onCandidate(p Parser) Parser {
	return func(text string) (*models.Record, bool) {
		candidate, ok := EmbeddedCandidate(cleanMarkdownFences(text))
		if !ok {
			return nil, false
		}
		return p(candidate)
	}
}

// balancedSpans returns each outermost {...} span in text, found in a
// single pass. Quotes are honoured only inside braces so braces within
// values do not break the count; a newline ends any open quote, and a
// single quote opens a string only where a key or value may begin, so an
// apostrophe in prose cannot swallow the rest of the completion.
func balancedSpans(text string) []string {
	type span struct{ start, end int }

	var (
		open    []int
		closed  []span
		quote   byte
		escaped bool
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case c == '\n':
				quote, escaped = 0, false
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"':
			if len(open) > 0 {
				quote = c
			}
		case '\'':
			if len(open) > 0 && opensString(text, i) {
				quote = c
			}
		case '{':
			open = append(open, i)
		case '}':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			open = open[:len(open)-1]
			// spans closed earlier inside this one are no longer outermost
			for len(closed) > 0 && closed[len(closed)-1].start > start {
				closed = closed[:len(closed)-1]
			}
			closed = append(closed, span{start: start, end: i})
		}
	}

	spans := make([]string, len(closed))
	for i, sp := range closed {
		spans[i] = text[sp.start : sp.end+1]
	}
	return spans
}

// opensString reports whether the quote at i follows a delimiter after
// which a key or value starts
func opensString(text string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch text[j] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[', '(', ',', ':':
			return true
		default:
			return false
		}
	}
	return false
}

func firstBalancedSpan(text string) (string, bool) {
	spans := balancedSpans(text)
	if len(spans) == 0 {
		return "", false
	}
	return spans[0], true
}
