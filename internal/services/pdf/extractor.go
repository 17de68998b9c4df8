package pdf

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"golang.org/x/text/encoding/charmap"

	"github.com/ternarybob/relatio/internal/interfaces"
)

// Extractor implements interfaces.PDFExtractor using pdfcpu.
// Only the text layer is read; scanned PDFs yield no text.
type Extractor struct {
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor
func NewExtractor(logger arbor.ILogger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractText returns the text of every page, pages separated by blank lines
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	pdfCtx, err := readContext(path)
	if err != nil {
		return "", err
	}

	var pages []string
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		r, err := pdfcpu.ExtractPageContent(pdfCtx, pageNr)
		if err != nil || r == nil {
			e.logger.Debug().Err(err).Int("page", pageNr).Msg("No content stream for page")
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := textFromContentStream(data); text != "" {
			pages = append(pages, text)
		}
	}

	e.logger.Debug().
		Str("path", path).
		Int("pages", pdfCtx.PageCount).
		Int("text_pages", len(pages)).
		Msg("Extracted PDF text")

	return strings.Join(pages, "\n\n"), nil
}

// Validate checks that path holds a well-formed PDF
func Validate(path string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("invalid PDF %s: %w", path, err)
	}
	return nil
}

func readContext(path string) (*model.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return pdfCtx, nil
}

// textFromContentStream collects the operands of text-showing operators.
// Moving to a different baseline starts a new line.
func textFromContentStream(data []byte) string {
	var (
		sb       strings.Builder
		operands []string
		lastY    string
		freshBT  bool // no positioning since BT, so offsets are absolute
	)

	endsWith := func(c byte) bool {
		s := sb.String()
		return len(s) > 0 && s[len(s)-1] == c
	}
	newline := func() {
		if sb.Len() > 0 && !endsWith('\n') {
			sb.WriteByte('\n')
		}
	}
	space := func() {
		if sb.Len() > 0 && !endsWith('\n') && !endsWith(' ') {
			sb.WriteByte(' ')
		}
	}
	moveTo := func(y string, absolute bool) {
		switch {
		case absolute && lastY != "" && y != lastY:
			newline()
		case !absolute && y != "" && parseNumber(y) != 0:
			newline()
		default:
			space()
		}
		if absolute {
			lastY = y
		}
	}
	show := func() {
		for _, op := range operands {
			if strings.HasPrefix(op, "\x00") {
				sb.WriteString(op[1:])
			} else if parseNumber(op) < -200 {
				// wide negative kerning in TJ arrays separates words
				space()
			}
		}
	}

	sc := &streamScanner{data: data}
	for {
		tok, kind, ok := sc.next()
		if !ok {
			break
		}
		if kind != tokenOperator {
			if kind == tokenString || kind == tokenNumber {
				operands = append(operands, tok)
			}
			continue
		}

		switch tok {
		case "BT":
			freshBT = true
		case "Td", "TD":
			if n := len(operands); n >= 2 {
				moveTo(operands[n-1], freshBT)
			}
			freshBT = false
		case "Tm":
			if n := len(operands); n >= 6 {
				moveTo(operands[n-1], true)
			}
			freshBT = false
		case "T*":
			newline()
		case "Tj", "TJ":
			show()
		case "'", "\"":
			newline()
			show()
		}
		operands = operands[:0]
	}

	lines := strings.Split(sb.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

type tokenKind int

const (
	tokenOperator tokenKind = iota
	tokenString
	tokenNumber
	tokenName
	tokenArrayOpen
	tokenArrayClose
)

// streamScanner is a minimal PDF content stream tokenizer. Decoded string
// operands are returned with a leading NUL so they cannot be mistaken for
// operators.
type streamScanner struct {
	data []byte
	pos  int
}

func (s *streamScanner) next() (string, tokenKind, bool) {
	s.skipSpace()
	if s.pos >= len(s.data) {
		return "", 0, false
	}

	c := s.data[s.pos]
	switch {
	case c == '(':
		return "\x00" + decodeCP1252(s.literalString()), tokenString, true
	case c == '<' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '<':
		s.pos += 2
		return "<<", tokenOperator, true
	case c == '>' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '>':
		s.pos += 2
		return ">>", tokenOperator, true
	case c == '<':
		return "\x00" + decodeCP1252(s.hexString()), tokenString, true
	case c == '[':
		s.pos++
		return "[", tokenArrayOpen, true
	case c == ']':
		s.pos++
		return "]", tokenArrayClose, true
	case c == '/':
		start := s.pos
		s.pos++
		for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) {
			s.pos++
		}
		return string(s.data[start:s.pos]), tokenName, true
	}

	start := s.pos
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
	}
	tok := string(s.data[start:s.pos])
	if _, err := strconv.ParseFloat(tok, 64); err == nil {
		return tok, tokenNumber, true
	}
	return tok, tokenOperator, true
}

func (s *streamScanner) skipSpace() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			s.pos++
		case '%':
			for s.pos < len(s.data) && s.data[s.pos] != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

// literalString reads a balanced (...) string with escapes
func (s *streamScanner) literalString() []byte {
	s.pos++ // (
	depth := 1
	var out []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return out
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '7'; i++ {
						val = val*8 + int(s.data[s.pos]-'0')
						s.pos++
					}
					out = append(out, byte(val))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (s *streamScanner) hexString() []byte {
	s.pos++ // <
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		v, _ := strconv.ParseUint(string(digits[i:i+2]), 16, 8)
		out = append(out, byte(v))
	}
	return out
}

func isDelimiter(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// decodeCP1252 maps single-byte text to UTF-8
func decodeCP1252(b []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
