// Package normalize flattens completed records into template-safe strings.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ternarybob/relatio/internal/models"
	"github.com/ternarybob/relatio/internal/schemas"
)

const listSeparator = ", "

// Normalizer renders every value of a record as flat text
type Normalizer struct{}

// NewNormalizer creates a normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize replaces every value in rec with its flat string rendering and
// returns the flattened form in record order
func (n *Normalizer) Normalize(rec *models.Record) models.FlatRecord {
	r := newRenderer()
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		rec.Set(key, models.String(r.field(key, v)))
	}
	return rec.Flatten()
}

// Field renders a single value using the rules for key
func (n *Normalizer) Field(key string, v models.Value) string {
	return newRenderer().field(key, v)
}

// renderer holds a caser, which is stateful and must not be shared
type renderer struct {
	caser cases.Caser
}

func newRenderer() *renderer {
	return &renderer{caser: cases.Title(language.English, cases.NoLower)}
}

func (r *renderer) field(key string, v models.Value) string {
	var out string
	switch key {
	case schemas.FieldImagingFindings:
		out = r.findings(v)
	case schemas.FieldDiagnosisSummary, schemas.FieldComment:
		out = r.joined(v)
	default:
		out = r.generic(v)
	}
	return sanitize(out)
}

// findings handles the organ mapping, list and scalar shapes
func (r *renderer) findings(v models.Value) string {
	switch v.Kind() {
	case models.KindMap:
		var blocks []string
		v.Range(func(organ string, detail models.Value) bool {
			if block := r.organBlock(organ, detail); block != "" {
				blocks = append(blocks, block)
			}
			return true
		})
		return strings.Join(blocks, "\n")

	case models.KindList:
		var parts []string
		for _, item := range v.Items() {
			var s string
			if item.Kind() == models.KindMap {
				s = r.pairs(item)
			} else {
				s = r.scalar(item)
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, listSeparator)
	}

	return r.scalar(v)
}

func (r *renderer) organBlock(organ string, detail models.Value) string {
	header := r.label(organ)

	switch detail.Kind() {
	case models.KindNull:
		return ""
	case models.KindMap:
		var lines []string
		detail.Range(func(attr string, val models.Value) bool {
			if val.IsNull() {
				return true
			}
			lines = append(lines, "  "+r.label(attr)+": "+r.inline(val))
			return true
		})
		// an organ whose attributes are all null gets no header
		if len(lines) == 0 {
			return ""
		}
		return header + ":\n" + strings.Join(lines, "\n")
	default:
		return header + ": " + r.inline(detail)
	}
}

// pairs renders a mapping as comma-joined "Key: value" entries
func (r *renderer) pairs(v models.Value) string {
	var parts []string
	v.Range(func(key string, val models.Value) bool {
		if val.IsNull() {
			return true
		}
		parts = append(parts, r.label(key)+": "+r.inline(val))
		return true
	})
	return strings.Join(parts, listSeparator)
}

// inline renders any value on a single logical line
func (r *renderer) inline(v models.Value) string {
	switch v.Kind() {
	case models.KindList:
		var parts []string
		for _, item := range v.Items() {
			if s := r.inline(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, listSeparator)
	case models.KindMap:
		return r.pairs(v)
	}
	return r.scalar(v)
}

func (r *renderer) joined(v models.Value) string {
	if v.Kind() == models.KindList {
		return r.inline(v)
	}
	return r.generic(v)
}

func (r *renderer) generic(v models.Value) string {
	if v.IsScalar() {
		return r.scalar(v)
	}
	return r.inline(v)
}

func (r *renderer) scalar(v models.Value) string {
	switch v.Kind() {
	case models.KindBool:
		if v.BoolValue() {
			return "Yes"
		}
		return "No"
	case models.KindNull:
		return ""
	}
	return strings.TrimSpace(v.Text())
}

// label turns a snake_case key into a capitalised heading
func (r *renderer) label(key string) string {
	key = strings.TrimSpace(strings.ReplaceAll(key, "_", " "))
	return r.caser.String(key)
}

// sanitize normalises line endings and drops control characters other than
// newline; tabs become spaces
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var sb strings.Builder
	sb.Grow(len(s))
	for _, c := range s {
		switch {
		case c == '\n':
			sb.WriteRune(c)
		case c == '\t':
			sb.WriteRune(' ')
		case c < 0x20 || c == 0x7f || (c >= 0x80 && c < 0xa0):
			// dropped
		default:
			sb.WriteRune(c)
		}
	}
	return strings.TrimSpace(sb.String())
}
