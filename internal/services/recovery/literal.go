package recovery

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/ternarybob/relatio/internal/models"
)

// parseLiteral reads one literal expression from the start of text.
// It accepts JSON plus the looser syntax models emit when they imitate
// scripting-language dict output: single-quoted strings, trailing commas,
// True/False/None, tuples and non-string keys. Anything after the first
// complete value is ignored.
func parseLiteral(text string) (models.Value, error) {
	p := &literalParser{src: []rune(text)}
	p.skipSpace()
	return p.parseValue()
}

type literalParser struct {
	src   []rune
	pos   int
	depth int
}

func (p *literalParser) eof() bool { return p.pos >= len(p.src) }

func (p *literalParser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *literalParser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("literal parse error at %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for !p.eof() {
		c := p.src[p.pos]
		if c == '#' {
			// comment to end of line
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		if !unicode.IsSpace(c) {
			return
		}
		p.pos++
	}
}

func (p *literalParser) parseValue() (models.Value, error) {
	p.skipSpace()
	if p.eof() {
		return models.Value{}, p.errorf("unexpected end of input")
	}

	c := p.peek()
	switch {
	case c == '{':
		return p.parseDict()
	case c == '[':
		return p.parseSequence('[', ']')
	case c == '(':
		return p.parseSequence('(', ')')
	case c == '"' || c == '\'':
		s, err := p.parseString()
		if err != nil {
			return models.Value{}, err
		}
		return models.String(s), nil
	case c == '-' || c == '+' || c == '.' || unicode.IsDigit(c):
		return p.parseNumber()
	case unicode.IsLetter(c) || c == '_':
		return p.parseKeyword()
	default:
		return models.Value{}, p.errorf("unexpected character %q", c)
	}
}

func (p *literalParser) enter() error {
	p.depth++
	if p.depth > models.MaxNestingDepth {
		return p.errorf("nesting deeper than %d", models.MaxNestingDepth)
	}
	return nil
}

func (p *literalParser) parseDict() (models.Value, error) {
	if err := p.enter(); err != nil {
		return models.Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // {
	out := models.NewMap()
	for {
		p.skipSpace()
		if p.eof() {
			return models.Value{}, p.errorf("unterminated mapping")
		}
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}

		key, err := p.parseValue()
		if err != nil {
			return models.Value{}, err
		}
		if !key.IsScalar() {
			return models.Value{}, p.errorf("mapping key must be a scalar")
		}

		p.skipSpace()
		if p.peek() != ':' {
			return models.Value{}, p.errorf("expected ':' after mapping key")
		}
		p.pos++

		val, err := p.parseValue()
		if err != nil {
			return models.Value{}, err
		}
		out.Set(keyText(key), val)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return out, nil
		default:
			return models.Value{}, p.errorf("expected ',' or '}' in mapping")
		}
	}
}

func (p *literalParser) parseSequence(open, close rune) (models.Value, error) {
	if err := p.enter(); err != nil {
		return models.Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // open
	items := []models.Value{}
	for {
		p.skipSpace()
		if p.eof() {
			return models.Value{}, p.errorf("unterminated %q sequence", open)
		}
		if p.peek() == close {
			p.pos++
			return models.List(items...), nil
		}

		item, err := p.parseValue()
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, item)

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case close:
			p.pos++
			return models.List(items...), nil
		default:
			return models.Value{}, p.errorf("expected ',' or %q in sequence", close)
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	quote := p.src[p.pos]
	p.pos++

	var sb strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case quote:
			return sb.String(), nil
		case '\\':
			if p.eof() {
				return "", p.errorf("unterminated escape")
			}
			esc := p.src[p.pos]
			p.pos++
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case 'b':
				sb.WriteRune('\b')
			case 'f':
				sb.WriteRune('\f')
			case '0':
				sb.WriteRune(0)
			case 'u':
				r, err := p.parseHexRune(4)
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			case 'x':
				r, err := p.parseHexRune(2)
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			case '\n':
				// line continuation
			default:
				// \\, \', \" and unknown escapes keep the escaped character
				sb.WriteRune(esc)
			}
		default:
			sb.WriteRune(c)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *literalParser) parseHexRune(n int) (rune, error) {
	if p.pos+n > len(p.src) {
		return 0, p.errorf("short hex escape")
	}
	v, err := strconv.ParseUint(string(p.src[p.pos:p.pos+n]), 16, 32)
	if err != nil {
		return 0, p.errorf("invalid hex escape")
	}
	p.pos += n
	return rune(v), nil
}

func (p *literalParser) parseNumber() (models.Value, error) {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if unicode.IsDigit(c) || strings.ContainsRune("+-.eE_", c) {
			p.pos++
			continue
		}
		break
	}

	literal := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
	literal = strings.TrimPrefix(literal, "+")
	if _, err := strconv.ParseFloat(literal, 64); err != nil {
		return models.Value{}, p.errorf("invalid number %q", literal)
	}
	if strings.HasPrefix(literal, ".") {
		literal = "0" + literal
	} else if strings.HasPrefix(literal, "-.") {
		literal = "-0" + literal[1:]
	}
	return models.Number(literal), nil
}

func (p *literalParser) parseKeyword() (models.Value, error) {
	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
		p.pos++
	}

	word := string(p.src[start:p.pos])
	switch word {
	case "True", "true":
		return models.Bool(true), nil
	case "False", "false":
		return models.Bool(false), nil
	case "None", "null", "nil":
		return models.Null(), nil
	}

	// string prefixes such as u'...' or r"..."
	if (word == "u" || word == "r" || word == "U" || word == "R") && (p.peek() == '\'' || p.peek() == '"') {
		s, err := p.parseString()
		if err != nil {
			return models.Value{}, err
		}
		return models.String(s), nil
	}

	p.pos = start
	return models.Value{}, p.errorf("unknown identifier %q", word)
}

// keyText renders a scalar mapping key the way a dict key prints
func keyText(v models.Value) string {
	switch v.Kind() {
	case models.KindBool:
		if v.BoolValue() {
			return "True"
		}
		return "False"
	case models.KindNull:
		return "None"
	default:
		return v.Text()
	}
}
