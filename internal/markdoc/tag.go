package markdoc

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenOpen tokenKind = iota
	tokenClose
	tokenSelfClosing
	tokenValue
	tokenAnnotation
	tokenInvalid
)

// tagToken is one parsed `{% ... %}` occurrence.
type tagToken struct {
	kind       tokenKind
	name       string
	attributes map[string]any
	value      any
	start, end int
	err        *Error
}

// findTags returns the [start, end) spans of every `{% ... %}` in s.
// A `%}` inside a quoted string does not terminate the tag.
func findTags(s string) [][2]int {
	var spans [][2]int
	for i := 0; i < len(s); {
		j := strings.Index(s[i:], "{%")
		if j < 0 {
			break
		}
		start := i + j
		end := tagEnd(s, start+2)
		if end < 0 {
			break
		}
		spans = append(spans, [2]int{start, end})
		i = end
	}
	return spans
}

func tagEnd(s string, from int) int {
	inString := false
	for i := from; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\n' && !inString && i+1 < len(s) && s[i+1] == '\n':
			// Tags never span a blank line.
			return -1
		case inString && c == '\\':
			i++
		case c == '"':
			inString = !inString
		case !inString && c == '%' && i+1 < len(s) && s[i+1] == '}':
			return i + 2
		}
	}
	return -1
}

// parseTag parses raw (including the `{%` and `%}` delimiters) found at the
// absolute source offset.
func parseTag(raw string, offset int) tagToken {
	tok := tagToken{start: offset, end: offset + len(raw), attributes: map[string]any{}}
	inner := raw[2 : len(raw)-2]

	trimmed := strings.TrimRight(inner, " \t\r\n")
	if strings.HasSuffix(trimmed, "/") {
		tok.kind = tokenSelfClosing
		inner = trimmed[:len(trimmed)-1]
	}

	sc := &scanner{src: inner, base: offset + 2}
	sc.skipSpace()
	if sc.eof() {
		return sc.fail(tok, "Expected tag content")
	}

	switch sc.peek() {
	case '/':
		if tok.kind == tokenSelfClosing {
			return sc.fail(tok, "Closing tag cannot be self-closing")
		}
		sc.pos++
		tok.kind = tokenClose
		tok.name = sc.ident()
		if tok.name == "" {
			return sc.fail(tok, "Expected tag name")
		}
		sc.skipSpace()
		if !sc.eof() {
			return sc.fail(tok, fmt.Sprintf("Unexpected %q in closing tag", sc.peek()))
		}
		return tok
	case '$':
		return sc.finishValue(tok)
	case '.', '#':
		tok.kind = tokenAnnotation
		if err := sc.attributes(tok.attributes, false); err != nil {
			tok.kind, tok.err = tokenInvalid, err
		}
		return tok
	}

	save := sc.pos
	name := sc.ident()
	if name == "" {
		return sc.fail(tok, fmt.Sprintf("Expected tag name but %q found", sc.peek()))
	}
	switch {
	case !sc.eof() && sc.peek() == '(':
		sc.pos = save
		return sc.finishValue(tok)
	case !sc.eof() && sc.peek() == '=':
		sc.pos = save
		tok.kind = tokenAnnotation
		if err := sc.attributes(tok.attributes, false); err != nil {
			tok.kind, tok.err = tokenInvalid, err
		}
		return tok
	}

	if tok.kind != tokenSelfClosing {
		tok.kind = tokenOpen
	}
	tok.name = name
	if err := sc.attributes(tok.attributes, true); err != nil {
		tok.kind, tok.err = tokenInvalid, err
	}
	return tok
}

type scanner struct {
	src  string
	pos  int
	base int
}

func (s *scanner) eof() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte { return s.src[s.pos] }

func (s *scanner) skipSpace() {
	for !s.eof() && strings.IndexByte(" \t\r\n", s.peek()) >= 0 {
		s.pos++
	}
}

func (s *scanner) errorf(format string, args ...any) *Error {
	at := s.base + s.pos
	return &Error{
		ID:       "syntax-error",
		Level:    LevelCritical,
		Message:  fmt.Sprintf(format, args...),
		Location: &Location{Start: Position{Offset: at}, End: Position{Offset: at + 1}},
	}
}

func (s *scanner) fail(tok tagToken, msg string) tagToken {
	tok.kind = tokenInvalid
	tok.err = s.errorf("%s", msg)
	return tok
}

func (s *scanner) finishValue(tok tagToken) tagToken {
	v, err := s.value()
	if err != nil {
		tok.kind, tok.err = tokenInvalid, err
		return tok
	}
	s.skipSpace()
	if !s.eof() {
		return s.fail(tok, fmt.Sprintf("Expected \"%%}\" but %q found", s.peek()))
	}
	if tok.kind == tokenSelfClosing {
		return s.fail(tok, "Interpolation cannot be self-closing")
	}
	tok.kind = tokenValue
	tok.value = v
	return tok
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func (s *scanner) ident() string {
	if s.eof() || !isIdentStart(s.peek()) {
		return ""
	}
	start := s.pos
	for !s.eof() && isIdentPart(s.peek()) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// attributes parses `key=value`, `#id`, `.class` and, when allowed, one
// leading positional value stored as the "primary" attribute.
func (s *scanner) attributes(into map[string]any, allowPrimary bool) *Error {
	for {
		s.skipSpace()
		if s.eof() {
			return nil
		}
		switch s.peek() {
		case '#':
			s.pos++
			id := s.ident()
			if id == "" {
				return s.errorf("Expected identifier after '#'")
			}
			into["id"] = id
			continue
		case '.':
			s.pos++
			class := s.ident()
			if class == "" {
				return s.errorf("Expected class name after '.'")
			}
			if prev, ok := into["class"].(string); ok && prev != "" {
				class = prev + " " + class
			}
			into["class"] = class
			continue
		}

		save := s.pos
		key := s.ident()
		if key != "" && !s.eof() && s.peek() == '=' {
			s.pos++
			v, err := s.value()
			if err != nil {
				return err
			}
			into[key] = v
			continue
		}
		s.pos = save

		if _, taken := into["primary"]; !allowPrimary || taken || len(into) > 0 {
			return s.errorf("Expected attribute but %q found", s.peek())
		}
		v, err := s.value()
		if err != nil {
			return err
		}
		into["primary"] = v
	}
}

func (s *scanner) value() (any, *Error) {
	s.skipSpace()
	if s.eof() {
		return nil, s.errorf("Expected value")
	}
	c := s.peek()
	switch {
	case c == '"':
		return s.stringLiteral()
	case c == '$':
		s.pos++
		return s.variable()
	case c == '[':
		return s.array()
	case c == '{':
		return s.object()
	case c == '-' || (c >= '0' && c <= '9'):
		return s.number()
	case isIdentStart(c):
		name := s.ident()
		switch name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		}
		if !s.eof() && s.peek() == '(' {
			return s.call(name)
		}
		return nil, s.errorf("Unexpected identifier %q", name)
	default:
		return nil, s.errorf("Unexpected character %q", c)
	}
}

func (s *scanner) stringLiteral() (any, *Error) {
	start := s.pos
	s.pos++
	for !s.eof() {
		switch s.peek() {
		case '\\':
			s.pos += 2
			continue
		case '"':
			s.pos++
			out, err := strconv.Unquote(s.src[start:s.pos])
			if err != nil {
				s.pos = start
				return nil, s.errorf("Invalid string literal")
			}
			return out, nil
		}
		s.pos++
	}
	s.pos = start
	return nil, s.errorf("Unterminated string literal")
}

func (s *scanner) variable() (any, *Error) {
	name := s.ident()
	if name == "" {
		return nil, s.errorf("Expected variable name")
	}
	v := &Variable{Path: []string{name}}
	for !s.eof() {
		switch s.peek() {
		case '.':
			s.pos++
			seg := s.ident()
			if seg == "" {
				return nil, s.errorf("Expected property name")
			}
			v.Path = append(v.Path, seg)
		case '[':
			s.pos++
			idx, err := s.value()
			if err != nil {
				return nil, err
			}
			s.skipSpace()
			if s.eof() || s.peek() != ']' {
				return nil, s.errorf("Expected ']'")
			}
			s.pos++
			v.Path = append(v.Path, fmt.Sprint(idx))
		default:
			return v, nil
		}
	}
	return v, nil
}

func (s *scanner) number() (any, *Error) {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
	}
	for !s.eof() && strings.IndexByte("0123456789.eE+-", s.peek()) >= 0 {
		s.pos++
	}
	f, err := strconv.ParseFloat(s.src[start:s.pos], 64)
	if err != nil {
		s.pos = start
		return nil, s.errorf("Invalid number")
	}
	return f, nil
}

func (s *scanner) list(closing byte, item func() *Error) *Error {
	s.pos++
	for {
		s.skipSpace()
		if s.eof() {
			return s.errorf("Expected %q", closing)
		}
		if s.peek() == closing {
			s.pos++
			return nil
		}
		if err := item(); err != nil {
			return err
		}
		s.skipSpace()
		if !s.eof() && s.peek() == ',' {
			s.pos++
			continue
		}
		if s.eof() || s.peek() != closing {
			return s.errorf("Expected ',' or %q", closing)
		}
	}
}

func (s *scanner) array() (any, *Error) {
	out := []any{}
	err := s.list(']', func() *Error {
		v, err := s.value()
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

func (s *scanner) object() (any, *Error) {
	out := map[string]any{}
	err := s.list('}', func() *Error {
		var key string
		if s.peek() == '"' {
			k, err := s.stringLiteral()
			if err != nil {
				return err
			}
			key = k.(string)
		} else if key = s.ident(); key == "" {
			return s.errorf("Expected object key")
		}
		s.skipSpace()
		if s.eof() || s.peek() != ':' {
			return s.errorf("Expected ':'")
		}
		s.pos++
		v, err := s.value()
		if err != nil {
			return err
		}
		out[key] = v
		return nil
	})
	return out, err
}

func (s *scanner) call(name string) (any, *Error) {
	fn := &FunctionCall{Name: name}
	err := s.list(')', func() *Error {
		v, err := s.value()
		if err != nil {
			return err
		}
		fn.Args = append(fn.Args, v)
		return nil
	})
	return fn, err
}
