// Package frontmatter splits and decodes the YAML block at the top of a document.
package frontmatter

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Block is the frontmatter section of a document.
type Block struct {
	// Raw is the YAML text between the delimiters, without the trailing newline.
	Raw string
	// Had reports whether the document opened with a `---` delimiter line.
	Had bool
	// BodyOffset is the byte offset in the source where the body starts.
	BodyOffset int
	// BodyLine is the 0-based line number where the body starts.
	BodyLine int
}

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates YAML frontmatter (`---` delimited) from the document body.
//
// If the document does not start with a delimiter line, Had is false and body
// is the full input. CRLF line endings are accepted.
func Split(source string) (Block, string, error) {
	nl := detectNewline(source)
	open := "---" + nl
	if !strings.HasPrefix(source, open) {
		return Block{}, source, nil
	}

	start := len(open)
	rest := source[start:]
	var end, bodyStart int
	switch {
	case strings.HasPrefix(rest, "---"+nl):
		end, bodyStart = start, start+len("---"+nl)
	case rest == "---":
		end, bodyStart = start, len(source)
	default:
		idx := strings.Index(rest, nl+"---"+nl)
		switch {
		case idx >= 0:
			end = start + idx
			bodyStart = end + len(nl+"---"+nl)
		case strings.HasSuffix(rest, nl+"---"):
			end = len(source) - len(nl+"---")
			bodyStart = len(source)
		default:
			return Block{}, "", ErrMissingClosingDelimiter
		}
	}

	block := Block{
		Raw:        source[start:end],
		Had:        true,
		BodyOffset: bodyStart,
		BodyLine:   strings.Count(source[:bodyStart], "\n"),
	}
	if nl == "\r\n" {
		block.Raw = strings.ReplaceAll(block.Raw, "\r\n", "\n")
	}
	return block, source[bodyStart:], nil
}

// Parse decodes raw YAML frontmatter into JSON-compatible data.
//
// Nested maps always have string keys and timestamps are rendered as RFC 3339
// strings so the result can cross a JSON boundary unchanged.
func Parse(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return map[string]any{}, nil
	}
	normalized, _ := Normalize(fields).(map[string]any)
	return normalized, nil
}

// Normalize converts YAML-decoded values into plain JSON-compatible values.
func Normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = Normalize(val)
		}
		return out
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	case uint64:
		return float64(vv)
	case time.Time:
		return vv.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func detectNewline(content string) string {
	if i := strings.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
