// Package jsonx pulls a JSON object or array out of free-form model output.
package jsonx

import (
	"encoding/json"
	"reflect"
	"strings"
)

const maxAttempts = 8

// ExtractObject returns the first JSON object embedded in text, or nil.
func ExtractObject(text string) map[string]any {
	var out map[string]any
	if !extract(text, '{', '}', &out) {
		return nil
	}
	return out
}

// ExtractArray returns the first JSON array embedded in text, or nil.
func ExtractArray(text string) []any {
	var out []any
	if !extract(text, '[', ']', &out) {
		return nil
	}
	return out
}

// DecodeObject decodes the first embedded JSON object into v.
func DecodeObject(text string, v any) bool {
	return extract(text, '{', '}', v)
}

// DecodeArray decodes the first embedded JSON array into v.
func DecodeArray(text string, v any) bool {
	return extract(text, '[', ']', v)
}

func extract(text string, open, close byte, v any) bool {
	start := strings.IndexByte(text, open)
	for attempt := 0; start >= 0 && attempt < maxAttempts; attempt++ {
		if candidate, ok := candidateAt(text, start, open, close); ok {
			if data, ok := parse(candidate, v); ok {
				return json.Unmarshal(data, v) == nil
			}
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return false
}

// candidateAt returns the balanced span starting at text[start]. Delimiters
// inside string literals do not count. Without a balanced close the span runs
// to the last close delimiter in text.
func candidateAt(text string, start int, open, close byte) (string, bool) {
	depth := 0
	var quote byte
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
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
		case '"', '\'':
			quote = c
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	end := strings.LastIndexByte(text, close)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// parse checks candidate against a fresh value of v's type and returns the
// bytes that decoded cleanly. v itself is never touched here, so a rejected
// candidate cannot leave fields behind.
func parse(candidate string, v any) ([]byte, bool) {
	for _, data := range [][]byte{[]byte(candidate), []byte(repair(candidate))} {
		if json.Unmarshal(data, scratch(v)) == nil {
			return data, true
		}
	}
	return nil, false
}

func scratch(v any) any {
	t := reflect.TypeOf(v)
	if t == nil || t.Kind() != reflect.Pointer {
		return v
	}
	return reflect.New(t.Elem()).Interface()
}

// repair rewrites single-quoted strings as double-quoted ones and drops
// trailing commas before a closing delimiter.
func repair(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
				if quote == '\'' && c == '\'' {
					// \' is not a valid JSON escape
					b.WriteByte(c)
					continue
				}
				b.WriteByte('\\')
				b.WriteByte(c)
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
				b.WriteByte('"')
			case c == '"' && quote == '\'':
				b.WriteString(`\"`)
			default:
				b.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
			b.WriteByte('"')
		case ',':
			if nextNonSpace(s, i+1) == '}' || nextNonSpace(s, i+1) == ']' {
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func nextNonSpace(s string, from int) byte {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return s[i]
		}
	}
	return 0
}
