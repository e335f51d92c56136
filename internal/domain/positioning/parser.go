// Package positioning parses free-text model output into positioning records.
//
// The accepted grammar is: an optional Markdown code fence (```` ``` ```` or
// ```` ```json ````) whose first non-empty body is used, otherwise the raw text;
// within that, the first balanced brace-delimited object is decoded as JSON.
package positioning

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/target/brandpulse/internal/domain/model"
)

var (
	// ErrEmptyResponse is returned when the text contains nothing to parse.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoObject is returned when no balanced JSON object is present.
	ErrNoObject = errors.New("no JSON object found")
	// ErrInvalidJSON is returned when the extracted object is not valid JSON.
	ErrInvalidJSON = errors.New("invalid JSON object")
)

const fence = "```"

// Parse extracts a positioning record from model output. It never panics and
// returns a zero record together with an error on failure.
func Parse(text string) (model.PositioningRecord, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.ZeroPositioning(), ErrEmptyResponse
	}

	candidate := text
	if body, ok := FencedBody(text); ok {
		candidate = body
	}

	obj, ok := FirstObject(candidate)
	if !ok {
		return model.ZeroPositioning(), ErrNoObject
	}

	var rec model.PositioningRecord
	if err := json.Unmarshal([]byte(obj), &rec); err != nil {
		return model.ZeroPositioning(), fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	return rec, nil
}

// FencedBody returns the first non-empty body of a Markdown code fence.
// A language tag on the opening fence line ("json") is dropped.
func FencedBody(text string) (string, bool) {
	rest := text
	for {
		start := strings.Index(rest, fence)
		if start < 0 {
			return "", false
		}
		rest = rest[start+len(fence):]
		end := strings.Index(rest, fence)
		if end < 0 {
			return "", false
		}
		body := stripLanguageTag(rest[:end])
		rest = rest[end+len(fence):]
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			return trimmed, true
		}
	}
}

func stripLanguageTag(body string) string {
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		return body[4:]
	}
	return body
}

// FirstObject returns the balanced {...} span opened by the first brace in text.
// Braces inside JSON string literals are ignored while balancing.
func FirstObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	end, ok := matchBrace(text, start)
	if !ok {
		return "", false
	}
	return text[start : end+1], true
}

func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
