// Package extract pulls a single JSON object out of free-form model
// output. Completions routinely wrap their JSON in prose or markdown
// fences even when told not to; this is a best-effort span match, not a
// full JSON-in-text parser.
package extract

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoJSONFound means the text contains no {...} span at all.
var ErrNoJSONFound = eris.New("no JSON object found in response text")

// ErrParse means a {...} span exists but is not valid JSON.
var ErrParse = eris.New("response span is not valid JSON")

// span locates the candidate JSON substring: from the first '{' to the
// last '}' in the text. Multiple independent objects or trailing garbage
// inside the span are accepted limitations.
func span(text string) (string, error) {
	start := strings.Index(text, "{")
	if start < 0 {
		return "", ErrNoJSONFound
	}
	end := strings.LastIndex(text, "}")
	if end < start {
		return "", ErrNoJSONFound
	}
	return text[start : end+1], nil
}

// JSONObject parses the first top-level JSON object in text into a
// generic map.
func JSONObject(text string) (map[string]any, error) {
	s, err := span(text)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, eris.Wrap(ErrParse, err.Error())
	}
	return obj, nil
}

// Into parses the first top-level JSON object in text into v.
func Into(text string, v any) error {
	s, err := span(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return eris.Wrap(ErrParse, err.Error())
	}
	return nil
}
