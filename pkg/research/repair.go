package research

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The JSON repair chain recovers structured output from a model response in
// three explicit, independently testable steps:
//
//  1. strict unmarshal of the raw text
//  2. unmarshal after sanitizing common model artifacts (code fences,
//     trailing commas, single-quoted strings)
//  3. unmarshal of the first JSON-looking fragment extracted by regex
//
// Callers that still fail after step 3 apply their own domain fallback
// (e.g. treating the raw query as the sole sub-query); the chain itself
// never grows beyond these three strategies.

var (
	fenceRe    = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingRe = regexp.MustCompile(`,\s*([}\]])`)
	objectRe   = regexp.MustCompile(`(?s)\{.*\}`)
	arrayRe    = regexp.MustCompile(`(?s)\[.*\]`)
)

// DecodeJSON runs the repair chain and unmarshals into v. The returned
// error names the last failing step.
func DecodeJSON(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(SanitizeJSON(raw)), v); err == nil {
		return nil
	}
	fragment, ok := ExtractJSON(raw)
	if !ok {
		return fmt.Errorf("no JSON fragment found in model output")
	}
	if err := json.Unmarshal([]byte(SanitizeJSON(fragment)), v); err != nil {
		return fmt.Errorf("extracted fragment is not valid JSON: %w", err)
	}
	return nil
}

// SanitizeJSON strips the decorations models habitually wrap JSON in.
func SanitizeJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = strings.TrimPrefix(s, "json")
	s = trailingRe.ReplaceAllString(s, "$1")
	// Single-quoted JSON shows up often enough to be worth one targeted fix,
	// but only when the text contains no double quotes at all.
	if !strings.Contains(s, `"`) && strings.Contains(s, `'`) {
		s = strings.ReplaceAll(s, `'`, `"`)
	}
	return strings.TrimSpace(s)
}

// ExtractJSON pulls the first object or array-looking fragment out of
// surrounding prose. Objects win over arrays when both are present, unless
// the array encloses the object.
func ExtractJSON(raw string) (string, bool) {
	obj := objectRe.FindString(raw)
	arr := arrayRe.FindString(raw)
	switch {
	case obj == "" && arr == "":
		return "", false
	case obj == "":
		return arr, true
	case arr == "":
		return obj, true
	case strings.Index(raw, arr) < strings.Index(raw, obj) && len(arr) > len(obj):
		return arr, true
	default:
		return obj, true
	}
}

// DecodeStringList decodes a model response expected to be a JSON string
// list, tolerating the {"queries": [...]}-style wrappers some models emit.
func DecodeStringList(raw string) ([]string, error) {
	var list []string
	if err := DecodeJSON(raw, &list); err == nil {
		return list, nil
	}

	var wrapped map[string]json.RawMessage
	if err := DecodeJSON(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("model output is not a string list")
	}
	for _, v := range wrapped {
		if err := json.Unmarshal(v, &list); err == nil && len(list) > 0 {
			return list, nil
		}
	}
	return nil, fmt.Errorf("model output is not a string list")
}
