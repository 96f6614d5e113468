package projector

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// unquotedKeyPattern matches bare identifiers used as object keys in the
// projector's non-standard notation, e.g. {pw:"0",F15:"1"}.
// Key names may contain letters, digits, and underscores.
var unquotedKeyPattern = regexp.MustCompile(`([,{])\s*([A-Za-z0-9_]+)\s*:`)

// Normalize converts raw response text in the projector's object notation
// into a strict key→string-value mapping.
//
// The projector emits almost-JSON: keys are unquoted identifiers, values
// are quoted strings. Normalize repairs the keys and parses the result.
// Leading and trailing noise outside the outermost braces is ignored
// (firmwares pad responses with whitespace and occasionally HTML
// fragments).
//
// Normalize performs no semantic validation of values; the sentinel
// not-available value is passed through verbatim. It is a pure function.
//
// Returns ErrMalformedResponse when the text contains no object, cannot
// be repaired into valid structured data, or contains nested values.
func Normalize(text string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: no object in response", ErrMalformedResponse)
	}

	repaired := unquotedKeyPattern.ReplaceAllString(text[start:end+1], `$1"$2":`)

	var decoded map[string]any
	if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	fields := make(map[string]string, len(decoded))
	for key, value := range decoded {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case float64:
			// Some firmwares omit quotes on numeric values.
			fields[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("%w: nested value for key %q", ErrMalformedResponse, key)
		}
	}

	return fields, nil
}

// looksLikeLoginPage reports whether response text is the projector's web
// login page rather than control data. The session manager uses this to
// classify silent session expiry before any parse attempt.
func looksLikeLoginPage(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "login") && strings.Contains(lower, "password")
}
