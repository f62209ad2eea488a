// Package canonical turns free-form model output into a parsed,
// key-normalized, flattened value tree. It has no knowledge of the
// nutrition schema; it only finds structured data inside prose and
// normalizes its shape.
package canonical

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// Extraction failures are typed and non-fatal: callers treat any of them
// as "no usable data in this response" and move on.
var (
	ErrNoStructuredData = eris.New("canonical: no structured data found")
	ErrMalformedPayload = eris.New("canonical: malformed payload")
	ErrUnusableShape    = eris.New("canonical: empty or unusable shape")
)

// fencedBlock matches a triple-backtick block with an optional language tag.
// Non-greedy so prose containing several blocks yields the first one.
var fencedBlock = regexp.MustCompile("(?s)```(?:[a-zA-Z]*)\\s*(.*?)```")

// Parsed is the result of a successful extraction: one flattened attribute
// bag per object in the payload. Array reports whether the payload was a
// JSON array (each element one bag) or a single object (exactly one bag).
type Parsed struct {
	Array bool
	Bags  []AttrBag
}

// Extract locates a JSON payload inside text, parses it, and normalizes it
// into flattened attribute bags. Models wrap their output in markdown fences
// or surround it with prose more often than not, so the candidate substring
// is found before parsing: a fenced block first, then the span from the
// first '{' to the last '}'.
func Extract(text string) (*Parsed, error) {
	candidate := candidateSubstring(text)
	if candidate == "" {
		return nil, ErrNoStructuredData
	}

	var value any
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return nil, eris.Wrap(ErrMalformedPayload, err.Error())
	}

	switch v := value.(type) {
	case map[string]any:
		return &Parsed{Bags: []AttrBag{Flatten(v)}}, nil
	case []any:
		var bags []AttrBag
		for _, el := range v {
			obj, ok := el.(map[string]any)
			if !ok {
				// Non-object elements are silently dropped.
				continue
			}
			bags = append(bags, Flatten(obj))
		}
		if len(bags) == 0 {
			return nil, ErrUnusableShape
		}
		return &Parsed{Array: true, Bags: bags}, nil
	default:
		return nil, ErrUnusableShape
	}
}

// candidateSubstring returns the most likely JSON payload inside text, or ""
// when none is present.
func candidateSubstring(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			return inner
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return strings.TrimSpace(text[start : end+1])
	}
	return ""
}
