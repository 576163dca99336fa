package suggest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// DefaultDisplayKey is the datum field shown to the user.
const DefaultDisplayKey = "value"

var (
	// ErrInvalidJSON is returned when a response body is not JSON at all.
	ErrInvalidJSON = errors.New("suggest: invalid json")
	// ErrNotArray is returned when a response body is JSON but not an array.
	ErrNotArray = errors.New("suggest: response is not an array")
	// ErrBadElement is returned for array elements that are neither objects nor strings.
	ErrBadElement = errors.New("suggest: unsupported element")
)

// Suggestion is an opaque datum returned by the remote endpoint.
// Its shape is owned by the endpoint; only the display field is interpreted.
type Suggestion struct {
	Raw json.RawMessage `msgpack:"raw"`
}

// New wraps a raw JSON datum. Insignificant whitespace is removed so that
// equal datums share an identity.
func New(raw []byte) Suggestion {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Suggestion{Raw: append(json.RawMessage(nil), raw...)}
	}
	return Suggestion{Raw: buf.Bytes()}
}

// FromValue builds a datum with a single value field.
func FromValue(value string) Suggestion {
	raw, _ := json.Marshal(map[string]string{DefaultDisplayKey: value})
	return Suggestion{Raw: raw}
}

// Display returns the field used to render and select the suggestion.
// String datums display as themselves.
func (s Suggestion) Display(key string) string {
	parsed := gjson.ParseBytes(s.Raw)
	if parsed.Type == gjson.String {
		return parsed.String()
	}
	field := parsed.Get(key)
	if !field.Exists() {
		return ""
	}
	return field.String()
}

// ID identifies the datum by its compact JSON encoding.
func (s Suggestion) ID() string {
	return string(s.Raw)
}

func (s Suggestion) MarshalJSON() ([]byte, error) {
	if len(s.Raw) == 0 {
		return []byte("null"), nil
	}
	return s.Raw, nil
}

func (s *Suggestion) UnmarshalJSON(data []byte) error {
	*s = New(data)
	return nil
}

// Decode parses a response body into suggestions.
// The body must be a JSON array of objects or strings.
func Decode(body []byte) ([]Suggestion, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, ErrNotArray
	}

	suggestions := []Suggestion{}
	var decodeErr error
	idx := 0
	parsed.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() && value.Type != gjson.String {
			decodeErr = fmt.Errorf("element %d: %w", idx, ErrBadElement)
			return false
		}
		suggestions = append(suggestions, New([]byte(value.Raw)))
		idx++
		return true
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	return suggestions, nil
}
