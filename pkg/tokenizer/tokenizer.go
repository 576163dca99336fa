// Package tokenizer splits queries and datums into the tokens the suggestion index matches on.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// Func splits a string into tokens.
type Func func(s string) []string

// DatumFunc extracts tokens from a raw JSON datum.
type DatumFunc func(raw []byte) []string

// Whitespace splits on runs of whitespace.
// Leading and trailing whitespace never produce empty tokens.
func Whitespace(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		return []string{}
	}
	return fields
}

// NonWord splits on every run of characters that are not letters, digits or underscores.
func NonWord(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	if fields == nil {
		return []string{}
	}
	return fields
}

// Keys tokenizes the given JSON fields of a datum with fn.
// When the datum itself is a JSON string, the string is tokenized directly.
func Keys(fn Func, keys ...string) DatumFunc {
	return func(raw []byte) []string {
		parsed := gjson.ParseBytes(raw)
		if parsed.Type == gjson.String {
			return fn(parsed.String())
		}

		tokens := []string{}
		for _, key := range keys {
			field := parsed.Get(key)
			if !field.Exists() {
				continue
			}
			tokens = append(tokens, fn(field.String())...)
		}
		return tokens
	}
}
