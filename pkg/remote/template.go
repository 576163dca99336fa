package remote

import (
	"net/url"
	"strings"
)

// DefaultWildcard is the placeholder replaced by the query.
const DefaultWildcard = "%QUERY"

// Template builds request URLs from a query.
type Template struct {
	URL      string
	Wildcard string
}

func NewTemplate(rawURL, wildcard string) Template {
	if wildcard == "" {
		wildcard = DefaultWildcard
	}
	return Template{URL: rawURL, Wildcard: wildcard}
}

// Expand replaces the first wildcard with the URI component encoding of
// query. Anything after it, including a later wildcard, is left untouched.
func (t Template) Expand(query string) string {
	return strings.Replace(t.URL, t.Wildcard, EncodeComponent(query), 1)
}

// componentUnescaper undoes the QueryEscape escapes that a URI component
// keeps literal.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent escapes s for use as a single URL component, leaving
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) literal. Spaces become %20 rather than '+'.
func EncodeComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}
