// Package suggest holds the suggestion datum, the token index used for local and
// prefetched suggestions and the response cache used by the remote transport.
package suggest

// Searcher defines what the engine needs from a local suggestion index
type Searcher interface {
	// Search returns datums matching every token of the query
	Search(query string) []Suggestion

	// Add indexes datums, skipping ones already present
	Add(items ...Suggestion)

	// All returns every indexed datum in insertion order
	All() []Suggestion

	// Reset drops every datum
	Reset()

	// Len returns the number of indexed datums
	Len() int
}
