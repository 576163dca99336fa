/*
Package server implements msgpack IPC for driving a suggestion binding.

The server lets processes without a browser (editors, shells, launchers) use a
binding over stdin/stdout. It keeps one in-memory document with an index
element and a single search input, binds it, and relays what the typeahead
renders.

# IPC

Clients send msgpack maps; every request carries an id and an action.

Bind the document to an index (the index is read once per bind):

	{"id": "b1", "action": "bind", "index": "products"}

Type into the input and move through the menu:

	{"id": "t1", "action": "type", "q": "red"}
	{"id": "k1", "action": "key", "k": "ArrowDown"}
	{"id": "s1", "action": "select", "i": 0}

Requests are acknowledged with a status:

	{"id": "t1", "status": "ok"}

Suggestions arrive asynchronously whenever the menu changes, as render events.
An empty list means the menu closed:

	{"id": "render", "q": "red", "s": [{"d": "suggestions", "v": "Red Sneakers", "l": "Red Sneakers"}], "c": 1}

A selection is announced once the value has been written into the input:

	{"id": "select", "d": "suggestions", "v": "Red Sneakers"}

Failed requests get an error with an HTTP-like code:

	{"id": "s1", "e": "no suggestion 3 in dataset \"suggestions\"", "c": 404}

Fetch failures are never reported; the menu simply stays empty.
*/
package server

// Actions understood by the server.
const (
	ActionBind   = "bind"
	ActionType   = "type"
	ActionKey    = "key"
	ActionSelect = "select"
	ActionHealth = "health"
)

// Event ids pushed without a request.
const (
	EventRender = "render"
	EventSelect = "select"
)

// Request is any client message.
type Request struct {
	ID      string `msgpack:"id"`
	Action  string `msgpack:"action"`
	Index   string `msgpack:"index,omitempty"`
	Query   string `msgpack:"q,omitempty"`
	Key     string `msgpack:"k,omitempty"`
	Item    int    `msgpack:"i,omitempty"`
	Dataset string `msgpack:"d,omitempty"`
}

// RenderedSuggestion is one option of a render event.
type RenderedSuggestion struct {
	Dataset string `msgpack:"d"`
	Value   string `msgpack:"v"`
	Label   string `msgpack:"l"`
	Active  bool   `msgpack:"a,omitempty"`
}

// RenderEvent mirrors the menu after every change.
type RenderEvent struct {
	ID          string               `msgpack:"id"`
	Query       string               `msgpack:"q"`
	Suggestions []RenderedSuggestion `msgpack:"s"`
	Count       int                  `msgpack:"c"`
}

// SelectEvent reports the value written into the input.
type SelectEvent struct {
	ID      string `msgpack:"id"`
	Dataset string `msgpack:"d"`
	Value   string `msgpack:"v"`
}

// StatusResponse acknowledges a request.
type StatusResponse struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
	Index  string `msgpack:"index,omitempty"`
	URL    string `msgpack:"url,omitempty"`
}

// ErrorResponse holds basic error information for failed requests
type ErrorResponse struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
