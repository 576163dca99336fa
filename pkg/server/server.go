package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bastiangx/typebind/internal/logger"
	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/dom"
	"github.com/bastiangx/typebind/pkg/typeahead"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Options configures the in-memory page the server binds.
type Options struct {
	// Index is used by bind requests that carry no index.
	Index         string
	IndexSelector string
	InputSelector string
	Dataset       string
	MaxQueryLen   int
	Logger        *log.Logger
}

// Server handles the IPC for one binding at a time
type Server struct {
	binder *binder.Binder
	opts   Options
	logger *log.Logger

	decoder *msgpack.Decoder
	encoder *msgpack.Encoder
	writeMu sync.Mutex

	mu      sync.Mutex
	doc     *dom.MemoryDocument
	input   *dom.MemoryElement
	binding *binder.Binding
}

// NewServer creates a server using stdin/stdout for IPC
func NewServer(b *binder.Binder, opts Options) *Server {
	return NewServerWithIO(b, opts, os.Stdin, os.Stdout)
}

// NewServerWithIO creates a server over arbitrary streams.
func NewServerWithIO(b *binder.Binder, opts Options, r io.Reader, w io.Writer) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.New("server")
	}
	if opts.IndexSelector == "" {
		opts.IndexSelector = "#suggest"
	}
	if opts.InputSelector == "" {
		opts.InputSelector = ".typeahead"
	}
	if opts.Dataset == "" {
		opts.Dataset = "suggestions"
	}
	return &Server{
		binder:  b,
		opts:    opts,
		logger:  opts.Logger,
		decoder: msgpack.NewDecoder(r),
		encoder: msgpack.NewEncoder(w),
	}
}

// Start reads requests until the input closes or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Debug("Starting Server.")
	s.sendResponse(StatusResponse{ID: "ready", Status: "ready"})

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		var req Request
		if err := s.decoder.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("input closed")
				return nil
			}
			s.logger.Errorf("Decoding request: %v", err)
			s.sendError("", "invalid msgpack request", 400)
			return err
		}
		s.handleRequest(ctx, req)
	}
}

// Close releases the current binding.
func (s *Server) Close() {
	s.mu.Lock()
	doc := s.doc
	s.doc, s.input, s.binding = nil, nil, nil
	s.mu.Unlock()

	if doc != nil {
		s.binder.Unbind(doc)
	}
}

func (s *Server) handleRequest(ctx context.Context, req Request) {
	s.logger.Debug("request", "id", req.ID, "action", req.Action)

	switch req.Action {
	case ActionBind:
		s.handleBind(ctx, req)
	case ActionType:
		s.handleType(req)
	case ActionKey:
		s.handleKey(req)
	case ActionSelect:
		s.handleSelect(req)
	case ActionHealth:
		s.mu.Lock()
		resp := StatusResponse{ID: req.ID, Status: "ok"}
		if s.binding != nil {
			resp.Index = s.binding.Index
		}
		s.mu.Unlock()
		s.sendResponse(resp)
	default:
		s.sendError(req.ID, fmt.Sprintf("Unknown action: %s", req.Action), 400)
	}
}

func (s *Server) handleBind(ctx context.Context, req Request) {
	index := req.Index
	if index == "" {
		index = s.opts.Index
	}

	// the index is fixed per binding, so a new bind replaces the page
	s.Close()

	indexEl := dom.NewElementFor(s.opts.IndexSelector)
	indexEl.SetValue(index)
	input := dom.NewElementFor(s.opts.InputSelector)
	doc := dom.NewDocument(indexEl, input)

	binding, err := s.binder.Bind(ctx, doc)
	if err != nil {
		s.sendError(req.ID, err.Error(), 500)
		return
	}
	if menu := doc.MenuFor(input); menu != nil {
		menu.OnRender(func(sections []dom.Section) { s.sendRender(input.Value(), sections) })
	}
	for _, ta := range binding.Typeaheads {
		ta.OnSelect(func(sel typeahead.Selection) {
			s.sendResponse(SelectEvent{ID: EventSelect, Dataset: sel.Dataset, Value: sel.Value})
		})
	}

	s.mu.Lock()
	s.doc, s.input, s.binding = doc, input, binding
	s.mu.Unlock()

	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok", Index: binding.Index, URL: binding.URL("")})
}

func (s *Server) handleType(req Request) {
	if s.opts.MaxQueryLen > 0 && len([]rune(req.Query)) > s.opts.MaxQueryLen {
		s.sendError(req.ID, fmt.Sprintf("Query exceeds maximum length of %d characters", s.opts.MaxQueryLen), 400)
		return
	}
	input, _, ok := s.current(req.ID)
	if !ok {
		return
	}
	input.Type(req.Query)
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) handleKey(req Request) {
	switch req.Key {
	case typeahead.KeyDown, typeahead.KeyUp, typeahead.KeyEnter, typeahead.KeyTab, typeahead.KeyEscape:
	default:
		s.sendError(req.ID, fmt.Sprintf("Unsupported key: %q", req.Key), 400)
		return
	}
	input, _, ok := s.current(req.ID)
	if !ok {
		return
	}
	input.Press(req.Key)
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) handleSelect(req Request) {
	_, binding, ok := s.current(req.ID)
	if !ok {
		return
	}
	dataset := req.Dataset
	if dataset == "" {
		dataset = s.opts.Dataset
	}
	if len(binding.Typeaheads) == 0 {
		s.sendError(req.ID, "no input is bound", 409)
		return
	}
	if err := binding.Typeaheads[0].Select(dataset, req.Item); err != nil {
		s.sendError(req.ID, err.Error(), 404)
		return
	}
	s.sendResponse(StatusResponse{ID: req.ID, Status: "ok"})
}

func (s *Server) current(id string) (*dom.MemoryElement, *binder.Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding == nil {
		s.sendError(id, "Not bound: send a bind request first", 409)
		return nil, nil, false
	}
	return s.input, s.binding, true
}

func (s *Server) sendRender(query string, sections []dom.Section) {
	event := RenderEvent{ID: EventRender, Query: query, Suggestions: []RenderedSuggestion{}}
	for _, sec := range sections {
		for _, opt := range sec.Options {
			event.Suggestions = append(event.Suggestions, RenderedSuggestion{
				Dataset: sec.Name,
				Value:   opt.Value,
				Label:   opt.Label,
				Active:  opt.Active,
			})
		}
	}
	event.Count = len(event.Suggestions)
	s.sendResponse(event)
}

// sendResponse encodes one message; writes from event hooks and the request
// loop are serialized.
func (s *Server) sendResponse(response interface{}) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.encoder.Encode(response); err != nil {
		s.logger.Errorf("Encoding response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(id, message string, code int) {
	s.sendResponse(ErrorResponse{ID: id, Error: message, Code: code})
}
