// Package cli drives a binding from the terminal for debugging and testing.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bastiangx/typebind/pkg/binder"
	"github.com/bastiangx/typebind/pkg/dom"
	"github.com/bastiangx/typebind/pkg/typeahead"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	indexStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("204"))
)

// Options configures the terminal page.
type Options struct {
	Index         string
	IndexSelector string
	InputSelector string
	Prompt        string
	// ShowRaw prints the sanitized label next to each value.
	ShowRaw bool
	In      io.Reader
	Out     io.Writer
	Logger  *log.Logger
}

// InputHandler reads lines from the terminal. Each line replaces the input
// text; ":N" selects the N-th rendered suggestion and ":q" quits.
type InputHandler struct {
	binder *binder.Binder
	opts   Options
	logger *log.Logger

	outMu sync.Mutex

	mu       sync.Mutex
	sections []dom.Section
}

// NewInputHandler handles initialization of the InputHandler
func NewInputHandler(b *binder.Binder, opts Options) *InputHandler {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.IndexSelector == "" {
		opts.IndexSelector = "#suggest"
	}
	if opts.InputSelector == "" {
		opts.InputSelector = ".typeahead"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &InputHandler{binder: b, opts: opts, logger: opts.Logger}
}

// Start binds the page and runs the input loop until EOF, ":q" or ctx ends.
func (h *InputHandler) Start(ctx context.Context) error {
	indexEl := dom.NewElementFor(h.opts.IndexSelector)
	indexEl.SetValue(h.opts.Index)
	input := dom.NewElementFor(h.opts.InputSelector)
	doc := dom.NewDocument(indexEl, input)

	binding, err := h.binder.Bind(ctx, doc)
	if err != nil {
		return err
	}
	defer h.binder.Unbind(doc)
	if len(binding.Typeaheads) == 0 {
		return fmt.Errorf("no input matched %s", h.opts.InputSelector)
	}
	ta := binding.Typeaheads[0]

	if menu := doc.MenuFor(input); menu != nil {
		menu.OnRender(func(sections []dom.Section) { h.printSections(input.Value(), sections) })
	}
	ta.OnSelect(func(sel typeahead.Selection) {
		h.println(headerStyle.Render("selected:") + " " + valueStyle.Render(sel.Value))
	})

	h.println(headerStyle.Render("typebind CLI [BETA]"))
	h.println(indexStyle.Render(fmt.Sprintf("index %q, requests go to %s", binding.Index, binding.URL("..."))))
	h.println("type a query and press Enter, :N selects suggestion N, :q quits")

	reader := bufio.NewReader(h.opts.In)
	for {
		if ctx.Err() != nil {
			return nil
		}
		h.print(h.opts.Prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if quit := h.handleInput(ta, input, line); quit {
			return nil
		}
	}
}

func (h *InputHandler) handleInput(ta *typeahead.Typeahead, input *dom.MemoryElement, line string) bool {
	if !strings.HasPrefix(line, ":") {
		h.logger.Debug("query", "q", line)
		input.Type(line)
		return false
	}

	cmd := strings.TrimSpace(line[1:])
	switch cmd {
	case "q", "quit":
		return true
	case "":
		return false
	}

	n, err := strconv.Atoi(cmd)
	if err != nil {
		h.println(errorStyle.Render(fmt.Sprintf("unknown command %q", line)))
		return false
	}
	dataset, i, ok := h.target(n)
	if !ok {
		h.println(errorStyle.Render(fmt.Sprintf("no suggestion %d", n)))
		return false
	}
	if err := ta.Select(dataset, i); err != nil {
		h.println(errorStyle.Render(err.Error()))
	}
	return false
}

// target maps a 1-based position in the last render to a dataset option.
func (h *InputHandler) target(n int) (string, int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pos := n - 1
	if pos < 0 {
		return "", 0, false
	}
	for _, sec := range h.sections {
		if pos < len(sec.Options) {
			return sec.Name, pos, true
		}
		pos -= len(sec.Options)
	}
	return "", 0, false
}

func (h *InputHandler) printSections(query string, sections []dom.Section) {
	h.mu.Lock()
	h.sections = sections
	h.mu.Unlock()

	if len(sections) == 0 {
		return
	}

	var b strings.Builder
	n := 0
	for _, sec := range sections {
		n += len(sec.Options)
	}
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("%d suggestions for '%s':", n, query)))
	pos := 1
	for _, sec := range sections {
		for _, opt := range sec.Options {
			marker := " "
			if opt.Active {
				marker = ">"
			}
			line := fmt.Sprintf("%s%2d. %s", marker, pos, valueStyle.Render(opt.Value))
			if h.opts.ShowRaw {
				line += " " + indexStyle.Render(opt.Label)
			}
			fmt.Fprintln(&b, line)
			pos++
		}
	}
	h.print(b.String())
}

func (h *InputHandler) print(s string) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprint(h.opts.Out, s)
}

func (h *InputHandler) println(s string) {
	h.print(s + "\n")
}
