// Package cli handles cmd line input for DBG and testing the autocomplete
// controller against a real provider.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bastiangx/placeserve/internal/utils"
	"github.com/bastiangx/placeserve/pkg/autocomplete"
	"github.com/bastiangx/placeserve/pkg/places"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const help = `commands:
  <text>          set the value and fetch suggestions (debounced)
  (empty line)    clear the value and the suggestions
  :set <text>     set the value without fetching
  :clear          clear the suggestions only
  :country <cc>   restrict to a country code (empty to reset)
  :types <a,b>    restrict to place types (empty to reset)
  :limit <n>      number of suggestions (0 for the provider default)
  :q              quit`

type styles struct {
	title     lipgloss.Style
	main      lipgloss.Style
	secondary lipgloss.Style
	types     lipgloss.Style
	status    lipgloss.Style
	muted     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}),
		main:      lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		secondary: lipgloss.NewStyle().Faint(true),
		types:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.AdaptiveColor{Light: "#907aa9", Dark: "#c4a7e7"}),
		status:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#b4637a", Dark: "#eb6f92"}),
		muted:     lipgloss.NewStyle().Faint(true),
	}
}

// InputHandler reads lines, feeds them to an autocomplete controller and
// prints each resolved set of suggestions. Every line is one value change, so
// input pasted quickly is debounced like fast typing.
type InputHandler struct {
	ac        *places.Autocomplete
	in        io.Reader
	showTypes bool
	noFilter  bool

	// outMu guards out and wasLoading; renders come from fetch goroutines
	outMu      sync.Mutex
	out        io.Writer
	wasLoading bool

	styles styles
}

// NewInputHandler handles initialization of the InputHandler using stdin and stdout.
func NewInputHandler(ac *places.Autocomplete, showTypes, noFilter bool) *InputHandler {
	return NewInputHandlerWithIO(ac, showTypes, noFilter, os.Stdin, os.Stdout)
}

// NewInputHandlerWithIO is NewInputHandler over the given streams.
func NewInputHandlerWithIO(ac *places.Autocomplete, showTypes, noFilter bool, in io.Reader, out io.Writer) *InputHandler {
	return &InputHandler{
		ac:        ac,
		in:        in,
		out:       out,
		showTypes: showTypes,
		noFilter:  noFilter,
		styles:    defaultStyles(),
	}
}

// Start runs the input loop until EOF or :q.
func (h *InputHandler) Start() error {
	unsubscribe := h.ac.Subscribe(h.render)
	defer unsubscribe()

	h.println(h.styles.title.Render("placeserve CLI [BETA]"))
	h.println(h.styles.muted.Render(help))
	if !h.ac.Ready() {
		h.println(h.styles.status.Render("provider not ready yet, lookups answer " + places.StatusNotReady))
	}

	scanner := bufio.NewScanner(h.in)
	for scanner.Scan() {
		if !h.handleLine(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// handleLine processes one line and reports whether to keep reading.
func (h *InputHandler) handleLine(line string) bool {
	trimmed := strings.TrimSpace(line)

	if !strings.HasPrefix(trimmed, ":") {
		h.handleInput(trimmed)
		return true
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	adapter := h.ac.Adapter()

	switch cmd {
	case ":q", ":quit":
		return false
	case ":clear":
		h.ac.ClearSuggestions()
		h.println(h.styles.muted.Render("suggestions cleared"))
	case ":set":
		h.ac.SetValue(arg, false)
		h.println(h.styles.muted.Render(fmt.Sprintf("value set to %q", arg)))
	case ":country":
		opts := adapter.RequestOptions()
		opts.Country = arg
		adapter.SetRequestOptions(opts)
		h.println(h.styles.muted.Render(fmt.Sprintf("country: %q", arg)))
	case ":types":
		opts := adapter.RequestOptions()
		opts.Types = nil
		for _, t := range strings.Split(arg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.Types = append(opts.Types, t)
			}
		}
		adapter.SetRequestOptions(opts)
		h.println(h.styles.muted.Render(fmt.Sprintf("types: %v", opts.Types)))
	case ":limit":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			h.println(h.styles.status.Render(fmt.Sprintf("invalid limit %q", arg)))
			return true
		}
		opts := adapter.RequestOptions()
		opts.Limit = n
		adapter.SetRequestOptions(opts)
		h.println(h.styles.muted.Render(fmt.Sprintf("limit: %d", n)))
	default:
		h.println(h.styles.status.Render(fmt.Sprintf("unknown command %s", cmd)))
	}
	return true
}

func (h *InputHandler) handleInput(text string) {
	if text == "" {
		h.ac.SetValue("", true)
		h.println(h.styles.muted.Render("cleared"))
		return
	}

	// input filtering by default (unless --no-filter flag is used)
	if !h.noFilter && !utils.IsValidInput(text) {
		log.Debug("input filtered", "text", text)
		h.ac.SetValue(text, false)
		h.println(h.styles.status.Render(fmt.Sprintf("ignoring %q", text)))
		return
	}

	h.ac.SetValue(text, true)
}

// render prints suggestions once a fetch resolves, i.e. on the snapshot that
// ends a loading phase.
func (h *InputHandler) render(snap autocomplete.Snapshot[places.Prediction]) {
	h.outMu.Lock()
	defer h.outMu.Unlock()

	loading := snap.Suggestions.Loading
	resolved := h.wasLoading && !loading
	h.wasLoading = loading
	s := snap.Suggestions
	// a clear that lands during a fetch has no status to show
	if !resolved || s.Status == "" {
		return
	}

	if s.Status != places.StatusOK {
		fmt.Fprintln(h.out, h.styles.status.Render(fmt.Sprintf("no places for %q [%s]", snap.Value, s.Status)))
		return
	}

	fmt.Fprintln(h.out, h.styles.title.Render(fmt.Sprintf("%d places for %q:", len(s.Data), snap.Value)))
	for i, p := range s.Data {
		line := fmt.Sprintf("%2d. %s", i+1, h.styles.main.Render(p.MainText))
		if p.SecondaryText != "" {
			line += "  " + h.styles.secondary.Render(p.SecondaryText)
		}
		if h.showTypes && len(p.Types) > 0 {
			line += "  " + h.styles.types.Render("("+strings.Join(p.Types, ", ")+")")
		}
		fmt.Fprintln(h.out, line)
	}
}

func (h *InputHandler) println(s string) {
	h.outMu.Lock()
	defer h.outMu.Unlock()
	fmt.Fprintln(h.out, s)
}
