// Package tui implements the interactive chat surface for the FinLex
// assistant: a transcript viewport, an input line, and live rendering
// of the thinking steps and answer text as the stream folds in.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/finlexvn/ragchat/pkg/client"
	"github.com/finlexvn/ragchat/pkg/history"
	"github.com/finlexvn/ragchat/pkg/rag"
	"github.com/finlexvn/ragchat/pkg/stream"
)

// streamEventMsg delivers one wire event to the update loop. The gen
// field identifies the stream it came from; events from a superseded
// stream are discarded without folding.
type streamEventMsg struct {
	gen int
	ev  rag.Event
}

// streamDoneMsg signals that the stream loop returned.
type streamDoneMsg struct {
	gen int
	err error
}

// ConfigChangedMsg notifies the chat that the config file was edited
// while the session is open.
type ConfigChangedMsg struct {
	UseInterests bool
}

// exchange is one finished question/answer pair in the transcript.
type exchange struct {
	query    string
	session  *stream.Session
	rendered string // glamour-rendered answer, or the raw text when rendering failed
}

// Model is the bubbletea model for the chat session.
type Model struct {
	client *client.Client
	store  history.Store

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model
	styles   styles
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	// One live stream at a time. gen guards against stale messages
	// from an abandoned stream arriving after a new submit.
	gen       int
	events    chan tea.Msg
	cancel    context.CancelFunc
	session   *stream.Session
	query     string
	streaming bool

	exchanges []exchange
	err       error
}

// New creates the chat model. store may be nil to disable history
// recording.
func New(cl *client.Client, store history.Store) Model {
	input := textinput.New()
	input.Placeholder = "Hỏi về tài chính, chứng khoán, pháp luật..."
	input.Prompt = "❯ "
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return Model{
		client: cl,
		store:  store,
		input:  input,
		spin:   spin,
		styles: newStyles(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.resize(msg), nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.abandonStream()
			return m, tea.Quit
		case "esc":
			if m.streaming {
				// Cancel but keep the partial answer on screen; the
				// done message finalizes the exchange.
				if m.cancel != nil {
					m.cancel()
				}
				return m, nil
			}
		case "enter":
			if cmd := m.submit(); cmd != nil {
				return m, cmd
			}
			return m, nil
		}

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case streamEventMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.session.Apply(msg.ev)
		m.refreshViewport()
		return m, m.waitForEvent()

	case streamDoneMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		return m.finishStream(msg.err), nil

	case ConfigChangedMsg:
		if m.client != nil {
			m.client.SetUseInterests(msg.UseInterests)
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit starts a new streaming query, superseding any live one.
func (m *Model) submit() tea.Cmd {
	query := strings.TrimSpace(m.input.Value())
	if query == "" || m.client == nil {
		return nil
	}

	m.abandonStream()
	m.gen++
	gen := m.gen
	m.query = query
	m.session = stream.NewSession()
	m.streaming = true
	m.err = nil
	m.input.Reset()

	ch := make(chan tea.Msg, 64)
	m.events = ch
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	cl := m.client
	go func() {
		_, err := cl.StreamQuery(ctx, query, func(ev rag.Event, _ *stream.Session) {
			ch <- streamEventMsg{gen: gen, ev: ev}
		})
		ch <- streamDoneMsg{gen: gen, err: err}
	}()

	m.refreshViewport()
	return tea.Batch(m.waitForEvent(), m.spin.Tick)
}

// waitForEvent reads the next message from the current stream channel.
func (m Model) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		return <-ch
	}
}

// finishStream folds the outcome into the transcript and records the
// turn. Upstream errors stay attached to the session so the partial
// answer remains visible; request-level failures surface in the status
// line instead.
func (m Model) finishStream(err error) Model {
	m.streaming = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if m.session == nil {
		m.err = err
		return m
	}
	if !m.session.Done() {
		m.session.Interrupt()
	}

	// An upstream error or a cancelled stream is already told by the
	// folded session; only request-level failures need the status line.
	var upstream *stream.UpstreamError
	if err != nil && !errors.As(err, &upstream) && !errors.Is(err, context.Canceled) {
		m.err = err
	}

	ex := exchange{
		query:    m.query,
		session:  m.session,
		rendered: m.renderMarkdown(m.session.Answer),
	}
	m.exchanges = append(m.exchanges, ex)
	m.recordTurn(ex)

	m.session = nil
	m.query = ""
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m
}

// recordTurn persists the finished exchange. Storage failures never
// disturb the chat.
func (m Model) recordTurn(ex exchange) {
	if m.store == nil || ex.session == nil || ex.session.Answer == "" {
		return
	}
	turn := &history.Turn{
		Query:       ex.query,
		Answer:      ex.session.Answer,
		Citations:   ex.session.Citations,
		TotalTimeMs: ex.session.TotalTimeMs,
		Interrupted: ex.session.Interrupted,
	}
	store := m.store
	go func() {
		_, _ = store.Put(context.Background(), turn)
	}()
}

// abandonStream cancels the live stream without folding its remains.
func (m *Model) abandonStream() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.streaming = false
}

// resize lays out the viewport and rebuilds the markdown renderer for
// the new width.
func (m Model) resize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 1
	footerHeight := 2
	vpHeight := msg.Height - headerHeight - footerHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}
	m.input.Width = msg.Width - 4

	m.renderer = newRenderer(msg.Width - 2)
	m.refreshViewport()
	return m
}

// renderMarkdown renders the completed answer; on any failure the raw
// text is shown instead.
func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil || text == "" {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// newRenderer builds a glamour renderer matching the terminal's
// background.
func newRenderer(width int) *glamour.TermRenderer {
	if width < 10 {
		width = 10
	}
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
