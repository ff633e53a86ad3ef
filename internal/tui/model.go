// Package tui is the interactive terminal front end for a recording session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voxnote/internal/session"

	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"
)

// Actions are the controller operations the keys trigger.
type Actions interface {
	Begin(ctx context.Context) error
	BeginQuestion(ctx context.Context) error
	End(ctx context.Context) error
	ConvertToText(ctx context.Context) error
	SubmitText(ctx context.Context, text string) error
	Play(ctx context.Context, ref string) error
}

// Model is the root bubbletea model.
type Model struct {
	ctx     context.Context
	actions Actions
	server  string

	// Recording state
	timer        string
	progress     float64
	showProgress bool
	status       string
	controls     session.Controls

	// Text to speech
	submitEnabled bool
	submitLabel   string
	typing        bool
	input         string
	speech        *session.Speech

	entries []session.Entry
	notices []string
	hint    string

	width  int
	height int
}

// New creates a Model in the idle configuration.
func New(ctx context.Context, actions Actions, server string, showProgress bool) Model {
	return Model{
		ctx:           ctx,
		actions:       actions,
		server:        server,
		timer:         session.FormatElapsed(0),
		showProgress:  showProgress,
		status:        session.StatusReady,
		controls:      session.Controls{Begin: true, Convert: true},
		submitEnabled: true,
		submitLabel:   session.LabelConvert,
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case TimerMsg:
		m.timer = msg.Text
	case ProgressMsg:
		m.progress = msg.Fraction
	case StatusMsg:
		m.status = msg.Text
	case ControlsMsg:
		m.controls = msg.Controls
	case SubmitMsg:
		m.submitEnabled = msg.Enabled
		m.submitLabel = msg.Label
	case SpeechMsg:
		sp := msg.Speech
		m.speech = &sp
	case NoticeMsg:
		m.notices = append(m.notices, msg.Text)
	case EntryMsg:
		m.entries = append(m.entries, msg.Entry)

	case actionDoneMsg:
		m.hint = ""
		if errors.Is(msg.Err, session.ErrInvalidState) {
			m.hint = fmt.Sprintf("%s: %v", msg.Action, msg.Err)
		}
	}
	return m, nil
}

func (m Model) act(name string, f func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{Action: name, Err: f(ctx)}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	// A notice blocks everything until dismissed.
	if len(m.notices) > 0 {
		switch key {
		case KeyEnter, KeyEsc, KeySpace:
			m.notices = m.notices[1:]
		}
		return m, nil
	}

	if m.typing {
		return m.handleTyping(msg)
	}

	switch key {
	case KeyQuit:
		return m, tea.Quit

	case KeyRecord:
		if !m.controls.Begin {
			return m, nil
		}
		m.controls = session.Controls{}
		return m, m.act("record", m.actions.Begin)

	case KeyAsk:
		if !m.controls.Begin {
			return m, nil
		}
		m.controls = session.Controls{}
		return m, m.act("ask", m.actions.BeginQuestion)

	case KeyStop:
		if !m.controls.End {
			return m, nil
		}
		m.controls = session.Controls{}
		return m, m.act("stop", m.actions.End)

	case KeyConvert:
		if !m.controls.Convert {
			return m, nil
		}
		return m, m.act("convert", m.actions.ConvertToText)

	case KeyType:
		if m.submitEnabled {
			m.typing = true
		}
		return m, nil

	case KeyPlay:
		ref := m.latestAudio()
		if ref == "" {
			return m, nil
		}
		return m, m.act("play", func(ctx context.Context) error {
			return m.actions.Play(ctx, ref)
		})
	}
	return m, nil
}

func (m Model) handleTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		return m, nil
	case tea.KeyEnter:
		if !m.submitEnabled {
			return m, nil
		}
		text := m.input
		m.typing = false
		m.input = ""
		return m, m.act("convert to audio", func(ctx context.Context) error {
			return m.actions.SubmitText(ctx, text)
		})
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

// latestAudio is the newest entry with a playable file.
func (m Model) latestAudio() string {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if a := m.entries[i].Audio; a != nil {
			return a.Ref
		}
	}
	return ""
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderEntries(width)...)
	if m.speech != nil {
		sections = append(sections, m.renderSpeech())
	}
	sections = append(sections, DividerStyle.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderInput())
	if len(m.notices) > 0 {
		sections = append(sections, NoticeStyle.Width(min(width-2, 72)).Render(m.notices[0]+"\n\n"+DimStyle.Render("enter to dismiss")))
	}
	if m.hint != "" {
		sections = append(sections, DimStyle.Render(m.hint))
	}
	sections = append(sections, m.renderFooter())
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := TitleStyle.Render("VOXNOTE")
	if m.server != "" {
		title += DimStyle.Render(" · " + m.server)
	}
	return title
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.controls.End {
		dot = RecordingDotStyle.Render("● REC")
	} else {
		dot = IdleDotStyle.Render("○ IDLE")
	}
	line := dot + "  " + TimerStyle.Render(m.timer)
	if m.showProgress {
		line += "  " + renderProgress(m.progress)
	}
	return line + "  " + StatusStyle.Render(m.status)
}

func renderProgress(fraction float64) string {
	const barLen = 20
	filled := int(fraction * barLen)
	if filled > barLen {
		filled = barLen
	}
	if filled < 0 {
		filled = 0
	}
	return ProgressFullStyle.Render(strings.Repeat("█", filled)) +
		ProgressEmptyStyle.Render(strings.Repeat("░", barLen-filled))
}

func (m Model) renderEntries(width int) []string {
	if len(m.entries) == 0 {
		return []string{DimStyle.Render("No recordings yet. Press r to record.")}
	}
	var lines []string
	for _, e := range m.entries {
		lines = append(lines, RenderEntry(e, width)...)
	}
	// Keep the newest lines when the list outgrows the screen.
	if m.height > 0 {
		room := m.height - 8
		if room < 1 {
			room = 1
		}
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}
	return lines
}

// RenderEntry formats one result as display lines.
func RenderEntry(e session.Entry, width int) []string {
	var out []string
	switch e.Kind {
	case session.EntryRecording:
		line := "♪ " + EntryTitleStyle.Render(e.Title)
		if e.Audio != nil {
			line += "  " + LinkStyle.Render(e.Audio.URL)
		}
		out = append(out, line)
	case session.EntryTranscript:
		var links []string
		for _, l := range e.Links {
			links = append(links, l.Label+": "+LinkStyle.Render(l.URL))
		}
		out = append(out, "  "+strings.Join(links, "  "))
	case session.EntrySentiment:
		line := "  Sentiment: " + SentimentStyle.Render(e.Text)
		for _, l := range e.Links {
			line += "  " + LinkStyle.Render(l.URL)
		}
		out = append(out, line)
	case session.EntryAnswer:
		out = append(out, "? "+EntryTitleStyle.Render(e.Title))
		for _, l := range wrapText(e.Text, width-2) {
			out = append(out, "  "+l)
		}
		if e.Audio != nil {
			out = append(out, "  ♪ "+LinkStyle.Render(e.Audio.URL))
		}
	}
	return out
}

func (m Model) renderSpeech() string {
	line := "♫ " + EntryTitleStyle.Render(m.speech.Label)
	if m.speech.Sentiment != "" {
		line += "  Sentiment: " + SentimentStyle.Render(m.speech.Sentiment)
	}
	if m.speech.Link != nil {
		line += "  " + LinkStyle.Render(m.speech.Link.URL)
	}
	return line
}

func (m Model) renderInput() string {
	button := ButtonStyle.Render("[" + m.submitLabel + "]")
	if !m.submitEnabled {
		button = ButtonDisabledStyle.Render("[" + m.submitLabel + "]")
	}
	if !m.typing {
		return DimStyle.Render("Text: ") + InputStyle.Render(m.input) + "  " + button
	}
	return "Text: " + InputStyle.Render(m.input+"▏") + "  " + button
}

func (m Model) renderFooter() string {
	var parts []string
	if m.typing {
		parts = append(parts, FooterKeyStyle.Render("enter")+FooterDescStyle.Render(" Submit"))
		parts = append(parts, FooterKeyStyle.Render("esc")+FooterDescStyle.Render(" Cancel"))
		return strings.Join(parts, "  ")
	}
	if m.controls.Begin {
		parts = append(parts, FooterKeyStyle.Render(KeyRecord)+FooterDescStyle.Render(" Record"))
		parts = append(parts, FooterKeyStyle.Render(KeyAsk)+FooterDescStyle.Render(" Ask"))
	}
	if m.controls.End {
		parts = append(parts, FooterKeyStyle.Render(KeyStop)+FooterDescStyle.Render(" Stop"))
	}
	if m.controls.Convert {
		parts = append(parts, FooterKeyStyle.Render(KeyConvert)+FooterDescStyle.Render(" To text"))
	}
	if m.submitEnabled {
		parts = append(parts, FooterKeyStyle.Render(KeyType)+FooterDescStyle.Render(" Type"))
	}
	if m.latestAudio() != "" {
		parts = append(parts, FooterKeyStyle.Render(KeyPlay)+FooterDescStyle.Render(" Play"))
	}
	parts = append(parts, FooterKeyStyle.Render(KeyQuit)+FooterDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}
