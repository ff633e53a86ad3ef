package tui

import (
	"sync"

	"voxnote/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Bridge implements session.View by forwarding every change to a running
// program. Calls never block: messages queue until Attach and are delivered
// in call order.
type Bridge struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewBridge() *Bridge {
	return &Bridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Attach starts delivery to p. Call it once.
func (b *Bridge) Attach(p *tea.Program) {
	go b.pump(p)
}

// Close stops delivery; later messages are dropped.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) pump(p *tea.Program) {
	for {
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()
		for _, msg := range batch {
			p.Send(msg)
		}
		select {
		case <-b.done:
			return
		case <-b.wake:
		}
	}
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	b.mu.Lock()
	b.pending = append(b.pending, msg)
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) SetTimer(text string) { b.send(TimerMsg{Text: text}) }
func (b *Bridge) SetProgress(fraction float64) { b.send(ProgressMsg{Fraction: fraction}) }
func (b *Bridge) SetStatus(status string) { b.send(StatusMsg{Text: status}) }
func (b *Bridge) SetControls(c session.Controls) { b.send(ControlsMsg{Controls: c}) }
func (b *Bridge) SetSpeech(s session.Speech) { b.send(SpeechMsg{Speech: s}) }
func (b *Bridge) Notify(message string) { b.send(NoticeMsg{Text: message}) }
func (b *Bridge) Append(e session.Entry) { b.send(EntryMsg{Entry: e}) }
func (b *Bridge) SetSubmit(enabled bool, l string) { b.send(SubmitMsg{Enabled: enabled, Label: l}) }

var _ session.View = (*Bridge)(nil)
