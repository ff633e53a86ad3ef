package run

import (
	"fmt"
	"io"
	"sync"

	"voxnote/internal/session"
	"voxnote/internal/tui"

	"github.com/sirupsen/logrus"
)

// ConsoleView prints results and notices for the one-shot commands.
type ConsoleView struct {
	mu      sync.Mutex
	out     io.Writer
	logger  *logrus.Logger
	notices []string
}

func NewConsoleView(out io.Writer, logger *logrus.Logger) *ConsoleView {
	return &ConsoleView{out: out, logger: logger}
}

func (v *ConsoleView) SetTimer(text string) { v.logger.Debugf("timer %s", text) }
func (v *ConsoleView) SetProgress(fraction float64) {}
func (v *ConsoleView) SetControls(c session.Controls) {}
func (v *ConsoleView) SetSubmit(enabled bool, label string) {
	v.logger.Debugf("submit enabled=%t label=%q", enabled, label)
}

func (v *ConsoleView) SetStatus(status string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	fmt.Fprintln(v.out, status)
}

func (v *ConsoleView) Notify(message string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, message)
	fmt.Fprintln(v.out, message)
}

func (v *ConsoleView) Append(e session.Entry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, line := range tui.RenderEntry(e, 80) {
		fmt.Fprintln(v.out, line)
	}
}

func (v *ConsoleView) SetSpeech(s session.Speech) {
	v.mu.Lock()
	defer v.mu.Unlock()
	line := "speech: " + s.Label
	if s.Sentiment != "" {
		line += "  sentiment: " + s.Sentiment
	}
	if s.Link != nil {
		line += "  " + s.Link.URL
	}
	fmt.Fprintln(v.out, line)
}

// Notices returns every notice shown so far.
func (v *ConsoleView) Notices() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.notices...)
}

var _ session.View = (*ConsoleView)(nil)
