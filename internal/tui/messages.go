package tui

import "voxnote/internal/session"

// TimerMsg updates the elapsed-time display.
type TimerMsg struct{ Text string }

// ProgressMsg updates the progress bar, 0..1.
type ProgressMsg struct{ Fraction float64 }

// StatusMsg replaces the status text.
type StatusMsg struct{ Text string }

// ControlsMsg carries which recording actions are enabled.
type ControlsMsg struct{ Controls session.Controls }

// SubmitMsg updates the text submit control.
type SubmitMsg struct {
	Enabled bool
	Label   string
}

// SpeechMsg shows the latest text-to-speech result.
type SpeechMsg struct{ Speech session.Speech }

// NoticeMsg queues a blocking notice.
type NoticeMsg struct{ Text string }

// EntryMsg appends a rendered result.
type EntryMsg struct{ Entry session.Entry }

// actionDoneMsg reports the return of a controller call.
type actionDoneMsg struct {
	Action string
	Err    error
}
