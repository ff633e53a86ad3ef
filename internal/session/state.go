package session

import (
	"errors"
	"fmt"
)

// State is the controller's position in the capture lifecycle.
type State int

const (
	Idle State = iota
	Recording
	Stopping
	Uploading
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	case Uploading:
		return "uploading"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Controls says which user actions are currently available.
type Controls struct {
	Begin   bool
	End     bool
	Convert bool
}

func controlsFor(s State) Controls {
	switch s {
	case Idle:
		return Controls{Begin: true, Convert: true}
	case Recording:
		return Controls{End: true}
	}
	return Controls{}
}

// Status strings shown next to the timer.
const (
	StatusReady      = "Ready"
	StatusRecording  = "Recording"
	StatusProcessing = "Processing..."
	StatusSaved      = "Saved"
	StatusFailed     = "Upload failed"
)

// Submit control labels.
const (
	LabelConvert    = "Convert to Audio"
	LabelConverting = "Converting..."
)

// User-facing notices.
const (
	msgPermissionDenied = "Permission to access the microphone was denied. Please allow microphone access and try again."
	msgDeviceFailed     = "Unable to access your microphone. Please check your permissions."
	msgSourceFailed     = "Unable to read the audio input."
	msgUploadFailed     = "There was an issue uploading the audio. Please try again."
	msgAskFailed        = "There was an issue answering your question. Please try again."
	msgEmptyText        = "Please enter some text."
	msgSpeechFailed     = "There was an issue converting the text to speech. Please try again."
	msgConvertFailed    = "There was an issue with transcription. Please try again."
	msgNoTranscription  = "No transcription available."
	msgPlaybackFailed   = "Unable to play the audio."
)

// ErrInvalidState rejects an action the current state does not allow.
var ErrInvalidState = errors.New("action not allowed in current state")

var errInputEnded = errors.New("input stream ended while recording")

// ValidationError rejects user input before any request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
