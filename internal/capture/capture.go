// Package capture produces microphone audio as an ordered stream of PCM
// fragments.
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Format describes the PCM16LE audio a Source delivers.
type Format struct {
	SampleRate int
	Channels   int
	FrameMS    int // device read size
	FragmentMS int // timeslice per delivered fragment
}

// FrameSamples is the number of samples per channel in one device read.
func (f Format) FrameSamples() int {
	return f.SampleRate * f.FrameMS / 1000
}

// FragmentSamples is the number of interleaved samples in a full fragment.
func (f Format) FragmentSamples() int {
	n := f.SampleRate * f.FragmentMS / 1000 * f.Channels
	if n <= 0 {
		n = f.FrameSamples() * f.Channels
	}
	return n
}

// BytesPerSecond of PCM16 audio in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration of n bytes of PCM16 audio in this format.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Source opens capture streams.
type Source interface {
	// Open blocks until the input device is granted or refused. Refusals are
	// reported as *DeviceAccessError; other sources return plain errors.
	Open(ctx context.Context, f Format) (Stream, error)
}

// Stream is one open capture. Fragments arrive in temporal order. Stop
// flushes buffered samples as a last fragment and then closes the channel;
// the channel is closed even when Stop returns an error. A non-nil error
// from Stop means the capture was cut short.
type Stream interface {
	Fragments() <-chan []byte
	Stop() error
}

// Reason classifies a DeviceAccessError.
type Reason int

const (
	ReasonUnavailable Reason = iota
	ReasonPermission
)

// DeviceAccessError reports that the input device could not be opened or
// failed while recording.
type DeviceAccessError struct {
	Reason Reason
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e.Reason == ReasonPermission {
		return fmt.Sprintf("microphone permission denied: %v", e.Err)
	}
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// IsPermissionDenied reports whether err is a refused device grant.
func IsPermissionDenied(err error) bool {
	var de *DeviceAccessError
	return errors.As(err, &de) && de.Reason == ReasonPermission
}

// Int16ToBytes encodes samples as PCM16LE.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes PCM16LE; a trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// Concat joins fragments in order.
func Concat(fragments [][]byte) []byte {
	n := 0
	for _, f := range fragments {
		n += len(f)
	}
	out := make([]byte, 0, n)
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}
