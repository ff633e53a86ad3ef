package capture

import (
	"fmt"

	vad "github.com/maxhawkins/go-webrtcvad"
)

// TrimSilence drops leading and trailing non-speech frames from mono PCM16.
// Audio without any detected speech, or in a layout the VAD cannot read, is
// returned unchanged.
func TrimSilence(f Format, pcm []byte, aggressiveness int) ([]byte, error) {
	if f.Channels != 1 {
		return pcm, nil
	}
	v, err := vad.New()
	if err != nil {
		return nil, fmt.Errorf("vad init: %w", err)
	}
	frameSamples := f.FrameSamples()
	if !v.ValidRateAndFrameLength(f.SampleRate, frameSamples) {
		return nil, fmt.Errorf("invalid frame_ms %d for sample_rate %d", f.FrameMS, f.SampleRate)
	}
	if err := v.SetMode(aggressiveness); err != nil {
		return nil, fmt.Errorf("vad mode: %w", err)
	}

	frameBytes := frameSamples * 2
	first, last := -1, -1
	for off := 0; off+frameBytes <= len(pcm); off += frameBytes {
		voice, err := v.Process(f.SampleRate, pcm[off:off+frameBytes])
		if err != nil {
			return nil, fmt.Errorf("vad process: %w", err)
		}
		if voice {
			if first < 0 {
				first = off
			}
			last = off + frameBytes
		}
	}
	if first < 0 {
		return pcm, nil
	}
	out := make([]byte, last-first)
	copy(out, pcm[first:last])
	return out, nil
}
