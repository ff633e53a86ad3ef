package container

import (
	"fmt"
	"os"

	"voxnote/internal/capture"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func init() { register(wavPackager{}) }

type wavPackager struct{}

func (wavPackager) Name() string        { return "wav" }
func (wavPackager) ContentType() string { return "audio/wav" }
func (wavPackager) Extension() string   { return ".wav" }

// Package writes a 16-bit PCM WAV. The encoder needs to seek back to patch
// the header, so the file is staged on disk.
func (wavPackager) Package(f capture.Format, fragments [][]byte) ([]byte, error) {
	tmp, err := os.CreateTemp("", "voxnote-*.wav")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	samples := capture.BytesToInt16(capture.Concat(fragments))
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	enc := wav.NewEncoder(tmp, f.SampleRate, 16, f.Channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("wav close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(tmp.Name())
}
