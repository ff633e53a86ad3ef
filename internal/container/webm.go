//go:build opus

package container

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"voxnote/internal/capture"

	"github.com/at-wat/ebml-go/webm"
	"gopkg.in/hraban/opus.v2"
)

func init() { register(webmPackager{}) }

const opusFrameMS = 20

type webmPackager struct{}

func (webmPackager) Name() string        { return "webm" }
func (webmPackager) ContentType() string { return "audio/webm" }
func (webmPackager) Extension() string   { return ".webm" }

type closingBuffer struct{ *bytes.Buffer }

func (closingBuffer) Close() error { return nil }

// Package encodes Opus in 20ms frames inside a single-track WebM.
func (webmPackager) Package(f capture.Format, fragments [][]byte) ([]byte, error) {
	enc, err := opus.NewEncoder(f.SampleRate, f.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	out := closingBuffer{&bytes.Buffer{}}
	writers, err := webm.NewSimpleBlockWriter(out, []webm.TrackEntry{{
		Name:         "Audio",
		TrackNumber:  1,
		TrackUID:     1,
		CodecID:      "A_OPUS",
		CodecPrivate: opusHead(f),
		TrackType:    2,
		Audio: &webm.Audio{
			SamplingFrequency: float64(f.SampleRate),
			Channels:          uint64(f.Channels),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("webm writer: %w", err)
	}
	w := writers[0]

	samples := capture.BytesToInt16(capture.Concat(fragments))
	frame := f.SampleRate * opusFrameMS / 1000 * f.Channels
	packet := make([]byte, 4000)
	var ts int64
	for off := 0; off < len(samples); off += frame {
		pcm := samples[off:min(off+frame, len(samples))]
		if len(pcm) < frame {
			padded := make([]int16, frame)
			copy(padded, pcm)
			pcm = padded
		}
		n, err := enc.Encode(pcm, packet)
		if err != nil {
			return nil, fmt.Errorf("opus encode: %w", err)
		}
		if _, err := w.Write(true, ts, packet[:n]); err != nil {
			return nil, fmt.Errorf("webm write: %w", err)
		}
		ts += opusFrameMS
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// opusHead builds the identification header carried as CodecPrivate.
func opusHead(f capture.Format) []byte {
	h := make([]byte, 19)
	copy(h, "OpusHead")
	h[8] = 1
	h[9] = byte(f.Channels)
	binary.LittleEndian.PutUint16(h[10:], 0)
	binary.LittleEndian.PutUint32(h[12:], uint32(f.SampleRate))
	binary.LittleEndian.PutUint16(h[16:], 0)
	h[18] = 0
	return h
}
