package capture

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/wav"
)

// FileSource replays a WAV file as if it were captured live. The file is
// converted to the requested format (downmix and linear resampling).
type FileSource struct {
	Path      string
	LowpassHz int
}

func NewFileSource(path string, lowpassHz int) *FileSource {
	return &FileSource{Path: path, LowpassHz: lowpassHz}
}

func (s *FileSource) Open(ctx context.Context, f Format) (Stream, error) {
	samples, err := ReadWAV(s.Path, f)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	st := &fileStream{
		chunker: newChunker(f, s.LowpassHz),
		stop:    make(chan struct{}),
	}
	go st.run(samples, f.FrameSamples()*f.Channels)
	return st, nil
}

type fileStream struct {
	*chunker
	stop chan struct{}
	once sync.Once
}

func (s *fileStream) run(samples []int16, frame int) {
	if frame <= 0 {
		frame = len(samples)
	}
	for len(samples) > 0 {
		n := min(frame, len(samples))
		s.push(samples[:n])
		samples = samples[n:]
	}
	<-s.stop
	s.flush()
}

func (s *fileStream) Fragments() <-chan []byte { return s.out }

func (s *fileStream) Stop() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// ReadWAV decodes a PCM WAV file into interleaved int16 samples in format f.
func ReadWAV(path string, f Format) ([]int16, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	dec := wav.NewDecoder(fh)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid wav file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	srcCh := int(dec.NumChans)
	if srcCh < 1 {
		srcCh = 1
	}
	shift := int(dec.BitDepth) - 16

	mono := make([]float32, len(buf.Data)/srcCh)
	for i := range mono {
		var sum float32
		for c := 0; c < srcCh; c++ {
			v := buf.Data[i*srcCh+c]
			if shift > 0 {
				v >>= shift
			} else if shift < 0 {
				v <<= -shift
			}
			sum += float32(v)
		}
		mono[i] = sum / float32(srcCh)
	}
	mono = resampleLinear(mono, int(dec.SampleRate), f.SampleRate)

	channels := max(1, f.Channels)
	out := make([]int16, len(mono)*channels)
	for i, v := range mono {
		s := clamp16(float64(v))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = s
		}
	}
	return out, nil
}
