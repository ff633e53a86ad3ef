package capture

import "math"

// Lowpass is a second-order Butterworth lowpass over interleaved PCM16.
type Lowpass struct {
	b0, b1, b2, a1, a2 float64
	channels           int
	x1, x2, y1, y2     []float64
}

// NewLowpass returns nil when cutoff is at or above Nyquist.
func NewLowpass(cutoffHz, sampleRate float64, channels int) *Lowpass {
	if cutoffHz <= 0 || sampleRate <= 0 || cutoffHz >= sampleRate/2 {
		return nil
	}
	if channels < 1 {
		channels = 1
	}
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosW := math.Cos(w0)
	alpha := math.Sin(w0) / math.Sqrt2 // Q = 1/sqrt(2)
	a0 := 1 + alpha
	return &Lowpass{
		b0:       (1 - cosW) / 2 / a0,
		b1:       (1 - cosW) / a0,
		b2:       (1 - cosW) / 2 / a0,
		a1:       -2 * cosW / a0,
		a2:       (1 - alpha) / a0,
		channels: channels,
		x1:       make([]float64, channels),
		x2:       make([]float64, channels),
		y1:       make([]float64, channels),
		y2:       make([]float64, channels),
	}
}

// Process filters samples in place. State carries across calls.
func (l *Lowpass) Process(samples []int16) {
	if l == nil {
		return
	}
	for i, s := range samples {
		ch := i % l.channels
		x := float64(s)
		y := l.b0*x + l.b1*l.x1[ch] + l.b2*l.x2[ch] - l.a1*l.y1[ch] - l.a2*l.y2[ch]
		l.x2[ch], l.x1[ch] = l.x1[ch], x
		l.y2[ch], l.y1[ch] = l.y1[ch], y
		samples[i] = clamp16(y)
	}
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
