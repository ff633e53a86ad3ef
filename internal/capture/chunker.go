package capture

// chunker groups device reads into fragment-sized slices and runs the
// optional filter over every sample before it is buffered.
type chunker struct {
	size   int
	filter *Lowpass
	buf    []int16
	out    chan []byte
}

func newChunker(f Format, lowpassHz int) *chunker {
	c := &chunker{
		size: f.FragmentSamples(),
		out:  make(chan []byte, 64),
	}
	if lowpassHz > 0 {
		c.filter = NewLowpass(float64(lowpassHz), float64(f.SampleRate), f.Channels)
	}
	c.buf = make([]int16, 0, c.size)
	return c
}

func (c *chunker) push(samples []int16) {
	in := make([]int16, len(samples))
	copy(in, samples)
	if c.filter != nil {
		c.filter.Process(in)
	}
	for len(in) > 0 {
		n := min(c.size-len(c.buf), len(in))
		c.buf = append(c.buf, in[:n]...)
		in = in[n:]
		if len(c.buf) == c.size {
			c.out <- Int16ToBytes(c.buf)
			c.buf = c.buf[:0]
		}
	}
}

// flush emits the partial fragment, if any, and closes the channel.
func (c *chunker) flush() {
	if len(c.buf) > 0 {
		c.out <- Int16ToBytes(c.buf)
		c.buf = c.buf[:0]
	}
	close(c.out)
}
