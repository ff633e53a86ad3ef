//go:build portaudio

package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/sirupsen/logrus"
)

// DeviceSource captures from a PortAudio input device.
type DeviceSource struct {
	DeviceName string
	LowpassHz  int
	Logger     *logrus.Logger
}

func NewDeviceSource(deviceName string, lowpassHz int, logger *logrus.Logger) Source {
	return &DeviceSource{DeviceName: deviceName, LowpassHz: lowpassHz, Logger: logger}
}

func (s *DeviceSource) Open(ctx context.Context, f Format) (Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, deviceError(fmt.Errorf("portaudio init: %w", err))
	}
	dev, err := SelectDevice(s.DeviceName)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, deviceError(err)
	}
	buf := make([]int16, f.FrameSamples()*f.Channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: f.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(f.SampleRate),
		FramesPerBuffer: f.FrameSamples(),
	}, &buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, deviceError(fmt.Errorf("open stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, deviceError(fmt.Errorf("start stream: %w", err))
	}
	if err := ctx.Err(); err != nil {
		_ = stream.Stop()
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Infof("recording from mic: %s @ %d Hz", dev.Name, f.SampleRate)
	}
	ds := &deviceStream{
		chunker: newChunker(f, s.LowpassHz),
		stream:  stream,
		buf:     buf,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  s.Logger,
	}
	go ds.run()
	return ds, nil
}

type deviceStream struct {
	*chunker
	stream *portaudio.Stream
	buf    []int16
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *logrus.Logger
	err    error
}

func (s *deviceStream) run() {
	defer close(s.done)
	defer s.flush()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				if s.logger != nil {
					s.logger.Warn("input overflow")
				}
				continue
			}
			s.err = &DeviceAccessError{Reason: ReasonUnavailable, Err: fmt.Errorf("stream read: %w", err)}
			return
		}
		s.push(s.buf)
	}
}

func (s *deviceStream) Fragments() <-chan []byte { return s.out }

func (s *deviceStream) Stop() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		<-s.done
		if cerr := errors.Join(s.stream.Stop(), s.stream.Close(), portaudio.Terminate()); cerr != nil && s.logger != nil {
			s.logger.Warnf("close input: %v", cerr)
		}
		err = s.err
	})
	return err
}

// SelectDevice prefers an input whose name contains preferred, then the
// system default input, then any input.
func SelectDevice(preferred string) (*portaudio.DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if preferred != "" {
		for _, d := range devs {
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), strings.ToLower(preferred)) {
				return d, nil
			}
		}
	}
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		return def, nil
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input devices found")
}

func deviceError(err error) error {
	reason := ReasonUnavailable
	if strings.Contains(strings.ToLower(err.Error()), "permission") {
		reason = ReasonPermission
	}
	return &DeviceAccessError{Reason: reason, Err: err}
}
