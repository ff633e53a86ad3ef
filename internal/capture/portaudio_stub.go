//go:build !portaudio

package capture

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

var errNoPortAudio = errors.New("built without portaudio; rebuild with '-tags portaudio'")

// DeviceSource stands in for the PortAudio source in builds without it.
type DeviceSource struct {
	DeviceName string
	LowpassHz  int
	Logger     *logrus.Logger
}

func NewDeviceSource(deviceName string, lowpassHz int, logger *logrus.Logger) Source {
	return &DeviceSource{DeviceName: deviceName, LowpassHz: lowpassHz, Logger: logger}
}

func (s *DeviceSource) Open(ctx context.Context, f Format) (Stream, error) {
	return nil, &DeviceAccessError{Reason: ReasonUnavailable, Err: errNoPortAudio}
}
