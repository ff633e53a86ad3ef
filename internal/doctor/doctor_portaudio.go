//go:build portaudio

package doctor

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
)

func checkPortAudio() Result {
	if err := portaudio.Initialize(); err != nil {
		return Result{Name: "microphone", Pass: false, Detail: fmt.Sprintf("init failed: %v (install with: brew install portaudio)", err)}
	}
	defer func() {
		_ = portaudio.Terminate()
	}()
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Result{Name: "microphone", Pass: false, Detail: fmt.Sprintf("no default input: %v", err)}
	}
	return Result{Name: "microphone", Pass: true, Detail: dev.Name}
}
