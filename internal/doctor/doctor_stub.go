//go:build !portaudio

package doctor

func checkPortAudio() Result {
	return Result{Name: "microphone", Pass: false, Detail: "built without portaudio; rebuild with '-tags portaudio'"}
}
