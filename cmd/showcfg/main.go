package main

import (
	"fmt"

	"voxnote/internal/config"
	"voxnote/internal/container"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	fmt.Printf("server=%q timeout=%.1fs\n", cfg.Server.URL, cfg.Server.TimeoutSec)
	fmt.Printf("upload=%s ask=%s tts=%s (%s) convert=%s files=%s\n",
		cfg.Endpoints.Upload, cfg.Endpoints.Ask, cfg.Endpoints.TextToSpeech, cfg.TTS.Body,
		cfg.Endpoints.ConvertToText, cfg.Endpoints.Files)
	pk := container.Negotiate(cfg.Audio.Container)
	fmt.Printf("field=%s filename=%s%s content-type=%s\n", cfg.Upload.Field, cfg.Upload.Filename, pk.Extension(), pk.ContentType())
	fmt.Printf("audio=%dHz/%dch frame=%dms fragment=%dms lowpass=%dHz\n",
		cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.FrameMS, cfg.Audio.FragmentMS, cfg.Audio.LowpassHz)
}
