package main

import (
	"fmt"
	"os"

	"voxnote/internal/control"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	root := &cobra.Command{
		Use:   "voxnote",
		Short: "voxnote: record voice notes against a speech backend",
		Long: `voxnote records your mic, uploads each note to a speech backend, and shows the
transcription, sentiment and converted audio it returns. It also speaks typed text
and answers spoken questions.

Key commands:
  record                    Terminal recorder (r record, s stop, a ask, t type, q quit)
  upload|ask <file.wav>     Send a WAV file as a note or a question
  say "text"                Text to speech, played locally
  convert                   Transcription of the most recent upload
  mic list|set              Select microphone (alias: microphone, mics)
  doctor|setup              Check backend/player/mic / write backend URL
  cache list|fetch|clear    Audio downloaded for playback
  tail-log                  Last log lines

Notable flags/env:
  --metrics-addr <addr>     Enable /metrics (Prometheus text) while recording
  --container webm|wav      Recording container
  Env overrides: VOXNOTE_SERVER_URL, VOXNOTE_METRICS_ADDR, VOXNOTE_CONTAINER,
                 VOXNOTE_TTS_BODY, VOXNOTE_LOG_LEVEL/FORMAT`,
		Example: `  voxnote setup --server http://127.0.0.1:8080
  voxnote record --metrics-addr 127.0.0.1:9318
  voxnote upload memo.wav
  voxnote say "good morning"
  voxnote mic set "MacBook Pro Microphone"`,
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}

	root.Version = version
	root.SetVersionTemplate("voxnote v{{.Version}}\n")

	cfgPath := root.PersistentFlags().StringP("config", "c", "", "Path to config file (TOML). Defaults to ~/.config/voxnote/config.toml")
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(control.NewRecordCmd(cfgPath))
	root.AddCommand(control.NewUploadCmd(cfgPath))
	root.AddCommand(control.NewAskCmd(cfgPath))
	root.AddCommand(control.NewSayCmd(cfgPath))
	root.AddCommand(control.NewConvertCmd(cfgPath))
	root.AddCommand(control.NewMicCmd(cfgPath))
	root.AddCommand(control.NewDoctorCmd(cfgPath))
	root.AddCommand(control.NewSetupCmd(cfgPath))
	root.AddCommand(control.NewCacheCmd(cfgPath))
	root.AddCommand(control.NewTailLogCmd(cfgPath))

	applyColorHelp(root)

	if err := root.Execute(); err != nil {
		return err
	}
	return nil
}

func applyColorHelp(root *cobra.Command) {
	const (
		boldBlue = "\033[1;34m"
		green    = "\033[32m"
		bold     = "\033[1m"
		dim      = "\033[2m"
		reset    = "\033[0m"
	)
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != root {
			// Subcommands keep cobra's default layout with their own flags.
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		write := func(format string, args ...any) { _, _ = fmt.Fprintf(out, format, args...) }
		writeln := func(line string) { _, _ = fmt.Fprintln(out, line) }

		write("%svoxnote%s: voice notes against a speech backend %s(v%s)%s\n", boldBlue, reset, dim, version, reset)
		write("%sRecords your mic, uploads each note, shows transcription and sentiment, plays audio back.%s\n\n", dim, reset)

		write("%sUsage%s\n", bold, reset)
		write("  voxnote [command] [flags]\n\n")

		write("%sKey commands%s\n", bold, reset)
		writeln("  record                      terminal recorder")
		writeln("  upload <file.wav>           send a WAV file as a note")
		writeln("  ask <file.wav>              send a WAV file as a question")
		writeln("  say \"text\"                  text to speech, played locally")
		writeln("  convert                     transcription of the latest upload")
		writeln("  mic list|set                select input device (alias: microphone, mics)")
		writeln("  doctor                      check backend/player/portaudio")
		writeln("  setup --server <url>        write backend URL and ping it")
		writeln("  cache list|fetch|clear      downloaded audio")
		writeln("  tail-log                    show last log lines")
		writeln("")

		write("%sNotable flags & env%s\n", bold, reset)
		writeln("  --metrics-addr <addr>   enable /metrics (Prometheus) during record")
		writeln("  --container webm|wav    recording container (webm needs -tags opus)")
		writeln("  -c, --config <path>     config file (default ~/.config/voxnote/config.toml)")
		writeln("  Env: VOXNOTE_SERVER_URL=http://host:port, VOXNOTE_METRICS_ADDR=host:port,")
		writeln("       VOXNOTE_CONTAINER=wav, VOXNOTE_TTS_BODY=form,")
		writeln("       VOXNOTE_LOG_LEVEL=debug, VOXNOTE_LOG_FORMAT=json")
		writeln("")

		write("%sExamples%s\n", bold, reset)
		writeln("  voxnote setup --server http://127.0.0.1:8080")
		writeln("  voxnote record --metrics-addr 127.0.0.1:9318")
		writeln("  voxnote upload memo.wav")
		writeln("  voxnote say \"good morning\"")
		writeln("  voxnote mic set \"MacBook Pro Microphone\"")
		writeln("")

		write("%sCommands%s\n", bold, reset)
		for _, c := range cmd.Commands() {
			if c.Hidden {
				continue
			}
			write("  %s%-15s%s %s\n", green, c.Name(), reset, c.Short)
		}
	})
}
