package control

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"voxnote/internal/backend"
	"voxnote/internal/capture"
	"voxnote/internal/config"
	"voxnote/internal/doctor"
	"voxnote/internal/logging"
	"voxnote/internal/run"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRecordCmd runs the interactive recorder.
func NewRecordCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Open the recorder (terminal UI)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr := cmd.Flag("metrics-addr").Value.String(); addr != "" {
				if err := os.Setenv("VOXNOTE_METRICS_ADDR", addr); err != nil {
					return fmt.Errorf("set VOXNOTE_METRICS_ADDR: %w", err)
				}
			}
			if c := cmd.Flag("container").Value.String(); c != "" {
				if err := os.Setenv("VOXNOTE_CONTAINER", c); err != nil {
					return fmt.Errorf("set VOXNOTE_CONTAINER: %w", err)
				}
			}
			cfg, logger, err := loadWithLogger(*cfgPath)
			if err != nil {
				return err
			}
			if noProgress, _ := cmd.Flags().GetBool("no-progress"); noProgress {
				cfg.Timer.ShowProgress = false
			}
			return run.Record(cfg, logger)
		},
	}
	cmd.Flags().String("metrics-addr", "", "enable metrics at address (e.g., 127.0.0.1:9318)")
	cmd.Flags().String("container", "", "recording container: webm or wav")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")
	return cmd
}

// NewUploadCmd runs one capture session fed from a WAV file.
func NewUploadCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.wav>",
		Short: "Upload a WAV file as a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return captureFile(cmd, *cfgPath, args[0], false)
		},
	}
}

// NewAskCmd sends a recorded question from a WAV file.
func NewAskCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <file.wav>",
		Short: "Ask a spoken question from a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return captureFile(cmd, *cfgPath, args[0], true)
		},
	}
}

func captureFile(cmd *cobra.Command, cfgPath, path string, question bool) error {
	cfg, logger, err := loadWithLogger(cfgPath)
	if err != nil {
		return err
	}
	view := run.NewConsoleView(cmd.OutOrStdout(), logger)
	srv, err := run.New(cfg, logger, capture.NewFileSource(path, cfg.Audio.LowpassHz), view)
	if err != nil {
		return err
	}
	return srv.Capture(contextOf(cmd), question)
}

// NewSayCmd converts text to speech and plays it.
func NewSayCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "say \"some text\"",
		Short: "Convert text to speech and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := consoleServer(cmd, *cfgPath)
			if err != nil {
				return err
			}
			return srv.Say(contextOf(cmd), strings.Join(args, " "))
		},
	}
}

// NewConvertCmd prints the transcription of the most recent upload.
func NewConvertCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "Transcribe the most recent upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := consoleServer(cmd, *cfgPath)
			if err != nil {
				return err
			}
			return srv.Convert(contextOf(cmd))
		},
	}
}

func consoleServer(cmd *cobra.Command, cfgPath string) (*run.Server, error) {
	cfg, logger, err := loadWithLogger(cfgPath)
	if err != nil {
		return nil, err
	}
	view := run.NewConsoleView(cmd.OutOrStdout(), logger)
	src := capture.NewDeviceSource(cfg.Audio.DeviceName, cfg.Audio.LowpassHz, logger)
	return run.New(cfg, logger, src, view)
}

// NewTailLogCmd tails the main log file (simple last N lines).
func NewTailLogCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tail-log",
		Short: "Show last 50 log lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return tailFile(cmd, cfg.Paths.LogPath, 50)
		},
	}
}

func tailFile(cmd *cobra.Command, path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			cmd.Println(l)
		}
	}
	return nil
}

// NewDoctorCmd runs environment checks.
func NewDoctorCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend, player and microphone setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			var pinger doctor.Pinger
			if be, err := backend.New(run.BackendOptions(cfg), nil); err == nil {
				pinger = be
			}
			results := doctor.Run(contextOf(cmd), cfg, pinger)
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(results)
			}
			exitCode := 0
			for _, r := range results {
				status := "ok"
				if !r.Pass {
					status = "fail"
					exitCode = 1
				}
				cmd.Printf("%-12s %-4s %s\n", r.Name, status, r.Detail)
			}
			if exitCode != 0 {
				return fmt.Errorf("doctor found issues")
			}
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}

func loadWithLogger(cfgPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Configure(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
