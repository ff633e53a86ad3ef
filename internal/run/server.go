package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"voxnote/internal/backend"
	"voxnote/internal/capture"
	"voxnote/internal/config"
	"voxnote/internal/container"
	"voxnote/internal/player"
	"voxnote/internal/session"
	"voxnote/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

// shutdownGrace bounds how long quitting waits for an in-flight upload.
const shutdownGrace = 30 * time.Second

// ErrSessionFailed is returned by the one-shot commands when the backend
// rejected the attempt. The user already saw the notice.
var ErrSessionFailed = errors.New("session failed")

// Server wires capture, packaging, the backend client, playback and the
// session controller for one process.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	backend   *backend.Client
	ctrl      *session.Controller
	startedAt time.Time
}

// New builds a Server that records from src and reports to view.
func New(cfg *config.Config, logger *logrus.Logger, src capture.Source, view session.View) (*Server, error) {
	if err := config.MustStatePaths(cfg); err != nil {
		return nil, err
	}
	be, err := backend.New(BackendOptions(cfg), logger)
	if err != nil {
		return nil, err
	}
	pk := container.Negotiate(cfg.Audio.Container)
	if pk.Name() != strings.ToLower(cfg.Audio.Container) {
		logger.Warnf("container %q not available in this build; using %s", cfg.Audio.Container, pk.Name())
	}
	pl := player.NewRunner(player.Options{
		Command: cfg.Player.Command,
		Timeout: seconds(cfg.Player.TimeoutSec),
		Env:     cfg.Player.Env,
	}, logger)

	ctrl := session.New(session.Options{
		Format:       FormatFromConfig(cfg),
		Packager:     pk,
		Filename:     cfg.Upload.Filename,
		CeilingSec:   cfg.Timer.CeilingSec,
		ShowProgress: cfg.Timer.ShowProgress,
		TrimSilence:  cfg.Audio.TrimSilence,
		VADMode:      cfg.Audio.Aggressiveness,
		OnTransition: func(from, to session.State) {
			logger.Debugf("session %s -> %s", from, to)
		},
	}, src, be, pl, view, logger)

	return &Server{
		cfg:       cfg,
		logger:    logger,
		backend:   be,
		ctrl:      ctrl,
		startedAt: time.Now(),
	}, nil
}

// BackendOptions maps the config onto backend client options.
func BackendOptions(cfg *config.Config) backend.Options {
	return backend.Options{
		BaseURL:       cfg.Server.URL,
		Timeout:       seconds(cfg.Server.TimeoutSec),
		UploadPath:    cfg.Endpoints.Upload,
		SpeechPath:    cfg.Endpoints.TextToSpeech,
		ConvertPath:   cfg.Endpoints.ConvertToText,
		AskPath:       cfg.Endpoints.Ask,
		FilesPath:     cfg.Endpoints.Files,
		UploadField:   cfg.Upload.Field,
		FormEncodeTTS: strings.EqualFold(cfg.TTS.Body, "form"),
		CacheDir:      cfg.Paths.CacheDir,
	}
}

// FormatFromConfig is the capture format the audio section describes.
func FormatFromConfig(cfg *config.Config) capture.Format {
	return capture.Format{
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
		FrameMS:    cfg.Audio.FrameMS,
		FragmentMS: cfg.Audio.FragmentMS,
	}
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}

// Controller exposes the session controller.
func (s *Server) Controller() *session.Controller { return s.ctrl }

// Record runs the interactive terminal UI until the user quits or the
// process is signalled.
func Record(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := tui.NewBridge()
	defer bridge.Close()
	src := capture.NewDeviceSource(cfg.Audio.DeviceName, cfg.Audio.LowpassHz, logger)
	srv, err := New(cfg, logger, src, bridge)
	if err != nil {
		return err
	}

	// Metrics server
	if cfg.Metrics.Enabled {
		go srv.metricsServe(ctx.Done(), cfg.Metrics.Addr)
	}

	model := tui.New(ctx, srv.ctrl, cfg.Server.URL, cfg.Timer.ShowProgress)
	prog := tea.NewProgram(model, tea.WithAltScreen())
	bridge.Attach(prog)

	// Handle signals; ctrl+c arrives as a key while the terminal is raw.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Infof("received signal %s, shutting down", sig)
			prog.Quit()
		case <-ctx.Done():
		}
	}()

	logger.Infof("recording ui started (server %s)", cfg.Server.URL)
	_, runErr := prog.Run()
	bridge.Close()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	if runErr != nil {
		return fmt.Errorf("terminal ui: %w", runErr)
	}
	return nil
}

// Shutdown ends an active recording so its upload still happens, then waits
// for pending work or ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.ctrl.State() == session.Recording {
		s.logger.Info("ending active recording before exit")
		if err := s.ctrl.End(ctx); err != nil {
			return err
		}
	}
	done := make(chan struct{})
	go func() {
		s.ctrl.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pending work: %w", ctx.Err())
	}
}

// Capture runs one complete session from the server's source: begin, end as
// soon as the source is drained, upload, render.
func (s *Server) Capture(ctx context.Context, question bool) error {
	before := s.ctrl.Stats()
	begin := s.ctrl.Begin
	if question {
		begin = s.ctrl.BeginQuestion
	}
	if err := begin(ctx); err != nil {
		return err
	}
	if err := s.ctrl.End(ctx); err != nil {
		return err
	}
	s.ctrl.Wait()
	if s.ctrl.Stats().Failed > before.Failed {
		return ErrSessionFailed
	}
	return nil
}

// Say converts text to speech and waits for playback.
func (s *Server) Say(ctx context.Context, text string) error {
	err := s.ctrl.SubmitText(ctx, text)
	s.ctrl.Wait()
	return err
}

// Convert asks the backend for the transcription of the last upload.
func (s *Server) Convert(ctx context.Context) error {
	return s.ctrl.ConvertToText(ctx)
}

// Ping checks that the backend answers.
func (s *Server) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
