// Package player plays local audio files through an external command.
package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// Options configures a Runner.
type Options struct {
	Command string // e.g. "ffplay -nodisp -autoexit"; the file path is appended
	Timeout time.Duration
	Env     map[string]string
}

// Runner executes the player, one file at a time.
type Runner struct {
	opts   Options
	logger *logrus.Logger
	mu     sync.Mutex
}

func NewRunner(opts Options, logger *logrus.Logger) *Runner {
	return &Runner{opts: opts, logger: logger}
}

// ParseArgs splits a command line the way a shell would.
func ParseArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	return shlex.Split(raw)
}

// Play blocks until the player exits. Overlapping calls are serialized so
// clips never talk over each other.
func (r *Runner) Play(ctx context.Context, path string) error {
	argv, err := ParseArgs(r.opts.Command)
	if err != nil {
		return fmt.Errorf("parse player.command: %w", err)
	}
	if len(argv) == 0 {
		return fmt.Errorf("no player.command configured")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx := ctx
	var cancel context.CancelFunc
	if r.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	args := append(argv[1:], path)
	cmd := exec.CommandContext(runCtx, argv[0], args...)
	cmd.WaitDelay = time.Second
	cmd.Env = os.Environ()
	for k, v := range r.opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	cmd.Env = append(cmd.Env, fmt.Sprintf("VOXNOTE_AUDIO=%s", path))

	out, err := cmd.CombinedOutput()
	if len(out) > 0 && r.logger != nil {
		r.logger.Debugf("player output: %s", strings.TrimSpace(string(out)))
	}
	if err != nil {
		return fmt.Errorf("player failed: %w", err)
	}
	return nil
}
