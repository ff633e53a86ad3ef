package player

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxnote/internal/logging"
)

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs(`ffplay -nodisp -window_title "voice note"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(args) != 4 || args[3] != "voice note" {
		t.Fatalf("args = %q", args)
	}
	if args, _ := ParseArgs("  "); len(args) != 0 {
		t.Fatalf("blank command should parse to nothing")
	}
}

func TestPlayPassesPathAndEnv(t *testing.T) {
	dir := t.TempDir()
	clip := filepath.Join(dir, "clip.wav")
	if err := os.WriteFile(clip, []byte("RIFF"), 0o600); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	marker := filepath.Join(dir, "played")

	r := NewRunner(Options{
		Command: `/bin/sh -c 'printf "%s|%s|%s" "$1" "$VOXNOTE_AUDIO" "$MARK_EXTRA" > "$MARK"' player`,
		Env:     map[string]string{"MARK": marker, "MARK_EXTRA": "x"},
		Timeout: 5 * time.Second,
	}, logging.NewTestLogger())

	if err := r.Play(context.Background(), clip); err != nil {
		t.Fatalf("play: %v", err)
	}
	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("marker: %v", err)
	}
	want := clip + "|" + clip + "|x"
	if string(got) != want {
		t.Fatalf("marker = %q, want %q", got, want)
	}
}

func TestPlayMissingFile(t *testing.T) {
	r := NewRunner(Options{Command: "/bin/true"}, logging.NewTestLogger())
	if err := r.Play(context.Background(), filepath.Join(t.TempDir(), "none.mp3")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestPlayWithoutCommand(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "clip.wav")
	_ = os.WriteFile(clip, []byte("x"), 0o600)
	r := NewRunner(Options{}, logging.NewTestLogger())
	if err := r.Play(context.Background(), clip); err == nil {
		t.Fatalf("expected error without command")
	}
}

func TestPlayTimeout(t *testing.T) {
	clip := filepath.Join(t.TempDir(), "clip.wav")
	_ = os.WriteFile(clip, []byte("x"), 0o600)
	r := NewRunner(Options{Command: `/bin/sh -c 'exec sleep 5' player`, Timeout: 100 * time.Millisecond}, logging.NewTestLogger())
	start := time.Now()
	if err := r.Play(context.Background(), clip); err == nil {
		t.Fatalf("expected timeout error")
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout not enforced")
	}
}
