package control

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxnote/internal/config"

	"github.com/spf13/cobra"
)

func writeConfig(t *testing.T, serverURL string) (string, *config.Config) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	dir := t.TempDir()
	cfg.Server.URL = serverURL
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "voxnote.log")
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	path := filepath.Join(dir, "config.toml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("save: %v", err)
	}
	return path, cfg
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "voxnote", SilenceUsage: true, SilenceErrors: true}
	cfgPath := root.PersistentFlags().StringP("config", "c", "", "config file")
	root.AddCommand(NewMicCmd(cfgPath))
	root.AddCommand(NewSetupCmd(cfgPath))
	root.AddCommand(NewCacheCmd(cfgPath))
	root.AddCommand(NewTailLogCmd(cfgPath))
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestMicSetWritesConfig(t *testing.T) {
	path, _ := writeConfig(t, "http://127.0.0.1:1")
	out, err := execute(t, "-c", path, "mic", "set", "USB Mic")
	if err != nil {
		t.Fatalf("mic set: %v", err)
	}
	if !strings.Contains(out, `"USB Mic"`) {
		t.Fatalf("output = %q", out)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Audio.DeviceName != "USB Mic" {
		t.Fatalf("device = %q", cfg.Audio.DeviceName)
	}
}

func TestSetupWritesServerAndPings(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	path, _ := writeConfig(t, "http://127.0.0.1:1")
	out, err := execute(t, "-c", path, "setup", "--server", ts.URL, "--tts-body", "form")
	if err != nil {
		t.Fatalf("setup: %v (%s)", err, out)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Server.URL != ts.URL || cfg.TTS.Body != "form" {
		t.Fatalf("server=%q body=%q", cfg.Server.URL, cfg.TTS.Body)
	}
	if !strings.Contains(out, "ok") {
		t.Fatalf("output = %q", out)
	}
}

func TestSetupRejectsBadBody(t *testing.T) {
	path, _ := writeConfig(t, "http://127.0.0.1:1")
	if _, err := execute(t, "-c", path, "setup", "--tts-body", "xml"); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestCacheFetchListClear(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/uploads/answer.mp3" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ID3data"))
	}))
	defer ts.Close()

	path, cfg := writeConfig(t, ts.URL)
	if out, err := execute(t, "-c", path, "cache", "fetch", "answer.mp3"); err != nil {
		t.Fatalf("fetch: %v (%s)", err, out)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Paths.CacheDir, "answer.mp3"))
	if err != nil || string(data) != "ID3data" {
		t.Fatalf("cached = %q err=%v", data, err)
	}

	out, err := execute(t, "-c", path, "cache", "list")
	if err != nil || !strings.Contains(out, "answer.mp3 (7 bytes)") {
		t.Fatalf("list = %q err=%v", out, err)
	}

	out, err = execute(t, "-c", path, "cache", "clear")
	if err != nil || !strings.Contains(out, "removed 1 file(s)") {
		t.Fatalf("clear = %q err=%v", out, err)
	}
	files, _ := listCache(cfg.Paths.CacheDir)
	if len(files) != 0 {
		t.Fatalf("cache not empty: %v", files)
	}
}

func TestCacheFetchMissing(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	path, _ := writeConfig(t, ts.URL)
	if _, err := execute(t, "-c", path, "cache", "fetch", "nope.mp3"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTailLogLastLines(t *testing.T) {
	path, cfg := writeConfig(t, "http://127.0.0.1:1")
	var lines []string
	for i := 0; i < 60; i++ {
		lines = append(lines, "line "+string(rune('A'+i%26)))
	}
	if err := os.WriteFile(cfg.Paths.LogPath, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, err := execute(t, "-c", path, "tail-log")
	if err != nil {
		t.Fatalf("tail-log: %v", err)
	}
	got := strings.Split(strings.TrimSpace(out), "\n")
	if len(got) != 50 {
		t.Fatalf("lines = %d", len(got))
	}
	if got[len(got)-1] != lines[len(lines)-1] {
		t.Fatalf("last = %q", got[len(got)-1])
	}
}
