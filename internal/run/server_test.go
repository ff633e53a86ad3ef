package run

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voxnote/internal/capture"
	"voxnote/internal/config"
	"voxnote/internal/container"
	"voxnote/internal/logging"
	"voxnote/internal/session"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	dir := t.TempDir()
	cfg.Server.URL = serverURL
	cfg.Audio.Container = "wav"
	cfg.Paths.StateDir = dir
	cfg.Paths.LogPath = filepath.Join(dir, "voxnote.log")
	cfg.Paths.CacheDir = filepath.Join(dir, "cache")
	return cfg
}

func writeTone(t *testing.T, cfg *config.Config, samples int) string {
	t.Helper()
	f := FormatFromConfig(cfg)
	pcm := make([]int16, samples)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(f.SampleRate)))
	}
	data, err := container.Negotiate("wav").Package(f, [][]byte{capture.Int16ToBytes(pcm)})
	if err != nil {
		t.Fatalf("package tone: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write tone: %v", err)
	}
	return path
}

func TestCaptureUploadsFileAndRendersResult(t *testing.T) {
	var gotName, gotType string
	var gotLen int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			http.NotFound(w, r)
			return
		}
		f, hdr, err := r.FormFile("audio_data")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(f)
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")
		gotLen = buf.Len()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"file":      "recorded_audio.wav",
			"sentiment": "neutral",
		})
	}))
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	wavPath := writeTone(t, cfg, 24000)
	var out bytes.Buffer
	view := NewConsoleView(&out, logging.NewTestLogger())
	srv, err := New(cfg, logging.NewTestLogger(), capture.NewFileSource(wavPath, cfg.Audio.LowpassHz), view)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if err := srv.Capture(context.Background(), false); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if gotName != "recorded_audio.wav" || gotType != "audio/wav" {
		t.Fatalf("multipart name=%q type=%q", gotName, gotType)
	}
	if want := 44 + 24000*2; gotLen != want {
		t.Fatalf("payload len = %d, want %d", gotLen, want)
	}
	text := out.String()
	if !strings.Contains(text, "recorded_audio.mp3") || !strings.Contains(text, "neutral") {
		t.Fatalf("console output missing entries:\n%s", text)
	}
	if !strings.Contains(text, session.StatusSaved) {
		t.Fatalf("console output missing saved status:\n%s", text)
	}
	if srv.Controller().State() != session.Idle {
		t.Fatalf("state = %s", srv.Controller().State())
	}
}

func TestCaptureFailureReturnsSessionFailed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"disk full"}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	wavPath := writeTone(t, cfg, 1600)
	view := NewConsoleView(&bytes.Buffer{}, logging.NewTestLogger())
	srv, err := New(cfg, logging.NewTestLogger(), capture.NewFileSource(wavPath, 0), view)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = srv.Capture(context.Background(), false)
	if !errors.Is(err, ErrSessionFailed) {
		t.Fatalf("err = %v, want ErrSessionFailed", err)
	}
	if n := len(view.Notices()); n != 1 {
		t.Fatalf("notices = %d", n)
	}
}

func TestCaptureMissingFileIsNotDeviceError(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	view := NewConsoleView(&bytes.Buffer{}, logging.NewTestLogger())
	srv, err := New(cfg, logging.NewTestLogger(), capture.NewFileSource(filepath.Join(t.TempDir(), "none.wav"), 0), view)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = srv.Capture(context.Background(), true)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
	var de *capture.DeviceAccessError
	if errors.As(err, &de) {
		t.Fatalf("missing file reported as device error: %v", err)
	}
	notices := view.Notices()
	if len(notices) != 1 || strings.Contains(notices[0], "microphone") {
		t.Fatalf("notices = %q", notices)
	}
}

func TestSayPlaysRawAudio(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3fake"))
	}))
	defer ts.Close()

	cfg := testConfig(t, ts.URL)
	marker := filepath.Join(t.TempDir(), "played")
	cfg.Player.Command = `/bin/sh -c 'cat "$1" > "$MARK"' player`
	cfg.Player.Env = map[string]string{"MARK": marker}

	srv, err := New(cfg, logging.NewTestLogger(), capture.NewDeviceSource("", 0, nil), NewConsoleView(&bytes.Buffer{}, logging.NewTestLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := srv.Say(context.Background(), "hello"); err != nil {
		t.Fatalf("say: %v", err)
	}
	got, err := os.ReadFile(marker)
	if err != nil {
		t.Fatalf("marker: %v", err)
	}
	if string(got) != "ID3fake" {
		t.Fatalf("played %q", got)
	}
}

func TestShutdownWaitsForNothingWhenIdle(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	srv, err := New(cfg, logging.NewTestLogger(), capture.NewFileSource("", 0), NewConsoleView(&bytes.Buffer{}, logging.NewTestLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestMetricsHandler(t *testing.T) {
	stats := func() session.StatsSnapshot {
		return session.StatsSnapshot{Started: 3, Uploaded: 2, Failed: 1, Speech: 4}
	}
	rec := httptest.NewRecorder()
	metricsHandler(stats, time.Now()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"voxnote_sessions_started_total 3",
		"voxnote_sessions_uploaded_total 2",
		"voxnote_sessions_failed_total 1",
		"voxnote_speech_requests_total 4",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}

func TestBackendOptionsFromConfig(t *testing.T) {
	cfg := testConfig(t, "http://example.test:9000")
	cfg.TTS.Body = "form"
	cfg.Server.TimeoutSec = 2.5
	opts := BackendOptions(cfg)
	if !opts.FormEncodeTTS || opts.Timeout != 2500*time.Millisecond {
		t.Fatalf("opts = %+v", opts)
	}
	if opts.AskPath != "/ask_book" || opts.UploadField != "audio_data" {
		t.Fatalf("opts = %+v", opts)
	}
}
