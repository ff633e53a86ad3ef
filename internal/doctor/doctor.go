package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"voxnote/internal/config"
	"voxnote/internal/container"
	"voxnote/internal/player"
)

// Result represents a diagnostic check.
type Result struct {
	Name   string
	Pass   bool
	Detail string
}

// Pinger reaches the speech backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Run executes doctor checks.
func Run(ctx context.Context, cfg *config.Config, backend Pinger) []Result {
	results := []Result{
		checkFile("config path", cfg.Paths.ConfigPath),
		checkBackend(ctx, cfg.Server.URL, backend),
		checkPlayer(cfg.Player.Command),
		checkWritableDir("cache dir", cfg.Paths.CacheDir),
		checkContainer(cfg.Audio.Container),
		checkPortAudioPkgConfig(),
	}
	results = append(results, checkPortAudio())
	return results
}

func checkFile(label, path string) Result {
	if path == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if _, err := os.Stat(os.ExpandEnv(path)); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: path}
}

func checkBackend(ctx context.Context, url string, backend Pinger) Result {
	if backend == nil {
		return Result{Name: "server", Pass: false, Detail: "invalid server.url " + url}
	}
	if err := backend.Ping(ctx); err != nil {
		return Result{Name: "server", Pass: false, Detail: err.Error()}
	}
	return Result{Name: "server", Pass: true, Detail: url}
}

func checkPlayer(command string) Result {
	label := "player"
	args, err := player.ParseArgs(command)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	if len(args) == 0 {
		return Result{Name: label, Pass: false, Detail: "player.command not set"}
	}
	path := os.ExpandEnv(args[0])
	// If contains a path separator, treat as explicit path.
	if strings.Contains(path, "/") || strings.Contains(path, "\\") {
		info, err := os.Stat(path)
		if err != nil {
			return Result{Name: label, Pass: false, Detail: err.Error()}
		}
		if info.IsDir() {
			return Result{Name: label, Pass: false, Detail: "is a directory; set player.command to an executable file"}
		}
		if info.Mode().Perm()&0o111 == 0 {
			return Result{Name: label, Pass: false, Detail: "not executable; chmod +x or choose another command"}
		}
		return Result{Name: label, Pass: true, Detail: path}
	}
	// Else search PATH.
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	return Result{Name: label, Pass: true, Detail: resolved}
}

func checkWritableDir(label, dir string) Result {
	if dir == "" {
		return Result{Name: label, Pass: false, Detail: "not set"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	f, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return Result{Name: label, Pass: false, Detail: err.Error()}
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return Result{Name: label, Pass: true, Detail: filepath.Clean(dir)}
}

func checkContainer(preferred string) Result {
	got := container.Negotiate(preferred)
	detail := fmt.Sprintf("%s (%s); built in: %s", got.Name(), got.ContentType(), strings.Join(container.Available(), ", "))
	if !strings.EqualFold(got.Name(), preferred) {
		return Result{Name: "container", Pass: false, Detail: fmt.Sprintf("%q unavailable, falling back to %s; rebuild with '-tags opus'", preferred, detail)}
	}
	return Result{Name: "container", Pass: true, Detail: detail}
}

func checkPortAudioPkgConfig() Result {
	pkg, err := exec.LookPath("pkg-config")
	if err != nil {
		return Result{Name: "pkg-config", Pass: false, Detail: "pkg-config not found (brew install pkg-config)"}
	}
	cmd := exec.Command(pkg, "--exists", "portaudio-2.0")
	if err := cmd.Run(); err != nil {
		return Result{Name: "portaudio", Pass: false, Detail: "portaudio-2.0 not found (brew install portaudio)"}
	}
	// Optional display version
	versionCmd := exec.Command(pkg, "--modversion", "portaudio-2.0")
	if out, err := versionCmd.Output(); err == nil {
		return Result{Name: "portaudio", Pass: true, Detail: strings.TrimSpace(string(out))}
	}
	return Result{Name: "portaudio", Pass: true, Detail: "found via pkg-config"}
}
