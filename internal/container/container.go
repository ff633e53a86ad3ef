// Package container turns captured PCM fragments into an uploadable file.
package container

import (
	"sort"
	"strings"
	"sync"

	"voxnote/internal/capture"
)

// Packager encodes a finished recording.
type Packager interface {
	Name() string
	ContentType() string
	Extension() string
	Package(f capture.Format, fragments [][]byte) ([]byte, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Packager{}
)

func register(p Packager) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// Negotiate returns the preferred packager when this build carries it and
// falls back to WAV otherwise.
func Negotiate(preferred string) Packager {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if p, ok := registry[strings.ToLower(strings.TrimSpace(preferred))]; ok {
		return p
	}
	return registry["wav"]
}

// Available lists the packagers compiled into this build.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
