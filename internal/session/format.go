package session

import (
	"fmt"
	"path"
	"strings"
)

// FormatElapsed renders whole seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Progress maps elapsed seconds onto [0, 1] against ceiling seconds.
func Progress(seconds, ceiling int) float64 {
	if ceiling <= 0 || seconds <= 0 {
		return 0
	}
	return min(float64(seconds)/float64(ceiling), 1)
}

// PlaybackName is the name the backend stores converted audio under: the
// stored name with its extension replaced by .mp3.
func PlaybackName(stored string) string {
	ext := path.Ext(stored)
	return strings.TrimSuffix(stored, ext) + ".mp3"
}
