package ripping

import (
	"fmt"
	"path/filepath"
)

// WavDir returns the directory inside an item's staging area that holds
// extracted wav files.
func WavDir(stagingDir string) string {
	return filepath.Join(stagingDir, "wav")
}

// TrackWavPath returns the wav path for a 1-based track number. The encoding
// stage relies on this layout to find the rip outputs.
func TrackWavPath(stagingDir string, track int) string {
	return filepath.Join(WavDir(stagingDir), fmt.Sprintf("track%02d.cdda.wav", track))
}
