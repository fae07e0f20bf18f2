package metadata

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// SanitizeFileName strips characters that are unsafe in file and directory
// names across common filesystems. Names are NFC-normalized first so the
// same album ripped on different systems produces identical paths.
func SanitizeFileName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}

// TrackFileName returns the library file name for a track in the form
// "NN - Title.flac". Multi-disc releases get the disc number prefixed so
// tracks from different discs never collide.
func (a *Album) TrackFileName(track Track) string {
	title := SanitizeFileName(track.Title)
	if title == "" {
		title = fmt.Sprintf("Track %02d", track.Number)
	}
	name := fmt.Sprintf("%02d - %s.flac", track.Number, title)
	if a.DiscTotal > 1 {
		name = fmt.Sprintf("%d-%s", a.DiscNumber, name)
	}
	return name
}
