package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Track describes one audio track of an identified album.
type Track struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	RecordingID string `json:"recording_id,omitempty"`
	LengthMS    int    `json:"length_ms,omitempty"`
}

// Album captures the metadata needed to tag and organize a ripped disc.
type Album struct {
	Artist       string  `json:"artist"`
	AlbumArtist  string  `json:"album_artist"`
	Title        string  `json:"title"`
	Date         string  `json:"date,omitempty"`
	ReleaseID    string  `json:"release_id,omitempty"`
	DiscNumber   int     `json:"disc_number"`
	DiscTotal    int     `json:"disc_total"`
	TrackTotal   int     `json:"track_total"`
	CoverArtPath string  `json:"cover_art_path,omitempty"`
	Tracks       []Track `json:"tracks"`
}

// Tag is a single FLAC vorbis comment.
type Tag struct {
	Key   string
	Value string
}

// Validate reports whether the album carries enough data to tag files.
func (a *Album) Validate() error {
	if a == nil {
		return errors.New("album is nil")
	}
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("album title required")
	}
	if strings.TrimSpace(a.Artist) == "" {
		return errors.New("album artist required")
	}
	if len(a.Tracks) == 0 {
		return errors.New("album has no tracks")
	}
	seen := make(map[int]struct{}, len(a.Tracks))
	for _, track := range a.Tracks {
		if track.Number <= 0 {
			return fmt.Errorf("track %q has invalid number %d", track.Title, track.Number)
		}
		if strings.TrimSpace(track.Title) == "" {
			return fmt.Errorf("track %d has empty title", track.Number)
		}
		if _, dup := seen[track.Number]; dup {
			return fmt.Errorf("duplicate track number %d", track.Number)
		}
		seen[track.Number] = struct{}{}
	}
	return nil
}

// TrackByNumber returns the track with the given 1-based number.
func (a *Album) TrackByNumber(number int) (Track, bool) {
	for _, track := range a.Tracks {
		if track.Number == number {
			return track, true
		}
	}
	return Track{}, false
}

// DisplayArtist returns the artist used for directory layout, preferring the
// album artist so compilations group under one directory.
func (a *Album) DisplayArtist() string {
	if artist := strings.TrimSpace(a.AlbumArtist); artist != "" {
		return artist
	}
	return strings.TrimSpace(a.Artist)
}

// TagsForTrack builds the ordered vorbis comments for one track. Empty values
// are omitted so the encoder never writes blank tags.
func (a *Album) TagsForTrack(track Track) []Tag {
	trackTotal := a.TrackTotal
	if trackTotal == 0 {
		trackTotal = len(a.Tracks)
	}

	candidates := []Tag{
		{"ARTIST", a.Artist},
		{"ALBUM", a.Title},
		{"ALBUMARTIST", a.AlbumArtist},
		{"TITLE", track.Title},
		{"TRACKNUMBER", strconv.Itoa(track.Number)},
		{"TRACKTOTAL", strconv.Itoa(trackTotal)},
		{"DISCNUMBER", positiveString(a.DiscNumber)},
		{"DISCTOTAL", positiveString(a.DiscTotal)},
		{"DATE", a.Date},
		{"MUSICBRAINZ_ALBUMID", a.ReleaseID},
		{"MUSICBRAINZ_TRACKID", track.RecordingID},
	}

	tags := make([]Tag, 0, len(candidates))
	for _, tag := range candidates {
		if strings.TrimSpace(tag.Value) == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func positiveString(value int) string {
	if value <= 0 {
		return ""
	}
	return strconv.Itoa(value)
}

// Marshal encodes the album for queue persistence.
func Marshal(album *Album) (string, error) {
	if album == nil {
		return "", errors.New("album is nil")
	}
	data, err := json.Marshal(album)
	if err != nil {
		return "", fmt.Errorf("marshal album: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes an album previously stored with Marshal.
func Unmarshal(payload string) (*Album, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, errors.New("empty album payload")
	}
	var album Album
	if err := json.Unmarshal([]byte(payload), &album); err != nil {
		return nil, fmt.Errorf("unmarshal album: %w", err)
	}
	return &album, nil
}
