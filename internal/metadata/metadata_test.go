package metadata_test

import (
	"testing"

	"platter/internal/metadata"
)

func sampleAlbum() *metadata.Album {
	return &metadata.Album{
		Artist:      "The Example Band",
		AlbumArtist: "The Example Band",
		Title:       "Greatest Hits",
		Date:        "1999-04-12",
		ReleaseID:   "b5e7a2d0-1111-2222-3333-444455556666",
		DiscNumber:  1,
		DiscTotal:   1,
		TrackTotal:  2,
		Tracks: []metadata.Track{
			{Number: 1, Title: "Opening Song", RecordingID: "rec-1"},
			{Number: 2, Title: "Closing Song", RecordingID: "rec-2"},
		},
	}
}

func TestValidate(t *testing.T) {
	album := sampleAlbum()
	if err := album.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	missingTitle := sampleAlbum()
	missingTitle.Title = " "
	if err := missingTitle.Validate(); err == nil {
		t.Fatal("expected error for missing album title")
	}

	missingArtist := sampleAlbum()
	missingArtist.Artist = ""
	if err := missingArtist.Validate(); err == nil {
		t.Fatal("expected error for missing artist")
	}

	noTracks := sampleAlbum()
	noTracks.Tracks = nil
	if err := noTracks.Validate(); err == nil {
		t.Fatal("expected error for empty track list")
	}

	duplicate := sampleAlbum()
	duplicate.Tracks[1].Number = 1
	if err := duplicate.Validate(); err == nil {
		t.Fatal("expected error for duplicate track numbers")
	}
}

func TestTagsForTrack(t *testing.T) {
	album := sampleAlbum()
	track, ok := album.TrackByNumber(1)
	if !ok {
		t.Fatal("expected track 1")
	}

	tags := album.TagsForTrack(track)
	byKey := make(map[string]string, len(tags))
	for _, tag := range tags {
		byKey[tag.Key] = tag.Value
	}

	expectations := map[string]string{
		"ARTIST":              "The Example Band",
		"ALBUM":               "Greatest Hits",
		"ALBUMARTIST":         "The Example Band",
		"TITLE":               "Opening Song",
		"TRACKNUMBER":         "1",
		"TRACKTOTAL":          "2",
		"DISCNUMBER":          "1",
		"DISCTOTAL":           "1",
		"DATE":                "1999-04-12",
		"MUSICBRAINZ_ALBUMID": "b5e7a2d0-1111-2222-3333-444455556666",
		"MUSICBRAINZ_TRACKID": "rec-1",
	}
	for key, want := range expectations {
		if got := byKey[key]; got != want {
			t.Fatalf("tag %s = %q, want %q", key, got, want)
		}
	}
}

func TestTagsForTrackOmitsEmptyValues(t *testing.T) {
	album := sampleAlbum()
	album.Date = ""
	album.ReleaseID = ""
	album.DiscNumber = 0
	album.DiscTotal = 0
	track := album.Tracks[0]
	track.RecordingID = ""

	tags := album.TagsForTrack(track)
	for _, tag := range tags {
		switch tag.Key {
		case "DATE", "MUSICBRAINZ_ALBUMID", "MUSICBRAINZ_TRACKID", "DISCNUMBER", "DISCTOTAL":
			t.Fatalf("expected %s to be omitted, got %q", tag.Key, tag.Value)
		}
	}
}

func TestTrackTotalFallsBackToTrackCount(t *testing.T) {
	album := sampleAlbum()
	album.TrackTotal = 0

	tags := album.TagsForTrack(album.Tracks[0])
	for _, tag := range tags {
		if tag.Key == "TRACKTOTAL" {
			if tag.Value != "2" {
				t.Fatalf("TRACKTOTAL = %q, want 2", tag.Value)
			}
			return
		}
	}
	t.Fatal("TRACKTOTAL tag missing")
}

func TestDisplayArtistPrefersAlbumArtist(t *testing.T) {
	album := sampleAlbum()
	album.AlbumArtist = "Various Artists"
	if got := album.DisplayArtist(); got != "Various Artists" {
		t.Fatalf("DisplayArtist = %q", got)
	}
	album.AlbumArtist = ""
	if got := album.DisplayArtist(); got != "The Example Band" {
		t.Fatalf("DisplayArtist fallback = %q", got)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	album := sampleAlbum()
	payload, err := metadata.Marshal(album)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := metadata.Unmarshal(payload)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Title != album.Title || len(decoded.Tracks) != len(album.Tracks) {
		t.Fatalf("round trip mismatch: %#v", decoded)
	}
	if decoded.Tracks[1].Title != "Closing Song" {
		t.Fatalf("unexpected track title: %q", decoded.Tracks[1].Title)
	}

	if _, err := metadata.Unmarshal(""); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := metadata.Unmarshal("{"); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
