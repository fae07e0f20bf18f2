package metadata

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"AC/DC":            "AC-DC",
		"What's Going On?": "What's Going On",
		"  Abbey Road  ":   "Abbey Road",
		`Bad: "Chars" <>|`: "Bad- Chars",
		"":                 "",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeFileNameNormalizesUnicode(t *testing.T) {
	// "Café" with a combining acute accent should compose to the same
	// bytes as the precomposed form.
	decomposed := "Cafe\u0301"
	composed := "Caf\u00e9"
	if got := SanitizeFileName(decomposed); got != composed {
		t.Fatalf("expected NFC form %q, got %q", composed, got)
	}
}

func TestTrackFileName(t *testing.T) {
	album := &Album{Title: "Test", DiscNumber: 1, DiscTotal: 1}
	track := Track{Number: 3, Title: "Some Song"}
	if got := album.TrackFileName(track); got != "03 - Some Song.flac" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestTrackFileNameMultiDisc(t *testing.T) {
	album := &Album{Title: "Test", DiscNumber: 2, DiscTotal: 2}
	track := Track{Number: 1, Title: "Opener"}
	if got := album.TrackFileName(track); got != "2-01 - Opener.flac" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func TestTrackFileNameFallsBackToTrackNumber(t *testing.T) {
	album := &Album{Title: "Test", DiscNumber: 1, DiscTotal: 1}
	track := Track{Number: 7, Title: "???"}
	if got := album.TrackFileName(track); got != "07 - Track 07.flac" {
		t.Fatalf("unexpected file name %q", got)
	}
}
