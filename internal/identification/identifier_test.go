package identification_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"platter/internal/disc"
	"platter/internal/identification"
	"platter/internal/identification/musicbrainz"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/testsupport"
)

const sampleTOCLine = "deadbeef 2 150 750 100"

func sampleTOC(t *testing.T) disc.TOC {
	t.Helper()
	toc, err := disc.ParseTOC(sampleTOCLine)
	if err != nil {
		t.Fatalf("ParseTOC: %v", err)
	}
	return toc
}

type stubResolver struct {
	releases  []musicbrainz.Release
	lookupErr error
	lookups   int

	art    []byte
	artExt string
	artErr error
}

func (s *stubResolver) LookupByTOC(_ context.Context, _ disc.TOC) ([]musicbrainz.Release, error) {
	s.lookups++
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	return s.releases, nil
}

func (s *stubResolver) CoverArtFront(_ context.Context, _ string) ([]byte, string, error) {
	if s.artErr != nil {
		return nil, "", s.artErr
	}
	if s.art == nil {
		return nil, "", musicbrainz.ErrNoReleases
	}
	return s.art, s.artExt, nil
}

type stubTOCReader struct {
	toc   disc.TOC
	err   error
	reads int
}

func (s *stubTOCReader) ReadTOC(_ context.Context, _ string) (disc.TOC, error) {
	s.reads++
	if s.err != nil {
		return disc.TOC{}, s.err
	}
	return s.toc, nil
}

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	total := 0
	for _, got := range r.events {
		if got == event {
			total++
		}
	}
	return total
}

func matchingRelease() musicbrainz.Release {
	return musicbrainz.Release{
		ID:     "rel-1",
		Title:  "Greatest Hits",
		Status: "Official",
		Date:   "1999-04-12",
		ArtistCredit: []musicbrainz.ArtistCredit{
			{Name: "The Band", JoinPhrase: ""},
		},
		Media: []musicbrainz.Medium{{
			Format:     "CD",
			Position:   1,
			TrackCount: 2,
			Tracks: []musicbrainz.Track{
				{Position: 1, Title: "Opening Song", LengthMS: 200000, Recording: musicbrainz.Recording{ID: "rec-1", Title: "Opening Song"}},
				{Position: 2, Title: "", LengthMS: 180000, Recording: musicbrainz.Recording{ID: "rec-2", Title: "Closing Song"}},
			},
		}},
	}
}

func TestIdentifierStoresAlbumMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Unknown Disc", disc.Fingerprint(sampleTOC(t)))

	resolver := &stubResolver{
		releases: []musicbrainz.Release{matchingRelease()},
		art:      []byte{0x89, 0x50, 0x4e, 0x47},
		artExt:   ".png",
	}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	notifier := &recordingNotifier{}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.TOCJSON == "" {
		t.Fatal("expected TOC to be persisted on the item")
	}
	album, err := metadata.Unmarshal(item.MetadataJSON)
	if err != nil {
		t.Fatalf("Unmarshal metadata: %v", err)
	}
	if album.Artist != "The Band" || album.Title != "Greatest Hits" {
		t.Fatalf("unexpected album: %#v", album)
	}
	if len(album.Tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(album.Tracks))
	}
	if album.Tracks[1].Title != "Closing Song" {
		t.Fatalf("expected recording title fallback, got %q", album.Tracks[1].Title)
	}
	if item.DiscTitle != "The Band - Greatest Hits" {
		t.Fatalf("unexpected disc title %q", item.DiscTitle)
	}
	if album.CoverArtPath == "" {
		t.Fatal("expected cover art path to be set")
	}
	if filepath.Ext(album.CoverArtPath) != ".png" {
		t.Fatalf("unexpected cover art extension: %q", album.CoverArtPath)
	}
	if _, err := os.Stat(album.CoverArtPath); err != nil {
		t.Fatalf("expected staged cover art file: %v", err)
	}
	if notifier.count(notifications.EventIdentificationCompleted) != 1 {
		t.Fatalf("expected identification notification, got events %v", notifier.events)
	}
}

func TestIdentifierUsesStoredTOC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.MusicBrainz.CoverArt = false
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Unknown Disc", "fp-stored")

	item.TOCJSON = `{"freedb_id":"deadbeef","first_track":1,"last_track":2,"track_offsets":[150,750],"total_seconds":100}`

	resolver := &stubResolver{releases: []musicbrainz.Release{matchingRelease()}}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if reader.reads != 0 {
		t.Fatalf("expected stored TOC to be reused, drive read %d times", reader.reads)
	}
	if item.MetadataJSON == "" {
		t.Fatal("expected metadata to be stored")
	}
}

func TestIdentifierFlagsNoMatchesForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Obscure Disc", "fp-obscure")

	resolver := &stubResolver{lookupErr: musicbrainz.ErrNoReleases}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	notifier := &recordingNotifier{}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, notifier)

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusReview {
		t.Fatalf("expected review status, got %s", item.Status)
	}
	if !item.NeedsReview {
		t.Fatal("expected item to require review")
	}
	if !strings.Contains(item.ReviewReason, musicbrainz.SubmissionURL(sampleTOC(t))) {
		t.Fatalf("expected TOC submission hint in review reason, got %q", item.ReviewReason)
	}
	if notifier.count(notifications.EventReviewRequired) != 1 {
		t.Fatalf("expected review notification, got events %v", notifier.events)
	}
	for index, event := range notifier.events {
		if event != notifications.EventReviewRequired {
			continue
		}
		if reason := notifier.payloads[index]["reason"]; !strings.Contains(reason, "cdtoc/attach") {
			t.Fatalf("expected submission hint in notification payload, got %q", reason)
		}
	}
}

func TestIdentifierFlagsTrackCountMismatchForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Mismatch Disc", "fp-mismatch")

	release := matchingRelease()
	release.Media[0].Tracks = release.Media[0].Tracks[:1]
	release.Media[0].TrackCount = 1

	resolver := &stubResolver{releases: []musicbrainz.Release{release}}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if item.Status != queue.StatusReview {
		t.Fatalf("expected review status, got %s", item.Status)
	}
	if item.ReviewReason == "" {
		t.Fatal("expected review reason to be recorded")
	}
}

func TestIdentifierMarksDuplicateFingerprintForReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	toc := sampleTOC(t)
	first := testsupport.NewDisc(t, store, "Existing", disc.Fingerprint(toc))
	first.Status = queue.StatusCompleted
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}

	second := testsupport.NewDisc(t, store, "Reinserted", "fp-placeholder")
	second.Fingerprint = ""
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update: %v", err)
	}

	resolver := &stubResolver{releases: []musicbrainz.Release{matchingRelease()}}
	reader := &stubTOCReader{toc: toc}
	notifier := &recordingNotifier{}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, notifier)

	if err := handler.Execute(ctx, second); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second.Status != queue.StatusReview {
		t.Fatalf("expected review status, got %s", second.Status)
	}
	if resolver.lookups != 0 {
		t.Fatalf("expected duplicate to skip the MusicBrainz lookup, got %d lookups", resolver.lookups)
	}
}

func TestIdentifierWrapsTransientLookupFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Flaky Disc", "fp-flaky")

	resolver := &stubResolver{lookupErr: errors.New("connection reset")}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, &recordingNotifier{})

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for transient lookup failure")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIdentifierContinuesWithoutCoverArt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Artless Disc", "fp-artless")

	resolver := &stubResolver{
		releases: []musicbrainz.Release{matchingRelease()},
		artErr:   musicbrainz.ErrNoReleases,
	}
	reader := &stubTOCReader{toc: sampleTOC(t)}
	handler := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), resolver, reader, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	album, err := metadata.Unmarshal(item.MetadataJSON)
	if err != nil {
		t.Fatalf("Unmarshal metadata: %v", err)
	}
	if album.CoverArtPath != "" {
		t.Fatalf("expected no cover art path, got %q", album.CoverArtPath)
	}
}

func TestIdentifierHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	reader := &stubTOCReader{toc: sampleTOC(t)}

	healthy := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), &stubResolver{}, reader, &recordingNotifier{})
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy identifier, got %q", health.Detail)
	}

	missing := identification.NewIdentifierWithDependencies(cfg, store, logging.NewNop(), nil, reader, &recordingNotifier{})
	if health := missing.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy identifier without resolver")
	}
}
