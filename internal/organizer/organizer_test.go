package organizer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"platter/internal/encoding"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/organizer"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/testsupport"
)

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) count(event notifications.Event) int {
	total := 0
	for _, seen := range r.events {
		if seen == event {
			total++
		}
	}
	return total
}

func testAlbum() *metadata.Album {
	return &metadata.Album{
		Artist:      "AC/DC",
		AlbumArtist: "AC/DC",
		Title:       "Back in Black",
		Date:        "1980-07-25",
		ReleaseID:   "rel-1",
		DiscNumber:  1,
		DiscTotal:   1,
		TrackTotal:  2,
		Tracks: []metadata.Track{
			{Number: 1, Title: "Hells Bells", RecordingID: "rec-1"},
			{Number: 2, Title: "Shoot to Thrill", RecordingID: "rec-2"},
		},
	}
}

func newEncodedItem(t *testing.T, store *queue.Store, album *metadata.Album, stagingDir string) *queue.Item {
	t.Helper()
	item := testsupport.NewDisc(t, store, "AC/DC - Back in Black", "fp-org")
	item.Status = queue.StatusEncoded
	item.StagingDir = stagingDir

	encoded, err := metadata.Marshal(album)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	item.MetadataJSON = encoded

	flacDir := encoding.FlacDir(stagingDir)
	if err := os.MkdirAll(flacDir, 0o755); err != nil {
		t.Fatalf("mkdir flac dir: %v", err)
	}
	for _, track := range album.Tracks {
		path := filepath.Join(flacDir, album.TrackFileName(track))
		if err := os.WriteFile(path, []byte("fLaC"), 0o644); err != nil {
			t.Fatalf("write flac: %v", err)
		}
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestOrganizerFilesAlbumIntoLibrary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodedItem(t, store, album, stagingDir)

	notifier := &recordingNotifier{}
	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantDir := filepath.Join(cfg.Paths.LibraryDir, "AC-DC", "Back in Black")
	if item.FinalDir != wantDir {
		t.Fatalf("expected final dir %q, got %q", wantDir, item.FinalDir)
	}
	for _, track := range album.Tracks {
		path := filepath.Join(wantDir, album.TrackFileName(track))
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected library file for track %d: %v", track.Number, err)
		}
	}
	if _, err := os.Stat(stagingDir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staging dir removed, got %v", err)
	}
	if item.ProgressStage != "Organized" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected progress: %s %.0f", item.ProgressStage, item.ProgressPercent)
	}
	if notifier.count(notifications.EventOrganizationCompleted) != 1 {
		t.Fatalf("expected organization notification, got %v", notifier.events)
	}
	if notifier.count(notifications.EventProcessingCompleted) != 1 {
		t.Fatalf("expected processing completion notification, got %v", notifier.events)
	}
}

func TestOrganizerInstallsCoverArt(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()

	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	cover := filepath.Join(stagingDir, "cover.jpg")
	if err := os.WriteFile(cover, []byte{0xff, 0xd8}, 0o644); err != nil {
		t.Fatalf("write cover: %v", err)
	}
	album.CoverArtPath = cover
	item := newEncodedItem(t, store, album, stagingDir)

	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	installed := filepath.Join(item.FinalDir, "cover.jpg")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected installed cover art: %v", err)
	}
}

func TestOrganizerRoutesExistingAlbumToReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodedItem(t, store, album, stagingDir)

	existingDir := filepath.Join(cfg.Paths.LibraryDir, "AC-DC", "Back in Black")
	if err := os.MkdirAll(existingDir, 0o755); err != nil {
		t.Fatalf("mkdir existing album: %v", err)
	}
	existing := filepath.Join(existingDir, album.TrackFileName(album.Tracks[0]))
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("write existing flac: %v", err)
	}

	notifier := &recordingNotifier{}
	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), notifier)
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if item.Status != queue.StatusReview || !item.NeedsReview {
		t.Fatalf("expected review status, got %s", item.Status)
	}
	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "old" {
		t.Fatalf("expected existing file untouched, got %q err %v", data, err)
	}
	if notifier.count(notifications.EventReviewRequired) != 1 {
		t.Fatalf("expected review notification, got %v", notifier.events)
	}
}

func TestOrganizerOverwritesWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Library.OverwriteExisting = true
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodedItem(t, store, album, stagingDir)

	existingDir := filepath.Join(cfg.Paths.LibraryDir, "AC-DC", "Back in Black")
	if err := os.MkdirAll(existingDir, 0o755); err != nil {
		t.Fatalf("mkdir existing album: %v", err)
	}
	existing := filepath.Join(existingDir, album.TrackFileName(album.Tracks[0]))
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("write existing flac: %v", err)
	}

	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	data, err := os.ReadFile(existing)
	if err != nil {
		t.Fatalf("read replaced file: %v", err)
	}
	if string(data) != "fLaC" {
		t.Fatalf("expected replaced file, got %q", data)
	}
}

func TestOrganizerRequiresEncodedOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodedItem(t, store, album, stagingDir)

	if err := os.RemoveAll(encoding.FlacDir(stagingDir)); err != nil {
		t.Fatalf("remove flac dir: %v", err)
	}

	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error without encoded output")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestOrganizerKeepsUnreachableLibraryRetryable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodedItem(t, store, album, stagingDir)

	// A plain file where the library root should be makes MkdirAll fail the
	// same way an unmounted or read-only library path does.
	if err := os.RemoveAll(cfg.Paths.LibraryDir); err != nil {
		t.Fatalf("remove library dir: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.LibraryDir, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocking file: %v", err)
	}

	handler := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for unreachable library")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if status := services.FailureStatus(err); status != queue.StatusFailed {
		t.Fatalf("expected failed status, got %s", status)
	}
}

func TestOrganizerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	healthy := organizer.NewOrganizerWithDependencies(cfg, store, logging.NewNop(), &recordingNotifier{})
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy organizer, got %q", health.Detail)
	}

	broken := *cfg
	broken.Paths.LibraryDir = ""
	missing := organizer.NewOrganizerWithDependencies(&broken, store, logging.NewNop(), &recordingNotifier{})
	if health := missing.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy organizer without library dir")
	}
}
