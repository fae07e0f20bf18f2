package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"platter/internal/encoding"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/ripping"
	"platter/internal/services"
	"platter/internal/services/flacenc"
	"platter/internal/testsupport"
)

type fakeEncoder struct {
	mu        sync.Mutex
	failTrack string
	requests  []flacenc.Request
}

func (f *fakeEncoder) Encode(_ context.Context, req flacenc.Request, _ func(flacenc.ProgressUpdate)) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.failTrack != "" && filepath.Base(req.OutputPath) == f.failTrack {
		return errors.New("verify failed")
	}
	return os.WriteFile(req.OutputPath, []byte("fLaC"), 0o644)
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func testAlbum() *metadata.Album {
	return &metadata.Album{
		Artist:      "The Band",
		AlbumArtist: "The Band",
		Title:       "Greatest Hits",
		Date:        "1999-04-12",
		ReleaseID:   "rel-1",
		DiscNumber:  1,
		DiscTotal:   1,
		TrackTotal:  2,
		Tracks: []metadata.Track{
			{Number: 1, Title: "Opening Song", RecordingID: "rec-1"},
			{Number: 2, Title: "Closing Song", RecordingID: "rec-2"},
		},
	}
}

func newEncodableItem(t *testing.T, store *queue.Store, album *metadata.Album, stagingDir string) *queue.Item {
	t.Helper()
	item := testsupport.NewDisc(t, store, "The Band - Greatest Hits", "fp-enc")
	item.Status = queue.StatusRipped
	item.StagingDir = stagingDir

	encoded, err := metadata.Marshal(album)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	item.MetadataJSON = encoded

	for _, track := range album.Tracks {
		wav := ripping.TrackWavPath(stagingDir, track.Number)
		if err := os.MkdirAll(filepath.Dir(wav), 0o755); err != nil {
			t.Fatalf("mkdir wav dir: %v", err)
		}
		if err := os.WriteFile(wav, []byte("RIFF"), 0o644); err != nil {
			t.Fatalf("write wav: %v", err)
		}
	}
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestEncoderEncodesAllTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodableItem(t, store, album, stagingDir)

	client := &fakeEncoder{}
	notifier := &recordingNotifier{}
	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), client, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(client.requests) != 2 {
		t.Fatalf("expected 2 encodes, got %d", len(client.requests))
	}
	for _, track := range album.Tracks {
		output := filepath.Join(encoding.FlacDir(stagingDir), album.TrackFileName(track))
		if _, err := os.Stat(output); err != nil {
			t.Fatalf("expected flac for track %d: %v", track.Number, err)
		}
	}
	if item.ProgressStage != "Encoded" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected progress: %s %.0f", item.ProgressStage, item.ProgressPercent)
	}
	if len(notifier.events) == 0 || notifier.events[len(notifier.events)-1] != notifications.EventEncodingCompleted {
		t.Fatalf("expected encoding completed notification, got %v", notifier.events)
	}
}

func TestEncoderPassesTagsAndCoverArt(t *testing.T) {
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
	item := newEncodableItem(t, store, album, stagingDir)

	client := &fakeEncoder{}
	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), client, &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, req := range client.requests {
		if req.PicturePath != cover {
			t.Fatalf("expected cover art %q, got %q", cover, req.PicturePath)
		}
		if len(req.Tags) == 0 {
			t.Fatal("expected tags on encode request")
		}
		if req.Tags[0].Key != "ARTIST" || req.Tags[0].Value != "The Band" {
			t.Fatalf("unexpected first tag: %+v", req.Tags[0])
		}
	}
}

func TestEncoderSkipsCoverArtWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encoding.EmbedCoverArt = false
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
	item := newEncodableItem(t, store, album, stagingDir)

	client := &fakeEncoder{}
	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), client, &recordingNotifier{})
	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, req := range client.requests {
		if req.PicturePath != "" {
			t.Fatalf("expected no cover art, got %q", req.PicturePath)
		}
	}
}

func TestEncoderFailsWhenWavMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodableItem(t, store, album, stagingDir)

	if err := os.Remove(ripping.TrackWavPath(stagingDir, 2)); err != nil {
		t.Fatalf("remove wav: %v", err)
	}

	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), &fakeEncoder{}, &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for missing wav")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestEncoderWrapsEncodeFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	album := testAlbum()
	stagingDir := filepath.Join(cfg.Paths.StagingDir, "disc-1")
	item := newEncodableItem(t, store, album, stagingDir)

	client := &fakeEncoder{failTrack: album.TrackFileName(album.Tracks[1])}
	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), client, &recordingNotifier{})

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for failed encode")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestEncoderRequiresMetadata(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "No Metadata", "fp-nometa")

	handler := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), &fakeEncoder{}, &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error without metadata")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestEncoderHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	healthy := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), &fakeEncoder{}, &recordingNotifier{})
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy encoder, got %q", health.Detail)
	}

	missing := encoding.NewEncoderWithDependencies(cfg, store, logging.NewNop(), nil, &recordingNotifier{})
	if health := missing.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy encoder without client")
	}
}
