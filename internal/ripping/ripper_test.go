package ripping_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"platter/internal/logging"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/ripping"
	"platter/internal/services"
	"platter/internal/services/cdparanoia"
	"platter/internal/testsupport"
)

const storedTOC = `{"freedb_id":"deadbeef","first_track":1,"last_track":2,"track_offsets":[150,750],"total_seconds":100}`

type fakeRipper struct {
	failTrack int
	tracks    []int
	devices   []string
	dests     []string
}

func (f *fakeRipper) RipTrack(_ context.Context, device string, track int, destPath string, progress func(cdparanoia.ProgressUpdate)) error {
	f.devices = append(f.devices, device)
	f.tracks = append(f.tracks, track)
	f.dests = append(f.dests, destPath)
	if f.failTrack == track {
		return errors.New("scratched disc")
	}
	if progress != nil {
		progress(cdparanoia.ProgressUpdate{Track: track, Percent: 50})
		progress(cdparanoia.ProgressUpdate{Track: track, Percent: 100})
	}
	return os.WriteFile(destPath, []byte("RIFF"), 0o644)
}

type fakeEjector struct {
	devices []string
	err     error
}

func (f *fakeEjector) Eject(_ context.Context, device string) error {
	f.devices = append(f.devices, device)
	return f.err
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
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

func newRippedItem(t *testing.T, store *queue.Store) *queue.Item {
	t.Helper()
	item := testsupport.NewDisc(t, store, "The Band - Greatest Hits", "fp-rip")
	item.Status = queue.StatusIdentified
	item.TOCJSON = storedTOC
	if err := store.Update(context.Background(), item); err != nil {
		t.Fatalf("Update: %v", err)
	}
	return item
}

func TestRipperExtractsAllTracks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newRippedItem(t, store)

	client := &fakeRipper{}
	ejector := &fakeEjector{}
	notifier := &recordingNotifier{}
	handler := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), client, ejector, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, item); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(ctx, item); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(client.tracks) != 2 || client.tracks[0] != 1 || client.tracks[1] != 2 {
		t.Fatalf("unexpected tracks ripped: %v", client.tracks)
	}
	for track := 1; track <= 2; track++ {
		path := ripping.TrackWavPath(item.StagingDir, track)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected wav for track %d: %v", track, err)
		}
	}
	if item.ProgressStage != "Ripped" || item.ProgressPercent != 100 {
		t.Fatalf("unexpected progress: %s %.0f", item.ProgressStage, item.ProgressPercent)
	}
	if len(ejector.devices) != 1 {
		t.Fatalf("expected one eject, got %v", ejector.devices)
	}
	if notifier.count(notifications.EventRipStarted) != 1 {
		t.Fatalf("expected rip started notification, got %v", notifier.events)
	}
	if notifier.count(notifications.EventRipCompleted) != 1 {
		t.Fatalf("expected rip completed notification, got %v", notifier.events)
	}
}

func TestRipperSkipsEjectWhenDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ripper.EjectAfterRip = false
	store := testsupport.MustOpenStore(t, cfg)
	item := newRippedItem(t, store)

	ejector := &fakeEjector{}
	handler := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), &fakeRipper{}, ejector, &recordingNotifier{})

	if err := handler.Execute(context.Background(), item); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(ejector.devices) != 0 {
		t.Fatalf("expected no eject, got %v", ejector.devices)
	}
}

func TestRipperWrapsTrackFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := newRippedItem(t, store)

	ejector := &fakeEjector{}
	handler := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), &fakeRipper{failTrack: 2}, ejector, &recordingNotifier{})

	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error for failed track")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if len(ejector.devices) != 0 {
		t.Fatalf("expected no eject after failure, got %v", ejector.devices)
	}
}

func TestRipperRequiresTOC(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	item := testsupport.NewDisc(t, store, "Untouched", "fp-notoc")

	handler := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), &fakeRipper{}, &fakeEjector{}, &recordingNotifier{})
	err := handler.Execute(context.Background(), item)
	if err == nil {
		t.Fatal("expected error without TOC")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestRipperHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	healthy := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), &fakeRipper{}, &fakeEjector{}, &recordingNotifier{})
	if health := healthy.HealthCheck(context.Background()); !health.Ready {
		t.Fatalf("expected healthy ripper, got %q", health.Detail)
	}

	missing := ripping.NewRipperWithDependencies(cfg, store, logging.NewNop(), nil, &fakeEjector{}, &recordingNotifier{})
	if health := missing.HealthCheck(context.Background()); health.Ready {
		t.Fatal("expected unhealthy ripper without client")
	}
}
