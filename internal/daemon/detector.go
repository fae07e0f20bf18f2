package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/logging"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/stage"
)

// DiscDetectedResult reports what the daemon did with an inserted disc.
type DiscDetectedResult struct {
	Handled bool
	ItemID  int64
	Message string
}

type readyFunc func(ctx context.Context, device string) (disc.DriveStatus, error)

// detector turns an inserted disc into a queue item. It reads the table of
// contents, fingerprints it, and either enqueues the disc or recognizes it
// as one the queue already tracks.
type detector struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	tocs     disc.TOCReader
	notifier notifications.Service

	waitForReady readyFunc
}

func newDetector(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) (*detector, error) {
	reader, err := disc.NewReader(cfg.DiscIDBinary(), cfg.Ripper.TOCTimeout)
	if err != nil {
		return nil, fmt.Errorf("build toc reader: %w", err)
	}
	return newDetectorWithDependencies(cfg, store, logger, reader, notifier, disc.WaitForReady), nil
}

func newDetectorWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, tocs disc.TOCReader, notifier notifications.Service, ready readyFunc) *detector {
	return &detector{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "disc-detector"),
		tocs:         tocs,
		notifier:     notifier,
		waitForReady: ready,
	}
}

// HandleInserted processes a disc insertion event for the given device.
func (d *detector) HandleInserted(ctx context.Context, device string) (*DiscDetectedResult, error) {
	if d == nil || d.store == nil {
		return nil, errors.New("disc detector unavailable")
	}
	device = strings.TrimSpace(device)
	if device == "" {
		device = d.cfg.Ripper.OpticalDrive
	}
	logger := logging.WithContext(ctx, d.logger).With(logging.String("device", device))

	if d.waitForReady != nil {
		status, err := d.waitForReady(ctx, device)
		if err != nil {
			return nil, fmt.Errorf("wait for drive %s: %w", device, err)
		}
		logger.Debug("drive ready", logging.String("drive_status", status.String()))
	}

	toc, err := d.tocs.ReadTOC(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("read disc contents: %w", err)
	}
	fingerprint := disc.Fingerprint(toc)
	logger.Debug("computed disc fingerprint",
		logging.String("fingerprint", fingerprint),
		logging.Int("track_count", toc.TrackCount()),
	)

	tocJSON, err := stage.EncodeTOC(toc)
	if err != nil {
		return nil, err
	}

	existing, err := d.store.FindByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("lookup existing disc: %w", err)
	}
	if existing != nil {
		return d.handleExisting(ctx, logger, existing, device, tocJSON)
	}

	item, err := d.store.NewDisc(ctx, device, "Unknown Disc", fingerprint)
	if err != nil {
		return nil, fmt.Errorf("enqueue disc: %w", err)
	}
	item.TOCJSON = tocJSON
	if err := d.store.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("persist disc contents: %w", err)
	}

	logger.Info("queued new disc",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.Int("track_count", toc.TrackCount()),
		logging.String(logging.FieldEventType, "disc_queued"),
	)
	d.notifyDetected(ctx, logger, item)
	return &DiscDetectedResult{Handled: true, ItemID: item.ID, Message: "disc queued"}, nil
}

func (d *detector) handleExisting(ctx context.Context, logger *slog.Logger, existing *queue.Item, device, tocJSON string) (*DiscDetectedResult, error) {
	if existing.Status == queue.StatusCompleted {
		logger.Debug("disc already completed", logging.Int64(logging.FieldItemID, existing.ID))
		return &DiscDetectedResult{Handled: true, ItemID: existing.ID, Message: "disc already completed"}, nil
	}
	if existing.IsInWorkflow() {
		logger.Debug("disc already in workflow",
			logging.Int64(logging.FieldItemID, existing.ID),
			logging.String("status", string(existing.Status)),
		)
		return &DiscDetectedResult{Handled: true, ItemID: existing.ID, Message: "disc already in workflow"}, nil
	}

	// Failed or review item reinserted: reset for another pass.
	existing.Status = queue.StatusPending
	existing.Device = device
	existing.TOCJSON = tocJSON
	existing.ErrorMessage = ""
	existing.ProgressStage = "Awaiting identification"
	existing.ProgressMessage = ""
	existing.ProgressPercent = 0
	existing.NeedsReview = false
	existing.ReviewReason = ""
	if err := d.store.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("reset existing item: %w", err)
	}
	logger.Info("reset existing disc for processing",
		logging.Int64(logging.FieldItemID, existing.ID),
		logging.String(logging.FieldEventType, "disc_requeued"),
	)
	d.notifyDetected(ctx, logger, existing)
	return &DiscDetectedResult{Handled: true, ItemID: existing.ID, Message: "disc requeued"}, nil
}

func (d *detector) notifyDetected(ctx context.Context, logger *slog.Logger, item *queue.Item) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.Publish(ctx, notifications.EventDiscDetected, notifications.Payload{
		"discTitle": item.DiscTitle,
	}); err != nil {
		logger.Warn("disc detected notification failed", logging.Error(err))
	}
}
