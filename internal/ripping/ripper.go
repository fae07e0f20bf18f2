package ripping

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/logging"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/services/cdparanoia"
	"platter/internal/stage"
)

// Ripper extracts every audio track of an identified disc into the item's
// staging area as wav files.
type Ripper struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	client   cdparanoia.Ripper
	ejector  disc.Ejector
	notifier notifications.Service
}

// NewRipper constructs the ripping handler using default dependencies.
func NewRipper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Ripper {
	var client cdparanoia.Ripper
	c, err := cdparanoia.New(cfg.CdparanoiaBinary(), cfg.Ripper.RipTimeout,
		cdparanoia.WithParanoiaDisabled(cfg.Ripper.DisableParanoia))
	if err != nil {
		logging.NewComponentLogger(logger, "ripper").Warn("cdparanoia client unavailable", logging.Error(err))
	} else {
		client = c
	}
	return NewRipperWithDependencies(cfg, store, logger, client, disc.NewEjector(cfg.EjectBinary()), notifications.NewService(cfg))
}

// NewRipperWithDependencies allows injecting all collaborators (used in tests).
func NewRipperWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client cdparanoia.Ripper, ejector disc.Ejector, notifier notifications.Service) *Ripper {
	return &Ripper{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "ripper"),
		client:   client,
		ejector:  ejector,
		notifier: notifier,
	}
}

func (r *Ripper) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	item.InitProgress("Ripping", "Starting rip")
	logger.Info("starting rip preparation",
		logging.String("disc_title", strings.TrimSpace(item.DiscTitle)))
	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, notifications.EventRipStarted, notifications.Payload{"discTitle": item.DiscTitle}); err != nil {
			logger.Warn("failed to send rip start notification", logging.Error(err))
		}
	}
	return nil
}

func (r *Ripper) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, r.logger)
	if r.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "ripping", "initialize client",
			"cdparanoia client unavailable; install cdparanoia and ensure it is in PATH", nil)
	}

	toc, err := stage.ParseTOC(item.TOCJSON)
	if err != nil {
		return err
	}
	device := strings.TrimSpace(item.Device)
	if device == "" {
		device = strings.TrimSpace(r.cfg.Ripper.OpticalDrive)
	}
	if device == "" {
		return services.Wrap(
			services.ErrConfiguration, "ripping", "resolve optical drive",
			"Optical drive path not configured; set optical_drive in the ripper section", nil)
	}

	if strings.TrimSpace(item.StagingDir) == "" {
		item.StagingDir = filepath.Join(r.cfg.Paths.StagingDir, fmt.Sprintf("disc-%d", item.ID))
	}
	wavDir := WavDir(item.StagingDir)
	if err := os.MkdirAll(wavDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration, "ripping", "ensure staging dir",
			"Failed to create staging directory; set staging_dir to a writable location", err)
	}

	total := toc.TrackCount()
	logger.Info("starting rip execution",
		logging.String("disc_title", strings.TrimSpace(item.DiscTitle)),
		logging.String("device", device),
		logging.Int("track_count", total),
		logging.String("wav_dir", wavDir),
	)

	for track := 1; track <= total; track++ {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTimeout, "ripping", "rip tracks", "Rip cancelled", err)
		}
		dest := TrackWavPath(item.StagingDir, track)
		base := float64(track-1) / float64(total) * 100
		r.applyProgress(ctx, item, "Ripping",
			fmt.Sprintf("Ripping track %d of %d", track, total), base)

		trackLogger := logger.With(logging.Int(logging.FieldTrack, track))
		trackLogger.Info("ripping track", logging.String("dest", dest))
		err := r.client.RipTrack(ctx, device, track, dest, func(update cdparanoia.ProgressUpdate) {
			overall := base + update.Percent/float64(total)
			r.applyProgress(ctx, item, "Ripping",
				fmt.Sprintf("Ripping track %d of %d", track, total), overall)
		})
		if err != nil {
			return services.Wrap(
				services.ErrExternalTool, "ripping", "cdparanoia rip",
				fmt.Sprintf("cdparanoia failed on track %d; check disc for scratches", track), err)
		}
	}

	item.SetProgressComplete("Ripped", fmt.Sprintf("Ripped %d tracks", total))
	logger.Info("ripping completed",
		logging.Int("track_count", total),
		logging.String("wav_dir", wavDir))

	// The drive is no longer needed from here on; free it for the next disc.
	if r.cfg.Ripper.EjectAfterRip && r.ejector != nil {
		logger.Info("ejecting disc", logging.String("device", device))
		if err := r.ejector.Eject(ctx, device); err != nil {
			logger.Warn("failed to eject disc", logging.Error(err))
		}
	}

	if r.notifier != nil {
		if err := r.notifier.Publish(ctx, notifications.EventRipCompleted, notifications.Payload{
			"discTitle": item.DiscTitle,
			"tracks":    strconv.Itoa(total),
		}); err != nil {
			logger.Warn("rip completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies cdparanoia ripping dependencies.
func (r *Ripper) HealthCheck(ctx context.Context) stage.Health {
	const name = "ripper"
	if r.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(r.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if strings.TrimSpace(r.cfg.Ripper.OpticalDrive) == "" {
		return stage.Unhealthy(name, "optical drive not configured")
	}
	if r.client == nil {
		return stage.Unhealthy(name, "cdparanoia client unavailable")
	}
	binary := strings.TrimSpace(r.cfg.CdparanoiaBinary())
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("cdparanoia binary %q not found", binary))
	}
	if r.cfg.Ripper.EjectAfterRip && r.ejector == nil {
		return stage.Unhealthy(name, "disc ejector unavailable")
	}
	return stage.Healthy(name)
}

func (r *Ripper) applyProgress(ctx context.Context, item *queue.Item, stageName, message string, percent float64) {
	logger := logging.WithContext(ctx, r.logger)
	updated := *item
	updated.SetProgress(stageName, message, percent)
	if err := r.store.Update(ctx, &updated); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	*item = updated
}
