package encoding

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"platter/internal/config"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/ripping"
	"platter/internal/services"
	"platter/internal/services/flacenc"
	"platter/internal/stage"
)

// Encoder converts staged wav files into tagged FLAC files, running several
// flac processes in parallel.
type Encoder struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	client   flacenc.Encoder
	notifier notifications.Service
}

// encodeJob pairs one wav file with its FLAC destination and tags.
type encodeJob struct {
	Track  metadata.Track
	Source string
	Output string
	Tags   []metadata.Tag
}

// FlacDir returns the directory inside an item's staging area that holds
// encoded FLAC files. The organizer moves files from here into the library.
func FlacDir(stagingDir string) string {
	return filepath.Join(stagingDir, "flac")
}

// NewEncoder constructs the encoding handler using default dependencies.
func NewEncoder(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Encoder {
	var client flacenc.Encoder
	c, err := flacenc.New(cfg.FlacBinary(), cfg.Encoding.CompressionLevel, cfg.Encoding.Verify)
	if err != nil {
		logging.NewComponentLogger(logger, "encoder").Warn("flac client unavailable", logging.Error(err))
	} else {
		client = c
	}
	return NewEncoderWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewEncoderWithDependencies allows injecting custom dependencies (used for tests).
func NewEncoderWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client flacenc.Encoder, notifier notifications.Service) *Encoder {
	return &Encoder{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "encoder"),
		client:   client,
		notifier: notifier,
	}
}

func (e *Encoder) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	item.InitProgress("Encoding", "Starting FLAC encoding")
	logger.Debug("starting encoding preparation")
	return nil
}

func (e *Encoder) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, e.logger)
	if e.client == nil {
		return services.Wrap(
			services.ErrConfiguration, "encoding", "initialize client",
			"flac client unavailable; install flac and ensure it is in PATH", nil)
	}

	album, err := stage.ParseAlbum(item.MetadataJSON)
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.StagingDir) == "" {
		return services.Wrap(
			services.ErrValidation, "encoding", "validate inputs",
			"No staging directory recorded; ensure the ripping stage completed successfully", nil)
	}

	flacDir := FlacDir(item.StagingDir)
	if err := cleanupDir(flacDir); err != nil {
		return services.Wrap(
			services.ErrConfiguration, "encoding", "remove stale artifacts",
			"Failed to remove previous encoded outputs", err)
	}
	if err := os.MkdirAll(flacDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration, "encoding", "ensure encoded dir",
			"Failed to create encoded directory; set staging_dir to a writable path", err)
	}

	jobs, err := e.buildJobs(item, album, flacDir)
	if err != nil {
		return err
	}
	total := len(jobs)
	logger.Info("starting encoding",
		logging.String("album", album.Title),
		logging.Int("track_count", total),
		logging.Int("workers", e.workerCount()),
		logging.String("flac_dir", flacDir),
	)

	var (
		mu   sync.Mutex
		done int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workerCount())
	for _, job := range jobs {
		group.Go(func() error {
			trackLogger := logger.With(logging.Int(logging.FieldTrack, job.Track.Number))
			trackLogger.Info("encoding track", logging.String("output", job.Output))
			err := e.client.Encode(groupCtx, flacenc.Request{
				InputPath:   job.Source,
				OutputPath:  job.Output,
				Tags:        job.Tags,
				PicturePath: e.picturePath(album),
			}, nil)
			if err != nil {
				return services.Wrap(
					services.ErrExternalTool, "encoding", "flac encode",
					fmt.Sprintf("flac failed on track %d", job.Track.Number), err)
			}
			// Persisting progress mutates the shared item, so it stays
			// inside the critical section.
			mu.Lock()
			done++
			e.applyProgress(ctx, item,
				fmt.Sprintf("Encoded track %d of %d", done, total),
				float64(done)/float64(total)*100)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for _, job := range jobs {
		info, err := os.Stat(job.Output)
		if err != nil || info.Size() == 0 {
			return services.Wrap(
				services.ErrValidation, "encoding", "validate output",
				fmt.Sprintf("Encoded file for track %d is missing or empty", job.Track.Number), err)
		}
	}

	item.SetProgressComplete("Encoded", fmt.Sprintf("Encoded %d tracks", total))
	logger.Info("encoding completed",
		logging.Int("track_count", total),
		logging.String("flac_dir", flacDir))

	if e.notifier != nil {
		if err := e.notifier.Publish(ctx, notifications.EventEncodingCompleted, notifications.Payload{
			"discTitle": item.DiscTitle,
		}); err != nil {
			logger.Warn("encoding notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies FLAC encoding dependencies.
func (e *Encoder) HealthCheck(ctx context.Context) stage.Health {
	const name = "encoder"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(e.cfg.Paths.StagingDir) == "" {
		return stage.Unhealthy(name, "staging directory not configured")
	}
	if e.client == nil {
		return stage.Unhealthy(name, "flac client unavailable")
	}
	binary := strings.TrimSpace(e.cfg.FlacBinary())
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("flac binary %q not found", binary))
	}
	return stage.Healthy(name)
}

func (e *Encoder) buildJobs(item *queue.Item, album *metadata.Album, flacDir string) ([]encodeJob, error) {
	jobs := make([]encodeJob, 0, len(album.Tracks))
	for _, track := range album.Tracks {
		source := ripping.TrackWavPath(item.StagingDir, track.Number)
		if _, err := os.Stat(source); err != nil {
			return nil, services.Wrap(
				services.ErrValidation, "encoding", "locate rip outputs",
				fmt.Sprintf("Missing wav for track %d; rerun the ripping stage", track.Number), err)
		}
		jobs = append(jobs, encodeJob{
			Track:  track,
			Source: source,
			Output: filepath.Join(flacDir, album.TrackFileName(track)),
			Tags:   album.TagsForTrack(track),
		})
	}
	return jobs, nil
}

func (e *Encoder) picturePath(album *metadata.Album) string {
	if e.cfg == nil || !e.cfg.Encoding.EmbedCoverArt {
		return ""
	}
	path := strings.TrimSpace(album.CoverArtPath)
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func (e *Encoder) workerCount() int {
	if e.cfg == nil || e.cfg.Encoding.Workers < 1 {
		return 1
	}
	return e.cfg.Encoding.Workers
}

func (e *Encoder) applyProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, e.logger)
	updated := *item
	updated.SetProgress("Encoding", message, percent)
	if err := e.store.Update(ctx, &updated); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	*item = updated
}

func cleanupDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("expected %q to be a directory", dir)
	}
	return os.RemoveAll(dir)
}
