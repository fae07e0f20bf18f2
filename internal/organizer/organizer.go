package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"platter/internal/config"
	"platter/internal/encoding"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/stage"
)

// Organizer moves encoded FLAC files into the final library location,
// laid out as Artist/Album/NN - Track.flac.
type Organizer struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// NewOrganizer constructs the organizer stage handler using default dependencies.
func NewOrganizer(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Organizer {
	return NewOrganizerWithDependencies(cfg, store, logger, notifications.NewService(cfg))
}

// NewOrganizerWithDependencies allows injecting collaborators (used in tests).
func NewOrganizerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Organizer {
	return &Organizer{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "organizer"),
		notifier: notifier,
	}
}

func (o *Organizer) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)
	item.InitProgress("Organizing", "Preparing library organization")
	logger.Debug("starting organization preparation",
		logging.String("disc_title", strings.TrimSpace(item.DiscTitle)))
	return nil
}

func (o *Organizer) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, o.logger)

	album, err := stage.ParseAlbum(item.MetadataJSON)
	if err != nil {
		return err
	}
	if strings.TrimSpace(item.StagingDir) == "" {
		return services.Wrap(
			services.ErrValidation, "organizing", "validate inputs",
			"No staging directory recorded; ensure the encoding stage completed successfully", nil)
	}

	files, err := encodedFiles(encoding.FlacDir(item.StagingDir))
	if err != nil {
		return err
	}

	targetDir, err := o.libraryDir(album)
	if err != nil {
		return err
	}

	if !o.cfg.Library.OverwriteExisting {
		if existing := firstExisting(targetDir, files); existing != "" {
			reason := fmt.Sprintf("Album already exists in library: %s", targetDir)
			logger.Info("album already present, routing to review",
				logging.String("target_dir", targetDir),
				logging.String("existing", existing))
			o.flagReview(ctx, item, reason)
			return nil
		}
	}

	// An unreachable library mount surfaces here; keep the item retryable
	// instead of parking it in review.
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrTransient, "organizing", "ensure album dir",
			"Failed to create album directory; check that library_dir is mounted and writable", err)
	}

	total := len(files)
	logger.Info("organizing encoded files into library",
		logging.String("target_dir", targetDir),
		logging.Int("track_count", total))
	for index, file := range files {
		dest := filepath.Join(targetDir, filepath.Base(file))
		if err := moveFile(file, dest); err != nil {
			return services.Wrap(
				services.ErrTransient, "organizing", "move to library",
				fmt.Sprintf("Failed to move %s into the library", filepath.Base(file)), err)
		}
		o.applyProgress(ctx, item,
			fmt.Sprintf("Filed track %d of %d", index+1, total),
			float64(index+1)/float64(total)*90)
	}

	if err := o.installCoverArt(album, targetDir); err != nil {
		logger.Warn("cover art install failed", logging.Error(err))
	}

	item.FinalDir = targetDir
	if err := os.RemoveAll(item.StagingDir); err != nil {
		logger.Warn("failed to remove staging directory", logging.Error(err),
			logging.String("staging_dir", item.StagingDir))
	} else {
		item.StagingDir = ""
	}

	item.SetProgressComplete("Organized", fmt.Sprintf("Filed under %s", libraryLabel(album)))
	logger.Info("organization completed",
		logging.String("final_dir", targetDir),
		logging.Int("track_count", total))

	if o.notifier != nil {
		payload := notifications.Payload{
			"album":    album.Title,
			"finalDir": targetDir,
		}
		if err := o.notifier.Publish(ctx, notifications.EventOrganizationCompleted, payload); err != nil {
			logger.Warn("organization notification failed", logging.Error(err))
		}
		if err := o.notifier.Publish(ctx, notifications.EventProcessingCompleted, notifications.Payload{
			"album": libraryLabel(album),
		}); err != nil {
			logger.Warn("processing completion notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies the library destination is configured and reachable.
func (o *Organizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "organizer"
	if o.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	libraryDir := strings.TrimSpace(o.cfg.Paths.LibraryDir)
	if libraryDir == "" {
		return stage.Unhealthy(name, "library directory not configured")
	}
	if info, err := os.Stat(libraryDir); err == nil && !info.IsDir() {
		return stage.Unhealthy(name, fmt.Sprintf("library path %q is not a directory", libraryDir))
	}
	return stage.Healthy(name)
}

func (o *Organizer) libraryDir(album *metadata.Album) (string, error) {
	artist := metadata.SanitizeFileName(album.DisplayArtist())
	title := metadata.SanitizeFileName(album.Title)
	if artist == "" || title == "" {
		return "", services.Wrap(
			services.ErrValidation, "organizing", "derive library path",
			"Album metadata has no usable artist or title; rerun identification", nil)
	}
	return filepath.Join(o.cfg.Paths.LibraryDir, artist, title), nil
}

func (o *Organizer) installCoverArt(album *metadata.Album, targetDir string) error {
	source := strings.TrimSpace(album.CoverArtPath)
	if source == "" {
		return nil
	}
	if _, err := os.Stat(source); err != nil {
		return nil
	}
	ext := filepath.Ext(source)
	if ext == "" {
		ext = ".jpg"
	}
	return copyFile(source, filepath.Join(targetDir, "cover"+ext))
}

func (o *Organizer) flagReview(ctx context.Context, item *queue.Item, reason string) {
	logger := logging.WithContext(ctx, o.logger)
	item.SetReview(reason)
	item.ErrorMessage = reason
	if o.notifier != nil {
		label := strings.TrimSpace(item.DiscTitle)
		if err := o.notifier.Publish(ctx, notifications.EventReviewRequired, notifications.Payload{
			"label": label,
		}); err != nil {
			logger.Warn("review notification failed", logging.Error(err))
		}
	}
}

func (o *Organizer) applyProgress(ctx context.Context, item *queue.Item, message string, percent float64) {
	logger := logging.WithContext(ctx, o.logger)
	updated := *item
	updated.SetProgress("Organizing", message, percent)
	if err := o.store.Update(ctx, &updated); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	*item = updated
}

func libraryLabel(album *metadata.Album) string {
	return fmt.Sprintf("%s - %s", album.DisplayArtist(), album.Title)
}

// encodedFiles returns the FLAC files produced by the encoding stage, sorted
// so tracks are filed in order.
func encodedFiles(flacDir string) ([]string, error) {
	entries, err := os.ReadDir(flacDir)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "organizing", "locate encoded files",
			"No encoded output present; rerun the encoding stage", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".flac") {
			continue
		}
		files = append(files, filepath.Join(flacDir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, services.Wrap(
			services.ErrValidation, "organizing", "locate encoded files",
			"No encoded output present; rerun the encoding stage", nil)
	}
	sort.Strings(files)
	return files, nil
}

func firstExisting(targetDir string, files []string) string {
	for _, file := range files {
		candidate := filepath.Join(targetDir, filepath.Base(file))
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// moveFile renames src to dst, falling back to copy+remove when the library
// lives on a different filesystem than the staging directory.
func moveFile(src, dst string) error {
	renameErr := os.Rename(src, dst)
	if renameErr == nil {
		return nil
	}
	var linkErr *os.LinkError
	if errors.As(renameErr, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := copyFile(src, dst); err != nil {
			return err
		}
		return os.Remove(src)
	}
	return renameErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
