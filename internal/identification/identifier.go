package identification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"platter/internal/config"
	"platter/internal/disc"
	"platter/internal/identification/musicbrainz"
	"platter/internal/logging"
	"platter/internal/metadata"
	"platter/internal/notifications"
	"platter/internal/queue"
	"platter/internal/services"
	"platter/internal/stage"
)

// Identifier resolves an inserted disc to album metadata. It reads the table
// of contents with cd-discid, submits the raw TOC to MusicBrainz, and stores
// the selected release as album metadata on the queue item.
type Identifier struct {
	cfg      *config.Config
	store    *queue.Store
	logger   *slog.Logger
	resolver musicbrainz.Resolver
	tocs     disc.TOCReader
	notifier notifications.Service
}

// NewIdentifier creates the stage handler with production dependencies.
func NewIdentifier(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Identifier {
	var resolver musicbrainz.Resolver
	client, err := musicbrainz.New(
		cfg.MusicBrainz.BaseURL,
		cfg.MusicBrainz.UserAgent,
		cfg.MusicBrainz.TimeoutSeconds,
		musicbrainz.WithCoverArtURL(cfg.MusicBrainz.CoverArtBaseURL),
	)
	if err != nil {
		logging.NewComponentLogger(logger, "identifier").Warn("musicbrainz client initialization failed", logging.Error(err))
	} else {
		resolver = client
	}

	var tocs disc.TOCReader
	reader, err := disc.NewReader(cfg.DiscIDBinary(), cfg.Ripper.TOCTimeout)
	if err != nil {
		logging.NewComponentLogger(logger, "identifier").Warn("toc reader initialization failed", logging.Error(err))
	} else {
		tocs = reader
	}

	return NewIdentifierWithDependencies(cfg, store, logger, resolver, tocs, notifications.NewService(cfg))
}

// NewIdentifierWithDependencies allows injecting the MusicBrainz resolver and
// TOC reader (used in tests).
func NewIdentifierWithDependencies(
	cfg *config.Config,
	store *queue.Store,
	logger *slog.Logger,
	resolver musicbrainz.Resolver,
	tocs disc.TOCReader,
	notifier notifications.Service,
) *Identifier {
	return &Identifier{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "identifier"),
		resolver: resolver,
		tocs:     tocs,
		notifier: notifier,
	}
}

// Prepare initializes progress messaging prior to Execute.
func (i *Identifier) Prepare(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	item.InitProgress("Identifying", "Reading disc contents")

	title := strings.TrimSpace(item.DiscTitle)
	if title == "" {
		title = "Unknown Disc"
	}
	logger.Info("starting disc identification",
		logging.String("disc_title", title),
		logging.String("device", strings.TrimSpace(item.Device)),
	)
	return nil
}

// Execute reads the TOC when needed, performs the MusicBrainz lookup, and
// attaches the selected album metadata to the item.
func (i *Identifier) Execute(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)

	toc, err := i.resolveTOC(ctx, item)
	if err != nil {
		return err
	}
	if item.Status == queue.StatusReview {
		return nil
	}
	logger.Info("disc toc resolved",
		logging.Int("track_count", toc.TrackCount()),
		logging.Int("total_seconds", toc.TotalSeconds),
		logging.String(logging.FieldDiscID, toc.FreeDBID),
	)

	item.SetProgress("Identifying", "Querying MusicBrainz", 25)
	releases, err := i.lookupReleases(ctx, toc)
	if err != nil {
		if errors.Is(err, musicbrainz.ErrNoReleases) {
			submissionURL := musicbrainz.SubmissionURL(toc)
			logger.Info("no musicbrainz release matched the disc",
				logging.String(logging.FieldDiscID, toc.FreeDBID),
				logging.String("submission_url", submissionURL))
			i.flagReview(ctx, item, fmt.Sprintf(
				"No MusicBrainz release matched the disc; attach its TOC at %s", submissionURL))
			return nil
		}
		return err
	}
	logger.Info("musicbrainz lookup completed", logging.Int("release_count", len(releases)))

	release, medium, ok := selectRelease(toc, releases)
	if !ok {
		logger.Info("no release medium matched the disc track count",
			logging.Int("track_count", toc.TrackCount()),
			logging.Int("release_count", len(releases)))
		i.flagReview(ctx, item, "No release matched the disc track count")
		return nil
	}

	album := buildAlbum(release, medium)
	if err := album.Validate(); err != nil {
		logger.Info("selected release has incomplete metadata",
			logging.String("release_id", release.ID),
			logging.Error(err))
		i.flagReview(ctx, item, "Selected release has incomplete metadata")
		return nil
	}

	if i.cfg.MusicBrainz.CoverArt {
		item.SetProgress("Identifying", "Fetching cover art", 75)
		i.fetchCoverArt(ctx, item, album)
	}

	encoded, err := metadata.Marshal(album)
	if err != nil {
		return services.Wrap(services.ErrTransient, "identification", "encode metadata", "Failed to encode album metadata", err)
	}
	item.MetadataJSON = encoded

	displayTitle := fmt.Sprintf("%s - %s", album.DisplayArtist(), album.Title)
	item.DiscTitle = displayTitle
	item.SetProgressComplete("Identified", fmt.Sprintf("Identified as: %s", displayTitle))

	logger.Info("disc identified",
		logging.String("release_id", album.ReleaseID),
		logging.String("artist", album.DisplayArtist()),
		logging.String("album", album.Title),
		logging.Int("track_count", len(album.Tracks)),
	)
	if i.notifier != nil {
		if err := i.notifier.Publish(ctx, notifications.EventIdentificationCompleted, notifications.Payload{
			"artist": album.DisplayArtist(),
			"album":  album.Title,
		}); err != nil {
			logger.Warn("identification notification failed", logging.Error(err))
		}
	}
	return nil
}

// HealthCheck verifies identifier dependencies required for successful execution.
func (i *Identifier) HealthCheck(ctx context.Context) stage.Health {
	const name = "identifier"
	if i.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(i.cfg.MusicBrainz.UserAgent) == "" {
		return stage.Unhealthy(name, "musicbrainz user agent missing")
	}
	if i.resolver == nil {
		return stage.Unhealthy(name, "musicbrainz client unavailable")
	}
	if i.tocs == nil {
		return stage.Unhealthy(name, "toc reader unavailable")
	}
	return stage.Healthy(name)
}

// resolveTOC returns the table of contents stored on the item, reading it from
// the drive when the daemon has not captured it yet.
func (i *Identifier) resolveTOC(ctx context.Context, item *queue.Item) (disc.TOC, error) {
	if strings.TrimSpace(item.TOCJSON) != "" {
		return stage.ParseTOC(item.TOCJSON)
	}

	if i.tocs == nil {
		return disc.TOC{}, services.Wrap(
			services.ErrConfiguration, "identification", "initialize toc reader",
			"TOC reader unavailable; install cd-discid and ensure it is in PATH", nil)
	}
	device := strings.TrimSpace(item.Device)
	if device == "" {
		device = strings.TrimSpace(i.cfg.Ripper.OpticalDrive)
	}
	if device == "" {
		return disc.TOC{}, services.Wrap(
			services.ErrConfiguration, "identification", "resolve optical drive",
			"Optical drive path not configured; set optical_drive in the ripper section", nil)
	}

	toc, err := i.tocs.ReadTOC(ctx, device)
	if err != nil {
		return disc.TOC{}, services.Wrap(services.ErrExternalTool, "identification", "read toc", "Reading the disc table of contents failed", err)
	}

	encoded, err := stage.EncodeTOC(toc)
	if err != nil {
		return disc.TOC{}, err
	}
	item.TOCJSON = encoded

	if strings.TrimSpace(item.Fingerprint) == "" {
		item.Fingerprint = disc.Fingerprint(toc)
		if err := i.handleDuplicateFingerprint(ctx, item); err != nil {
			return disc.TOC{}, err
		}
	}
	return toc, nil
}

func (i *Identifier) lookupReleases(ctx context.Context, toc disc.TOC) ([]musicbrainz.Release, error) {
	if i.resolver == nil {
		return nil, services.Wrap(
			services.ErrConfiguration, "identification", "initialize musicbrainz client",
			"MusicBrainz client unavailable; check musicbrainz configuration", nil)
	}
	releases, err := i.resolver.LookupByTOC(ctx, toc)
	if err != nil {
		if errors.Is(err, musicbrainz.ErrNoReleases) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrTransient, "identification", "musicbrainz lookup", "MusicBrainz lookup failed", err)
	}
	return releases, nil
}

// fetchCoverArt downloads the front cover into the item staging directory.
// Cover art is best effort; missing art never blocks the pipeline.
func (i *Identifier) fetchCoverArt(ctx context.Context, item *queue.Item, album *metadata.Album) {
	logger := logging.WithContext(ctx, i.logger)
	if i.resolver == nil || album.ReleaseID == "" {
		return
	}

	data, ext, err := i.resolver.CoverArtFront(ctx, album.ReleaseID)
	if err != nil {
		if errors.Is(err, musicbrainz.ErrNoReleases) {
			logger.Info("no cover art available", logging.String("release_id", album.ReleaseID))
		} else {
			logger.Warn("cover art fetch failed",
				logging.String("release_id", album.ReleaseID),
				logging.Error(err))
		}
		return
	}

	stagingDir, err := i.ensureStagingDir(item)
	if err != nil {
		logger.Warn("staging directory unavailable for cover art", logging.Error(err))
		return
	}
	target := filepath.Join(stagingDir, "cover"+ext)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		logger.Warn("cover art write failed",
			logging.String("path", target),
			logging.Error(err))
		return
	}
	album.CoverArtPath = target
	logger.Info("cover art staged",
		logging.String("path", target),
		logging.Int("bytes", len(data)))
}

func (i *Identifier) ensureStagingDir(item *queue.Item) (string, error) {
	if strings.TrimSpace(item.StagingDir) == "" {
		item.StagingDir = filepath.Join(i.cfg.Paths.StagingDir, fmt.Sprintf("disc-%d", item.ID))
	}
	if err := os.MkdirAll(item.StagingDir, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return item.StagingDir, nil
}

func (i *Identifier) handleDuplicateFingerprint(ctx context.Context, item *queue.Item) error {
	logger := logging.WithContext(ctx, i.logger)
	found, err := i.store.FindByFingerprint(ctx, item.Fingerprint)
	if err != nil {
		return services.Wrap(services.ErrTransient, "identification", "lookup fingerprint", "Failed to query existing disc fingerprint", err)
	}
	if found != nil && found.ID != item.ID {
		logger.Info("duplicate disc fingerprint detected",
			logging.Int64("existing_item_id", found.ID),
			logging.String("fingerprint", item.Fingerprint),
		)
		i.flagReview(ctx, item, "Duplicate disc fingerprint")
		item.ErrorMessage = "Duplicate disc fingerprint"
	}
	return nil
}

func (i *Identifier) flagReview(ctx context.Context, item *queue.Item, reason string) {
	logger := logging.WithContext(ctx, i.logger)
	logger.Info("flagging queue item for review", logging.String("reason", reason))
	item.SetReview(reason)
	item.ErrorMessage = reason

	if i.notifier != nil {
		label := strings.TrimSpace(item.DiscTitle)
		if label == "" {
			label = item.Fingerprint
		}
		if err := i.notifier.Publish(ctx, notifications.EventReviewRequired, notifications.Payload{
			"label":  label,
			"reason": reason,
		}); err != nil {
			logger.Warn("review notification failed", logging.Error(err))
		}
	}
}

// buildAlbum maps the selected release medium onto the tagging model. Track
// titles fall back to the recording title when the release track is unnamed.
func buildAlbum(release musicbrainz.Release, medium musicbrainz.Medium) *metadata.Album {
	artist := release.JoinedArtist()
	album := &metadata.Album{
		Artist:      artist,
		AlbumArtist: artist,
		Title:       release.Title,
		Date:        release.Date,
		ReleaseID:   release.ID,
		DiscNumber:  medium.Position,
		DiscTotal:   len(release.Media),
		TrackTotal:  len(medium.Tracks),
	}
	for _, track := range medium.Tracks {
		title := strings.TrimSpace(track.Title)
		if title == "" {
			title = strings.TrimSpace(track.Recording.Title)
		}
		album.Tracks = append(album.Tracks, metadata.Track{
			Number:      track.Position,
			Title:       title,
			RecordingID: track.Recording.ID,
			LengthMS:    track.LengthMS,
		})
	}
	return album
}
