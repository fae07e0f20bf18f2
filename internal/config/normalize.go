package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMusicBrainz(); err != nil {
		return err
	}
	c.normalizeRipper()
	c.normalizeEncoding()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = defaultSocketPath
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMusicBrainz() error {
	c.MusicBrainz.BaseURL = strings.TrimRight(strings.TrimSpace(c.MusicBrainz.BaseURL), "/")
	if c.MusicBrainz.BaseURL == "" {
		c.MusicBrainz.BaseURL = defaultMusicBrainzBaseURL
	}
	c.MusicBrainz.UserAgent = strings.TrimSpace(c.MusicBrainz.UserAgent)
	if c.MusicBrainz.UserAgent == "" {
		c.MusicBrainz.UserAgent = defaultMusicBrainzUserAgent
	}
	if c.MusicBrainz.TimeoutSeconds <= 0 {
		c.MusicBrainz.TimeoutSeconds = defaultMusicBrainzTimeoutSeconds
	}
	c.MusicBrainz.CoverArtBaseURL = strings.TrimRight(strings.TrimSpace(c.MusicBrainz.CoverArtBaseURL), "/")
	if c.MusicBrainz.CoverArtBaseURL == "" {
		c.MusicBrainz.CoverArtBaseURL = defaultCoverArtBaseURL
	}
	return nil
}

func (c *Config) normalizeRipper() {
	c.Ripper.OpticalDrive = strings.TrimSpace(c.Ripper.OpticalDrive)
	if c.Ripper.OpticalDrive == "" {
		c.Ripper.OpticalDrive = defaultOpticalDrive
	}
	if c.Ripper.RipTimeout <= 0 {
		c.Ripper.RipTimeout = defaultRipTimeout
	}
	if c.Ripper.TOCTimeout <= 0 {
		c.Ripper.TOCTimeout = defaultTOCTimeout
	}
}

func (c *Config) normalizeEncoding() {
	if c.Encoding.Workers <= 0 {
		c.Encoding.Workers = defaultEncodingWorkers
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
