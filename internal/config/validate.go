package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateMusicBrainz(); err != nil {
		return err
	}
	if err := c.validateRipper(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		return errors.New("paths.library_dir must be set")
	}
	return nil
}

func (c *Config) validateMusicBrainz() error {
	if strings.TrimSpace(c.MusicBrainz.UserAgent) == "" {
		return errors.New("musicbrainz.user_agent must be set")
	}
	if strings.TrimSpace(c.MusicBrainz.BaseURL) == "" {
		return errors.New("musicbrainz.base_url must be set")
	}
	if c.MusicBrainz.CoverArt && strings.TrimSpace(c.MusicBrainz.CoverArtBaseURL) == "" {
		return errors.New("musicbrainz.cover_art_base_url must be set when musicbrainz.cover_art is true")
	}
	return nil
}

func (c *Config) validateRipper() error {
	if strings.TrimSpace(c.Ripper.OpticalDrive) == "" {
		return errors.New("ripper.optical_drive must be set")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.CompressionLevel < 0 || c.Encoding.CompressionLevel > 8 {
		return errors.New("encoding.compression_level must be between 0 and 8")
	}
	if c.Encoding.Workers < 1 {
		return errors.New("encoding.workers must be >= 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"ripper.rip_timeout":             c.Ripper.RipTimeout,
		"ripper.toc_timeout":             c.Ripper.TOCTimeout,
		"musicbrainz.timeout_seconds":    c.MusicBrainz.TimeoutSeconds,
		"notifications.request_timeout":  c.Notifications.RequestTimeout,
		"workflow.disc_monitor_timeout":  c.Workflow.DiscMonitorTimeout,
		"workflow.queue_poll_interval":   c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval":  c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
