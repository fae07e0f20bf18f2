package config

const (
	defaultStagingDir                = "~/.local/share/platter/staging"
	defaultLibraryDir                = "~/music"
	defaultLogDir                    = "~/.local/share/platter/logs"
	defaultReviewDir                 = "~/review"
	defaultSocketPath                = "~/.local/share/platter/platterd.sock"
	defaultOpticalDrive              = "/dev/sr0"
	defaultMusicBrainzBaseURL        = "https://musicbrainz.org/ws/2"
	defaultMusicBrainzUserAgent      = "platter/dev (https://github.com/platter/platter)"
	defaultMusicBrainzTimeoutSeconds = 30
	defaultCoverArtBaseURL           = "https://coverartarchive.org"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 60
	defaultRipTimeout                = 1800
	defaultTOCTimeout                = 60
	defaultCompressionLevel          = 8
	defaultEncodingWorkers           = 2
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			ReviewDir:  defaultReviewDir,
			SocketPath: defaultSocketPath,
		},
		MusicBrainz: MusicBrainz{
			BaseURL:         defaultMusicBrainzBaseURL,
			UserAgent:       defaultMusicBrainzUserAgent,
			TimeoutSeconds:  defaultMusicBrainzTimeoutSeconds,
			CoverArt:        true,
			CoverArtBaseURL: defaultCoverArtBaseURL,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			Identification: true,
			Rip:            true,
			Encoding:       true,
			Organization:   true,
			Queue:          true,
			Review:         true,
			Errors:         true,
		},
		Ripper: Ripper{
			OpticalDrive:  defaultOpticalDrive,
			RipTimeout:    defaultRipTimeout,
			TOCTimeout:    defaultTOCTimeout,
			EjectAfterRip: true,
		},
		Encoding: Encoding{
			CompressionLevel: defaultCompressionLevel,
			Verify:           true,
			Workers:          defaultEncodingWorkers,
			EmbedCoverArt:    true,
		},
		Workflow: Workflow{
			QueuePollInterval:  5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:   defaultWorkflowHeartbeatTimeout,
			DiscMonitorTimeout: 5,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
