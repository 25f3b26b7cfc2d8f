package config

const (
	defaultOutputDir                = "~/Music/tracktap"
	defaultPlaylistsDir             = "~/.local/share/tracktap/playlists"
	defaultLogDir                   = "~/.local/share/tracktap/logs"
	defaultStateDir                 = "~/.local/share/tracktap/state"
	defaultAPIBind                  = "127.0.0.1:7491"
	defaultSpotifyAPIBaseURL        = "https://api.spotify.com/v1"
	defaultSpotifyAccountsURL       = "https://accounts.spotify.com/api/token"
	defaultDeviceName               = "tracktap"
	defaultSpotifyRequestTimeout    = 10
	defaultLibrespotBinary          = "librespot"
	defaultLibrespotBitrate         = 320
	defaultLibrespotBackend         = "pipe"
	defaultEncoderBinary            = "ffmpeg"
	defaultEncoderBitrate           = "320k"
	defaultEncoderSampleRate        = 44100
	defaultEncoderChannels          = 2
	defaultEncoderCodec             = "libmp3lame"
	defaultEncoderExtension         = "mp3"
	defaultStartPadSeconds          = 3
	defaultWaitSlackSeconds         = 10
	defaultSettleSeconds            = 5
	defaultDiscoveryAttempts        = 6
	defaultDiscoveryIntervalSeconds = 2
	defaultSinkGraceSeconds         = 3
	defaultDiagnosticLines          = 20
	defaultFileNameMaxLength        = 150
	defaultNtfyRequestTimeout       = 10
	defaultPublishRegion            = "us-east-1"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogMaxSizeMB             = 20
	defaultLogMaxBackups            = 5
	defaultLogMaxAgeDays            = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			PlaylistsDir: defaultPlaylistsDir,
			LogDir:       defaultLogDir,
			StateDir:     defaultStateDir,
			APIBind:      defaultAPIBind,
		},
		Spotify: Spotify{
			APIBaseURL:     defaultSpotifyAPIBaseURL,
			AccountsURL:    defaultSpotifyAccountsURL,
			DeviceName:     defaultDeviceName,
			RequestTimeout: defaultSpotifyRequestTimeout,
		},
		Librespot: Librespot{
			Binary:  defaultLibrespotBinary,
			Bitrate: defaultLibrespotBitrate,
			Backend: defaultLibrespotBackend,
		},
		Encoder: Encoder{
			Binary:     defaultEncoderBinary,
			Bitrate:    defaultEncoderBitrate,
			SampleRate: defaultEncoderSampleRate,
			Channels:   defaultEncoderChannels,
			Codec:      defaultEncoderCodec,
			Extension:  defaultEncoderExtension,
		},
		Capture: Capture{
			StartPadSeconds:          defaultStartPadSeconds,
			WaitSlackSeconds:         defaultWaitSlackSeconds,
			SettleSeconds:            defaultSettleSeconds,
			DiscoveryAttempts:        defaultDiscoveryAttempts,
			DiscoveryIntervalSeconds: defaultDiscoveryIntervalSeconds,
			SinkGraceSeconds:         defaultSinkGraceSeconds,
			DiagnosticLines:          defaultDiagnosticLines,
			SkipExisting:             true,
			FileNameMaxLength:        defaultFileNameMaxLength,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
			RunStarted:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		Publish: Publish{
			Region: defaultPublishRegion,
			UseSSL: true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
