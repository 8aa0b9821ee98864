package config

// Default returns the baseline configuration before file values and
// normalization are applied.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: "~/.whisperx",
		},
		Daemon: Daemon{
			Runtime:            "python3",
			Entrypoint:         "~/.whisperx/watcher.py",
			SettleSeconds:      1,
			StopGraceSeconds:   2,
			RestartDelayMillis: 500,
			LivenessSeconds:    3,
		},
		Poll: Poll{
			StateMillis:    2000,
			ProgressMillis: 500,
			HistoryMillis:  10000,
		},
		Transport: Transport{
			ReconnectSeconds: 5,
		},
		Archive: Archive{
			Enabled: true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
