package vfskit

import (
	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Drive table file (YAML, TOML or JSON). Empty uses DefaultDriveTable.
	DrivesFile string `env:"VFS_DRIVES_FILE"`

	// Chunk size of Copy and CRC
	CopyBuffer int `env:"VFS_COPY_BUFFER,default:128"`

	// Register prometheus collectors with the default registerer
	Metrics bool `env:"VFS_METRICS,default:false"`

	// logrus level name (panic, fatal, error, warn, info, debug, trace)
	LogLevel string `env:"VFS_LOG_LEVEL,default:info"`

	// Format fixed drives that have no filesystem during Init
	AutoFormat bool `env:"VFS_AUTOFORMAT,default:true"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
