package cloudvfs

import (
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Store backend to use (azure, memory)
	Driver string `env:"CLOUDVFS_DRIVER,default:azure"`

	// Connection persistence. An empty file keeps connections in memory.
	ConnectionsFile string `env:"CLOUDVFS_CONNECTIONS_FILE"`
	IdentityFile    string `env:"CLOUDVFS_IDENTITY_FILE"` // age identity encrypting the connections file

	// Transfer tuning
	ChunkSize          int `env:"CLOUDVFS_CHUNK_SIZE,default:32768"`
	CopyPollIntervalMS int `env:"CLOUDVFS_COPY_POLL_INTERVAL_MS,default:100"`
	UploadConcurrency  int `env:"CLOUDVFS_UPLOAD_CONCURRENCY,default:1"`

	// Delegated sign-in
	TenantID string `env:"CLOUDVFS_TENANT_ID"`

	// Logging
	LogLevel string `env:"CLOUDVFS_LOG_LEVEL,default:info"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CopyPollInterval returns the configured poll interval.
func (c *Config) CopyPollInterval() time.Duration {
	return time.Duration(c.CopyPollIntervalMS) * time.Millisecond
}
