// Package config collects the server's environment-driven settings.
package config

import (
	"os"
	"strconv"
	"time"
)

// AssetStorage configures the blob side of asset uploads.
type AssetStorage struct {
	ContainerName       string
	MaxFileSizeBytes    int64
	DownloadURLValidity time.Duration
	StorageRoot         string
}

// Sync configures the pull engine defaults.
type Sync struct {
	DefaultPullMaxItemsPerEntity int
}

// Config is the full server configuration.
type Config struct {
	DatabaseURL   string
	HTTPAddr      string
	PublicBaseURL string
	JWTSecret     string
	AuthDevMode   bool
	Env           string
	AssetStorage  AssetStorage
	Sync          Sync
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envInt(k string, def int) int {
	return int(envInt64(k, int64(def)))
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads the configuration from the environment, filling defaults.
func Load() Config {
	return Config{
		DatabaseURL:   env("DATABASE_URL", ""),
		HTTPAddr:      env("HTTP_ADDR", ":8081"),
		PublicBaseURL: env("PUBLIC_BASE_URL", "http://localhost:8081"),
		JWTSecret:     env("JWT_HS256_SECRET", "dev-secret-change-in-production"),
		AuthDevMode:   env("AUTH_DEV_MODE", "") == "true",
		Env:           env("ENV", "dev"),
		AssetStorage: AssetStorage{
			ContainerName:       env("ASSET_CONTAINER_NAME", "user-assets"),
			MaxFileSizeBytes:    envInt64("ASSET_MAX_FILE_SIZE_BYTES", 50*1024*1024),
			DownloadURLValidity: envDuration("ASSET_DOWNLOAD_URL_VALIDITY", time.Hour),
			StorageRoot:         env("ASSET_STORAGE_ROOT", "./data/blobs"),
		},
		Sync: Sync{
			DefaultPullMaxItemsPerEntity: envInt("SYNC_PULL_MAX_ITEMS", 500),
		},
	}
}
