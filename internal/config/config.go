// Package config loads lexicard's settings from defaults, a YAML file, the
// environment and command-line flags.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig  `koanf:"database"`
	Store     StoreConfig     `koanf:"store"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Quiz      QuizConfig      `koanf:"quiz"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Sync      SyncConfig      `koanf:"sync"`
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
}

// DatabaseConfig locates the sqlite database.
type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// StoreConfig tunes the card cache.
type StoreConfig struct {
	FlushDelay time.Duration `koanf:"flush_delay" validate:"gte=0"`
}

// SchedulerConfig selects and tunes the scheduling algorithm.
type SchedulerConfig struct {
	Algorithm        string  `koanf:"algorithm" validate:"oneof=fsrs simple"`
	DesiredRetention float64 `koanf:"desired_retention" validate:"gt=0,lt=1"`
	MaximumInterval  int     `koanf:"maximum_interval" validate:"gt=0"`
}

// QuizConfig shapes study sessions.
type QuizConfig struct {
	Size          int           `koanf:"size" validate:"gt=0,lte=200"`
	Options       int           `koanf:"options" validate:"gte=2,lte=6"`
	NewCards      int           `koanf:"new_cards" validate:"gte=0"`
	SlowThreshold time.Duration `koanf:"slow_threshold" validate:"gtfield=FastThreshold"`
	FastThreshold time.Duration `koanf:"fast_threshold" validate:"gt=0"`
	YieldEvery    int           `koanf:"yield_every" validate:"gt=0"`
}

// CatalogConfig locates the vocabulary catalog. With GitURL set the
// repository is cloned or pulled into GitDir and loaded from there.
type CatalogConfig struct {
	Path   string `koanf:"path" validate:"required_without=GitURL"`
	GitURL string `koanf:"git_url"`
	GitDir string `koanf:"git_dir" validate:"required_with=GitURL"`
}

// SyncConfig selects the remote snapshots are exchanged with.
type SyncConfig struct {
	Backend        string        `koanf:"backend" validate:"oneof=none file redis gcs"`
	Cooldown       time.Duration `koanf:"cooldown" validate:"gte=0"`
	Retries        uint          `koanf:"retries" validate:"gte=1,lte=10"`
	Dir            string        `koanf:"dir" validate:"required_if=Backend file"`
	RedisAddr      string        `koanf:"redis_addr" validate:"required_if=Backend redis"`
	GCSBucket      string        `koanf:"gcs_bucket" validate:"required_if=Backend gcs"`
	GCSObject      string        `koanf:"gcs_object"`
	GCSCredentials string        `koanf:"gcs_credentials"`
	Token          string        `koanf:"token"`
	JWTSecret      string        `koanf:"jwt_secret" validate:"omitempty,min=32"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// ServerConfig configures the JSON API.
type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}
