package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/lexicard/internal/quiz"
	"github.com/conorfennell/lexicard/internal/review"
	"github.com/conorfennell/lexicard/internal/storage"
	"github.com/conorfennell/lexicard/internal/sync"
)

// EnvPrefix prefixes environment overrides. Sections and keys are separated
// by a double underscore: LEXICARD_SYNC__REDIS_ADDR sets sync.redis_addr.
const EnvPrefix = "LEXICARD_"

// FlagConfig names the flag holding the YAML file path.
const FlagConfig = "config"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Flags returns a flag set carrying every setting with its default value.
// Flag names are the dotted config keys, e.g. --quiz.size.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String(FlagConfig, "", "path to a YAML config file")

	fs.String("database.path", "lexicard.db", "path to the SQLite database file")
	fs.Duration("store.flush_delay", storage.DefaultFlushDelay, "delay before dirty cards are written")

	fs.String("scheduler.algorithm", "fsrs", "scheduling algorithm: fsrs or simple")
	fs.Float64("scheduler.desired_retention", 0.9, "target probability of recall")
	fs.Int("scheduler.maximum_interval", 36500, "longest interval in days")

	fs.Int("quiz.size", 20, "questions per session")
	fs.Int("quiz.options", quiz.DefaultOptionCount, "choices per multiple-choice question")
	fs.Int("quiz.new_cards", 10, "new entries introduced per session")
	fs.Duration("quiz.slow_threshold", review.DefaultThresholds.Slow, "answers slower than this rate Hard")
	fs.Duration("quiz.fast_threshold", review.DefaultThresholds.Fast, "answers faster than this on harder types rate Easy")
	fs.Int("quiz.yield_every", quiz.DefaultYieldEvery, "entries processed between cancellation checks")

	fs.String("catalog.path", "catalog", "directory of vocabulary files")
	fs.String("catalog.git_url", "", "git repository holding the catalog")
	fs.String("catalog.git_dir", "repos", "directory git catalogs are cloned into")

	fs.String("sync.backend", "none", "snapshot remote: none, file, redis or gcs")
	fs.Duration("sync.cooldown", sync.DefaultCooldown, "minimum time between sync attempts")
	fs.Uint("sync.retries", sync.DefaultRetries, "attempts for network failures")
	fs.String("sync.dir", "", "directory of the file remote")
	fs.String("sync.redis_addr", "", "address of the redis remote")
	fs.String("sync.gcs_bucket", "", "bucket of the Cloud Storage remote")
	fs.String("sync.gcs_object", "", "object name of the Cloud Storage remote")
	fs.String("sync.gcs_credentials", "", "service account file for Cloud Storage")
	fs.String("sync.token", "", "identity token of the syncing user")
	fs.String("sync.jwt_secret", "", "secret identity tokens are signed with")

	fs.String("log.level", "info", "log level: debug, info, warn or error")
	fs.String("log.format", "text", "log format: text or json")

	fs.String("server.addr", "127.0.0.1:8080", "listen address of the JSON API")
	return fs
}

// Load builds the configuration from fs, which must come from Flags and be
// parsed. Later sources win: flag defaults, the YAML file named by --config,
// LEXICARD_ environment variables, then flags set on the command line.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path, _ := fs.GetString(FlagConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys no other source set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Validate checks the struct tags and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Sync.Backend == "gcs" && c.Sync.GCSCredentials != "" {
		if _, err := os.Stat(c.Sync.GCSCredentials); err != nil {
			return fmt.Errorf("invalid config: gcs credentials: %w", err)
		}
	}
	return nil
}

// SyncEnabled reports whether a remote is configured.
func (c *Config) SyncEnabled() bool {
	return c.Sync.Backend != "" && c.Sync.Backend != "none"
}
