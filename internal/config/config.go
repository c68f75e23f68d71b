package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultEnvFiles are read in order when present. Variables already set in
// the process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type BackendOptions struct {
	URL     string        `env:"URL" envDefault:"http://localhost:8000"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
	Retries int           `env:"RETRIES" envDefault:"2"`
}

type ArchiveOptions struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"gazette-commits"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// Enabled reports whether payload archiving is configured.
func (a ArchiveOptions) Enabled() bool { return a.Endpoint != "" }

type Config struct {
	Addr    string         `env:"API_ADDR" envDefault:":8787"`
	Backend BackendOptions `envPrefix:"BACKEND_"`

	// Empty DatabaseURL keeps the registry and commit log in memory. Empty
	// MigrationsDir applies the migrations compiled into the binary.
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationsDir string `env:"MIGRATIONS_DIR"`

	RedisURL         string        `env:"REDIS_URL"`
	SnapshotCacheTTL time.Duration `env:"SNAPSHOT_CACHE_TTL" envDefault:"10m"`

	DraftReposDir string `env:"DRAFT_REPOS_DIR" envDefault:"./data/drafts"`

	MeiliURL       string `env:"MEILI_URL"`
	MeiliMasterKey string `env:"MEILI_MASTER_KEY"`

	Archive ArchiveOptions `envPrefix:"ARCHIVE_"`

	CORSOrigin     string `env:"CORS_ORIGIN" envDefault:"*"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`

	// WarningTimeout bounds each fire-and-forget warning write.
	WarningTimeout time.Duration `env:"WARNING_TIMEOUT" envDefault:"10s"`
}

// LoadEnv loads the env files that exist and returns how many were read.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return 0, errors.Wrap(err, "load env files")
	}
	return len(existing), nil
}

// Load reads files into the environment and parses the configuration.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}
	if _, err := LoadEnv(files); err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	if cfg.Backend.Retries < 0 {
		return Config{}, errors.Errorf("BACKEND_RETRIES must be >= 0, got %d", cfg.Backend.Retries)
	}
	if cfg.Archive.Enabled() && (cfg.Archive.AccessKey == "" || cfg.Archive.SecretKey == "") {
		return Config{}, errors.New("ARCHIVE_ENDPOINT requires ARCHIVE_ACCESS_KEY and ARCHIVE_SECRET_KEY")
	}
	return cfg, nil
}
