package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvPrefix = "MAGNETPICKER_"

	defaultListen   = ":8080"
	defaultRedisURL = "redis://localhost:6379/0"
	defaultWorkDir  = "pages"
	defaultPageExt  = ".md"
	defaultWorkers  = 4
	defaultMaxPages = 500
)

type ScannerConfig struct {
	WorkDir  string `yaml:"work_dir" validate:"required"`
	Workers  int    `yaml:"workers" validate:"gte=1"`
	PageExt  string `yaml:"page_ext" validate:"required"`
	MaxPages int    `yaml:"max_pages" validate:"gte=1"`
}

type Config struct {
	Listen        string                   `yaml:"listen" validate:"required"`
	RedisURL      string                   `yaml:"redis_url" validate:"required"`
	LogLevel      string                   `yaml:"log_level" validate:"oneof=debug info warn error"`
	RulesFile     string                   `yaml:"rules_file"`
	ReportTmpl    string                   `yaml:"report_template"`
	ScannerConfig ScannerConfig            `yaml:"scanner"`
	Selection     entity.SelectionSettings `yaml:"selection"`
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.RedisURL = defaultRedisURL
	c.LogLevel = LogLevelInfo
	c.ScannerConfig = ScannerConfig{
		WorkDir:  defaultWorkDir,
		Workers:  defaultWorkers,
		PageExt:  defaultPageExt,
		MaxPages: defaultMaxPages,
	}
	c.Selection = entity.SelectionSettings{
		RequiredThreshold:  10 * entity.GiB,
		PreferredThreshold: 5 * entity.GiB,
		TargetCount:        3,
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	}

	return slog.LevelInfo
}

// MustLoad reads the config file, applies .env and MAGNETPICKER_* overrides and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(afero.NewOsFs(), path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load reads the config file from fs. A missing file leaves the defaults in place.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	data, err := afero.ReadFile(fs, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LISTEN":     &c.Listen,
		"REDIS_URL":  &c.RedisURL,
		"LOG_LEVEL":  &c.LogLevel,
		"RULES_FILE": &c.RulesFile,
		"REPORT_TPL": &c.ReportTmpl,
		"WORK_DIR":   &c.ScannerConfig.WorkDir,
		"PAGE_EXT":   &c.ScannerConfig.PageExt,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":      &c.ScannerConfig.Workers,
		"MAX_PAGES":    &c.ScannerConfig.MaxPages,
		"TARGET_COUNT": &c.Selection.TargetCount,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("cannot parse %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags of a config or of selection settings.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
