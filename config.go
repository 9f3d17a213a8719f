package casebook

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Folder       string `env:"CASEBOOK_FOLDER"`
	SchemaDB     string `env:"CASEBOOK_SCHEMA_DB" envDefault:"casebook.db"`
	MaxImageDim  int    `env:"CASEBOOK_MAX_IMAGE_DIM" envDefault:"1600"`
	NumberFormat string `env:"CASEBOOK_NUMBER_FORMAT" envDefault:"{number}"`
	FilenameStem string `env:"CASEBOOK_FILENAME_STEM" envDefault:"Scammer report"`
	StartNumber  int    `env:"CASEBOOK_START_NUMBER" envDefault:"1"`
	LogLevel     string `env:"CASEBOOK_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("casebook: parse config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds a production logger at the configured level.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("casebook: log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("casebook: build logger: %w", err)
	}
	return logger, nil
}
