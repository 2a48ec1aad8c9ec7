package timevault

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
	"github.com/timevault/timevault/timevault/database"
)

// LoadConfig reads the TOML config file, then applies TIMEVAULT_* environment
// overrides so containerized deployments can override the file per field.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}

	if err = envconfig.Process("timevault", &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}
	return &cfg, nil
}

type Config struct {
	Log    LogConfig         `toml:"log"`
	Web    WebConfig         `toml:"web"`
	DB     database.DBConfig `toml:"db"`
	Spaces SpacesConfig      `toml:"spaces"`
}

type WebConfig struct {
	Host string `toml:"host" envconfig:"WEB_HOST"`
	Port int    `toml:"port" envconfig:"WEB_PORT"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level" envconfig:"LOG_LEVEL"`
	AddSource bool       `toml:"add_source"`
}

// SpacesConfig points at the S3-compatible bucket holding card artwork.
type SpacesConfig struct {
	Key      string `toml:"key" envconfig:"SPACES_KEY"`
	Secret   string `toml:"secret" envconfig:"SPACES_SECRET"`
	Region   string `toml:"region" envconfig:"SPACES_REGION"`
	Bucket   string `toml:"bucket" envconfig:"SPACES_BUCKET"`
	CardRoot string `toml:"cardroot" envconfig:"SPACES_CARD_ROOT"`
}
