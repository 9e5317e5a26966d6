package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/feedstream-backend/internal/logger"
	"github.com/yungbote/feedstream-backend/internal/utils"
)

type Config struct {
	Port            string `yaml:"port"`
	Backend         string `yaml:"backend"`
	ReadImpliesSeen bool   `yaml:"read_implies_seen"`
}

// LoadConfig resolves the runtime configuration: environment variables
// first, then an optional YAML file named by FEEDSTREAM_CONFIG for
// values the environment left at their defaults.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Port:            utils.GetEnv("PORT", "8080", log),
		Backend:         utils.GetEnv("FEED_BACKEND", "memory", log),
		ReadImpliesSeen: utils.GetEnvAsBool("READ_IMPLIES_SEEN", false, log),
	}

	path := utils.GetEnv("FEEDSTREAM_CONFIG", "", log)
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var file Config
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	// env wins over file wins over defaults
	if os.Getenv("PORT") == "" && file.Port != "" {
		cfg.Port = file.Port
	}
	if os.Getenv("FEED_BACKEND") == "" && file.Backend != "" {
		cfg.Backend = file.Backend
	}
	if os.Getenv("READ_IMPLIES_SEEN") == "" {
		cfg.ReadImpliesSeen = file.ReadImpliesSeen
	}
	log.Info("Loaded configuration file", "path", path)
	return cfg, nil
}
