package cluster

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// LoadContextEnv loads defaults from ~/.ecs-cluster/config.json into the
// process environment. Env vars already set take precedence (not
// overwritten). Does nothing if no config file exists.
func LoadContextEnv(logger zerolog.Logger) {
	path := contextConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	var cfg contextConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn().Str("path", path).Err(err).Msg("failed to parse config file")
		return
	}

	applied := 0
	for k, v := range cfg.Env {
		if os.Getenv(k) == "" {
			os.Setenv(k, v)
			applied++
		}
	}
	if applied > 0 {
		logger.Debug().Str("path", path).Int("applied", applied).Msg("loaded config file defaults")
	}
}

type contextConfig struct {
	Env map[string]string `json:"env"`
}

func homeDir() string {
	if d := os.Getenv("ECS_CLUSTER_HOME"); d != "" {
		return d
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ecs-cluster")
}

func contextConfigPath() string {
	return filepath.Join(homeDir(), "config.json")
}
