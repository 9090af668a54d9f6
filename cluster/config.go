package cluster

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ManagedTagKey and ManagedTagValue mark task definitions registered by this
// tool, so managed revisions can be told apart from revisions created by
// other means when searching within a family.
const (
	ManagedTagKey   = "Managed"
	ManagedTagValue = "ecs-cluster"
)

// Config holds tool configuration.
type Config struct {
	Region       string
	Cluster      string
	PollInterval time.Duration
	PollTimeout  time.Duration
	EndpointURL  string // Custom endpoint URL for simulator mode
	StrictClone  bool   // Fail clones when the target container is missing
}

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() Config {
	return Config{
		Region:       os.Getenv("AWS_REGION"),
		Cluster:      os.Getenv("ECS_CLUSTER_NAME"),
		PollInterval: envDuration("ECS_CLUSTER_POLL_INTERVAL", 5*time.Second),
		PollTimeout:  envDuration("ECS_CLUSTER_POLL_TIMEOUT", 60*time.Second),
		EndpointURL:  os.Getenv("ECS_CLUSTER_ENDPOINT_URL"),
		StrictClone:  os.Getenv("ECS_CLUSTER_STRICT_CLONE") == "true",
	}
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.Cluster == "" {
		return fmt.Errorf("cluster name is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("poll timeout must be positive")
	}
	return nil
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}
