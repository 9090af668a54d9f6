package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/silvercar/ecs-cluster/cluster"
)

// commonFlags are shared by every command that talks to the control plane.
type commonFlags struct {
	cluster     string
	serviceName string
	serviceARN  string
	logLevel    string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	f := &commonFlags{}
	fs.StringVar(&f.cluster, "cluster", "", "cluster name (required, or ECS_CLUSTER_NAME)")
	fs.StringVar(&f.serviceName, "service", "", "service short name")
	fs.StringVar(&f.serviceARN, "service-arn", "", "service ARN")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return f
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Str("component", "ecs-cluster").Logger()
}

// setup loads configuration, constructs AWS clients once, and returns the
// cluster client everything else shares.
func (f *commonFlags) setup(ctx context.Context) (*cluster.AWSClients, *cluster.Client, cluster.Config, zerolog.Logger) {
	logger := newLogger(f.logLevel)
	cluster.LoadContextEnv(logger)

	cfg := cluster.ConfigFromEnv()
	if f.cluster != "" {
		cfg.Cluster = f.cluster
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	clients, err := cluster.NewAWSClients(ctx, cfg.Region, cfg.EndpointURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize AWS clients")
	}

	return clients, cluster.NewClient(clients.ECS, cfg.Cluster, logger), cfg, logger
}

// resolveServiceARN applies the service selection precedence: explicit name,
// explicit ARN, then the cluster's first service.
func resolveServiceARN(ctx context.Context, c *cluster.Client, f *commonFlags) (string, error) {
	if f.serviceName != "" {
		return c.FindServiceARN(ctx, f.serviceName)
	}
	if f.serviceARN != "" {
		return f.serviceARN, nil
	}
	return c.DefaultServiceARN(ctx)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
