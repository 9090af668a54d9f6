package main

import (
	"context"
	"flag"

	"github.com/silvercar/ecs-cluster/cluster"
	"github.com/silvercar/ecs-cluster/introspect"
	"github.com/silvercar/ecs-cluster/remote"
)

func cmdSSH(args []string) {
	fs := flag.NewFlagSet("ssh", flag.ExitOnError)
	f := addCommonFlags(fs)
	taskARN := fs.String("task", "", "task ARN (default: first running task of the service)")
	keyDir := fs.String("key-dir", "", "directory holding private key files (default: ~/.ssh)")
	user := fs.String("user", remote.DefaultUser, "SSH login user")
	execCmd := fs.String("exec", "", "command to run in the container (default: a shell)")
	verifyHost := fs.Bool("verify-host-key", false, "verify the host key against a known_hosts file")
	knownHosts := fs.String("known-hosts", "", "known_hosts file used with --verify-host-key")
	fs.Parse(args)

	ctx := context.Background()
	clients, c, _, logger := f.setup(ctx)

	serviceARN, err := resolveServiceARN(ctx, c, f)
	if err != nil {
		fatalf("%v", err)
	}

	resolver := cluster.NewHostResolver(c, clients.EC2, logger)
	target, err := resolver.ResolveRemote(ctx, serviceARN, *taskARN)
	if err != nil {
		fatalf("%v", err)
	}
	logger.Debug().
		Str("task", target.TaskARN).
		Str("address", target.Address).
		Msg("resolved remote target")

	containerID, err := introspect.NewClient(0).ContainerID(ctx, target.Address, target.TaskARN)
	if err != nil {
		fatalf("%v", err)
	}

	keyPath, err := remote.KeyPath(*keyDir, target.KeyName)
	if err != nil {
		fatalf("%v", err)
	}

	width, height := remote.TerminalSize()
	builder := remote.Builder{
		User:       *user,
		VerifyHost: *verifyHost,
		KnownHosts: *knownHosts,
	}
	session := builder.Build(target.Address, keyPath, containerID, *execCmd, width, height)

	if err := remote.Run(session, logger); err != nil {
		fatalf("remote session: %v", err)
	}
}
