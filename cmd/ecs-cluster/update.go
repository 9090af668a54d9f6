package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/silvercar/ecs-cluster/cluster"
	"github.com/silvercar/ecs-cluster/poll"
)

func cmdUpdateImage(args []string) {
	fs := flag.NewFlagSet("update-image", flag.ExitOnError)
	f := addCommonFlags(fs)
	container := fs.String("container", "", "container name to reimage (required)")
	image := fs.String("image", "", "new image reference (required)")
	hostname := fs.String("hostname", "", "override the container hostname")
	entrypoint := fs.String("entrypoint", "", "override the container entry point")
	command := fs.String("command", "", "override the container command")
	restart := fs.Bool("restart", false, "hard-cycle: force-stop old tasks instead of a rolling update")
	latest := fs.Bool("latest", false, "clone from the family's latest managed revision instead of the service's current one")
	timeout := fs.Int("timeout", 0, "convergence poll timeout in seconds")
	strict := fs.Bool("strict-container", false, "fail when the named container is not in the task definition")
	fs.Parse(args)

	if *container == "" || *image == "" {
		fatalf("--container and --image are required")
	}

	ctx := context.Background()
	_, c, cfg, logger := f.setup(ctx)
	if *timeout > 0 {
		cfg.PollTimeout = time.Duration(*timeout) * time.Second
	}
	if *strict {
		cfg.StrictClone = true
	}

	serviceARN, err := resolveServiceARN(ctx, c, f)
	if err != nil {
		fatalf("%v", err)
	}

	orch := cluster.NewOrchestrator(c, cfg, logger)
	ov := cluster.CloneOverrides{
		ContainerName: *container,
		Image:         *image,
		Hostname:      *hostname,
		Entrypoint:    *entrypoint,
		Command:       *command,
	}

	var newRef string
	if *restart {
		newRef, err = orch.RedeployImage(ctx, serviceARN, ov, *latest)
	} else {
		newRef, err = orch.UpdateImage(ctx, serviceARN, ov)
	}

	switch {
	case err == nil:
		fmt.Printf("Success: %s now runs %s\n", serviceARN, newRef)
	case errors.Is(err, poll.ErrTimeout):
		// The swap itself went through; only the convergence confirmation
		// is missing.
		fmt.Printf("Update issued (%s) but the service did not converge in time\n", newRef)
	default:
		fatalf("%v", err)
	}
}
