package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"github.com/silvercar/ecs-cluster/cluster"
	"github.com/silvercar/ecs-cluster/poll"
)

func cmdUpdateTaskDef(args []string) {
	fs := flag.NewFlagSet("update-taskdef", flag.ExitOnError)
	f := addCommonFlags(fs)
	fs.Parse(args)

	payload, err := taskDefPayload(fs.Args())
	if err != nil {
		fatalf("%v", err)
	}

	var input ecs.RegisterTaskDefinitionInput
	if err := json.Unmarshal([]byte(payload), &input); err != nil {
		fatalf("invalid task definition JSON: %v", err)
	}

	ctx := context.Background()
	_, c, cfg, logger := f.setup(ctx)

	serviceARN, err := resolveServiceARN(ctx, c, f)
	if err != nil {
		fatalf("%v", err)
	}

	orch := cluster.NewOrchestrator(c, cfg, logger)
	newRef, err := orch.RedeployTaskDef(ctx, serviceARN, &input)
	switch {
	case err == nil:
		fmt.Printf("Success: %s now runs %s\n", serviceARN, newRef)
	case errors.Is(err, poll.ErrTimeout):
		fmt.Printf("Update issued (%s) but the service did not converge in time\n", newRef)
	default:
		fatalf("%v", err)
	}
}

// taskDefPayload takes the definition JSON from the first positional
// argument, or from stdin when none is given.
func taskDefPayload(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read task definition from stdin: %w", err)
	}
	payload := strings.TrimSpace(string(data))
	if payload == "" {
		return "", fmt.Errorf("no task definition given (pass JSON as an argument or on stdin)")
	}
	return payload, nil
}

func cmdListImages(args []string) {
	fs := flag.NewFlagSet("list-images", flag.ExitOnError)
	f := addCommonFlags(fs)
	fs.Parse(args)

	ctx := context.Background()
	_, c, cfg, logger := f.setup(ctx)

	serviceARN, err := resolveServiceARN(ctx, c, f)
	if err != nil {
		fatalf("%v", err)
	}

	orch := cluster.NewOrchestrator(c, cfg, logger)
	images, err := orch.ContainerImages(ctx, serviceARN)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("%-24s  %s\n", "CONTAINER", "IMAGE")
	for _, pair := range images {
		fmt.Printf("%-24s  %s\n", pair[0], pair[1])
	}
}
