package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/silvercar/ecs-cluster/cluster"
)

func cmdUtilization(args []string) {
	fs := flag.NewFlagSet("utilization", flag.ExitOnError)
	f := addCommonFlags(fs)
	fs.Parse(args)

	ctx := context.Background()
	clients, c, _, logger := f.setup(ctx)

	resolver := cluster.NewHostResolver(c, clients.EC2, logger)
	report, err := resolver.Utilization(ctx)
	if err != nil {
		fatalf("%v", err)
	}

	if len(report) == 0 {
		fmt.Println("No container instances")
		return
	}

	fmt.Printf("%-20s  %5s  %14s  %14s\n", "INSTANCE", "TASKS", "CPU (REM/REG)", "MEM (REM/REG)")
	for _, u := range report {
		fmt.Printf("%-20s  %5d  %6d/%-7d  %6d/%-7d\n",
			u.InstanceID,
			u.RunningTasks,
			u.RemainingCPU, u.RegisteredCPU,
			u.RemainingMemMB, u.RegisteredMemMB)
	}
}
