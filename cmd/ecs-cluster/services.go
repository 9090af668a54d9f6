package main

import (
	"context"
	"flag"
	"fmt"
)

func cmdListServices(args []string) {
	fs := flag.NewFlagSet("list-services", flag.ExitOnError)
	f := addCommonFlags(fs)
	fs.Parse(args)

	ctx := context.Background()
	_, c, _, _ := f.setup(ctx)

	arns, err := c.ServiceARNs(ctx)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("-- services for %s --\n", c.Cluster())
	for _, arn := range arns {
		fmt.Printf("    %s\n", arn)
	}
}
