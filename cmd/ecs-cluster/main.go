package main

import (
	"fmt"
	"os"
)

const version = "ecs-cluster v2.0.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "list-services":
		cmdListServices(os.Args[2:])
	case "update-image":
		cmdUpdateImage(os.Args[2:])
	case "update-taskdef":
		cmdUpdateTaskDef(os.Args[2:])
	case "list-images":
		cmdListImages(os.Args[2:])
	case "ssh":
		cmdSSH(os.Args[2:])
	case "utilization":
		cmdUtilization(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: ecs-cluster <command>

Commands:
  list-services   List services in a cluster
  update-image    Register a new task definition revision with a new image and update the service
  update-taskdef  Replace a service's task definition from a JSON payload
  list-images     List the container images of a service's task definition
  ssh             Open a shell inside a service's running container
  utilization     Show per-host resource utilization
  version         Print version`)
}
