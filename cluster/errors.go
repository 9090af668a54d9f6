package cluster

import "errors"

var (
	// ErrNoService is returned when a cluster has no service matching the
	// requested name or ARN.
	ErrNoService = errors.New("no matching service")

	// ErrNoTaskDefinition is returned when a service has no task definition
	// to clone from.
	ErrNoTaskDefinition = errors.New("service has no task definition")

	// ErrCloneFailed is returned when the source task definition could not be
	// fetched or the mutated copy could not be registered.
	ErrCloneFailed = errors.New("task definition clone failed")

	// ErrContainerNotFound is returned by strict clones when the named
	// container does not exist in the source task definition.
	ErrContainerNotFound = errors.New("container not found in task definition")

	// ErrUpdateRejected is returned when the control plane does not report
	// the service as ACTIVE after an update.
	ErrUpdateRejected = errors.New("service update rejected")

	// ErrNoRunningInstances is returned when no container instance in the
	// target set has a positive running-task count.
	ErrNoRunningInstances = errors.New("no container instances with running tasks")

	// ErrNoRunningTasks is returned when a service has no running tasks to
	// resolve a host from.
	ErrNoRunningTasks = errors.New("no running tasks")
)
