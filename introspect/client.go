// Package introspect queries the ECS agent's introspection API on a
// container instance to map tasks to docker container IDs.
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultPort is the fixed port the ECS agent serves its introspection API
// on.
const DefaultPort = 51678

// ErrContainerNotResolved is returned when the agent's live task list has no
// entry for the requested task.
var ErrContainerNotResolved = errors.New("no matching task on host agent")

// ErrAmbiguousContainer is returned when a task runs more than one container
// and the lookup cannot pick one without guessing.
var ErrAmbiguousContainer = errors.New("task has multiple containers")

// TasksResponse is the agent's live task list.
type TasksResponse struct {
	Tasks []TaskResponse `json:"Tasks"`
}

// TaskResponse describes one task known to the agent.
type TaskResponse struct {
	Arn           string              `json:"Arn"`
	DesiredStatus string              `json:"DesiredStatus,omitempty"`
	KnownStatus   string              `json:"KnownStatus"`
	Family        string              `json:"Family"`
	Version       string              `json:"Version"`
	Containers    []ContainerResponse `json:"Containers"`
}

// ContainerResponse carries the docker runtime identifiers of a container.
type ContainerResponse struct {
	DockerID   string `json:"DockerId"`
	DockerName string `json:"DockerName"`
	Name       string `json:"Name"`
}

// Client talks to the node-local agent on a resolved host.
type Client struct {
	http *http.Client
	port int
}

// NewClient builds an agent client. A zero port means DefaultPort.
func NewClient(port int) *Client {
	if port == 0 {
		port = DefaultPort
	}
	return &Client{
		http: &http.Client{Timeout: 10 * time.Second},
		port: port,
	}
}

// Tasks fetches the live task list from the agent on host.
func (c *Client) Tasks(ctx context.Context, host string) (*TasksResponse, error) {
	url := fmt.Sprintf("http://%s:%d/v1/tasks", host, c.port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query agent on %s: %w", host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query agent on %s: status %d", host, resp.StatusCode)
	}

	var tasks TasksResponse
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("decode agent response from %s: %w", host, err)
	}
	return &tasks, nil
}

// ContainerID resolves the docker container ID for a task running on host.
// A task with more than one container is rejected rather than silently
// mis-resolved.
func (c *Client) ContainerID(ctx context.Context, host, taskARN string) (string, error) {
	tasks, err := c.Tasks(ctx, host)
	if err != nil {
		return "", err
	}
	for _, task := range tasks.Tasks {
		if task.Arn != taskARN {
			continue
		}
		switch len(task.Containers) {
		case 0:
			return "", fmt.Errorf("%w: task %s has no containers", ErrContainerNotResolved, taskARN)
		case 1:
			return task.Containers[0].DockerID, nil
		default:
			return "", fmt.Errorf("%w: task %s has %d", ErrAmbiguousContainer, taskARN, len(task.Containers))
		}
	}
	return "", fmt.Errorf("%w: %s on %s", ErrContainerNotResolved, taskARN, host)
}
