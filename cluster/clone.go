package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// CloneOverrides are the container-level edits applied while cloning a task
// definition. Image is required; the other fields are applied only when set.
// Entrypoint and Command are whitespace-tokenized into argument vectors.
type CloneOverrides struct {
	ContainerName string
	Image         string
	Hostname      string
	Entrypoint    string
	Command       string
}

// Clone derives a new revision from an existing task definition. The source
// is fetched in full, the named container is rewritten per the overrides, and
// the result is registered as the next revision of the same family.
//
// Server-assigned identity fields (revision, status, the definition's own
// ARN, compatibilities, derived attribute requirements) are never sent back:
// the registration payload is rebuilt from scratch, so only registerable
// fields survive.
//
// When strict is false and no container matches the requested name, the
// definition is cloned unchanged. When strict is true the clone fails with
// ErrContainerNotFound instead.
func (c *Client) Clone(ctx context.Context, sourceRef string, ov CloneOverrides, strict bool) (string, error) {
	src, err := c.GetTaskDefinition(ctx, sourceRef)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}

	containers := make([]ecstypes.ContainerDefinition, len(src.ContainerDefinitions))
	copy(containers, src.ContainerDefinitions)

	matched := false
	for i := range containers {
		if aws.ToString(containers[i].Name) != ov.ContainerName {
			continue
		}
		matched = true
		containers[i].Image = aws.String(ov.Image)
		if ov.Hostname != "" {
			containers[i].Hostname = aws.String(ov.Hostname)
		}
		if ov.Entrypoint != "" {
			containers[i].EntryPoint = strings.Fields(ov.Entrypoint)
		}
		if ov.Command != "" {
			containers[i].Command = strings.Fields(ov.Command)
		}
	}
	if !matched && strict {
		return "", fmt.Errorf("%w: %s in %s", ErrContainerNotFound, ov.ContainerName, sourceRef)
	}
	if !matched {
		c.logger.Warn().
			Str("container", ov.ContainerName).
			Str("source", sourceRef).
			Msg("no container matched, cloning without reimaging")
	}

	arn, err := c.register(ctx, registerInput(src, containers))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	return arn, nil
}

// RegisterInFamily registers a caller-supplied payload with its family forced
// to the given value, producing the family's next revision.
func (c *Client) RegisterInFamily(ctx context.Context, input *ecs.RegisterTaskDefinitionInput, family string) (string, error) {
	input.Family = aws.String(family)
	return c.register(ctx, input)
}

func (c *Client) register(ctx context.Context, input *ecs.RegisterTaskDefinitionInput) (string, error) {
	out, err := c.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return "", fmt.Errorf("register task definition: %w", err)
	}
	if out.TaskDefinition == nil {
		return "", fmt.Errorf("register task definition: empty response")
	}
	return aws.ToString(out.TaskDefinition.TaskDefinitionArn), nil
}

// registerInput copies the registerable fields of a described task definition
// into a registration payload. Revision-identity fields are dropped here by
// construction.
func registerInput(src *ecstypes.TaskDefinition, containers []ecstypes.ContainerDefinition) *ecs.RegisterTaskDefinitionInput {
	return &ecs.RegisterTaskDefinitionInput{
		Family:                  src.Family,
		ContainerDefinitions:    containers,
		TaskRoleArn:             src.TaskRoleArn,
		ExecutionRoleArn:        src.ExecutionRoleArn,
		NetworkMode:             src.NetworkMode,
		Volumes:                 src.Volumes,
		PlacementConstraints:    src.PlacementConstraints,
		RequiresCompatibilities: src.RequiresCompatibilities,
		Cpu:                     src.Cpu,
		Memory:                  src.Memory,
		PidMode:                 src.PidMode,
		IpcMode:                 src.IpcMode,
		ProxyConfiguration:      src.ProxyConfiguration,
		InferenceAccelerators:   src.InferenceAccelerators,
		EphemeralStorage:        src.EphemeralStorage,
		RuntimePlatform:         src.RuntimePlatform,
	}
}
