package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
)

// Client wraps the ECS control plane for a single cluster. It is constructed
// once with explicit configuration and shared by every component.
type Client struct {
	ecs     ECSAPI
	cluster string
	logger  zerolog.Logger
}

// NewClient creates a control-plane client scoped to one cluster.
func NewClient(api ECSAPI, cluster string, logger zerolog.Logger) *Client {
	return &Client{
		ecs:     api,
		cluster: cluster,
		logger:  logger.With().Str("cluster", cluster).Logger(),
	}
}

// Cluster returns the cluster this client is scoped to.
func (c *Client) Cluster() string {
	return c.cluster
}

// ServiceARNs returns the ARNs of all services in the cluster.
func (c *Client) ServiceARNs(ctx context.Context) ([]string, error) {
	var arns []string
	input := &ecs.ListServicesInput{Cluster: aws.String(c.cluster)}
	for {
		out, err := c.ecs.ListServices(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list services for %s: %w", c.cluster, err)
		}
		arns = append(arns, out.ServiceArns...)
		input.NextToken = out.NextToken
		if input.NextToken == nil {
			break
		}
	}
	return arns, nil
}

// FindServiceARN resolves a service short name to its ARN. The listing order
// is preserved and the first match wins.
func (c *Client) FindServiceARN(ctx context.Context, name string) (string, error) {
	arns, err := c.ServiceARNs(ctx)
	if err != nil {
		return "", err
	}
	for _, arn := range arns {
		if shortName(arn) == name {
			return arn, nil
		}
	}
	return "", fmt.Errorf("%w: %s in cluster %s", ErrNoService, name, c.cluster)
}

// DefaultServiceARN returns the first service in the cluster's listing order.
func (c *Client) DefaultServiceARN(ctx context.Context) (string, error) {
	arns, err := c.ServiceARNs(ctx)
	if err != nil {
		return "", err
	}
	if len(arns) == 0 {
		return "", fmt.Errorf("%w: cluster %s has no services", ErrNoService, c.cluster)
	}
	return arns[0], nil
}

// GetService describes a single service by ARN. A well-formed response that
// does not contain the service counts as not found.
func (c *Client) GetService(ctx context.Context, serviceARN string) (*ecstypes.Service, error) {
	out, err := c.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(c.cluster),
		Services: []string{serviceARN},
	})
	if err != nil {
		return nil, fmt.Errorf("describe service %s: %w", serviceARN, err)
	}
	for i := range out.Services {
		if aws.ToString(out.Services[i].ServiceArn) == serviceARN {
			return &out.Services[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoService, serviceARN)
}

// TaskDefinitionARN returns the ARN of the task definition the service is
// currently running.
func (c *Client) TaskDefinitionARN(ctx context.Context, serviceARN string) (string, error) {
	svc, err := c.GetService(ctx, serviceARN)
	if err != nil {
		return "", err
	}
	arn := aws.ToString(svc.TaskDefinition)
	if arn == "" {
		return "", fmt.Errorf("%w: %s", ErrNoTaskDefinition, serviceARN)
	}
	return arn, nil
}

// GetTaskDefinition fetches the full definition for a task definition ARN or
// family:revision reference.
func (c *Client) GetTaskDefinition(ctx context.Context, taskDefRef string) (*ecstypes.TaskDefinition, error) {
	out, err := c.ecs.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(taskDefRef),
	})
	if err != nil {
		return nil, fmt.Errorf("describe task definition %s: %w", taskDefRef, err)
	}
	if out.TaskDefinition == nil {
		return nil, fmt.Errorf("describe task definition %s: empty response", taskDefRef)
	}
	return out.TaskDefinition, nil
}

// Family returns the family name of a task definition.
func (c *Client) Family(ctx context.Context, taskDefRef string) (string, error) {
	td, err := c.GetTaskDefinition(ctx, taskDefRef)
	if err != nil {
		return "", err
	}
	return aws.ToString(td.Family), nil
}

// FamilyRevisions lists the active revisions of a family, newest first.
func (c *Client) FamilyRevisions(ctx context.Context, family string) ([]string, error) {
	var arns []string
	input := &ecs.ListTaskDefinitionsInput{
		FamilyPrefix: aws.String(family),
		Status:       ecstypes.TaskDefinitionStatusActive,
		Sort:         ecstypes.SortOrderDesc,
	}
	for {
		out, err := c.ecs.ListTaskDefinitions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list task definitions for %s: %w", family, err)
		}
		arns = append(arns, out.TaskDefinitionArns...)
		input.NextToken = out.NextToken
		if input.NextToken == nil {
			break
		}
	}
	return arns, nil
}

// LatestRevision returns the newest active revision in a family.
func (c *Client) LatestRevision(ctx context.Context, family string) (string, error) {
	arns, err := c.FamilyRevisions(ctx, family)
	if err != nil {
		return "", err
	}
	if len(arns) == 0 {
		return "", fmt.Errorf("%w: family %s has no active revisions", ErrNoTaskDefinition, family)
	}
	return arns[0], nil
}

// LatestManagedRevision returns the newest active revision in a family that
// carries the managed tag. Revisions are scanned newest first and the first
// tagged one wins; if none is tagged the newest active revision is returned.
func (c *Client) LatestManagedRevision(ctx context.Context, family string) (string, error) {
	arns, err := c.FamilyRevisions(ctx, family)
	if err != nil {
		return "", err
	}
	if len(arns) == 0 {
		return "", fmt.Errorf("%w: family %s has no active revisions", ErrNoTaskDefinition, family)
	}
	for _, arn := range arns {
		managed, err := c.isManaged(ctx, arn)
		if err != nil {
			return "", err
		}
		if managed {
			return arn, nil
		}
	}
	return arns[0], nil
}

func (c *Client) isManaged(ctx context.Context, taskDefARN string) (bool, error) {
	out, err := c.ecs.ListTagsForResource(ctx, &ecs.ListTagsForResourceInput{
		ResourceArn: aws.String(taskDefARN),
	})
	if err != nil {
		return false, fmt.Errorf("list tags for %s: %w", taskDefARN, err)
	}
	for _, tag := range out.Tags {
		if aws.ToString(tag.Key) == ManagedTagKey && aws.ToString(tag.Value) == ManagedTagValue {
			return true, nil
		}
	}
	return false, nil
}

// TagManaged marks a task definition as managed by this tool.
func (c *Client) TagManaged(ctx context.Context, taskDefARN string) error {
	_, err := c.ecs.TagResource(ctx, &ecs.TagResourceInput{
		ResourceArn: aws.String(taskDefARN),
		Tags: []ecstypes.Tag{
			{Key: aws.String(ManagedTagKey), Value: aws.String(ManagedTagValue)},
		},
	})
	if err != nil {
		return fmt.Errorf("tag %s: %w", taskDefARN, err)
	}
	return nil
}

// Deregister marks a task definition inactive. It fails if the control plane
// does not report the definition as INACTIVE afterward.
func (c *Client) Deregister(ctx context.Context, taskDefARN string) error {
	out, err := c.ecs.DeregisterTaskDefinition(ctx, &ecs.DeregisterTaskDefinitionInput{
		TaskDefinition: aws.String(taskDefARN),
	})
	if err != nil {
		return fmt.Errorf("deregister %s: %w", taskDefARN, err)
	}
	if out.TaskDefinition == nil || out.TaskDefinition.Status != ecstypes.TaskDefinitionStatusInactive {
		return fmt.Errorf("deregister %s: definition not reported inactive", taskDefARN)
	}
	return nil
}

// UpdateService points a service at a new task definition. The control plane
// must report the service as ACTIVE afterward.
func (c *Client) UpdateService(ctx context.Context, serviceARN, taskDefARN string) (*ecstypes.Service, error) {
	out, err := c.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:        aws.String(c.cluster),
		Service:        aws.String(serviceARN),
		TaskDefinition: aws.String(taskDefARN),
	})
	if err != nil {
		return nil, fmt.Errorf("update service %s: %w", serviceARN, err)
	}
	if out.Service == nil || aws.ToString(out.Service.Status) != "ACTIVE" {
		return nil, fmt.Errorf("%w: %s did not report ACTIVE", ErrUpdateRejected, serviceARN)
	}
	return out.Service, nil
}

// StopTasksInFamily force-stops every running task whose definition shares a
// family with taskDefRef. A stop failure for an individual task is logged and
// the remainder are still stopped.
func (c *Client) StopTasksInFamily(ctx context.Context, taskDefRef string) ([]string, error) {
	family, err := c.Family(ctx, taskDefRef)
	if err != nil {
		return nil, err
	}

	out, err := c.ecs.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:       aws.String(c.cluster),
		Family:        aws.String(family),
		DesiredStatus: ecstypes.DesiredStatusRunning,
	})
	if err != nil {
		return nil, fmt.Errorf("list running tasks for family %s: %w", family, err)
	}

	var stopped []string
	for _, taskARN := range out.TaskArns {
		_, err := c.ecs.StopTask(ctx, &ecs.StopTaskInput{
			Cluster: aws.String(c.cluster),
			Task:    aws.String(taskARN),
			Reason:  aws.String("Stopped by ecs-cluster redeploy"),
		})
		if err != nil {
			c.logger.Warn().Err(err).Str("task", taskARN).Msg("could not stop task")
			continue
		}
		stopped = append(stopped, taskARN)
	}
	return stopped, nil
}

// StartTask launches a single task from a task definition.
func (c *Client) StartTask(ctx context.Context, taskDefRef string) (*ecstypes.Task, error) {
	out, err := c.ecs.RunTask(ctx, &ecs.RunTaskInput{
		Cluster:        aws.String(c.cluster),
		TaskDefinition: aws.String(taskDefRef),
	})
	if err != nil {
		return nil, fmt.Errorf("run task %s: %w", taskDefRef, err)
	}
	if len(out.Tasks) == 0 {
		msg := "no tasks launched"
		if len(out.Failures) > 0 {
			msg = aws.ToString(out.Failures[0].Reason)
		}
		return nil, fmt.Errorf("run task %s: %s", taskDefRef, msg)
	}
	return &out.Tasks[0], nil
}

// shortName returns the trailing path segment of an ARN.
func shortName(arn string) string {
	idx := strings.LastIndex(arn, "/")
	if idx == -1 {
		return arn
	}
	return arn[idx+1:]
}
