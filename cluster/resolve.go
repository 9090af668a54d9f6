package cluster

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/rs/zerolog"
)

// RemoteTarget is the result of resolving a service down to a reachable host.
type RemoteTarget struct {
	TaskARN              string
	ContainerInstanceARN string
	InstanceID           string
	Address              string // public IP when assigned, else private
	KeyName              string // EC2 key pair name for SSH access
}

// Host describes one container instance in the cluster.
type Host struct {
	ContainerInstanceARN string
	InstanceID           string
	Address              string
	KeyName              string
	RunningTasks         int32
}

// HostResolver walks service → task → container instance → EC2 instance to
// find the host a container runs on.
type HostResolver struct {
	client *Client
	ec2    EC2API
	logger zerolog.Logger
}

// NewHostResolver builds a resolver over an existing cluster client and an
// EC2 client.
func NewHostResolver(client *Client, ec2api EC2API, logger zerolog.Logger) *HostResolver {
	return &HostResolver{
		client: client,
		ec2:    ec2api,
		logger: logger.With().Str("component", "resolve").Logger(),
	}
}

// ResolveRemote resolves the host running a service's task. When taskARN is
// empty the first running task bound to the service is used.
func (r *HostResolver) ResolveRemote(ctx context.Context, serviceARN, taskARN string) (*RemoteTarget, error) {
	if taskARN == "" {
		var err error
		taskARN, err = r.firstRunningTask(ctx, serviceARN)
		if err != nil {
			return nil, err
		}
	}

	task, err := r.describeTask(ctx, taskARN)
	if err != nil {
		return nil, err
	}

	ciARN := aws.ToString(task.ContainerInstanceArn)
	if ciARN == "" {
		return nil, fmt.Errorf("task %s has no container instance", taskARN)
	}

	ci, err := r.describeContainerInstance(ctx, ciARN)
	if err != nil {
		return nil, err
	}

	instanceID := aws.ToString(ci.Ec2InstanceId)
	if instanceID == "" {
		return nil, fmt.Errorf("container instance %s has no EC2 instance", ciARN)
	}

	addr, keyName, err := r.instanceAddress(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	return &RemoteTarget{
		TaskARN:              taskARN,
		ContainerInstanceARN: ciARN,
		InstanceID:           instanceID,
		Address:              addr,
		KeyName:              keyName,
	}, nil
}

// DefaultContainerInstance scans the cluster's container instances in
// listing order and returns the first one with a positive running-task
// count.
func (r *HostResolver) DefaultContainerInstance(ctx context.Context) (*Host, error) {
	hosts, err := r.ClusterHosts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range hosts {
		if hosts[i].RunningTasks > 0 {
			return &hosts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: cluster %s", ErrNoRunningInstances, r.client.Cluster())
}

// ClusterHosts enumerates every container instance in the cluster along with
// its EC2 address and key pair.
func (r *HostResolver) ClusterHosts(ctx context.Context) ([]Host, error) {
	var ciARNs []string
	input := &ecs.ListContainerInstancesInput{Cluster: aws.String(r.client.Cluster())}
	for {
		out, err := r.client.ecs.ListContainerInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list container instances: %w", err)
		}
		ciARNs = append(ciARNs, out.ContainerInstanceArns...)
		input.NextToken = out.NextToken
		if input.NextToken == nil {
			break
		}
	}
	if len(ciARNs) == 0 {
		return nil, nil
	}

	descOut, err := r.client.ecs.DescribeContainerInstances(ctx, &ecs.DescribeContainerInstancesInput{
		Cluster:            aws.String(r.client.Cluster()),
		ContainerInstances: ciARNs,
	})
	if err != nil {
		return nil, fmt.Errorf("describe container instances: %w", err)
	}

	hosts := make([]Host, 0, len(descOut.ContainerInstances))
	for _, ci := range descOut.ContainerInstances {
		h := Host{
			ContainerInstanceARN: aws.ToString(ci.ContainerInstanceArn),
			InstanceID:           aws.ToString(ci.Ec2InstanceId),
			RunningTasks:         ci.RunningTasksCount,
		}
		if h.InstanceID != "" {
			addr, keyName, err := r.instanceAddress(ctx, h.InstanceID)
			if err != nil {
				r.logger.Warn().Err(err).Str("instance", h.InstanceID).Msg("could not resolve instance address")
			} else {
				h.Address = addr
				h.KeyName = keyName
			}
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}

// firstRunningTask returns the first running task bound to a service.
func (r *HostResolver) firstRunningTask(ctx context.Context, serviceARN string) (string, error) {
	out, err := r.client.ecs.ListTasks(ctx, &ecs.ListTasksInput{
		Cluster:       aws.String(r.client.Cluster()),
		ServiceName:   aws.String(shortName(serviceARN)),
		DesiredStatus: ecstypes.DesiredStatusRunning,
	})
	if err != nil {
		return "", fmt.Errorf("list tasks for %s: %w", serviceARN, err)
	}
	if len(out.TaskArns) == 0 {
		return "", fmt.Errorf("%w: service %s", ErrNoRunningTasks, serviceARN)
	}
	return out.TaskArns[0], nil
}

func (r *HostResolver) describeTask(ctx context.Context, taskARN string) (*ecstypes.Task, error) {
	out, err := r.client.ecs.DescribeTasks(ctx, &ecs.DescribeTasksInput{
		Cluster: aws.String(r.client.Cluster()),
		Tasks:   []string{taskARN},
	})
	if err != nil {
		return nil, fmt.Errorf("describe task %s: %w", taskARN, err)
	}
	for i := range out.Tasks {
		if aws.ToString(out.Tasks[i].TaskArn) == taskARN {
			return &out.Tasks[i], nil
		}
	}
	return nil, fmt.Errorf("%w: task %s", ErrNoRunningTasks, taskARN)
}

func (r *HostResolver) describeContainerInstance(ctx context.Context, ciARN string) (*ecstypes.ContainerInstance, error) {
	out, err := r.client.ecs.DescribeContainerInstances(ctx, &ecs.DescribeContainerInstancesInput{
		Cluster:            aws.String(r.client.Cluster()),
		ContainerInstances: []string{ciARN},
	})
	if err != nil {
		return nil, fmt.Errorf("describe container instance %s: %w", ciARN, err)
	}
	if len(out.ContainerInstances) == 0 {
		return nil, fmt.Errorf("container instance %s not found", ciARN)
	}
	return &out.ContainerInstances[0], nil
}

// instanceAddress returns the reachable address and key pair name of an EC2
// instance, preferring the public IP.
func (r *HostResolver) instanceAddress(ctx context.Context, instanceID string) (string, string, error) {
	out, err := r.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", "", fmt.Errorf("describe instance %s: %w", instanceID, err)
	}
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if aws.ToString(inst.InstanceId) != instanceID {
				continue
			}
			addr := aws.ToString(inst.PublicIpAddress)
			if addr == "" {
				addr = aws.ToString(inst.PrivateIpAddress)
			}
			if addr == "" {
				return "", "", fmt.Errorf("instance %s has no IP address", instanceID)
			}
			return addr, aws.ToString(inst.KeyName), nil
		}
	}
	return "", "", fmt.Errorf("instance %s not found", instanceID)
}
