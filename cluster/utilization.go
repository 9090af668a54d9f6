package cluster

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// HostUtilization reports registered versus remaining capacity for one
// container instance.
type HostUtilization struct {
	InstanceID      string
	RunningTasks    int32
	RegisteredCPU   int32
	RemainingCPU    int32
	RegisteredMemMB int32
	RemainingMemMB  int32
}

// Utilization reports per-host resource usage across the cluster.
func (r *HostResolver) Utilization(ctx context.Context) ([]HostUtilization, error) {
	var ciARNs []string
	input := &ecs.ListContainerInstancesInput{Cluster: aws.String(r.client.Cluster())}
	for {
		out, err := r.client.ecs.ListContainerInstances(ctx, input)
		if err != nil {
			return nil, err
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

	out, err := r.client.ecs.DescribeContainerInstances(ctx, &ecs.DescribeContainerInstancesInput{
		Cluster:            aws.String(r.client.Cluster()),
		ContainerInstances: ciARNs,
	})
	if err != nil {
		return nil, err
	}

	report := make([]HostUtilization, 0, len(out.ContainerInstances))
	for _, ci := range out.ContainerInstances {
		u := HostUtilization{
			InstanceID:   aws.ToString(ci.Ec2InstanceId),
			RunningTasks: ci.RunningTasksCount,
		}
		u.RegisteredCPU, u.RegisteredMemMB = cpuAndMemory(ci.RegisteredResources)
		u.RemainingCPU, u.RemainingMemMB = cpuAndMemory(ci.RemainingResources)
		report = append(report, u)
	}
	return report, nil
}

func cpuAndMemory(resources []ecstypes.Resource) (cpu, mem int32) {
	for _, res := range resources {
		switch aws.ToString(res.Name) {
		case "CPU":
			cpu = res.IntegerValue
		case "MEMORY":
			mem = res.IntegerValue
		}
	}
	return cpu, mem
}
