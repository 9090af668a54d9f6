package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// fakeECS is a scripted in-memory control plane. It records every call in
// order so tests can assert sequencing, and lets individual operations be
// failed by name.
type fakeECS struct {
	calls []string

	serviceOrder []string
	services     map[string]*ecstypes.Service

	taskDefs   map[string]*ecstypes.TaskDefinition // by ARN
	familyRevs map[string][]string                 // active ARNs, newest first
	nextRev    map[string]int

	tags map[string][]ecstypes.Tag

	runningTasks map[string][]string // family → running task ARNs
	tasks        map[string]ecstypes.Task

	containerInstanceOrder []string
	containerInstances     map[string]ecstypes.ContainerInstance

	// runningSeq, when non-empty, overrides the service's RunningCount one
	// DescribeServices call at a time.
	runningSeq []int32

	stopErrs map[string]error // per-task StopTask failures
	failOps  map[string]error // per-operation injected failures

	// listTaskDefsFunc, when set, overrides ListTaskDefinitions output.
	listTaskDefsFunc func(family string) []string
}

func newFakeECS() *fakeECS {
	return &fakeECS{
		services:           map[string]*ecstypes.Service{},
		taskDefs:           map[string]*ecstypes.TaskDefinition{},
		familyRevs:         map[string][]string{},
		nextRev:            map[string]int{},
		tags:               map[string][]ecstypes.Tag{},
		runningTasks:       map[string][]string{},
		tasks:              map[string]ecstypes.Task{},
		containerInstances: map[string]ecstypes.ContainerInstance{},
		stopErrs:           map[string]error{},
		failOps:            map[string]error{},
	}
}

func (f *fakeECS) record(op string) { f.calls = append(f.calls, op) }

// callNames strips arguments from the recorded calls.
func (f *fakeECS) callNames() []string {
	names := make([]string, len(f.calls))
	for i, c := range f.calls {
		if idx := strings.Index(c, "("); idx != -1 {
			names[i] = c[:idx]
		} else {
			names[i] = c
		}
	}
	return names
}

func tdARN(family string, rev int) string {
	return fmt.Sprintf("arn:aws:ecs:us-east-1:123456789012:task-definition/%s:%d", family, rev)
}

// addService registers a service running the given task definition.
func (f *fakeECS) addService(name, taskDefARN string, desired int32) string {
	arn := "arn:aws:ecs:us-east-1:123456789012:service/test/" + name
	f.serviceOrder = append(f.serviceOrder, arn)
	f.services[arn] = &ecstypes.Service{
		ServiceArn:     aws.String(arn),
		ServiceName:    aws.String(name),
		Status:         aws.String("ACTIVE"),
		TaskDefinition: aws.String(taskDefARN),
		DesiredCount:   desired,
		RunningCount:   desired,
	}
	return arn
}

// addTaskDef registers an active task definition revision.
func (f *fakeECS) addTaskDef(family string, rev int, containers ...ecstypes.ContainerDefinition) string {
	arn := tdARN(family, rev)
	f.taskDefs[arn] = &ecstypes.TaskDefinition{
		TaskDefinitionArn:    aws.String(arn),
		Family:               aws.String(family),
		Revision:             int32(rev),
		Status:               ecstypes.TaskDefinitionStatusActive,
		ContainerDefinitions: containers,
		Compatibilities:      []ecstypes.Compatibility{ecstypes.CompatibilityEc2},
		RequiresAttributes:   []ecstypes.Attribute{{Name: aws.String("com.amazonaws.ecs.capability.docker-remote-api.1.18")}},
	}
	f.familyRevs[family] = append([]string{arn}, f.familyRevs[family]...)
	if rev >= f.nextRev[family] {
		f.nextRev[family] = rev + 1
	}
	return arn
}

func (f *fakeECS) addRunningTask(family, taskARN, ciARN string) {
	f.runningTasks[family] = append(f.runningTasks[family], taskARN)
	f.tasks[taskARN] = ecstypes.Task{
		TaskArn:              aws.String(taskARN),
		ContainerInstanceArn: aws.String(ciARN),
		LastStatus:           aws.String("RUNNING"),
	}
}

func (f *fakeECS) addContainerInstance(arn, instanceID string, runningTasks int32) {
	f.containerInstanceOrder = append(f.containerInstanceOrder, arn)
	f.containerInstances[arn] = ecstypes.ContainerInstance{
		ContainerInstanceArn: aws.String(arn),
		Ec2InstanceId:        aws.String(instanceID),
		RunningTasksCount:    runningTasks,
	}
}

func (f *fakeECS) fail(op string) error {
	if err, ok := f.failOps[op]; ok {
		return err
	}
	return nil
}

func (f *fakeECS) ListServices(ctx context.Context, params *ecs.ListServicesInput, optFns ...func(*ecs.Options)) (*ecs.ListServicesOutput, error) {
	f.record("ListServices")
	if err := f.fail("ListServices"); err != nil {
		return nil, err
	}
	return &ecs.ListServicesOutput{ServiceArns: append([]string{}, f.serviceOrder...)}, nil
}

func (f *fakeECS) DescribeServices(ctx context.Context, params *ecs.DescribeServicesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	f.record("DescribeServices")
	if err := f.fail("DescribeServices"); err != nil {
		return nil, err
	}
	out := &ecs.DescribeServicesOutput{}
	for _, arn := range params.Services {
		if svc, ok := f.services[arn]; ok {
			cp := *svc
			if len(f.runningSeq) > 0 {
				cp.RunningCount = f.runningSeq[0]
				f.runningSeq = f.runningSeq[1:]
			}
			out.Services = append(out.Services, cp)
		}
	}
	return out, nil
}

func (f *fakeECS) UpdateService(ctx context.Context, params *ecs.UpdateServiceInput, optFns ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	f.record("UpdateService(" + aws.ToString(params.TaskDefinition) + ")")
	if err := f.fail("UpdateService"); err != nil {
		return nil, err
	}
	svc, ok := f.services[aws.ToString(params.Service)]
	if !ok {
		return &ecs.UpdateServiceOutput{}, nil
	}
	svc.TaskDefinition = params.TaskDefinition
	cp := *svc
	return &ecs.UpdateServiceOutput{Service: &cp}, nil
}

func (f *fakeECS) DescribeTaskDefinition(ctx context.Context, params *ecs.DescribeTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error) {
	ref := aws.ToString(params.TaskDefinition)
	f.record("DescribeTaskDefinition(" + ref + ")")
	if err := f.fail("DescribeTaskDefinition"); err != nil {
		return nil, err
	}
	td, ok := f.taskDefs[ref]
	if !ok {
		return nil, fmt.Errorf("task definition %s not found", ref)
	}
	cp := *td
	return &ecs.DescribeTaskDefinitionOutput{TaskDefinition: &cp}, nil
}

func (f *fakeECS) RegisterTaskDefinition(ctx context.Context, params *ecs.RegisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error) {
	family := aws.ToString(params.Family)
	f.record("RegisterTaskDefinition(" + family + ")")
	if err := f.fail("RegisterTaskDefinition"); err != nil {
		return nil, err
	}
	rev := f.nextRev[family]
	if rev == 0 {
		rev = 1
	}
	f.nextRev[family] = rev + 1
	arn := tdARN(family, rev)
	f.taskDefs[arn] = &ecstypes.TaskDefinition{
		TaskDefinitionArn:    aws.String(arn),
		Family:               params.Family,
		Revision:             int32(rev),
		Status:               ecstypes.TaskDefinitionStatusActive,
		ContainerDefinitions: params.ContainerDefinitions,
		TaskRoleArn:          params.TaskRoleArn,
		ExecutionRoleArn:     params.ExecutionRoleArn,
		NetworkMode:          params.NetworkMode,
		Volumes:              params.Volumes,
		Cpu:                  params.Cpu,
		Memory:               params.Memory,
	}
	f.familyRevs[family] = append([]string{arn}, f.familyRevs[family]...)
	cp := *f.taskDefs[arn]
	return &ecs.RegisterTaskDefinitionOutput{TaskDefinition: &cp}, nil
}

func (f *fakeECS) DeregisterTaskDefinition(ctx context.Context, params *ecs.DeregisterTaskDefinitionInput, optFns ...func(*ecs.Options)) (*ecs.DeregisterTaskDefinitionOutput, error) {
	ref := aws.ToString(params.TaskDefinition)
	f.record("DeregisterTaskDefinition(" + ref + ")")
	if err := f.fail("DeregisterTaskDefinition"); err != nil {
		return nil, err
	}
	td, ok := f.taskDefs[ref]
	if !ok {
		return nil, fmt.Errorf("task definition %s not found", ref)
	}
	td.Status = ecstypes.TaskDefinitionStatusInactive
	family := aws.ToString(td.Family)
	revs := f.familyRevs[family]
	for i, arn := range revs {
		if arn == ref {
			f.familyRevs[family] = append(revs[:i:i], revs[i+1:]...)
			break
		}
	}
	cp := *td
	return &ecs.DeregisterTaskDefinitionOutput{TaskDefinition: &cp}, nil
}

func (f *fakeECS) ListTaskDefinitions(ctx context.Context, params *ecs.ListTaskDefinitionsInput, optFns ...func(*ecs.Options)) (*ecs.ListTaskDefinitionsOutput, error) {
	family := aws.ToString(params.FamilyPrefix)
	f.record("ListTaskDefinitions(" + family + ")")
	if err := f.fail("ListTaskDefinitions"); err != nil {
		return nil, err
	}
	if f.listTaskDefsFunc != nil {
		return &ecs.ListTaskDefinitionsOutput{TaskDefinitionArns: f.listTaskDefsFunc(family)}, nil
	}
	return &ecs.ListTaskDefinitionsOutput{
		TaskDefinitionArns: append([]string{}, f.familyRevs[family]...),
	}, nil
}

func (f *fakeECS) ListTasks(ctx context.Context, params *ecs.ListTasksInput, optFns ...func(*ecs.Options)) (*ecs.ListTasksOutput, error) {
	f.record("ListTasks")
	if err := f.fail("ListTasks"); err != nil {
		return nil, err
	}
	if params.Family != nil {
		return &ecs.ListTasksOutput{TaskArns: append([]string{}, f.runningTasks[aws.ToString(params.Family)]...)}, nil
	}
	var all []string
	for _, arns := range f.runningTasks {
		all = append(all, arns...)
	}
	return &ecs.ListTasksOutput{TaskArns: all}, nil
}

func (f *fakeECS) DescribeTasks(ctx context.Context, params *ecs.DescribeTasksInput, optFns ...func(*ecs.Options)) (*ecs.DescribeTasksOutput, error) {
	f.record("DescribeTasks")
	if err := f.fail("DescribeTasks"); err != nil {
		return nil, err
	}
	out := &ecs.DescribeTasksOutput{}
	for _, arn := range params.Tasks {
		if task, ok := f.tasks[arn]; ok {
			out.Tasks = append(out.Tasks, task)
		}
	}
	return out, nil
}

func (f *fakeECS) StopTask(ctx context.Context, params *ecs.StopTaskInput, optFns ...func(*ecs.Options)) (*ecs.StopTaskOutput, error) {
	arn := aws.ToString(params.Task)
	f.record("StopTask(" + arn + ")")
	if err := f.stopErrs[arn]; err != nil {
		return nil, err
	}
	task := f.tasks[arn]
	return &ecs.StopTaskOutput{Task: &task}, nil
}

func (f *fakeECS) RunTask(ctx context.Context, params *ecs.RunTaskInput, optFns ...func(*ecs.Options)) (*ecs.RunTaskOutput, error) {
	ref := aws.ToString(params.TaskDefinition)
	f.record("RunTask(" + ref + ")")
	if err := f.fail("RunTask"); err != nil {
		return nil, err
	}
	taskARN := "arn:aws:ecs:us-east-1:123456789012:task/test/" + shortName(ref)
	return &ecs.RunTaskOutput{Tasks: []ecstypes.Task{{TaskArn: aws.String(taskARN)}}}, nil
}

func (f *fakeECS) ListContainerInstances(ctx context.Context, params *ecs.ListContainerInstancesInput, optFns ...func(*ecs.Options)) (*ecs.ListContainerInstancesOutput, error) {
	f.record("ListContainerInstances")
	if err := f.fail("ListContainerInstances"); err != nil {
		return nil, err
	}
	return &ecs.ListContainerInstancesOutput{
		ContainerInstanceArns: append([]string{}, f.containerInstanceOrder...),
	}, nil
}

func (f *fakeECS) DescribeContainerInstances(ctx context.Context, params *ecs.DescribeContainerInstancesInput, optFns ...func(*ecs.Options)) (*ecs.DescribeContainerInstancesOutput, error) {
	f.record("DescribeContainerInstances")
	if err := f.fail("DescribeContainerInstances"); err != nil {
		return nil, err
	}
	out := &ecs.DescribeContainerInstancesOutput{}
	for _, arn := range params.ContainerInstances {
		if ci, ok := f.containerInstances[arn]; ok {
			out.ContainerInstances = append(out.ContainerInstances, ci)
		}
	}
	return out, nil
}

func (f *fakeECS) TagResource(ctx context.Context, params *ecs.TagResourceInput, optFns ...func(*ecs.Options)) (*ecs.TagResourceOutput, error) {
	arn := aws.ToString(params.ResourceArn)
	f.record("TagResource(" + arn + ")")
	if err := f.fail("TagResource"); err != nil {
		return nil, err
	}
	f.tags[arn] = append(f.tags[arn], params.Tags...)
	return &ecs.TagResourceOutput{}, nil
}

func (f *fakeECS) ListTagsForResource(ctx context.Context, params *ecs.ListTagsForResourceInput, optFns ...func(*ecs.Options)) (*ecs.ListTagsForResourceOutput, error) {
	arn := aws.ToString(params.ResourceArn)
	f.record("ListTagsForResource(" + arn + ")")
	if err := f.fail("ListTagsForResource"); err != nil {
		return nil, err
	}
	return &ecs.ListTagsForResourceOutput{Tags: f.tags[arn]}, nil
}

// fakeEC2 serves instance descriptions from a map.
type fakeEC2 struct {
	instances map[string]ec2types.Instance
}

func newFakeEC2() *fakeEC2 {
	return &fakeEC2{instances: map[string]ec2types.Instance{}}
}

func (f *fakeEC2) addInstance(id, publicIP, privateIP, keyName string) {
	f.instances[id] = ec2types.Instance{
		InstanceId:       aws.String(id),
		PublicIpAddress:  optString(publicIP),
		PrivateIpAddress: optString(privateIP),
		KeyName:          optString(keyName),
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func (f *fakeEC2) DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	var instances []ec2types.Instance
	for _, id := range params.InstanceIds {
		if inst, ok := f.instances[id]; ok {
			instances = append(instances, inst)
		}
	}
	return &ec2.DescribeInstancesOutput{
		Reservations: []ec2types.Reservation{{Instances: instances}},
	}, nil
}
