package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/rs/zerolog"

	"github.com/silvercar/ecs-cluster/poll"
)

// Orchestrator sequences task definition registration, service updates, and
// convergence polling into the two supported redeploy workflows.
//
// Neither workflow attempts rollback: earlier side effects (a cloned but
// unused task definition, for example) are left in place for the operator.
type Orchestrator struct {
	client       *Client
	pollInterval time.Duration
	pollTimeout  time.Duration
	strictClone  bool
	logger       zerolog.Logger
}

// NewOrchestrator builds an orchestrator around an existing cluster client.
func NewOrchestrator(client *Client, cfg Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:       client,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		strictClone:  cfg.StrictClone,
		logger:       logger.With().Str("component", "redeploy").Logger(),
	}
}

// RedeployImage performs a hard-cycle redeploy: a new revision is registered
// with the requested image, the old revision is deregistered, its running
// tasks are force-stopped, and the service is restarted on the new revision.
//
// The old revision is deregistered before any task is stopped so the
// scheduler can never launch a replacement from the stale revision during the
// stop/restart window.
func (o *Orchestrator) RedeployImage(ctx context.Context, serviceARN string, ov CloneOverrides, fromLatest bool) (string, error) {
	oldRef, err := o.client.TaskDefinitionARN(ctx, serviceARN)
	if err != nil {
		return "", err
	}

	if fromLatest {
		family, err := o.client.Family(ctx, oldRef)
		if err != nil {
			return "", err
		}
		oldRef, err = o.client.LatestManagedRevision(ctx, family)
		if err != nil {
			return "", err
		}
	}

	newRef, err := o.client.Clone(ctx, oldRef, ov, o.strictClone)
	if err != nil {
		return "", err
	}
	o.logger.Info().Str("old", oldRef).Str("new", newRef).Msg("registered new revision")

	if err := o.client.TagManaged(ctx, newRef); err != nil {
		return "", err
	}

	if err := o.cycle(ctx, serviceARN, oldRef, newRef); err != nil {
		return newRef, err
	}
	return newRef, nil
}

// RedeployTaskDef registers a caller-supplied task definition payload, pinned
// to the family of the service's current definition, and hard-cycles the
// service onto it.
func (o *Orchestrator) RedeployTaskDef(ctx context.Context, serviceARN string, input *ecs.RegisterTaskDefinitionInput) (string, error) {
	oldRef, err := o.client.TaskDefinitionARN(ctx, serviceARN)
	if err != nil {
		return "", err
	}
	family, err := o.client.Family(ctx, oldRef)
	if err != nil {
		return "", err
	}

	newRef, err := o.client.RegisterInFamily(ctx, input, family)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCloneFailed, err)
	}
	o.logger.Info().Str("old", oldRef).Str("new", newRef).Msg("registered replacement revision")

	if err := o.client.TagManaged(ctx, newRef); err != nil {
		return "", err
	}

	if err := o.cycle(ctx, serviceARN, oldRef, newRef); err != nil {
		return newRef, err
	}
	return newRef, nil
}

// cycle deregisters the old revision, force-stops its tasks, swaps the
// service over, and blocks until the running count converges on the desired
// count observed at update time.
func (o *Orchestrator) cycle(ctx context.Context, serviceARN, oldRef, newRef string) error {
	if err := o.client.Deregister(ctx, oldRef); err != nil {
		return err
	}
	o.logger.Info().Str("taskdef", oldRef).Msg("deregistered old revision")

	stopped, err := o.client.StopTasksInFamily(ctx, oldRef)
	if err != nil {
		return err
	}
	o.logger.Info().Int("stopped", len(stopped)).Msg("stopped running tasks")

	svc, err := o.client.UpdateService(ctx, serviceARN, newRef)
	if err != nil {
		return err
	}
	desired := svc.DesiredCount
	o.logger.Info().Str("taskdef", newRef).Int32("desired", desired).Msg("service updated")

	return o.waitConverged(ctx, serviceARN, desired)
}

// waitConverged blocks until the service's observed running count equals the
// desired count, or the poll deadline elapses.
func (o *Orchestrator) waitConverged(ctx context.Context, serviceARN string, desired int32) error {
	return poll.Until(ctx, func(ctx context.Context) (bool, error) {
		svc, err := o.client.GetService(ctx, serviceARN)
		if err != nil {
			return false, err
		}
		return svc.RunningCount == desired, nil
	}, poll.Options{
		Interval: o.pollInterval,
		Timeout:  o.pollTimeout,
		OnWait: func(elapsed time.Duration) {
			o.logger.Info().Dur("elapsed", elapsed).Msg("waiting for service to converge")
		},
	})
}

// UpdateImage performs a soft update: a new revision is registered and the
// service is pointed at it, leaving rollout to the platform's own deployment
// controller. No tasks are stopped and no convergence polling happens.
//
// The clone source is the newest active revision in the service's family that
// carries the managed tag (falling back to the newest active revision). The
// source is deregistered only if it is not itself the latest revision in the
// family, so a revision that is still the most current is never retired out
// from under an in-flight rollout.
func (o *Orchestrator) UpdateImage(ctx context.Context, serviceARN string, ov CloneOverrides) (string, error) {
	currentRef, err := o.client.TaskDefinitionARN(ctx, serviceARN)
	if err != nil {
		return "", err
	}
	family, err := o.client.Family(ctx, currentRef)
	if err != nil {
		return "", err
	}

	sourceRef, err := o.client.LatestManagedRevision(ctx, family)
	if err != nil {
		return "", err
	}

	newRef, err := o.client.Clone(ctx, sourceRef, ov, o.strictClone)
	if err != nil {
		return "", err
	}
	o.logger.Info().Str("source", sourceRef).Str("new", newRef).Msg("registered new revision")

	if err := o.client.TagManaged(ctx, newRef); err != nil {
		return "", err
	}

	latest, err := o.client.LatestRevision(ctx, family)
	if err != nil {
		return "", err
	}
	if sourceRef != latest {
		if err := o.client.Deregister(ctx, sourceRef); err != nil {
			return "", err
		}
		o.logger.Info().Str("taskdef", sourceRef).Msg("deregistered source revision")
	} else {
		o.logger.Info().Str("taskdef", sourceRef).Msg("source is the latest revision, leaving it registered")
	}

	if _, err := o.client.UpdateService(ctx, serviceARN, newRef); err != nil {
		return "", err
	}
	o.logger.Info().Str("taskdef", newRef).Msg("service updated")
	return newRef, nil
}

// ContainerImages returns the name→image pairs of the service's current task
// definition, in definition order.
func (o *Orchestrator) ContainerImages(ctx context.Context, serviceARN string) ([][2]string, error) {
	ref, err := o.client.TaskDefinitionARN(ctx, serviceARN)
	if err != nil {
		return nil, err
	}
	td, err := o.client.GetTaskDefinition(ctx, ref)
	if err != nil {
		return nil, err
	}
	images := make([][2]string, 0, len(td.ContainerDefinitions))
	for _, cd := range td.ContainerDefinitions {
		images = append(images, [2]string{aws.ToString(cd.Name), aws.ToString(cd.Image)})
	}
	return images, nil
}
