// Package engine fans parsed signals and reconciliation ticks out to the
// running strategy instances.
package engine

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/signalops/revbot/pkg/metrics"
	"github.com/signalops/revbot/pkg/signal"
	"github.com/signalops/revbot/pkg/types"
)

var log = logrus.WithField("component", "engine")

// reconcileFailureLimit is the number of consecutive failed reconciliation
// passes after which an instance is flipped to the error status.
const reconcileFailureLimit = 3

// InstanceSource reads and flags the persisted strategy instance rows,
// implemented by service.StrategyInstanceService.
type InstanceSource interface {
	QueryRunning(ctx context.Context, market string) ([]types.StrategyInstance, error)
	MarkError(ctx context.Context, id int64) error
}

// Strategy is the behavior of one strategy kind. Implementations are
// stateless across calls; all durable state lives in their stores.
type Strategy interface {
	HandleSignal(ctx context.Context, instance *types.StrategyInstance, sig *signal.Signal) error
	Check(ctx context.Context, instance *types.StrategyInstance) error
	CloseAll(ctx context.Context, instance *types.StrategyInstance, reason types.CloseReason) error
}

// keyedMutex hands out one mutex per instance id so signal handling and the
// reconciliation tick never act on the same instance concurrently, while
// distinct instances still run in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func (k *keyedMutex) get(id int64) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.locks == nil {
		k.locks = map[int64]*sync.Mutex{}
	}

	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	return m
}

type Dispatcher struct {
	instances  InstanceSource
	strategies map[types.StrategyKind]Strategy
	locks      keyedMutex

	failureMu sync.Mutex
	failures  map[int64]int
}

func NewDispatcher(instances InstanceSource, strategies map[types.StrategyKind]Strategy) *Dispatcher {
	return &Dispatcher{
		instances:  instances,
		strategies: strategies,
	}
}

// DispatchText parses raw channel text and dispatches it. Text that matches
// no signal layout is counted and dropped, never an error.
func (d *Dispatcher) DispatchText(ctx context.Context, text string) error {
	sig := signal.Parse(text)
	if sig == nil {
		metrics.SignalsIgnored.Inc()
		return nil
	}

	return d.DispatchSignal(ctx, sig)
}

// DispatchSignal fans a parsed signal out to every running instance it
// applies to. An open directive reaches the instances of its market; a close
// directive is a control handover and unwinds every running instance
// regardless of market.
func (d *Dispatcher) DispatchSignal(ctx context.Context, sig *signal.Signal) error {
	metrics.SignalsReceived.WithLabelValues(string(sig.Action)).Inc()

	if sig.Action == signal.ActionClose {
		return d.handover(ctx)
	}

	instances, err := d.instances.QueryRunning(ctx, sig.Market)
	if err != nil {
		return errors.Wrap(err, "query running instances")
	}

	if len(instances) == 0 {
		log.Debugf("no running instance for %s, signal dropped", sig.Market)
		return nil
	}

	return d.fanOut(instances, func(instance *types.StrategyInstance, strategy Strategy) error {
		return strategy.HandleSignal(ctx, instance, sig)
	})
}

// handover closes every open position of every running instance. The
// upstream author is taking manual control, so the engine flattens its book
// and steps aside.
func (d *Dispatcher) handover(ctx context.Context) error {
	instances, err := d.instances.QueryRunning(ctx, "")
	if err != nil {
		return errors.Wrap(err, "query running instances")
	}

	log.Infof("control handover: unwinding %d running instances", len(instances))

	return d.fanOut(instances, func(instance *types.StrategyInstance, strategy Strategy) error {
		return strategy.CloseAll(ctx, instance, types.CloseReasonControlHandover)
	})
}

// fanOut runs fn for every instance concurrently. Failures are collected,
// never propagated between siblings: one instance's failure must not cancel
// or otherwise prevent processing of the others.
func (d *Dispatcher) fanOut(instances []types.StrategyInstance, fn func(instance *types.StrategyInstance, strategy Strategy) error) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs error

	for i := range instances {
		instance := &instances[i]

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := d.withInstance(instance, func(strategy Strategy) error {
				return fn(instance, strategy)
			}); err != nil {
				log.WithError(err).Errorf("instance %d failed", instance.ID)

				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}

// ReconcileAll runs one reconciliation pass over every running instance.
// Per-instance failures are collected so one broken instance can not starve
// the rest of the tick; an instance that keeps failing is flipped to the
// error status and drops out of the running set.
func (d *Dispatcher) ReconcileAll(ctx context.Context) error {
	instances, err := d.instances.QueryRunning(ctx, "")
	if err != nil {
		return errors.Wrap(err, "query running instances")
	}

	var errs error
	for i := range instances {
		instance := &instances[i]
		if err := d.withInstance(instance, func(strategy Strategy) error {
			return strategy.Check(ctx, instance)
		}); err != nil {
			log.WithError(err).Errorf("reconciliation of instance %d failed", instance.ID)
			errs = multierr.Append(errs, err)
			d.noteFailure(ctx, instance.ID)
		} else {
			d.clearFailures(instance.ID)
		}
	}

	return errs
}

func (d *Dispatcher) noteFailure(ctx context.Context, instanceID int64) {
	d.failureMu.Lock()
	if d.failures == nil {
		d.failures = map[int64]int{}
	}
	d.failures[instanceID]++
	count := d.failures[instanceID]
	d.failureMu.Unlock()

	if count < reconcileFailureLimit {
		return
	}

	log.Errorf("instance %d failed %d reconciliation passes in a row, flipping it to error", instanceID, count)

	if err := d.instances.MarkError(ctx, instanceID); err != nil {
		log.WithError(err).Errorf("marking instance %d errored failed", instanceID)
	}
}

func (d *Dispatcher) clearFailures(instanceID int64) {
	d.failureMu.Lock()
	delete(d.failures, instanceID)
	d.failureMu.Unlock()
}

func (d *Dispatcher) withInstance(instance *types.StrategyInstance, fn func(strategy Strategy) error) error {
	strategy, ok := d.strategies[instance.Kind]
	if !ok {
		return errors.Errorf("instance %d has unknown strategy kind %q", instance.ID, instance.Kind)
	}

	lock := d.locks.get(instance.ID)
	lock.Lock()
	defer lock.Unlock()

	return fn(strategy)
}
