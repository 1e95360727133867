package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalops/revbot/pkg/signal"
	"github.com/signalops/revbot/pkg/types"
)

type fakeInstanceSource struct {
	instances    []types.StrategyInstance
	queries      []string
	markedErrors []int64
}

func (f *fakeInstanceSource) QueryRunning(_ context.Context, market string) ([]types.StrategyInstance, error) {
	f.queries = append(f.queries, market)

	var out []types.StrategyInstance
	for _, instance := range f.instances {
		if !instance.IsRunning() {
			continue
		}
		if market != "" && instance.Market != market {
			continue
		}
		out = append(out, instance)
	}
	return out, nil
}

func (f *fakeInstanceSource) MarkError(_ context.Context, id int64) error {
	f.markedErrors = append(f.markedErrors, id)
	return nil
}

type call struct {
	op         string
	instanceID int64
	reason     types.CloseReason
}

type fakeStrategy struct {
	mu      sync.Mutex
	calls   []call
	ctxErrs []error
	err     error

	// delay simulates slow exchange work inside the handler
	delay time.Duration
}

func (f *fakeStrategy) record(ctx context.Context, c call) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

func (f *fakeStrategy) HandleSignal(ctx context.Context, instance *types.StrategyInstance, _ *signal.Signal) error {
	return f.record(ctx, call{op: "signal", instanceID: instance.ID})
}

func (f *fakeStrategy) Check(ctx context.Context, instance *types.StrategyInstance) error {
	return f.record(ctx, call{op: "check", instanceID: instance.ID})
}

func (f *fakeStrategy) CloseAll(ctx context.Context, instance *types.StrategyInstance, reason types.CloseReason) error {
	return f.record(ctx, call{op: "closeAll", instanceID: instance.ID, reason: reason})
}

func instance(id int64, market string, kind types.StrategyKind, status types.InstanceStatus) types.StrategyInstance {
	return types.StrategyInstance{ID: id, Market: market, Kind: kind, Status: status}
}

func TestDispatchSignalReachesMatchingInstances(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "BTC-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
		instance(3, "ETH-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{}
	turtle := &fakeStrategy{}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.DispatchText(context.Background(), "[开多] 数量:1 市场:BTC-USDT-SWAP")
	require.NoError(t, err)

	require.Len(t, simple.calls, 1)
	assert.Equal(t, int64(1), simple.calls[0].instanceID)
	require.Len(t, turtle.calls, 1)
	assert.Equal(t, int64(2), turtle.calls[0].instanceID)

	require.Len(t, source.queries, 1)
	assert.Equal(t, "BTC-USDT-SWAP", source.queries[0], "open directives filter by market")
}

func TestDispatchTextIgnoresChatter(t *testing.T) {
	source := &fakeInstanceSource{}
	dispatcher := NewDispatcher(source, nil)

	err := dispatcher.DispatchText(context.Background(), "今天行情不错")
	require.NoError(t, err)
	assert.Empty(t, source.queries, "non-signal text must not touch the database")
}

func TestDispatchCloseUnwindsAllMarkets(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "ETH-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
		instance(3, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusPaused),
	}}

	simple := &fakeStrategy{}
	turtle := &fakeStrategy{}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.DispatchText(context.Background(), "[平多] 数量:1 市场:BTC-USDT-SWAP")
	require.NoError(t, err)

	require.Len(t, source.queries, 1)
	assert.Equal(t, "", source.queries[0], "close directives span every market")

	require.Len(t, simple.calls, 1)
	assert.Equal(t, "closeAll", simple.calls[0].op)
	assert.Equal(t, types.CloseReasonControlHandover, simple.calls[0].reason)
	require.Len(t, turtle.calls, 1)
	assert.Equal(t, "closeAll", turtle.calls[0].op)
}

func TestDispatchSignalFailureLeavesSiblingContextIntact(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "BTC-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{err: errors.New("venue unavailable")}
	turtle := &fakeStrategy{delay: 100 * time.Millisecond}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.DispatchText(context.Background(), "[开多] 数量:1 市场:BTC-USDT-SWAP")
	require.Error(t, err)

	require.Len(t, turtle.calls, 1, "the failing instance must not prevent the sibling")
	require.Len(t, turtle.ctxErrs, 1)
	assert.NoError(t, turtle.ctxErrs[0], "the sibling's context must not be canceled")
}

func TestHandoverFailureLeavesSiblingContextIntact(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "ETH-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{err: errors.New("venue unavailable")}
	turtle := &fakeStrategy{delay: 100 * time.Millisecond}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.DispatchText(context.Background(), "[平多] 数量:1 市场:BTC-USDT-SWAP")
	require.Error(t, err)

	require.Len(t, turtle.calls, 1, "handover is best effort across instances")
	assert.Equal(t, "closeAll", turtle.calls[0].op)
	require.Len(t, turtle.ctxErrs, 1)
	assert.NoError(t, turtle.ctxErrs[0], "the sibling's context must not be canceled")
}

func TestReconcileAllChecksEveryRunningInstance(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "ETH-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{}
	turtle := &fakeStrategy{}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.ReconcileAll(context.Background())
	require.NoError(t, err)

	require.Len(t, simple.calls, 1)
	assert.Equal(t, "check", simple.calls[0].op)
	require.Len(t, turtle.calls, 1)
	assert.Equal(t, "check", turtle.calls[0].op)
}

func TestReconcileAllContainsFailures(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
		instance(2, "ETH-USDT-SWAP", types.StrategyKindTurtle, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{err: errors.New("mark price unavailable")}
	turtle := &fakeStrategy{}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
		types.StrategyKindTurtle: turtle,
	})

	err := dispatcher.ReconcileAll(context.Background())
	require.Error(t, err)

	require.Len(t, turtle.calls, 1, "a failing instance must not starve the others")
	assert.Empty(t, source.markedErrors, "a single failure must not flip the instance")
}

func TestReconcileAllMarksErrorAfterRepeatedFailures(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{err: errors.New("mark price unavailable")}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
	})

	ctx := context.Background()

	require.Error(t, dispatcher.ReconcileAll(ctx))
	require.Error(t, dispatcher.ReconcileAll(ctx))
	assert.Empty(t, source.markedErrors)

	require.Error(t, dispatcher.ReconcileAll(ctx))
	assert.Equal(t, []int64{1}, source.markedErrors)
}

func TestReconcileAllSuccessResetsFailureCount(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", types.StrategyKindSimple, types.InstanceStatusRunning),
	}}

	simple := &fakeStrategy{err: errors.New("mark price unavailable")}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{
		types.StrategyKindSimple: simple,
	})

	ctx := context.Background()

	require.Error(t, dispatcher.ReconcileAll(ctx))
	require.Error(t, dispatcher.ReconcileAll(ctx))

	simple.err = nil
	require.NoError(t, dispatcher.ReconcileAll(ctx))

	simple.err = errors.New("mark price unavailable")
	require.Error(t, dispatcher.ReconcileAll(ctx))
	require.Error(t, dispatcher.ReconcileAll(ctx))

	assert.Empty(t, source.markedErrors, "a successful pass resets the failure streak")
}

func TestDispatchUnknownKindFails(t *testing.T) {
	source := &fakeInstanceSource{instances: []types.StrategyInstance{
		instance(1, "BTC-USDT-SWAP", "martingale", types.InstanceStatusRunning),
	}}
	dispatcher := NewDispatcher(source, map[types.StrategyKind]Strategy{})

	err := dispatcher.DispatchText(context.Background(), "[开多] 数量:1 市场:BTC-USDT-SWAP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy kind")
}
