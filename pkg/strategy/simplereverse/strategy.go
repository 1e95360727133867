// Package simplereverse opens one inverted position per qualifying signal and
// closes it on profit target, stop loss, or timeout.
package simplereverse

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/signalops/revbot/pkg/metrics"
	"github.com/signalops/revbot/pkg/signal"
	"github.com/signalops/revbot/pkg/types"
)

const ID = "simple"

var log = logrus.WithField("strategy", ID)

// PositionStore is the persistence surface the strategy needs, implemented by
// service.SimplePositionService.
type PositionStore interface {
	CountActive(ctx context.Context, instanceID int64) (int, error)
	Insert(ctx context.Context, position *types.SimplePosition) error
	QueryActive(ctx context.Context, instanceID int64) ([]types.SimplePosition, error)
	Close(ctx context.Context, gid int64, pnl decimal.Decimal, reason types.CloseReason) error
}

type Strategy struct {
	Exchange types.Exchange
	Store    PositionStore
	Notifier types.Notifier
}

func New(exchange types.Exchange, store PositionStore) *Strategy {
	return &Strategy{
		Exchange: exchange,
		Store:    store,
	}
}

// HandleSignal opens one reversed position for an open directive. Close
// directives are handled by the dispatcher through CloseAll.
func (s *Strategy) HandleSignal(ctx context.Context, instance *types.StrategyInstance, sig *signal.Signal) error {
	if sig.Action != signal.ActionOpen {
		return nil
	}

	cfg, err := instance.SimpleConfig()
	if err != nil {
		return err
	}

	activeCount, err := s.Store.CountActive(ctx, instance.ID)
	if err != nil {
		return errors.Wrap(err, "count active positions")
	}

	if activeCount >= cfg.MaxConcurrentPositions {
		// expected under signal bursts, not a failure
		log.Debugf("instance %d: concurrency cap reached (%d/%d), entry skipped",
			instance.ID, activeCount, cfg.MaxConcurrentPositions)
		return nil
	}

	size := cfg.BasePositionSize.Mul(decimal.NewFromInt(int64(sig.Quantity)))
	if size.GreaterThan(cfg.MaxPositionSize) {
		size = cfg.MaxPositionSize
	}
	size = size.Round(1)
	if size.Sign() <= 0 {
		return nil
	}

	side := sig.Side.Reverse()

	receipt, err := s.Exchange.SubmitMarketOrder(ctx, types.SubmitOrder{
		Market:   sig.Market,
		Side:     side.EntryOrderSide(),
		PosSide:  side,
		Quantity: size,
	})
	if err != nil {
		// no state is persisted for a failed entry
		return errors.Wrapf(err, "instance %d: entry order failed", instance.ID)
	}

	metrics.OrdersSubmitted.WithLabelValues(string(side.EntryOrderSide())).Inc()

	entryPrice, err := s.Exchange.QueryAverageFillPrice(ctx, sig.Market, receipt.OrderID)
	if err != nil {
		return errors.Wrapf(err, "instance %d: order %s has no fill price, entry abandoned",
			instance.ID, receipt.OrderID)
	}

	position := &types.SimplePosition{
		StrategyInstanceID: instance.ID,
		Market:             sig.Market,
		Side:               side,
		Size:               size,
		EntryPrice:         entryPrice,
		Status:             types.PositionStatusActive,
		ExchangeOrderID:    receipt.OrderID,
		OpenedAt:           time.Now().UTC(),
	}

	if err := s.Store.Insert(ctx, position); err != nil {
		return errors.Wrapf(err, "instance %d: persisting position failed", instance.ID)
	}

	log.Infof("instance %d: reversed %s signal, opened %s %s %s @ %s",
		instance.ID, sig.Side, side, size, sig.Market, entryPrice)

	if s.Notifier != nil {
		s.Notifier.Notify("simple reverse entry: %s %s %s @ %s", side, size, sig.Market, entryPrice)
	}

	return nil
}

// Check runs one reconciliation pass over the instance's active positions.
// A failure on one position is logged and does not stop the others.
func (s *Strategy) Check(ctx context.Context, instance *types.StrategyInstance) error {
	cfg, err := instance.SimpleConfig()
	if err != nil {
		return err
	}

	positions, err := s.Store.QueryActive(ctx, instance.ID)
	if err != nil {
		return errors.Wrap(err, "query active positions")
	}

	var errs error
	marks := map[string]decimal.Decimal{}

	for i := range positions {
		position := &positions[i]

		mark, ok := marks[position.Market]
		if !ok {
			mark, err = s.Exchange.QueryMarkPrice(ctx, position.Market)
			if err != nil {
				errs = multierr.Append(errs, errors.Wrapf(err, "mark price of %s", position.Market))
				continue
			}
			marks[position.Market] = mark
		}

		reason, shouldClose := s.exitReason(cfg, position, mark)
		if !shouldClose {
			continue
		}

		if err := s.closePosition(ctx, position, mark, reason); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// exitReason evaluates the exit conditions in priority order: profit target,
// stop loss, timeout.
func (s *Strategy) exitReason(cfg *types.SimpleConfig, position *types.SimplePosition, mark decimal.Decimal) (types.CloseReason, bool) {
	ratio := position.PnLRatio(mark)

	if ratio.GreaterThanOrEqual(decimal.NewFromFloat(cfg.ProfitTarget)) {
		return types.CloseReasonProfitTarget, true
	}

	if ratio.LessThanOrEqual(decimal.NewFromFloat(cfg.StopLoss)) {
		return types.CloseReasonStopLoss, true
	}

	if time.Since(position.OpenedAt) >= cfg.PositionTimeout() {
		return types.CloseReasonTimeout, true
	}

	return "", false
}

// CloseAll force-closes every active position, used by the control handover
// path. Best effort: one failed close does not abort the rest.
func (s *Strategy) CloseAll(ctx context.Context, instance *types.StrategyInstance, reason types.CloseReason) error {
	positions, err := s.Store.QueryActive(ctx, instance.ID)
	if err != nil {
		return errors.Wrap(err, "query active positions")
	}

	var errs error
	for i := range positions {
		position := &positions[i]

		mark, err := s.Exchange.QueryMarkPrice(ctx, position.Market)
		if err != nil {
			// close anyway, the realized pnl stamp is best effort here
			mark = position.EntryPrice
		}

		if err := s.closePosition(ctx, position, mark, reason); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (s *Strategy) closePosition(ctx context.Context, position *types.SimplePosition, mark decimal.Decimal, reason types.CloseReason) error {
	_, err := s.Exchange.SubmitMarketOrder(ctx, types.SubmitOrder{
		Market:   position.Market,
		Side:     position.Side.ExitOrderSide(),
		PosSide:  position.Side,
		Quantity: position.Size,
	})
	if err != nil {
		// position stays active, next tick retries naturally
		return errors.Wrapf(err, "close order for position %d failed", position.GID)
	}

	metrics.OrdersSubmitted.WithLabelValues(string(position.Side.ExitOrderSide())).Inc()

	pnl := position.UnrealizedPnL(mark)
	if err := s.Store.Close(ctx, position.GID, pnl, reason); err != nil {
		return errors.Wrapf(err, "marking position %d closed failed", position.GID)
	}

	metrics.PositionsClosed.WithLabelValues(ID, string(reason)).Inc()

	log.Infof("position %d closed: %s %s %s pnl=%s reason=%s",
		position.GID, position.Side, position.Size, position.Market, pnl, reason)

	if s.Notifier != nil {
		s.Notifier.Notify("simple reverse exit: %s %s %s pnl=%s (%s)",
			position.Side, position.Size, position.Market, pnl, reason)
	}

	return nil
}
