// Package turtlereverse groups consecutive same-direction inverted entries
// into sequences, sizes each entry by the signal's ordinal quantity, and
// applies layered partial profit taking keyed by the highest ordinal seen.
package turtlereverse

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

const ID = "turtle"

var log = logrus.WithField("strategy", ID)

// A remainder at or below this size cannot be traded, the position is
// considered fully closed.
var sizeEpsilon = decimal.NewFromFloat(0.05)

// SequenceStore is the persistence surface the strategy needs, implemented by
// service.TurtleService.
type SequenceStore interface {
	InsertSequence(ctx context.Context, sequence *types.TurtleSequence) error
	FindActiveSequence(ctx context.Context, instanceID int64, direction types.SideType, startedAfter time.Time) (*types.TurtleSequence, error)
	QueryActiveSequences(ctx context.Context, instanceID int64) ([]types.TurtleSequence, error)
	UpdateMaxQuantity(ctx context.Context, sequenceID int64, quantity int) error
	CloseSequence(ctx context.Context, sequenceID int64, reason types.CloseReason) error

	InsertPosition(ctx context.Context, position *types.TurtlePosition) error
	QueryActivePositions(ctx context.Context, sequenceID int64) ([]types.TurtlePosition, error)
	ClosePosition(ctx context.Context, gid int64, reason types.CloseReason) error
	ReduceSize(ctx context.Context, gid int64, remaining decimal.Decimal) error
}

type Strategy struct {
	Exchange types.Exchange
	Store    SequenceStore
	Notifier types.Notifier
}

func New(exchange types.Exchange, store SequenceStore) *Strategy {
	return &Strategy{
		Exchange: exchange,
		Store:    store,
	}
}

// HandleSignal absorbs an open directive into the matching sequence, opening
// one sized entry tagged with the signal's ordinal quantity. A duplicate
// ordinal within the sequence is dropped, which is what makes at-least-once
// signal delivery safe.
func (s *Strategy) HandleSignal(ctx context.Context, instance *types.StrategyInstance, sig *signal.Signal) error {
	if sig.Action != signal.ActionOpen {
		return nil
	}

	cfg, err := instance.TurtleConfig()
	if err != nil {
		return err
	}

	direction := sig.Side.Reverse()

	sequence, err := s.Store.FindActiveSequence(ctx, instance.ID, direction,
		time.Now().UTC().Add(-cfg.SequenceLookback()))
	if err != nil {
		return errors.Wrap(err, "find active sequence")
	}

	if sequence != nil {
		positions, err := s.Store.QueryActivePositions(ctx, sequence.GID)
		if err != nil {
			return errors.Wrap(err, "query sequence positions")
		}

		for _, position := range positions {
			if position.Ordinal == sig.Quantity {
				// duplicate delivery of the same ordinal, idempotent no-op
				log.Debugf("sequence %d already holds ordinal %d, signal dropped",
					sequence.GID, sig.Quantity)
				return nil
			}
		}
	}

	tier := cfg.Tier(sig.Quantity)
	size := tier.PositionSize
	if size.GreaterThan(cfg.MaxPositionSize) {
		size = cfg.MaxPositionSize
	}
	size = size.Round(1)
	if size.Sign() <= 0 {
		return nil
	}

	receipt, err := s.Exchange.SubmitMarketOrder(ctx, types.SubmitOrder{
		Market:   sig.Market,
		Side:     direction.EntryOrderSide(),
		PosSide:  direction,
		Quantity: size,
	})
	if err != nil {
		return errors.Wrapf(err, "instance %d: turtle entry order failed", instance.ID)
	}

	metrics.OrdersSubmitted.WithLabelValues(string(direction.EntryOrderSide())).Inc()

	entryPrice, err := s.Exchange.QueryAverageFillPrice(ctx, sig.Market, receipt.OrderID)
	if err != nil {
		return errors.Wrapf(err, "instance %d: order %s has no fill price, entry abandoned",
			instance.ID, receipt.OrderID)
	}

	if sequence == nil {
		sequence = &types.TurtleSequence{
			StrategyInstanceID: instance.ID,
			Direction:          direction,
			Status:             types.PositionStatusActive,
			StartedAt:          time.Now().UTC(),
		}
		if err := s.Store.InsertSequence(ctx, sequence); err != nil {
			return errors.Wrapf(err, "instance %d: persisting sequence failed", instance.ID)
		}
	}

	position := &types.TurtlePosition{
		SequenceID:      sequence.GID,
		Market:          sig.Market,
		Side:            direction,
		Size:            size,
		EntryPrice:      entryPrice,
		Ordinal:         sig.Quantity,
		Status:          types.PositionStatusActive,
		ExchangeOrderID: receipt.OrderID,
		OpenedAt:        time.Now().UTC(),
	}
	if err := s.Store.InsertPosition(ctx, position); err != nil {
		return errors.Wrapf(err, "sequence %d: persisting position failed", sequence.GID)
	}

	if err := s.Store.UpdateMaxQuantity(ctx, sequence.GID, sig.Quantity); err != nil {
		return errors.Wrapf(err, "sequence %d: bumping max quantity failed", sequence.GID)
	}

	log.Infof("sequence %d: absorbed ordinal %d, opened %s %s %s @ %s",
		sequence.GID, sig.Quantity, direction, size, sig.Market, entryPrice)

	if s.Notifier != nil {
		s.Notifier.Notify("turtle reverse entry: %s %s %s @ %s (ordinal %d)",
			direction, size, sig.Market, entryPrice, sig.Quantity)
	}

	return nil
}

// Check runs one reconciliation pass over the instance's active sequences.
func (s *Strategy) Check(ctx context.Context, instance *types.StrategyInstance) error {
	cfg, err := instance.TurtleConfig()
	if err != nil {
		return err
	}

	sequences, err := s.Store.QueryActiveSequences(ctx, instance.ID)
	if err != nil {
		return errors.Wrap(err, "query active sequences")
	}

	var errs error
	for i := range sequences {
		if err := s.checkSequence(ctx, cfg, &sequences[i]); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (s *Strategy) checkSequence(ctx context.Context, cfg *types.TurtleConfig, sequence *types.TurtleSequence) error {
	if time.Since(sequence.StartedAt) >= cfg.SequenceTimeout() {
		return s.forceCloseSequence(ctx, sequence, types.CloseReasonSequenceTimeout)
	}

	positions, err := s.Store.QueryActivePositions(ctx, sequence.GID)
	if err != nil {
		return errors.Wrapf(err, "sequence %d: query positions", sequence.GID)
	}

	if len(positions) == 0 {
		// nothing left to manage, no exchange calls needed
		return s.Store.CloseSequence(ctx, sequence.GID, "")
	}

	pnlRatio, marks, err := s.sequencePnLRatio(ctx, positions)
	if err != nil {
		return errors.Wrapf(err, "sequence %d: pnl", sequence.GID)
	}

	if pnlRatio.LessThanOrEqual(decimal.NewFromFloat(cfg.EmergencyStopLoss)) {
		log.Warnf("sequence %d: emergency stop loss hit at %s", sequence.GID, pnlRatio)
		return s.forceCloseSequence(ctx, sequence, types.CloseReasonEmergencyStopLoss)
	}

	tier := cfg.Tier(sequence.CurrentMaxQuantity)
	if tier.ProfitThreshold <= 0 || tier.CloseRatio <= 0 {
		return nil
	}

	if pnlRatio.LessThan(decimal.NewFromFloat(tier.ProfitThreshold)) {
		return nil
	}

	return s.takePartialProfit(ctx, sequence, positions, marks, tier)
}

// sequencePnLRatio returns the notional-weighted pnl fraction over the active
// positions: sum of quote-currency pnl divided by sum of entry notionals.
func (s *Strategy) sequencePnLRatio(ctx context.Context, positions []types.TurtlePosition) (decimal.Decimal, map[string]decimal.Decimal, error) {
	totalPnL := decimal.Zero
	totalNotional := decimal.Zero
	marks := map[string]decimal.Decimal{}

	for i := range positions {
		position := &positions[i]

		mark, ok := marks[position.Market]
		if !ok {
			var err error
			mark, err = s.Exchange.QueryMarkPrice(ctx, position.Market)
			if err != nil {
				return decimal.Zero, nil, errors.Wrapf(err, "mark price of %s", position.Market)
			}
			marks[position.Market] = mark
		}

		totalPnL = totalPnL.Add(position.UnrealizedPnL(mark))
		totalNotional = totalNotional.Add(position.Notional())
	}

	if totalNotional.Sign() <= 0 {
		return decimal.Zero, marks, nil
	}

	return totalPnL.Div(totalNotional), marks, nil
}

// takePartialProfit closes tier.CloseRatio of every active position. A
// remainder at or below the epsilon closes the position entirely. As the
// sequence's max ordinal grows this can fire again at the new tier.
func (s *Strategy) takePartialProfit(ctx context.Context, sequence *types.TurtleSequence, positions []types.TurtlePosition, marks map[string]decimal.Decimal, tier types.TurtleTier) error {
	ratio := decimal.NewFromFloat(tier.CloseRatio)

	var errs error
	for i := range positions {
		position := &positions[i]

		closeSize := position.Size.Mul(ratio).Round(1)
		if closeSize.Sign() <= 0 {
			continue
		}
		if closeSize.GreaterThan(position.Size) {
			closeSize = position.Size
		}

		_, err := s.Exchange.SubmitMarketOrder(ctx, types.SubmitOrder{
			Market:   position.Market,
			Side:     position.Side.ExitOrderSide(),
			PosSide:  position.Side,
			Quantity: closeSize,
		})
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "partial close of position %d failed", position.GID))
			continue
		}

		metrics.OrdersSubmitted.WithLabelValues(string(position.Side.ExitOrderSide())).Inc()

		remaining := position.Size.Sub(closeSize)
		if remaining.LessThanOrEqual(sizeEpsilon) {
			if err := s.Store.ClosePosition(ctx, position.GID, types.CloseReasonPartialProfit); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			metrics.PositionsClosed.WithLabelValues(ID, string(types.CloseReasonPartialProfit)).Inc()
		} else {
			if err := s.Store.ReduceSize(ctx, position.GID, remaining); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
		}

		log.Infof("sequence %d: took profit on position %d, closed %s remaining %s",
			sequence.GID, position.GID, closeSize, remaining)
	}

	if errs == nil && s.Notifier != nil {
		s.Notifier.Notify("turtle sequence %d: layered profit taking at tier %d (%.0f%%)",
			sequence.GID, tier.Ordinal, tier.CloseRatio*100)
	}

	return errs
}

// CloseAll force-closes every active sequence of the instance, used by the
// control handover path.
func (s *Strategy) CloseAll(ctx context.Context, instance *types.StrategyInstance, reason types.CloseReason) error {
	sequences, err := s.Store.QueryActiveSequences(ctx, instance.ID)
	if err != nil {
		return errors.Wrap(err, "query active sequences")
	}

	var errs error
	for i := range sequences {
		if err := s.forceCloseSequence(ctx, &sequences[i], reason); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// forceCloseSequence unwinds every active position in the sequence with
// opposing market orders. Failures are collected, not fatal: the sequence is
// only marked closed once nothing in it is left active, so a failed close is
// naturally retried on the next tick.
func (s *Strategy) forceCloseSequence(ctx context.Context, sequence *types.TurtleSequence, reason types.CloseReason) error {
	positions, err := s.Store.QueryActivePositions(ctx, sequence.GID)
	if err != nil {
		return errors.Wrapf(err, "sequence %d: query positions", sequence.GID)
	}

	var errs error
	remaining := 0

	for i := range positions {
		position := &positions[i]

		_, err := s.Exchange.SubmitMarketOrder(ctx, types.SubmitOrder{
			Market:   position.Market,
			Side:     position.Side.ExitOrderSide(),
			PosSide:  position.Side,
			Quantity: position.Size,
		})
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "close of position %d failed", position.GID))
			remaining++
			continue
		}

		metrics.OrdersSubmitted.WithLabelValues(string(position.Side.ExitOrderSide())).Inc()

		if err := s.Store.ClosePosition(ctx, position.GID, reason); err != nil {
			errs = multierr.Append(errs, err)
			remaining++
			continue
		}

		metrics.PositionsClosed.WithLabelValues(ID, string(reason)).Inc()
	}

	if remaining > 0 {
		return errs
	}

	if err := s.Store.CloseSequence(ctx, sequence.GID, reason); err != nil {
		return multierr.Append(errs, err)
	}

	log.Infof("sequence %d closed: reason=%s", sequence.GID, reason)

	if s.Notifier != nil {
		s.Notifier.Notify("turtle sequence %d closed (%s)", sequence.GID, reason)
	}

	return errs
}
