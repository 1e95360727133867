package service

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/signalops/revbot/pkg/types"
)

// TurtleService persists turtle sequences and their positions.
type TurtleService struct {
	DB *sqlx.DB
}

func NewTurtleService(db *sqlx.DB) *TurtleService {
	return &TurtleService{DB: db}
}

func (s *TurtleService) InsertSequence(ctx context.Context, sequence *types.TurtleSequence) error {
	result, err := s.DB.NamedExecContext(ctx, `
		INSERT INTO turtle_sequences (
			strategy_instance_id,
			direction,
			status,
			current_max_quantity,
			started_at
		) VALUES (
			:strategy_instance_id,
			:direction,
			:status,
			:current_max_quantity,
			:started_at
		)`,
		map[string]interface{}{
			"strategy_instance_id": sequence.StrategyInstanceID,
			"direction":            sequence.Direction,
			"status":               sequence.Status,
			"current_max_quantity": sequence.CurrentMaxQuantity,
			"started_at":           sequence.StartedAt,
		})
	if err != nil {
		return err
	}

	sequence.GID, err = result.LastInsertId()
	return err
}

// FindActiveSequence returns the newest active sequence of the instance in the
// given direction started at or after the lookback bound, or nil when the next
// entry should start a fresh sequence.
func (s *TurtleService) FindActiveSequence(ctx context.Context, instanceID int64, direction types.SideType, startedAfter time.Time) (*types.TurtleSequence, error) {
	sql, args, err := findActiveSequenceSQL(instanceID, direction, startedAfter)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	if rows.Next() {
		var sequence types.TurtleSequence
		if err := rows.StructScan(&sequence); err != nil {
			return nil, err
		}
		return &sequence, rows.Err()
	}

	return nil, rows.Err()
}

func findActiveSequenceSQL(instanceID int64, direction types.SideType, startedAfter time.Time) (string, []interface{}, error) {
	return sq.Select("*").
		From("turtle_sequences").
		Where(sq.Eq{
			"strategy_instance_id": instanceID,
			"direction":            direction,
			"status":               types.PositionStatusActive,
		}).
		Where(sq.GtOrEq{"started_at": startedAfter}).
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
}

func (s *TurtleService) QueryActiveSequences(ctx context.Context, instanceID int64) ([]types.TurtleSequence, error) {
	sql, args, err := sq.Select("*").
		From("turtle_sequences").
		Where(sq.Eq{
			"strategy_instance_id": instanceID,
			"status":               types.PositionStatusActive,
		}).
		OrderBy("gid ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var sequences []types.TurtleSequence
	for rows.Next() {
		var sequence types.TurtleSequence
		if err := rows.StructScan(&sequence); err != nil {
			return sequences, err
		}
		sequences = append(sequences, sequence)
	}

	return sequences, rows.Err()
}

// UpdateMaxQuantity bumps current_max_quantity, it never shrinks it.
func (s *TurtleService) UpdateMaxQuantity(ctx context.Context, sequenceID int64, quantity int) error {
	_, err := s.DB.NamedExecContext(ctx, `
		UPDATE turtle_sequences
		SET current_max_quantity = :quantity
		WHERE gid = :gid AND current_max_quantity < :quantity`,
		map[string]interface{}{
			"quantity": quantity,
			"gid":      sequenceID,
		})
	return err
}

func (s *TurtleService) CloseSequence(ctx context.Context, sequenceID int64, reason types.CloseReason) error {
	_, err := s.DB.NamedExecContext(ctx, `
		UPDATE turtle_sequences
		SET status = :status, close_reason = :close_reason, closed_at = :closed_at
		WHERE gid = :gid`,
		map[string]interface{}{
			"status":       types.PositionStatusClosed,
			"close_reason": reason,
			"closed_at":    time.Now().UTC(),
			"gid":          sequenceID,
		})
	return err
}

func (s *TurtleService) InsertPosition(ctx context.Context, position *types.TurtlePosition) error {
	result, err := s.DB.NamedExecContext(ctx, `
		INSERT INTO turtle_positions (
			sequence_id,
			market,
			side,
			size,
			entry_price,
			ordinal,
			status,
			exchange_order_id,
			opened_at
		) VALUES (
			:sequence_id,
			:market,
			:side,
			:size,
			:entry_price,
			:ordinal,
			:status,
			:exchange_order_id,
			:opened_at
		)`,
		map[string]interface{}{
			"sequence_id":       position.SequenceID,
			"market":            position.Market,
			"side":              position.Side,
			"size":              position.Size,
			"entry_price":       position.EntryPrice,
			"ordinal":           position.Ordinal,
			"status":            position.Status,
			"exchange_order_id": position.ExchangeOrderID,
			"opened_at":         position.OpenedAt,
		})
	if err != nil {
		return err
	}

	position.GID, err = result.LastInsertId()
	return err
}

func (s *TurtleService) QueryActivePositions(ctx context.Context, sequenceID int64) ([]types.TurtlePosition, error) {
	sql, args, err := sq.Select("*").
		From("turtle_positions").
		Where(sq.Eq{
			"sequence_id": sequenceID,
			"status":      types.PositionStatusActive,
		}).
		OrderBy("ordinal ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var positions []types.TurtlePosition
	for rows.Next() {
		var position types.TurtlePosition
		if err := rows.StructScan(&position); err != nil {
			return positions, err
		}
		positions = append(positions, position)
	}

	return positions, rows.Err()
}

func (s *TurtleService) ClosePosition(ctx context.Context, gid int64, reason types.CloseReason) error {
	_, err := s.DB.NamedExecContext(ctx, `
		UPDATE turtle_positions
		SET status = :status, close_reason = :close_reason, closed_at = :closed_at
		WHERE gid = :gid`,
		map[string]interface{}{
			"status":       types.PositionStatusClosed,
			"close_reason": reason,
			"closed_at":    time.Now().UTC(),
			"gid":          gid,
		})
	return err
}

// ReduceSize persists the remaining size after a partial close.
func (s *TurtleService) ReduceSize(ctx context.Context, gid int64, remaining decimal.Decimal) error {
	_, err := s.DB.NamedExecContext(ctx, `
		UPDATE turtle_positions
		SET size = :size
		WHERE gid = :gid`,
		map[string]interface{}{
			"size": remaining,
			"gid":  gid,
		})
	return err
}
