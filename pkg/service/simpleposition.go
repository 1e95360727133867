package service

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/signalops/revbot/pkg/types"
)

// SimplePositionService persists the simple reverse strategy's positions.
type SimplePositionService struct {
	DB *sqlx.DB
}

func NewSimplePositionService(db *sqlx.DB) *SimplePositionService {
	return &SimplePositionService{DB: db}
}

func (s *SimplePositionService) Insert(ctx context.Context, position *types.SimplePosition) error {
	result, err := s.DB.NamedExecContext(ctx, `
		INSERT INTO simple_positions (
			strategy_instance_id,
			market,
			side,
			size,
			entry_price,
			status,
			exchange_order_id,
			opened_at
		) VALUES (
			:strategy_instance_id,
			:market,
			:side,
			:size,
			:entry_price,
			:status,
			:exchange_order_id,
			:opened_at
		)`,
		map[string]interface{}{
			"strategy_instance_id": position.StrategyInstanceID,
			"market":               position.Market,
			"side":                 position.Side,
			"size":                 position.Size,
			"entry_price":          position.EntryPrice,
			"status":               position.Status,
			"exchange_order_id":    position.ExchangeOrderID,
			"opened_at":            position.OpenedAt,
		})
	if err != nil {
		return err
	}

	position.GID, err = result.LastInsertId()
	return err
}

func (s *SimplePositionService) QueryActive(ctx context.Context, instanceID int64) ([]types.SimplePosition, error) {
	sql, args, err := queryActiveSimplePositionsSQL(instanceID)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()
	return s.scanRows(rows)
}

func queryActiveSimplePositionsSQL(instanceID int64) (string, []interface{}, error) {
	return sq.Select("*").
		From("simple_positions").
		Where(sq.Eq{
			"strategy_instance_id": instanceID,
			"status":               types.PositionStatusActive,
		}).
		OrderBy("gid ASC").
		ToSql()
}

func (s *SimplePositionService) CountActive(ctx context.Context, instanceID int64) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM simple_positions WHERE strategy_instance_id = ? AND status = ?",
		instanceID, types.PositionStatusActive).Scan(&count)
	return count, err
}

// Close stamps the realized pnl and the reason, and flips the row to closed.
func (s *SimplePositionService) Close(ctx context.Context, gid int64, pnl decimal.Decimal, reason types.CloseReason) error {
	_, err := s.DB.NamedExecContext(ctx, `
		UPDATE simple_positions
		SET status = :status, pnl = :pnl, close_reason = :close_reason, closed_at = :closed_at
		WHERE gid = :gid`,
		map[string]interface{}{
			"status":       types.PositionStatusClosed,
			"pnl":          pnl,
			"close_reason": reason,
			"closed_at":    time.Now().UTC(),
			"gid":          gid,
		})
	return err
}

func (s *SimplePositionService) scanRows(rows *sqlx.Rows) (positions []types.SimplePosition, err error) {
	for rows.Next() {
		var p types.SimplePosition
		if err := rows.StructScan(&p); err != nil {
			return positions, err
		}

		positions = append(positions, p)
	}

	return positions, rows.Err()
}
