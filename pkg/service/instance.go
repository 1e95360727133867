package service

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/signalops/revbot/pkg/types"
)

// StrategyInstanceService reads the persisted strategy configuration rows.
// The engine never creates or edits instances; the only status flip it owns
// is MarkError, everything else comes from the external management surface.
type StrategyInstanceService struct {
	DB *sqlx.DB
}

func NewStrategyInstanceService(db *sqlx.DB) *StrategyInstanceService {
	return &StrategyInstanceService{DB: db}
}

// QueryRunning returns running instances, optionally filtered by market.
// An empty market matches everything, which is what a close directive wants.
func (s *StrategyInstanceService) QueryRunning(ctx context.Context, market string) ([]types.StrategyInstance, error) {
	sql, args, err := queryRunningInstancesSQL(market)
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

func queryRunningInstancesSQL(market string) (string, []interface{}, error) {
	builder := sq.Select("*").
		From("strategy_instances").
		Where(sq.Eq{"status": types.InstanceStatusRunning}).
		OrderBy("id ASC")

	if market != "" {
		builder = builder.Where(sq.Eq{"market": market})
	}

	return builder.ToSql()
}

// MarkError flips an instance to the error status, taking it out of the
// running set. The engine calls this when an instance keeps failing its
// reconciliation passes.
func (s *StrategyInstanceService) MarkError(ctx context.Context, id int64) error {
	_, err := s.DB.NamedExecContext(ctx,
		"UPDATE strategy_instances SET status = :status, updated_at = NOW() WHERE id = :id",
		map[string]interface{}{
			"status": types.InstanceStatusError,
			"id":     id,
		})
	return err
}

func (s *StrategyInstanceService) scanRows(rows *sqlx.Rows) (instances []types.StrategyInstance, err error) {
	for rows.Next() {
		var instance types.StrategyInstance
		if err := rows.StructScan(&instance); err != nil {
			return instances, err
		}

		instances = append(instances, instance)
	}

	return instances, rows.Err()
}
