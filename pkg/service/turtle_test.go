package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalops/revbot/pkg/types"
)

func Test_findActiveSequenceSQL(t *testing.T) {
	startedAfter := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sql, args, err := findActiveSequenceSQL(42, types.SideTypeShort, startedAfter)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT * FROM turtle_sequences WHERE direction = ? AND status = ? AND strategy_instance_id = ? AND started_at >= ? ORDER BY started_at DESC LIMIT 1",
		sql)
	assert.Equal(t, []interface{}{types.SideTypeShort, types.PositionStatusActive, int64(42), startedAfter}, args)
}

func TestTurtleService_InsertSequence(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewTurtleService(db)

	mock.ExpectExec("INSERT INTO turtle_sequences").
		WillReturnResult(sqlmock.NewResult(9, 1))

	sequence := &types.TurtleSequence{
		StrategyInstanceID: 42,
		Direction:          types.SideTypeShort,
		Status:             types.PositionStatusActive,
		CurrentMaxQuantity: 3,
		StartedAt:          time.Now().UTC(),
	}
	require.NoError(t, service.InsertSequence(context.Background(), sequence))
	assert.Equal(t, int64(9), sequence.GID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurtleService_ClosePositionAndSequence(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewTurtleService(db)

	mock.ExpectExec("UPDATE turtle_positions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE turtle_sequences").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, service.ClosePosition(ctx, 5, types.CloseReasonSequenceTimeout))
	require.NoError(t, service.CloseSequence(ctx, 9, types.CloseReasonSequenceTimeout))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTurtleService_ReduceSize(t *testing.T) {
	db, mock := newMockDB(t)
	service := NewTurtleService(db)

	mock.ExpectExec("UPDATE turtle_positions").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, service.ReduceSize(context.Background(), 5, decimal.NewFromFloat(13.5)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
