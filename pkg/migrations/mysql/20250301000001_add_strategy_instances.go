package mysql

import (
	"context"

	"github.com/c9s/rockhopper"
)

func init() {
	rockhopper.AddMigration(upAddStrategyInstances, downAddStrategyInstances)
}

func upAddStrategyInstances(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "CREATE TABLE strategy_instances"+
		"("+
		"    id         BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,"+
		"    user_id    BIGINT UNSIGNED NOT NULL,"+
		"    market     VARCHAR(32) NOT NULL,"+
		"    kind       VARCHAR(16) NOT NULL,"+
		"    status     VARCHAR(16) NOT NULL DEFAULT 'stopped',"+
		"    config     JSON NOT NULL,"+
		"    created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),"+
		"    updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),"+
		"    PRIMARY KEY (id),"+
		"    KEY idx_status_market (status, market)"+
		");")
	return err
}

func downAddStrategyInstances(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "DROP TABLE strategy_instances;")
	return err
}
