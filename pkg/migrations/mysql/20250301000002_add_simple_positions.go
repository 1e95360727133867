package mysql

import (
	"context"

	"github.com/c9s/rockhopper"
)

func init() {
	rockhopper.AddMigration(upAddSimplePositions, downAddSimplePositions)
}

func upAddSimplePositions(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "CREATE TABLE simple_positions"+
		"("+
		"    gid                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,"+
		"    strategy_instance_id BIGINT UNSIGNED NOT NULL,"+
		"    market               VARCHAR(32) NOT NULL,"+
		"    side                 VARCHAR(8) NOT NULL,"+
		"    size                 DECIMAL(16, 4) NOT NULL,"+
		"    entry_price          DECIMAL(16, 8) NOT NULL,"+
		"    status               VARCHAR(16) NOT NULL DEFAULT 'active',"+
		"    exchange_order_id    VARCHAR(32) NOT NULL DEFAULT '',"+
		"    opened_at            DATETIME(3) NOT NULL,"+
		"    closed_at            DATETIME(3) NULL,"+
		"    pnl                  DECIMAL(16, 8) NOT NULL DEFAULT 0,"+
		"    close_reason         VARCHAR(32) NOT NULL DEFAULT '',"+
		"    PRIMARY KEY (gid),"+
		"    KEY idx_instance_status (strategy_instance_id, status),"+
		"    CONSTRAINT fk_simple_positions_instance FOREIGN KEY (strategy_instance_id)"+
		"        REFERENCES strategy_instances (id) ON DELETE CASCADE"+
		");")
	return err
}

func downAddSimplePositions(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "DROP TABLE simple_positions;")
	return err
}
