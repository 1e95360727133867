package mysql

import (
	"context"

	"github.com/c9s/rockhopper"
)

func init() {
	rockhopper.AddMigration(upAddTurtlePositions, downAddTurtlePositions)
}

func upAddTurtlePositions(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "CREATE TABLE turtle_positions"+
		"("+
		"    gid               BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,"+
		"    sequence_id       BIGINT UNSIGNED NOT NULL,"+
		"    market            VARCHAR(32) NOT NULL,"+
		"    side              VARCHAR(8) NOT NULL,"+
		"    size              DECIMAL(16, 4) NOT NULL,"+
		"    entry_price       DECIMAL(16, 8) NOT NULL,"+
		"    ordinal           INT NOT NULL,"+
		"    status            VARCHAR(16) NOT NULL DEFAULT 'active',"+
		"    exchange_order_id VARCHAR(32) NOT NULL DEFAULT '',"+
		"    opened_at         DATETIME(3) NOT NULL,"+
		"    closed_at         DATETIME(3) NULL,"+
		"    close_reason      VARCHAR(32) NOT NULL DEFAULT '',"+
		"    PRIMARY KEY (gid),"+
		"    KEY idx_sequence_status (sequence_id, status),"+
		"    KEY idx_sequence_ordinal (sequence_id, ordinal),"+
		"    CONSTRAINT fk_turtle_positions_sequence FOREIGN KEY (sequence_id)"+
		"        REFERENCES turtle_sequences (gid) ON DELETE CASCADE"+
		");")
	return err
}

func downAddTurtlePositions(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "DROP TABLE turtle_positions;")
	return err
}
