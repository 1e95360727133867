package mysql

import (
	"context"

	"github.com/c9s/rockhopper"
)

func init() {
	rockhopper.AddMigration(upAddTurtleSequences, downAddTurtleSequences)
}

func upAddTurtleSequences(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "CREATE TABLE turtle_sequences"+
		"("+
		"    gid                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,"+
		"    strategy_instance_id BIGINT UNSIGNED NOT NULL,"+
		"    direction            VARCHAR(8) NOT NULL,"+
		"    status               VARCHAR(16) NOT NULL DEFAULT 'active',"+
		"    current_max_quantity INT NOT NULL DEFAULT 0,"+
		"    started_at           DATETIME(3) NOT NULL,"+
		"    closed_at            DATETIME(3) NULL,"+
		"    close_reason         VARCHAR(32) NOT NULL DEFAULT '',"+
		"    PRIMARY KEY (gid),"+
		"    KEY idx_instance_status_direction (strategy_instance_id, status, direction),"+
		"    CONSTRAINT fk_turtle_sequences_instance FOREIGN KEY (strategy_instance_id)"+
		"        REFERENCES strategy_instances (id) ON DELETE CASCADE"+
		");")
	return err
}

func downAddTurtleSequences(ctx context.Context, tx rockhopper.SQLExecutor) (err error) {
	_, err = tx.ExecContext(ctx, "DROP TABLE turtle_sequences;")
	return err
}
