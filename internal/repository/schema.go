package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema 预算相关表结构
// 级联关系：budget → content → demand；pilot budget → extra budget
const Schema = `
CREATE TABLE IF NOT EXISTS wms_budget (
	budget_id        UUID PRIMARY KEY,
	name             VARCHAR(64) NOT NULL,
	phase_id         VARCHAR(64) NOT NULL,
	budget_type      VARCHAR(16) NOT NULL CHECK (budget_type IN ('PILOT', 'EXTRA', 'ADDITIONAL')),
	is_lock          BOOLEAN NOT NULL DEFAULT FALSE,
	source_task_id   VARCHAR(64),
	pilot_budget_id  UUID REFERENCES wms_budget (budget_id) ON DELETE CASCADE,
	created_by       VARCHAR(64) NOT NULL DEFAULT '',
	updated_by       VARCHAR(64) NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT wms_budget_name_phase_type_key UNIQUE (name, phase_id, budget_type)
);

CREATE INDEX IF NOT EXISTS idx_wms_budget_pilot ON wms_budget (pilot_budget_id);

CREATE TABLE IF NOT EXISTS wms_budget_content (
	content_id                 UUID PRIMARY KEY,
	partnumber_id              VARCHAR(64) NOT NULL,
	budget_id                  UUID NOT NULL REFERENCES wms_budget (budget_id) ON DELETE CASCADE,
	part_no                    VARCHAR(24) NOT NULL DEFAULT '料號新建中',
	addition                   VARCHAR(32),
	lead_time_weeks_low        INTEGER,
	lead_time_weeks_high       INTEGER,
	buyer                      VARCHAR(32),
	user_dri                   VARCHAR(16),
	user_dept                  VARCHAR(32),
	user_dept_manager          VARCHAR(16),
	counterpart                VARCHAR(64),
	reimburse_customer_check   BOOLEAN,
	emergency_purchase_submit  BOOLEAN,
	purchase_reason            VARCHAR(512),
	total_purchase_qty         INTEGER NOT NULL DEFAULT 0,
	on_hand_qty                INTEGER NOT NULL DEFAULT 0,
	unit_price                 NUMERIC(18, 6) NOT NULL DEFAULT 0,
	unit_price_currency        VARCHAR(16) NOT NULL,
	exchange_rate_to_usd       NUMERIC(12, 6) NOT NULL DEFAULT 0,
	created_by                 VARCHAR(64) NOT NULL DEFAULT '',
	updated_by                 VARCHAR(64) NOT NULL DEFAULT '',
	created_at                 TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at                 TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT wms_budget_content_partnumber_budget_key UNIQUE (partnumber_id, budget_id)
);

CREATE TABLE IF NOT EXISTS wms_budget_demand (
	demand_id   UUID PRIMARY KEY,
	function    VARCHAR(64) NOT NULL,
	demand_qty  INTEGER NOT NULL,
	content_id  UUID NOT NULL REFERENCES wms_budget_content (content_id) ON DELETE CASCADE,
	created_by  VARCHAR(64) NOT NULL DEFAULT '',
	updated_by  VARCHAR(64) NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT wms_budget_demand_function_content_key UNIQUE (function, content_id)
);
`

// ApplySchema 执行建表语句（幂等）
func ApplySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
