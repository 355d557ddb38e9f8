package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS candles (
		symbol      VARCHAR(32)    NOT NULL,
		timeframe   VARCHAR(8)     NOT NULL,
		open_time   BIGINT         NOT NULL,
		open_price  NUMERIC(36,18) NOT NULL,
		high_price  NUMERIC(36,18) NOT NULL,
		low_price   NUMERIC(36,18) NOT NULL,
		close_price NUMERIC(36,18) NOT NULL,
		volume      NUMERIC(36,18) NOT NULL,
		created_at  TIMESTAMPTZ    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at  TIMESTAMPTZ    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (symbol, timeframe, open_time)
	)`,
	`CREATE TABLE IF NOT EXISTS strategy_instances (
		id            BIGSERIAL   PRIMARY KEY,
		name          TEXT        NOT NULL,
		description   TEXT,
		strategy_type VARCHAR(64) NOT NULL,
		timeframe     VARCHAR(8)  NOT NULL,
		parameters    JSONB       NOT NULL DEFAULT '{}',
		status        VARCHAR(16) NOT NULL DEFAULT 'INACTIVE',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS execution_states (
		instance_id BIGINT      NOT NULL,
		position_id TEXT        NOT NULL,
		state       JSONB       NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (instance_id, position_id)
	)`,
	`CREATE TABLE IF NOT EXISTS signals (
		id          BIGSERIAL      PRIMARY KEY,
		strategy_id BIGINT         NOT NULL,
		strategy    TEXT           NOT NULL,
		symbol      VARCHAR(32)    NOT NULL,
		signal      VARCHAR(8)     NOT NULL,
		confidence  NUMERIC(10,6)  NOT NULL,
		price       NUMERIC(36,18) NOT NULL,
		signal_time TIMESTAMPTZ    NOT NULL,
		indicators  JSONB,
		metadata    JSONB,
		created_at  TIMESTAMPTZ    NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate 创建所需的表
func (p *PostgresDB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}
