package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"signalengine/src/strategy"
)

// PostgresDB 同时实现 strategy.StateStore，状态以 JSONB 存储
var _ strategy.StateStore = (*PostgresDB)(nil)

// LoadState 读取执行状态，不存在时 ok 为 false
func (p *PostgresDB) LoadState(ctx context.Context, key strategy.StateKey) (strategy.ExecutionState, bool, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx,
		"SELECT state FROM execution_states WHERE instance_id = $1 AND position_id = $2",
		key.InstanceID, key.PositionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.ExecutionState{}, false, nil
	}
	if err != nil {
		return strategy.ExecutionState{}, false, fmt.Errorf("failed to load execution state %s: %w", key, err)
	}

	var state strategy.ExecutionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return strategy.ExecutionState{}, false, fmt.Errorf("failed to decode execution state %s: %w", key, err)
	}
	return state, true, nil
}

// SaveState 写入执行状态
func (p *PostgresDB) SaveState(ctx context.Context, key strategy.StateKey, state strategy.ExecutionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode execution state %s: %w", key, err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO execution_states (instance_id, position_id, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instance_id, position_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`, key.InstanceID, key.PositionID, raw, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save execution state %s: %w", key, err)
	}
	return nil
}

// DeleteState 删除执行状态
func (p *PostgresDB) DeleteState(ctx context.Context, key strategy.StateKey) error {
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM execution_states WHERE instance_id = $1 AND position_id = $2",
		key.InstanceID, key.PositionID)
	if err != nil {
		return fmt.Errorf("failed to delete execution state %s: %w", key, err)
	}
	return nil
}
