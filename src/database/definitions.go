package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"signalengine/src/strategy"
	"signalengine/src/timeframes"
)

var ErrDefinitionNotFound = errors.New("strategy definition not found")

const selectDefinition = `
		SELECT id, name, description, strategy_type, timeframe, parameters, status
		FROM strategy_instances
	`

// LoadDefinitions 读取全部策略定义，按ID升序
func (p *PostgresDB) LoadDefinitions(ctx context.Context) ([]strategy.Definition, error) {
	rows, err := p.db.QueryContext(ctx, selectDefinition+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy definitions: %w", err)
	}
	defer rows.Close()

	var defs []strategy.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// LoadDefinition 按ID读取策略定义
func (p *PostgresDB) LoadDefinition(ctx context.Context, id int64) (strategy.Definition, error) {
	row := p.db.QueryRowContext(ctx, selectDefinition+" WHERE id = $1", id)
	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return strategy.Definition{}, fmt.Errorf("%w: %d", ErrDefinitionNotFound, id)
	}
	return def, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDefinition(s scanner) (strategy.Definition, error) {
	var (
		def         strategy.Definition
		description sql.NullString
		typ         string
		timeframe   string
		status      string
		params      []byte
	)
	if err := s.Scan(&def.ID, &def.Name, &description, &typ, &timeframe, &params, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return def, err
		}
		return def, fmt.Errorf("failed to scan strategy definition: %w", err)
	}

	t, err := strategy.ParseType(typ)
	if err != nil {
		return def, fmt.Errorf("strategy %d: %w", def.ID, err)
	}
	def.Type = t
	def.Description = description.String
	def.Timeframe = timeframes.Timeframe(timeframe)
	def.Status = strategy.Status(status)

	if len(params) > 0 {
		if err := json.Unmarshal(params, &def.Parameters); err != nil {
			return def, fmt.Errorf("failed to decode parameters of strategy %d: %w", def.ID, err)
		}
	}
	return def, nil
}

// SaveDefinition 保存策略定义，ID为0时新建，返回ID
func (p *PostgresDB) SaveDefinition(ctx context.Context, def strategy.Definition) (int64, error) {
	if !def.Type.IsValid() {
		return 0, fmt.Errorf("unsupported strategy type: %s", def.Type)
	}
	if def.Status == "" {
		def.Status = strategy.StatusInactive
	}
	if def.Timeframe == "" {
		def.Timeframe = timeframes.Default
	}
	paramsJSON, err := marshalParams(def)
	if err != nil {
		return 0, err
	}

	if def.ID == 0 {
		var id int64
		err = p.db.QueryRowContext(ctx, `
			INSERT INTO strategy_instances (name, description, strategy_type, timeframe, parameters, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, def.Name, def.Description, string(def.Type), string(def.Timeframe), paramsJSON, string(def.Status)).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert strategy %s: %w", def.Name, err)
		}
		return id, nil
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO strategy_instances (id, name, description, strategy_type, timeframe, parameters, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			strategy_type = EXCLUDED.strategy_type,
			timeframe = EXCLUDED.timeframe,
			parameters = EXCLUDED.parameters,
			status = EXCLUDED.status,
			updated_at = CURRENT_TIMESTAMP
	`, def.ID, def.Name, def.Description, string(def.Type), string(def.Timeframe), paramsJSON, string(def.Status))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert strategy %s: %w", def.Name, err)
	}
	return def.ID, nil
}

// SyncDefinitions 在一个事务内写入多条定义
func (p *PostgresDB) SyncDefinitions(ctx context.Context, defs []strategy.Definition) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO strategy_instances (id, name, description, strategy_type, timeframe, parameters, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			strategy_type = EXCLUDED.strategy_type,
			timeframe = EXCLUDED.timeframe,
			parameters = EXCLUDED.parameters,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, def := range defs {
		paramsJSON, err := marshalParams(def)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx, def.ID, def.Name, def.Description, string(def.Type),
			string(def.Timeframe), paramsJSON, string(def.Status))
		if err != nil {
			return fmt.Errorf("failed to upsert strategy %s: %w", def.Name, err)
		}
	}
	return tx.Commit()
}

// UpdateStatus 更新实例状态
func (p *PostgresDB) UpdateStatus(ctx context.Context, id int64, status strategy.Status) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid strategy status: %s", status)
	}
	res, err := p.db.ExecContext(ctx,
		"UPDATE strategy_instances SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update strategy status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update strategy status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrDefinitionNotFound, id)
	}
	return nil
}

func marshalParams(def strategy.Definition) ([]byte, error) {
	params := def.Parameters
	if params == nil {
		params = strategy.Params{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters for strategy %s: %w", def.Name, err)
	}
	return raw, nil
}
