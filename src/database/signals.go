package database

import (
	"context"
	"encoding/json"
	"fmt"

	"signalengine/src/strategy"
)

// SaveSignal 记录一次评估结果
func (p *PostgresDB) SaveSignal(ctx context.Context, rec strategy.SignalRecord) error {
	indicators, err := json.Marshal(rec.Indicators)
	if err != nil {
		return fmt.Errorf("failed to marshal indicators: %w", err)
	}
	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO signals (
			strategy_id, strategy, symbol, signal, confidence, price,
			signal_time, indicators, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rec.StrategyID, rec.Strategy, rec.Symbol, string(rec.Signal), rec.Confidence, rec.Price,
		rec.Timestamp, indicators, metadata)
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

// SignalCounts 某实例各类信号的累计数量
func (p *PostgresDB) SignalCounts(ctx context.Context, strategyID int64) (map[strategy.Signal]int, error) {
	rows, err := p.db.QueryContext(ctx,
		"SELECT signal, COUNT(*) FROM signals WHERE strategy_id = $1 GROUP BY signal",
		strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}
	defer rows.Close()

	counts := map[strategy.Signal]int{}
	for rows.Next() {
		var (
			signal string
			n      int
		)
		if err := rows.Scan(&signal, &n); err != nil {
			return nil, fmt.Errorf("failed to scan signal count: %w", err)
		}
		counts[strategy.Signal(signal)] = n
	}
	return counts, rows.Err()
}
