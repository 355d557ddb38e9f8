package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"signalengine/src/market"
	"signalengine/src/timeframes"
)

// PostgresDB PostgreSQL存储：K线、策略定义、执行状态、信号流水
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB 创建PostgreSQL数据库连接
func NewPostgresDB(cfg DatabaseConfig) (*PostgresDB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.lifetime())

	return &PostgresDB{db: db}, nil
}

// NewPostgresDBWithConn 使用已有连接
func NewPostgresDBWithConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// Close 关闭数据库连接
func (p *PostgresDB) Close() error {
	return p.db.Close()
}

// Ping 检查连接
func (p *PostgresDB) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// GetName 数据源名称
func (p *PostgresDB) GetName() string {
	return "postgres"
}

const upsertCandle = `
		INSERT INTO candles (
			symbol, timeframe, open_time,
			open_price, high_price, low_price, close_price, volume
		) VALUES %s
		ON CONFLICT (symbol, timeframe, open_time)
		DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			updated_at = CURRENT_TIMESTAMP
		WHERE (
			candles.open_price != EXCLUDED.open_price OR
			candles.high_price != EXCLUDED.high_price OR
			candles.low_price != EXCLUDED.low_price OR
			candles.close_price != EXCLUDED.close_price OR
			candles.volume != EXCLUDED.volume
		)
	`

const candleColumns = 8

// SaveCandles 逐条写入K线，已存在的按 (symbol, timeframe, open_time) 更新
func (p *PostgresDB) SaveCandles(ctx context.Context, symbol, timeframe string, candles []market.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(upsertCandle, "($1, $2, $3, $4, $5, $6, $7, $8)"))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err = stmt.ExecContext(ctx,
			symbol, timeframe, c.Timestamp.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candle: %w", err)
		}
	}

	return tx.Commit()
}

// SaveCandlesBatch 按批次写入K线
func (p *PostgresDB) SaveCandlesBatch(ctx context.Context, symbol, timeframe string, candles []market.Candle) error {
	// 分批处理，避免SQL语句过长
	const batchSize = 100
	for i := 0; i < len(candles); i += batchSize {
		end := i + batchSize
		if end > len(candles) {
			end = len(candles)
		}
		if err := p.saveBatch(ctx, symbol, timeframe, candles[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresDB) saveBatch(ctx context.Context, symbol, timeframe string, candles []market.Candle) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	values := make([]string, 0, len(candles))
	args := make([]any, 0, len(candles)*candleColumns)
	for i, c := range candles {
		holders := make([]string, candleColumns)
		for j := range holders {
			holders[j] = fmt.Sprintf("$%d", i*candleColumns+j+1)
		}
		values = append(values, "("+strings.Join(holders, ", ")+")")
		args = append(args,
			symbol, timeframe, c.Timestamp.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume,
		)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(upsertCandle, strings.Join(values, ",")), args...); err != nil {
		return fmt.Errorf("failed to batch insert candles: %w", err)
	}
	return tx.Commit()
}

// QueryCandles 按时间范围查询，零值时间表示不限
func (p *PostgresDB) QueryCandles(ctx context.Context, symbol, timeframe string, start, end time.Time, limit int) ([]market.Candle, error) {
	query := `
		SELECT open_time, open_price, high_price, low_price, close_price, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2
	`
	args := []any{symbol, timeframe}
	argIndex := 3

	if !start.IsZero() {
		query += fmt.Sprintf(" AND open_time >= $%d", argIndex)
		args = append(args, start.UnixMilli())
		argIndex++
	}
	if !end.IsZero() {
		query += fmt.Sprintf(" AND open_time <= $%d", argIndex)
		args = append(args, end.UnixMilli())
		argIndex++
	}

	query += " ORDER BY open_time ASC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// GetCandles 最近 limit 根K线，按时间升序
func (p *PostgresDB) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT open_time, open_price, high_price, low_price, close_price, volume
		FROM (
			SELECT open_time, open_price, high_price, low_price, close_price, volume
			FROM candles
			WHERE symbol = $1 AND timeframe = $2
			ORDER BY open_time DESC
			LIMIT $3
		) recent
		ORDER BY open_time ASC
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

func scanCandles(rows *sql.Rows) ([]market.Candle, error) {
	var candles []market.Candle
	for rows.Next() {
		var (
			openTime int64
			c        market.Candle
		)
		if err := rows.Scan(&openTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		c.Timestamp = time.UnixMilli(openTime).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// GetLatestCandleTime 最新K线时间，没有数据时 ok 为 false
func (p *PostgresDB) GetLatestCandleTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error) {
	var openTime sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		"SELECT MAX(open_time) FROM candles WHERE symbol = $1 AND timeframe = $2",
		symbol, timeframe,
	).Scan(&openTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get latest candle time: %w", err)
	}
	if !openTime.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(openTime.Int64).UTC(), true, nil
}

// candleInterval 周期对应的毫秒数，未知周期返回0
func candleInterval(timeframe string) int64 {
	d, err := timeframes.Timeframe(timeframe).GetDuration()
	if err != nil {
		return 0
	}
	return d.Milliseconds()
}
