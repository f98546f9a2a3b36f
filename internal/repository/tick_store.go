package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"TradeDeck/internal/domain/models"
	"TradeDeck/internal/domain/repository"
)

// ClickHouseTickStore implements TickStore for ClickHouse.
type ClickHouseTickStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseTickStore creates ClickHouse tick storage.
func NewClickHouseTickStore(db *sql.DB, table string) repository.TickStore {
	return &ClickHouseTickStore{db: db, table: table}
}

// TickSchema returns the DDL for the tick history table.
func TickSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts DateTime64(3),
		stock_code LowCardinality(String),
		price Float64,
		change Float64,
		change_pct Float64,
		volume Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMMDD(ts)
	ORDER BY (stock_code, ts)`, table)}
}

func (s *ClickHouseTickStore) StoreBatch(ctx context.Context, ticks []*models.PriceUpdateEvent) error {
	if len(ticks) == 0 {
		return nil
	}
	// Multi-row VALUES insert to keep round-trips down.
	const chunkSize = 2000
	now := time.Now().UTC()
	for start := 0; start < len(ticks); start += chunkSize {
		end := start + chunkSize
		if end > len(ticks) {
			end = len(ticks)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*6)
		for _, t := range ticks[start:end] {
			if t == nil || t.StockCode == "" {
				continue
			}
			var change, changePct float64
			if t.Change != nil {
				change = t.Change.InexactFloat64()
			}
			if t.ChangePct != nil {
				changePct = t.ChangePct.InexactFloat64()
			}
			var volume int64
			if t.Volume != nil {
				volume = *t.Volume
			}
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				now,
				t.StockCode,
				t.Price.InexactFloat64(),
				change,
				changePct,
				volume,
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (ts, stock_code, price, change, change_pct, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

// Query returns recent ticks for a symbol, newest first.
func (s *ClickHouseTickStore) Query(ctx context.Context, stockCode string, from, to time.Time, limit int) ([]*models.PriceUpdateEvent, error) {
	q := fmt.Sprintf("SELECT stock_code, price, change, change_pct, volume FROM %s WHERE stock_code = ? AND ts >= ? AND ts <= ? ORDER BY ts DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, stockCode, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []*models.PriceUpdateEvent
	for rows.Next() {
		var (
			code      string
			price     float64
			change    float64
			changePct float64
			volume    int64
		)
		if err := rows.Scan(&code, &price, &change, &changePct, &volume); err != nil {
			return nil, err
		}
		t := &models.PriceUpdateEvent{StockCode: code, Price: decimal.NewFromFloat(price)}
		c := decimal.NewFromFloat(change)
		t.Change = &c
		cp := decimal.NewFromFloat(changePct)
		t.ChangePct = &cp
		t.Volume = &volume
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

func (s *ClickHouseTickStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTickStore) Close() error {
	return nil // Managed by pkg
}
