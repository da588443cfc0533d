// Package postgres stores trade history in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// appendLockKey serialises Append across processes sharing one database.
const appendLockKey int64 = 0x686f6f6b

const schemaSQL = `
CREATE TABLE IF NOT EXISTS trade_history (
	seq            BIGSERIAL PRIMARY KEY,
	id             TEXT        NOT NULL UNIQUE,
	timestamp      TIMESTAMPTZ NOT NULL,
	symbol         TEXT        NOT NULL,
	side           TEXT        NOT NULL,
	qty            NUMERIC     NOT NULL,
	entry          NUMERIC     NOT NULL,
	stop           NUMERIC     NOT NULL,
	order_id       TEXT        NOT NULL DEFAULT '',
	close_order_id TEXT        NOT NULL DEFAULT '',
	status         TEXT        NOT NULL,
	mode           TEXT        NOT NULL DEFAULT '',
	message        TEXT        NOT NULL DEFAULT '',
	extra          JSONB
);
CREATE INDEX IF NOT EXISTS trade_history_side_idx ON trade_history (side);
CREATE INDEX IF NOT EXISTS trade_history_symbol_idx ON trade_history (symbol);
`

const selectColumns = `id, timestamp, symbol, side, qty::text, entry::text, stop::text,
	order_id, close_order_id, status, mode, message, COALESCE(extra::text, '')`

type Store struct {
	pool     *pgxpool.Pool
	capacity int
}

func New(ctx context.Context, dsn string, capacity int) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate trade_history: %w", err)
	}
	if capacity <= 0 {
		capacity = store.DefaultCapacity
	}
	return &Store{pool: pool, capacity: capacity}, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()
	return fn(tx)
}

const (
	lockSQL   = `SELECT pg_advisory_xact_lock($1)`
	insertSQL = `
INSERT INTO trade_history (id, timestamp, symbol, side, qty, entry, stop, order_id, close_order_id, status, mode, message, extra)
VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9, $10, $11, $12, $13::jsonb)
RETURNING seq`
	evictSQL = `
DELETE FROM trade_history
WHERE seq NOT IN (SELECT seq FROM trade_history ORDER BY seq DESC LIMIT $1)`
)

// txRunner 是 appendLocked 需要的 pgx.Tx 子集。
type txRunner interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) Append(ctx context.Context, rec *model.TradeRecord) error {
	if rec == nil {
		return fmt.Errorf("trade record cannot be nil")
	}
	store.Prepare(rec)
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return appendLocked(ctx, tx, rec, s.capacity)
	})
}

// appendLocked 在同一事务内：取 advisory 锁、插入、按 seq 淘汰超出 capacity 的旧记录。
func appendLocked(ctx context.Context, tx txRunner, rec *model.TradeRecord, capacity int) error {
	var extra any
	if len(rec.Extra) > 0 {
		extra = string(rec.Extra)
	}
	if _, err := tx.Exec(ctx, lockSQL, appendLockKey); err != nil {
		return fmt.Errorf("failed to lock trade_history: %w", err)
	}
	err := tx.QueryRow(ctx, insertSQL,
		rec.ID, rec.Timestamp, rec.Symbol, rec.Side,
		rec.Quantity.String(), rec.Entry.String(), rec.Stop.String(),
		rec.OrderID, rec.CloseOrderID, string(rec.Status), rec.Mode, rec.Message, extra,
	).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert trade record: %w", err)
	}
	if _, err := tx.Exec(ctx, evictSQL, capacity); err != nil {
		return fmt.Errorf("failed to evict trade records: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]model.TradeRecord, error) {
	query, args := listQuery(f.Normalize())
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade_history: %w", err)
	}
	defer rows.Close()

	var out []model.TradeRecord
	for rows.Next() {
		var (
			rec              model.TradeRecord
			qty, entry, stop string
			status, extra    string
		)
		if err := rows.Scan(&rec.Seq, &rec.ID, &rec.Timestamp, &rec.Symbol, &rec.Side, &qty, &entry, &stop,
			&rec.OrderID, &rec.CloseOrderID, &status, &rec.Mode, &rec.Message, &extra); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		rec.Quantity = decimal.RequireFromString(qty)
		rec.Entry = decimal.RequireFromString(entry)
		rec.Stop = decimal.RequireFromString(stop)
		rec.Status = model.TradeStatus(status)
		if extra != "" {
			rec.Extra = datatypes.JSON(extra)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM trade_history`).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// listQuery 按 Filter 生成查询；Limit 先取最新 N 条再按 seq 升序返回。
func listQuery(f store.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.Side != "" {
		args = append(args, f.Side)
		where = append(where, fmt.Sprintf("side = $%d", len(args)))
	}
	if f.Symbol != "" {
		args = append(args, f.Symbol)
		where = append(where, fmt.Sprintf("symbol = $%d", len(args)))
	}
	query := "SELECT seq, " + selectColumns + " FROM trade_history"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		return fmt.Sprintf("SELECT * FROM (%s ORDER BY seq DESC LIMIT $%d) recent ORDER BY seq ASC", query, len(args)), args
	}
	return query + " ORDER BY seq ASC", args
}
