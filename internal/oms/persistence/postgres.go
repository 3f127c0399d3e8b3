package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/s2"
)

// PostgresConfig configures the durable OMS order store.
type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" default:"20"`
	MaxIdleConns int    `yaml:"max_idle_conns" default:"5"`
	Table        string `yaml:"table" default:"oms_orders"`
}

// PostgresStore persists order snapshots to Postgres via pgx's stdlib
// driver and sqlx, s2-compressing the JSON-encoded fill slice before it hits
// the wire — fills accumulate without bound over an order's life and
// compress well since repeated fills against the same venue share most of
// their structure.
//
// Rows are keyed by (order_id, version): cfg.Table's primary key must be a
// composite (order_id, version), not order_id alone, so every version an
// order passes through is retained rather than overwritten. Callers are
// responsible for running the schema migration that creates that table
// ahead of time; PostgresStore does not migrate on startup.
//
//	CREATE TABLE oms_orders (
//	    order_id         BIGINT NOT NULL,
//	    version          BIGINT NOT NULL,
//	    client_order_id  TEXT NOT NULL,
//	    account_id       TEXT NOT NULL,
//	    symbol           TEXT NOT NULL,
//	    side             INT NOT NULL,
//	    order_type       INT NOT NULL,
//	    tif              INT NOT NULL,
//	    limit_price      BIGINT NOT NULL,
//	    stop_price       BIGINT NOT NULL,
//	    qty              BIGINT NOT NULL,
//	    strategy_id      TEXT NOT NULL,
//	    venue            TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    filled_qty       BIGINT NOT NULL,
//	    remaining_qty    BIGINT NOT NULL,
//	    avg_fill_price   BIGINT NOT NULL,
//	    reject_reason    TEXT NOT NULL,
//	    created_at       BIGINT NOT NULL,
//	    updated_at       BIGINT NOT NULL,
//	    gtt_deadline     BIGINT NOT NULL,
//	    fills_compressed BYTEA NOT NULL,
//	    PRIMARY KEY (order_id, version)
//	);
type PostgresStore struct {
	db    *sqlx.DB
	table string
}

// NewPostgresStore opens a pooled connection and prepares the store.
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Table == "" {
		cfg.Table = "oms_orders"
	}
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("persistence: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	return &PostgresStore{db: db, table: cfg.Table}, nil
}

// Close releases the underlying connection pool.
func (p *PostgresStore) Close() error { return p.db.Close() }

type orderRow struct {
	OrderID         int64  `db:"order_id"`
	Version         int64  `db:"version"`
	ClientOrderID   string `db:"client_order_id"`
	AccountID       string `db:"account_id"`
	Symbol          string `db:"symbol"`
	Side            int    `db:"side"`
	OrderType       int    `db:"order_type"`
	TIF             int    `db:"tif"`
	LimitPrice      int64  `db:"limit_price"`
	StopPrice       int64  `db:"stop_price"`
	Qty             int64  `db:"qty"`
	StrategyID      string `db:"strategy_id"`
	Venue           string `db:"venue"`
	Status          string `db:"status"`
	FilledQty       int64  `db:"filled_qty"`
	RemainingQty    int64  `db:"remaining_qty"`
	AvgFillPrice    int64  `db:"avg_fill_price"`
	RejectReason    string `db:"reject_reason"`
	CreatedAt       int64  `db:"created_at"`
	UpdatedAt       int64  `db:"updated_at"`
	GTTDeadline     int64  `db:"gtt_deadline"`
	FillsCompressed []byte `db:"fills_compressed"`
}

func rowFromRecord(o OrderRecord) (orderRow, error) {
	fillsJSON, err := json.Marshal(o.Fills)
	if err != nil {
		return orderRow{}, fmt.Errorf("persistence: marshal fills: %w", err)
	}
	return orderRow{
		OrderID:         o.OrderID,
		Version:         o.Version,
		ClientOrderID:   o.ClientOrderID,
		AccountID:       o.AccountID,
		Symbol:          o.Symbol,
		Side:            o.Side,
		OrderType:       o.Type,
		TIF:             o.TIF,
		LimitPrice:      o.LimitPrice,
		StopPrice:       o.StopPrice,
		Qty:             o.Qty,
		StrategyID:      o.StrategyID,
		Venue:           o.Venue,
		Status:          o.Status,
		FilledQty:       o.FilledQty,
		RemainingQty:    o.RemainingQty,
		AvgFillPrice:    o.AvgFillPrice,
		RejectReason:    o.RejectReason,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		GTTDeadline:     o.GTTDeadline,
		FillsCompressed: s2.Encode(nil, fillsJSON),
	}, nil
}

func (p *PostgresStore) insertQuery() string {
	return fmt.Sprintf(`
		INSERT INTO %s (
			order_id, version, client_order_id, account_id, symbol, side, order_type, tif,
			limit_price, stop_price, qty, strategy_id, venue, status, filled_qty, remaining_qty, avg_fill_price,
			reject_reason, created_at, updated_at, gtt_deadline, fills_compressed
		) VALUES (
			:order_id, :version, :client_order_id, :account_id, :symbol, :side, :order_type, :tif,
			:limit_price, :stop_price, :qty, :strategy_id, :venue, :status, :filled_qty, :remaining_qty, :avg_fill_price,
			:reject_reason, :created_at, :updated_at, :gtt_deadline, :fills_compressed
		)
		ON CONFLICT (order_id, version) DO NOTHING
	`, p.table)
}

// Save inserts one (order_id, version) row. A duplicate version for an
// order is a no-op rather than an overwrite — the row is append-only
// history, so a retried save of a version already landed is harmless.
func (p *PostgresStore) Save(ctx context.Context, o OrderRecord) error {
	row, err := rowFromRecord(o)
	if err != nil {
		return err
	}
	if _, err := p.db.NamedExecContext(ctx, p.insertQuery(), row); err != nil {
		return fmt.Errorf("persistence: save order %d version %d: %w", o.OrderID, o.Version, err)
	}
	return nil
}

// SaveBatch inserts every record inside one transaction: either the whole
// batch lands or none of it does.
func (p *PostgresStore) SaveBatch(ctx context.Context, records []OrderRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("persistence: begin batch: %w", err)
	}
	query := p.insertQuery()
	for _, o := range records {
		row, err := rowFromRecord(o)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("persistence: batch save order %d version %d: %w", o.OrderID, o.Version, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("persistence: commit batch: %w", err)
	}
	return nil
}

// LoadAll reads the latest version of every persisted order, decompressing
// and decoding its fills.
func (p *PostgresStore) LoadAll(ctx context.Context) ([]OrderRecord, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT ON (order_id) *
		FROM %s
		ORDER BY order_id, version DESC
	`, p.table)
	var rows []orderRow
	if err := p.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("persistence: load all: %w", err)
	}

	out := make([]OrderRecord, 0, len(rows))
	for _, r := range rows {
		fillsJSON, err := s2.Decode(nil, r.FillsCompressed)
		if err != nil {
			return nil, fmt.Errorf("persistence: decompress fills for order %d: %w", r.OrderID, err)
		}
		var fills []FillRecord
		if len(fillsJSON) > 0 {
			if err := json.Unmarshal(fillsJSON, &fills); err != nil {
				return nil, fmt.Errorf("persistence: unmarshal fills for order %d: %w", r.OrderID, err)
			}
		}
		out = append(out, OrderRecord{
			OrderID:       r.OrderID,
			Version:       r.Version,
			ClientOrderID: r.ClientOrderID,
			AccountID:     r.AccountID,
			Symbol:        r.Symbol,
			Side:          r.Side,
			Type:          r.OrderType,
			TIF:           r.TIF,
			LimitPrice:    r.LimitPrice,
			StopPrice:     r.StopPrice,
			Qty:           r.Qty,
			StrategyID:    r.StrategyID,
			Venue:         r.Venue,
			Status:        r.Status,
			FilledQty:     r.FilledQty,
			RemainingQty:  r.RemainingQty,
			AvgFillPrice:  r.AvgFillPrice,
			RejectReason:  r.RejectReason,
			CreatedAt:     r.CreatedAt,
			UpdatedAt:     r.UpdatedAt,
			GTTDeadline:   r.GTTDeadline,
			Fills:         fills,
		})
	}
	return out, nil
}
