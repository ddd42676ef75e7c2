package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"cross-arb-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// SpreadTick is one decision cycle's view of both books.
type SpreadTick struct {
	Time        time.Time
	BidA        float64
	AskA        float64
	BidB        float64
	AskB        float64
	DiffForward float64
	DiffReverse float64
}

// TradeEvent is one leg open or close.
type TradeEvent struct {
	Time   time.Time
	Venue  string
	Side   string
	Kind   string
	Size   float64
	Price  float64
	Profit float64
}

// Writer journals spread ticks and trade events to TimescaleDB from bounded
// queues. Inserts never block the decision loop; overflow drops with a
// single warning.
type Writer struct {
	db     *sql.DB
	log    *zap.Logger
	schema string

	ticks      chan SpreadTick
	trades     chan TradeEvent
	started    atomic.Bool
	dropTick   atomic.Uint64
	dropTrades atomic.Uint64
}

func New(cfg config.JournalConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("journal dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: cfg.Schema,
		ticks:  make(chan SpreadTick, cfg.QueueSize),
		trades: make(chan TradeEvent, cfg.QueueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueTick(tick SpreadTick) {
	if w == nil {
		return
	}
	select {
	case w.ticks <- tick:
	default:
		if w.dropTick.Add(1) == 1 && w.log != nil {
			w.log.Warn("journal tick queue full")
		}
	}
}

func (w *Writer) EnqueueTrade(ev TradeEvent) {
	if w == nil {
		return
	}
	select {
	case w.trades <- ev:
	default:
		if w.dropTrades.Add(1) == 1 && w.log != nil {
			w.log.Warn("journal trade queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-w.ticks:
			w.writeTick(ctx, tick)
		case ev := <-w.trades:
			w.writeTrade(ctx, ev)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		bid_a DOUBLE PRECISION NOT NULL,
		ask_a DOUBLE PRECISION NOT NULL,
		bid_b DOUBLE PRECISION NOT NULL,
		ask_b DOUBLE PRECISION NOT NULL,
		diff_forward DOUBLE PRECISION NOT NULL,
		diff_reverse DOUBLE PRECISION NOT NULL
	)`, w.table("spread_ticks"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		venue TEXT NOT NULL,
		side TEXT NOT NULL,
		kind TEXT NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		profit DOUBLE PRECISION NOT NULL
	)`, w.table("trade_events"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	for _, table := range []string{"spread_ticks", "trade_events"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(table))); err != nil && w.log != nil {
			w.log.Warn("hypertable create failed", zap.String("table", table), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeTick(ctx context.Context, tick SpreadTick) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, bid_a, ask_a, bid_b, ask_b, diff_forward, diff_reverse)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, w.table("spread_ticks"))
	if _, err := w.db.ExecContext(ctx, query,
		tick.Time, tick.BidA, tick.AskA, tick.BidB, tick.AskB, tick.DiffForward, tick.DiffReverse,
	); err != nil && w.log != nil {
		w.log.Warn("journal tick insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, ev TradeEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (ts, venue, side, kind, size, price, profit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`, w.table("trade_events"))
	if _, err := w.db.ExecContext(ctx, query,
		ev.Time, ev.Venue, ev.Side, ev.Kind, ev.Size, ev.Price, ev.Profit,
	); err != nil && w.log != nil {
		w.log.Warn("journal trade insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
