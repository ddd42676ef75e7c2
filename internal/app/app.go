package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cross-arb-bot/internal/alerts"
	"cross-arb-bot/internal/config"
	"cross-arb-bot/internal/engine"
	"cross-arb-bot/internal/exec"
	"cross-arb-bot/internal/journal"
	"cross-arb-bot/internal/ledger"
	"cross-arb-bot/internal/marketdata"
	"cross-arb-bot/internal/metrics"
	"cross-arb-bot/internal/state/sqlite"
	"cross-arb-bot/internal/stats"
	"cross-arb-bot/internal/venue"
	"cross-arb-bot/internal/venue/aster"
	"cross-arb-bot/internal/venue/bitget"

	"go.uber.org/zap"
)

type App struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *sqlite.Store
	gwA     venue.Gateway
	gwB     venue.Gateway
	cache   *marketdata.Cache
	ledger  *ledger.Ledger
	sink    *stats.Sink
	coord   *exec.Coordinator
	engine  *engine.Engine
	metrics *metrics.Metrics
	prom    *metrics.Prometheus
	alerts  *alerts.Telegram
	journal *journal.Writer

	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	gwA, err := newGateway(cfg.VenueA, log)
	if err != nil {
		return nil, err
	}
	gwB, err := newGateway(cfg.VenueB, log)
	if err != nil {
		return nil, err
	}

	m := metrics.NewNoop()
	var prom *metrics.Prometheus
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	cache := marketdata.New(cfg.Strategy.Symbol, cfg.Strategy.ResubscribeBackoff, log)
	cache.OnStreamError(m.StreamErrors.Inc)
	led := ledger.New(gwA.Name(), gwB.Name())
	sink := stats.New(log, store)
	coord := exec.New(gwA, gwB, led, sink, m, log,
		cfg.Strategy.Symbol, cfg.Strategy.TradeAmount,
		cfg.Strategy.FillPollAttempts, cfg.Strategy.FillPollInterval,
	)
	eng := engine.New(cfg.Strategy, cache, coord, led, sink, store, m, log, gwA.Name(), gwB.Name())

	journalWriter, err := journal.New(cfg.Journal, log)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		log:     log,
		store:   store,
		gwA:     gwA,
		gwB:     gwB,
		cache:   cache,
		ledger:  led,
		sink:    sink,
		coord:   coord,
		engine:  eng,
		metrics: m,
		prom:    prom,
		alerts:  alerts.NewTelegram(cfg.Telegram, log),
		journal: journalWriter,
	}, nil
}

func newGateway(cfg config.VenueConfig, log *zap.Logger) (venue.Gateway, error) {
	prefix := strings.ToUpper(cfg.Name)
	apiKey := strings.TrimSpace(os.Getenv(prefix + "_API_KEY"))
	apiSecret := strings.TrimSpace(os.Getenv(prefix + "_API_SECRET"))
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%s_API_KEY and %s_API_SECRET are required", prefix, prefix)
	}
	switch cfg.Kind {
	case "aster":
		return aster.New(cfg, apiKey, apiSecret, log), nil
	case "bitget":
		passphrase := strings.TrimSpace(os.Getenv(prefix + "_API_PASSPHRASE"))
		if passphrase == "" {
			return nil, fmt.Errorf("%s_API_PASSPHRASE is required", prefix)
		}
		return bitget.New(cfg, apiKey, apiSecret, passphrase, log), nil
	default:
		return nil, fmt.Errorf("unknown venue kind: %s", cfg.Kind)
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	a.sink.Restore(ctx)
	if a.journal != nil {
		a.journal.Start(ctx)
		defer a.journal.Close()
	}
	a.subscribeHandlers(ctx)
	a.serveMetrics(ctx)
	if err := a.engine.Restore(ctx); err != nil {
		a.log.Warn("hedge snapshot restore failed", zap.Error(err))
	}
	a.cache.Start(ctx, a.gwA, a.gwB)
	a.startOperator(ctx)
	a.log.Info("arbitrage controller started",
		zap.String("symbol", a.cfg.Strategy.Symbol),
		zap.String("venue_a", a.gwA.Name()),
		zap.String("venue_b", a.gwB.Name()),
	)
	return a.engine.Run(ctx)
}

func (a *App) subscribeHandlers(ctx context.Context) {
	a.sink.Subscribe(stats.Handlers{
		OnTick: func(t stats.Tick) {
			a.journal.EnqueueTick(journal.SpreadTick{
				Time:        time.Now().UTC(),
				BidA:        t.TopA.BidPrice,
				AskA:        t.TopA.AskPrice,
				BidB:        t.TopB.BidPrice,
				AskB:        t.TopB.AskPrice,
				DiffForward: t.DiffForward,
				DiffReverse: t.DiffReverse,
			})
		},
		OnTrade: func(ev stats.TradeEvent) {
			a.journal.EnqueueTrade(journal.TradeEvent{
				Time:   time.Now().UTC(),
				Venue:  ev.Venue,
				Side:   string(ev.Side),
				Kind:   string(ev.Kind),
				Size:   ev.Size,
				Price:  ev.Price,
				Profit: ev.Profit,
			})
		},
		OnLog: func(msg string) {
			if !a.alerts.Enabled() {
				return
			}
			go func() {
				if err := a.alerts.Send(ctx, msg); err != nil {
					a.log.Warn("alert send failed", zap.Error(err))
				}
			}()
		},
	})
}

func (a *App) serveMetrics(ctx context.Context) {
	if a.prom == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.prom.Handler())
	srv := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
