package stats

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cross-arb-bot/internal/state"
	"cross-arb-bot/internal/venue"

	"go.uber.org/zap"
)

const (
	logCapacity = 1000
	statsKey    = "stats:totals"
)

type TradeStats struct {
	TotalTrades int64   `json:"total_trades"`
	TotalAmount float64 `json:"total_amount"`
	TotalProfit float64 `json:"total_profit"`
}

type LogEntry struct {
	Time     time.Time `json:"time"`
	Category string    `json:"category"`
	Detail   string    `json:"detail"`
}

// Tick carries both venues' latest snapshots plus the two directional
// spreads, emitted every decision cycle regardless of action taken.
type Tick struct {
	TopA        venue.BookTop
	TopB        venue.BookTop
	DiffForward float64
	DiffReverse float64
}

type TradeKind string

const (
	TradeOpen  TradeKind = "open"
	TradeClose TradeKind = "close"
)

type TradeEvent struct {
	Venue  string
	Side   venue.Side
	Size   float64
	Price  float64
	Kind   TradeKind
	Profit float64
}

// Handlers are optional subscriber callbacks; nil fields are skipped.
type Handlers struct {
	OnTick  func(Tick)
	OnTrade func(TradeEvent)
	OnLog   func(string)
	OnStats func(TradeStats)
}

// Sink accumulates trade counters and a bounded rolling log, and fans
// structured events out to subscribers. Counters survive restarts through
// the KV store when one is provided.
type Sink struct {
	log   *zap.Logger
	store state.Store

	mu       sync.Mutex
	stats    TradeStats
	entries  []LogEntry
	handlers []Handlers
}

func New(log *zap.Logger, store state.Store) *Sink {
	return &Sink{log: log, store: store}
}

// Restore loads persisted counters. Missing or unreadable records leave the
// counters zeroed.
func (s *Sink) Restore(ctx context.Context) {
	if s.store == nil {
		return
	}
	raw, ok, err := s.store.Get(ctx, statsKey)
	if err != nil || !ok {
		return
	}
	var stats TradeStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		s.log.Warn("persisted stats unreadable", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func (s *Sink) Subscribe(h Handlers) {
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

// Record appends to the rolling log, evicting the oldest entry beyond the
// capacity bound.
func (s *Sink) Record(category, detail string) {
	entry := LogEntry{Time: time.Now().UTC(), Category: category, Detail: detail}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	if len(s.entries) > logCapacity {
		s.entries = s.entries[len(s.entries)-logCapacity:]
	}
	s.mu.Unlock()
}

func (s *Sink) RecordOpen(ctx context.Context, size float64) {
	s.mu.Lock()
	s.stats.TotalTrades++
	s.stats.TotalAmount += size
	snapshot := s.stats
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

func (s *Sink) RecordClose(ctx context.Context, profit float64) {
	s.mu.Lock()
	s.stats.TotalProfit += profit
	snapshot := s.stats
	s.mu.Unlock()
	s.persist(ctx, snapshot)
}

func (s *Sink) Snapshot() TradeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Sink) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Reset zeroes counters and clears the log. Operator-triggered only; the
// engine never calls this.
func (s *Sink) Reset(ctx context.Context) {
	s.mu.Lock()
	s.stats = TradeStats{}
	s.entries = nil
	s.mu.Unlock()
	s.persist(ctx, TradeStats{})
}

func (s *Sink) EmitTick(t Tick) {
	for _, h := range s.snapshotHandlers() {
		if h.OnTick != nil {
			h.OnTick(t)
		}
	}
}

func (s *Sink) EmitTrade(ev TradeEvent) {
	for _, h := range s.snapshotHandlers() {
		if h.OnTrade != nil {
			h.OnTrade(ev)
		}
	}
}

func (s *Sink) EmitLog(msg string) {
	for _, h := range s.snapshotHandlers() {
		if h.OnLog != nil {
			h.OnLog(msg)
		}
	}
}

func (s *Sink) EmitStats() {
	snapshot := s.Snapshot()
	for _, h := range s.snapshotHandlers() {
		if h.OnStats != nil {
			h.OnStats(snapshot)
		}
	}
}

func (s *Sink) snapshotHandlers() []Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Handlers, len(s.handlers))
	copy(out, s.handlers)
	return out
}

func (s *Sink) persist(ctx context.Context, snapshot TradeStats) {
	if s.store == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, statsKey, string(payload)); err != nil {
		s.log.Warn("failed to persist stats", zap.Error(err))
	}
}
