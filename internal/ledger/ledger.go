package ledger

import (
	"sync"
	"time"

	"cross-arb-bot/internal/venue"
)

type Position string

const (
	PositionNone  Position = "none"
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// Hedge is the open-trade record: entry price and side per venue for the one
// hedge the controller may hold at a time.
type Hedge struct {
	EntryPriceA float64
	EntryPriceB float64
	SideA       venue.Side
	SideB       venue.Side
	Size        float64
	OpenedAt    time.Time
}

// Ledger tracks per-venue exposure and the open hedge. Positions flip on
// acknowledged placements: a non-reduce ack sets long/short by side, a
// reduce-only ack resets to none.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]Position
	hedge     *Hedge
}

func New(venueA, venueB string) *Ledger {
	return &Ledger{
		positions: map[string]Position{
			venueA: PositionNone,
			venueB: PositionNone,
		},
	}
}

func (l *Ledger) Position(venueName string) Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[venueName]
	if !ok {
		return PositionNone
	}
	return pos
}

func (l *Ledger) ApplyAck(venueName string, side venue.Side, reduceOnly bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reduceOnly {
		l.positions[venueName] = PositionNone
		return
	}
	if side == venue.SideBuy {
		l.positions[venueName] = PositionLong
	} else {
		l.positions[venueName] = PositionShort
	}
}

func (l *Ledger) Flat() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, pos := range l.positions {
		if pos != PositionNone {
			return false
		}
	}
	return true
}

func (l *Ledger) OpenHedge(h Hedge) {
	l.mu.Lock()
	copy := h
	l.hedge = &copy
	l.mu.Unlock()
}

func (l *Ledger) Hedge() (Hedge, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.hedge == nil {
		return Hedge{}, false
	}
	return *l.hedge, true
}

func (l *Ledger) ClearHedge() {
	l.mu.Lock()
	l.hedge = nil
	l.mu.Unlock()
}
