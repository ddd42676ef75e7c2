package marketdata

import (
	"context"
	"sync"
	"time"

	"cross-arb-bot/internal/venue"

	"go.uber.org/zap"
)

// Cache holds the latest best bid/ask per venue. Each venue's stream runs as
// its own goroutine that resubscribes forever on error; the decision loop
// reads the latest cell and skips the cycle when a venue has no snapshot yet.
type Cache struct {
	symbol  string
	backoff time.Duration
	log     *zap.Logger

	mu    sync.RWMutex
	books map[string]venue.BookTop

	streamErrors func()
}

func New(symbol string, backoff time.Duration, log *zap.Logger) *Cache {
	return &Cache{
		symbol:  symbol,
		backoff: backoff,
		log:     log,
		books:   make(map[string]venue.BookTop),
	}
}

// OnStreamError registers a callback fired once per stream failure, used to
// feed the stream error counter.
func (c *Cache) OnStreamError(fn func()) {
	c.streamErrors = fn
}

func (c *Cache) Start(ctx context.Context, gateways ...venue.Gateway) {
	for _, gw := range gateways {
		go c.stream(ctx, gw)
	}
}

func (c *Cache) stream(ctx context.Context, gw venue.Gateway) {
	for {
		err := gw.StreamOrderBook(ctx, c.symbol, c.set)
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("order book stream ended, resubscribing",
			zap.String("venue", gw.Name()),
			zap.Duration("backoff", c.backoff),
			zap.Error(err),
		)
		if c.streamErrors != nil {
			c.streamErrors()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff):
		}
	}
}

func (c *Cache) set(top venue.BookTop) {
	c.mu.Lock()
	c.books[top.Venue] = top
	c.mu.Unlock()
}

func (c *Cache) Top(venueName string) (venue.BookTop, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	top, ok := c.books[venueName]
	return top, ok
}
