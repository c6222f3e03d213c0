package bots

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"matchbook/engine"
)

type ThrottledClient struct {
	engine   *engine.Engine
	throttle <-chan time.Time
	trades   <-chan engine.Trade
	mu       sync.Mutex
	orderSeq int64
	owned    map[string]struct{}
}

// NewThrottledClient wraps an engine with basic rate limiting and bookkeeping.
func NewThrottledClient(eng *engine.Engine, throttle <-chan time.Time) *ThrottledClient {
	return &ThrottledClient{
		engine:   eng,
		throttle: throttle,
		trades:   eng.Trades(),
		owned:    make(map[string]struct{}),
	}
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// SubmitOrder snaps the price down to the engine's tick grid and submits.
// Trades produced by the submission are observed through Trades, not here.
func (c *ThrottledClient) SubmitOrder(ctx context.Context, order engine.Order) error {
	if err := c.waitThrottle(ctx); err != nil {
		return err
	}
	tick := c.engine.TickSize()
	if order.Price.IsPositive() && !tick.IsZero() {
		order.Price = order.Price.Sub(order.Price.Mod(tick))
		if !order.Price.IsPositive() {
			order.Price = tick
		}
	}
	if _, err := c.engine.SubmitOrder(order); err != nil {
		return err
	}
	c.mu.Lock()
	c.owned[order.ID] = struct{}{}
	c.mu.Unlock()
	return nil
}

func (c *ThrottledClient) CancelOrder(ctx context.Context, orderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return c.engine.CancelOrder(orderID)
}

func (c *ThrottledClient) Snapshot(ctx context.Context) (engine.BookView, error) {
	type result struct {
		view engine.BookView
		err  error
	}
	done := make(chan result, 1)
	go func() {
		view, err := c.engine.Snapshot()
		done <- result{view: view, err: err}
	}()

	select {
	case <-ctx.Done():
		return engine.BookView{}, ctx.Err()
	case res := <-done:
		return res.view, res.err
	}
}

func (c *ThrottledClient) Trades() <-chan engine.Trade {
	return c.trades
}

func (c *ThrottledClient) Symbol() string {
	return c.engine.Symbol()
}

func (c *ThrottledClient) TickSize() decimal.Decimal {
	return c.engine.TickSize()
}

func (c *ThrottledClient) NextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderSeq++
	return fmt.Sprintf("%s-%d", prefix, c.orderSeq)
}

func (c *ThrottledClient) OwnsOrder(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owned[id]
	return ok
}
