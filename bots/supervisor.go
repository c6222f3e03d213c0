package bots

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"matchbook/engine"
)

// Supervisor orchestrates multiple bots with a shared client and PnL tracking.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
	drained  chan struct{}
}

// NewSupervisor builds a default swarm of bots and a throttled client.
func NewSupervisor(eng *engine.Engine, orderInterval time.Duration) *Supervisor {
	throttle := time.NewTicker(orderInterval)
	client := NewThrottledClient(eng, throttle.C)
	swarm := []Bot{
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewSpreadCaptureBot(),
	}
	return &Supervisor{
		bots:     swarm,
		client:   client,
		pnl:      &pnlTracker{},
		throttle: throttle,
		drained:  make(chan struct{}),
	}
}

// Start launches all bots and PnL monitoring, then blocks until the
// context is canceled and every bot has wound down.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	var wg sync.WaitGroup
	for _, bot := range s.bots {
		b := bot
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Start(ctx, s.client)
		}()
	}

	go s.consumeTrades()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-logTicker.C:
			position, cash := s.pnl.Snapshot()
			log.Infof("pnl symbol=%s position=%s cash=%s", s.client.Symbol(), position, cash)
		}
	}
}

// Wait blocks until the trade stream has been drained. Call it after
// stopping the engine to get a complete final PnL.
func (s *Supervisor) Wait() {
	<-s.drained
}

// PnL reports the swarm's net position and cash from observed trades.
func (s *Supervisor) PnL() (position, cash decimal.Decimal) {
	return s.pnl.Snapshot()
}

// consumeTrades drains the engine's trade stream until it is closed, so
// the worker loop never stalls on a full buffer during shutdown.
func (s *Supervisor) consumeTrades() {
	defer close(s.drained)
	for trade := range s.client.Trades() {
		s.pnl.Record(trade, s.client)
	}
}

type pnlTracker struct {
	mu       sync.Mutex
	position decimal.Decimal
	cash     decimal.Decimal
}

func (p *pnlTracker) Record(trade engine.Trade, client EngineClient) {
	notional := trade.Price.Mul(trade.Quantity)
	p.mu.Lock()
	defer p.mu.Unlock()
	if client.OwnsOrder(trade.BuyOrderID()) {
		p.position = p.position.Add(trade.Quantity)
		p.cash = p.cash.Sub(notional)
	}
	if client.OwnsOrder(trade.SellOrderID()) {
		p.position = p.position.Sub(trade.Quantity)
		p.cash = p.cash.Add(notional)
	}
}

func (p *pnlTracker) Snapshot() (decimal.Decimal, decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}
