package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"matchbook/bots"
	"matchbook/engine"
)

func main() {
	duration := flag.Duration("duration", 30*time.Second, "how long to run the swarm")
	symbol := flag.String("symbol", "SIM", "instrument the engine trades")
	tickFlag := flag.String("tick", "0.01", "price increment")
	interval := flag.Duration("order-interval", 50*time.Millisecond, "global throttle between bot orders")
	depth := flag.Int("depth", 10, "levels per side in snapshots")
	seedFlag := flag.String("seed-price", "100.00", "price of the opening resting orders")
	flag.Parse()

	if *interval <= 0 {
		log.Fatalf("order interval must be positive, got %s", *interval)
	}
	tick, err := decimal.NewFromString(*tickFlag)
	if err != nil || !tick.IsPositive() {
		log.Fatalf("bad tick size %q", *tickFlag)
	}
	seedPrice, err := decimal.NewFromString(*seedFlag)
	if err != nil || !seedPrice.IsPositive() {
		log.Fatalf("bad seed price %q", *seedFlag)
	}

	eng := engine.NewEngine(engine.Config{Symbol: *symbol, TickSize: tick, SnapshotDepth: *depth})
	seedBook(eng, seedPrice, tick)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Infof("received %s, stopping", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Infof("running bot swarm on %s for %s (tick %s)", *symbol, *duration, tick)
	sup := bots.NewSupervisor(eng, *interval)
	sup.Start(ctx)

	view, _ := eng.Snapshot()
	eng.Stop()
	sup.Wait()

	position, cash := sup.PnL()
	log.Infof("final pnl position=%s cash=%s", position, cash)
	if bid, ok := view.BestBid(); ok {
		log.Infof("final best bid %s x %s", bid.Price, bid.Quantity)
	}
	if ask, ok := view.BestAsk(); ok {
		log.Infof("final best ask %s x %s", ask.Price, ask.Quantity)
	}
}

// seedBook rests one bid and one ask so the bots have a mid to quote around.
func seedBook(eng *engine.Engine, price, tick decimal.Decimal) {
	bid := engine.Order{
		ID:       "seed-bid",
		Side:     engine.Buy,
		Price:    price,
		Quantity: decimal.NewFromInt(10),
	}
	ask := engine.Order{
		ID:       "seed-ask",
		Side:     engine.Sell,
		Price:    price.Add(tick.Mul(decimal.NewFromInt(2))),
		Quantity: decimal.NewFromInt(10),
	}
	for _, order := range []engine.Order{bid, ask} {
		if _, err := eng.SubmitOrder(order); err != nil {
			log.Warnf("seed order %s rejected: %v", order.ID, err)
		}
	}
}
