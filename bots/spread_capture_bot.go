package bots

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"matchbook/engine"
)

// SpreadCaptureBot maintains paired bids/asks and re-prices when the spread moves.
type SpreadCaptureBot struct {
	Interval       time.Duration
	Lifetime       time.Duration
	ThresholdTicks int64
	Quantity       decimal.Decimal
}

type pairedOrders struct {
	buyID     string
	sellID    string
	anchorMid decimal.Decimal
	placedAt  time.Time
}

func NewSpreadCaptureBot() *SpreadCaptureBot {
	return &SpreadCaptureBot{
		Interval:       300 * time.Millisecond,
		Lifetime:       3 * time.Second,
		ThresholdTicks: 3,
		Quantity:       decimal.NewFromInt(1),
	}
}

func (b *SpreadCaptureBot) Start(ctx context.Context, client EngineClient) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	var pair *pairedOrders
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			view, err := client.Snapshot(ctx)
			if err != nil {
				continue
			}
			pair = b.refreshPair(ctx, client, view, pair)
		}
	}
}

func (b *SpreadCaptureBot) refreshPair(ctx context.Context, client EngineClient, view engine.BookView, pair *pairedOrders) *pairedOrders {
	bid, hasBid := view.BestBid()
	ask, hasAsk := view.BestAsk()
	if !hasBid || !hasAsk {
		return b.cancelPair(ctx, client, pair)
	}
	mid := bid.Price.Add(ask.Price).Div(two)
	threshold := client.TickSize().Mul(decimal.NewFromInt(b.ThresholdTicks))

	if pair != nil {
		if time.Since(pair.placedAt) > b.Lifetime {
			return b.cancelPair(ctx, client, pair)
		}
		if mid.Sub(pair.anchorMid).Abs().GreaterThanOrEqual(threshold) {
			pair = b.cancelPair(ctx, client, pair)
		}
	}

	if pair != nil {
		return pair
	}

	tick := client.TickSize()
	buyPrice := bid.Price
	if mid.Sub(tick).IsPositive() {
		buyPrice = mid.Sub(tick)
	}
	sellPrice := ask.Price
	if sellPrice.LessThanOrEqual(buyPrice) {
		sellPrice = buyPrice.Add(tick)
	}

	buyID := client.NextID("spread-bid")
	sellID := client.NextID("spread-ask")

	buyOrder := engine.Order{ID: buyID, Side: engine.Buy, Price: buyPrice, Quantity: b.Quantity}
	sellOrder := engine.Order{ID: sellID, Side: engine.Sell, Price: sellPrice, Quantity: b.Quantity}

	if err := client.SubmitOrder(ctx, buyOrder); err != nil {
		return pair
	}
	if err := client.SubmitOrder(ctx, sellOrder); err != nil {
		_ = client.CancelOrder(ctx, buyID)
		return pair
	}

	return &pairedOrders{buyID: buyID, sellID: sellID, anchorMid: mid, placedAt: time.Now()}
}

func (b *SpreadCaptureBot) cancelPair(ctx context.Context, client EngineClient, pair *pairedOrders) *pairedOrders {
	if pair == nil {
		return nil
	}
	_ = client.CancelOrder(ctx, pair.buyID)
	_ = client.CancelOrder(ctx, pair.sellID)
	return nil
}
