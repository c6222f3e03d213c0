package bots

import (
	"github.com/shopspring/decimal"

	"matchbook/engine"
)

var two = decimal.NewFromInt(2)

func midPrice(view engine.BookView) decimal.Decimal {
	bid, hasBid := view.BestBid()
	ask, hasAsk := view.BestAsk()

	switch {
	case hasBid && hasAsk:
		return bid.Price.Add(ask.Price).Div(two)
	case hasBid:
		return bid.Price
	case hasAsk:
		return ask.Price
	default:
		return decimal.Zero
	}
}
