package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

// String returns the lowercase wire name for a side.
func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// ParseSide maps common wire names onto a Side.
func ParseSide(value string) (Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return Buy, nil
	case "sell", "ask", "s":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, value)
	}
}

// Order describes a single instruction to trade. Quantity is the
// remaining amount; the book decrements it as fills execute. Sequence
// and Timestamp are assigned by the book when the order is accepted.
type Order struct {
	ID        string
	Side      Side
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Timestamp time.Time
	Sequence  int64
}

// Trade captures one execution between an incoming taker and a resting
// maker. Price is always the resting order's price.
type Trade struct {
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	TakerID   string
	MakerID   string
	TakerSide Side
	Timestamp time.Time
}

// BuyOrderID returns the id of the buying party.
func (t Trade) BuyOrderID() string {
	if t.TakerSide == Buy {
		return t.TakerID
	}
	return t.MakerID
}

// SellOrderID returns the id of the selling party.
func (t Trade) SellOrderID() string {
	if t.TakerSide == Sell {
		return t.TakerID
	}
	return t.MakerID
}

// Quote summarizes one price level: the price and the total quantity
// resting at it.
type Quote struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// BookView is a depth snapshot of both sides, best levels first.
type BookView struct {
	Bids []Quote
	Asks []Quote
}

// BestBid returns the highest bid level in the view, if any.
func (v BookView) BestBid() (Quote, bool) {
	if len(v.Bids) == 0 {
		return Quote{}, false
	}
	return v.Bids[0], true
}

// BestAsk returns the lowest ask level in the view, if any.
func (v BookView) BestAsk() (Quote, bool) {
	if len(v.Asks) == 0 {
		return Quote{}, false
	}
	return v.Asks[0], true
}

// Config controls venue parameters enforced in front of the book.
type Config struct {
	Symbol        string
	TickSize      decimal.Decimal // zero disables the alignment check
	SnapshotDepth int             // levels per side in published views; 0 means full depth
}
