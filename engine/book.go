package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Book is a single-instrument limit order book with strict price-time
// priority. Every operation is synchronous and runs to completion.
// A Book is not safe for concurrent use; route concurrent callers
// through an Engine.
type Book struct {
	bids   *sideIndex
	asks   *sideIndex
	orders map[string]*restingOrder
	seq    int64
	now    func() time.Time
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		bids:   newSideIndex(Buy),
		asks:   newSideIndex(Sell),
		orders: make(map[string]*restingOrder),
		now:    time.Now,
	}
}

// Submit validates an incoming order, matches it against the opposite
// side, and posts any unfilled remainder at its own price. It returns
// the executed trades in execution order; the slice is nil when the
// order posted without crossing. A rejected order leaves the book
// untouched, including the sequence counter.
func (b *Book) Submit(order Order) ([]Trade, error) {
	if err := validate(order); err != nil {
		return nil, err
	}
	if _, active := b.orders[order.ID]; active {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, order.ID)
	}

	b.seq++
	order.Sequence = b.seq
	order.Timestamp = b.now()

	trades := b.match(&order)
	if order.Quantity.IsPositive() {
		b.post(&order)
	}
	return trades, nil
}

// Cancel removes a resting order from its level and the order map.
// Canceling an unknown or already resolved id reports ErrNotFound and
// changes nothing; a second cancel of the same id fails the same way.
func (b *Book) Cancel(id string) error {
	ro, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ro.level.unlink(ro.elem)
	if ro.level.empty() {
		b.index(ro.order.Side).remove(ro.level)
	}
	delete(b.orders, id)
	return nil
}

// BestBid returns the highest resting bid price with the total
// quantity at that price.
func (b *Book) BestBid() (Quote, bool) {
	return bestQuote(b.bids)
}

// BestAsk returns the lowest resting ask price with the total
// quantity at that price.
func (b *Book) BestAsk() (Quote, bool) {
	return bestQuote(b.asks)
}

// Depth returns up to n levels per side, best first. n <= 0 returns
// every level.
func (b *Book) Depth(n int) BookView {
	return BookView{Bids: collect(b.bids, n), Asks: collect(b.asks, n)}
}

// Len reports the number of resting orders across both sides.
func (b *Book) Len() int {
	return len(b.orders)
}

func validate(order Order) error {
	if order.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidOrder)
	}
	if order.Side != Buy && order.Side != Sell {
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, int(order.Side))
	}
	if !order.Price.IsPositive() {
		return fmt.Errorf("%w: price %s must be positive", ErrInvalidOrder, order.Price)
	}
	if !order.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity %s must be positive", ErrInvalidOrder, order.Quantity)
	}
	return nil
}

// match trades the incoming order against the best opposite levels in
// price order, front of each queue first, until the order stops
// crossing or is exhausted. The resting price is authoritative for
// every trade.
func (b *Book) match(incoming *Order) []Trade {
	var trades []Trade
	opposite := b.asks
	if incoming.Side == Sell {
		opposite = b.bids
	}

	for incoming.Quantity.IsPositive() {
		level := opposite.best()
		if level == nil || !crosses(incoming, level.price) {
			break
		}

		maker := level.front()
		qty := decimal.Min(incoming.Quantity, maker.Quantity)
		incoming.Quantity = incoming.Quantity.Sub(qty)
		maker.Quantity = maker.Quantity.Sub(qty)
		level.reduce(qty)

		trades = append(trades, Trade{
			Price:     level.price,
			Quantity:  qty,
			TakerID:   incoming.ID,
			MakerID:   maker.ID,
			TakerSide: incoming.Side,
			Timestamp: b.now(),
		})

		if maker.Quantity.IsZero() {
			level.popFront()
			delete(b.orders, maker.ID)
			if level.empty() {
				opposite.remove(level)
			}
		}
	}
	return trades
}

// crosses reports whether the incoming limit reaches a resting price
// on the opposite side.
func crosses(incoming *Order, restingPrice decimal.Decimal) bool {
	if incoming.Side == Buy {
		return incoming.Price.GreaterThanOrEqual(restingPrice)
	}
	return incoming.Price.LessThanOrEqual(restingPrice)
}

// post appends the remainder to its own side, creating the price
// level if the price is new, and records the locator for cancels.
func (b *Book) post(order *Order) {
	ix := b.index(order.Side)
	level := ix.get(order.Price)
	if level == nil {
		level = newPriceLevel(order.Price)
		ix.insert(level)
	}
	elem := level.push(order)
	b.orders[order.ID] = &restingOrder{order: order, level: level, elem: elem}
}

func (b *Book) index(side Side) *sideIndex {
	if side == Buy {
		return b.bids
	}
	return b.asks
}

func bestQuote(ix *sideIndex) (Quote, bool) {
	level := ix.best()
	if level == nil {
		return Quote{}, false
	}
	return Quote{Price: level.price, Quantity: level.total}, true
}

func collect(ix *sideIndex, n int) []Quote {
	size := ix.len()
	if n > 0 && n < size {
		size = n
	}
	quotes := make([]Quote, 0, size)
	ix.scan(func(level *priceLevel) bool {
		quotes = append(quotes, Quote{Price: level.price, Quantity: level.total})
		return n <= 0 || len(quotes) < n
	})
	return quotes
}
