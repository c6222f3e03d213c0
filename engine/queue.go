package engine

import (
	"container/list"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// priceLevel holds the FIFO queue of resting orders sharing one exact
// price on one side. The queue order is arrival order, and total is
// kept equal to the sum of remaining quantities in the queue.
type priceLevel struct {
	price  decimal.Decimal
	orders *list.List // of *Order
	total  decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price, orders: list.New()}
}

// push appends an order to the back of the queue and returns the
// element handle used for O(1) removal later.
func (l *priceLevel) push(o *Order) *list.Element {
	l.total = l.total.Add(o.Quantity)
	return l.orders.PushBack(o)
}

// front returns the earliest resting order. Levels held by a side
// index are never empty.
func (l *priceLevel) front() *Order {
	return l.orders.Front().Value.(*Order)
}

// reduce subtracts an executed quantity from the running total.
func (l *priceLevel) reduce(qty decimal.Decimal) {
	l.total = l.total.Sub(qty)
}

// unlink removes one element from the queue without disturbing the
// relative order of the rest. The order's remaining quantity leaves
// the running total with it.
func (l *priceLevel) unlink(elem *list.Element) *Order {
	o := elem.Value.(*Order)
	l.total = l.total.Sub(o.Quantity)
	l.orders.Remove(elem)
	return o
}

// popFront removes and returns the earliest resting order.
func (l *priceLevel) popFront() *Order {
	return l.unlink(l.orders.Front())
}

func (l *priceLevel) empty() bool {
	return l.orders.Len() == 0
}

// restingOrder locates a resting order for O(1) cancellation: the
// order itself, its level, and its position in the level's queue.
type restingOrder struct {
	order *Order
	level *priceLevel
	elem  *list.Element
}

// sideIndex keeps one side's price levels sorted best-first: bids
// descending, asks ascending. The best level is always the tree front.
type sideIndex struct {
	levels *btree.BTreeG[*priceLevel]
}

func newSideIndex(side Side) *sideIndex {
	less := func(a, b *priceLevel) bool { return a.price.LessThan(b.price) }
	if side == Buy {
		less = func(a, b *priceLevel) bool { return a.price.GreaterThan(b.price) }
	}
	// The book is single-writer, so the tree's own locking is skipped.
	return &sideIndex{levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true})}
}

// best returns the level at the front of the index, or nil when the
// side is empty.
func (ix *sideIndex) best() *priceLevel {
	level, ok := ix.levels.Min()
	if !ok {
		return nil
	}
	return level
}

// get finds the level resting at an exact price, or nil.
func (ix *sideIndex) get(price decimal.Decimal) *priceLevel {
	level, ok := ix.levels.Get(&priceLevel{price: price})
	if !ok {
		return nil
	}
	return level
}

func (ix *sideIndex) insert(level *priceLevel) {
	ix.levels.Set(level)
}

func (ix *sideIndex) remove(level *priceLevel) {
	ix.levels.Delete(level)
}

func (ix *sideIndex) len() int {
	return ix.levels.Len()
}

// scan visits levels best-first until fn returns false.
func (ix *sideIndex) scan(fn func(*priceLevel) bool) {
	ix.levels.Scan(fn)
}
