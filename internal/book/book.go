// Package book implements the two-sided, price-priority resting-order
// store. Book is a pure priority container: it knows nothing about
// matching rules, self-trade prevention, or order disciplines, mirroring
// an order book but generalized down to the single
// two-sided book a single-symbol core needs.
package book

import (
	"github.com/tidwall/btree"
	"ironglass/internal/order"
)

// PriceLevel groups every resting order at a single price, kept in
// arrival order. Arrival order within a level is preserved across pushes
// and is the ordering the FOK recovery path (internal/matcher) relies on
// for same-price rollback stability.
type PriceLevel struct {
	Price  uint64
	Orders []*order.Order
}

// Levels is the per-side price-indexed tree.
type Levels = btree.BTreeG[*PriceLevel]

// Book holds the resting bid and ask sides. Every resting order satisfies
// CurrentQty > 0; no order ever appears on both sides; the zero value is
// not usable, use New.
type Book struct {
	Bids *Levels // best = highest price
	Asks *Levels // best = lowest price
}

// New returns an empty two-sided book.
func New() *Book {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
	return &Book{Bids: bids, Asks: asks}
}

func (b *Book) levels(side order.Side) *Levels {
	if side == order.Buy {
		return b.Bids
	}
	return b.Asks
}

// Push inserts o into the side-appropriate level, at the level's price
// priority, appending behind any order already resting at that price.
func (b *Book) Push(o *order.Order) {
	levels := b.levels(o.Side())
	if level, ok := levels.GetMut(&PriceLevel{Price: o.Price()}); ok {
		level.Orders = append(level.Orders, o)
		return
	}
	levels.Set(&PriceLevel{Price: o.Price(), Orders: []*order.Order{o}})
}

// Pop removes and returns the best-priority order on side, or (nil,
// false) if that side is empty. The emptied level is deleted from the
// tree once its last order is removed.
func (b *Book) Pop(side order.Side) (*order.Order, bool) {
	levels := b.levels(side)
	level, ok := levels.MinMut()
	if !ok {
		return nil, false
	}
	o := level.Orders[0]
	level.Orders = level.Orders[1:]
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	return o, true
}

// PeekMut returns a mutable handle to the best-priority order on side
// without removing it, for in-place residual reduction. The handle is
// only valid until the next mutating call on this side (Push/Pop).
func (b *Book) PeekMut(side order.Side) (*order.Order, bool) {
	levels := b.levels(side)
	level, ok := levels.MinMut()
	if !ok {
		return nil, false
	}
	return level.Orders[0], true
}

// PeekLevel returns the best-priority price level on side, or (nil,
// false) if empty, without removing anything. It exists for the FOK
// recovery path, which must compare the current best price against the
// price of a parked order before deciding whether to drain the level.
func (b *Book) PeekLevel(side order.Side) (*PriceLevel, bool) {
	return b.levels(side).MinMut()
}

// DrainLevel pops every resting order at exactly price on side into dst,
// in head-to-tail order, and returns the extended slice. It stops as soon
// as the book's best level on side is empty or no longer at price. Used
// only by the FOK recovery path to collect same-price siblings before a
// restore.
func (b *Book) DrainLevel(side order.Side, price uint64, dst []*order.Order) []*order.Order {
	for {
		level, ok := b.PeekLevel(side)
		if !ok || level.Price != price {
			return dst
		}
		o, _ := b.Pop(side)
		dst = append(dst, o)
	}
}

// Levels returns every resting price level on side, best-first. It exists
// for tests that need to assert on book shape; production matching code
// never needs a full traversal.
func (b *Book) Levels(side order.Side) []*PriceLevel {
	return b.levels(side).Items()
}
