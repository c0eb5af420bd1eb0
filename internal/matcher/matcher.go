// Package matcher implements the matching state machine that drives a
// book.Book: it decides, per incoming order, which resting orders to
// consume and in what quantity, enforces self-trade prevention, and
// implements the Fok probe/rollback mechanism without mutating any
// parked resting order's quantity until the incoming order is proven
// fully fillable.
package matcher

import (
	"fmt"

	"ironglass/internal/book"
	"ironglass/internal/eventlog"
	"ironglass/internal/order"
)

// InvariantViolation signals a programming error that should be
// unreachable in a correct build: a SameSide classification, or entering
// Fok processing with a non-empty recovery buffer. Matcher never recovers
// from these; Accept panics with an *InvariantViolation and expects the
// caller (cmd/ironglass) to turn it into a fatal process exit. A
// ReduceQuantity past zero is the other unreachable case; it panics with
// an *order.QuantityError instead, which cmd/ironglass does not recover.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation: %s", e.Reason)
}

func fatalf(format string, args ...any) {
	panic(&InvariantViolation{Reason: fmt.Sprintf(format, args...)})
}

// classification is the result of comparing an incoming order against a
// resting candidate.
type classification int

const (
	// ok means the pair crosses and neither self-trade prevention nor
	// side confusion blocks the match.
	ok classification = iota
	// sameSide means both orders are on the same side of the book; this
	// can only happen if the book itself is corrupt and is always fatal.
	sameSide
	// sameUser means self-trade prevention blocks this pair; the
	// resting order stays at the head of its side.
	sameUser
	// discrepancy means the pair does not cross at the current prices.
	discrepancy
)

// classify compares an incoming order against a resting candidate and
// decides whether the pair may trade.
func classify(incoming, resting *order.Order) classification {
	if incoming.Side() == resting.Side() {
		return sameSide
	}
	if incoming.UserID() == resting.UserID() {
		return sameUser
	}
	buyPrice, sellPrice := incoming.Price(), resting.Price()
	if incoming.Side() == order.Sell {
		buyPrice, sellPrice = resting.Price(), incoming.Price()
	}
	if buyPrice >= sellPrice {
		return ok
	}
	return discrepancy
}

// Matcher owns one book.Book and the transient recovery buffer used only
// during Fok processing. It is not safe for concurrent use: it relies on
// strictly single-threaded, lock-free access to keep its
// finalize-on-retirement emission ordering deterministic.
type Matcher struct {
	book           *book.Book
	recoveryBuffer []*order.Order
	sink           eventlog.Sink
}

// New returns a Matcher over an empty book, emitting events to sink.
func New(sink eventlog.Sink) *Matcher {
	return &Matcher{book: book.New(), sink: sink}
}

// Book exposes the underlying book for read-only inspection (tests,
// shutdown draining).
func (m *Matcher) Book() *book.Book { return m.book }

// Accept processes one incoming order to completion: emits Accepted,
// dispatches by discipline, and — if the order is not left resting on
// the book — finalizes it before returning. This is the engine's sole
// public operation; it never returns an error, and it either completes
// or panics with an *InvariantViolation (or an *order.QuantityError).
func (m *Matcher) Accept(o *order.Order) {
	o.EmitAccepted(m.sink)

	switch o.Type() {
	case order.Lim:
		m.commonMatch(o)
		if o.CurrentQty() > 0 {
			o.EmitQueued(m.sink)
			m.book.Push(o)
			return
		}
	case order.Ioc:
		m.commonMatch(o)
	case order.Fok:
		m.fokMatch(o)
	}

	// Neither Ioc nor Fok ever rests, and a Lim order with residual
	// already returned above — anything reaching here is leaving the
	// engine for good.
	o.Finalize(m.sink)
}

// commonMatch is the shared Lim/Ioc matching loop: consume resting
// liquidity opportunistically for as long as the book's best opposing
// order crosses and is tradeable against o.
func (m *Matcher) commonMatch(o *order.Order) {
	opposite := o.Side().Opposite()
	for {
		resting, found := m.book.PeekMut(opposite)
		if !found {
			return
		}

		switch classify(o, resting) {
		case ok:
			if o.CurrentQty() > resting.CurrentQty() {
				o.ReduceQuantity(resting.CurrentQty())
				resting.ReduceQuantity(resting.CurrentQty())
				m.book.Pop(opposite)
				resting.Finalize(m.sink)
				continue
			}
			restingQty := resting.CurrentQty()
			incomingQty := o.CurrentQty()
			resting.ReduceQuantity(incomingQty)
			o.ReduceQuantity(incomingQty)
			if restingQty == incomingQty {
				m.book.Pop(opposite)
				resting.Finalize(m.sink)
			}
			return
		case sameSide:
			fatalf("commonMatch observed SameSide classification")
		case sameUser, discrepancy:
			return
		}
	}
}

// fokMatch runs a probe phase that walks opposing liquidity without
// mutating any parked resting order's quantity until the incoming order
// is proven fully fillable, followed by commit (apply every probed
// reduction) or rollback (restore every popped order untouched).
func (m *Matcher) fokMatch(o *order.Order) {
	if len(m.recoveryBuffer) != 0 {
		fatalf("fok processing entered with a non-empty recovery buffer")
	}

	opposite := o.Side().Opposite()
	remaining := o.CurrentQty()
	type probe struct {
		resting *order.Order
		qty     uint64 // quantity this probe would consume from resting
	}
	var probes []probe

probing:
	for remaining > 0 {
		resting, found := m.book.Pop(opposite)
		if !found {
			break
		}
		m.recoveryBuffer = append(m.recoveryBuffer, resting)

		switch classify(o, resting) {
		case ok:
			take := min(remaining, resting.CurrentQty())
			probes = append(probes, probe{resting: resting, qty: take})
			remaining -= take
		case sameSide:
			fatalf("fokMatch observed SameSide classification")
		case sameUser, discrepancy:
			// Park untouched and stop probing; no further matches are
			// reachable past a blocking head.
			break probing
		}
	}

	if remaining == 0 {
		// Success: commit every probed reduction now, in probe order, then
		// finalize fully-consumed resting orders and reinsert the lone
		// partially-consumed one (if any).
		for _, p := range probes {
			p.resting.ReduceQuantity(p.qty)
		}
		o.ReduceQuantity(o.CurrentQty())
	}
	m.restoreRecovery()
}

// restoreRecovery restores whatever the probe phase left unresolved. The
// recovery buffer holds every order popped during the probe, in pop
// order (best-priority first). Any
// order left with CurrentQty > 0 (the untouched park on failure, or the
// partially-consumed tail order on success) is restored to the book;
// anything fully consumed by a successful probe is finalized here, in
// buffer order. Same-price siblings that the probe never popped must
// not leapfrog a restored order, so if the book's current head on the
// probed side shares the last parked order's price, that whole level is
// drained into the buffer (appended tail) before the buffer is replayed.
func (m *Matcher) restoreRecovery() {
	if len(m.recoveryBuffer) == 0 {
		return
	}

	last := m.recoveryBuffer[len(m.recoveryBuffer)-1]
	side := last.Side()
	if level, found := m.book.PeekLevel(side); found && level.Price == last.Price() {
		m.recoveryBuffer = m.book.DrainLevel(side, last.Price(), m.recoveryBuffer)
	}

	for _, o := range m.recoveryBuffer {
		if o.CurrentQty() > 0 {
			m.book.Push(o)
		} else {
			o.Finalize(m.sink)
		}
	}
	m.recoveryBuffer = m.recoveryBuffer[:0]
}

// Shutdown drains every resting order from both sides of the book,
// finalizing each. Buy side drains before Sell side; within a side,
// orders finalize in best-priority-first order.
func (m *Matcher) Shutdown() {
	for _, side := range []order.Side{order.Buy, order.Sell} {
		for {
			o, found := m.book.Pop(side)
			if !found {
				break
			}
			o.Finalize(m.sink)
		}
	}
}
