// Package order defines the Order record that flows through the matching
// core: immutable in identity, mutable only in residual quantity, and
// responsible for emitting its own terminal lifecycle event when it is
// retired.
package order

import (
	"fmt"

	"github.com/google/uuid"
	"ironglass/internal/eventlog"
)

// Side is the direction of an order.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Type is the order discipline governing residual handling.
type Type int

const (
	// Lim is a limit order: residual rests on the book.
	Lim Type = iota
	// Ioc is immediate-or-cancel: matches opportunistically, residual
	// discarded.
	Ioc
	// Fok is fill-or-kill: matches atomically in full, or not at all.
	Fok
)

func (t Type) String() string {
	switch t {
	case Lim:
		return "Lim"
	case Ioc:
		return "Ioc"
	case Fok:
		return "Fok"
	default:
		return "Unknown"
	}
}

// QuantityError is the value ReduceQuantity panics with when asked to
// reduce past the order's current residual; it is always a
// programming-error signal (spec §7's InvariantViolation), never a
// business outcome.
type QuantityError struct {
	OrderID    uuid.UUID
	CurrentQty uint64
	Requested  uint64
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("order %s: cannot reduce quantity by %d, only %d available",
		e.OrderID, e.Requested, e.CurrentQty)
}

// Order is the atomic record flowing through the matching core. Every
// field but CurrentQty is write-once, set at construction by New.
type Order struct {
	id         uuid.UUID
	orderType  Type
	side       Side
	price      uint64
	initialQty uint64
	currentQty uint64
	userID     uint64

	finalized bool
}

// New constructs an order with CurrentQty = InitialQty. initialQty must be
// >= 1; callers at the ingest boundary are responsible for rejecting zero
// quantities before reaching here.
func New(orderType Type, side Side, price, initialQty, userID uint64) *Order {
	return &Order{
		id:         uuid.New(),
		orderType:  orderType,
		side:       side,
		price:      price,
		initialQty: initialQty,
		currentQty: initialQty,
		userID:     userID,
	}
}

func (o *Order) ID() uuid.UUID    { return o.id }
func (o *Order) Type() Type       { return o.orderType }
func (o *Order) Side() Side       { return o.side }
func (o *Order) Price() uint64    { return o.price }
func (o *Order) InitialQty() uint64 { return o.initialQty }
func (o *Order) CurrentQty() uint64 { return o.currentQty }
func (o *Order) UserID() uint64   { return o.userID }

// ReduceQuantity reduces the residual quantity by qty. It panics with a
// *QuantityError if qty exceeds the current residual; this must be
// unreachable in a correct matching loop.
func (o *Order) ReduceQuantity(qty uint64) {
	if qty > o.currentQty {
		panic(&QuantityError{OrderID: o.id, CurrentQty: o.currentQty, Requested: qty})
	}
	o.currentQty -= qty
}

// descriptor builds the static event descriptor for this order.
func (o *Order) descriptor() eventlog.Descriptor {
	return eventlog.Descriptor{
		Type:       o.orderType,
		Side:       o.side,
		Price:      o.price,
		InitialQty: o.initialQty,
		UserID:     o.userID,
	}
}

// EmitAccepted emits the external Accepted event for this order. Called
// once, immediately on entry to Matcher.Accept.
func (o *Order) EmitAccepted(sink eventlog.Sink) {
	sink.Emit(eventlog.Accepted, o.descriptor())
}

// EmitQueued emits the external Queued event for this order. Called only
// for a Lim order with residual quantity, immediately before it rests on
// the book.
func (o *Order) EmitQueued(sink eventlog.Sink) {
	sink.Emit(eventlog.Queued, o.descriptor())
}

// Finalize emits the terminal event for this order and marks it retired.
// It is called exactly once: at the end of Accept for an order that
// never rests, immediately after a Book.Pop that fully consumes a
// resting order, when the Fok recovery buffer is restored for a resting
// order a Fok fill consumed, or in book-drain order at engine shutdown. Calling
// Finalize twice on the same order is a programming error and panics.
func (o *Order) Finalize(sink eventlog.Sink) {
	if o.finalized {
		panic(fmt.Sprintf("order %s finalized twice", o.id))
	}
	o.finalized = true

	var event eventlog.Event
	switch o.orderType {
	case Fok:
		if o.currentQty == 0 {
			event = eventlog.Executed
		} else {
			event = eventlog.Canceled
		}
	default: // Lim, Ioc
		switch {
		case o.currentQty == 0:
			event = eventlog.Executed
		case o.currentQty < o.initialQty:
			event = eventlog.PartiallyExecuted
		default:
			event = eventlog.Canceled
		}
	}
	sink.Emit(event, o.descriptor())
}

// Equal reports whether two orders have the same shape: type, side,
// price, initial quantity, and owner. It ignores the internal identity
// token and residual quantity. Book and matcher logic never call it;
// they always compare by ID.
func (o *Order) Equal(other *Order) bool {
	return o.orderType == other.orderType &&
		o.side == other.side &&
		o.price == other.price &&
		o.initialQty == other.initialQty &&
		o.userID == other.userID
}
