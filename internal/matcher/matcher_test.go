package matcher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ironglass/internal/eventlog"
	"ironglass/internal/order"
)

// recordingSink captures every emitted event as a CSV line, in emission
// order.
type recordingSink struct {
	lines []string
}

func (s *recordingSink) Emit(event eventlog.Event, d eventlog.Descriptor) {
	s.lines = append(s.lines, fmt.Sprintf("%s,%s,%s,%d,%d,%d",
		event, d.Type, d.Side, d.Price, d.InitialQty, d.UserID))
}

func TestS1_FullMatch_SinglePair(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	sell := order.New(order.Lim, order.Sell, 95, 5, 2)
	m.Accept(buy)
	m.Accept(sell)
	m.Shutdown()

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,10,1",
		"Queued,Lim,Buy,100,10,1",
		"Accepted,Lim,Sell,95,5,2",
		"Executed,Lim,Sell,95,5,2",
		"PartiallyExecuted,Lim,Buy,100,10,1",
	}, sink.lines)
}

func TestS2_FOKFailure_LeavesBookIntact(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	fok := order.New(order.Fok, order.Sell, 95, 15, 2)
	m.Accept(buy)
	m.Accept(fok)

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,10,1",
		"Queued,Lim,Buy,100,10,1",
		"Accepted,Fok,Sell,95,15,2",
		"Canceled,Fok,Sell,95,15,2",
	}, sink.lines)

	// Book is unchanged: the resting buy order still has full residual.
	resting, ok := m.Book().PeekMut(order.Buy)
	require.True(t, ok)
	assert.Equal(t, uint64(10), resting.CurrentQty())

	m.Shutdown()
	assert.Equal(t, "Canceled,Lim,Buy,100,10,1", sink.lines[len(sink.lines)-1])
}

func TestS3_FOKExactFill(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	fok := order.New(order.Fok, order.Sell, 95, 10, 2)
	m.Accept(buy)
	m.Accept(fok)

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,10,1",
		"Queued,Lim,Buy,100,10,1",
		"Accepted,Fok,Sell,95,10,2",
		"Executed,Lim,Buy,100,10,1",
		"Executed,Fok,Sell,95,10,2",
	}, sink.lines)
}

func TestS4_IOC_PartialFillThenCancel(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	ioc := order.New(order.Ioc, order.Sell, 95, 15, 2)
	m.Accept(buy)
	m.Accept(ioc)

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,10,1",
		"Queued,Lim,Buy,100,10,1",
		"Accepted,Ioc,Sell,95,15,2",
		"Executed,Lim,Buy,100,10,1",
		"PartiallyExecuted,Ioc,Sell,95,15,2",
	}, sink.lines)
}

func TestS5_SelfTradePrevention_BlocksCrossablePair(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	sell := order.New(order.Lim, order.Sell, 95, 5, 1)
	m.Accept(buy)
	m.Accept(sell)

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,10,1",
		"Queued,Lim,Buy,100,10,1",
		"Accepted,Lim,Sell,95,5,1",
		"Queued,Lim,Sell,95,5,1",
	}, sink.lines)

	_, ok := m.Book().PeekMut(order.Buy)
	assert.True(t, ok)
	_, ok = m.Book().PeekMut(order.Sell)
	assert.True(t, ok)
}

func TestS6_PriorityWithinSide(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	m.Accept(order.New(order.Lim, order.Buy, 100, 5, 1))
	m.Accept(order.New(order.Lim, order.Buy, 102, 5, 2))
	m.Accept(order.New(order.Lim, order.Sell, 99, 5, 3))

	assert.Equal(t, []string{
		"Accepted,Lim,Buy,100,5,1",
		"Queued,Lim,Buy,100,5,1",
		"Accepted,Lim,Buy,102,5,2",
		"Queued,Lim,Buy,102,5,2",
		"Accepted,Lim,Sell,99,5,3",
		"Executed,Lim,Buy,102,5,2",
		"Executed,Lim,Sell,99,5,3",
	}, sink.lines)

	resting, ok := m.Book().PeekMut(order.Buy)
	require.True(t, ok)
	assert.Equal(t, uint64(100), resting.Price())
}

func TestFOK_SamePriceRollback_PreservesRelativeOrder(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	// Three resting sells at the same price, distinct owners.
	first := order.New(order.Lim, order.Sell, 100, 5, 10)
	second := order.New(order.Lim, order.Sell, 100, 5, 11)
	third := order.New(order.Lim, order.Sell, 100, 5, 12)
	m.Accept(first)
	m.Accept(second)
	m.Accept(third)

	// A FOK buy asking for more than the entire level's 15 units fails
	// and must restore all three resting sells in their original
	// relative order, untouched.
	fok := order.New(order.Fok, order.Buy, 100, 20, 99)
	m.Accept(fok)

	levels := m.Book().Levels(order.Sell)
	require.Len(t, levels, 1)
	require.Len(t, levels[0].Orders, 3)
	assert.Equal(t, first.ID(), levels[0].Orders[0].ID())
	assert.Equal(t, second.ID(), levels[0].Orders[1].ID())
	assert.Equal(t, third.ID(), levels[0].Orders[2].ID())
	for _, o := range levels[0].Orders {
		assert.Equal(t, uint64(5), o.CurrentQty())
	}
}

func TestFOK_SamePriceRollback_PartialProbeLeavesSiblingsInOrder(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	first := order.New(order.Lim, order.Sell, 100, 5, 10)
	second := order.New(order.Lim, order.Sell, 100, 5, 11)
	m.Accept(first)
	m.Accept(second)

	// A self-trading FOK blocks immediately against `first` (same
	// user), without ever touching `second`.
	fok := order.New(order.Fok, order.Buy, 100, 5, 10)
	m.Accept(fok)

	levels := m.Book().Levels(order.Sell)
	require.Len(t, levels, 1)
	require.Len(t, levels[0].Orders, 2)
	assert.Equal(t, first.ID(), levels[0].Orders[0].ID())
	assert.Equal(t, second.ID(), levels[0].Orders[1].ID())
}

func TestCommonMatch_SelfTrade_StopsAtHead(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	m.Accept(order.New(order.Lim, order.Sell, 100, 5, 1))
	m.Accept(order.New(order.Lim, order.Sell, 101, 5, 2))

	// Buy from user 1 cannot cross the user-1 resting sell at 100, even
	// though it could otherwise cross; it must not skip ahead to the
	// 101 level either, since that never crosses this buy's price.
	m.Accept(order.New(order.Lim, order.Buy, 100, 5, 1))

	levels := m.Book().Levels(order.Sell)
	require.Len(t, levels, 2)
	assert.Equal(t, uint64(100), levels[0].Price)
	assert.Equal(t, uint64(101), levels[1].Price)
}

func TestFatal_SameSideClassification(t *testing.T) {
	// A SameSide pair is unreachable via Matcher.Accept in a correct book,
	// but the classification that the matching loops treat as fatal is
	// directly testable.
	incoming := order.New(order.Lim, order.Buy, 100, 5, 1)
	resting := order.New(order.Lim, order.Buy, 100, 5, 2)
	assert.Equal(t, sameSide, classify(incoming, resting))
}

func TestQuantityConservation(t *testing.T) {
	sink := &recordingSink{}
	m := New(sink)

	buy := order.New(order.Lim, order.Buy, 100, 10, 1)
	sell1 := order.New(order.Lim, order.Sell, 95, 4, 2)
	sell2 := order.New(order.Lim, order.Sell, 96, 4, 3)
	m.Accept(buy)
	m.Accept(sell1)
	m.Accept(sell2)

	assert.Equal(t, uint64(2), buy.CurrentQty())
	assert.Equal(t, uint64(0), sell1.CurrentQty())
	assert.Equal(t, uint64(0), sell2.CurrentQty())
}
