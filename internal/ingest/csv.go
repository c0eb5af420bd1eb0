// Package ingest decodes the textual CSV order-record stream into
// internal/order.Order values, outside the matching core's own
// invariants.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"ironglass/internal/order"
)

// wantHeader is the only accepted header row.
var wantHeader = []string{"order_type", "side", "price", "initial_qty", "user_id"}

// RowError reports a malformed input row by its one-based index (the
// header is row 1). It aborts the run: recoverable at the ingest
// boundary, fatal to the caller.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Reader decodes order records one at a time from an underlying CSV
// stream.
type Reader struct {
	r   *csv.Reader
	row int
}

// NewReader wraps r, validating that the first record matches the
// expected header. It returns a *RowError (row 1) if the header does not
// match or cannot be read.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(wantHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, &RowError{Row: 1, Err: fmt.Errorf("reading header: %w", err)}
	}
	if !equalHeader(header, wantHeader) {
		return nil, &RowError{Row: 1, Err: fmt.Errorf("unexpected header %v, want %v", header, wantHeader)}
	}
	return &Reader{r: cr, row: 1}, nil
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// Next decodes the next order record. It returns io.EOF once the stream
// is exhausted, or a *RowError identifying the offending one-based row on
// any decode or validation failure.
func (r *Reader) Next() (*order.Order, error) {
	record, err := r.r.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.row++
	if err != nil {
		return nil, &RowError{Row: r.row, Err: err}
	}

	orderType, err := parseOrderType(record[0])
	if err != nil {
		return nil, &RowError{Row: r.row, Err: err}
	}
	side, err := parseSide(record[1])
	if err != nil {
		return nil, &RowError{Row: r.row, Err: err}
	}
	price, err := strconv.ParseUint(record[2], 10, 64)
	if err != nil {
		return nil, &RowError{Row: r.row, Err: fmt.Errorf("parsing price: %w", err)}
	}
	initialQty, err := strconv.ParseUint(record[3], 10, 64)
	if err != nil {
		return nil, &RowError{Row: r.row, Err: fmt.Errorf("parsing initial_qty: %w", err)}
	}
	if initialQty < 1 {
		return nil, &RowError{Row: r.row, Err: fmt.Errorf("initial_qty must be >= 1, got %d", initialQty)}
	}
	userID, err := strconv.ParseUint(record[4], 10, 64)
	if err != nil {
		return nil, &RowError{Row: r.row, Err: fmt.Errorf("parsing user_id: %w", err)}
	}

	return order.New(orderType, side, price, initialQty, userID), nil
}

func parseOrderType(s string) (order.Type, error) {
	switch s {
	case "Lim":
		return order.Lim, nil
	case "Fok":
		return order.Fok, nil
	case "Ioc":
		return order.Ioc, nil
	default:
		return 0, fmt.Errorf("unknown order_type %q", s)
	}
}

func parseSide(s string) (order.Side, error) {
	switch s {
	case "Buy":
		return order.Buy, nil
	case "Sell":
		return order.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}
