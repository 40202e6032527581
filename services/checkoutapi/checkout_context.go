package checkoutapi

import (
	"errors"
	"fmt"
	"time"
)

var ErrIncompleteBreakdown = errors.New("amount breakdown does not cover all bookings")

type AmountLine struct {
	BookingID string `json:"bookingId"`
	Subtotal  int64  `json:"subtotal"`
	Discount  int64  `json:"discount"`
	Amount    int64  `json:"amount"`
}

func NewAmountLine(bookingID string, subtotal int64, discount int64) AmountLine {
	amount := subtotal - discount
	if amount < 0 {
		amount = 0
	}
	return AmountLine{
		BookingID: bookingID,
		Subtotal:  subtotal,
		Discount:  discount,
		Amount:    amount,
	}
}

type AmountBreakdown []AmountLine

// TotalFor sums the amounts of exactly the given bookings.
// It fails rather than guessing when a booking has no line.
func (b AmountBreakdown) TotalFor(bookingIDs []string) (int64, error) {
	if len(bookingIDs) == 0 {
		return 0, fmt.Errorf("%w: no bookings", ErrIncompleteBreakdown)
	}
	total := int64(0)
	for _, id := range bookingIDs {
		line, found := b.lineFor(id)
		if !found {
			return 0, fmt.Errorf("%w: %s", ErrIncompleteBreakdown, id)
		}
		total += line.Amount
	}
	return total, nil
}

func (b AmountBreakdown) lineFor(bookingID string) (AmountLine, bool) {
	for _, line := range b {
		if line.BookingID == bookingID {
			return line, true
		}
	}
	return AmountLine{}, false
}

// CheckoutContext correlates one gateway redirect with the bookings it pays for.
type CheckoutContext struct {
	Reference   string
	BookingIDs  []string
	Breakdown   AmountBreakdown
	CartItemIDs []string
	CreatedAt   time.Time
}

func (cc CheckoutContext) Total() (int64, error) {
	return cc.Breakdown.TotalFor(cc.BookingIDs)
}

func (cc CheckoutContext) HoldsExactly(bookingIDs []string) bool {
	return SameBookingSet(cc.BookingIDs, bookingIDs)
}

// Outside returns the bookings of this context that are not in bookingIDs.
func (cc CheckoutContext) Outside(bookingIDs []string) []string {
	others := []string{}
	for _, id := range cc.BookingIDs {
		if !contains(bookingIDs, id) {
			others = append(others, id)
		}
	}
	return others
}

func SameBookingSet(a []string, b []string) bool {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) != len(setB) {
		return false
	}
	for id := range setA {
		if !setB[id] {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]bool {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
