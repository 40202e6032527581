package checkoutapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	formcodec "github.com/go-playground/form/v4"

	"github.com/MarcGrol/bookingportal/lib/myerrors"
)

// StartCheckout is the form posted by the cart or by a direct "book now".
type StartCheckout struct {
	BookingIDs  []string `form:"bookingIds"`
	Lines       []Line   `form:"lines"`
	CartItemIDs []string `form:"cartItemIds"`
}

type Line struct {
	BookingID string `form:"bookingId"`
	Subtotal  int64  `form:"subtotal"`
	Discount  int64  `form:"discount"`
}

func NewFromRequest(r *http.Request) (StartCheckout, error) {
	err := r.ParseForm()
	if err != nil {
		return StartCheckout{}, myerrors.NewInvalidInputError(err)
	}
	return NewFromValues(r.Form)
}

func NewFromValues(values url.Values) (StartCheckout, error) {
	start := StartCheckout{}
	err := formcodec.NewDecoder().Decode(&start, values)
	if err != nil {
		return start, myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}

	return start, nil
}

// ToContext validates the form and turns it into a CheckoutContext.
// Without explicit booking ids, the bookings of the amount lines are used.
func (s StartCheckout) ToContext(reference string, createdAt time.Time) (CheckoutContext, error) {
	bookingIDs := cleanIDs(s.BookingIDs)
	if len(bookingIDs) == 0 {
		for _, line := range s.Lines {
			bookingIDs = append(bookingIDs, line.BookingID)
		}
		bookingIDs = cleanIDs(bookingIDs)
	}
	if len(bookingIDs) == 0 {
		return CheckoutContext{}, myerrors.NewInvalidInputError(fmt.Errorf("no bookings selected"))
	}

	breakdown := AmountBreakdown{}
	for _, line := range s.Lines {
		id := strings.TrimSpace(line.BookingID)
		if !contains(bookingIDs, id) {
			continue
		}
		if line.Subtotal < 0 || line.Discount < 0 {
			return CheckoutContext{}, myerrors.NewInvalidInputError(fmt.Errorf("negative amount for booking %s", id))
		}
		breakdown = append(breakdown, NewAmountLine(id, line.Subtotal, line.Discount))
	}

	cc := CheckoutContext{
		Reference:   reference,
		BookingIDs:  bookingIDs,
		Breakdown:   breakdown,
		CartItemIDs: cleanIDs(s.CartItemIDs),
		CreatedAt:   createdAt,
	}
	_, err := cc.Total()
	if err != nil {
		return CheckoutContext{}, myerrors.NewInvalidInputError(err)
	}

	return cc, nil
}

func cleanIDs(ids []string) []string {
	cleaned := []string{}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || contains(cleaned, id) {
			continue
		}
		cleaned = append(cleaned, id)
	}
	return cleaned
}
