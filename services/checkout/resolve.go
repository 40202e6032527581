package checkout

import (
	"context"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/services/checkoutapi"
	"github.com/MarcGrol/bookingportal/services/gateway"
)

type idSource string

const (
	idSourceOrderDescription idSource = "orderDescription"
	idSourceSession          idSource = "session"
)

// resolveBookingIDs is the one place that decides which bookings a gateway response is about:
// the order description first, then the session context, otherwise nothing.
func resolveBookingIDs(resp gateway.Response, cc checkoutapi.CheckoutContext, hasContext bool) ([]string, idSource, error) {
	if len(resp.BookingIDs) > 0 {
		return resp.BookingIDs, idSourceOrderDescription, nil
	}
	if hasContext && len(cc.BookingIDs) > 0 {
		return cc.BookingIDs, idSourceSession, nil
	}
	return nil, "", ErrUnresolvableBookings
}

// resolveTotal recomputes the amount for exactly bookingIDs.
// Order: session breakdown, amount echoed by the gateway, backend per booking, zero (degraded).
func (s *service) resolveTotal(c context.Context, accessToken string, bookingIDs []string, cc checkoutapi.CheckoutContext, hasContext bool, echoed int64) (int64, bool) {
	if hasContext {
		total, err := cc.Breakdown.TotalFor(bookingIDs)
		if err == nil {
			return total, false
		}
		s.logger.Log(c, cc.Reference, mylog.SeverityInfo, "Breakdown not usable for %v: %s", bookingIDs, err)
	}

	if echoed > 0 {
		return echoed, false
	}

	if accessToken != "" {
		total := int64(0)
		for _, id := range bookingIDs {
			booking, err := s.backend.GetBooking(c, accessToken, id)
			if err != nil {
				s.logger.Log(c, id, mylog.SeverityWarn, "Error fetching booking for total: %s", err)
				return 0, true
			}
			total += booking.Amount
		}
		return total, false
	}

	return 0, true
}

// cartItemsFor only trusts the cart items when the session context is about exactly these bookings
func cartItemsFor(cc checkoutapi.CheckoutContext, hasContext bool, bookingIDs []string) []string {
	if !hasContext || !cc.HoldsExactly(bookingIDs) {
		return nil
	}
	return cc.CartItemIDs
}
