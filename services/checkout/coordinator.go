package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkoutevents"
)

const (
	unresolvableReason   = "your payment was received but we could not determine which bookings it is for, please contact support"
	retryConfirmReason   = "your payment was received but the bookings could not be confirmed yet, please try again"
	missingPaymentReason = "the payment response is incomplete, please contact support"
	paidCancelledReason  = "your payment was received but your bookings had already been cancelled, please contact support"
)

type confirmRequest struct {
	TransactionID string
	Reference     string
	BookingIDs    []string
	Total         int64
	Degraded      bool
	CartItemIDs   []string
}

// handleGatewayReturn drives the checkout of the current session to its next state,
// based on the query of the return redirect. session is nil when it got lost in transit.
func (s *service) handleGatewayReturn(c context.Context, session *mysession.Session, query url.Values) Outcome {
	resp := s.validator.Parse(query)
	cc, hasContext := s.loadContext(c, session)

	s.logger.Log(c, resp.Reference, mylog.SeverityInfo, "Gateway return: valid:%v success:%v code:%s txn:%s session:%v context:%v",
		resp.Valid, resp.Success, resp.ResponseCode, resp.TransactionID, session != nil, hasContext)

	if !resp.Valid {
		// an unverified payload is never trusted to name bookings
		if !hasContext {
			return Outcome{State: StateAwaitingGateway, Reason: resp.Reason, Err: ErrUnresolvableBookings}
		}
		return s.cancelUnpaid(c, session, cc.BookingIDs, checkoutevents.CancelCauseInvalidReturn, resp.Reason)
	}

	bookingIDs, source, err := resolveBookingIDs(resp, cc, hasContext)
	if err != nil {
		s.logger.Log(c, resp.Reference, mylog.SeverityError, "No bookings for gateway transaction %s (success:%v)", resp.TransactionID, resp.Success)
		reason := resp.Reason
		if resp.Success {
			reason = unresolvableReason
		}
		return Outcome{State: StateAwaitingGateway, TransactionID: resp.TransactionID, Reason: reason, Err: err}
	}
	s.logger.Log(c, resp.Reference, mylog.SeverityDebug, "Bookings %v resolved from %s", bookingIDs, source)

	if !resp.Success {
		return s.cancelUnpaid(c, session, bookingIDs, checkoutevents.CancelCauseGatewayFailure, resp.Reason)
	}

	if resp.TransactionID == "" {
		return Outcome{State: StateAwaitingGateway, BookingIDs: bookingIDs, Reason: missingPaymentReason, Err: ErrMissingTransaction}
	}

	accessToken := ""
	if isAuthenticated(session) {
		accessToken = session.AccessToken
	}
	total, degraded := s.resolveTotal(c, accessToken, bookingIDs, cc, hasContext, resp.Amount)
	req := confirmRequest{
		TransactionID: resp.TransactionID,
		Reference:     resp.Reference,
		BookingIDs:    bookingIDs,
		Total:         total,
		Degraded:      degraded,
		CartItemIDs:   cartItemsFor(cc, hasContext, bookingIDs),
	}

	if !isAuthenticated(session) {
		return s.needsReauth(c, req)
	}

	return s.confirm(c, session, req)
}

// needsReauth does not confirm: the bookings travel in a signed token through login instead of in the session.
func (s *service) needsReauth(c context.Context, req confirmRequest) Outcome {
	outcome := Outcome{
		State:         StateNeedsReauth,
		TransactionID: req.TransactionID,
		Reference:     req.Reference,
		BookingIDs:    req.BookingIDs,
		Total:         req.Total,
		Degraded:      req.Degraded,
		Err:           ErrNotAuthenticated,
	}

	token, err := s.resumeTokens.create(req.BookingIDs, req.TransactionID, req.Reference)
	if err != nil {
		s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Error creating resume token: %s", err)
		outcome.State = StateAwaitingGateway
		outcome.Retryable = true
		outcome.Reason = retryConfirmReason
		outcome.Err = err
		return outcome
	}
	outcome.ResumeToken = token

	s.logger.Log(c, req.TransactionID, mylog.SeverityInfo, "Session lost for paid bookings %v: re-authentication needed", req.BookingIDs)

	return outcome
}

// confirm moves the bookings to confirmed at most once per gateway transaction.
func (s *service) confirm(c context.Context, session *mysession.Session, req confirmRequest) Outcome {
	outcome := Outcome{
		State:         StateConfirmed,
		TransactionID: req.TransactionID,
		Reference:     req.Reference,
		BookingIDs:    req.BookingIDs,
		Total:         req.Total,
		Degraded:      req.Degraded,
	}

	existing, found, err := s.confirmations.Get(c, req.TransactionID)
	if err != nil {
		s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Error reading confirmation: %s", err)
		return s.retryable(outcome, err)
	}
	if found {
		s.logger.Log(c, req.TransactionID, mylog.SeverityInfo, "Transaction %s already confirmed", req.TransactionID)
		s.clearContextHolding(c, session, existing.BookingIDs)
		outcome.Duplicate = true
		outcome.BookingIDs = existing.BookingIDs
		outcome.Total = existing.Total
		outcome.Degraded = false
		return outcome
	}

	now := s.nower.Now()
	result, err := s.backend.ConfirmPayment(c, session.AccessToken, bookingapi.ConfirmationRequest{
		BookingIDs:           req.BookingIDs,
		PaymentMethod:        s.cfg.PaymentMethod,
		GatewayTransactionID: req.TransactionID,
		CartItemIDs:          req.CartItemIDs,
		PaymentTime:          now,
	})
	if err != nil {
		if errors.Is(err, bookingapi.ErrNotAuthenticated) {
			// the backend token expired while at the gateway
			return s.needsReauth(c, req)
		}
		s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Error confirming bookings %v: %s", req.BookingIDs, err)
		return s.retryable(outcome, err)
	}
	outcome.Duplicate = len(result.Confirmed) == 0 && len(result.AlreadyResolved) > 0

	if len(result.AlreadyResolved) > 0 {
		// already resolved is only a no-op for bookings that ended up confirmed
		notConfirmed, err := s.notConfirmed(c, session.AccessToken, result.AlreadyResolved)
		if err != nil {
			s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Error checking status of bookings %v: %s", result.AlreadyResolved, err)
			return s.retryable(outcome, err)
		}
		if len(notConfirmed) > 0 {
			s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Paid transaction %s for bookings %v that are no longer awaiting payment", req.TransactionID, notConfirmed)
			s.clearContextHolding(c, session, req.BookingIDs)
			outcome.State = StateCancelled
			outcome.Duplicate = false
			outcome.Reason = paidCancelledReason
			outcome.Err = fmt.Errorf("%w: %v", ErrPaidBookingsNotConfirmed, notConfirmed)
			return outcome
		}
	}

	err = s.confirmations.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent
		_, found, err := s.confirmations.Get(c, req.TransactionID)
		if err != nil {
			return err
		}
		if found {
			return nil
		}

		err = s.confirmations.Put(c, req.TransactionID, Confirmation{
			TransactionID: req.TransactionID,
			Reference:     req.Reference,
			UserUID:       session.UserUID,
			BookingIDs:    req.BookingIDs,
			Total:         req.Total,
			CartItemIDs:   req.CartItemIDs,
			ConfirmedAt:   now,
		})
		if err != nil {
			return err
		}

		return s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutConfirmed{
			TransactionID:   req.TransactionID,
			Reference:       req.Reference,
			UserUID:         session.UserUID,
			BookingIDs:      req.BookingIDs,
			Amount:          req.Total,
			CartItemIDs:     req.CartItemIDs,
			AlreadyResolved: result.AlreadyResolved,
		})
	})
	if err != nil {
		// the backend already confirmed, a repeated return is answered by the backend as already resolved
		s.logger.Log(c, req.TransactionID, mylog.SeverityError, "Error recording confirmation: %s", err)
	}

	s.clearContextHolding(c, session, req.BookingIDs)

	s.logger.Log(c, req.TransactionID, mylog.SeverityInfo, "Confirmed bookings %v (total %d, duplicate %v)", req.BookingIDs, req.Total, outcome.Duplicate)

	return outcome
}

func (s *service) notConfirmed(c context.Context, accessToken string, bookingIDs []string) ([]string, error) {
	ids := []string{}
	for _, id := range bookingIDs {
		booking, err := s.backend.GetBooking(c, accessToken, id)
		if err != nil {
			return nil, err
		}
		if booking.Status != bookingapi.BookingStatusConfirmed {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *service) retryable(outcome Outcome, err error) Outcome {
	outcome.State = StateAwaitingGateway
	outcome.Retryable = true
	outcome.Reason = retryConfirmReason
	outcome.Err = err
	return outcome
}
