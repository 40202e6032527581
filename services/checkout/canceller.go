package checkout

import (
	"context"
	"errors"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkoutevents"
)

const (
	retryCancelReason   = "your bookings could not be cancelled, please try again"
	userCancelReason    = "checkout cancelled"
	noCheckoutReason    = "there is no checkout in progress"
	expiredReason       = "checkout expired"
	abandonedReason     = "replaced by a new checkout"
	loginToCancelReason = "please log in again to release your bookings"
)

// cancelUnpaid cancels exactly bookingIDs. Bookings that were already confirmed or cancelled are left as they are.
// The checkout context is only cleared after a successful cancel.
func (s *service) cancelUnpaid(c context.Context, session *mysession.Session, bookingIDs []string, cause checkoutevents.CancelCause, reason string) Outcome {
	cc, hasContext := s.loadContext(c, session)
	outcome := Outcome{
		State:      StateCancelled,
		Reference:  cc.Reference,
		BookingIDs: bookingIDs,
		Reason:     reason,
	}

	if !isAuthenticated(session) {
		s.logger.Log(c, sessionUID(session), mylog.SeverityWarn, "Cannot cancel bookings %v without login", bookingIDs)
		outcome.State = StateAwaitingGateway
		outcome.Err = ErrNotAuthenticated
		return outcome
	}

	result, err := s.backend.CancelUnpaid(c, session.AccessToken, bookingIDs)
	if err != nil {
		s.logger.Log(c, cc.Reference, mylog.SeverityError, "Error cancelling bookings %v: %s", bookingIDs, err)
		outcome.State = StateAwaitingGateway
		outcome.Err = err
		if errors.Is(err, bookingapi.ErrNotAuthenticated) {
			outcome.Reason = loginToCancelReason
			return outcome
		}
		outcome.Retryable = true
		outcome.Reason = retryCancelReason
		return outcome
	}

	if hasContext && cc.HoldsExactly(bookingIDs) {
		err = s.contexts.Clear(c, session)
		if err != nil {
			s.logger.Log(c, cc.Reference, mylog.SeverityError, "Error clearing checkout context: %s", err)
		}
	}

	err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCancelled{
		Reference:       cc.Reference,
		UserUID:         session.UserUID,
		BookingIDs:      bookingIDs,
		Cause:           cause,
		Reason:          reason,
		AlreadyResolved: result.AlreadyResolved,
	})
	if err != nil {
		s.logger.Log(c, cc.Reference, mylog.SeverityError, "Error publishing cancellation: %s", err)
	}

	s.logger.Log(c, cc.Reference, mylog.SeverityInfo, "Cancelled bookings %v (%s)", bookingIDs, cause)

	return outcome
}

// cancelCheckout is the user's "cancel and return".
func (s *service) cancelCheckout(c context.Context, session *mysession.Session) Outcome {
	if !isAuthenticated(session) {
		return Outcome{State: StateAwaitingGateway, Err: ErrNotAuthenticated}
	}
	cc, found := s.loadContext(c, session)
	if !found {
		return Outcome{State: StateCancelled, Reason: noCheckoutReason}
	}
	return s.cancelUnpaid(c, session, cc.BookingIDs, checkoutevents.CancelCauseUser, userCancelReason)
}

// expireCheckout cancels a checkout that is still pending after its time to live.
// A context that was resolved or replaced in the meantime is left alone.
func (s *service) expireCheckout(c context.Context, sessionUID string, reference string) (Outcome, error) {
	session, found, err := s.sessions.Get(c, sessionUID)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		s.logger.Log(c, reference, mylog.SeverityInfo, "Session %s gone: nothing to expire", sessionUID)
		return Outcome{State: StateCancelled, Reference: reference, Reason: noCheckoutReason}, nil
	}

	cc, found := s.loadContext(c, session)
	if !found || cc.Reference != reference {
		s.logger.Log(c, reference, mylog.SeverityInfo, "Checkout %s no longer pending", reference)
		return Outcome{State: StateCancelled, Reference: reference, Reason: noCheckoutReason}, nil
	}

	outcome := s.cancelUnpaid(c, session, cc.BookingIDs, checkoutevents.CancelCauseExpired, expiredReason)
	if outcome.Retryable {
		return outcome, outcome.Err
	}
	return outcome, nil
}
