package checkout

import (
	"context"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mysession"
)

// resumeCheckout confirms a payment whose session got lost at the gateway.
// The bookings come from the signed token, cart items are never guessed.
func (s *service) resumeCheckout(c context.Context, session *mysession.Session, token string) Outcome {
	if !isAuthenticated(session) {
		return Outcome{State: StateNeedsReauth, ResumeToken: token, Err: ErrNotAuthenticated}
	}

	claims, err := s.resumeTokens.parse(token)
	if err != nil {
		s.logger.Log(c, session.UID, mylog.SeverityWarn, "Rejected resume token: %s", err)
		return Outcome{State: StateAwaitingGateway, Reason: ErrInvalidResumeToken.Error(), Err: ErrInvalidResumeToken}
	}

	cc, hasContext := s.loadContext(c, session)
	total, degraded := s.resolveTotal(c, session.AccessToken, claims.BookingIDs, cc, hasContext, 0)

	s.logger.Log(c, claims.TransactionID, mylog.SeverityInfo, "Resuming confirmation of bookings %v after login", claims.BookingIDs)

	return s.confirm(c, session, confirmRequest{
		TransactionID: claims.TransactionID,
		Reference:     claims.Reference,
		BookingIDs:    claims.BookingIDs,
		Total:         total,
		Degraded:      degraded,
	})
}
