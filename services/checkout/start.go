package checkout

import (
	"context"
	"fmt"

	"github.com/MarcGrol/bookingportal/lib/myerrors"
	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/myqueue"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/services/checkoutapi"
	"github.com/MarcGrol/bookingportal/services/checkoutevents"
	"github.com/MarcGrol/bookingportal/services/gateway"
)

// startCheckout stores the checkout context and returns the signed gateway redirect.
// Bookings of a previous, unfinished checkout that are not part of this one are cancelled first.
func (s *service) startCheckout(c context.Context, session *mysession.Session, form checkoutapi.StartCheckout, clientIP string) (string, error) {
	if !isAuthenticated(session) {
		return "", myerrors.NewAuthenticationError(ErrNotAuthenticated)
	}

	now := s.nower.Now()
	reference := s.uuider.Create()

	cc, err := form.ToContext(reference, now)
	if err != nil {
		return "", err
	}
	total, err := cc.Total()
	if err != nil {
		return "", myerrors.NewInvalidInputError(err)
	}

	redirectURL, err := s.builder.BuildPaymentURL(gateway.PaymentRequest{
		Reference:  reference,
		BookingIDs: cc.BookingIDs,
		Amount:     total,
		ClientIP:   clientIP,
		CreatedAt:  now,
	})
	if err != nil {
		return "", myerrors.NewInvalidInputError(err)
	}

	previous, found := s.loadContext(c, session)
	if found {
		orphans := previous.Outside(cc.BookingIDs)
		if len(orphans) > 0 {
			outcome := s.cancelUnpaid(c, session, orphans, checkoutevents.CancelCauseAbandoned, abandonedReason)
			if outcome.State != StateCancelled {
				return "", myerrors.NewUnavailableError(fmt.Errorf("error cancelling previous checkout %s: %s", previous.Reference, outcome.Err))
			}
		}
	}

	err = s.contexts.Save(c, session, cc)
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error storing checkout context: %s", err))
	}

	err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutStarted{
		Reference:  reference,
		SessionUID: session.UID,
		UserUID:    userOf(session),
		BookingIDs: cc.BookingIDs,
		Amount:     total,
		Currency:   s.cfg.Currency,
	})
	if err != nil {
		return "", myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
	}

	if s.cfg.ContextTTL > 0 {
		err = s.queue.Enqueue(c, myqueue.Task{
			UID:            "expire-" + reference,
			WebhookURLPath: fmt.Sprintf("/checkout/task/expire/%s/%s", session.UID, reference),
			Delay:          s.cfg.ContextTTL,
		})
		if err != nil {
			return "", myerrors.NewInternalError(fmt.Errorf("error scheduling expiry of checkout %s: %s", reference, err))
		}
	}

	s.logger.Log(c, reference, mylog.SeverityInfo, "Started checkout for bookings %v (total %d)", cc.BookingIDs, total)

	return redirectURL, nil
}

func (s *service) pendingCheckout(c context.Context, session *mysession.Session) (checkoutapi.CheckoutContext, error) {
	cc, found := s.loadContext(c, session)
	if !found {
		return checkoutapi.CheckoutContext{}, myerrors.NewNotFoundError(fmt.Errorf("no checkout in progress"))
	}
	return cc, nil
}
