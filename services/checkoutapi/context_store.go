package checkoutapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mysession"
)

const (
	KeyPendingBookingIDs = "checkout.pendingBookingIds"
	KeyAmountBreakdown   = "checkout.amountBreakdown"
	KeyCartItemIDs       = "checkout.cartItemIds"
	KeyReference         = "checkout.reference"
	KeyCreatedAt         = "checkout.createdAt"
)

var ErrNoSession = errors.New("no session")

type ContextStore interface {
	Save(c context.Context, session *mysession.Session, cc CheckoutContext) error
	Load(c context.Context, session *mysession.Session) (CheckoutContext, bool, error)
	Clear(c context.Context, session *mysession.Session) error
}

type SessionPutter interface {
	Put(c context.Context, session *mysession.Session) error
}

type sessionContextStore struct {
	sessions SessionPutter
	logger   mylog.Logger
}

// NewContextStore keeps the checkout context in the session; last write wins.
func NewContextStore(sessions SessionPutter) ContextStore {
	return &sessionContextStore{
		sessions: sessions,
		logger:   mylog.New("checkoutcontext"),
	}
}

func (s *sessionContextStore) Save(c context.Context, session *mysession.Session, cc CheckoutContext) error {
	if session == nil {
		return ErrNoSession
	}
	breakdownJSON, err := json.Marshal(cc.Breakdown)
	if err != nil {
		return fmt.Errorf("error marshalling amount breakdown: %s", err)
	}

	session.Delete(allKeys()...)
	session.Set(KeyPendingBookingIDs, strings.Join(cc.BookingIDs, ","))
	session.Set(KeyAmountBreakdown, string(breakdownJSON))
	if len(cc.CartItemIDs) > 0 {
		session.Set(KeyCartItemIDs, strings.Join(cc.CartItemIDs, ","))
	}
	session.Set(KeyReference, cc.Reference)
	session.Set(KeyCreatedAt, cc.CreatedAt.Format(time.RFC3339))

	return s.sessions.Put(c, session)
}

func (s *sessionContextStore) Load(c context.Context, session *mysession.Session) (CheckoutContext, bool, error) {
	if session == nil {
		return CheckoutContext{}, false, nil
	}
	pending, found := session.Get(KeyPendingBookingIDs)
	if !found {
		return CheckoutContext{}, false, nil
	}
	bookingIDs := splitCSV(pending)
	if len(bookingIDs) == 0 {
		s.logger.Log(c, session.UID, mylog.SeverityWarn, "Ignoring checkout context without bookings")
		return CheckoutContext{}, false, nil
	}

	cc := CheckoutContext{
		BookingIDs: bookingIDs,
	}
	cc.Reference, _ = session.Get(KeyReference)
	if cartItems, found := session.Get(KeyCartItemIDs); found {
		cc.CartItemIDs = splitCSV(cartItems)
	}
	if createdAt, found := session.Get(KeyCreatedAt); found {
		cc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	}
	if breakdownJSON, found := session.Get(KeyAmountBreakdown); found {
		err := json.Unmarshal([]byte(breakdownJSON), &cc.Breakdown)
		if err != nil {
			// the booking ids stay usable; totals fall back as for a missing breakdown
			s.logger.Log(c, session.UID, mylog.SeverityWarn, "Ignoring corrupt amount breakdown: %s", err)
			cc.Breakdown = nil
		}
	}

	return cc, true, nil
}

func (s *sessionContextStore) Clear(c context.Context, session *mysession.Session) error {
	if session == nil {
		return nil
	}
	session.Delete(allKeys()...)
	return s.sessions.Put(c, session)
}

func allKeys() []string {
	return []string{KeyPendingBookingIDs, KeyAmountBreakdown, KeyCartItemIDs, KeyReference, KeyCreatedAt}
}

func splitCSV(csv string) []string {
	ids := []string{}
	for _, id := range strings.Split(csv, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
