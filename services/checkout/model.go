package checkout

import (
	"errors"
	"time"
)

type CheckoutState string

const (
	StateAwaitingGateway CheckoutState = "AwaitingGateway"
	StateConfirmed       CheckoutState = "Confirmed"
	StateCancelled       CheckoutState = "Cancelled"
	StateNeedsReauth     CheckoutState = "NeedsReauth"
)

var (
	ErrNotAuthenticated         = errors.New("not authenticated")
	ErrUnresolvableBookings     = errors.New("bookings of this payment could not be determined")
	ErrMissingTransaction       = errors.New("payment response without transaction id")
	ErrInvalidResumeToken       = errors.New("invalid or expired confirmation link")
	ErrPaidBookingsNotConfirmed = errors.New("paid bookings are no longer awaiting payment")
)

// Outcome is the result of every step of the checkout state machine.
// Failures are part of the outcome, never returned as error.
type Outcome struct {
	State         CheckoutState
	Duplicate     bool
	Retryable     bool
	TransactionID string
	Reference     string
	BookingIDs    []string
	Total         int64
	Degraded      bool
	Reason        string
	ResumeToken   string
	Err           error
}

// Confirmation is the local record of a confirmed gateway transaction, keyed by transaction id.
type Confirmation struct {
	TransactionID string
	Reference     string
	UserUID       string
	BookingIDs    []string
	Total         int64
	CartItemIDs   []string
	ConfirmedAt   time.Time
}

type Config struct {
	PaymentMethod  string
	Currency       string
	ResumeSecret   string
	ResumeTokenTTL time.Duration
	ContextTTL     time.Duration
}
