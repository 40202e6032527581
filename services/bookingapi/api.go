package bookingapi

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotAuthenticated = errors.New("backend rejected credentials")
	ErrUnavailable      = errors.New("backend unavailable")
)

type Token struct {
	AccessToken string `json:"accessToken"`
	UserUID     string `json:"userId"`
}

type ConfirmationRequest struct {
	BookingIDs           []string  `json:"bookingIds"`
	PaymentMethod        string    `json:"paymentMethod"`
	GatewayTransactionID string    `json:"gatewayTransactionId"`
	CartItemIDs          []string  `json:"cartItemIds,omitempty"`
	PaymentTime          time.Time `json:"paymentTime"`
}

type ConfirmResult struct {
	Confirmed       []string `json:"confirmed"`
	AlreadyResolved []string `json:"alreadyResolved"`
}

type CancelRequest struct {
	BookingIDs []string `json:"bookingIds"`
}

type CancelResult struct {
	Cancelled       []string `json:"cancelled"`
	AlreadyResolved []string `json:"alreadyResolved"`
}

type BookingStatus string

const (
	BookingStatusAwaitingPayment BookingStatus = "AWAITING_PAYMENT"
	BookingStatusConfirmed       BookingStatus = "CONFIRMED"
	BookingStatusCancelled       BookingStatus = "CANCELLED"
)

type Booking struct {
	ID     string        `json:"id"`
	Status BookingStatus `json:"status"`
	Amount int64         `json:"amount"`
}

//go:generate mockgen -source=api.go -package bookingapi -destination backend_mock.go Backend
type Backend interface {
	Login(c context.Context, username string, password string) (Token, error)
	ConfirmPayment(c context.Context, accessToken string, req ConfirmationRequest) (ConfirmResult, error)
	CancelUnpaid(c context.Context, accessToken string, bookingIDs []string) (CancelResult, error)
	GetBooking(c context.Context, accessToken string, bookingID string) (Booking, error)
}
