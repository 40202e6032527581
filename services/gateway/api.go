package gateway

import (
	"fmt"
	"time"
)

const (
	orderDescriptionPrefix = "BOOKINGS:"
	dateFormat             = "20060102150405"
	amountMultiplier       = 100

	successCode = "00"
)

var gatewayTimezone = time.FixedZone("GMT+7", 7*60*60)

type Config struct {
	PaymentURL   string
	MerchantCode string
	HashSecret   string
	Version      string
	Locale       string
	Currency     string
	ReturnURL    string
	ExpireAfter  time.Duration
}

type PaymentRequest struct {
	Reference  string
	BookingIDs []string
	Amount     int64
	ClientIP   string
	CreatedAt  time.Time
}

// Response is the verified interpretation of a return redirect. It is never persisted.
type Response struct {
	Valid             bool
	Success           bool
	ResponseCode      string
	TransactionStatus string
	TransactionID     string
	Reference         string
	OrderDescription  string
	BookingIDs        []string
	Amount            int64
	BankCode          string
	PayDate           string
	Reason            string
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payment request: %s %s", e.Field, e.Reason)
}
