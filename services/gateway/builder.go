package gateway

import (
	"fmt"
	"net/url"
	"strings"
)

type Builder struct {
	config Config
}

func NewBuilder(config Config) *Builder {
	return &Builder{
		config: config,
	}
}

// BuildPaymentURL returns the signed redirect to the payment page of the gateway.
// Invalid input results in a *ValidationError and no url.
func (b *Builder) BuildPaymentURL(req PaymentRequest) (string, error) {
	err := validate(req)
	if err != nil {
		return "", err
	}

	createdAt := req.CreatedAt.In(gatewayTimezone)
	params := url.Values{}
	params.Set("vnp_Version", b.config.Version)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", b.config.MerchantCode)
	params.Set("vnp_Amount", fmt.Sprintf("%d", req.Amount*amountMultiplier))
	params.Set("vnp_CurrCode", b.config.Currency)
	params.Set("vnp_TxnRef", req.Reference)
	params.Set("vnp_OrderInfo", EncodeOrderDescription(req.BookingIDs))
	params.Set("vnp_OrderType", "other")
	params.Set("vnp_Locale", b.config.Locale)
	params.Set("vnp_ReturnUrl", b.config.ReturnURL)
	params.Set("vnp_IpAddr", clientIPOrDefault(req.ClientIP))
	params.Set("vnp_CreateDate", createdAt.Format(dateFormat))
	if b.config.ExpireAfter > 0 {
		params.Set("vnp_ExpireDate", createdAt.Add(b.config.ExpireAfter).Format(dateFormat))
	}
	params.Set(paramSecureHash, sign(b.config.HashSecret, params))

	return b.config.PaymentURL + "?" + params.Encode(), nil
}

func validate(req PaymentRequest) error {
	if len(req.BookingIDs) == 0 {
		return &ValidationError{Field: "bookingIds", Reason: "must not be empty"}
	}
	for _, id := range req.BookingIDs {
		if strings.TrimSpace(id) == "" || strings.Contains(id, ",") {
			return &ValidationError{Field: "bookingIds", Reason: fmt.Sprintf("contains invalid id %q", id)}
		}
	}
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if req.Reference == "" {
		return &ValidationError{Field: "reference", Reason: "is missing"}
	}
	return nil
}

func clientIPOrDefault(ip string) string {
	if ip == "" {
		return "127.0.0.1"
	}
	return ip
}

func EncodeOrderDescription(bookingIDs []string) string {
	return orderDescriptionPrefix + strings.Join(bookingIDs, ",")
}

// ParseOrderDescription returns the booking ids encoded in an order description.
// Anything not in the "BOOKINGS:<id>,<id>" shape yields false.
func ParseOrderDescription(orderDescription string) ([]string, bool) {
	trimmed := strings.TrimSpace(orderDescription)
	if !strings.HasPrefix(trimmed, orderDescriptionPrefix) {
		return nil, false
	}

	ids := []string{}
	seen := map[string]bool{}
	for _, id := range strings.Split(strings.TrimPrefix(trimmed, orderDescriptionPrefix), ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, false
	}
	return ids, true
}
