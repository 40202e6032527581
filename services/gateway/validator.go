package gateway

import (
	"fmt"
	"net/url"
	"strconv"
)

const invalidSignatureReason = "payment response could not be verified"

var failureReasons = map[string]string{
	"07": "transaction suspected of fraud",
	"09": "card or account not registered for internet banking",
	"10": "card or account authentication failed too many times",
	"11": "payment timed out",
	"12": "card or account is locked",
	"13": "one-time password mismatch",
	"24": "cancelled by user",
	"51": "insufficient funds",
	"65": "daily transaction limit exceeded",
	"75": "bank under maintenance",
	"79": "wrong payment password entered too many times",
	"99": "payment failed",
}

type Validator struct {
	hashSecret string
}

func NewValidator(hashSecret string) *Validator {
	return &Validator{
		hashSecret: hashSecret,
	}
}

// Parse never fails: an unsigned or malformed payload becomes an unsuccessful Response.
func (v *Validator) Parse(query url.Values) Response {
	resp := Response{
		ResponseCode:      query.Get("vnp_ResponseCode"),
		TransactionStatus: query.Get("vnp_TransactionStatus"),
		TransactionID:     query.Get("vnp_TransactionNo"),
		Reference:         query.Get("vnp_TxnRef"),
		OrderDescription:  query.Get("vnp_OrderInfo"),
		BankCode:          query.Get("vnp_BankCode"),
		PayDate:           query.Get("vnp_PayDate"),
	}
	resp.BookingIDs, _ = ParseOrderDescription(resp.OrderDescription)

	amount, err := strconv.ParseInt(query.Get("vnp_Amount"), 10, 64)
	if err == nil && amount > 0 {
		resp.Amount = amount / amountMultiplier
	}

	resp.Valid = verify(v.hashSecret, query)
	if !resp.Valid {
		resp.Reason = invalidSignatureReason
		return resp
	}

	resp.Success = resp.ResponseCode == successCode &&
		(resp.TransactionStatus == "" || resp.TransactionStatus == successCode)
	if !resp.Success {
		code := resp.ResponseCode
		if code == successCode {
			code = resp.TransactionStatus
		}
		resp.Reason = FailureReason(code)
	}
	return resp
}

func FailureReason(code string) string {
	reason, found := failureReasons[code]
	if !found {
		return fmt.Sprintf("payment failed (code %s)", code)
	}
	return reason
}
