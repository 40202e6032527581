package bookingapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/MarcGrol/bookingportal/lib/myhttpclient"
	"github.com/MarcGrol/bookingportal/lib/mylog"
)

type client struct {
	baseURL string
	sender  myhttpclient.HTTPSender
	logger  mylog.Logger
}

func NewClient(baseURL string, sender myhttpclient.HTTPSender) Backend {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		sender:  sender,
		logger:  mylog.New("bookingapi"),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (cl *client) Login(c context.Context, username string, password string) (Token, error) {
	token := Token{}
	status, err := cl.send(c, http.MethodPost, "/api/auth/login", "", loginRequest{Username: username, Password: password}, &token)
	if err != nil {
		return Token{}, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return Token{}, ErrNotAuthenticated
	}
	if status != http.StatusOK {
		return Token{}, fmt.Errorf("login failed with status %d", status)
	}
	if token.AccessToken == "" {
		return Token{}, fmt.Errorf("login response without access token")
	}
	return token, nil
}

// ConfirmPayment treats a conflict as success: the bookings left "awaiting payment" earlier.
func (cl *client) ConfirmPayment(c context.Context, accessToken string, req ConfirmationRequest) (ConfirmResult, error) {
	result := ConfirmResult{}
	status, err := cl.send(c, http.MethodPost, "/api/bookings/confirm-payment", accessToken, req, &result)
	if err != nil {
		return ConfirmResult{}, err
	}
	switch status {
	case http.StatusOK, http.StatusCreated:
		return result, nil
	case http.StatusConflict:
		cl.logger.Log(c, req.GatewayTransactionID, mylog.SeverityInfo, "Bookings %v already resolved", req.BookingIDs)
		return ConfirmResult{AlreadyResolved: req.BookingIDs}, nil
	case http.StatusUnauthorized:
		return ConfirmResult{}, ErrNotAuthenticated
	default:
		return ConfirmResult{}, unexpectedStatus("confirm-payment", status)
	}
}

func (cl *client) CancelUnpaid(c context.Context, accessToken string, bookingIDs []string) (CancelResult, error) {
	result := CancelResult{}
	status, err := cl.send(c, http.MethodPost, "/api/bookings/cancel-unpaid", accessToken, CancelRequest{BookingIDs: bookingIDs}, &result)
	if err != nil {
		return CancelResult{}, err
	}
	switch status {
	case http.StatusOK:
		return result, nil
	case http.StatusConflict:
		return CancelResult{AlreadyResolved: bookingIDs}, nil
	case http.StatusUnauthorized:
		return CancelResult{}, ErrNotAuthenticated
	default:
		return CancelResult{}, unexpectedStatus("cancel-unpaid", status)
	}
}

func (cl *client) GetBooking(c context.Context, accessToken string, bookingID string) (Booking, error) {
	booking := Booking{}
	status, err := cl.send(c, http.MethodGet, "/api/bookings/"+url.PathEscape(bookingID), accessToken, nil, &booking)
	if err != nil {
		return Booking{}, err
	}
	switch status {
	case http.StatusOK:
		return booking, nil
	case http.StatusUnauthorized:
		return Booking{}, ErrNotAuthenticated
	default:
		return Booking{}, unexpectedStatus("get-booking", status)
	}
}

func (cl *client) send(c context.Context, method string, path string, accessToken string, req any, resp any) (int, error) {
	var body []byte
	if req != nil {
		var err error
		body, err = json.Marshal(req)
		if err != nil {
			return 0, fmt.Errorf("error marshalling %s request: %s", path, err)
		}
	}

	status, respBody, err := cl.sender.Send(c, method, cl.baseURL+path, accessToken, body)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}

	if status >= 200 && status < 300 && len(respBody) > 0 && resp != nil {
		err = json.Unmarshal(respBody, resp)
		if err != nil {
			return 0, fmt.Errorf("error parsing %s response: %s", path, err)
		}
	}
	return status, nil
}

func unexpectedStatus(operation string, status int) error {
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s returned status %d", ErrUnavailable, operation, status)
	}
	return fmt.Errorf("%s returned status %d", operation, status)
}
