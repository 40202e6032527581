package contracttests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/bookingportal/lib/mycontext"
	"github.com/MarcGrol/bookingportal/lib/myerrors"
	"github.com/MarcGrol/bookingportal/lib/myhttp"
	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
)

var (
	ErrBookingDoesNotExist = errors.New("booking does not exist")
)

type fakeAccount struct {
	Password string
	UserUID  string
}

type fakeBooking struct {
	OwnerUID      string
	TransactionID string
	Booking       bookingapi.Booking
}

// FakeBackend behaves like the booking backend as far as the portal relies on it
type FakeBackend struct {
	uuider   myuuid.RealUUIDer
	logger   mylog.Logger
	accounts map[string]fakeAccount
	Tokens   *mystore.InMemoryStore[string] // access token -> user uid
	Bookings *mystore.InMemoryStore[fakeBooking]
}

func NewFakeBackend() *FakeBackend {
	tokens, _, _ := mystore.NewInMemoryStore[string](context.Background())
	bookings, _, _ := mystore.NewInMemoryStore[fakeBooking](context.Background())
	return &FakeBackend{
		logger:   mylog.New("fakebackend"),
		accounts: map[string]fakeAccount{},
		Tokens:   tokens,
		Bookings: bookings,
	}
}

func (f *FakeBackend) AddAccount(username string, password string, userUID string) {
	f.accounts[username] = fakeAccount{Password: password, UserUID: userUID}
}

func (f *FakeBackend) AddBooking(c context.Context, userUID string, bookingID string, amount int64) error {
	return f.Bookings.Put(c, bookingID, fakeBooking{
		OwnerUID: userUID,
		Booking: bookingapi.Booking{
			ID:     bookingID,
			Status: bookingapi.BookingStatusAwaitingPayment,
			Amount: amount,
		},
	})
}

// RevokeTokens simulates expiry of every issued access token
func (f *FakeBackend) RevokeTokens(c context.Context) error {
	return f.Tokens.RunInTransaction(c, func(c context.Context) error {
		for token := range f.Tokens.Items {
			delete(f.Tokens.Items, token)
		}
		return nil
	})
}

func (f *FakeBackend) Login(c context.Context, username string, password string) (bookingapi.Token, error) {
	account, found := f.accounts[username]
	if !found || account.Password != password {
		return bookingapi.Token{}, bookingapi.ErrNotAuthenticated
	}
	token := f.uuider.Create()
	err := f.Tokens.Put(c, token, account.UserUID)
	if err != nil {
		return bookingapi.Token{}, err
	}
	return bookingapi.Token{AccessToken: token, UserUID: account.UserUID}, nil
}

func (f *FakeBackend) ConfirmPayment(c context.Context, accessToken string, req bookingapi.ConfirmationRequest) (bookingapi.ConfirmResult, error) {
	result := bookingapi.ConfirmResult{}
	err := f.resolve(c, accessToken, req.BookingIDs, func(booking *fakeBooking) bool {
		if booking.Booking.Status != bookingapi.BookingStatusAwaitingPayment {
			result.AlreadyResolved = append(result.AlreadyResolved, booking.Booking.ID)
			return false
		}
		booking.Booking.Status = bookingapi.BookingStatusConfirmed
		booking.TransactionID = req.GatewayTransactionID
		result.Confirmed = append(result.Confirmed, booking.Booking.ID)
		return true
	})
	if err != nil {
		return bookingapi.ConfirmResult{}, err
	}
	return result, nil
}

func (f *FakeBackend) CancelUnpaid(c context.Context, accessToken string, bookingIDs []string) (bookingapi.CancelResult, error) {
	result := bookingapi.CancelResult{}
	err := f.resolve(c, accessToken, bookingIDs, func(booking *fakeBooking) bool {
		if booking.Booking.Status != bookingapi.BookingStatusAwaitingPayment {
			result.AlreadyResolved = append(result.AlreadyResolved, booking.Booking.ID)
			return false
		}
		booking.Booking.Status = bookingapi.BookingStatusCancelled
		result.Cancelled = append(result.Cancelled, booking.Booking.ID)
		return true
	})
	if err != nil {
		return bookingapi.CancelResult{}, err
	}
	return result, nil
}

func (f *FakeBackend) GetBooking(c context.Context, accessToken string, bookingID string) (bookingapi.Booking, error) {
	userUID, err := f.userOf(c, accessToken)
	if err != nil {
		return bookingapi.Booking{}, err
	}
	booking, exists, err := f.Bookings.Get(c, bookingID)
	if err != nil {
		return bookingapi.Booking{}, err
	}
	if !exists || booking.OwnerUID != userUID {
		return bookingapi.Booking{}, ErrBookingDoesNotExist
	}
	return booking.Booking, nil
}

// resolve applies a state change to all bookings or to none of them
func (f *FakeBackend) resolve(c context.Context, accessToken string, bookingIDs []string, change func(booking *fakeBooking) bool) error {
	userUID, err := f.userOf(c, accessToken)
	if err != nil {
		return err
	}

	return f.Bookings.RunInTransaction(c, func(c context.Context) error {
		bookings := make([]fakeBooking, 0, len(bookingIDs))
		for _, id := range bookingIDs {
			booking, exists, err := f.Bookings.Get(c, id)
			if err != nil {
				return err
			}
			if !exists || booking.OwnerUID != userUID {
				return fmt.Errorf("%w: %s", ErrBookingDoesNotExist, id)
			}
			bookings = append(bookings, booking)
		}
		for _, booking := range bookings {
			if change(&booking) {
				err = f.Bookings.Put(c, booking.Booking.ID, booking)
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (f *FakeBackend) userOf(c context.Context, accessToken string) (string, error) {
	userUID, exists, err := f.Tokens.Get(c, accessToken)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", bookingapi.ErrNotAuthenticated
	}
	return userUID, nil
}

// RegisterEndpoints exposes the fake over the same REST api the real backend offers
func (f *FakeBackend) RegisterEndpoints(c context.Context, router *mux.Router) {
	router.HandleFunc("/api/auth/login", f.loginPage()).Methods("POST")
	router.HandleFunc("/api/bookings/confirm-payment", f.confirmPage()).Methods("POST")
	router.HandleFunc("/api/bookings/cancel-unpaid", f.cancelPage()).Methods("POST")
	router.HandleFunc("/api/bookings/{bookingID}", f.bookingPage()).Methods("GET")
}

func (f *FakeBackend) loginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(f.logger)

		req := struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			writer.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		token, err := f.Login(c, req.Username, req.Password)
		if err != nil {
			f.writeError(c, w, 2, err)
			return
		}
		writer.Write(c, w, http.StatusOK, token)
	}
}

func (f *FakeBackend) confirmPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(f.logger)

		req := bookingapi.ConfirmationRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			writer.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		result, err := f.ConfirmPayment(c, bearerToken(r), req)
		if err != nil {
			f.writeError(c, w, 2, err)
			return
		}
		if len(result.Confirmed) == 0 {
			writer.WriteError(c, w, 3, myerrors.NewConflictError(fmt.Errorf("bookings %v already resolved", req.BookingIDs)))
			return
		}
		writer.Write(c, w, http.StatusOK, result)
	}
}

func (f *FakeBackend) cancelPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(f.logger)

		req := bookingapi.CancelRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			writer.WriteError(c, w, 1, myerrors.NewInvalidInputError(err))
			return
		}

		result, err := f.CancelUnpaid(c, bearerToken(r), req.BookingIDs)
		if err != nil {
			f.writeError(c, w, 2, err)
			return
		}
		if len(result.Cancelled) == 0 {
			writer.WriteError(c, w, 3, myerrors.NewConflictError(fmt.Errorf("bookings %v already resolved", req.BookingIDs)))
			return
		}
		writer.Write(c, w, http.StatusOK, result)
	}
}

func (f *FakeBackend) bookingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		writer := myhttp.NewWriter(f.logger)

		booking, err := f.GetBooking(c, bearerToken(r), mux.Vars(r)["bookingID"])
		if err != nil {
			f.writeError(c, w, 2, err)
			return
		}
		writer.Write(c, w, http.StatusOK, booking)
	}
}

func (f *FakeBackend) writeError(c context.Context, w http.ResponseWriter, errorCode int, err error) {
	if errors.Is(err, bookingapi.ErrNotAuthenticated) {
		f.logger.Log(c, "", mylog.SeverityWarn, "Rejected access token: %s", err)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if errors.Is(err, ErrBookingDoesNotExist) {
		err = myerrors.NewNotFoundError(err)
	}
	myhttp.NewWriter(f.logger).WriteError(c, w, errorCode, err)
}

func bearerToken(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
