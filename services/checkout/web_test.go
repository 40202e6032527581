package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/bookingportal/lib/mypublisher"
	"github.com/MarcGrol/bookingportal/lib/myqueue"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/mytime"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkoutapi"
	"github.com/MarcGrol/bookingportal/services/checkoutevents"
	"github.com/MarcGrol/bookingportal/services/gateway"
)

const (
	hashSecret  = "gateway-secret"
	accessToken = "backend-token"
)

var (
	pendingB1B2 = checkoutapi.CheckoutContext{
		Reference:  "ref1",
		BookingIDs: []string{"B1", "B2"},
		Breakdown: checkoutapi.AmountBreakdown{
			checkoutapi.NewAmountLine("B1", 100, 0),
			checkoutapi.NewAmountLine("B2", 200, 50),
		},
		CartItemIDs: []string{"C1", "C2"},
		CreatedAt:   mytime.ExampleTime,
	}
)

type fixture struct {
	sut           *webService
	sessions      *mysession.Manager
	contexts      checkoutapi.ContextStore
	confirmations mystore.Store[Confirmation]
	backend       *bookingapi.MockBackend
	publisher     *mypublisher.MockPublisher
	queue         *myqueue.MockTaskQueuer
	uuider        *myuuid.MockUUIDer
}

func setup(t *testing.T, ctrl *gomock.Controller, contextTTL time.Duration) (context.Context, *mux.Router, fixture) {
	c := context.TODO()
	sessionStore, _, _ := mystore.NewInMemoryStore[mysession.Session](c)
	confirmations, _, _ := mystore.NewInMemoryStore[Confirmation](c)
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()
	uuider := myuuid.NewMockUUIDer(ctrl)
	backend := bookingapi.NewMockBackend(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	queue := myqueue.NewMockTaskQueuer(ctrl)

	sessions := mysession.NewManager(mysession.Config{
		Secret:     "session-secret",
		CookieName: "portal_session",
		MaxAge:     24 * time.Hour,
	}, sessionStore, nower, uuider)

	sut := NewWebService(Config{
		PaymentMethod:  "VNPAY",
		Currency:       "VND",
		ResumeSecret:   "session-secret",
		ResumeTokenTTL: 30 * time.Minute,
		ContextTTL:     contextTTL,
	}, sessions,
		gateway.NewBuilder(gateway.Config{
			PaymentURL:   "https://gateway.test/pay",
			MerchantCode: "MERCHANT1",
			HashSecret:   hashSecret,
			Version:      "2.1.0",
			Locale:       "vn",
			Currency:     "VND",
			ReturnURL:    "http://localhost:8080/checkout/return",
		}),
		gateway.NewValidator(hashSecret),
		backend, confirmations, publisher, queue, nower, uuider)

	router := mux.NewRouter()

	// called by RegisterEndpoints
	publisher.EXPECT().CreateTopic(c, checkoutevents.TopicName).Return(nil)

	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, fixture{
		sut:           sut,
		sessions:      sessions,
		contexts:      checkoutapi.NewContextStore(sessions),
		confirmations: confirmations,
		backend:       backend,
		publisher:     publisher,
		queue:         queue,
		uuider:        uuider,
	}
}

// loggedIn stores an authenticated session, optionally with a pending checkout, and returns its cookie
func loggedIn(t *testing.T, c context.Context, f fixture, pending *checkoutapi.CheckoutContext) *http.Cookie {
	session := &mysession.Session{UID: "s1", CreatedAt: mytime.ExampleTime}
	session.Login("u1", accessToken)
	if pending != nil {
		assert.NoError(t, f.contexts.Save(c, session, *pending))
	} else {
		assert.NoError(t, f.sessions.Put(c, session))
	}
	cookie, err := f.sessions.Cookie(*session)
	assert.NoError(t, err)
	return cookie
}

func pendingContext(t *testing.T, c context.Context, f fixture) (checkoutapi.CheckoutContext, bool) {
	session, found, err := f.sessions.Get(c, "s1")
	assert.NoError(t, err)
	assert.True(t, found)
	cc, found, err := f.contexts.Load(c, session)
	assert.NoError(t, err)
	return cc, found
}

func returnQuery(code string, orderInfo string, amount string) url.Values {
	params := url.Values{
		"vnp_Amount":            {amount},
		"vnp_BankCode":          {"NCB"},
		"vnp_ResponseCode":      {code},
		"vnp_TmnCode":           {"MERCHANT1"},
		"vnp_TransactionNo":     {"T1"},
		"vnp_TransactionStatus": {code},
		"vnp_TxnRef":            {"ref1"},
	}
	if orderInfo != "" {
		params.Set("vnp_OrderInfo", orderInfo)
	}
	return gateway.SignedReturnQuery(hashSecret, params)
}

func send(router *mux.Router, method string, target string, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	request, _ := http.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		request.AddCookie(cookie)
	}
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func confirmationOf(bookingIDs []string, cartItemIDs []string) bookingapi.ConfirmationRequest {
	return bookingapi.ConfirmationRequest{
		BookingIDs:           bookingIDs,
		PaymentMethod:        "VNPAY",
		GatewayTransactionID: "T1",
		CartItemIDs:          cartItemIDs,
		PaymentTime:          mytime.ExampleTime,
	}
}

const startForm = "bookingIds=B1&bookingIds=B2" +
	"&lines[0].bookingId=B1&lines[0].subtotal=100&lines[0].discount=0" +
	"&lines[1].bookingId=B2&lines[1].subtotal=200&lines[1].discount=50" +
	"&cartItemIds=C1&cartItemIds=C2"

func TestStartCheckout(t *testing.T) {
	t.Run("Redirect amount is the sum of the selected bookings", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		f.uuider.EXPECT().Create().Return("ref1")
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			Reference:  "ref1",
			SessionUID: "s1",
			UserUID:    "u1",
			BookingIDs: []string{"B1", "B2"},
			Amount:     250,
			Currency:   "VND",
		}).Return(nil)

		response := send(router, http.MethodPost, "/checkout/start", startForm, cookie)

		assert.Equal(t, http.StatusSeeOther, response.Code)
		location, err := url.Parse(response.Header().Get("Location"))
		assert.NoError(t, err)
		assert.Equal(t, "gateway.test", location.Host)
		assert.Equal(t, "25000", location.Query().Get("vnp_Amount"))
		assert.Equal(t, "BOOKINGS:B1,B2", location.Query().Get("vnp_OrderInfo"))
		assert.Equal(t, "ref1", location.Query().Get("vnp_TxnRef"))

		cc, found := pendingContext(t, c, f)
		assert.True(t, found)
		assert.Equal(t, pendingB1B2, cc)
	})

	t.Run("Expiry is scheduled when configured", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, time.Hour)
		cookie := loggedIn(t, c, f, nil)

		f.uuider.EXPECT().Create().Return("ref1")
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)
		f.queue.EXPECT().Enqueue(gomock.Any(), myqueue.Task{
			UID:            "expire-ref1",
			WebhookURLPath: "/checkout/task/expire/s1/ref1",
			Delay:          time.Hour,
		}).Return(nil)

		response := send(router, http.MethodPost, "/checkout/start", startForm, cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
	})

	t.Run("Orphaned bookings of previous checkout are cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.uuider.EXPECT().Create().Return("ref2")
		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1"}).Return(bookingapi.CancelResult{Cancelled: []string{"B1"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil).Times(2)

		response := send(router, http.MethodPost, "/checkout/start",
			"bookingIds=B2&bookingIds=B3&lines[0].bookingId=B2&lines[0].subtotal=200&lines[0].discount=50&lines[1].bookingId=B3&lines[1].subtotal=10", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)

		cc, found := pendingContext(t, c, f)
		assert.True(t, found)
		assert.Equal(t, "ref2", cc.Reference)
		assert.Equal(t, []string{"B2", "B3"}, cc.BookingIDs)
	})

	t.Run("Incomplete breakdown blocks redirect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		f.uuider.EXPECT().Create().Return("ref1")

		response := send(router, http.MethodPost, "/checkout/start", "bookingIds=B1&bookingIds=B2&lines[0].bookingId=B1&lines[0].subtotal=100", cookie)
		assert.Equal(t, http.StatusBadRequest, response.Code)

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Zero total blocks redirect", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		f.uuider.EXPECT().Create().Return("ref1")

		response := send(router, http.MethodPost, "/checkout/start", "bookingIds=B1&lines[0].bookingId=B1&lines[0].subtotal=100&lines[0].discount=100", cookie)
		assert.Equal(t, http.StatusBadRequest, response.Code)
	})

	t.Run("Not logged in", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		_, router, _ := setup(t, ctrl, 0)

		response := send(router, http.MethodPost, "/checkout/start", startForm, nil)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/login?returnUrl=%2Fcart", response.Header().Get("Location"))
	})
}

func TestGatewayReturn(t *testing.T) {
	t.Run("Paid return with session confirms and clears context", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, confirmationOf([]string{"B1", "B2"}, []string{"C1", "C2"})).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutConfirmed{
			TransactionID: "T1",
			Reference:     "ref1",
			UserUID:       "u1",
			BookingIDs:    []string{"B1", "B2"},
			Amount:        250,
			CartItemIDs:   []string{"C1", "C2"},
		}).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)

		assert.Equal(t, http.StatusOK, response.Code)
		body := response.Body.String()
		assert.Contains(t, body, `<span id="transaction">T1</span>`)
		assert.Contains(t, body, `<span id="total">250</span>`)
		assert.Contains(t, body, "<li>B1</li>")

		_, found := pendingContext(t, c, f)
		assert.False(t, found)

		confirmation, found, _ := f.confirmations.Get(c, "T1")
		assert.True(t, found)
		assert.Equal(t, int64(250), confirmation.Total)
	})

	t.Run("User cancelling at the gateway cancels the bookings", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).
			Return(bookingapi.CancelResult{Cancelled: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutCancelled{
			Reference:  "ref1",
			UserUID:    "u1",
			BookingIDs: []string{"B1", "B2"},
			Cause:      checkoutevents.CancelCauseGatewayFailure,
			Reason:     "cancelled by user",
		}).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("24", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)

		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/cart?message=cancelled+by+user", response.Header().Get("Location"))

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Session lost at the gateway, confirmed after login without cart cleanup", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)

		// no cookie: session lost at the gateway
		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode(), "", nil)
		assert.Equal(t, http.StatusOK, response.Code)
		body := response.Body.String()
		assert.Contains(t, body, "Log in and confirm")
		assert.Contains(t, body, `<span id="total">250</span>`)
		assert.Contains(t, body, "/login?returnUrl=")

		// back after login in a fresh session
		cookie := loggedIn(t, c, f, nil)
		token, err := f.sut.service.resumeTokens.create([]string{"B1", "B2"}, "T1", "ref1")
		assert.NoError(t, err)

		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B1").Return(bookingapi.Booking{ID: "B1", Amount: 100}, nil)
		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B2").Return(bookingapi.Booking{ID: "B2", Amount: 150}, nil)
		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, confirmationOf([]string{"B1", "B2"}, nil)).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response = send(router, http.MethodGet, "/checkout/resume?token="+url.QueryEscape(token), "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `<span id="total">250</span>`)
	})

	t.Run("Duplicate return confirms once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil).Times(1)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil).Times(1)

		target := "/checkout/return?" + returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode()
		first := send(router, http.MethodGet, target, "", cookie)
		second := send(router, http.MethodGet, target, "", cookie)

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Contains(t, second.Body.String(), "already processed")
		assert.Contains(t, second.Body.String(), `<span id="total">250</span>`)
	})

	t.Run("Failing backend keeps context until retry succeeds", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		gomock.InOrder(
			f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).
				Return(bookingapi.ConfirmResult{}, bookingapi.ErrUnavailable),
			f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, confirmationOf([]string{"B1", "B2"}, []string{"C1", "C2"})).
				Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil),
		)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil).Times(1)

		target := "/checkout/return?" + returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode()
		response := send(router, http.MethodGet, target, "", cookie)
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)
		assert.Contains(t, response.Body.String(), "Try again")
		assert.NotContains(t, response.Body.String(), "Cancel and return")

		_, found := pendingContext(t, c, f)
		assert.True(t, found)

		response = send(router, http.MethodGet, target, "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)

		_, found = pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Tampered response cancels the session bookings only", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		query := returnQuery("00", "BOOKINGS:B1,B2", "25000")
		query.Set("vnp_OrderInfo", "BOOKINGS:B1,B2,B9")

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).Return(bookingapi.CancelResult{}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+query.Encode(), "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Contains(t, response.Header().Get("Location"), "could+not+be+verified")
	})

	t.Run("Bookings fall back to session when order description is missing", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, confirmationOf([]string{"B1", "B2"}, []string{"C1", "C2"})).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
	})

	t.Run("Failure with corrupt breakdown cancels the session bookings", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		session, _, err := f.sessions.Get(c, "s1")
		assert.NoError(t, err)
		session.Set(checkoutapi.KeyAmountBreakdown, "{not json")
		assert.NoError(t, f.sessions.Put(c, session))

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).
			Return(bookingapi.CancelResult{Cancelled: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("24", "", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/cart?message=cancelled+by+user", response.Header().Get("Location"))

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Paid return for bookings cancelled meanwhile is no success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).
			Return(bookingapi.ConfirmResult{AlreadyResolved: []string{"B1", "B2"}}, nil)
		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B1").
			Return(bookingapi.Booking{ID: "B1", Status: bookingapi.BookingStatusCancelled, Amount: 100}, nil)
		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B2").
			Return(bookingapi.Booking{ID: "B2", Status: bookingapi.BookingStatusCancelled, Amount: 150}, nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Contains(t, response.Header().Get("Location"), "already+been+cancelled")

		_, found, _ := f.confirmations.Get(c, "T1")
		assert.False(t, found)
	})

	t.Run("Paid return for bookings confirmed before is success", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1"}, AlreadyResolved: []string{"B2"}}, nil)
		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B2").
			Return(bookingapi.Booking{ID: "B2", Status: bookingapi.BookingStatusConfirmed, Amount: 150}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `<span id="total">250</span>`)
	})

	t.Run("Status check failing after already resolved is retryable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).
			Return(bookingapi.ConfirmResult{AlreadyResolved: []string{"B1", "B2"}}, nil)
		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B1").Return(bookingapi.Booking{}, bookingapi.ErrUnavailable)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)

		_, found := pendingContext(t, c, f)
		assert.True(t, found)
	})

	t.Run("No order description and no session is unrecoverable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("00", "Order 123", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Contains(t, response.Header().Get("Location"), "contact+support")
	})

	t.Run("Failure cancels exactly the bookings of the response", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1"}).Return(bookingapi.CancelResult{}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("51", "BOOKINGS:B1", "10000").Encode(), "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/cart?message=insufficient+funds", response.Header().Get("Location"))

		// context is about another set: kept
		_, found := pendingContext(t, c, f)
		assert.True(t, found)
	})

	t.Run("Failed cancel keeps context", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).Return(bookingapi.CancelResult{}, bookingapi.ErrUnavailable)

		response := send(router, http.MethodGet, "/checkout/return?"+returnQuery("24", "BOOKINGS:B1,B2", "25000").Encode(), "", cookie)
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)
		assert.Contains(t, response.Body.String(), "Cancel and return")

		_, found := pendingContext(t, c, f)
		assert.True(t, found)
	})
}

func TestResume(t *testing.T) {
	t.Run("Login required", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		_, router, _ := setup(t, ctrl, 0)

		response := send(router, http.MethodGet, "/checkout/resume?token=abc", "", nil)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/login?returnUrl=%2Fcheckout%2Fresume%3Ftoken%3Dabc", response.Header().Get("Location"))
	})

	t.Run("Forged token is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		response := send(router, http.MethodGet, "/checkout/resume?token=abc", "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Contains(t, response.Header().Get("Location"), "/cart?message=")
	})

	t.Run("Total from breakdown when session still has it", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)
		token, _ := f.sut.service.resumeTokens.create([]string{"B1", "B2"}, "T1", "ref1")

		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, confirmationOf([]string{"B1", "B2"}, nil)).
			Return(bookingapi.ConfirmResult{Confirmed: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/resume?token="+url.QueryEscape(token), "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `<span id="total">250</span>`)

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Degraded total when backend cannot tell", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)
		token, _ := f.sut.service.resumeTokens.create([]string{"B1"}, "T1", "ref1")

		f.backend.EXPECT().GetBooking(gomock.Any(), accessToken, "B1").Return(bookingapi.Booking{}, bookingapi.ErrUnavailable)
		f.backend.EXPECT().ConfirmPayment(gomock.Any(), accessToken, gomock.Any()).Return(bookingapi.ConfirmResult{Confirmed: []string{"B1"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodGet, "/checkout/resume?token="+url.QueryEscape(token), "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), "not available")
	})
}

func TestCancelCheckout(t *testing.T) {
	t.Run("User cancels pending checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).
			Return(bookingapi.CancelResult{AlreadyResolved: []string{"B1", "B2"}}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodPost, "/checkout/cancel", "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Equal(t, "/cart?message=checkout+cancelled", response.Header().Get("Location"))

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Nothing pending", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		response := send(router, http.MethodPost, "/checkout/cancel", "", cookie)
		assert.Equal(t, http.StatusSeeOther, response.Code)
		assert.Contains(t, response.Header().Get("Location"), "no+checkout+in+progress")
	})
}

func TestPendingAndExpiry(t *testing.T) {
	t.Run("Pending checkout as json", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, &pendingB1B2)

		response := send(router, http.MethodGet, "/checkout/pending", "", cookie)
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `"Reference": "ref1"`)
	})

	t.Run("No pending checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, 0)
		cookie := loggedIn(t, c, f, nil)

		response := send(router, http.MethodGet, "/checkout/pending", "", cookie)
		assert.Equal(t, http.StatusNotFound, response.Code)
	})

	t.Run("Expired checkout is cancelled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, time.Hour)
		loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).Return(bookingapi.CancelResult{}, nil)
		f.publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		response := send(router, http.MethodPut, "/checkout/task/expire/s1/ref1", "", nil)
		assert.Equal(t, http.StatusOK, response.Code)

		_, found := pendingContext(t, c, f)
		assert.False(t, found)
	})

	t.Run("Replaced checkout is left alone", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, time.Hour)
		loggedIn(t, c, f, &pendingB1B2)

		response := send(router, http.MethodPut, "/checkout/task/expire/s1/ref0", "", nil)
		assert.Equal(t, http.StatusOK, response.Code)

		_, found := pendingContext(t, c, f)
		assert.True(t, found)
	})

	t.Run("Failing backend makes the task retry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		c, router, f := setup(t, ctrl, time.Hour)
		loggedIn(t, c, f, &pendingB1B2)

		f.backend.EXPECT().CancelUnpaid(gomock.Any(), accessToken, []string{"B1", "B2"}).Return(bookingapi.CancelResult{}, bookingapi.ErrUnavailable)

		response := send(router, http.MethodPut, "/checkout/task/expire/s1/ref1", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, response.Code)
	})
}
