package checkout

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/bookingportal/lib/mycontext"
	"github.com/MarcGrol/bookingportal/lib/myerrors"
	"github.com/MarcGrol/bookingportal/lib/myhttp"
	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mypublisher"
	"github.com/MarcGrol/bookingportal/lib/myqueue"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/mytime"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
	"github.com/MarcGrol/bookingportal/services/checkoutapi"
	"github.com/MarcGrol/bookingportal/services/gateway"
)

const (
	cartPath   = "/cart"
	loginPath  = "/login"
	resumePath = "/checkout/resume"
)

//go:embed templates
var templateFolder embed.FS

var (
	successPageTemplate *template.Template
	reauthPageTemplate  *template.Template
	retryPageTemplate   *template.Template
)

func init() {
	successPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/success.html"))
	reauthPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/reauth.html"))
	retryPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/retry.html"))
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(cfg Config, sessions *mysession.Manager, builder *gateway.Builder, validator *gateway.Validator, backend bookingapi.Backend,
	confirmations mystore.Store[Confirmation], publisher mypublisher.Publisher, queue myqueue.TaskQueuer, nower mytime.Nower, uuider myuuid.UUIDer) *webService {
	logger := mylog.New("checkout")
	return &webService{
		logger:  logger,
		service: newService(cfg, sessions, builder, validator, backend, confirmations, publisher, queue, nower, uuider, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	err := s.service.CreateTopics(c)
	if err != nil {
		return err
	}

	router.HandleFunc("/checkout/start", s.startCheckoutPage()).Methods("POST")
	router.HandleFunc("/checkout/return", s.gatewayReturnPage()).Methods("GET")
	router.HandleFunc(resumePath, s.resumePage()).Methods("GET")
	router.HandleFunc("/checkout/cancel", s.cancelPage()).Methods("POST")
	router.HandleFunc("/checkout/pending", s.pendingCheckout()).Methods("GET")

	router.HandleFunc("/checkout/task/expire/{sessionUID}/{reference}", s.expireTask()).Methods("PUT")

	return nil
}

func (s *webService) startCheckoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.currentSession(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		if !isAuthenticated(session) {
			http.Redirect(w, r, loginURL(cartPath), http.StatusSeeOther)
			return
		}

		form, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		redirectURL, err := s.service.startCheckout(c, session, form, myhttp.ClientIP(r))
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		http.Redirect(w, r, redirectURL, http.StatusSeeOther)
	}
}

func (s *webService) gatewayReturnPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.currentSession(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		outcome := s.service.handleGatewayReturn(c, session, r.URL.Query())

		s.render(c, w, r, outcome)
	}
}

func (s *webService) resumePage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.currentSession(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		outcome := s.service.resumeCheckout(c, session, r.URL.Query().Get("token"))
		if outcome.State == StateNeedsReauth && !isAuthenticated(session) {
			http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}

		s.render(c, w, r, outcome)
	}
}

func (s *webService) cancelPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.currentSession(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		outcome := s.service.cancelCheckout(c, session)
		if errors.Is(outcome.Err, ErrNotAuthenticated) {
			http.Redirect(w, r, loginURL(cartPath), http.StatusSeeOther)
			return
		}

		http.Redirect(w, r, myhttp.WithMessage(cartPath, outcome.Reason), http.StatusSeeOther)
	}
}

func (s *webService) pendingCheckout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, err := s.currentSession(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		if !isAuthenticated(session) {
			errorWriter.WriteError(c, w, 2, myerrors.NewAuthenticationError(ErrNotAuthenticated))
			return
		}

		cc, err := s.service.pendingCheckout(c, session)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cc)
	}
}

func (s *webService) expireTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		sessionUID := mux.Vars(r)["sessionUID"]
		reference := mux.Vars(r)["reference"]

		outcome, err := s.service.expireCheckout(c, sessionUID, reference)
		if err != nil {
			// a failing task is retried by the queue
			errorWriter.WriteError(c, w, 1, myerrors.NewUnavailableError(err))
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{
			Message: fmt.Sprintf("Checkout %s: %s", reference, outcome.Reason),
		})
	}
}

func (s *webService) currentSession(c context.Context, r *http.Request) (*mysession.Session, error) {
	session, found, err := s.service.sessions.Current(c, r)
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}
	if !found {
		return nil, nil
	}
	return session, nil
}

type outcomePage struct {
	Outcome   Outcome
	LoginURL  string
	RetryURL  string
	CancelURL string
	CartURL   string
}

// render turns an outcome into a page or a redirect back to the cart
func (s *webService) render(c context.Context, w http.ResponseWriter, r *http.Request, outcome Outcome) {
	page := outcomePage{
		Outcome:   outcome,
		RetryURL:  r.URL.RequestURI(),
		CancelURL: "/checkout/cancel",
		CartURL:   cartPath,
	}

	switch {
	case outcome.State == StateConfirmed:
		s.writePage(c, w, http.StatusOK, successPageTemplate, page)
	case outcome.State == StateNeedsReauth:
		page.LoginURL = loginURL(resumePath + "?token=" + url.QueryEscape(outcome.ResumeToken))
		s.writePage(c, w, http.StatusOK, reauthPageTemplate, page)
	case outcome.Retryable:
		if outcome.Reason == retryConfirmReason {
			// the payment went through, releasing the bookings is not an option
			page.CancelURL = ""
		}
		s.writePage(c, w, http.StatusServiceUnavailable, retryPageTemplate, page)
	default:
		http.Redirect(w, r, myhttp.WithMessage(cartPath, outcome.Reason), http.StatusSeeOther)
	}
}

func (s *webService) writePage(c context.Context, w http.ResponseWriter, status int, tmpl *template.Template, page outcomePage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := tmpl.Execute(w, page)
	if err != nil {
		s.logger.Log(c, page.Outcome.TransactionID, mylog.SeverityError, "Error rendering page: %s", err)
	}
}

func loginURL(returnPath string) string {
	return loginPath + "?returnUrl=" + url.QueryEscape(returnPath)
}
