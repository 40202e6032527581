package auth

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	formcodec "github.com/go-playground/form/v4"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/bookingportal/lib/mycontext"
	"github.com/MarcGrol/bookingportal/lib/myerrors"
	"github.com/MarcGrol/bookingportal/lib/myhttp"
	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mysession"
	"github.com/MarcGrol/bookingportal/services/bookingapi"
)

const defaultReturnPath = "/"

//go:embed templates
var templateFolder embed.FS

var (
	loginPageTemplate *template.Template
)

func init() {
	loginPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/login.html"))
}

type LoginForm struct {
	Username  string `form:"username"`
	Password  string `form:"password"`
	ReturnURL string `form:"returnUrl"`
}

type loginPage struct {
	ReturnURL string
	Username  string
	Error     string
}

type webService struct {
	logger   mylog.Logger
	sessions *mysession.Manager
	backend  bookingapi.Backend
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(sessions *mysession.Manager, backend bookingapi.Backend) *webService {
	return &webService{
		logger:   mylog.New("auth"),
		sessions: sessions,
		backend:  backend,
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/login", s.loginPage()).Methods("GET")
	router.HandleFunc("/login", s.login()).Methods("POST")
	router.HandleFunc("/logout", s.logout()).Methods("POST")

	return nil
}

func (s *webService) loginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)

		s.writeLoginPage(c, w, http.StatusOK, loginPage{
			ReturnURL: myhttp.SafeReturnPath(r.URL.Query().Get("returnUrl"), defaultReturnPath),
		})
	}
}

func (s *webService) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		form, err := parseLoginForm(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}
		returnPath := myhttp.SafeReturnPath(form.ReturnURL, defaultReturnPath)

		token, err := s.backend.Login(c, form.Username, form.Password)
		if err != nil {
			s.logger.Log(c, form.Username, mylog.SeverityInfo, "Login failed: %s", err)
			status, message := http.StatusServiceUnavailable, "login is temporarily unavailable, please try again"
			if errors.Is(err, bookingapi.ErrNotAuthenticated) {
				status, message = http.StatusForbidden, "invalid username or password"
			}
			s.writeLoginPage(c, w, status, loginPage{
				ReturnURL: returnPath,
				Username:  form.Username,
				Error:     message,
			})
			return
		}

		// keeps a pending checkout of an earlier visit in the same browser
		session, err := s.sessions.Start(c, w, r)
		if err != nil {
			errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(err))
			return
		}
		session.Login(token.UserUID, token.AccessToken)
		err = s.sessions.Put(c, session)
		if err != nil {
			errorWriter.WriteError(c, w, 3, myerrors.NewInternalError(err))
			return
		}

		s.logger.Log(c, session.UID, mylog.SeverityInfo, "User %s logged in", token.UserUID)

		http.Redirect(w, r, returnPath, http.StatusSeeOther)
	}
}

func (s *webService) logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		session, found, err := s.sessions.Current(c, r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInternalError(err))
			return
		}
		if found {
			// the session itself stays, so a pending checkout can still be cancelled after the next login
			session.Logout()
			err = s.sessions.Put(c, session)
			if err != nil {
				errorWriter.WriteError(c, w, 2, myerrors.NewInternalError(err))
				return
			}
		}

		http.Redirect(w, r, defaultReturnPath, http.StatusSeeOther)
	}
}

func (s *webService) writeLoginPage(c context.Context, w http.ResponseWriter, status int, page loginPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	err := loginPageTemplate.Execute(w, page)
	if err != nil {
		s.logger.Log(c, "", mylog.SeverityError, "Error rendering login page: %s", err)
	}
}

func parseLoginForm(r *http.Request) (LoginForm, error) {
	err := r.ParseForm()
	if err != nil {
		return LoginForm{}, myerrors.NewInvalidInputError(err)
	}
	form := LoginForm{}
	err = formcodec.NewDecoder().Decode(&form, r.Form)
	if err != nil {
		return LoginForm{}, myerrors.NewInvalidInputError(fmt.Errorf("error decoding form: %s", err))
	}
	if form.Username == "" || form.Password == "" {
		return LoginForm{}, myerrors.NewInvalidInputError(fmt.Errorf("missing username or password"))
	}
	return form, nil
}
