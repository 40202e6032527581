package mysession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MarcGrol/bookingportal/lib/mylog"
	"github.com/MarcGrol/bookingportal/lib/mystore"
	"github.com/MarcGrol/bookingportal/lib/mytime"
	"github.com/MarcGrol/bookingportal/lib/myuuid"
)

const issuer = "bookingportal"

type Config struct {
	Secret     string
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Manager binds a signed session cookie to a server side Session.
// The cookie only carries the session uid.
type Manager struct {
	config Config
	store  mystore.Store[Session]
	nower  mytime.Nower
	uuider myuuid.UUIDer
	logger mylog.Logger
}

func NewManager(config Config, store mystore.Store[Session], nower mytime.Nower, uuider myuuid.UUIDer) *Manager {
	return &Manager{
		config: config,
		store:  store,
		nower:  nower,
		uuider: uuider,
		logger: mylog.New("session"),
	}
}

// Current returns the session referred to by the request cookie, if any.
// A missing, forged, expired or unknown cookie all mean: no session.
func (m *Manager) Current(c context.Context, r *http.Request) (*Session, bool, error) {
	cookie, err := r.Cookie(m.config.CookieName)
	if err != nil {
		return nil, false, nil
	}

	uid, err := m.parseCookieValue(cookie.Value)
	if err != nil {
		m.logger.Log(c, "", mylog.SeverityInfo, "Ignoring session cookie: %s", err)
		return nil, false, nil
	}

	return m.Get(c, uid)
}

// Start returns the current session or creates a new one, and (re)issues the cookie.
func (m *Manager) Start(c context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	session, found, err := m.Current(c, r)
	if err != nil {
		return nil, err
	}
	if !found {
		session = &Session{
			UID:       m.uuider.Create(),
			CreatedAt: m.nower.Now(),
		}
		err = m.Put(c, session)
		if err != nil {
			return nil, err
		}
		m.logger.Log(c, session.UID, mylog.SeverityInfo, "Started new session")
	}

	cookie, err := m.Cookie(*session)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, cookie)

	return session, nil
}

func (m *Manager) Get(c context.Context, uid string) (*Session, bool, error) {
	session, found, err := m.store.Get(c, uid)
	if err != nil {
		return nil, false, fmt.Errorf("error fetching session %s: %s", uid, err)
	}
	if !found {
		return nil, false, nil
	}
	if m.config.MaxAge > 0 && m.nower.Now().After(session.CreatedAt.Add(m.config.MaxAge)) {
		return nil, false, nil
	}
	return &session, true, nil
}

func (m *Manager) Put(c context.Context, session *Session) error {
	now := m.nower.Now()
	session.LastModified = &now
	stored := *session
	stored.Values = append([]Value{}, session.Values...)
	err := m.store.Put(c, session.UID, stored)
	if err != nil {
		return fmt.Errorf("error storing session %s: %s", session.UID, err)
	}
	return nil
}

// Destroy removes the session and expires the cookie.
func (m *Manager) Destroy(c context.Context, w http.ResponseWriter, session *Session) error {
	err := m.store.Delete(c, session.UID)
	if err != nil {
		return fmt.Errorf("error deleting session %s: %s", session.UID, err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.config.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	return nil
}

func (m *Manager) Cookie(session Session) (*http.Cookie, error) {
	now := m.nower.Now()
	claims := jwt.RegisteredClaims{
		Issuer:   issuer,
		Subject:  session.UID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if m.config.MaxAge > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(session.CreatedAt.Add(m.config.MaxAge))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, fmt.Errorf("error signing session cookie: %s", err)
	}

	return &http.Cookie{
		Name:     m.config.CookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(m.config.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.config.Secure,
		// Lax keeps the cookie on the top-level GET back from the payment gateway
		SameSite: http.SameSiteLaxMode,
	}, nil
}

func (m *Manager) parseCookieValue(value string) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, &claims, func(token *jwt.Token) (any, error) {
		return []byte(m.config.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.nower.Now),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("session cookie without subject")
	}
	return claims.Subject, nil
}
