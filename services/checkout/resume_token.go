package checkout

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MarcGrol/bookingportal/lib/mytime"
)

const resumeIssuer = "bookingportal-checkout-resume"

type resumeClaims struct {
	BookingIDs    []string `json:"bookingIds"`
	TransactionID string   `json:"txn"`
	Reference     string   `json:"ref,omitempty"`
	jwt.RegisteredClaims
}

// resumeTokens carry a paid booking set through login, outside the session.
type resumeTokens struct {
	secret []byte
	ttl    time.Duration
	nower  mytime.Nower
}

func newResumeTokens(secret string, ttl time.Duration, nower mytime.Nower) resumeTokens {
	return resumeTokens{
		secret: []byte(secret),
		ttl:    ttl,
		nower:  nower,
	}
}

func (rt resumeTokens) create(bookingIDs []string, transactionID string, reference string) (string, error) {
	now := rt.nower.Now()
	claims := resumeClaims{
		BookingIDs:    bookingIDs,
		TransactionID: transactionID,
		Reference:     reference,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   resumeIssuer,
			Subject:  transactionID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if rt.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(rt.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(rt.secret)
	if err != nil {
		return "", fmt.Errorf("error signing resume token: %s", err)
	}
	return signed, nil
}

func (rt resumeTokens) parse(token string) (resumeClaims, error) {
	claims := resumeClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(token *jwt.Token) (any, error) {
		return rt.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(resumeIssuer),
		jwt.WithTimeFunc(rt.nower.Now),
	)
	if err != nil {
		return resumeClaims{}, fmt.Errorf("%w: %s", ErrInvalidResumeToken, err)
	}
	if len(claims.BookingIDs) == 0 || claims.TransactionID == "" {
		return resumeClaims{}, ErrInvalidResumeToken
	}
	return claims, nil
}
