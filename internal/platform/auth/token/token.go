package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/wesrides/rides-api/internal/domain"
	clockport "github.com/wesrides/rides-api/internal/ports/out/clock"
)

var ErrInvalidToken = errors.New("invalid token")

// Issuer signs and verifies the HS256 bearer tokens handed out at login.
//
// The token carries the user ID in the `sub` claim; handlers trust the
// verified ID unconditionally.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clk    clockport.Clock
}

func NewIssuer(secret string, ttl time.Duration, clk clockport.Clock) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		clk:    clk,
	}
}

func (i *Issuer) Issue(userID domain.UserID) (string, error) {
	now := i.clk.Now()
	claims := jwt.RegisteredClaims{
		Subject:   string(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a bearer token and returns the authenticated user ID.
func (i *Issuer) Verify(raw string) (domain.UserID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clk.Now),
	)
	if err != nil {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return domain.UserID(claims.Subject), nil
}
