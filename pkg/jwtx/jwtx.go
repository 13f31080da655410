// Package jwtx signs and verifies the portal's HS256 session tokens. The
// portal does not run login flows itself; an external identity provider
// vouches for who is calling and the token carries only the account id.
package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrExpiredToken = errors.New("jwtx: token expired")
)

// Claims is the verified content of a session token.
type Claims struct {
	AccountID string
	Issuer    string
	ExpiresAt time.Time
}

// Signer mints HS256 tokens. Outside of tests this mainly exists for the
// identity bridge that exchanges upstream identities for portal sessions.
type Signer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func (s Signer) Sign(accountID string) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("jwtx: empty signing secret")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountID,
		Issuer:    s.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.TTL)),
	})

	signed, err := token.SignedString(s.Secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

// Verifier checks HS256 tokens against the shared secret and, when set, the
// expected issuer.
type Verifier struct {
	Secret []byte
	Issuer string
}

func (v Verifier) Verify(raw string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	var registered jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(raw, &registered, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}

	if v.Issuer != "" && registered.Issuer != v.Issuer {
		return Claims{}, ErrInvalidToken
	}
	if registered.Subject == "" {
		return Claims{}, ErrInvalidToken
	}

	claims := Claims{
		AccountID: registered.Subject,
		Issuer:    registered.Issuer,
	}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	return claims, nil
}
