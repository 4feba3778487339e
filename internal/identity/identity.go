package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

const (
	RoleBidder = "bidder"
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

// Identity is the trusted attribution for a request credential.
type Identity struct {
	UserID string
	Role   string
}

// Provider validates bearer tokens (HS256) and mints them for tests and
// the auth glue.
type Provider struct {
	secret []byte
}

func NewProvider(secret string) *Provider { return &Provider{secret: []byte(secret)} }

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate returns the identity behind a bearer token, or
// ErrUnauthenticated. Expired, malformed and wrongly-signed tokens are
// indistinguishable to the caller on purpose.
func (p *Provider) Authenticate(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil || !parsed.Valid || c.Subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	role := c.Role
	if role == "" {
		role = RoleBidder
	}
	return Identity{UserID: c.Subject, Role: role}, nil
}

// Issue signs a token for the given user valid for ttl.
func (p *Provider) Issue(userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(p.secret)
}
