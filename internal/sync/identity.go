package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned for a missing, expired or forged token.
var ErrUnauthenticated = errors.New("sync: not authenticated")

// Identity is the authenticated user that owns the remote snapshot.
type Identity struct {
	UserID string
	Email  string
}

// Namespace returns a storage-safe prefix for the user's snapshot.
func (id Identity) Namespace() string {
	return "lexicard/" + strings.NewReplacer("/", "_", ":", "_").Replace(id.UserID)
}

type claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// ParseIdentity validates an HS256 token signed with secret and returns the
// user it names in its subject.
func ParseIdentity(token string, secret []byte, now func() time.Time) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}
	if now == nil {
		now = time.Now
	}
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(time.Minute),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}
	return Identity{UserID: c.Subject, Email: c.Email}, nil
}

// IssueToken signs a token for id valid for ttl. It backs local tooling and
// tests; production tokens come from the identity provider.
func IssueToken(id Identity, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	c := claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}
