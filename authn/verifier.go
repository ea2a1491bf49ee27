// Package authn verifies externally issued bearer tokens against the
// authority's published signing keys.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ryanvade/infra-demo-lnl/jwks"
)

// Algorithm is the only signature algorithm accepted.
const Algorithm = "RS256"

// Claims is the principal produced by a successful verification.
type Claims struct {
	Issuer          string    `json:"iss"`
	Subject         string    `json:"sub"`
	Audience        []string  `json:"aud"`
	IssuedAt        time.Time `json:"iat"`
	ExpiresAt       time.Time `json:"exp"`
	AuthorizedParty string    `json:"azp,omitempty"`
	GrantType       string    `json:"gty,omitempty"`
}

// tokenClaims is the wire shape of the token payload
type tokenClaims struct {
	jwt.RegisteredClaims
	AuthorizedParty string `json:"azp,omitempty"`
	GrantType       string `json:"gty,omitempty"`
}

// VerifierConfig holds configuration for Verifier
type VerifierConfig struct {
	// Leeway tolerates clock skew on exp and nbf.
	Leeway time.Duration

	// Issuer and Audience are enforced only when set.
	Issuer   string
	Audience string

	// TimeFunc overrides the clock, for tests.
	TimeFunc func() time.Time
}

// Verifier checks token signatures and time-bound claims.
type Verifier struct {
	parser *jwt.Parser
}

// NewVerifier creates a Verifier pinned to RS256.
func NewVerifier(config VerifierConfig) *Verifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithExpirationRequired(),
	}
	if config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(config.Leeway))
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}
	if config.TimeFunc != nil {
		opts = append(opts, jwt.WithTimeFunc(config.TimeFunc))
	}

	return &Verifier{parser: jwt.NewParser(opts...)}
}

// Verify validates token against key and returns its claims. Every failure
// wraps ErrInvalidToken.
func (v *Verifier) Verify(token string, key *jwks.JWK) (*Claims, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no signing key", ErrInvalidToken)
	}

	publicKey, err := key.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &tokenClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if err := claims.requirePresent(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.toClaims(), nil
}

func (c *tokenClaims) requirePresent() error {
	switch {
	case c.Issuer == "":
		return errors.New("missing iss")
	case c.Subject == "":
		return errors.New("missing sub")
	case len(c.Audience) == 0:
		return errors.New("missing aud")
	case c.IssuedAt == nil:
		return errors.New("missing iat")
	case c.ExpiresAt == nil:
		return errors.New("missing exp")
	}
	return nil
}

func (c *tokenClaims) toClaims() *Claims {
	return &Claims{
		Issuer:          c.Issuer,
		Subject:         c.Subject,
		Audience:        append([]string(nil), c.Audience...),
		IssuedAt:        c.IssuedAt.Time,
		ExpiresAt:       c.ExpiresAt.Time,
		AuthorizedParty: c.AuthorizedParty,
		GrantType:       c.GrantType,
	}
}
