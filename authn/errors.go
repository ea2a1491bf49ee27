package authn

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrMissingCredential is returned when the request carries no Authorization header
	ErrMissingCredential = errors.New("missing credential")

	// ErrMalformedCredential is returned when the Authorization header is not "Bearer <token>"
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrUnknownSigningKey is returned when no key in the key set matches the token's kid
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrInvalidToken is returned when the signature or the claims fail verification
	ErrInvalidToken = errors.New("invalid signature or claims")

	// ErrAuthorityUnavailable is returned when the key set cannot be retrieved from the authority
	ErrAuthorityUnavailable = errors.New("authority unavailable")
)

// StatusCode maps an authentication error to its HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingCredential):
		return http.StatusForbidden
	case errors.Is(err, ErrMalformedCredential):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnknownSigningKey), errors.Is(err, ErrInvalidToken):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ParseBearer extracts the token from an Authorization header value of the
// form "Bearer <token>". The scheme is matched exactly.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingCredential
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" {
		return "", ErrMalformedCredential
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMalformedCredential
	}
	return token, nil
}
