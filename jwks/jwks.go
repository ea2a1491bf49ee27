// Package jwks fetches JSON Web Key Sets from a token issuer and selects the
// signing key for a token.
package jwks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// WellKnownPath is the key-distribution path appended to the authority URL.
const WellKnownPath = ".well-known/jwks.json"

// maxBodyBytes caps the size of a JWKS document.
const maxBodyBytes = 1 << 20

var (
	// ErrFetchFailed is returned when the key set cannot be retrieved or decoded
	ErrFetchFailed = errors.New("failed to fetch JWKS")

	// ErrKeyNotFound is returned when no key in the set matches the token's kid
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrMalformedHeader accompanies ErrKeyNotFound when the token header cannot be decoded
	ErrMalformedHeader = errors.New("malformed token header")

	// ErrUnsupportedKey is returned when a key cannot be used as RSA verification material
	ErrUnsupportedKey = errors.New("unsupported signing key")
)

// JWKS represents a JSON Web Key Set. Keys keep the order of the document.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Alg string   `json:"alg"`
	Kty string   `json:"kty"`
	Use string   `json:"use"`
	N   string   `json:"n"`
	E   string   `json:"e"`
	Kid string   `json:"kid"`
	X5t string   `json:"x5t"`
	X5c []string `json:"x5c"`
}

// wireSet and wireKey mirror the document with presence tracking: every
// field of every key must be present, extra fields are ignored.
type wireSet struct {
	Keys []wireKey `json:"keys" validate:"required,dive"`
}

type wireKey struct {
	Alg *string  `json:"alg" validate:"required"`
	Kty *string  `json:"kty" validate:"required"`
	Use *string  `json:"use" validate:"required"`
	N   *string  `json:"n" validate:"required"`
	E   *string  `json:"e" validate:"required"`
	Kid *string  `json:"kid" validate:"required"`
	X5t *string  `json:"x5t" validate:"required"`
	X5c []string `json:"x5c" validate:"required"`
}

var validate = validator.New()

// Decode strictly parses a JWKS document. A document with any key missing
// one of alg, kty, use, n, e, kid, x5t or x5c is rejected as a whole.
func Decode(r io.Reader) (*JWKS, error) {
	var doc wireSet
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}
	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("invalid JWKS document: %w", err)
	}

	set := &JWKS{Keys: make([]JWK, 0, len(doc.Keys))}
	for _, k := range doc.Keys {
		set.Keys = append(set.Keys, JWK{
			Alg: *k.Alg,
			Kty: *k.Kty,
			Use: *k.Use,
			N:   *k.N,
			E:   *k.E,
			Kid: *k.Kid,
			X5t: *k.X5t,
			X5c: k.X5c,
		})
	}
	return set, nil
}

// Endpoint joins the authority base URL with the well-known JWKS path.
func Endpoint(authority string) (string, error) {
	u, err := url.Parse(authority)
	if err != nil {
		return "", fmt.Errorf("invalid authority URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid authority URL %q: scheme and host are required", authority)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += WellKnownPath
	return u.String(), nil
}

// Config holds configuration for Client
type Config struct {
	Timeout time.Duration
}

// Client retrieves key sets over HTTP. It keeps no state between calls.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewClient creates a new JWKS client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		timeout:    config.Timeout,
		logger:     logger,
	}
}

// Fetch retrieves the key set at uri. The request is bound to ctx, so a
// cancelled caller aborts the network call.
func (c *Client) Fetch(ctx context.Context, uri string) (*JWKS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status code %d", ErrFetchFailed, resp.StatusCode)
	}

	set, err := Decode(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	c.logger.Debug("jwks fetched",
		zap.String("uri", uri),
		zap.Int("keys", len(set.Keys)),
		zap.Duration("duration", time.Since(start)))

	return set, nil
}

// FetchBlocking retrieves the key set outside of any request, bounded only
// by the client timeout. Use it for startup priming and tooling, never on
// the request path.
func (c *Client) FetchBlocking(uri string) (*JWKS, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.Fetch(ctx, uri)
}
