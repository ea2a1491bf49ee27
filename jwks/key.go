package jwks

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// PublicKey converts the key's modulus and exponent into an RSA public key.
func (k *JWK) PublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("%w: key type %q", ErrUnsupportedKey, k.Kty)
	}

	n, err := decodeBigInt(k.N)
	if err != nil {
		return nil, fmt.Errorf("%w: modulus: %v", ErrUnsupportedKey, err)
	}
	e, err := decodeBigInt(k.E)
	if err != nil {
		return nil, fmt.Errorf("%w: exponent: %v", ErrUnsupportedKey, err)
	}
	if !e.IsInt64() || e.Int64() > int64(^uint32(0)>>1) || e.Int64() < 2 {
		return nil, fmt.Errorf("%w: exponent out of range", ErrUnsupportedKey)
	}

	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// decodeBigInt decodes a base64url big-endian unsigned integer. Padded
// input is accepted since some issuers emit it.
func decodeBigInt(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty value")
	}
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// tokenHeader holds the header fields read before verification
type tokenHeader struct {
	Kid string `json:"kid"`
	Alg string `json:"alg"`
}

// SelectKey returns the first key in set whose kid equals the kid declared
// in the token header. Only the header segment is decoded; the signature is
// not checked. A missing kid matches a key with an empty kid.
func SelectKey(token string, set *JWKS) (*JWK, error) {
	header, err := parseHeader(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrKeyNotFound, ErrMalformedHeader, err)
	}
	if set == nil {
		return nil, ErrKeyNotFound
	}

	for i := range set.Keys {
		if set.Keys[i].Kid == header.Kid {
			return &set.Keys[i], nil
		}
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, header.Kid)
}

func parseHeader(token string) (*tokenHeader, error) {
	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return nil, errors.New("token must have three segments")
	}

	raw, err := jwt.NewParser().DecodeSegment(segments[0])
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var header tokenHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return &header, nil
}
