package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xraph/greenscore/types"
)

// JWTVerifier turns HS256 bearer tokens into principals. The token subject
// is the address the bearer controls.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for tokens signed with secret. When
// issuer is non-empty, tokens must carry a matching "iss" claim.
func NewJWTVerifier(secret []byte, issuer string) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: jwt secret is empty")
	}
	return &JWTVerifier{secret: secret, issuer: issuer}, nil
}

// Verify parses and validates token and returns the subject address.
func (v *JWTVerifier) Verify(token string) (types.Address, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}
	if !parsed.Valid {
		return "", errors.New("auth: invalid token")
	}

	addr := types.ParseAddress(claims.Subject)
	if addr.IsZero() {
		return "", errors.New("auth: token has no subject")
	}
	return addr, nil
}

// Issue signs a token proving control of addr for ttl.
func (v *JWTVerifier) Issue(addr types.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   addr.String(),
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
