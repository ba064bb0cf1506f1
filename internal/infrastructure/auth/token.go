package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zhima-Mochi/escrowshop/internal/domain/principal"
	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
)

const defaultLeeway = 30 * time.Second

// Claims carried by an access token. Subject is the principal id.
type Claims struct {
	Role   string `json:"role"`
	Wallet string `json:"wallet,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns HS256 bearer tokens into principals. When a directory is
// configured the stored record wins over the token's wallet claim, and a role
// that disagrees with the record is rejected.
type Verifier struct {
	secret    []byte
	leeway    time.Duration
	directory principal.Directory
}

func NewVerifier(secret string, directory principal.Directory) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	return &Verifier{secret: []byte(secret), leeway: defaultLeeway, directory: directory}, nil
}

// ExtractBearer returns the token of an "Authorization: Bearer" header value.
func ExtractBearer(header string) string {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (v *Verifier) Resolve(ctx context.Context, token string) (principal.Principal, error) {
	if token == "" {
		return principal.Principal{}, ErrMissingToken
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.leeway))
	if err != nil || !parsed.Valid {
		return principal.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return principal.Principal{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	role, err := principal.ParseRole(claims.Role)
	if err != nil {
		return principal.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	p := principal.Principal{ID: claims.Subject, Role: role, WalletAddress: claims.Wallet}
	if v.directory == nil {
		return p, nil
	}
	stored, err := v.directory.FindByID(ctx, p.ID)
	switch {
	case errors.Is(err, principal.ErrNotFound):
		return p, nil
	case err != nil:
		return principal.Principal{}, err
	case stored.Role != role:
		return principal.Principal{}, fmt.Errorf("%w: role does not match principal", ErrInvalidToken)
	}
	return *stored, nil
}

// Issue signs a token for p that expires after ttl.
func (v *Verifier) Issue(p principal.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:   string(p.Role),
		Wallet: p.WalletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
