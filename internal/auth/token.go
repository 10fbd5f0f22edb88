// Package auth issues and verifies the bearer tokens and password hashes
// used by the API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/domain"
)

const TokenType = "bearer"

// Claims carries the subject email plus the user id and role the access
// policy needs.
type Claims struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}
}

func (m *TokenManager) Issue(u *domain.User) (string, error) {
	now := m.now()
	claims := Claims{
		ID:   u.ID.String(),
		Role: string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse validates the signature and expiry and returns the principal. Every
// failure is reported as domain.ErrAuthentication.
func (m *TokenManager) Parse(token string) (access.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return access.Principal{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
	}

	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return access.Principal{}, fmt.Errorf("%w: token has no valid user id", domain.ErrAuthentication)
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return access.Principal{}, fmt.Errorf("%w: token has no valid role", domain.ErrAuthentication)
	}

	return access.Principal{UserID: id, Role: role}, nil
}

var errEmptyToken = errors.New("empty bearer token")

// ParseBearer strips the "Bearer " prefix from an Authorization header value.
func (m *TokenManager) ParseBearer(header string) (access.Principal, error) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return access.Principal{}, fmt.Errorf("%w: %v", domain.ErrAuthentication, errEmptyToken)
	}
	return m.Parse(header[len(prefix):])
}
