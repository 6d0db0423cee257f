// Package auth issues and verifies the service's signed tokens and hashes
// passwords.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenClass distinguishes access tokens from refresh tokens. Each class has
// its own signing key.
type TokenClass string

const (
	AccessToken  TokenClass = "access"
	RefreshToken TokenClass = "refresh"
)

// Claims carries the standard claims plus the token class. The user
// identifier travels in Subject.
type Claims struct {
	jwt.RegisteredClaims
	Class TokenClass `json:"typ"`
}

// UserID returns the bound user identifier.
func (c *Claims) UserID() string {
	return c.Subject
}

type tokenKey struct {
	secret   []byte
	validity time.Duration
}

// Issuer mints and verifies access and refresh tokens. It holds no mutable
// state and is safe for concurrent use.
type Issuer struct {
	keys map[TokenClass]tokenKey
	now  func() time.Time
}

// NewIssuer builds an Issuer from the token section of the config.
func NewIssuer(cfg *config.Config) *Issuer {
	return &Issuer{
		keys: map[TokenClass]tokenKey{
			AccessToken:  {secret: []byte(cfg.AccessTokenSecret), validity: cfg.AccessTokenValidityDuration},
			RefreshToken: {secret: []byte(cfg.RefreshTokenSecret), validity: cfg.RefreshTokenValidityDuration},
		},
		now: time.Now,
	}
}

// RefreshTokenValidity is the refresh-token lifetime, used for cookie Max-Age.
func (i *Issuer) RefreshTokenValidity() time.Duration {
	return i.keys[RefreshToken].validity
}

func (i *Issuer) IssueAccessToken(userID string) (string, error) {
	return i.issue(userID, AccessToken)
}

func (i *Issuer) IssueRefreshToken(userID string) (string, error) {
	return i.issue(userID, RefreshToken)
}

func (i *Issuer) issue(userID string, class TokenClass) (string, error) {
	key, ok := i.keys[class]
	if !ok {
		return "", common.ErrInvalidToken
	}
	return GenerateToken(userID, class, key.secret, key.validity, i.now())
}

// Verify checks signature, expiry and class of tokenString using the key of
// class. Expired tokens yield common.ErrTokenExpired; every other failure
// yields common.ErrInvalidToken.
func (i *Issuer) Verify(tokenString string, class TokenClass) (*Claims, error) {
	key, ok := i.keys[class]
	if !ok {
		return nil, common.ErrInvalidToken
	}
	return ParseToken(tokenString, class, key.secret, i.now)
}

// GenerateToken signs an HS256 token for userID that expires validity after now.
func GenerateToken(userID string, class TokenClass, secretKey []byte, validityDuration time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
			ID:        uuid.NewString(),
		},
		Class: class,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken validates tokenString and returns its claims.
func ParseToken(tokenString string, class TokenClass, secretKey []byte, now func() time.Time) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Class != class || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
