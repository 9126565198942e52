package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the only role accepted by the admin API
const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims of an admin API token
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates admin API tokens
type TokenService interface {
	Issue(subject, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type tokenService struct {
	jwtSecret string
	expiry    time.Duration
}

// NewTokenService creates a new instance of TokenService
func NewTokenService(jwtSecret string, expiry time.Duration) TokenService {
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &tokenService{
		jwtSecret: jwtSecret,
		expiry:    expiry,
	}
}

// Issue signs an HS256 token for subject with the given role
func (s *tokenService) Issue(subject, role string) (string, error) {
	if s.jwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		UserID: subject,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *tokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
