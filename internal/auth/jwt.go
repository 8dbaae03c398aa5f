package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teamfines/platform/internal/domain"
)

// Claims carries the actor the identity provider vouched for.
// Subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"org"`
	Role           string `json:"role,omitempty"`
}

// Actor converts the claims into the core's caller context.
func (c *Claims) Actor() domain.Actor {
	return domain.Actor{UserID: c.Subject, OrganizationID: c.OrganizationID, Role: c.Role}
}

// JWTManager issues and validates HS256 actor tokens.
type JWTManager struct {
	secret []byte
	issuer string
	expiry time.Duration
}

// NewJWTManager creates a JWT manager. An empty issuer disables the issuer check.
func NewJWTManager(secret, issuer string, expiry time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), issuer: issuer, expiry: expiry}
}

// GenerateToken creates a signed JWT for the user in the organization.
// Production tokens come from the identity provider; this exists for tooling and tests.
func (m *JWTManager) GenerateToken(userID, organizationID, role string) (string, error) {
	if userID == "" || organizationID == "" {
		return "", fmt.Errorf("user id and organization id are required")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			ID:        uuid.New().String(),
		},
		OrganizationID: organizationID,
		Role:           role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses and validates a JWT, returning claims if valid.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Subject == "" || claims.OrganizationID == "" {
		return nil, fmt.Errorf("token is missing subject or organization")
	}

	return claims, nil
}
