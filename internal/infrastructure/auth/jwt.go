package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hera/backend/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing sub in claims")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims represents the bearer credential claims. Subject is the stable
// external user id the actor is resolved from.
type Claims struct {
	jwt.RegisteredClaims
	OrganizationID string `json:"organization_id,omitempty"`
	Email          string `json:"email,omitempty"`
}

// JWTService verifies bearer credentials and, for development and tests,
// issues them.
type JWTService struct {
	secret      []byte
	issuer      string
	audience    string
	leeway      time.Duration
	expiration  time.Duration
	revocations TokenRevocationList
}

// NewJWTService creates a new JWT service. revocations may be nil.
func NewJWTService(cfg config.JWTConfig, revocations TokenRevocationList) *JWTService {
	return &JWTService{
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		leeway:      cfg.Leeway,
		expiration:  cfg.TokenExpiration,
		revocations: revocations,
	}
}

// IssueTokenInput contains input for token issuance
type IssueTokenInput struct {
	ExternalUserID string
	OrganizationID *uuid.UUID
	Email          string
	TTL            time.Duration // zero uses the configured expiration
}

// IssueToken mints a signed HS256 token
func (s *JWTService) IssueToken(input IssueTokenInput) (string, *Claims, error) {
	if input.ExternalUserID == "" {
		return "", nil, ErrMissingSubject
	}
	ttl := input.TTL
	if ttl == 0 {
		ttl = s.expiration
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   input.ExternalUserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: input.Email,
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	if input.OrganizationID != nil {
		claims.OrganizationID = input.OrganizationID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateAccessToken validates a bearer token and returns its claims
func (s *JWTService) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Revoke adds the token's JTI to the revocation list until it expires
func (s *JWTService) Revoke(ctx context.Context, claims *Claims) error {
	if s.revocations == nil {
		return errors.New("token revocation is not configured")
	}
	return s.revocations.Revoke(ctx, claims.ID, claims.RemainingTTL())
}

// RemainingTTL returns the remaining time until the token expires
func (c *Claims) RemainingTTL() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	remaining := time.Until(c.ExpiresAt.Time)
	if remaining < 0 {
		return 0
	}
	return remaining
}
