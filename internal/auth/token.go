package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hyrelay/hyrelay/internal/config"
	"github.com/hyrelay/hyrelay/internal/domain"
)

// TokenProvider defines the contract for issuing and validating access tokens.
type TokenProvider interface {
	GenerateAccessToken(user *domain.User, roles []string, permissions []string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims defines the custom JWT claims carried by an access token. The user
// id rides in its own claim; the registered sub claim carries the same value
// as a string for standard consumers.
type Claims struct {
	UserID         uuid.UUID `json:"uid"`
	OrganizationID uuid.UUID `json:"org"`
	Email          string    `json:"email"`
	Roles          []string  `json:"roles"`
	Permissions    []string  `json:"perms,omitempty"`
	TokenType      string    `json:"typ"`
	jwt.RegisteredClaims
}

// JWTProvider implements TokenProvider using HS256 or RS256 depending on
// configuration. Validation pins the configured algorithm: a token signed
// with any other method is rejected before signature verification.
type JWTProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	tokenTTL  time.Duration
	clockSkew time.Duration
}

// NewJWTProvider builds a provider from configuration. For RS256 the private
// key must be PEM-encoded PKCS#1 or PKCS#8.
func NewJWTProvider(cfg *config.Config) (*JWTProvider, error) {
	p := &JWTProvider{
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		tokenTTL:  cfg.AccessTokenTTL,
		clockSkew: time.Minute,
	}

	switch cfg.JWTAlgorithm {
	case "HS256":
		if len(cfg.JWTSecret) < 32 {
			return nil, fmt.Errorf("JWT_SECRET must be at least 32 bytes for HS256")
		}
		p.method = jwt.SigningMethodHS256
		p.signKey = []byte(cfg.JWTSecret)
		p.verifyKey = []byte(cfg.JWTSecret)
	case "RS256":
		priv, err := parseRSAPrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			return nil, err
		}
		p.method = jwt.SigningMethodRS256
		p.signKey = priv
		p.verifyKey = &priv.PublicKey
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.JWTAlgorithm)
	}
	return p, nil
}

func parseRSAPrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, fmt.Errorf("JWT_PRIVATE_KEY is not valid PEM")
	}

	if priv, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return priv, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an RSA private key")
	}
	return priv, nil
}

// GenerateAccessToken creates a signed JWT carrying the user's identity,
// tenant, roles, and flattened permissions.
func (p *JWTProvider) GenerateAccessToken(user *domain.User, roles []string, permissions []string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Email:          user.Email.String(),
		Roles:          roles,
		Permissions:    permissions,
		TokenType:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now.Add(-p.clockSkew)),
			NotBefore: jwt.NewNumericDate(now.Add(-p.clockSkew)),
		},
	}
	if p.issuer != "" {
		claims.Issuer = p.issuer
	}
	if p.audience != "" {
		claims.Audience = jwt.ClaimStrings{p.audience}
	}

	signed, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies the JWT, returning the claims on success.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{p.method.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	if p.audience != "" {
		opts = append(opts, jwt.WithAudience(p.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return p.verifyKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.E(domain.CodeTokenExpired, "access token has expired")
		}
		return nil, domain.Wrap(domain.CodeTokenInvalid, "invalid access token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.E(domain.CodeTokenInvalid, "invalid access token")
	}
	if claims.TokenType != "access" {
		return nil, domain.E(domain.CodeTokenInvalid, "token is not an access token")
	}
	return claims, nil
}
