package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"landlord-server/config"
	"landlord-server/room"
)

const fallbackName = "Player"

// Verifier turns a bearer token into an identity.
type Verifier interface {
	Verify(token string) (room.Identity, error)
}

// JWKSVerifier validates asymmetric tokens against a JWKS endpoint. The key
// set is fetched once and refreshed in the background by keyfunc.
type JWKSVerifier struct {
	keys   keyfunc.Keyfunc
	issuer string
}

// NewJWKSVerifier starts key discovery for jwksURL. ctx bounds the
// background refresh.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer string) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is not set")
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return &JWKSVerifier{keys: keys, issuer: issuer}, nil
}

// Verify implements Verifier.
func (v *JWKSVerifier) Verify(tokenString string) (room.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"EdDSA", "RS256", "ES256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(tokenString, v.keys.Keyfunc, opts...)
	return identityFromToken(token, err)
}

// HMACVerifier validates HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier creates a verifier for tokens signed with secret.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(tokenString string) (room.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	return identityFromToken(token, err)
}

// Sign issues an HS256 token for identity. It is used by tests and local
// tooling that share the secret.
func (v *HMACVerifier) Sign(identity room.Identity) (string, error) {
	claims := jwt.MapClaims{"sub": identity.UserID, "name": identity.Name}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// NewVerifier picks the verifier the configuration asks for. JWKS wins when
// both a JWKS URL and a shared secret are configured.
func NewVerifier(ctx context.Context, cfg *config.Config) (Verifier, error) {
	switch {
	case cfg.AuthJWKSURL != "":
		slog.Info("verifying tokens against JWKS", "tag", "auth", "url", cfg.AuthJWKSURL)
		return NewJWKSVerifier(ctx, cfg.AuthJWKSURL, cfg.AuthIssuer)
	case cfg.AuthHMACSecret != "":
		slog.Info("verifying HS256 tokens", "tag", "auth")
		return NewHMACVerifier(cfg.AuthHMACSecret, cfg.AuthIssuer), nil
	default:
		return nil, errors.New("no auth configured: set AUTH_JWKS_URL or AUTH_HMAC_SECRET")
	}
}

func identityFromToken(token *jwt.Token, err error) (room.Identity, error) {
	if err != nil {
		return room.Identity{}, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return room.Identity{}, errors.New("invalid token claims")
	}
	id := UserIDFromClaims(claims)
	if id == "" {
		return room.Identity{}, errors.New("token has no subject")
	}
	return room.Identity{UserID: id, Name: FirstNameFromClaims(claims)}, nil
}

// FirstNameFromClaims returns the first word of the "name" claim, or a fallback.
func FirstNameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return fallbackName
	}
	return parts[0]
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
