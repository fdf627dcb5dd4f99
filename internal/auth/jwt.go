// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/middleware"
)

const (
	tokenTypeAccess     = "access"
	tokenTypeRefresh    = "refresh"
	tokenTypeActivation = "activation"
)

var ErrWeakSecret = errors.New("jwt secret must be at least 32 bytes")

// JWTManager signs and verifies HS256 tokens with the configured secret.
type JWTManager struct {
	key    jwk.Key
	config config.JWTConfig
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	if len(cfg.Secret) < 32 {
		return nil, ErrWeakSecret
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import secret: %w", err)
	}

	if setErr := key.Set(jwk.AlgorithmKey, jwa.HS256()); setErr != nil {
		return nil, fmt.Errorf("set algorithm: %w", setErr)
	}

	return &JWTManager{key: key, config: cfg}, nil
}

type AccessTokenClaims struct {
	UserID       int64
	Role         string
	TokenVersion int
}

// IssuedToken is a signed token plus the identifiers the server tracks.
type IssuedToken struct {
	Token     string
	JTI       string
	FamilyID  string
	ExpiresAt time.Time
}

func (m *JWTManager) CreateAccessToken(
	claims AccessTokenClaims,
) (*IssuedToken, error) {
	now := time.Now()
	jti := uuid.New().String()
	expiresAt := now.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(strconv.FormatInt(claims.UserID, 10)).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("role", claims.Role).
		Claim("token_version", claims.TokenVersion).
		Claim("type", tokenTypeAccess).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := m.sign(token)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{Token: signed, JTI: jti, ExpiresAt: expiresAt}, nil
}

// ParseAccessToken checks signature, expiry, issuer, audience and type.
// Revocation checks happen in the service.
func (m *JWTManager) ParseAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	token, err := m.parse(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	userID, err := subjectID(token)
	if err != nil {
		return nil, err
	}

	var roleStr string
	if err := token.Get("role", &roleStr); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing role claim: %w",
			core.ErrTokenInvalid,
		)
	}

	var versionFloat float64
	if err := token.Get("token_version", &versionFloat); err != nil {
		return nil, fmt.Errorf(
			"verify token: missing token_version claim: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, _ := token.JwtID()
	exp, _ := token.Expiration()

	return &middleware.AccessTokenClaims{
		UserID:       userID,
		Role:         roleStr,
		TokenVersion: int(versionFloat),
		JTI:          jti,
		ExpiresAt:    exp,
	}, nil
}

// CreateRefreshToken issues a refresh JWT. An empty familyID starts a new
// rotation family.
func (m *JWTManager) CreateRefreshToken(
	userID int64,
	familyID string,
) (*IssuedToken, error) {
	now := time.Now()
	jti := uuid.New().String()
	expiresAt := now.Add(m.config.RefreshTokenExpire)

	if familyID == "" {
		familyID = uuid.New().String()
	}

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(strconv.FormatInt(userID, 10)).
		IssuedAt(now).
		Expiration(expiresAt).
		Claim("fam", familyID).
		Claim("type", tokenTypeRefresh).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build refresh token: %w", err)
	}

	signed, err := m.sign(token)
	if err != nil {
		return nil, err
	}

	return &IssuedToken{
		Token:     signed,
		JTI:       jti,
		FamilyID:  familyID,
		ExpiresAt: expiresAt,
	}, nil
}

type RefreshClaims struct {
	UserID   int64
	JTI      string
	FamilyID string
}

func (m *JWTManager) ParseRefreshToken(tokenString string) (*RefreshClaims, error) {
	token, err := m.parse(tokenString, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	userID, err := subjectID(token)
	if err != nil {
		return nil, err
	}

	jti, ok := token.JwtID()
	if !ok || jti == "" {
		return nil, fmt.Errorf("verify refresh token: missing jti: %w", core.ErrTokenInvalid)
	}

	var family string
	if err := token.Get("fam", &family); err != nil {
		return nil, fmt.Errorf("verify refresh token: missing family: %w", core.ErrTokenInvalid)
	}

	return &RefreshClaims{UserID: userID, JTI: jti, FamilyID: family}, nil
}

func (m *JWTManager) sign(token jwt.Token) (string, error) {
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func (m *JWTManager) parse(tokenString, wantType string) (jwt.Token, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), m.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil || tokenType != wantType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	return token, nil
}

func subjectID(token jwt.Token) (int64, error) {
	subject, ok := token.Subject()
	if !ok || subject == "" {
		return 0, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	id, err := strconv.ParseInt(subject, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf(
			"verify token: malformed subject: %w",
			core.ErrTokenInvalid,
		)
	}

	return id, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
