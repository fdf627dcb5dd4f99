// AngelaMos | 2026
// activation.go

package auth

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/homeser/internal/core"
)

// EncodeUID renders a user id for activation links.
func EncodeUID(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

func DecodeUID(s string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("decode uid: %w", core.ErrTokenInvalid)
	}

	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("decode uid: %w", core.ErrTokenInvalid)
	}

	return id, nil
}

// activationFingerprint binds a token to the account state it was issued
// for. Activating the account or changing its email changes the digest.
func activationFingerprint(u *UserInfo, issuedAt time.Time) string {
	return core.Fingerprint(
		strconv.FormatInt(u.ID, 10),
		strconv.FormatInt(issuedAt.Unix(), 10),
		strconv.FormatBool(u.IsActive),
		u.Email,
	)
}

func (m *JWTManager) CreateActivationToken(u *UserInfo, now time.Time) (string, error) {
	issuedAt := now.Truncate(time.Second)

	token, err := jwt.NewBuilder().
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(strconv.FormatInt(u.ID, 10)).
		IssuedAt(issuedAt).
		Claim("fp", activationFingerprint(u, issuedAt)).
		Claim("type", tokenTypeActivation).
		Build()
	if err != nil {
		return "", fmt.Errorf("build activation token: %w", err)
	}

	return m.sign(token)
}

type activationClaims struct {
	UserID      int64
	IssuedAt    time.Time
	Fingerprint string
}

func (m *JWTManager) parseActivationToken(tokenString string) (*activationClaims, error) {
	token, err := m.parse(tokenString, tokenTypeActivation)
	if err != nil {
		return nil, err
	}

	userID, err := subjectID(token)
	if err != nil {
		return nil, err
	}

	iat, ok := token.IssuedAt()
	if !ok {
		return nil, fmt.Errorf("activation token: missing iat: %w", core.ErrTokenInvalid)
	}

	var fp string
	if err := token.Get("fp", &fp); err != nil {
		return nil, fmt.Errorf("activation token: missing fingerprint: %w", core.ErrTokenInvalid)
	}

	return &activationClaims{UserID: userID, IssuedAt: iat, Fingerprint: fp}, nil
}
