// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/mail"
	"github.com/carterperez-dev/homeser/internal/middleware"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenReuse         = errors.New("token reuse detected")
	ErrUserExists         = errors.New("username or email already exists")
)

type UserInfo struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	TokenVersion int
}

type UserProvider interface {
	GetByID(ctx context.Context, id int64) (*UserInfo, error)
	GetByUsername(ctx context.Context, username string) (*UserInfo, error)
	Register(
		ctx context.Context,
		username, email, passwordHash string,
	) (*UserInfo, error)
	Activate(ctx context.Context, id int64) error
	IncrementTokenVersion(ctx context.Context, id int64) error
}

// Blacklist remembers revoked access-token jtis until they would have
// expired anyway.
type Blacklist interface {
	Add(ctx context.Context, jti string, ttl time.Duration) error
	Contains(ctx context.Context, jti string) (bool, error)
}

type RedisBlacklist struct {
	client redis.UniversalClient
}

func NewRedisBlacklist(client redis.UniversalClient) *RedisBlacklist {
	return &RedisBlacklist{client: client}
}

func (b *RedisBlacklist) Add(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.client.Set(ctx, "blacklist:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	exists, err := b.client.Exists(ctx, "blacklist:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return exists > 0, nil
}

type Deps struct {
	Repo Repository
	// Tx stores a rotated refresh token atomically. Without it the writes
	// go straight to Repo.
	Tx        TokenTx
	JWT       *JWTManager
	Users     UserProvider
	Blacklist Blacklist
	Sessions  *session.Manager
	Cache     cache.Cache
	Mailer    mail.Sender
}

type Service struct {
	repo      Repository
	tx        TokenTx
	jwt       *JWTManager
	users     UserProvider
	blacklist Blacklist
	sessions  *session.Manager
	cache     cache.Cache
	mailer    mail.Sender

	activationTimeout time.Duration
	baseURL           string
}

func NewService(deps Deps, authCfg config.AuthConfig, baseURL string) *Service {
	tx := deps.Tx
	if tx == nil {
		tx = func(ctx context.Context, fn func(Repository) error) error {
			return fn(deps.Repo)
		}
	}

	return &Service{
		repo:              deps.Repo,
		tx:                tx,
		jwt:               deps.JWT,
		users:             deps.Users,
		blacklist:         deps.Blacklist,
		sessions:          deps.Sessions,
		cache:             deps.Cache,
		mailer:            deps.Mailer,
		activationTimeout: authCfg.ActivationTimeout,
		baseURL:           strings.TrimRight(baseURL, "/"),
	}
}

// VerifyAccessToken validates signature and expiry, then checks the jti
// blacklist and that the user is still active with the same token version.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.ParseAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.blacklist.Contains(ctx, claims.JTI)
	if err != nil {
		slog.WarnContext(ctx, "blacklist unavailable, relying on token version", "error", err)
	}
	if revoked {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify token: unknown user: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("verify token: %w", err)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("verify token: %w", core.ErrAccountInactive)
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	claims.Role = user.Role
	return claims, nil
}

// ResolveSession returns the active user bound to the request's session.
func (s *Service) ResolveSession(ctx context.Context, r *http.Request) (policy.Actor, bool) {
	userID, ok := s.sessions.UserID(ctx, r)
	if !ok {
		return policy.Anonymous(), false
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil || !user.IsActive {
		return policy.Anonymous(), false
	}

	return policy.Actor{UserID: user.ID, Role: user.Role}, true
}

// Authenticate checks username and password. Unknown users cost the same
// time as wrong passwords.
func (s *Service) Authenticate(
	ctx context.Context,
	username, password string,
) (*UserInfo, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.VerifyPasswordTimingSafe(password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !core.VerifyPasswordTimingSafe(password, &user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, core.ErrAccountInactive
	}

	return user, nil
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}

	return s.IssueTokens(ctx, user, userAgent, ipAddress)
}

// IssueTokens starts a new refresh family for user.
func (s *Service) IssueTokens(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	return s.createAuthResponse(ctx, user, userAgent, ipAddress, "", nil)
}

// Register creates an inactive account and mails its activation link.
// A failed mail is logged; the account stays pending.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*UserInfo, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Register(ctx, req.Username, req.Email, passwordHash)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.SendActivation(ctx, user); err != nil {
		slog.ErrorContext(ctx, "activation email failed",
			"user_id", user.ID,
			"error", err,
		)
	}

	return user, nil
}

func (s *Service) ActivationLink(user *UserInfo, now time.Time) (string, error) {
	token, err := s.jwt.CreateActivationToken(user, now)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/activate/%s/%s/", s.baseURL, EncodeUID(user.ID), token), nil
}

func (s *Service) SendActivation(ctx context.Context, user *UserInfo) error {
	link, err := s.ActivationLink(user, time.Now())
	if err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nPlease confirm your email address to activate your account:\n\n%s\n\n"+
			"The link expires in %s.\n",
		user.Username, link, s.activationTimeout,
	)

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{user.Email},
		Subject: "Activate your account",
		Body:    body,
	})
}

// Activate validates an activation link and marks the account active.
func (s *Service) Activate(
	ctx context.Context,
	uidb64, token string,
) (*UserInfo, error) {
	uid, err := DecodeUID(uidb64)
	if err != nil {
		return nil, err
	}

	claims, err := s.jwt.parseActivationToken(token)
	if err != nil {
		return nil, err
	}

	if claims.UserID != uid {
		return nil, fmt.Errorf("activate: uid mismatch: %w", core.ErrTokenInvalid)
	}

	if time.Since(claims.IssuedAt) > s.activationTimeout {
		return nil, fmt.Errorf("activate: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("activate: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("activate: %w", err)
	}

	if !core.CompareFingerprint(claims.Fingerprint, activationFingerprint(user, claims.IssuedAt)) {
		return nil, fmt.Errorf("activate: stale token: %w", core.ErrTokenInvalid)
	}

	if err := s.users.Activate(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("activate: %w", err)
	}

	user.IsActive = true
	return user, nil
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	claims, err := s.jwt.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.FindByID(ctx, claims.JTI)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	switch stored.State(time.Now()) {
	case TokenRotated:
		if err := s.repo.RevokeByFamilyID(ctx, stored.FamilyID); err != nil {
			slog.ErrorContext(ctx, "revoke reused token family", "error", err)
		}
		return nil, ErrTokenReuse
	case TokenRevoked:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
	case TokenExpired:
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		return nil, core.ErrAccountInactive
	}

	return s.createAuthResponse(
		ctx,
		user,
		userAgent,
		ipAddress,
		stored.FamilyID,
		&stored.ID,
	)
}

// Logout revokes every outstanding refresh token of the user, bumps the
// token version so issued access tokens stop verifying, blacklists the
// presented access token and drops the user's cart and order cache.
// The caller destroys the session and clears cookies.
func (s *Service) Logout(
	ctx context.Context,
	userID int64,
	presented *middleware.AccessTokenClaims,
) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	if presented != nil && presented.JTI != "" {
		if err := s.RevokeAccessToken(ctx, presented.JTI, presented.ExpiresAt); err != nil {
			slog.WarnContext(ctx, "blacklist access token", "error", err)
		}
	}

	cache.Invalidate(ctx, s.cache, cache.SessionUserKeys(userID)...)
	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	return s.blacklist.Add(ctx, jti, ttl)
}

// FlushExpiredTokens deletes refresh token records that expired more than
// a day ago.
func (s *Service) FlushExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "flushed expired refresh tokens", "count", n)
	return n, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID int64,
) ([]SessionInfo, error) {
	tokens, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID int64,
	sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID int64,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID string,
	oldTokenID *string,
) (*AuthResponse, error) {
	access, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refresh, err := s.jwt.CreateRefreshToken(user.ID, familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	outstanding := &OutstandingToken{
		ID:        refresh.JTI,
		UserID:    user.ID,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if oldTokenID == nil {
		if err := s.repo.Create(ctx, outstanding); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
	} else if err := s.rotate(ctx, *oldTokenID, outstanding); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:      access.Token,
			RefreshToken:     refresh.Token,
			TokenType:        "Bearer",
			ExpiresIn:        int(time.Until(access.ExpiresAt).Round(time.Second) / time.Second),
			ExpiresAt:        access.ExpiresAt,
			RefreshExpiresAt: refresh.ExpiresAt,
		},
	}, nil
}

// rotate stores the successor and marks the old token used in one
// transaction. Losing the race to another refresh of the same token counts
// as reuse: nothing is stored and the family is revoked.
func (s *Service) rotate(ctx context.Context, oldID string, next *OutstandingToken) error {
	lost := false
	err := s.tx(ctx, func(repo Repository) error {
		if err := repo.Create(ctx, next); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		if err := repo.Rotate(ctx, oldID, next.ID); err != nil {
			lost = errors.Is(err, core.ErrNotFound)
			return fmt.Errorf("rotate refresh token: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if !lost {
		return err
	}

	slog.WarnContext(ctx, "concurrent refresh token reuse", "family_id", next.FamilyID)
	if err := s.repo.RevokeByFamilyID(ctx, next.FamilyID); err != nil {
		slog.ErrorContext(ctx, "revoke reused token family", "error", err)
	}
	return ErrTokenReuse
}

var (
	_ middleware.TokenVerifier   = (*Service)(nil)
	_ middleware.SessionResolver = (*Service)(nil)
)
