// AngelaMos | 2026
// session.go

// Package session keeps server-side browser sessions. A session is an opaque
// random id in a cookie pointing at a JSON record in a key-value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/config"
	"github.com/carterperez-dev/homeser/internal/core"
)

const idBytes = 32

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Flash struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Data struct {
	UserID    int64     `json:"user_id,omitempty"`
	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID   string
	Data Data
}

// Manager loads, saves and destroys sessions. It needs its own Cache
// namespace; clearing the read-through cache must not log users out.
type Manager struct {
	store  cache.Cache
	cookie string
	ttl    time.Duration
	secure bool
}

func NewManager(store cache.Cache, cfg config.SessionConfig, secure bool) *Manager {
	return &Manager{
		store:  store,
		cookie: cfg.CookieName,
		ttl:    cfg.TTL,
		secure: secure,
	}
}

// Load returns the request's session, or a fresh unsaved one.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.cookie)
	if err != nil || c.Value == "" {
		return m.fresh()
	}

	raw, err := m.store.Get(ctx, c.Value)
	if errors.Is(err, cache.ErrMiss) {
		return m.fresh()
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	s := &Session{ID: c.Value}
	if err := json.Unmarshal(raw, &s.Data); err != nil {
		return m.fresh()
	}
	return s, nil
}

func (m *Manager) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	raw, err := json.Marshal(s.Data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := m.store.Set(ctx, s.ID, raw, m.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Login rotates the session id so a pre-login id cannot be fixated, keeping
// pending flashes.
func (m *Manager) Login(
	ctx context.Context,
	w http.ResponseWriter,
	s *Session,
	userID int64,
) (*Session, error) {
	if err := m.store.Delete(ctx, s.ID); err != nil {
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	next, err := m.fresh()
	if err != nil {
		return nil, err
	}
	next.Data.UserID = userID
	next.Data.Flashes = s.Data.Flashes

	if err := m.Save(ctx, w, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if err := m.store.Delete(ctx, s.ID); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// UserID reports the logged-in user of the request's session, if any.
func (m *Manager) UserID(ctx context.Context, r *http.Request) (int64, bool) {
	s, err := m.Load(ctx, r)
	if err != nil || s.Data.UserID == 0 {
		return 0, false
	}
	return s.Data.UserID, true
}

func (s *Session) AddFlash(level Level, message string) {
	s.Data.Flashes = append(s.Data.Flashes, Flash{Level: level, Message: message})
}

// PopFlashes returns pending messages and clears them. The caller saves.
func (s *Session) PopFlashes() []Flash {
	f := s.Data.Flashes
	s.Data.Flashes = nil
	return f
}

func (m *Manager) fresh() (*Session, error) {
	id, err := core.GenerateSecureToken(idBytes)
	if err != nil {
		return nil, fmt.Errorf("new session id: %w", err)
	}
	return &Session{ID: id, Data: Data{CreatedAt: time.Now().UTC()}}, nil
}
