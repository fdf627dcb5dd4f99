// AngelaMos | 2026
// service.go

package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/homeser/internal/cache"
	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
	"github.com/carterperez-dev/homeser/internal/storage"
)

const MaxPictureBytes = 5 << 20

var pictureTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

type Service struct {
	repo    Repository
	storage storage.Storage
	cache   cache.Cache
	ttl     time.Duration
}

func NewService(repo Repository, store storage.Storage, c cache.Cache, ttl time.Duration) *Service {
	return &Service{repo: repo, storage: store, cache: c, ttl: ttl}
}

func (s *Service) URL(key string) string {
	return s.storage.URL(key)
}

func (s *Service) List(ctx context.Context, actor policy.Actor) ([]Profile, error) {
	return cache.Fetch(ctx, s.cache, cache.EntityProfiles, cache.ProfileListKey(actor.UserID), s.ttl,
		func(ctx context.Context) ([]Profile, error) {
			return s.repo.List(ctx, policy.Scope(actor, policy.Profiles))
		},
	)
}

func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Profile, error) {
	return s.repo.Get(ctx, id, policy.Scope(actor, policy.Profiles))
}

// ForUser returns the user's profile, creating an empty one on first use.
func (s *Service) ForUser(ctx context.Context, userID int64) (*Profile, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// Create makes the actor's own profile. A user has at most one.
func (s *Service) Create(
	ctx context.Context,
	actor policy.Actor,
	req CreateProfileRequest,
) (*Profile, error) {
	if actor.IsAnonymous() {
		return nil, fmt.Errorf("create profile: %w", core.ErrUnauthorized)
	}

	p := &Profile{UserID: actor.UserID, Bio: req.Bio, SocialLinks: req.SocialLinks}
	if p.SocialLinks == nil {
		p.SocialLinks = SocialLinks{}
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, core.BadRequestError("profile already exists")
		}
		return nil, err
	}

	s.invalidate(ctx, actor.UserID, p.UserID)
	return s.repo.Get(ctx, p.ID, policy.All())
}

func (s *Service) Replace(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req ReplaceProfileRequest,
) (*Profile, error) {
	links := req.SocialLinks
	if links == nil {
		links = SocialLinks{}
	}
	return s.Update(ctx, actor, id, UpdateProfileRequest{Bio: &req.Bio, SocialLinks: links})
}

func (s *Service) Update(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	req UpdateProfileRequest,
) (*Profile, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Bio != nil {
		p.Bio = *req.Bio
	}
	if req.SocialLinks != nil {
		p.SocialLinks = req.SocialLinks
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.invalidate(ctx, actor.UserID, p.UserID)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.removePicture(ctx, p.ProfilePicture)
	s.invalidate(ctx, actor.UserID, p.UserID)
	return nil
}

// SetPicture stores an uploaded image and points the profile at it. The
// content type is sniffed, not trusted from the client.
func (s *Service) SetPicture(
	ctx context.Context,
	actor policy.Actor,
	id int64,
	r io.Reader,
) (*Profile, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return nil, core.BadRequestError("empty upload")
		}
		return nil, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	ext, ok := pictureTypes[contentType]
	if !ok {
		return nil, core.BadRequestError("profile picture must be a JPEG, PNG, GIF or WebP image")
	}

	key := fmt.Sprintf("profile_pictures/%d/%s%s", p.UserID, uuid.NewString(), ext)
	body := io.MultiReader(bytes.NewReader(head), r)
	if err := s.storage.Save(ctx, key, body, contentType); err != nil {
		return nil, fmt.Errorf("save profile picture: %w", err)
	}

	old := p.ProfilePicture
	p.ProfilePicture = key
	if err := s.repo.Update(ctx, p); err != nil {
		s.removePicture(ctx, key)
		return nil, err
	}

	s.removePicture(ctx, old)
	s.invalidate(ctx, actor.UserID, p.UserID)
	return p, nil
}

// UpdateForUser applies the web edit form to the user's own profile.
func (s *Service) UpdateForUser(
	ctx context.Context,
	userID int64,
	req UpdateProfileRequest,
	picture io.Reader,
) (*Profile, error) {
	p, err := s.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	owner := policy.Actor{UserID: userID, Role: policy.RoleClient}
	if _, err := s.Update(ctx, owner, p.ID, req); err != nil {
		return nil, err
	}
	if picture != nil {
		return s.SetPicture(ctx, owner, p.ID, picture)
	}
	return s.repo.Get(ctx, p.ID, policy.All())
}

func (s *Service) removePicture(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "profile picture cleanup failed", "key", key, "error", err)
	}
}

func (s *Service) invalidate(ctx context.Context, actorID, ownerID int64) {
	cache.Invalidate(ctx, s.cache, cache.ProfileListKey(actorID), cache.ProfileListKey(ownerID))
}
