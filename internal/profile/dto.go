// AngelaMos | 2026
// dto.go

package profile

type CreateProfileRequest struct {
	Bio         string      `json:"bio"          validate:"max=5000"`
	SocialLinks SocialLinks `json:"social_links" validate:"omitempty,max=20,dive,keys,min=1,max=50,endkeys,url"`
}

type ReplaceProfileRequest = CreateProfileRequest

type UpdateProfileRequest struct {
	Bio         *string     `json:"bio,omitempty"          validate:"omitempty,max=5000"`
	SocialLinks SocialLinks `json:"social_links,omitempty" validate:"omitempty,max=20,dive,keys,min=1,max=50,endkeys,url"`
}

type ProfileResponse struct {
	ID             int64       `json:"id"`
	UserID         int64       `json:"user"`
	Username       string      `json:"username"`
	Bio            string      `json:"bio"`
	ProfilePicture *string     `json:"profile_picture"`
	SocialLinks    SocialLinks `json:"social_links"`
}

// URLer turns a storage key into a public URL.
type URLer interface {
	URL(key string) string
}

func ToProfileResponse(p *Profile, urls URLer) ProfileResponse {
	resp := ProfileResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Username:    p.Username,
		Bio:         p.Bio,
		SocialLinks: p.SocialLinks,
	}
	if resp.SocialLinks == nil {
		resp.SocialLinks = SocialLinks{}
	}
	if p.ProfilePicture != "" {
		u := urls.URL(p.ProfilePicture)
		resp.ProfilePicture = &u
	}
	return resp
}

func ToProfileResponseList(profiles []Profile, urls URLer) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(profiles))
	for i := range profiles {
		out = append(out, ToProfileResponse(&profiles[i], urls))
	}
	return out
}
