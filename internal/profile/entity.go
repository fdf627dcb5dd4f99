// AngelaMos | 2026
// entity.go

package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

type Profile struct {
	ID             int64       `db:"id"              json:"id"`
	UserID         int64       `db:"user_id"         json:"user_id"`
	Username       string      `db:"username"        json:"username"`
	Bio            string      `db:"bio"             json:"bio"`
	ProfilePicture string      `db:"profile_picture" json:"profile_picture"`
	SocialLinks    SocialLinks `db:"social_links"    json:"social_links"`
}

// SocialLinks maps a network name to a URL. Stored as JSONB.
type SocialLinks map[string]string

func (s SocialLinks) Value() (driver.Value, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(s)
}

func (s *SocialLinks) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = SocialLinks{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan social links: unsupported type %T", src)
	}

	links := SocialLinks{}
	if err := json.Unmarshal(data, &links); err != nil {
		return fmt.Errorf("scan social links: %w", err)
	}
	*s = links
	return nil
}
