// AngelaMos | 2026
// dto.go

package user

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Role     string `json:"role"     validate:"omitempty,oneof=admin client"`
}

// ReplaceUserRequest is the PUT body; every field is required.
type ReplaceUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Email    string `json:"email"    validate:"required,email,max=254"`
	Role     string `json:"role"     validate:"omitempty,oneof=admin client"`
}

type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=1,max=150"`
	Email    *string `json:"email,omitempty"    validate:"omitempty,email,max=254"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	Role     *string `json:"role,omitempty"     validate:"omitempty,oneof=admin client"`
}

func (r ReplaceUserRequest) asUpdate() UpdateUserRequest {
	u := UpdateUserRequest{Username: &r.Username, Email: &r.Email}
	if r.Role != "" {
		u.Role = &r.Role
	}
	return u
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}

func ToUserResponseList(users []User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, ToUserResponse(&users[i]))
	}
	return out
}
