package api

import (
	"time"

	"github.com/phrazzld/social-text-api/internal/domain"
)

// Common request/response structures

// SignupRequest defines the payload for the user signup endpoint.
type SignupRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// RefreshTokenRequest defines the payload for the token refresh endpoint.
type RefreshTokenRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenResponse carries an access/refresh token pair.
type TokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// UserResponse is the public representation of a user. The username is
// the email address the user signed up with.
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// GeolocationResponse is the public representation of a user's
// geolocation record. SignedUpOnHoliday is null until the holiday
// update task has run.
type GeolocationResponse struct {
	UserID            int64          `json:"user_id"`
	IPAddress         string         `json:"ip_address"`
	Geolocation       map[string]any `json:"geolocation"`
	SignedUpOnHoliday *bool          `json:"signed_up_on_holiday"`
}

// LoginResponse is the successful login payload. Geolocation is null
// when the enrichment tasks have not produced a record for the user.
type LoginResponse struct {
	User        UserResponse         `json:"user"`
	Geolocation *GeolocationResponse `json:"geolocation"`
	Tokens      TokenResponse        `json:"tokens"`
}

// CreatePostRequest defines the payload for creating a post.
type CreatePostRequest struct {
	Text string `json:"text" validate:"required,max=512"`
}

// UpdatePostRequest defines the payload for updating a post's text.
type UpdatePostRequest struct {
	Text string `json:"text" validate:"required,max=512"`
}

// PostResponse is the public representation of a post.
type PostResponse struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// PostListResponse is a page of posts.
type PostListResponse struct {
	Count   int             `json:"count"`
	Results []*PostResponse `json:"results"`
}

// LikeResponse confirms a recorded like.
type LikeResponse struct {
	UserID int64 `json:"user"`
	PostID int64 `json:"post"`
}

// newPostResponse converts a domain post to its API representation.
func newPostResponse(p *domain.Post) *PostResponse {
	return &PostResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		Text:      p.Text,
		CreatedAt: p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// newGeolocationResponse converts a domain geolocation record to its
// API representation. Returns nil for a nil record so callers can pass
// it straight into LoginResponse.
func newGeolocationResponse(g *domain.Geolocation) *GeolocationResponse {
	if g == nil {
		return nil
	}
	return &GeolocationResponse{
		UserID:            g.UserID,
		IPAddress:         g.IPAddress,
		Geolocation:       g.Payload,
		SignedUpOnHoliday: g.SignedUpOnHoliday,
	}
}
