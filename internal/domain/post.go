package domain

import (
	"errors"
	"time"
)

// Post content limits
const maxPostTextLength = 512

// Post validation errors
var (
	ErrEmptyPostText   = errors.New("post text cannot be empty")
	ErrPostTextTooLong = errors.New("post text cannot exceed 512 characters")
	ErrEmptyPostUserID = errors.New("post user ID cannot be empty")
)

// Post represents a short text post authored by a user.
type Post struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPost creates a new Post owned by the given user.
// The ID is assigned by the store on insert.
func NewPost(userID int64, text string) (*Post, error) {
	post := &Post{
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := post.Validate(); err != nil {
		return nil, err
	}

	return post, nil
}

// Validate checks if the Post has valid data.
func (p *Post) Validate() error {
	if p.UserID == 0 {
		return ErrEmptyPostUserID
	}

	if p.Text == "" {
		return ErrEmptyPostText
	}

	if len(p.Text) > maxPostTextLength {
		return ErrPostTextTooLong
	}

	return nil
}

// PostLike represents a user liking a post. A user may like a given
// post at most once; the store enforces this with a unique constraint.
type PostLike struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
