package store

import (
	"context"

	"github.com/phrazzld/social-text-api/internal/domain"
)

// PostStore defines the interface for post and post-like persistence.
type PostStore interface {
	// Create saves a new post to the store and assigns its ID.
	// Returns ErrInvalidEntity if the owning user does not exist.
	// Returns validation errors from the domain Post if data is invalid.
	Create(ctx context.Context, post *domain.Post) error

	// GetByID retrieves a post by its unique ID.
	// Returns ErrPostNotFound if the post does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Post, error)

	// List retrieves posts ordered by newest first, paginated with
	// limit and offset. Returns an empty slice when nothing matches.
	List(ctx context.Context, limit, offset int) ([]*domain.Post, error)

	// Update saves changes to an existing post's text.
	// Returns ErrPostNotFound if the post does not exist.
	Update(ctx context.Context, post *domain.Post) error

	// Delete removes a post from the store by its ID.
	// Returns ErrPostNotFound if the post does not exist.
	Delete(ctx context.Context, id int64) error

	// CreateLike records that the user liked the post.
	// Returns ErrAlreadyLiked if the like already exists.
	// Returns ErrInvalidEntity if the user or post does not exist.
	CreateLike(ctx context.Context, like *domain.PostLike) error

	// DeleteLike removes the user's like from the post.
	// Returns ErrPostLikeNotFound if no such like exists.
	DeleteLike(ctx context.Context, userID, postID int64) error
}
