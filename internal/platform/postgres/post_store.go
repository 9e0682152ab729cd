package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/platform/logger"
	"github.com/phrazzld/social-text-api/internal/store"
)

// PostgresPostStore implements the store.PostStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPostStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPostStore creates a new PostgreSQL implementation of the
// PostStore interface.
func NewPostgresPostStore(db store.DBTX, logger *slog.Logger) *PostgresPostStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPostStore{
		db:     db,
		logger: logger.With(slog.String("component", "post_store")),
	}
}

// Ensure PostgresPostStore implements store.PostStore interface
var _ store.PostStore = (*PostgresPostStore)(nil)

// Create implements store.PostStore.Create
func (s *PostgresPostStore) Create(ctx context.Context, post *domain.Post) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := post.Validate(); err != nil {
		log.Warn("post validation failed during create",
			slog.String("error", err.Error()),
			slog.Int64("user_id", post.UserID))
		return err
	}

	query := `
		INSERT INTO posts (user_id, text, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		post.UserID,
		post.Text,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID)

	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user with ID %d not found",
				store.ErrInvalidEntity, post.UserID)
		}

		log.Error("failed to create post",
			slog.String("error", err.Error()),
			slog.Int64("user_id", post.UserID))
		return fmt.Errorf("failed to create post: %w", err)
	}

	return nil
}

// GetByID implements store.PostStore.GetByID
func (s *PostgresPostStore) GetByID(ctx context.Context, id int64) (*domain.Post, error) {
	query := `
		SELECT id, user_id, text, created_at, updated_at
		FROM posts
		WHERE id = $1
	`
	post := &domain.Post{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.UserID,
		&post.Text,
		&post.CreatedAt,
		&post.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	return post, nil
}

// List implements store.PostStore.List
func (s *PostgresPostStore) List(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, text, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to list posts", slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	posts := []*domain.Post{}
	for rows.Next() {
		post := &domain.Post{}
		if err := rows.Scan(
			&post.ID,
			&post.UserID,
			&post.Text,
			&post.CreatedAt,
			&post.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return posts, nil
}

// Update implements store.PostStore.Update
func (s *PostgresPostStore) Update(ctx context.Context, post *domain.Post) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := post.Validate(); err != nil {
		return err
	}

	post.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE posts
		SET text = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, post.Text, post.UpdatedAt, post.ID)
	if err != nil {
		log.Error("failed to update post",
			slog.String("error", err.Error()),
			slog.Int64("post_id", post.ID))
		return fmt.Errorf("failed to update post: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrPostNotFound
	}

	return nil
}

// Delete implements store.PostStore.Delete
func (s *PostgresPostStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrPostNotFound
	}

	return nil
}

// CreateLike implements store.PostStore.CreateLike
func (s *PostgresPostStore) CreateLike(ctx context.Context, like *domain.PostLike) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO post_likes (user_id, post_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := s.db.QueryRowContext(
		ctx,
		query,
		like.UserID,
		like.PostID,
		like.CreatedAt,
	).Scan(&like.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyLiked
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %d or post %d not found",
				store.ErrInvalidEntity, like.UserID, like.PostID)
		}

		log.Error("failed to create post like",
			slog.String("error", err.Error()),
			slog.Int64("user_id", like.UserID),
			slog.Int64("post_id", like.PostID))
		return fmt.Errorf("failed to create post like: %w", err)
	}

	return nil
}

// DeleteLike implements store.PostStore.DeleteLike
func (s *PostgresPostStore) DeleteLike(ctx context.Context, userID, postID int64) error {
	query := `DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`

	result, err := s.db.ExecContext(ctx, query, userID, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post like: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrPostLikeNotFound
	}

	return nil
}
