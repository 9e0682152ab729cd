package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/social-text-api/internal/api/shared"
	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/platform/logger"
	"github.com/phrazzld/social-text-api/internal/store"
)

// Pagination defaults for post listing
const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PostHandler handles post and like HTTP requests
type PostHandler struct {
	postStore store.PostStore
	validator *validator.Validate
	logger    *slog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postStore store.PostStore, logger *slog.Logger) *PostHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for PostHandler")
	}

	return &PostHandler{
		postStore: postStore,
		validator: validator.New(),
		logger:    logger.With(slog.String("component", "post_handler")),
	}
}

// CreatePost handles POST /posts requests.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	userID, ok := getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	var req CreatePostRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	post, err := domain.NewPost(userID, req.Text)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postStore.Create(r.Context(), post); err != nil {
		HandleAPIError(w, r, err, "Failed to create post")
		return
	}

	log.Debug("post created",
		slog.Int64("user_id", userID),
		slog.Int64("post_id", post.ID))
	shared.RespondWithJSON(w, r, http.StatusCreated, newPostResponse(post))
}

// ListPosts handles GET /posts requests with page-number pagination.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	if _, ok := getUserIDFromContext(r); !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	posts, err := h.postStore.List(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list posts")
		return
	}

	results := make([]*PostResponse, 0, len(posts))
	for _, p := range posts {
		results = append(results, newPostResponse(p))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, PostListResponse{
		Count:   len(results),
		Results: results,
	})
}

// GetPost handles GET /posts/{postID} requests.
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	_, postID, ok := handleUserIDAndPathID(w, r, "postID", h.logger)
	if !ok {
		return
	}

	post, err := h.postStore.GetByID(r.Context(), postID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newPostResponse(post))
}

// UpdatePost handles PUT /posts/{postID} requests. Only the owning user
// may update a post.
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := handleUserIDAndPathID(w, r, "postID", h.logger)
	if !ok {
		return
	}

	var req UpdatePostRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	post, err := h.postStore.GetByID(r.Context(), postID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if post.UserID != userID {
		shared.RespondWithError(w, r, http.StatusBadRequest, "cannot_update_other_users_posts")
		return
	}

	post.Text = req.Text
	if err := post.Validate(); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postStore.Update(r.Context(), post); err != nil {
		HandleAPIError(w, r, err, "Failed to update post")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newPostResponse(post))
}

// DeletePost handles DELETE /posts/{postID} requests. Only the owning
// user may delete a post.
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := handleUserIDAndPathID(w, r, "postID", h.logger)
	if !ok {
		return
	}

	post, err := h.postStore.GetByID(r.Context(), postID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if post.UserID != userID {
		shared.RespondWithError(w, r, http.StatusBadRequest, "cannot_delete_other_users_posts")
		return
	}

	if err := h.postStore.Delete(r.Context(), postID); err != nil {
		HandleAPIError(w, r, err, "Failed to delete post")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LikePost handles POST /posts/{postID}/like requests. A user may like
// a given post at most once.
func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := handleUserIDAndPathID(w, r, "postID", h.logger)
	if !ok {
		return
	}

	like := &domain.PostLike{
		UserID: userID,
		PostID: postID,
	}

	if err := h.postStore.CreateLike(r.Context(), like); err != nil {
		if errors.Is(err, store.ErrAlreadyLiked) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "user_already_liked_the_post")
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, LikeResponse{
		UserID: userID,
		PostID: postID,
	})
}

// UnlikePost handles DELETE /posts/{postID}/like requests, removing the
// authenticated user's like. A user can only ever remove their own like.
func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	userID, postID, ok := handleUserIDAndPathID(w, r, "postID", h.logger)
	if !ok {
		return
	}

	if err := h.postStore.DeleteLike(r.Context(), userID, postID); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// queryInt reads an integer query parameter, falling back to def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
