package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/social-text-api/internal/api/shared"
	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/platform/abstractapi"
	"github.com/phrazzld/social-text-api/internal/service/auth"
	"github.com/phrazzld/social-text-api/internal/store"
	"github.com/phrazzld/social-text-api/internal/task"
)

// EmailValidator checks an email address against the external validation
// provider before a signup is accepted.
type EmailValidator interface {
	ValidateEmail(ctx context.Context, email string) (*abstractapi.EmailValidationResult, error)
}

// GeolocationEnqueuer schedules the signup enrichment chain for a new user.
type GeolocationEnqueuer interface {
	EnqueueCreateGeolocation(ctx context.Context, userID int64, ipAddress, signupTimeUTC string) error
}

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	userStore      store.UserStore
	geoStore       store.GeolocationStore
	jwtService     auth.JWTService
	passwordHasher auth.PasswordHasher
	passwordVerify auth.PasswordVerifier
	emailValidator EmailValidator
	enqueuer       GeolocationEnqueuer
	validator      *validator.Validate
	logger         *slog.Logger
	timeFunc       func() time.Time // Injectable for testing
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(
	userStore store.UserStore,
	geoStore store.GeolocationStore,
	jwtService auth.JWTService,
	passwordHasher auth.PasswordHasher,
	passwordVerifier auth.PasswordVerifier,
	emailValidator EmailValidator,
	enqueuer GeolocationEnqueuer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:      userStore,
		geoStore:       geoStore,
		jwtService:     jwtService,
		passwordHasher: passwordHasher,
		passwordVerify: passwordVerifier,
		emailValidator: emailValidator,
		enqueuer:       enqueuer,
		validator:      validator.New(),
		logger:         logger.With("component", "auth_handler"),
		timeFunc:       time.Now,
	}
}

// Signup handles the /auth/signup endpoint. On success it responds with
// a token pair and schedules the geolocation enrichment chain for the
// new user in the background.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	exists, err := h.userStore.Exists(r.Context(), req.Email)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	if exists {
		shared.RespondWithError(w, r, http.StatusBadRequest, "user_already_exists")
		return
	}

	// Check the address against the validation provider before creating
	// anything. Gateway trouble is surfaced as 502 rather than silently
	// accepting an unverified address.
	result, err := h.emailValidator.ValidateEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, abstractapi.ErrEmailGateway) {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadGateway, "email_validation_gateway_error", err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to validate email", err)
		return
	}
	if !result.Valid {
		if result.DidYouMean != "" {
			shared.RespondWithJSON(w, r, http.StatusBadRequest, map[string]string{
				"did_you_mean": result.DidYouMean,
			})
			return
		}
		shared.RespondWithError(w, r, http.StatusBadRequest, result.Reason)
		return
	}

	user, err := domain.NewUser(req.Email, req.Password)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid user data: "+err.Error())
		return
	}

	hashed, err := h.passwordHasher.Hash(req.Password)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create user", err)
		return
	}
	user.HashedPassword = hashed
	user.Password = ""

	if err := h.userStore.Create(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "user_already_exists")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to create user", err)
		return
	}

	// Kick off the enrichment chain. The signup response never depends on
	// it; a user without an IP address simply gets no geolocation record.
	userIP := ipAddressFromRequest(r)
	if userIP != "" {
		signupTimeUTC := task.FormatSignupTime(h.timeFunc().UTC())
		if err := h.enqueuer.EnqueueCreateGeolocation(r.Context(), user.ID, userIP, signupTimeUTC); err != nil {
			h.logger.Error("failed to enqueue geolocation task",
				"error", err,
				"user_id", user.ID)
		}
	} else {
		h.logger.Warn("empty IP address, cannot create geolocation data",
			"user_id", user.ID)
	}

	tokens, err := h.tokenPair(r, user.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to generate authentication token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tokens)
}

// Login handles the /auth/login endpoint. The response carries the user,
// their geolocation record when the enrichment tasks have produced one,
// and a fresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	user, err := h.userStore.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "user_does_not_exists")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to authenticate user", err)
		return
	}

	if err := h.passwordVerify.Compare(user.HashedPassword, req.Password); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "incorrect_credentials")
		return
	}

	tokens, err := h.tokenPair(r, user.ID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to generate authentication token", err)
		return
	}

	// Geolocation is optional: missing just means the enrichment chain
	// has not completed (or never ran) for this user.
	var geo *domain.Geolocation
	if g, err := h.geoStore.GetByUserID(r.Context(), user.ID); err == nil {
		geo = g
	} else if !errors.Is(err, store.ErrGeolocationNotFound) {
		h.logger.Error("failed to load geolocation for login response",
			"error", err,
			"user_id", user.ID)
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LoginResponse{
		User: UserResponse{
			ID:       user.ID,
			Username: user.Email,
		},
		Geolocation: newGeolocationResponse(geo),
		Tokens:      tokens,
	})
}

// Refresh handles the /auth/refresh endpoint, exchanging a valid refresh
// token for a new token pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest

	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(r.Context(), req.Refresh)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	tokens, err := h.tokenPair(r, claims.UserID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to generate authentication token", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tokens)
}

// tokenPair issues a fresh access/refresh pair for the user.
func (h *AuthHandler) tokenPair(r *http.Request, userID int64) (TokenResponse, error) {
	access, err := h.jwtService.GenerateToken(r.Context(), userID)
	if err != nil {
		return TokenResponse{}, err
	}
	refresh, err := h.jwtService.GenerateRefreshToken(r.Context(), userID)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{Access: access, Refresh: refresh}, nil
}

// ipAddressFromRequest extracts the client IP, preferring the first entry
// of X-Forwarded-For over the connection's remote address.
func ipAddressFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
