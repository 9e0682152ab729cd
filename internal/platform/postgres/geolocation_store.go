package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/social-text-api/internal/domain"
	"github.com/phrazzld/social-text-api/internal/platform/logger"
	"github.com/phrazzld/social-text-api/internal/store"
)

// PostgresGeolocationStore implements the store.GeolocationStore interface
// using a PostgreSQL database as the storage backend. The provider payload
// is stored verbatim in a jsonb column.
type PostgresGeolocationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGeolocationStore creates a new PostgreSQL implementation of
// the GeolocationStore interface.
func NewPostgresGeolocationStore(db store.DBTX, logger *slog.Logger) *PostgresGeolocationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGeolocationStore{
		db:     db,
		logger: logger.With(slog.String("component", "geolocation_store")),
	}
}

// Ensure PostgresGeolocationStore implements store.GeolocationStore interface
var _ store.GeolocationStore = (*PostgresGeolocationStore)(nil)

// Create implements store.GeolocationStore.Create
func (s *PostgresGeolocationStore) Create(ctx context.Context, geo *domain.Geolocation) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := geo.Validate(); err != nil {
		log.Warn("geolocation validation failed during create",
			slog.String("error", err.Error()),
			slog.Int64("user_id", geo.UserID))
		return err
	}

	payload, err := json.Marshal(geo.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal geolocation payload: %w", err)
	}

	query := `
		INSERT INTO geolocations (user_id, ip_address, geolocation, signed_up_on_holiday, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		geo.UserID,
		geo.IPAddress,
		payload,
		nullableBool(geo.SignedUpOnHoliday),
		geo.CreatedAt,
		geo.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			// A redelivered create task already wrote this record.
			return store.ErrGeolocationExists
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: user with ID %d not found",
				store.ErrInvalidEntity, geo.UserID)
		}

		log.Error("failed to create geolocation",
			slog.String("error", err.Error()),
			slog.Int64("user_id", geo.UserID))
		return fmt.Errorf("failed to create geolocation: %w", err)
	}

	return nil
}

// GetByUserID implements store.GeolocationStore.GetByUserID
func (s *PostgresGeolocationStore) GetByUserID(ctx context.Context, userID int64) (*domain.Geolocation, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT user_id, ip_address, geolocation, signed_up_on_holiday, created_at, updated_at
		FROM geolocations
		WHERE user_id = $1
	`
	geo := &domain.Geolocation{}
	var payload []byte
	var onHoliday sql.NullBool

	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&geo.UserID,
		&geo.IPAddress,
		&payload,
		&onHoliday,
		&geo.CreatedAt,
		&geo.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrGeolocationNotFound
		}

		log.Error("failed to get geolocation",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return nil, fmt.Errorf("failed to get geolocation: %w", err)
	}

	if err := json.Unmarshal(payload, &geo.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geolocation payload: %w", err)
	}

	if onHoliday.Valid {
		geo.SignedUpOnHoliday = &onHoliday.Bool
	}

	return geo, nil
}

// SetSignedUpOnHoliday implements store.GeolocationStore.SetSignedUpOnHoliday
func (s *PostgresGeolocationStore) SetSignedUpOnHoliday(ctx context.Context, userID int64, onHoliday bool) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE geolocations
		SET signed_up_on_holiday = $1, updated_at = $2
		WHERE user_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, onHoliday, time.Now().UTC(), userID)
	if err != nil {
		log.Error("failed to update holiday flag",
			slog.String("error", err.Error()),
			slog.Int64("user_id", userID))
		return fmt.Errorf("failed to update holiday flag: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrGeolocationNotFound
	}

	return nil
}

// nullableBool converts a *bool into the sql.NullBool the driver expects
// for the tri-state holiday column.
func nullableBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
