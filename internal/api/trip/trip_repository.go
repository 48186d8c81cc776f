package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MintuTF/tripply/internal/types"
)

var ErrTripNotFound = errors.New("trip not found")

// PGXQuerier is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PGXQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*RepositoryImpl)(nil)

// Repository is the persistence collaborator consumed by the chat stream
// endpoint.
type Repository interface {
	GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error)
	GetTripMessages(ctx context.Context, tripID uuid.UUID, limit int) ([]types.TripMessage, error)
	CreateMessage(ctx context.Context, msg types.TripMessage) (uuid.UUID, error)
}

type RepositoryImpl struct {
	logger *slog.Logger
	pgpool PGXQuerier
}

func NewRepository(pgpool PGXQuerier, logger *slog.Logger) *RepositoryImpl {
	return &RepositoryImpl{
		logger: logger,
		pgpool: pgpool,
	}
}

// GetTrip retrieves a trip by its ID.
func (r *RepositoryImpl) GetTrip(ctx context.Context, tripID uuid.UUID) (*types.Trip, error) {
	query := `
        SELECT id, user_id, title, destination, country, start_date, end_date,
               budget_range, preferences, saved_places_count, created_at, updated_at
        FROM trips
        WHERE id = $1
    `
	row := r.pgpool.QueryRow(ctx, query, tripID)
	var t types.Trip
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Destination, &t.Country, &t.StartDate, &t.EndDate,
		&t.BudgetRange, &t.Preferences, &t.SavedPlacesCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get trip", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &t, nil
}

// GetTripMessages returns the most recent messages of a trip's
// conversation in chronological order.
func (r *RepositoryImpl) GetTripMessages(ctx context.Context, tripID uuid.UUID, limit int) ([]types.TripMessage, error) {
	query := `
        SELECT id, trip_id, role, content, metadata, created_at
        FROM (
            SELECT id, trip_id, role, content, metadata, created_at
            FROM trip_messages
            WHERE trip_id = $1
            ORDER BY created_at DESC
            LIMIT $2
        ) recent
        ORDER BY created_at ASC
    `
	rows, err := r.pgpool.Query(ctx, query, tripID, limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query trip messages", slog.Any("error", err))
		return nil, fmt.Errorf("failed to query trip messages: %w", err)
	}
	defer rows.Close()

	var messages []types.TripMessage
	for rows.Next() {
		var m types.TripMessage
		if err := rows.Scan(&m.ID, &m.TripID, &m.Role, &m.Content, &m.Metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trip message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating trip messages: %w", err)
	}
	return messages, nil
}

// CreateMessage appends one conversation turn to a trip. Turns are
// immutable once written.
func (r *RepositoryImpl) CreateMessage(ctx context.Context, msg types.TripMessage) (uuid.UUID, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	query := `
        INSERT INTO trip_messages (id, trip_id, role, content, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := r.pgpool.Exec(ctx, query,
		msg.ID, msg.TripID, msg.Role, msg.Content, msg.Metadata, msg.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create trip message", slog.Any("error", err))
		return uuid.Nil, fmt.Errorf("failed to create trip message: %w", err)
	}
	return msg.ID, nil
}
