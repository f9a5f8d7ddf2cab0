// Package storage persists matched offers into Postgres. Durability is
// best-effort relative to the in-memory merged view.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"OfferTracker/internal/domain"
	"OfferTracker/internal/ports"
)

// ErrOfferNotFound signals an unknown offer identifier.
var ErrOfferNotFound = errors.New("offer not found")

const offersTable = "offers"

var offerColumns = []string{
	"id", "last_refresh_time", "title", "description", "url",
	"filters", "value", "previous_value", "stan",
}

// PostgresRepository implements the offer repository port on Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.OfferRepository = (*PostgresRepository)(nil)

// Open connects to Postgres, waits for the database to accept
// connections, and ensures the offers schema exists.
func Open(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres ping failed after retries: %w", err)
	}

	repo := NewPostgresRepository(db)
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return repo, nil
}

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresRepository) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS offers (
			id                TEXT PRIMARY KEY,
			last_refresh_time TIMESTAMPTZ,
			title             TEXT NOT NULL DEFAULT '',
			description       TEXT NOT NULL DEFAULT '',
			url               TEXT NOT NULL DEFAULT '',
			filters           JSONB NOT NULL DEFAULT '{}',
			value             DOUBLE PRECISION,
			previous_value    DOUBLE PRECISION,
			stan              TEXT,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_offers_observation
			ON offers ((filters->>'observationId'));
	`)
	return err
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Upsert inserts the offer snapshot or refreshes an existing row.
func (r *PostgresRepository) Upsert(ctx context.Context, offer domain.StoredOffer) error {
	filters, err := json.Marshal(offer.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	query, args, err := r.builder.
		Insert(offersTable).
		Columns(offerColumns...).
		Values(offer.ID, offer.LastRefreshTime, offer.Title, offer.Description,
			offer.URL, filters, offer.Value, offer.PreviousValue, nullable(offer.Condition)).
		Suffix(`ON CONFLICT (id) DO UPDATE
			SET last_refresh_time = EXCLUDED.last_refresh_time,
			    title = EXCLUDED.title,
			    description = EXCLUDED.description,
			    url = EXCLUDED.url,
			    filters = EXCLUDED.filters,
			    value = EXCLUDED.value,
			    previous_value = EXCLUDED.previous_value,
			    stan = EXCLUDED.stan,
			    updated_at = NOW()`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert offer %s: %w", offer.ID, err)
	}
	return nil
}

// Insert creates a new offer row; an existing identifier is an error.
func (r *PostgresRepository) Insert(ctx context.Context, offer domain.StoredOffer) error {
	filters, err := json.Marshal(offer.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	query, args, err := r.builder.
		Insert(offersTable).
		Columns(offerColumns...).
		Values(offer.ID, offer.LastRefreshTime, offer.Title, offer.Description,
			offer.URL, filters, offer.Value, offer.PreviousValue, nullable(offer.Condition)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert offer %s: %w", offer.ID, err)
	}
	return nil
}

// Get loads a stored offer by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (domain.StoredOffer, error) {
	query, args, err := r.builder.
		Select(offerColumns...).
		From(offersTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.StoredOffer{}, fmt.Errorf("build select: %w", err)
	}

	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredOffer{}, ErrOfferNotFound
	}
	if err != nil {
		return domain.StoredOffer{}, fmt.Errorf("get offer %s: %w", id, err)
	}
	return offer, nil
}

// ListByObservation returns the stored offers whose filters snapshot
// references the observation, newest first.
func (r *PostgresRepository) ListByObservation(ctx context.Context, observationID string) ([]domain.StoredOffer, error) {
	query, args, err := r.builder.
		Select(offerColumns...).
		From(offersTable).
		Where(sq.Expr("filters->>'observationId' = ?", observationID)).
		OrderBy("last_refresh_time DESC NULLS LAST").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	offers := make([]domain.StoredOffer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return offers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (domain.StoredOffer, error) {
	var (
		offer       domain.StoredOffer
		refreshedAt sql.NullTime
		value       sql.NullFloat64
		previous    sql.NullFloat64
		condition   sql.NullString
		filters     []byte
	)

	err := row.Scan(&offer.ID, &refreshedAt, &offer.Title, &offer.Description,
		&offer.URL, &filters, &value, &previous, &condition)
	if err != nil {
		return domain.StoredOffer{}, err
	}

	if refreshedAt.Valid {
		t := refreshedAt.Time
		offer.LastRefreshTime = &t
	}
	if value.Valid {
		v := value.Float64
		offer.Value = &v
	}
	if previous.Valid {
		v := previous.Float64
		offer.PreviousValue = &v
	}
	offer.Condition = condition.String

	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &offer.Filters); err != nil {
			return domain.StoredOffer{}, fmt.Errorf("unmarshal filters: %w", err)
		}
	}
	return offer, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
