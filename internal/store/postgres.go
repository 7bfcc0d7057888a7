package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/reputexa/reputexa/internal/db"
	"github.com/reputexa/reputexa/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS reviews (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	review_text         TEXT NOT NULL,
	rating              INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	establishment_name  TEXT NOT NULL,
	city                TEXT NOT NULL,
	industry            TEXT NOT NULL DEFAULT '',
	detected_language   TEXT NOT NULL DEFAULT '',
	response_text       TEXT,
	status              TEXT NOT NULL DEFAULT 'PENDING',
	is_security_flagged BOOLEAN NOT NULL DEFAULT false,
	security_advice     TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT reviews_reply_iff_replied CHECK ((response_text IS NOT NULL) = (status = 'REPLIED')),
	CONSTRAINT reviews_flag_iff_flagged CHECK (is_security_flagged = (status = 'FLAGGED'))
);

CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status);
CREATE INDEX IF NOT EXISTS idx_reviews_rating ON reviews(rating);

CREATE TABLE IF NOT EXISTS prospects (
	place_id             TEXT PRIMARY KEY,
	establishment_name   TEXT NOT NULL,
	address              TEXT NOT NULL DEFAULT '',
	city                 TEXT NOT NULL,
	category             TEXT NOT NULL,
	country_code         TEXT NOT NULL,
	rating               DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count         INTEGER NOT NULL DEFAULT 0,
	last_review_text     TEXT,
	last_review_author   TEXT,
	last_review_relative TEXT,
	pitch                TEXT,
	status               TEXT NOT NULL DEFAULT 'TO_CONTACT',
	metadata             JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prospects_city_status ON prospects(city, status);
CREATE INDEX IF NOT EXISTS idx_prospects_created_at ON prospects(created_at DESC);
`

var prospectUpsert = db.UpsertConfig{
	Table: "prospects",
	Columns: []string{
		"place_id", "establishment_name", "address", "city", "category", "country_code",
		"rating", "review_count", "last_review_text", "last_review_author", "last_review_relative",
		"pitch", "status", "metadata", "created_at", "updated_at",
	},
	ConflictKeys: []string{"place_id"},
	UpdateCols:   []string{"pitch", "country_code", "updated_at"},
	Returning:    "(xmax = 0) AS inserted",
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateReview(ctx context.Context, r *model.Review) error {
	prepareReview(r)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO reviews (id, review_text, rating, establishment_name, city, industry,
			detected_language, response_text, status, is_security_flagged, security_advice, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.ID, r.ReviewText, r.Rating, r.EstablishmentName, r.City, r.Industry,
		r.DetectedLanguage, r.ResponseText, string(r.Status), r.IsSecurityFlagged, r.SecurityAdvice,
		r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert review")
}

func (s *PostgresStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = $1`,
		id,
	)
	r, err := scanReview(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get review %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ResolveReview(ctx context.Context, id string, res model.Resolution) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reviews SET detected_language = $1, response_text = $2, status = $3,
			is_security_flagged = $4, security_advice = $5, updated_at = $6
		 WHERE id = $7 AND status = 'PENDING' AND response_text IS NULL`,
		res.DetectedLanguage, res.ResponseText, string(res.Status),
		res.IsSecurityFlagged, res.SecurityAdvice, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: resolve review %s", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) CountReviewsBelow(ctx context.Context, rating int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE rating < $1`, rating).Scan(&n)
	return n, eris.Wrap(err, "postgres: count reviews below")
}

func (s *PostgresStore) ReviewStats(ctx context.Context) (ReviewStats, error) {
	var st ReviewStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating)::float8, 0) FROM reviews`,
	).Scan(&st.Total, &st.AvgRating)
	return st, eris.Wrap(err, "postgres: review stats")
}

func (s *PostgresStore) GetProspect(ctx context.Context, placeID string) (*model.Prospect, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE place_id = $1`,
		placeID,
	)
	p, err := scanProspect(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get prospect %s", placeID)
	}
	return p, nil
}

func (s *PostgresStore) UpsertProspect(ctx context.Context, p *model.Prospect) (bool, error) {
	query, err := db.UpsertSQL(prospectUpsert)
	if err != nil {
		return false, eris.Wrap(err, "postgres: build prospect upsert")
	}
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal metadata")
	}
	now := time.Now().UTC()

	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		p.PlaceID, p.EstablishmentName, p.Address, p.City, p.Category, p.CountryCode,
		p.Rating, p.ReviewCount, p.LastReviewText, p.LastReviewAuthor, p.LastReviewRelative,
		p.Pitch, string(model.ProspectStatusToContact), meta, now, now,
	).Scan(&inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert prospect %s", p.PlaceID)
	}
	return inserted, nil
}

func (s *PostgresStore) CountProspects(ctx context.Context, status model.ProspectStatus) (int, error) {
	query := `SELECT COUNT(*) FROM prospects`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}

	var n int
	err := s.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, eris.Wrap(err, "postgres: count prospects")
}

func (s *PostgresStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE true`
	args := []any{}
	argIdx := 1

	if filter.City != "" {
		query += fmt.Sprintf(` AND city = $%d`, argIdx)
		args = append(args, filter.City)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prospects")
	}
	defer rows.Close()

	var out []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan prospect")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list prospects iterate")
}
