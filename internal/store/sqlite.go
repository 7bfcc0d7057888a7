package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/reputexa/reputexa/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
// The busy timeout travels in the DSN so every pooled connection gets it.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withBusyTimeout(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS reviews (
	id                  TEXT PRIMARY KEY,
	review_text         TEXT NOT NULL,
	rating              INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
	establishment_name  TEXT NOT NULL,
	city                TEXT NOT NULL,
	industry            TEXT NOT NULL DEFAULT '',
	detected_language   TEXT NOT NULL DEFAULT '',
	response_text       TEXT,
	status              TEXT NOT NULL DEFAULT 'PENDING',
	is_security_flagged INTEGER NOT NULL DEFAULT 0,
	security_advice     TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
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
	rating               REAL NOT NULL DEFAULT 0,
	review_count         INTEGER NOT NULL DEFAULT 0,
	last_review_text     TEXT,
	last_review_author   TEXT,
	last_review_relative TEXT,
	pitch                TEXT,
	status               TEXT NOT NULL DEFAULT 'TO_CONTACT',
	metadata             TEXT NOT NULL DEFAULT '{}',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_prospects_city_status ON prospects(city, status);
CREATE INDEX IF NOT EXISTS idx_prospects_created_at ON prospects(created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateReview(ctx context.Context, r *model.Review) error {
	prepareReview(r)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, review_text, rating, establishment_name, city, industry,
			detected_language, response_text, status, is_security_flagged, security_advice, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReviewText, r.Rating, r.EstablishmentName, r.City, r.Industry,
		r.DetectedLanguage, r.ResponseText, string(r.Status), r.IsSecurityFlagged, r.SecurityAdvice,
		r.CreatedAt, r.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert review")
}

func (s *SQLiteStore) GetReview(ctx context.Context, id string) (*model.Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE id = ?`,
		id,
	)
	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get review %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, id string, res model.Resolution) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET detected_language = ?, response_text = ?, status = ?,
			is_security_flagged = ?, security_advice = ?, updated_at = ?
		 WHERE id = ? AND status = 'PENDING' AND response_text IS NULL`,
		res.DetectedLanguage, res.ResponseText, string(res.Status),
		res.IsSecurityFlagged, res.SecurityAdvice, time.Now().UTC(), id,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: resolve review %s", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) CountReviewsBelow(ctx context.Context, rating int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE rating < ?`, rating).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count reviews below")
}

func (s *SQLiteStore) ReviewStats(ctx context.Context) (ReviewStats, error) {
	var st ReviewStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(rating), 0.0) FROM reviews`,
	).Scan(&st.Total, &st.AvgRating)
	return st, eris.Wrap(err, "sqlite: review stats")
}

func (s *SQLiteStore) GetProspect(ctx context.Context, placeID string) (*model.Prospect, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+prospectColumns+` FROM prospects WHERE place_id = ?`,
		placeID,
	)
	p, err := scanProspect(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get prospect %s", placeID)
	}
	return p, nil
}

// UpsertProspect tries the insert first and falls back to the narrow update
// when the place id already exists. Both statements are single-row atomic.
func (s *SQLiteStore) UpsertProspect(ctx context.Context, p *model.Prospect) (bool, error) {
	now := time.Now().UTC()
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal metadata")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prospects (place_id, establishment_name, address, city, category, country_code,
			rating, review_count, last_review_text, last_review_author, last_review_relative,
			pitch, status, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (place_id) DO NOTHING`,
		p.PlaceID, p.EstablishmentName, p.Address, p.City, p.Category, p.CountryCode,
		p.Rating, p.ReviewCount, p.LastReviewText, p.LastReviewAuthor, p.LastReviewRelative,
		p.Pitch, string(model.ProspectStatusToContact), string(meta), now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert prospect %s", p.PlaceID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return true, nil
	}

	res, err = s.db.ExecContext(ctx,
		`UPDATE prospects SET pitch = ?, country_code = ?, updated_at = ? WHERE place_id = ?`,
		p.Pitch, p.CountryCode, now, p.PlaceID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update prospect %s", p.PlaceID)
	}
	return false, checkRowsAffected(res, "prospect", p.PlaceID)
}

func (s *SQLiteStore) CountProspects(ctx context.Context, status model.ProspectStatus) (int, error) {
	query := `SELECT COUNT(*) FROM prospects`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count prospects")
}

func (s *SQLiteStore) ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE 1=1`
	var args []any

	if filter.City != "" {
		query += ` AND city = ?`
		args = append(args, filter.City)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prospects")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prospect")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list prospects iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

const reviewColumns = `id, review_text, rating, establishment_name, city, industry,
	detected_language, response_text, status, is_security_flagged, security_advice, created_at, updated_at`

func scanReview(row scannable) (*model.Review, error) {
	var r model.Review
	err := row.Scan(
		&r.ID, &r.ReviewText, &r.Rating, &r.EstablishmentName, &r.City, &r.Industry,
		&r.DetectedLanguage, &r.ResponseText, &r.Status, &r.IsSecurityFlagged, &r.SecurityAdvice,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const prospectColumns = `place_id, establishment_name, address, city, category, country_code,
	rating, review_count, last_review_text, last_review_author, last_review_relative,
	pitch, status, metadata, created_at, updated_at`

func scanProspect(row scannable) (*model.Prospect, error) {
	var p model.Prospect
	var meta []byte
	err := row.Scan(
		&p.PlaceID, &p.EstablishmentName, &p.Address, &p.City, &p.Category, &p.CountryCode,
		&p.Rating, &p.ReviewCount, &p.LastReviewText, &p.LastReviewAuthor, &p.LastReviewRelative,
		&p.Pitch, &p.Status, &meta, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			return nil, eris.Wrap(err, "unmarshal metadata")
		}
	}
	return &p, nil
}

// prepareReview fills the id, timestamps and default status of a new review.
func prepareReview(r *model.Review) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = model.ReviewStatusPending
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
