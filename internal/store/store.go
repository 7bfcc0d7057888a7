package store

import (
	"context"

	"github.com/reputexa/reputexa/internal/model"
)

// ProspectFilter specifies criteria for listing prospects.
type ProspectFilter struct {
	City   string               `json:"city,omitempty"`
	Status model.ProspectStatus `json:"status,omitempty"`
	Limit  int                  `json:"limit,omitempty"`
	Offset int                  `json:"offset,omitempty"`
}

// ReviewStats aggregates the review table.
type ReviewStats struct {
	Total     int     `json:"total"`
	AvgRating float64 `json:"avg_rating"`
}

// Store defines the persistence interface for both pipelines. Every write
// touches a single row.
type Store interface {
	// Reviews
	CreateReview(ctx context.Context, r *model.Review) error
	// GetReview returns nil, nil when no review has the id.
	GetReview(ctx context.Context, id string) (*model.Review, error)
	// ResolveReview writes res only while the review is still PENDING with no
	// response. It reports whether the write was applied.
	ResolveReview(ctx context.Context, id string, res model.Resolution) (bool, error)
	CountReviewsBelow(ctx context.Context, rating int) (int, error)
	ReviewStats(ctx context.Context) (ReviewStats, error)

	// Prospects
	// GetProspect returns nil, nil when the listing is unknown.
	GetProspect(ctx context.Context, placeID string) (*model.Prospect, error)
	// UpsertProspect inserts p as TO_CONTACT, or on an existing place id
	// updates only pitch, country code and updated_at. It reports whether a
	// row was created.
	UpsertProspect(ctx context.Context, p *model.Prospect) (bool, error)
	CountProspects(ctx context.Context, status model.ProspectStatus) (int, error)
	ListProspects(ctx context.Context, filter ProspectFilter) ([]model.Prospect, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
