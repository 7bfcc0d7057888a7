// Package monitoring computes the dashboard snapshot and raises security
// alerts when too many low-rated reviews accumulate.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/store"
)

// LowRatingCutoff is the exclusive upper bound of a security alert rating.
const LowRatingCutoff = 3

// Snapshot is a point-in-time view of the review and prospect tables.
type Snapshot struct {
	TotalReviews       int       `json:"totalReviews"`
	AverageRating      float64   `json:"avgRating"`
	SecurityAlerts     int       `json:"securityAlerts"`
	TimeSavedMinutes   int       `json:"timeSavedMin"`
	ProspectsToContact int       `json:"prospectsToContact"`
	CollectedAt        time.Time `json:"collectedAt"`
}

// Source is the read side of the store the collector aggregates.
type Source interface {
	ReviewStats(ctx context.Context) (store.ReviewStats, error)
	CountReviewsBelow(ctx context.Context, rating int) (int, error)
	CountProspects(ctx context.Context, status model.ProspectStatus) (int, error)
}

// Collector gathers dashboard figures from the store.
type Collector struct {
	src              Source
	minutesPerReview int
}

// NewCollector creates a collector crediting minutesPerReview for every
// processed review. A non-positive value falls back to 5.
func NewCollector(src Source, minutesPerReview int) *Collector {
	if minutesPerReview <= 0 {
		minutesPerReview = 5
	}
	return &Collector{src: src, minutesPerReview: minutesPerReview}
}

// Collect builds a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	stats, err := c.src.ReviewStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: review stats")
	}

	alerts, err := c.src.CountReviewsBelow(ctx, LowRatingCutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count low ratings")
	}

	toContact, err := c.src.CountProspects(ctx, model.ProspectStatusToContact)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count prospects")
	}

	return &Snapshot{
		TotalReviews:       stats.Total,
		AverageRating:      stats.AvgRating,
		SecurityAlerts:     alerts,
		TimeSavedMinutes:   stats.Total * c.minutesPerReview,
		ProspectsToContact: toContact,
		CollectedAt:        time.Now().UTC(),
	}, nil
}
