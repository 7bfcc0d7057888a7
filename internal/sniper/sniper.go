// Package sniper discovers local businesses whose public rating sits in a
// target band and stores them as prospects with a personalised pitch.
package sniper

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reputexa/reputexa/internal/classify"
	"github.com/reputexa/reputexa/internal/metrics"
	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/profile"
	"github.com/reputexa/reputexa/internal/resilience"
	"github.com/reputexa/reputexa/pkg/google"
)

// Breaker names used in the shared registry.
const (
	PlacesBreaker     = "places"
	ClassifierBreaker = "classifier"
)

// Pitcher writes an outreach message for a qualifying listing.
type Pitcher interface {
	GeneratePitch(ctx context.Context, in classify.PitchInput) (string, error)
}

// Store is the prospect persistence the sniper needs.
type Store interface {
	UpsertProspect(ctx context.Context, p *model.Prospect) (bool, error)
}

// Options tunes a Sniper. Zero values take the defaults.
type Options struct {
	Band             Band
	MaxResults       int
	LanguageCode     string
	PitchConcurrency int
	Retry            resilience.RetryConfig
}

// RunResult summarizes one sweep.
type RunResult struct {
	Query      string `json:"query"`
	Candidates int    `json:"candidates"`
	Qualified  int    `json:"qualified"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
}

// Saved is the number of prospects written by the sweep.
func (r *RunResult) Saved() int {
	return r.Created + r.Updated
}

// Sniper runs prospect sweeps.
type Sniper struct {
	places   google.Client
	pitcher  Pitcher
	store    Store
	throttle *Throttle
	breakers *resilience.Breakers
	opts     Options
	locks    *keyLock
}

// New creates a Sniper. throttle and breakers may be shared with other
// sweeps; a nil breakers registry gets a private one.
func New(places google.Client, pitcher Pitcher, store Store, throttle *Throttle, breakers *resilience.Breakers, opts Options) *Sniper {
	if opts.Band == (Band{}) {
		opts.Band = DefaultBand
	}
	if opts.MaxResults <= 0 || opts.MaxResults > google.MaxResults {
		opts.MaxResults = google.MaxResults
	}
	if opts.PitchConcurrency <= 0 {
		opts.PitchConcurrency = 3
	}
	if throttle == nil {
		throttle = NewThrottle(200 * time.Millisecond)
	}
	if breakers == nil {
		breakers = NewBreakers(0)
	}
	return &Sniper{
		places:   places,
		pitcher:  pitcher,
		store:    store,
		throttle: throttle,
		breakers: breakers,
		opts:     opts,
		locks:    newKeyLock(),
	}
}

// NewBreakers builds a registry whose breakers open after threshold
// consecutive transient failures and log their transitions.
func NewBreakers(threshold int) *resilience.Breakers {
	return resilience.NewBreakers(func(name string) resilience.CircuitBreakerConfig {
		cfg := resilience.FromCircuitConfig(threshold, 0)
		cfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("sniper: circuit breaker state change",
				zap.String("oracle", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		}
		return cfg
	})
}

type tally struct {
	mu  sync.Mutex
	res *RunResult
}

func (t *tally) add(outcome string) {
	t.mu.Lock()
	switch outcome {
	case "created":
		t.res.Created++
	case "updated":
		t.res.Updated++
	case "skipped":
		t.res.Skipped++
	case "failed":
		t.res.Failed++
	}
	t.mu.Unlock()
	metrics.ObserveProspect(outcome)
}

// Run executes one sweep. Only a failed text search aborts the run; detail,
// pitch and store failures are counted and the sweep continues. Cancelling
// ctx stops further oracle calls and returns the partial result with the
// context error. When the throttle cannot grant a slot before ctx's
// deadline, the candidates not yet visited are counted as failed and the
// partial result is returned with the throttle error.
func (s *Sniper) Run(ctx context.Context, params Params) (*RunResult, error) {
	params = params.WithDefaults()
	lang := params.TargetLanguage()
	query := params.Query()
	searchLang := params.SearchLanguage(s.opts.LanguageCode)
	log := zap.L().With(
		zap.String("query", query),
		zap.String("country", params.CountryCode),
		zap.String("language", lang),
	)
	if !profile.Known(params.CountryCode) {
		log.Warn("sniper: no profile for country, using defaults",
			zap.String("search_language", searchLang),
		)
	}

	listings, err := resilience.DoVal(ctx, s.retryFor("text_search"), func(ctx context.Context) ([]google.Listing, error) {
		return resilience.ExecuteVal(ctx, s.breakers.Get(PlacesBreaker), func(ctx context.Context) ([]google.Listing, error) {
			return s.places.TextSearch(ctx, google.TextSearchRequest{
				Query:        query,
				MaxResults:   s.opts.MaxResults,
				LanguageCode: searchLang,
			})
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sniper: text search %q", query)
	}
	log.Info("sniper: candidates found", zap.Int("count", len(listings)))

	res := &RunResult{Query: query, Candidates: len(listings)}
	t := &tally{res: res}

	g := new(errgroup.Group)
	g.SetLimit(s.opts.PitchConcurrency)

	var throttleErr error
	for i, l := range listings {
		if ctx.Err() != nil {
			break
		}
		if err := s.throttle.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				throttleErr = err
				unvisited := len(listings) - i
				log.Warn("sniper: throttle gave up before the deadline",
					zap.Int("unvisited", unvisited),
					zap.Error(err),
				)
				for range unvisited {
					t.add("failed")
				}
			}
			break
		}

		details, err := s.details(ctx, l.ID)
		if err != nil {
			log.Warn("sniper: details failed", zap.String("place_id", l.ID), zap.Error(err))
			t.add("failed")
			continue
		}
		if details == nil {
			log.Debug("sniper: no details", zap.String("place_id", l.ID))
			t.add("skipped")
			continue
		}

		rating := details.RatingOrZero()
		if !s.opts.Band.Contains(rating) {
			log.Debug("sniper: outside rating band",
				zap.Int("index", i+1),
				zap.String("name", details.Name),
				zap.Float64("rating", rating),
			)
			t.add("skipped")
			continue
		}

		t.mu.Lock()
		res.Qualified++
		t.mu.Unlock()
		log.Info("sniper: prospect qualified",
			zap.Int("index", i+1),
			zap.String("name", details.Name),
			zap.Float64("rating", rating),
		)

		g.Go(func() error {
			t.add(s.qualify(ctx, params, lang, details))
			return nil
		})
	}

	_ = g.Wait()

	log.Info("sniper: sweep complete",
		zap.Int("candidates", res.Candidates),
		zap.Int("qualified", res.Qualified),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)

	if err := ctx.Err(); err != nil {
		return res, eris.Wrap(err, "sniper: run canceled")
	}
	if throttleErr != nil {
		return res, eris.Wrap(throttleErr, "sniper: throttle")
	}
	return res, nil
}

func (s *Sniper) details(ctx context.Context, placeID string) (*google.Listing, error) {
	return resilience.DoVal(ctx, s.retryFor("place_details"), func(ctx context.Context) (*google.Listing, error) {
		return resilience.ExecuteVal(ctx, s.breakers.Get(PlacesBreaker), func(ctx context.Context) (*google.Listing, error) {
			return s.places.GetDetails(ctx, placeID)
		})
	})
}

// qualify generates the pitch and upserts the prospect, returning the
// outcome label.
func (s *Sniper) qualify(ctx context.Context, params Params, lang string, l *google.Listing) string {
	log := zap.L().With(zap.String("place_id", l.ID), zap.String("name", l.Name))

	in := classify.PitchInput{
		Name:           l.Name,
		CountryCode:    params.CountryCode,
		TargetLanguage: lang,
		Rating:         l.RatingOrZero(),
	}
	if fb := l.Latest(); fb != nil {
		in.LatestFeedback = &classify.Feedback{Text: fb.Text, AuthorName: fb.AuthorName, RelativeTime: fb.RelativeTime}
	}

	pitch, err := resilience.DoVal(ctx, s.retryFor("pitch"), func(ctx context.Context) (string, error) {
		return resilience.ExecuteVal(ctx, s.breakers.Get(ClassifierBreaker), func(ctx context.Context) (string, error) {
			return s.pitcher.GeneratePitch(ctx, in)
		})
	})
	if err != nil {
		log.Warn("sniper: pitch failed", zap.Error(err))
		return "failed"
	}

	p := prospectFrom(params, l, pitch)

	unlock := s.locks.Lock(p.PlaceID)
	created, err := s.store.UpsertProspect(ctx, p)
	unlock()
	if err != nil {
		log.Warn("sniper: upsert failed", zap.Error(err))
		return "failed"
	}
	if created {
		log.Info("sniper: prospect created")
		return "created"
	}
	log.Info("sniper: prospect updated")
	return "updated"
}

func (s *Sniper) retryFor(op string) resilience.RetryConfig {
	cfg := s.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("sniper", op)
	}
	return cfg
}

func prospectFrom(params Params, l *google.Listing, pitch string) *model.Prospect {
	p := &model.Prospect{
		PlaceID:           l.ID,
		EstablishmentName: l.Name,
		Address:           l.Address,
		City:              params.City,
		Category:          params.Category,
		CountryCode:       params.CountryCode,
		Rating:            l.RatingOrZero(),
		ReviewCount:       l.UserRatingCount,
		Pitch:             &pitch,
		Status:            model.ProspectStatusToContact,
		Metadata:          map[string]any{"reviews_count": len(l.Feedback)},
	}
	if fb := l.Latest(); fb != nil {
		p.LastReviewText = optional(fb.Text)
		p.LastReviewAuthor = optional(fb.AuthorName)
		p.LastReviewRelative = optional(fb.RelativeTime)
	}
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
