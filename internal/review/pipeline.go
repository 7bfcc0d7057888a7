// Package review classifies customer reviews and persists the outcome with
// its lifecycle status.
package review

import (
	"context"

	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/classify"
	"github.com/reputexa/reputexa/internal/metrics"
	"github.com/reputexa/reputexa/internal/model"
	"github.com/reputexa/reputexa/internal/resilience"
)

// Classifier decides whether a review gets a reply.
type Classifier interface {
	Classify(ctx context.Context, in classify.ReviewInput) (classify.Decision, error)
}

// Store is the review persistence the pipeline needs.
type Store interface {
	CreateReview(ctx context.Context, r *model.Review) error
	GetReview(ctx context.Context, id string) (*model.Review, error)
	ResolveReview(ctx context.Context, id string, res model.Resolution) (bool, error)
}

// Result is the outcome reported to the caller.
type Result struct {
	ID                string             `json:"id"`
	Action            classify.Action    `json:"action"`
	Status            model.ReviewStatus `json:"status"`
	DetectedLanguage  string             `json:"detectedLanguage"`
	IsSecurityFlagged bool               `json:"isSecurityFlagged"`
	Reason            string             `json:"reason,omitempty"`
	ResponseText      *string            `json:"responseText"`
}

// Pipeline runs the ingest-and-classify and classify-existing flows.
type Pipeline struct {
	store      Store
	classifier Classifier
	retry      resilience.RetryConfig
}

// NewPipeline wires a pipeline. retry governs transient oracle failures.
func NewPipeline(store Store, classifier Classifier, retry resilience.RetryConfig) *Pipeline {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("classifier", "classify")
	}
	return &Pipeline{store: store, classifier: classifier, retry: retry}
}

// Ingest validates a new review, classifies it and stores it already
// resolved. Nothing is written when validation or classification fails.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*Result, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &model.Review{
		ReviewText:        req.ReviewText,
		Rating:            req.Rating,
		EstablishmentName: req.EstablishmentName,
		City:              req.City,
		Industry:          req.Industry,
	}

	decision, err := p.classify(ctx, r)
	if err != nil {
		return nil, err
	}
	r.Apply(resolutionFor(decision))

	if err := p.store.CreateReview(ctx, r); err != nil {
		return nil, err
	}

	p.record(r)
	return resultFor(r, decision), nil
}

// ClassifyExisting classifies a stored PENDING review in place. The write is
// conditional on the review still being unresolved, so at most one caller
// succeeds per review.
func (p *Pipeline) ClassifyExisting(ctx context.Context, id string) (*Result, error) {
	r, err := p.store.GetReview(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if r.Resolved() {
		return nil, ErrAlreadyResolved
	}

	decision, err := p.classify(ctx, r)
	if err != nil {
		return nil, err
	}

	res := resolutionFor(decision)
	applied, err := p.store.ResolveReview(ctx, id, res)
	if err != nil {
		return nil, err
	}
	if !applied {
		zap.L().Info("review: lost resolution race", zap.String("review_id", id))
		return nil, ErrAlreadyResolved
	}
	r.Apply(res)

	p.record(r)
	return resultFor(r, decision), nil
}

func (p *Pipeline) classify(ctx context.Context, r *model.Review) (classify.Decision, error) {
	in := classify.ReviewInput{
		Text:              r.ReviewText,
		Rating:            r.Rating,
		EstablishmentName: r.EstablishmentName,
		City:              r.City,
		Industry:          r.Industry,
	}
	decision, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (classify.Decision, error) {
		return p.classifier.Classify(ctx, in)
	})
	if err != nil {
		zap.L().Warn("review: classification failed",
			zap.String("review_id", r.ID),
			zap.String("establishment", r.EstablishmentName),
			zap.String("error_type", resilience.ClassifyError(err)),
			zap.Error(err),
		)
		return nil, err
	}
	return decision, nil
}

func (p *Pipeline) record(r *model.Review) {
	metrics.ObserveReview(string(r.Status))
	zap.L().Info("review: classified",
		zap.String("review_id", r.ID),
		zap.String("status", string(r.Status)),
		zap.String("language", r.DetectedLanguage),
		zap.Int("rating", r.Rating),
	)
}

func resolutionFor(d classify.Decision) model.Resolution {
	switch d := d.(type) {
	case classify.Flag:
		return model.FlaggedResolution(d.Reason, d.DetectedLanguage)
	case classify.Reply:
		return model.ReplyResolution(d.Content, d.DetectedLanguage)
	default:
		return model.Resolution{Status: model.ReviewStatusPending}
	}
}

func resultFor(r *model.Review, d classify.Decision) *Result {
	res := &Result{
		ID:                r.ID,
		Action:            d.Action(),
		Status:            r.Status,
		DetectedLanguage:  r.DetectedLanguage,
		IsSecurityFlagged: r.IsSecurityFlagged,
		ResponseText:      r.ResponseText,
	}
	if f, ok := d.(classify.Flag); ok {
		res.Reason = f.Reason
	}
	return res
}
