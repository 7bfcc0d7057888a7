// Package classify turns reviews into FLAG/REPLY decisions and prospects into
// outreach pitches by prompting a language model.
package classify

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/metrics"
	"github.com/reputexa/reputexa/internal/profile"
)

// Options bounds oracle calls.
type Options struct {
	Timeout   time.Duration
	MaxTokens int64
}

// Classifier is the classification client shared by both pipelines.
type Classifier struct {
	completer Completer
	opts      Options
}

// New creates a Classifier. A zero Timeout defaults to 30s so no call can
// block a batch indefinitely.
func New(completer Completer, opts Options) *Classifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	return &Classifier{completer: completer, opts: opts}
}

// Classify asks the oracle whether to flag or answer the review.
func (c *Classifier) Classify(ctx context.Context, in ReviewInput) (Decision, error) {
	raw, err := c.complete(ctx, "classify", Completion{
		System: reviewSystemPrompt,
		User:   reviewUserPrompt(in),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}
	return DecodeDecision(raw)
}

// GeneratePitch writes a short outreach message for a prospect in its target
// language, using the country's tone.
func (c *Classifier) GeneratePitch(ctx context.Context, in PitchInput) (string, error) {
	tone := profile.ToneGuide(profile.Lookup(in.CountryCode).Tone)
	raw, err := c.complete(ctx, "pitch", Completion{
		System: pitchSystemPrompt(in.TargetLanguage, tone, in.Rating),
		User:   pitchUserPrompt(in),
	})
	if err != nil {
		return "", err
	}

	pitch := strings.TrimSpace(raw)
	if pitch == "" {
		return "", &MalformedResponseError{Raw: raw, Err: eris.New("empty pitch")}
	}
	return pitch, nil
}

func (c *Classifier) complete(ctx context.Context, op string, comp Completion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	comp.MaxTokens = c.opts.MaxTokens
	comp.Op = op
	oracle := c.completer.Name()

	start := time.Now()
	raw, err := c.completer.Complete(ctx, comp)
	elapsed := time.Since(start)
	metrics.ObserveOracle(oracle, op, err, elapsed)

	log := zap.L().With(zap.String("oracle", oracle), zap.String("op", op))
	if err != nil {
		log.Warn("classify: oracle call failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}
	log.Info("classify: oracle call completed", zap.Duration("elapsed", elapsed), zap.Int("response_len", len(raw)))
	return raw, nil
}
