package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/classify"
	"github.com/reputexa/reputexa/internal/config"
	"github.com/reputexa/reputexa/internal/resilience"
	"github.com/reputexa/reputexa/internal/review"
	"github.com/reputexa/reputexa/internal/sniper"
	"github.com/reputexa/reputexa/internal/store"
	anthropicpkg "github.com/reputexa/reputexa/pkg/anthropic"
	"github.com/reputexa/reputexa/pkg/google"
)

// openStore connects to the configured backend and applies the schema.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch c.Store.Driver {
	case "postgres":
		var ps *store.PostgresStore
		ps, err = store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
		if err == nil {
			st = ps
		}
	case "sqlite":
		var ss *store.SQLiteStore
		ss, err = store.NewSQLite(c.Store.DatabaseURL)
		if err == nil {
			st = ss
		}
	default:
		return nil, eris.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newCompleter builds the completion backend selected by classifier.provider.
func newCompleter(c *config.Config) (classify.Completer, error) {
	if err := c.RequireClassifier(); err != nil {
		return nil, err
	}
	if c.Classifier.Provider == "anthropic" {
		return classify.NewAnthropicCompleter(anthropicpkg.NewClient(c.Anthropic.Key), c.Anthropic.Model), nil
	}
	return classify.NewOpenAICompleter(c.OpenAI.Key, c.OpenAI.Model, c.OpenAI.BaseURL), nil
}

func newClassifier(c *config.Config) (*classify.Classifier, error) {
	completer, err := newCompleter(c)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("classifier ready", zap.String("provider", completer.Name()))
	return classify.New(completer, classify.Options{
		Timeout:   c.Classifier.Timeout(),
		MaxTokens: c.Classifier.MaxTokens,
	}), nil
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromRetryConfig(c.Classifier.RetryAttempts)
}

func newReviewPipeline(c *config.Config, st store.Store) (*review.Pipeline, error) {
	cl, err := newClassifier(c)
	if err != nil {
		return nil, err
	}
	return review.NewPipeline(st, cl, retryConfig(c)), nil
}

// newSniper wires the prospect pipeline. The throttle and breakers are
// shared by every sweep the returned Sniper runs; a nil breakers registry is
// built from config.
func newSniper(c *config.Config, st store.Store, breakers *resilience.Breakers) (*sniper.Sniper, error) {
	if err := c.RequireSniper(); err != nil {
		return nil, err
	}
	cl, err := newClassifier(c)
	if err != nil {
		return nil, err
	}

	if breakers == nil {
		breakers = sniper.NewBreakers(c.Sniper.BreakerThreshold)
	}

	places := google.NewClient(c.Google.Key,
		google.WithBaseURL(c.Google.BaseURL),
		google.WithTimeout(time.Duration(c.Google.TimeoutSecs)*time.Second),
	)

	return sniper.New(places, cl, st,
		sniper.NewThrottle(c.Sniper.Delay()),
		breakers,
		sniper.Options{
			Band:             sniper.Band{Min: c.Sniper.MinRating, Max: c.Sniper.MaxRating},
			MaxResults:       c.Sniper.MaxResults,
			LanguageCode:     c.Google.LanguageCode,
			PitchConcurrency: c.Sniper.PitchConcurrency,
			Retry:            retryConfig(c),
		},
	), nil
}

func sniperTargets(c *config.Config) []sniper.Params {
	targets := make([]sniper.Params, 0, len(c.Sniper.Targets))
	for _, t := range c.Sniper.Targets {
		targets = append(targets, sniper.Params{City: t.City, Category: t.Category, CountryCode: t.CountryCode}.WithDefaults())
	}
	return targets
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
