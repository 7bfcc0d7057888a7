package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reputexa/reputexa/internal/config"
	"github.com/reputexa/reputexa/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSecurityReviews AlertType = "security_reviews"
)

// Alert is a single webhook payload.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates snapshots against the configured threshold and posts
// alerts to a webhook.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker

	// lastAlerted suppresses repeats until the count grows again.
	lastAlerted int
}

// NewAlerter creates an Alerter. Webhook posts are retried on transient
// failures and stop for a while once the endpoint keeps failing.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("webhook", "send_alert")
	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		retry:   retry,
		breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig(webhookBreakerThreshold, 0)),
	}
}

const webhookBreakerThreshold = 5

// webhookStatusError is a non-2xx/3xx webhook answer.
type webhookStatusError struct {
	StatusCode int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("monitoring: webhook returned status %d", e.StatusCode)
}

func (e *webhookStatusError) Retryable() bool {
	return resilience.IsTransientHTTPStatus(e.StatusCode)
}

// Evaluate returns the alerts snap triggers. A security alert fires when
// the low-rating count exceeds the threshold and has grown since the last
// alert.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap.SecurityAlerts <= a.cfg.SecurityAlertThreshold {
		a.lastAlerted = 0
		return nil
	}
	if snap.SecurityAlerts <= a.lastAlerted {
		return nil
	}
	a.lastAlerted = snap.SecurityAlerts

	return []Alert{{
		Type:     AlertSecurityReviews,
		Severity: "high",
		Message: fmt.Sprintf("%d reviews rated below %d stars (threshold %d)",
			snap.SecurityAlerts, LowRatingCutoff, a.cfg.SecurityAlertThreshold),
		Details: map[string]any{
			"security_alerts": snap.SecurityAlerts,
			"threshold":       a.cfg.SecurityAlertThreshold,
			"total_reviews":   snap.TotalReviews,
			"avg_rating":      snap.AverageRating,
		},
		Timestamp: time.Now().UTC(),
	}}
}

// SendAlerts posts alerts to the webhook and returns how many were
// delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.breaker.Execute(ctx, func(ctx context.Context) error {
				return a.sendWebhook(ctx, alert)
			})
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent", zap.String("type", string(alert.Type)))
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return &webhookStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
