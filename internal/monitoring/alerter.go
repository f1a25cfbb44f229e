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

	"github.com/pagesift/pagesift/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertErrorRate    AlertType = "error_rate"
	AlertStaleResults AlertType = "stale_results"
)

// minResultsForRateAlert is the sample size below which the error-rate
// alert stays quiet.
const minResultsForRateAlert = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// Check result error rate.
	if a.cfg.ErrorRateThreshold > 0 &&
		snap.Results >= minResultsForRateAlert &&
		snap.ErrorRate > a.cfg.ErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Result error rate %.1f%% exceeds threshold %.1f%% (%d of %d results)",
				snap.ErrorRate*100, a.cfg.ErrorRateThreshold*100,
				snap.ErrorResults, snap.Results,
			),
			Details: map[string]any{
				"error_rate":    snap.ErrorRate,
				"threshold":     a.cfg.ErrorRateThreshold,
				"error_results": snap.ErrorResults,
				"results":       snap.Results,
			},
			Timestamp: now,
		})
	}

	// Check for stale results: results exist but none stored recently.
	if a.cfg.StaleAfterHours > 0 && snap.Jobs > 0 && snap.LastResultAt != nil {
		staleAfter := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if now.Sub(*snap.LastResultAt) > staleAfter {
			alerts = append(alerts, Alert{
				Type:     AlertStaleResults,
				Severity: "medium",
				Message: fmt.Sprintf(
					"No results stored in the last %dh across %d registered job(s)",
					a.cfg.StaleAfterHours, snap.Jobs,
				),
				Details: map[string]any{
					"jobs":              snap.Jobs,
					"last_result_at":    snap.LastResultAt,
					"stale_after_hours": a.cfg.StaleAfterHours,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
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
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
