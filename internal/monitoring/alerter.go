package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/config"
	"github.com/sells-group/dcat-harvester/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertPortalsSkipped AlertType = "portals_skipped"
	AlertDeadLinkRate   AlertType = "dead_link_rate"
)

// minFinishedRuns is how many finished runs the failure rate needs before
// it can alert.
const minFinishedRuns = 3

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.Policy{
			Attempts: 2,
			Backoff:  time.Second,
			OnRetry:  resilience.LogRetry("monitoring", cfg.WebhookURL),
		},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Harvest failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %d runs)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackRuns,
			),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
				"last_error":   snap.LastError,
			},
			Timestamp: now,
		})
	}

	if a.cfg.SkippedPortalsAlert > 0 && len(snap.SkippedPortals) >= a.cfg.SkippedPortalsAlert {
		alerts = append(alerts, Alert{
			Type:     AlertPortalsSkipped,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d of %d portal(s) could not be harvested on %s: %s",
				len(snap.SkippedPortals), snap.Portals, snap.ActionDate,
				strings.Join(snap.SkippedPortals, ", "),
			),
			Details: map[string]any{
				"portals": snap.SkippedPortals,
				"total":   snap.Portals,
			},
			Timestamp: now,
		})
	}

	if a.cfg.DeadLinkRateThreshold > 0 && snap.LinksChecked > 0 && snap.DeadLinkRate > a.cfg.DeadLinkRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDeadLinkRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of new download links are dead on %s (%d of %d)",
				snap.DeadLinkRate*100, snap.ActionDate, snap.DeadLinks, snap.LinksChecked,
			),
			Details: map[string]any{
				"dead_link_rate": snap.DeadLinkRate,
				"threshold":      a.cfg.DeadLinkRateThreshold,
				"dead":           snap.DeadLinks,
				"checked":        snap.LinksChecked,
				"timed_out":      snap.TimedOutLinks,
			},
			Timestamp: now,
		})
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
		err := resilience.Do(ctx, a.retry, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
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
