package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertBudgetExhausted   AlertType = "budget_exhausted"
	AlertModuleUtilization AlertType = "module_utilization"
	AlertCallFailures      AlertType = "call_failures"
)

// minCallsForFailureRate keeps a handful of early failures from alerting.
const minCallsForFailureRate = 5

// failureRateThreshold is the share of failed calls that raises an alert.
const failureRateThreshold = 0.25

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
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
// Module alerts come out in sorted module order.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.TotalBudgetUSD > 0 && snap.BudgetRemainingUSD <= 0 {
		alerts = append(alerts, Alert{
			Type:     AlertBudgetExhausted,
			Severity: "high",
			Message: fmt.Sprintf(
				"Total spend $%.2f has used the whole $%.2f budget",
				snap.TotalCostUSD, snap.TotalBudgetUSD,
			),
			Details: map[string]any{
				"total_cost_usd":   snap.TotalCostUSD,
				"total_budget_usd": snap.TotalBudgetUSD,
			},
			Timestamp: now,
		})
	}

	if a.cfg.BudgetAlertPct > 0 {
		for _, module := range sortedModules(snap) {
			st := snap.Allocation[module]
			if st.AllocatedUSD <= 0 || st.UtilizationPct < a.cfg.BudgetAlertPct {
				continue
			}
			severity := "medium"
			if st.RemainingUSD <= 0 {
				severity = "high"
			}
			alerts = append(alerts, Alert{
				Type:     AlertModuleUtilization,
				Severity: severity,
				Message: fmt.Sprintf(
					"Module %s has used %.1f%% of its $%.2f allocation (threshold %.1f%%)",
					module, st.UtilizationPct, st.AllocatedUSD, a.cfg.BudgetAlertPct,
				),
				Details: map[string]any{
					"module":          module,
					"allocated_usd":   st.AllocatedUSD,
					"spent_usd":       st.SpentUSD,
					"utilization_pct": st.UtilizationPct,
				},
				Timestamp: now,
			})
		}
	}

	if snap.TotalCalls >= minCallsForFailureRate {
		rate := float64(snap.FailedCalls) / float64(snap.TotalCalls)
		if rate > failureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertCallFailures,
				Severity: "high",
				Message: fmt.Sprintf(
					"Model call failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d calls)",
					rate*100, failureRateThreshold*100, snap.FailedCalls, snap.TotalCalls,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"failed":       snap.FailedCalls,
					"calls":        snap.TotalCalls,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

func sortedModules(snap *Snapshot) []string {
	out := make([]string, 0, len(snap.Allocation))
	for m := range snap.Allocation {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// LogAlerts writes each alert to the global logger.
func LogAlerts(alerts []Alert) {
	for _, a := range alerts {
		zap.L().Warn("monitoring: "+a.Message,
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
		)
	}
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
