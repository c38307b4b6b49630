package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/config"
	"github.com/sells-group/leadgen-cli/internal/cost"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BudgetAlertPct: 80})

	snap := &Snapshot{
		TotalBudgetUSD:     200,
		TotalCostUSD:       12.5,
		BudgetRemainingUSD: 187.5,
		TotalCalls:         20,
		FailedCalls:        2,
		Allocation: map[string]cost.AllocationStatus{
			"company_analysis": {AllocatedUSD: 50, SpentUSD: 12.5, RemainingUSD: 37.5, UtilizationPct: 25},
		},
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_ModuleUtilization(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BudgetAlertPct: 80})

	snap := &Snapshot{
		TotalBudgetUSD:     200,
		BudgetRemainingUSD: 120,
		Allocation: map[string]cost.AllocationStatus{
			"outreach_generation": {AllocatedUSD: 60, SpentUSD: 60, RemainingUSD: 0, UtilizationPct: 100},
			"company_analysis":    {AllocatedUSD: 50, SpentUSD: 40, RemainingUSD: 10, UtilizationPct: 80},
			"event_research":      {AllocatedUSD: 20, SpentUSD: 2, RemainingUSD: 18, UtilizationPct: 10},
			"buffer":              {AllocatedUSD: 0, UtilizationPct: 0},
		},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)

	assert.Equal(t, AlertModuleUtilization, alerts[0].Type)
	assert.Equal(t, "company_analysis", alerts[0].Details["module"])
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "80.0%")

	assert.Equal(t, "outreach_generation", alerts[1].Details["module"])
	assert.Equal(t, "high", alerts[1].Severity)
}

func TestAlerter_Evaluate_BudgetExhausted(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &Snapshot{
		TotalBudgetUSD:     10,
		TotalCostUSD:       10.2,
		BudgetRemainingUSD: -0.2,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertBudgetExhausted, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$10.20")
}

func TestAlerter_Evaluate_CallFailures(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &Snapshot{
		TotalBudgetUSD:     100,
		BudgetRemainingUSD: 90,
		TotalCalls:         10,
		FailedCalls:        4,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCallFailures, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumCallsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	// Only 3 calls, below the minimum for a failure-rate alert.
	snap := &Snapshot{
		TotalBudgetUSD:     100,
		BudgetRemainingUSD: 100,
		TotalCalls:         3,
		FailedCalls:        3,
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_UtilizationDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{BudgetAlertPct: 0})

	snap := &Snapshot{
		TotalBudgetUSD:     100,
		BudgetRemainingUSD: 50,
		Allocation: map[string]cost.AllocationStatus{
			"event_research": {AllocatedUSD: 10, SpentUSD: 10, UtilizationPct: 100},
		},
	}

	alerts := a.Evaluate(snap)
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertModuleUtilization, Severity: "high", Message: "test alert 1"},
		{Type: AlertBudgetExhausted, Severity: "high", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "",
	})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertBudgetExhausted, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: "http://example.com",
	})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{
		WebhookURL: ts.URL,
	})

	alerts := []Alert{
		{Type: AlertCallFailures, Message: "test"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 0, sent)
}
