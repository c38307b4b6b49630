package monitoring

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Exporter publishes snapshots as Prometheus gauges on a private registry.
type Exporter struct {
	reg *prometheus.Registry

	budgetTotal     prometheus.Gauge
	budgetRemaining prometheus.Gauge
	costTotal       prometheus.Gauge
	calls           prometheus.Gauge
	failedCalls     prometheus.Gauge
	tokens          prometheus.Gauge

	moduleCost        *prometheus.GaugeVec
	moduleAllocated   *prometheus.GaugeVec
	moduleUtilization *prometheus.GaugeVec
	modelCost         *prometheus.GaugeVec
	modelCalls        *prometheus.GaugeVec
	entities          *prometheus.GaugeVec
}

// NewExporter creates an Exporter with every leadgen metric registered.
func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Exporter{
		reg: reg,
		budgetTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_budget_total_usd",
			Help: "Configured total budget in USD",
		}),
		budgetRemaining: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_budget_remaining_usd",
			Help: "Budget left after recorded spend in USD",
		}),
		costTotal: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_cost_usd",
			Help: "Total recorded model spend in USD",
		}),
		calls: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_calls",
			Help: "Model calls recorded in the ledger",
		}),
		failedCalls: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_failed_calls",
			Help: "Model calls that never completed",
		}),
		tokens: f.NewGauge(prometheus.GaugeOpts{
			Name: "leadgen_tokens",
			Help: "Prompt plus completion tokens recorded in the ledger",
		}),
		moduleCost: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_module_cost_usd",
			Help: "Recorded spend per pipeline module in USD",
		}, []string{"module"}),
		moduleAllocated: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_module_allocated_usd",
			Help: "Budget allocated per module in USD",
		}, []string{"module"}),
		moduleUtilization: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_module_utilization_pct",
			Help: "Share of each module's allocation already spent",
		}, []string{"module"}),
		modelCost: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_model_cost_usd",
			Help: "Recorded spend per model in USD",
		}, []string{"model"}),
		modelCalls: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_model_calls",
			Help: "Recorded calls per model",
		}, []string{"model"}),
		entities: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadgen_entities",
			Help: "Saved pipeline entities by kind",
		}, []string{"kind", "usable"}),
	}
}

// Update replaces every gauge with the snapshot's values.
func (e *Exporter) Update(snap *Snapshot) {
	e.budgetTotal.Set(snap.TotalBudgetUSD)
	e.budgetRemaining.Set(snap.BudgetRemainingUSD)
	e.costTotal.Set(snap.TotalCostUSD)
	e.calls.Set(float64(snap.TotalCalls))
	e.failedCalls.Set(float64(snap.FailedCalls))
	e.tokens.Set(float64(snap.TotalTokens))

	e.moduleCost.Reset()
	for module, u := range snap.ByModule {
		e.moduleCost.WithLabelValues(module).Set(u.CostUSD)
	}
	e.moduleAllocated.Reset()
	e.moduleUtilization.Reset()
	for module, st := range snap.Allocation {
		e.moduleAllocated.WithLabelValues(module).Set(st.AllocatedUSD)
		e.moduleUtilization.WithLabelValues(module).Set(st.UtilizationPct)
	}
	e.modelCost.Reset()
	e.modelCalls.Reset()
	for m, u := range snap.ByModel {
		e.modelCost.WithLabelValues(m).Set(u.CostUSD)
		e.modelCalls.WithLabelValues(m).Set(float64(u.Calls))
	}

	c := snap.Entities
	e.entities.WithLabelValues("gatherings", "all").Set(float64(c.Gatherings))
	e.entities.WithLabelValues("companies", "all").Set(float64(c.Companies))
	e.entities.WithLabelValues("companies", "usable").Set(float64(c.UsableCompanies))
	e.entities.WithLabelValues("stakeholders", "all").Set(float64(c.Stakeholders))
	e.entities.WithLabelValues("stakeholders", "usable").Set(float64(c.UsableStakeholders))
	e.entities.WithLabelValues("outreach", "all").Set(float64(c.Outreach))
}

// Gatherer exposes the registry for tests and custom handlers.
func (e *Exporter) Gatherer() prometheus.Gatherer { return e.reg }

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}

// WriteTextfile writes the registry for the node exporter's textfile
// collector. The write is atomic.
func (e *Exporter) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "monitoring: create textfile dir")
	}
	if err := prometheus.WriteToTextfile(path, e.reg); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}
