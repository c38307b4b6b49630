// Package api serves the saved pipeline output as read-only JSON for the
// dashboard. Companies with a synthesized name and stakeholders with an
// unknown title are never returned.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// UsageSummarizer abstracts the ledger rollup served on /api/usage.
type UsageSummarizer interface {
	Summary() (*cost.Summary, error)
}

// Deps are the handlers' collaborators. Metrics may be nil.
type Deps struct {
	Store   *store.Store
	Usage   UsageSummarizer
	Metrics http.Handler
}

type server struct {
	store *store.Store
	usage UsageSummarizer
}

// NewRouter builds the HTTP routes.
func NewRouter(d Deps) http.Handler {
	s := &server{store: d.Store, usage: d.Usage}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/usage", s.usageSummary)
		r.Get("/gatherings", s.listGatherings)
		r.Get("/companies", s.listCompanies)
		r.Get("/companies/{id}", s.getCompany)
		r.Get("/stakeholders", s.listStakeholders)
		r.Get("/outreach", s.listOutreach)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) status(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sum, err := s.usage.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities":             counts,
		"total_cost_usd":       sum.TotalCostUSD,
		"budget_remaining_usd": sum.BudgetRemainingUSD,
		"budget_used_pct":      sum.BudgetUsedPct,
	})
}

func (s *server) usageSummary(w http.ResponseWriter, _ *http.Request) {
	sum, err := s.usage.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *server) listGatherings(w http.ResponseWriter, r *http.Request) {
	gs, err := s.store.Gatherings.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	kind := model.GatheringKind(r.URL.Query().Get("kind"))
	priority := model.Tier(r.URL.Query().Get("priority"))

	out := make([]model.Gathering, 0, len(gs))
	for _, g := range gs {
		if kind != "" && g.Kind != kind {
			continue
		}
		if priority != "" && g.Priority != priority {
			continue
		}
		out = append(out, g)
	}
	model.SortGatherings(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listCompanies(w http.ResponseWriter, r *http.Request) {
	cs, err := s.usableCompanies(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	priority := model.LeadPriority(r.URL.Query().Get("priority"))
	segment := r.URL.Query().Get("segment")

	out := make([]model.Company, 0, len(cs))
	for _, c := range cs {
		if priority != "" && c.LeadPriority != priority {
			continue
		}
		if segment != "" && !strings.EqualFold(c.CustomerSegment, segment) {
			continue
		}
		out = append(out, c)
	}
	model.SortCompanies(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *server) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Companies.Get(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	case !c.Usable():
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) listStakeholders(w http.ResponseWriter, r *http.Request) {
	ss, err := s.store.Stakeholders.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hidden, err := s.hiddenCompanies(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	companyID := r.URL.Query().Get("company_id")

	out := make([]model.Stakeholder, 0, len(ss))
	for _, st := range ss {
		if !st.Usable() || hidden[st.CompanyID] {
			continue
		}
		if companyID != "" && st.CompanyID != companyID {
			continue
		}
		out = append(out, st)
	}
	model.SortStakeholders(out)
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listOutreach(w http.ResponseWriter, r *http.Request) {
	ms, err := s.store.Outreach.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	hidden, err := s.hiddenCompanies(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	companyID := r.URL.Query().Get("company_id")

	out := make([]model.OutreachMessage, 0, len(ms))
	for _, m := range ms {
		if hidden[m.CompanyID] {
			continue
		}
		if companyID != "" && m.CompanyID != companyID {
			continue
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) usableCompanies(r *http.Request) ([]model.Company, error) {
	cs, err := s.store.Companies.List(r.Context())
	if err != nil {
		return nil, err
	}
	out := cs[:0]
	for _, c := range cs {
		if c.Usable() {
			out = append(out, c)
		}
	}
	return out, nil
}

// hiddenCompanies returns the IDs of saved companies without a real name.
func (s *server) hiddenCompanies(r *http.Request) (map[string]bool, error) {
	cs, err := s.store.Companies.List(r.Context())
	if err != nil {
		return nil, err
	}
	hidden := make(map[string]bool)
	for _, c := range cs {
		if !c.Usable() {
			hidden[c.ID] = true
		}
	}
	return hidden, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
