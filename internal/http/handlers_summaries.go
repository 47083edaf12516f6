package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"faturamento/internal/core"
	applog "faturamento/internal/log"
	"faturamento/internal/services"
)

// ReportHandlers serves the dashboard and the monthly summaries.
type ReportHandlers struct {
	summaries *services.SummaryService
	dashboard *services.DashboardService
}

func NewReportHandlers(summaries *services.SummaryService, dashboard *services.DashboardService) *ReportHandlers {
	return &ReportHandlers{summaries: summaries, dashboard: dashboard}
}

// RegisterRoutes registers dashboard and summary routes
func (h *ReportHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/dashboard/stats", h.DashboardStats).Methods(http.MethodGet)
	router.HandleFunc("/summaries", h.ListSummaries).Methods(http.MethodGet)
	router.HandleFunc("/summaries/refresh", h.RefreshSummary).Methods(http.MethodPost)
}

func (h *ReportHandlers) DashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboard.DashboardStats(r.Context())
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ListSummaries returns the summary of ?month&year, or the latest persisted
// summaries when neither parameter is given.
func (h *ReportHandlers) ListSummaries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	month, err := optionalInt(q, "month")
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	year, err := optionalInt(q, "year")
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}

	lookup, err := h.summaries.GetMonthlySummary(r.Context(), month, year)
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	if lookup.Single != nil {
		writeJSON(w, http.StatusOK, lookup.Single)
		return
	}
	if lookup.Latest == nil {
		lookup.Latest = []core.MonthlySummary{}
	}
	writeJSON(w, http.StatusOK, lookup.Latest)
}

func (h *ReportHandlers) RefreshSummary(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpRefresh)
		return
	}
	sum, err := h.summaries.RefreshSummary(r.Context(), req.Month, req.Year)
	if err != nil {
		writeError(w, r, err, applog.OpRefresh)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
