/*
reports.go - Admin report endpoints

PURPOSE:
  Maps query parameters onto the report service and converts its shapes
  to DTOs. All five reports share the startDate/endDate range params.

ENDPOINTS:
  GET /api/admin/reports/daily                  Paginated entry listing
  GET /api/admin/reports/summary                Dashboard metrics
  GET /api/admin/reports/detailed               Entries with rates attached
  GET /api/admin/reports/data-center-work       Priced (DC, client) summary
  GET /api/admin/reports/data-center-durations  Weighted duration summary

SEE ALSO:
  - reports/service.go: the pipelines behind these endpoints
*/
package api

import (
	"net/http"
	"time"

	"github.com/fieldserve/billing-engine/reports"
)

// DailyWorkReport lists entries newest-first with filters and paging.
// GET /api/admin/reports/daily?startDate=&endDate=&ftId=&clientId=&dataCenterId=&search=&page=&limit=
func (h *Handler) DailyWorkReport(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "startDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}
	to, err := parseDateParam(r, "endDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}

	q := r.URL.Query()
	page, err := h.Reports.DailyWorkReports(r.Context(),
		reports.EntryFilter{
			From:         from,
			To:           to,
			FTID:         q.Get("ftId"),
			ClientID:     q.Get("clientId"),
			DataCenterID: q.Get("dataCenterId"),
			Status:       q.Get("status"),
			Search:       q.Get("search"),
		},
		reports.Page{
			Number: parseIntParam(r, "page", 1),
			Size:   parseIntParam(r, "limit", 10),
		},
	)
	if err != nil {
		writeDomainError(w, "Failed to build daily report", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(page))
}

// WorkSummaryReport returns the dashboard metrics over a date range.
// GET /api/admin/reports/summary?startDate=&endDate=
func (h *Handler) WorkSummaryReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	summary, err := h.Reports.WorkSummaryMetrics(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to build summary", err)
		return
	}

	writeJSON(w, http.StatusOK, WorkSummaryDTO{
		TotalWorkLogs: summary.TotalWorkLogs,
		TotalHours:    summary.TotalHours,
		Technicians:   summary.Technicians,
		Clients:       summary.Clients,
		ByClient:      toGroupHoursDTOs(summary.ByClient),
		ByDataCenter:  toGroupHoursDTOs(summary.ByDataCenter),
		ByTechnician:  toGroupHoursDTOs(summary.ByTechnician),
	})
}

// DetailedWorkLogReport returns raw entries with their applicable rate.
// A missing rate shows as null, never an error.
// GET /api/admin/reports/detailed?startDate=&endDate=&clientId=&dataCenterId=
func (h *Handler) DetailedWorkLogReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	logs, err := h.Reports.DetailedWorkLogs(r.Context(), from, to,
		r.URL.Query().Get("clientId"),
		r.URL.Query().Get("dataCenterId"))
	if err != nil {
		writeDomainError(w, "Failed to build detailed report", err)
		return
	}

	dtos := make([]DetailedWorkLogDTO, len(logs))
	for i, l := range logs {
		dtos[i].Entry = toEntryDTO(l.Entry)
		if l.Rate != nil {
			rate := toRateDTO(*l.Rate)
			dtos[i].Rate = &rate
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DataCenterWorkReport returns priced hours per (data center, client).
// GET /api/admin/reports/data-center-work?startDate=&endDate=
func (h *Handler) DataCenterWorkReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	buckets, err := h.Reports.DataCenterWorkSummary(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to build work summary", err)
		return
	}

	dtos := make([]WorkBucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = WorkBucketDTO{
			DataCenterID:   b.DataCenterID,
			DataCenterName: b.DataCenterName,
			ClientID:       b.ClientID,
			ClientName:     b.ClientName,
			TotalHours:     b.TotalHours,
			TotalPrice:     b.TotalPrice.String(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DataCenterDurationReport returns weighted standard/off-standard
// durations per data center.
// GET /api/admin/reports/data-center-durations?startDate=&endDate=
func (h *Handler) DataCenterDurationReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := h.dateRange(w, r)
	if !ok {
		return
	}

	buckets, err := h.Reports.DataCenterDurationSummary(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Failed to build duration summary", err)
		return
	}

	dtos := make([]DurationBucketDTO, len(buckets))
	for i, b := range buckets {
		dtos[i] = DurationBucketDTO{
			DataCenterID:             b.DataCenterID,
			DataCenterName:           b.DataCenterName,
			TotalStandardDuration:    b.TotalStandardDuration,
			TotalOffStandardDuration: b.TotalOffStandardDuration,
			TotalDuration:            b.TotalDuration,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// dateRange parses the shared startDate/endDate params, writing the
// error response itself on failure.
func (h *Handler) dateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	from, err := parseDateParam(r, "startDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return from, to, false
	}
	to, err = parseDateParam(r, "endDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return from, to, false
	}
	return from, to, true
}
