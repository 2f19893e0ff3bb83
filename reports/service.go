/*
Package reports assembles the admin-facing reports.

PURPOSE:
  Each report runs in two phases: a READ phase against the store
  (entries in a date range, then one batched rate fetch for the keys
  those entries reference) and a pure COMPUTE phase delegated to the
  billing package. A failed read aborts the whole report; there are no
  partial reports.

REPORT SHAPES:
  1. DailyWorkReports         paginated entry listing with search
  2. WorkSummaryMetrics       dashboard counts over raw durations
  3. DetailedWorkLogs         raw entries annotated with their rate
  4. DataCenterWorkSummary    priced hours per (data center, client)
  5. DataCenterDurationSummary  weighted split durations per data center

SEE ALSO:
  - billing/aggregate.go: the compute phase
  - store/sqlite: the production EntryStore/RateStore
*/
package reports

import (
	"context"
	"time"

	"github.com/fieldserve/billing-engine/billing"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// EntryFilter narrows which service entries a report covers. Zero fields
// are ignored. Search matches case-insensitive substrings of the resolved
// technician, client and data-center names plus the reference number.
type EntryFilter struct {
	From time.Time // inclusive, truncated to the day
	To   time.Time // inclusive

	FTID         string
	ClientID     string
	DataCenterID string
	Status       string
	Search       string
}

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// EntryStore reads service entries with resolved reference names.
type EntryStore interface {
	// ListEntries returns every entry matching the filter, newest visit
	// date first.
	ListEntries(ctx context.Context, f EntryFilter) ([]billing.ServiceEntry, error)

	// ListEntriesPage returns one page plus the total match count.
	ListEntriesPage(ctx context.Context, f EntryFilter, p Page) ([]billing.ServiceEntry, int, error)
}

// RateStore fetches pricing for a deduplicated key batch in one call.
type RateStore interface {
	ListRates(ctx context.Context, keys []billing.RateKey) ([]billing.Rate, error)
}

// =============================================================================
// SERVICE
// =============================================================================

// Service runs the report pipelines. Policy controls what a missing rate
// does to the priced reports.
type Service struct {
	Entries EntryStore
	Rates   RateStore
	Policy  billing.MissingRatePolicy
}

func NewService(entries EntryStore, rates RateStore, policy billing.MissingRatePolicy) *Service {
	return &Service{Entries: entries, Rates: rates, Policy: policy}
}

// DailyReportPage is one page of the daily work report.
type DailyReportPage struct {
	Entries []billing.ServiceEntry
	Total   int
	Page    int
	Pages   int
}

// DailyWorkReports lists entries newest-first with paging. Page numbers
// below 1 and non-positive sizes fall back to defaults.
func (s *Service) DailyWorkReports(ctx context.Context, f EntryFilter, p Page) (DailyReportPage, error) {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}

	entries, total, err := s.Entries.ListEntriesPage(ctx, f, p)
	if err != nil {
		return DailyReportPage{}, err
	}

	return DailyReportPage{
		Entries: entries,
		Total:   total,
		Page:    p.Number,
		Pages:   (total + p.Size - 1) / p.Size,
	}, nil
}

// WorkSummaryMetrics computes the dashboard summary over a date range.
// Hours are the raw stored durations, unweighted.
func (s *Service) WorkSummaryMetrics(ctx context.Context, from, to time.Time) (billing.WorkSummary, error) {
	entries, err := s.Entries.ListEntries(ctx, EntryFilter{From: from, To: to})
	if err != nil {
		return billing.WorkSummary{}, err
	}
	return billing.SummarizeWork(entries), nil
}

// DetailedWorkLog is one entry annotated with its applicable rate, nil
// when no pricing exists for the entry's (client, country) pair.
type DetailedWorkLog struct {
	Entry billing.ServiceEntry
	Rate  *billing.Rate
}

// DetailedWorkLogs returns the raw entries of a range with pricing
// attached. Unlike the priced summaries, a missing rate is never an
// error here; the caller sees the nil and decides.
func (s *Service) DetailedWorkLogs(ctx context.Context, from, to time.Time, clientID, dataCenterID string) ([]DetailedWorkLog, error) {
	entries, err := s.Entries.ListEntries(ctx, EntryFilter{
		From:         from,
		To:           to,
		ClientID:     clientID,
		DataCenterID: dataCenterID,
	})
	if err != nil {
		return nil, err
	}

	rates, err := s.fetchRates(ctx, entries)
	if err != nil {
		return nil, err
	}

	logs := make([]DetailedWorkLog, len(entries))
	for i, e := range entries {
		logs[i].Entry = e
		if r, ok := rates.Lookup(e.ClientID, e.CountryID); ok {
			rr := r
			logs[i].Rate = &rr
		}
	}
	return logs, nil
}

// DataCenterWorkSummary groups a range's entries by (data center, client)
// with multiplier-and-split-aware hours and price.
func (s *Service) DataCenterWorkSummary(ctx context.Context, from, to time.Time) ([]billing.WorkBucket, error) {
	entries, err := s.Entries.ListEntries(ctx, EntryFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	rates, err := s.fetchRates(ctx, entries)
	if err != nil {
		return nil, err
	}

	return billing.SummarizeDataCenterWork(entries, rates, s.Policy)
}

// DataCenterDurationSummary groups a range's entries by data center with
// weighted standard/off-standard durations. No pricing involved.
func (s *Service) DataCenterDurationSummary(ctx context.Context, from, to time.Time) ([]billing.DurationBucket, error) {
	entries, err := s.Entries.ListEntries(ctx, EntryFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return billing.SummarizeDataCenterDurations(entries)
}

// fetchRates performs the single batched rate fetch for an entry batch.
func (s *Service) fetchRates(ctx context.Context, entries []billing.ServiceEntry) (billing.RateTable, error) {
	keys := billing.RateKeys(entries)
	if len(keys) == 0 {
		return billing.RateTable{}, nil
	}
	rates, err := s.Rates.ListRates(ctx, keys)
	if err != nil {
		return nil, err
	}
	return billing.NewRateTable(rates), nil
}
