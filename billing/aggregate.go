/*
aggregate.go - Grouping and summary shapes for the reporting engine

PURPOSE:
  Turns a batch of service entries into the grouped figures the report
  service exposes: the dashboard summary (raw durations), the per
  (data center, client) work summary (priced, multiplier-weighted) and
  the per data-center duration summary (split-weighted).

  All shapes share one generic fold, parameterized by a key extractor
  and an accumulator, instead of five near-duplicated pipelines.

INVARIANTS:
  - Grouping keys are composite structs, so entries for the same pair
    land in the same bucket regardless of encounter order.
  - Accumulation is associative: any input permutation yields the same
    totals (modulo float summation drift; compare with tolerance).
  - Entries with a missing data center, client or country reference are
    skipped silently from grouped outputs.
  - Bucket slices are returned sorted by key for stable output.

SEE ALSO:
  - cost.go: per-entry pricing used by the weighted summaries
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// GENERIC FOLD
// =============================================================================

// foldEntries groups entries by key and folds each into its bucket.
// keyOf returning ok=false skips the entry. fold may return an error to
// abort the whole pass (used by the fail-loudly rate policy).
func foldEntries[K comparable, B any](
	entries []ServiceEntry,
	keyOf func(ServiceEntry) (K, bool),
	newBucket func(ServiceEntry) *B,
	fold func(*B, ServiceEntry) error,
) (map[K]*B, error) {
	buckets := make(map[K]*B)
	for _, e := range entries {
		k, ok := keyOf(e)
		if !ok {
			continue
		}
		b, ok := buckets[k]
		if !ok {
			b = newBucket(e)
			buckets[k] = b
		}
		if err := fold(b, e); err != nil {
			return nil, err
		}
	}
	return buckets, nil
}

// =============================================================================
// WORK SUMMARY - raw-duration dashboard metrics
// =============================================================================

// GroupHours is one row of a raw-duration breakdown.
type GroupHours struct {
	ID    string
	Name  string
	Hours float64
}

// WorkSummary is the dashboard shape: global counts plus raw-duration
// breakdowns. Hours here sum the stored DurationHours field, unweighted
// by the technician multiplier - intentionally different from the priced
// summaries below.
type WorkSummary struct {
	TotalWorkLogs int
	TotalHours    float64
	Technicians   int // distinct technicians
	Clients       int // distinct clients

	ByClient     []GroupHours
	ByDataCenter []GroupHours
	ByTechnician []GroupHours
}

// SummarizeWork computes the dashboard metrics over a batch of entries.
func SummarizeWork(entries []ServiceEntry) WorkSummary {
	s := WorkSummary{TotalWorkLogs: len(entries)}

	techs := make(map[string]bool)
	clients := make(map[string]bool)
	for _, e := range entries {
		s.TotalHours += e.DurationHours
		if e.FTID != "" {
			techs[e.FTID] = true
		}
		if e.ClientID != "" {
			clients[e.ClientID] = true
		}
	}
	s.Technicians = len(techs)
	s.Clients = len(clients)

	s.ByClient = rawDurationBreakdown(entries,
		func(e ServiceEntry) (string, string) { return e.ClientID, e.ClientName })
	s.ByDataCenter = rawDurationBreakdown(entries,
		func(e ServiceEntry) (string, string) { return e.DataCenterID, e.DataCenterName })
	s.ByTechnician = rawDurationBreakdown(entries,
		func(e ServiceEntry) (string, string) { return e.FTID, e.TechnicianName })

	return s
}

func rawDurationBreakdown(entries []ServiceEntry, ref func(ServiceEntry) (id, name string)) []GroupHours {
	buckets, _ := foldEntries(entries,
		func(e ServiceEntry) (string, bool) {
			id, _ := ref(e)
			return id, id != ""
		},
		func(e ServiceEntry) *GroupHours {
			id, name := ref(e)
			return &GroupHours{ID: id, Name: name}
		},
		func(b *GroupHours, e ServiceEntry) error {
			b.Hours += e.DurationHours
			return nil
		},
	)

	rows := make([]GroupHours, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, *b)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// =============================================================================
// DATA-CENTER WORK SUMMARY - priced, multiplier-weighted
// =============================================================================

// workKey keeps (data center, client) pairs in one bucket independent of
// encounter order.
type workKey struct {
	DataCenterID string
	ClientID     string
}

// WorkBucket accumulates billable hours and price for one
// (data center, client) pair.
type WorkBucket struct {
	DataCenterID   string
	DataCenterName string
	ClientID       string
	ClientName     string

	TotalHours float64
	TotalPrice decimal.Decimal
}

// SummarizeDataCenterWork groups entries by (data center, client) and sums
// the multiplier-and-split-aware hours and cost of each. Entries missing a
// data center, client or country reference are skipped.
func SummarizeDataCenterWork(entries []ServiceEntry, rates RateTable, policy MissingRatePolicy) ([]WorkBucket, error) {
	buckets, err := foldEntries(entries,
		func(e ServiceEntry) (workKey, bool) {
			if e.DataCenterID == "" || e.ClientID == "" || e.CountryID == "" {
				return workKey{}, false
			}
			return workKey{DataCenterID: e.DataCenterID, ClientID: e.ClientID}, true
		},
		func(e ServiceEntry) *WorkBucket {
			return &WorkBucket{
				DataCenterID:   e.DataCenterID,
				DataCenterName: e.DataCenterName,
				ClientID:       e.ClientID,
				ClientName:     e.ClientName,
			}
		},
		func(b *WorkBucket, e ServiceEntry) error {
			cost, err := CostEntry(e, rates, policy)
			if err != nil {
				return err
			}
			b.TotalHours += cost.TotalHours
			b.TotalPrice = b.TotalPrice.Add(cost.TotalCost)
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	rows := make([]WorkBucket, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, *b)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DataCenterID != rows[j].DataCenterID {
			return rows[i].DataCenterID < rows[j].DataCenterID
		}
		return rows[i].ClientID < rows[j].ClientID
	})
	return rows, nil
}

// =============================================================================
// DATA-CENTER DURATION SUMMARY - split-weighted, no pricing
// =============================================================================

// DurationBucket accumulates weighted standard/off-standard durations for
// one data center.
type DurationBucket struct {
	DataCenterID   string
	DataCenterName string

	TotalStandardDuration    float64
	TotalOffStandardDuration float64
	TotalDuration            float64
}

// SummarizeDataCenterDurations groups entries by data center, weighting
// each shift split by the technician multiplier. No rates are involved.
func SummarizeDataCenterDurations(entries []ServiceEntry) ([]DurationBucket, error) {
	buckets, err := foldEntries(entries,
		func(e ServiceEntry) (string, bool) { return e.DataCenterID, e.DataCenterID != "" },
		func(e ServiceEntry) *DurationBucket {
			return &DurationBucket{DataCenterID: e.DataCenterID, DataCenterName: e.DataCenterName}
		},
		func(b *DurationBucket, e ServiceEntry) error {
			split, err := SplitShift(e.EntryTime, e.EndTime)
			if err != nil {
				return err
			}
			mult := float64(Multiplier(e.AdditionalFTCount))
			b.TotalStandardDuration += split.StandardHours * mult
			b.TotalOffStandardDuration += split.OffStandardHours * mult
			b.TotalDuration += split.Total() * mult
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	rows := make([]DurationBucket, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, *b)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DataCenterID < rows[j].DataCenterID })
	return rows, nil
}
