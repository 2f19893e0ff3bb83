package reports_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
	"github.com/fieldserve/billing-engine/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// FIXTURES
// =============================================================================

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// seededStore holds four entries across June 2026 plus pricing for one
// of the two clients.
func seededStore() *memory.Store {
	s := memory.NewStore()

	s.AddEntries(
		billing.ServiceEntry{
			ID: "e1", FTID: "ft-1", TechnicianName: "Asha",
			ClientID: "c1", ClientName: "Acme", CountryID: "x1",
			DataCenterID: "dc1", DataCenterName: "North", ReferenceNo: "REF-100",
			Date:      day("2026-06-01"),
			EntryTime: "09:00", EndTime: "17:00", DurationHours: 8,
			CommuteTimeInMinutes: 30,
		},
		billing.ServiceEntry{
			ID: "e2", FTID: "ft-2", TechnicianName: "Borja",
			ClientID: "c1", ClientName: "Acme", CountryID: "x1",
			DataCenterID: "dc1", DataCenterName: "North", ReferenceNo: "REF-101",
			Date:      day("2026-06-02"),
			EntryTime: "18:00", EndTime: "21:00", DurationHours: 3,
			AdditionalFTCount: 1, CommuteTimeInMinutes: 30,
		},
		billing.ServiceEntry{
			ID: "e3", FTID: "ft-1", TechnicianName: "Asha",
			ClientID: "c2", ClientName: "Globex", CountryID: "x1",
			DataCenterID: "dc2", DataCenterName: "South", ReferenceNo: "REF-102",
			Date:      day("2026-06-03"),
			EntryTime: "22:00", EndTime: "02:00", DurationHours: 4,
		},
		billing.ServiceEntry{
			ID: "e4", FTID: "ft-1", TechnicianName: "Asha",
			ClientID: "c1", ClientName: "Acme", CountryID: "x1",
			DataCenterID: "dc1", DataCenterName: "North", ReferenceNo: "REF-103",
			Date:      day("2026-07-15"), // outside June
			EntryTime: "09:00", EndTime: "10:00", DurationHours: 1,
		},
	)

	s.PutRate(billing.Rate{
		ID: "r1", ClientID: "c1", CountryID: "x1",
		StandardHourlyRate:    dec("10"),
		OffStandardHourlyRate: dec("15"),
		CommuteHourlyRate:     dec("5"),
	})

	return s
}

func newService(s *memory.Store, policy billing.MissingRatePolicy) *reports.Service {
	return reports.NewService(s, s, policy)
}

func june() (time.Time, time.Time) {
	return day("2026-06-01"), day("2026-06-30")
}

// =============================================================================
// DAILY WORK REPORTS
// =============================================================================

func TestDailyWorkReports_PagingAndOrder(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	page, err := svc.DailyWorkReports(context.Background(),
		reports.EntryFilter{From: from, To: to},
		reports.Page{Number: 1, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages) // ceil(3/2)
	require.Len(t, page.Entries, 2)
	// Newest visit first.
	assert.Equal(t, "e3", page.Entries[0].ID)
	assert.Equal(t, "e2", page.Entries[1].ID)

	page, err = svc.DailyWorkReports(context.Background(),
		reports.EntryFilter{From: from, To: to},
		reports.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "e1", page.Entries[0].ID)
}

func TestDailyWorkReports_Search(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	// Case-insensitive substring over resolved names and reference number.
	page, err := svc.DailyWorkReports(context.Background(),
		reports.EntryFilter{From: from, To: to, Search: "globex"},
		reports.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "e3", page.Entries[0].ID)

	page, err = svc.DailyWorkReports(context.Background(),
		reports.EntryFilter{From: from, To: to, Search: "ref-10"},
		reports.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestDailyWorkReports_DefaultsBadPaging(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)

	page, err := svc.DailyWorkReports(context.Background(), reports.EntryFilter{}, reports.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 4, page.Total)
}

// =============================================================================
// WORK SUMMARY METRICS
// =============================================================================

func TestWorkSummaryMetrics_RangeBound(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	s, err := svc.WorkSummaryMetrics(context.Background(), from, to)
	require.NoError(t, err)

	// e4 is in July and must not leak into the June summary.
	assert.Equal(t, 3, s.TotalWorkLogs)
	assert.InDelta(t, 15, s.TotalHours, 1e-9)
	assert.Equal(t, 2, s.Technicians)
	assert.Equal(t, 2, s.Clients)
}

// =============================================================================
// DETAILED WORK LOGS
// =============================================================================

func TestDetailedWorkLogs_AttachesRates(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	logs, err := svc.DetailedWorkLogs(context.Background(), from, to, "", "")
	require.NoError(t, err)
	require.Len(t, logs, 3)

	byID := make(map[string]reports.DetailedWorkLog)
	for _, l := range logs {
		byID[l.Entry.ID] = l
	}

	require.NotNil(t, byID["e1"].Rate)
	assert.Equal(t, "r1", byID["e1"].Rate.ID)

	// Globex has no pricing: annotated nil, never an error.
	assert.Nil(t, byID["e3"].Rate)
}

func TestDetailedWorkLogs_ClientFilter(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	logs, err := svc.DetailedWorkLogs(context.Background(), from, to, "c2", "")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "e3", logs[0].Entry.ID)
}

// =============================================================================
// DATA-CENTER WORK SUMMARY
// =============================================================================

func TestDataCenterWorkSummary_EndToEnd(t *testing.T) {
	// GIVEN: the seeded June entries with Acme priced at (10, 15, 5)
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	// WHEN
	buckets, err := svc.DataCenterWorkSummary(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	// THEN: dc1/c1 sums e1 (82.5, 8h) and e2, whose 18:00-21:00 shift with
	// one extra technician prices at 75 for 6 hours.
	north := buckets[0]
	assert.Equal(t, "dc1", north.DataCenterID)
	assert.InDelta(t, 14, north.TotalHours, 1e-9)
	assert.True(t, dec("157.5").Equal(north.TotalPrice), "got %s", north.TotalPrice)

	// Unpriced Globex zero-fills cost but keeps hours.
	south := buckets[1]
	assert.InDelta(t, 4, south.TotalHours, 1e-9)
	assert.True(t, south.TotalPrice.IsZero())
}

func TestDataCenterWorkSummary_FailPolicyAborts(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateFail)
	from, to := june()

	buckets, err := svc.DataCenterWorkSummary(context.Background(), from, to)
	assert.Nil(t, buckets)
	assert.ErrorIs(t, err, billing.ErrRateNotFound)
}

// =============================================================================
// DATA-CENTER DURATION SUMMARY
// =============================================================================

func TestDataCenterDurationSummary(t *testing.T) {
	svc := newService(seededStore(), billing.MissingRateZeroFill)
	from, to := june()

	buckets, err := svc.DataCenterDurationSummary(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	north := buckets[0]
	assert.Equal(t, "dc1", north.DataCenterID)
	assert.InDelta(t, 12, north.TotalStandardDuration, 1e-9)
	assert.InDelta(t, 2, north.TotalOffStandardDuration, 1e-9)
	assert.InDelta(t, 14, north.TotalDuration, 1e-9)
}

// =============================================================================
// READ-PHASE FAILURE
// =============================================================================

type failingStore struct {
	err error
}

func (f *failingStore) ListEntries(context.Context, reports.EntryFilter) ([]billing.ServiceEntry, error) {
	return nil, f.err
}

func (f *failingStore) ListEntriesPage(context.Context, reports.EntryFilter, reports.Page) ([]billing.ServiceEntry, int, error) {
	return nil, 0, f.err
}

func (f *failingStore) ListRates(context.Context, []billing.RateKey) ([]billing.Rate, error) {
	return nil, f.err
}

func TestReports_FailedReadAbortsWholeReport(t *testing.T) {
	boom := errors.New("disk I/O error")
	svc := reports.NewService(&failingStore{err: boom}, &failingStore{err: boom}, billing.MissingRateZeroFill)
	ctx := context.Background()
	from, to := june()

	_, err := svc.DailyWorkReports(ctx, reports.EntryFilter{}, reports.Page{Number: 1, Size: 10})
	assert.ErrorIs(t, err, boom)

	_, err = svc.WorkSummaryMetrics(ctx, from, to)
	assert.ErrorIs(t, err, boom)

	_, err = svc.DetailedWorkLogs(ctx, from, to, "", "")
	assert.ErrorIs(t, err, boom)

	_, err = svc.DataCenterWorkSummary(ctx, from, to)
	assert.ErrorIs(t, err, boom)

	_, err = svc.DataCenterDurationSummary(ctx, from, to)
	assert.ErrorIs(t, err, boom)
}
