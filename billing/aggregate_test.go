package billing_test

import (
	"math/rand"
	"testing"

	"github.com/fieldserve/billing-engine/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST FIXTURES
// =============================================================================

func sampleEntries() []billing.ServiceEntry {
	return []billing.ServiceEntry{
		{
			ID: "e1", FTID: "ft-1", TechnicianName: "Asha",
			ClientID: "c1", ClientName: "Acme", CountryID: "x1",
			DataCenterID: "dc1", DataCenterName: "North",
			EntryTime: "09:00", EndTime: "17:00", DurationHours: 8,
			CommuteTimeInMinutes: 30,
		},
		{
			ID: "e2", FTID: "ft-2", TechnicianName: "Borja",
			ClientID: "c1", ClientName: "Acme", CountryID: "x1",
			DataCenterID: "dc1", DataCenterName: "North",
			EntryTime: "18:00", EndTime: "21:00", DurationHours: 3,
			AdditionalFTCount: 1, CommuteTimeInMinutes: 30,
		},
		{
			ID: "e3", FTID: "ft-1", TechnicianName: "Asha",
			ClientID: "c2", ClientName: "Globex", CountryID: "x1",
			DataCenterID: "dc2", DataCenterName: "South",
			EntryTime: "22:00", EndTime: "02:00", DurationHours: 4,
		},
	}
}

func sampleRates() billing.RateTable {
	return billing.NewRateTable([]billing.Rate{
		{ID: "r1", ClientID: "c1", CountryID: "x1",
			StandardHourlyRate: dec("10"), OffStandardHourlyRate: dec("15"), CommuteHourlyRate: dec("5")},
		{ID: "r2", ClientID: "c2", CountryID: "x1",
			StandardHourlyRate: dec("20"), OffStandardHourlyRate: dec("30"), CommuteHourlyRate: dec("10")},
	})
}

// =============================================================================
// WORK SUMMARY (raw durations)
// =============================================================================

func TestSummarizeWork_RawDurations(t *testing.T) {
	s := billing.SummarizeWork(sampleEntries())

	assert.Equal(t, 3, s.TotalWorkLogs)
	assert.InDelta(t, 15, s.TotalHours, hoursTolerance) // raw stored durations, no multiplier
	assert.Equal(t, 2, s.Technicians)
	assert.Equal(t, 2, s.Clients)

	require.Len(t, s.ByClient, 2)
	assert.Equal(t, "c1", s.ByClient[0].ID)
	assert.Equal(t, "Acme", s.ByClient[0].Name)
	assert.InDelta(t, 11, s.ByClient[0].Hours, hoursTolerance)
	assert.InDelta(t, 4, s.ByClient[1].Hours, hoursTolerance)

	require.Len(t, s.ByDataCenter, 2)
	assert.InDelta(t, 11, s.ByDataCenter[0].Hours, hoursTolerance)

	require.Len(t, s.ByTechnician, 2)
	assert.InDelta(t, 12, s.ByTechnician[0].Hours, hoursTolerance) // ft-1: 8 + 4
}

func TestSummarizeWork_Empty(t *testing.T) {
	s := billing.SummarizeWork(nil)
	assert.Equal(t, 0, s.TotalWorkLogs)
	assert.Zero(t, s.TotalHours)
	assert.Empty(t, s.ByClient)
}

// =============================================================================
// DATA-CENTER WORK SUMMARY (priced)
// =============================================================================

func TestSummarizeDataCenterWork_Buckets(t *testing.T) {
	buckets, err := billing.SummarizeDataCenterWork(sampleEntries(), sampleRates(), billing.MissingRateZeroFill)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	// dc1/c1: e1 (8h standard, mult 1) and e2 (2h std + 1h off, mult 2).
	north := buckets[0]
	assert.Equal(t, "dc1", north.DataCenterID)
	assert.Equal(t, "c1", north.ClientID)
	assert.Equal(t, "North", north.DataCenterName)
	assert.Equal(t, "Acme", north.ClientName)
	assert.InDelta(t, 14, north.TotalHours, hoursTolerance)
	// e1: 8*10 + 0.5*5 = 82.5; e2: (2*10 + 1*15 + 0.5*5)*2 = 75
	assert.True(t, dec("157.5").Equal(north.TotalPrice), "got %s", north.TotalPrice)

	// dc2/c2: e3 overnight 4h off-standard at 30/h, no commute.
	south := buckets[1]
	assert.Equal(t, "dc2", south.DataCenterID)
	assert.InDelta(t, 4, south.TotalHours, hoursTolerance)
	assert.True(t, dec("120").Equal(south.TotalPrice), "got %s", south.TotalPrice)
}

func TestSummarizeDataCenterWork_OrderIndependent(t *testing.T) {
	// Shuffling the input must never change bucket totals.
	entries := sampleEntries()
	want, err := billing.SummarizeDataCenterWork(entries, sampleRates(), billing.MissingRateZeroFill)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]billing.ServiceEntry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got, err := billing.SummarizeDataCenterWork(shuffled, sampleRates(), billing.MissingRateZeroFill)
		require.NoError(t, err)
		require.Len(t, got, len(want))
		for j := range want {
			assert.Equal(t, want[j].DataCenterID, got[j].DataCenterID)
			assert.Equal(t, want[j].ClientID, got[j].ClientID)
			assert.InDelta(t, want[j].TotalHours, got[j].TotalHours, 1e-6)
			assert.True(t, want[j].TotalPrice.Sub(got[j].TotalPrice).Abs().LessThan(dec("0.000001")))
		}
	}
}

func TestSummarizeDataCenterWork_SkipsUnreferencedEntries(t *testing.T) {
	entries := append(sampleEntries(),
		billing.ServiceEntry{ID: "no-dc", ClientID: "c1", CountryID: "x1", EntryTime: "09:00", EndTime: "10:00"},
		billing.ServiceEntry{ID: "no-client", DataCenterID: "dc1", CountryID: "x1", EntryTime: "09:00", EndTime: "10:00"},
		billing.ServiceEntry{ID: "no-country", DataCenterID: "dc1", ClientID: "c1", EntryTime: "09:00", EndTime: "10:00"},
	)

	buckets, err := billing.SummarizeDataCenterWork(entries, sampleRates(), billing.MissingRateZeroFill)
	require.NoError(t, err)

	// Same buckets and totals as without the broken entries.
	want, _ := billing.SummarizeDataCenterWork(sampleEntries(), sampleRates(), billing.MissingRateZeroFill)
	assert.Equal(t, want, buckets)
}

func TestSummarizeDataCenterWork_MissingRateZeroFills(t *testing.T) {
	// Only c1 is priced; c2 hours still show up with zero price.
	rates := billing.NewRateTable([]billing.Rate{
		{ID: "r1", ClientID: "c1", CountryID: "x1",
			StandardHourlyRate: dec("10"), OffStandardHourlyRate: dec("15"), CommuteHourlyRate: dec("5")},
	})

	buckets, err := billing.SummarizeDataCenterWork(sampleEntries(), rates, billing.MissingRateZeroFill)
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	south := buckets[1]
	assert.InDelta(t, 4, south.TotalHours, hoursTolerance)
	assert.True(t, south.TotalPrice.IsZero())
}

func TestSummarizeDataCenterWork_MissingRateFailAborts(t *testing.T) {
	buckets, err := billing.SummarizeDataCenterWork(sampleEntries(), billing.RateTable{}, billing.MissingRateFail)
	assert.Nil(t, buckets)
	assert.ErrorIs(t, err, billing.ErrRateNotFound)
}

// =============================================================================
// DATA-CENTER DURATION SUMMARY (split-weighted)
// =============================================================================

func TestSummarizeDataCenterDurations(t *testing.T) {
	buckets, err := billing.SummarizeDataCenterDurations(sampleEntries())
	require.NoError(t, err)
	require.Len(t, buckets, 2)

	// dc1: e1 8h standard (mult 1) + e2 2h std/1h off (mult 2).
	north := buckets[0]
	assert.Equal(t, "dc1", north.DataCenterID)
	assert.InDelta(t, 12, north.TotalStandardDuration, hoursTolerance)
	assert.InDelta(t, 2, north.TotalOffStandardDuration, hoursTolerance)
	assert.InDelta(t, 14, north.TotalDuration, hoursTolerance)

	// dc2: e3 entirely off-standard, mult 1.
	south := buckets[1]
	assert.InDelta(t, 0, south.TotalStandardDuration, hoursTolerance)
	assert.InDelta(t, 4, south.TotalOffStandardDuration, hoursTolerance)
	assert.InDelta(t, 4, south.TotalDuration, hoursTolerance)
}

func TestSummarizeDataCenterDurations_SkipsMissingDataCenter(t *testing.T) {
	entries := []billing.ServiceEntry{
		{ID: "ok", DataCenterID: "dc1", EntryTime: "09:00", EndTime: "10:00"},
		{ID: "orphan", EntryTime: "09:00", EndTime: "10:00"},
	}
	buckets, err := billing.SummarizeDataCenterDurations(entries)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "dc1", buckets[0].DataCenterID)
}

// =============================================================================
// RATE KEY DEDUPLICATION
// =============================================================================

func TestRateKeys_Deduplicates(t *testing.T) {
	entries := []billing.ServiceEntry{
		{ClientID: "c1", CountryID: "x1"},
		{ClientID: "c1", CountryID: "x1"},
		{ClientID: "c1", CountryID: "x2"},
		{ClientID: "c2", CountryID: "x1"},
		{ClientID: "", CountryID: "x1"}, // no key without both references
		{ClientID: "c3", CountryID: ""},
	}

	keys := billing.RateKeys(entries)
	assert.ElementsMatch(t, []billing.RateKey{
		{ClientID: "c1", CountryID: "x1"},
		{ClientID: "c1", CountryID: "x2"},
		{ClientID: "c2", CountryID: "x1"},
	}, keys)
}
