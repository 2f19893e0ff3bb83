package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
	"github.com/fieldserve/billing-engine/store/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// seedDirectory creates a country, a city, one client and one data
// center with a 30-minute commute, linked together.
func seedDirectory(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.SaveCountry(ctx, sqlite.Country{
		ID: "nl", Name: "Netherlands", ISOCode: "NL", Currency: "EUR", IsActive: true,
	}))
	require.NoError(t, s.SaveCity(ctx, sqlite.City{ID: "ams", Name: "Amsterdam", CountryID: "nl"}))
	require.NoError(t, s.SaveClient(ctx, sqlite.Client{ID: "c-acme", Name: "Acme", IsActive: true}))
	require.NoError(t, s.SaveDataCenter(ctx, sqlite.DataCenter{
		ID: "dc-1", Name: "Amsterdam-1", CountryID: "nl", CityID: "ams",
		LocationType: "outside_city_limits", CommuteMinutes: 30, IsActive: true,
	}))
	require.NoError(t, s.LinkClientDataCenter(ctx, "map-1", "c-acme", "dc-1"))
}

func sampleEntry(id string, date time.Time) billing.ServiceEntry {
	return billing.ServiceEntry{
		ID: id, FTID: "ft-1", Date: date,
		CountryID: "nl", CityID: "ams",
		DataCenterID: "dc-1", ClientID: "c-acme",
		WorkType: billing.WorkMaintenance, ReferenceNo: "REF-" + id,
		EntryTime: "09:00", EndTime: "17:00", DurationHours: 8,
		TotalBillsExpense: dec("12.50"), Bills: []string{"receipt-1.pdf"},
	}
}

// =============================================================================
// SERVICE ENTRIES
// =============================================================================

func TestServiceEntry_RoundTripResolvesNames(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.CreateServiceEntry(ctx, sampleEntry("e1", day("2026-06-01"))))

	got, err := s.GetServiceEntry(ctx, "e1")
	require.NoError(t, err)

	assert.Equal(t, "Acme", got.ClientName)
	assert.Equal(t, "Amsterdam-1", got.DataCenterName)
	assert.Equal(t, "Netherlands", got.CountryName)
	assert.Equal(t, "Amsterdam", got.CityName)
	assert.Equal(t, 30, got.CommuteTimeInMinutes)
	assert.Equal(t, billing.WorkMaintenance, got.WorkType)
	assert.True(t, dec("12.50").Equal(got.TotalBillsExpense))
	assert.Equal(t, []string{"receipt-1.pdf"}, got.Bills)
	assert.Equal(t, day("2026-06-01"), got.Date)
}

func TestServiceEntry_GetMissing(t *testing.T) {
	s := newStore(t)

	_, err := s.GetServiceEntry(context.Background(), "nope")
	assert.True(t, billing.IsNotFound(err))
}

func TestListEntriesPage_FilterAndCount(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	for i, d := range []string{"2026-06-01", "2026-06-02", "2026-06-03"} {
		e := sampleEntry(string(rune('a'+i)), day(d))
		require.NoError(t, s.CreateServiceEntry(ctx, e))
	}

	entries, total, err := s.ListEntriesPage(ctx,
		reports.EntryFilter{From: day("2026-06-01"), To: day("2026-06-30")},
		reports.Page{Number: 1, Size: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, total)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, day("2026-06-03"), entries[0].Date)
}

func TestListEntries_SearchOverResolvedNames(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.CreateServiceEntry(ctx, sampleEntry("e1", day("2026-06-01"))))

	// Client name matches case-insensitively even though it only exists
	// in the joined table, not on the entry row.
	entries, err := s.ListEntries(ctx, reports.EntryFilter{Search: "acme"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	entries, err = s.ListEntries(ctx, reports.EntryFilter{Search: "globex"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateOwnedServiceEntry_OwnershipEnforced(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.CreateServiceEntry(ctx, sampleEntry("e1", day("2026-06-01"))))

	e := sampleEntry("e1", day("2026-06-01"))
	e.WorkDescription = "replaced"
	require.NoError(t, s.UpdateOwnedServiceEntry(ctx, e))

	got, err := s.GetServiceEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "replaced", got.WorkDescription)

	// A different technician cannot touch the entry.
	e.FTID = "ft-intruder"
	e.WorkDescription = "hijacked"
	err = s.UpdateOwnedServiceEntry(ctx, e)
	assert.True(t, billing.IsNotFound(err))
}

// =============================================================================
// RATES
// =============================================================================

func TestRates_ReplaceInPlace(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	r1, err := billing.NewRate("r1", "c-acme", "nl", dec("10"), dec("15"), dec("5"))
	require.NoError(t, err)
	require.NoError(t, s.SaveRate(ctx, r1))

	// Same key, new figures: replaces instead of duplicating.
	r2, err := billing.NewRate("r2", "c-acme", "nl", dec("11"), dec("16"), dec("6"))
	require.NoError(t, err)
	require.NoError(t, s.SaveRate(ctx, r2))

	rates, err := s.ListRates(ctx, []billing.RateKey{{ClientID: "c-acme", CountryID: "nl"}})
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, dec("11").Equal(rates[0].StandardHourlyRate))
}

func TestListRates_BatchedKeys(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, r := range []struct{ id, client, country string }{
		{"r1", "c1", "nl"}, {"r2", "c1", "de"}, {"r3", "c2", "nl"},
	} {
		rate, err := billing.NewRate(r.id, r.client, r.country, dec("10"), dec("15"), dec("5"))
		require.NoError(t, err)
		require.NoError(t, s.SaveRate(ctx, rate))
	}

	rates, err := s.ListRates(ctx, []billing.RateKey{
		{ClientID: "c1", CountryID: "nl"},
		{ClientID: "c2", CountryID: "nl"},
		{ClientID: "c9", CountryID: "xx"}, // absent key simply yields nothing
	})
	require.NoError(t, err)
	assert.Len(t, rates, 2)
}

func TestListRatesFiltered_Paging(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, r := range []struct{ id, client, country string }{
		{"r1", "c1", "nl"}, {"r2", "c1", "de"}, {"r3", "c2", "nl"},
	} {
		rate, err := billing.NewRate(r.id, r.client, r.country, dec("10"), dec("15"), dec("5"))
		require.NoError(t, err)
		require.NoError(t, s.SaveRate(ctx, rate))
	}

	rates, total, err := s.ListRatesFiltered(ctx, "c1", "", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rates, 1)
}

// =============================================================================
// TECHNICIANS + GRANTS
// =============================================================================

func TestCreateTechnicianWithGrants_SequentialCodes(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	t1, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", PasswordHash: "hash", Role: "technician", IsActive: true},
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-acme"}})
	require.NoError(t, err)
	assert.Equal(t, "FT001", t1.Code)

	t2, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-2", Name: "Borja", PasswordHash: "hash", Role: "technician", IsActive: true},
		nil)
	require.NoError(t, err)
	assert.Equal(t, "FT002", t2.Code)

	ok, err := s.HasGrant(ctx, "ft-1", "dc-1", "c-acme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateTechnicianWithGrants_RejectsUnmappedPair(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	// c-acme is not linked to dc-unknown, so the grant is invalid and
	// nothing is written.
	_, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", PasswordHash: "hash"},
		[]sqlite.GrantPair{{DataCenterID: "dc-unknown", ClientID: "c-acme"}})
	require.Error(t, err)
	assert.True(t, billing.IsClientError(err))

	_, err = s.GetTechnician(ctx, "ft-1")
	assert.True(t, billing.IsNotFound(err))
}

func TestReplaceTechnicianGrants_SwapsWholeSet(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveClient(ctx, sqlite.Client{ID: "c-globex", Name: "Globex", IsActive: true}))
	require.NoError(t, s.LinkClientDataCenter(ctx, "map-2", "c-globex", "dc-1"))

	tech, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", PasswordHash: "hash", Role: "technician", IsActive: true},
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-acme"}})
	require.NoError(t, err)

	tech.Name = "Asha K"
	tech.PasswordHash = "" // keep the stored hash
	require.NoError(t, s.ReplaceTechnicianGrants(ctx, tech,
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-globex"}}))

	ok, err := s.HasGrant(ctx, "ft-1", "dc-1", "c-acme")
	require.NoError(t, err)
	assert.False(t, ok, "old grant must be gone")

	ok, err = s.HasGrant(ctx, "ft-1", "dc-1", "c-globex")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetTechnician(ctx, "ft-1")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", got.Name)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestReplaceTechnicianGrants_MissingTechnicianRollsBack(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	_, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", PasswordHash: "hash", IsActive: true},
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-acme"}})
	require.NoError(t, err)

	err = s.ReplaceTechnicianGrants(ctx,
		sqlite.Technician{ID: "ft-ghost", Name: "Ghost"},
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-acme"}})
	assert.True(t, billing.IsNotFound(err))

	// ft-1's grants are untouched by the failed mutation.
	ok, err := s.HasGrant(ctx, "ft-1", "dc-1", "c-acme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListTechnicians_FilterAndSearch(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	_, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", CountryID: "nl", PasswordHash: "h", IsActive: true},
		[]sqlite.GrantPair{{DataCenterID: "dc-1", ClientID: "c-acme"}})
	require.NoError(t, err)
	_, err = s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-2", Name: "Borja", CountryID: "pt", PasswordHash: "h", IsActive: true},
		nil)
	require.NoError(t, err)

	techs, total, err := s.ListTechnicians(ctx, sqlite.TechnicianFilter{ClientID: "c-acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, techs, 1)
	assert.Equal(t, "ft-1", techs[0].ID)

	techs, total, err = s.ListTechnicians(ctx, sqlite.TechnicianFilter{Search: "borja"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "ft-2", techs[0].ID)
}

func TestListTechnicians_CompanyFilter(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-1", Name: "NorthGrid", IsActive: true}))
	_, err := s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-1", Name: "Asha", CompanyID: "co-1", PasswordHash: "h", IsActive: true},
		nil)
	require.NoError(t, err)
	_, err = s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-2", Name: "Borja", PasswordHash: "h", IsActive: true},
		nil)
	require.NoError(t, err)

	techs, total, err := s.ListTechnicians(ctx, sqlite.TechnicianFilter{CompanyID: "co-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, techs, 1)
	assert.Equal(t, "ft-1", techs[0].ID)
	assert.Equal(t, "co-1", techs[0].CompanyID)
}

func TestListCoTechnicians_SameCompanyActiveOnly(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-1", Name: "NorthGrid", IsActive: true}))
	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-2", Name: "SouthGrid", IsActive: true}))

	for _, tech := range []sqlite.Technician{
		{ID: "ft-1", Name: "Asha", CompanyID: "co-1", PasswordHash: "h", IsActive: true},
		{ID: "ft-2", Name: "Borja", CompanyID: "co-1", PasswordHash: "h", IsActive: true},
		{ID: "ft-3", Name: "Chidi", CompanyID: "co-1", PasswordHash: "h", IsActive: false},
		{ID: "ft-4", Name: "Dana", CompanyID: "co-2", PasswordHash: "h", IsActive: true},
	} {
		_, err := s.CreateTechnicianWithGrants(ctx, tech, nil)
		require.NoError(t, err)
	}

	// Same company, excluding the caller and the deactivated colleague.
	colleagues, err := s.ListCoTechnicians(ctx, "ft-1")
	require.NoError(t, err)
	require.Len(t, colleagues, 1)
	assert.Equal(t, "ft-2", colleagues[0].ID)
	assert.Equal(t, "Borja", colleagues[0].Name)

	// A deactivated caller gets nothing, not even its own company's list.
	_, err = s.ListCoTechnicians(ctx, "ft-3")
	assert.True(t, billing.IsNotFound(err))

	// No company, no colleagues.
	_, err = s.CreateTechnicianWithGrants(ctx,
		sqlite.Technician{ID: "ft-5", Name: "Eli", PasswordHash: "h", IsActive: true}, nil)
	require.NoError(t, err)
	_, err = s.ListCoTechnicians(ctx, "ft-5")
	assert.True(t, billing.IsNotFound(err))
}

// =============================================================================
// FT COMPANIES
// =============================================================================

func TestFTCompanies_CRUDAndFilter(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{
		ID: "co-1", Name: "NorthGrid", Address: "Keizersgracht 1",
		Email: "ops@northgrid.example", Phone: "+31-20-555", IsActive: true,
	}))
	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-2", Name: "SouthGrid", IsActive: true}))

	got, err := s.GetFTCompany(ctx, "co-1")
	require.NoError(t, err)
	assert.Equal(t, "NorthGrid", got.Name)
	assert.Equal(t, "Keizersgracht 1", got.Address)

	// Upsert replaces in place.
	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-1", Name: "NorthGrid BV", IsActive: true}))
	companies, total, err := s.ListFTCompanies(ctx, sqlite.CompanyFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, companies, 2)

	// Search matches name case-insensitively.
	companies, total, err = s.ListFTCompanies(ctx, sqlite.CompanyFilter{Search: "northgrid"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "co-1", companies[0].ID)

	_, err = s.GetFTCompany(ctx, "co-ghost")
	assert.True(t, billing.IsNotFound(err))
}

func TestSetFTCompanyActive_FilterRespectsFlag(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-1", Name: "NorthGrid", IsActive: true}))
	require.NoError(t, s.SaveFTCompany(ctx, sqlite.FTCompany{ID: "co-2", Name: "SouthGrid", IsActive: true}))

	require.NoError(t, s.SetFTCompanyActive(ctx, "co-2", false))

	active := true
	companies, total, err := s.ListFTCompanies(ctx, sqlite.CompanyFilter{IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "co-1", companies[0].ID)

	err = s.SetFTCompanyActive(ctx, "co-ghost", true)
	assert.True(t, billing.IsNotFound(err))
}

// =============================================================================
// CLIENT ENGINEERS
// =============================================================================

func TestClientEngineers_CRUDAndClientScope(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveClient(ctx, sqlite.Client{ID: "c-globex", Name: "Globex", IsActive: true}))
	require.NoError(t, s.SaveClientEngineer(ctx, sqlite.ClientEngineer{
		ID: "ce-1", Name: "Farah", Email: "farah@acme.example", ClientID: "c-acme", IsActive: true,
	}))
	require.NoError(t, s.SaveClientEngineer(ctx, sqlite.ClientEngineer{
		ID: "ce-2", Name: "Gustav", ClientID: "c-acme", IsActive: false,
	}))
	require.NoError(t, s.SaveClientEngineer(ctx, sqlite.ClientEngineer{
		ID: "ce-3", Name: "Hana", ClientID: "c-globex", IsActive: true,
	}))

	got, err := s.GetClientEngineer(ctx, "ce-1")
	require.NoError(t, err)
	assert.Equal(t, "Farah", got.Name)
	assert.Equal(t, "c-acme", got.ClientID)

	// Client scope plus the active flag narrows to the picker view.
	active := true
	engineers, total, err := s.ListClientEngineers(ctx, sqlite.EngineerFilter{
		ClientID: "c-acme", IsActive: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, engineers, 1)
	assert.Equal(t, "ce-1", engineers[0].ID)

	engineers, total, err = s.ListClientEngineers(ctx, sqlite.EngineerFilter{Search: "hana"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "ce-3", engineers[0].ID)

	require.NoError(t, s.DeleteClientEngineer(ctx, "ce-2"))
	_, err = s.GetClientEngineer(ctx, "ce-2")
	assert.True(t, billing.IsNotFound(err))

	err = s.DeleteClientEngineer(ctx, "ce-ghost")
	assert.True(t, billing.IsNotFound(err))
}

func TestServiceEntry_ResolvesEngineerAndHelperNames(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveClientEngineer(ctx, sqlite.ClientEngineer{
		ID: "ce-1", Name: "Farah", ClientID: "c-acme", IsActive: true,
	}))
	for _, tech := range []sqlite.Technician{
		{ID: "ft-1", Name: "Asha", PasswordHash: "h", IsActive: true},
		{ID: "ft-2", Name: "Borja", PasswordHash: "h", IsActive: true},
	} {
		_, err := s.CreateTechnicianWithGrants(ctx, tech, nil)
		require.NoError(t, err)
	}

	e := sampleEntry("e1", day("2026-06-01"))
	e.ClientEngineerID = "ce-1"
	e.AdditionalFTCount = 2
	e.AdditionalFTIDs = []string{"ft-2", "ft-gone"}
	require.NoError(t, s.CreateServiceEntry(ctx, e))

	got, err := s.GetServiceEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Farah", got.ClientEngineerName)
	// Names align with the ID slice; an unknown ID degrades to empty.
	assert.Equal(t, []string{"Borja", ""}, got.AdditionalFTNames)

	// A deleted engineer leaves the ID behind with an empty name.
	require.NoError(t, s.DeleteClientEngineer(ctx, "ce-1"))
	got, err = s.GetServiceEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "ce-1", got.ClientEngineerID)
	assert.Equal(t, "", got.ClientEngineerName)
}

// =============================================================================
// DIRECTORY VIEWS
// =============================================================================

func TestDataCentersByIDs_ResolvesLocationNames(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)

	views, err := s.DataCentersByIDs(context.Background(), []string{"dc-1", "dc-missing"})
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "Amsterdam-1", v.Name)
	assert.Equal(t, "Netherlands", v.CountryName)
	assert.Equal(t, "Amsterdam", v.CityName)
	assert.True(t, v.IsActive)
}

func TestSetDataCenterActive(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	require.NoError(t, s.SetDataCenterActive(ctx, "dc-1", false))

	views, err := s.DataCentersByIDs(ctx, []string{"dc-1"})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.False(t, views[0].IsActive)

	err = s.SetDataCenterActive(ctx, "dc-ghost", true)
	assert.True(t, billing.IsNotFound(err))
}

func TestClientServesDataCenter(t *testing.T) {
	s := newStore(t)
	seedDirectory(t, s)
	ctx := context.Background()

	ok, err := s.ClientServesDataCenter(ctx, "c-acme", "dc-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Linking twice is a no-op, unlinking removes the pair.
	require.NoError(t, s.LinkClientDataCenter(ctx, "map-dup", "c-acme", "dc-1"))
	require.NoError(t, s.UnlinkClientDataCenter(ctx, "c-acme", "dc-1"))

	ok, err = s.ClientServesDataCenter(ctx, "c-acme", "dc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
