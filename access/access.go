/*
Package access implements the permission filter for field technicians.

PURPOSE:
  A technician may submit service entries only for (data center, client)
  pairs they hold a grant for, and their browsable views (data centers,
  countries, cities) are derived from those grants.

TWO SIDES, TWO RULES:
  Creation side: checked against the literal stored grant set. A grant on
  a deactivated data center still authorizes entry creation; the grant
  row is authoritative.

  Browse side: derived, filtered views. Grants are resolved to data
  centers, the data centers filtered to active ones, and countries/cities
  derived from that filtered set - never from the raw grant list, since a
  data center may have been deactivated after the grant was issued.
  Grants referencing an inactive client or data center contribute no
  visible options even though the grant row still exists.

SEE ALSO:
  - store/sqlite: the DirectoryStore implementation
  - api: entry-creation flow consuming IsPermitted
*/
package access

import (
	"context"
	"sort"
	"time"

	"github.com/fieldserve/billing-engine/billing"
)

// =============================================================================
// TYPES
// =============================================================================

// Grant authorizes one technician to report work for one
// (data center, client) pair.
type Grant struct {
	ID           string
	FTID         string
	DataCenterID string
	ClientID     string
	CreatedAt    time.Time
}

// DataCenterView is the slice of a data center the filter needs.
type DataCenterView struct {
	ID          string
	Name        string
	CountryID   string
	CountryName string
	CityID      string
	CityName    string
	IsActive    bool
}

// ClientView is the slice of a client the filter needs.
type ClientView struct {
	ID       string
	Name     string
	IsActive bool
}

// PermittedDataCenter is one browsable data center with the active
// clients the technician may report against there.
type PermittedDataCenter struct {
	ID          string
	Name        string
	CountryID   string
	CountryName string
	CityID      string
	CityName    string
	Clients     []ClientView
}

// LocationRef is a country or city option in a technician's filter views.
type LocationRef struct {
	ID   string
	Name string
}

// LocationFilter narrows the browsable data-center view.
type LocationFilter struct {
	CountryID string
	CityID    string
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// DirectoryStore is the data-access surface the filter depends on.
type DirectoryStore interface {
	// ListGrants returns all grants held by a technician.
	ListGrants(ctx context.Context, ftID string) ([]Grant, error)

	// HasGrant reports whether the exact (technician, data center, client)
	// triple exists.
	HasGrant(ctx context.Context, ftID, dataCenterID, clientID string) (bool, error)

	// DataCentersByIDs resolves data centers, active or not.
	DataCentersByIDs(ctx context.Context, ids []string) ([]DataCenterView, error)

	// ClientsByIDs resolves clients, active or not.
	ClientsByIDs(ctx context.Context, ids []string) ([]ClientView, error)
}

// =============================================================================
// FILTER
// =============================================================================

// Filter answers permission questions for the entry-creation flow and
// derives a technician's browsable views. Stateless; safe for concurrent
// use.
type Filter struct {
	Store DirectoryStore
}

func NewFilter(store DirectoryStore) *Filter {
	return &Filter{Store: store}
}

// IsPermitted is the creation-side check: an exact match against the raw
// grant set, active or not.
func (f *Filter) IsPermitted(ctx context.Context, ftID, dataCenterID, clientID string) (bool, error) {
	return f.Store.HasGrant(ctx, ftID, dataCenterID, clientID)
}

// Require returns a PermissionDeniedError when the triple has no grant.
func (f *Filter) Require(ctx context.Context, ftID, dataCenterID, clientID string) error {
	ok, err := f.IsPermitted(ctx, ftID, dataCenterID, clientID)
	if err != nil {
		return err
	}
	if !ok {
		return &billing.PermissionDeniedError{FTID: ftID, DataCenterID: dataCenterID, ClientID: clientID}
	}
	return nil
}

// PermittedDataCenters returns the browse-side view: active data centers
// the technician holds grants for, each carrying its active clients,
// optionally narrowed by country/city.
func (f *Filter) PermittedDataCenters(ctx context.Context, ftID string, loc LocationFilter) ([]PermittedDataCenter, error) {
	grants, err := f.Store.ListGrants(ctx, ftID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return []PermittedDataCenter{}, nil
	}

	dcs, err := f.eligibleDataCenters(ctx, grants, loc)
	if err != nil {
		return nil, err
	}

	clients, err := f.activeClients(ctx, grants)
	if err != nil {
		return nil, err
	}

	// Group active clients under each eligible data center, preserving the
	// grant pairing: a client appears under a DC only if a grant links them.
	byID := make(map[string]*PermittedDataCenter, len(dcs))
	for _, dc := range dcs {
		byID[dc.ID] = &PermittedDataCenter{
			ID:          dc.ID,
			Name:        dc.Name,
			CountryID:   dc.CountryID,
			CountryName: dc.CountryName,
			CityID:      dc.CityID,
			CityName:    dc.CityName,
			Clients:     []ClientView{},
		}
	}

	for _, g := range grants {
		dc, ok := byID[g.DataCenterID]
		if !ok {
			continue // inactive or filtered out
		}
		client, ok := clients[g.ClientID]
		if !ok {
			continue // inactive client contributes no option
		}
		if !containsClient(dc.Clients, client.ID) {
			dc.Clients = append(dc.Clients, client)
		}
	}

	result := make([]PermittedDataCenter, 0, len(byID))
	for _, dc := range byID {
		result = append(result, *dc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// PermittedCountries derives the countries of the technician's active
// permitted data centers.
func (f *Filter) PermittedCountries(ctx context.Context, ftID string) ([]LocationRef, error) {
	grants, err := f.Store.ListGrants(ctx, ftID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return []LocationRef{}, nil
	}

	dcs, err := f.eligibleDataCenters(ctx, grants, LocationFilter{})
	if err != nil {
		return nil, err
	}

	return distinctLocations(dcs, func(dc DataCenterView) LocationRef {
		return LocationRef{ID: dc.CountryID, Name: dc.CountryName}
	}), nil
}

// PermittedCities derives the cities of the technician's active permitted
// data centers, optionally limited to one country.
func (f *Filter) PermittedCities(ctx context.Context, ftID, countryID string) ([]LocationRef, error) {
	grants, err := f.Store.ListGrants(ctx, ftID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return []LocationRef{}, nil
	}

	dcs, err := f.eligibleDataCenters(ctx, grants, LocationFilter{CountryID: countryID})
	if err != nil {
		return nil, err
	}

	return distinctLocations(dcs, func(dc DataCenterView) LocationRef {
		return LocationRef{ID: dc.CityID, Name: dc.CityName}
	}), nil
}

// =============================================================================
// HELPERS
// =============================================================================

// eligibleDataCenters resolves grants to ACTIVE data centers matching the
// location filter.
func (f *Filter) eligibleDataCenters(ctx context.Context, grants []Grant, loc LocationFilter) ([]DataCenterView, error) {
	ids := make([]string, 0, len(grants))
	seen := make(map[string]bool, len(grants))
	for _, g := range grants {
		if !seen[g.DataCenterID] {
			seen[g.DataCenterID] = true
			ids = append(ids, g.DataCenterID)
		}
	}

	dcs, err := f.Store.DataCentersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	eligible := dcs[:0]
	for _, dc := range dcs {
		if !dc.IsActive {
			continue
		}
		if loc.CountryID != "" && dc.CountryID != loc.CountryID {
			continue
		}
		if loc.CityID != "" && dc.CityID != loc.CityID {
			continue
		}
		eligible = append(eligible, dc)
	}
	return eligible, nil
}

// activeClients resolves the grants' clients and keeps the active ones.
func (f *Filter) activeClients(ctx context.Context, grants []Grant) (map[string]ClientView, error) {
	ids := make([]string, 0, len(grants))
	seen := make(map[string]bool, len(grants))
	for _, g := range grants {
		if !seen[g.ClientID] {
			seen[g.ClientID] = true
			ids = append(ids, g.ClientID)
		}
	}

	clients, err := f.Store.ClientsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	active := make(map[string]ClientView, len(clients))
	for _, c := range clients {
		if c.IsActive {
			active[c.ID] = c
		}
	}
	return active, nil
}

func distinctLocations(dcs []DataCenterView, ref func(DataCenterView) LocationRef) []LocationRef {
	seen := make(map[string]bool, len(dcs))
	refs := make([]LocationRef, 0, len(dcs))
	for _, dc := range dcs {
		r := ref(dc)
		if r.ID == "" || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs
}

func containsClient(clients []ClientView, id string) bool {
	for _, c := range clients {
		if c.ID == id {
			return true
		}
	}
	return false
}
