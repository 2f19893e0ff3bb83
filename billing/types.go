/*
Package billing provides the core billing and reporting computation engine.

PURPOSE:
  This package contains the pure, storage-agnostic logic that reconstructs
  billable hours and cost from raw shift timestamps, technician multipliers,
  and per-(client, country) pricing, and aggregates the results for
  dashboards and invoicing.

KEY CONCEPTS IN THIS FILE (types.go):
  - ServiceEntry: The atomic billable unit (one on-site visit)
  - Rate: Fixed-shape pricing record keyed by (client, country)
  - RateKey/RateTable: Batched, deduplicated pricing lookups
  - ShiftSplit: Standard vs. off-standard hours of a single shift
  - EntryCost: Fully priced visit (costs + weighted hours)

DESIGN PRINCIPLES:
  1. Purity: Every function here is deterministic over its inputs.
     Fetching entries and rates is the caller's job.
  2. Precision: Money uses decimal.Decimal; hours stay float64 and are
     compared with tolerance.
  3. Fixed shapes: Rate and ServiceEntry are value types validated at
     construction, never open-ended maps.

SEE ALSO:
  - shift.go: Time-window splitting with overnight wraparound
  - cost.go: Per-entry cost calculation
  - aggregate.go: Grouping and summary shapes
  - errors.go: Error taxonomy
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORK TYPE
// =============================================================================

type WorkType string

const (
	WorkProject     WorkType = "Project"
	WorkMaintenance WorkType = "Maintenance"
	WorkOthers      WorkType = "Others"
)

// ValidWorkType reports whether wt is one of the known work types.
func ValidWorkType(wt WorkType) bool {
	switch wt {
	case WorkProject, WorkMaintenance, WorkOthers:
		return true
	}
	return false
}

// =============================================================================
// SERVICE ENTRY - The atomic billable unit
// =============================================================================

// ServiceEntry is one on-site visit logged by a field technician.
//
// Country and city are denormalized from the data center at creation time
// and never re-derived at report time. EntryTime/EndTime are wall-clock
// "HH:MM" strings; EndTime numerically before EntryTime signals an
// overnight shift. DurationHours is the raw, multiplier-free duration
// stored at creation; summary metrics sum it as-is.
type ServiceEntry struct {
	ID   string
	FTID string

	Date time.Time // calendar day of the visit

	CountryID string
	CityID    string

	DataCenterID string
	ClientID     string

	WorkType    WorkType
	ReferenceNo string

	AdditionalFTCount int
	AdditionalFTIDs   []string

	ClientEngineerID string

	EntryTime     string // "09:00"
	EndTime       string // "13:30", may be < EntryTime (overnight)
	DurationHours float64

	TotalBillsExpense decimal.Decimal
	Bills             []string // receipt file references, opaque here

	WorkDescription string
	Status          string // reserved for a future approval workflow

	CreatedAt time.Time

	// Resolved reference names and data-center commute time, populated by
	// the store on read. Zero values mean the reference was not resolved.
	// AdditionalFTNames aligns index-for-index with AdditionalFTIDs.
	TechnicianName       string
	ClientName           string
	DataCenterName       string
	CountryName          string
	CityName             string
	ClientEngineerName   string
	AdditionalFTNames    []string
	CommuteTimeInMinutes int
}

// Validate checks the fields a technician submits. It does not verify that
// the referenced entities exist; that is the store's concern.
func (e *ServiceEntry) Validate() error {
	switch {
	case e.FTID == "":
		return &FieldError{Field: "ftId", Message: "technician is required"}
	case e.DataCenterID == "":
		return &FieldError{Field: "dataCenterId", Message: "data center is required"}
	case e.ClientID == "":
		return &FieldError{Field: "clientId", Message: "client is required"}
	case e.Date.IsZero():
		return &FieldError{Field: "date", Message: "visit date is required"}
	case !ValidWorkType(e.WorkType):
		return &FieldError{Field: "workType", Message: "must be Project, Maintenance or Others"}
	case e.AdditionalFTCount < 0:
		return &FieldError{Field: "additionalFTCount", Message: "must not be negative"}
	case e.TotalBillsExpense.IsNegative():
		return &FieldError{Field: "totalBillsExpense", Message: "must not be negative"}
	}

	hours, err := DurationHours(e.EntryTime, e.EndTime)
	if err != nil {
		return err
	}
	if hours <= 0 {
		return &FieldError{Field: "endTime", Message: "shift duration must be positive"}
	}
	return nil
}

// =============================================================================
// RATE - Pricing record keyed by (client, country)
// =============================================================================

// RateKey identifies the pricing applicable to an entry. At most one active
// Rate exists per key.
type RateKey struct {
	ClientID  string
	CountryID string
}

// Rate holds the three hourly rates for a (client, country) pair.
// All components are strictly positive; construct via NewRate.
type Rate struct {
	ID        string
	ClientID  string
	CountryID string

	StandardHourlyRate    decimal.Decimal
	OffStandardHourlyRate decimal.Decimal
	CommuteHourlyRate     decimal.Decimal
}

// NewRate validates and builds a Rate.
func NewRate(id, clientID, countryID string, standard, offStandard, commute decimal.Decimal) (Rate, error) {
	switch {
	case clientID == "":
		return Rate{}, &FieldError{Field: "clientId", Message: "client is required"}
	case countryID == "":
		return Rate{}, &FieldError{Field: "countryId", Message: "country is required"}
	case !standard.IsPositive():
		return Rate{}, &FieldError{Field: "standardHourlyRate", Message: "must be positive"}
	case !offStandard.IsPositive():
		return Rate{}, &FieldError{Field: "offStandardHourlyRate", Message: "must be positive"}
	case !commute.IsPositive():
		return Rate{}, &FieldError{Field: "commuteHourlyRate", Message: "must be positive"}
	}
	return Rate{
		ID:                    id,
		ClientID:              clientID,
		CountryID:             countryID,
		StandardHourlyRate:    standard,
		OffStandardHourlyRate: offStandard,
		CommuteHourlyRate:     commute,
	}, nil
}

// Key returns the lookup key of this rate.
func (r Rate) Key() RateKey { return RateKey{ClientID: r.ClientID, CountryID: r.CountryID} }

// RateTable maps rate keys to rates for one report batch.
type RateTable map[RateKey]Rate

// NewRateTable indexes a batch of rates by key. Later duplicates win, which
// matches the replace-in-place semantics of the rate store.
func NewRateTable(rates []Rate) RateTable {
	t := make(RateTable, len(rates))
	for _, r := range rates {
		t[r.Key()] = r
	}
	return t
}

// Lookup returns the rate for a (client, country) pair, if present.
func (t RateTable) Lookup(clientID, countryID string) (Rate, bool) {
	r, ok := t[RateKey{ClientID: clientID, CountryID: countryID}]
	return r, ok
}

// RateKeys collects the deduplicated pricing keys of a batch of entries so
// the store can fetch all applicable rates in a single query. Entries with a
// missing client or country reference contribute no key.
func RateKeys(entries []ServiceEntry) []RateKey {
	seen := make(map[RateKey]bool, len(entries))
	var keys []RateKey
	for _, e := range entries {
		if e.ClientID == "" || e.CountryID == "" {
			continue
		}
		k := RateKey{ClientID: e.ClientID, CountryID: e.CountryID}
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// =============================================================================
// MISSING-RATE POLICY
// =============================================================================

// MissingRatePolicy decides what happens when an entry's (client, country)
// pair has no rate record. The historical behavior is to zero-fill the cost
// and still report hours; Fail makes the whole report error out instead.
type MissingRatePolicy int

const (
	// MissingRateZeroFill treats all three rate components as zero. Hours
	// are still reported; cost and hours are independent signals.
	MissingRateZeroFill MissingRatePolicy = iota

	// MissingRateFail aborts the computation with a RateNotFoundError.
	MissingRateFail
)

// ParseMissingRatePolicy maps a config string to a policy.
func ParseMissingRatePolicy(s string) MissingRatePolicy {
	if s == "fail" {
		return MissingRateFail
	}
	return MissingRateZeroFill
}

// =============================================================================
// DERIVED VALUES - never persisted, always recomputed
// =============================================================================

// ShiftSplit is the standard/off-standard decomposition of one shift,
// in hours, before any multiplier is applied.
type ShiftSplit struct {
	StandardHours    float64
	OffStandardHours float64
}

// Total returns the raw shift duration in hours.
func (s ShiftSplit) Total() float64 { return s.StandardHours + s.OffStandardHours }

// EntryCost is a fully priced visit. Costs carry the technician multiplier;
// TotalHours is (standard+offStandard)*multiplier and excludes commute time,
// which contributes to cost only.
type EntryCost struct {
	StandardCost    decimal.Decimal
	OffStandardCost decimal.Decimal
	CommuteCost     decimal.Decimal
	TotalCost       decimal.Decimal
	TotalHours      float64
}
