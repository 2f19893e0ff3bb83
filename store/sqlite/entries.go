/*
entries.go - Service-entry log and rate persistence

PURPOSE:
  The write side of the visit log (create, owner-scoped update) and the
  read side the reports run over: filtered listing with resolved
  reference names joined in, paging with a total count, and the batched
  rate fetch. Reference names and the data center's commute minutes are
  resolved at read time via LEFT JOINs so a deleted reference degrades
  to an empty name instead of breaking the report.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// =============================================================================
// SERVICE ENTRIES - writes
// =============================================================================

// CreateServiceEntry inserts a validated entry.
func (s *Store) CreateServiceEntry(ctx context.Context, e billing.ServiceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertEntry(ctx, e)
}

func (s *Store) insertEntry(ctx context.Context, e billing.ServiceEntry) error {
	additionalIDs, _ := json.Marshal(e.AdditionalFTIDs)
	bills, _ := json.Marshal(e.Bills)

	query := `
		INSERT INTO service_entries
		(id, ft_id, date, country_id, city_id, data_center_id, client_id,
		 work_type, reference_no, additional_ft_count, additional_ft_ids_json,
		 client_engineer_id, entry_time, end_time, duration_hours,
		 total_bills_expense, bills_json, work_description, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.FTID, e.Date.Format(dateLayout),
		e.CountryID, e.CityID, e.DataCenterID, e.ClientID,
		string(e.WorkType), e.ReferenceNo,
		e.AdditionalFTCount, string(additionalIDs),
		e.ClientEngineerID, e.EntryTime, e.EndTime, e.DurationHours,
		e.TotalBillsExpense.String(), string(bills),
		e.WorkDescription, e.Status,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert service entry: %w", err)
	}
	return nil
}

// UpdateOwnedServiceEntry replaces the mutable fields of an entry the
// technician owns. Updating someone else's entry surfaces as not found.
func (s *Store) UpdateOwnedServiceEntry(ctx context.Context, e billing.ServiceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	additionalIDs, _ := json.Marshal(e.AdditionalFTIDs)
	bills, _ := json.Marshal(e.Bills)

	query := `
		UPDATE service_entries SET
			date = ?, country_id = ?, city_id = ?, data_center_id = ?, client_id = ?,
			work_type = ?, reference_no = ?, additional_ft_count = ?,
			additional_ft_ids_json = ?, client_engineer_id = ?,
			entry_time = ?, end_time = ?, duration_hours = ?,
			total_bills_expense = ?, bills_json = ?, work_description = ?
		WHERE id = ? AND ft_id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		e.Date.Format(dateLayout), e.CountryID, e.CityID, e.DataCenterID, e.ClientID,
		string(e.WorkType), e.ReferenceNo, e.AdditionalFTCount,
		string(additionalIDs), e.ClientEngineerID,
		e.EntryTime, e.EndTime, e.DurationHours,
		e.TotalBillsExpense.String(), string(bills), e.WorkDescription,
		e.ID, e.FTID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service entry: %w", err)
	}
	return requireAffected(res, "entry", e.ID)
}

// =============================================================================
// SERVICE ENTRIES - reads (reports.EntryStore)
// =============================================================================

const entryColumns = `
	e.id, e.ft_id, e.date, e.country_id, e.city_id, e.data_center_id, e.client_id,
	e.work_type, e.reference_no, e.additional_ft_count, e.additional_ft_ids_json,
	e.client_engineer_id, e.entry_time, e.end_time, e.duration_hours,
	e.total_bills_expense, e.bills_json, e.work_description, e.status, e.created_at,
	COALESCE(t.name, ''), COALESCE(c.name, ''), COALESCE(dc.name, ''),
	COALESCE(co.name, ''), COALESCE(ci.name, ''), COALESCE(ce.name, ''),
	COALESCE(dc.commute_minutes, 0)
`

const entryJoins = `
	FROM service_entries e
	LEFT JOIN technicians t ON t.id = e.ft_id
	LEFT JOIN clients c ON c.id = e.client_id
	LEFT JOIN data_centers dc ON dc.id = e.data_center_id
	LEFT JOIN countries co ON co.id = e.country_id
	LEFT JOIN cities ci ON ci.id = e.city_id
	LEFT JOIN client_engineers ce ON ce.id = e.client_engineer_id
`

// GetServiceEntry retrieves one entry with resolved names.
func (s *Store) GetServiceEntry(ctx context.Context, id string) (*billing.ServiceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := s.queryEntries(ctx, "SELECT "+entryColumns+entryJoins+" WHERE e.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &billing.NotFoundError{Kind: "entry", ID: id}
	}
	return &entries[0], nil
}

// ListEntries returns every entry matching the filter, newest visit
// date first.
func (s *Store) ListEntries(ctx context.Context, f reports.EntryFilter) ([]billing.ServiceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := entryWhere(f)
	query := "SELECT " + entryColumns + entryJoins + where +
		" ORDER BY e.date DESC, e.created_at DESC"

	return s.queryEntries(ctx, query, args...)
}

// ListEntriesPage returns one page plus the total match count.
func (s *Store) ListEntriesPage(ctx context.Context, f reports.EntryFilter, p reports.Page) ([]billing.ServiceEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := entryWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) "+entryJoins+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + entryColumns + entryJoins + where +
		" ORDER BY e.date DESC, e.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, p.Size, (p.Number-1)*p.Size)

	entries, err := s.queryEntries(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func entryWhere(f reports.EntryFilter) (string, []any) {
	where := " WHERE 1=1"
	var args []any

	if !f.From.IsZero() {
		where += " AND e.date >= ?"
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		where += " AND e.date <= ?"
		args = append(args, f.To.Format(dateLayout))
	}
	if f.FTID != "" {
		where += " AND e.ft_id = ?"
		args = append(args, f.FTID)
	}
	if f.ClientID != "" {
		where += " AND e.client_id = ?"
		args = append(args, f.ClientID)
	}
	if f.DataCenterID != "" {
		where += " AND e.data_center_id = ?"
		args = append(args, f.DataCenterID)
	}
	if f.Status != "" {
		where += " AND e.status = ?"
		args = append(args, f.Status)
	}
	if f.Search != "" {
		where += ` AND (t.name LIKE ? COLLATE NOCASE
			OR c.name LIKE ? COLLATE NOCASE
			OR dc.name LIKE ? COLLATE NOCASE
			OR e.reference_no LIKE ? COLLATE NOCASE)`
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	return where, args
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]billing.ServiceEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query service entries: %w", err)
	}
	defer rows.Close()

	var entries []billing.ServiceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.resolveAdditionalNames(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// resolveAdditionalNames fills AdditionalFTNames for a batch in one
// query, aligned index-for-index with AdditionalFTIDs. An unknown ID
// degrades to an empty name.
func (s *Store) resolveAdditionalNames(ctx context.Context, entries []billing.ServiceEntry) error {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range entries {
		for _, id := range e.AdditionalFTIDs {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf("SELECT id, name FROM technicians WHERE id IN (%s)", placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return fmt.Errorf("failed to resolve additional technicians: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string, len(ids))
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range entries {
		if len(entries[i].AdditionalFTIDs) == 0 {
			continue
		}
		resolved := make([]string, len(entries[i].AdditionalFTIDs))
		for j, id := range entries[i].AdditionalFTIDs {
			resolved[j] = names[id]
		}
		entries[i].AdditionalFTNames = resolved
	}
	return nil
}

func scanEntry(rows *sql.Rows) (billing.ServiceEntry, error) {
	var (
		e                 billing.ServiceEntry
		date              string
		workType          string
		additionalIDsJSON string
		expense           string
		billsJSON         string
		createdAt         string
	)

	err := rows.Scan(
		&e.ID, &e.FTID, &date, &e.CountryID, &e.CityID, &e.DataCenterID, &e.ClientID,
		&workType, &e.ReferenceNo, &e.AdditionalFTCount, &additionalIDsJSON,
		&e.ClientEngineerID, &e.EntryTime, &e.EndTime, &e.DurationHours,
		&expense, &billsJSON, &e.WorkDescription, &e.Status, &createdAt,
		&e.TechnicianName, &e.ClientName, &e.DataCenterName,
		&e.CountryName, &e.CityName, &e.ClientEngineerName, &e.CommuteTimeInMinutes,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan service entry: %w", err)
	}

	e.WorkType = billing.WorkType(workType)
	e.Date, _ = time.Parse(dateLayout, date)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.TotalBillsExpense, _ = decimal.NewFromString(expense)
	json.Unmarshal([]byte(additionalIDsJSON), &e.AdditionalFTIDs)
	json.Unmarshal([]byte(billsJSON), &e.Bills)

	return e, nil
}

// =============================================================================
// RATES
// =============================================================================

// SaveRate inserts or replaces the rate for its (client, country) pair.
func (s *Store) SaveRate(ctx context.Context, r billing.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rates (id, client_id, country_id, standard_rate, off_standard_rate, commute_rate, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, country_id) DO UPDATE SET
			standard_rate = excluded.standard_rate,
			off_standard_rate = excluded.off_standard_rate,
			commute_rate = excluded.commute_rate
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.ClientID, r.CountryID,
		r.StandardHourlyRate.String(),
		r.OffStandardHourlyRate.String(),
		r.CommuteHourlyRate.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// DeleteRate removes a rate by ID.
func (s *Store) DeleteRate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM rates WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, "rate", id)
}

// ListRates fetches the rates for a deduplicated key batch in a single
// query (reports.RateStore).
func (s *Store) ListRates(ctx context.Context, keys []billing.RateKey) ([]billing.Rate, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conds := make([]string, len(keys))
	args := make([]any, 0, 2*len(keys))
	for i, k := range keys {
		conds[i] = "(client_id = ? AND country_id = ?)"
		args = append(args, k.ClientID, k.CountryID)
	}

	query := `SELECT id, client_id, country_id, standard_rate, off_standard_rate, commute_rate
		FROM rates WHERE ` + strings.Join(conds, " OR ")

	return s.queryRates(ctx, query, args...)
}

// ListRatesFiltered returns a paginated rate listing for the admin
// surface, optionally narrowed by client and/or country.
func (s *Store) ListRatesFiltered(ctx context.Context, clientID, countryID string, page, pageSize int) ([]billing.Rate, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := " WHERE 1=1"
	var args []any
	if clientID != "" {
		where += " AND client_id = ?"
		args = append(args, clientID)
	}
	if countryID != "" {
		where += " AND country_id = ?"
		args = append(args, countryID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rates"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, client_id, country_id, standard_rate, off_standard_rate, commute_rate
		FROM rates` + where + " ORDER BY client_id, country_id"
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rates, err := s.queryRates(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return rates, total, nil
}

func (s *Store) queryRates(ctx context.Context, query string, args ...any) ([]billing.Rate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []billing.Rate
	for rows.Next() {
		var r billing.Rate
		var standard, offStandard, commute string
		if err := rows.Scan(&r.ID, &r.ClientID, &r.CountryID, &standard, &offStandard, &commute); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		r.StandardHourlyRate, _ = decimal.NewFromString(standard)
		r.OffStandardHourlyRate, _ = decimal.NewFromString(offStandard)
		r.CommuteHourlyRate, _ = decimal.NewFromString(commute)
		rates = append(rates, r)
	}
	return rates, rows.Err()
}
