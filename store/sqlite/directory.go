/*
directory.go - Location reference data, clients, data centers, grants

PURPOSE:
  CRUD for the directory entities the admin surface manages, plus the
  read methods the access filter depends on (access.DirectoryStore).
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/billing-engine/access"
	"github.com/fieldserve/billing-engine/billing"
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// Country is a location reference record.
type Country struct {
	ID        string
	Name      string
	ISOCode   string
	Currency  string
	IsActive  bool
	CreatedAt time.Time
}

// City is a location reference record scoped to a country.
type City struct {
	ID        string
	Name      string
	CountryID string
	CreatedAt time.Time
}

// Client is a billable customer.
type Client struct {
	ID           string
	Name         string
	CountryID    string
	CityID       string
	ContactName  string
	ContactEmail string
	ContactPhone string
	IsActive     bool
	CreatedAt    time.Time
}

// DataCenter is a serviceable site. CommuteMinutes is zero for sites
// within city limits.
type DataCenter struct {
	ID             string
	Name           string
	CountryID      string
	CityID         string
	Address        string
	LocationType   string // within_city_limits | outside_city_limits
	CommuteMinutes int
	IsActive       bool
	CreatedAt      time.Time
}

// =============================================================================
// COUNTRIES
// =============================================================================

// SaveCountry inserts or updates a country.
func (s *Store) SaveCountry(ctx context.Context, c Country) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO countries (id, name, iso_code, currency, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			iso_code = excluded.iso_code,
			currency = excluded.currency,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.ISOCode, c.Currency, c.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListCountries returns all countries ordered by name.
func (s *Store) ListCountries(ctx context.Context) ([]Country, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, iso_code, currency, is_active, created_at FROM countries ORDER BY name",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var countries []Country
	for rows.Next() {
		var c Country
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.ISOCode, &c.Currency, &c.IsActive, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// =============================================================================
// CITIES
// =============================================================================

// SaveCity inserts or updates a city.
func (s *Store) SaveCity(ctx context.Context, c City) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO cities (id, name, country_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country_id = excluded.country_id
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.CountryID, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListCities returns cities, optionally limited to one country.
func (s *Store) ListCities(ctx context.Context, countryID string) ([]City, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, name, country_id, created_at FROM cities"
	var args []any
	if countryID != "" {
		query += " WHERE country_id = ?"
		args = append(args, countryID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cities []City
	for rows.Next() {
		var c City
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.CountryID, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// =============================================================================
// CLIENTS
// =============================================================================

// SaveClient inserts or updates a client.
func (s *Store) SaveClient(ctx context.Context, c Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO clients
		(id, name, country_id, city_id, contact_name, contact_email, contact_phone, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country_id = excluded.country_id,
			city_id = excluded.city_id,
			contact_name = excluded.contact_name,
			contact_email = excluded.contact_email,
			contact_phone = excluded.contact_phone,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, c.CountryID, c.CityID,
		c.ContactName, c.ContactEmail, c.ContactPhone, c.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetClient retrieves a client by ID.
func (s *Store) GetClient(ctx context.Context, id string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c Client
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, country_id, city_id, contact_name, contact_email, contact_phone, is_active, created_at
		 FROM clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.CountryID, &c.CityID,
		&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.IsActive, &createdAt)

	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "client", ID: id}
	}
	if err != nil {
		return nil, err
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// ListClients returns all clients ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, country_id, city_id, contact_name, contact_email, contact_phone, is_active, created_at
		 FROM clients ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.CountryID, &c.CityID,
			&c.ContactName, &c.ContactEmail, &c.ContactPhone, &c.IsActive, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// SetClientActive toggles a client's active flag.
func (s *Store) SetClientActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE clients SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "client", id)
}

// =============================================================================
// DATA CENTERS
// =============================================================================

// SaveDataCenter inserts or updates a data center.
func (s *Store) SaveDataCenter(ctx context.Context, dc DataCenter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO data_centers
		(id, name, country_id, city_id, address, location_type, commute_minutes, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			country_id = excluded.country_id,
			city_id = excluded.city_id,
			address = excluded.address,
			location_type = excluded.location_type,
			commute_minutes = excluded.commute_minutes,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		dc.ID, dc.Name, dc.CountryID, dc.CityID, dc.Address,
		dc.LocationType, dc.CommuteMinutes, dc.IsActive,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetDataCenter retrieves a data center by ID.
func (s *Store) GetDataCenter(ctx context.Context, id string) (*DataCenter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var dc DataCenter
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, country_id, city_id, address, location_type, commute_minutes, is_active, created_at
		 FROM data_centers WHERE id = ?`, id,
	).Scan(&dc.ID, &dc.Name, &dc.CountryID, &dc.CityID, &dc.Address,
		&dc.LocationType, &dc.CommuteMinutes, &dc.IsActive, &createdAt)

	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "data center", ID: id}
	}
	if err != nil {
		return nil, err
	}

	dc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &dc, nil
}

// ListDataCenters returns all data centers ordered by name.
func (s *Store) ListDataCenters(ctx context.Context) ([]DataCenter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, country_id, city_id, address, location_type, commute_minutes, is_active, created_at
		 FROM data_centers ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dcs []DataCenter
	for rows.Next() {
		var dc DataCenter
		var createdAt string
		if err := rows.Scan(&dc.ID, &dc.Name, &dc.CountryID, &dc.CityID, &dc.Address,
			&dc.LocationType, &dc.CommuteMinutes, &dc.IsActive, &createdAt); err != nil {
			return nil, err
		}
		dc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		dcs = append(dcs, dc)
	}
	return dcs, rows.Err()
}

// SetDataCenterActive toggles a data center's active flag.
func (s *Store) SetDataCenterActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE data_centers SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "data center", id)
}

// =============================================================================
// CLIENT <-> DATA CENTER MAPPING
// =============================================================================

// LinkClientDataCenter records that a client operates in a data center.
// Linking an already-linked pair is a no-op.
func (s *Store) LinkClientDataCenter(ctx context.Context, id, clientID, dataCenterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO client_data_centers (id, client_id, data_center_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id, data_center_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		id, clientID, dataCenterID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// UnlinkClientDataCenter removes a client/data-center mapping.
func (s *Store) UnlinkClientDataCenter(ctx context.Context, clientID, dataCenterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"DELETE FROM client_data_centers WHERE client_id = ? AND data_center_id = ?",
		clientID, dataCenterID)
	return err
}

// ClientServesDataCenter reports whether the mapping exists. Grants are
// validated against this before being written.
func (s *Store) ClientServesDataCenter(ctx context.Context, clientID, dataCenterID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM client_data_centers WHERE client_id = ? AND data_center_id = ?",
		clientID, dataCenterID,
	).Scan(&count)
	return count > 0, err
}

// ListClientDataCenters returns the data-center IDs a client operates in.
func (s *Store) ListClientDataCenters(ctx context.Context, clientID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT data_center_id FROM client_data_centers WHERE client_id = ? ORDER BY data_center_id",
		clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// access.DirectoryStore
// =============================================================================

// ListGrants returns all grants held by a technician.
func (s *Store) ListGrants(ctx context.Context, ftID string) ([]access.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ft_id, data_center_id, client_id, created_at FROM grants WHERE ft_id = ?",
		ftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []access.Grant
	for rows.Next() {
		var g access.Grant
		var createdAt string
		if err := rows.Scan(&g.ID, &g.FTID, &g.DataCenterID, &g.ClientID, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// HasGrant reports whether the exact triple exists.
func (s *Store) HasGrant(ctx context.Context, ftID, dataCenterID, clientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM grants WHERE ft_id = ? AND data_center_id = ? AND client_id = ?",
		ftID, dataCenterID, clientID,
	).Scan(&count)
	return count > 0, err
}

// DataCentersByIDs resolves data centers with their location names,
// active or not; the access filter does its own activity filtering.
func (s *Store) DataCentersByIDs(ctx context.Context, ids []string) ([]access.DataCenterView, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT dc.id, dc.name, dc.country_id, COALESCE(co.name, ''),
		       dc.city_id, COALESCE(ci.name, ''), dc.is_active
		FROM data_centers dc
		LEFT JOIN countries co ON co.id = dc.country_id
		LEFT JOIN cities ci ON ci.id = dc.city_id
		WHERE dc.id IN (%s)
	`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []access.DataCenterView
	for rows.Next() {
		var v access.DataCenterView
		if err := rows.Scan(&v.ID, &v.Name, &v.CountryID, &v.CountryName,
			&v.CityID, &v.CityName, &v.IsActive); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ClientsByIDs resolves clients, active or not.
func (s *Store) ClientsByIDs(ctx context.Context, ids []string) ([]access.ClientView, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf(
		"SELECT id, name, is_active FROM clients WHERE id IN (%s)",
		placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []access.ClientView
	for rows.Next() {
		var v access.ClientView
		if err := rows.Scan(&v.ID, &v.Name, &v.IsActive); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// requireAffected converts a zero-row UPDATE into a NotFoundError.
func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &billing.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
