/*
technicians.go - Technician records and atomic permission replacement

PURPOSE:
  Technicians carry a human-readable FT code ("FT001") generated at
  creation, a bcrypt password hash, and a set of permission grants.
  Creating or updating a technician replaces the whole grant set inside
  one SQL transaction: the row and its grants land together or not at
  all. Each grant pair is validated against the client/data-center
  mapping before the transaction begins.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldserve/billing-engine/access"
	"github.com/fieldserve/billing-engine/billing"
	"github.com/google/uuid"
)

// Technician is a field technician record. PasswordHash is a bcrypt
// hash; the plaintext never reaches the store.
type Technician struct {
	ID           string
	Code         string // "FT001"-style, generated at creation
	Name         string
	Mobile       string
	Email        string
	CountryID    string
	CityID       string
	CompanyID    string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// GrantPair is one (data center, client) permission to assign.
type GrantPair struct {
	DataCenterID string
	ClientID     string
}

// =============================================================================
// CODE GENERATION
// =============================================================================

// nextTechnicianCode allocates the next sequential FT code. Caller must
// hold the write lock; the UNIQUE constraint on code backstops races.
func (s *Store) nextTechnicianCode(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (string, error) {
	var maxSeq sql.NullInt64
	err := q.QueryRowContext(ctx,
		"SELECT MAX(CAST(SUBSTR(code, 3) AS INTEGER)) FROM technicians WHERE code LIKE 'FT%'",
	).Scan(&maxSeq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("FT%03d", maxSeq.Int64+1), nil
}

// =============================================================================
// ATOMIC CREATE / UPDATE
// =============================================================================

// CreateTechnicianWithGrants inserts a technician and its grant set
// atomically, generating the FT code. Grant pairs are deduplicated and
// each must exist in the client/data-center mapping.
func (s *Store) CreateTechnicianWithGrants(ctx context.Context, t Technician, grants []GrantPair) (Technician, error) {
	grants = dedupeGrants(grants)
	if err := s.validateGrantPairs(ctx, grants); err != nil {
		return Technician{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		code, err := s.nextTechnicianCode(ctx, tx)
		if err != nil {
			return fmt.Errorf("%w: allocating technician code: %v", billing.ErrConsistency, err)
		}
		t.Code = code

		query := `
			INSERT INTO technicians
			(id, code, name, mobile, email, country_id, city_id, company_id, password_hash, role, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			t.ID, t.Code, t.Name, t.Mobile, t.Email, t.CountryID, t.CityID, t.CompanyID,
			t.PasswordHash, t.Role, t.IsActive,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &billing.FieldError{Field: "id", Message: "technician already exists"}
			}
			return fmt.Errorf("%w: inserting technician: %v", billing.ErrConsistency, err)
		}

		return insertGrants(ctx, tx, t.ID, grants)
	})
	if err != nil {
		return Technician{}, err
	}
	return t, nil
}

// ReplaceTechnicianGrants updates a technician's mutable fields and
// swaps the full grant set in one transaction. An empty PasswordHash
// keeps the stored hash.
func (s *Store) ReplaceTechnicianGrants(ctx context.Context, t Technician, grants []GrantPair) error {
	grants = dedupeGrants(grants)
	if err := s.validateGrantPairs(ctx, grants); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE technicians SET
				name = ?, mobile = ?, email = ?, country_id = ?, city_id = ?, company_id = ?,
				role = ?, is_active = ?,
				password_hash = CASE WHEN ? = '' THEN password_hash ELSE ? END
			WHERE id = ?
		`
		res, err := tx.ExecContext(ctx, query,
			t.Name, t.Mobile, t.Email, t.CountryID, t.CityID, t.CompanyID,
			t.Role, t.IsActive, t.PasswordHash, t.PasswordHash, t.ID,
		)
		if err != nil {
			return fmt.Errorf("%w: updating technician: %v", billing.ErrConsistency, err)
		}
		if err := requireAffected(res, "technician", t.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM grants WHERE ft_id = ?", t.ID); err != nil {
			return fmt.Errorf("%w: clearing grants: %v", billing.ErrConsistency, err)
		}

		return insertGrants(ctx, tx, t.ID, grants)
	})
}

func insertGrants(ctx context.Context, tx *sql.Tx, ftID string, grants []GrantPair) error {
	now := time.Now().UTC().Format(time.RFC3339)
	for _, g := range grants {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO grants (id, ft_id, data_center_id, client_id, created_at) VALUES (?, ?, ?, ?, ?)",
			uuid.NewString(), ftID, g.DataCenterID, g.ClientID, now,
		)
		if err != nil {
			return fmt.Errorf("%w: inserting grant (%s, %s): %v",
				billing.ErrConsistency, g.DataCenterID, g.ClientID, err)
		}
	}
	return nil
}

// validateGrantPairs rejects pairs absent from the client/data-center
// mapping before any write happens.
func (s *Store) validateGrantPairs(ctx context.Context, grants []GrantPair) error {
	for _, g := range grants {
		ok, err := s.ClientServesDataCenter(ctx, g.ClientID, g.DataCenterID)
		if err != nil {
			return err
		}
		if !ok {
			return &billing.FieldError{
				Field:   "permissions",
				Message: fmt.Sprintf("client %s does not operate in data center %s", g.ClientID, g.DataCenterID),
			}
		}
	}
	return nil
}

func dedupeGrants(grants []GrantPair) []GrantPair {
	seen := make(map[GrantPair]bool, len(grants))
	out := grants[:0]
	for _, g := range grants {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

// =============================================================================
// READS
// =============================================================================

// GetTechnician retrieves a technician by ID.
func (s *Store) GetTechnician(ctx context.Context, id string) (*Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getTechnicianBy(ctx, "id", id)
}

// GetTechnicianByCode retrieves a technician by FT code (the login
// identifier).
func (s *Store) GetTechnicianByCode(ctx context.Context, code string) (*Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getTechnicianBy(ctx, "code", code)
}

func (s *Store) getTechnicianBy(ctx context.Context, column, value string) (*Technician, error) {
	var t Technician
	var createdAt string
	query := fmt.Sprintf(`
		SELECT id, code, name, mobile, email, country_id, city_id, company_id, password_hash, role, is_active, created_at
		FROM technicians WHERE %s = ?`, column)

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&t.ID, &t.Code, &t.Name, &t.Mobile, &t.Email, &t.CountryID, &t.CityID, &t.CompanyID,
		&t.PasswordHash, &t.Role, &t.IsActive, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, &billing.NotFoundError{Kind: "technician", ID: value}
	}
	if err != nil {
		return nil, err
	}

	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// TechnicianFilter narrows ListTechnicians. Zero fields are ignored;
// Search matches name, code and email case-insensitively.
type TechnicianFilter struct {
	CountryID    string
	CityID       string
	CompanyID    string
	ClientID     string // technicians holding a grant for this client
	DataCenterID string // technicians holding a grant for this data center
	Search       string

	Page     int
	PageSize int
}

// ListTechnicians returns a filtered, paginated technician listing plus
// the total match count.
func (s *Store) ListTechnicians(ctx context.Context, f TechnicianFilter) ([]Technician, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where := " WHERE 1=1"
	var args []any
	if f.CountryID != "" {
		where += " AND t.country_id = ?"
		args = append(args, f.CountryID)
	}
	if f.CityID != "" {
		where += " AND t.city_id = ?"
		args = append(args, f.CityID)
	}
	if f.CompanyID != "" {
		where += " AND t.company_id = ?"
		args = append(args, f.CompanyID)
	}
	if f.ClientID != "" {
		where += " AND EXISTS (SELECT 1 FROM grants g WHERE g.ft_id = t.id AND g.client_id = ?)"
		args = append(args, f.ClientID)
	}
	if f.DataCenterID != "" {
		where += " AND EXISTS (SELECT 1 FROM grants g WHERE g.ft_id = t.id AND g.data_center_id = ?)"
		args = append(args, f.DataCenterID)
	}
	if f.Search != "" {
		where += " AND (t.name LIKE ? COLLATE NOCASE OR t.code LIKE ? COLLATE NOCASE OR t.email LIKE ? COLLATE NOCASE)"
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM technicians t"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT t.id, t.code, t.name, t.mobile, t.email, t.country_id, t.city_id,
		       t.company_id, t.password_hash, t.role, t.is_active, t.created_at
		FROM technicians t` + where + " ORDER BY t.code"

	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.PageSize, (page-1)*f.PageSize)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var techs []Technician
	for rows.Next() {
		var t Technician
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Mobile, &t.Email,
			&t.CountryID, &t.CityID, &t.CompanyID, &t.PasswordHash, &t.Role, &t.IsActive, &createdAt); err != nil {
			return nil, 0, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		techs = append(techs, t)
	}
	return techs, total, rows.Err()
}

// SetTechnicianActive toggles a technician's active flag.
func (s *Store) SetTechnicianActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE technicians SET is_active = ? WHERE id = ?", active, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "technician", id)
}

// TechnicianGrants resolves a technician's grants for the admin view.
func (s *Store) TechnicianGrants(ctx context.Context, ftID string) ([]access.Grant, error) {
	return s.ListGrants(ctx, ftID)
}

// CoTechnician is the lightweight shape of the same-company listing a
// technician picks additional helpers from.
type CoTechnician struct {
	ID   string
	Code string
	Name string
}

// ListCoTechnicians returns the active technicians sharing the caller's
// company, excluding the caller. A missing or deactivated caller, or one
// with no company, surfaces as not found.
func (s *Store) ListCoTechnicians(ctx context.Context, ftID string) ([]CoTechnician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	caller, err := s.getTechnicianBy(ctx, "id", ftID)
	if err != nil {
		return nil, err
	}
	if !caller.IsActive || caller.CompanyID == "" {
		return nil, &billing.NotFoundError{Kind: "technician", ID: ftID}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, name FROM technicians
		 WHERE company_id = ? AND id != ? AND is_active = TRUE
		 ORDER BY name`,
		caller.CompanyID, ftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var techs []CoTechnician
	for rows.Next() {
		var t CoTechnician
		if err := rows.Scan(&t.ID, &t.Code, &t.Name); err != nil {
			return nil, err
		}
		techs = append(techs, t)
	}
	return techs, rows.Err()
}
