/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Handlers validate; DTOs are pure data carriers. Money fields travel
  as strings to keep decimal precision across the wire.

SEE ALSO:
  - handlers.go, reports.go: Uses these types
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fieldserve/billing-engine/access"
	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
	"github.com/fieldserve/billing-engine/store/sqlite"
)

// =============================================================================
// AUTH
// =============================================================================

// LoginRequest is the technician login body.
type LoginRequest struct {
	TechnicianID string `json:"technicianId"` // FT code, e.g. "FT001"
	Password     string `json:"password"`
}

// AdminLoginRequest is the admin login body.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token.
type LoginResponse struct {
	Token      string         `json:"token"`
	Technician *TechnicianDTO `json:"technician,omitempty"`
}

// =============================================================================
// DIRECTORY
// =============================================================================

// CountryDTO represents a country in API responses.
type CountryDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ISOCode  string `json:"isoCode"`
	Currency string `json:"currency,omitempty"`
	IsActive bool   `json:"isActive"`
}

// CityDTO represents a city.
type CityDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CountryID string `json:"countryId"`
}

// ClientDTO represents a client.
type ClientDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CountryID    string `json:"countryId,omitempty"`
	CityID       string `json:"cityId,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	ContactPhone string `json:"contactPhone,omitempty"`
	IsActive     bool   `json:"isActive"`
}

// DataCenterDTO represents a data center.
type DataCenterDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CountryID      string `json:"countryId"`
	CityID         string `json:"cityId"`
	Address        string `json:"address,omitempty"`
	LocationType   string `json:"locationType"`
	CommuteMinutes int    `json:"commuteTimeInMinutes"`
	IsActive       bool   `json:"isActive"`
}

// FTCompanyDTO represents a company technicians belong to.
type FTCompanyDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	IsActive bool   `json:"isActive"`
}

// ClientEngineerDTO represents a client-side engineer.
type ClientEngineerDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	ClientID string `json:"clientId"`
	IsActive bool   `json:"isActive"`
}

// SetActiveRequest toggles an entity's active flag.
type SetActiveRequest struct {
	IsActive bool `json:"isActive"`
}

// LinkClientDataCenterRequest maps a client into a data center.
type LinkClientDataCenterRequest struct {
	ClientID     string `json:"clientId"`
	DataCenterID string `json:"dataCenterId"`
}

// =============================================================================
// RATES
// =============================================================================

// RateDTO represents a pricing record. Rates are decimal strings.
type RateDTO struct {
	ID                    string `json:"id"`
	ClientID              string `json:"clientId"`
	CountryID             string `json:"countryId"`
	StandardHourlyRate    string `json:"standardHourlyRate"`
	OffStandardHourlyRate string `json:"offStandardHourlyRate"`
	CommuteHourlyRate     string `json:"commuteHourlyRate"`
}

// =============================================================================
// TECHNICIANS
// =============================================================================

// TechnicianDTO represents a technician. The password hash never leaves
// the store through this type.
type TechnicianDTO struct {
	ID        string     `json:"id"`
	Code      string     `json:"technicianId"`
	Name      string     `json:"name"`
	Mobile    string     `json:"mobile,omitempty"`
	Email     string     `json:"email,omitempty"`
	CountryID string     `json:"countryId,omitempty"`
	CityID    string     `json:"cityId,omitempty"`
	CompanyID string     `json:"companyId,omitempty"`
	Role      string     `json:"role"`
	IsActive  bool       `json:"isActive"`
	Grants    []GrantDTO `json:"permissions,omitempty"`
}

// CoTechnicianDTO is one same-company colleague a technician may name
// as an additional helper on an entry.
type CoTechnicianDTO struct {
	ID   string `json:"id"`
	Code string `json:"technicianId"`
	Name string `json:"name"`
}

// GrantDTO is one (data center, client) permission.
type GrantDTO struct {
	DataCenterID string `json:"dataCenterId"`
	ClientID     string `json:"clientId"`
}

// SaveTechnicianRequest creates or updates a technician with its full
// permission set. Password is optional on update (empty keeps current).
type SaveTechnicianRequest struct {
	Name      string     `json:"name"`
	Mobile    string     `json:"mobile"`
	Email     string     `json:"email"`
	CountryID string     `json:"countryId"`
	CityID    string     `json:"cityId"`
	CompanyID string     `json:"companyId"`
	Password  string     `json:"password"`
	IsActive  *bool      `json:"isActive"`
	Grants    []GrantDTO `json:"permissions"`
}

// CreateTechnicianResponse returns the generated code and password.
type CreateTechnicianResponse struct {
	Technician TechnicianDTO `json:"technician"`
	Password   string        `json:"password,omitempty"` // only when generated
}

// =============================================================================
// SERVICE ENTRIES
// =============================================================================

// ServiceEntryDTO represents one logged visit with resolved names.
type ServiceEntryDTO struct {
	ID                   string   `json:"id"`
	FTID                 string   `json:"ftId"`
	TechnicianName       string   `json:"technicianName,omitempty"`
	Date                 string   `json:"date"`
	CountryID            string   `json:"countryId"`
	CountryName          string   `json:"countryName,omitempty"`
	CityID               string   `json:"cityId"`
	CityName             string   `json:"cityName,omitempty"`
	DataCenterID         string   `json:"dataCenterId"`
	DataCenterName       string   `json:"dataCenterName,omitempty"`
	ClientID             string   `json:"clientId"`
	ClientName           string   `json:"clientName,omitempty"`
	WorkType             string   `json:"workType"`
	ReferenceNo          string   `json:"referenceNo,omitempty"`
	AdditionalFTCount    int      `json:"additionalFTCount"`
	AdditionalFTIDs      []string `json:"additionalFTIds,omitempty"`
	AdditionalFTNames    []string `json:"additionalFTNames,omitempty"`
	ClientEngineerID     string   `json:"clientEngineerId,omitempty"`
	ClientEngineerName   string   `json:"clientEngineerName,omitempty"`
	EntryTime            string   `json:"entryTime"`
	EndTime              string   `json:"endTime"`
	DurationHours        float64  `json:"durationHours"`
	CommuteTimeInMinutes int      `json:"commuteTimeInMinutes,omitempty"`
	TotalBillsExpense    string   `json:"totalBillsExpense"`
	Bills                []string `json:"bills,omitempty"`
	WorkDescription      string   `json:"workDescription,omitempty"`
	Status               string   `json:"status,omitempty"`
	CreatedAt            string   `json:"createdAt,omitempty"`
}

// SaveEntryRequest is the technician's create/update body. Country,
// city, commute time and duration are derived server-side.
type SaveEntryRequest struct {
	Date              string   `json:"date"` // YYYY-MM-DD
	DataCenterID      string   `json:"dataCenterId"`
	ClientID          string   `json:"clientId"`
	WorkType          string   `json:"workType"`
	ReferenceNo       string   `json:"referenceNo"`
	AdditionalFTCount int      `json:"additionalFTCount"`
	AdditionalFTIDs   []string `json:"additionalFTIds"`
	ClientEngineerID  string   `json:"clientEngineerId"`
	EntryTime         string   `json:"entryTime"`
	EndTime           string   `json:"endTime"`
	TotalBillsExpense string   `json:"totalBillsExpense"`
	Bills             []string `json:"bills"`
	WorkDescription   string   `json:"workDescription"`
}

// =============================================================================
// ACCESS VIEWS
// =============================================================================

// PermittedDataCenterDTO is one browsable data center with its clients.
type PermittedDataCenterDTO struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	CountryID   string      `json:"countryId"`
	CountryName string      `json:"countryName"`
	CityID      string      `json:"cityId"`
	CityName    string      `json:"cityName"`
	Clients     []ClientDTO `json:"clients"`
}

// LocationRefDTO is a country or city filter option.
type LocationRefDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// REPORTS
// =============================================================================

// DailyReportPageDTO is one page of the daily work report.
type DailyReportPageDTO struct {
	Entries    []ServiceEntryDTO `json:"entries"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
}

// GroupHoursDTO is one row of a raw-duration breakdown.
type GroupHoursDTO struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// WorkSummaryDTO is the dashboard summary.
type WorkSummaryDTO struct {
	TotalWorkLogs int             `json:"totalWorkLogs"`
	TotalHours    float64         `json:"totalHours"`
	Technicians   int             `json:"technicians"`
	Clients       int             `json:"clients"`
	ByClient      []GroupHoursDTO `json:"byClient"`
	ByDataCenter  []GroupHoursDTO `json:"byDataCenter"`
	ByTechnician  []GroupHoursDTO `json:"byTechnician"`
}

// DetailedWorkLogDTO is one raw entry with its applicable rate.
type DetailedWorkLogDTO struct {
	Entry ServiceEntryDTO `json:"entry"`
	Rate  *RateDTO        `json:"rate"`
}

// WorkBucketDTO is one priced (data center, client) summary row.
type WorkBucketDTO struct {
	DataCenterID   string  `json:"dataCenterId"`
	DataCenterName string  `json:"dataCenterName"`
	ClientID       string  `json:"clientId"`
	ClientName     string  `json:"clientName"`
	TotalHours     float64 `json:"totalHours"`
	TotalPrice     string  `json:"totalPrice"`
}

// DurationBucketDTO is one weighted duration summary row.
type DurationBucketDTO struct {
	DataCenterID             string  `json:"dataCenterId"`
	DataCenterName           string  `json:"dataCenterName"`
	TotalStandardDuration    float64 `json:"totalStandardDuration"`
	TotalOffStandardDuration float64 `json:"totalOffStandardDuration"`
	TotalDuration            float64 `json:"totalDuration"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEntryDTO(e billing.ServiceEntry) ServiceEntryDTO {
	dto := ServiceEntryDTO{
		ID:                   e.ID,
		FTID:                 e.FTID,
		TechnicianName:       e.TechnicianName,
		Date:                 e.Date.Format("2006-01-02"),
		CountryID:            e.CountryID,
		CountryName:          e.CountryName,
		CityID:               e.CityID,
		CityName:             e.CityName,
		DataCenterID:         e.DataCenterID,
		DataCenterName:       e.DataCenterName,
		ClientID:             e.ClientID,
		ClientName:           e.ClientName,
		WorkType:             string(e.WorkType),
		ReferenceNo:          e.ReferenceNo,
		AdditionalFTCount:    e.AdditionalFTCount,
		AdditionalFTIDs:      e.AdditionalFTIDs,
		AdditionalFTNames:    e.AdditionalFTNames,
		ClientEngineerID:     e.ClientEngineerID,
		ClientEngineerName:   e.ClientEngineerName,
		EntryTime:            e.EntryTime,
		EndTime:              e.EndTime,
		DurationHours:        e.DurationHours,
		CommuteTimeInMinutes: e.CommuteTimeInMinutes,
		TotalBillsExpense:    e.TotalBillsExpense.String(),
		Bills:                e.Bills,
		WorkDescription:      e.WorkDescription,
		Status:               e.Status,
	}
	if !e.CreatedAt.IsZero() {
		dto.CreatedAt = e.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toEntryDTOs(entries []billing.ServiceEntry) []ServiceEntryDTO {
	dtos := make([]ServiceEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toFTCompanyDTO(c sqlite.FTCompany) FTCompanyDTO {
	return FTCompanyDTO{
		ID:       c.ID,
		Name:     c.Name,
		Address:  c.Address,
		Email:    c.Email,
		Phone:    c.Phone,
		IsActive: c.IsActive,
	}
}

func toClientEngineerDTO(e sqlite.ClientEngineer) ClientEngineerDTO {
	return ClientEngineerDTO{
		ID:       e.ID,
		Name:     e.Name,
		Email:    e.Email,
		Phone:    e.Phone,
		ClientID: e.ClientID,
		IsActive: e.IsActive,
	}
}

func toRateDTO(r billing.Rate) RateDTO {
	return RateDTO{
		ID:                    r.ID,
		ClientID:              r.ClientID,
		CountryID:             r.CountryID,
		StandardHourlyRate:    r.StandardHourlyRate.String(),
		OffStandardHourlyRate: r.OffStandardHourlyRate.String(),
		CommuteHourlyRate:     r.CommuteHourlyRate.String(),
	}
}

func toTechnicianDTO(t sqlite.Technician, grants []access.Grant) TechnicianDTO {
	dto := TechnicianDTO{
		ID:        t.ID,
		Code:      t.Code,
		Name:      t.Name,
		Mobile:    t.Mobile,
		Email:     t.Email,
		CountryID: t.CountryID,
		CityID:    t.CityID,
		CompanyID: t.CompanyID,
		Role:      t.Role,
		IsActive:  t.IsActive,
	}
	for _, g := range grants {
		dto.Grants = append(dto.Grants, GrantDTO{DataCenterID: g.DataCenterID, ClientID: g.ClientID})
	}
	return dto
}

func toGroupHoursDTOs(rows []billing.GroupHours) []GroupHoursDTO {
	dtos := make([]GroupHoursDTO, len(rows))
	for i, r := range rows {
		dtos[i] = GroupHoursDTO{ID: r.ID, Name: r.Name, Hours: r.Hours}
	}
	return dtos
}

func toDailyReportDTO(p reports.DailyReportPage) DailyReportPageDTO {
	return DailyReportPageDTO{
		Entries:    toEntryDTOs(p.Entries),
		Total:      p.Total,
		Page:       p.Page,
		TotalPages: p.Pages,
	}
}

// =============================================================================
// JSON PLUMBING
// =============================================================================

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case billing.IsPermissionDenied(err):
		writeError(w, http.StatusForbidden, message, err)
	case billing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case billing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, billing.ErrConsistency):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
