/*
handlers.go - HTTP API handlers for the field-service billing platform

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Auth:
    POST   /api/auth/login              Technician login (FT code + password)
    POST   /api/auth/admin/login        Admin login

  Admin directory:
    GET/POST /api/admin/countries       List / save countries
    GET/POST /api/admin/cities          List / save cities
    GET/POST /api/admin/clients         List / save clients
    PUT    /api/admin/clients/{id}/active
    GET/POST /api/admin/data-centers    List / save data centers
    PUT    /api/admin/data-centers/{id}/active
    POST/DELETE /api/admin/client-data-centers   Link / unlink mapping
    GET/POST /api/admin/ft-companies    List (filtered, paged) / save
    GET    /api/admin/ft-companies/{id}
    PUT    /api/admin/ft-companies/{id}/active
    GET/POST /api/admin/client-engineers  List (filtered, paged) / save
    DELETE /api/admin/client-engineers/{id}
    PUT    /api/admin/client-engineers/{id}/active

  Admin rates:
    GET/POST /api/admin/rates           List (filtered, paged) / save
    DELETE /api/admin/rates/{id}

  Admin technicians:
    GET/POST /api/admin/technicians     List (filtered) / create with grants
    GET/PUT  /api/admin/technicians/{id}  Get / update with grant replace
    PUT    /api/admin/technicians/{id}/active

  Technician:
    GET/POST /api/technician/entries    Own entries / log a visit
    PUT    /api/technician/entries/{id} Update own entry (full replace)
    GET    /api/technician/data-centers Permitted data centers + clients
    GET    /api/technician/countries    Permitted countries
    GET    /api/technician/cities       Permitted cities
    GET    /api/technician/co-technicians    Same-company colleagues
    GET    /api/technician/client-engineers  Active engineers of a client

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (access filter, billing, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Permission denied (no grant for the pair)
  - 404: Resource not found
  - 409: Storage consistency failures
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Login handlers and the auth gates
  - reports.go: Admin report endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/billing-engine/access"
	"github.com/fieldserve/billing-engine/billing"
	"github.com/fieldserve/billing-engine/reports"
	"github.com/fieldserve/billing-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Filter  *access.Filter
	Reports *reports.Service
	Auth    *Authenticator
}

// NewHandler creates a handler with all dependencies.
func NewHandler(store *sqlite.Store, filter *access.Filter, reportSvc *reports.Service, auth *Authenticator) *Handler {
	return &Handler{Store: store, Filter: filter, Reports: reportSvc, Auth: auth}
}

// =============================================================================
// QUERY-PARAM HELPERS
// =============================================================================

// parseDateParam parses a YYYY-MM-DD query value; empty yields a zero time.
func parseDateParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, &billing.FieldError{Field: name, Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseBoolParam parses an optional boolean query value; absent or
// unparsable yields nil (no filtering).
func parseBoolParam(r *http.Request, name string) *bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

// =============================================================================
// ADMIN - COUNTRIES AND CITIES
// =============================================================================

// SaveCountry creates or updates a country.
// POST /api/admin/countries
func (h *Handler) SaveCountry(w http.ResponseWriter, r *http.Request) {
	var req CountryDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
		req.IsActive = true
	}

	err := h.Store.SaveCountry(r.Context(), sqlite.Country{
		ID: req.ID, Name: req.Name, ISOCode: req.ISOCode,
		Currency: req.Currency, IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to save country", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListCountries returns all countries.
// GET /api/admin/countries
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.Store.ListCountries(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list countries", err)
		return
	}

	dtos := make([]CountryDTO, len(countries))
	for i, c := range countries {
		dtos[i] = CountryDTO{ID: c.ID, Name: c.Name, ISOCode: c.ISOCode, Currency: c.Currency, IsActive: c.IsActive}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveCity creates or updates a city.
// POST /api/admin/cities
func (h *Handler) SaveCity(w http.ResponseWriter, r *http.Request) {
	var req CityDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.CountryID == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name and countryId are required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := h.Store.SaveCity(r.Context(), sqlite.City{ID: req.ID, Name: req.Name, CountryID: req.CountryID}); err != nil {
		writeDomainError(w, "Failed to save city", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListCities returns cities, optionally limited to one country.
// GET /api/admin/cities?countryId=
func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	cities, err := h.Store.ListCities(r.Context(), r.URL.Query().Get("countryId"))
	if err != nil {
		writeDomainError(w, "Failed to list cities", err)
		return
	}

	dtos := make([]CityDTO, len(cities))
	for i, c := range cities {
		dtos[i] = CityDTO{ID: c.ID, Name: c.Name, CountryID: c.CountryID}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN - CLIENTS
// =============================================================================

// SaveClient creates or updates a client.
// POST /api/admin/clients
func (h *Handler) SaveClient(w http.ResponseWriter, r *http.Request) {
	var req ClientDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
		req.IsActive = true
	}

	err := h.Store.SaveClient(r.Context(), sqlite.Client{
		ID: req.ID, Name: req.Name, CountryID: req.CountryID, CityID: req.CityID,
		ContactName: req.ContactName, ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone, IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListClients returns all clients.
// GET /api/admin/clients
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list clients", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTOs(clients))
}

func toClientDTOs(clients []sqlite.Client) []ClientDTO {
	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = ClientDTO{
			ID: c.ID, Name: c.Name, CountryID: c.CountryID, CityID: c.CityID,
			ContactName: c.ContactName, ContactEmail: c.ContactEmail,
			ContactPhone: c.ContactPhone, IsActive: c.IsActive,
		}
	}
	return dtos
}

// SetClientActive toggles a client's active flag.
// PUT /api/admin/clients/{id}/active
func (h *Handler) SetClientActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetClientActive(r.Context(), chi.URLParam(r, "id"), req.IsActive); err != nil {
		writeDomainError(w, "Failed to update client", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": req.IsActive})
}

// =============================================================================
// ADMIN - DATA CENTERS
// =============================================================================

// SaveDataCenter creates or updates a data center. Sites within city
// limits always store zero commute time.
// POST /api/admin/data-centers
func (h *Handler) SaveDataCenter(w http.ResponseWriter, r *http.Request) {
	var req DataCenterDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	switch {
	case req.Name == "":
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name is required"})
		return
	case req.LocationType != "within_city_limits" && req.LocationType != "outside_city_limits":
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "locationType", Message: "must be within_city_limits or outside_city_limits"})
		return
	case req.CommuteMinutes < 0:
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "commuteTimeInMinutes", Message: "must not be negative"})
		return
	}
	if req.LocationType == "within_city_limits" {
		req.CommuteMinutes = 0
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
		req.IsActive = true
	}

	err := h.Store.SaveDataCenter(r.Context(), sqlite.DataCenter{
		ID: req.ID, Name: req.Name, CountryID: req.CountryID, CityID: req.CityID,
		Address: req.Address, LocationType: req.LocationType,
		CommuteMinutes: req.CommuteMinutes, IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to save data center", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListDataCenters returns all data centers.
// GET /api/admin/data-centers
func (h *Handler) ListDataCenters(w http.ResponseWriter, r *http.Request) {
	dcs, err := h.Store.ListDataCenters(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list data centers", err)
		return
	}

	dtos := make([]DataCenterDTO, len(dcs))
	for i, dc := range dcs {
		dtos[i] = DataCenterDTO{
			ID: dc.ID, Name: dc.Name, CountryID: dc.CountryID, CityID: dc.CityID,
			Address: dc.Address, LocationType: dc.LocationType,
			CommuteMinutes: dc.CommuteMinutes, IsActive: dc.IsActive,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetDataCenterActive toggles a data center's active flag.
// PUT /api/admin/data-centers/{id}/active
func (h *Handler) SetDataCenterActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetDataCenterActive(r.Context(), chi.URLParam(r, "id"), req.IsActive); err != nil {
		writeDomainError(w, "Failed to update data center", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": req.IsActive})
}

// LinkClientDataCenter records that a client operates in a data center.
// POST /api/admin/client-data-centers
func (h *Handler) LinkClientDataCenter(w http.ResponseWriter, r *http.Request) {
	var req LinkClientDataCenterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ClientID == "" || req.DataCenterID == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "clientId", Message: "clientId and dataCenterId are required"})
		return
	}

	// Both sides must exist before the mapping is written.
	if _, err := h.Store.GetClient(r.Context(), req.ClientID); err != nil {
		writeDomainError(w, "Failed to link", err)
		return
	}
	if _, err := h.Store.GetDataCenter(r.Context(), req.DataCenterID); err != nil {
		writeDomainError(w, "Failed to link", err)
		return
	}

	if err := h.Store.LinkClientDataCenter(r.Context(), uuid.NewString(), req.ClientID, req.DataCenterID); err != nil {
		writeDomainError(w, "Failed to link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkClientDataCenter removes a client/data-center mapping.
// DELETE /api/admin/client-data-centers
func (h *Handler) UnlinkClientDataCenter(w http.ResponseWriter, r *http.Request) {
	var req LinkClientDataCenterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.UnlinkClientDataCenter(r.Context(), req.ClientID, req.DataCenterID); err != nil {
		writeDomainError(w, "Failed to unlink", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN - FT COMPANIES
// =============================================================================

// SaveFTCompany creates or updates a field-technician company.
// POST /api/admin/ft-companies
func (h *Handler) SaveFTCompany(w http.ResponseWriter, r *http.Request) {
	var req FTCompanyDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name is required"})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
		req.IsActive = true
	}

	err := h.Store.SaveFTCompany(r.Context(), sqlite.FTCompany{
		ID: req.ID, Name: req.Name, Address: req.Address,
		Email: req.Email, Phone: req.Phone, IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to save company", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListFTCompanies returns a filtered, paginated company listing.
// GET /api/admin/ft-companies?search=&isActive=&page=&limit=
func (h *Handler) ListFTCompanies(w http.ResponseWriter, r *http.Request) {
	companies, total, err := h.Store.ListFTCompanies(r.Context(), sqlite.CompanyFilter{
		Search:   r.URL.Query().Get("search"),
		IsActive: parseBoolParam(r, "isActive"),
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "limit", 50),
	})
	if err != nil {
		writeDomainError(w, "Failed to list companies", err)
		return
	}

	dtos := make([]FTCompanyDTO, len(companies))
	for i, c := range companies {
		dtos[i] = toFTCompanyDTO(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": dtos, "total": total})
}

// GetFTCompany returns one company.
// GET /api/admin/ft-companies/{id}
func (h *Handler) GetFTCompany(w http.ResponseWriter, r *http.Request) {
	company, err := h.Store.GetFTCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to load company", err)
		return
	}
	writeJSON(w, http.StatusOK, toFTCompanyDTO(*company))
}

// SetFTCompanyActive toggles a company's active flag.
// PUT /api/admin/ft-companies/{id}/active
func (h *Handler) SetFTCompanyActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetFTCompanyActive(r.Context(), chi.URLParam(r, "id"), req.IsActive); err != nil {
		writeDomainError(w, "Failed to update company", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": req.IsActive})
}

// =============================================================================
// ADMIN - CLIENT ENGINEERS
// =============================================================================

// SaveClientEngineer creates or updates a client engineer. The referenced
// client must exist.
// POST /api/admin/client-engineers
func (h *Handler) SaveClientEngineer(w http.ResponseWriter, r *http.Request) {
	var req ClientEngineerDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name and clientId are required"})
		return
	}
	if _, err := h.Store.GetClient(r.Context(), req.ClientID); err != nil {
		writeDomainError(w, "Failed to save engineer", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
		req.IsActive = true
	}

	err := h.Store.SaveClientEngineer(r.Context(), sqlite.ClientEngineer{
		ID: req.ID, Name: req.Name, Email: req.Email,
		Phone: req.Phone, ClientID: req.ClientID, IsActive: req.IsActive,
	})
	if err != nil {
		writeDomainError(w, "Failed to save engineer", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListClientEngineers returns a filtered, paginated engineer listing.
// GET /api/admin/client-engineers?clientId=&search=&isActive=&page=&limit=
func (h *Handler) ListClientEngineers(w http.ResponseWriter, r *http.Request) {
	engineers, total, err := h.Store.ListClientEngineers(r.Context(), sqlite.EngineerFilter{
		ClientID: r.URL.Query().Get("clientId"),
		Search:   r.URL.Query().Get("search"),
		IsActive: parseBoolParam(r, "isActive"),
		Page:     parseIntParam(r, "page", 1),
		PageSize: parseIntParam(r, "limit", 50),
	})
	if err != nil {
		writeDomainError(w, "Failed to list engineers", err)
		return
	}

	dtos := make([]ClientEngineerDTO, len(engineers))
	for i, e := range engineers {
		dtos[i] = toClientEngineerDTO(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"engineers": dtos, "total": total})
}

// DeleteClientEngineer removes an engineer.
// DELETE /api/admin/client-engineers/{id}
func (h *Handler) DeleteClientEngineer(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteClientEngineer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete engineer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetClientEngineerActive toggles an engineer's active flag.
// PUT /api/admin/client-engineers/{id}/active
func (h *Handler) SetClientEngineerActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetClientEngineerActive(r.Context(), chi.URLParam(r, "id"), req.IsActive); err != nil {
		writeDomainError(w, "Failed to update engineer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": req.IsActive})
}

// =============================================================================
// ADMIN - RATES
// =============================================================================

// SaveRate creates or replaces the rate for a (client, country) pair.
// POST /api/admin/rates
func (h *Handler) SaveRate(w http.ResponseWriter, r *http.Request) {
	var req RateDTO
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	standard, err1 := decimal.NewFromString(req.StandardHourlyRate)
	offStandard, err2 := decimal.NewFromString(req.OffStandardHourlyRate)
	commute, err3 := decimal.NewFromString(req.CommuteHourlyRate)
	if err1 != nil || err2 != nil || err3 != nil {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "standardHourlyRate", Message: "rates must be decimal numbers"})
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	rate, err := billing.NewRate(req.ID, req.ClientID, req.CountryID, standard, offStandard, commute)
	if err != nil {
		writeDomainError(w, "Validation failed", err)
		return
	}

	if err := h.Store.SaveRate(r.Context(), rate); err != nil {
		writeDomainError(w, "Failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// ListRates returns a filtered, paginated rate listing.
// GET /api/admin/rates?clientId=&countryId=&page=&limit=
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	rates, total, err := h.Store.ListRatesFiltered(r.Context(),
		r.URL.Query().Get("clientId"),
		r.URL.Query().Get("countryId"),
		parseIntParam(r, "page", 1),
		parseIntParam(r, "limit", 50),
	)
	if err != nil {
		writeDomainError(w, "Failed to list rates", err)
		return
	}

	dtos := make([]RateDTO, len(rates))
	for i, rate := range rates {
		dtos[i] = toRateDTO(rate)
	}
	writeJSON(w, http.StatusOK, map[string]any{"rates": dtos, "total": total})
}

// DeleteRate removes a rate.
// DELETE /api/admin/rates/{id}
func (h *Handler) DeleteRate(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRate(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete rate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN - TECHNICIANS
// =============================================================================

// generatePassword returns a random initial password for a new technician.
func generatePassword() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func grantPairs(dtos []GrantDTO) []sqlite.GrantPair {
	pairs := make([]sqlite.GrantPair, len(dtos))
	for i, g := range dtos {
		pairs[i] = sqlite.GrantPair{DataCenterID: g.DataCenterID, ClientID: g.ClientID}
	}
	return pairs
}

// CreateTechnician creates a technician with its grant set in one
// transaction. The FT code is generated; so is the password when the
// request omits one, and the generated password is returned exactly once.
// POST /api/admin/technicians
func (h *Handler) CreateTechnician(w http.ResponseWriter, r *http.Request) {
	var req SaveTechnicianRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "name", Message: "name is required"})
		return
	}

	password := req.Password
	generated := ""
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to generate password", err)
			return
		}
		generated = password
	}
	hash, err := HashPassword(password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tech := sqlite.Technician{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Mobile:       req.Mobile,
		Email:        req.Email,
		CountryID:    req.CountryID,
		CityID:       req.CityID,
		CompanyID:    req.CompanyID,
		PasswordHash: hash,
		Role:         "technician",
		IsActive:     active,
	}

	created, err := h.Store.CreateTechnicianWithGrants(r.Context(), tech, grantPairs(req.Grants))
	if err != nil {
		writeDomainError(w, "Failed to create technician", err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateTechnicianResponse{
		Technician: toTechnicianDTO(created, grantsFromDTOs(created.ID, req.Grants)),
		Password:   generated,
	})
}

func grantsFromDTOs(ftID string, dtos []GrantDTO) []access.Grant {
	grants := make([]access.Grant, len(dtos))
	for i, g := range dtos {
		grants[i] = access.Grant{FTID: ftID, DataCenterID: g.DataCenterID, ClientID: g.ClientID}
	}
	return grants
}

// UpdateTechnician updates a technician and atomically replaces its
// grant set. An empty password keeps the stored one.
// PUT /api/admin/technicians/{id}
func (h *Handler) UpdateTechnician(w http.ResponseWriter, r *http.Request) {
	var req SaveTechnicianRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	hash := ""
	if req.Password != "" {
		var err error
		hash, err = HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
			return
		}
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	tech := sqlite.Technician{
		ID:           chi.URLParam(r, "id"),
		Name:         req.Name,
		Mobile:       req.Mobile,
		Email:        req.Email,
		CountryID:    req.CountryID,
		CityID:       req.CityID,
		CompanyID:    req.CompanyID,
		PasswordHash: hash,
		Role:         "technician",
		IsActive:     active,
	}

	if err := h.Store.ReplaceTechnicianGrants(r.Context(), tech, grantPairs(req.Grants)); err != nil {
		writeDomainError(w, "Failed to update technician", err)
		return
	}

	h.writeTechnician(w, r, tech.ID)
}

// GetTechnician returns one technician with its grants.
// GET /api/admin/technicians/{id}
func (h *Handler) GetTechnician(w http.ResponseWriter, r *http.Request) {
	h.writeTechnician(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) writeTechnician(w http.ResponseWriter, r *http.Request, id string) {
	tech, err := h.Store.GetTechnician(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load technician", err)
		return
	}
	grants, err := h.Store.TechnicianGrants(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to load grants", err)
		return
	}
	writeJSON(w, http.StatusOK, toTechnicianDTO(*tech, grants))
}

// ListTechnicians returns a filtered technician listing.
// GET /api/admin/technicians?countryId=&cityId=&companyId=&clientId=&dataCenterId=&search=&page=&limit=
func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	techs, total, err := h.Store.ListTechnicians(r.Context(), sqlite.TechnicianFilter{
		CountryID:    q.Get("countryId"),
		CityID:       q.Get("cityId"),
		CompanyID:    q.Get("companyId"),
		ClientID:     q.Get("clientId"),
		DataCenterID: q.Get("dataCenterId"),
		Search:       q.Get("search"),
		Page:         parseIntParam(r, "page", 1),
		PageSize:     parseIntParam(r, "limit", 50),
	})
	if err != nil {
		writeDomainError(w, "Failed to list technicians", err)
		return
	}

	dtos := make([]TechnicianDTO, len(techs))
	for i, t := range techs {
		dtos[i] = toTechnicianDTO(t, nil)
	}
	writeJSON(w, http.StatusOK, map[string]any{"technicians": dtos, "total": total})
}

// SetTechnicianActive toggles a technician's active flag.
// PUT /api/admin/technicians/{id}/active
func (h *Handler) SetTechnicianActive(w http.ResponseWriter, r *http.Request) {
	var req SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SetTechnicianActive(r.Context(), chi.URLParam(r, "id"), req.IsActive); err != nil {
		writeDomainError(w, "Failed to update technician", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isActive": req.IsActive})
}

// =============================================================================
// TECHNICIAN - SERVICE ENTRIES
// =============================================================================

// entryFromRequest derives a full service entry from a submission:
// country, city and commute time come from the data center, the duration
// from the shift timestamps. The permission check happens first so a
// denied caller learns nothing about the data center.
func (h *Handler) entryFromRequest(r *http.Request, ftID string, req SaveEntryRequest) (billing.ServiceEntry, error) {
	if err := h.Filter.Require(r.Context(), ftID, req.DataCenterID, req.ClientID); err != nil {
		return billing.ServiceEntry{}, err
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return billing.ServiceEntry{}, &billing.FieldError{Field: "date", Message: "must be YYYY-MM-DD"}
	}

	expense := decimal.Zero
	if req.TotalBillsExpense != "" {
		expense, err = decimal.NewFromString(req.TotalBillsExpense)
		if err != nil {
			return billing.ServiceEntry{}, &billing.FieldError{Field: "totalBillsExpense", Message: "must be a decimal number"}
		}
	}

	dc, err := h.Store.GetDataCenter(r.Context(), req.DataCenterID)
	if err != nil {
		return billing.ServiceEntry{}, err
	}

	duration, err := billing.DurationHours(req.EntryTime, req.EndTime)
	if err != nil {
		return billing.ServiceEntry{}, err
	}

	entry := billing.ServiceEntry{
		FTID:              ftID,
		Date:              date,
		CountryID:         dc.CountryID,
		CityID:            dc.CityID,
		DataCenterID:      req.DataCenterID,
		ClientID:          req.ClientID,
		WorkType:          billing.WorkType(req.WorkType),
		ReferenceNo:       req.ReferenceNo,
		AdditionalFTCount: req.AdditionalFTCount,
		AdditionalFTIDs:   req.AdditionalFTIDs,
		ClientEngineerID:  req.ClientEngineerID,
		EntryTime:         req.EntryTime,
		EndTime:           req.EndTime,
		DurationHours:     duration,
		TotalBillsExpense: expense,
		Bills:             req.Bills,
		WorkDescription:   req.WorkDescription,
	}
	if err := entry.Validate(); err != nil {
		return billing.ServiceEntry{}, err
	}
	return entry, nil
}

// CreateEntry logs a visit for the authenticated technician.
// POST /api/technician/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req SaveEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.entryFromRequest(r, identity.FTID, req)
	if err != nil {
		writeDomainError(w, "Failed to create entry", err)
		return
	}
	entry.ID = uuid.NewString()

	if err := h.Store.CreateServiceEntry(r.Context(), entry); err != nil {
		writeDomainError(w, "Failed to create entry", err)
		return
	}

	created, err := h.Store.GetServiceEntry(r.Context(), entry.ID)
	if err != nil {
		writeDomainError(w, "Failed to load entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(*created))
}

// UpdateEntry replaces an entry the technician owns. Updating someone
// else's entry surfaces as 404.
// PUT /api/technician/entries/{id}
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	var req SaveEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.entryFromRequest(r, identity.FTID, req)
	if err != nil {
		writeDomainError(w, "Failed to update entry", err)
		return
	}
	entry.ID = chi.URLParam(r, "id")

	if err := h.Store.UpdateOwnedServiceEntry(r.Context(), entry); err != nil {
		writeDomainError(w, "Failed to update entry", err)
		return
	}

	updated, err := h.Store.GetServiceEntry(r.Context(), entry.ID)
	if err != nil {
		writeDomainError(w, "Failed to load entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*updated))
}

// ListMyEntries returns the technician's own entries, newest first.
// GET /api/technician/entries?startDate=&endDate=&dataCenterId=&search=&page=&limit=
func (h *Handler) ListMyEntries(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	from, err := parseDateParam(r, "startDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}
	to, err := parseDateParam(r, "endDate")
	if err != nil {
		writeDomainError(w, "Invalid date", err)
		return
	}

	page, err := h.Reports.DailyWorkReports(r.Context(),
		reports.EntryFilter{
			From:         from,
			To:           to,
			FTID:         identity.FTID,
			DataCenterID: r.URL.Query().Get("dataCenterId"),
			Search:       r.URL.Query().Get("search"),
		},
		reports.Page{
			Number: parseIntParam(r, "page", 1),
			Size:   parseIntParam(r, "limit", 10),
		},
	)
	if err != nil {
		writeDomainError(w, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, toDailyReportDTO(page))
}

// =============================================================================
// TECHNICIAN - PERMITTED VIEWS
// =============================================================================

// PermittedDataCenters returns the active data centers the technician
// holds grants for, each with its active clients.
// GET /api/technician/data-centers?countryId=&cityId=
func (h *Handler) PermittedDataCenters(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	dcs, err := h.Filter.PermittedDataCenters(r.Context(), identity.FTID, access.LocationFilter{
		CountryID: r.URL.Query().Get("countryId"),
		CityID:    r.URL.Query().Get("cityId"),
	})
	if err != nil {
		writeDomainError(w, "Failed to list data centers", err)
		return
	}

	dtos := make([]PermittedDataCenterDTO, len(dcs))
	for i, dc := range dcs {
		clients := make([]ClientDTO, len(dc.Clients))
		for j, c := range dc.Clients {
			clients[j] = ClientDTO{ID: c.ID, Name: c.Name, IsActive: c.IsActive}
		}
		dtos[i] = PermittedDataCenterDTO{
			ID: dc.ID, Name: dc.Name,
			CountryID: dc.CountryID, CountryName: dc.CountryName,
			CityID: dc.CityID, CityName: dc.CityName,
			Clients: clients,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PermittedCountries returns the countries of the technician's active
// permitted data centers.
// GET /api/technician/countries
func (h *Handler) PermittedCountries(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	refs, err := h.Filter.PermittedCountries(r.Context(), identity.FTID)
	if err != nil {
		writeDomainError(w, "Failed to list countries", err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationRefDTOs(refs))
}

// PermittedCities returns the cities of the technician's active permitted
// data centers, optionally limited to one country.
// GET /api/technician/cities?countryId=
func (h *Handler) PermittedCities(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	refs, err := h.Filter.PermittedCities(r.Context(), identity.FTID, r.URL.Query().Get("countryId"))
	if err != nil {
		writeDomainError(w, "Failed to list cities", err)
		return
	}
	writeJSON(w, http.StatusOK, toLocationRefDTOs(refs))
}

func toLocationRefDTOs(refs []access.LocationRef) []LocationRefDTO {
	dtos := make([]LocationRefDTO, len(refs))
	for i, ref := range refs {
		dtos[i] = LocationRefDTO{ID: ref.ID, Name: ref.Name}
	}
	return dtos
}

// CoTechnicians returns the active colleagues from the technician's own
// company, the pool an entry's additional helpers are picked from.
// GET /api/technician/co-technicians
func (h *Handler) CoTechnicians(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	colleagues, err := h.Store.ListCoTechnicians(r.Context(), identity.FTID)
	if err != nil {
		writeDomainError(w, "Failed to list co-technicians", err)
		return
	}

	dtos := make([]CoTechnicianDTO, len(colleagues))
	for i, c := range colleagues {
		dtos[i] = CoTechnicianDTO{ID: c.ID, Code: c.Code, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ClientEngineers returns the active engineers of one client, for the
// engineer picker on the entry form.
// GET /api/technician/client-engineers?clientId=
func (h *Handler) ClientEngineers(w http.ResponseWriter, r *http.Request) {
	if _, ok := identityFrom(r); !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "Validation failed",
			&billing.FieldError{Field: "clientId", Message: "clientId is required"})
		return
	}

	active := true
	engineers, _, err := h.Store.ListClientEngineers(r.Context(), sqlite.EngineerFilter{
		ClientID: clientID,
		IsActive: &active,
	})
	if err != nil {
		writeDomainError(w, "Failed to list engineers", err)
		return
	}

	dtos := make([]ClientEngineerDTO, len(engineers))
	for i, e := range engineers {
		dtos[i] = toClientEngineerDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}
