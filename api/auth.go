/*
auth.go - JWT issuance and the authentication gates

PURPOSE:
  Technicians log in with their FT code and password (bcrypt compare)
  and receive a 24h HS256 token. Admins log in with the configured
  admin credentials and receive a token carrying role=admin.

  The technician middleware resolves the full identity from the store
  on EVERY request - a deactivated technician is locked out immediately,
  not when the token expires - and stashes it in the request context.
  Handlers pull the identity out and pass it explicitly into core
  calls; nothing below the api layer reads ambient session state.

SEE ALSO:
  - handlers.go: identityFrom(r) consumers
  - server.go: route groups the gates protect
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Identity is the authenticated caller, resolved per request.
type Identity struct {
	FTID string // empty for admin tokens
	Code string
	Name string
	Role string
}

type contextKey string

const identityKey contextKey = "identity"

// identityFrom returns the identity the middleware resolved.
func identityFrom(r *http.Request) (Identity, bool) {
	id, ok := r.Context().Value(identityKey).(Identity)
	return id, ok
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

// Authenticator issues and verifies the platform's tokens.
type Authenticator struct {
	Secret        []byte
	AdminUser     string
	AdminPassword string
	TokenTTL      time.Duration
}

func NewAuthenticator(secret, adminUser, adminPassword string) *Authenticator {
	return &Authenticator{
		Secret:        []byte(secret),
		AdminUser:     adminUser,
		AdminPassword: adminPassword,
		TokenTTL:      24 * time.Hour,
	}
}

// IssueTechnicianToken signs a token identifying one technician.
func (a *Authenticator) IssueTechnicianToken(ftID, code string) (string, error) {
	claims := jwt.MapClaims{
		"sub":  ftID,
		"code": code,
		"role": "technician",
		"exp":  time.Now().Add(a.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// IssueAdminToken signs an admin token.
func (a *Authenticator) IssueAdminToken() (string, error) {
	claims := jwt.MapClaims{
		"sub":  a.AdminUser,
		"role": "admin",
		"exp":  time.Now().Add(a.TokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// parseToken verifies the signature and returns the claims.
func (a *Authenticator) parseToken(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(auth, "Bearer "), true
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hashed), err
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// RequireTechnician gates the technician surface. The technician row is
// re-read on every request so deactivation takes effect immediately.
func (h *Handler) RequireTechnician(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing token", nil)
			return
		}

		claims, err := h.Auth.parseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		ftID, _ := claims["sub"].(string)
		tech, err := h.Store.GetTechnician(r.Context(), ftID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown technician", nil)
			return
		}
		if !tech.IsActive {
			writeError(w, http.StatusForbidden, "technician is deactivated", nil)
			return
		}

		identity := Identity{FTID: tech.ID, Code: tech.Code, Name: tech.Name, Role: "technician"}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates the admin surface on the role claim.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing token", nil)
			return
		}

		claims, err := h.Auth.parseToken(tokenStr)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		if role, _ := claims["role"].(string); role != "admin" {
			writeError(w, http.StatusForbidden, "admin access required", nil)
			return
		}

		sub, _ := claims["sub"].(string)
		ctx := context.WithValue(r.Context(), identityKey, Identity{Name: sub, Role: "admin"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// LOGIN HANDLERS
// =============================================================================

// TechnicianLogin authenticates an FT code + password pair.
// POST /api/auth/login
func (h *Handler) TechnicianLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	tech, err := h.Store.GetTechnicianByCode(r.Context(), req.TechnicianID)
	if err != nil {
		// Same response for unknown code and wrong password.
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if !CheckPassword(tech.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if !tech.IsActive {
		writeError(w, http.StatusForbidden, "Technician is deactivated", nil)
		return
	}

	token, err := h.Auth.IssueTechnicianToken(tech.ID, tech.Code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token: token,
		Technician: &TechnicianDTO{
			ID: tech.ID, Code: tech.Code, Name: tech.Name, Role: tech.Role,
		},
	})
}

// AdminLogin authenticates the configured admin credentials.
// POST /api/auth/admin/login
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.Auth.AdminUser == "" || req.Username != h.Auth.AdminUser || req.Password != h.Auth.AdminPassword {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.Auth.IssueAdminToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}
