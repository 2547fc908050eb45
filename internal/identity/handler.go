package identity

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bissquit/statusroom/internal/domain"
	"github.com/bissquit/statusroom/internal/pkg/ctxlog"
	"github.com/bissquit/statusroom/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// CookieSettings contains settings for authentication cookies.
type CookieSettings struct {
	Secure               bool
	Domain               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service        *Service
	validator      *validator.Validate
	cookieSettings CookieSettings
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service, cookieSettings CookieSettings) *Handler {
	return &Handler{
		service:        service,
		validator:      httputil.NewValidator(),
		cookieSettings: cookieSettings,
	}
}

// RegisterRoutes registers identity routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)
	})
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

// RegisterRequest represents registration request body.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=Admin User"`
}

// Register handles POST /auth/register.
// A registered user is signed in right away.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	_, tokens, err := h.service.Login(r.Context(), LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.setAuthCookies(w, tokens)

	httputil.Success(w, http.StatusCreated, AuthResponse{User: user, AccessToken: tokens.AccessToken})
}

// LoginRequest represents login request body.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned on register and login. The access token is
// repeated in the body for clients that send it as a bearer token.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// Login handles POST /auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, tokens, err := h.service.Login(r.Context(), LoginInput(req))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.setAuthCookies(w, tokens)

	httputil.Success(w, http.StatusOK, AuthResponse{User: user, AccessToken: tokens.AccessToken})
}

// Refresh handles POST /auth/refresh.
// Reads refresh_token from cookie, issues new tokens.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.getRefreshTokenFromRequest(r)
	if refreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "missing refresh token")
		return
	}

	tokens, err := h.service.RefreshTokens(r.Context(), refreshToken)
	if err != nil {
		h.clearAuthCookies(w)
		h.handleServiceError(w, r, err)
		return
	}

	h.setAuthCookies(w, tokens)

	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /auth/logout.
// Reads refresh_token from cookie, invalidates it, clears all auth cookies.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.getRefreshTokenFromRequest(r)
	if refreshToken != "" {
		if err := h.service.Logout(r.Context(), refreshToken); err != nil {
			ctxlog.FromContext(r.Context()).Warn("logout error", "error", err)
		}
	}

	h.clearAuthCookies(w)

	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}

// authCookie describes one of the cookies set on sign-in.
type authCookie struct {
	name     string
	path     string
	httpOnly bool
	sameSite http.SameSite
}

var (
	accessCookie  = authCookie{httputil.AccessTokenCookie, "/", true, http.SameSiteLaxMode}
	refreshCookie = authCookie{httputil.RefreshTokenCookie, "/api/v1/auth", true, http.SameSiteStrictMode}
	// The CSRF cookie is read by browser scripts.
	csrfCookie = authCookie{httputil.CSRFTokenCookie, "/", false, http.SameSiteLaxMode}
)

func (h *Handler) setCookie(w http.ResponseWriter, c authCookie, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     c.path,
		Domain:   h.cookieSettings.Domain,
		MaxAge:   maxAge,
		HttpOnly: c.httpOnly,
		Secure:   h.cookieSettings.Secure,
		SameSite: c.sameSite,
	})
}

func (h *Handler) setAuthCookies(w http.ResponseWriter, tokens *TokenPair) {
	accessAge := int(h.cookieSettings.AccessTokenDuration.Seconds())
	h.setCookie(w, accessCookie, tokens.AccessToken, accessAge)
	h.setCookie(w, refreshCookie, tokens.RefreshToken, int(h.cookieSettings.RefreshTokenDuration.Seconds()))
	h.setCookie(w, csrfCookie, rand.Text(), accessAge)
}

func (h *Handler) clearAuthCookies(w http.ResponseWriter) {
	for _, c := range []authCookie{accessCookie, refreshCookie, csrfCookie} {
		h.setCookie(w, c, "", -1)
	}
}

// getRefreshTokenFromRequest extracts refresh token from cookie or request body (for backward compatibility).
func (h *Handler) getRefreshTokenFromRequest(r *http.Request) string {
	// Try cookie first
	if cookie, err := r.Cookie(httputil.RefreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Fallback to request body for API clients
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken
	}

	return ""
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, []httputil.ErrorMapping{
		{Error: ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		{Error: ErrEmailExists, Status: http.StatusConflict, Message: "email already registered"},
		{Error: ErrInvalidRole, Status: http.StatusBadRequest},
		{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized},
		{Error: ErrInvalidToken, Status: http.StatusUnauthorized},
	})
}
