package handlers

import (
	"net/http"
	"time"

	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles signup, login and session requests.
type UserHandler struct {
	service    services.UserServiceProvider
	errs       *ErrorResponder
	tokenTTL   time.Duration
	production bool
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, errs *ErrorResponder, tokenTTL time.Duration, production bool) *UserHandler {
	return &UserHandler{service: service, errs: errs, tokenTTL: tokenTTL, production: production}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type userResponse struct {
	User models.User `json:"user"`
}

// Signup handles new user registration.
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload services.SignupInput
	if err := decodeJSON(w, r, &payload); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	user, token, err := h.service.Signup(r.Context(), payload)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	writeData(w, http.StatusCreated, "User registered successfully", sessionResponse{User: user, Token: token})
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		h.errs.Write(w, r, err)
		return
	}

	user, token, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if apperror.IsUnauthorized(err) {
			log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		}
		h.errs.Write(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	writeData(w, http.StatusOK, "Login successful", sessionResponse{User: user, Token: token})
}

// Logout clears the session cookie. Tokens are stateless, so nothing is revoked server-side.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: h.sameSite(),
	})
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Logout successful"})
}

// GetMe returns the currently authenticated user.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFrom(r.Context())
	if !ok {
		h.errs.Write(w, r, apperror.NewUnauthorized("Not authorized", nil))
		return
	}
	writeData(w, http.StatusOK, "", userResponse{User: user})
}

func (h *UserHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.tokenTTL),
		MaxAge:   int(h.tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: h.sameSite(),
	})
}

// sameSite allows the cross-origin frontend to send the cookie in production,
// where it is always Secure.
func (h *UserHandler) sameSite() http.SameSite {
	if h.production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
