package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if !validEmail(body.Email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}
	if !validPassword(body.Password) {
		writeError(w, http.StatusBadRequest, "invalid_password")
		return
	}

	if _, err := h.service.Register(r.Context(), body.Email, body.Password); err != nil {
		if errors.Is(err, ErrAccountExists) {
			writeError(w, http.StatusConflict, "account_exists")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"message": "account created"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	token, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if !validEmail(body.Email) {
		writeError(w, http.StatusBadRequest, "invalid_email")
		return
	}

	if err := h.service.ForgotPassword(r.Context(), body.Email); err != nil {
		switch {
		case errors.Is(err, ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "account_not_found")
		case errors.Is(err, ErrDeliveryFailed):
			writeError(w, http.StatusBadGateway, "delivery_failed")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "reset link sent to email"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var body resetPasswordRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if strings.TrimSpace(body.Token) == "" {
		writeError(w, http.StatusBadRequest, "invalid_or_expired_token")
		return
	}
	if !validPassword(body.NewPassword) {
		writeError(w, http.StatusBadRequest, "invalid_password")
		return
	}

	if err := h.service.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrInvalidOrExpiredToken):
			writeError(w, http.StatusBadRequest, "invalid_or_expired_token")
		case errors.Is(err, ErrAccountNotFound):
			writeError(w, http.StatusNotFound, "account_not_found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password reset successful"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Account(r.Context(), SubjectID(r.Context()))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			writeError(w, http.StatusNotFound, "account_not_found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":    account.ID,
		"email": account.Email,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json_body")
		return false
	}

	return true
}

func validEmail(email string) bool {
	return emailRegex.MatchString(strings.ToLower(strings.TrimSpace(email)))
}

func validPassword(password string) bool {
	length := len(strings.TrimSpace(password))
	return length >= minPasswordLength && length <= maxPasswordLength
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind string) {
	writeJSON(w, status, map[string]string{"error": kind})
}
