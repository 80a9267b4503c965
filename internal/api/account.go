package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/companionlabs/companion/internal/domain"
	"github.com/companionlabs/companion/internal/identity"
	"github.com/companionlabs/companion/internal/persona"
	"github.com/companionlabs/companion/internal/register"
	"github.com/companionlabs/companion/internal/store"
)

// usernamePattern constrains usernames to 3-20 word characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

// AccountHandler handles registration, validation, and preference endpoints.
type AccountHandler struct {
	*Handler
	homeCountry string
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(base *Handler, homeCountry string) *AccountHandler {
	return &AccountHandler{Handler: base, homeCountry: strings.ToUpper(homeCountry)}
}

// RegisterRoutes registers account routes.
func (h *AccountHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/validate_email", h.ValidateEmail)
	r.Post("/validate_username", h.ValidateUsername)
	r.Post("/update_preferences", h.UpdatePreferences)
	r.Get("/get_preferences", h.GetPreferences)
	r.Get("/api/me", h.GetMe)
}

// registerRequest is the registration submission body. Location fields depend
// on the country branch taken in the signup flow.
type registerRequest struct {
	Email       string `json:"email"`
	UserName    string `json:"userName"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	ZipCode     string `json:"zipCode"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

// Register upgrades the caller's visitor row into a registered account.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.UserName = strings.TrimSpace(req.UserName)
	if req.Email == "" || req.UserName == "" || req.FirstName == "" {
		JSON(w, http.StatusOK, register.RegisterReply{Success: false, Message: "Missing required fields."})
		return
	}
	if !register.CheckPassword(req.Password).Satisfied() {
		JSON(w, http.StatusOK, register.RegisterReply{
			Success: false,
			Message: "Password must be at least 8 characters long, contain a number, an uppercase letter, a lowercase letter, and a special character.",
		})
		return
	}

	ctx := r.Context()
	emailTaken, err := h.repo.EmailExists(ctx, req.Email)
	if err != nil {
		slog.Error("Failed to check email", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}
	userTaken, err := h.repo.UsernameExists(ctx, req.UserName)
	if err != nil {
		slog.Error("Failed to check username", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if emailTaken || userTaken {
		JSON(w, http.StatusOK, register.RegisterReply{Success: false, Message: "Username or email already exists."})
		return
	}

	user, err := h.repo.GetUser(ctx, userID)
	if err != nil || user == nil {
		slog.Error("Failed to load user for registration", "error", err, "user_id", userID)
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}
	firstLogin := !user.IsRegistered()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	reg := store.Registration{
		Email:        req.Email,
		Username:     req.UserName,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		DateOfBirth:  req.DateOfBirth,
		Gender:       req.Gender,
		ZipCode:      req.ZipCode,
		City:         req.City,
		State:        req.State,
		Country:      strings.ToUpper(req.Country),
	}
	if err := h.repo.CompleteRegistration(ctx, userID, reg); err != nil {
		slog.Error("Failed to complete registration", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "registration failed")
		return
	}

	slog.Info("Registration completed", "user_id", userID, "username", req.UserName)
	JSON(w, http.StatusOK, register.RegisterReply{Success: true, FirstLogin: firstLogin})
}

// ValidateEmail reports whether an email is well-formed and not yet taken.
// The response shape matches the blur-time validation the signup form runs.
func (h *AccountHandler) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form body")
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))

	valid := email != ""
	if valid {
		if _, err := mail.ParseAddress(email); err != nil {
			valid = false
		}
	}
	if valid {
		taken, err := h.repo.EmailExists(r.Context(), email)
		if err != nil {
			slog.Error("Failed to check email", "error", err)
			Error(w, http.StatusInternalServerError, "validation failed")
			return
		}
		valid = !taken
	}

	JSON(w, http.StatusOK, map[string]bool{"isValid": valid})
}

// ValidateUsername reports whether a username is well-formed and not yet taken.
func (h *AccountHandler) ValidateUsername(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form body")
		return
	}
	userName := strings.TrimSpace(r.PostFormValue("userName"))

	valid := usernamePattern.MatchString(userName)
	if valid {
		taken, err := h.repo.UsernameExists(r.Context(), userName)
		if err != nil {
			slog.Error("Failed to check username", "error", err)
			Error(w, http.StatusInternalServerError, "validation failed")
			return
		}
		valid = !taken
	}

	JSON(w, http.StatusOK, map[string]bool{"isValid": valid})
}

// UpdatePreferences applies a sparse settings update. A new password must be
// accompanied by the correct current password and is stored hashed.
func (h *AccountHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(fields) == 0 {
		JSON(w, http.StatusOK, map[string]string{"message": "Nothing to update."})
		return
	}

	ctx := r.Context()
	if newPassword, ok := fields["newPassword"]; ok {
		user, err := h.repo.GetUser(ctx, userID)
		if err != nil || user == nil {
			Error(w, http.StatusUnauthorized, "user not found")
			return
		}
		current := fields["currentPassword"]
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
			Error(w, http.StatusForbidden, "Current password is incorrect.")
			return
		}
		if !register.CheckPassword(newPassword).Satisfied() {
			Error(w, http.StatusBadRequest, "New password does not meet requirements.")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			slog.Error("Failed to hash password", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "update failed")
			return
		}
		delete(fields, "newPassword")
		delete(fields, "currentPassword")
		fields["passwordHash"] = string(hash)
	}
	delete(fields, "currentPassword")

	if mode, ok := fields["UImode"]; ok {
		if domain.UIMode(mode) != domain.UIModeFancy && domain.UIMode(mode) != domain.UIModeSimple {
			Error(w, http.StatusBadRequest, "UImode must be fancy or simple.")
			return
		}
	}
	if p, ok := fields["CurrentPersona"]; ok {
		if !persona.Valid(persona.ID(p)) {
			Error(w, http.StatusBadRequest, "Unknown persona.")
			return
		}
	}

	if err := h.repo.UpdatePreferences(ctx, userID, fields); err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyPreferenceValue), errors.Is(err, store.ErrUnknownPreferenceKey):
			Error(w, http.StatusBadRequest, err.Error())
		default:
			slog.Error("Failed to update preferences", "error", err, "user_id", userID)
			Error(w, http.StatusInternalServerError, "update failed")
		}
		return
	}

	JSON(w, http.StatusOK, map[string]string{"message": "Preferences updated."})
}

// GetPreferences returns the caller's current settings.
func (h *AccountHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"UImode":         string(user.UIMode),
		"CurrentPersona": user.CurrentPersona,
		"firstName":      user.FirstName,
		"lastName":       user.LastName,
		"email":          user.Email,
		"zipCode":        user.ZipCode,
		"timeZone":       user.TimeZone,
	})
}

// GetMe returns the render-time profile snapshot for the current user.
func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil || user == nil {
		Error(w, http.StatusUnauthorized, "user not found")
		return
	}

	avatar := persona.AvatarURL(persona.ID(user.CurrentPersona), user.UIMode)
	JSON(w, http.StatusOK, user.Snapshot(avatar))
}
