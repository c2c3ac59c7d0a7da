package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"cropconnect/db"
	"cropconnect/middleware"
	"cropconnect/models"
	"cropconnect/utils"
)

// Revoker records logged-out token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

type Handler struct {
	users   UserStore
	tokens  *middleware.Auth
	revoker Revoker
}

func NewHandler(users UserStore, tokens *middleware.Auth, revoker Revoker) *Handler {
	return &Handler{users: users, tokens: tokens, revoker: revoker}
}

type registerInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Phone    string         `json:"phone"`
	Password string         `json:"password"`
	Role     models.Role    `json:"role"`
	Address  models.Address `json:"address"`
}

func (in registerInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return models.FieldError("name", "is required")
	case in.Email == "":
		return models.FieldError("email", "is required")
	case len(in.Password) < 6:
		return models.FieldError("password", "must be at least 6 characters")
	case !in.Role.Valid():
		return models.FieldError("role", "must be farmer, buyer, worker or tractor_owner")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return models.FieldError("email", "is invalid")
	}
	return nil
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in registerInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.validate(); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("[auth] hash password: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	now := time.Now()
	user := models.User{
		UserID:    utils.GetUUID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  string(hash),
		Role:      in.Role,
		Address:   in.Address,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: now,
	}
	if err := h.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			utils.RespondWithError(w, http.StatusConflict, "User already exists")
			return
		}
		log.Printf("[auth] create user: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	h.respondWithToken(w, http.StatusCreated, user)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	if in.Email == "" || in.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.users.ByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			log.Printf("[auth] lookup %s: %v", in.Email, err)
		}
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	user.LastLogin = time.Now()
	if err := h.users.TouchLogin(ctx, user.UserID, user.LastLogin); err != nil {
		log.Printf("[auth] touch login %s: %v", user.UserID, err)
	}
	h.respondWithToken(w, http.StatusOK, user)
}

func (h *Handler) respondWithToken(w http.ResponseWriter, status int, user models.User) {
	token, _, err := h.tokens.IssueToken(user)
	if err != nil {
		log.Printf("[auth] issue token: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	utils.RespondWithJSON(w, status, models.AuthResponse{Success: true, User: user, Token: token})
}

// Logout revokes the presented token until it would have expired anyway.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	jti, exp := middleware.ClaimsFromRequest(r)
	if jti != "" && h.revoker != nil {
		if err := h.revoker.Revoke(ctx, jti, time.Until(exp)); err != nil {
			log.Printf("[auth] revoke %s: %v", jti, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to invalidate session")
			return
		}
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Logged out successfully"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user, err := h.users.ByID(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("[auth] me: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "user": user})
}

// UpdateProfile edits name, phone and address. The role is fixed at registration.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var in struct {
		Name    *string         `json:"name"`
		Phone   *string         `json:"phone"`
		Role    models.Role     `json:"role"`
		Address *models.Address `json:"address"`
	}
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	user, err := h.users.ByID(ctx, utils.GetUserIDFromRequest(r))
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if in.Role != "" && in.Role != user.Role {
		utils.RespondWithError(w, http.StatusBadRequest, "Role cannot be changed")
		return
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "name is required")
			return
		}
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		user.Phone = *in.Phone
	}
	if in.Address != nil {
		user.Address = *in.Address
	}
	user.UpdatedAt = time.Now()

	if err := h.users.UpdateProfile(ctx, user); err != nil {
		log.Printf("[auth] update profile %s: %v", user.UserID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "user": user})
}
