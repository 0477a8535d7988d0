package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/tlogandesigns/site-visitor-dash/internal/access"
	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/dto"
	"github.com/tlogandesigns/site-visitor-dash/internal/auth"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
)

type UserHandler struct {
	accounts *accounts.Service
	logger   *slog.Logger
}

func NewUserHandler(service *accounts.Service, logger *slog.Logger) *UserHandler {
	return &UserHandler{accounts: service, logger: logger}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list users"})
		return
	}

	out := make([]dto.UserDTO, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserDTO(&users[i]))
	}
	writeJSON(w, http.StatusOK, dto.ListResponse{Data: out, Total: len(out)})
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	role, _ := models.ParseRole(req.Role)
	in := accounts.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		Role:     role,
	}
	if id, err := uuid.Parse(req.AgentID); err == nil {
		in.AgentID = &id
	}

	user, err := h.accounts.CreateUser(r.Context(), actor, in)
	if err != nil {
		h.writeAccountError(w, r, err, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewUserDTO(user))
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "user")
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	in := accounts.UpdateUserInput{
		Email:    req.Email,
		Password: req.Password,
		IsActive: req.IsActive,
	}
	if req.Role != nil {
		role, _ := models.ParseRole(*req.Role)
		in.Role = &role
	}
	if req.AgentID != nil {
		agentID := uuid.Nil
		if *req.AgentID != "" {
			agentID = uuid.MustParse(*req.AgentID)
		}
		in.AgentID = &agentID
	}

	user, err := h.accounts.UpdateUser(r.Context(), actor, id, in)
	if err != nil {
		h.writeAccountError(w, r, err, "Failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, dto.NewUserDTO(user))
}

// Delete deactivates the account; users are never removed.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "user")
	if !ok {
		return
	}

	if err := h.accounts.DeactivateUser(r.Context(), actor, id); err != nil {
		h.writeAccountError(w, r, err, "Failed to deactivate user")
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "User deactivated"})
}

func (h *UserHandler) writeAccountError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, accounts.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
	case errors.Is(err, accounts.ErrAgentNotFound):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: map[string]string{"agent_id": "Agent not found"}})
	case errors.Is(err, accounts.ErrAgentRequired):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: map[string]string{"agent_id": err.Error()}})
	case errors.Is(err, auth.ErrPasswordTooShort):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: map[string]string{"password": err.Error()}})
	case errors.Is(err, accounts.ErrUserExists):
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Username already taken"})
	case errors.Is(err, accounts.ErrSelfDeactivate):
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, access.ErrForbidden):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Forbidden"})
	default:
		h.logger.Error(fallback, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: fallback})
	}
}
