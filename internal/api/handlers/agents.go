package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/dto"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/validation"
)

type AgentHandler struct {
	accounts *accounts.Service
}

func NewAgentHandler(service *accounts.Service) *AgentHandler {
	return &AgentHandler{accounts: service}
}

// List handles GET /agents; ?site= narrows to agents assigned there.
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.accounts.ListAgents(r.Context(), r.URL.Query().Get("site"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list agents"})
		return
	}

	out := make([]dto.AgentDTO, 0, len(agents))
	for i := range agents {
		out = append(out, dto.NewAgentDTO(&agents[i]))
	}
	writeJSON(w, http.StatusOK, dto.ListResponse{Data: out, Total: len(out)})
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	agent, err := h.accounts.CreateAgent(r.Context(), accounts.CreateAgentInput{
		Name:  validation.SanitizeString(req.Name),
		CRMID: req.CRMID,
		Email: req.Email,
		Phone: req.Phone,
		Sites: req.Sites,
	})
	if err != nil {
		switch err {
		case accounts.ErrAgentExists:
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Agent already exists"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create agent"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, dto.NewAgentDTO(agent))
}

// SetSites handles PUT /agents/{id}/sites and replaces all assignments.
func (h *AgentHandler) SetSites(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "agent")
	if !ok {
		return
	}

	var req dto.SetAgentSitesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	agent, err := h.accounts.SetAgentSites(r.Context(), id, req.Sites)
	if err != nil {
		if errors.Is(err, accounts.ErrAgentNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Agent not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update sites"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewAgentDTO(agent))
}
