package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/tlogandesigns/site-visitor-dash/internal/api/dto"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"github.com/tlogandesigns/site-visitor-dash/internal/tasks"
)

type LeadHandler struct {
	leads       *leads.Service
	asynqClient *asynq.Client
	logger      *slog.Logger
}

// NewLeadHandler serves the lead endpoints. asynqClient may be nil, in which
// case manual resync is unavailable.
func NewLeadHandler(service *leads.Service, asynqClient *asynq.Client, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{leads: service, asynqClient: asynqClient, logger: logger}
}

// List handles GET /leads with filters, sorting and pagination from the
// query string.
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	params, err := leads.ParseListParams(r.URL.Query())
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to list leads")
		return
	}

	page, err := h.leads.List(r.Context(), actor, params)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to list leads")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req dto.CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	result, err := h.leads.Create(r.Context(), actor, req.ToInput())
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to create lead")
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreateLeadResponse{
		Lead:      result.Lead,
		Synced:    result.Sync.Synced,
		SyncError: result.Sync.ErrorString(),
	})
}

// Get returns the lead with its notes, newest first.
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	lead, err := h.leads.Get(r.Context(), actor, id)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to get lead")
		return
	}

	notes, err := h.leads.Notes(r.Context(), actor, id)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to get lead")
		return
	}

	writeJSON(w, http.StatusOK, dto.LeadDetailResponse{Lead: lead, Notes: notes})
}

func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	var req dto.UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	lead, err := h.leads.Update(r.Context(), actor, id, req.ToInput())
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to update lead")
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	if err := h.leads.Delete(r.Context(), actor, id); err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LeadHandler) Notes(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	notes, err := h.leads.Notes(r.Context(), actor, id)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to list notes")
		return
	}

	writeJSON(w, http.StatusOK, dto.ListResponse{Data: notes, Total: len(notes)})
}

func (h *LeadHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	var req dto.AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	result, err := h.leads.AddNote(r.Context(), actor, id, req.Note)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to add note")
		return
	}

	writeJSON(w, http.StatusCreated, dto.NoteResponse{
		Note:      result.Note,
		Synced:    result.Sync.Synced,
		SyncError: result.Sync.ErrorString(),
	})
}

// Resync queues a single manual re-delivery of the lead to the CRM.
func (h *LeadHandler) Resync(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "lead")
	if !ok {
		return
	}

	if h.asynqClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Job queue is not configured"})
		return
	}

	if _, err := h.leads.Get(r.Context(), actor, id); err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to resync lead")
		return
	}

	task, err := tasks.NewLeadResyncTask(tasks.LeadResyncPayload{LeadID: id, RequestedBy: actor.ID})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
		return
	}

	info, err := h.asynqClient.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "A resync for this lead is already queued"})
			return
		}
		h.logger.Error("failed to enqueue resync", "lead_id", id, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Failed to queue resync"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.ResyncResponse{Message: "Resync queued", TaskID: info.ID})
}

// Stats handles GET /stats; it accepts the same filters as List.
func (h *LeadHandler) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	filter, err := leads.ParseFilter(r.URL.Query())
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to load stats")
		return
	}

	stats, err := h.leads.Stats(r.Context(), actor, filter)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Sites lists the sites visible to the caller.
func (h *LeadHandler) Sites(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	sites, err := h.leads.Sites(r.Context(), actor)
	if err != nil {
		writeLeadError(w, r, h.logger, err, "Failed to list sites")
		return
	}
	if sites == nil {
		sites = []string{}
	}

	writeJSON(w, http.StatusOK, dto.ListResponse{Data: sites, Total: len(sites)})
}
