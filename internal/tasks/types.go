package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeLeadResync    = "crm:lead_resync"
	TypeBacklogReport = "crm:backlog_report"
)

// LeadResyncPayload asks for one more new_lead delivery of a lead.
type LeadResyncPayload struct {
	LeadID      uuid.UUID `json:"lead_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// NewLeadResyncTask never retries: a failed resync is recorded on the lead
// and an admin decides whether to try again. The task ID is derived from the
// lead, so a second request while one is pending fails with
// asynq.ErrTaskIDConflict.
func NewLeadResyncTask(payload LeadResyncPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeLeadResync, data,
		asynq.MaxRetry(0),
		asynq.Timeout(time.Minute),
		asynq.TaskID(LeadResyncTaskID(payload.LeadID)),
	), nil
}

func LeadResyncTaskID(leadID uuid.UUID) string {
	return "lead-resync:" + leadID.String()
}

// NewBacklogReportTask carries no payload; the handler reads the store.
func NewBacklogReportTask() *asynq.Task {
	return asynq.NewTask(TypeBacklogReport, nil, asynq.MaxRetry(0))
}
