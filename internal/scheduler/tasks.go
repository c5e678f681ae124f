package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskLeadContact = "lead.contact"

type LeadContactPayload struct {
	CRMLeadID int64 `json:"crmLeadId"`
}

func NewLeadContactTask(payload LeadContactPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLeadContact, data), nil
}

func ParseLeadContactPayload(task *asynq.Task) (LeadContactPayload, error) {
	var payload LeadContactPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LeadContactPayload{}, err
	}
	return payload, nil
}
