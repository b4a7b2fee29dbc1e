// Package scheduler holds the asynq task definitions and redis plumbing
// shared by the webhook server (producer) and the dispatcher (consumer).
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskDispatchTenant asks the dispatcher to run one tenant's dispatch cycle
// immediately, outside the periodic loop. Enqueued when an operator presses
// the window-reopen button.
const TaskDispatchTenant = "dispatch.tenant"

// DispatchTenantPayload identifies the tenant to dispatch.
type DispatchTenantPayload struct {
	TenantID string `json:"tenantId"`
}

// NewDispatchTenantTask builds the task.
func NewDispatchTenantTask(payload DispatchTenantPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchTenant, data), nil
}

// ParseDispatchTenantPayload decodes the task payload.
func ParseDispatchTenantPayload(task *asynq.Task) (DispatchTenantPayload, error) {
	var payload DispatchTenantPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DispatchTenantPayload{}, err
	}
	return payload, nil
}
