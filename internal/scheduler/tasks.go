package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskDispatchSweep evaluates the retry policy for a request whose round
// window has elapsed.
const TaskDispatchSweep = "dispatch.sweep"

type DispatchSweepPayload struct {
	RequestID string `json:"requestId"`
}

func NewDispatchSweepTask(payload DispatchSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchSweep, data), nil
}

func ParseDispatchSweepPayload(task *asynq.Task) (DispatchSweepPayload, error) {
	var payload DispatchSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DispatchSweepPayload{}, err
	}
	return payload, nil
}
