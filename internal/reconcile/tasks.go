package reconcile

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskReconcileBatch = "reconcile.batch"

type ReconcileBatchPayload struct {
	BatchID   string `json:"batchId"`
	TotalRows int    `json:"totalRows"`
}

func NewReconcileBatchTask(payload ReconcileBatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileBatch, data), nil
}

func ParseReconcileBatchPayload(task *asynq.Task) (ReconcileBatchPayload, error) {
	var payload ReconcileBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReconcileBatchPayload{}, err
	}
	return payload, nil
}
