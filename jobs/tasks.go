package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile rebuilds cached product and vehicle stock from the
	// movement logs.
	TaskStockReconcile = "stock:reconcile"
)

// Reconcile triggers.
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// StockReconcilePayload records why a reconciliation was queued.
type StockReconcilePayload struct {
	Trigger     string    `json:"trigger"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewStockReconcileTask constructs a reconcile task.
func NewStockReconcileTask(trigger string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockReconcilePayload{Trigger: trigger, RequestedAt: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
