package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Queue: jobs.QueueDefault, Type: task.Type()}, nil
}

type fakeInspector struct {
	info *asynq.QueueInfo
}

func (f fakeInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return f.info, nil
}

func TestRunReconcileQueuesManualTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &JobsCLI{client: enq}
	var out bytes.Buffer

	code := c.Run(context.Background(), &out, []string{"reconcile"})

	require.Equal(t, 0, code)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, jobs.TaskStockReconcile, enq.tasks[0].Type())
	var payload jobs.StockReconcilePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, jobs.TriggerManual, payload.Trigger)
	require.Contains(t, out.String(), "id=t-1")
}

func TestRunReconcileReportsEnqueueFailure(t *testing.T) {
	c := &JobsCLI{client: &fakeEnqueuer{err: errors.New("redis down")}}
	var out bytes.Buffer

	require.Equal(t, 1, c.Run(context.Background(), &out, []string{"reconcile"}))
	require.Contains(t, out.String(), "redis down")
}

func TestRunStatsPrintsQueue(t *testing.T) {
	c := &JobsCLI{inspector: fakeInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Retry: 1}}}
	var out bytes.Buffer

	require.Equal(t, 0, c.Run(context.Background(), &out, []string{"stats"}))
	require.Contains(t, out.String(), "pending=3")
	require.Contains(t, out.String(), "retry=1")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	c := &JobsCLI{}
	var out bytes.Buffer

	require.Equal(t, 2, c.Run(context.Background(), &out, nil))
	require.Equal(t, 2, c.Run(context.Background(), &out, []string{"purge"}))
}
