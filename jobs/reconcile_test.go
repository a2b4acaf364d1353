package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mandi-erp/mandi/internal/fleet"
	"github.com/mandi-erp/mandi/internal/shared"
	"github.com/mandi-erp/mandi/internal/stock"
)

type fakeProducts struct {
	calls  int
	report stock.ReconcileReport
	err    error
}

func (f *fakeProducts) Reconcile(context.Context) (stock.ReconcileReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeVehicles struct {
	calls  int
	report fleet.ReconcileReport
}

func (f *fakeVehicles) Reconcile(context.Context) (fleet.ReconcileReport, error) {
	f.calls++
	return f.report, nil
}

type recordedMetrics struct {
	drift    map[string]int
	outcomes []string
}

func (m *recordedMetrics) ReconcileDrift(scope string, rows int) {
	if m.drift == nil {
		m.drift = map[string]int{}
	}
	m.drift[scope] += rows
}

func (m *recordedMetrics) JobRun(task, outcome string) {
	m.outcomes = append(m.outcomes, task+"="+outcome)
}

func newLocker(t *testing.T) *redislock.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client)
}

func reconcileTask(t *testing.T) *asynq.Task {
	t.Helper()
	task, err := NewStockReconcileTask(TriggerCron, time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return task
}

func TestReconcileTaskPayload(t *testing.T) {
	task := reconcileTask(t)
	assert.Equal(t, TaskStockReconcile, task.Type())

	var payload StockReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, TriggerCron, payload.Trigger)
}

func TestReconcileRunsBothScopes(t *testing.T) {
	products := &fakeProducts{report: stock.ReconcileReport{Checked: 4, Drifts: []stock.Drift{{ProductID: 1, Cached: decimal.NewFromInt(3)}}}}
	vehicles := &fakeVehicles{report: fleet.ReconcileReport{Checked: 6, Drifts: []fleet.Drift{{VehicleID: 1}, {VehicleID: 2}}}}
	metrics := &recordedMetrics{}
	h := NewReconcileHandler(products, vehicles, newLocker(t), time.Minute, metrics, nil)

	require.NoError(t, h.ProcessTask(context.Background(), reconcileTask(t)))
	assert.Equal(t, 1, products.calls)
	assert.Equal(t, 1, vehicles.calls)
	assert.Equal(t, map[string]int{"product": 1, "vehicle": 2}, metrics.drift)
	assert.Equal(t, []string{"stock:reconcile=ok"}, metrics.outcomes)

	res, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped, "lock is released after each run")
	assert.Equal(t, 4, res.ProductsTested)
	assert.Equal(t, 6, res.PairsTested)
}

func TestReconcileSkipsWhileLocked(t *testing.T) {
	locker := newLocker(t)
	held, err := locker.Obtain(context.Background(), shared.ReconcileLockKey, time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	products := &fakeProducts{}
	vehicles := &fakeVehicles{}
	metrics := &recordedMetrics{}
	h := NewReconcileHandler(products, vehicles, locker, time.Minute, metrics, nil)

	require.NoError(t, h.ProcessTask(context.Background(), reconcileTask(t)))
	assert.Zero(t, products.calls)
	assert.Zero(t, vehicles.calls)
	assert.Equal(t, []string{"stock:reconcile=skipped"}, metrics.outcomes)
}

func TestReconcileFailureIsRetried(t *testing.T) {
	boom := errors.New("boom")
	metrics := &recordedMetrics{}
	h := NewReconcileHandler(&fakeProducts{err: boom}, &fakeVehicles{}, nil, 0, metrics, nil)

	err := h.ProcessTask(context.Background(), reconcileTask(t))
	require.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
	assert.Equal(t, []string{"stock:reconcile=error"}, metrics.outcomes)
}

func TestReconcileBadPayloadSkipsRetry(t *testing.T) {
	h := NewReconcileHandler(&fakeProducts{}, &fakeVehicles{}, nil, 0, nil, nil)
	err := h.ProcessTask(context.Background(), asynq.NewTask(TaskStockReconcile, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t-1", Queue: QueueDefault, Type: task.Type()}, nil
}

func TestReconcileEndpointEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	router := chi.NewRouter()
	NewHandler(&Client{client: enq}, nil, nil).MountRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reconcile", nil))
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskStockReconcile, enq.tasks[0].Type())

	var payload StockReconcilePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, TriggerManual, payload.Trigger)
}

func TestReconcileEndpointToleratesDuplicate(t *testing.T) {
	router := chi.NewRouter()
	NewHandler(&Client{client: &fakeEnqueuer{err: asynq.ErrDuplicateTask}}, nil, nil).MountRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reconcile", nil))
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "already queued")
}

func TestHealthWithoutInspector(t *testing.T) {
	router := chi.NewRouter()
	NewHandler(nil, nil, nil).MountRoutes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/reconcile", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
