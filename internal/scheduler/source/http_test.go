package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mocks "github.com/panda-miner/internal/mock"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
)

func newTestHTTPSource(opts *HTTPOptions) *HTTPSource {
	if opts == nil {
		opts = DefaultHTTPOptions()
	}
	return NewHTTPSourceWithOptions("api", opts, nil)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, HTTPTaskResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp HTTPTaskResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func TestHTTPSource_Submit(t *testing.T) {
	repo := &mocks.MockTaskRepository{}
	repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *model.MiningTask) bool {
		return task.Status == model.TaskStatusRunning && task.BeginTime != nil
	})).Return(nil)

	src := newTestHTTPSource(nil)
	src.SetRepositories(repo, nil)

	rec, resp := do(t, src.Handler(), http.MethodPost, "/tasks",
		`{"dataset_key":"retail/retail.csv.gz","params":{"profile":"quick","max_row_noise":0.1},"user_name":"alice","metadata":{"origin":"test"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.TaskID)

	require.Len(t, src.Tasks(), 1)
	event := <-src.Tasks()
	assert.Equal(t, resp.TaskID, event.Task.TaskUUID)
	assert.Equal(t, model.FormatMatrix, event.Task.Format)
	assert.Equal(t, "alice", event.Task.UserName)
	assert.InDelta(t, 0.1, event.Task.Params.MaxRowNoise, 1e-9)
	assert.Equal(t, 1, event.Priority)
	assert.Equal(t, "test", event.GetMetadata("origin"))
	repo.AssertExpectations(t)
}

func TestHTTPSource_SubmitKeepsClientUUIDAndPriority(t *testing.T) {
	src := newTestHTTPSource(nil)

	rec, resp := do(t, src.Handler(), http.MethodPost, "/tasks",
		`{"tid":"job-42","dataset_key":"a.dat","format":"basket","priority":3,"params":{"max_k":100}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "job-42", resp.TaskID)

	event := <-src.Tasks()
	assert.Equal(t, 3, event.Priority)
	assert.Equal(t, model.FormatBasket, event.Task.Format)
}

func TestHTTPSource_SubmitRejected(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
		msg    string
	}{
		{"invalid json", http.MethodPost, `{"dataset_key":`, http.StatusBadRequest, "invalid JSON"},
		{"missing dataset", http.MethodPost, `{"params":{}}`, http.StatusBadRequest, "dataset_key is required"},
		{"noise out of range", http.MethodPost, `{"dataset_key":"a.dat","params":{"max_row_noise":1.5}}`, http.StatusBadRequest, "noise"},
		{"unknown profile", http.MethodPost, `{"dataset_key":"a.dat","params":{"profile":"exhaustive"}}`, http.StatusBadRequest, "unknown profile"},
		{"unknown cost model", http.MethodPost, `{"dataset_key":"a.dat","params":{"cost_model":"mdl"}}`, http.StatusBadRequest, "mdl"},
		{"wrong method", http.MethodPut, `{}`, http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestHTTPSource(nil)
			rec, resp := do(t, src.Handler(), tt.method, "/tasks", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, resp.Message, tt.msg)
			assert.Empty(t, src.Tasks())
		})
	}
}

func TestHTTPSource_BodyTooLarge(t *testing.T) {
	opts := DefaultHTTPOptions()
	opts.MaxBodySize = 16
	src := newTestHTTPSource(opts)

	rec, _ := do(t, src.Handler(), http.MethodPost, "/tasks",
		`{"dataset_key":"`+strings.Repeat("x", 64)+`.dat"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHTTPSource_QueueFull(t *testing.T) {
	opts := DefaultHTTPOptions()
	opts.QueueSize = 1
	src := newTestHTTPSource(opts)
	h := src.Handler()

	rec, _ := do(t, h, http.MethodPost, "/tasks", `{"dataset_key":"a.dat"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, resp := do(t, h, http.MethodPost, "/tasks", `{"dataset_key":"b.dat"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
	assert.Len(t, src.Tasks(), 1)
}

func TestHTTPSource_PersistFailure(t *testing.T) {
	repo := &mocks.MockTaskRepository{}
	repo.On("CreateTask", mock.Anything, mock.Anything).Return(apperrors.New(apperrors.CodeDatabaseError, "down"))

	src := newTestHTTPSource(nil)
	src.SetRepositories(repo, nil)

	rec, _ := do(t, src.Handler(), http.MethodPost, "/tasks", `{"dataset_key":"a.dat"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, src.Tasks())
}

func TestHTTPSource_GetTask(t *testing.T) {
	task := model.NewMiningTask("a.dat", model.FormatBasket, model.MiningParams{})
	task.TaskUUID = "job-1"
	task.Status = model.TaskStatusCompleted

	repo := &mocks.MockTaskRepository{}
	repo.On("GetTaskByUUID", mock.Anything, "job-1").Return(task, nil)
	repo.On("GetTaskByUUID", mock.Anything, "missing").Return(nil, apperrors.New(apperrors.CodeNotFound, "task not found"))
	repo.On("GetTaskByUUID", mock.Anything, "broken").Return(nil, apperrors.New(apperrors.CodeDatabaseError, "down"))

	src := newTestHTTPSource(nil)
	src.SetRepositories(repo, nil)
	h := src.Handler()

	rec, _ := do(t, h, http.MethodGet, "/tasks/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got model.MiningTask
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "job-1", got.TaskUUID)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)

	rec, resp := do(t, h, http.MethodGet, "/tasks/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "task not found", resp.Message)

	rec, _ = do(t, h, http.MethodGet, "/tasks/broken", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHTTPSource_GetResult(t *testing.T) {
	results := &mocks.MockResultRepository{}
	results.On("GetResultByTaskUUID", mock.Anything, "job-1").Return(&model.MiningResult{
		TaskUUID:   "job-1",
		Patterns:   []model.PatternResult{{Rank: 1, Items: []string{"a", "b"}, Transactions: []int{0, 1}, Area: 4}},
		StopReason: "no_improvement",
	}, nil)

	src := newTestHTTPSource(nil)
	h := src.Handler()

	rec, _ := do(t, h, http.MethodGet, "/tasks/job-1/result", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	src.SetRepositories(nil, results)
	rec, _ = do(t, h, http.MethodGet, "/tasks/job-1/result", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got model.MiningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Patterns, 1)
	assert.Equal(t, []string{"a", "b"}, got.Patterns[0].Items)

	rec, _ = do(t, h, http.MethodGet, "/tasks/job-1", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHTTPSource_Nack(t *testing.T) {
	repo := &mocks.MockTaskRepository{}
	repo.On("UpdateStatusWithInfo", mock.Anything, int64(12), model.TaskStatusFailed, "not processed: scheduler stopped").Return(nil)

	src := newTestHTTPSource(nil)
	task := model.NewMiningTask("a.dat", model.FormatBasket, model.MiningParams{})
	task.ID = 12
	event := NewTaskEvent(task, SourceTypeHTTP, "api")

	require.NoError(t, src.Nack(context.Background(), event, "scheduler stopped"))
	repo.AssertNotCalled(t, "UpdateStatusWithInfo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	src.SetRepositories(repo, nil)
	require.NoError(t, src.Nack(context.Background(), event, "scheduler stopped"))
	require.NoError(t, src.Ack(context.Background(), event))
	repo.AssertExpectations(t)
}

func TestHTTPSource_Health(t *testing.T) {
	src := newTestHTTPSource(nil)
	rec, _ := do(t, src.Handler(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "api", body["source"])
}

func TestHTTPSource_StartStop(t *testing.T) {
	opts := DefaultHTTPOptions()
	opts.ListenAddr = "127.0.0.1:0"
	opts.Path = "jobs/"
	src := newTestHTTPSource(opts)

	assert.Error(t, src.HealthCheck(context.Background()))
	require.NoError(t, src.Start(context.Background()))
	require.NotEmpty(t, src.Addr())
	assert.NoError(t, src.HealthCheck(context.Background()))

	resp, err := http.Post("http://"+src.Addr()+"/jobs", "application/json", strings.NewReader(`{"dataset_key":"a.dat"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool { return len(src.Tasks()) == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, src.Stop())
	assert.Empty(t, src.Tasks())
	assert.Error(t, src.HealthCheck(context.Background()))
}
