package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/panda-miner/internal/miner"
	"github.com/panda-miner/internal/repository"
	apperrors "github.com/panda-miner/pkg/errors"
	"github.com/panda-miner/pkg/model"
	"github.com/panda-miner/pkg/utils"
)

// SourceTypeHTTP is the source type constant for HTTP source.
const SourceTypeHTTP SourceType = "http"

func init() {
	Register(SourceTypeHTTP, NewHTTPSource)
}

// HTTPOptions holds HTTP source specific configuration.
type HTTPOptions struct {
	// ListenAddr is the address to listen on (e.g., ":8080").
	ListenAddr string

	// Path is the HTTP path for submitting tasks.
	Path string

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	WriteTimeout time.Duration

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// QueueSize bounds the number of accepted tasks not yet handed over.
	QueueSize int
}

// DefaultHTTPOptions returns the default options.
func DefaultHTTPOptions() *HTTPOptions {
	return &HTTPOptions{
		ListenAddr:   ":8080",
		Path:         "/tasks",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MaxBodySize:  1 << 20,
		QueueSize:    100,
	}
}

// HTTPTaskRequest is the body of a task submission.
type HTTPTaskRequest struct {
	TaskUUID   string             `json:"tid,omitempty"`
	DatasetKey string             `json:"dataset_key"`
	Format     string             `json:"format,omitempty"`
	Params     model.MiningParams `json:"params"`
	UserName   string             `json:"user_name,omitempty"`
	Priority   int                `json:"priority,omitempty"`
	Metadata   map[string]string  `json:"metadata,omitempty"`
}

// HTTPTaskResponse represents the response for a task submission.
type HTTPTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// HTTPSource accepts mining tasks over HTTP. When a task repository is
// configured, accepted tasks are persisted as already running so the
// database source does not pick them up again, and their status and
// results can be queried back.
type HTTPSource struct {
	name    string
	options *HTTPOptions
	logger  utils.Logger

	taskRepo   repository.TaskRepository
	resultRepo repository.ResultRepository

	server   *http.Server
	listener net.Listener
	taskChan chan *TaskEvent

	mu      sync.RWMutex
	running bool
}

// NewHTTPSource creates a new HTTP source from configuration.
func NewHTTPSource(cfg *SourceConfig, deps Deps) (TaskSource, error) {
	defaults := DefaultHTTPOptions()
	opts := &HTTPOptions{
		ListenAddr:   cfg.GetString("listen_addr", defaults.ListenAddr),
		Path:         cfg.GetString("path", defaults.Path),
		ReadTimeout:  cfg.GetDuration("read_timeout", defaults.ReadTimeout),
		WriteTimeout: cfg.GetDuration("write_timeout", defaults.WriteTimeout),
		MaxBodySize:  int64(cfg.GetInt("max_body_size", int(defaults.MaxBodySize))),
		QueueSize:    cfg.GetInt("queue_size", defaults.QueueSize),
	}

	s := NewHTTPSourceWithOptions(cfg.Name, opts, deps.logger())
	s.taskRepo = deps.Tasks
	s.resultRepo = deps.Results
	return s, nil
}

// NewHTTPSourceWithOptions creates a new HTTP source with explicit options.
func NewHTTPSourceWithOptions(name string, opts *HTTPOptions, logger utils.Logger) *HTTPSource {
	if opts == nil {
		opts = DefaultHTTPOptions()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	opts.Path = "/" + strings.Trim(opts.Path, "/")
	if logger == nil {
		logger = &utils.NullLogger{}
	}

	return &HTTPSource{
		name:     name,
		options:  opts,
		logger:   logger,
		taskChan: make(chan *TaskEvent, opts.QueueSize),
	}
}

// SetRepositories enables persistence of submitted tasks and the status
// endpoints.
func (s *HTTPSource) SetRepositories(taskRepo repository.TaskRepository, resultRepo repository.ResultRepository) {
	s.taskRepo = taskRepo
	s.resultRepo = resultRepo
}

// Type returns the source type.
func (s *HTTPSource) Type() SourceType {
	return SourceTypeHTTP
}

// Name returns the source instance name.
func (s *HTTPSource) Name() string {
	return s.name
}

// Handler returns the HTTP handler serving the source endpoints.
func (s *HTTPSource) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+s.options.Path, s.handleSubmit)
	mux.HandleFunc("GET "+s.options.Path+"/{tid}", s.handleGetTask)
	mux.HandleFunc("GET "+s.options.Path+"/{tid}/result", s.handleGetResult)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Start binds the listen address and serves in the background.
func (s *HTTPSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	ln, err := net.Listen("tcp", s.options.ListenAddr)
	if err != nil {
		return fmt.Errorf("http source %s: failed to listen on %s: %w", s.name, s.options.ListenAddr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
	}
	s.running = true

	s.logger.Info("HTTP source %s listening on %s%s", s.name, ln.Addr(), s.options.Path)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP source %s server error: %v", s.name, err)
		}
	}()

	return nil
}

// Addr returns the bound address once started.
func (s *HTTPSource) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop stops the HTTP server and fails accepted tasks not yet handed over.
func (s *HTTPSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	server := s.server
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(ctx)

	for {
		select {
		case event := <-s.taskChan:
			_ = s.Nack(ctx, event, "source stopped")
		default:
			return err
		}
	}
}

// Tasks returns the task event channel.
func (s *HTTPSource) Tasks() <-chan *TaskEvent {
	return s.taskChan
}

// Ack acknowledges a processed task. The client polls for the outcome, so
// there is nothing to send.
func (s *HTTPSource) Ack(ctx context.Context, event *TaskEvent) error {
	s.logger.Debug("HTTP source %s acked task %s", s.name, event.ID)
	return nil
}

// Nack marks a persisted task failed. The submitter must resubmit it.
func (s *HTTPSource) Nack(ctx context.Context, event *TaskEvent, reason string) error {
	s.logger.Warn("HTTP source %s nacked task %s: %s", s.name, event.ID, reason)
	if s.taskRepo == nil || event.Task == nil || event.Task.ID == 0 {
		return nil
	}
	return s.taskRepo.UpdateStatusWithInfo(ctx, event.Task.ID, model.TaskStatusFailed, "not processed: "+reason)
}

// HealthCheck checks if the HTTP server is running.
func (s *HTTPSource) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return fmt.Errorf("HTTP source %s is not running", s.name)
	}
	return nil
}

func (s *HTTPSource) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxBodySize)

	var req HTTPTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.sendError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	task, err := s.newTask(&req)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if len(s.taskChan) == cap(s.taskChan) {
		s.sendError(w, http.StatusServiceUnavailable, "task queue is full")
		return
	}

	if s.taskRepo != nil {
		if err := s.taskRepo.CreateTask(r.Context(), task); err != nil {
			s.logger.Error("HTTP source %s failed to persist task %s: %v", s.name, task.TaskUUID, err)
			s.sendError(w, http.StatusInternalServerError, "failed to persist task")
			return
		}
	}

	event := NewTaskEvent(task, SourceTypeHTTP, s.name)
	if req.Priority > 0 {
		event.Priority = req.Priority
	}
	for k, v := range req.Metadata {
		event.WithMetadata(k, v)
	}

	select {
	case s.taskChan <- event:
		s.logger.Debug("HTTP source %s received task %s", s.name, task.TaskUUID)
		s.sendJSON(w, http.StatusAccepted, HTTPTaskResponse{Success: true, TaskID: task.TaskUUID, Message: "task accepted"})
	default:
		_ = s.Nack(r.Context(), event, "task queue full")
		s.sendError(w, http.StatusServiceUnavailable, "task queue is full")
	}
}

// newTask validates the request and builds a task marked as running.
func (s *HTTPSource) newTask(req *HTTPTaskRequest) (*model.MiningTask, error) {
	if strings.TrimSpace(req.DatasetKey) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "dataset_key is required")
	}
	if _, err := miner.Resolve(req.Params, model.MiningParams{}); err != nil {
		return nil, err
	}

	format := model.ParseDatasetFormat(req.Format)
	if req.Format == "" {
		format = model.ParseDatasetFormat(datasetExt(req.DatasetKey))
	}

	task := model.NewMiningTask(req.DatasetKey, format, req.Params)
	if req.TaskUUID != "" {
		task.TaskUUID = req.TaskUUID
	}
	task.UserName = req.UserName
	now := time.Now()
	task.Status = model.TaskStatusRunning
	task.BeginTime = &now
	return task, nil
}

// datasetExt returns the extension of key ignoring a compression suffix.
func datasetExt(key string) string {
	key = strings.TrimSuffix(strings.TrimSuffix(key, ".gz"), ".zst")
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return ""
}

func (s *HTTPSource) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if s.taskRepo == nil {
		s.sendError(w, http.StatusNotImplemented, "task lookup is not enabled")
		return
	}
	task, err := s.taskRepo.GetTaskByUUID(r.Context(), r.PathValue("tid"))
	if err != nil {
		s.sendLookupError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, task)
}

func (s *HTTPSource) handleGetResult(w http.ResponseWriter, r *http.Request) {
	if s.resultRepo == nil {
		s.sendError(w, http.StatusNotImplemented, "result lookup is not enabled")
		return
	}
	result, err := s.resultRepo.GetResultByTaskUUID(r.Context(), r.PathValue("tid"))
	if err != nil {
		s.sendLookupError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, result)
}

func (s *HTTPSource) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"source": s.name,
		"type":   string(SourceTypeHTTP),
		"queued": len(s.taskChan),
	})
}

func (s *HTTPSource) sendLookupError(w http.ResponseWriter, err error) {
	if apperrors.IsNotFound(err) {
		s.sendError(w, http.StatusNotFound, apperrors.GetErrorMessage(err))
		return
	}
	s.logger.Error("HTTP source %s lookup failed: %v", s.name, err)
	s.sendError(w, http.StatusInternalServerError, "lookup failed")
}

func (s *HTTPSource) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, HTTPTaskResponse{Success: false, Message: message})
}

func (s *HTTPSource) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
