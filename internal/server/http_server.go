package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"edgesim/internal/common"
	"edgesim/internal/dag"
	"edgesim/internal/machine"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MachineSource 服务器读取机器状态的接口
//
// 快照读取不加锁：引擎对同一台机器的 Allocate/Release 必须与服务器的读取串行化，
// 例如在同一个事件循环中处理 HTTP 请求，或在仿真暂停时查询。
type MachineSource interface {
	Get(id int) (*machine.Machine, bool)
	Machines() []*machine.Machine
	Snapshots() []machine.Snapshot
}

// GraphGenerator 服务器生成 DAG 的接口
type GraphGenerator interface {
	Generate(p dag.Params) (*dag.Graph, error)
}

// requestIDHeader 请求标识头，客户端未提供时由服务器生成
const requestIDHeader = "X-Request-ID"

// HTTPServer 仿真核心的只读检查接口
type HTTPServer struct {
	server   *http.Server
	logger   *zap.Logger
	metrics  *common.Metrics
	machines MachineSource

	// 生成器不支持并发，请求之间串行化
	genMu     sync.Mutex
	generator GraphGenerator
}

// NewHTTPServer 创建新的 HTTP 服务器，machines 的并发约束见 MachineSource
func NewHTTPServer(machines MachineSource, generator GraphGenerator, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = common.ComponentLogger("http-server")
	}
	return &HTTPServer{
		machines:  machines,
		generator: generator,
		logger:    logger,
		metrics:   common.NewMetrics(),
	}
}

// Handler 构建路由
func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.loggingMiddleware)

	v1 := router.PathPrefix("/ws/v1").Subrouter()
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	cluster := v1.PathPrefix("/cluster").Subrouter()
	cluster.HandleFunc("/machines", s.handleMachines).Methods(http.MethodGet)
	cluster.HandleFunc("/machines/{id:[0-9]+}", s.handleMachine).Methods(http.MethodGet)

	v1.HandleFunc("/dag/generate", s.handleGenerate).Methods(http.MethodPost)

	// 预检请求不会匹配任何路由，CORS 放在路由外层
	return s.corsMiddleware(router)
}

// Start 在后台启动 HTTP 服务器
func (s *HTTPServer) Start(address string, port int) error {
	if s.server != nil {
		return fmt.Errorf("http server already started on %s", s.server.Addr)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", address, port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	return nil
}

// Stop 停止 HTTP 服务器
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth 健康检查
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}

// handleMetrics 运行指标
func (s *HTTPServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var capacity, available common.Resource
	machines := s.machines.Machines()
	for _, m := range machines {
		capacity = capacity.Add(m.Capacity())
		available = available.Add(m.Available())
	}
	s.metrics.UpdateClusterMetrics(len(machines), capacity, available)

	s.writeJSONResponse(w, r, http.StatusOK, s.metrics.GetSnapshot())
}

// handleMachines 全部机器快照
func (s *HTTPServer) handleMachines(w http.ResponseWriter, r *http.Request) {
	snapshots := s.machines.Snapshots()
	s.writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"machines": snapshots,
	})
}

// handleMachine 单台机器的快照与原始向量
func (s *HTTPServer) handleMachine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	m, ok := s.machines.Get(id)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, fmt.Errorf("machine %d: %w", id, common.ErrResourceNotFound))
		return
	}

	s.writeJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"snapshot": m.Snapshot(),
		"feature":  m.Feature(),
		"capacity": m.CapacityVector(),
	})
}

// handleGenerate 按请求参数生成 DAG
func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var params dag.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("decode params: %w", err))
		return
	}

	s.genMu.Lock()
	graph, err := s.generator.Generate(params)
	s.genMu.Unlock()

	vertices := 0
	if graph != nil {
		vertices = graph.Len()
	}
	s.metrics.RecordGeneration(vertices, err)

	switch {
	case errors.Is(err, common.ErrInvalidConfiguration):
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	case errors.Is(err, common.ErrGenerationFailed):
		s.writeError(w, r, http.StatusUnprocessableEntity, err)
		return
	case err != nil:
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSONResponse(w, r, http.StatusOK, graph)
}

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// loggingMiddleware 日志与指标中间件，同时把请求日志记录器放入上下文
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		reqLogger := s.logger.With(
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))

		reqLogger.Debug("HTTP request", zap.String("remote_addr", r.RemoteAddr))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(common.ContextWithLogger(r.Context(), reqLogger)))

		duration := time.Since(start)
		s.metrics.RecordRequest(endpointOf(r), rec.status, duration)
		reqLogger.Debug("HTTP response",
			zap.Int("status", rec.status),
			zap.Duration("duration", duration))
	})
}

// endpointOf 指标使用路由模板作为键，避免按机器标识分散
func endpointOf(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return r.Method + " " + tpl
		}
	}
	return r.Method + " " + r.URL.Path
}

// corsMiddleware CORS 中间件
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeError 写入错误响应
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	common.LoggerFromContext(r.Context()).Warn("Request failed",
		zap.Int("status", status),
		zap.Error(err))
	s.writeJSONResponse(w, r, status, map[string]interface{}{
		"error": err.Error(),
	})
}

// writeJSONResponse 写入 JSON 响应
func (s *HTTPServer) writeJSONResponse(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		common.LoggerFromContext(r.Context()).Error("Failed to encode JSON response", zap.Error(err))
	}
}
