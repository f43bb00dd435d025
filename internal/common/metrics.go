package common

import (
	"runtime"
	"sync"
	"time"
)

// Metrics 运行指标
type Metrics struct {
	mu sync.RWMutex

	StartTime    time.Time
	RequestCount map[string]int64
	ResponseTime map[string]time.Duration
	ErrorCount   map[string]int64

	// 集群指标
	Machines  int
	Capacity  Resource
	Available Resource

	// DAG 生成指标
	GraphsGenerated   int64
	GenerationErrors  int64
	VerticesGenerated int64
}

// NewMetrics 创建指标实例
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:    time.Now(),
		RequestCount: make(map[string]int64),
		ResponseTime: make(map[string]time.Duration),
		ErrorCount:   make(map[string]int64),
	}
}

// RecordRequest 记录一次请求，status >= 400 计为错误
func (m *Metrics) RecordRequest(endpoint string, status int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount[endpoint]++
	m.ResponseTime[endpoint] = duration
	if status >= 400 {
		m.ErrorCount[endpoint]++
	}
}

// UpdateClusterMetrics 更新集群资源总量
func (m *Metrics) UpdateClusterMetrics(machines int, capacity, available Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Machines = machines
	m.Capacity = capacity
	m.Available = available
}

// RecordGeneration 记录一次 DAG 生成，vertices 为实际顶点数
func (m *Metrics) RecordGeneration(vertices int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.GenerationErrors++
		return
	}
	m.GraphsGenerated++
	m.VerticesGenerated += int64(vertices)
}

// GetSnapshot 获取指标快照
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"uptime_seconds":     time.Since(m.StartTime).Seconds(),
		"request_count":      copyCounts(m.RequestCount),
		"response_time_ms":   convertDurationToMs(m.ResponseTime),
		"error_count":        copyCounts(m.ErrorCount),
		"machines":           m.Machines,
		"capacity":           m.Capacity,
		"available":          m.Available,
		"graphs_generated":   m.GraphsGenerated,
		"generation_errors":  m.GenerationErrors,
		"vertices_generated": m.VerticesGenerated,
		"heap_memory_mb":     int64(memStats.HeapInuse / 1024 / 1024),
		"goroutines":         runtime.NumGoroutine(),
	}
}

func copyCounts(counts map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(counts))
	for k, v := range counts {
		result[k] = v
	}
	return result
}

// convertDurationToMs 将时间持续转换为毫秒
func convertDurationToMs(durations map[string]time.Duration) map[string]float64 {
	result := make(map[string]float64, len(durations))
	for k, v := range durations {
		result[k] = float64(v.Nanoseconds()) / 1e6
	}
	return result
}
