package machine

import (
	"fmt"
	"sync"

	"edgesim/internal/common"

	"go.uber.org/zap"
)

// Registry 机器注册表，按加入顺序分配标识
//
// 注册表自身的列表有锁保护；单台机器的 Allocate/Release 仍由调用方串行化。
type Registry struct {
	mu       sync.RWMutex
	machines []*Machine
	observer Observer
	logger   *zap.Logger
}

// NewRegistry 创建注册表，observer 可以为 nil
func NewRegistry(observer Observer) *Registry {
	return &Registry{
		observer: observer,
		logger:   common.ComponentLogger("machine-registry"),
	}
}

// Add 创建机器并分配下一个标识
func (r *Registry) Add(config common.MachineConfig) (*Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := len(r.machines)
	m, err := NewMachine(id, config)
	if err != nil {
		return nil, err
	}
	if r.observer != nil {
		m.SetObserver(r.observer)
	}
	r.machines = append(r.machines, m)

	r.logger.Info("Machine registered",
		zap.Int("machine_id", id),
		zap.Stringer("capacity", m.Capacity()),
		zap.Bool("edge_mode", m.EdgeMode()))

	return m, nil
}

// AddAll 按顺序注册多台机器，遇到错误立即返回
func (r *Registry) AddAll(configs []common.MachineConfig) error {
	for i, config := range configs {
		if _, err := r.Add(config); err != nil {
			return fmt.Errorf("machine config %d: %w", i, err)
		}
	}
	return nil
}

// Get 按标识查找机器
func (r *Registry) Get(id int) (*Machine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id < 0 || id >= len(r.machines) {
		return nil, false
	}
	return r.machines[id], true
}

// Machines 按标识顺序返回全部机器
func (r *Registry) Machines() []*Machine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	machines := make([]*Machine, len(r.machines))
	copy(machines, r.machines)
	return machines
}

// Len 机器数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.machines)
}

// Snapshots 全部机器的状态快照
func (r *Registry) Snapshots() []Snapshot {
	machines := r.Machines()
	snapshots := make([]Snapshot, 0, len(machines))
	for _, m := range machines {
		snapshots = append(snapshots, m.Snapshot())
	}
	return snapshots
}

// Candidates 当前能够容纳需求的机器
func (r *Registry) Candidates(demand common.Resource) []*Machine {
	var candidates []*Machine
	for _, m := range r.Machines() {
		if m.Accommodate(demand) {
			candidates = append(candidates, m)
		}
	}
	return candidates
}
