package machine

import (
	"fmt"

	"edgesim/internal/common"

	"go.uber.org/zap"
)

// Machine 单个计算节点的资源账本
//
// Allocate 与 Release 没有内部同步，同一台机器同一时刻只能有一个写入者。
type Machine struct {
	id       int
	capacity common.Resource
	current  common.Resource

	// 边缘计算模式下的虚拟机属性
	edgeMode      bool
	bandwidth     float64
	energyPerUnit float64

	// 曾经放置过的实例，释放时不删除
	instances []TaskInstance

	lastTransition TransitionKind
	transitions    []Transition

	observer Observer
	logger   *zap.Logger
}

// Snapshot 机器状态快照，供观测与报告使用
type Snapshot struct {
	ID                    int     `json:"id"`
	CPUCapacity           float64 `json:"cpu_capacity"`
	MemoryCapacity        float64 `json:"memory_capacity"`
	DiskCapacity          float64 `json:"disk_capacity"`
	CPU                   float64 `json:"cpu"`
	Memory                float64 `json:"memory"`
	Disk                  float64 `json:"disk"`
	Bandwidth             float64 `json:"bandwidth"`
	EnergyPerUnit         float64 `json:"energy_per_unit"`
	RunningTaskInstances  int     `json:"running_task_instances"`
	FinishedTaskInstances int     `json:"finished_task_instances"`
	LastTransition        string  `json:"last_transition"`
}

// NewMachine 根据配置创建机器
func NewMachine(id int, config common.MachineConfig) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("machine %d: %w", id, err)
	}

	m := &Machine{
		id:            id,
		capacity:      config.Capacity(),
		current:       config.Initial(),
		edgeMode:      config.EdgeMode.Enabled,
		energyPerUnit: config.EdgeMode.EnergyPerUnit,
		logger:        common.ComponentLogger("machine").With(zap.Int("machine_id", id)),
	}
	if m.edgeMode {
		m.bandwidth = config.EdgeMode.Bandwidth
	}
	return m, nil
}

// ID 机器标识
func (m *Machine) ID() int {
	return m.id
}

// Equal 仅比较标识
func (m *Machine) Equal(other *Machine) bool {
	return other != nil && m.id == other.id
}

// Capacity 静态容量
func (m *Machine) Capacity() common.Resource {
	return m.capacity
}

// Available 当前可用资源
func (m *Machine) Available() common.Resource {
	return m.current
}

// EdgeMode 是否参与边缘带宽计算
func (m *Machine) EdgeMode() bool {
	return m.edgeMode
}

// Bandwidth 带宽，非边缘模式下恒为 0
func (m *Machine) Bandwidth() float64 {
	return m.bandwidth
}

// EnergyPerUnit 单位能耗
func (m *Machine) EnergyPerUnit() float64 {
	return m.energyPerUnit
}

// SetObserver 设置资源变更观察者
func (m *Machine) SetObserver(observer Observer) {
	m.observer = observer
}

// Accommodate 检查当前可用资源能否容纳需求
func (m *Machine) Accommodate(demand common.Resource) bool {
	return m.current.Covers(demand)
}

// Allocate 为实例扣减资源
//
// 不会重新检查资源是否足够，调用方必须先调用 Accommodate。
// 需要检查的场景使用 Place。
func (m *Machine) Allocate(inst TaskInstance, demand common.Resource) Transition {
	m.current = m.current.Subtract(demand)
	m.instances = append(m.instances, inst)

	if m.current.IsNegative() {
		m.logger.Warn("Allocation drove resources negative",
			zap.Stringer("demand", demand),
			zap.Stringer("available", m.current))
	}

	return m.record(TransitionAdmitted, inst, demand)
}

// Place 检查后分配，资源不足时返回 InsufficientResourceError
func (m *Machine) Place(inst TaskInstance, demand common.Resource) (Transition, error) {
	if !m.Accommodate(demand) {
		return Transition{}, &common.InsufficientResourceError{
			Requested: demand,
			Available: m.current,
		}
	}
	return m.Allocate(inst, demand), nil
}

// Release 归还实例占用的资源，实例仍保留在列表中
func (m *Machine) Release(inst TaskInstance, demand common.Resource) Transition {
	m.current = m.current.Add(demand)
	return m.record(TransitionRemoved, inst, demand)
}

func (m *Machine) record(kind TransitionKind, inst TaskInstance, demand common.Resource) Transition {
	m.lastTransition = kind
	t := Transition{
		MachineID: m.id,
		Seq:       len(m.transitions),
		Kind:      kind,
		Demand:    demand,
		Available: m.current,
		Instance:  inst,
	}
	m.transitions = append(m.transitions, t)

	m.logger.Debug("Resource transition",
		zap.Stringer("kind", kind),
		zap.Stringer("demand", demand),
		zap.Stringer("available", m.current))

	if m.observer != nil {
		m.observer.ObserveTransition(t)
	}
	return t
}

// LastTransition 最近一次变更的类型
func (m *Machine) LastTransition() TransitionKind {
	return m.lastTransition
}

// Transitions 全部变更历史
func (m *Machine) Transitions() []Transition {
	history := make([]Transition, len(m.transitions))
	copy(history, m.transitions)
	return history
}

// Instances 曾经放置在该机器上的全部实例
func (m *Machine) Instances() []TaskInstance {
	instances := make([]TaskInstance, len(m.instances))
	copy(instances, m.instances)
	return instances
}

// RunningInstances 已开始且未结束的实例
func (m *Machine) RunningInstances() []TaskInstance {
	var running []TaskInstance
	for _, inst := range m.instances {
		if isRunning(inst) {
			running = append(running, inst)
		}
	}
	return running
}

// FinishedInstances 已结束的实例
func (m *Machine) FinishedInstances() []TaskInstance {
	var finished []TaskInstance
	for _, inst := range m.instances {
		if inst.Finished() {
			finished = append(finished, inst)
		}
	}
	return finished
}

// Feature 当前可用量 [cpu, memory, disk]
func (m *Machine) Feature() [3]float64 {
	return m.current.Vector()
}

// CapacityVector 容量 [cpu, memory, disk]
func (m *Machine) CapacityVector() [3]float64 {
	return m.capacity.Vector()
}

// Snapshot 生成状态快照，可用量按容量归一化
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		ID:                    m.id,
		CPUCapacity:           m.capacity.CPU,
		MemoryCapacity:        m.capacity.Memory,
		DiskCapacity:          m.capacity.Disk,
		CPU:                   m.current.CPU / m.capacity.CPU,
		Memory:                m.current.Memory / m.capacity.Memory,
		Disk:                  m.current.Disk / m.capacity.Disk,
		Bandwidth:             m.bandwidth,
		EnergyPerUnit:         m.energyPerUnit,
		RunningTaskInstances:  len(m.RunningInstances()),
		FinishedTaskInstances: len(m.FinishedInstances()),
		LastTransition:        m.lastTransition.String(),
	}
}

func (m *Machine) String() string {
	return fmt.Sprintf("Machine{ID: %d, Available: %s, Capacity: %s}", m.id, m.current, m.capacity)
}
