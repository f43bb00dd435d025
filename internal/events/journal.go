package events

import (
	"sync"

	"edgesim/internal/machine"
)

// Journal 线程安全的只追加事件日志
type Journal struct {
	mu          sync.RWMutex
	transitions []machine.Transition
}

// NewJournal 创建事件日志
func NewJournal() *Journal {
	return &Journal{}
}

// ObserveTransition 追加一条事件
func (j *Journal) ObserveTransition(t machine.Transition) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, t)
}

// Len 事件数量
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.transitions)
}

// All 全部事件的副本
func (j *Journal) All() []machine.Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()

	transitions := make([]machine.Transition, len(j.transitions))
	copy(transitions, j.transitions)
	return transitions
}

// ForMachine 指定机器的事件
func (j *Journal) ForMachine(id int) []machine.Transition {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var transitions []machine.Transition
	for _, t := range j.transitions {
		if t.MachineID == id {
			transitions = append(transitions, t)
		}
	}
	return transitions
}

// Fanout 将事件转发给多个观察者
type Fanout []machine.Observer

// ObserveTransition 依次转发
func (f Fanout) ObserveTransition(t machine.Transition) {
	for _, o := range f {
		if o != nil {
			o.ObserveTransition(t)
		}
	}
}
