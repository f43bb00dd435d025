package machine

import (
	"encoding/json"
	"fmt"

	"edgesim/internal/common"
)

// TransitionKind 最近一次资源变更的类型
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionAdmitted
	TransitionRemoved
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionNone:
		return "NO_TRANSITION"
	case TransitionAdmitted:
		return "INSTANCE_ADMITTED"
	case TransitionRemoved:
		return "INSTANCE_REMOVED"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// MarshalJSON 以名称形式输出
func (k TransitionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Transition 一次分配或释放产生的事件
type Transition struct {
	MachineID int             `json:"machine_id"`
	Seq       int             `json:"seq"`
	Kind      TransitionKind  `json:"kind"`
	Demand    common.Resource `json:"demand"`
	// Available 为变更之后的可用资源
	Available common.Resource `json:"available"`
	Instance  TaskInstance    `json:"-"`
}

// Observer 接收机器的资源变更事件
//
// 回调在 Allocate/Release 的调用方 goroutine 中同步执行，实现不能阻塞。
type Observer interface {
	ObserveTransition(t Transition)
}

// ObserverFunc 函数形式的 Observer
type ObserverFunc func(t Transition)

// ObserveTransition 调用 f(t)
func (f ObserverFunc) ObserveTransition(t Transition) {
	f(t)
}
