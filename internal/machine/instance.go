package machine

// TaskInstance 放置在机器上的任务实例
//
// 实例的状态由外部调度引擎维护，机器只读取这些标志来区分运行中与已完成的实例。
type TaskInstance interface {
	Started() bool
	Finished() bool
	StartedAt() float64
	FinishedAt() float64
}

// isRunning 已开始且未结束
func isRunning(inst TaskInstance) bool {
	return inst.Started() && !inst.Finished()
}
