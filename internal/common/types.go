package common

import "fmt"

// Resource 表示 cpu、内存、磁盘三个维度的资源量
type Resource struct {
	CPU    float64 `json:"cpu" yaml:"cpu"`
	Memory float64 `json:"memory" yaml:"memory"`
	Disk   float64 `json:"disk" yaml:"disk"`
}

// Add 返回两个资源之和
func (r Resource) Add(other Resource) Resource {
	return Resource{
		CPU:    r.CPU + other.CPU,
		Memory: r.Memory + other.Memory,
		Disk:   r.Disk + other.Disk,
	}
}

// Subtract 返回两个资源之差，不做下限截断
func (r Resource) Subtract(other Resource) Resource {
	return Resource{
		CPU:    r.CPU - other.CPU,
		Memory: r.Memory - other.Memory,
		Disk:   r.Disk - other.Disk,
	}
}

// Covers 判断每个维度都不小于 other
func (r Resource) Covers(other Resource) bool {
	return r.CPU >= other.CPU &&
		r.Memory >= other.Memory &&
		r.Disk >= other.Disk
}

// IsNegative 判断是否存在小于 0 的维度
func (r Resource) IsNegative() bool {
	return r.CPU < 0 || r.Memory < 0 || r.Disk < 0
}

// Vector 按 [cpu, memory, disk] 顺序返回
func (r Resource) Vector() [3]float64 {
	return [3]float64{r.CPU, r.Memory, r.Disk}
}

func (r Resource) String() string {
	return fmt.Sprintf("Resource{CPU: %g, Memory: %g, Disk: %g}", r.CPU, r.Memory, r.Disk)
}
