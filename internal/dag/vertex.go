package dag

import (
	"fmt"
	"strconv"
)

// Vertex DAG 顶点，实际任务编号为 1..n
type Vertex int

// 哨兵顶点
const (
	Start Vertex = 0
	Exit  Vertex = -1
)

// IsSentinel 是否为 Start 或 Exit
func (v Vertex) IsSentinel() bool {
	return v == Start || v == Exit
}

func (v Vertex) String() string {
	switch v {
	case Start:
		return "Start"
	case Exit:
		return "Exit"
	default:
		return strconv.Itoa(int(v))
	}
}

// MarshalText 哨兵输出为名称，其余输出为编号
func (v Vertex) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText 解析 MarshalText 的输出
func (v *Vertex) UnmarshalText(text []byte) error {
	switch s := string(text); s {
	case "Start":
		*v = Start
	case "Exit":
		*v = Exit
	default:
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid vertex %q", s)
		}
		*v = Vertex(n)
	}
	return nil
}
