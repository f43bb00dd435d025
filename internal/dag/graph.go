package dag

import (
	"fmt"

	"github.com/gammazero/deque"
)

// Edge 有向边
type Edge struct {
	From Vertex `json:"from"`
	To   Vertex `json:"to"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}

// Point 绘图用的二维坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Graph 分层随机 DAG，生成后不再修改
type Graph struct {
	// Params 实际使用的参数，random 模式下为重新抽样后的值
	Params Params     `json:"params"`
	Layers [][]Vertex `json:"layers"`
	Edges  []Edge     `json:"edges"`

	// IntoDegree[i] 与 OutDegree[i] 对应顶点 i+1，
	// 只统计层间边，不含哨兵边
	IntoDegree []int `json:"into_degree"`
	OutDegree  []int `json:"out_degree"`

	Layout map[Vertex]Point `json:"layout"`
}

// Len 实际顶点数，不含哨兵
func (g *Graph) Len() int {
	return len(g.IntoDegree)
}

// Vertices 按 Start、1..n、Exit 的顺序返回全部顶点
func (g *Graph) Vertices() []Vertex {
	vertices := make([]Vertex, 0, g.Len()+2)
	vertices = append(vertices, Start)
	for i := 1; i <= g.Len(); i++ {
		vertices = append(vertices, Vertex(i))
	}
	return append(vertices, Exit)
}

// LayerOf 顶点所在层，Start 为 -1，Exit 为层数
func (g *Graph) LayerOf(v Vertex) (int, bool) {
	switch v {
	case Start:
		return -1, true
	case Exit:
		return len(g.Layers), true
	}
	for i, layer := range g.Layers {
		if len(layer) == 0 {
			continue
		}
		if v >= layer[0] && v <= layer[len(layer)-1] {
			return i, true
		}
	}
	return 0, false
}

// Successors 顶点的直接后继
func (g *Graph) Successors(v Vertex) []Vertex {
	var successors []Vertex
	for _, e := range g.Edges {
		if e.From == v {
			successors = append(successors, e.To)
		}
	}
	return successors
}

// Predecessors 顶点的直接前驱
func (g *Graph) Predecessors(v Vertex) []Vertex {
	var predecessors []Vertex
	for _, e := range g.Edges {
		if e.To == v {
			predecessors = append(predecessors, e.From)
		}
	}
	return predecessors
}

// TopologicalOrder 返回一个拓扑序，存在环时返回 ErrCycle
func (g *Graph) TopologicalOrder() ([]Vertex, error) {
	vertices := g.Vertices()
	indegree := make(map[Vertex]int, len(vertices))
	successors := make(map[Vertex][]Vertex, len(vertices))
	for _, v := range vertices {
		indegree[v] = 0
	}
	for _, e := range g.Edges {
		indegree[e.To]++
		successors[e.From] = append(successors[e.From], e.To)
	}

	var queue deque.Deque[Vertex]
	for _, v := range vertices {
		if indegree[v] == 0 {
			queue.PushBack(v)
		}
	}

	order := make([]Vertex, 0, len(vertices))
	for queue.Len() > 0 {
		v := queue.PopFront()
		order = append(order, v)
		for _, s := range successors[v] {
			indegree[s]--
			if indegree[s] == 0 {
				queue.PushBack(s)
			}
		}
	}

	if len(order) != len(indegree) {
		return nil, fmt.Errorf("%w: ordered %d of %d vertices", ErrCycle, len(order), len(indegree))
	}
	return order, nil
}
