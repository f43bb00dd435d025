package dag

import (
	"fmt"
	"math"
	"math/rand/v2"

	"edgesim/internal/common"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
)

// Mode 参数模式
type Mode string

const (
	// ModeFixed 直接使用传入的参数
	ModeFixed Mode = "fixed"
	// ModeRandom 从候选集合中重新抽样全部参数
	ModeRandom Mode = "random"
)

// random 模式的候选参数
var (
	sizeCandidates   = []int{20, 30, 40, 50, 60, 70, 80, 90}
	maxOutCandidates = []int{1, 2, 3, 4, 5}
	alphaCandidates  = []float64{0.5, 1.0, 2.0}
	betaCandidates   = []float64{0.0, 0.5, 1.0, 2.0}
)

const (
	defaultMaxReconcileAttempts = 10000
	defaultMaxVertices          = 100000

	// 布局中层与层、同层顶点之间的间距
	layerSpacing  = 3.0
	vertexSpacing = 5.0
)

// Params 生成参数
type Params struct {
	N      int     `json:"n"`
	MaxOut int     `json:"max_out"`
	Alpha  float64 `json:"alpha"`
	Beta   float64 `json:"beta"`
	Mode   Mode    `json:"mode"`
}

// Validate 验证参数，random 模式只检查模式本身
func (p Params) Validate() error {
	switch p.Mode {
	case ModeRandom:
		return nil
	case ModeFixed, "":
	default:
		return common.NewValidationError("mode", "must be fixed or random", p.Mode)
	}

	if p.N < 1 {
		return common.NewValidationError("n", "must be at least 1", p.N)
	}
	if p.MaxOut < 1 {
		return common.NewValidationError("max_out", "must be at least 1", p.MaxOut)
	}
	if p.Alpha <= 0 || math.IsNaN(p.Alpha) || math.IsInf(p.Alpha, 0) {
		return common.NewValidationError("alpha", "must be a positive finite number", p.Alpha)
	}
	if p.Beta < 0 || math.IsNaN(p.Beta) || math.IsInf(p.Beta, 0) {
		return common.NewValidationError("beta", "must be a non-negative finite number", p.Beta)
	}
	return nil
}

// Option 生成器选项
type Option func(g *Generator)

// WithMaxReconcileAttempts 设置层宽调整的最大抽样次数
func WithMaxReconcileAttempts(attempts int) Option {
	return func(g *Generator) {
		if attempts > 0 {
			g.maxReconcileAttempts = attempts
		}
	}
}

// WithMaxVertices 设置单张图允许的最大顶点数
func WithMaxVertices(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxVertices = n
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator 分层随机 DAG 生成器
//
// 每个生成器持有独立的随机源，不能并发使用；并行的仿真应各自以不同种子创建生成器。
type Generator struct {
	src                  *rand.PCG
	rng                  *rand.Rand
	maxReconcileAttempts int
	maxVertices          int
	logger               *zap.Logger
}

// NewGenerator 使用给定种子创建生成器，相同种子产生相同的图序列
func NewGenerator(seed uint64, opts ...Option) *Generator {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	g := &Generator{
		src:                  src,
		rng:                  rand.New(src),
		maxReconcileAttempts: defaultMaxReconcileAttempts,
		maxVertices:          defaultMaxVertices,
		logger:               common.ComponentLogger("dag-generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 生成一张 DAG
func (g *Generator) Generate(p Params) (*Graph, error) {
	p, err := g.resolve(p)
	if err != nil {
		return nil, err
	}

	shape := math.Floor(math.Sqrt(float64(p.N)) / p.Alpha)
	if shape < 1 {
		return nil, fmt.Errorf("%w: n=%d alpha=%g gives %g layers", ErrDegenerateShape, p.N, p.Alpha, shape)
	}
	// 每层至少一个顶点
	if shape > float64(p.N) {
		return nil, fmt.Errorf("%w: %g layers cannot hold %d vertices", ErrReconcileExhausted, shape, p.N)
	}
	layerCount := int(shape)

	widths := g.sampleWidths(p.N, layerCount, p.Beta)
	if err := g.reconcile(widths, p.N); err != nil {
		g.logger.Warn("Layer reconciliation failed",
			zap.Int("n", p.N),
			zap.Float64("alpha", p.Alpha),
			zap.Float64("beta", p.Beta),
			zap.Ints("widths", widths),
			zap.Error(err))
		return nil, err
	}

	layers := numberLayers(widths)
	graph := &Graph{
		Params:     p,
		Layers:     layers,
		Layout:     layoutOf(layers),
		IntoDegree: make([]int, p.N),
		OutDegree:  make([]int, p.N),
	}
	g.link(graph, p.MaxOut)
	closeSentinels(graph)

	g.logger.Debug("DAG generated",
		zap.Int("n", p.N),
		zap.Int("layers", layerCount),
		zap.Int("max_out", p.MaxOut),
		zap.Int("edges", len(graph.Edges)))

	return graph, nil
}

// resolve 校验参数，random 模式下重新抽样
func (g *Generator) resolve(p Params) (Params, error) {
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	if p.Mode != ModeRandom && p.N > g.maxVertices {
		return Params{}, common.NewValidationError("n", fmt.Sprintf("must be at most %d", g.maxVertices), p.N)
	}
	if p.Mode != ModeRandom {
		p.Mode = ModeFixed
		return p, nil
	}

	return Params{
		N:      sizeCandidates[g.rng.IntN(len(sizeCandidates))],
		MaxOut: maxOutCandidates[g.rng.IntN(len(maxOutCandidates))],
		Alpha:  alphaCandidates[g.rng.IntN(len(alphaCandidates))],
		Beta:   betaCandidates[g.rng.IntN(len(betaCandidates))],
		Mode:   ModeRandom,
	}, nil
}

// sampleWidths 按正态分布抽样每层宽度
func (g *Generator) sampleWidths(n, layerCount int, beta float64) []int {
	dist := distuv.Normal{
		Mu:    float64(n) / float64(layerCount),
		Sigma: beta,
		Src:   g.src,
	}

	widths := make([]int, layerCount)
	for i := range widths {
		// 超过 n 的部分调整时必然删除，先截断避免求和溢出
		x := math.Min(math.Ceil(math.Abs(dist.Rand())), float64(n))
		// 只有恰好抽到 0 时才会出现空层
		widths[i] = max(int(x), 1)
	}
	return widths
}

// reconcile 随机增删顶点，使层宽之和等于 n，每层至少保留一个顶点
func (g *Generator) reconcile(widths []int, n int) error {
	total := 0
	for _, w := range widths {
		total += w
	}

	for total < n {
		widths[g.rng.IntN(len(widths))]++
		total++
	}

	attempts := 0
	for total > n {
		if attempts >= g.maxReconcileAttempts {
			return fmt.Errorf("%w: surplus of %d after %d attempts", ErrReconcileExhausted, total-n, attempts)
		}
		attempts++

		i := g.rng.IntN(len(widths))
		if widths[i] > 1 {
			widths[i]--
			total--
		}
	}
	return nil
}

// numberLayers 按层顺序为顶点编号 1..n
func numberLayers(widths []int) [][]Vertex {
	layers := make([][]Vertex, len(widths))
	next := Vertex(1)
	for i, w := range widths {
		layers[i] = make([]Vertex, w)
		for j := range layers[i] {
			layers[i][j] = next
			next++
		}
	}
	return layers
}

// layoutOf 计算绘图坐标，Start 与 Exit 垂直居中
func layoutOf(layers [][]Vertex) map[Vertex]Point {
	layout := make(map[Vertex]Point, len(layers)+2)
	maxY := 0.0
	for i, layer := range layers {
		y := 1.0
		for _, v := range layer {
			layout[v] = Point{X: layerSpacing * float64(i+1), Y: y}
			y += vertexSpacing
		}
		maxY = math.Max(maxY, y)
	}
	layout[Start] = Point{X: 0, Y: maxY / 2}
	layout[Exit] = Point{X: layerSpacing * float64(len(layers)+1), Y: maxY / 2}
	return layout
}

// link 在相邻层之间连边
func (g *Generator) link(graph *Graph, maxOut int) {
	for i := 0; i+1 < len(graph.Layers); i++ {
		next := graph.Layers[i+1]
		for _, from := range graph.Layers[i] {
			od := 1 + g.rng.IntN(maxOut)
			if od > len(next) {
				od = len(next)
			}
			for _, k := range g.rng.Perm(len(next))[:od] {
				to := next[k]
				graph.Edges = append(graph.Edges, Edge{From: from, To: to})
				graph.IntoDegree[to-1]++
				graph.OutDegree[from-1]++
			}
		}
	}
}

// closeSentinels 为没有入边的顶点连接 Start，为没有出边的顶点连接 Exit
func closeSentinels(graph *Graph) {
	for i, d := range graph.IntoDegree {
		if d == 0 {
			graph.Edges = append(graph.Edges, Edge{From: Start, To: Vertex(i + 1)})
		}
	}
	for i, d := range graph.OutDegree {
		if d == 0 {
			graph.Edges = append(graph.Edges, Edge{From: Vertex(i + 1), To: Exit})
		}
	}
}
