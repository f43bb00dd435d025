package dag

import (
	"errors"
	"fmt"

	"edgesim/internal/common"
)

var (
	// ErrDegenerateShape 由 (n, alpha) 计算出的层数小于 1
	ErrDegenerateShape = fmt.Errorf("degenerate dag shape: %w", common.ErrInvalidConfiguration)

	// ErrReconcileExhausted 层宽调整在重试上限内没有收敛
	ErrReconcileExhausted = fmt.Errorf("layer width reconciliation exhausted: %w", common.ErrGenerationFailed)

	// ErrCycle 图中存在环
	ErrCycle = errors.New("graph contains a cycle")
)
