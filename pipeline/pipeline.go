// Package pipeline 把预处理、质量闸门、特征编码、集成预测与评估串成可组合的 Node 链，
// 并提供离线拟合（Fitter）与输出表组装（BuildOutput）。
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pipeline 按顺序执行 Node；任一节点返回错误即终止整批。
type Pipeline struct {
	Nodes  []Node
	Logger *slog.Logger
}

// Run 执行所有节点
func (p *Pipeline) Run(ctx context.Context, b *Batch) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		if err := node.Process(ctx, b); err != nil {
			logger.Error("pipeline node failed",
				slog.String("node", node.Name()),
				slog.String("kind", string(node.Kind())),
				slog.Any("error", err))
			return fmt.Errorf("pipeline: node %s: %w", node.Name(), err)
		}
		logger.Debug("pipeline node done",
			slog.String("node", node.Name()),
			slog.String("kind", string(node.Kind())),
			slog.Duration("took", time.Since(start)))
	}
	return nil
}
