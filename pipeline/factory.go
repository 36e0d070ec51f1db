package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/preprocess"
	"github.com/rushteam/prixkit/validate"
)

// Components 是构建节点所需的依赖，按需填写：
// preprocess 需要 Stage，quality 需要 Gate，encode 需要 State，predict 需要 Predictor。
type Components struct {
	Stage     *preprocess.Stage
	Gate      *validate.Gate
	State     *feature.State
	Predictor *ensemble.Predictor
	Weights   map[string]float64
	Logger    *slog.Logger
}

// Builder 根据依赖构建一个 Node
type Builder func(c Components) (Node, error)

// NodeFactory 按节点类型名构建 Node，用于从配置（例如 pipeline.steps）组装 Pipeline。
type NodeFactory struct {
	builders map[Kind]Builder
}

// NewNodeFactory 创建工厂并注册内置的五种节点
func NewNodeFactory() *NodeFactory {
	f := &NodeFactory{builders: make(map[Kind]Builder)}
	f.Register(KindPreprocess, func(c Components) (Node, error) {
		if c.Stage == nil {
			return nil, missing(KindPreprocess, "Stage")
		}
		return &PreprocessNode{Stage: c.Stage}, nil
	})
	f.Register(KindQuality, func(c Components) (Node, error) {
		if c.Gate == nil {
			return nil, missing(KindQuality, "Gate")
		}
		return &QualityNode{Gate: c.Gate, Logger: c.Logger}, nil
	})
	f.Register(KindEncode, func(c Components) (Node, error) {
		if c.State == nil {
			return nil, core.ErrNotFitted
		}
		return &EncodeNode{State: c.State, Logger: c.Logger}, nil
	})
	f.Register(KindPredict, func(c Components) (Node, error) {
		if c.Predictor == nil {
			return nil, missing(KindPredict, "Predictor")
		}
		return &PredictNode{Predictor: c.Predictor, Weights: c.Weights}, nil
	})
	f.Register(KindEvaluate, func(c Components) (Node, error) {
		return &EvaluateNode{Logger: c.Logger}, nil
	})
	return f
}

// Register 注册（或覆盖）Node 构建器
func (f *NodeFactory) Register(kind Kind, builder Builder) {
	f.builders[kind] = builder
}

// Build 根据类型构建 Node
func (f *NodeFactory) Build(kind Kind, c Components) (Node, error) {
	builder, ok := f.builders[kind]
	if !ok {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeNotSupported, fmt.Sprintf("pipeline: unknown node type %q", kind))
	}
	return builder(c)
}

// BuildPipeline 按 steps 的顺序构建 Pipeline
func (f *NodeFactory) BuildPipeline(steps []string, c Components) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "pipeline: no steps")
	}
	nodes := make([]Node, 0, len(steps))
	for _, step := range steps {
		node, err := f.Build(Kind(step), c)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", step, err)
		}
		nodes = append(nodes, node)
	}
	return &Pipeline{Nodes: nodes, Logger: c.Logger}, nil
}

func missing(kind Kind, component string) error {
	return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput,
		fmt.Sprintf("pipeline: %s node needs %s", kind, component))
}
