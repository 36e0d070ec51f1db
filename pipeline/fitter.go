package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/preprocess"
	"github.com/rushteam/prixkit/validate"
)

// Fitter 执行离线拟合：预处理 -> 质量闸门（可选）-> 拟合转换器状态 -> 保存制品（可选）。
type Fitter struct {
	Schema       core.Schema
	Stage        *preprocess.Stage // nil 时按 Schema 创建
	Gate         *validate.Gate    // nil 时不过滤
	Store        core.Store        // nil 时不保存
	Artifacts    feature.Artifacts
	ModelVersion string
	Logger       *slog.Logger
}

// FitResult 是一次拟合的产物
type FitResult struct {
	State    *feature.State
	Features *feature.Result // 训练批次自身的编码结果
	Cleaned  *core.Table
	Rejected *core.Table
}

// Fit 在原始训练数据上拟合并（可选）持久化转换器状态
func (f *Fitter) Fit(ctx context.Context, raw *core.Table) (*FitResult, error) {
	stage := f.Stage
	if stage == nil {
		stage = preprocess.New(f.Schema, preprocess.WithLogger(f.Logger))
	}
	p := &Pipeline{
		Nodes:  []Node{&PreprocessNode{Stage: stage}},
		Logger: f.Logger,
	}
	if f.Gate != nil {
		p.Nodes = append(p.Nodes, &QualityNode{Gate: f.Gate, Logger: f.Logger})
	}
	b := NewBatch(raw)
	if err := p.Run(ctx, b); err != nil {
		return nil, err
	}

	state, res, err := feature.Fit(b.Cleaned, f.Schema,
		feature.WithModelVersion(f.ModelVersion),
		feature.WithLogger(f.Logger))
	if err != nil {
		return nil, err
	}

	if f.Store != nil {
		if err := feature.SaveState(ctx, f.Store, f.Artifacts, state); err != nil {
			return nil, fmt.Errorf("save transformer state: %w", err)
		}
		logger(f.Logger).Info("transformer state saved",
			slog.String("store", f.Store.Name()),
			slog.String("encoder", f.Artifacts.Encoder),
			slog.String("scaler", f.Artifacts.Scaler),
			slog.String("features", f.Artifacts.Features))
	}
	return &FitResult{State: state, Features: res, Cleaned: b.Cleaned, Rejected: b.Rejected}, nil
}
