package pipeline

import (
	"context"
	"log/slog"
	"math"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/eval"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/preprocess"
	"github.com/rushteam/prixkit/validate"
)

// EnsembleModelName 是评估结果中加权集成预测使用的名字
const EnsembleModelName = "ensemble"

// PreprocessNode 清洗原始行：Raw -> Cleaned
type PreprocessNode struct {
	Stage *preprocess.Stage
}

func (n *PreprocessNode) Name() string { return "preprocess.stage" }
func (n *PreprocessNode) Kind() Kind   { return KindPreprocess }

func (n *PreprocessNode) Process(_ context.Context, b *Batch) error {
	if b.Raw == nil {
		return core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "pipeline: batch has no raw rows")
	}
	b.Cleaned = n.Stage.Process(b.Raw)
	return nil
}

// QualityNode 用质量闸门拆分 Cleaned，不合格的行进入 Rejected
type QualityNode struct {
	Gate   *validate.Gate
	Logger *slog.Logger
}

func (n *QualityNode) Name() string { return "quality.gate" }
func (n *QualityNode) Kind() Kind   { return KindQuality }

func (n *QualityNode) Process(_ context.Context, b *Batch) error {
	kept, rejected := n.Gate.Split(b.rows())
	b.Cleaned, b.Rejected = kept, rejected
	logger(n.Logger).Info("quality gate applied",
		slog.String("expr", n.Gate.Expr()),
		slog.Int("kept", kept.Len()),
		slog.Int("rejected", rejected.Len()))
	return nil
}

// EncodeNode 用已拟合的转换器状态把 Cleaned 转换为特征矩阵
type EncodeNode struct {
	State  *feature.State
	Logger *slog.Logger
}

func (n *EncodeNode) Name() string { return "feature.transform" }
func (n *EncodeNode) Kind() Kind   { return KindEncode }

func (n *EncodeNode) Process(_ context.Context, b *Batch) error {
	t := b.rows()
	if n.State.Ready() {
		present := append(append([]string(nil), t.Columns...), n.State.Encoder.FeatureNames()...)
		if missing := n.State.Metadata.MissingColumns(present); len(missing) > 0 {
			logger(n.Logger).Warn("contract columns missing from batch, filled with 0",
				slog.Any("columns", missing))
		}
	}
	res, err := n.State.Transform(t)
	if err != nil {
		return err
	}
	b.Features = res
	return nil
}

// PredictNode 对特征矩阵运行所有模型，并计算加权集成与置信区间
type PredictNode struct {
	Predictor *ensemble.Predictor
	Weights   map[string]float64
}

func (n *PredictNode) Name() string { return "ensemble.predict" }
func (n *PredictNode) Kind() Kind   { return KindPredict }

func (n *PredictNode) Process(ctx context.Context, b *Batch) error {
	if b.Features == nil {
		return core.ErrNotFitted
	}
	b.Prediction = n.Predictor.PredictAll(ctx, b.Features.Matrix, n.Weights)
	return nil
}

// EvaluateNode 在批次带有真实价格时比较各模型与集成的误差，没有真实值时跳过
type EvaluateNode struct {
	Logger *slog.Logger
}

func (n *EvaluateNode) Name() string { return "eval.compare" }
func (n *EvaluateNode) Kind() Kind   { return KindEvaluate }

func (n *EvaluateNode) Process(_ context.Context, b *Batch) error {
	if b.Features == nil || b.Prediction == nil || !hasTruth(b.Features.Target) {
		logger(n.Logger).Debug("no ground truth, evaluation skipped")
		return nil
	}
	preds := make(map[string][]float64, len(b.Prediction.PerModel)+1)
	for name, p := range b.Prediction.PerModel {
		preds[name] = p
	}
	preds[EnsembleModelName] = b.Prediction.Ensemble
	b.Scores = eval.Compare(b.Features.Target, preds)
	eval.Log(logger(n.Logger), b.Scores)
	return nil
}

func hasTruth(target []float64) bool {
	for _, v := range target {
		if !math.IsNaN(v) {
			return true
		}
	}
	return false
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}
