// Package ensemble 组合多个回归模型的预测：逐模型预测、加权集成、基于模型间离散度的置信区间。
//
// 单个模型失败不会中断整批预测：失败模型的输出为 NaN 向量，并记录错误日志与指标。
// Predictor 只读，可在多个 goroutine 间共享。
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/model"
	"github.com/rushteam/prixkit/pkg/conv"
)

// ConfidenceZ 是 95% 置信区间对应的 z 值
const ConfidenceZ = 1.96

// Predictor 持有按注册表顺序排列的已加载模型
type Predictor struct {
	models          []model.Regressor
	logger          *slog.Logger
	metrics         *Metrics
	loadConcurrency int
}

// Option 配置 Predictor
type Option func(*Predictor)

// WithLogger 注入日志
func WithLogger(logger *slog.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRegisterer 在 reg 上注册预测指标
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Predictor) { p.metrics = NewMetrics(reg) }
}

// WithLoadConcurrency 设置 Load 并发读取制品的上限
func WithLoadConcurrency(n int) Option {
	return func(p *Predictor) { p.loadConcurrency = n }
}

func newPredictor(opts []Option) *Predictor {
	p := &Predictor{
		logger:          slog.New(slog.DiscardHandler),
		loadConcurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// New 用已构建的模型创建 Predictor；没有模型时返回 core.ErrNoModels，模型重名时返回 INVALID_INPUT。
func New(models []model.Regressor, opts ...Option) (*Predictor, error) {
	if len(models) == 0 {
		return nil, core.ErrNoModels
	}
	if err := uniqueNames(models); err != nil {
		return nil, err
	}
	p := newPredictor(opts)
	p.models = models
	return p, nil
}

// Load 从 store 并发加载注册表中的全部模型。加载失败的模型记录日志后跳过；
// 一个都没有加载成功时返回 core.ErrNoModels（包装各模型的错误）。
func Load(ctx context.Context, store core.Store, specs []config.ModelSpec, opts ...Option) (*Predictor, error) {
	p := newPredictor(opts)
	res := model.LoadAll(ctx, store, specs, p.loadConcurrency)

	errs := make([]error, 0, len(res.Errors))
	for _, spec := range specs {
		if err, ok := res.Errors[spec.Name]; ok {
			p.logger.Error("model load failed",
				slog.String("model", spec.Name),
				slog.String("artifact", spec.Artifact),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	if len(res.Models) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrNoModels, errors.Join(errs...))
	}
	if err := uniqueNames(res.Models); err != nil {
		return nil, err
	}
	p.models = res.Models
	p.logger.Info("models loaded",
		slog.Any("models", p.Names()),
		slog.Int("failed", len(errs)),
		slog.String("store", store.Name()),
	)
	return p, nil
}

// 预测结果按模型名索引，重名会让一个模型的输出覆盖另一个
func uniqueNames(models []model.Regressor) error {
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if _, ok := seen[m.Name()]; ok {
			return core.NewDomainError(core.ModuleEnsemble, core.ErrorCodeInvalidInput, "ensemble: duplicate model name "+m.Name())
		}
		seen[m.Name()] = struct{}{}
	}
	return nil
}

// Names 返回模型名（注册表顺序）
func (p *Predictor) Names() []string {
	names := make([]string, len(p.models))
	for i, m := range p.models {
		names[i] = m.Name()
	}
	return names
}

// Predict 用每个模型预测 x。模型出错或返回长度不对时，该模型的输出为 NaN 向量。
func (p *Predictor) Predict(ctx context.Context, x *core.Matrix) map[string][]float64 {
	out := make(map[string][]float64, len(p.models))
	n := x.Rows()
	for _, m := range p.models {
		preds, err := m.Predict(ctx, x)
		if err == nil && len(preds) != n {
			err = fmt.Errorf("returned %d predictions for %d rows", len(preds), n)
		}
		if err != nil {
			p.logger.Error("model prediction failed",
				slog.String("model", m.Name()),
				slog.Int("rows", n),
				slog.Any("error", err),
			)
			p.metrics.observeFailure(m.Name())
			out[m.Name()] = nanVector(n)
			continue
		}
		p.metrics.observePredictions(m.Name(), n)
		out[m.Name()] = preds
	}
	return out
}

// PredictEnsemble 返回加权集成预测：sum(w_m * pred_m)。
//
// weights 为 nil 时所有模型取 1/n；weights 中没有的模型同样取 1/n。
// 权重不做归一化，权重之和不为 1 时结果按原样缩放。失败模型的 NaN 会传播到对应行。
func (p *Predictor) PredictEnsemble(ctx context.Context, x *core.Matrix, weights map[string]float64) []float64 {
	return Combine(p.Predict(ctx, x), p.Names(), weights)
}

// Confidence 是逐行的集成均值与 95% 置信区间
type Confidence struct {
	Mean  []float64 `json:"mean"`
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// PredictWithConfidence 返回逐行均值与 mean ± 1.96·std（模型间总体标准差）。
func (p *Predictor) PredictWithConfidence(ctx context.Context, x *core.Matrix) Confidence {
	c := Spread(p.Predict(ctx, x), p.Names())
	p.observeSpread(c)
	return c
}

// Prediction 是一次完整预测的结果，模型只调用一次
type Prediction struct {
	Models     []string             // 注册表顺序
	PerModel   map[string][]float64 // 模型名 -> 逐行预测
	Ensemble   []float64
	Confidence Confidence
}

// PredictAll 一次性计算逐模型预测、加权集成与置信区间
func (p *Predictor) PredictAll(ctx context.Context, x *core.Matrix, weights map[string]float64) *Prediction {
	names := p.Names()
	per := p.Predict(ctx, x)
	c := Spread(per, names)
	p.observeSpread(c)
	return &Prediction{
		Models:     names,
		PerModel:   per,
		Ensemble:   Combine(per, names, weights),
		Confidence: c,
	}
}

func (p *Predictor) observeSpread(c Confidence) {
	if p.metrics == nil {
		return
	}
	for i, mean := range c.Mean {
		if math.IsNaN(mean) || mean == 0 {
			continue
		}
		std := (c.Upper[i] - mean) / ConfidenceZ
		p.metrics.observeSpread(std / math.Abs(mean))
	}
}

// Combine 对逐模型预测做加权求和，规则同 PredictEnsemble。缺少的预测值按 NaN 处理。
func Combine(preds map[string][]float64, names []string, weights map[string]float64) []float64 {
	if len(names) == 0 {
		return nil
	}
	uniform := 1 / float64(len(names))
	out := make([]float64, rowCount(preds, names))
	for _, name := range names {
		col := preds[name]
		w, ok := weights[name]
		if !ok {
			w = uniform
		}
		for i := range out {
			if i >= len(col) {
				out[i] = math.NaN()
				continue
			}
			out[i] += w * col[i]
		}
	}
	return out
}

func rowCount(preds map[string][]float64, names []string) int {
	rows := 0
	for _, name := range names {
		rows = max(rows, len(preds[name]))
	}
	return rows
}

// Spread 计算逐行均值与置信区间，只使用有限值；某行没有任何有限值时为 NaN。
func Spread(preds map[string][]float64, names []string) Confidence {
	rows := rowCount(preds, names)
	c := Confidence{
		Mean:  make([]float64, rows),
		Lower: make([]float64, rows),
		Upper: make([]float64, rows),
	}
	values := make([]float64, 0, len(names))
	for i := 0; i < rows; i++ {
		values = values[:0]
		for _, name := range names {
			if col := preds[name]; i < len(col) {
				values = append(values, col[i])
			}
		}
		finite := conv.Finite(values)
		if len(finite) == 0 {
			c.Mean[i], c.Lower[i], c.Upper[i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		mean, std := stat.PopMeanStdDev(finite, nil)
		c.Mean[i] = mean
		c.Lower[i] = mean - ConfidenceZ*std
		c.Upper[i] = mean + ConfidenceZ*std
	}
	return c
}

func nanVector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}
