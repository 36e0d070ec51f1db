// Package feature 把预处理后的房源表转换为定宽数值矩阵。
//
// Fit 在训练批次上学习转换器状态（类别表、数值列均值/标准差、特征列契约），
// State.Transform 用同一份状态转换之后的任意批次，保证列顺序与训练时完全一致。
//
// 转换步骤：
//  1. 布尔拼写列转为 0/1（见 ParseFlag）
//  2. 数值列补齐（不存在的列补 0，缺失值填 0）
//  3. 分离目标列（价格）
//  4. 类别列 One-Hot 编码，未见过的类别编码为全 0
//  5. 数值列标准化
//  6. 删除原始类别列，输出 = 剩余列（按表顺序）+ 独热列
//  7. transform 时按契约重排：缺失列补 0，多余列丢弃
//
// State 只读，可在多个 goroutine 间共享。
package feature

import (
	"log/slog"
	"slices"
	"time"

	"github.com/rushteam/prixkit/core"
)

// State 是拟合得到的转换器状态
type State struct {
	Encoder  *OneHotEncoder
	Scaler   FeatureScaler
	Metadata *FeatureMetadata
}

// Result 是一次编码的输出。Target 为 nil 表示批次没有目标列，缺失的目标值为 NaN。
type Result struct {
	Matrix *core.Matrix
	Target []float64
}

type fitOptions struct {
	modelVersion string
	now          func() time.Time
	logger       *slog.Logger
}

// FitOption 配置 Fit
type FitOption func(*fitOptions)

// WithModelVersion 写入 feature_meta.json 的模型版本
func WithModelVersion(version string) FitOption {
	return func(o *fitOptions) { o.modelVersion = version }
}

// WithClock 覆盖 created_at 使用的时钟
func WithClock(now func() time.Time) FitOption {
	return func(o *fitOptions) { o.now = now }
}

// WithLogger 注入日志
func WithLogger(logger *slog.Logger) FitOption {
	return func(o *fitOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Fit 在 t 上拟合转换器状态，并返回 t 自身的编码结果。空表返回 INVALID_INPUT。
func Fit(t *core.Table, schema core.Schema, opts ...FitOption) (*State, *Result, error) {
	o := &fitOptions{
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	if t.Len() == 0 {
		return nil, nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput, "feature: cannot fit on an empty table")
	}

	p := prepare(t, schema.NumericColumns, schema.CategoricalColumns, schema.TargetColumn)
	encoder := FitOneHotEncoder(p.table, schema.CategoricalColumns)
	scaler := FitScaler(p.table, schema.NumericColumns)

	indicators := encoder.FeatureNames()
	columns := append(baseColumns(p.table.Columns, encoder.Columns), indicators...)
	state := &State{
		Encoder: encoder,
		Scaler:  scaler,
		Metadata: &FeatureMetadata{
			FeatureColumns: columns,
			FeatureCount:   len(columns),
			LabelColumn:    schema.TargetColumn,
			ModelVersion:   o.modelVersion,
			Normalized:     true,
			CreatedAt:      o.now().UTC().Format(time.RFC3339),
		},
	}

	o.logger.Info("feature state fitted",
		slog.Int("rows", t.Len()),
		slog.Int("features", len(columns)),
		slog.Int("indicators", len(indicators)),
	)
	return state, state.encode(p), nil
}

// Transform 用已拟合的状态转换 t，输出列与契约一致。状态不完整时返回 core.ErrNotFitted。
func (s *State) Transform(t *core.Table) (*Result, error) {
	if !s.Ready() {
		return nil, core.ErrNotFitted
	}
	p := prepare(t, s.numericColumns(), s.Encoder.Columns, s.Metadata.LabelColumn)
	res := s.encode(p)
	res.Matrix = s.Metadata.Reindex(res.Matrix)
	return res, nil
}

// Ready 判断三份状态是否都已就绪
func (s *State) Ready() bool {
	return s != nil && s.Encoder != nil && s.Scaler != nil && s.Metadata != nil
}

// Columns 返回特征列契约
func (s *State) Columns() []string {
	if !s.Ready() {
		return nil
	}
	return slices.Clone(s.Metadata.FeatureColumns)
}

func (s *State) numericColumns() []string {
	cols := make([]string, 0, len(s.Scaler))
	for c := range s.Scaler {
		cols = append(cols, c)
	}
	slices.Sort(cols)
	return cols
}

func (s *State) encode(p prepared) *Result {
	base := baseColumns(p.table.Columns, s.Encoder.Columns)
	indicators := s.Encoder.FeatureNames()
	m := core.NewMatrix(append(slices.Clone(base), indicators...), p.table.Len())

	for i, r := range p.table.Rows {
		row := m.Data[i]
		for j, c := range base {
			if _, ok := s.Scaler[c]; ok {
				row[j] = s.Scaler.NormalizeValue(c, r[c].(float64))
				continue
			}
			row[j] = passthroughValue(r[c])
		}
		s.Encoder.EncodeRow(r, row[len(base):])
	}
	return &Result{Matrix: m, Target: p.target}
}

func baseColumns(columns, categorical []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		if !contains(categorical, c) {
			out = append(out, c)
		}
	}
	return out
}
