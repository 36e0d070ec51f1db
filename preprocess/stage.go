// Package preprocess 把原始抓取行整理为干净的表：类型规整、缺失值统一、价格/面积/位置清洗、
// 删除无用列、数值列中位数填补。
//
// 数据质量问题（格式错误、缺失）从不返回错误，只会降级为缺失值或默认值；不存在的列直接跳过。
package preprocess

import (
	"log/slog"

	"github.com/rushteam/prixkit/clean"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/pkg/conv"
)

// Stage 是预处理阶段。无状态，可并发使用。
type Stage struct {
	schema core.Schema
	logger *slog.Logger
}

// Option 配置 Stage
type Option func(*Stage)

// WithLogger 注入日志
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New 创建预处理阶段
func New(schema core.Schema, opts ...Option) *Stage {
	s := &Stage{
		schema: schema,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process 执行完整的预处理，返回新表，输入表不会被修改。
//
// 步骤：
//  1. 全部为 bool 的列转为 0/1
//  2. 空白字符串视为缺失
//  3. 价格清洗到目标列（优先原始价格列），面积清洗为整数
//  4. 位置拆分为 zone / ville，并以 Unknown 填补
//  5. 删除 denylist 中的列
//  6. 数值列强制转换并以本批次中位数填补
func (s *Stage) Process(in *core.Table) *core.Table {
	t := in.Clone()
	sc := s.schema

	boolCols := convertBoolColumns(t)
	blanks := blankToMissing(t)

	switch {
	case t.Has(sc.PriceColumn):
		t.Set(sc.TargetColumn, mapColumn(t, sc.PriceColumn, cleanPrice))
	case t.Has(sc.TargetColumn):
		t.Set(sc.TargetColumn, mapColumn(t, sc.TargetColumn, cleanPrice))
	}
	if t.Has(sc.SurfaceColumn) {
		t.Set(sc.SurfaceColumn, mapColumn(t, sc.SurfaceColumn, cleanSurface))
	}

	if t.Has(sc.LocationColumn) {
		zones := make([]any, t.Len())
		cities := make([]any, t.Len())
		for i, r := range t.Rows {
			zones[i], cities[i] = clean.SplitLocation(r[sc.LocationColumn])
		}
		t.Set(sc.ZoneColumn, zones)
		t.Set(sc.CityColumn, cities)
		t.Drop(sc.LocationColumn)
	}
	fillUnknown(t, sc.ZoneColumn)
	fillUnknown(t, sc.CityColumn)

	dropped := make([]string, 0, len(sc.DropColumns))
	for _, c := range sc.DropColumns {
		if t.Has(c) {
			dropped = append(dropped, c)
		}
	}
	t.Drop(dropped...)

	for _, c := range sc.Amenities {
		if t.Has(c) {
			fillZero(t, c)
		}
	}

	imputed := 0
	for _, c := range sc.NumericColumns {
		if t.Has(c) {
			imputed += imputeMedian(t, c)
		}
	}

	s.logger.Info("preprocess done",
		slog.Int("rows", t.Len()),
		slog.Int("columns", len(t.Columns)),
		slog.Int("bool_columns", boolCols),
		slog.Int("blank_cells", blanks),
		slog.Int("dropped_columns", len(dropped)),
		slog.Int("imputed_cells", imputed),
	)
	return t
}

func cleanPrice(v any) any {
	if f, ok := clean.CleanPrice(v); ok {
		return f
	}
	return nil
}

func cleanSurface(v any) any {
	if n, ok := clean.CleanSurface(v); ok {
		return n
	}
	return nil
}

func mapColumn(t *core.Table, column string, fn func(any) any) []any {
	values := t.Column(column)
	for i, v := range values {
		values[i] = fn(v)
	}
	return values
}

// convertBoolColumns 仅当一列的每个值都是 bool 时才转换，混入缺失或其他类型的列保持原样。
func convertBoolColumns(t *core.Table) int {
	if t.Len() == 0 {
		return 0
	}
	n := 0
	for _, c := range t.Columns {
		allBool := true
		for _, r := range t.Rows {
			if _, ok := r[c].(bool); !ok {
				allBool = false
				break
			}
		}
		if !allBool {
			continue
		}
		for _, r := range t.Rows {
			if r[c].(bool) {
				r[c] = 1
			} else {
				r[c] = 0
			}
		}
		n++
	}
	return n
}

func blankToMissing(t *core.Table) int {
	n := 0
	for _, r := range t.Rows {
		for k, v := range r {
			if s, ok := v.(string); ok && core.IsMissing(s) {
				r[k] = nil
				n++
			}
		}
	}
	return n
}

func fillUnknown(t *core.Table, column string) {
	values := t.Column(column)
	for i, v := range values {
		if core.IsMissing(v) {
			values[i] = core.Unknown
		}
	}
	t.Set(column, values)
}

func fillZero(t *core.Table, column string) {
	for _, r := range t.Rows {
		if core.IsMissing(r[column]) {
			r[column] = 0
		}
	}
}

// imputeMedian 把列强制转换为 float64，无法解析的值视为缺失，并以中位数填补。
// 整列缺失时以 0 填补。返回被填补的单元格数。
func imputeMedian(t *core.Table, column string) int {
	values := make([]float64, t.Len())
	present := make([]float64, 0, t.Len())
	missing := make([]bool, t.Len())
	for i, r := range t.Rows {
		f, ok := conv.ToNumber(r[column])
		if !ok {
			missing[i] = true
			continue
		}
		values[i] = f
		present = append(present, f)
	}

	fill := 0.0
	if len(present) > 0 {
		fill = feature.ComputeStatistics(present).Median
	}

	n := 0
	for i, r := range t.Rows {
		if missing[i] {
			values[i] = fill
			n++
		}
		r[column] = values[i]
	}
	return n
}
