package pipeline

import (
	"math"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/feature"
)

// 输出表列名
const (
	TruthColumn      = "prix_reel"
	PredictionPrefix = "prix_predit_"
	EnsembleColumn   = "prix_ensemble"
	LowerColumn      = "prix_bas"
	UpperColumn      = "prix_haut"
)

// PassthroughColumns 是输出表从清洗后数据原样带出的上下文列（存在时）
var PassthroughColumns = []string{"ville", "zone", "surface", "pièces", "chambres"}

type outputOptions struct {
	ensemble bool
	schema   core.Schema
}

// OutputOption 配置 BuildOutput
type OutputOption func(*outputOptions)

// WithEnsembleColumns 追加集成预测与置信区间三列
func WithEnsembleColumns() OutputOption {
	return func(o *outputOptions) { o.ensemble = true }
}

// WithOutputSchema 指定回退真实值时查找的价格列
func WithOutputSchema(s core.Schema) OutputOption {
	return func(o *outputOptions) { o.schema = s }
}

// BuildOutput 组装结果表，行与 cleaned 一一对应：
//
//	prix_reel, prix_predit_<model>...（注册表顺序）, ville, zone, surface, pièces, chambres
//
// prix_reel 优先取 target，其次清洗后的价格列，再次原始价格列，都没有时为空。
func BuildOutput(cleaned *core.Table, pred *ensemble.Prediction, target []float64, opts ...OutputOption) *core.Table {
	o := &outputOptions{schema: core.DefaultSchema()}
	for _, opt := range opts {
		opt(o)
	}

	var names []string
	if pred != nil {
		names = pred.Models
	}
	columns := []string{TruthColumn}
	for _, name := range names {
		columns = append(columns, PredictionPrefix+name)
	}
	var passthrough []string
	for _, c := range PassthroughColumns {
		if cleaned.Has(c) {
			passthrough = append(passthrough, c)
		}
	}
	columns = append(columns, passthrough...)
	if o.ensemble {
		columns = append(columns, EnsembleColumn, LowerColumn, UpperColumn)
	}

	truth := truthValues(cleaned, target, o.schema)
	out := core.NewTable(columns)
	out.Rows = make([]core.Row, cleaned.Len())
	for i, src := range cleaned.Rows {
		row := make(core.Row, len(columns))
		row[TruthColumn] = truth[i]
		for _, name := range names {
			row[PredictionPrefix+name] = at(pred.PerModel[name], i)
		}
		for _, c := range passthrough {
			row[c] = src[c]
		}
		if o.ensemble {
			row[EnsembleColumn] = at(pred.Ensemble, i)
			row[LowerColumn] = at(pred.Confidence.Lower, i)
			row[UpperColumn] = at(pred.Confidence.Upper, i)
		}
		out.Rows[i] = row
	}
	return out
}

func truthValues(cleaned *core.Table, target []float64, schema core.Schema) []any {
	n := cleaned.Len()
	if target != nil {
		values := make([]any, n)
		for i := range values {
			values[i] = at(target, i)
		}
		return values
	}
	for _, c := range []string{schema.TargetColumn, schema.PriceColumn} {
		if c != "" && cleaned.Has(c) {
			return cleaned.Column(c)
		}
	}
	return make([]any, n)
}

func at(values []float64, i int) any {
	if i < len(values) {
		return values[i]
	}
	return math.NaN()
}

// MatrixTable 把编码结果转为表（特征列 + 目标列），用于导出离线训练数据。
// 没有目标时只输出特征列。
func MatrixTable(res *feature.Result, targetColumn string) *core.Table {
	columns := append([]string(nil), res.Matrix.Columns...)
	withTarget := res.Target != nil && targetColumn != ""
	if withTarget {
		columns = append(columns, targetColumn)
	}
	out := core.NewTable(columns)
	out.Rows = make([]core.Row, res.Matrix.Rows())
	for i, data := range res.Matrix.Data {
		row := make(core.Row, len(columns))
		for j, c := range res.Matrix.Columns {
			row[c] = data[j]
		}
		if withTarget {
			row[targetColumn] = at(res.Target, i)
		}
		out.Rows[i] = row
	}
	return out
}
