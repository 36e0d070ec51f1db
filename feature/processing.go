package feature

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// FeatureStatistics 特征统计信息
type FeatureStatistics struct {
	Count  int
	Mean   float64
	Std    float64 // 总体标准差（ddof=0）
	Min    float64
	Max    float64
	Median float64
	P25    float64
	P75    float64
}

// ComputeStatistics 计算特征统计信息，空输入返回零值
func ComputeStatistics(values []float64) *FeatureStatistics {
	if len(values) == 0 {
		return &FeatureStatistics{}
	}

	// 复制并排序
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	stats := &FeatureStatistics{
		Count: len(values),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
	}
	stats.Mean, stats.Std = stat.PopMeanStdDev(values, nil)

	stats.Median = computePercentile(sorted, 0.5)
	stats.P25 = computePercentile(sorted, 0.25)
	stats.P75 = computePercentile(sorted, 0.75)

	return stats
}

// computePercentile 线性插值分位数（与 pandas 默认一致）
func computePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// prepared 是编码前的中间表：布尔列已转 0/1，数值列已补齐，目标列已分离。
type prepared struct {
	table  *core.Table
	target []float64
}

// prepare 执行 fit 与 transform 共用的前置步骤，不修改输入。
func prepare(in *core.Table, numeric, categorical []string, target string) prepared {
	t := in.Clone()

	for _, c := range t.Columns {
		if c == target || contains(categorical, c) {
			continue
		}
		coerceFlagColumn(t, c)
	}

	for _, c := range numeric {
		if !t.Has(c) {
			t.Columns = append(t.Columns, c)
		}
		for _, r := range t.Rows {
			f, ok := conv.ToNumber(r[c])
			if !ok {
				f = 0
			}
			r[c] = f
		}
	}

	var y []float64
	if target != "" && t.Has(target) {
		y = make([]float64, t.Len())
		for i, r := range t.Rows {
			f, ok := conv.ToNumber(r[target])
			if !ok {
				f = math.NaN()
			}
			y[i] = f
		}
		t.Drop(target)
	}
	return prepared{table: t, target: y}
}

// coerceFlagColumn 当一列所有非缺失值都是布尔拼写时，把整列转为 0/1 浮点（缺失保持缺失）。
// 全缺失的列同样满足条件。
func coerceFlagColumn(t *core.Table, column string) {
	for _, r := range t.Rows {
		v := r[column]
		if core.IsMissing(v) {
			continue
		}
		if _, ok := ParseFlag(v); !ok {
			return
		}
	}
	for _, r := range t.Rows {
		if f, ok := ParseFlag(r[column]); ok {
			r[column] = f
		} else {
			r[column] = math.NaN()
		}
	}
}

// passthroughValue 非数值、非类别的剩余列转为 float64，缺失或无法解析记为 0。
func passthroughValue(v any) float64 {
	f, ok := conv.ToNumber(v)
	if !ok || math.IsInf(f, 0) {
		return 0
	}
	return f
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
