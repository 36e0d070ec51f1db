package feature

import (
	"slices"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// OneHotEncoder One-Hot 编码（独热编码），对应 encoder.json
//
// 将类别特征转换为二进制向量，每个类别对应一个维度，维度名为 "<列名>_<类别>"。
// 拟合时未出现过的类别编码为全 0（不报错）。
type OneHotEncoder struct {
	Columns    []string            `json:"columns"`    // 类别列（按顺序）
	Categories map[string][]string `json:"categories"` // 每个类别列的类别表（已排序）
}

// FitOneHotEncoder 从表中学习每个类别列的类别表。
// 缺失值记为 Unknown；表中不存在的列视为整列 Unknown。
func FitOneHotEncoder(t *core.Table, columns []string) *OneHotEncoder {
	e := &OneHotEncoder{
		Columns:    slices.Clone(columns),
		Categories: make(map[string][]string, len(columns)),
	}
	for _, c := range columns {
		seen := make(map[string]struct{})
		for _, r := range t.Rows {
			seen[categoryOf(r[c])] = struct{}{}
		}
		cats := make([]string, 0, len(seen))
		for k := range seen {
			cats = append(cats, k)
		}
		slices.Sort(cats)
		e.Categories[c] = cats
	}
	return e
}

// FeatureNames 返回输出维度名（列顺序 x 类别顺序）
func (e *OneHotEncoder) FeatureNames() []string {
	var names []string
	for _, c := range e.Columns {
		for _, cat := range e.Categories[c] {
			names = append(names, c+"_"+cat)
		}
	}
	return names
}

// EncodeRow 按 FeatureNames 顺序编码一行，写入 dst（长度须等于 FeatureNames）。
func (e *OneHotEncoder) EncodeRow(row core.Row, dst []float64) {
	i := 0
	for _, c := range e.Columns {
		valStr := categoryOf(row[c])
		for _, cat := range e.Categories[c] {
			if cat == valStr {
				dst[i] = 1
			} else {
				dst[i] = 0
			}
			i++
		}
	}
}

func categoryOf(v any) string {
	if core.IsMissing(v) {
		return core.Unknown
	}
	s, _ := conv.ToString(v)
	return s
}
