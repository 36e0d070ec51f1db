package feature

import (
	"github.com/rushteam/prixkit/core"
)

// FeatureMetadata 特征元数据，对应 feature_meta.json
type FeatureMetadata struct {
	// FeatureColumns 特征列名列表（按顺序），即模型输入契约
	FeatureColumns []string `json:"feature_columns"`
	// FeatureCount 特征数量
	FeatureCount int `json:"feature_count"`
	// LabelColumn 标签列名
	LabelColumn string `json:"label_column"`
	// ModelVersion 模型版本
	ModelVersion string `json:"model_version"`
	// Normalized 是否使用了特征标准化
	Normalized bool `json:"normalized"`
	// CreatedAt 创建时间（RFC3339）
	CreatedAt string `json:"created_at"`
}

// FeatureScaler 特征标准化器，对应 feature_scaler.json
// 每个数值特征对应一个 ScalerParams，包含 mean 和 std
type FeatureScaler map[string]ScalerParams

// ScalerParams 标准化参数
type ScalerParams struct {
	// Mean 均值
	Mean float64 `json:"mean"`
	// Std 总体标准差，拟合时为 0 则记为 1
	Std float64 `json:"std"`
}

// FitScaler 对指定的数值列拟合均值与总体标准差
func FitScaler(t *core.Table, columns []string) FeatureScaler {
	s := make(FeatureScaler, len(columns))
	for _, c := range columns {
		values := make([]float64, 0, t.Len())
		for _, r := range t.Rows {
			if f, ok := r[c].(float64); ok {
				values = append(values, f)
			}
		}
		stats := ComputeStatistics(values)
		std := stats.Std
		if std == 0 {
			std = 1
		}
		s[c] = ScalerParams{Mean: stats.Mean, Std: std}
	}
	return s
}

// NormalizeValue 对单个特征值进行标准化：(x - mean) / std
// 特征不在 scaler 中时返回原值。
func (s FeatureScaler) NormalizeValue(featureName string, value float64) float64 {
	if params, ok := s[featureName]; ok {
		if params.Std > 0 {
			return (value - params.Mean) / params.Std
		}
	}
	return value
}

// MissingColumns 返回契约中存在但 columns 中没有的列
func (m *FeatureMetadata) MissingColumns(columns []string) []string {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[c] = struct{}{}
	}
	var missing []string
	for _, col := range m.FeatureColumns {
		if _, ok := have[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Reindex 按 feature_columns 顺序重排矩阵：契约中缺失的列填 0，契约之外的列丢弃。
func (m *FeatureMetadata) Reindex(x *core.Matrix) *core.Matrix {
	out := core.NewMatrix(m.FeatureColumns, x.Rows())
	src := make([]int, len(m.FeatureColumns))
	for j, col := range m.FeatureColumns {
		src[j] = x.Index(col)
	}
	for i, row := range x.Data {
		for j, k := range src {
			if k >= 0 {
				out.Data[i][j] = row[k]
			}
		}
	}
	return out
}
