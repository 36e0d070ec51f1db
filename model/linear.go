package model

import (
	"context"
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/prixkit/core"
)

func init() { Register("linear", loadLinear) }

// LinearModel 线性回归：y = Intercept + sum(Coef_i * x_i)
//
// 制品 params（与 sklearn LinearRegression 的 feature_names_in_ / coef_ / intercept_ 对应）：
//
//	{"features": ["surface", "pièces", ...], "coef": [1520.3, ...], "intercept": 250000}
type LinearModel struct {
	name      string
	Features  []string
	Coef      []float64
	Intercept float64
}

// NewLinearModel 创建线性模型
func NewLinearModel(name string, features []string, coef []float64, intercept float64) (*LinearModel, error) {
	if len(features) != len(coef) {
		return nil, fmt.Errorf("features/coef length mismatch: %d vs %d", len(features), len(coef))
	}
	return &LinearModel{name: name, Features: features, Coef: coef, Intercept: intercept}, nil
}

func loadLinear(name string, params json.RawMessage) (Regressor, error) {
	var raw struct {
		Features  []string  `json:"features"`
		Coef      []float64 `json:"coef"`
		Intercept float64   `json:"intercept"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, err
	}
	return NewLinearModel(name, raw.Features, raw.Coef, raw.Intercept)
}

func (m *LinearModel) Name() string { return m.name }

func (m *LinearModel) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	idx, err := align(x, m.Features)
	if err != nil {
		return nil, err
	}
	n := x.Rows()
	out := make([]float64, n)
	if n == 0 {
		return out, nil
	}
	if len(idx) == 0 {
		for i := range out {
			out[i] = m.Intercept
		}
		return out, nil
	}

	// 把系数铺到矩阵列上，未被模型使用的列权重为 0
	w := make([]float64, x.Width())
	for i, j := range idx {
		w[j] += m.Coef[i]
	}
	var y mat.VecDense
	y.MulVec(x.Dense(), mat.NewVecDense(len(w), w))
	for i := range out {
		out[i] = y.AtVec(i) + m.Intercept
	}
	return out, nil
}
