package model

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rushteam/prixkit/core"
)

func init() { Register("svr", loadSVR) }

// SVRModel 支持向量回归：y = sum(DualCoef_i * K(sv_i, x)) + Intercept
//
// 核函数：
//   - rbf：K(a, b) = exp(-Gamma * ||a - b||²)
//   - linear：K(a, b) = a · b
type SVRModel struct {
	name           string
	Features       []string
	Kernel         string
	Gamma          float64
	SupportVectors [][]float64
	DualCoef       []float64
	Intercept      float64
}

func loadSVR(name string, params json.RawMessage) (Regressor, error) {
	var raw struct {
		Features       []string    `json:"features"`
		Kernel         string      `json:"kernel"`
		Gamma          float64     `json:"gamma"`
		SupportVectors [][]float64 `json:"support_vectors"`
		DualCoef       []float64   `json:"dual_coef"`
		Intercept      float64     `json:"intercept"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, err
	}
	if raw.Kernel == "" {
		raw.Kernel = "rbf"
	}
	if raw.Kernel != "rbf" && raw.Kernel != "linear" {
		return nil, fmt.Errorf("unsupported kernel %q", raw.Kernel)
	}
	if len(raw.SupportVectors) != len(raw.DualCoef) {
		return nil, fmt.Errorf("support_vectors/dual_coef length mismatch: %d vs %d", len(raw.SupportVectors), len(raw.DualCoef))
	}
	for i, sv := range raw.SupportVectors {
		if len(sv) != len(raw.Features) {
			return nil, fmt.Errorf("support vector %d has %d values, model has %d features", i, len(sv), len(raw.Features))
		}
	}
	return &SVRModel{
		name:           name,
		Features:       raw.Features,
		Kernel:         raw.Kernel,
		Gamma:          raw.Gamma,
		SupportVectors: raw.SupportVectors,
		DualCoef:       raw.DualCoef,
		Intercept:      raw.Intercept,
	}, nil
}

func (m *SVRModel) Name() string { return m.name }

func (m *SVRModel) kernel(a, b []float64) float64 {
	if m.Kernel == "linear" {
		return floats.Dot(a, b)
	}
	d := floats.Distance(a, b, 2)
	return math.Exp(-m.Gamma * d * d)
}

func (m *SVRModel) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	idx, err := align(x, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, x.Rows())
	buf := make([]float64, 0, len(idx))
	for i, row := range x.Data {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		in := gather(row, idx, buf)
		y := m.Intercept
		for k, sv := range m.SupportVectors {
			y += m.DualCoef[k] * m.kernel(sv, in)
		}
		out[i] = y
	}
	return out, nil
}
