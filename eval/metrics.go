// Package eval 计算回归评估指标并比较多个模型。
package eval

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/rushteam/prixkit/core"
)

// Metrics 是一个模型在一批数据上的回归指标
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"` // 百分比；真实值含 0 时为 +Inf
	N    int     `json:"n"`    // 参与计算的样本数
}

// Compute 计算 MAE、RMSE、R²、MAPE(%)。
// 任一侧为 NaN 的样本对会被跳过；长度不一致或没有可用样本时返回 INVALID_INPUT。
func Compute(yTrue, yPred []float64) (Metrics, error) {
	if len(yTrue) != len(yPred) {
		return Metrics{}, core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput,
			fmt.Sprintf("eval: length mismatch: %d truths vs %d predictions", len(yTrue), len(yPred)))
	}
	truth := make([]float64, 0, len(yTrue))
	pred := make([]float64, 0, len(yPred))
	for i := range yTrue {
		if math.IsNaN(yTrue[i]) || math.IsNaN(yPred[i]) {
			continue
		}
		truth = append(truth, yTrue[i])
		pred = append(pred, yPred[i])
	}
	if len(truth) == 0 {
		return Metrics{}, core.NewDomainError(core.ModuleEval, core.ErrorCodeInvalidInput, "eval: no comparable pairs")
	}

	var absSum, sqSum, pctSum float64
	for i := range truth {
		d := truth[i] - pred[i]
		absSum += math.Abs(d)
		sqSum += d * d
		pctSum += math.Abs(d / truth[i])
	}
	n := float64(len(truth))
	return Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   stat.RSquaredFrom(pred, truth, nil),
		MAPE: pctSum / n * 100,
		N:    len(truth),
	}, nil
}

// Compare 逐模型计算指标；某个模型无法计算（例如预测全为 NaN）时不出现在结果中。
func Compare(yTrue []float64, preds map[string][]float64) map[string]Metrics {
	out := make(map[string]Metrics, len(preds))
	for name, p := range preds {
		if m, err := Compute(yTrue, p); err == nil {
			out[name] = m
		}
	}
	return out
}

// 排序依据
const (
	ByMAE  = "mae"
	ByRMSE = "rmse"
	ByR2   = "r2"
	ByMAPE = "mape"
)

// Score 是排序后的一项
type Score struct {
	Model string
	Metrics
}

// Rank 按指标排序：误差类指标升序，R² 降序；相同时按模型名。
func Rank(scores map[string]Metrics, by string) []Score {
	out := make([]Score, 0, len(scores))
	for name, m := range scores {
		out = append(out, Score{Model: name, Metrics: m})
	}
	key := func(s Score) float64 {
		switch by {
		case ByRMSE:
			return s.RMSE
		case ByR2:
			return -s.R2
		case ByMAPE:
			return s.MAPE
		default:
			return s.MAE
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		if ki != kj {
			return ki < kj
		}
		return out[i].Model < out[j].Model
	})
	return out
}

// Log 把比较结果写入日志：每个模型一行，外加一张对齐的文本表
func Log(logger *slog.Logger, scores map[string]Metrics) {
	ranked := Rank(scores, ByMAE)
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %14s %14s %8s %8s\n", "model", "MAE", "RMSE", "R2", "MAPE")
	for _, s := range ranked {
		fmt.Fprintf(&b, "%-20s %14.2f %14.2f %8.4f %7.2f%%\n", s.Model, s.MAE, s.RMSE, s.R2, s.MAPE)
		logger.Info("model evaluation",
			slog.String("model", s.Model),
			slog.Float64("mae", s.MAE),
			slog.Float64("rmse", s.RMSE),
			slog.Float64("r2", s.R2),
			slog.Float64("mape", s.MAPE),
			slog.Int("n", s.N),
		)
	}
	logger.Info("model comparison\n" + b.String())
}
