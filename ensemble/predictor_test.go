package ensemble

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/model"
	"github.com/rushteam/prixkit/store"
)

type fixedModel struct {
	name string
	out  []float64
	err  error
}

func (f fixedModel) Name() string { return f.name }

func (f fixedModel) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	return f.out, f.err
}

func twoRows() *core.Matrix {
	return core.NewMatrix([]string{"surface"}, 2)
}

func TestNew_NoModels(t *testing.T) {
	_, err := New(nil)
	assert.True(t, errors.Is(err, core.ErrNoModels))
	assert.True(t, core.IsConfigurationError(err))
}

func TestNew_DuplicateNames(t *testing.T) {
	_, err := New([]model.Regressor{
		fixedModel{name: "m", out: []float64{1, 2}},
		fixedModel{name: "other", out: []float64{5, 6}},
		fixedModel{name: "m", out: []float64{3, 4}},
	})
	require.Error(t, err)
	assert.True(t, core.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "m")
}

func TestPredictor_Predict(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New([]model.Regressor{
		fixedModel{name: "a", out: []float64{1, 2}},
		fixedModel{name: "broken", err: errors.New("boom")},
		fixedModel{name: "short", out: []float64{1}},
	}, WithRegisterer(reg))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "broken", "short"}, p.Names())

	preds := p.Predict(context.Background(), twoRows())
	assert.Equal(t, []float64{1, 2}, preds["a"])
	for _, name := range []string{"broken", "short"} {
		require.Len(t, preds[name], 2, name)
		assert.True(t, math.IsNaN(preds[name][0]), name)
		assert.True(t, math.IsNaN(preds[name][1]), name)
	}

	m := NewMetrics(reg)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictions.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("broken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("short")))
}

func TestPredictor_PredictEnsemble(t *testing.T) {
	p, err := New([]model.Regressor{
		fixedModel{name: "a", out: []float64{1, 2}},
		fixedModel{name: "b", out: []float64{3, 4}},
		fixedModel{name: "c", out: []float64{5, 9}},
	})
	require.NoError(t, err)
	ctx := context.Background()

	uniform := p.PredictEnsemble(ctx, twoRows(), nil)
	assert.InDeltaSlice(t, []float64{3, 5}, uniform, 1e-12)

	// 未列出的模型取 1/n
	partial := p.PredictEnsemble(ctx, twoRows(), map[string]float64{"a": 0.5})
	assert.InDeltaSlice(t, []float64{0.5 + 8.0/3, 1 + 13.0/3}, partial, 1e-12)

	// 权重不归一化
	summed := p.PredictEnsemble(ctx, twoRows(), map[string]float64{"a": 1, "b": 1, "c": 1})
	assert.Equal(t, []float64{9, 15}, summed)
}

func TestPredictor_UniformEnsembleEqualsConfidenceMean(t *testing.T) {
	p, err := New([]model.Regressor{
		fixedModel{name: "a", out: []float64{1_250_000, 730_000, 2_100_000}},
		fixedModel{name: "b", out: []float64{1_310_500, 701_250, 1_985_000}},
		fixedModel{name: "c", out: []float64{1_190_000, 815_000, 2_340_000}},
		fixedModel{name: "d", out: []float64{1_275_300, 760_000, 2_050_000}},
	})
	require.NoError(t, err)
	x := core.NewMatrix([]string{"surface"}, 3)

	ens := p.PredictEnsemble(context.Background(), x, nil)
	conf := p.PredictWithConfidence(context.Background(), x)
	for i := range ens {
		assert.InEpsilon(t, conf.Mean[i], ens[i], 1e-12)
		assert.LessOrEqual(t, conf.Lower[i], conf.Mean[i])
		assert.LessOrEqual(t, conf.Mean[i], conf.Upper[i])
	}
}

func TestPredictor_FailedModelPropagatesNaN(t *testing.T) {
	p, err := New([]model.Regressor{
		fixedModel{name: "a", out: []float64{1, 3}},
		fixedModel{name: "broken", err: errors.New("boom")},
	})
	require.NoError(t, err)

	ens := p.PredictEnsemble(context.Background(), twoRows(), nil)
	assert.True(t, math.IsNaN(ens[0]))
	assert.True(t, math.IsNaN(ens[1]))

	// 置信区间只使用有限值
	conf := p.PredictWithConfidence(context.Background(), twoRows())
	assert.Equal(t, []float64{1, 3}, conf.Mean)
	assert.Equal(t, conf.Mean, conf.Lower)
	assert.Equal(t, conf.Mean, conf.Upper)
}

func TestSpread(t *testing.T) {
	c := Spread(map[string][]float64{
		"a": {1, math.NaN()},
		"b": {3, math.NaN()},
	}, []string{"a", "b"})

	assert.Equal(t, 2.0, c.Mean[0])
	assert.InDelta(t, 2-ConfidenceZ, c.Lower[0], 1e-12)
	assert.InDelta(t, 2+ConfidenceZ, c.Upper[0], 1e-12)
	assert.True(t, math.IsNaN(c.Mean[1]))
	assert.True(t, math.IsNaN(c.Lower[1]))
	assert.True(t, math.IsNaN(c.Upper[1]))
}

func TestPredictor_PredictAll(t *testing.T) {
	p, err := New([]model.Regressor{
		fixedModel{name: "a", out: []float64{1, 2}},
		fixedModel{name: "b", out: []float64{3, 4}},
	}, WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)

	res := p.PredictAll(context.Background(), twoRows(), map[string]float64{"a": 0.25, "b": 0.75})
	assert.Equal(t, []string{"a", "b"}, res.Models)
	assert.Equal(t, []float64{2.5, 3.5}, res.Ensemble)
	assert.Equal(t, []float64{2, 3}, res.Confidence.Mean)
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "lin.json", []byte(`{"kind": "linear", "params": {"features": ["surface"], "coef": [2], "intercept": 1}}`)))

	p, err := Load(ctx, s, []config.ModelSpec{
		{Name: "Linear_Regression", Artifact: "lin.json"},
		{Name: "SVR", Artifact: "svr.json"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Linear_Regression"}, p.Names())

	x := &core.Matrix{Columns: []string{"surface"}, Data: [][]float64{{10}}}
	assert.Equal(t, []float64{21}, p.Predict(ctx, x)["Linear_Regression"])

	_, err = Load(ctx, s, []config.ModelSpec{{Name: "SVR", Artifact: "svr.json"}})
	assert.True(t, errors.Is(err, core.ErrNoModels))
	assert.True(t, core.IsConfigurationError(err))
}
