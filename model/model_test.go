package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/store"
)

func matrix(columns []string, rows ...[]float64) *core.Matrix {
	return &core.Matrix{Columns: columns, Data: rows}
}

const linearArtifact = `{
  "kind": "linear",
  "version": "2024-05-01",
  "params": {"features": ["surface", "pièces"], "coef": [2, 10], "intercept": 5}
}`

// 两棵树：第一棵按 surface <= 50 分裂（100 / 200），第二棵是值为 300 的单叶子
const trees = `[
  {"feature": [0, -2, -2], "threshold": [50, -2, -2], "children_left": [1, -1, -1], "children_right": [2, -1, -1], "value": [150, 100, 200]},
  {"feature": [-2], "threshold": [-2], "children_left": [-1], "children_right": [-1], "value": [300]}
]`

func TestSupportedKinds(t *testing.T) {
	assert.Subset(t, SupportedKinds(), []string{"boosting", "forest", "kserve", "linear", "rpc", "svr"})
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode("m", []byte(`{"kind": "xgboost", "params": {}}`))
	assert.True(t, core.IsNotSupported(err))

	_, err = Decode("m", []byte(`not json`))
	assert.True(t, core.IsInvalidInput(err))

	_, err = Decode("m", []byte(`{"kind": "linear", "params": {"features": ["a"], "coef": []}}`))
	assert.True(t, core.IsInvalidInput(err))

	// 子节点下标不大于父节点：拒绝加载，避免死循环
	_, err = Decode("m", []byte(`{"kind": "forest", "params": {"features": ["a"], "trees": [
		{"feature": [0, 0], "threshold": [1, 1], "children_left": [1, 0], "children_right": [1, 0], "value": [0, 0]}
	]}}`))
	assert.True(t, core.IsInvalidInput(err))
}

func TestLinearModel(t *testing.T) {
	m, err := Decode("Linear_Regression", []byte(linearArtifact))
	require.NoError(t, err)
	assert.Equal(t, "Linear_Regression", m.Name())

	x := matrix([]string{"pièces", "surface", "zone_Maarif"}, []float64{1, 3, 1}, []float64{2, 4, 0})
	got, err := m.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, []float64{21, 33}, got)

	// 输入缺少模型需要的列
	_, err = m.Predict(context.Background(), matrix([]string{"surface"}, []float64{1}))
	assert.True(t, core.IsInvalidInput(err))

	empty, err := m.Predict(context.Background(), matrix([]string{"pièces", "surface"}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTreeEnsemble(t *testing.T) {
	x := matrix([]string{"pièces", "surface"}, []float64{1, 40}, []float64{1, 60}, []float64{1, 50})

	forest, err := Decode("Random_Forest", []byte(`{"kind": "forest", "params": {"features": ["surface"], "trees": `+trees+`}}`))
	require.NoError(t, err)
	got, err := forest.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, []float64{200, 250, 200}, got)

	boosting, err := Decode("Gradient_Boosting", []byte(`{"kind": "boosting", "params": {"features": ["surface"], "init": 1000, "learning_rate": 0.5, "trees": `+trees+`}}`))
	require.NoError(t, err)
	got, err = boosting.Predict(context.Background(), x)
	require.NoError(t, err)
	assert.Equal(t, []float64{1200, 1250, 1200}, got)
}

func TestSVRModel(t *testing.T) {
	lin, err := Decode("SVR", []byte(`{"kind": "svr", "params": {"features": ["a", "b"], "kernel": "linear", "support_vectors": [[1, 0]], "dual_coef": [2], "intercept": 1}}`))
	require.NoError(t, err)
	got, err := lin.Predict(context.Background(), matrix([]string{"a", "b"}, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, got)

	rbf, err := Decode("SVR", []byte(`{"kind": "svr", "params": {"features": ["a", "b"], "gamma": 0.5, "support_vectors": [[0, 0]], "dual_coef": [1], "intercept": 0}}`))
	require.NoError(t, err)
	got, err = rbf.Predict(context.Background(), matrix([]string{"a", "b"}, []float64{0, 0}, []float64{1, 1}))
	require.NoError(t, err)
	assert.InDelta(t, 1, got[0], 1e-12)
	assert.InDelta(t, math.Exp(-1), got[1], 1e-12)

	_, err = Decode("SVR", []byte(`{"kind": "svr", "params": {"features": ["a"], "kernel": "poly"}}`))
	assert.Error(t, err)
}

func TestRPCModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Columns   []string    `json:"columns"`
			Instances [][]float64 `json:"instances"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Columns)

		preds := make([]float64, len(req.Instances))
		for i, row := range req.Instances {
			preds[i] = row[0] + row[1]
		}
		if len(preds) == 3 {
			preds = preds[:2]
		}
		json.NewEncoder(w).Encode(map[string]any{"predictions": preds})
	}))
	defer srv.Close()

	m, err := Decode("Remote", []byte(`{"kind": "rpc", "params": {"endpoint": "`+srv.URL+`", "timeout": "2s"}}`))
	require.NoError(t, err)

	got, err := m.Predict(context.Background(), matrix([]string{"a", "b"}, []float64{1, 2}, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, got)

	_, err = m.Predict(context.Background(), matrix([]string{"a", "b"}, []float64{1, 2}, []float64{3, 4}, []float64{5, 6}))
	assert.Error(t, err)

	_, err = Decode("Remote", []byte(`{"kind": "rpc", "params": {}}`))
	assert.Error(t, err)
}

func TestKServeModel_V2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/models/prix-gbr/versions/3/infer", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		var req struct {
			Inputs []struct {
				Name     string    `json:"name"`
				Shape    []int     `json:"shape"`
				Datatype string    `json:"datatype"`
				Data     []float64 `json:"data"`
			} `json:"inputs"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if !assert.Len(t, req.Inputs, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		in := req.Inputs[0]
		assert.Equal(t, "input0", in.Name)
		assert.Equal(t, []int{2, 2}, in.Shape)
		assert.Equal(t, "FP64", in.Datatype)
		assert.Equal(t, []float64{1, 2, 3, 4}, in.Data)

		json.NewEncoder(w).Encode(map[string]any{"outputs": []map[string]any{
			{"name": "proba", "data": []float64{0.1, 0.9}},
			{"name": "variable", "data": []float64{3, 7}},
		}})
	}))
	defer srv.Close()

	m, err := Decode("GBR", []byte(`{"kind": "kserve", "params": {"endpoint": "`+srv.URL+`",
		"model_name": "prix-gbr", "version": "3", "output_name": "variable", "bearer_token": "s3cret"}}`))
	require.NoError(t, err)
	got, err := m.Predict(context.Background(), matrix([]string{"a", "b"}, []float64{1, 2}, []float64{3, 4}))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 7}, got)
}

func TestKServeModel_V1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/prix:predict" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var req struct {
			Instances [][]float64 `json:"instances"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		preds := make([]any, len(req.Instances))
		for i, row := range req.Instances {
			preds[i] = []float64{row[0] * 10}
		}
		json.NewEncoder(w).Encode(map[string]any{"predictions": preds})
	}))
	defer srv.Close()

	m, err := Decode("TF", []byte(`{"kind": "kserve", "params": {"endpoint": "`+srv.URL+`", "model_name": "prix", "protocol": "v1"}}`))
	require.NoError(t, err)
	got, err := m.Predict(context.Background(), matrix([]string{"a"}, []float64{1}, []float64{2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, got)

	// 服务端返回非 200：不可用
	m, err = Decode("TF", []byte(`{"kind": "kserve", "params": {"endpoint": "`+srv.URL+`", "model_name": "other", "protocol": "v1"}}`))
	require.NoError(t, err)
	_, err = m.Predict(context.Background(), matrix([]string{"a"}, []float64{1}))
	assert.True(t, core.IsUnavailable(err))

	for _, params := range []string{
		`{"model_name": "prix"}`,
		`{"endpoint": "http://x", "model_name": "prix", "protocol": "grpc"}`,
		`{"endpoint": "http://x", "model_name": "prix", "timeout": "soon"}`,
	} {
		_, err := Decode("TF", []byte(`{"kind": "kserve", "params": `+params+`}`))
		assert.Error(t, err, params)
	}
}

func TestLoadAll(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Set(ctx, "modele_Linear_Regression.json", []byte(linearArtifact)))
	require.NoError(t, s.Set(ctx, "modele_Random_Forest.json", []byte(`{"kind": "forest", "params": {"features": ["surface"], "trees": `+trees+`}}`)))
	require.NoError(t, s.Set(ctx, "modele_SVR.json", []byte(`{"kind": "unknown"}`)))

	res := LoadAll(ctx, s, []config.ModelSpec{
		{Name: "Random_Forest", Artifact: "modele_Random_Forest.json"},
		{Name: "Gradient_Boosting", Artifact: "modele_Gradient_Boosting.json"},
		{Name: "Linear_Regression", Artifact: "modele_Linear_Regression.json"},
		{Name: "SVR", Artifact: "modele_SVR.json"},
	}, 2)

	require.Len(t, res.Models, 2)
	assert.Equal(t, "Random_Forest", res.Models[0].Name())
	assert.Equal(t, "Linear_Regression", res.Models[1].Name())

	require.Len(t, res.Errors, 2)
	assert.True(t, core.IsStoreNotFound(res.Errors["Gradient_Boosting"]))
	assert.True(t, core.IsNotSupported(res.Errors["SVR"]))
}
