package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/sheet"
)

const listingsCSV = `titre,prix,surface,localisation,pièces,chambres
A,1 000 000 DH,100 m²,Maarif à Casablanca,3,2
B,500 000 DH,50 m²,Agdal à Rabat,2,1
C,Prix à consulter,80 m²,Gauthier à Casablanca,3,2
`

const linearArtifact = `{"kind": "linear", "version": "test",
 "params": {"features": ["surface"], "coef": [250000], "intercept": 750000}}`

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := fmt.Sprintf(`
store:
  kind: file
  dir: %[1]s/models
input:
  kind: csv
  path: %[1]s/listings.csv
output:
  kind: csv
  path: %[1]s/out/predictions.csv
prepared:
  kind: csv
  path: %[1]s/processed/prepared_data.csv
models:
  - name: Linear_Regression
    artifact: modele_Linear_Regression.json
  - name: SVR
    artifact: modele_SVR.json
pipeline:
  steps: [preprocess, encode, predict, evaluate]
  ensemble_columns: true
log:
  level: error
`, dir)
	path := filepath.Join(dir, "prix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestRun_FitThenPredict(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listings.csv"), []byte(listingsCSV), 0o644))
	cfgPath := writeConfig(t, dir)
	envPath := filepath.Join(dir, "missing.env")
	var stderr bytes.Buffer

	require.NoError(t, run(ctx, []string{"fit", "-config", cfgPath, "-env", envPath}, &stderr))
	for _, name := range []string{"encoder.json", "feature_scaler.json", "feature_meta.json"} {
		assert.FileExists(t, filepath.Join(dir, "models", name))
	}
	prepared, err := sheet.NewCSV(filepath.Join(dir, "processed", "prepared_data.csv")).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, prepared.Len())
	assert.Contains(t, prepared.Columns, "prix_dh")

	// 没有任何模型制品：配置错误
	err = run(ctx, []string{"predict", "-config", cfgPath, "-env", envPath}, &stderr)
	require.Error(t, err)
	assert.True(t, core.IsConfigurationError(err))

	// 只有线性模型可用，SVR 制品缺失只记录日志
	require.NoError(t, os.WriteFile(filepath.Join(dir, "models", "modele_Linear_Regression.json"), []byte(linearArtifact), 0o644))
	require.NoError(t, run(ctx, []string{"predict", "-config", cfgPath, "-env", envPath}, &stderr))

	out, err := sheet.NewCSV(filepath.Join(dir, "out", "predictions.csv")).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"prix_reel", "prix_predit_Linear_Regression",
		"ville", "zone", "surface", "pièces", "chambres",
		"prix_ensemble", "prix_bas", "prix_haut",
	}, out.Columns)
	require.Equal(t, 3, out.Len())
	assert.InDelta(t, 1_000_000, out.Rows[0]["prix_predit_Linear_Regression"], 1e-6)
	assert.InDelta(t, 800_000, out.Rows[2]["prix_predit_Linear_Regression"], 1e-6)
	assert.Nil(t, out.Rows[2]["prix_reel"])
	assert.Equal(t, "Rabat", out.Rows[1]["ville"])
}

func TestRun_Usage(t *testing.T) {
	var stderr bytes.Buffer
	assert.Error(t, run(context.Background(), nil, &stderr))

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)
	err := run(context.Background(), []string{"train", "-config", cfgPath, "-env", filepath.Join(dir, "none.env")}, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(config.LogConfig{Level: "debug", Format: "text"}, &buf)
	l.Debug("hello")
	assert.Contains(t, buf.String(), "level=DEBUG")

	buf.Reset()
	l = newLogger(config.LogConfig{Level: "bogus", Format: "json"}, &buf)
	l.Debug("hidden")
	l.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
