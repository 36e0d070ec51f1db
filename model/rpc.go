package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/prixkit/core"
)

func init() { Register("rpc", loadRPC) }

// RPCModel 是通过 HTTP 调用外部模型服务的 Regressor 实现。
// 适用于无法导出为 JSON 参数的模型（XGBoost、TorchServe、自建 sklearn 服务等）。
//
// 制品 params：
//
//	{"endpoint": "http://localhost:9000/predict", "timeout": "5s"}
type RPCModel struct {
	name     string
	Endpoint string
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func loadRPC(name string, params json.RawMessage) (Regressor, error) {
	var raw struct {
		Endpoint string `json:"endpoint"`
		Timeout  string `json:"timeout"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, err
	}
	if raw.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	var timeout time.Duration
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		timeout = d
	}
	return NewRPCModel(name, raw.Endpoint, timeout), nil
}

func (m *RPCModel) Name() string {
	return m.name
}

// Predict 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"columns": ["surface", "pièces", ...], "instances": [[0.12, -1.3, ...], ...]}
//
// 响应格式（JSON）：
//
//	{"predictions": [1250000.0, 870000.0, ...]}
func (m *RPCModel) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	if x.Rows() == 0 {
		return []float64{}, nil
	}

	// 构建请求
	reqBody := map[string]any{
		"columns":   x.Columns,
		"instances": x.Data,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// 发送请求
	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "rpc call", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("rpc error: status=%d, body=%s", resp.StatusCode, string(body)))
	}

	// 解析响应
	var result struct {
		Predictions []float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Predictions) != x.Rows() {
		return nil, fmt.Errorf("response predictions count mismatch: expected %d, got %d", x.Rows(), len(result.Predictions))
	}

	return result.Predictions, nil
}
