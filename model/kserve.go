package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rushteam/prixkit/core"
)

func init() { Register("kserve", loadKServe) }

// KServe 协议版本
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServeModel 是部署在 KServe（或兼容其协议的推理服务）上的 Regressor。
//
// V1（TensorFlow Serving REST）：
//   - POST /v1/models/{model_name}:predict
//   - 请求 {"instances": [[...], ...]}，响应 {"predictions": [...]}
//
// V2（Open Inference Protocol）：
//   - POST /v2/models/{model_name}[/versions/{version}]/infer
//   - 请求 {"inputs": [{"name": "input0", "shape": [rows, width], "datatype": "FP64", "data": [...]}]}
//   - 响应 {"outputs": [{"name": "...", "data": [...]}]}
//
// 制品 params：
//
//	{"endpoint": "http://kserve:8080", "model_name": "prix-gbr", "protocol": "v2",
//	 "version": "3", "input_name": "input0", "output_name": "variable", "timeout": "5s",
//	 "bearer_token": "..."}
type KServeModel struct {
	name        string
	Endpoint    string
	ModelName   string
	Protocol    string
	Version     string
	InputName   string
	OutputName  string
	BearerToken string
	Client      *http.Client
}

func loadKServe(name string, params json.RawMessage) (Regressor, error) {
	var raw struct {
		Endpoint    string `json:"endpoint"`
		ModelName   string `json:"model_name"`
		Protocol    string `json:"protocol"`
		Version     string `json:"version"`
		InputName   string `json:"input_name"`
		OutputName  string `json:"output_name"`
		Timeout     string `json:"timeout"`
		BearerToken string `json:"bearer_token"`
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, err
	}
	if raw.Endpoint == "" || raw.ModelName == "" {
		return nil, fmt.Errorf("endpoint and model_name are required")
	}
	switch raw.Protocol {
	case "":
		raw.Protocol = KServeV2
	case KServeV1, KServeV2:
	default:
		return nil, fmt.Errorf("unknown protocol %q", raw.Protocol)
	}
	if raw.InputName == "" {
		raw.InputName = "input0"
	}
	timeout := 30 * time.Second
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("timeout: %w", err)
		}
		timeout = d
	}
	return &KServeModel{
		name:        name,
		Endpoint:    raw.Endpoint,
		ModelName:   raw.ModelName,
		Protocol:    raw.Protocol,
		Version:     raw.Version,
		InputName:   raw.InputName,
		OutputName:  raw.OutputName,
		BearerToken: raw.BearerToken,
		Client:      &http.Client{Timeout: timeout},
	}, nil
}

func (m *KServeModel) Name() string { return m.name }

// Predict 按协议版本调用推理服务，返回值个数必须等于行数
func (m *KServeModel) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	if x.Rows() == 0 {
		return []float64{}, nil
	}
	var (
		endpoint string
		body     any
		err      error
	)
	if m.Protocol == KServeV1 {
		endpoint, err = url.JoinPath(m.Endpoint, "v1", "models", m.ModelName+":predict")
		body = map[string]any{"instances": x.Data}
	} else {
		parts := []string{"v2", "models", m.ModelName}
		if m.Version != "" {
			parts = append(parts, "versions", m.Version)
		}
		endpoint, err = url.JoinPath(m.Endpoint, append(parts, "infer")...)
		body = m.v2Request(x)
	}
	if err != nil {
		return nil, fmt.Errorf("kserve %s url: %w", m.Protocol, err)
	}

	respBody, err := m.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}
	var predictions []float64
	if m.Protocol == KServeV1 {
		predictions, err = parseV1Predictions(respBody)
	} else {
		predictions, err = m.parseV2Outputs(respBody)
	}
	if err != nil {
		return nil, err
	}
	if len(predictions) != x.Rows() {
		return nil, fmt.Errorf("kserve %s: predictions count mismatch: expected %d, got %d", m.Protocol, x.Rows(), len(predictions))
	}
	return predictions, nil
}

// v2Request 按行优先展平矩阵
func (m *KServeModel) v2Request(x *core.Matrix) map[string]any {
	data := make([]float64, 0, x.Rows()*x.Width())
	for _, row := range x.Data {
		data = append(data, row...)
	}
	return map[string]any{
		"inputs": []map[string]any{{
			"name":     m.InputName,
			"shape":    []int{x.Rows(), x.Width()},
			"datatype": "FP64",
			"data":     data,
		}},
	}
}

func (m *KServeModel) post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("kserve %s marshal request: %w", m.Protocol, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("kserve %s create request: %w", m.Protocol, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.BearerToken)
	}

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "kserve "+m.Protocol+" request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kserve %s read response: %w", m.Protocol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable,
			fmt.Sprintf("kserve %s error: status=%d, body=%s", m.Protocol, resp.StatusCode, string(respBody)))
	}
	return respBody, nil
}

func parseV1Predictions(body []byte) ([]float64, error) {
	var out struct {
		Predictions []any `json:"predictions"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("kserve v1 parse response: %w", err)
	}
	return scalars(out.Predictions), nil
}

type v2OutputTensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     []any  `json:"data"`
}

func (m *KServeModel) parseV2Outputs(body []byte) ([]float64, error) {
	var out struct {
		Outputs []v2OutputTensor `json:"outputs"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("kserve v2 parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, fmt.Errorf("kserve v2 empty outputs")
	}
	tensor := &out.Outputs[0]
	for i := range out.Outputs {
		if m.OutputName != "" && out.Outputs[i].Name == m.OutputName {
			tensor = &out.Outputs[i]
			break
		}
	}
	return scalars(tensor.Data), nil
}

// scalars 取每个元素的标量值；多输出（嵌套数组）时取第一个
func scalars(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if arr, ok := v.([]any); ok {
			if len(arr) == 0 {
				continue
			}
			v = arr[0]
		}
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}
