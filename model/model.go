// Package model 定义回归模型抽象与模型制品格式。
//
// 模型制品是一个 JSON 信封：
//
//	{"kind": "linear", "version": "2024-05-01", "params": {...}}
//
// kind 决定由哪个 Loader 解析 params。内置 kind：linear、forest、boosting、svr、rpc，
// 其他 kind 可通过 Register 在 init 中注册。
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/prixkit/core"
)

// Regressor 是预测阶段的最小抽象：输入特征矩阵，输出每行一个价格。
// 具体实现可以是本地模型（线性/树/SVR）或远程 RPC 模型服务。
// 实现必须只读，可被多个 goroutine 同时调用。
type Regressor interface {
	Name() string
	Predict(ctx context.Context, x *core.Matrix) ([]float64, error)
}

// Envelope 是模型制品的外层结构
type Envelope struct {
	Kind    string          `json:"kind"`
	Version string          `json:"version,omitempty"`
	Params  json.RawMessage `json:"params"`
}

// Decode 解析模型制品，name 是模型在注册表中的名字。
func Decode(name string, data []byte) (Regressor, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, invalidArtifact(name, "parse envelope", err)
	}
	loader, ok := lookup(env.Kind)
	if !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotSupported,
			fmt.Sprintf("model %s: unsupported kind %q (supported: %v)", name, env.Kind, SupportedKinds()))
	}
	m, err := loader(name, env.Params)
	if err != nil {
		return nil, invalidArtifact(name, "load "+env.Kind, err)
	}
	return m, nil
}

func invalidArtifact(name, what string, err error) error {
	return core.WrapDomainError(core.ModuleModel, core.ErrorCodeInvalidInput, fmt.Sprintf("model %s: %s", name, what), err)
}

// align 返回模型特征在矩阵中的列下标；矩阵缺少模型需要的列时报错（制品与转换器状态不匹配）。
func align(x *core.Matrix, features []string) ([]int, error) {
	idx := make([]int, len(features))
	for i, f := range features {
		j := x.Index(f)
		if j < 0 {
			return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
				fmt.Sprintf("feature %q missing from input matrix", f))
		}
		idx[i] = j
	}
	return idx, nil
}

// gather 按下标从一行中取出模型输入
func gather(row []float64, idx []int, dst []float64) []float64 {
	dst = dst[:0]
	for _, j := range idx {
		dst = append(dst, row[j])
	}
	return dst
}
