package model

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
)

// LoadResult 是一次批量加载的结果。Models 保持注册表顺序，只包含加载成功的模型。
type LoadResult struct {
	Models []Regressor
	Errors map[string]error // 模型名 -> 加载错误
}

// LoadAll 并发读取并解析注册表中的全部模型制品，limit 为并发上限（<= 0 表示不限）。
// 单个模型失败不会影响其他模型，错误收集在 LoadResult.Errors 中。
func LoadAll(ctx context.Context, store core.Store, specs []config.ModelSpec, limit int) *LoadResult {
	models := make([]Regressor, len(specs))
	errs := make([]error, len(specs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, spec := range specs {
		g.Go(func() error {
			data, err := store.Get(ctx, spec.Artifact)
			if err != nil {
				errs[i] = fmt.Errorf("model %s: read %s: %w", spec.Name, spec.Artifact, err)
				return nil
			}
			models[i], errs[i] = Decode(spec.Name, data)
			return nil
		})
	}
	_ = g.Wait()

	res := &LoadResult{Errors: make(map[string]error)}
	for i, spec := range specs {
		if errs[i] != nil {
			res.Errors[spec.Name] = errs[i]
			continue
		}
		res.Models = append(res.Models, models[i])
	}
	return res
}
