package model

import (
	"encoding/json"
	"sort"
	"sync"
)

// Loader 根据 params 构建模型；各 kind 在 init 中调用 Register 即可被制品驱动。
type Loader func(name string, params json.RawMessage) (Regressor, error)

var (
	loaders   = make(map[string]Loader)
	loadersMu sync.RWMutex
)

// Register 注册一种模型 kind 的加载逻辑，同名覆盖。
// 建议在 init 中调用，例如：func init() { model.Register("xgboost", loadXGBoost) }
func Register(kind string, loader Loader) {
	if kind == "" || loader == nil {
		return
	}
	loadersMu.Lock()
	defer loadersMu.Unlock()
	loaders[kind] = loader
}

// SupportedKinds 返回当前已注册的 kind（排序），用于错误提示与校验。
func SupportedKinds() []string {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	kinds := make([]string, 0, len(loaders))
	for k := range loaders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func lookup(kind string) (Loader, bool) {
	loadersMu.RLock()
	defer loadersMu.RUnlock()
	l, ok := loaders[kind]
	return l, ok
}
