// Package store 提供 core.Store 的实现，用于保存转换器状态与模型制品。
//
// 注意：此包只包含实现，接口定义在 core 包。
//
// 示例：
//
//	var s core.Store = store.NewFileStore("artifacts")
//	data, err := s.Get(ctx, "feature_meta.json")
package store

import "github.com/rushteam/prixkit/core"

// ErrNotFound 等同于 core.ErrStoreNotFound
var ErrNotFound = core.ErrStoreNotFound
