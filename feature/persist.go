package feature

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/prixkit/core"
)

// Artifacts 是转换器状态三个制品在 Store 中的 key
type Artifacts struct {
	Encoder  string `yaml:"encoder" json:"encoder"`
	Scaler   string `yaml:"scaler" json:"scaler"`
	Features string `yaml:"features" json:"features"`
}

// DefaultArtifacts 返回默认 key
func DefaultArtifacts() Artifacts {
	return Artifacts{
		Encoder:  "encoder.json",
		Scaler:   "feature_scaler.json",
		Features: "feature_meta.json",
	}
}

// SaveState 把状态写为三个 JSON 制品（encoder.json / feature_scaler.json / feature_meta.json）。
//
// float64 按最短可往返格式编码，加载后的 Transform 与保存前逐位一致。
func SaveState(ctx context.Context, store core.Store, a Artifacts, s *State) error {
	if !s.Ready() {
		return core.ErrNotFitted
	}
	kvs := make(map[string][]byte, 3)
	for key, v := range map[string]any{
		a.Encoder:  s.Encoder,
		a.Scaler:   s.Scaler,
		a.Features: s.Metadata,
	} {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化制品 %s 失败: %w", key, err)
		}
		kvs[key] = data
	}
	if err := store.BatchSet(ctx, kvs); err != nil {
		return fmt.Errorf("写入转换器状态失败: %w", err)
	}
	return nil
}

// LoadState 一次性加载三个制品；任一缺失或无法解析都会失败，不会返回部分状态。
func LoadState(ctx context.Context, store core.Store, a Artifacts) (*State, error) {
	var (
		encoder OneHotEncoder
		scaler  FeatureScaler
		meta    FeatureMetadata
	)
	for _, item := range []struct {
		key string
		dst any
	}{
		{a.Encoder, &encoder},
		{a.Scaler, &scaler},
		{a.Features, &meta},
	} {
		data, err := store.Get(ctx, item.key)
		if err != nil {
			return nil, fmt.Errorf("读取制品 %s 失败: %w", item.key, err)
		}
		if err := json.Unmarshal(data, item.dst); err != nil {
			return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeInvalidInput,
				fmt.Sprintf("解析制品 %s 失败", item.key), err)
		}
	}
	if encoder.Categories == nil {
		encoder.Categories = map[string][]string{}
	}
	if scaler == nil {
		scaler = FeatureScaler{}
	}
	return &State{Encoder: &encoder, Scaler: scaler, Metadata: &meta}, nil
}
