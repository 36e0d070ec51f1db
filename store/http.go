package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rushteam/prixkit/core"
)

// HTTPStore 是只读的 HTTP 制品存储：Get 请求 GET <base>/<key>。
//
// 用法：
//
//	s := store.NewHTTPStore("http://artifacts.internal/prix/v3", 5*time.Second)
//	data, err := s.Get(ctx, "feature_meta.json")
type HTTPStore struct {
	base   string
	client *http.Client
}

// NewHTTPStore 创建 HTTP 制品存储，timeout 为 0 时使用 10 秒
func NewHTTPStore(base string, timeout time.Duration) *HTTPStore {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return NewHTTPStoreWithClient(base, &http.Client{Timeout: timeout})
}

// NewHTTPStoreWithClient 使用自定义 HTTP 客户端创建
func NewHTTPStoreWithClient(base string, client *http.Client) *HTTPStore {
	return &HTTPStore{base: strings.TrimRight(base, "/"), client: client}
}

func (h *HTTPStore) Name() string { return "http" }

func (h *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	u, err := url.JoinPath(h.base, key)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: invalid key "+key, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: GET "+u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable,
			fmt.Sprintf("store: GET %s: status=%d, body=%s", u, resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}

func (h *HTTPStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		v, err := h.Get(ctx, k)
		if core.IsStoreNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, nil
}

func (h *HTTPStore) Set(ctx context.Context, key string, value []byte) error {
	return core.ErrStoreNotSupported
}

func (h *HTTPStore) Delete(ctx context.Context, key string) error {
	return core.ErrStoreNotSupported
}

func (h *HTTPStore) BatchSet(ctx context.Context, kvs map[string][]byte) error {
	return core.ErrStoreNotSupported
}

func (h *HTTPStore) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

var _ core.Store = (*HTTPStore)(nil)
