package sheet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rushteam/prixkit/core"
)

// WebhookSink 把表格以 JSON POST 到一个 URL：{"rows": [{...}, ...]}。不重试。
type WebhookSink struct {
	URL string

	client *http.Client
	logger *slog.Logger
}

// NewWebhookSink 创建 webhook 去向；timeout <= 0 时默认 10 秒
func NewWebhookSink(url string, timeout time.Duration, opts ...Option) *WebhookSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewWebhookSinkWithClient(url, &http.Client{Timeout: timeout}, opts...)
}

// NewWebhookSinkWithClient 使用自定义 http.Client
func NewWebhookSinkWithClient(url string, client *http.Client, opts ...Option) *WebhookSink {
	o := buildOptions(opts)
	return &WebhookSink{URL: url, client: client, logger: o.logger}
}

type webhookPayload struct {
	Rows []map[string]any `json:"rows"`
}

// Write 发送整张表
func (w *WebhookSink) Write(ctx context.Context, t *core.Table) error {
	payload := webhookPayload{Rows: make([]map[string]any, len(t.Rows))}
	for i, r := range t.Rows {
		m := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			m[c] = exportValue(r[c])
		}
		payload.Rows[i] = m
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sheet: webhook marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sheet: webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return core.WrapDomainError(core.ModuleSheet, core.ErrorCodeUnavailable, "sheet: webhook post", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.NewDomainError(core.ModuleSheet, core.ErrorCodeUnavailable, fmt.Sprintf("sheet: webhook returned status %d", resp.StatusCode))
	}
	w.logger.Info("webhook sent", slog.String("url", w.URL), slog.Int("rows", t.Len()))
	return nil
}
