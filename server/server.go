// Package server 通过 HTTP 提供在线估价：
//
//	POST /v1/predict  {"rows": [{...原始房源行...}]}
//	GET  /healthz
//	GET  /metrics
//
// 所有请求共享同一份只读的转换器状态与集成预测器。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/pipeline"
	"github.com/rushteam/prixkit/preprocess"
)

// DefaultMaxRows 是单次请求允许的最大行数
const DefaultMaxRows = 10_000

// maxBodyBytes 限制请求体大小
const maxBodyBytes = 32 << 20

// Server 是在线估价服务
type Server struct {
	schema    core.Schema
	state     *feature.State
	predictor *ensemble.Predictor
	pipeline  *pipeline.Pipeline
	maxRows   int
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	weights   map[string]float64
}

// Option 配置 Server
type Option func(*Server)

// WithLogger 注入日志
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchema 覆盖列约定
func WithSchema(schema core.Schema) Option {
	return func(s *Server) { s.schema = schema }
}

// WithWeights 设置集成权重；nil 表示等权
func WithWeights(weights map[string]float64) Option {
	return func(s *Server) { s.weights = weights }
}

// WithMaxRows 设置单次请求的行数上限
func WithMaxRows(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

// WithGatherer 设置 /metrics 暴露的指标来源，默认 prometheus.DefaultGatherer
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New 创建服务。状态未就绪返回 core.ErrNotFitted，预测器为空返回 core.ErrNoModels。
func New(state *feature.State, predictor *ensemble.Predictor, opts ...Option) (*Server, error) {
	if !state.Ready() {
		return nil, core.ErrNotFitted
	}
	if predictor == nil {
		return nil, core.ErrNoModels
	}
	s := &Server{
		schema:    core.DefaultSchema(),
		state:     state,
		predictor: predictor,
		maxRows:   DefaultMaxRows,
		gatherer:  prometheus.DefaultGatherer,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	p, err := pipeline.NewNodeFactory().BuildPipeline(
		[]string{string(pipeline.KindPreprocess), string(pipeline.KindEncode), string(pipeline.KindPredict)},
		pipeline.Components{
			Stage:     preprocess.New(s.schema, preprocess.WithLogger(s.logger)),
			State:     state,
			Predictor: predictor,
			Weights:   s.weights,
			Logger:    s.logger,
		})
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

// Handler 返回路由
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Post("/predict", s.handlePredict)
	})
	return r
}

// ListenAndServe 启动 HTTP 服务，ctx 取消时优雅退出
func (s *Server) ListenAndServe(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// PredictRequest 是 /v1/predict 的请求体
type PredictRequest struct {
	Rows []map[string]any `json:"rows"`
}

// PredictResponse 是 /v1/predict 的响应体，rows 与请求行一一对应
type PredictResponse struct {
	Models  []string         `json:"models"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req PredictRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Rows) == 0 {
		s.fail(w, r, http.StatusBadRequest, "rows must not be empty", nil)
		return
	}
	if len(req.Rows) > s.maxRows {
		s.fail(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d rows per request", s.maxRows), nil)
		return
	}

	rows := make([]core.Row, len(req.Rows))
	for i, m := range req.Rows {
		rows[i] = core.Row(m)
	}
	b := pipeline.NewBatch(core.NewTable(nil, rows...))
	if err := s.pipeline.Run(r.Context(), b); err != nil {
		s.fail(w, r, http.StatusInternalServerError, "prediction failed", err)
		return
	}

	out := pipeline.BuildOutput(b.Cleaned, b.Prediction, b.Features.Target,
		pipeline.WithEnsembleColumns(), pipeline.WithOutputSchema(s.schema))
	resp := PredictResponse{
		Models:  b.Prediction.Models,
		Columns: out.Columns,
		Rows:    make([]map[string]any, out.Len()),
	}
	for i, row := range out.Rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = jsonValue(v)
		}
		resp.Rows[i] = m
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":        "ok",
		"models":        s.predictor.Names(),
		"feature_count": s.state.Metadata.FeatureCount,
		"model_version": s.state.Metadata.ModelVersion,
	})
}

// jsonValue JSON 无法表示 NaN / ±Inf，统一为 null
func jsonValue(v any) any {
	if core.IsMissing(v) {
		return nil
	}
	if f, ok := v.(float64); ok && math.IsInf(f, 0) {
		return nil
	}
	return v
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("took", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
