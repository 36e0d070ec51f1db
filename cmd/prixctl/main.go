// prixctl 是房源估价流水线的命令行入口。
//
//	prixctl fit     -config prix.yaml   拟合并保存转换器状态，导出训练矩阵
//	prixctl predict -config prix.yaml   批量预测并写出结果表
//	prixctl serve   -config prix.yaml   启动 HTTP 估价服务
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/pipeline"
	"github.com/rushteam/prixkit/preprocess"
	"github.com/rushteam/prixkit/server"
	"github.com/rushteam/prixkit/sheet"
	"github.com/rushteam/prixkit/store"
	"github.com/rushteam/prixkit/validate"
)

const usage = "usage: prixctl <fit|predict|serve> [-config prix.yaml] [-env .env]"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "prixctl:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd := args[0]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to the YAML config file")
	envFile := fs.String("env", ".env", "path to an optional .env file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, stderr)

	switch cmd {
	case "fit":
		return runFit(ctx, cfg, logger)
	case "predict":
		return runPredict(ctx, cfg, logger)
	case "serve":
		return runServe(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func runFit(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	raw, err := readInput(ctx, cfg, logger)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	gate, err := newGate(cfg)
	if err != nil {
		return err
	}
	fitter := &pipeline.Fitter{
		Schema:       cfg.Schema,
		Stage:        preprocess.New(cfg.Schema, preprocess.WithLogger(logger)),
		Gate:         gate,
		Store:        st,
		Artifacts:    cfg.Artifacts,
		ModelVersion: cfg.ModelVersion,
		Logger:       logger,
	}
	res, err := fitter.Fit(ctx, raw)
	if err != nil {
		return err
	}

	sink, err := sheet.OpenSink(cfg.Prepared, sheet.WithLogger(logger))
	if err != nil {
		return err
	}
	defer closeSink(sink, logger)
	if err := sink.Write(ctx, pipeline.MatrixTable(res.Features, cfg.Schema.TargetColumn)); err != nil {
		return fmt.Errorf("export prepared data: %w", err)
	}
	logger.Info("fit done",
		slog.Int("rows", res.Cleaned.Len()),
		slog.Int("rejected", res.Rejected.Len()),
		slog.Int("features", res.State.Metadata.FeatureCount))
	return nil
}

func runPredict(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	raw, err := readInput(ctx, cfg, logger)
	if err != nil {
		return err
	}
	state, predictor, err := loadArtifacts(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	gate, err := newGate(cfg)
	if err != nil {
		return err
	}

	p, err := pipeline.NewNodeFactory().BuildPipeline(cfg.Pipeline.Steps, pipeline.Components{
		Stage:     preprocess.New(cfg.Schema, preprocess.WithLogger(logger)),
		Gate:      gate,
		State:     state,
		Predictor: predictor,
		Weights:   cfg.Weights(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	b := pipeline.NewBatch(raw)
	if err := p.Run(ctx, b); err != nil {
		return err
	}
	if b.Prediction == nil {
		return fmt.Errorf("pipeline steps %v produced no prediction", cfg.Pipeline.Steps)
	}

	opts := []pipeline.OutputOption{pipeline.WithOutputSchema(cfg.Schema)}
	if cfg.Pipeline.EnsembleColumns {
		opts = append(opts, pipeline.WithEnsembleColumns())
	}
	out := pipeline.BuildOutput(b.Cleaned, b.Prediction, b.Features.Target, opts...)

	sink, err := sheet.OpenSink(cfg.Output, sheet.WithLogger(logger))
	if err != nil {
		return err
	}
	defer closeSink(sink, logger)
	if err := sink.Write(ctx, out); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}

	if cfg.WebhookURL != "" {
		// webhook 失败不影响已写出的结果
		hook := sheet.NewWebhookSink(cfg.WebhookURL, 0, sheet.WithLogger(logger))
		if err := hook.Write(ctx, out); err != nil {
			logger.Error("webhook failed", slog.String("url", cfg.WebhookURL), slog.Any("error", err))
		}
	}
	logger.Info("predict done", slog.Int("rows", out.Len()), slog.Any("models", b.Prediction.Models))
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	state, predictor, err := loadArtifacts(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	srv, err := server.New(state, predictor,
		server.WithLogger(logger),
		server.WithSchema(cfg.Schema),
		server.WithWeights(cfg.Weights()),
		server.WithMaxRows(cfg.Server.MaxRows),
		server.WithGatherer(reg))
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, cfg.Server)
}

func readInput(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*core.Table, error) {
	src, err := sheet.OpenSource(cfg.Input, sheet.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	raw, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return raw, nil
}

func newGate(cfg *config.Config) (*validate.Gate, error) {
	gate, err := validate.NewGate(cfg.Validation.Gate, cfg.Validation.Validator(), cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("quality gate: %w", err)
	}
	return gate, nil
}

// loadArtifacts 加载转换器状态与模型；任一失败都属于配置错误，终止运行
func loadArtifacts(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*feature.State, *ensemble.Predictor, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	defer st.Close()

	state, err := feature.LoadState(ctx, st, cfg.Artifacts)
	if err != nil {
		return nil, nil, fmt.Errorf("load transformer state: %w", err)
	}
	predictor, err := ensemble.Load(ctx, st, cfg.Models,
		ensemble.WithLogger(logger),
		ensemble.WithRegisterer(reg),
		ensemble.WithLoadConcurrency(cfg.LoadConcurrency))
	if err != nil {
		return nil, nil, err
	}
	return state, predictor, nil
}

func closeSink(sink sheet.Sink, logger *slog.Logger) {
	if c, ok := sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("close sink", slog.Any("error", err))
		}
	}
}
