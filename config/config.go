// Package config 加载 prixkit 的运行配置。
//
// 加载顺序（后者覆盖前者）：
//  1. 内置默认值（Default）
//  2. YAML 配置文件（可选）
//  3. .env 文件（可选，文件不存在时忽略）
//  4. PRIX_* 环境变量，例如 PRIX_STORE_DIR、PRIX_WEBHOOK_URL、PRIX_LOG_LEVEL
//
// 结构复杂的段（schema、models）只能在 YAML 中配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/feature"
	"github.com/rushteam/prixkit/store"
	"github.com/rushteam/prixkit/validate"
)

// EnvPrefix 是环境变量前缀
const EnvPrefix = "PRIX"

// Config 是完整的运行配置
type Config struct {
	Schema       core.Schema       `yaml:"schema" ignored:"true"`
	Validation   ValidationConfig  `yaml:"validation" split_words:"true"`
	Store        StoreConfig       `yaml:"store" split_words:"true"`
	Artifacts    feature.Artifacts `yaml:"artifacts" split_words:"true"`
	Models       []ModelSpec       `yaml:"models" ignored:"true"`
	ModelVersion string            `yaml:"model_version" split_words:"true"`
	// LoadConcurrency 并发加载模型制品的上限
	LoadConcurrency int            `yaml:"load_concurrency" split_words:"true"`
	Input           SheetConfig    `yaml:"input" split_words:"true"`
	Output          SheetConfig    `yaml:"output" split_words:"true"`
	Prepared        SheetConfig    `yaml:"prepared" split_words:"true"`
	WebhookURL      string         `yaml:"webhook_url" split_words:"true"`
	Pipeline        PipelineConfig `yaml:"pipeline" split_words:"true"`
	Log             LogConfig      `yaml:"log" split_words:"true"`
	Server          ServerConfig   `yaml:"server" split_words:"true"`
}

// ValidationConfig 是行校验的取值域与质量闸门表达式
type ValidationConfig struct {
	Price    validate.Range `yaml:"price" split_words:"true"`
	Surface  validate.Range `yaml:"surface" split_words:"true"`
	MaxRooms int            `yaml:"max_rooms" split_words:"true"`
	Gate     string         `yaml:"gate" split_words:"true"`
}

// Validator 按配置创建 Validator
func (v ValidationConfig) Validator() *validate.Validator {
	return validate.New(
		validate.WithPriceRange(v.Price),
		validate.WithSurfaceRange(v.Surface),
		validate.WithMaxRooms(v.MaxRooms),
	)
}

// StoreConfig 是制品存储配置
type StoreConfig = store.Config

// ModelSpec 是模型注册表中的一项。Weight 为空时该模型在加权集成中取 1/n。
type ModelSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Artifact string   `yaml:"artifact" json:"artifact"`
	Weight   *float64 `yaml:"weight,omitempty" json:"weight,omitempty"`
}

// Weights 返回显式配置的权重；一个都没有配置时返回 nil（等权）。
func (c *Config) Weights() map[string]float64 {
	var w map[string]float64
	for _, m := range c.Models {
		if m.Weight == nil {
			continue
		}
		if w == nil {
			w = make(map[string]float64, len(c.Models))
		}
		w[m.Name] = *m.Weight
	}
	return w
}

// 表格来源/去向类型
const (
	SheetXLSX = "xlsx"
	SheetCSV  = "csv"
	SheetSQL  = "sql"
)

// SheetConfig 描述一个表格来源或去向
type SheetConfig struct {
	Kind   string `yaml:"kind" split_words:"true"`
	Path   string `yaml:"path" split_words:"true"`
	Sheet  string `yaml:"sheet" split_words:"true"`
	Driver string `yaml:"driver" split_words:"true"` // postgres / sqlite
	DSN    string `yaml:"dsn" split_words:"true"`
	Table  string `yaml:"table" split_words:"true"`
	Append bool   `yaml:"append" split_words:"true"`
}

// PipelineConfig 预测流水线的节点编排
type PipelineConfig struct {
	// Steps 是按顺序执行的节点类型：preprocess / quality / encode / predict / evaluate
	Steps []string `yaml:"steps" split_words:"true"`
	// EnsembleColumns 为 true 时输出表追加 prix_ensemble / prix_bas / prix_haut
	EnsembleColumns bool `yaml:"ensemble_columns" split_words:"true"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" split_words:"true"`  // debug / info / warn / error
	Format string `yaml:"format" split_words:"true"` // json / text
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Addr            string        `yaml:"addr" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	MaxRows         int           `yaml:"max_rows" split_words:"true"`
}

// Default 返回内置默认配置
func Default() *Config {
	return &Config{
		Schema: core.DefaultSchema(),
		Validation: ValidationConfig{
			Price:    validate.DefaultPriceRange,
			Surface:  validate.DefaultSurfaceRange,
			MaxRooms: validate.DefaultMaxRooms,
			Gate:     validate.DefaultGateExpr,
		},
		Store:     StoreConfig{Kind: store.KindFile, Dir: "models", RedisPrefix: "prixkit:", Timeout: 10 * time.Second},
		Artifacts: feature.DefaultArtifacts(),
		Models: []ModelSpec{
			{Name: "Linear_Regression", Artifact: "modele_Linear_Regression.json"},
			{Name: "Random_Forest", Artifact: "modele_Random_Forest.json"},
			{Name: "Gradient_Boosting", Artifact: "modele_Gradient_Boosting.json"},
			{Name: "SVR", Artifact: "modele_SVR.json"},
		},
		LoadConcurrency: 4,
		Input:           SheetConfig{Kind: SheetXLSX, Path: "data/properties.xlsx", Sheet: "Feuille 1"},
		Output:          SheetConfig{Kind: SheetXLSX, Path: "data/properties.xlsx", Sheet: "Predictions"},
		Prepared:        SheetConfig{Kind: SheetCSV, Path: "data/processed/prepared_data.csv"},
		Pipeline: PipelineConfig{
			Steps: []string{"preprocess", "encode", "predict", "evaluate"},
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRows:         10_000,
		},
	}
}

// Load 按默认值 -> YAML -> .env -> 环境变量的顺序加载配置并校验。
// path 为空时跳过 YAML；envFiles 为空时尝试当前目录的 .env。
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv 不覆盖已存在的环境变量，进程环境优先于 .env
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置；错误为 config 模块的 INVALID_INPUT。
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return invalid("models: registry is empty")
	}
	seen := make(map[string]struct{}, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" || m.Artifact == "" {
			return invalid(fmt.Sprintf("models: entry %+v needs both name and artifact", m))
		}
		if _, dup := seen[m.Name]; dup {
			return invalid("models: duplicate model " + m.Name)
		}
		seen[m.Name] = struct{}{}
	}

	if err := c.Store.Validate(); err != nil {
		return invalid("store: " + err.Error())
	}

	if !slices.Contains([]string{SheetXLSX, SheetCSV}, c.Input.Kind) {
		return invalid(fmt.Sprintf("input: unknown kind %q", c.Input.Kind))
	}
	for name, s := range map[string]SheetConfig{"output": c.Output, "prepared": c.Prepared} {
		if !slices.Contains([]string{SheetXLSX, SheetCSV, SheetSQL}, s.Kind) {
			return invalid(fmt.Sprintf("%s: unknown kind %q", name, s.Kind))
		}
		if s.Kind == SheetSQL && (s.Driver == "" || s.DSN == "" || s.Table == "") {
			return invalid(name + ": sql needs driver, dsn and table")
		}
	}

	v := c.Validation
	if v.Price.Min > v.Price.Max {
		return invalid("validation: price range is inverted")
	}
	if v.Surface.Min > v.Surface.Max {
		return invalid("validation: surface range is inverted")
	}
	if v.MaxRooms < 0 {
		return invalid("validation: max_rooms must be >= 0")
	}
	if len(c.Pipeline.Steps) == 0 {
		return invalid("pipeline: steps must not be empty")
	}
	if c.LoadConcurrency < 1 {
		return invalid("load_concurrency must be >= 1")
	}
	return nil
}

func invalid(msg string) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "config: "+msg)
}
