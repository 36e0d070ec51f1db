package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/prixkit/core"
)

// 存储后端类型
const (
	KindFile   = "file"
	KindMemory = "memory"
	KindRedis  = "redis"
	KindHTTP   = "http"
)

// Config 选择并配置一个存储后端
type Config struct {
	Kind        string        `yaml:"kind" split_words:"true"`
	Dir         string        `yaml:"dir" split_words:"true"`
	RedisAddr   string        `yaml:"redis_addr" split_words:"true"`
	RedisDB     int           `yaml:"redis_db" split_words:"true"`
	RedisPrefix string        `yaml:"redis_prefix" split_words:"true"`
	HTTPBase    string        `yaml:"http_base" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

// Validate 检查所选后端的必填项
func (c Config) Validate() error {
	switch c.Kind {
	case KindFile:
		if c.Dir == "" {
			return fmt.Errorf("dir is required for the file store")
		}
	case KindRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required for the redis store")
		}
	case KindHTTP:
		if c.HTTPBase == "" {
			return fmt.Errorf("http_base is required for the http store")
		}
	case KindMemory:
	default:
		return fmt.Errorf("unknown kind %q", c.Kind)
	}
	return nil
}

// Open 按配置创建存储后端
func Open(ctx context.Context, cfg Config) (core.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: open", err)
	}
	switch cfg.Kind {
	case KindFile:
		return NewFileStore(cfg.Dir), nil
	case KindRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
	case KindHTTP:
		return NewHTTPStore(cfg.HTTPBase, cfg.Timeout), nil
	default:
		return NewMemoryStore(), nil
	}
}
