package sheet

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rushteam/prixkit/core"
)

// CSV 是逗号分隔文件，既可读也可写。
// Append 为 true 且文件已有内容时只追加数据行。
type CSV struct {
	Path   string
	Append bool

	logger *slog.Logger
}

// NewCSV 创建 CSV 来源/去向
func NewCSV(path string, opts ...Option) *CSV {
	o := buildOptions(opts)
	return &CSV{Path: path, logger: o.logger}
}

// Read 读取整个文件
func (c *CSV) Read(ctx context.Context) (*core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapDomainError(core.ModuleSheet, core.ErrorCodeNotFound, "sheet: open "+c.Path, err)
		}
		return nil, fmt.Errorf("sheet: open %s: %w", c.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleSheet, core.ErrorCodeInvalidInput, "sheet: parse "+c.Path, err)
	}
	t := fromRecords(records)
	c.logger.Info("csv read", slog.String("path", c.Path), slog.Int("rows", t.Len()))
	return t, nil
}

// Write 写出表格
func (c *CSV) Write(ctx context.Context, t *core.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(c.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sheet: mkdir %s: %w", dir, err)
		}
	}

	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	withHeader := true
	if c.Append {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if info, err := os.Stat(c.Path); err == nil && info.Size() > 0 {
			withHeader = false
		}
	}
	f, err := os.OpenFile(c.Path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("sheet: open %s: %w", c.Path, err)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(toRecords(t, withHeader)); err != nil {
		f.Close()
		return fmt.Errorf("sheet: write %s: %w", c.Path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("sheet: close %s: %w", c.Path, err)
	}
	c.logger.Info("csv written", slog.String("path", c.Path), slog.Int("rows", t.Len()), slog.Bool("append", c.Append))
	return nil
}
