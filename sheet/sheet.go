// Package sheet 读写房源表格：XLSX 工作表、CSV 文件、SQL 表与 webhook。
//
// 读取约定：
//   - 第一行是表头，表头为空的列被忽略
//   - 所有单元格都为空的行被丢弃
//   - 看起来是数字的单元格转为 float64，其余保持字符串，空单元格为 nil
//
// 写出约定：缺失值（nil / NaN / ±Inf）写为空单元格或 NULL。
package sheet

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// Source 是表格来源
type Source interface {
	Read(ctx context.Context) (*core.Table, error)
}

// Sink 是表格去向
type Sink interface {
	Write(ctx context.Context, t *core.Table) error
}

// Option 配置 Source / Sink
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// OpenSource 按配置创建来源（xlsx / csv）
func OpenSource(cfg config.SheetConfig, opts ...Option) (Source, error) {
	switch cfg.Kind {
	case config.SheetXLSX:
		return NewXLSX(cfg.Path, cfg.Sheet, opts...), nil
	case config.SheetCSV:
		return NewCSV(cfg.Path, opts...), nil
	default:
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeNotSupported, "sheet: unsupported source kind "+strconv.Quote(cfg.Kind))
	}
}

// OpenSink 按配置创建去向（xlsx / csv / sql）
func OpenSink(cfg config.SheetConfig, opts ...Option) (Sink, error) {
	switch cfg.Kind {
	case config.SheetXLSX:
		x := NewXLSX(cfg.Path, cfg.Sheet, opts...)
		x.Append = cfg.Append
		return x, nil
	case config.SheetCSV:
		c := NewCSV(cfg.Path, opts...)
		c.Append = cfg.Append
		return c, nil
	case config.SheetSQL:
		s, err := NewSQLSink(cfg.Driver, cfg.DSN, cfg.Table, opts...)
		if err != nil {
			return nil, err
		}
		s.Append = cfg.Append
		return s, nil
	default:
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeNotSupported, "sheet: unsupported sink kind "+strconv.Quote(cfg.Kind))
	}
}

// fromRecords 把 [表头, 行...] 形式的字符串记录转成 Table
func fromRecords(records [][]string) *core.Table {
	if len(records) == 0 {
		return core.NewTable(nil)
	}
	header := records[0]
	var columns []string
	var index []int
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		columns = append(columns, h)
		index = append(index, i)
	}

	t := core.NewTable(columns)
	for _, rec := range records[1:] {
		row := make(core.Row, len(columns))
		empty := true
		for k, i := range index {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			v := parseCell(cell)
			if v != nil {
				empty = false
			}
			row[columns[k]] = v
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t
}

// parseCell 空白 -> nil，有限数字 -> float64，其余原样
func parseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

// exportValue 把缺失值统一为 nil
func exportValue(v any) any {
	if core.IsMissing(v) {
		return nil
	}
	if f, ok := v.(float64); ok && math.IsInf(f, 0) {
		return nil
	}
	return v
}

// formatCell 把标量格式化为文本单元格
func formatCell(v any) string {
	v = exportValue(v)
	s, _ := conv.ToString(v)
	return s
}

// toRecords 生成 [表头, 行...]；withHeader 为 false 时省略表头
func toRecords(t *core.Table, withHeader bool) [][]string {
	records := make([][]string, 0, t.Len()+1)
	if withHeader {
		records = append(records, append([]string(nil), t.Columns...))
	}
	for _, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[j] = formatCell(r[c])
		}
		records = append(records, rec)
	}
	return records
}
