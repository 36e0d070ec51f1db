package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/rushteam/prixkit/core"
)

// XLSX 是 Excel 工作簿中的一张工作表，既可读也可写。
//
// Write 默认替换整张工作表（先删后建），工作簿中的其它工作表保持不变；
// Append 为 true 时把数据行追加到已有内容之后，不重复写表头。
type XLSX struct {
	Path   string
	Sheet  string
	Append bool

	logger *slog.Logger
}

// NewXLSX 创建 XLSX 来源/去向；sheet 为空时使用第一张工作表
func NewXLSX(path, sheet string, opts ...Option) *XLSX {
	o := buildOptions(opts)
	return &XLSX{Path: path, Sheet: sheet, logger: o.logger}
}

// Read 读取工作表
func (x *XLSX) Read(ctx context.Context) (*core.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(x.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.WrapDomainError(core.ModuleSheet, core.ErrorCodeNotFound, "sheet: open "+x.Path, err)
		}
		return nil, fmt.Errorf("sheet: open %s: %w", x.Path, err)
	}
	defer f.Close()

	name := x.Sheet
	if name == "" {
		name = f.GetSheetName(0)
	}
	if idx, _ := f.GetSheetIndex(name); idx < 0 {
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeNotFound, fmt.Sprintf("sheet: worksheet %q not found in %s", name, x.Path))
	}
	records, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet: read %q: %w", name, err)
	}
	t := fromRecords(records)
	x.logger.Info("sheet read", slog.String("path", x.Path), slog.String("sheet", name), slog.Int("rows", t.Len()))
	return t, nil
}

// Write 写出表格
func (x *XLSX) Write(ctx context.Context, t *core.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if x.Sheet == "" {
		return core.NewDomainError(core.ModuleSheet, core.ErrorCodeInvalidInput, "sheet: worksheet name is required for writing")
	}

	f, created, err := x.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	startRow := 1
	withHeader := true
	idx, _ := f.GetSheetIndex(x.Sheet)
	switch {
	case x.Append && idx >= 0:
		existing, err := f.GetRows(x.Sheet)
		if err != nil {
			return fmt.Errorf("sheet: read %q: %w", x.Sheet, err)
		}
		if len(existing) > 0 {
			startRow = len(existing) + 1
			withHeader = false
		}
	case idx >= 0:
		if idx, err = x.replaceSheet(f); err != nil {
			return err
		}
	default:
		if idx, err = f.NewSheet(x.Sheet); err != nil {
			return fmt.Errorf("sheet: create %q: %w", x.Sheet, err)
		}
	}
	if created {
		// 新工作簿自带的默认工作表
		for _, name := range f.GetSheetList() {
			if name != x.Sheet {
				if err := f.DeleteSheet(name); err != nil {
					return fmt.Errorf("sheet: delete %q: %w", name, err)
				}
			}
		}
		idx, _ = f.GetSheetIndex(x.Sheet)
	}
	f.SetActiveSheet(idx)

	rowNum := startRow
	if withHeader {
		header := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			header[j] = c
		}
		if err := x.setRow(f, rowNum, header); err != nil {
			return err
		}
		rowNum++
	}
	for _, r := range t.Rows {
		values := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			values[j] = exportValue(r[c])
		}
		if err := x.setRow(f, rowNum, values); err != nil {
			return err
		}
		rowNum++
	}

	if dir := filepath.Dir(x.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sheet: mkdir %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(x.Path); err != nil {
		return fmt.Errorf("sheet: save %s: %w", x.Path, err)
	}
	x.logger.Info("sheet written",
		slog.String("path", x.Path),
		slog.String("sheet", x.Sheet),
		slog.Int("rows", t.Len()),
		slog.Bool("append", x.Append))
	return nil
}

func (x *XLSX) openOrCreate() (*excelize.File, bool, error) {
	f, err := excelize.OpenFile(x.Path)
	if err == nil {
		return f, false, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	return nil, false, fmt.Errorf("sheet: open %s: %w", x.Path, err)
}

// replaceSheet 删除并重建同名工作表。工作簿至少保留一张表，所以先建临时表再改名。
func (x *XLSX) replaceSheet(f *excelize.File) (int, error) {
	tmp := x.Sheet + "~"
	if _, err := f.NewSheet(tmp); err != nil {
		return -1, fmt.Errorf("sheet: create %q: %w", tmp, err)
	}
	if err := f.DeleteSheet(x.Sheet); err != nil {
		return -1, fmt.Errorf("sheet: delete %q: %w", x.Sheet, err)
	}
	if err := f.SetSheetName(tmp, x.Sheet); err != nil {
		return -1, fmt.Errorf("sheet: rename %q: %w", tmp, err)
	}
	x.logger.Debug("sheet replaced", slog.String("sheet", x.Sheet))
	return f.GetSheetIndex(x.Sheet)
}

func (x *XLSX) setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(x.Sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet: write row %d: %w", row, err)
	}
	return nil
}
