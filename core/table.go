package core

import (
	"math"
	"slices"
	"strings"
)

// Unknown 是缺失的类别字段（zone / ville）统一使用的默认值。
const Unknown = "Unknown"

// Row 是一条房源记录：字段名 -> 标量（string / float64 / int / bool）。
// nil 或 NaN 表示缺失。
type Row map[string]any

// Table 是一批按列组织的记录。
// Columns 决定列的存在性与顺序，Row 中缺少某列的 key 视为该值缺失。
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable 创建表；rows 中出现但 columns 未声明的字段会追加到列尾（同一行内按字典序）。
func NewTable(columns []string, rows ...Row) *Table {
	t := &Table{Columns: slices.Clone(columns), Rows: rows}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		seen[c] = struct{}{}
	}
	for _, r := range rows {
		keys := make([]string, 0, len(r))
		for k := range r {
			if _, ok := seen[k]; !ok {
				keys = append(keys, k)
			}
		}
		slices.Sort(keys)
		for _, k := range keys {
			seen[k] = struct{}{}
			t.Columns = append(t.Columns, k)
		}
	}
	return t
}

// Len 返回行数
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Has 判断列是否存在
func (t *Table) Has(column string) bool {
	return slices.Contains(t.Columns, column)
}

// Clone 深拷贝（行 map 重新分配，标量值直接复制）
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		nr := make(Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out.Rows[i] = nr
	}
	return out
}

// Column 返回某列的全部值（缺失为 nil）
func (t *Table) Column(column string) []any {
	values := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		values[i] = r[column]
	}
	return values
}

// Set 写入整列；列不存在时追加到列尾。len(values) 必须等于行数。
func (t *Table) Set(column string, values []any) {
	if !t.Has(column) {
		t.Columns = append(t.Columns, column)
	}
	for i, r := range t.Rows {
		r[column] = values[i]
	}
}

// Drop 删除列（不存在的列忽略）
func (t *Table) Drop(columns ...string) {
	if len(columns) == 0 {
		return
	}
	t.Columns = slices.DeleteFunc(t.Columns, func(c string) bool {
		return slices.Contains(columns, c)
	})
	for _, r := range t.Rows {
		for _, c := range columns {
			delete(r, c)
		}
	}
}

// Filter 按行谓词返回新表（行 map 共享，不拷贝）
func (t *Table) Filter(keep func(i int, r Row) bool) *Table {
	out := &Table{Columns: slices.Clone(t.Columns)}
	for i, r := range t.Rows {
		if keep(i, r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// IsMissing 判断值是否为缺失：nil、NaN、或空白字符串。
func IsMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	case string:
		return strings.TrimSpace(val) == ""
	default:
		return false
	}
}
