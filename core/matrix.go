package core

import (
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Matrix 是定宽的数值特征矩阵：Columns 为列名（即特征契约），Data 按行存储。
type Matrix struct {
	Columns []string
	Data    [][]float64
}

// NewMatrix 创建 rows 行、全零的矩阵
func NewMatrix(columns []string, rows int) *Matrix {
	m := &Matrix{
		Columns: slices.Clone(columns),
		Data:    make([][]float64, rows),
	}
	for i := range m.Data {
		m.Data[i] = make([]float64, len(columns))
	}
	return m
}

// Rows 返回行数
func (m *Matrix) Rows() int {
	if m == nil {
		return 0
	}
	return len(m.Data)
}

// Width 返回列数
func (m *Matrix) Width() int {
	if m == nil {
		return 0
	}
	return len(m.Columns)
}

// Index 返回列名对应的下标，不存在返回 -1
func (m *Matrix) Index(column string) int {
	return slices.Index(m.Columns, column)
}

// Col 返回某列的拷贝；列不存在返回 nil
func (m *Matrix) Col(column string) []float64 {
	j := m.Index(column)
	if j < 0 {
		return nil
	}
	out := make([]float64, len(m.Data))
	for i, row := range m.Data {
		out[i] = row[j]
	}
	return out
}

// Dense 返回 gonum 稠密矩阵视图（拷贝）。空矩阵返回 nil。
func (m *Matrix) Dense() *mat.Dense {
	r, c := m.Rows(), m.Width()
	if r == 0 || c == 0 {
		return nil
	}
	flat := make([]float64, 0, r*c)
	for _, row := range m.Data {
		flat = append(flat, row...)
	}
	return mat.NewDense(r, c, flat)
}

// Equal 判断列契约与数据是否完全一致（逐位比较）
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if !slices.Equal(m.Columns, o.Columns) || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if !slices.Equal(m.Data[i], o.Data[i]) {
			return false
		}
	}
	return true
}
