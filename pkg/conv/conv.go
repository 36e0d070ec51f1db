// Package conv 提供表格标量的类型转换工具，统一 XLSX/CSV/JSON/SQL 各来源的数值表示。
package conv

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToFloat64 将 any 转为 float64（仅数值类型与 bool，不解析字符串）。
// 支持 float64、float32、int、int64、int32；bool 视为 1.0/0.0。
func ToFloat64(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case bool:
		if val {
			return 1.0, true
		}
		return 0.0, true
	default:
		return 0, false
	}
}

// ToNumber 将 any 强制转换为数值：数值类型直接返回，字符串按十进制解析（允许首尾空白）。
// 缺失（nil / NaN）与无法解析的值返回 (NaN, false)，不会 panic。
func ToNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil || math.IsNaN(f) {
			return math.NaN(), false
		}
		return f, true
	case bool:
		// 字符串以外的 bool 不视为数值，与列类型推断保持一致
		return math.NaN(), false
	default:
		f, ok := ToFloat64(v)
		if !ok || math.IsNaN(f) {
			return math.NaN(), false
		}
		return f, true
	}
}

// ToInt 将 any 转为 int（浮点数向零截断）。
// 支持 int、int64、int32、float64、float32 以及十进制整数/浮点字符串。
func ToInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return int(val), true
	case float32:
		return ToInt(float64(val))
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return ToInt(f)
	default:
		return 0, false
	}
}

// ToString 将 any 转为 string。
// string 原样返回；数值使用最短可往返表示；nil 返回 ("", false)。
func ToString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}

// ConvertSlice 将 []T 按 convert 转为 []U，convert 返回 false 的元素被跳过。
func ConvertSlice[T, U any](s []T, convert func(T) (U, bool)) []U {
	if s == nil {
		return nil
	}
	out := make([]U, 0, len(s))
	for _, v := range s {
		if u, ok := convert(v); ok {
			out = append(out, u)
		}
	}
	return out
}

// Finite 过滤掉 NaN / ±Inf
func Finite(values []float64) []float64 {
	return ConvertSlice(values, func(f float64) (float64, bool) {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	})
}
