package feature

import "github.com/rushteam/prixkit/core"

// flagSpellings 是可识别的布尔拼写（抓取端与表格导出端都会出现）
var flagSpellings = map[string]float64{
	"TRUE":  1,
	"True":  1,
	"true":  1,
	"1":     1,
	"FALSE": 0,
	"False": 0,
	"false": 0,
	"0":     0,
}

// ParseFlag 把布尔拼写转换为 1/0。
//
//	true, "TRUE", "True", "true", 1, "1" -> 1
//	false, "FALSE", "False", "false", 0, "0" -> 0
//
// 其他值（包括缺失）返回 false。
func ParseFlag(v any) (float64, bool) {
	if core.IsMissing(v) {
		return 0, false
	}
	switch val := v.(type) {
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		f, ok := flagSpellings[val]
		return f, ok
	case int:
		return intFlag(int64(val))
	case int64:
		return intFlag(val)
	case int32:
		return intFlag(int64(val))
	case float64:
		return floatFlag(val)
	case float32:
		return floatFlag(float64(val))
	default:
		return 0, false
	}
}

func intFlag(n int64) (float64, bool) {
	switch n {
	case 0:
		return 0, true
	case 1:
		return 1, true
	}
	return 0, false
}

func floatFlag(f float64) (float64, bool) {
	switch f {
	case 0:
		return 0, true
	case 1:
		return 1, true
	}
	return 0, false
}
