// Package clean 把单个原始字段（价格文本、面积文本、位置文本）规整为有类型的标量。
//
// 所有函数都是纯函数：相同输入得到相同输出，不持有状态，对任何畸形输入都不会 panic，
// 无法解析的值统一降级为"缺失"（返回 ok == false）。
package clean

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// EURToMAD 是欧元标价折算为迪拉姆（DH）的固定汇率
const EURToMAD = 10.5

// LocationSeparator 分隔 "<zone> à <ville>"
const LocationSeparator = " à "

// 空白字符包括不换行空格（U+00A0）与窄不换行空格（U+202F），抓取的价格千分位常用它们。
var (
	dhRegexp  = regexp.MustCompile(`(\d[\d\s\x{00A0}\x{202F}]*) ?DH`)
	eurRegexp = regexp.MustCompile(`(\d[\d\s\x{00A0}\x{202F}]*) ?EUR`)
)

// CleanPrice 把价格转换为以 DH 计价的 float64。
//
//	"1 200 000 DH" -> 1200000
//	"100 000 EUR"  -> 1050000
//	"950000"       -> 950000
//	"Prix à consulter" -> 缺失
func CleanPrice(v any) (float64, bool) {
	if core.IsMissing(v) {
		return 0, false
	}
	switch val := v.(type) {
	case bool:
		return 0, false
	case string:
		return cleanPriceText(val)
	default:
		if f, ok := conv.ToFloat64(val); ok && !math.IsInf(f, 0) {
			return f, true
		}
		s, _ := conv.ToString(val)
		return cleanPriceText(s)
	}
}

func cleanPriceText(s string) (float64, bool) {
	switch {
	case strings.Contains(s, "DH"):
		if f, ok := extractAmount(dhRegexp, s); ok {
			return f, true
		}
	case strings.Contains(s, "EUR"):
		if f, ok := extractAmount(eurRegexp, s); ok {
			return f * EURToMAD, true
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func extractAmount(re *regexp.Regexp, s string) (float64, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, m[1])
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// CleanSurface 只保留 ASCII 数字后解析为整数面积。
//
//	"85 m²" -> 85
//	"1 200 m²" -> 1200
//	"—" -> 缺失
func CleanSurface(v any) (int, bool) {
	if core.IsMissing(v) {
		return 0, false
	}
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	s, _ := conv.ToString(v)
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SplitLocation 把 "<zone> à <ville>" 拆成 (zone, ville)，按第一个分隔符切分。
// 没有分隔符时整串视为 ville，zone 为 Unknown；缺失时两者都是 Unknown。
func SplitLocation(v any) (zone, city string) {
	if core.IsMissing(v) {
		return core.Unknown, core.Unknown
	}
	s, _ := conv.ToString(v)
	before, after, found := strings.Cut(s, LocationSeparator)
	if !found {
		return core.Unknown, orUnknown(s)
	}
	return orUnknown(before), orUnknown(after)
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Unknown
	}
	return s
}
