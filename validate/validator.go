// Package validate 判断清洗后的标量是否落在可接受的取值域内（价格、面积、房间数），
// 用于训练/评估前的数据质量闸门。只做分类，从不修改值。
package validate

import (
	"strconv"
	"strings"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// Range 是闭区间 [Min, Max]
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains 判断 v 是否在闭区间内
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// 默认取值域
var (
	DefaultPriceRange   = Range{Min: 10_000, Max: 100_000_000}
	DefaultSurfaceRange = Range{Min: 10, Max: 10_000}
)

// DefaultMaxRooms 是房间数上限（含）
const DefaultMaxRooms = 20

// Validator 持有可配置的取值域。零值不可用，请使用 New。
type Validator struct {
	Price    Range
	Surface  Range
	MaxRooms int
}

// Option 配置 Validator
type Option func(*Validator)

// WithPriceRange 覆盖价格区间
func WithPriceRange(r Range) Option {
	return func(v *Validator) { v.Price = r }
}

// WithSurfaceRange 覆盖面积区间
func WithSurfaceRange(r Range) Option {
	return func(v *Validator) { v.Surface = r }
}

// WithMaxRooms 覆盖房间数上限
func WithMaxRooms(n int) Option {
	return func(v *Validator) { v.MaxRooms = n }
}

// New 创建 Validator
func New(opts ...Option) *Validator {
	v := &Validator{
		Price:    DefaultPriceRange,
		Surface:  DefaultSurfaceRange,
		MaxRooms: DefaultMaxRooms,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidPrice 价格存在且在区间内
func (v *Validator) ValidPrice(price any) bool {
	f, ok := conv.ToNumber(price)
	return ok && v.Price.Contains(f)
}

// ValidSurface 面积存在且在区间内
func (v *Validator) ValidSurface(surface any) bool {
	f, ok := conv.ToNumber(surface)
	return ok && v.Surface.Contains(f)
}

// ValidRooms 房间数缺失视为有效；数值取整后须在 [0, MaxRooms]，
// 字符串必须是整数字面量（"3.5" 无效）
func (v *Validator) ValidRooms(rooms any) bool {
	if core.IsMissing(rooms) {
		return true
	}
	var (
		n  int
		ok bool
	)
	if s, isString := rooms.(string); isString {
		var err error
		n, err = strconv.Atoi(strings.TrimSpace(s))
		ok = err == nil
	} else {
		n, ok = conv.ToInt(rooms)
	}
	return ok && n >= 0 && n <= v.MaxRooms
}

// Verdict 是一行记录的校验结果
type Verdict struct {
	Price   bool
	Surface bool
	Rooms   bool
}

// Valid 三项均通过
func (d Verdict) Valid() bool {
	return d.Price && d.Surface && d.Rooms
}

func (d Verdict) asMap() map[string]bool {
	return map[string]bool{
		"price":   d.Price,
		"surface": d.Surface,
		"rooms":   d.Rooms,
	}
}

// Check 按 schema 取出清洗后的价格/面积/房间数并逐项校验
func (v *Validator) Check(row core.Row, schema core.Schema) Verdict {
	return Verdict{
		Price:   v.ValidPrice(row[schema.TargetColumn]),
		Surface: v.ValidSurface(row[schema.SurfaceColumn]),
		Rooms:   v.ValidRooms(row[schema.RoomsColumn]),
	}
}
