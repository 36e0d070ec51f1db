package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prixkit/core"
)

func TestValidator_Defaults(t *testing.T) {
	v := New()

	assert.True(t, v.ValidPrice(500000.0))
	assert.False(t, v.ValidPrice(5000.0))
	assert.False(t, v.ValidPrice(nil))
	assert.False(t, v.ValidPrice(math.NaN()))

	assert.True(t, v.ValidSurface(85))
	assert.False(t, v.ValidSurface(5))
	assert.False(t, v.ValidSurface(nil))

	assert.True(t, v.ValidRooms(nil))
	assert.True(t, v.ValidRooms(math.NaN()))
	assert.True(t, v.ValidRooms(3))
	assert.True(t, v.ValidRooms(0.0))
	assert.True(t, v.ValidRooms("4"))
	assert.True(t, v.ValidRooms(20.9))
	assert.False(t, v.ValidRooms(25))
	assert.False(t, v.ValidRooms(-1))
	assert.False(t, v.ValidRooms("beaucoup"))
	// 字符串须是整数字面量，数值才会取整
	assert.False(t, v.ValidRooms("3.5"))
	assert.True(t, v.ValidRooms(" 4 "))
	assert.True(t, v.ValidRooms(3.5))
}

func TestValidator_Boundaries(t *testing.T) {
	v := New()

	assert.True(t, v.ValidPrice(DefaultPriceRange.Min))
	assert.True(t, v.ValidPrice(DefaultPriceRange.Max))
	assert.False(t, v.ValidPrice(DefaultPriceRange.Min-1))
	assert.False(t, v.ValidPrice(DefaultPriceRange.Max+1))

	assert.True(t, v.ValidSurface(DefaultSurfaceRange.Min))
	assert.True(t, v.ValidSurface(DefaultSurfaceRange.Max))
	assert.False(t, v.ValidSurface(DefaultSurfaceRange.Min-1))
	assert.False(t, v.ValidSurface(DefaultSurfaceRange.Max+1))

	assert.True(t, v.ValidRooms(DefaultMaxRooms))
	assert.False(t, v.ValidRooms(DefaultMaxRooms+1))
}

func TestValidator_Options(t *testing.T) {
	v := New(
		WithPriceRange(Range{Min: 1, Max: 10}),
		WithSurfaceRange(Range{Min: 100, Max: 200}),
		WithMaxRooms(2),
	)

	assert.True(t, v.ValidPrice(10))
	assert.False(t, v.ValidPrice(11))
	assert.False(t, v.ValidSurface(85))
	assert.True(t, v.ValidSurface(150))
	assert.False(t, v.ValidRooms(3))
}

func TestValidator_Check(t *testing.T) {
	v := New()
	schema := core.DefaultSchema()

	verdict := v.Check(core.Row{"prix_dh": 950000.0, "surface": 85, "pièces": 3}, schema)
	assert.Equal(t, Verdict{Price: true, Surface: true, Rooms: true}, verdict)
	assert.True(t, verdict.Valid())

	verdict = v.Check(core.Row{"prix_dh": 950000.0, "surface": 4}, schema)
	assert.Equal(t, Verdict{Price: true, Surface: false, Rooms: true}, verdict)
	assert.False(t, verdict.Valid())
}

func TestGate_Default(t *testing.T) {
	g, err := NewGate("", nil, core.DefaultSchema())
	require.NoError(t, err)
	assert.Equal(t, DefaultGateExpr, g.Expr())

	ok, err := g.Admit(core.Row{"prix_dh": 950000.0, "surface": 85, "pièces": 3})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Admit(core.Row{"prix_dh": 100.0, "surface": 85})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_RowExpression(t *testing.T) {
	g, err := NewGate(`valid.price && row.ville != "Unknown"`, New(), core.DefaultSchema())
	require.NoError(t, err)

	ok, err := g.Admit(core.Row{"prix_dh": 950000.0, "ville": "Rabat"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Admit(core.Row{"prix_dh": 950000.0, "ville": "Unknown"})
	require.NoError(t, err)
	assert.False(t, ok)

	// 访问不存在的字段：执行出错，视为不通过
	ok, err = g.Admit(core.Row{"prix_dh": 950000.0})
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestGate_InvalidExpression(t *testing.T) {
	_, err := NewGate("valid.price &&", nil, core.DefaultSchema())
	assert.Error(t, err)

	_, err = NewGate(`"not a bool"`, nil, core.DefaultSchema())
	assert.Error(t, err)
}

func TestGate_Split(t *testing.T) {
	g, err := NewGate("", nil, core.DefaultSchema())
	require.NoError(t, err)

	table := core.NewTable([]string{"prix_dh", "surface"},
		core.Row{"prix_dh": 950000.0, "surface": 85},
		core.Row{"prix_dh": nil, "surface": 85},
		core.Row{"prix_dh": 1200000.0, "surface": 120},
	)
	kept, rejected := g.Split(table)
	assert.Equal(t, 2, kept.Len())
	assert.Equal(t, 1, rejected.Len())
	assert.Equal(t, 3, table.Len())
}
