package preprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/prixkit/core"
)

func rawListings() *core.Table {
	return core.NewTable(
		[]string{"titre", "prix", "surface", "localisation", "pièces", "chambres", "Ascenseur", "Terrasse", "url"},
		core.Row{"titre": "Appartement", "prix": "1 200 000 DH", "surface": "85 m²", "localisation": "Maarif à Casablanca", "pièces": 3, "chambres": "2", "Ascenseur": true, "Terrasse": true, "url": "https://a"},
		core.Row{"titre": "Villa", "prix": "100 000 EUR", "surface": "300 m²", "localisation": "Hivernage à Marrakech", "pièces": nil, "chambres": 4, "Ascenseur": false, "Terrasse": nil, "url": "https://b"},
		core.Row{"titre": "Studio", "prix": "Prix à consulter", "surface": "  ", "localisation": nil, "pièces": 1, "chambres": " ", "Ascenseur": true, "Terrasse": false, "url": "https://c"},
	)
}

func TestStage_Process(t *testing.T) {
	in := rawListings()
	out := New(core.DefaultSchema()).Process(in)

	require.Equal(t, 3, out.Len())

	// 删除 denylist 与原始价格/位置列
	for _, c := range []string{"titre", "url", "prix", "localisation"} {
		assert.False(t, out.Has(c), c)
	}
	for _, c := range []string{"prix_dh", "zone", "ville", "surface", "pièces", "chambres"} {
		assert.True(t, out.Has(c), c)
	}

	assert.Equal(t, 1200000.0, out.Rows[0]["prix_dh"])
	assert.Equal(t, 1050000.0, out.Rows[1]["prix_dh"])
	assert.Nil(t, out.Rows[2]["prix_dh"])

	assert.Equal(t, "Maarif", out.Rows[0]["zone"])
	assert.Equal(t, "Casablanca", out.Rows[0]["ville"])
	assert.Equal(t, core.Unknown, out.Rows[2]["zone"])
	assert.Equal(t, core.Unknown, out.Rows[2]["ville"])

	// 全 bool 列转为 0/1
	assert.Equal(t, 1, out.Rows[0]["Ascenseur"])
	assert.Equal(t, 0, out.Rows[1]["Ascenseur"])
	// 混有缺失值的设施列保留原值，缺失填 0
	assert.Equal(t, true, out.Rows[0]["Terrasse"])
	assert.Equal(t, 0, out.Rows[1]["Terrasse"])

	// 数值列：中位数填补，float64
	assert.Equal(t, 85.0, out.Rows[0]["surface"])
	assert.Equal(t, 300.0, out.Rows[1]["surface"])
	assert.Equal(t, 192.5, out.Rows[2]["surface"])
	assert.Equal(t, 2.0, out.Rows[1]["pièces"])
	assert.Equal(t, 3.0, out.Rows[2]["chambres"])
}

func TestStage_ProcessDoesNotMutateInput(t *testing.T) {
	in := rawListings()
	before := in.Clone()

	New(core.DefaultSchema()).Process(in)

	assert.Equal(t, before.Columns, in.Columns)
	assert.Equal(t, before.Rows, in.Rows)
}

func TestStage_NoMissingNumericAfterProcess(t *testing.T) {
	in := core.NewTable([]string{"prix_dh", "surface", "pièces", "salles_de_bain"},
		core.Row{"prix_dh": "950000", "surface": nil, "pièces": "n/a", "salles_de_bain": nil},
		core.Row{"prix_dh": 700000.0, "surface": "70", "pièces": nil, "salles_de_bain": nil},
	)
	out := New(core.DefaultSchema()).Process(in)

	for _, r := range out.Rows {
		for _, c := range []string{"surface", "pièces", "salles_de_bain"} {
			v, ok := r[c].(float64)
			require.True(t, ok, "%s should be float64, got %T", c, r[c])
			assert.False(t, core.IsMissing(v), c)
		}
	}
	// 整列缺失时以 0 填补
	assert.Equal(t, 0.0, out.Rows[0]["salles_de_bain"])
	assert.Equal(t, 70.0, out.Rows[0]["surface"])
	// 没有原始价格列时重新清洗已有的目标列
	assert.Equal(t, 950000.0, out.Rows[0]["prix_dh"])
	// zone / ville 不存在时补 Unknown
	assert.Equal(t, core.Unknown, out.Rows[1]["ville"])
	assert.Equal(t, core.Unknown, out.Rows[1]["zone"])
}

func TestStage_EmptyTable(t *testing.T) {
	out := New(core.DefaultSchema()).Process(core.NewTable([]string{"prix", "surface"}))
	assert.Equal(t, 0, out.Len())
	assert.True(t, out.Has("prix_dh"))
}
