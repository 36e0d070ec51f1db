package core

// Schema 描述房源表的列约定：哪些列是数值、类别、目标，哪些列必须在进入模型前删除。
// 默认值对应抓取端（mubawab 列表页）的字段命名。
type Schema struct {
	PriceColumn    string `yaml:"price_column" json:"price_column"`       // 原始价格文本列
	TargetColumn   string `yaml:"target_column" json:"target_column"`     // 清洗后的价格列（训练目标 / 真实值）
	SurfaceColumn  string `yaml:"surface_column" json:"surface_column"`   // 面积列
	LocationColumn string `yaml:"location_column" json:"location_column"` // "<zone> à <ville>" 组合列
	ZoneColumn     string `yaml:"zone_column" json:"zone_column"`
	CityColumn     string `yaml:"city_column" json:"city_column"`
	RoomsColumn    string `yaml:"rooms_column" json:"rooms_column"`

	NumericColumns     []string `yaml:"numeric_columns" json:"numeric_columns"`
	CategoricalColumns []string `yaml:"categorical_columns" json:"categorical_columns"`
	DropColumns        []string `yaml:"drop_columns" json:"drop_columns"`
	Amenities          []string `yaml:"amenities" json:"amenities"`
}

// DefaultSchema 返回默认列约定
func DefaultSchema() Schema {
	return Schema{
		PriceColumn:    "prix",
		TargetColumn:   "prix_dh",
		SurfaceColumn:  "surface",
		LocationColumn: "localisation",
		ZoneColumn:     "zone",
		CityColumn:     "ville",
		RoomsColumn:    "pièces",

		NumericColumns:     []string{"surface", "pièces", "chambres", "salles_de_bain"},
		CategoricalColumns: []string{"ville", "zone"},
		DropColumns: []string{
			"titre", "url", "prix", "type de bien", "étage du bien", "Porte blindée",
			"Jardin", "Réfrigérateur", "Four", "type_bien", "Machine à laver",
			"Façade extérieure", "Antenne parabolique", "Salon Marocain", "Meublé",
		},
		Amenities: []string{
			"Ascenseur", "Concierge", "Sécurité", "Porte blindée", "Garage", "Terrasse",
			"Étage du bien", "Jardin", "Cuisine équipée", "Réfrigérateur", "Four",
			"Machine à laver", "Climatisation", "Chauffage central", "Façade extérieure",
			"Antenne parabolique", "Double vitrage", "Salon Marocain", "Salon européen",
			"Meublé", "Chambre rangement", "Vue sur mer", "Vue sur les montagnes",
		},
	}
}
