// Package config holds the static game tables and the runtime settings of the binary.
// Tables are loaded once from YAML and never mutated afterwards.
package config

import (
	"log/slog"
)

// OwnerID identifies a land/building owner: the human player or a competitor.
type OwnerID string

const (
	Player      OwnerID = "P"
	CompetitorA OwnerID = "A"
	CompetitorB OwnerID = "B"
	CompetitorC OwnerID = "C"
)

// Owners lists every owner in grid-column order.
var Owners = []OwnerID{Player, CompetitorA, CompetitorB, CompetitorC}

// Competitors lists the scripted owners in the order their policies run.
var Competitors = []OwnerID{CompetitorA, CompetitorB, CompetitorC}

// BuildingTypeID is a building archetype key (coal, gas, solar, ...).
type BuildingTypeID string

const (
	Coal          BuildingTypeID = "coal"
	Gas           BuildingTypeID = "gas"
	Solar         BuildingTypeID = "solar"
	Tech          BuildingTypeID = "tech"
	Manufacturing BuildingTypeID = "manufacturing"
	GasSupply     BuildingTypeID = "gasSupply"
)

// LandTypeID is a land zone key.
type LandTypeID string

const (
	LandBasic          LandTypeID = "basic"
	LandGreenGrid      LandTypeID = "greenGrid"
	LandHighEfficiency LandTypeID = "highEfficiency"
	LandExportZone     LandTypeID = "exportZone"
	LandHighEmission   LandTypeID = "highEmission"
)

// Level is a factory upgrade tier.
type Level string

const (
	Lv1 Level = "Lv1"
	Lv2 Level = "Lv2"
	Lv3 Level = "Lv3"
)

// LevelOrder is the fixed upgrade sequence.
var LevelOrder = []Level{Lv1, Lv2, Lv3}

// Index returns the position of l in LevelOrder, or -1 if l is not a known level.
func (l Level) Index() int {
	for i, v := range LevelOrder {
		if v == l {
			return i
		}
	}
	return -1
}

// Building categories.
const (
	CategoryHighPollute = "high_pollute"
	CategoryMidPollute  = "mid_pollute"
	CategoryClean       = "clean"
	CategoryAdvanced    = "advanced"
)

// BuildingType is one building archetype.
type BuildingType struct {
	ID               BuildingTypeID `yaml:"id" json:"id"`
	Name             string         `yaml:"name" json:"name"`
	Cost             int            `yaml:"cost" json:"cost"`
	Income           int            `yaml:"income" json:"income"`
	Emission         int            `yaml:"emission" json:"emission"` // nominal, used for projections
	DirectEmission   float64        `yaml:"direct_emission" json:"direct_emission"`
	IndirectEmission float64        `yaml:"indirect_emission" json:"indirect_emission"`
	Category         string         `yaml:"category" json:"category"`
	IndustryCoeff    float64        `yaml:"industry_coeff" json:"industry_coeff"`
	Upgradeable      bool           `yaml:"upgradeable" json:"upgradeable"`
	Export           bool           `yaml:"export" json:"export"` // subject to CBAM
	Description      string         `yaml:"description" json:"description"`
}

// FactoryLevel holds the per-tier fee rate and emission coefficient.
type FactoryLevel struct {
	ID                Level   `yaml:"id" json:"id"`
	Name              string  `yaml:"name" json:"name"`
	Rate              float64 `yaml:"rate" json:"rate"`
	EmissionReduction float64 `yaml:"emission_reduction" json:"emission_reduction"`
	LevelCoeff        float64 `yaml:"level_coeff" json:"level_coeff"`
}

// LandType holds the per-zone emission modifiers and price multiplier.
type LandType struct {
	ID                LandTypeID `yaml:"id" json:"id"`
	Name              string     `yaml:"name" json:"name"`
	EmissionCoeff     float64    `yaml:"emission_coeff" json:"emission_coeff"`
	IndirectReduction float64    `yaml:"indirect_reduction" json:"indirect_reduction,omitempty"`
	CostMultiplier    float64    `yaml:"cost_multiplier" json:"cost_multiplier"`
	Description       string     `yaml:"description" json:"description"`
}

// OwnerProfile describes a player or competitor at game start.
type OwnerProfile struct {
	ID    OwnerID `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Money int     `yaml:"money" json:"money"` // ignored for the player (see Tunables.InitialMoney)
	Style string  `yaml:"style" json:"style"`
}

// TypeWeight is one entry in a land-type weight table. Order matters for the cumulative draw.
type TypeWeight struct {
	Type   LandTypeID `yaml:"type" json:"type"`
	Weight float64    `yaml:"weight" json:"weight"`
}

// LandGen configures grid layout and land pricing.
type LandGen struct {
	Rows               int          `yaml:"rows" json:"rows"`
	Cols               int          `yaml:"cols" json:"cols"`
	BaseCost           float64      `yaml:"base_cost" json:"base_cost"`
	PositionDivisor    int          `yaml:"position_divisor" json:"position_divisor"`
	PositionStep       int          `yaml:"position_step" json:"position_step"`
	EdgeWeights        []TypeWeight `yaml:"edge_weights" json:"edge_weights"`
	CenterWeights      []TypeWeight `yaml:"center_weights" json:"center_weights"`
	PriceGrowthPerTurn float64      `yaml:"price_growth_per_turn" json:"price_growth_per_turn"`
	WealthThreshold    int          `yaml:"wealth_threshold" json:"wealth_threshold"`
	WealthPremium      float64      `yaml:"wealth_premium" json:"wealth_premium"`
}

// Tunables are the global numeric rules.
type Tunables struct {
	MaxYears            int     `yaml:"max_years" json:"max_years"`
	StartYear           int     `yaml:"start_year" json:"start_year"`
	FreeEmission        int     `yaml:"free_emission" json:"free_emission"`
	MonsterThreshold    int     `yaml:"monster_threshold" json:"monster_threshold"`
	InitialMoney        int     `yaml:"initial_money" json:"initial_money"`
	InitialMonsterAnger float64 `yaml:"initial_monster_anger" json:"initial_monster_anger"`

	DomesticCreditMultiplier float64 `yaml:"domestic_credit_multiplier" json:"domestic_credit_multiplier"`
	IntlCreditMultiplier     float64 `yaml:"intl_credit_multiplier" json:"intl_credit_multiplier"`
	DomesticCreditMaxPercent float64 `yaml:"domestic_credit_max_percent" json:"domestic_credit_max_percent"`
	IntlCreditMaxPercent     float64 `yaml:"intl_credit_max_percent" json:"intl_credit_max_percent"`
	CreditLotSize            int     `yaml:"credit_lot_size" json:"credit_lot_size"`

	AuditInterval        int     `yaml:"audit_interval" json:"audit_interval"`
	AuditPenaltyAbove    int     `yaml:"audit_penalty_above" json:"audit_penalty_above"`
	AuditWarningAbove    int     `yaml:"audit_warning_above" json:"audit_warning_above"`
	AuditBonusBelow      int     `yaml:"audit_bonus_below" json:"audit_bonus_below"`
	AuditPenaltyRate     float64 `yaml:"audit_penalty_rate" json:"audit_penalty_rate"`
	AuditBonusRate       float64 `yaml:"audit_bonus_rate" json:"audit_bonus_rate"`
	CBAMStartTurn        int     `yaml:"cbam_start_turn" json:"cbam_start_turn"`
	CBAMRatePerTon       float64 `yaml:"cbam_rate_per_ton" json:"cbam_rate_per_ton"`
	MonsterGrowthDivisor int     `yaml:"monster_growth_divisor" json:"monster_growth_divisor"`
	MonsterBaseGrowth    int     `yaml:"monster_base_growth" json:"monster_base_growth"`
	MonsterTurnGrowth    float64 `yaml:"monster_turn_growth" json:"monster_turn_growth"`

	MaxBuildingsPerTurn     int `yaml:"max_buildings_per_turn" json:"max_buildings_per_turn"`
	MaxLandPurchasesPerTurn int `yaml:"max_land_purchases_per_turn" json:"max_land_purchases_per_turn"`

	EarlyExpansionPenalty     bool    `yaml:"early_expansion_penalty" json:"early_expansion_penalty"`
	EarlyExpansionTurns       int     `yaml:"early_expansion_turns" json:"early_expansion_turns"`
	EarlyExpansionPenaltyRate float64 `yaml:"early_expansion_penalty_rate" json:"early_expansion_penalty_rate"`

	InitialDomesticPrice int `yaml:"initial_domestic_price" json:"initial_domestic_price"`
	InitialIntlPrice     int `yaml:"initial_intl_price" json:"initial_intl_price"`
	DomesticPriceFloor   int `yaml:"domestic_price_floor" json:"domestic_price_floor"`
	IntlPriceFloor       int `yaml:"intl_price_floor" json:"intl_price_floor"`

	UpgradeCostLv2   float64 `yaml:"upgrade_cost_lv2" json:"upgrade_cost_lv2"`
	UpgradeCostLv3   float64 `yaml:"upgrade_cost_lv3" json:"upgrade_cost_lv3"`
	RefundBase       float64 `yaml:"refund_base" json:"refund_base"`
	RefundBonusLv2   float64 `yaml:"refund_bonus_lv2" json:"refund_bonus_lv2"`
	RefundBonusLv3   float64 `yaml:"refund_bonus_lv3" json:"refund_bonus_lv3"`
	SellAngerPerTons int     `yaml:"sell_anger_per_tons" json:"sell_anger_per_tons"`
	SellAngerMax     int     `yaml:"sell_anger_max" json:"sell_anger_max"`

	VictoryWealthFloor   int     `yaml:"victory_wealth_floor" json:"victory_wealth_floor"`
	BalanceMoney         int     `yaml:"balance_money" json:"balance_money"`
	BalanceEmissionBelow int     `yaml:"balance_emission_below" json:"balance_emission_below"`
	BalanceRatio         float64 `yaml:"balance_ratio" json:"balance_ratio"`
	SurvivorAnger        float64 `yaml:"survivor_anger" json:"survivor_anger"`
}

// Tables is the complete immutable configuration.
type Tables struct {
	Version   string         `yaml:"version" json:"version"`
	Tunables  Tunables       `yaml:"tunables" json:"tunables"`
	Buildings []BuildingType `yaml:"buildings" json:"buildings"`
	Levels    []FactoryLevel `yaml:"levels" json:"levels"`
	LandTypes []LandType     `yaml:"land_types" json:"land_types"`
	Owners    []OwnerProfile `yaml:"owners" json:"owners"`
	LandGen   LandGen        `yaml:"land_gen" json:"land_gen"`

	buildingIdx map[BuildingTypeID]int
	levelIdx    map[Level]int
	landIdx     map[LandTypeID]int
	ownerIdx    map[OwnerID]int
}

func (t *Tables) index() {
	t.buildingIdx = make(map[BuildingTypeID]int, len(t.Buildings))
	for i, b := range t.Buildings {
		t.buildingIdx[b.ID] = i
	}
	t.levelIdx = make(map[Level]int, len(t.Levels))
	for i, l := range t.Levels {
		t.levelIdx[l.ID] = i
	}
	t.landIdx = make(map[LandTypeID]int, len(t.LandTypes))
	for i, l := range t.LandTypes {
		t.landIdx[l.ID] = i
	}
	t.ownerIdx = make(map[OwnerID]int, len(t.Owners))
	for i, o := range t.Owners {
		t.ownerIdx[o.ID] = i
	}
}

// Building returns the archetype for id.
func (t *Tables) Building(id BuildingTypeID) (BuildingType, bool) {
	i, ok := t.buildingIdx[id]
	if !ok {
		return BuildingType{}, false
	}
	return t.Buildings[i], true
}

// Level returns the factory level for l.
func (t *Tables) Level(l Level) (FactoryLevel, bool) {
	i, ok := t.levelIdx[l]
	if !ok {
		return FactoryLevel{}, false
	}
	return t.Levels[i], true
}

// LandType returns the zone type for id.
func (t *Tables) LandType(id LandTypeID) (LandType, bool) {
	i, ok := t.landIdx[id]
	if !ok {
		return LandType{}, false
	}
	return t.LandTypes[i], true
}

// Owner returns the profile for id.
func (t *Tables) Owner(id OwnerID) (OwnerProfile, bool) {
	i, ok := t.ownerIdx[id]
	if !ok {
		return OwnerProfile{}, false
	}
	return t.Owners[i], true
}

// OwnerName returns the display name for id, or "unknown".
func (t *Tables) OwnerName(id OwnerID) string {
	if o, ok := t.Owner(id); ok {
		return o.Name
	}
	return "unknown"
}

// LevelCoeff returns the emission coefficient for l, defaulting to 1.0 on a table miss.
func (t *Tables) LevelCoeff(l Level) float64 {
	lv, ok := t.Level(l)
	if !ok {
		slog.Warn("unknown factory level", "level", l)
		return 1.0
	}
	return lv.LevelCoeff
}

// LevelRate returns the fee rate for l, defaulting to the Lv1 rate on a table miss.
func (t *Tables) LevelRate(l Level) float64 {
	lv, ok := t.Level(l)
	if !ok {
		slog.Warn("unknown factory level", "level", l)
		return t.BaseRate()
	}
	return lv.Rate
}

// BaseRate is the Lv1 fee rate.
func (t *Tables) BaseRate() float64 {
	lv, _ := t.Level(Lv1)
	return lv.Rate
}

// LandEmissionCoeff returns the direct-emission multiplier for a zone, 1.0 on a miss.
func (t *Tables) LandEmissionCoeff(id LandTypeID) float64 {
	lt, ok := t.LandType(id)
	if !ok {
		slog.Warn("unknown land type", "type", id)
		return 1.0
	}
	return lt.EmissionCoeff
}

// BuildingIDs returns archetype ids in table order.
func (t *Tables) BuildingIDs() []BuildingTypeID {
	ids := make([]BuildingTypeID, len(t.Buildings))
	for i, b := range t.Buildings {
		ids[i] = b.ID
	}
	return ids
}
