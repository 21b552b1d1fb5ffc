package land

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/carbon-monster/internal/config"
	"github.com/talgya/carbon-monster/internal/entropy"
)

func generated(t *testing.T, draws ...float64) *System {
	t.Helper()
	s := NewSystem(config.Default())
	require.NoError(t, s.Generate(config.Owners, entropy.NewScript(draws...)))
	return s
}

func TestGenerateLayout(t *testing.T) {
	s := generated(t, 0)
	lands := s.Lands()
	require.Len(t, lands, 20)

	for _, l := range lands {
		assert.Equal(t, config.LandBasic, l.Type)
		if l.Col < 4 {
			assert.Equal(t, config.Owners[l.Col], l.Owner, "tile %d", l.Index)
		}
	}

	// The shared last column rotates through owners by row.
	assert.Equal(t, config.Player, lands[4].Owner)
	assert.Equal(t, config.CompetitorA, lands[9].Owner)
	assert.Equal(t, config.CompetitorB, lands[14].Owner)
	assert.Equal(t, config.CompetitorC, lands[19].Owner)

	assert.Equal(t, "You", lands[0].OwnerName)
	assert.Equal(t, 1, lands[7].Row)
	assert.Equal(t, 2, lands[7].Col)
}

func TestGenerateEdgeAndCenterWeights(t *testing.T) {
	// 0.4 lands in greenGrid on edge rows (0.3..0.5) and basic in center rows (..0.5).
	s := generated(t, 0.4)
	for _, l := range s.Lands() {
		if l.Row == 0 || l.Row == 3 {
			assert.Equal(t, config.LandGreenGrid, l.Type, "edge tile %d", l.Index)
		} else {
			assert.Equal(t, config.LandBasic, l.Type, "center tile %d", l.Index)
		}
	}

	s = generated(t, 0.95)
	for _, l := range s.Lands() {
		assert.Equal(t, config.LandHighEmission, l.Type)
		assert.Equal(t, 1.2, l.EmissionCoeff)
	}
}

func TestGenerateRejectsNoOwners(t *testing.T) {
	s := NewSystem(config.Default())
	assert.Error(t, s.Generate(nil, entropy.NewSeeded(1)))
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	a := NewSystem(config.Default())
	b := NewSystem(config.Default())
	require.NoError(t, a.Generate(config.Owners, entropy.NewSeeded(7)))
	require.NoError(t, b.Generate(config.Owners, entropy.NewSeeded(7)))
	assert.Equal(t, a.Lands(), b.Lands())
}

func TestGenerateClustered(t *testing.T) {
	a := NewSystem(config.Default())
	b := NewSystem(config.Default())
	require.NoError(t, a.GenerateClustered(config.Owners, 99))
	require.NoError(t, b.GenerateClustered(config.Owners, 99))
	assert.Equal(t, a.Lands(), b.Lands())

	tables := config.Default()
	for _, l := range a.Lands() {
		_, ok := tables.LandType(l.Type)
		assert.True(t, ok, "tile %d has unknown type %q", l.Index, l.Type)
	}
}

func TestBaseCost(t *testing.T) {
	s := NewSystem(config.Default())
	assert.Equal(t, 1000, s.BaseCost(config.LandBasic, 0))
	assert.Equal(t, 1200, s.BaseCost(config.LandBasic, 4))
	assert.Equal(t, 1700, s.BaseCost(config.LandGreenGrid, 7))
	assert.Equal(t, 1600, s.BaseCost(config.LandHighEmission, 19))
	assert.Equal(t, 1000, s.BaseCost("swamp", 0), "unknown type uses multiplier 1")
}

func TestPurchasePrice(t *testing.T) {
	s := generated(t, 0)

	assert.Equal(t, 1000, s.PurchasePrice(0, 1, 0))
	assert.Equal(t, 1100, s.PurchasePrice(0, 2, 0))
	assert.Equal(t, 1200, s.PurchasePrice(0, 3, 0))
	assert.Equal(t, 1440, s.PurchasePrice(0, 3, 200000))
	assert.Equal(t, 0, s.PurchasePrice(99, 1, 0))

	prev := 0
	for turn := 1; turn <= 10; turn++ {
		p := s.PurchasePrice(5, turn, 0)
		assert.GreaterOrEqual(t, p, prev)
		assert.Greater(t, s.PurchasePrice(5, turn, 100001), p)
		prev = p
	}
}

func TestCanPurchase(t *testing.T) {
	s := generated(t, 0)
	occupied := func(tile int) bool { return tile == 2 }

	assert.False(t, s.CanPurchase(-1, config.Player, nil).CanPurchase)
	assert.False(t, s.CanPurchase(0, config.Player, nil).CanPurchase, "own tile")
	assert.False(t, s.CanPurchase(2, config.Player, occupied).CanPurchase, "occupied tile")

	e := s.CanPurchase(1, config.Player, occupied)
	assert.True(t, e.CanPurchase)
	assert.Empty(t, e.Reason)
}

func TestPurchaseTransfersOwnership(t *testing.T) {
	s := generated(t, 0)

	res := s.Purchase(1, config.Player)
	require.True(t, res.Success)
	assert.Equal(t, config.CompetitorA, res.OldOwner)
	assert.Equal(t, config.Player, res.NewOwner)
	assert.Contains(t, res.Message, "Tycoon Ah-Jin")

	l, _ := s.Land(1)
	assert.Equal(t, config.Player, l.Owner)
	assert.Equal(t, "You", l.OwnerName)
	assert.Equal(t, config.CompetitorA, l.Zone, "zone keeps the original layout")
	assert.Len(t, s.LandsByOwner(config.Player), 6)
	assert.Equal(t, 4, s.CountOwned(config.CompetitorA))

	assert.False(t, s.Purchase(40, config.Player).Success)
}

func TestPurchasable(t *testing.T) {
	s := generated(t, 0)
	offers := s.Purchasable(config.Player, func(tile int) bool { return tile == 1 }, 1, 1100)

	// 20 tiles, 5 owned by the player, 1 occupied.
	require.Len(t, offers, 14)
	for _, o := range offers {
		assert.NotEqual(t, config.Player, o.Land.Owner)
		assert.Equal(t, o.Price <= 1100, o.CanAfford)
	}
}

func TestLandsByType(t *testing.T) {
	s := generated(t, 0.4)
	assert.Len(t, s.LandsByType(config.LandGreenGrid), 10)
	assert.Len(t, s.LandsByType(config.LandBasic), 10)
}

func TestRestore(t *testing.T) {
	s := generated(t, 0.95)
	saved := s.Lands()

	other := NewSystem(config.Default())
	require.NoError(t, other.Restore(saved))
	assert.Equal(t, saved, other.Lands())

	assert.Error(t, other.Restore(saved[:3]))

	bad := append([]Land(nil), saved...)
	bad[0].Index = 5
	assert.Error(t, other.Restore(bad))
}
