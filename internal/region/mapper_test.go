package region

import (
	"math"
	"sort"
	"testing"

	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

func TestMapRegions_MergesNearbyLevels(t *testing.T) {
	m := NewMapper(5.0, zerolog.Nop())
	regions := m.MapRegions(Inputs{
		Price: 137000,
		DayRefs: model.DayReferences{
			PrevHigh: 137100,
			DayOpen:  137150, // within 0.10% of prev-high, should merge
		},
	})
	if len(regions) != 1 {
		t.Fatalf("expected 1 merged region, got %d: %+v", len(regions), regions)
	}
	if regions[0].Confluence != 2 {
		t.Errorf("expected summed confluence 2, got %d", regions[0].Confluence)
	}
	if regions[0].Kind != model.RegionResistance {
		t.Errorf("levels above price should classify as resistance, got %s", regions[0].Kind)
	}
}

func TestMapRegions_OutputPairwiseSeparated(t *testing.T) {
	// Merging anchors on the strongest member; whatever survives must
	// be farther apart than the tolerance, so a second pass would be a
	// no-op.
	m := NewMapper(5.0, zerolog.Nop())
	regions := m.MapRegions(Inputs{
		Price: 137000,
		DayRefs: model.DayReferences{
			PrevHigh:  137100,
			PrevLow:   136200,
			PrevClose: 137050,
			DayOpen:   137090,
			DayHigh:   137210,
			DayLow:    136250,
		},
	})
	if len(regions) == 0 {
		t.Fatal("expected regions")
	}
	assertPairwiseSeparated(t, regions)
}

// assertPairwiseSeparated fails when any two regions sit within the
// merge tolerance of each other, measured from the larger price the
// way merge does.
func assertPairwiseSeparated(t *testing.T, regions []model.Region) {
	t.Helper()
	for i := range regions {
		for j := i + 1; j < len(regions); j++ {
			tol := math.Max(regions[i].Price, regions[j].Price) * 0.10 / 100
			if math.Abs(regions[i].Price-regions[j].Price) <= tol {
				t.Errorf("regions %d and %d within merge tolerance: %.1f vs %.1f",
					i, j, regions[i].Price, regions[j].Price)
			}
		}
	}
}

func TestMerge_IdempotentAfterAbsorption(t *testing.T) {
	// A strong anchor survives first, then a weaker anchor grows by
	// absorbing two neighbors. The grown group must not end up within
	// tolerance of the earlier survivor, and feeding merge its own
	// output must change nothing.
	m := NewMapper(5.0, zerolog.Nop())
	input := []model.Region{
		{Price: 99960, Label: "prev-low", Kind: model.RegionSupport, Confluence: 3, VolumeTier: 1},
		{Price: 100060, Label: "swing-high-M5", Kind: model.RegionResistance, Confluence: 1, VolumeTier: 2},
		{Price: 100065, Label: "pivot", Kind: model.RegionPivot, Confluence: 1, VolumeTier: 1},
		{Price: 100070, Label: "day-high", Kind: model.RegionResistance, Confluence: 1, VolumeTier: 1},
	}

	once := m.merge(input)
	assertPairwiseSeparated(t, once)

	twice := m.merge(once)
	if len(twice) != len(once) {
		t.Fatalf("merge not idempotent: %d -> %d regions", len(once), len(twice))
	}
	sort.Slice(once, func(i, j int) bool { return once[i].Price < once[j].Price })
	sort.Slice(twice, func(i, j int) bool { return twice[i].Price < twice[j].Price })
	for i := range once {
		if once[i].Price != twice[i].Price || once[i].Confluence != twice[i].Confluence {
			t.Errorf("second pass changed region %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestMapRegions_SortedByDistance(t *testing.T) {
	m := NewMapper(5.0, zerolog.Nop())
	regions := m.MapRegions(Inputs{
		Price: 137000,
		DayRefs: model.DayReferences{
			PrevHigh: 137100, // 0.07% away
			PrevLow:  136000, // 0.73% away
		},
	})
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[0].Price != 137100 {
		t.Errorf("nearest region should sort first, got %.1f", regions[0].Price)
	}
	if regions[0].DistancePct <= 0 || regions[1].DistancePct >= 0 {
		t.Errorf("distances should be signed: %+.3f / %+.3f",
			regions[0].DistancePct, regions[1].DistancePct)
	}
}

func TestMapRegions_PricesSnappedToTick(t *testing.T) {
	m := NewMapper(5.0, zerolog.Nop())
	regions := m.MapRegions(Inputs{
		Price:   137000,
		DayRefs: model.DayReferences{PrevHigh: 137482.6},
	})
	if len(regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(regions))
	}
	if regions[0].Price != 137485 {
		t.Errorf("expected tick-snapped 137485, got %.1f", regions[0].Price)
	}
}

func TestMapRegions_NoPrice(t *testing.T) {
	m := NewMapper(5.0, zerolog.Nop())
	if regions := m.MapRegions(Inputs{}); regions != nil {
		t.Errorf("expected nil for missing price, got %+v", regions)
	}
}
