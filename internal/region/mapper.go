package region

import (
	"fmt"
	"math"
	"sort"

	"IndexPilot/internal/indicator"
	"IndexPilot/internal/model"

	"github.com/rs/zerolog"
)

const (
	mergeTolerancePct = 0.10 // regions within 0.10% of each other merge
	maxSwingsPerTF    = 8
	volumeAvgPeriod   = 50
	swingLookback     = 3
	minFVGGapPct      = 0.05
)

// Mapper turns indicator outputs plus raw candles into a deduplicated,
// confluence-scored list of price regions.
type Mapper struct {
	tickSize float64
	log      zerolog.Logger
}

// NewMapper creates a Mapper for the given tick size.
func NewMapper(tickSize float64, logger zerolog.Logger) *Mapper {
	return &Mapper{tickSize: tickSize, log: logger.With().Str("component", "region").Logger()}
}

// Inputs carries everything one mapping pass reads.
type Inputs struct {
	Price   float64
	VWAP    indicator.VWAPResult
	Pivots  indicator.PivotLevels
	Candles map[model.Timeframe][]model.Candle
	DayRefs model.DayReferences
}

// MapRegions builds the merged, distance-sorted region list for one
// cycle. Timeframes with empty candle input contribute nothing; that
// is never an error.
func (m *Mapper) MapRegions(in Inputs) []model.Region {
	if in.Price <= 0 {
		return nil
	}

	var regions []model.Region
	regions = append(regions, m.fixedRegions(in)...)

	for tf, bars := range in.Candles {
		if len(bars) == 0 {
			continue
		}
		regions = append(regions, m.structureRegions(tf, bars)...)
		regions = append(regions, m.swingRegions(in.Price, tf, bars)...)
	}

	for i := range regions {
		regions[i].Price = indicator.SnapToTick(regions[i].Price, m.tickSize)
	}

	merged := m.merge(regions)

	for i := range merged {
		merged[i].DistancePct = (merged[i].Price - in.Price) / in.Price * 100
	}
	sort.Slice(merged, func(i, j int) bool {
		return math.Abs(merged[i].DistancePct) < math.Abs(merged[j].DistancePct)
	})

	m.log.Debug().Int("regions", len(merged)).Float64("price", in.Price).Msg("regions mapped")
	return merged
}

// fixedRegions emits VWAP bands, pivot levels and day references.
func (m *Mapper) fixedRegions(in Inputs) []model.Region {
	var out []model.Region

	if in.VWAP.VWAP > 0 {
		out = append(out,
			model.Region{Price: in.VWAP.VWAP, Label: "vwap", Kind: model.RegionVWAP, Confluence: 1},
			model.Region{Price: in.VWAP.Upper1, Label: "vwap+1s", Kind: model.RegionVWAP, Confluence: 1},
			model.Region{Price: in.VWAP.Lower1, Label: "vwap-1s", Kind: model.RegionVWAP, Confluence: 1},
			model.Region{Price: in.VWAP.Upper2, Label: "vwap+2s", Kind: model.RegionVWAP, Confluence: 1},
			model.Region{Price: in.VWAP.Lower2, Label: "vwap-2s", Kind: model.RegionVWAP, Confluence: 1},
		)
	}

	if in.Pivots.P > 0 {
		for _, pv := range []struct {
			price float64
			label string
		}{
			{in.Pivots.P, "pivot"},
			{in.Pivots.R1, "pivot-r1"}, {in.Pivots.R2, "pivot-r2"}, {in.Pivots.R3, "pivot-r3"},
			{in.Pivots.S1, "pivot-s1"}, {in.Pivots.S2, "pivot-s2"}, {in.Pivots.S3, "pivot-s3"},
		} {
			out = append(out, model.Region{Price: pv.price, Label: pv.label, Kind: model.RegionPivot, Confluence: 1})
		}
	}

	refs := []struct {
		price float64
		label string
	}{
		{in.DayRefs.PrevHigh, "prev-high"},
		{in.DayRefs.PrevLow, "prev-low"},
		{in.DayRefs.PrevClose, "prev-close"},
		{in.DayRefs.DayOpen, "day-open"},
		{in.DayRefs.DayHigh, "day-high"},
		{in.DayRefs.DayLow, "day-low"},
	}
	for _, r := range refs {
		if r.price <= 0 {
			continue
		}
		kind := model.RegionSupport
		if r.price > in.Price {
			kind = model.RegionResistance
		}
		out = append(out, model.Region{Price: r.price, Label: r.label, Kind: kind, Confluence: 1})
	}
	return out
}

// structureRegions emits order-block and fair-value-gap levels for one
// timeframe.
func (m *Mapper) structureRegions(tf model.Timeframe, bars []model.Candle) []model.Region {
	var out []model.Region
	for _, ob := range indicator.FindOrderBlocks(bars) {
		label := "order-block-sell"
		if ob.Bullish {
			label = "order-block-buy"
		}
		out = append(out, model.Region{
			Price: ob.Price, Label: label, Kind: model.RegionStructure,
			Confluence: 1, Timeframe: tf,
		})
	}
	for _, gap := range indicator.FindFairValueGaps(bars, minFVGGapPct) {
		label := "fvg-bear"
		if gap.Bullish {
			label = "fvg-bull"
		}
		out = append(out, model.Region{
			Price: gap.Mid, Label: label, Kind: model.RegionStructure,
			Confluence: 1, Timeframe: tf,
		})
	}
	return out
}

// swingRegions emits volume-tiered swing high/low levels for one
// timeframe, keeping only the strongest maxSwingsPerTF.
func (m *Mapper) swingRegions(price float64, tf model.Timeframe, bars []model.Candle) []model.Region {
	swings := indicator.FindSwings(bars, swingLookback)
	if len(swings) == 0 {
		return nil
	}
	avgVol := indicator.AverageVolume(bars, volumeAvgPeriod)

	out := make([]model.Region, 0, len(swings))
	for _, s := range swings {
		tier := 1
		if avgVol > 0 {
			ratio := s.Volume / avgVol
			switch {
			case ratio >= 2.0:
				tier = 3
			case ratio >= 1.2:
				tier = 2
			}
		}
		kind := model.RegionSupport
		label := fmt.Sprintf("swing-low-%s", tf)
		if s.IsHigh {
			kind = model.RegionResistance
			label = fmt.Sprintf("swing-high-%s", tf)
		}
		out = append(out, model.Region{
			Price: s.Price, Label: label, Kind: kind,
			Confluence: 1, Timeframe: tf, VolumeTier: tier,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].VolumeTier != out[j].VolumeTier {
			return out[i].VolumeTier > out[j].VolumeTier
		}
		return math.Abs(out[i].Price-price) < math.Abs(out[j].Price-price)
	})
	if len(out) > maxSwingsPerTF {
		out = out[:maxSwingsPerTF]
	}
	return out
}

// strength orders regions for merge anchoring.
func strength(r model.Region) int {
	tier := r.VolumeTier
	if tier == 0 {
		tier = 1
	}
	return r.Confluence * tier
}

// merge collapses regions within mergeTolerancePct of each other. The
// strongest member anchors the group and keeps its label and price;
// confluence counts are summed plus a bonus of (distinct contributing
// timeframes - 1); volume tier is the group max. The tolerance for a
// pair is taken from the larger of the two prices, so capture is
// symmetric: every survivor was checked against every stronger
// survivor with the wider tolerance, survivors are pairwise farther
// apart than the tolerance, and a second pass is a no-op.
func (m *Mapper) merge(regions []model.Region) []model.Region {
	if len(regions) < 2 {
		return regions
	}

	sorted := make([]model.Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return strength(sorted[i]) > strength(sorted[j]) })

	used := make([]bool, len(sorted))
	var out []model.Region

	for i := range sorted {
		if used[i] {
			continue
		}
		anchor := sorted[i]
		used[i] = true
		tfs := map[model.Timeframe]bool{}
		if anchor.Timeframe != "" {
			tfs[anchor.Timeframe] = true
		}
		confluence := anchor.Confluence
		tier := anchor.VolumeTier

		for j := i + 1; j < len(sorted); j++ {
			if used[j] {
				continue
			}
			tol := math.Max(anchor.Price, sorted[j].Price) * mergeTolerancePct / 100
			if math.Abs(sorted[j].Price-anchor.Price) <= tol {
				used[j] = true
				confluence += sorted[j].Confluence
				if sorted[j].VolumeTier > tier {
					tier = sorted[j].VolumeTier
				}
				if sorted[j].Timeframe != "" {
					tfs[sorted[j].Timeframe] = true
				}
			}
		}

		if len(tfs) > 1 {
			confluence += len(tfs) - 1
		}
		anchor.Confluence = confluence
		anchor.VolumeTier = tier
		out = append(out, anchor)
	}
	return out
}
