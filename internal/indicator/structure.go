package indicator

import "IndexPilot/internal/model"

// SwingPoint is a confirmed local extreme in a candle series.
type SwingPoint struct {
	Index  int
	Price  float64
	IsHigh bool
	Volume float64
}

// FindSwings returns swing highs/lows confirmed by `lookback` bars on
// each side, in chronological order. Short series yield nil.
func FindSwings(bars []model.Candle, lookback int) []SwingPoint {
	if lookback <= 0 || len(bars) < 2*lookback+1 {
		return nil
	}
	var swings []SwingPoint
	for i := lookback; i < len(bars)-lookback; i++ {
		isHigh, isLow := true, true
		for j := i - lookback; j <= i+lookback; j++ {
			if j == i {
				continue
			}
			if bars[j].High >= bars[i].High {
				isHigh = false
			}
			if bars[j].Low <= bars[i].Low {
				isLow = false
			}
		}
		if isHigh {
			swings = append(swings, SwingPoint{Index: i, Price: bars[i].High, IsHigh: true, Volume: bars[i].Volume})
		}
		if isLow {
			swings = append(swings, SwingPoint{Index: i, Price: bars[i].Low, IsHigh: false, Volume: bars[i].Volume})
		}
	}
	return swings
}

// FairValueGap is a 3-candle imbalance; the midpoint acts as a magnet
// level.
type FairValueGap struct {
	Top     float64
	Bottom  float64
	Mid     float64
	Bullish bool
	Index   int
}

// FindFairValueGaps scans for 3-candle gaps of at least minGapPct
// percent. A bullish gap has candle1.High < candle3.Low.
func FindFairValueGaps(bars []model.Candle, minGapPct float64) []FairValueGap {
	if len(bars) < 3 {
		return nil
	}
	var gaps []FairValueGap
	for i := 0; i < len(bars)-2; i++ {
		c1, c3 := bars[i], bars[i+2]
		if c1.High < c3.Low {
			gapPct := (c3.Low - c1.High) / c1.High * 100
			if gapPct >= minGapPct {
				gaps = append(gaps, FairValueGap{
					Top: c3.Low, Bottom: c1.High,
					Mid:     (c3.Low + c1.High) / 2,
					Bullish: true, Index: i,
				})
			}
		}
		if c1.Low > c3.High {
			gapPct := (c1.Low - c3.High) / c3.High * 100
			if gapPct >= minGapPct {
				gaps = append(gaps, FairValueGap{
					Top: c1.Low, Bottom: c3.High,
					Mid:     (c1.Low + c3.High) / 2,
					Bullish: false, Index: i,
				})
			}
		}
	}
	return gaps
}

// OrderBlock is the last opposite-colored candle before a directional
// run of at least two candles.
type OrderBlock struct {
	Price   float64 // midpoint of the block candle body
	Bullish bool    // bullish block precedes an up-run
	Index   int
}

// FindOrderBlocks locates order-block proxies: a down candle followed
// by a run of >=2 up candles (bullish block), and the mirror case.
func FindOrderBlocks(bars []model.Candle) []OrderBlock {
	if len(bars) < 3 {
		return nil
	}
	var blocks []OrderBlock
	for i := 0; i < len(bars)-2; i++ {
		b := bars[i]
		if !b.Bullish() && bars[i+1].Bullish() && bars[i+2].Bullish() {
			blocks = append(blocks, OrderBlock{Price: (b.Open + b.Close) / 2, Bullish: true, Index: i})
		}
		if b.Bullish() && !bars[i+1].Bullish() && !bars[i+2].Bullish() {
			blocks = append(blocks, OrderBlock{Price: (b.Open + b.Close) / 2, Bullish: false, Index: i})
		}
	}
	return blocks
}

// StructureSnapshot summarizes market structure for one timeframe.
type StructureSnapshot struct {
	Bias        model.Direction // which side of equilibrium price sits on
	LastBreak   model.Direction // direction of the last break of structure
	RangeHigh   float64
	RangeLow    float64
	Equilibrium float64
	Discount    bool // price below equilibrium
}

// AnalyzeStructure derives the structure snapshot from confirmed
// swings. Returns a neutral snapshot when swings are unavailable.
func AnalyzeStructure(bars []model.Candle, lookback int) StructureSnapshot {
	snap := StructureSnapshot{Bias: model.Neutral, LastBreak: model.Neutral}
	swings := FindSwings(bars, lookback)
	if len(swings) == 0 || len(bars) == 0 {
		return snap
	}

	var lastHigh, lastLow *SwingPoint
	for i := range swings {
		s := swings[i]
		if s.IsHigh {
			lastHigh = &swings[i]
		} else {
			lastLow = &swings[i]
		}
	}
	if lastHigh == nil || lastLow == nil {
		return snap
	}

	price := bars[len(bars)-1].Close
	snap.RangeHigh = lastHigh.Price
	snap.RangeLow = lastLow.Price
	snap.Equilibrium = (lastHigh.Price + lastLow.Price) / 2
	snap.Discount = price < snap.Equilibrium

	if price > snap.Equilibrium {
		snap.Bias = model.Buy
	} else if price < snap.Equilibrium {
		snap.Bias = model.Sell
	}

	// Break of structure: close beyond the last confirmed swing.
	if price > lastHigh.Price {
		snap.LastBreak = model.Buy
	} else if price < lastLow.Price {
		snap.LastBreak = model.Sell
	}
	return snap
}
