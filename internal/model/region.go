package model

// RegionKind classifies a mapped price region.
type RegionKind string

const (
	RegionSupport    RegionKind = "support"
	RegionResistance RegionKind = "resistance"
	RegionVWAP       RegionKind = "vwap"
	RegionPivot      RegionKind = "pivot"
	RegionStructure  RegionKind = "structure"
)

// Region is a confluence-scored price level of interest. Regions are
// recreated every cycle and discarded at cycle end; only the top-N
// survive into the persisted cycle record.
type Region struct {
	Price       float64
	Label       string
	Kind        RegionKind
	Confluence  int
	DistancePct float64 // signed, relative to current price
	Timeframe   Timeframe
	VolumeTier  int // 0..3, ratio of swing volume to the 50-bar average
}
