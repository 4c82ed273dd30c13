package model

import "strings"

// OppTag is a bitset describing how an opportunity was built. Tests
// and the state machine branch on tags; the formatter renders them for
// humans.
type OppTag uint16

const (
	TagMeanReversion OppTag = 1 << iota
	TagTrendFollow
	TagExhaustionReversal
	TagDirectiveAligned
	TagIdealZone
	TagHighConviction
	TagReducedExposure
	TagSMCBypass
	TagStrongRegion
	TagTrapRegionNear
)

var tagNames = []struct {
	tag  OppTag
	name string
}{
	{TagMeanReversion, "mean-reversion"},
	{TagTrendFollow, "trend-follow"},
	{TagExhaustionReversal, "exhaustion-reversal"},
	{TagDirectiveAligned, "directive-aligned"},
	{TagIdealZone, "ideal-zone"},
	{TagHighConviction, "high-conviction"},
	{TagReducedExposure, "reduced-exposure"},
	{TagSMCBypass, "smc-bypass"},
	{TagStrongRegion, "strong-region"},
	{TagTrapRegionNear, "trap-region-near"},
}

// Has reports whether all bits of t2 are set.
func (t OppTag) Has(t2 OppTag) bool { return t&t2 == t2 }

// String renders the tag set as a comma-separated list.
func (t OppTag) String() string {
	var parts []string
	for _, tn := range tagNames {
		if t.Has(tn.tag) {
			parts = append(parts, tn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// Opportunity is one candidate trade emitted by the synthesizer.
type Opportunity struct {
	Direction  Direction
	Entry      float64
	Stop       float64
	Target     float64
	RiskReward float64
	Confidence int // 0..100
	Tags       OppTag
	Rationale  string
	Region     string // label of the originating region, if any
}
