package domain

// Direction indicates which side of the market the model disagrees with.
type Direction string

const (
	DirectionFor     Direction = "for"     // model probability above market
	DirectionAgainst Direction = "against" // model probability below market
)

// ConfidenceBreakdown holds the five structural sub-scores that compose the
// deterministic confidence score, each normalized to [0,1], plus the weighted
// overall score.
type ConfidenceBreakdown struct {
	SourceQuality     float64
	Recency           float64
	Consensus         float64
	BaseRateAlignment float64
	ReasoningClarity  float64
	Overall           float64
}

// Opportunity is a scored divergence between the market price and the model
// estimate for one contract. Computed once per run, never mutated.
type Opportunity struct {
	ContractID        string
	Question          string
	Category          string
	MarketProbability float64
	ModelProbability  float64
	Edge              float64
	Confidence        ConfidenceBreakdown
	LiquidityFactor   float64
	Score             float64
	RedFlags          []string
	GreenFlags        []string
	Direction         Direction
	Magnitude         float64 // abstract units, assigned by the sizing strategy
}
