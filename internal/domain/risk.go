package domain

// RiskRecommendation holds the fixed-percentage sizing presets.
type RiskRecommendation struct {
	Conservative float64 `json:"conservative"` // 1% of balance
	Moderate     float64 `json:"moderate"`     // 2.5% of balance
	Aggressive   float64 `json:"aggressive"`   // 5% of balance
}

// RiskCalculation is the chosen trade size plus the presets.
type RiskCalculation struct {
	Balance          float64            `json:"balance"`
	RiskPercent      float64            `json:"riskPercent"`
	RiskAmount       float64            `json:"riskAmount"`
	ClampedToMinimum bool               `json:"clampedToMinimum"`
	ClampedToBalance bool               `json:"clampedToBalance"`
	Recommendation   RiskRecommendation `json:"recommendation"`
}
