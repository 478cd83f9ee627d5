package usage

import "time"

// SpoolUsage is the filament one spool gave up during a session.
type SpoolUsage struct {
	SpoolID     int64
	DisplayName string
	Tools       []int
	Grams       float64
	LengthMM    float64
	// Cost is only meaningful when CostKnown; spools without a price or
	// total weight contribute grams but no cost.
	Cost      float64
	CostKnown bool
	CostUnit  string
	Remaining *float64
	Low       bool
	Empty     bool
	LastUsed  time.Time
}

// Report summarizes a session.
type Report struct {
	SessionID string
	Started   time.Time
	Spools    []SpoolUsage
}

// TotalGrams returns the filament consumed across all spools.
func (r Report) TotalGrams() float64 {
	var total float64
	for _, s := range r.Spools {
		total += s.Grams
	}
	return total
}

// TotalLengthMM returns the length consumed across all spools.
func (r Report) TotalLengthMM() float64 {
	var total float64
	for _, s := range r.Spools {
		total += s.LengthMM
	}
	return total
}

// TotalCost sums the known costs per currency unit.
func (r Report) TotalCost() map[string]float64 {
	costs := make(map[string]float64)
	for _, s := range r.Spools {
		if s.CostKnown {
			costs[s.CostUnit] += s.Cost
		}
	}
	return costs
}
