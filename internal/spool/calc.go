package spool

import "math"

// Fallback filament properties used when a spool does not record its own.
const (
	DefaultDiameter = 1.75 // mm
	DefaultDensity  = 1.24 // g/cm³, PLA
)

// RemainingWeight returns total - used, or nil when either is unknown.
func RemainingWeight(used, total *float64) *float64 {
	if used == nil || total == nil {
		return nil
	}
	r := *total - *used
	return &r
}

// RemainingLength returns total - used, or nil when either is unknown.
func RemainingLength(used, total *int) *int {
	if used == nil || total == nil {
		return nil
	}
	r := *total - *used
	return &r
}

// Percentage returns part as a percentage of total, or nil when either is
// unknown or total is not positive.
func Percentage(part, total *float64) *float64 {
	if part == nil || total == nil || *total <= 0 {
		return nil
	}
	p := *part / (*total / 100.0)
	return &p
}

// MassForLength converts a filament length to grams.
//
//	mass = length × π × (diameter/2)² × density
//
// with length and diameter in mm and density in g/cm³ (hence the /1000).
func MassForLength(lengthMM, diameterMM, density float64) float64 {
	radius := diameterMM / 2
	volumeMM3 := lengthMM * math.Pi * radius * radius
	return volumeMM3 / 1000 * density
}

// LengthForMass is the inverse of MassForLength.
func LengthForMass(grams, diameterMM, density float64) float64 {
	radius := diameterMM / 2
	area := math.Pi * radius * radius
	if area == 0 || density == 0 {
		return 0
	}
	return grams * 1000 / density / area
}

// Filament returns the spool's diameter and density, substituting the given
// defaults for unknown or non-positive values.
func (s *Spool) Filament(defaultDiameter, defaultDensity float64) (diameter, density float64) {
	diameter, density = defaultDiameter, defaultDensity
	if s.Diameter != nil && *s.Diameter > 0 {
		diameter = *s.Diameter
	}
	if s.Density != nil && *s.Density > 0 {
		density = *s.Density
	}
	return diameter, density
}

// CostForWeight returns the price of the given grams of this spool's
// filament, pro rata of its cost over its total weight.
func (s *Spool) CostForWeight(grams float64) (float64, bool) {
	if s.Cost == nil || s.TotalWeight == nil || *s.TotalWeight <= 0 {
		return 0, false
	}
	return *s.Cost * grams / *s.TotalWeight, true
}

// Summary holds the derived values shown alongside a spool.
type Summary struct {
	RemainingWeight           *float64
	RemainingPercentage       *float64
	UsedPercentage            *float64
	RemainingLength           *int
	RemainingLengthPercentage *int
	UsedLengthPercentage      *int
}

// Summarize computes the derived remaining/used values of a spool.
func (s *Spool) Summarize() Summary {
	remaining := RemainingWeight(s.UsedWeight, s.TotalWeight)
	remainingLen := RemainingLength(s.UsedLength, s.TotalLength)
	return Summary{
		RemainingWeight:           remaining,
		RemainingPercentage:       Percentage(remaining, s.TotalWeight),
		UsedPercentage:            Percentage(s.UsedWeight, s.TotalWeight),
		RemainingLength:           remainingLen,
		RemainingLengthPercentage: intPercentage(remainingLen, s.TotalLength),
		UsedLengthPercentage:      intPercentage(s.UsedLength, s.TotalLength),
	}
}

func intPercentage(part, total *int) *int {
	if part == nil || total == nil {
		return nil
	}
	p := Percentage(Ptr(float64(*part)), Ptr(float64(*total)))
	if p == nil {
		return nil
	}
	return Ptr(int(math.Round(*p)))
}
