package spool

import (
	"math"
	"testing"
	"time"
)

func TestMassForLength(t *testing.T) {
	tests := []struct {
		name     string
		length   float64
		diameter float64
		density  float64
		want     float64
	}{
		// 1 m of 1.75 mm PLA weighs about 2.98 g
		{"pla 1m", 1000, 1.75, 1.24, 2.9825},
		{"petg 1m", 1000, 1.75, 1.27, 3.0547},
		{"2.85 abs 1m", 1000, 2.85, 1.04, 6.6345},
		{"zero length", 0, 1.75, 1.24, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MassForLength(tt.length, tt.diameter, tt.density)
			if math.Abs(got-tt.want) > 0.001 {
				t.Errorf("MassForLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLengthForMassInverts(t *testing.T) {
	grams := MassForLength(1234.5, 1.75, 1.24)
	if got := LengthForMass(grams, 1.75, 1.24); math.Abs(got-1234.5) > 1e-6 {
		t.Errorf("LengthForMass() = %v, want 1234.5", got)
	}
	if got := LengthForMass(10, 0, 1.24); got != 0 {
		t.Errorf("LengthForMass with zero diameter = %v, want 0", got)
	}
}

func TestRemainingAndPercentages(t *testing.T) {
	if RemainingWeight(nil, Ptr(1000.0)) != nil {
		t.Error("RemainingWeight(nil, 1000) should be nil")
	}
	if got := RemainingWeight(Ptr(250.0), Ptr(1000.0)); got == nil || *got != 750 {
		t.Errorf("RemainingWeight(250, 1000) = %v, want 750", got)
	}
	if Percentage(Ptr(10.0), Ptr(0.0)) != nil {
		t.Error("Percentage with zero total should be nil")
	}
	if got := Percentage(Ptr(250.0), Ptr(1000.0)); got == nil || *got != 25 {
		t.Errorf("Percentage(250, 1000) = %v, want 25", got)
	}

	s := &Spool{
		TotalWeight: Ptr(1000.0),
		UsedWeight:  Ptr(400.0),
		TotalLength: Ptr(330000),
		UsedLength:  Ptr(110000),
	}
	sum := s.Summarize()
	if *sum.RemainingWeight != 600 || *sum.RemainingPercentage != 60 || *sum.UsedPercentage != 40 {
		t.Errorf("weight summary = %v/%v/%v, want 600/60/40", *sum.RemainingWeight, *sum.RemainingPercentage, *sum.UsedPercentage)
	}
	if *sum.RemainingLength != 220000 || *sum.RemainingLengthPercentage != 67 || *sum.UsedLengthPercentage != 33 {
		t.Errorf("length summary = %v/%v/%v, want 220000/67/33", *sum.RemainingLength, *sum.RemainingLengthPercentage, *sum.UsedLengthPercentage)
	}

	empty := (&Spool{}).Summarize()
	if empty.RemainingWeight != nil || empty.UsedLengthPercentage != nil {
		t.Errorf("summary of unknown spool = %+v, want nil values", empty)
	}
}

func TestFilamentDefaults(t *testing.T) {
	s := &Spool{Diameter: Ptr(2.85), Density: Ptr(0.0)}
	d, rho := s.Filament(DefaultDiameter, DefaultDensity)
	if d != 2.85 || rho != DefaultDensity {
		t.Errorf("Filament() = (%v, %v), want (2.85, %v)", d, rho, DefaultDensity)
	}
}

func TestCostForWeight(t *testing.T) {
	s := &Spool{Cost: Ptr(25.0), TotalWeight: Ptr(1000.0)}
	if got, ok := s.CostForWeight(100); !ok || math.Abs(got-2.5) > 1e-9 {
		t.Errorf("CostForWeight(100) = (%v, %v), want (2.5, true)", got, ok)
	}
	if _, ok := (&Spool{Cost: Ptr(25.0)}).CostForWeight(100); ok {
		t.Error("CostForWeight without total weight should not be ok")
	}
}

func TestApplyConsumption(t *testing.T) {
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := first.Add(2 * time.Hour)

	s := &Spool{TotalWeight: Ptr(1000.0)}
	s.ApplyConsumption(12.5, 4200, first)
	s.ApplyConsumption(2.5, 800, later)

	if *s.UsedWeight != 15 || *s.UsedLength != 5000 {
		t.Errorf("used = %v g / %v mm, want 15 g / 5000 mm", *s.UsedWeight, *s.UsedLength)
	}
	if *s.RemainingWeight != 985 {
		t.Errorf("RemainingWeight = %v, want 985", *s.RemainingWeight)
	}
	if !s.FirstUse.Equal(first) || !s.LastUse.Equal(later) {
		t.Errorf("FirstUse, LastUse = %v, %v, want %v, %v", s.FirstUse, s.LastUse, first, later)
	}
}

func TestClone(t *testing.T) {
	s := &Spool{
		ID:          7,
		Version:     Ptr(3),
		IsTemplate:  Ptr(true),
		DisplayName: "Template PLA",
		TotalWeight: Ptr(1000.0),
		UsedWeight:  Ptr(50.0),
		Labels:      []string{"pla"},
	}
	c := s.Clone()
	if c.ID != 0 || c.Version != nil || c.Template() || c.UsedWeight != nil {
		t.Errorf("Clone() kept identity or usage: %+v", c)
	}
	if c.RemainingWeight == nil || *c.RemainingWeight != 1000 {
		t.Errorf("Clone().RemainingWeight = %v, want 1000", c.RemainingWeight)
	}
	c.Labels[0] = "changed"
	if s.Labels[0] != "pla" {
		t.Error("Clone() shares the labels slice")
	}
}
