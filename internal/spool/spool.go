// Package spool defines the filament spool record, the values derived from
// it, and the repository contract used to persist it.
package spool

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a spool does not exist (or was deleted).
	ErrNotFound = errors.New("spool not found")
	// ErrVersionConflict is returned when a spool was modified by someone
	// else since it was loaded.
	ErrVersionConflict = errors.New("spool was modified concurrently")
)

// Spool is one filament spool in the inventory. Nil pointer fields are
// unknown values.
type Spool struct {
	ID         int64
	Version    *int
	Created    time.Time
	Updated    time.Time
	Originator string

	IsActive    *bool
	IsTemplate  *bool
	DisplayName string `validate:"required,max=255"`
	Vendor      string `validate:"max=255"`
	Material    string `validate:"max=255"`
	Code        string // bar or QR code
	Labels      []string

	MaterialCharacteristic string
	Density                *float64 `validate:"omitempty,gt=0"` // g/cm³
	Diameter               *float64 `validate:"omitempty,gt=0"` // mm
	DiameterTolerance      *float64
	ColorName              string
	Color                  string `validate:"omitempty,hexcolor"`
	FlowRateCompensation   *int

	TotalWeight     *float64 `validate:"omitempty,gte=0"` // g, filament only
	SpoolWeight     *float64 `validate:"omitempty,gte=0"` // g, empty spool
	UsedWeight      *float64 `validate:"omitempty,gte=0"`
	RemainingWeight *float64
	TotalLength     *int `validate:"omitempty,gte=0"` // mm
	UsedLength      *int `validate:"omitempty,gte=0"`

	FirstUse      *time.Time
	LastUse       *time.Time
	PurchasedFrom string
	PurchasedOn   *time.Time
	Cost          *float64 `validate:"omitempty,gte=0"`
	CostUnit      string

	NoteText        string
	NoteDeltaFormat string
	NoteHTML        string

	Temperature                *int
	BedTemperature             *int
	EnclosureTemperature       *int
	OffsetTemperature          *int
	OffsetBedTemperature       *int
	OffsetEnclosureTemperature *int
}

// CurrentVersion returns the record version, treating an unset version as 1.
func (s *Spool) CurrentVersion() int {
	if s.Version == nil {
		return 1
	}
	return *s.Version
}

// Active reports whether the spool is marked active.
func (s *Spool) Active() bool { return s.IsActive != nil && *s.IsActive }

// Template reports whether the spool is a template for new spools.
func (s *Spool) Template() bool { return s.IsTemplate != nil && *s.IsTemplate }

// ApplyConsumption adds extruded filament to the used totals and refreshes
// the remaining weight and use timestamps.
func (s *Spool) ApplyConsumption(grams float64, lengthMM int, at time.Time) {
	used := grams
	if s.UsedWeight != nil {
		used += *s.UsedWeight
	}
	s.UsedWeight = &used

	usedLen := lengthMM
	if s.UsedLength != nil {
		usedLen += *s.UsedLength
	}
	s.UsedLength = &usedLen

	s.RemainingWeight = RemainingWeight(s.UsedWeight, s.TotalWeight)

	if s.FirstUse == nil {
		first := at
		s.FirstUse = &first
	}
	last := at
	s.LastUse = &last
}

// Clone returns a copy of the spool suitable for use as a new record:
// identity, version, timestamps and usage are cleared.
func (s *Spool) Clone() *Spool {
	c := *s
	c.ID = 0
	c.Version = nil
	c.Created = time.Time{}
	c.Updated = time.Time{}
	c.IsTemplate = nil
	c.UsedWeight = nil
	c.UsedLength = nil
	if s.TotalWeight != nil {
		c.RemainingWeight = Ptr(*s.TotalWeight)
	}
	c.FirstUse = nil
	c.LastUse = nil
	c.Labels = append([]string(nil), s.Labels...)
	return &c
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
