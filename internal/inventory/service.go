// Package inventory implements the spool management use cases on top of a
// spool.Repository.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valentindosimont/spoolmanager/internal/events"
	"github.com/valentindosimont/spoolmanager/internal/spool"
	"github.com/valentindosimont/spoolmanager/internal/tools"
)

// ErrNotTemplate is returned when copying from a spool that is not a template.
var ErrNotTemplate = errors.New("spool is not a template")

// Page is one page of a spool listing.
type Page struct {
	Spools []*spool.Spool
	Total  int // matching spools across all pages
}

// Service manages the spool inventory.
type Service struct {
	repo        spool.Repository
	bus         events.Publisher
	assignments *tools.Assignments
	logger      zerolog.Logger
	originator  string
	now         func() time.Time
}

// NewService creates an inventory service. bus and assignments may be nil.
// originator is recorded on the spools this service creates; a random one is
// generated when empty.
func NewService(repo spool.Repository, bus events.Publisher, assignments *tools.Assignments, logger zerolog.Logger, originator string) *Service {
	if originator == "" {
		originator = uuid.NewString()
	}
	return &Service{
		repo:        repo,
		bus:         bus,
		assignments: assignments,
		logger:      logger.With().Str("component", "inventory").Logger(),
		originator:  originator,
		now:         time.Now,
	}
}

// Get loads one spool.
func (s *Service) Get(ctx context.Context, id int64) (*spool.Spool, error) {
	return s.repo.LoadSpool(ctx, id)
}

// Add validates and stores a new spool. New spools are active unless stated
// otherwise, and start unused when their total weight is known.
func (s *Service) Add(ctx context.Context, sp *spool.Spool) error {
	if sp.ID != 0 {
		return fmt.Errorf("add spool: already stored as %d", sp.ID)
	}
	if err := spool.Validate(sp); err != nil {
		return err
	}

	if sp.Originator == "" {
		sp.Originator = s.originator
	}
	if sp.IsActive == nil {
		sp.IsActive = spool.Ptr(true)
	}
	if sp.Created.IsZero() {
		sp.Created = s.now()
	}
	if sp.TotalWeight != nil && sp.UsedWeight == nil {
		sp.UsedWeight = spool.Ptr(0.0)
	}

	if err := s.repo.SaveSpool(ctx, sp); err != nil {
		return fmt.Errorf("add spool: %w", err)
	}

	s.logger.Info().Int64("spool_id", sp.ID).Str("spool", sp.DisplayName).Msg("spool added")
	s.publish(events.Event{
		Topic:           events.TopicSpoolAdded,
		SpoolID:         sp.ID,
		DisplayName:     sp.DisplayName,
		RemainingWeight: sp.RemainingWeight,
		TotalWeight:     sp.TotalWeight,
	})
	return nil
}

// Update validates and stores changes to a loaded spool. It fails with
// spool.ErrVersionConflict when the spool changed since it was loaded.
func (s *Service) Update(ctx context.Context, sp *spool.Spool) error {
	if sp.ID == 0 {
		return fmt.Errorf("update spool: %w", spool.ErrNotFound)
	}
	if err := spool.Validate(sp); err != nil {
		return err
	}
	if err := s.repo.SaveSpool(ctx, sp); err != nil {
		return fmt.Errorf("update spool %d: %w", sp.ID, err)
	}
	s.logger.Debug().Int64("spool_id", sp.ID).Int("version", sp.CurrentVersion()).Msg("spool updated")
	return nil
}

// Delete removes a spool and unloads it from every tool.
func (s *Service) Delete(ctx context.Context, id int64) error {
	sp, err := s.repo.LoadSpool(ctx, id)
	if err != nil {
		return fmt.Errorf("delete spool %d: %w", id, err)
	}
	if err := s.repo.DeleteSpool(ctx, id); err != nil {
		return fmt.Errorf("delete spool %d: %w", id, err)
	}

	if s.assignments != nil {
		for _, tool := range s.assignments.ReleaseSpool(id) {
			s.publish(events.Event{Topic: events.TopicSpoolDeselected, Tool: &tool, SpoolID: id, DisplayName: sp.DisplayName})
		}
	}

	s.logger.Info().Int64("spool_id", id).Str("spool", sp.DisplayName).Msg("spool deleted")
	s.publish(events.Event{Topic: events.TopicSpoolDeleted, SpoolID: id, DisplayName: sp.DisplayName})
	return nil
}

// List returns the page of spools selected by q along with the number of
// spools matching its filters.
func (s *Service) List(ctx context.Context, q spool.Query) (*Page, error) {
	spools, err := s.repo.ListSpools(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.CountSpools(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Page{Spools: spools, Total: total}, nil
}

// Templates returns the spools marked as templates.
func (s *Service) Templates(ctx context.Context) ([]*spool.Spool, error) {
	return s.repo.LoadTemplates(ctx)
}

// Catalogs returns the vendors, materials, labels and colors in use.
func (s *Service) Catalogs(ctx context.Context) (*spool.Catalogs, error) {
	return s.repo.Catalogs(ctx)
}

// CopyFromTemplate creates a new, unused spool from a template. An empty
// displayName keeps the template's name.
func (s *Service) CopyFromTemplate(ctx context.Context, templateID int64, displayName string) (*spool.Spool, error) {
	tmpl, err := s.repo.LoadSpool(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", templateID, err)
	}
	if !tmpl.Template() {
		return nil, fmt.Errorf("copy spool %d: %w", templateID, ErrNotTemplate)
	}

	sp := tmpl.Clone()
	sp.Originator = ""
	sp.IsActive = nil
	if displayName != "" {
		sp.DisplayName = displayName
	}
	if err := s.Add(ctx, sp); err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *Service) publish(e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(e); err != nil {
		s.logger.Warn().Err(err).Str("topic", e.Topic).Msg("failed to publish event")
	}
}
