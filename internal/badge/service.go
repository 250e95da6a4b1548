// Package badge provides badge minting, querying, sale listings, and the
// atomic multi-badge transfer engine.
package badge

import (
	"context"
	"errors"
	"fmt"

	"pokeyen-ledger/internal/clock"
	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/idhash"
	"pokeyen-ledger/internal/observability"
	"pokeyen-ledger/internal/storage"
)

// ErrBadgeNotFound is returned when a referenced badge does not exist.
var ErrBadgeNotFound = errors.New("badge not found")

// Service provides badge operations over a BadgeStore.
type Service struct {
	badges  storage.BadgeStore
	log     storage.BadgeLogStore
	clock   clock.Clock
	metrics *observability.Metrics
}

// ServiceOptions for creating a Service.
type ServiceOptions struct {
	Badges storage.BadgeStore
	Log    storage.BadgeLogStore

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewService creates a badge Service.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Badges == nil || opts.Log == nil {
		return nil, errors.New("badge service requires badge and badge log stores")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	return &Service{
		badges:  opts.Badges,
		log:     opts.Log,
		clock:   opts.Clock,
		metrics: opts.Metrics,
	}, nil
}

// AddBadge mints a badge with a fresh identifier and the current clock
// time. A nil userID mints an unassigned badge.
func (s *Service) AddBadge(ctx context.Context, userID *string, species string, source domain.BadgeSource, form *string, shiny bool) (*domain.Badge, error) {
	if species == "" || !source.IsValid() {
		return nil, storage.ErrInvalidInput
	}

	now := s.clock.Now().UnixMilli()
	b := &domain.Badge{
		BadgeID:   idhash.ComputeBadgeID(species, source, now),
		UserID:    userID,
		Species:   species,
		Source:    source,
		CreatedAt: now,
		Form:      form,
		Shiny:     shiny,
	}
	if err := s.badges.Insert(ctx, b); err != nil {
		return nil, fmt.Errorf("mint badge: %w", err)
	}

	if s.metrics != nil {
		s.metrics.BadgesMinted.Inc()
	}
	return b, nil
}

// FindAllByOwner returns the owner's badges; a nil owner selects
// unassigned badges.
func (s *Service) FindAllByOwner(ctx context.Context, userID *string) ([]*domain.Badge, error) {
	return s.badges.FindAllByOwner(ctx, userID)
}

// CountByOwnerAndSpecies counts the owner's badges of one species.
func (s *Service) CountByOwnerAndSpecies(ctx context.Context, userID, species string) (int64, error) {
	return s.badges.CountByOwnerAndSpecies(ctx, userID, species)
}

// CountByOwnerGroupedBySpecies tallies the owner's badges per species,
// ordered by species ascending.
func (s *Service) CountByOwnerGroupedBySpecies(ctx context.Context, userID string) ([]domain.SpeciesCount, error) {
	return s.badges.CountByOwnerGroupedBySpecies(ctx, userID)
}

// HasBadge reports whether the owner holds at least one badge of the species.
func (s *Service) HasBadge(ctx context.Context, userID, species string) (bool, error) {
	count, err := s.badges.CountByOwnerAndSpecies(ctx, userID, species)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetSalePrice lists the badge at price, or delists it when price is
// nil. Sale price and listing timestamp change together.
func (s *Service) SetSalePrice(ctx context.Context, badge *domain.Badge, price *int64) (*domain.Badge, error) {
	if price != nil && *price <= 0 {
		return nil, storage.ErrInvalidInput
	}

	updated, err := s.badges.SetSalePrice(ctx, badge.BadgeID, price, s.clock.Now().UnixMilli())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrBadgeNotFound
		}
		return nil, fmt.Errorf("set sale price: %w", err)
	}
	return updated, nil
}

// FindForSale returns listed badges matching the filter; nil filter
// fields are unconstrained.
func (s *Service) FindForSale(ctx context.Context, f domain.BadgeFilter) ([]*domain.Badge, error) {
	return s.badges.FindForSale(ctx, f)
}

// History returns the badge's audit-log entries, oldest first.
func (s *Service) History(ctx context.Context, badgeID string) ([]*domain.BadgeLogEntry, error) {
	return s.log.GetByBadgeID(ctx, badgeID)
}
