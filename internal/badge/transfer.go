package badge

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pokeyen-ledger/internal/clock"
	"pokeyen-ledger/internal/domain"
	"pokeyen-ledger/internal/events"
	"pokeyen-ledger/internal/observability"
	"pokeyen-ledger/internal/storage"
)

// StaleOwnershipError reports that a badge's stored owner no longer
// matched the owner on the instance the caller supplied. The whole
// batch was rolled back. Match with errors.As.
type StaleOwnershipError = storage.StaleOwnershipError

// TransferEngine moves batches of badges to one recipient as a single
// atomic unit, writes the audit trail, and publishes species-lost
// events after commit.
type TransferEngine struct {
	badges  storage.BadgeStore
	channel *events.Channel
	clock   clock.Clock
	logger  *log.Logger
	metrics *observability.Metrics
}

// TransferEngineOptions for creating a TransferEngine.
type TransferEngineOptions struct {
	Badges  storage.BadgeStore
	Channel *events.Channel

	// Clock defaults to the system clock.
	Clock clock.Clock

	// Logger defaults to the standard logger.
	Logger *log.Logger

	// Metrics is optional.
	Metrics *observability.Metrics
}

// NewTransferEngine creates a TransferEngine.
func NewTransferEngine(opts TransferEngineOptions) (*TransferEngine, error) {
	if opts.Badges == nil {
		return nil, errors.New("transfer engine requires a badge store")
	}
	if opts.Channel == nil {
		opts.Channel = events.NewChannel()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &TransferEngine{
		badges:  opts.Badges,
		channel: opts.Channel,
		clock:   opts.Clock,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}, nil
}

// Channel returns the event channel species-lost notifications are
// published on.
func (e *TransferEngine) Channel() *events.Channel {
	return e.channel
}

// ownerSpecies is a distinct (original owner, species) pair in a batch.
type ownerSpecies struct {
	owner   string
	species string
}

// Transfer moves every badge in the batch to recipientID as one atomic
// unit. Validation runs in batch order against the stored owner of each
// badge; the first mismatch aborts the whole batch with
// *StaleOwnershipError and zero effects. Sale listings on transferred
// badges are cleared, and one audit entry per badge is written in the
// same unit.
//
// After the unit commits, a species-lost event is published for every
// distinct (original owner, species) pair whose remaining count dropped
// to zero, one event per pair. Event-handler failures do not undo the
// transfer; they are logged and returned alongside the updated badges.
func (e *TransferEngine) Transfer(ctx context.Context, badges []*domain.Badge, recipientID, reason string, metadata map[string]string) ([]*domain.Badge, error) {
	if len(badges) == 0 {
		return nil, storage.ErrInvalidInput
	}

	now := e.clock.Now().UnixMilli()
	batch := make([]storage.OwnershipTransfer, 0, len(badges))
	for _, b := range badges {
		batch = append(batch, storage.OwnershipTransfer{
			BadgeID:       b.BadgeID,
			ExpectedOwner: b.UserID,
			NewOwner:      &recipientID,
			Reason:        reason,
			CreatedAt:     now,
			Metadata:      metadata,
		})
	}

	updated, err := e.badges.TransferOwnership(ctx, batch)
	if err != nil {
		var stale *StaleOwnershipError
		if e.metrics != nil && errors.As(err, &stale) {
			e.metrics.TransferBatches.WithLabelValues("conflict").Inc()
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.TransferBatches.WithLabelValues("committed").Inc()
		e.metrics.TransferBatchSize.Observe(float64(len(badges)))
		e.metrics.BadgesTransferred.Add(float64(len(badges)))
	}

	return updated, e.publishSpeciesLost(ctx, badges, recipientID)
}

// publishSpeciesLost fires one event per distinct (original owner,
// species) pair whose post-transfer count is zero. Runs only after the
// transfer committed; failures here never roll it back.
func (e *TransferEngine) publishSpeciesLost(ctx context.Context, badges []*domain.Badge, recipientID string) error {
	seen := make(map[ownerSpecies]struct{})
	var pairs []ownerSpecies
	for _, b := range badges {
		if b.UserID == nil || *b.UserID == recipientID {
			continue
		}
		p := ownerSpecies{owner: *b.UserID, species: b.Species}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	var errs []error
	for _, p := range pairs {
		count, err := e.badges.CountByOwnerAndSpecies(ctx, p.owner, p.species)
		if err != nil {
			e.logger.Printf("count remaining %s badges for %s: %v", p.species, p.owner, err)
			errs = append(errs, fmt.Errorf("count remaining badges: %w", err))
			continue
		}
		if count > 0 {
			continue
		}

		if e.metrics != nil {
			e.metrics.SpeciesLostEvents.Inc()
		}
		if err := e.channel.Publish(ctx, events.SpeciesLost{UserID: p.owner, Species: p.species}); err != nil {
			e.logger.Printf("species-lost handler for (%s, %s): %v", p.owner, p.species, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
