package relationship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/companion/internal/metrics"
	"github.com/jason-s-yu/companion/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAttempts bounds the compare-and-apply retry loop of every mutation.
const DefaultMaxAttempts = 5

// EventSink receives one event per committed transition.
type EventSink interface {
	PublishRelationshipEvent(ctx context.Context, ev models.RelationshipEvent) error
}

// Service is the only writer of the relationship store. Each mutating call
// is expressed as a single Store.Apply whose closure re-checks every
// precondition against the state it is handed, retried on ErrConflict.
type Service struct {
	store Store
	users UserDirectory
	log   *logrus.Logger

	// MaxAttempts is how many conflicting applies are tolerated before ErrBusy.
	MaxAttempts int
	// Events, if set, is notified after each successful transition. Failures are logged only.
	Events EventSink
	// Now is the clock used for record timestamps.
	Now func() time.Time
}

// NewService wires a Service over store and users. A nil logger falls back
// to the logrus standard logger.
func NewService(store Store, users UserDirectory, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		store:       store,
		users:       users,
		log:         logger,
		MaxAttempts: DefaultMaxAttempts,
		Now:         time.Now,
	}
}

// Request sends a friend request from requesterID to targetID.
//
// If targetID already has a pending request towards requesterID the two
// requests cancel out into a friendship and StatusFriends is returned.
// Re-sending an identical request returns StatusRequested together with
// ErrDuplicateRequest.
func (s *Service) Request(ctx context.Context, requesterID, targetID uuid.UUID) (models.RelationshipStatus, error) {
	const op = "request"
	pair, err := NewPair(requesterID, targetID)
	if err != nil {
		return "", s.finish(op, err)
	}
	if err := s.ensureUsers(ctx, requesterID, targetID); err != nil {
		return "", s.finish(op, err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return "", s.finish(op, fmt.Errorf("failed to generate relationship id: %w", err))
	}

	var rec models.Relationship
	version, err := s.mutate(ctx, op, func(c Collection) error {
		now := s.Now()
		existing, ok := c.Get(pair)
		switch {
		case !ok:
			rec = models.Relationship{
				ID:          id,
				UserLow:     pair.Low,
				UserHigh:    pair.High,
				Status:      models.StatusRequested,
				RequesterID: requesterID,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		case existing.Status == models.StatusFriends:
			return fmt.Errorf("%w: %v and %v", ErrAlreadyFriends, requesterID, targetID)
		case existing.RequesterID == requesterID:
			return fmt.Errorf("%w: %v to %v", ErrDuplicateRequest, requesterID, targetID)
		default:
			// target already asked requester
			rec = befriend(existing, now)
		}
		c.Put(rec)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRequest) {
			return models.StatusRequested, s.finish(op, err)
		}
		return "", s.finish(op, err)
	}
	s.emit(ctx, op, requesterID, targetID, rec.ID, rec.Status, version)
	return rec.Status, s.finish(op, nil)
}

// Accept confirms the pending request that requesterID sent to actorID.
func (s *Service) Accept(ctx context.Context, actorID, requesterID uuid.UUID) (models.RelationshipStatus, error) {
	const op = "accept"
	pair, err := decisionPair(actorID, requesterID)
	if err != nil {
		return "", s.finish(op, err)
	}

	var rec models.Relationship
	version, err := s.mutate(ctx, op, func(c Collection) error {
		pending, err := awaitingDecision(c, pair, actorID)
		if err != nil {
			return err
		}
		rec = befriend(pending, s.Now())
		c.Put(rec)
		return nil
	})
	if err != nil {
		return "", s.finish(op, err)
	}
	s.emit(ctx, op, actorID, requesterID, rec.ID, models.StatusFriends, version)
	return models.StatusFriends, s.finish(op, nil)
}

// Reject declines the pending request that requesterID sent to actorID.
// The record is removed so the pair may be requested again.
func (s *Service) Reject(ctx context.Context, actorID, requesterID uuid.UUID) (models.RelationshipStatus, error) {
	const op = "reject"
	pair, err := decisionPair(actorID, requesterID)
	if err != nil {
		return "", s.finish(op, err)
	}

	var removed models.Relationship
	version, err := s.mutate(ctx, op, func(c Collection) error {
		pending, err := awaitingDecision(c, pair, actorID)
		if err != nil {
			return err
		}
		removed = pending
		c.Delete(pair)
		return nil
	})
	if err != nil {
		return "", s.finish(op, err)
	}
	s.emit(ctx, op, actorID, requesterID, removed.ID, models.StatusNone, version)
	return models.StatusNone, s.finish(op, nil)
}

// Cancel withdraws a pending request requesterID sent to targetID.
func (s *Service) Cancel(ctx context.Context, requesterID, targetID uuid.UUID) (models.RelationshipStatus, error) {
	const op = "cancel"
	pair, err := NewPair(requesterID, targetID)
	if err != nil {
		return "", s.finish(op, err)
	}

	var removed models.Relationship
	version, err := s.mutate(ctx, op, func(c Collection) error {
		existing, ok := c.Get(pair)
		if !ok || existing.Status != models.StatusRequested {
			return fmt.Errorf("%w: %v to %v", ErrNoSuchRequest, requesterID, targetID)
		}
		if existing.RequesterID != requesterID {
			return fmt.Errorf("%w: only the requester may cancel", ErrUnauthorized)
		}
		removed = existing
		c.Delete(pair)
		return nil
	})
	if err != nil {
		return "", s.finish(op, err)
	}
	s.emit(ctx, op, requesterID, targetID, removed.ID, models.StatusNone, version)
	return models.StatusNone, s.finish(op, nil)
}

// Unfriend dissolves a confirmed friendship. Either participant may call it.
func (s *Service) Unfriend(ctx context.Context, actorID, otherID uuid.UUID) (models.RelationshipStatus, error) {
	const op = "unfriend"
	pair, err := NewPair(actorID, otherID)
	if err != nil {
		return "", s.finish(op, err)
	}

	var removed models.Relationship
	version, err := s.mutate(ctx, op, func(c Collection) error {
		existing, ok := c.Get(pair)
		if !ok || existing.Status != models.StatusFriends {
			return fmt.Errorf("%w: %v and %v", ErrNoSuchRelationship, actorID, otherID)
		}
		removed = existing
		c.Delete(pair)
		return nil
	})
	if err != nil {
		return "", s.finish(op, err)
	}
	s.emit(ctx, op, actorID, otherID, removed.ID, models.StatusNone, version)
	return models.StatusNone, s.finish(op, nil)
}

// FindByPair exposes the store lookup; the order of a and b does not matter.
func (s *Service) FindByPair(ctx context.Context, a, b uuid.UUID) (models.Relationship, bool, error) {
	return s.store.FindByPair(ctx, a, b)
}

// mutate performs fn as one compare-and-apply, retrying on version
// conflicts up to MaxAttempts times.
func (s *Service) mutate(ctx context.Context, op string, fn MutationFunc) (Version, error) {
	attempts := s.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		version, err := s.store.Version(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to read relationship version: %w", err)
		}
		next, err := s.store.Apply(ctx, version, fn)
		if !errors.Is(err, ErrConflict) {
			metrics.ApplyAttempts.Observe(float64(attempt))
			return next, err
		}
		metrics.ApplyConflicts.WithLabelValues(op).Inc()
		s.log.WithFields(logrus.Fields{
			"op":      op,
			"attempt": attempt,
			"version": version,
		}).Debug("relationship apply conflict, retrying")
	}
	metrics.ApplyAttempts.Observe(float64(attempts))
	return 0, fmt.Errorf("%w: %s gave up after %d attempts", ErrBusy, op, attempts)
}

func (s *Service) ensureUsers(ctx context.Context, ids ...uuid.UUID) error {
	for _, id := range ids {
		ok, err := s.users.Exists(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to look up user %v: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: %v", ErrUnknownUser, id)
		}
	}
	return nil
}

// finish counts the outcome of op and passes err through.
func (s *Service) finish(op string, err error) error {
	result := "ok"
	if err != nil {
		result = Code(err)
	}
	metrics.Transitions.WithLabelValues(op, result).Inc()
	return err
}

func (s *Service) emit(ctx context.Context, op string, actor, peer, relID uuid.UUID, status models.RelationshipStatus, version Version) {
	fields := logrus.Fields{
		"op":      op,
		"actor":   actor,
		"peer":    peer,
		"status":  status,
		"version": version,
	}
	s.log.WithFields(fields).Info("relationship transition")

	if s.Events == nil {
		return
	}
	ev := models.RelationshipEvent{
		RelationshipID: relID,
		Op:             op,
		ActorID:        actor,
		PeerID:         peer,
		Status:         status,
		Version:        uint64(version),
		Timestamp:      s.Now().UnixMilli(),
	}
	// the transition is committed; a caller hanging up must not drop the event
	if err := s.Events.PublishRelationshipEvent(context.WithoutCancel(ctx), ev); err != nil {
		metrics.AuditPublishFailures.Inc()
		s.log.WithFields(fields).WithError(err).Warn("failed to publish relationship event")
	}
}

// decisionPair validates the inputs of accept and reject. A requester
// can never decide their own request.
func decisionPair(actorID, requesterID uuid.UUID) (Pair, error) {
	if actorID == requesterID {
		return Pair{}, fmt.Errorf("%w: requester cannot decide their own request", ErrUnauthorized)
	}
	return NewPair(actorID, requesterID)
}

// awaitingDecision returns the pending record for pair that actorID received.
func awaitingDecision(c Collection, pair Pair, actorID uuid.UUID) (models.Relationship, error) {
	existing, ok := c.Get(pair)
	if !ok || existing.Status != models.StatusRequested {
		return models.Relationship{}, fmt.Errorf("%w: %s", ErrNoSuchRequest, pair)
	}
	if existing.RequesterID == actorID {
		return models.Relationship{}, fmt.Errorf("%w: requester cannot decide their own request", ErrUnauthorized)
	}
	return existing, nil
}

func befriend(r models.Relationship, now time.Time) models.Relationship {
	r.Status = models.StatusFriends
	r.RequesterID = uuid.Nil
	r.UpdatedAt = now
	return r
}
