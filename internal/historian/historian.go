// Package historian drains relationship events from the audit queue and
// persists them to PostgreSQL in batches.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/jason-s-yu/companion/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields the next queued event, or nil when the wait timed out.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.RelationshipEvent, error)
}

// Sink persists one batch atomically.
type Sink func(ctx context.Context, events []models.RelationshipEvent) error

// Service accumulates events from a Source and flushes them to a Sink when
// the batch is full or FlushDelay has elapsed.
type Service struct {
	source Source
	sink   Sink
	log    *logrus.Logger

	BatchSize    int
	FlushDelay   time.Duration
	// PopTimeout bounds each blocking read so shutdown is noticed.
	PopTimeout   time.Duration
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration

	batchMu sync.Mutex
	batch   []models.RelationshipEvent
}

func New(source Source, sink Sink, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		source:       source,
		sink:         sink,
		log:          logger,
		BatchSize:    20,
		FlushDelay:   500 * time.Millisecond,
		PopTimeout:   3 * time.Second,
		ErrorBackoff: time.Second,
	}
}

// Run reads until ctx is cancelled, then flushes whatever is still buffered.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.FlushDelay)
	defer ticker.Stop()

	s.log.Info("historian started")
	defer s.log.Info("historian stopped")

	for {
		select {
		case <-ctx.Done():
			s.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			ev, err := s.source.Pop(ctx, s.PopTimeout)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.WithError(err).Error("failed to pop relationship event")
				s.pause(ctx)
				continue
			}
			if ev == nil {
				continue
			}
			s.append(ctx, *ev)
		}
	}
}

// pause waits ErrorBackoff or until ctx is done.
func (s *Service) pause(ctx context.Context) {
	t := time.NewTimer(s.ErrorBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Service) append(ctx context.Context, ev models.RelationshipEvent) {
	s.batchMu.Lock()
	s.batch = append(s.batch, ev)
	full := len(s.batch) >= s.BatchSize
	s.batchMu.Unlock()
	if full {
		s.Flush(ctx)
	}
}

// Flush writes the buffered batch. On failure the events are put back in
// front of the buffer and retried on the next flush.
func (s *Service) Flush(ctx context.Context) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	if len(s.batch) == 0 {
		return
	}
	pending := make([]models.RelationshipEvent, len(s.batch))
	copy(pending, s.batch)

	if err := s.sink(ctx, pending); err != nil {
		s.log.WithError(err).WithField("events", len(pending)).Error("failed to flush relationship events")
		return
	}
	s.batch = s.batch[:0]
	s.log.Debugf("flushed %d relationship events", len(pending))
}

// Pending is the number of buffered, unflushed events.
func (s *Service) Pending() int {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return len(s.batch)
}
