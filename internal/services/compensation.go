package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/config"
)

// ReconciliationEntry records a compensating release that could not be
// applied and must be replayed or resolved by an operator.
type ReconciliationEntry struct {
	Token    ReservationToken `json:"token"`
	Reason   string           `json:"reason"`
	Attempts int              `json:"attempts"`
	FailedAt time.Time        `json:"failedAt"`
}

type ReconciliationQueue interface {
	Push(ctx context.Context, entry ReconciliationEntry) error
	// Pop returns nil when the queue is empty.
	Pop(ctx context.Context) (*ReconciliationEntry, error)
	Len(ctx context.Context) (int64, error)
}

// Compensator gives back capacity taken by a reservation whose booking could
// not be persisted. Releases are retried with exponential backoff behind a
// circuit breaker and queued for reconciliation when retries run out.
type Compensator struct {
	ledger      *Ledger
	queue       ReconciliationQueue
	breaker     *gobreaker.CircuitBreaker
	maxAttempts int
	baseDelay   time.Duration
	log         *logrus.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewCompensator(ledger *Ledger, queue ReconciliationQueue, cfg config.Compensation, log *logrus.Logger) *Compensator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Compensator{
		ledger:      ledger,
		queue:       queue,
		breaker:     newReleaseBreaker("ledger-release", log),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		log:         log,
		sleep:       sleepContext,
	}
}

func newReleaseBreaker(name string, log *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 2
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).
				Warn("Circuit breaker state changed")
		},
		// Business errors mean the store answered; only store failures trip.
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.KindOf(err) != apperrors.KindStore
		},
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Compensate releases the capacity behind token. cause is the failure that
// made the release necessary and is kept on the reconciliation entry.
func (c *Compensator) Compensate(ctx context.Context, token ReservationToken, cause error) error {
	// The release must outlive the request that triggered it.
	ctx = context.WithoutCancel(ctx)
	entry := c.log.WithFields(logrus.Fields{
		"reservation_id": token.ID,
		"kind":           token.Kind,
		"trip_id":        token.TripID,
		"listing_id":     token.ListingID,
		"booking_id":     token.BookingID,
	})

	attempts, err := c.release(ctx, token, entry)
	if err == nil {
		entry.WithField("attempts", attempts).Info("Compensating release applied")
		return nil
	}

	reason := err.Error()
	if cause != nil {
		reason = fmt.Sprintf("%v (after: %v)", err, cause)
	}
	record := ReconciliationEntry{Token: token, Reason: reason, Attempts: attempts, FailedAt: time.Now().UTC()}
	if qerr := c.queue.Push(ctx, record); qerr != nil {
		entry.WithError(qerr).WithField("release_error", err.Error()).
			Error("Compensating release lost, manual reconciliation required")
		return errors.Join(err, qerr)
	}
	entry.WithError(err).WithField("attempts", attempts).Error("Compensating release failed, queued for reconciliation")
	return err
}

func (c *Compensator) release(ctx context.Context, token ReservationToken, log *logrus.Entry) (int, error) {
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.undo(ctx, token)
		})
		if err == nil {
			return attempt, nil
		}
		if !retryableRelease(err) {
			return attempt, err
		}
		log.WithError(err).WithField("attempt", attempt).Warn("Compensating release attempt failed")
		if attempt < c.maxAttempts {
			if serr := c.sleep(ctx, c.baseDelay<<(attempt-1)); serr != nil {
				return attempt, serr
			}
		}
	}
	return c.maxAttempts, err
}

func retryableRelease(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	return apperrors.KindOf(err) == apperrors.KindStore
}

func (c *Compensator) undo(ctx context.Context, token ReservationToken) error {
	switch token.Kind {
	case ReservationSeat:
		return c.ledger.Release(ctx, token.TripID, token.Seats)
	case ReservationVehicle:
		return c.ledger.ReleaseVehicle(ctx, token.ListingID, token.BookingID)
	}
	return apperrors.Validation("kind", fmt.Sprintf("unknown reservation kind %q", token.Kind))
}

// ReplayPending retries every queued release once. Entries that fail again
// go back on the queue. It returns how many releases were applied.
func (c *Compensator) ReplayPending(ctx context.Context) (int, error) {
	pending, err := c.queue.Len(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for i := int64(0); i < pending; i++ {
		record, err := c.queue.Pop(ctx)
		if err != nil {
			return applied, err
		}
		if record == nil {
			break
		}

		if err := c.undo(ctx, record.Token); err != nil {
			c.log.WithError(err).WithField("reservation_id", record.Token.ID).Warn("Replayed release failed")
			if !retryableRelease(err) {
				continue
			}
			record.Attempts++
			record.Reason = err.Error()
			record.FailedAt = time.Now().UTC()
			if err := c.queue.Push(ctx, *record); err != nil {
				return applied, err
			}
			continue
		}
		applied++
	}

	if pending > 0 {
		c.log.WithFields(logrus.Fields{"pending": pending, "applied": applied}).Info("Reconciliation replay finished")
	}
	return applied, nil
}

// MemoryReconciliationQueue keeps entries in process. It backs the memory
// store and tests.
type MemoryReconciliationQueue struct {
	mu      sync.Mutex
	entries []ReconciliationEntry
}

func NewMemoryReconciliationQueue() *MemoryReconciliationQueue {
	return &MemoryReconciliationQueue{}
}

func (q *MemoryReconciliationQueue) Push(_ context.Context, entry ReconciliationEntry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return nil
}

func (q *MemoryReconciliationQueue) Pop(_ context.Context) (*ReconciliationEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil, nil
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return &entry, nil
}

func (q *MemoryReconciliationQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}
