package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"legal-backend/internal/shared/metrics"
)

// Admission bounds how many pipelines execute stages at once. Waiters are
// served in arrival order.
type Admission struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	waiting  atomic.Int64

	closed    context.Context
	closeFunc context.CancelFunc
}

// Slot is one admitted run. Release returns it exactly once.
type Slot struct {
	a    *Admission
	once sync.Once
}

// NewAdmission creates a controller with the given capacity, at least 1.
func NewAdmission(capacity int) *Admission {
	if capacity < 1 {
		capacity = 1
	}
	closed, closeFunc := context.WithCancel(context.Background())
	return &Admission{
		sem:       semaphore.NewWeighted(int64(capacity)),
		capacity:  int64(capacity),
		closed:    closed,
		closeFunc: closeFunc,
	}
}

// Acquire blocks until a slot is free, ctx is done or the controller is closed.
func (a *Admission) Acquire(ctx context.Context) (*Slot, error) {
	if a.closed.Err() != nil {
		return nil, ErrAdmissionClosed
	}

	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(a.closed, cancel)
	defer stop()

	a.waiting.Add(1)
	a.publish()
	err := a.sem.Acquire(acquireCtx, 1)
	a.waiting.Add(-1)
	if err != nil {
		a.publish()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, ErrAdmissionClosed
	}
	if a.closed.Err() != nil {
		a.sem.Release(1)
		a.publish()
		return nil, ErrAdmissionClosed
	}

	a.inUse.Add(1)
	a.publish()
	return &Slot{a: a}, nil
}

// Close fails every pending and future Acquire. Slots already handed out
// stay valid until released.
func (a *Admission) Close() {
	a.closeFunc()
}

func (a *Admission) Capacity() int { return int(a.capacity) }

func (a *Admission) InUse() int { return int(a.inUse.Load()) }

func (a *Admission) Waiting() int { return int(a.waiting.Load()) }

func (a *Admission) publish() {
	metrics.SetAdmission(a.InUse(), a.Waiting())
}

// Release frees the slot. Calls after the first are no-ops.
func (s *Slot) Release() {
	if s == nil || s.a == nil {
		return
	}
	s.once.Do(func() {
		s.a.inUse.Add(-1)
		s.a.sem.Release(1)
		s.a.publish()
	})
}
