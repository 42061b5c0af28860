package queue

import (
	"context"
	"log/slog"
	"time"

	"waitline/internal/estimate"
	"waitline/internal/models"
	"waitline/internal/schedule"
	"waitline/internal/store"
)

// Estimator produces a wait time in minutes. Implementations absorb
// their own failures; Estimate never errors.
type Estimator interface {
	Estimate(ctx context.Context, in estimate.Inputs) int
}

type Manager struct {
	store      store.Store
	estimator  Estimator
	throughput float64
	now        func() time.Time
	logger     *slog.Logger
}

type Options struct {
	Store      store.Store
	Estimator  Estimator
	Throughput float64
	Now        func() time.Time
	Logger     *slog.Logger
}

func NewManager(opts Options) *Manager {
	throughput := opts.Throughput
	if throughput <= 0 {
		throughput = estimate.DefaultThroughput
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:      opts.Store,
		estimator:  opts.Estimator,
		throughput: throughput,
		now:        now,
		logger:     logger,
	}
}

// BookSlot appends the user to the counter's queue and records a slot
// with the estimated wait. The enqueue and the slot write are separate
// transactions so the counter lock is not held across the estimator's
// network call; the waiting number is the snapshot taken under the lock.
func (m *Manager) BookSlot(ctx context.Context, userID, centerID, counterID string) (models.User, error) {
	now := m.now()
	res, err := m.store.EnqueueUser(ctx, store.EnqueueInput{
		UserID:    userID,
		CenterID:  centerID,
		CounterID: counterID,
		Now:       now,
	})
	if err != nil {
		return models.User{}, err
	}

	minutes := m.estimator.Estimate(ctx, estimate.Inputs{
		QueueLength: res.WaitingNumber,
		StaffCount:  res.StaffCount,
		Throughput:  m.throughput,
		IsHoliday:   schedule.IsHoliday(now),
		Weather:     schedule.PredictWeather(now),
	})

	user, err := m.store.RecordSlot(ctx, store.RecordSlotInput{
		UserID:               userID,
		CenterID:             centerID,
		CounterID:            counterID,
		WaitingNumber:        res.WaitingNumber,
		EstimatedWaitMinutes: minutes,
		Now:                  now,
	})
	if err != nil {
		return models.User{}, err
	}
	m.logger.Info("slot booked",
		"user_id", userID,
		"counter_id", counterID,
		"waiting_number", res.WaitingNumber,
		"estimated_wait_minutes", minutes)
	return user, nil
}

// RecalculateWaitTime refreshes the estimate on the user's most recent
// waiting slot for the counter. The stored waiting number is reused as
// the queue position; a single member of staff is assumed.
func (m *Manager) RecalculateWaitTime(ctx context.Context, userID, counterID string) (models.User, error) {
	slot, err := m.store.LatestWaitingSlot(ctx, userID, counterID)
	if err != nil {
		return models.User{}, err
	}

	now := m.now()
	minutes := m.estimator.Estimate(ctx, estimate.Inputs{
		QueueLength: slot.WaitingNumber,
		StaffCount:  1,
		Throughput:  m.throughput,
		IsHoliday:   schedule.IsHoliday(now),
		Weather:     schedule.PredictWeather(now),
	})

	return m.store.UpdateSlotEstimate(ctx, slot.SlotID, minutes, now)
}

// CompleteService pops the head of the counter's queue, marks that
// visitor completed, and promotes the new head to serving. The second
// return value is false when the popped queue entry had no user row.
func (m *Manager) CompleteService(ctx context.Context, centerID, counterID string) (models.User, bool, error) {
	user, found, err := m.store.CompleteService(ctx, store.CompleteServiceInput{
		CenterID:  centerID,
		CounterID: counterID,
		Now:       m.now(),
	})
	if err != nil {
		return models.User{}, false, err
	}
	if !found {
		m.logger.Warn("completed queue entry had no user record", "counter_id", counterID)
	}
	return user, found, nil
}
