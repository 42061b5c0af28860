package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"waitline/internal/estimate"
	"waitline/internal/models"
	"waitline/internal/store"
)

type fakeStore struct {
	store.Store

	enqueueFn    func(ctx context.Context, input store.EnqueueInput) (store.EnqueueResult, error)
	recordSlotFn func(ctx context.Context, input store.RecordSlotInput) (models.User, error)
	latestSlotFn func(ctx context.Context, userID, counterID string) (models.Slot, error)
	updateSlotFn func(ctx context.Context, slotID string, minutes int, now time.Time) (models.User, error)
	completeFn   func(ctx context.Context, input store.CompleteServiceInput) (models.User, bool, error)
}

func (f *fakeStore) EnqueueUser(ctx context.Context, input store.EnqueueInput) (store.EnqueueResult, error) {
	return f.enqueueFn(ctx, input)
}

func (f *fakeStore) RecordSlot(ctx context.Context, input store.RecordSlotInput) (models.User, error) {
	return f.recordSlotFn(ctx, input)
}

func (f *fakeStore) LatestWaitingSlot(ctx context.Context, userID, counterID string) (models.Slot, error) {
	return f.latestSlotFn(ctx, userID, counterID)
}

func (f *fakeStore) UpdateSlotEstimate(ctx context.Context, slotID string, minutes int, now time.Time) (models.User, error) {
	return f.updateSlotFn(ctx, slotID, minutes, now)
}

func (f *fakeStore) CompleteService(ctx context.Context, input store.CompleteServiceInput) (models.User, bool, error) {
	return f.completeFn(ctx, input)
}

type fixedEstimator struct {
	minutes int
	last    estimate.Inputs
}

func (e *fixedEstimator) Estimate(ctx context.Context, in estimate.Inputs) int {
	e.last = in
	return e.minutes
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Monday, no holiday, June means clear weather.
var testNow = time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)

func newTestManager(st store.Store, est Estimator) *Manager {
	return NewManager(Options{
		Store:      st,
		Estimator:  est,
		Throughput: 4.2,
		Now:        func() time.Time { return testNow },
		Logger:     testLogger(),
	})
}

func TestBookSlot(t *testing.T) {
	var recorded store.RecordSlotInput
	st := &fakeStore{
		enqueueFn: func(ctx context.Context, input store.EnqueueInput) (store.EnqueueResult, error) {
			if input.UserID != "user-1" || input.CenterID != "center-1" || input.CounterID != "c-1" {
				t.Fatalf("unexpected enqueue input: %+v", input)
			}
			return store.EnqueueResult{WaitingNumber: 3, StaffCount: 2}, nil
		},
		recordSlotFn: func(ctx context.Context, input store.RecordSlotInput) (models.User, error) {
			recorded = input
			return models.User{UserID: "user-1", Status: models.StatusWaiting}, nil
		},
	}
	est := &fixedEstimator{minutes: 9}

	user, err := newTestManager(st, est).BookSlot(context.Background(), "user-1", "center-1", "c-1")
	if err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	if user.Status != models.StatusWaiting {
		t.Fatalf("user status=%q, want waiting", user.Status)
	}
	if recorded.WaitingNumber != 3 || recorded.EstimatedWaitMinutes != 9 {
		t.Fatalf("recorded slot=%+v, want waiting number 3 estimate 9", recorded)
	}
	if est.last.QueueLength != 3 || est.last.StaffCount != 2 {
		t.Fatalf("estimator inputs=%+v, want queue 3 staff 2", est.last)
	}
	if est.last.IsHoliday || est.last.Weather != "clear" {
		t.Fatalf("calendar inputs=%+v, want weekday clear", est.last)
	}
}

func TestBookSlotEnqueueErrors(t *testing.T) {
	for _, sentinel := range []error{store.ErrUserNotFound, store.ErrCenterNotFound, store.ErrCounterNotFound, store.ErrAlreadyQueued} {
		st := &fakeStore{
			enqueueFn: func(ctx context.Context, input store.EnqueueInput) (store.EnqueueResult, error) {
				return store.EnqueueResult{}, sentinel
			},
			recordSlotFn: func(ctx context.Context, input store.RecordSlotInput) (models.User, error) {
				t.Fatal("RecordSlot called after failed enqueue")
				return models.User{}, nil
			},
		}
		_, err := newTestManager(st, &fixedEstimator{}).BookSlot(context.Background(), "u", "c", "ctr")
		if !errors.Is(err, sentinel) {
			t.Fatalf("BookSlot error=%v, want %v", err, sentinel)
		}
	}
}

func TestRecalculateWaitTime(t *testing.T) {
	var updatedSlot string
	var updatedMinutes int
	st := &fakeStore{
		latestSlotFn: func(ctx context.Context, userID, counterID string) (models.Slot, error) {
			return models.Slot{SlotID: "slot-9", WaitingNumber: 6, Status: models.StatusWaiting}, nil
		},
		updateSlotFn: func(ctx context.Context, slotID string, minutes int, now time.Time) (models.User, error) {
			updatedSlot, updatedMinutes = slotID, minutes
			return models.User{UserID: "user-1"}, nil
		},
	}
	est := &fixedEstimator{minutes: 5}

	if _, err := newTestManager(st, est).RecalculateWaitTime(context.Background(), "user-1", "c-1"); err != nil {
		t.Fatalf("RecalculateWaitTime: %v", err)
	}
	if updatedSlot != "slot-9" || updatedMinutes != 5 {
		t.Fatalf("updated %q with %d, want slot-9 with 5", updatedSlot, updatedMinutes)
	}
	if est.last.QueueLength != 6 || est.last.StaffCount != 1 {
		t.Fatalf("estimator inputs=%+v, want queue 6 staff 1", est.last)
	}
}

func TestRecalculateWaitTimeNoSlot(t *testing.T) {
	st := &fakeStore{
		latestSlotFn: func(ctx context.Context, userID, counterID string) (models.Slot, error) {
			return models.Slot{}, store.ErrSlotNotFound
		},
	}
	_, err := newTestManager(st, &fixedEstimator{}).RecalculateWaitTime(context.Background(), "user-1", "c-1")
	if !errors.Is(err, store.ErrSlotNotFound) {
		t.Fatalf("error=%v, want ErrSlotNotFound", err)
	}
}

func TestCompleteService(t *testing.T) {
	st := &fakeStore{
		completeFn: func(ctx context.Context, input store.CompleteServiceInput) (models.User, bool, error) {
			if input.CenterID != "center-1" || input.CounterID != "c-1" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return models.User{UserID: "user-1", Status: models.StatusCompleted}, true, nil
		},
	}
	user, found, err := newTestManager(st, &fixedEstimator{}).CompleteService(context.Background(), "center-1", "c-1")
	if err != nil || !found {
		t.Fatalf("CompleteService=%v found=%v", err, found)
	}
	if user.Status != models.StatusCompleted {
		t.Fatalf("status=%q, want completed", user.Status)
	}
}

func TestCompleteServiceEmptyQueue(t *testing.T) {
	st := &fakeStore{
		completeFn: func(ctx context.Context, input store.CompleteServiceInput) (models.User, bool, error) {
			return models.User{}, false, store.ErrEmptyQueue
		},
	}
	_, _, err := newTestManager(st, &fixedEstimator{}).CompleteService(context.Background(), "center-1", "c-1")
	if !errors.Is(err, store.ErrEmptyQueue) {
		t.Fatalf("error=%v, want ErrEmptyQueue", err)
	}
}
