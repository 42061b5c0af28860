package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"

	"waitline/internal/models"
	"waitline/internal/store"
)

type fakeRecalculator struct {
	calls []string
	err   error
}

func (f *fakeRecalculator) RecalculateWaitTime(ctx context.Context, userID, counterID string) (models.User, error) {
	f.calls = append(f.calls, userID+"/"+counterID)
	return models.User{UserID: userID}, f.err
}

type fakeSlotLister struct {
	store.Store
	refs []store.SlotRef
}

func (f *fakeSlotLister) ListWaitingSlots(ctx context.Context, limit int) ([]store.SlotRef, error) {
	if limit < len(f.refs) {
		return f.refs[:limit], nil
	}
	return f.refs, nil
}

func testWorker(queue Recalculator, st store.Store) *Worker {
	return New(Options{
		Queue:  queue,
		Store:  st,
		Batch:  10,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSlotRefreshTaskRoundTrip(t *testing.T) {
	ref := store.SlotRef{SlotID: "slot-1", UserID: "user-1", CounterID: "clinic-counter-1"}
	task, err := NewSlotRefreshTask(ref)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TypeSlotRefresh {
		t.Fatalf("type=%q, want %q", task.Type(), TypeSlotRefresh)
	}

	var decoded store.SlotRef
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded != ref {
		t.Fatalf("decoded=%+v, want %+v", decoded, ref)
	}
}

func TestHandleSlotRefresh(t *testing.T) {
	rec := &fakeRecalculator{}
	w := testWorker(rec, &fakeSlotLister{})

	task, err := NewSlotRefreshTask(store.SlotRef{SlotID: "s", UserID: "user-1", CounterID: "c-1"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := w.handleSlotRefresh(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "user-1/c-1" {
		t.Fatalf("calls=%v", rec.calls)
	}
}

func TestHandleSlotRefreshIgnoresCompletedSlot(t *testing.T) {
	rec := &fakeRecalculator{err: store.ErrSlotNotFound}
	w := testWorker(rec, &fakeSlotLister{})

	task, _ := NewSlotRefreshTask(store.SlotRef{UserID: "user-1", CounterID: "c-1"})
	if err := w.handleSlotRefresh(context.Background(), task); err != nil {
		t.Fatalf("expected slot-gone to be absorbed, got %v", err)
	}

	rec.err = errors.New("backend down")
	if err := w.handleSlotRefresh(context.Background(), task); err == nil {
		t.Fatal("expected error to propagate")
	}
}

func TestHandleEstimateSweep(t *testing.T) {
	st := &fakeSlotLister{refs: []store.SlotRef{
		{SlotID: "s1", UserID: "u1", CounterID: "c-1"},
		{SlotID: "s2", UserID: "u2", CounterID: "c-1"},
	}}
	w := testWorker(&fakeRecalculator{}, st)

	var enqueued []*asynq.Task
	w.enqueue = func(ctx context.Context, task *asynq.Task) error {
		enqueued = append(enqueued, task)
		return nil
	}

	if err := w.handleEstimateSweep(context.Background(), NewEstimateSweepTask()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(enqueued) != 2 {
		t.Fatalf("enqueued=%d, want 2", len(enqueued))
	}
	for _, task := range enqueued {
		if task.Type() != TypeSlotRefresh {
			t.Fatalf("task type=%q", task.Type())
		}
	}
}
