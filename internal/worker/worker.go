package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"waitline/internal/models"
	"waitline/internal/store"
)

const (
	TypeEstimateSweep = "estimate:sweep"
	TypeSlotRefresh   = "slot:refresh"
)

// Recalculator re-estimates a user's waiting slot, implemented by
// queue.Manager.
type Recalculator interface {
	RecalculateWaitTime(ctx context.Context, userID, counterID string) (models.User, error)
}

type Worker struct {
	queue     Recalculator
	store     store.Store
	redisAddr string
	cronSpec  string
	batch     int
	logger    *slog.Logger
	enqueue   func(ctx context.Context, task *asynq.Task) error
}

type Options struct {
	Queue     Recalculator
	Store     store.Store
	RedisAddr string
	CronSpec  string
	Batch     int
	Logger    *slog.Logger
}

func New(opts Options) *Worker {
	batch := opts.Batch
	if batch <= 0 {
		batch = 200
	}
	cronSpec := opts.CronSpec
	if cronSpec == "" {
		cronSpec = "*/5 * * * *"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:     opts.Queue,
		store:     opts.Store,
		redisAddr: opts.RedisAddr,
		cronSpec:  cronSpec,
		batch:     batch,
		logger:    logger,
	}
}

func NewEstimateSweepTask() *asynq.Task {
	return asynq.NewTask(TypeEstimateSweep, nil)
}

func NewSlotRefreshTask(ref store.SlotRef) (*asynq.Task, error) {
	payload, err := json.Marshal(ref)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSlotRefresh, payload), nil
}

// Run serves the sweep schedule and the refresh tasks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	redisOpt := asynq.RedisClientOpt{Addr: w.redisAddr}

	client := asynq.NewClient(redisOpt)
	defer client.Close()
	w.enqueue = func(ctx context.Context, task *asynq.Task) error {
		_, err := client.EnqueueContext(ctx, task)
		return err
	}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEstimateSweep, w.handleEstimateSweep)
	mux.HandleFunc(TypeSlotRefresh, w.handleSlotRefresh)

	srv := asynq.NewServer(redisOpt, asynq.Config{Concurrency: 5})
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register(w.cronSpec, NewEstimateSweepTask()); err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Run(mux) }()
	go func() { errCh <- scheduler.Run() }()

	w.logger.Info("estimate refresh worker started", "cron", w.cronSpec, "batch", w.batch)

	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	scheduler.Shutdown()
	srv.Shutdown()
	return err
}

func (w *Worker) handleEstimateSweep(ctx context.Context, task *asynq.Task) error {
	refs, err := w.store.ListWaitingSlots(ctx, w.batch)
	if err != nil {
		return err
	}
	enqueued := 0
	for _, ref := range refs {
		refresh, err := NewSlotRefreshTask(ref)
		if err != nil {
			return err
		}
		if err := w.enqueue(ctx, refresh); err != nil {
			return err
		}
		enqueued++
	}
	w.logger.Info("estimate sweep enqueued refreshes", "count", enqueued)
	return nil
}

func (w *Worker) handleSlotRefresh(ctx context.Context, task *asynq.Task) error {
	var ref store.SlotRef
	if err := json.Unmarshal(task.Payload(), &ref); err != nil {
		return err
	}
	if _, err := w.queue.RecalculateWaitTime(ctx, ref.UserID, ref.CounterID); err != nil {
		// The slot can complete between sweep and refresh.
		if errors.Is(err, store.ErrSlotNotFound) {
			return nil
		}
		return err
	}
	return nil
}
