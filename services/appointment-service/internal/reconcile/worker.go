package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

// RunRecorder persists a summary of each periodic run. Optional.
type RunRecorder interface {
	Record(ctx context.Context, run Run) error
}

type Run struct {
	Result
	StartedAt  time.Time
	FinishedAt time.Time
	LastError  string
}

type Worker struct {
	reconciler *Reconciler
	recorder   RunRecorder
	logger     *slog.Logger
	interval   time.Duration
	action     model.Status
}

type WorkerConfig struct {
	Interval time.Duration
	Action   model.Status
}

func NewWorker(reconciler *Reconciler, recorder RunRecorder, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Action == "" {
		cfg.Action = model.StatusCompleted
	}
	return &Worker{
		reconciler: reconciler,
		recorder:   recorder,
		logger:     logger,
		interval:   cfg.Interval,
		action:     cfg.Action,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	run := Run{StartedAt: time.Now().UTC()}
	res, err := w.reconciler.Reconcile(ctx, w.action)
	run.Result = res
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.LastError = err.Error()
		w.logger.Error("reconcile run failed", "err", err, "transitioned", res.Transitioned)
	}
	if w.recorder == nil || (res.Transitioned == 0 && len(res.Failures) == 0) {
		return
	}
	if err := w.recorder.Record(ctx, run); err != nil {
		w.logger.Error("reconcile run not recorded", "err", err)
	}
}
