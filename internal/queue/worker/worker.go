package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/storefront/internal/jobs"
	"github.com/geocoder89/storefront/internal/notifications"
	"github.com/geocoder89/storefront/internal/observability"
)

// Queue is the delayed job store the worker drains.
type Queue interface {
	ClaimDue(ctx context.Context, limit int) ([]jobs.Job, error)
	Schedule(ctx context.Context, j jobs.Job) error
	Depth(ctx context.Context) (int64, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	SendTimeout   time.Duration
}

// Worker retries transactional e-mails parked by the API.
type Worker struct {
	cfg      Config
	queue    Queue
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
	backoff  Backoff
	now      func() time.Time

	readyMu sync.RWMutex
	ready   bool

	wg  sync.WaitGroup
	sem chan struct{}
}

func New(cfg Config, queue Queue, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &Worker{
		cfg:      cfg,
		queue:    queue,
		notifier: notifier,
		prom:     prom,
		log:      log.With("worker_id", cfg.WorkerID),
		backoff:  DefaultBackoff,
		now:      time.Now,
		sem:      make(chan struct{}, cfg.Concurrency),
	}
}

// Run polls until ctx is cancelled, then waits up to ShutdownGrace for
// in-flight sends.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	w.log.InfoContext(ctx, "worker started", "poll_interval", w.cfg.PollInterval.String(), "concurrency", w.cfg.Concurrency)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setReady(false)
			w.log.Info("worker received shutdown signal")
			return w.drain()

		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil {
				w.log.ErrorContext(ctx, "claim failed", "err", err)
			}
		}
	}
}

// ProcessBatch claims as many due jobs as there are free slots and starts
// them. It returns the number started.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	free := cap(w.sem) - len(w.sem)
	if free <= 0 {
		return 0, nil
	}

	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	claimed, err := w.queue.ClaimDue(claimCtx, free)
	cancel()

	if w.prom != nil {
		depthCtx, cancel := context.WithTimeout(ctx, time.Second)
		if depth, derr := w.queue.Depth(depthCtx); derr == nil {
			w.prom.QueueDepth.Set(float64(depth))
		}
		cancel()
	}

	for _, j := range claimed {
		w.sem <- struct{}{}
		w.wg.Add(1)

		// a claimed job has left the queue; finish it even during shutdown
		go func(j jobs.Job) {
			defer func() {
				<-w.sem
				w.wg.Done()
			}()
			w.handle(context.WithoutCancel(ctx), j)
		}(j)
	}

	return len(claimed), err
}

// Wait blocks until every started job has finished.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) handle(ctx context.Context, j jobs.Job) {
	start := w.now()

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	err := w.execute(ctx, j)

	result := "done"
	switch {
	case err == nil:
		w.log.InfoContext(ctx, "job done", "job_id", j.ID, "type", j.Type, "attempt", j.Attempts+1)
	case isPermanent(err):
		result = "dropped"
		w.log.ErrorContext(ctx, "job dropped: bad payload", "job_id", j.ID, "type", j.Type, "err", err)
	default:
		result = w.handleFailure(ctx, j, err)
	}

	if w.prom != nil {
		w.prom.ObserveJob(string(j.Type), result, w.now().Sub(start))
	}
}

func (w *Worker) execute(ctx context.Context, j jobs.Job) error {
	decoded, err := jobs.DecodePayload(j)
	if err != nil {
		return err
	}

	if err := jobs.ValidatePayload(j.Type, decoded); err != nil {
		return err
	}

	p := decoded.(jobs.SendEmailPayload)

	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	defer cancel()

	return w.notifier.Send(sendCtx, notifications.Message{To: p.To, Subject: p.Subject, HTML: p.HTML})
}

// handleFailure reschedules with backoff or drops the job once its attempts
// are used up.
func (w *Worker) handleFailure(ctx context.Context, j jobs.Job, cause error) string {
	delay := w.backoff.Delay(j.Attempts)
	next := j.Retry(cause, w.now().Add(delay))

	if next.Exhausted() {
		w.log.ErrorContext(ctx, "job dropped: attempts exhausted",
			"job_id", j.ID, "type", j.Type, "attempts", next.Attempts, "err", cause)
		return "dropped"
	}

	schedCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := w.queue.Schedule(schedCtx, next); err != nil {
		w.log.ErrorContext(ctx, "job lost: reschedule failed",
			"job_id", j.ID, "type", j.Type, "err", fmt.Errorf("%w (after send error: %v)", err, cause))
		return "dropped"
	}

	w.log.WarnContext(ctx, "job retry scheduled",
		"job_id", j.ID, "type", j.Type, "attempt", next.Attempts, "retry_in", delay.String(), "err", cause)

	return "retry"
}

func (w *Worker) drain() error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("worker drained")
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		return fmt.Errorf("worker shutdown grace %s exceeded", w.cfg.ShutdownGrace)
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func isPermanent(err error) bool {
	return errors.Is(err, jobs.ErrInvalidJobPayload) ||
		errors.Is(err, jobs.ErrInvalidJobType) ||
		errors.Is(err, jobs.ErrPayloadTypeMismatch)
}
