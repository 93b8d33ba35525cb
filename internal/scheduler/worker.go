package scheduler

import (
	"context"
	"fmt"

	dispatchservice "urgent_dispatch_backend/internal/dispatch/service"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes scheduled dispatch sweeps and hands them to the retry
// policy. A sweep for a request that already resolved is a no-op.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	dispatch *dispatchservice.Service
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, dispatch *dispatchservice.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		dispatch: dispatch,
		log:      log,
	}

	mux.HandleFunc(TaskDispatchSweep, w.handleDispatchSweep)

	return w, nil
}

func (w *Worker) handleDispatchSweep(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDispatchSweepPayload(task)
	if err != nil {
		return err
	}

	requestID, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return err
	}

	return w.dispatch.EvaluateRetry(ctx, requestID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
