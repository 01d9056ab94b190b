package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"forgeworks/macrod/internal/config"
	"forgeworks/macrod/internal/downstream"
)

// Orchestrator owns the batch queue, the worker pool, and the job store.
type Orchestrator struct {
	cfg        *config.Config
	log        *slog.Logger
	expander   *Expander
	downstream *downstream.Client
	stats      *Stats
	metrics    *Metrics

	jobs  *JobStore
	queue chan *Job

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewOrchestrator(cfg *config.Config, log *slog.Logger, expander *Expander, ds *downstream.Client, stats *Stats, metrics *Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		log:        log,
		expander:   expander,
		downstream: ds,
		stats:      stats,
		metrics:    metrics,
		jobs:       NewJobStore(cfg.JobTTL),
		queue:      make(chan *Job, cfg.MaxQueueSize),
	}
}

// Start launches the worker pool and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go o.runWorker(ctx, i)
	}

	o.wg.Add(1)
	go o.runCleanup(ctx)
}

// Stop signals workers to finish and waits for them.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a batch job for the given document paths. It fails fast
// when the queue is full.
func (o *Orchestrator) Submit(paths []string) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Paths:     paths,
		Status:    StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Progress:  Progress{TotalDocs: len(paths)},
	}

	select {
	case o.queue <- job:
		o.jobs.Put(job)
		o.log.Info("job queued", "job_id", job.ID, "docs", len(paths))
		return job, nil
	default:
		return nil, fmt.Errorf("queue full (%d jobs waiting)", len(o.queue))
	}
}

// GetJob returns the job with the given ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the orchestrator's stats collector.
func (o *Orchestrator) Stats() *Stats {
	return o.stats
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	log := o.log.With("worker", id)
	w := &worker{
		expander:   o.expander,
		downstream: o.downstream,
		metrics:    o.metrics,
		maxPublish: o.cfg.MaxConcurrentPublish,
		log:        log,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-o.queue:
			w.process(ctx, job)
		}
	}
}

func (o *Orchestrator) runCleanup(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.jobs.Cleanup()
		}
	}
}
