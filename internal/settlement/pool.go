package settlement

import (
	"context"
	"log/slog"
	"sync"
)

type ReleaseJob struct {
	PaymentID  string
	MerchantID string
}

type Worker struct {
	ID         int
	WorkerPool chan chan ReleaseJob
	JobChannel chan ReleaseJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan ReleaseJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan ReleaseJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(context.Context, ReleaseJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "payment_id", job.PaymentID)
				processFunc(ctx, job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type PoolConfig struct {
	MaxWorkers   int
	JobQueueSize int
}

// Pool runs release jobs on a fixed set of workers. A payment that is queued
// or running is not accepted again until its job finishes.
type Pool struct {
	logger  *slog.Logger
	process func(context.Context, ReleaseJob)

	jobQueue   chan ReleaseJob
	workerPool chan chan ReleaseJob
	maxWorkers int

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewPool(config PoolConfig, process func(context.Context, ReleaseJob), logger *slog.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	p := &Pool{
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan ReleaseJob, jobQueueSize),
		workerPool: make(chan chan ReleaseJob, maxWorkers),
		inflight:   make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	p.process = func(ctx context.Context, job ReleaseJob) {
		defer p.done(job.PaymentID)
		process(ctx, job)
	}

	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			worker := NewWorker(i, p.workerPool, p.logger)
			worker.Start(p.ctx, &p.wg, p.process)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("settlement worker pool started",
			"max_workers", p.maxWorkers,
			"queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()

	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					p.logger.Info("dispatcher shutting down")
					return
				}
			case <-p.ctx.Done():
				p.logger.Info("dispatcher shutting down")
				return
			}
		case <-p.ctx.Done():
			p.logger.Info("dispatcher shutting down")
			return
		}
	}
}

// Submit queues job without blocking. It reports false when the payment is
// already queued or the queue is full.
func (p *Pool) Submit(job ReleaseJob) bool {
	p.inflightMu.Lock()
	if _, busy := p.inflight[job.PaymentID]; busy {
		p.inflightMu.Unlock()
		return false
	}
	p.inflight[job.PaymentID] = struct{}{}
	p.inflightMu.Unlock()

	select {
	case p.jobQueue <- job:
		return true
	default:
		p.done(job.PaymentID)
		p.logger.Warn("release queue full, job deferred to next scan",
			"payment_id", job.PaymentID,
			"queue_capacity", cap(p.jobQueue))
		return false
	}
}

// Idle reports whether no job is queued or running.
func (p *Pool) Idle() bool {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()
	return len(p.inflight) == 0
}

func (p *Pool) done(paymentID string) {
	p.inflightMu.Lock()
	delete(p.inflight, paymentID)
	p.inflightMu.Unlock()
}

func (p *Pool) Shutdown() {
	p.logger.Info("shutting down settlement worker pool")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("settlement worker pool shutdown complete")
}
