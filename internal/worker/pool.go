package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline-service/internal/service"
)

// Pool claims job IDs from the queue and fans them out to a fixed number
// of processing goroutines. Each goroutine runs one job at a time; jobs
// across goroutines run concurrently.
type Pool struct {
	queue      service.Queue
	processor  *Processor
	workers    int
	claimDelay time.Duration
	log        zerolog.Logger
}

func NewPool(queue service.Queue, processor *Processor, workers int, log zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		queue:      queue,
		processor:  processor,
		workers:    workers,
		claimDelay: 5 * time.Second,
		log:        log.With().Str("component", "worker_pool").Logger(),
	}
}

func (p *Pool) Run(ctx context.Context) {
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")

	jobCh := make(chan string)

	for i := 0; i < p.workers; i++ {
		go func(n int) {
			log := p.log.With().Int("worker", n).Logger()
			for jobID := range jobCh {
				if err := p.processor.Process(ctx, jobID); err != nil {
					log.Error().Err(err).Str("job_id", jobID).Msg("process job failed")
				}

				// Ack regardless of outcome: the job record already holds
				// the terminal state. If Process crashed before persisting
				// one, the stale-claim reaper requeues the ID.
				if err := p.queue.Ack(ctx, jobID); err != nil {
					log.Error().Err(err).Str("job_id", jobID).Msg("ack failed")
				}
			}
		}(i + 1)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobCh)
			p.log.Info().Msg("worker pool stopped")
			return
		default:
			jobID, err := p.queue.ClaimBlocking(ctx, p.claimDelay)
			if err != nil {
				// timeout, redis.Nil or ctx cancel
				continue
			}
			select {
			case jobCh <- jobID:
			case <-ctx.Done():
				close(jobCh)
				return
			}
		}
	}
}
