package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PoolConfig bounds one stage's replica set. Scaling policy is config
// driven; the orchestrator never reasons about replica counts.
type PoolConfig struct {
	Name        string
	MinReplicas int
	MaxReplicas int
	IdleTimeout time.Duration // idle replicas above min are retired after this
}

func (c *PoolConfig) normalize() {
	if c.MinReplicas < 0 {
		c.MinReplicas = 0
	}
	if c.MaxReplicas < 1 {
		c.MaxReplicas = 1
	}
	if c.MinReplicas > c.MaxReplicas {
		c.MinReplicas = c.MaxReplicas
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

type idleReplica[W any] struct {
	worker W
	since  time.Time
}

// Pool is an elastic set of stage worker replicas. Each replica accepts
// one in-flight job at a time; concurrency across jobs comes from having
// several replicas, not from interleaving inside one. Acquire scales up
// lazily to MaxReplicas and blocks when the pool is saturated; a janitor
// retires idle replicas above MinReplicas.
type Pool[W any] struct {
	cfg     PoolConfig
	factory func(replicaID string) (W, error)
	log     zerolog.Logger

	slots chan struct{}       // one token per live replica
	idle  chan idleReplica[W] // replicas waiting for work
	seq   chan int            // replica id sequence
}

func NewPool[W any](cfg PoolConfig, log zerolog.Logger, factory func(replicaID string) (W, error)) (*Pool[W], error) {
	cfg.normalize()

	p := &Pool[W]{
		cfg:     cfg,
		factory: factory,
		log:     log.With().Str("pool", cfg.Name).Logger(),
		slots:   make(chan struct{}, cfg.MaxReplicas),
		idle:    make(chan idleReplica[W], cfg.MaxReplicas),
		seq:     make(chan int, 1),
	}
	p.seq <- 1

	for i := 0; i < cfg.MinReplicas; i++ {
		w, ok, err := p.trySpawn()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		p.idle <- idleReplica[W]{worker: w, since: time.Now()}
	}

	p.log.Info().
		Int("min", cfg.MinReplicas).
		Int("max", cfg.MaxReplicas).
		Msg("stage pool ready")
	return p, nil
}

// trySpawn creates a replica if a slot is free; ok is false when the pool
// is at MaxReplicas.
func (p *Pool[W]) trySpawn() (W, bool, error) {
	var zero W
	select {
	case p.slots <- struct{}{}:
	default:
		return zero, false, nil
	}

	n := <-p.seq
	p.seq <- n + 1
	id := fmt.Sprintf("%s-%d", p.cfg.Name, n)

	w, err := p.factory(id)
	if err != nil {
		<-p.slots
		return zero, false, fmt.Errorf("pool %s: create replica: %w", p.cfg.Name, err)
	}
	p.log.Info().Str("replica", id).Msg("replica started")
	return w, true, nil
}

// Acquire returns an idle replica, creating one when the pool has not hit
// MaxReplicas yet, and blocks otherwise until a replica is released.
func (p *Pool[W]) Acquire(ctx context.Context) (W, error) {
	var zero W

	select {
	case r := <-p.idle:
		return r.worker, nil
	default:
	}

	w, ok, err := p.trySpawn()
	if err != nil {
		return zero, err
	}
	if ok {
		return w, nil
	}

	select {
	case r := <-p.idle:
		return r.worker, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Release hands a replica back for reuse.
func (p *Pool[W]) Release(w W) {
	p.idle <- idleReplica[W]{worker: w, since: time.Now()}
}

// Live reports the number of replicas currently in existence.
func (p *Pool[W]) Live() int { return len(p.slots) }

// Shrink retires idle replicas above MinReplicas that have been unused for
// IdleTimeout. Returns the number retired.
func (p *Pool[W]) Shrink(now time.Time) int {
	retired := 0
	checked := len(p.idle)
	for i := 0; i < checked; i++ {
		select {
		case r := <-p.idle:
			if now.Sub(r.since) >= p.cfg.IdleTimeout && p.Live() > p.cfg.MinReplicas {
				<-p.slots
				retired++
				continue
			}
			p.idle <- r
		default:
		}
	}
	if retired > 0 {
		p.log.Info().Int("retired", retired).Int("live", p.Live()).Msg("scaled down")
	}
	return retired
}

// Janitor runs the scale-down loop until the context ends.
func (p *Pool[W]) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Shrink(time.Now())
		}
	}
}
