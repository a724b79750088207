package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes expired entries and reports how many went away.
type Sweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// SweepJob bounds how long an expired pairing record can linger to one interval.
type SweepJob struct {
	registry Sweeper
	interval time.Duration
	done     chan struct{}
}

func NewSweepJob(registry Sweeper, interval time.Duration) *SweepJob {
	return &SweepJob{
		registry: registry,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	count, err := j.registry.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to sweep pairing codes")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("swept expired pairing codes")
	}
}
