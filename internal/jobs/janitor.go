package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
)

// Sweeper is a maintenance task the janitor runs on each tick
type Sweeper struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// Janitor runs periodic cleanup: expired statuses, stale mutes, purged
// soft-deleted messages. Each tick is computed from a cron expression.
type Janitor struct {
	cron     string
	sweepers []Sweeper
}

// NewJanitor creates a janitor with the given cron schedule
func NewJanitor(cron string, sweepers ...Sweeper) (*Janitor, error) {
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid janitor cron expression: %s", cron)
	}
	return &Janitor{cron: cron, sweepers: sweepers}, nil
}

// Run blocks until the context is cancelled (call in goroutine)
func (j *Janitor) Run(ctx context.Context) {
	log.Info().Str("cron", j.cron).Int("sweepers", len(j.sweepers)).Msg("Janitor started")

	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(j.cron, now, false)
		if err != nil {
			log.Error().Err(err).Str("cron", j.cron).Msg("Failed to compute next janitor tick")
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-time.After(time.Until(next)):
			j.sweep(ctx)
		case <-ctx.Done():
			log.Info().Msg("Janitor stopping")
			return
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	for _, s := range j.sweepers {
		n, err := s.Run(ctx)
		if err != nil {
			log.Error().Err(err).Str("sweeper", s.Name).Msg("Janitor sweep failed")
			continue
		}
		if n > 0 {
			log.Info().Str("sweeper", s.Name).Int64("removed", n).Msg("Janitor sweep done")
		}
	}
}
