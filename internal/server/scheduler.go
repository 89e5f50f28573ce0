package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

const schedulerLockKey = "sched:lock:run"

// LastRunSource reports when the pipeline last ran.
type LastRunSource interface {
	LastRunStarted(ctx context.Context) (*time.Time, error)
}

// Scheduler fires pipeline runs on the configured cron spec. A redis SetNX
// lock keeps multiple replicas from running the same slot twice.
type Scheduler struct {
	Pipeline Runner
	Runs     LastRunSource
	Rdb      *redis.Client
	Cron     string
	Stop     chan struct{}
	Logger   *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	last, err := s.Runs.LastRunStarted(ctx)
	if err != nil {
		s.Logger.Printf("cannot read last run time: %v", err)
		return
	}
	if !isDue(s.Cron, last, time.Now()) {
		return
	}

	if s.Rdb != nil {
		ok, err := s.Rdb.SetNX(ctx, schedulerLockKey, "1", 2*time.Minute).Result()
		if err != nil {
			s.Logger.Printf("scheduler lock unavailable: %v", err)
			return
		}
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, schedulerLockKey)
	}

	s.Logger.Println("schedule due, starting run")
	res := s.Pipeline.Run(ctx, "schedule")
	s.Logger.Printf("scheduled run finished: %s", res.Status)
}

// isDue determines if the cron spec should fire given the last run time.
// Supports "@daily", "@hourly" and standard cron expressions.
func isDue(cronSpec string, last *time.Time, now time.Time) bool {
	switch cronSpec {
	case "", "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
