package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/deepresearch/internal/runner"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

// Scheduler fires recurring runs for topics that carry a cron schedule.
// Redis SetNX locks keep multiple server replicas from double-firing.
type Scheduler struct {
	Store  *store.Store
	Runner *runner.Runner
	Rdb    *redis.Client
	Stop   chan struct{}
	Logger *log.Logger
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Hour)
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
	topics, err := s.Store.ListAllTopics(ctx)
	if err != nil {
		s.Logger.Printf("list topics: %v", err)
		return
	}
	for _, t := range topics {
		if t.ScheduleCron == "" {
			continue
		}
		last, _ := s.Store.LatestRunTime(ctx, t.ID)
		if !isDue(t.ScheduleCron, last) {
			continue
		}

		// distributed lock to avoid duplicate runs
		if s.Rdb != nil {
			lockKey := "sched:lock:" + t.ID
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		topicID := t.ID
		runID, err := s.Store.CreateRun(ctx, t.UserID, &topicID, t.Query, t.Mode)
		if err != nil {
			s.Logger.Printf("create scheduled run for topic %s: %v", t.ID, err)
			continue
		}

		go func(topic store.Topic, runID string) {
			// jitter to avoid stampedes
			time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
			runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			if _, err := s.Runner.Execute(runCtx, runID, topic.Query, topic.Mode); err != nil {
				s.Logger.Printf("scheduled run %s (topic %s): %v", runID, topic.ID, err)
			}
		}(t, runID)
	}
}

// isDue determines if a topic with cronSpec should run now based on last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
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
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			// If never run, due now
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
