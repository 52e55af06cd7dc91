package journal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/VoxelHaus/voxbridge/internal/logger"
)

// cronParser is configured for standard 5-field cron (minute hour day month weekday)
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Janitor prunes old journal entries on a cron schedule
type Janitor struct {
	store     *Store
	schedule  cron.Schedule
	retention time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewJanitor creates a janitor that deletes entries older than retention,
// running per the given cron expression
func NewJanitor(store *Store, cronExpr string, retention time.Duration) (*Janitor, error) {
	sched, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", cronExpr, err)
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Janitor{
		store:     store,
		schedule:  sched,
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start begins the cleanup loop
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.loop()
	logger.Info("Journal janitor started (retention %s)", j.retention)
}

// Stop stops the janitor and waits for an in-flight cleanup
func (j *Janitor) Stop() {
	j.cancel()
	j.wg.Wait()
	logger.Info("Journal janitor stopped")
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	for {
		next := j.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-j.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.cleanup()
		}
	}
}

func (j *Janitor) cleanup() {
	cutoff := time.Now().Add(-j.retention)
	deleted, err := j.store.DeleteOlderThan(cutoff)
	if err != nil {
		logger.Error("Journal cleanup failed: %v", err)
		return
	}
	if deleted > 0 {
		logger.Info("Journal cleanup removed %d entries older than %s", deleted, cutoff.Format(time.RFC3339))
	}
}
