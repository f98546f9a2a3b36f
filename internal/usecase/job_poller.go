package usecase

import (
	"context"
	"sync"
	"time"

	"TradeDeck/internal/domain/models"
	drepo "TradeDeck/internal/domain/repository"
	applogger "TradeDeck/pkg/logger"
)

// DefaultPollInterval is how often a search job is polled until it
// reaches a terminal status.
const DefaultPollInterval = 2 * time.Second

type polledJob struct {
	cancel context.CancelFunc
	last   *models.SearchJob
}

// JobPoller tracks strategy search jobs as explicit cancellable repeating
// tasks with a terminal-state predicate, not fire-and-forget timers. Every
// task dies with its context, so teardown on session close is structural,
// not best-effort.
type JobPoller struct {
	brokerage drepo.Brokerage
	logger    *applogger.Logger
	interval  time.Duration

	mu   sync.Mutex
	jobs map[string]*polledJob
}

// NewJobPoller creates a JobPoller. interval <= 0 uses the 2s default.
func NewJobPoller(brokerage drepo.Brokerage, logger *applogger.Logger, interval time.Duration) *JobPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &JobPoller{
		brokerage: brokerage,
		logger:    logger,
		interval:  interval,
		jobs:      make(map[string]*polledJob),
	}
}

// Track starts polling the job if it is not already tracked and returns
// the latest known snapshot (nil until the first poll resolves). Joining
// an already-tracked job never starts a second ticker.
func (p *JobPoller) Track(ctx context.Context, jobID string) *models.SearchJob {
	p.mu.Lock()
	defer p.mu.Unlock()

	if j, ok := p.jobs[jobID]; ok {
		return j.last
	}

	jobCtx, cancel := context.WithCancel(ctx)
	j := &polledJob{cancel: cancel}
	p.jobs[jobID] = j
	go p.run(jobCtx, jobID)
	return nil
}

// Status returns the latest snapshot for a tracked job, or nil.
func (p *JobPoller) Status(jobID string) *models.SearchJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[jobID]; ok {
		return j.last
	}
	return nil
}

// Cancel stops polling one job.
func (p *JobPoller) Cancel(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if j, ok := p.jobs[jobID]; ok {
		j.cancel()
		delete(p.jobs, jobID)
	}
}

// Close stops every poller.
func (p *JobPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, j := range p.jobs {
		j.cancel()
		delete(p.jobs, id)
	}
}

func (p *JobPoller) run(ctx context.Context, jobID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		job, err := p.brokerage.GetSearchJob(ctx, jobID)
		if err != nil {
			// a failed tick is not surfaced; the next tick simply retries
			p.logger.Debug("search job poll failed",
				applogger.String("job_id", jobID), applogger.Error(err))
		} else {
			p.mu.Lock()
			if j, ok := p.jobs[jobID]; ok {
				j.last = job
			}
			p.mu.Unlock()

			if job.Status.IsTerminal() {
				p.logger.Info("search job finished",
					applogger.String("job_id", jobID),
					applogger.String("status", string(job.Status)))
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
