package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeDeck/internal/domain/models"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTrackPollsUntilTerminalStatus(t *testing.T) {
	fb := newFakeBrokerage()
	var polls int32
	fb.getJobFn = func(_ context.Context, id string) (*models.SearchJob, error) {
		n := atomic.AddInt32(&polls, 1)
		if n >= 3 {
			return &models.SearchJob{ID: id, Status: models.SearchJobComplete, Progress: 1}, nil
		}
		return &models.SearchJob{ID: id, Status: models.SearchJobRunning, Progress: float64(n) / 3}, nil
	}

	p := NewJobPoller(fb, testLogger(t), 10*time.Millisecond)
	defer p.Close()

	require.Nil(t, p.Track(context.Background(), "job-1"))

	waitFor(t, func() bool {
		j := p.Status("job-1")
		return j != nil && j.Status == models.SearchJobComplete
	})

	// terminal: ticker stopped, no further polls
	settled := atomic.LoadInt32(&polls)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, atomic.LoadInt32(&polls))
}

func TestTrackJoinsExistingPoll(t *testing.T) {
	fb := newFakeBrokerage()
	block := make(chan struct{})
	fb.getJobFn = func(_ context.Context, id string) (*models.SearchJob, error) {
		<-block
		return &models.SearchJob{ID: id, Status: models.SearchJobRunning}, nil
	}

	p := NewJobPoller(fb, testLogger(t), 10*time.Millisecond)
	defer p.Close()
	defer close(block)

	p.Track(context.Background(), "job-1")
	p.Track(context.Background(), "job-1")

	// only the first Track started a poll goroutine
	time.Sleep(30 * time.Millisecond)
	fb.mu.Lock()
	calls := fb.jobCalls
	fb.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestCancelStopsPolling(t *testing.T) {
	fb := newFakeBrokerage()
	p := NewJobPoller(fb, testLogger(t), 10*time.Millisecond)
	defer p.Close()

	p.Track(context.Background(), "job-1")
	waitFor(t, func() bool {
		fb.mu.Lock()
		defer fb.mu.Unlock()
		return fb.jobCalls >= 1
	})

	p.Cancel("job-1")
	assert.Nil(t, p.Status("job-1"))

	fb.mu.Lock()
	settled := fb.jobCalls
	fb.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	fb.mu.Lock()
	after := fb.jobCalls
	fb.mu.Unlock()
	assert.LessOrEqual(t, after, settled+1) // at most one in-flight poll finishes
}

func TestFailedPollRetriesNextTick(t *testing.T) {
	fb := newFakeBrokerage()
	var polls int32
	fb.getJobFn = func(_ context.Context, id string) (*models.SearchJob, error) {
		n := atomic.AddInt32(&polls, 1)
		if n == 1 {
			return nil, context.DeadlineExceeded
		}
		return &models.SearchJob{ID: id, Status: models.SearchJobComplete}, nil
	}

	p := NewJobPoller(fb, testLogger(t), 10*time.Millisecond)
	defer p.Close()

	p.Track(context.Background(), "job-1")
	waitFor(t, func() bool {
		j := p.Status("job-1")
		return j != nil && j.Status == models.SearchJobComplete
	})
}
