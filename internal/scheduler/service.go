package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/merxlabs/merx/internal/config"
	"github.com/merxlabs/merx/internal/store"
)

// CommandRunner submits one canonical agent command.
type CommandRunner interface {
	HandleCommand(ctx context.Context, text string) error
}

// Service fires configured jobs on their cron schedules with a
// ticker-based polling loop. Jobs submit canonical commands through the
// same entry point the HTTP gateway uses.
type Service struct {
	jobs     []config.ScheduleJob
	runner   CommandRunner
	store    *store.Store
	nextRun  map[string]time.Time
	mu       sync.Mutex
	stopChan chan struct{}
	stopped  chan struct{}
	running  bool
}

// NewService creates a scheduler over the configured jobs.
func NewService(jobs []config.ScheduleJob, runner CommandRunner, st *store.Store) *Service {
	return &Service{
		jobs:    jobs,
		runner:  runner,
		store:   st,
		nextRun: make(map[string]time.Time),
	}
}

// Start computes initial fire times and begins the polling loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}

	now := time.Now()
	enabled := 0
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		next, err := gronx.NextTickAfter(job.Expr, now, false)
		if err != nil {
			slog.Warn("scheduler: invalid cron expression", "job", job.Name, "expr", job.Expr, "error", err)
			continue
		}
		s.nextRun[job.Name] = next
		enabled++
	}

	s.stopChan = make(chan struct{})
	s.stopped = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	go s.loop()

	slog.Info("scheduler started", "jobs", enabled)
}

// Stop gracefully shuts down the polling loop.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	<-s.stopped
	slog.Info("scheduler stopped")
}

func (s *Service) loop() {
	defer close(s.stopped)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	now := time.Now()

	var due []config.ScheduleJob
	s.mu.Lock()
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		next, ok := s.nextRun[job.Name]
		if !ok || next.After(now) {
			continue
		}
		// Advance the fire time first so a slow command cannot re-fire.
		following, err := gronx.NextTickAfter(job.Expr, now, false)
		if err != nil {
			delete(s.nextRun, job.Name)
			continue
		}
		s.nextRun[job.Name] = following
		due = append(due, job)
	}
	s.mu.Unlock()

	for _, job := range due {
		s.fire(job)
	}
}

func (s *Service) fire(job config.ScheduleJob) {
	ctx := context.Background()
	slog.Info("scheduler: firing job", "job", job.Name, "command", job.Command)

	if _, err := s.store.AppendAudit(ctx, store.AuditEntry{
		EventType: store.AuditEventSystem,
		Message:   "scheduled_job",
		Payload:   map[string]any{"job": job.Name, "command": job.Command},
	}); err != nil {
		slog.Warn("scheduler: audit write failed", "job", job.Name, "error", err)
	}

	if err := s.runner.HandleCommand(ctx, job.Command); err != nil {
		slog.Error("scheduler: job failed", "job", job.Name, "error", err)
	}
}
