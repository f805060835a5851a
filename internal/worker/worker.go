// Package worker contains the background worker responsible for the daily
// streak batch jobs: consuming streak freezes, resetting lapsed streaks,
// restoring freezes weekly, and emailing at-risk users before their streak
// lapses. The worker runs independently of HTTP request handling.
package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"practicehub/internal/config"
	"practicehub/internal/observability"
	"practicehub/internal/services"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Status represents the current state of the worker
type Status struct {
	IsRunning       bool      `json:"is_running"`
	IsPaused        bool      `json:"is_paused"`
	CurrentActivity string    `json:"current_activity,omitempty"`
	LastRunStart    time.Time `json:"last_run_start"`
	LastRunFinish   time.Time `json:"last_run_finish"`
	LastRunError    string    `json:"last_run_error,omitempty"`
	NextRun         time.Time `json:"next_run"`
}

// RunRecord tracks individual worker runs
type RunRecord struct {
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"` // Success, Failure
	Details   string        `json:"details"`
}

const runHistoryLimit = 50

// Worker runs the streak batch jobs on a schedule.
type Worker struct {
	streakService services.StreakServiceInterface
	emailService  services.EmailServiceInterface
	instance      string
	cfg           *config.Config
	logger        *observability.Logger

	mu            sync.RWMutex
	status        Status
	history       []RunRecord
	manualTrigger chan bool

	// Day stamps of the last completed run per job, so a restart of the
	// loop never re-runs a job within the same day.
	lastRunDay map[string]string

	// Last error per job, so one job succeeding does not hide another
	// job's failure in the reported status.
	lastJobError map[string]string

	// Time function for testing - defaults to time.Now
	timeNow func() time.Time
	cancel  context.CancelFunc
}

// New creates a worker with the given dependencies.
func New(streakService services.StreakServiceInterface, emailService services.EmailServiceInterface, instance string, cfg *config.Config, logger *observability.Logger) *Worker {
	return &Worker{
		streakService: streakService,
		emailService:  emailService,
		instance:      instance,
		cfg:           cfg,
		logger:        logger,
		status: Status{
			IsPaused: cfg.Worker.StartPaused,
		},
		manualTrigger: make(chan bool, 1),
		lastRunDay:    make(map[string]string),
		lastJobError:  make(map[string]string),
		timeNow:       time.Now,
	}
}

// Start runs the scheduling loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.setRunning(true)
	defer w.setRunning(false)

	w.logger.Info(ctx, "Worker started", map[string]interface{}{
		"instance":          w.instance,
		"check_interval":    config.WorkerCheckInterval.String(),
		"daily_check_hour":  w.cfg.Worker.DailyCheckHour,
		"weekly_reset_hour": w.cfg.Worker.WeeklyResetHour,
	})

	ticker := time.NewTicker(config.WorkerCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Worker stopping", map[string]interface{}{"instance": w.instance})
			return
		case <-w.manualTrigger:
			w.runDue(ctx, true)
		case <-ticker.C:
			w.mu.Lock()
			w.status.NextRun = w.timeNow().Add(config.WorkerCheckInterval)
			w.mu.Unlock()
			w.runDue(ctx, false)
		}
	}
}

// Shutdown stops the scheduling loop.
func (w *Worker) Shutdown() {
	if w.cancel != nil {
		w.cancel()
	}
}

// Pause suspends scheduled runs. Manual triggers still work.
func (w *Worker) Pause() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.IsPaused = true
}

// Resume re-enables scheduled runs.
func (w *Worker) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.IsPaused = false
}

// TriggerManualRun forces all due jobs to run regardless of pause state.
func (w *Worker) TriggerManualRun() {
	select {
	case w.manualTrigger <- true:
	default:
		// A trigger is already pending.
	}
}

// GetStatus returns a snapshot of the worker state.
func (w *Worker) GetStatus() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// GetHistory returns the recorded runs, oldest first.
func (w *Worker) GetHistory() []RunRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]RunRecord, len(w.history))
	copy(out, w.history)
	return out
}

func (w *Worker) setRunning(running bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.IsRunning = running
}

// runDue executes every job whose scheduled hour has passed and which has not
// yet completed today. The batch jobs themselves are idempotent; the day
// stamps only save needless database round trips.
func (w *Worker) runDue(ctx context.Context, manual bool) {
	w.mu.RLock()
	paused := w.status.IsPaused
	w.mu.RUnlock()
	if paused && !manual {
		return
	}

	now := w.timeNow()

	if w.reminderDue(now) {
		w.runJob(ctx, "streak_reminders", w.sendStreakReminders)
	}
	if w.jobDue(now, "daily_streak_check", w.cfg.Worker.DailyCheckHour) {
		w.runJob(ctx, "daily_streak_check", w.runDailyCheck)
	}
	if w.jobDue(now, "weekly_freeze_reset", w.cfg.Worker.WeeklyResetHour) {
		w.runJob(ctx, "weekly_freeze_reset", w.runWeeklyReset)
	}
}

func (w *Worker) jobDue(now time.Time, name string, hour int) bool {
	if now.Hour() < hour {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRunDay[name] != dayStamp(now)
}

// reminderDue applies the same schedule check as jobDue but also honors the
// email feature switches.
func (w *Worker) reminderDue(now time.Time) bool {
	if !w.cfg.Email.Enabled || !w.cfg.Email.StreakReminder.Enabled {
		return false
	}
	return w.jobDue(now, "streak_reminders", w.cfg.Email.StreakReminder.Hour)
}

func dayStamp(t time.Time) string {
	return t.Format("2006-01-02")
}

// combinedJobErrorLocked reports the outstanding job failures in job-name
// order. Caller must hold w.mu.
func (w *Worker) combinedJobErrorLocked() string {
	if len(w.lastJobError) == 0 {
		return ""
	}
	names := make([]string, 0, len(w.lastJobError))
	for name := range w.lastJobError {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, w.lastJobError[name])
	}
	return strings.Join(parts, "; ")
}

func (w *Worker) runJob(ctx context.Context, name string, job func(context.Context) (string, error)) {
	ctx, span := otel.Tracer("worker").Start(ctx, "worker_run_job",
		trace.WithAttributes(
			attribute.String("worker.instance", w.instance),
			attribute.String("worker.job", name),
		),
	)
	defer span.End()

	start := w.timeNow()
	w.mu.Lock()
	w.status.CurrentActivity = name
	w.status.LastRunStart = start
	w.mu.Unlock()

	details, err := job(ctx)

	end := w.timeNow()
	record := RunRecord{
		StartTime: start,
		EndTime:   end,
		Duration:  end.Sub(start),
		Status:    "Success",
		Details:   details,
	}

	w.mu.Lock()
	w.status.CurrentActivity = ""
	w.status.LastRunFinish = end
	if err != nil {
		w.lastJobError[name] = err.Error()
		record.Status = "Failure"
		record.Details = err.Error()
	} else {
		delete(w.lastJobError, name)
		w.lastRunDay[name] = dayStamp(start)
	}
	w.status.LastRunError = w.combinedJobErrorLocked()
	w.history = append(w.history, record)
	if len(w.history) > runHistoryLimit {
		w.history = w.history[len(w.history)-runHistoryLimit:]
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error(ctx, "Worker job failed", err, map[string]interface{}{
			"job": name,
		})
		return
	}
	w.logger.Info(ctx, "Worker job completed", map[string]interface{}{
		"job":     name,
		"details": details,
	})
}

func (w *Worker) runDailyCheck(ctx context.Context) (string, error) {
	result, err := w.streakService.RunDailyCheck(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("freezes consumed: %d, streaks reset: %d", result.FreezesConsumed, result.StreaksReset), nil
}

func (w *Worker) runWeeklyReset(ctx context.Context) (string, error) {
	restored, err := w.streakService.RunWeeklyFreezeReset(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("freezes restored: %d", restored), nil
}

// sendStreakReminders emails every user whose streak lapses today without
// activity. Individual send failures are logged and skipped.
func (w *Worker) sendStreakReminders(ctx context.Context) (string, error) {
	targets, err := w.streakService.GetStreakAtRiskUsers(ctx)
	if err != nil {
		return "", err
	}

	sent := 0
	for _, target := range targets {
		if target.Email == "" {
			continue
		}
		if sendErr := w.emailService.SendStreakReminder(ctx, target); sendErr != nil {
			w.logger.Warn(ctx, "Failed to send streak reminder", map[string]interface{}{
				"user_id": target.UserID,
				"error":   sendErr.Error(),
			})
			continue
		}
		sent++
	}
	return fmt.Sprintf("reminders sent: %d of %d", sent, len(targets)), nil
}
