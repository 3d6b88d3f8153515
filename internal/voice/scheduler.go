package voice

import "time"

// Task is a scheduled callback that has not necessarily run yet.
type Task interface {
	// Cancel stops the task and reports whether it was stopped before running.
	Cancel() bool
}

// Scheduler runs callbacks once after a delay. The aggregator drives its
// debounce windows through this interface so tests can substitute a manual
// implementation and fire timers deterministically.
type Scheduler interface {
	// AfterFunc schedules fn to run once after d, on its own goroutine.
	AfterFunc(d time.Duration, fn func()) Task
}

// TimerScheduler implements [Scheduler] on real [time.AfterFunc] timers.
type TimerScheduler struct{}

var _ Scheduler = TimerScheduler{}

// AfterFunc schedules fn on a real timer.
func (TimerScheduler) AfterFunc(d time.Duration, fn func()) Task {
	return timerTask{t: time.AfterFunc(d, fn)}
}

type timerTask struct {
	t *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.t.Stop()
}
