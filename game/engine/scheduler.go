package engine

import (
	"sync"
	"time"
)

// Scheduler runs delayed callbacks. Slots returned by After can be cancelled individually.
type Scheduler interface {
	After(delay time.Duration, fn func()) int
	Cancel(slot int)
	CancelAll()
}

// TimerScheduler backs each slot with a time.Timer. Freed slots are reused.
type TimerScheduler struct {
	mu     sync.Mutex
	timers []*time.Timer
}

// NewTimerScheduler creates a scheduler using wall-clock timers
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// After schedules fn to run once delay has elapsed and returns its slot
func (s *TimerScheduler) After(delay time.Duration, fn func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.freeSlot()
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if slot < len(s.timers) && s.timers[slot] == timer {
			s.timers[slot] = nil
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[slot] = timer
	return slot
}

// Cancel stops the callback in slot if it has not fired yet
func (s *TimerScheduler) Cancel(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.timers) || s.timers[slot] == nil {
		return
	}
	s.timers[slot].Stop()
	s.timers[slot] = nil
}

// CancelAll stops every pending callback
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, timer := range s.timers {
		if timer != nil {
			timer.Stop()
			s.timers[i] = nil
		}
	}
}

// Pending returns the number of callbacks that have not fired or been cancelled
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, timer := range s.timers {
		if timer != nil {
			n++
		}
	}
	return n
}

// freeSlot must be called with s.mu held
func (s *TimerScheduler) freeSlot() int {
	for i, timer := range s.timers {
		if timer == nil {
			return i
		}
	}
	s.timers = append(s.timers, nil)
	return len(s.timers) - 1
}

// ManualScheduler queues callbacks until Advance is called. It is meant for tests and
// for driving a match from a simulated clock.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	tasks []*manualTask
}

type manualTask struct {
	at time.Duration
	fn func()
}

// NewManualScheduler creates a scheduler whose clock starts at zero
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// After implements Scheduler
func (s *ManualScheduler) After(delay time.Duration, fn func()) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &manualTask{at: s.now + delay, fn: fn}
	for i, t := range s.tasks {
		if t == nil {
			s.tasks[i] = task
			return i
		}
	}
	s.tasks = append(s.tasks, task)
	return len(s.tasks) - 1
}

// Cancel implements Scheduler
func (s *ManualScheduler) Cancel(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot >= 0 && slot < len(s.tasks) {
		s.tasks[slot] = nil
	}
}

// CancelAll implements Scheduler
func (s *ManualScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		s.tasks[i] = nil
	}
}

// Pending returns the number of queued callbacks
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.tasks {
		if t != nil {
			n++
		}
	}
	return n
}

// Advance moves the clock forward and runs every callback that became due, earliest first.
// Callbacks run without the scheduler lock held and may schedule more work.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := -1
		for i, t := range s.tasks {
			if t != nil && t.at <= target && (next < 0 || t.at < s.tasks[next].at) {
				next = i
			}
		}
		if next < 0 {
			s.now = target
			s.mu.Unlock()
			return
		}
		task := s.tasks[next]
		s.tasks[next] = nil
		s.now = task.at
		s.mu.Unlock()

		task.fn()
	}
}
