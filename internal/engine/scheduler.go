package engine

import "time"

// TaskID identifies a scheduled task.
type TaskID uint64

type task struct {
	id TaskID
	at time.Duration
	fn func()
}

// Scheduler runs deferred tasks on simulated time. It is advanced by the
// simulation loop and is not safe for concurrent use.
type Scheduler struct {
	now   time.Duration
	next  TaskID
	tasks []task
}

// NewScheduler returns an empty scheduler at time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{next: 1}
}

// Now returns the scheduler's simulated time.
func (s *Scheduler) Now() time.Duration { return s.now }

// Pending returns the number of tasks not yet run.
func (s *Scheduler) Pending() int { return len(s.tasks) }

// After schedules fn to run once d of simulated time has passed.
func (s *Scheduler) After(d time.Duration, fn func()) TaskID {
	id := s.next
	s.next++
	s.tasks = append(s.tasks, task{id: id, at: s.now + d, fn: fn})
	return id
}

// Cancel removes a pending task and reports whether it was pending.
func (s *Scheduler) Cancel(id TaskID) bool {
	for i, t := range s.tasks {
		if t.id == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return true
		}
	}
	return false
}

// CancelAll removes every pending task and returns how many there were.
func (s *Scheduler) CancelAll() int {
	n := len(s.tasks)
	s.tasks = nil
	return n
}

// Advance moves time forward by dt and runs every task that has come due,
// earliest first and in scheduling order on ties. Tasks scheduled by a
// running task run in the same Advance if they are already due.
func (s *Scheduler) Advance(dt time.Duration) {
	s.now += dt
	for {
		due := -1
		for i, t := range s.tasks {
			if t.at > s.now {
				continue
			}
			if due < 0 || t.at < s.tasks[due].at || (t.at == s.tasks[due].at && t.id < s.tasks[due].id) {
				due = i
			}
		}
		if due < 0 {
			return
		}
		t := s.tasks[due]
		s.tasks = append(s.tasks[:due], s.tasks[due+1:]...)
		t.fn()
	}
}
