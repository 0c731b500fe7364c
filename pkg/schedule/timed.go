package schedule

import (
	"time"

	"github.com/cfoust/spleef/pkg/timer"

	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

// Dispatcher runs fn on the goroutine that owns the session.
type Dispatcher interface {
	Dispatch(sessionID string, fn func())
}

// Timed schedules tasks on wall-clock timers. When a timer fires, the task is
// handed to the dispatcher so it runs serialized with the session's events.
type Timed struct {
	dispatcher Dispatcher

	mutex  deadlock.Mutex
	timers map[string]map[*timer.Timer]struct{}
}

func NewTimed(dispatcher Dispatcher) *Timed {
	return &Timed{
		dispatcher: dispatcher,
		timers:     make(map[string]map[*timer.Timer]struct{}),
	}
}

func (t *Timed) Schedule(task *Task) {
	var armed *timer.Timer
	armed = timer.AfterFunc(task.Delay, func() {
		t.forget(task.SessionID, armed)
		t.dispatcher.Dispatch(task.SessionID, func() {
			if !task.Run() {
				log.Debug().
					Str("session", task.SessionID).
					Str("task", task.Name).
					Msg("skipped stale task")
			}
		})
	})

	t.mutex.Lock()
	sessionTimers, ok := t.timers[task.SessionID]
	if !ok {
		sessionTimers = make(map[*timer.Timer]struct{})
		t.timers[task.SessionID] = sessionTimers
	}
	sessionTimers[armed] = struct{}{}
	t.mutex.Unlock()

	armed.Start()
}

func (t *Timed) forget(sessionID string, armed *timer.Timer) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	sessionTimers, ok := t.timers[sessionID]
	if !ok {
		return
	}
	delete(sessionTimers, armed)
	if len(sessionTimers) == 0 {
		delete(t.timers, sessionID)
	}
}

// Pending returns how many timers are armed for a session.
func (t *Timed) Pending(sessionID string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.timers[sessionID])
}

// Remaining returns the time left until the next of a session's timers
// fires, or zero if none are armed.
func (t *Timed) Remaining(sessionID string) time.Duration {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var next time.Duration
	found := false
	for armed := range t.timers[sessionID] {
		if armed.Expired() {
			continue
		}
		left := armed.TimeLeft()
		if !found || left < next {
			next = left
			found = true
		}
	}
	return next
}

// Clear stops every timer armed for a session. Tasks guard themselves, so
// this only releases resources early.
func (t *Timed) Clear(sessionID string) {
	t.mutex.Lock()
	sessionTimers := t.timers[sessionID]
	delete(t.timers, sessionID)
	t.mutex.Unlock()

	for armed := range sessionTimers {
		armed.Stop()
	}
}
