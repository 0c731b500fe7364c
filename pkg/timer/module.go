package timer

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

const (
	stateIdle = iota
	stateActive
	stateExpired
)

// Timer runs a function once after a duration has elapsed from Start. Unlike
// time.AfterFunc it can be created before it is armed, and reports how much
// time it has left.
type Timer struct {
	t  *time.Timer
	fn func()

	l         deadlock.Mutex // guards the fields below
	state     int
	duration  time.Duration
	startedAt time.Time
}

// AfterFunc returns an idle Timer that calls f in its own goroutine once
// Start has been called and d has elapsed.
func AfterFunc(d time.Duration, f func()) *Timer {
	t := &Timer{
		duration: d,
	}
	t.fn = func() {
		t.l.Lock()
		if t.state != stateActive {
			t.l.Unlock()
			return
		}
		t.state = stateExpired
		t.l.Unlock()
		f()
	}
	return t
}

// Start arms the timer. It returns false if the timer was already started.
func (t *Timer) Start() bool {
	t.l.Lock()
	defer t.l.Unlock()
	if t.state != stateIdle {
		return false
	}
	t.startedAt = time.Now()
	t.state = stateActive
	t.t = time.AfterFunc(t.duration, t.fn)
	return true
}

// Stop prevents the timer from firing. It returns true if the call stopped
// the timer, false if it already fired or was stopped.
func (t *Timer) Stop() bool {
	t.l.Lock()
	defer t.l.Unlock()
	if t.state == stateExpired {
		return false
	}
	wasActive := t.state == stateActive
	t.state = stateExpired
	if !wasActive {
		return true
	}
	return t.t.Stop()
}

func (t *Timer) Expired() bool {
	t.l.Lock()
	defer t.l.Unlock()
	return t.state == stateExpired
}

// TimeLeft returns the duration left before the timer fires. It is safe to
// call on a nil timer and returns 0 in that case.
func (t *Timer) TimeLeft() time.Duration {
	if t == nil {
		return 0
	}

	t.l.Lock()
	defer t.l.Unlock()

	switch t.state {
	case stateIdle:
		return t.duration
	case stateActive:
		left := t.duration - time.Since(t.startedAt)
		if left < 0 {
			return 0
		}
		return left
	case stateExpired:
		return 0
	default:
		panic("unhandled timer state")
	}
}
