package schedule

import (
	"time"

	"github.com/cfoust/spleef/pkg/stage"
)

// Target is the state a task re-validates against before it acts.
type Target interface {
	Stage() stage.Stage
	Generation() uint64
	Ended() bool
}

// Task is a delayed action bound to a session. It only acts if, when it
// fires, the session has not ended and has not transitioned since the task
// was created.
type Task struct {
	Name       string
	SessionID  string
	Delay      time.Duration
	Target     Target
	Stage      stage.Stage
	Generation uint64
	Action     func()

	done bool
}

// For builds a task guarded on the target's current stage and generation.
func For(sessionID string, target Target, name string, delay time.Duration, action func()) *Task {
	return &Task{
		Name:       name,
		SessionID:  sessionID,
		Delay:      delay,
		Target:     target,
		Stage:      target.Stage(),
		Generation: target.Generation(),
		Action:     action,
	}
}

func (t *Task) Stale() bool {
	if t.done || t.Target == nil {
		return true
	}
	return t.Target.Ended() ||
		t.Target.Stage() != t.Stage ||
		t.Target.Generation() != t.Generation
}

// Run executes the action if the task is still valid. A task runs at most
// once.
func (t *Task) Run() bool {
	if t.Stale() {
		t.done = true
		return false
	}
	t.done = true
	t.Action()
	return true
}

type Scheduler interface {
	Schedule(task *Task)
}
