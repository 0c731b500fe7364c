package schedule

import (
	"sort"
	"time"
)

type pending struct {
	task *Task
	due  time.Duration
	seq  int
}

// Manual is a scheduler driven by a fake clock. Nothing runs until Advance
// or Flush is called.
type Manual struct {
	now     time.Duration
	seq     int
	pending []pending
	// Fired counts tasks whose action actually ran.
	Fired int
	// Skipped counts tasks that were stale when they came due.
	Skipped int
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Schedule(task *Task) {
	m.seq++
	m.pending = append(m.pending, pending{
		task: task,
		due:  m.now + task.Delay,
		seq:  m.seq,
	})
}

func (m *Manual) Now() time.Duration {
	return m.now
}

// Pending returns the tasks that have not come due yet, in firing order.
func (m *Manual) Pending() []*Task {
	m.sort()
	tasks := make([]*Task, 0, len(m.pending))
	for _, entry := range m.pending {
		tasks = append(tasks, entry.task)
	}
	return tasks
}

func (m *Manual) sort() {
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due == m.pending[j].due {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due < m.pending[j].due
	})
}

// Advance moves the clock forward by d and runs every task that came due,
// including tasks scheduled by those tasks.
func (m *Manual) Advance(d time.Duration) {
	target := m.now + d

	for {
		m.sort()
		if len(m.pending) == 0 || m.pending[0].due > target {
			break
		}

		next := m.pending[0]
		m.pending = m.pending[1:]
		if next.due > m.now {
			m.now = next.due
		}

		if next.task.Run() {
			m.Fired++
		} else {
			m.Skipped++
		}
	}

	m.now = target
}

// Flush runs tasks until none are pending, advancing the clock as needed.
func (m *Manual) Flush() {
	for len(m.pending) > 0 {
		m.sort()
		m.Advance(m.pending[0].due - m.now)
	}
}
