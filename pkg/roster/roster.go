package roster

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyPresent = errors.New("participant already present")
	ErrNotFound       = errors.New("participant not found")
)

type Status byte

const (
	Active Status = iota
	Spectator
)

func (s Status) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Spectator:
		return "SPECTATOR"
	default:
		return fmt.Sprintf("Status(%d)", byte(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ACTIVE":
		*s = Active
	case "SPECTATOR":
		*s = Spectator
	default:
		return fmt.Errorf("invalid status %q", text)
	}
	return nil
}

type Participant struct {
	ID     string
	Status Status
	Joined time.Time
}

// Roster tracks who is in a session and whether they are still in play. It is
// not safe for concurrent use; a session's events are serialized by its
// owner.
type Roster struct {
	order        []string
	participants map[string]*Participant
	now          func() time.Time
}

func New() *Roster {
	return &Roster{
		participants: make(map[string]*Participant),
		now:          time.Now,
	}
}

// Add inserts a new active participant.
func (r *Roster) Add(id string) error {
	if _, ok := r.participants[id]; ok {
		return fmt.Errorf("%s: %w", id, ErrAlreadyPresent)
	}

	r.participants[id] = &Participant{
		ID:     id,
		Status: Active,
		Joined: r.now(),
	}
	r.order = append(r.order, id)
	return nil
}

// Remove deletes the participant and returns how many remain.
func (r *Roster) Remove(id string) (int, error) {
	if _, ok := r.participants[id]; !ok {
		return len(r.participants), fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	delete(r.participants, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	return len(r.participants), nil
}

// MarkSpectator eliminates a participant. Marking a spectator again is not
// an error.
func (r *Roster) MarkSpectator(id string) error {
	participant, ok := r.participants[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	participant.Status = Spectator
	return nil
}

func (r *Roster) ResetAllToActive() {
	for _, participant := range r.participants {
		participant.Status = Active
	}
}

func (r *Roster) Get(id string) (Participant, bool) {
	participant, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *participant, true
}

func (r *Roster) Has(id string) bool {
	_, ok := r.participants[id]
	return ok
}

func (r *Roster) IsSpectator(id string) bool {
	participant, ok := r.participants[id]
	return ok && participant.Status == Spectator
}

func (r *Roster) Len() int {
	return len(r.participants)
}

func (r *Roster) count(status Status) (n int) {
	for _, participant := range r.participants {
		if participant.Status == status {
			n++
		}
	}
	return
}

func (r *Roster) ActiveCount() int {
	return r.count(Active)
}

func (r *Roster) SpectatorCount() int {
	return r.count(Spectator)
}

// AllSpectators is true only for a non-empty roster where nobody is active.
func (r *Roster) AllSpectators() bool {
	return len(r.participants) > 0 && r.ActiveCount() == 0
}

// IDs returns every participant in join order.
func (r *Roster) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// Active returns the active participants in join order.
func (r *Roster) Active() []string {
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.participants[id].Status == Active {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *Roster) Participants() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.participants[id])
	}
	return out
}
