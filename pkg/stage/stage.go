package stage

import (
	"fmt"
	"strings"
)

type Stage byte

const (
	Setup Stage = iota
	Warmup
	Begin
	Play
	End
	Cooldown
	Reset
	Error
)

var names = map[Stage]string{
	Setup:    "SETUP",
	Warmup:   "WARMUP",
	Begin:    "BEGIN",
	Play:     "PLAY",
	End:      "END",
	Cooldown: "COOLDOWN",
	Reset:    "RESET",
	Error:    "ERROR",
}

func (s Stage) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", byte(s))
}

func (s Stage) Valid() bool {
	_, ok := names[s]
	return ok
}

func (s Stage) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid stage %d", byte(s))
	}
	return []byte(s.String()), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func Parse(name string) (Stage, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for stage, stageName := range names {
		if stageName == name {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// edges lists every transition allowed without force. COOLDOWN's terminal
// exit is not a stage and is not listed.
var edges = map[Stage][]Stage{
	Setup:    {Warmup, Error},
	Warmup:   {Begin},
	Begin:    {Play},
	Play:     {End},
	End:      {Cooldown},
	Cooldown: {Reset},
	Reset:    {Setup},
	Error:    {},
}

// Allowed reports whether a session in stage from may move to stage to.
// Forced transitions may additionally re-enter the current stage, and leave
// ERROR for a new SETUP attempt.
func Allowed(from, to Stage, force bool) bool {
	if from == to {
		return force
	}

	if force && from == Error && to == Setup {
		return true
	}

	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}

	return false
}

// Next returns the stages reachable from the given stage without force.
func Next(from Stage) []Stage {
	next := edges[from]
	out := make([]Stage, len(next))
	copy(out, next)
	return out
}

// Lobby reports whether joiners in this stage enter as active players.
func (s Stage) Lobby() bool {
	return s == Setup || s == Warmup
}
