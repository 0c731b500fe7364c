package bridge

import (
	"github.com/cfoust/spleef/pkg/session"
)

type CommandKind byte

const (
	TeleportCommand CommandKind = iota
	LoadoutCommand
	ClearLoadoutCommand
	MessageCommand
	RevertCommand
	RestoreCommand
	EndCommand
)

func (c CommandKind) String() string {
	switch c {
	case TeleportCommand:
		return "teleport"
	case LoadoutCommand:
		return "loadout"
	case ClearLoadoutCommand:
		return "clear-loadout"
	case MessageCommand:
		return "message"
	case RevertCommand:
		return "revert"
	case RestoreCommand:
		return "restore"
	case EndCommand:
		return "end"
	}
	return "unknown"
}

// Command is a side effect the game platform must carry out.
type Command struct {
	Kind      CommandKind
	SessionID string            `cbor:",omitempty"`
	Arena     string            `cbor:",omitempty"`
	Player    string            `cbor:",omitempty"`
	Location  *session.Location `cbor:",omitempty"`
	Block     *session.BlockRef `cbor:",omitempty"`
	Items     []string          `cbor:",omitempty"`
	Text      string            `cbor:",omitempty"`
	Announce  bool              `cbor:",omitempty"`
}
