package feed

import (
	"github.com/cfoust/spleef/pkg/bridge"
	"github.com/cfoust/spleef/pkg/session"
)

type Op byte

const (
	SnapshotOp Op = iota
	EventOp
	CommandOp
)

type Frame struct {
	Op        Op
	Snapshots []session.Snapshot `cbor:",omitempty"`
	Event     *session.Event     `cbor:",omitempty"`
	Command   *bridge.Command    `cbor:",omitempty"`
}
