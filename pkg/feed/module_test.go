package feed

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cfoust/spleef/pkg/bridge"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type staticSource []session.Snapshot

func (s staticSource) Snapshots(ctx context.Context) []session.Snapshot {
	return s
}

func read(t *testing.T, ctx context.Context, c *websocket.Conn) Frame {
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageBinary, typ)

	var frame Frame
	require.NoError(t, cbor.Unmarshal(data, &frame))
	return frame
}

func TestFeed(t *testing.T) {
	events := utils.NewTopic[session.Event]("events")
	commands := utils.NewTopic[bridge.Command]("commands")
	source := staticSource{{ID: "pit", Stage: stage.Warmup, Round: 1, TotalRounds: 3}}

	feed := New(source, events, commands)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go feed.Poll(ctx)

	server := httptest.NewServer(feed)
	defer server.Close()

	url := strings.Replace(server.URL, "http://", "ws://", 1)
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	frame := read(t, ctx, c)
	assert.Equal(t, SnapshotOp, frame.Op)
	require.Len(t, frame.Snapshots, 1)
	assert.Equal(t, "pit", frame.Snapshots[0].ID)
	assert.Equal(t, stage.Warmup, frame.Snapshots[0].Stage)

	require.Eventually(t, func() bool { return feed.NumClients() == 1 }, time.Second, time.Millisecond)

	events.Publish(session.Event{SessionID: "pit", From: stage.Warmup, To: stage.Begin, Round: 1})
	frame = read(t, ctx, c)
	assert.Equal(t, EventOp, frame.Op)
	require.NotNil(t, frame.Event)
	assert.Equal(t, stage.Begin, frame.Event.To)

	commands.Publish(bridge.Command{Kind: bridge.MessageCommand, Player: "alice", Text: "hi"})
	frame = read(t, ctx, c)
	assert.Equal(t, CommandOp, frame.Op)
	require.NotNil(t, frame.Command)
	assert.Equal(t, "hi", frame.Command.Text)

	c.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return feed.NumClients() == 0 }, time.Second, time.Millisecond)
}
