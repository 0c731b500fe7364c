// Package feed streams stage events and platform commands to WebSocket
// clients as CBOR frames.
package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cfoust/spleef/pkg/bridge"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/fxamacker/cbor/v2"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
	"nhooyr.io/websocket"
)

const CLIENT_MESSAGE_LIMIT = 256

type SnapshotSource interface {
	Snapshots(ctx context.Context) []session.Snapshot
}

type wsClient struct {
	send      chan []byte
	closeSlow func()
}

type Feed struct {
	source   SnapshotSource
	events   *utils.Subscriber[session.Event]
	commands *utils.Subscriber[bridge.Command]

	mutex   deadlock.Mutex
	clients map[*wsClient]struct{}
}

func New(
	source SnapshotSource,
	events *utils.Topic[session.Event],
	commands *utils.Topic[bridge.Command],
) *Feed {
	return &Feed{
		source:   source,
		events:   events.Subscribe(),
		commands: commands.Subscribe(),
		clients:  make(map[*wsClient]struct{}),
	}
}

func (f *Feed) NumClients() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return len(f.clients)
}

func (f *Feed) Broadcast(frame Frame) {
	bytes, err := cbor.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode frame")
		return
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	for client := range f.clients {
		select {
		case client.send <- bytes:
		default:
			go client.closeSlow()
		}
	}
}

// Poll forwards events and commands to every client until ctx is done.
func (f *Feed) Poll(ctx context.Context) {
	defer f.events.Done()
	defer f.commands.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-f.events.Recv():
			f.Broadcast(Frame{Op: EventOp, Event: &event})
		case command := <-f.commands.Recv():
			f.Broadcast(Frame{Op: CommandOp, Command: &command})
		}
	}
}

func (f *Feed) addClient(c *wsClient) {
	f.mutex.Lock()
	f.clients[c] = struct{}{}
	f.mutex.Unlock()
}

func (f *Feed) removeClient(c *wsClient) {
	f.mutex.Lock()
	delete(f.clients, c)
	f.mutex.Unlock()
}

func writeTimeout(ctx context.Context, timeout time.Duration, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageBinary, msg)
}

func (f *Feed) subscribe(ctx context.Context, c *websocket.Conn, hostname string, agent string) error {
	client := &wsClient{
		send: make(chan []byte, CLIENT_MESSAGE_LIMIT),
		closeSlow: func() {
			c.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
		},
	}

	logger := log.With().
		Str("host", hostname).
		Str("agent", agent).
		Logger()

	// Register before taking the snapshot so nothing published in between is
	// missed.
	f.addClient(client)
	defer f.removeClient(client)

	logger.Info().Msg("feed client connected")

	snapshot, err := cbor.Marshal(Frame{
		Op:        SnapshotOp,
		Snapshots: f.source.Snapshots(ctx),
	})
	if err != nil {
		return err
	}
	if err := writeTimeout(ctx, time.Second*5, c, snapshot); err != nil {
		return err
	}

	// Clients never send anything, but reading is needed to notice closes.
	ctx = c.CloseRead(ctx)

	for {
		select {
		case msg := <-client.send:
			if err := writeTimeout(ctx, time.Second*5, c, msg); err != nil {
				logger.Error().Msg("client missed write timeout; disconnecting")
				return err
			}
		case <-ctx.Done():
			logger.Info().Msg("feed client left")
			return ctx.Err()
		}
	}
}

func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Error().Err(err).Msg("error accepting feed connection")
		return
	}

	defer c.Close(websocket.StatusInternalError, "operational fault during relay")

	hostname := r.RemoteAddr
	if original, ok := r.Header["X-Forwarded-For"]; ok {
		hostname = original[0]
	}

	agent := useragent.Parse(r.UserAgent())
	name := agent.Name
	if agent.Version != "" {
		name += "/" + agent.Version
	}
	if agent.Bot {
		name += " (bot)"
	}

	err = f.subscribe(r.Context(), c, hostname, name)
	if errors.Is(err, context.Canceled) {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("feed client failed")
	}
}
