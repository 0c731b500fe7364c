// Package ingress is the HTTP API the game platform uses to deliver player
// events to sessions.
package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/cfoust/spleef/pkg/bridge"
	"github.com/cfoust/spleef/pkg/config"
	"github.com/cfoust/spleef/pkg/registry"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/spleef"
	"github.com/cfoust/spleef/pkg/stats"
	"github.com/cfoust/spleef/pkg/telemetry"

	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const MAX_BODY = 1 << 16

var errBadRequest = errors.New("bad request")

// Assigner places a session in a named arena.
type Assigner interface {
	Assign(sessionID string, arenaID string) error
}

type Ratings interface {
	Player(ctx context.Context, name string) (opt.Option[stats.Player], error)
	Leaderboard(ctx context.Context, limit int) ([]stats.Player, error)
}

type Ingress struct {
	registry *registry.Registry
	arenas   Assigner
	ratings  Ratings
	limiter  *rate.Limiter
	tracer   trace.Tracer
	mux      *http.ServeMux
}

// New builds the API. ratings may be nil, in which case the player routes
// are not served.
func New(r *registry.Registry, arenas Assigner, ratings Ratings, limits config.RateLimitSettings) *Ingress {
	server := &Ingress{
		registry: r,
		arenas:   arenas,
		ratings:  ratings,
		limiter:  rate.NewLimiter(rate.Limit(limits.PerSecond), limits.Burst),
		tracer:   telemetry.Tracer("github.com/cfoust/spleef/pkg/ingress"),
		mux:      http.NewServeMux(),
	}

	mux := server.mux
	mux.HandleFunc("GET /api/sessions", server.handleList)
	mux.HandleFunc("POST /api/sessions", server.handleCreate)
	mux.HandleFunc("GET /api/sessions/{id}", server.handleGet)
	mux.HandleFunc("DELETE /api/sessions/{id}", server.handleEnd)
	mux.HandleFunc("POST /api/sessions/{id}/join", server.player(func(g *spleef.Game, id, player string) error {
		return g.OnJoin(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/quit", server.player(func(g *spleef.Game, id, player string) error {
		return g.OnQuit(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/exit", server.player(func(g *spleef.Game, id, player string) error {
		return g.OnBoundaryExit(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/death", server.player(func(g *spleef.Game, id, player string) error {
		return g.OnDeath(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/break", server.block(func(g *spleef.Game, id, player string, block session.BlockRef) (spleef.Decision, error) {
		return g.OnBreakAttempt(id, player, block)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/place", server.block(func(g *spleef.Game, id, player string, block session.BlockRef) (spleef.Decision, error) {
		return g.OnPlaceAttempt(id, player, block)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/drop", server.action(func(g *spleef.Game, id, player string) (spleef.Decision, error) {
		return g.OnDrop(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/chat", server.action(func(g *spleef.Game, id, player string) (spleef.Decision, error) {
		return g.OnChat(id, player)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/move", server.handleMove)
	mux.HandleFunc("POST /api/sessions/{id}/damage", server.handleDamage)
	mux.HandleFunc("POST /api/sessions/{id}/begin", server.control(func(g *spleef.Game, id string) error {
		return g.Begin(id)
	}))
	mux.HandleFunc("POST /api/sessions/{id}/retry", server.control(func(g *spleef.Game, id string) error {
		return g.Retry(id)
	}))

	if ratings != nil {
		mux.HandleFunc("GET /api/players/{name}", server.handlePlayer)
		mux.HandleFunc("GET /api/leaderboard", server.handleLeaderboard)
	}

	return server
}

func (i *Ingress) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !i.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limited"})
		return
	}

	ctx, span := i.tracer.Start(r.Context(), "ingress "+r.Method+" "+r.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		),
	)
	defer span.End()

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	i.mux.ServeHTTP(recorder, r.WithContext(ctx))

	span.SetAttributes(attribute.Int("http.status_code", recorder.status))
	if recorder.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(recorder.status))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if value == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, spleef.ErrUnknownSession),
		errors.Is(err, bridge.ErrUnknownArena):
		return http.StatusNotFound
	case errors.Is(err, spleef.ErrSessionExists),
		errors.Is(err, spleef.ErrSessionFull),
		errors.Is(err, spleef.ErrLateJoin),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrSessionEnded):
		return http.StatusConflict
	case errors.Is(err, registry.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)

	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, value any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, MAX_BODY))
	if err := decoder.Decode(value); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func sessionID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", fmt.Errorf("%w: missing session id", errBadRequest)
	}
	return id, nil
}

func playerName(player string) (string, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return "", fmt.Errorf("%w: missing player", errBadRequest)
	}
	return player, nil
}

func (i *Ingress) handleList(w http.ResponseWriter, r *http.Request) {
	views := make([]sessionView, 0)
	for _, snapshot := range i.registry.Snapshots(r.Context()) {
		views = append(views, viewSession(snapshot))
	}
	writeJSON(w, http.StatusOK, views)
}

func (i *Ingress) writeSnapshot(w http.ResponseWriter, r *http.Request, id string, status int) {
	snapshot, err := i.registry.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if opt.IsNone(snapshot) {
		writeError(w, r, fmt.Errorf("%s: %w", id, spleef.ErrUnknownSession))
		return
	}
	writeJSON(w, status, viewSession(snapshot.Value))
}

func (i *Ingress) handleCreate(w http.ResponseWriter, r *http.Request) {
	var request createRequest
	if err := decode(w, r, &request); err != nil {
		writeError(w, r, err)
		return
	}

	id := strings.TrimSpace(request.ID)
	if id == "" {
		writeError(w, r, fmt.Errorf("%w: missing session id", errBadRequest))
		return
	}

	// The arena is only assigned once the id is known to be free, on the
	// same lane that starts the session.
	err := i.registry.CreateWith(r.Context(), id, func() error {
		if request.Arena == "" {
			return nil
		}
		return i.arenas.Assign(id, request.Arena)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	i.writeSnapshot(w, r, id, http.StatusCreated)
}

func (i *Ingress) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	i.writeSnapshot(w, r, id, http.StatusOK)
}

func (i *Ingress) handleEnd(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	announce, _ := strconv.ParseBool(r.URL.Query().Get("announce"))
	if err := i.registry.End(r.Context(), id, announce); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// player serves the routes whose body only names a player.
func (i *Ingress) player(handle func(g *spleef.Game, id string, player string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var request playerRequest
		if err := decode(w, r, &request); err != nil {
			writeError(w, r, err)
			return
		}

		player, err := playerName(request.Player)
		if err != nil {
			writeError(w, r, err)
			return
		}

		err = i.registry.Do(r.Context(), id, func() error {
			return handle(i.registry.Game(), id, player)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func (i *Ingress) control(handle func(g *spleef.Game, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		err = i.registry.Do(r.Context(), id, func() error {
			return handle(i.registry.Game(), id)
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		i.writeSnapshot(w, r, id, http.StatusOK)
	}
}

// block serves the routes that decide on a block a player tried to change.
func (i *Ingress) block(handle func(g *spleef.Game, id string, player string, block session.BlockRef) (spleef.Decision, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var request blockRequest
		if err := decode(w, r, &request); err != nil {
			writeError(w, r, err)
			return
		}

		player, err := playerName(request.Player)
		if err != nil {
			writeError(w, r, err)
			return
		}

		i.decide(w, r, id, func() (spleef.Decision, error) {
			return handle(i.registry.Game(), id, player, request.Block)
		})
	}
}

// action serves the routes that allow or deny something a player did.
func (i *Ingress) action(handle func(g *spleef.Game, id string, player string) (spleef.Decision, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := sessionID(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		var request playerRequest
		if err := decode(w, r, &request); err != nil {
			writeError(w, r, err)
			return
		}

		player, err := playerName(request.Player)
		if err != nil {
			writeError(w, r, err)
			return
		}

		i.decide(w, r, id, func() (spleef.Decision, error) {
			return handle(i.registry.Game(), id, player)
		})
	}
}

func (i *Ingress) decide(w http.ResponseWriter, r *http.Request, id string, handle func() (spleef.Decision, error)) {
	var decision spleef.Decision
	err := i.registry.Do(r.Context(), id, func() error {
		var err error
		decision, err = handle()
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, decisionResponse{Allowed: decision == spleef.Allow})
}

func (i *Ingress) handleMove(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var request moveRequest
	if err := decode(w, r, &request); err != nil {
		writeError(w, r, err)
		return
	}

	player, err := playerName(request.Player)
	if err != nil {
		writeError(w, r, err)
		return
	}

	err = i.registry.Do(r.Context(), id, func() error {
		return i.registry.Game().OnMove(id, player, request.Location)
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (i *Ingress) handleDamage(w http.ResponseWriter, r *http.Request) {
	id, err := sessionID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var request damageRequest
	if err := decode(w, r, &request); err != nil {
		writeError(w, r, err)
		return
	}

	player, err := playerName(request.Player)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var cancelled bool
	err = i.registry.Do(r.Context(), id, func() error {
		var err error
		cancelled, err = i.registry.Game().OnDamage(id, player, request.Damage, request.Health)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, damageResponse{Cancelled: cancelled})
}

func (i *Ingress) handlePlayer(w http.ResponseWriter, r *http.Request) {
	name, err := playerName(r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	player, err := i.ratings.Player(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if opt.IsNone(player) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown player"})
		return
	}

	writeJSON(w, http.StatusOK, viewPlayer(player.Value))
}

func (i *Ingress) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, r, fmt.Errorf("%w: invalid limit", errBadRequest))
			return
		}
		limit = parsed
	}

	players, err := i.ratings.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]playerView, 0, len(players))
	for _, player := range players {
		views = append(views, viewPlayer(player))
	}
	writeJSON(w, http.StatusOK, views)
}
