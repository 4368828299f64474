package gsi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/preset"
	"github.com/lixenwraith/killsound/state"
	"github.com/lixenwraith/killsound/status"
)

var tracer = otel.Tracer("github.com/lixenwraith/killsound/gsi")

// Evaluator turns snapshots into highlight events
type Evaluator interface {
	Evaluate(s state.Snapshot) (state.HighlightEvent, bool)
}

// Resolver maps an event onto asset paths
type Resolver interface {
	Resolve(ctx context.Context, ev state.HighlightEvent, opts preset.Options) ([]string, error)
}

// Playback starts detached playback
type Playback interface {
	Play(ctx context.Context, assets []string, volume float64)
}

// HandlerConfig wires a Handler
type HandlerConfig struct {
	Tracker  Evaluator
	Resolver Resolver
	Player   Playback
	Options  preset.Options
	Volume   float64
	Token    string // empty accepts every document
	Logger   *log.Logger
	Status   *status.Registry
	Debug    bool
}

// Handler receives game-state documents.
// Every document is acknowledged with 200; rejects are only logged.
type Handler struct {
	tracker  Evaluator
	resolver Resolver
	player   Playback
	opts     preset.Options
	volume   float64
	token    string
	logger   *log.Logger
	debug    bool

	updates  *atomic.Int64
	ignored  *atomic.Int64
	events   *atomic.Int64
	failures *atomic.Int64
}

// NewHandler creates a handler from cfg
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	reg := cfg.Status
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Handler{
		tracker:  cfg.Tracker,
		resolver: cfg.Resolver,
		player:   cfg.Player,
		opts:     cfg.Options,
		volume:   cfg.Volume,
		token:    cfg.Token,
		logger:   logger,
		debug:    cfg.Debug,
		updates:  reg.Counter("gsi.updates"),
		ignored:  reg.Counter("gsi.ignored"),
		events:   reg.Counter("gsi.events"),
		failures: reg.Counter("preset.failures"),
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "gsi.update")
	defer span.End()
	h.updates.Add(1)

	var doc Document
	body := http.MaxBytesReader(w, r.Body, constant.MaxDocumentBytes)
	if err := json.NewDecoder(body).Decode(&doc); err != nil {
		h.logger.Printf("malformed document: %v", err)
		span.SetStatus(codes.Error, "malformed document")
		h.ignored.Add(1)
		return
	}

	if !h.authorized(doc.token()) {
		h.logger.Printf("rejected document with invalid auth token")
		span.SetAttributes(attribute.Bool("gsi.authorized", false))
		h.ignored.Add(1)
		return
	}

	if !doc.complete() {
		if h.debug {
			h.logger.Printf("map or player data is missing")
		}
		span.SetAttributes(attribute.Bool("gsi.complete", false))
		h.ignored.Add(1)
		return
	}

	h.update(ctx, span, &doc)
}

// update evaluates one complete document
func (h *Handler) update(ctx context.Context, span trace.Span, doc *Document) {
	snap := doc.Snapshot()
	span.SetAttributes(
		attribute.String("player.steamid", snap.Identity),
		attribute.Int("player.round_kills", int(snap.Kills)),
	)
	if h.debug {
		h.logger.Printf("update: steamid=%s kills=%d hs=%d", snap.Identity, snap.Kills, snap.HeadshotKills)
	}

	ev, fired := h.tracker.Evaluate(snap)
	span.SetAttributes(attribute.Bool("gsi.event", fired))
	if !fired {
		return
	}
	h.events.Add(1)

	h.logger.Printf("player: %s, kills: %d", doc.Player.Name, ev.KillCount)

	if h.expired(ctx, span) {
		return
	}
	assets, err := h.resolver.Resolve(ctx, ev, h.opts)
	if err != nil {
		h.logger.Printf("failed to resolve sounds: %v", err)
		span.RecordError(err)
		h.failures.Add(1)
		return
	}
	if len(assets) == 0 || h.expired(ctx, span) {
		return
	}

	h.player.Play(ctx, assets, h.volume)
}

// expired drops the event once the request deadline has passed
func (h *Handler) expired(ctx context.Context, span trace.Span) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	h.logger.Printf("dropped event: %v", err)
	span.RecordError(err)
	h.failures.Add(1)
	return true
}

func (h *Handler) authorized(token string) bool {
	if h.token == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}
