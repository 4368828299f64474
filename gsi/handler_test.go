package gsi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/lixenwraith/killsound/preset"
	"github.com/lixenwraith/killsound/state"
)

type fakeResolver struct {
	mu     sync.Mutex
	events []state.HighlightEvent
	opts   preset.Options
	assets []string
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, ev state.HighlightEvent, opts preset.Options) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	f.opts = opts
	return f.assets, f.err
}

type playCall struct {
	assets []string
	volume float64
}

type fakePlayer struct {
	mu    sync.Mutex
	calls []playCall
}

func (f *fakePlayer) Play(ctx context.Context, assets []string, volume float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, playCall{assets, volume})
}

func (f *fakePlayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var _ Playback = (*fakePlayer)(nil)

type fixture struct {
	tracker  *state.Tracker
	resolver *fakeResolver
	player   *fakePlayer
	handler  *Handler
}

func newFixture(allowed, token string) *fixture {
	f := &fixture{
		tracker:  state.NewTracker(allowed),
		resolver: &fakeResolver{assets: []string{"sounds/crossfire/common.wav", "sounds/crossfire/1.wav"}},
		player:   &fakePlayer{},
	}
	f.handler = NewHandler(HandlerConfig{
		Tracker:  f.tracker,
		Resolver: f.resolver,
		Player:   f.player,
		Options:  preset.Options{NoVoice: true},
		Volume:   0.8,
		Token:    token,
	})
	return f
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func document(steamid string, kills, hs uint) string {
	return fmt.Sprintf(`{"map":{"name":"de_dust2"},"player":{"steamid":%q,"name":"tester","state":{"round_kills":%d,"round_killhs":%d}}}`,
		steamid, kills, hs)
}

func TestHandlerFiresOnNewKill(t *testing.T) {
	f := newFixture("", "")

	rec := f.post(t, document("A", 1, 1))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.resolver.events, 1)
	ev := f.resolver.events[0]
	assert.Equal(t, uint(1), ev.KillCount)
	assert.True(t, ev.IsHeadshot)
	assert.True(t, ev.IsFirstKill)
	assert.Equal(t, "A", ev.Identity)
	assert.True(t, f.resolver.opts.NoVoice)

	require.Equal(t, 1, f.player.count())
	assert.Equal(t, []string{"sounds/crossfire/common.wav", "sounds/crossfire/1.wav"}, f.player.calls[0].assets)
	assert.Equal(t, 0.8, f.player.calls[0].volume)
}

func TestHandlerDuplicateDoesNotFire(t *testing.T) {
	f := newFixture("", "")

	f.post(t, document("A", 1, 0))
	f.post(t, document("A", 1, 0))
	f.post(t, document("A", 0, 0))

	assert.Len(t, f.resolver.events, 1)
	assert.Equal(t, 1, f.player.count())
	assert.Equal(t, uint(0), f.tracker.Baseline().Kills)
}

func TestHandlerAcknowledgesIncomplete(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"map":`},
		{"empty", ``},
		{"no map", `{"player":{"steamid":"A","state":{"round_kills":1}}}`},
		{"null map", `{"map":null,"player":{"steamid":"A","state":{"round_kills":1}}}`},
		{"no player", `{"map":{"name":"de_inferno"}}`},
		{"no state", `{"map":{"name":"de_inferno"},"player":{"steamid":"A"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture("", "")
			rec := f.post(t, tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Empty(t, f.resolver.events)
			assert.Equal(t, state.RoundState{}, f.tracker.Baseline())
		})
	}
}

func TestHandlerToken(t *testing.T) {
	f := newFixture("", "s3cret")

	rec := f.post(t, document("A", 1, 0))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.resolver.events, "missing token must be ignored")

	rec = f.post(t, `{"auth":{"token":"wrong"},`+document("A", 1, 0)[1:])
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.resolver.events, "wrong token must be ignored")

	f.post(t, `{"auth":{"token":"s3cret"},`+document("A", 1, 0)[1:])
	assert.Len(t, f.resolver.events, 1)
}

func TestHandlerAllowList(t *testing.T) {
	f := newFixture("A", "")

	f.post(t, document("B", 1, 0))
	assert.Empty(t, f.resolver.events)

	f.post(t, document("A", 1, 0))
	assert.Len(t, f.resolver.events, 1)
}

func TestHandlerResolveError(t *testing.T) {
	f := newFixture("", "")
	f.resolver.err = errors.New("script failed")

	rec := f.post(t, document("A", 1, 0))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, f.resolver.events, 1)
	assert.Zero(t, f.player.count())

	// Baseline advanced anyway
	assert.Equal(t, uint(1), f.tracker.Baseline().Kills)
}

func TestHandlerExpiredRequest(t *testing.T) {
	f := newFixture("", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(document("A", 1, 0))).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.resolver.events)
	assert.Zero(t, f.player.count())
	assert.Equal(t, uint(1), f.tracker.Baseline().Kills)
}

func TestDocumentPlayerSection(t *testing.T) {
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(document("7656", 3, 2)), &doc))
	require.True(t, doc.complete())
	require.NotNil(t, doc.Player)
	assert.Equal(t, "tester", doc.Player.Name)
	assert.Equal(t, state.Snapshot{Identity: "7656", Kills: 3, HeadshotKills: 2}, doc.Snapshot())
}

func TestHandlerEmptyResolution(t *testing.T) {
	f := newFixture("", "")
	f.resolver.assets = nil

	f.post(t, document("A", 1, 0))
	assert.Zero(t, f.player.count())
}

func TestHandlerConcurrentDuplicates(t *testing.T) {
	f := newFixture("", "")

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.post(t, document("A", 1, 0))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.player.count())
}

func TestHandlerTraceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)

	f := newFixture("", "")
	f.post(t, document("A", 2, 0))

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	span := spans[len(spans)-1]
	assert.Equal(t, "gsi.update", span.Name())

	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "A", attrs["player.steamid"])
	assert.Equal(t, "2", attrs["player.round_kills"])
	assert.Equal(t, "true", attrs["gsi.event"])
}
