package audio

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/status"
)

var tracer = otel.Tracer("github.com/lixenwraith/killsound/audio")

// Sink accepts finished job streams for rendering
type Sink interface {
	Add(s beep.Streamer) bool
	SampleRate() beep.SampleRate
}

// Loader opens and decodes one asset at the given rate
type Loader func(path string, rate beep.SampleRate) (beep.Streamer, error)

// Stats counts pipeline jobs
type Stats struct {
	Started   uint64
	Dropped   uint64
	Completed uint64
}

// Pipeline loads, mixes and plays jobs in the background
type Pipeline struct {
	sink   Sink
	load   Loader
	logger *log.Logger
	slots  *semaphore.Weighted

	wg        sync.WaitGroup
	started   *atomic.Int64
	dropped   *atomic.Int64
	completed *atomic.Int64
}

// NewPipeline creates a pipeline rendering into sink.
// maxJobs caps jobs that are still loading; jobs beyond the cap are dropped.
// A slot frees once loading ends, so mixes still draining into the device
// are not counted against it.
// Job counters are published to reg when non-nil.
func NewPipeline(sink Sink, logger *log.Logger, maxJobs int, reg *status.Registry) *Pipeline {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if maxJobs <= 0 {
		maxJobs = constant.DefaultMaxJobs
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Pipeline{
		sink:      sink,
		load:      LoadStream,
		logger:    logger,
		slots:     semaphore.NewWeighted(int64(maxJobs)),
		started:   reg.Counter("playback.started"),
		dropped:   reg.Counter("playback.dropped"),
		completed: reg.Counter("playback.completed"),
	}
}

// SetLoader replaces the asset loader
func (p *Pipeline) SetLoader(l Loader) {
	if l != nil {
		p.load = l
	}
}

// Play starts a detached job and returns immediately.
// The job outlives ctx; only its trace is linked to it.
func (p *Pipeline) Play(ctx context.Context, assets []string, volume float64) {
	if len(assets) == 0 {
		return
	}

	if !p.slots.TryAcquire(1) {
		p.dropped.Add(1)
		p.logger.Printf("playback saturated, dropping %d assets", len(assets))
		return
	}

	job := PlaybackJob{
		ID:     uuid.New(),
		Assets: assets,
		Volume: volume,
	}
	link := trace.LinkFromContext(ctx)

	p.started.Add(1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.slots.Release(1)
		p.run(link, job)
	}()
}

// run loads every asset concurrently into one live mix
func (p *Pipeline) run(link trace.Link, job PlaybackJob) Report {
	_, span := tracer.Start(context.Background(), "playback.job",
		trace.WithLinks(link),
		trace.WithAttributes(
			attribute.String("job.id", job.ID.String()),
			attribute.Int("job.assets", len(job.Assets)),
			attribute.Float64("job.volume", job.Volume),
		))
	defer span.End()
	defer p.completed.Add(1)

	report := Report{JobID: job.ID}

	mix := &jobMix{}
	// Volume scales the aggregate, never a single source
	out := &effects.Gain{Streamer: mix, Gain: job.Volume - 1}

	report.Queued = p.sink.Add(out)
	if !report.Queued {
		mix.seal()
		p.logger.Printf("job %s: device rejected stream", job.ID)
		span.SetAttributes(attribute.Bool("job.queued", false))
		return report
	}

	var g errgroup.Group
	var failed atomic.Int32
	rate := p.sink.SampleRate()
	for _, path := range job.Assets {
		g.Go(func() error {
			s, err := p.load(path, rate)
			if err != nil {
				failed.Add(1)
				p.logger.Printf("job %s: failed to add file to mixer: %v", job.ID, err)
				return nil
			}
			mix.add(s)
			return nil
		})
	}
	g.Wait()
	mix.seal()

	report.Failed = int(failed.Load())
	report.Loaded = len(job.Assets) - report.Failed
	span.SetAttributes(
		attribute.Int("job.loaded", report.Loaded),
		attribute.Int("job.failed", report.Failed),
	)
	if report.Failed > 0 {
		p.logger.Printf("job %s: %d/%d assets loaded", job.ID, report.Loaded, len(job.Assets))
	}
	return report
}

// Wait blocks until in-flight jobs have loaded or ctx ends
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns job counters
func (p *Pipeline) Stats() Stats {
	return Stats{
		Started:   uint64(p.started.Load()),
		Dropped:   uint64(p.dropped.Load()),
		Completed: uint64(p.completed.Load()),
	}
}
