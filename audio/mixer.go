package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"

	"github.com/lixenwraith/killsound/constant"
)

// Mixer sums job streams into the device output.
// Jobs arrive through a bounded queue; the active list is owned by the
// render path (loop goroutine or speaker callback).
type Mixer struct {
	output io.Writer // nil when the backend pulls via Stream

	queue    chan beep.Streamer
	stopChan chan struct{}
	stopped  atomic.Bool

	// Accessed only by the render path
	active  []beep.Streamer
	scratch [][2]float64

	// Stats
	statsMu sync.Mutex
	played  uint64
	dropped uint64

	// Error signaling
	errChan chan error
}

// NewMixer creates a mixer writing s16le stereo frames to out
func NewMixer(out io.Writer) *Mixer {
	return &Mixer{
		output:   out,
		queue:    make(chan beep.Streamer, constant.AudioQueueSize),
		stopChan: make(chan struct{}),
		active:   make([]beep.Streamer, 0, 8),
		errChan:  make(chan error, 1),
	}
}

// Start begins the render loop for writer backends
func (m *Mixer) Start() {
	if m.output != nil {
		go m.loop()
	}
}

// Stop signals the mixer to halt
func (m *Mixer) Stop() {
	if m.stopped.CompareAndSwap(false, true) {
		close(m.stopChan)
	}
}

// Add queues a stream; returns false if the mixer is stopped or saturated
func (m *Mixer) Add(s beep.Streamer) bool {
	if m.stopped.Load() {
		return false
	}

	select {
	case m.queue <- s:
		return true
	default:
		m.statsMu.Lock()
		m.dropped++
		m.statsMu.Unlock()
		return false
	}
}

// Errors returns channel for pipe errors
func (m *Mixer) Errors() <-chan error {
	return m.errChan
}

// loop is the render goroutine for writer backends
func (m *Mixer) loop() {
	ticker := time.NewTicker(constant.AudioBufferDuration)
	defer ticker.Stop()

	frames := make([][2]float64, constant.AudioBufferSamples)
	outBytes := make([]byte, constant.AudioBufferSamples*constant.AudioBytesPerFrame)

	for {
		select {
		case <-m.stopChan:
			return

		case <-ticker.C:
			m.mix(frames)
			floatToBytes(frames, outBytes)

			// Silence is written too, keeping the pipe alive
			if _, err := m.output.Write(outBytes); err != nil {
				select {
				case m.errChan <- fmt.Errorf("%w: %v", ErrPipeClosed, err):
				default:
				}
				return
			}
		}
	}
}

// Stream implements beep.Streamer for pull-driven backends
func (m *Mixer) Stream(samples [][2]float64) (n int, ok bool) {
	if m.stopped.Load() {
		return 0, false
	}
	m.mix(samples)
	return len(samples), true
}

// Err implements beep.Streamer
func (m *Mixer) Err() error {
	return nil
}

// mix admits queued jobs and sums all active ones into buf
func (m *Mixer) mix(buf [][2]float64) {
	m.drainQueue()

	for i := range buf {
		buf[i] = [2]float64{}
	}

	if cap(m.scratch) < len(buf) {
		m.scratch = make([][2]float64, len(buf))
	}
	tmp := m.scratch[:len(buf)]

	remaining := m.active[:0]
	for _, s := range m.active {
		if fill(s, tmp) {
			remaining = append(remaining, s)
		}
		for j := range tmp {
			buf[j][0] += tmp[j][0]
			buf[j][1] += tmp[j][1]
		}
	}
	for i := len(remaining); i < len(m.active); i++ {
		m.active[i] = nil
	}
	m.active = remaining
}

// fill streams s into tmp, zero-padding the tail; false once s is drained
func fill(s beep.Streamer, tmp [][2]float64) bool {
	filled := 0
	for filled < len(tmp) {
		n, ok := s.Stream(tmp[filled:])
		filled += n
		if ok && n == 0 {
			// Stalled source: pad this period, keep it active
			for i := filled; i < len(tmp); i++ {
				tmp[i] = [2]float64{}
			}
			return true
		}
		if !ok {
			for i := filled; i < len(tmp); i++ {
				tmp[i] = [2]float64{}
			}
			return false
		}
	}
	return true
}

// drainQueue moves all queued jobs into the active list
func (m *Mixer) drainQueue() {
	for {
		select {
		case s := <-m.queue:
			m.active = append(m.active, s)
			m.statsMu.Lock()
			m.played++
			m.statsMu.Unlock()
		default:
			return
		}
	}
}

// floatToBytes converts float64 stereo frames to interleaved int16 LE bytes
// Applies soft limiting before hard clip
func floatToBytes(in [][2]float64, out []byte) {
	for i, frame := range in {
		for ch, v := range frame {
			// Soft limiter (tanh-style)
			if v > 0.8 {
				v = 0.8 + 0.2*(1.0-1.0/(1.0+(v-0.8)*5.0))
			} else if v < -0.8 {
				v = -0.8 - 0.2*(1.0-1.0/(1.0+(-v-0.8)*5.0))
			}

			// Hard clip
			if v > 1.0 {
				v = 1.0
			} else if v < -1.0 {
				v = -1.0
			}

			i16 := int16(v * 32767)
			binary.LittleEndian.PutUint16(out[i*4+ch*2:], uint16(i16))
		}
	}
}

// GetStats returns admitted and dropped job counts
func (m *Mixer) GetStats() (played, dropped uint64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.played, m.dropped
}
