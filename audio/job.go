package audio

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gopxl/beep"
)

// PlaybackJob is one load+mix+play operation
type PlaybackJob struct {
	ID     uuid.UUID
	Assets []string
	Volume float64
}

// Report summarizes a finished job
type Report struct {
	JobID  uuid.UUID
	Loaded int
	Failed int
	Queued bool // accepted by the device
}

// jobMix is the live mix of one job. Sources join as they finish loading;
// the stream ends once the job is sealed and every source has drained.
type jobMix struct {
	mu     sync.Mutex
	mixer  beep.Mixer
	sealed bool
}

func (j *jobMix) add(s beep.Streamer) {
	j.mu.Lock()
	j.mixer.Add(s)
	j.mu.Unlock()
}

// seal marks loading complete
func (j *jobMix) seal() {
	j.mu.Lock()
	j.sealed = true
	j.mu.Unlock()
}

// Stream implements beep.Streamer
func (j *jobMix) Stream(samples [][2]float64) (n int, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.sealed && j.mixer.Len() == 0 {
		return 0, false
	}
	// Silence while the first sources are still loading
	return j.mixer.Stream(samples)
}

// Err implements beep.Streamer
func (j *jobMix) Err() error {
	return nil
}
