package audio

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"github.com/lixenwraith/killsound/constant"
)

// Device is the single process-wide audio output
type Device struct {
	backend *BackendConfig
	name    string // resolved device name
	mixer   *Mixer
	logger  *log.Logger

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File // For direct OSS writes

	running atomic.Bool
	failed  chan error
	wg      sync.WaitGroup
}

// NewDevice detects a backend and resolves the requested device name.
// Unknown names fall back to the default device with a warning.
func NewDevice(name string, logger *log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	backend, err := DetectBackend()
	if err != nil {
		return nil, err
	}

	d := &Device{
		backend: backend,
		name:    DefaultDevice,
		logger:  logger,
		failed:  make(chan error, 1),
	}

	if name != "" && name != DefaultDevice {
		devices, err := ListDevices(backend)
		if err != nil {
			logger.Printf("list devices on %s: %v", backend.Name, err)
		}
		if slices.Contains(devices, name) {
			d.name = name
			logger.Printf("using device: %s", name)
		} else {
			logger.Printf("specified device %s not found, using default output device", name)
		}
	}

	return d, nil
}

// OpenDevice creates and starts a device
func OpenDevice(name string, logger *log.Logger) (*Device, error) {
	d, err := NewDevice(name, logger)
	if err != nil {
		return nil, err
	}
	if err := d.Start(); err != nil {
		return nil, err
	}
	return d, nil
}

// Start launches the backend and the render path
func (d *Device) Start() error {
	if d.running.Load() {
		return fmt.Errorf("audio device already running")
	}

	switch d.backend.Type {
	case BackendSpeaker:
		d.mixer = NewMixer(nil)
		sr := beep.SampleRate(constant.AudioSampleRate)
		if err := speaker.Init(sr, sr.N(constant.AudioSpeakerBuffer)); err != nil {
			return fmt.Errorf("%w: speaker: %v", ErrNoAudioBackend, err)
		}
		// The speaker goroutine pulls from the mixer
		speaker.Play(d.mixer)

	case BackendOSS:
		// Direct file write for OSS
		f, err := os.OpenFile(d.backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", d.backend.Path, err)
		}
		d.ossFile = f
		d.mixer = NewMixer(f)

	default:
		// Exec-based backend
		args := append(deviceArgs(d.backend, d.name), d.backend.Args...)
		cmd := exec.Command(d.backend.Path, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("%s stdin: %w", d.backend.Name, err)
		}
		if err := cmd.Start(); err != nil {
			stdin.Close()
			return fmt.Errorf("start %s: %w", d.backend.Name, err)
		}
		d.cmd = cmd
		d.stdin = stdin
		d.mixer = NewMixer(stdin)

		// Monitor process
		d.wg.Add(1)
		go d.monitorProcess()
	}

	d.mixer.Start()

	// Monitor mixer errors
	d.wg.Add(1)
	go d.monitorMixer()

	d.running.Store(true)
	d.logger.Printf("audio output: backend=%s device=%s", d.backend.Name, d.name)
	return nil
}

// monitorProcess watches for subprocess exit
func (d *Device) monitorProcess() {
	defer d.wg.Done()

	err := d.cmd.Wait()
	if d.running.Load() {
		d.logger.Printf("%s exited: %v", d.backend.Name, err)
		d.mixer.Stop()
		d.fail(fmt.Errorf("%w: %s exited: %v", ErrDeviceClosed, d.backend.Name, err))
	}
}

// monitorMixer watches for pipe errors
func (d *Device) monitorMixer() {
	defer d.wg.Done()

	select {
	case err := <-d.mixer.Errors():
		d.logger.Printf("render stopped: %v", err)
		d.fail(err)
	case <-d.mixer.stopChan:
	}
}

func (d *Device) fail(err error) {
	select {
	case d.failed <- err:
	default:
	}
}

// Failures reports a render path that stopped while running
func (d *Device) Failures() <-chan error {
	return d.failed
}

// Add hands a stream to the render path
func (d *Device) Add(s beep.Streamer) bool {
	if !d.running.Load() {
		return false
	}
	return d.mixer.Add(s)
}

// SampleRate is the rate streams passed to Add must use
func (d *Device) SampleRate() beep.SampleRate {
	return beep.SampleRate(constant.AudioSampleRate)
}

// Name returns the resolved device name
func (d *Device) Name() string {
	return d.name
}

// Backend returns the backend description
func (d *Device) Backend() *BackendConfig {
	return d.backend
}

// IsRunning returns true between Start and Close
func (d *Device) IsRunning() bool {
	return d.running.Load()
}

// GetStats returns admitted and dropped job streams
func (d *Device) GetStats() (played, dropped uint64) {
	if d.mixer == nil {
		return 0, 0
	}
	return d.mixer.GetStats()
}

// Close stops the render path and the backend; safe to call repeatedly
func (d *Device) Close() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.mixer.Stop()

	if d.backend.Type == BackendSpeaker {
		speaker.Clear()
		speaker.Close()
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	if d.ossFile != nil {
		d.ossFile.Close()
	}

	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}

	d.wg.Wait()
}
