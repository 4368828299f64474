package audio

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/lixenwraith/killsound/constant"
	"github.com/lixenwraith/killsound/status"
)

// DeviceService wraps Device as a service.Service
type DeviceService struct {
	name   string
	logger *log.Logger
	status *status.Registry

	mu     sync.Mutex
	device *Device
}

// NewDeviceService creates the audio output service for the named device
func NewDeviceService(name string, logger *log.Logger, reg *status.Registry) *DeviceService {
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &DeviceService{name: name, logger: logger, status: reg}
}

// Name implements Service
func (s *DeviceService) Name() string {
	return "audio"
}

// Dependencies implements Service
func (s *DeviceService) Dependencies() []string {
	return nil
}

// Init implements Service
// Detects the backend and resolves the device name; no output is opened yet
func (s *DeviceService) Init(ctx context.Context) error {
	d, err := NewDevice(s.name, s.logger)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.device = d
	s.mu.Unlock()

	s.status.SetLabel("audio.backend", d.Backend().Name)
	s.status.SetLabel("audio.device", d.Name())
	return nil
}

// Start implements Service
func (s *DeviceService) Start() error {
	return s.Device().Start()
}

// Stop implements Service
func (s *DeviceService) Stop() error {
	if d := s.Device(); d != nil {
		d.Close()
	}
	return nil
}

// Failures implements service.Failer
func (s *DeviceService) Failures() <-chan error {
	if d := s.Device(); d != nil {
		return d.Failures()
	}
	return nil
}

// Device returns the underlying device, nil before Init
func (s *DeviceService) Device() *Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.device
}

// PipelineService wraps Pipeline as a service.Service
type PipelineService struct {
	audio   *DeviceService
	logger  *log.Logger
	status  *status.Registry
	maxJobs int

	mu       sync.Mutex
	pipeline *Pipeline
}

// NewPipelineService creates the playback service rendering into audio
func NewPipelineService(audio *DeviceService, logger *log.Logger, maxJobs int, reg *status.Registry) *PipelineService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PipelineService{audio: audio, logger: logger, status: reg, maxJobs: maxJobs}
}

// Name implements Service
func (s *PipelineService) Name() string {
	return "playback"
}

// Dependencies implements Service
func (s *PipelineService) Dependencies() []string {
	return []string{"audio"}
}

// Init implements Service
func (s *PipelineService) Init(ctx context.Context) error {
	p := NewPipeline(s.audio.Device(), s.logger, s.maxJobs, s.status)
	s.mu.Lock()
	s.pipeline = p
	s.mu.Unlock()
	return nil
}

// Start implements Service
func (s *PipelineService) Start() error {
	return nil
}

// Stop implements Service
// Waits for loading jobs so none writes into a closed device
func (s *PipelineService) Stop() error {
	p := s.Pipeline()
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), constant.ShutdownTimeout)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		s.logger.Printf("playback stop: %v", err)
	}
	st := p.Stats()
	s.logger.Printf("playback: %d jobs started, %d dropped, %d completed", st.Started, st.Dropped, st.Completed)
	return nil
}

// Play implements the player used by the inbound handler
func (s *PipelineService) Play(ctx context.Context, assets []string, volume float64) {
	if p := s.Pipeline(); p != nil {
		p.Play(ctx, assets, volume)
	}
}

// Pipeline returns the underlying pipeline, nil before Init
func (s *PipelineService) Pipeline() *Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline
}
