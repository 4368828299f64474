package service

import "context"

// Service defines the lifecycle interface for long-lived subsystems
// Services own background resources: audio device, playback pipeline, listener
//
// Lifecycle:
//  1. Construction
//  2. Init(ctx) - acquire resources, resolve configuration
//  3. Start() - launch background goroutines
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init before this one
	Dependencies() []string

	// Init prepares the service; ctx bounds initialization only
	Init(ctx context.Context) error

	// Start begins service operation
	// Called after all services have initialized
	Start() error

	// Stop halts service operation and releases resources
	// Must be idempotent
	Stop() error
}

// Failer is implemented by services that can fail while running
// A value on the channel ends Hub.Run
type Failer interface {
	Failures() <-chan error
}
